package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/entity"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc, db := newTestService(t)
	return NewHTTPServer(svc, db, quietLogger()).Handler()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func workbookBytes(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Codigo", "Descripcion", "Precio"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"AD-1", "Aditivo nafta", "4.500"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestHTTPExtractOK(t *testing.T) {
	h := newTestRouter(t)
	w := doJSON(t, h, http.MethodPost, "/extract", map[string]string{"text": batteryList, "filename": "sermat.txt"},
		RequestIDHeader, "req-http-1")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "req-http-1", w.Header().Get(RequestIDHeader))

	var res entity.ExtractionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, constants.StatusOK, res.Status)
	assert.Equal(t, "req-http-1", res.RequestID)
	assert.Len(t, res.Records, 2)
}

func TestHTTPExtractStatusMapping(t *testing.T) {
	h := newTestRouter(t)

	w := doJSON(t, h, http.MethodPost, "/extract", map[string]string{"text": "corto"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"invalid_input"`)

	w = doJSON(t, h, http.MethodPost, "/extract", map[string]string{"text": strings.Repeat("texto sin precios ", 10)})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"failed"`)

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPExtractWorkbookMultipart(t *testing.T) {
	h := newTestRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "aditivos.xlsx")
	require.NoError(t, err)
	_, err = fw.Write(workbookBytes(t))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract/xlsx", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res entity.ExtractionResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, constants.MethodSpreadsheet, res.Method)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "AD-1", res.Records[0].Code)
}

func TestHTTPExtractWorkbookBase64(t *testing.T) {
	h := newTestRouter(t)
	w := doJSON(t, h, http.MethodPost, "/extract/xlsx", map[string]string{
		"content_base64": base64.StdEncoding.EncodeToString(workbookBytes(t)),
		"filename":       "aditivos.xlsx",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, h, http.MethodPost, "/extract/xlsx", map[string]string{"content_base64": "%%%"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, h, http.MethodPost, "/extract/xlsx", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHTTPExtractExport(t *testing.T) {
	h := newTestRouter(t)
	w := doJSON(t, h, http.MethodPost, "/extract/export", map[string]string{"text": batteryList, "filename": "lista sermat.txt"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "lista sermat.xlsx")
	assert.Equal(t, "2", w.Header().Get("X-Record-Count"))

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Productos")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestHTTPRuns(t *testing.T) {
	h := newTestRouter(t)
	doJSON(t, h, http.MethodPost, "/extract", map[string]string{"text": batteryList})

	w := doJSON(t, h, http.MethodGet, "/runs?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Runs []entity.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Runs, 1)

	w = doJSON(t, h, http.MethodGet, "/runs/"+list.Runs[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var run entity.Run
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &run))
	assert.Equal(t, 2, run.RecordCount)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, "/runs/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/runs/6f1c1f3e-3d6b-4b7e-9f59-1b2f6c1d2e3f", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, "/runs?limit=0", nil).Code)
}

func TestHTTPHealth(t *testing.T) {
	h := newTestRouter(t)
	w := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","database":"ok","profiles":["battery_catalog","additive_catalog","generic"]}`, w.Body.String())
}
