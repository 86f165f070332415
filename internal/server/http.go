package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/entity"
	"github.com/ralborta/pdf-microservice/internal/export"
	"github.com/ralborta/pdf-microservice/internal/repository"
	"github.com/ralborta/pdf-microservice/internal/services/extraction"
)

// RequestIDHeader carries the caller's request id in and out.
const RequestIDHeader = "X-Request-ID"

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// HTTPServer exposes the extraction service over JSON.
type HTTPServer struct {
	router  *gin.Engine
	svc     *extraction.Service
	db      *repository.DB
	logger  *slog.Logger
	maxBody int64
}

// NewHTTPServer builds the router. db may be nil when the run log is disabled.
func NewHTTPServer(svc *extraction.Service, db *repository.DB, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{
		router:  gin.New(),
		svc:     svc,
		db:      db,
		logger:  logger,
		maxBody: 32 << 20,
	}
	s.setupRoutes()
	return s
}

func (s *HTTPServer) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestContext())

	s.router.GET("/health", s.health)
	s.router.POST("/extract", s.extractText)
	s.router.POST("/extract/xlsx", s.extractWorkbook)
	s.router.POST("/extract/export", s.extractExport)
	s.router.GET("/runs", s.listRuns)
	s.router.GET("/runs/:id", s.getRun)
}

func (s *HTTPServer) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http serving", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// requestContext attaches a request id and logs each request.
func (s *HTTPServer) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		ctx := c.Request.Context()
		if rid != "" {
			ctx = common.WithRequestID(ctx, rid)
		}
		ctx, rid = common.EnsureRequestID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, rid)
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
		}

		c.Next()

		s.logger.Info("http.request",
			"req_id", rid,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

type extractRequest struct {
	Text     string `json:"text"`
	Filename string `json:"filename"`
}

type workbookRequest struct {
	ContentBase64 string `json:"content_base64"`
	Filename      string `json:"filename"`
	Sheet         string `json:"sheet"`
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *HTTPServer) extractText(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	res := s.svc.ExtractText(c.Request.Context(), extraction.TextRequest{Text: req.Text, Filename: req.Filename})
	c.JSON(statusCodeFor(res), res)
}

func (s *HTTPServer) extractWorkbook(c *gin.Context) {
	body, filename, sheetName, err := s.workbookPayload(c)
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	res := s.svc.ExtractWorkbook(c.Request.Context(), extraction.WorkbookRequest{
		Body:     body,
		Filename: filename,
		Sheet:    sheetName,
	})
	c.JSON(statusCodeFor(res), res)
}

// workbookPayload accepts a multipart "file" field or a JSON body with base64 content.
func (s *HTTPServer) workbookPayload(c *gin.Context) (io.Reader, string, string, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, "", "", fmt.Errorf("multipart field \"file\" is required")
		}
		f, err := fh.Open()
		if err != nil {
			return nil, "", "", fmt.Errorf("open upload: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, "", "", fmt.Errorf("read upload: %w", err)
		}
		return bytes.NewReader(data), filepath.Base(fh.Filename), c.PostForm("sheet"), nil
	}

	var req workbookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, "", "", fmt.Errorf("invalid JSON body: %v", err)
	}
	v := common.NewValidator().Field("content_base64", req.ContentBase64, common.Required)
	if err := v.Error(); err != nil {
		return nil, "", "", err
	}
	data, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		return nil, "", "", fmt.Errorf("content_base64 is not valid base64")
	}
	return bytes.NewReader(data), req.Filename, req.Sheet, nil
}

// extractExport runs a text extraction and answers with the XLSX workbook.
// Non-ok results come back as JSON, like /extract.
func (s *HTTPServer) extractExport(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}
	res := s.svc.ExtractText(c.Request.Context(), extraction.TextRequest{Text: req.Text, Filename: req.Filename})
	if !res.OK() {
		c.JSON(statusCodeFor(res), res)
		return
	}
	data, err := export.WriteProductsXLSX(res.Records, s.logger)
	if err != nil {
		s.logger.Error("http.export.failed", "req_id", res.RequestID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "export failed", RequestID: res.RequestID})
		return
	}
	name := exportName(req.Filename)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, name))
	c.Header("X-Extraction-Method", string(res.Method))
	c.Header("X-Record-Count", strconv.Itoa(len(res.Records)))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (s *HTTPServer) getRun(c *gin.Context) {
	run, err := s.svc.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *HTTPServer) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 1 || limit > 500 {
		s.badRequest(c, "limit must be between 1 and 500")
		return
	}
	runs, err := s.svc.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if runs == nil {
		runs = []entity.Run{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *HTTPServer) health(c *gin.Context) {
	resp := gin.H{"status": "ok", "database": "disabled", "profiles": constants.ProfilesAsStringSlice()}
	if s.db != nil {
		if err := repository.HealthCheck(c.Request.Context(), s.db, 2*time.Second, s.logger); err != nil {
			resp["status"] = "degraded"
			resp["database"] = "unreachable"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		resp["database"] = "ok"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: msg, RequestID: common.RequestIDFromContext(c.Request.Context())})
}

func (s *HTTPServer) writeError(c *gin.Context, err error) {
	rid := common.RequestIDFromContext(c.Request.Context())
	code := HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("http.request.failed", "req_id", rid, "error", err)
	}
	c.JSON(code, errorResponse{Error: err.Error(), RequestID: rid})
}

// HTTPStatus maps application errors onto status codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// statusCodeFor keeps failed extractions at 200 so callers branch on the status field.
func statusCodeFor(res entity.ExtractionResult) int {
	if res.Status == constants.StatusInvalidInput {
		return http.StatusBadRequest
	}
	return http.StatusOK
}

func exportName(filename string) string {
	base := strings.TrimSuffix(filepath.Base(strings.TrimSpace(filename)), filepath.Ext(filename))
	if base == "" || base == "." || base == "/" {
		base = "productos"
	}
	return base + ".xlsx"
}
