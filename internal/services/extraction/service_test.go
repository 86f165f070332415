package extraction

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ralborta/pdf-microservice/constants"
	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/ingest"
	"github.com/ralborta/pdf-microservice/internal/pipeline"
	"github.com/ralborta/pdf-microservice/internal/repository"
)

const batteryList = "LISTA DE PRECIOS OCTUBRE\n" +
	"12-45 12x45 D 38 56 350 Clio mio-palio 8v-Ford ka $ 66.791\n" +
	"12-65 12x65 Peugeot 208 Gol trend $ 80.100\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, repository.RunRepository) {
	t.Helper()
	logger := quietLogger()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })

	runs := repository.NewRunRepository(db, logger)
	cfg := common.DefaultConfig()
	return NewService(NewProcessor(cfg, logger), runs, logger), runs
}

func TestExtractTextRecordsRun(t *testing.T) {
	svc, runs := newTestService(t)
	ctx := common.WithRequestID(context.Background(), "req-7")

	res := svc.ExtractText(ctx, TextRequest{Text: batteryList, Filename: "sermat.txt"})
	require.Equal(t, constants.StatusOK, res.Status, res.Error)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, "req-7", res.RequestID)

	list, err := runs.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "req-7", list[0].RequestID)
	assert.Equal(t, "sermat.txt", list[0].Filename)
	assert.Equal(t, string(constants.StatusOK), list[0].Status)
	assert.Equal(t, 2, list[0].RecordCount)

	got, err := svc.GetRun(context.Background(), list[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, list[0], got)
}

func TestExtractTextInvalidAndFailedAreRecorded(t *testing.T) {
	svc, runs := newTestService(t)

	res := svc.ExtractText(context.Background(), TextRequest{Text: "corto"})
	assert.Equal(t, constants.StatusInvalidInput, res.Status)

	res = svc.ExtractText(context.Background(), TextRequest{Text: strings.Repeat("texto sin precios ", 10)})
	assert.Equal(t, constants.StatusFailed, res.Status)

	list, err := runs.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestExtractWorkbook(t *testing.T) {
	svc, _ := newTestService(t)

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Codigo", "Descripcion", "Precio"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"AD-1020", "Aditivo nafta 350 ml", "4.500,50"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())

	res := svc.ExtractWorkbook(context.Background(), WorkbookRequest{Body: bytes.NewReader(buf.Bytes()), Filename: "aditivos.xlsx"})
	require.Equal(t, constants.StatusOK, res.Status, res.Error)
	assert.Equal(t, constants.MethodSpreadsheet, res.Method)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 4500.5, res.Records[0].Price)

	res = svc.ExtractWorkbook(context.Background(), WorkbookRequest{Body: strings.NewReader("not a workbook")})
	assert.Equal(t, constants.StatusInvalidInput, res.Status)
	assert.NotEmpty(t, res.RequestID)
}

func TestGetRunErrors(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
	_, err = svc.GetRun(context.Background(), "6f1c1f3e-3d6b-4b7e-9f59-1b2f6c1d2e3f")
	assert.ErrorIs(t, err, common.ErrNotFound)

	noLog := NewService(pipeline.NewProcessor(quietLogger(), pipeline.Config{}), nil, quietLogger())
	_, err = noLog.GetRun(context.Background(), "6f1c1f3e-3d6b-4b7e-9f59-1b2f6c1d2e3f")
	assert.ErrorIs(t, err, common.ErrNotFound)
	runs, err := noLog.ListRuns(context.Background(), 5)
	assert.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRunBatch(t *testing.T) {
	svc, _ := newTestService(t)
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(filepath.Join(root, "sermat.txt"), []byte(batteryList), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "vacio.txt"), []byte("nada"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ruido.txt"), []byte(strings.Repeat("sin precios aqui ", 10)), 0o644))

	report, err := svc.RunBatch(context.Background(), ingest.NewFSIngestor(quietLogger()), BatchOptions{
		Root:    root,
		Workers: 2,
		OutDir:  out,
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(3), report.Stats.Matched)
	assert.Equal(t, 1, report.OK)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Invalid)
	assert.Equal(t, 2, report.Records)
	require.Len(t, report.Files, 3)

	_, err = os.Stat(filepath.Join(out, "sermat.productos.xlsx"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(out, "ruido.productos.xlsx"))
	assert.True(t, os.IsNotExist(err))
}
