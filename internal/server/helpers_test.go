package server

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ralborta/pdf-microservice/internal/common"
	"github.com/ralborta/pdf-microservice/internal/repository"
	"github.com/ralborta/pdf-microservice/internal/services/extraction"
)

const batteryList = "LISTA DE PRECIOS OCTUBRE\n" +
	"12-45 12x45 D 38 56 350 Clio mio-palio 8v-Ford ka $ 66.791\n" +
	"12-65 12x65 Peugeot 208 Gol trend $ 80.100\n"

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*extraction.Service, *repository.DB) {
	t.Helper()
	logger := quietLogger()
	db, err := repository.Open(context.Background(), repository.Config{DSN: ":memory:"}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	proc := extraction.NewProcessor(common.DefaultConfig(), logger)
	return extraction.NewService(proc, repository.NewRunRepository(db, logger), logger), db
}
