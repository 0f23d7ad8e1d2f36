package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"github.com/san-kum/fieldsim/internal/observability"
	"github.com/san-kum/fieldsim/internal/plant"
)

// Serve runs the HTTP API on addr until ctx is done. A panicking handler is
// logged and answered with 500 instead of killing the plant.
func Serve(ctx context.Context, addr string, p *plant.Plant, m *observability.Metrics, lg *slog.Logger) error {
	if lg == nil {
		lg = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(slog.NewLogLogger(lg.Handler(), slog.LevelError)),
		handlers.PrintRecoveryStack(true),
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           recovery(handlers.CompressHandler(NewRouter(p, m, lg))),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		lg.Info("http api listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		lg.Info("http api stopped")
		return nil
	}
}
