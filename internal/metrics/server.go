package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cosmossdk.io/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Server is the thin HTTP exposition endpoint declared a non-core
// collaborator by §1 — it just wires the registry to promhttp.
type Server struct {
	httpServer *http.Server
	logger     log.Logger
}

// NewServer builds a /metrics server bound to the given port.
func NewServer(m *Metrics, port uint16, logger log.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}))

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
		logger: logger,
	}
}

// Run serves until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("metrics server listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
