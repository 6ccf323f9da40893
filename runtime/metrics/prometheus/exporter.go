package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AltairaLabs/roboshen/runtime/logger"
)

const (
	// defaultReadHeaderTimeout is the timeout for reading request headers.
	defaultReadHeaderTimeout = 10 * time.Second
	shutdownTimeout          = 5 * time.Second
)

// Exporter serves /metrics and /health over HTTP.
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
}

// NewExporter creates an exporter with the session collectors and the Go
// runtime and process collectors registered.
func NewExporter(addr string) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(allMetrics...)
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewExporterWithRegistry(addr, reg)
}

// NewExporterWithRegistry creates an exporter serving a caller-owned registry.
func NewExporterWithRegistry(addr string, registry *prometheus.Registry) *Exporter {
	return &Exporter{addr: addr, registry: registry}
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns a mux with /metrics and /health.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Addr returns the bound address once Serve is listening, else the
// configured one.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.addr
}

// Serve listens on the configured address until ctx is done, then shuts
// the server down gracefully. It returns nil after a clean shutdown.
func (e *Exporter) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	e.mu.Lock()
	e.server, e.listener = srv, ln
	e.mu.Unlock()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("Metrics exporter listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// MustRegister registers additional collectors. Panics if registration fails.
func (e *Exporter) MustRegister(cs ...prometheus.Collector) {
	e.registry.MustRegister(cs...)
}
