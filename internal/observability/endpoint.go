package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tphakala/birdclef-go/internal/conf"
	"github.com/tphakala/birdclef-go/internal/logger"
	metricspkg "github.com/tphakala/birdclef-go/internal/observability/metrics"
)

// Endpoint serves the registry on /metrics while a long running command works.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	metrics       *Metrics
	done          chan struct{}
}

// NewEndpoint returns an endpoint for settings.Observability.Listen. It
// fails when observability is disabled or no listen address is set.
func NewEndpoint(settings *conf.Settings, metrics *Metrics) (*Endpoint, error) {
	if !settings.Observability.Enabled {
		return nil, fmt.Errorf("observability not enabled in settings")
	}
	if settings.Observability.Listen == "" {
		return nil, fmt.Errorf("no metrics listen address configured")
	}

	return &Endpoint{
		listenAddress: settings.Observability.Listen,
		metrics:       metrics,
	}, nil
}

// Start binds the listener and serves in the background. The server stops
// when ctx is cancelled or Shutdown is called.
func (e *Endpoint) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	e.metrics.RegisterHandlers(mux)

	listener, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return fmt.Errorf("metrics endpoint listen on %s: %w", e.listenAddress, err)
	}

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	e.done = make(chan struct{})

	log := GetLogger()
	go func() {
		defer close(e.done)
		log.Info("metrics endpoint starting", logger.String("address", listener.Addr().String()))
		if err := e.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics HTTP server error", logger.Error(err))
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			e.Shutdown()
		case <-e.done:
		}
	}()

	return nil
}

// Shutdown stops the server gracefully. It is safe to call more than once.
func (e *Endpoint) Shutdown() {
	if e.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), metricspkg.ShutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(ctx); err != nil {
		GetLogger().Error("metrics server shutdown error", logger.Error(err))
	}
	<-e.done
}

// GetMetrics returns the Metrics instance associated with this Endpoint.
func (e *Endpoint) GetMetrics() *Metrics {
	return e.metrics
}

// Setup creates metrics when observability is enabled and serves them when a
// listen address is configured. Both return values are nil when disabled.
// Callers stop the endpoint with Shutdown or by cancelling ctx.
func Setup(ctx context.Context, settings *conf.Settings) (*Metrics, *Endpoint, error) {
	if !settings.Observability.Enabled {
		return nil, nil, nil
	}

	m, err := NewMetrics()
	if err != nil {
		return nil, nil, err
	}
	if settings.Observability.Listen == "" {
		return m, nil, nil
	}

	endpoint, err := NewEndpoint(settings, m)
	if err != nil {
		return nil, nil, err
	}
	if err := endpoint.Start(ctx); err != nil {
		return nil, nil, err
	}
	return m, endpoint, nil
}
