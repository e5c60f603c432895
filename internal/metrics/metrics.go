package metrics

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Poll metrics
	PollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plexbw_polls_total",
			Help: "Total number of attribution polls run",
		},
	)

	PollFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plexbw_poll_failures_total",
			Help: "Total number of attribution polls that failed",
		},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "plexbw_poll_duration_seconds",
			Help:    "Attribution poll duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// Attribution metrics
	RowsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plexbw_rows_dropped_total",
			Help: "Bandwidth rows dropped before attribution",
		},
		[]string{"reason"},
	)

	AccountCorrections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plexbw_account_corrections_total",
			Help: "Owner samples reattributed to a remote account",
		},
	)

	SamplesEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "plexbw_samples_emitted_total",
			Help: "Labelled samples produced by attribution polls",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(
		PollsTotal,
		PollFailures,
		PollDuration,
		RowsDropped,
		AccountCorrections,
		SamplesEmitted,
	)
}

// RefreshFunc is run before every scrape of /metrics.
type RefreshFunc func(ctx context.Context)

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // Optional pre-created listener (for systemd socket activation)
}

// NewServer creates a new metrics server. refresh may be nil.
func NewServer(addr string, refresh RefreshFunc, logger zerolog.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: Handler(prometheus.DefaultGatherer, refresh),
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the router serving /metrics from gatherer and /health.
func Handler(gatherer prometheus.Gatherer, refresh RefreshFunc) http.Handler {
	metricsHandler := promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		if refresh != nil {
			refresh(req.Context())
		}
		metricsHandler.ServeHTTP(w, req)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop gracefully stops the metrics server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Shutdown(ctx)
}
