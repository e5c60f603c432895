package exporter

import (
	"context"
	"sync"

	"github.com/goodtune/plexbw/internal/attribution"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// MetricName is the gauge the attributed bytes are published under.
const MetricName = "plex_device_bytes_used"

// Poller is the part of attribution.Poller the exporter needs.
type Poller interface {
	Poll(ctx context.Context) ([]attribution.Sample, error)
}

// Exporter publishes the samples of one poll per scrape.
type Exporter struct {
	poller Poller
	gauge  *prometheus.GaugeVec
	logger zerolog.Logger

	mu sync.Mutex
}

// New creates an exporter and registers its gauge with reg.
func New(poller Poller, reg prometheus.Registerer, logger zerolog.Logger) (*Exporter, error) {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: MetricName,
			Help: "Bytes used by each device, attributed to the session using them",
		},
		attribution.LabelNames,
	)
	if err := reg.Register(gauge); err != nil {
		return nil, err
	}

	return &Exporter{
		poller: poller,
		gauge:  gauge,
		logger: logger.With().Str("component", "exporter").Logger(),
	}, nil
}

// Refresh replaces the gauge contents with the samples of a new poll. On
// failure the gauge is left empty until the next scrape. Samples that carry
// identical labels are summed. Concurrent calls run one at a time.
func (e *Exporter) Refresh(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.gauge.Reset()

	samples, err := e.poller.Poll(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to poll bandwidth")
		return
	}

	for _, s := range samples {
		e.gauge.With(labelValues(s.Labels)).Add(s.Bytes)
	}

	e.logger.Debug().Int("samples", len(samples)).Msg("Refreshed bandwidth gauge")
}

// labelValues fills every label the gauge declares, using "" for the ones a
// sample does not carry.
func labelValues(labels attribution.Labels) prometheus.Labels {
	out := make(prometheus.Labels, len(attribution.LabelNames))
	for _, name := range attribution.LabelNames {
		out[name] = labels[name]
	}
	return out
}
