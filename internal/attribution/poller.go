package attribution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/plexbw/internal/metrics"
	"github.com/goodtune/plexbw/internal/sessions"
	"github.com/goodtune/plexbw/internal/storage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTimespan                = 6
	DefaultOwnerAccountID          = 1
	DefaultStreamingThresholdBytes = 27212970
)

// Config holds poller configuration
type Config struct {
	Timespan                int
	OwnerAccountID          int64
	StreamingThresholdBytes int64
}

// Poller turns the server's bandwidth log into labelled samples, emitting
// each (account, device) bucket at most once across polls.
type Poller struct {
	source  Source
	markers storage.MarkerStore
	config  Config
	logger  zerolog.Logger

	mu sync.Mutex
}

// NewPoller creates a new poller. Zero config values take their defaults.
func NewPoller(source Source, markers storage.MarkerStore, config Config, logger zerolog.Logger) *Poller {
	if config.Timespan == 0 {
		config.Timespan = DefaultTimespan
	}
	if config.OwnerAccountID == 0 {
		config.OwnerAccountID = DefaultOwnerAccountID
	}
	if config.StreamingThresholdBytes == 0 {
		config.StreamingThresholdBytes = DefaultStreamingThresholdBytes
	}

	return &Poller{
		source:  source,
		markers: markers,
		config:  config,
		logger:  logger.With().Str("component", "attribution").Logger(),
	}
}

// Poll runs one attribution cycle. Polls are serialised: a call blocks until
// any poll in progress has completed.
func (p *Poller) Poll(ctx context.Context) ([]Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	metrics.PollsTotal.Inc()

	out, err := p.poll(ctx)

	metrics.PollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.PollFailures.Inc()
		return nil, err
	}
	metrics.SamplesEmitted.Add(float64(len(out)))

	return out, nil
}

func (p *Poller) poll(ctx context.Context) ([]Sample, error) {
	var (
		bw     *BandwidthLog
		active []sessions.Session
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bw, err = p.source.FetchBandwidth(gctx, p.config.Timespan)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = p.source.FetchSessions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("poll failed: %w", err)
	}

	snap := NewSnapshot(bw, active, p.markers)

	all := make([]*DeviceSample, 0, len(bw.Rows))
	for _, row := range bw.Rows {
		ds, err := snap.NewDeviceSample(row)
		if err != nil {
			if errors.Is(err, ErrUnknownDevice) {
				metrics.RowsDropped.WithLabelValues("unknown_device").Inc()
				p.logger.Debug().
					Int64("account_id", row.AccountID).
					Int64("device_id", row.DeviceID).
					Int64("at", row.At).
					Msg("Dropping row for unknown device")
				continue
			}
			return nil, err
		}
		all = append(all, ds)
	}

	latest := make([]*DeviceSample, 0, len(all))
	for _, ds := range all {
		if ds.IsLatestForPoll() {
			latest = append(latest, ds)
		}
	}

	if n := CorrectAccounts(latest, p.config.OwnerAccountID, p.config.StreamingThresholdBytes); n > 0 {
		metrics.AccountCorrections.Add(float64(n))
		for _, ds := range latest {
			if original, ok := ds.OriginalAccountID(); ok {
				p.logger.Debug().
					Int64("original_account_id", original).
					Int64("account_id", ds.AccountID()).
					Int64("device_id", ds.DeviceID()).
					Int64("at", ds.At()).
					Msg("Reattributed owner sample")
			}
		}
	}

	var out []Sample
	for _, ds := range emissionOrder(latest) {
		fresh, err := ds.NotYetEmitted(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to check emission marker for %s: %w", ds.PairKey(), err)
		}
		if !fresh {
			continue
		}
		out = append(out, ds.Emit()...)
	}

	p.logger.Debug().
		Int("rows", len(bw.Rows)).
		Int("sessions", snap.Index.Len()).
		Int("latest", len(latest)).
		Int("samples", len(out)).
		Msg("Poll complete")

	return out, nil
}

// emissionOrder puts reattributed samples first, keeping row order within
// each group. A corrected sample shares its pair and bucket with the sample
// it was matched to, and only the first of them claims the marker.
func emissionOrder(samples []*DeviceSample) []*DeviceSample {
	ordered := make([]*DeviceSample, 0, len(samples))
	for _, ds := range samples {
		if _, ok := ds.OriginalAccountID(); ok {
			ordered = append(ordered, ds)
		}
	}
	for _, ds := range samples {
		if _, ok := ds.OriginalAccountID(); !ok {
			ordered = append(ordered, ds)
		}
	}
	return ordered
}
