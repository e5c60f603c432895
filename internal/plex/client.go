package plex

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goodtune/plexbw/internal/attribution"
	"github.com/goodtune/plexbw/internal/sessions"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/rs/zerolog"
)

var (
	// ErrUnauthorized is returned when the server rejects the token.
	ErrUnauthorized = errors.New("plex: unauthorized (check plex.token)")

	// ErrUnexpectedStatus is returned for any other non-2xx response.
	ErrUnexpectedStatus = errors.New("plex: unexpected status")
)

const (
	bandwidthPath = "/statistics/bandwidth"
	sessionsPath  = "/status/sessions"
)

// Config holds client configuration
type Config struct {
	URL                string
	Token              string
	ClientIdentifier   string
	DeviceName         string
	Timeout            time.Duration
	InsecureSkipVerify bool
	DefaultBitrateKbps float64
}

// Client talks to a Plex Media Server. It implements attribution.Source.
type Client struct {
	baseURL          string
	token            string
	clientIdentifier string
	deviceName       string
	defaultBitrate   float64
	httpClient       *http.Client
	logger           zerolog.Logger
}

// NewClient creates a new Plex client
func NewClient(config Config, logger zerolog.Logger) *Client {
	transport := cleanhttp.DefaultPooledTransport()
	if config.InsecureSkipVerify {
		// Plex servers commonly present certificates for *.plex.direct
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	if config.DefaultBitrateKbps <= 0 {
		config.DefaultBitrateKbps = DefaultBitrateKbps
	}

	return &Client{
		baseURL:          config.URL,
		token:            config.Token,
		clientIdentifier: config.ClientIdentifier,
		deviceName:       config.DeviceName,
		defaultBitrate:   config.DefaultBitrateKbps,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
		logger: logger.With().Str("component", "plex").Logger(),
	}
}

// FetchBandwidth returns the bandwidth log for the given timespan, along with
// the account and device tables embedded in the response.
func (c *Client) FetchBandwidth(ctx context.Context, timespan int) (*attribution.BandwidthLog, error) {
	var resp bandwidthResponse
	query := url.Values{"timespan": {strconv.Itoa(timespan)}}
	if err := c.get(ctx, bandwidthPath, query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch bandwidth statistics: %w", err)
	}

	mc := resp.MediaContainer
	bw := &attribution.BandwidthLog{
		Accounts: make([]attribution.Account, 0, len(mc.Account)),
		Devices:  make([]attribution.Device, 0, len(mc.Device)),
		Rows:     make([]attribution.BandwidthRow, 0, len(mc.StatisticsBandwidth)),
	}

	for _, a := range mc.Account {
		bw.Accounts = append(bw.Accounts, attribution.Account{ID: a.ID, Name: a.Name})
	}
	for _, d := range mc.Device {
		bw.Devices = append(bw.Devices, attribution.Device{
			ID:               d.ID,
			Name:             d.Name,
			Platform:         d.Platform,
			ClientIdentifier: d.ClientIdentifier,
		})
	}
	for _, s := range mc.StatisticsBandwidth {
		bw.Rows = append(bw.Rows, attribution.BandwidthRow{
			AccountID: s.AccountID,
			DeviceID:  s.DeviceID,
			At:        s.At,
			Locality:  sessions.LocalityOf(s.LAN),
			Bytes:     s.Bytes,
		})
	}

	c.logger.Debug().
		Int("accounts", len(bw.Accounts)).
		Int("devices", len(bw.Devices)).
		Int("rows", len(bw.Rows)).
		Msg("Fetched bandwidth statistics")

	return bw, nil
}

// FetchSessions returns the currently active playback sessions.
func (c *Client) FetchSessions(ctx context.Context) ([]sessions.Session, error) {
	var resp sessionsResponse
	if err := c.get(ctx, sessionsPath, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch sessions: %w", err)
	}

	out := make([]sessions.Session, 0, len(resp.MediaContainer.Metadata))
	for _, m := range resp.MediaContainer.Metadata {
		s, err := c.convertSession(m)
		if err != nil {
			c.logger.Debug().Err(err).Str("session_key", m.SessionKey).Msg("Skipping session")
			continue
		}
		out = append(out, s)
	}

	c.logger.Debug().Int("sessions", len(out)).Msg("Fetched sessions")

	return out, nil
}

func (c *Client) convertSession(m metadata) (sessions.Session, error) {
	accountID, err := strconv.ParseInt(m.User.ID, 10, 64)
	if err != nil {
		return sessions.Session{}, fmt.Errorf("invalid user id %q: %w", m.User.ID, err)
	}

	s := sessions.Session{
		Kind:             sessions.Kind(m.Type),
		AccountID:        accountID,
		AccountTitle:     m.User.Title,
		ClientIdentifier: m.Player.MachineIdentifier,
		Locality:         sessions.Locality(m.Session.Location),
		Title:            m.Title,
		Year:             m.Year,
		State:            sessions.State(m.Player.State),
		Bitrate:          EstimateBitrate(m, c.defaultBitrate),
		Address:          m.Player.Address,
	}
	if s.Kind == sessions.KindEpisode {
		s.Episode = &sessions.Episode{
			SeriesTitle:   m.GrandparentTitle,
			SeasonNumber:  m.ParentIndex,
			EpisodeNumber: m.Index,
		}
	}
	return s, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("X-Plex-Token", c.token)
	query.Set("X-Plex-Device-Name", c.deviceName)
	query.Set("X-Plex-Device", "Go")
	query.Set("X-Plex-Platform", "Go")
	query.Set("X-Plex-Client-Identifier", c.clientIdentifier)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s %s", ErrUnexpectedStatus, path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
