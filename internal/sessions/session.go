package sessions

import (
	"fmt"
)

// Locality describes where a session or bandwidth sample originated.
type Locality string

const (
	LAN Locality = "lan"
	WAN Locality = "wan"
)

// LocalityOf maps the bandwidth log's lan flag to a Locality.
func LocalityOf(lan bool) Locality {
	if lan {
		return LAN
	}
	return WAN
}

// Valid reports whether l is one of the known localities.
func (l Locality) Valid() bool {
	return l == LAN || l == WAN
}

// Kind is the media type being played.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindEpisode Kind = "episode"
)

// State is the player state reported for a session.
type State string

const (
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateBuffering State = "buffering"
)

// Episode holds the fields only present on episode sessions.
type Episode struct {
	SeriesTitle   string
	SeasonNumber  int
	EpisodeNumber int
}

// Session is one active playback as reported by the media server.
// Episode is set if and only if Kind is KindEpisode.
type Session struct {
	Kind             Kind
	AccountID        int64
	AccountTitle     string
	ClientIdentifier string
	Locality         Locality
	Title            string
	Year             int
	State            State
	// Bitrate is an estimate in kbps, see plex.EstimateBitrate.
	Bitrate float64
	Address string
	Episode *Episode
}

// Paused reports whether the session is paused.
func (s Session) Paused() bool {
	return s.State == StatePaused
}

// ActiveBitrate is the session's allocation weight: its bitrate, or zero while paused.
func (s Session) ActiveBitrate() float64 {
	if s.Paused() {
		return 0
	}
	return s.Bitrate
}

// MediaTitle formats the title used in metric labels.
func (s Session) MediaTitle() string {
	switch s.Kind {
	case KindEpisode:
		if s.Episode != nil {
			return fmt.Sprintf("%s - S%dE%d - %s", s.Episode.SeriesTitle, s.Episode.SeasonNumber, s.Episode.EpisodeNumber, s.Title)
		}
		return s.Title
	default:
		return fmt.Sprintf("%s (%d)", s.Title, s.Year)
	}
}

// Indexable reports whether the session can be placed in an Index.
func (s Session) Indexable() bool {
	switch s.Kind {
	case KindMovie:
		return s.Locality.Valid()
	case KindEpisode:
		return s.Episode != nil && s.Locality.Valid()
	default:
		return false
	}
}
