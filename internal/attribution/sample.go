package attribution

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/goodtune/plexbw/internal/sessions"
	"github.com/goodtune/plexbw/internal/storage"
)

// ErrUnknownDevice is returned when a bandwidth row names a device that is
// missing from the device table of the same payload.
var ErrUnknownDevice = errors.New("attribution: unknown device")

// Snapshot is the per-poll state shared by every DeviceSample of that poll.
// It is built once and never mutated after samples reference it, except for
// the latest-bucket bookkeeping done while samples are constructed.
type Snapshot struct {
	Accounts AccountCache
	Devices  DeviceCache
	Index    *sessions.Index

	latest  map[storage.PairKey]int64
	markers storage.MarkerStore
}

// NewSnapshot builds the caches and session index for one poll.
func NewSnapshot(bw *BandwidthLog, active []sessions.Session, markers storage.MarkerStore) *Snapshot {
	return &Snapshot{
		Accounts: NewAccountCache(bw.Accounts),
		Devices:  NewDeviceCache(bw.Devices),
		Index:    sessions.NewIndex(active),
		latest:   make(map[storage.PairKey]int64),
		markers:  markers,
	}
}

// DeviceSample is one bandwidth measurement for an (account, device) pair.
type DeviceSample struct {
	accountID         int64
	originalAccountID int64
	overwritten       bool

	device   Device
	locality sessions.Locality
	at       int64
	bytes    float64

	snap *Snapshot
}

// NewDeviceSample builds a sample from one bandwidth row and records its
// bucket as a candidate for the pair's latest bucket in this poll.
func (s *Snapshot) NewDeviceSample(row BandwidthRow) (*DeviceSample, error) {
	device, ok := s.Devices.Lookup(row.DeviceID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDevice, row.DeviceID)
	}

	ds := &DeviceSample{
		accountID: row.AccountID,
		device:    device,
		locality:  row.Locality,
		at:        row.At,
		bytes:     float64(row.Bytes),
		snap:      s,
	}

	key := ds.PairKey()
	if latest, seen := s.latest[key]; !seen || latest < ds.at {
		s.latest[key] = ds.at
	}

	return ds, nil
}

// AccountID returns the account the sample is currently attributed to.
func (d *DeviceSample) AccountID() int64 { return d.accountID }

// OriginalAccountID returns the account the server reported before any
// correction, and whether a correction happened.
func (d *DeviceSample) OriginalAccountID() (int64, bool) {
	return d.originalAccountID, d.overwritten
}

// DeviceID returns the device id.
func (d *DeviceSample) DeviceID() int64 { return d.device.ID }

// Locality returns whether the traffic was lan or wan.
func (d *DeviceSample) Locality() sessions.Locality { return d.locality }

// At returns the bucket timestamp.
func (d *DeviceSample) At() int64 { return d.at }

// Bytes returns the byte count currently held by the sample.
func (d *DeviceSample) Bytes() float64 { return d.bytes }

// PairKey returns the (account, device) key of the sample.
func (d *DeviceSample) PairKey() storage.PairKey {
	return storage.PairKey{AccountID: d.accountID, DeviceID: d.device.ID}
}

// IsLatestForPoll reports whether this sample carries the newest bucket seen
// for its pair in the current poll.
func (d *DeviceSample) IsLatestForPoll() bool {
	latest, ok := d.snap.latest[d.PairKey()]
	return ok && latest == d.at
}

// NotYetEmitted reports whether the pair's last emitted bucket is unset or
// older than this sample. Evaluating it advances the pair's marker to this
// sample's bucket, whether or not the sample ends up emitted.
func (d *DeviceSample) NotYetEmitted(ctx context.Context) (bool, error) {
	previous, found, err := d.snap.markers.Advance(ctx, d.PairKey(), d.at)
	if err != nil {
		return false, err
	}
	return !found || previous < d.at, nil
}

// Sessions returns the sessions this pair is watching on this device.
func (d *DeviceSample) Sessions() []sessions.Session {
	return d.snap.Index.Lookup(d.locality, d.device.ClientIdentifier, d.accountID)
}

// TotalActiveBitrate sums the bitrate of every non-paused session.
func (d *DeviceSample) TotalActiveBitrate() float64 {
	var total float64
	for _, s := range d.Sessions() {
		total += s.ActiveBitrate()
	}
	return total
}

// AllocateBytes adds each active session's share of totalBytes, weighted by
// bitrate over denominator, to the sample's bytes.
func (d *DeviceSample) AllocateBytes(totalBytes, denominator float64) {
	for _, s := range d.Sessions() {
		d.bytes += share(s, totalBytes, denominator)
	}
}

// OverwriteAccountID reattributes the sample to accountID. The first
// overwrite keeps the server-reported account as the original.
func (d *DeviceSample) OverwriteAccountID(accountID int64) {
	if !d.overwritten {
		d.originalAccountID = d.accountID
		d.overwritten = true
	}
	d.accountID = accountID
}

// Emit produces the labelled outputs of this sample: one per resolved
// session with the bytes split by active bitrate, or a single pair-level
// output when no session resolves.
func (d *DeviceSample) Emit() []Sample {
	list := d.Sessions()
	if len(list) == 0 {
		return []Sample{{Labels: d.labels(nil), Bytes: d.bytes}}
	}

	total := d.TotalActiveBitrate()
	out := make([]Sample, 0, len(list))
	for i := range list {
		bytes := share(list[i], d.bytes, total)
		if bytes > d.bytes {
			bytes = d.bytes
		}
		out = append(out, Sample{Labels: d.labels(&list[i]), Bytes: bytes})
	}
	return out
}

func (d *DeviceSample) labels(session *sessions.Session) Labels {
	accountName := d.snap.Accounts.Name(d.accountID)
	if accountName == "" && session != nil {
		accountName = session.AccountTitle
	}

	labels := Labels{
		LabelAccountName:      accountName,
		LabelAccountID:        strconv.FormatInt(d.accountID, 10),
		LabelDeviceID:         strconv.FormatInt(d.device.ID, 10),
		LabelDeviceName:       d.device.Name,
		LabelDevicePlatform:   d.device.Platform,
		LabelClientIdentifier: d.device.ClientIdentifier,
		LabelNet:              string(d.locality),
	}

	if d.overwritten {
		labels[LabelOriginalAccountName] = d.snap.Accounts.Name(d.originalAccountID)
		labels[LabelOriginalAccountID] = strconv.FormatInt(d.originalAccountID, 10)
	}

	if session != nil {
		labels[LabelMediaTitle] = session.MediaTitle()
		labels[LabelAddress] = session.Address
		labels[LabelState] = string(session.State)
	}

	return labels
}

// share is the bytes attributed to one session: its active bitrate over the
// denominator, times totalBytes. Paused sessions and a zero denominator
// yield zero.
func share(s sessions.Session, totalBytes, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return s.ActiveBitrate() / denominator * totalBytes
}
