package attribution

import (
	"context"

	"github.com/goodtune/plexbw/internal/sessions"
)

// Account is a server account as listed in the bandwidth payload.
type Account struct {
	ID   int64
	Name string
}

// Device is a client device as listed in the bandwidth payload.
type Device struct {
	ID               int64
	Name             string
	Platform         string
	ClientIdentifier string
}

// BandwidthRow is one aggregate byte count for an (account, device) pair at
// one bucket timestamp.
type BandwidthRow struct {
	AccountID int64
	DeviceID  int64
	At        int64
	Locality  sessions.Locality
	Bytes     int64
}

// BandwidthLog is one fetch of the bandwidth statistics endpoint.
type BandwidthLog struct {
	Accounts []Account
	Devices  []Device
	Rows     []BandwidthRow
}

// Source provides the two upstream datasets a poll needs.
type Source interface {
	FetchBandwidth(ctx context.Context, timespan int) (*BandwidthLog, error)
	FetchSessions(ctx context.Context) ([]sessions.Session, error)
}

// Label names attached to every emitted sample.
const (
	LabelAccountName         = "accountName"
	LabelAccountID           = "accountId"
	LabelOriginalAccountName = "originalAccountName"
	LabelOriginalAccountID   = "originalAccountId"
	LabelDeviceID            = "deviceId"
	LabelDeviceName          = "deviceName"
	LabelDevicePlatform      = "devicePlatform"
	LabelClientIdentifier    = "clientIdentifier"
	LabelNet                 = "net"
	LabelMediaTitle          = "mediaTitle"
	LabelAddress             = "address"
	LabelState               = "state"
)

// LabelNames lists every label a Sample may carry, in exposition order.
var LabelNames = []string{
	LabelAccountName,
	LabelAccountID,
	LabelOriginalAccountName,
	LabelOriginalAccountID,
	LabelDeviceID,
	LabelDeviceName,
	LabelDevicePlatform,
	LabelClientIdentifier,
	LabelNet,
	LabelMediaTitle,
	LabelAddress,
	LabelState,
}

// Labels is a label set keyed by the Label* names.
type Labels map[string]string

// Sample is one labelled byte value produced by a poll.
type Sample struct {
	Labels Labels
	Bytes  float64
}
