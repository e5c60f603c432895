package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// PairKey identifies one (account, device) attribution timeline.
type PairKey struct {
	AccountID int64
	DeviceID  int64
}

// String renders the key as "account:device".
func (k PairKey) String() string {
	return fmt.Sprintf("%d:%d", k.AccountID, k.DeviceID)
}

// MarkerStore persists the last emitted bucket timestamp per pair.
// Markers are monotonic: once set they never decrease.
type MarkerStore interface {
	// Advance moves the marker for key to max(existing, at) and returns the
	// value held before the call. found is false when no marker existed.
	Advance(ctx context.Context, key PairKey, at int64) (previous int64, found bool, err error)

	// Get returns the current marker for key, or ErrNotFound. Polling never
	// reads markers this way; it is for inspection.
	Get(ctx context.Context, key PairKey) (int64, error)

	Close() error
}
