package attribution

import (
	"testing"

	"github.com/goodtune/plexbw/internal/sessions"
)

func TestCorrectAccounts(t *testing.T) {
	const (
		owner     = 1
		threshold = DefaultStreamingThresholdBytes
	)

	tests := []struct {
		name         string
		rows         []BandwidthRow
		wantCount    int
		wantAccount  int64
		wantOriginal bool
	}{
		{
			name: "owner above threshold reassigned",
			rows: []BandwidthRow{
				{AccountID: owner, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 30000000},
				{AccountID: 22, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 5000000},
			},
			wantCount:    1,
			wantAccount:  22,
			wantOriginal: true,
		},
		{
			name: "owner below threshold",
			rows: []BandwidthRow{
				{AccountID: owner, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 20000000},
				{AccountID: 22, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 5000000},
			},
			wantAccount: owner,
		},
		{
			name: "remote sample above threshold",
			rows: []BandwidthRow{
				{AccountID: owner, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 30000000},
				{AccountID: 22, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 28000000},
			},
			wantAccount: owner,
		},
		{
			name: "remote sample on lan",
			rows: []BandwidthRow{
				{AccountID: owner, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 30000000},
				{AccountID: 22, DeviceID: testDevice, At: 100, Locality: sessions.LAN, Bytes: 5000000},
			},
			wantAccount: owner,
		},
		{
			name: "different bucket",
			rows: []BandwidthRow{
				{AccountID: owner, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 30000000},
				{AccountID: 22, DeviceID: testDevice, At: 200, Locality: sessions.WAN, Bytes: 5000000},
			},
			wantAccount: owner,
		},
		{
			name: "owner on lan",
			rows: []BandwidthRow{
				{AccountID: owner, DeviceID: testDevice, At: 100, Locality: sessions.LAN, Bytes: 30000000},
				{AccountID: 22, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 5000000},
			},
			wantAccount: owner,
		},
		{
			name: "no remote sample",
			rows: []BandwidthRow{
				{AccountID: owner, DeviceID: testDevice, At: 100, Locality: sessions.WAN, Bytes: 30000000},
			},
			wantAccount: owner,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := newTestSnapshot(t, testLog(tt.rows...), nil)
			samples := make([]*DeviceSample, 0, len(tt.rows))
			for _, row := range tt.rows {
				samples = append(samples, mustSample(t, snap, row))
			}

			if got := CorrectAccounts(samples, owner, threshold); got != tt.wantCount {
				t.Errorf("CorrectAccounts() = %d, want %d", got, tt.wantCount)
			}

			first := samples[0]
			if first.AccountID() != tt.wantAccount {
				t.Errorf("AccountID() = %d, want %d", first.AccountID(), tt.wantAccount)
			}
			original, ok := first.OriginalAccountID()
			if ok != tt.wantOriginal {
				t.Errorf("OriginalAccountID() ok = %v, want %v", ok, tt.wantOriginal)
			}
			if ok && original != owner {
				t.Errorf("OriginalAccountID() = %d, want %d", original, owner)
			}
		})
	}
}
