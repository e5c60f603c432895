package attribution

import "github.com/goodtune/plexbw/internal/sessions"

// CorrectAccounts reattributes owner samples the server misreports.
//
// Remote streams are sometimes logged against the owner account. Such a
// sample is a WAN sample of ownerID carrying more than threshold bytes; it is
// reassigned to the first other WAN sample on the same device and bucket
// that belongs to a different account and carries less than threshold
// bytes. It returns the number of samples reassigned.
func CorrectAccounts(samples []*DeviceSample, ownerID, threshold int64) int {
	limit := float64(threshold)
	corrected := 0

	for _, owner := range samples {
		if owner.Locality() != sessions.WAN || owner.AccountID() != ownerID || owner.Bytes() <= limit {
			continue
		}

		for _, other := range samples {
			if other == owner ||
				other.DeviceID() != owner.DeviceID() ||
				other.At() != owner.At() ||
				other.Locality() != sessions.WAN ||
				other.AccountID() == ownerID ||
				other.Bytes() >= limit {
				continue
			}

			owner.OverwriteAccountID(other.AccountID())
			corrected++
			break
		}
	}

	return corrected
}
