package plex

// DefaultBitrateKbps is used when neither the media nor the session report a
// usable bitrate.
const DefaultBitrateKbps = 8000

// EstimateBitrate returns a best-effort bitrate in kbps for one session. It
// is an allocation weight, not a measurement:
//
//  1. the sum over Media of Media.bitrate, falling back per item to the sum of
//     Part.bitrate, falling back per part to the sum of Stream.bitrate;
//  2. if that is zero, the session's reported bandwidth;
//  3. if that is also zero, fallbackKbps.
//
// Whether the session is paused is not considered here.
func EstimateBitrate(m metadata, fallbackKbps float64) float64 {
	if b := mediaBitrate(m.Media); b > 0 {
		return b
	}
	if m.Session.Bandwidth > 0 {
		return m.Session.Bandwidth
	}
	return fallbackKbps
}

func mediaBitrate(items []media) float64 {
	var total float64
	for _, item := range items {
		if item.Bitrate != nil {
			total += *item.Bitrate
			continue
		}
		for _, p := range item.Part {
			if p.Bitrate != nil {
				total += *p.Bitrate
				continue
			}
			for _, s := range p.Stream {
				if s.Bitrate != nil {
					total += *s.Bitrate
				}
			}
		}
	}
	return total
}
