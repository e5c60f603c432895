package sessions

// key identifies one account watching on one device.
type key struct {
	locality         Locality
	clientIdentifier string
	accountID        int64
}

// Index resolves (locality, device, account) to the sessions that pair is
// currently watching. An Index is built once per poll and treated as
// read-only afterwards.
type Index struct {
	byKey    map[key][]Session
	byDevice map[key][]Session // accountID is always zero
	size     int
}

// NewIndex builds an index from the given sessions.
func NewIndex(list []Session) *Index {
	idx := &Index{}
	idx.Rebuild(list)
	return idx
}

// Rebuild replaces the entire content of the index. Sessions that are not
// Indexable are skipped.
func (idx *Index) Rebuild(list []Session) {
	idx.byKey = make(map[key][]Session)
	idx.byDevice = make(map[key][]Session)
	idx.size = 0

	for _, s := range list {
		if !s.Indexable() {
			continue
		}
		k := key{locality: s.Locality, clientIdentifier: s.ClientIdentifier, accountID: s.AccountID}
		idx.byKey[k] = append(idx.byKey[k], s)

		dk := key{locality: s.Locality, clientIdentifier: s.ClientIdentifier}
		idx.byDevice[dk] = append(idx.byDevice[dk], s)
		idx.size++
	}
}

// Lookup returns the sessions of accountID on the given device. It never
// fails; unknown keys yield an empty slice.
func (idx *Index) Lookup(locality Locality, clientIdentifier string, accountID int64) []Session {
	if idx == nil {
		return nil
	}
	return idx.byKey[key{locality: locality, clientIdentifier: clientIdentifier, accountID: accountID}]
}

// DeviceSessions returns every session on the device, regardless of account.
func (idx *Index) DeviceSessions(locality Locality, clientIdentifier string) []Session {
	if idx == nil {
		return nil
	}
	return idx.byDevice[key{locality: locality, clientIdentifier: clientIdentifier}]
}

// Len returns the number of indexed sessions.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return idx.size
}
