package plex

// Wire formats of the Plex Media Server JSON API. Only the fields the
// exporter reads are declared.

type bandwidthResponse struct {
	MediaContainer bandwidthContainer `json:"MediaContainer"`
}

type bandwidthContainer struct {
	Size                int                  `json:"size"`
	Device              []deviceJSON         `json:"Device"`
	Account             []accountJSON        `json:"Account"`
	StatisticsBandwidth []statisticBandwidth `json:"StatisticsBandwidth"`
}

type accountJSON struct {
	ID   int64  `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

type deviceJSON struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Platform         string `json:"platform"`
	ClientIdentifier string `json:"clientIdentifier"`
	CreatedAt        int64  `json:"createdAt"`
}

type statisticBandwidth struct {
	AccountID int64 `json:"accountID"`
	DeviceID  int64 `json:"deviceID"`
	Timespan  int   `json:"timespan"`
	At        int64 `json:"at"`
	LAN       bool  `json:"lan"`
	Bytes     int64 `json:"bytes"`
}

type sessionsResponse struct {
	MediaContainer sessionsContainer `json:"MediaContainer"`
}

type sessionsContainer struct {
	Size     int        `json:"size"`
	Metadata []metadata `json:"Metadata"`
}

type metadata struct {
	Type             string      `json:"type"`
	Title            string      `json:"title"`
	Year             int         `json:"year"`
	GrandparentTitle string      `json:"grandparentTitle"`
	ParentTitle      string      `json:"parentTitle"`
	ParentIndex      int         `json:"parentIndex"`
	Index            int         `json:"index"`
	SessionKey       string      `json:"sessionKey"`
	Media            []media     `json:"Media"`
	User             user        `json:"User"`
	Player           player      `json:"Player"`
	Session          sessionInfo `json:"Session"`
}

type media struct {
	Bitrate *float64 `json:"bitrate"`
	Part    []part   `json:"Part"`
}

type part struct {
	Bitrate *float64 `json:"bitrate"`
	Stream  []stream `json:"Stream"`
}

type stream struct {
	Bitrate    *float64 `json:"bitrate"`
	StreamType int      `json:"streamType"`
}

type user struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type player struct {
	Address           string `json:"address"`
	MachineIdentifier string `json:"machineIdentifier"`
	Platform          string `json:"platform"`
	Product           string `json:"product"`
	State             string `json:"state"`
	Title             string `json:"title"`
	Local             bool   `json:"local"`
}

type sessionInfo struct {
	ID        string  `json:"id"`
	Bandwidth float64 `json:"bandwidth"`
	Location  string  `json:"location"`
}
