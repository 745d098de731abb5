package gauge

import "encoding/json"

// GaugeResponse represents the generic response envelope of the gauge
// cloud REST API.
type GaugeResponse struct {
	RetCode int             `json:"retCode"` // 0 means success; non-zero indicates an error code
	RetMsg  string          `json:"retMsg"`  // Human-readable message describing the result or error
	Result  json.RawMessage `json:"result"`  // Main response payload (varies per endpoint)
	Time    int64           `json:"time"`    // Server timestamp (in milliseconds since epoch)
}

// Tank is one registered tank on the vendor account.
type Tank struct {
	TankID   string `json:"tank_id"`
	Name     string `json:"tank_name"`
	Capacity string `json:"capacity"` // gallons, as the API sends it
	Battery  string `json:"battery"`
}

type TankListResponse struct {
	Tanks []Tank `json:"tanks"`
}

// LevelsResponse is the history payload: rows of [timestamp_ms, gallons].
type LevelsResponse struct {
	TankID string     `json:"tank_id"`
	List   [][]string `json:"list"`
}

// LevelSample is a parsed tank level observation.
type LevelSample struct {
	TankID    string
	Timestamp int64 // milliseconds since epoch
	Gallons   float64
}

// LevelMessage is a WebSocket push with one or more live samples.
type LevelMessage struct {
	Topic string `json:"topic"` // e.g. "level.NS-1003"
	Data  []struct {
		TS      int64  `json:"ts"`
		Gallons string `json:"gallons"`
		Battery string `json:"battery"`
	} `json:"data"`
}
