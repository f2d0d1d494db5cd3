package domain

import "time"

// Reading is one timestamped sensor sample from a device, e.g. nozzle and
// bed temperatures reported by a printer while it is producing.
type Reading struct {
	Timestamp time.Time          `json:"ts"`
	Fields    map[string]float64 `json:"fields"`
}

// Session is a contiguous run of readings for one device, bounded by idle
// gaps. Samples stay chronological but may contain duplicates after a
// retried flush; readers re-sort.
type Session struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Samples     []Reading `json:"samples"`
	SampleCount int       `json:"sample_count"`
}
