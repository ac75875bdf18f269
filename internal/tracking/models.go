package tracking

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Position struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	DateTime  time.Time `json:"date_time"`
	Distance  float64   `json:"distance"`
	Speed     float64   `json:"speed"`
}

// PositionInput is what a client may send; distance and speed are always
// computed server side.
type PositionInput struct {
	Run       int64    `json:"run"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	DateTime  FixTime  `json:"date_time"`
}

type Totals struct {
	DistanceKm     float64 `json:"distance"`
	ElapsedSeconds int64   `json:"run_time_seconds"`
	AverageSpeed   float64 `json:"speed"`
}

type Summary struct {
	RunID      int64 `json:"run"`
	PointCount int   `json:"point_count"`
	Totals
}

var fixTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// FixTime accepts RFC 3339 timestamps and zone-less ones, which are read as UTC.
type FixTime struct {
	time.Time
}

func (t *FixTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range fixTimeLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("date_time %q: unsupported format", raw)
}

func (t FixTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

const (
	EventPosition = "position"
	EventStatus   = "status"
)

// Event is the message pushed to live run subscribers.
type Event struct {
	Type     string    `json:"type"`
	Position *Position `json:"position,omitempty"`
	Status   string    `json:"status,omitempty"`
	Totals   *Totals   `json:"totals,omitempty"`
}
