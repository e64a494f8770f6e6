package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Earthquake is one event from the feed. It is immutable: fields are set once
// by NewEarthquake and read through accessors. Two values describing the same
// event compare equal with ==.
type Earthquake struct {
	magnitude  float64
	location   string
	timeMillis int64
	detailURL  string
}

// NewEarthquake validates its arguments and builds an Earthquake.
// Any time is accepted, including events before the Unix epoch. The detail
// URL may be empty.
func NewEarthquake(magnitude float64, location string, timeMillis int64, detailURL string) (Earthquake, error) {
	if math.IsNaN(magnitude) || math.IsInf(magnitude, 0) {
		return Earthquake{}, fmt.Errorf("invalid magnitude %v", magnitude)
	}
	return Earthquake{
		magnitude:  magnitude,
		location:   location,
		timeMillis: timeMillis,
		detailURL:  detailURL,
	}, nil
}

func (e Earthquake) Magnitude() float64 { return e.magnitude }
func (e Earthquake) Location() string   { return e.location }
func (e Earthquake) TimeMillis() int64  { return e.timeMillis }
func (e Earthquake) DetailURL() string  { return e.detailURL }

// Time returns the origin time in UTC.
func (e Earthquake) Time() time.Time {
	return time.UnixMilli(e.timeMillis).UTC()
}

func (e Earthquake) String() string {
	return fmt.Sprintf("Earthquake{magnitude=%g, location=%q, time=%d, url=%q}",
		e.magnitude, e.location, e.timeMillis, e.detailURL)
}

// earthquakeJSON mirrors the feed's property names so published records read
// the same as the source.
type earthquakeJSON struct {
	Magnitude float64 `json:"mag"`
	Place     string  `json:"place"`
	Time      int64   `json:"time"`
	URL       string  `json:"url"`
}

// MarshalJSON encodes the record with feed property names.
func (e Earthquake) MarshalJSON() ([]byte, error) {
	return json.Marshal(earthquakeJSON{
		Magnitude: e.magnitude,
		Place:     e.location,
		Time:      e.timeMillis,
		URL:       e.detailURL,
	})
}

// UnmarshalJSON decodes a record written by MarshalJSON, applying the same
// validation as NewEarthquake.
func (e *Earthquake) UnmarshalJSON(data []byte) error {
	var raw earthquakeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	eq, err := NewEarthquake(raw.Magnitude, raw.Place, raw.Time, raw.URL)
	if err != nil {
		return err
	}
	*e = eq
	return nil
}
