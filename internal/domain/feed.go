package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// featureCollection is the subset of the USGS GeoJSON document we read.
// Pointers distinguish a missing or null member from a zero value.
type featureCollection struct {
	Features *[]json.RawMessage `json:"features"`
}

type feature struct {
	Properties *properties `json:"properties"`
}

type properties struct {
	Mag   *float64 `json:"mag"`
	Place *string  `json:"place"`
	Time  *int64   `json:"time"`
	URL   *string  `json:"url"`
}

// ParseFeed decodes a feed response into records in feed order.
//
// Blank input returns ErrEmptyFeed. Any structural problem returns an error
// wrapping ErrParse and no records, even if earlier features were valid.
// A document with an empty "features" array yields an empty, non-nil slice.
func ParseFeed(body string) ([]Earthquake, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyFeed
	}

	var doc featureCollection
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	if doc.Features == nil {
		return nil, fmt.Errorf("%w: missing \"features\" array", ErrParse)
	}

	quakes := make([]Earthquake, 0, len(*doc.Features))
	for i, rawFeature := range *doc.Features {
		eq, err := parseFeature(rawFeature)
		if err != nil {
			return nil, fmt.Errorf("%w: feature %d: %w", ErrParse, i, err)
		}
		quakes = append(quakes, eq)
	}
	return quakes, nil
}

func parseFeature(data json.RawMessage) (Earthquake, error) {
	var f feature
	if err := json.Unmarshal(data, &f); err != nil {
		return Earthquake{}, err
	}
	if f.Properties == nil {
		return Earthquake{}, fmt.Errorf("missing \"properties\"")
	}

	p := f.Properties
	switch {
	case p.Mag == nil:
		return Earthquake{}, missingField("mag")
	case p.Place == nil:
		return Earthquake{}, missingField("place")
	case p.Time == nil:
		return Earthquake{}, missingField("time")
	case p.URL == nil:
		return Earthquake{}, missingField("url")
	}

	return NewEarthquake(*p.Mag, *p.Place, *p.Time, *p.URL)
}

func missingField(name string) error {
	return fmt.Errorf("missing or null %q", name)
}
