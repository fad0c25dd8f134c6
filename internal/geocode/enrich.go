package geocode

import (
	"context"
	"errors"
	"fmt"

	"tripledger/internal/timeline"
)

// Fallback strings written when a lookup cannot be completed. Rows
// carry these instead of blanks so a reviewer can tell "never tried"
// from "tried and failed". Unknown place means the API answered with
// nothing; resolve error means the lookup itself broke.
const (
	FallbackUnknownPlace = "Unknown Place ID"
	FallbackResolveError = "Error resolving address"
)

// FallbackCoords renders a coordinate pair as a last-resort address.
func FallbackCoords(lat, lng float64) string {
	return fmt.Sprintf("(%.6f, %.6f)", lat, lng)
}

// Issue records one lookup that fell back.
type Issue struct {
	RecordIndex int
	Field       string
	Err         error
}

// Stats summarizes one enrichment pass.
type Stats struct {
	Visits     int
	Activities int
	Issues     int
}

// Enricher fills visit addresses and, optionally, activity endpoint
// addresses in place.
type Enricher struct {
	Resolver Resolver

	// ResolveActivities reverse geocodes activity start and end
	// coordinates. Off by default since it roughly triples lookups.
	ResolveActivities bool

	// Categories limits activity resolution to matching activity
	// categories. Empty means every activity qualifies.
	Categories []string
}

func (e *Enricher) wantsCategory(category string) bool {
	if len(e.Categories) == 0 {
		return true
	}
	for _, c := range e.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Enrich mutates records in place. Failures never abort the pass; each
// one is reported as an Issue and the record gets a fallback value.
func (e *Enricher) Enrich(ctx context.Context, records []timeline.Record) ([]Issue, Stats, error) {
	var issues []Issue
	var stats Stats

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return issues, stats, err
		}
		switch r := rec.(type) {
		case *timeline.Visit:
			if r.PlaceID == "" {
				continue
			}
			info, err := e.Resolver.PlaceDetails(ctx, r.PlaceID)
			if err != nil {
				r.Address = FallbackResolveError
				if errors.Is(err, ErrNoResult) {
					r.Address = FallbackUnknownPlace
				}
				issues = append(issues, Issue{RecordIndex: i, Field: "address", Err: err})
			} else {
				r.Address = info.FormattedAddress
				r.PlaceName = info.Name
			}
			stats.Visits++
		case *timeline.Activity:
			if !e.ResolveActivities || !e.wantsCategory(r.Category) {
				continue
			}
			if r.StartLocation != nil {
				r.StartAddress = e.reverseOrFallback(ctx, r.StartLocation, i, "start_address", &issues)
			}
			if r.EndLocation != nil {
				r.EndAddress = e.reverseOrFallback(ctx, r.EndLocation, i, "end_address", &issues)
			}
			stats.Activities++
		}
	}
	stats.Issues = len(issues)
	return issues, stats, nil
}

func (e *Enricher) reverseOrFallback(ctx context.Context, ll *timeline.LatLng, idx int, field string, issues *[]Issue) string {
	addr, err := e.Resolver.ReverseGeocode(ctx, ll.Lat, ll.Lng)
	if err != nil {
		*issues = append(*issues, Issue{RecordIndex: idx, Field: field, Err: err})
		return FallbackCoords(ll.Lat, ll.Lng)
	}
	return addr
}
