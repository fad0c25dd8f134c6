// Package report turns associated trips into the final logbook:
// filtering, purpose assignment, row assembly, and PDF rendering.
package report

import (
	"fmt"
	"strings"
	"time"

	"tripledger/internal/trip"
)

const dateLayout = "2006-01-02"

// ExclusionList names one set of address markers that disqualifies a
// trip when either endpoint matches.
type ExclusionList struct {
	Name    string   `yaml:"name"`
	Markers []string `yaml:"markers"`
}

// PurposeRule assigns a purpose to trips whose endpoints match any of
// its markers. Rules are checked in order and the first match wins.
type PurposeRule struct {
	Purpose string   `yaml:"purpose"`
	Markers []string `yaml:"markers"`
}

// FilterConfig drives the fixed filter sequence. Zero values disable
// individual stages.
type FilterConfig struct {
	// RegionMarkers keep a trip only when both endpoints contain at
	// least one marker. Empty disables the region check.
	RegionMarkers []string `yaml:"region_markers"`

	// ExcludeLists run in order after the region check.
	ExcludeLists []ExclusionList `yaml:"exclude_lists"`

	// ExcludeDateStart/End drop trips dated inside the inclusive
	// window. Both must be set together.
	ExcludeDateStart string `yaml:"exclude_date_start"`
	ExcludeDateEnd   string `yaml:"exclude_date_end"`

	// DuplicateOriginCheck drops a trip whose origin equals the
	// previous retained trip's origin. Runs exactly once.
	DuplicateOriginCheck bool `yaml:"duplicate_origin_check"`

	PurposeRules []PurposeRule `yaml:"purpose_rules"`

	// MinDistanceKm floors the final report. Trips under it are
	// dropped last, after purposes are assigned.
	MinDistanceKm float64 `yaml:"min_distance_km"`
}

// Drop records one filtered-out trip and which stage removed it.
type Drop struct {
	Stage  string
	Trip   trip.Trip
	Reason string
}

// FilterResult is the retained trips plus an itemized drop list.
type FilterResult struct {
	Kept  []trip.Trip
	Drops []Drop
}

// ApplyFilters runs the stages in their fixed order: region, exclusion
// lists, date window, duplicate origins, purpose assignment, minimum
// distance. A malformed date window is a configuration error, not a
// per-trip drop.
func ApplyFilters(cfg FilterConfig, trips []trip.Trip) (FilterResult, error) {
	window, err := parseDateWindow(cfg)
	if err != nil {
		return FilterResult{}, err
	}

	res := FilterResult{Kept: trips}
	res.filterRegion(cfg.RegionMarkers)
	for _, list := range cfg.ExcludeLists {
		res.filterExclusions(list)
	}
	if window != nil {
		res.filterDateWindow(window)
	}
	if cfg.DuplicateOriginCheck {
		res.filterDuplicateOrigins()
	}
	assignPurposes(res.Kept, cfg.PurposeRules)
	res.filterMinDistance(cfg.MinDistanceKm)
	return res, nil
}

type dateWindow struct {
	start, end time.Time
}

func parseDateWindow(cfg FilterConfig) (*dateWindow, error) {
	if cfg.ExcludeDateStart == "" && cfg.ExcludeDateEnd == "" {
		return nil, nil
	}
	if cfg.ExcludeDateStart == "" || cfg.ExcludeDateEnd == "" {
		return nil, fmt.Errorf("exclude date window needs both bounds, got %q..%q",
			cfg.ExcludeDateStart, cfg.ExcludeDateEnd)
	}
	start, err := time.Parse(dateLayout, cfg.ExcludeDateStart)
	if err != nil {
		return nil, fmt.Errorf("exclude date start: %w", err)
	}
	end, err := time.Parse(dateLayout, cfg.ExcludeDateEnd)
	if err != nil {
		return nil, fmt.Errorf("exclude date end: %w", err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("exclude date window ends before it starts: %s..%s",
			cfg.ExcludeDateStart, cfg.ExcludeDateEnd)
	}
	return &dateWindow{start: start, end: end}, nil
}

func (r *FilterResult) filterRegion(markers []string) {
	if len(markers) == 0 {
		return
	}
	kept := r.Kept[:0]
	for _, t := range r.Kept {
		originOK := containsAny(t.Origin, markers)
		destOK := containsAny(t.Destination, markers)
		if originOK && destOK {
			kept = append(kept, t)
			continue
		}
		reason := "origin outside configured region"
		switch {
		case !originOK && !destOK:
			reason = "both endpoints outside configured region"
		case originOK:
			reason = "destination outside configured region"
		}
		r.Drops = append(r.Drops, Drop{Stage: "region", Trip: t, Reason: reason})
	}
	r.Kept = kept
}

func (r *FilterResult) filterExclusions(list ExclusionList) {
	kept := r.Kept[:0]
	for _, t := range r.Kept {
		if containsAny(t.Origin, list.Markers) || containsAny(t.Destination, list.Markers) {
			r.Drops = append(r.Drops, Drop{
				Stage:  "exclude:" + list.Name,
				Trip:   t,
				Reason: "endpoint matches exclusion list " + list.Name,
			})
			continue
		}
		kept = append(kept, t)
	}
	r.Kept = kept
}

// filterDateWindow drops trips dated inside the window, bounds
// inclusive. Trips whose date does not parse pass through untouched.
func (r *FilterResult) filterDateWindow(w *dateWindow) {
	kept := r.Kept[:0]
	for _, t := range r.Kept {
		d, err := time.Parse(dateLayout, t.Date)
		if err == nil && !d.Before(w.start) && !d.After(w.end) {
			r.Drops = append(r.Drops, Drop{
				Stage:  "date-window",
				Trip:   t,
				Reason: "dated inside excluded window",
			})
			continue
		}
		kept = append(kept, t)
	}
	r.Kept = kept
}

// filterDuplicateOrigins compares each trip's origin against the
// previous retained trip. Two consecutive departures from the same
// place mean the first trip never really ended there. Empty origins
// never match.
func (r *FilterResult) filterDuplicateOrigins() {
	kept := r.Kept[:0]
	for _, t := range r.Kept {
		cur := strings.ToLower(strings.TrimSpace(t.Origin))
		if len(kept) > 0 && cur != "" {
			prev := strings.ToLower(strings.TrimSpace(kept[len(kept)-1].Origin))
			if prev == cur {
				r.Drops = append(r.Drops, Drop{
					Stage:  "duplicate-origin",
					Trip:   t,
					Reason: "same origin as previous retained trip",
				})
				continue
			}
		}
		kept = append(kept, t)
	}
	r.Kept = kept
}

func assignPurposes(trips []trip.Trip, rules []PurposeRule) {
	for i := range trips {
		for _, rule := range rules {
			if containsAny(trips[i].Origin, rule.Markers) || containsAny(trips[i].Destination, rule.Markers) {
				trips[i].Purpose = rule.Purpose
				break
			}
		}
	}
}

func (r *FilterResult) filterMinDistance(min float64) {
	if min <= 0 {
		return
	}
	kept := r.Kept[:0]
	for _, t := range r.Kept {
		if t.DistanceKm >= min {
			kept = append(kept, t)
			continue
		}
		r.Drops = append(r.Drops, Drop{
			Stage:  "min-distance",
			Trip:   t,
			Reason: fmt.Sprintf("under %.0f km", min),
		})
	}
	r.Kept = kept
}

func containsAny(addr string, markers []string) bool {
	lower := strings.ToLower(addr)
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
