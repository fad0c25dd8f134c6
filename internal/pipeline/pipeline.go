// Package pipeline orchestrates the two ledger operations: importing a
// location-history export into the timeline sheet, and building the
// filtered logbook report from it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"tripledger/internal/geocode"
	"tripledger/internal/metrics"
	"tripledger/internal/report"
	"tripledger/internal/sheet"
	"tripledger/internal/timeline"
	"tripledger/internal/trip"
)

// Sheet names used by both operations.
const (
	SheetTimeline = "timeline_data"
	SheetReport   = "final_report"
)

// ErrConfig marks failures caused by bad configuration rather than bad
// input data. Callers fail fast on these instead of itemizing them.
var ErrConfig = errors.New("pipeline configuration error")

// ErrNoTimeline is returned by Report when no import has filled the
// timeline sheet yet.
var ErrNoTimeline = errors.New("timeline sheet is empty; run an import first")

// Options carries the ledger settings both operations need.
type Options struct {
	VehicleCategories []string
	OdometerDate      string
	OdometerKm        float64
	FiscalStart       string
	FiscalEnd         string
	Filter            report.FilterConfig
	ResolveActivities bool
}

// Pipeline runs imports and report builds against one store.
type Pipeline struct {
	Store    *sheet.Store
	Resolver geocode.Resolver
	Metrics  *metrics.Collector
	Opts     Options
}

// ImportSummary reports one export file import.
type ImportSummary struct {
	ImportID      int64 `json:"import_id"`
	Records       int   `json:"records"`
	Skipped       int   `json:"skipped"`
	OutsideFiscal int   `json:"outside_fiscal"`
	GeocodeIssues int   `json:"geocode_issues"`
}

// ReportSummary reports one logbook build.
type ReportSummary struct {
	TripsTotal int     `json:"trips_total"`
	TripsKept  int     `json:"trips_kept"`
	TotalKm    float64 `json:"total_km"`
	Drops      []Drop  `json:"drops,omitempty"`
}

// Drop is a trip removed by a filter stage, flattened for JSON.
type Drop struct {
	Stage  string `json:"stage"`
	Date   string `json:"date"`
	Origin string `json:"origin"`
	Reason string `json:"reason"`
}

// Import parses one export file, enriches addresses, and replaces the
// timeline sheet. Per-record problems are counted, not fatal; only
// unreadable or shapeless input fails the import.
func (p *Pipeline) Import(ctx context.Context, path string) (ImportSummary, error) {
	started := time.Now()
	now := started.UTC()

	importID, err := p.Store.RecordImport(ctx, filepath.Base(path), now)
	if err != nil {
		return ImportSummary{}, err
	}
	summary := ImportSummary{ImportID: importID}
	if p.Metrics != nil {
		p.Metrics.ImportsStarted.Inc()
	}
	if err := p.Store.MarkImportRunning(ctx, importID, now); err != nil {
		return summary, err
	}

	fail := func(err error) (ImportSummary, error) {
		if p.Metrics != nil {
			p.Metrics.ImportsFailed.Inc()
		}
		if mErr := p.Store.MarkImportFailed(ctx, importID, err.Error(), time.Now().UTC()); mErr != nil {
			log.Printf("mark import %d failed: %v", importID, mErr)
		}
		return summary, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	records, skipped, err := timeline.ParseExport(data)
	if err != nil {
		return fail(err)
	}
	timeline.SortRecords(records)
	summary.Skipped = skipped

	records, outside, err := p.filterFiscal(records)
	if err != nil {
		return fail(err)
	}
	summary.OutsideFiscal = outside

	if p.Resolver != nil {
		enricher := &geocode.Enricher{
			Resolver:          p.Resolver,
			ResolveActivities: p.Opts.ResolveActivities,
			Categories:        p.Opts.VehicleCategories,
		}
		issues, stats, err := enricher.Enrich(ctx, records)
		if err != nil {
			return fail(err)
		}
		summary.GeocodeIssues = stats.Issues
		if p.Metrics != nil {
			p.Metrics.GeocodeFailures.Add(float64(len(issues)))
		}
		for _, issue := range issues {
			log.Printf("geocode fallback record=%d field=%s: %v", issue.RecordIndex, issue.Field, issue.Err)
		}
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, timeline.ToRow(rec))
	}
	if err := p.Store.WriteSheet(ctx, SheetTimeline, timeline.Header(), rows); err != nil {
		return fail(err)
	}

	summary.Records = len(records)
	if p.Metrics != nil {
		for _, rec := range records {
			p.Metrics.RecordsParsed.WithLabelValues(string(rec.Kind())).Inc()
		}
		p.Metrics.SegmentsSkipped.Add(float64(skipped))
		p.Metrics.ImportDuration.Observe(time.Since(started).Seconds())
	}
	return summary, p.Store.MarkImportDone(ctx, importID, len(records), skipped, time.Now().UTC())
}

// filterFiscal keeps records whose parsed start time falls inside the
// configured fiscal window, bounds inclusive. Records with unparseable
// start times are dropped along with out-of-window ones.
func (p *Pipeline) filterFiscal(records []timeline.Record) ([]timeline.Record, int, error) {
	if p.Opts.FiscalStart == "" && p.Opts.FiscalEnd == "" {
		return records, 0, nil
	}
	if p.Opts.FiscalStart == "" || p.Opts.FiscalEnd == "" {
		return nil, 0, fmt.Errorf("%w: fiscal window needs both bounds", ErrConfig)
	}
	start, err := time.Parse("2006-01-02", p.Opts.FiscalStart)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: fiscal start: %v", ErrConfig, err)
	}
	end, err := time.Parse("2006-01-02", p.Opts.FiscalEnd)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: fiscal end: %v", ErrConfig, err)
	}
	end = end.Add(24*time.Hour - time.Second)

	kept := records[:0]
	dropped := 0
	for _, rec := range records {
		ts := rec.StartTime()
		if !ts.Parsed || ts.Time.Before(start) || ts.Time.After(end) {
			dropped++
			continue
		}
		kept = append(kept, rec)
	}
	return kept, dropped, nil
}

// Report reads the timeline sheet back, associates vehicle trips,
// reconstructs odometer readings, applies the filter sequence, and
// replaces the report sheet. It returns the kept trips alongside the
// summary so callers can render them.
func (p *Pipeline) Report(ctx context.Context) ([]trip.Trip, ReportSummary, error) {
	header, rows, err := p.Store.ReadSheet(ctx, SheetTimeline)
	if err != nil {
		return nil, ReportSummary{}, err
	}
	if header == nil {
		return nil, ReportSummary{}, ErrNoTimeline
	}

	records := make([]timeline.Record, 0, len(rows))
	for _, row := range rows {
		if rec, ok := timeline.FromRow(header, row); ok {
			records = append(records, rec)
		}
	}

	trips := trip.Associate(records, p.Opts.VehicleCategories)
	summary := ReportSummary{TripsTotal: len(trips)}
	if p.Metrics != nil {
		p.Metrics.TripsBuilt.Add(float64(len(trips)))
	}

	if p.Opts.OdometerDate == "" {
		return nil, summary, fmt.Errorf("%w: odometer anchor date is not set", ErrConfig)
	}
	if p.Opts.OdometerKm <= 0 {
		return nil, summary, fmt.Errorf("%w: odometer reading must be positive", ErrConfig)
	}
	if err := trip.Reconstruct(trips, p.Opts.OdometerDate, p.Opts.OdometerKm); err != nil {
		return nil, summary, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	res, err := report.ApplyFilters(p.Opts.Filter, trips)
	if err != nil {
		return nil, summary, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	for _, d := range res.Drops {
		summary.Drops = append(summary.Drops, Drop{
			Stage:  d.Stage,
			Date:   d.Trip.Date,
			Origin: d.Trip.Origin,
			Reason: d.Reason,
		})
		if p.Metrics != nil {
			p.Metrics.TripsFiltered.WithLabelValues(d.Stage).Inc()
		}
	}

	if err := p.Store.WriteSheet(ctx, SheetReport, report.Headers(), report.BuildRows(res.Kept)); err != nil {
		return nil, summary, err
	}
	summary.TripsKept = len(res.Kept)
	summary.TotalKm = report.TotalDistance(res.Kept)
	if p.Metrics != nil {
		p.Metrics.ReportsBuilt.Inc()
	}
	return res.Kept, summary, nil
}
