// Package app wires the store, geocoder, pipeline, queue, watcher, and
// HTTP surface into one running service.
package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tripledger/backfill"
	"tripledger/config"
	"tripledger/internal/geocode"
	"tripledger/internal/httpapi"
	"tripledger/internal/metrics"
	"tripledger/internal/pipeline"
	"tripledger/internal/sheet"
	"tripledger/internal/watch"
	"tripledger/queue"
)

const (
	backfillLimit       = 50
	backfillRetryWindow = 5 * time.Second
	backfillRetryPause  = 250 * time.Millisecond
	shutdownGrace       = 10 * time.Second
)

// App holds the assembled service.
type App struct {
	cfg       config.Config
	store     *sheet.Store
	pipe      *pipeline.Pipeline
	jobs      *queue.Queue
	watcher   *watch.Watcher
	collector *metrics.Collector
	router    *httpapi.Router
	mux       *http.ServeMux
}

func New(cfg config.Config) (*App, error) {
	for _, dir := range []string{cfg.DropDir, cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	st, err := sheet.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()

	var resolver geocode.Resolver
	if cfg.Maps.APIKey != "" {
		client, err := geocode.NewClient(geocode.ClientConfig{
			APIKey:          cfg.Maps.APIKey,
			PlaceDetailsURL: cfg.Maps.PlaceDetailsURL,
			GeocodeURL:      cfg.Maps.GeocodeURL,
		}, nil)
		if err != nil {
			st.Close()
			return nil, err
		}
		cache := geocode.NewCache(client)
		cache.OnLookup(func(hit bool) {
			collector.GeocodeLookups.Inc()
			if hit {
				collector.GeocodeHits.Inc()
			}
		})
		resolver = cache
	} else {
		log.Printf("MAPS_API_KEY not set, place IDs and coordinates pass through unresolved")
	}

	pipe := &pipeline.Pipeline{
		Store:    st,
		Resolver: resolver,
		Metrics:  collector,
		Opts: pipeline.Options{
			VehicleCategories: cfg.Ledger.VehicleCategories,
			OdometerDate:      cfg.Ledger.OdometerDate,
			OdometerKm:        cfg.Ledger.OdometerKm,
			FiscalStart:       cfg.Ledger.FiscalStart,
			FiscalEnd:         cfg.Ledger.FiscalEnd,
			Filter:            cfg.Ledger.Filter,
			ResolveActivities: cfg.Maps.ResolveActivities,
		},
	}

	jobs := queue.New(cfg.JobQueueSize, cfg.WorkerCount, time.Duration(cfg.JobTimeoutSec)*time.Second,
		func(ctx context.Context, path string) error {
			_, err := pipe.Import(ctx, path)
			return err
		})
	jobs.OnDepthChange(func(n int) { collector.QueueDepth.Set(float64(n)) })

	watcher := watch.New(cfg.DropDir, func(ctx context.Context, path string) bool {
		return jobs.Enqueue(queue.Job{Path: path, Source: "watcher"})
	})

	mux := http.NewServeMux()
	router := httpapi.NewRouter(st, pipe, jobs, cfg.DropDir)
	router.Register(mux)

	return &App{
		cfg:       cfg,
		store:     st,
		pipe:      pipe,
		jobs:      jobs,
		watcher:   watcher,
		collector: collector,
		router:    router,
		mux:       mux,
	}, nil
}

// Run starts the workers, the drop-dir watcher, a startup backfill of
// exports already on disk, and the HTTP servers. It blocks until ctx
// is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.jobs.Start(ctx)
	if err := a.watcher.Start(ctx); err != nil {
		return err
	}
	repo := &importRepo{app: a}
	backfill.Run(ctx, repo, backfillLimit)
	a.router.OnBackfill(func() { backfill.Run(ctx, repo, backfillLimit) })

	var metricsSrv *http.Server
	if a.cfg.MetricsAddr != "" {
		metricsSrv = a.collector.Serve(a.cfg.MetricsAddr)
	}

	srv := &http.Server{Addr: a.cfg.HTTPPort, Handler: a.mux}
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			log.Printf("http shutdown: %v", err)
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutCtx)
		}
		a.jobs.Stop(shutCtx)
		if err := a.store.Close(); err != nil {
			log.Printf("store close: %v", err)
		}
	}()

	log.Printf("http listening on %s", a.cfg.HTTPPort)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Store() *sheet.Store { return a.store }
func (a *App) Mux() *http.ServeMux { return a.mux }

// importRepo adapts the store, watcher, and queue to backfill passes:
// exports still on disk whose latest import did not finish get
// re-enqueued at startup.
type importRepo struct {
	app *App
}

func (r *importRepo) ListCandidates(ctx context.Context) ([]backfill.Export, error) {
	paths, err := r.app.watcher.List()
	if err != nil {
		return nil, err
	}
	imports, err := r.app.store.ListImports(ctx, 500)
	if err != nil {
		return nil, err
	}

	// ListImports is newest first, so the first entry per filename is
	// the latest attempt.
	latest := make(map[string]sheet.Import, len(imports))
	for _, imp := range imports {
		if _, ok := latest[imp.Filename]; !ok {
			latest[imp.Filename] = imp
		}
	}

	var exports []backfill.Export
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		exp := backfill.Export{
			Path:      p,
			ModTime:   info.ModTime(),
			SizeBytes: info.Size(),
			Status:    backfill.StatusPending,
		}
		if imp, ok := latest[filepath.Base(p)]; ok {
			exp.Status = imp.Status
			exp.UpdatedAt = imp.UpdatedAt
		}
		exports = append(exports, exp)
	}
	return exports, nil
}

func (r *importRepo) QueueExport(ctx context.Context, exp backfill.Export) backfill.EnqueueResult {
	job := queue.Job{Path: exp.Path, Source: "backfill"}
	enqueued, dropped := r.app.jobs.EnqueueWithRetry(ctx, job, backfillRetryWindow, backfillRetryPause)
	return backfill.EnqueueResult{Enqueued: enqueued, DroppedFull: dropped}
}

func (r *importRepo) OnBackfillComplete(summary backfill.Summary) {
	if summary.Selected == 0 {
		return
	}
	log.Printf("startup backfill: selected=%d enqueued=%d dropped=%d", summary.Selected, summary.Enqueued, summary.DroppedFull)
}
