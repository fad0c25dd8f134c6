package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"

	"tripledger/internal/pipeline"
	"tripledger/internal/report"
	"tripledger/internal/sheet"
	"tripledger/queue"
)

// Router builds HTTP handlers for /api and /ops.
type Router struct {
	store    *sheet.Store
	pipe     *pipeline.Pipeline
	jobs     *queue.Queue
	dropDir  string
	backfill func()
}

func NewRouter(st *sheet.Store, pipe *pipeline.Pipeline, jobs *queue.Queue, dropDir string) *Router {
	return &Router{store: st, pipe: pipe, jobs: jobs, dropDir: dropDir}
}

// OnBackfill wires the trigger behind POST /ops/backfill. Without it
// the endpoint answers 503.
func (r *Router) OnBackfill(fn func()) { r.backfill = fn }

func (r *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ops/health", r.health)
	mux.HandleFunc("/ops/status", r.status)
	mux.HandleFunc("/ops/backfill", r.backfillHandler)
	mux.HandleFunc("/api/imports", r.imports)
	mux.HandleFunc("/api/imports/enqueue", r.enqueue)
	mux.HandleFunc("/api/records", r.records)
	mux.HandleFunc("/api/trips", r.trips)
	mux.HandleFunc("/api/report", r.reportHandler)
	mux.HandleFunc("/api/report.pdf", r.reportPDF)
}

func (r *Router) health(w http.ResponseWriter, req *http.Request) {
	if err := r.store.Health(req.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) status(w http.ResponseWriter, req *http.Request) {
	imports, _ := r.store.ListImports(req.Context(), 5)
	respondJSON(w, map[string]any{
		"imports": imports,
		"queue":   r.jobs.Stats(),
	})
}

func (r *Router) imports(w http.ResponseWriter, req *http.Request) {
	list, err := r.store.ListImports(req.Context(), 100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, list)
}

func (r *Router) enqueue(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.Filename == "" || body.Filename != filepath.Base(body.Filename) {
		http.Error(w, "filename must be a bare name inside the drop dir", http.StatusBadRequest)
		return
	}

	path := filepath.Join(r.dropDir, body.Filename)
	ok := r.jobs.Enqueue(queue.Job{Path: path, Source: "api"})
	if !ok {
		http.Error(w, "queue full or not started", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "queued", "filename": body.Filename}); err != nil {
		log.Printf("write json: %v", err)
	}
}

func (r *Router) backfillHandler(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.backfill == nil {
		http.Error(w, "backfill not available", http.StatusServiceUnavailable)
		return
	}
	r.backfill()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "started"}); err != nil {
		log.Printf("write json: %v", err)
	}
}

func (r *Router) records(w http.ResponseWriter, req *http.Request) {
	header, rows, err := r.store.ReadSheet(req.Context(), pipeline.SheetTimeline)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, map[string]any{"header": header, "rows": rows})
}

// trips rebuilds the ledger and returns the kept trips as structured
// JSON rather than sheet rows.
func (r *Router) trips(w http.ResponseWriter, req *http.Request) {
	trips, summary, err := r.pipe.Report(req.Context())
	if err != nil {
		http.Error(w, err.Error(), reportStatus(err))
		return
	}
	respondJSON(w, map[string]any{"trips": trips, "summary": summary})
}

// reportHandler rebuilds the report on POST and returns the stored
// sheet on GET.
func (r *Router) reportHandler(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodPost:
		_, summary, err := r.pipe.Report(req.Context())
		if err != nil {
			http.Error(w, err.Error(), reportStatus(err))
			return
		}
		respondJSON(w, summary)
	case http.MethodGet:
		header, rows, err := r.store.ReadSheet(req.Context(), pipeline.SheetReport)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		respondJSON(w, map[string]any{"header": header, "rows": rows})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (r *Router) reportPDF(w http.ResponseWriter, req *http.Request) {
	trips, _, err := r.pipe.Report(req.Context())
	if err != nil {
		http.Error(w, err.Error(), reportStatus(err))
		return
	}
	out, err := report.RenderPDF("Vehicle Logbook", trips)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="vehicle-logbook.pdf"`)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(out)))
	if _, err := w.Write(out); err != nil {
		log.Printf("write pdf: %v", err)
	}
}

// reportStatus maps configuration problems to 400 and everything else
// (missing sheets, storage failures) to 500.
func reportStatus(err error) int {
	if errors.Is(err, pipeline.ErrConfig) {
		return http.StatusBadRequest
	}
	if errors.Is(err, pipeline.ErrNoTimeline) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write json: %v", err)
	}
}
