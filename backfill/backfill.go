// Package backfill selects export files that never finished importing
// and re-enqueues them, newest first.
package backfill

import (
	"context"
	"log"
	"sort"
	"time"
)

// Export is a drop-dir file and its last known import state.
type Export struct {
	Path      string
	ModTime   time.Time
	SizeBytes int64
	Status    string
	UpdatedAt time.Time
}

// Import statuses relevant to selection. Anything but done is a
// candidate for re-import.
const (
	StatusDone    = "done"
	StatusPending = "pending"
	StatusRunning = "running"
	StatusFailed  = "failed"
)

// Summary captures one backfill pass.
type Summary struct {
	TotalCandidates  int `json:"total"`
	AlreadyProcessed int `json:"already_processed"`
	Unprocessed      int `json:"unprocessed"`
	Selected         int `json:"selected"`
	Enqueued         int `json:"enqueued"`
	DroppedFull      int `json:"dropped_full"`
}

// EnqueueResult captures the queueing outcome for one export.
type EnqueueResult struct {
	Enqueued    bool
	DroppedFull bool
}

// Repository describes what a backfill pass needs from the caller.
type Repository interface {
	ListCandidates(ctx context.Context) ([]Export, error)
	QueueExport(ctx context.Context, exp Export) EnqueueResult
	OnBackfillComplete(summary Summary)
}

// SelectPending returns up to limit exports that have not completed an
// import, newest first, plus a summary of the candidate set.
func SelectPending(exports []Export, limit int) ([]Export, Summary) {
	sort.Slice(exports, func(i, j int) bool {
		return exports[i].ModTime.After(exports[j].ModTime)
	})

	summary := Summary{TotalCandidates: len(exports)}
	pending := make([]Export, 0, len(exports))
	for _, e := range exports {
		if e.Status == StatusDone {
			summary.AlreadyProcessed++
			continue
		}
		pending = append(pending, e)
	}

	summary.Unprocessed = len(pending)
	if limit < summary.Unprocessed {
		pending = pending[:limit]
	}
	summary.Selected = len(pending)
	return pending, summary
}

// Run executes one backfill pass asynchronously.
func Run(ctx context.Context, repo Repository, limit int) {
	go func() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		exports, err := repo.ListCandidates(ctx)
		if err != nil {
			log.Printf("backfill list failed: %v", err)
			return
		}

		selected, summary := SelectPending(exports, limit)
		for _, exp := range selected {
			result := repo.QueueExport(ctx, exp)
			if result.Enqueued {
				summary.Enqueued++
			}
			if result.DroppedFull {
				summary.DroppedFull++
			}
		}

		log.Printf("backfill summary: total=%d unprocessed=%d selected=%d enqueued=%d dropped_full=%d already_processed=%d",
			summary.TotalCandidates, summary.Unprocessed, summary.Selected,
			summary.Enqueued, summary.DroppedFull, summary.AlreadyProcessed)
		repo.OnBackfillComplete(summary)
	}()
}
