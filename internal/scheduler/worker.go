package scheduler

import (
	"context"
	"encoding/hex"
	"log"
	"time"

	"hubgateway/internal/queue"
)

// Minimum seconds between two admitted runs of the same logical task.
const (
	fidGapSeconds   = 300
	linksGapSeconds = 1800
)

// ProfileIndexer is the narrow capability the worker needs to service
// IndexFid tasks.
type ProfileIndexer interface {
	FetchAndStoreProfile(ctx context.Context, fid uint64) error
}

// LinksIndexer is the narrow capability the worker needs to service
// IndexLinks tasks.
type LinksIndexer interface {
	FetchAndStoreLinks(ctx context.Context, fid uint64) error
}

// SignerWriter is the narrow capability the worker needs to service
// UpdateSigner tasks.
type SignerWriter interface {
	InsertSigner(ctx context.Context, pk []byte, fid uint64, active bool) error
}

// Worker is the index scheduler: it pulls Tasks off a TaskQueue and
// dispatches admitted ones to the narrow repository capabilities above,
// applying the per-task debounce policy recorded in LastRunMap.
type Worker struct {
	Queue    *queue.TaskQueue
	LastRun  *LastRunMap
	Profiles ProfileIndexer
	Links    LinksIndexer
	Signers  SignerWriter

	// now is overridable in tests; defaults to time.Now().Unix().
	now func() int64
}

func NewWorker(q *queue.TaskQueue, profiles ProfileIndexer, links LinksIndexer, signers SignerWriter) *Worker {
	return &Worker{
		Queue:    q,
		LastRun:  NewLastRunMap(),
		Profiles: profiles,
		Links:    links,
		Signers:  signers,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// shouldSchedule admits a task iff now > last + gap. A task with no prior
// run is always admitted.
func shouldSchedule(now int64, last int64, hasLast bool, gap int64) bool {
	if !hasLast {
		return true
	}
	return now > last+gap
}

// Run pulls tasks until ctx is cancelled or the queue closes. Each
// admitted task is dispatched on its own goroutine so a slow fetch never
// blocks the scheduling loop.
func (w *Worker) Run(ctx context.Context) {
	for {
		t, ok := w.Queue.Receive(ctx)
		if !ok {
			return
		}
		w.dispatch(ctx, t)
	}
}

func (w *Worker) dispatch(ctx context.Context, t queue.Task) {
	now := w.now()

	switch t.Kind {
	case queue.TaskIndexFid:
		if !t.Force {
			last, hasLast := w.LastRun.Get(t)
			if !shouldSchedule(now, last, hasLast, fidGapSeconds) {
				return
			}
		}
		w.LastRun.Set(t, now)
		go func() {
			if err := w.Profiles.FetchAndStoreProfile(ctx, t.FID); err != nil {
				log.Printf("scheduler: index_fid fid=%d: %v", t.FID, err)
			}
		}()

	case queue.TaskIndexLinks:
		if !t.Force {
			last, hasLast := w.LastRun.Get(t)
			if !shouldSchedule(now, last, hasLast, linksGapSeconds) {
				return
			}
		}
		w.LastRun.Set(t, now)
		go func() {
			if err := w.Links.FetchAndStoreLinks(ctx, t.FID); err != nil {
				log.Printf("scheduler: index_links fid=%d: %v", t.FID, err)
			}
		}()

	case queue.TaskUpdateSigner:
		// Always admitted; signer state changes must never be debounced
		// away.
		pk, err := hex.DecodeString(t.SignerPKHex)
		if err != nil {
			log.Printf("scheduler: update_signer fid=%d: bad pk hex: %v", t.FID, err)
			return
		}
		go func() {
			if err := w.Signers.InsertSigner(ctx, pk, t.FID, t.SignerActive); err != nil {
				log.Printf("scheduler: update_signer fid=%d: %v", t.FID, err)
			}
		}()

	case queue.TaskIndexFidCasts, queue.TaskIndexCast:
		// Reserved; cast indexing is not materialized yet.
	}
}
