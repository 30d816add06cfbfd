package board

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"prism-board/domain"
)

const DefaultSyncConcurrency = 4

// Updater persists the placement of a single task.
type Updater interface {
	UpdateTask(ctx context.Context, u domain.Update, idempotencyKey string) error
}

// SyncError reports a diff that was not fully persisted.
type SyncError struct {
	SyncID string
	Failed []int64
	Err    error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("sync %s: %d task update(s) failed %v: %v", e.SyncID, len(e.Failed), e.Failed, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Scheduler issues the updates of a diff concurrently. A diff succeeds only
// if every update does; the first failure cancels the remaining calls.
type Scheduler struct {
	updater     Updater
	concurrency int
	logger      log.FieldLogger
}

func NewScheduler(updater Updater, concurrency int, logger log.FieldLogger) *Scheduler {
	if updater == nil {
		panic("board.NewScheduler: updater is nil")
	}
	if concurrency <= 0 {
		concurrency = DefaultSyncConcurrency
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Scheduler{updater: updater, concurrency: concurrency, logger: logger}
}

// Persist sends one update per diff entry. Each call carries the idempotency
// key "<sync-id>:<task-id>". There are no retries.
func (s *Scheduler) Persist(ctx context.Context, diff domain.SyncDiff) error {
	if len(diff) == 0 {
		return nil
	}
	syncID := uuid.NewString()
	metrics, ctx := newSyncMetrics(ctx, s.logger, syncID, len(diff), countLanes(diff))

	var (
		mu     sync.Mutex
		failed []int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, u := range diff {
		u := u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				mu.Lock()
				failed = append(failed, u.TaskID)
				mu.Unlock()
				return err
			}
			key := syncID + ":" + strconv.FormatInt(u.TaskID, 10)
			if err := s.updater.UpdateTask(gctx, u, key); err != nil {
				mu.Lock()
				failed = append(failed, u.TaskID)
				mu.Unlock()
				return fmt.Errorf("update task %d: %w", u.TaskID, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		sort.Slice(failed, func(i, j int) bool { return failed[i] < failed[j] })
		err = &SyncError{SyncID: syncID, Failed: failed, Err: err}
	}
	metrics.SetFailed(len(failed))
	metrics.Finish(err)
	return err
}

func countLanes(diff domain.SyncDiff) int {
	seen := make(map[domain.Lane]struct{}, len(domain.Lanes))
	for _, u := range diff {
		seen[u.Lane] = struct{}{}
	}
	return len(seen)
}
