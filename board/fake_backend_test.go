package board

import (
	"context"
	"sync"
	"testing"
	"time"

	"prism-board/domain"
)

type fakeBackend struct {
	mu          sync.Mutex
	tasks       []domain.Task
	persist     bool
	fetchErr    error
	fetchGate   chan struct{}
	fetchCalls  int
	invalidated int
	updateFn    func(ctx context.Context, u domain.Update, key string) error
	updates     []domain.Update
	keys        []string
}

func (f *fakeBackend) FetchTasks(ctx context.Context) ([]domain.Task, error) {
	f.mu.Lock()
	f.fetchCalls++
	gate := f.fetchGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return append([]domain.Task(nil), f.tasks...), nil
}

func (f *fakeBackend) UpdateTask(ctx context.Context, u domain.Update, key string) error {
	f.mu.Lock()
	fn := f.updateFn
	f.mu.Unlock()

	if fn != nil {
		if err := fn(ctx, u, key); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, u)
	f.keys = append(f.keys, key)
	if f.persist {
		for i := range f.tasks {
			if f.tasks[i].ID == u.TaskID {
				f.tasks[i].Lane = u.Lane
				f.tasks[i].Order = u.Order
			}
		}
	}
	return nil
}

func (f *fakeBackend) Invalidate(context.Context) {
	f.mu.Lock()
	f.invalidated++
	f.mu.Unlock()
}

func (f *fakeBackend) setFetchErr(err error) {
	f.mu.Lock()
	f.fetchErr = err
	f.mu.Unlock()
}

func (f *fakeBackend) setFetchGate(ch chan struct{}) {
	f.mu.Lock()
	f.fetchGate = ch
	f.mu.Unlock()
}

func (f *fakeBackend) recorded() ([]domain.Update, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Update(nil), f.updates...), append([]string(nil), f.keys...)
}

func (f *fakeBackend) fetches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) notify(n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

func (r *noticeRecorder) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func seedTasks(lanes map[domain.Lane][]int64) []domain.Task {
	var tasks []domain.Task
	for _, l := range domain.Lanes {
		for i, id := range lanes[l] {
			tasks = append(tasks, domain.Task{ID: id, Title: "task", Lane: l, Order: i})
		}
	}
	return tasks
}

func newTestController(t *testing.T, backend *fakeBackend) (*Controller, *noticeRecorder) {
	t.Helper()
	rec := &noticeRecorder{}
	c := NewController(backend, Options{SyncConcurrency: 2, Notify: rec.notify})
	t.Cleanup(func() { _ = c.Close() })
	return c, rec
}

func waitForSnapshot(t *testing.T, c *Controller, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := c.Snapshot()
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached, last snapshot: state=%s syncing=%v pending=%v", snap.State, snap.Syncing, snap.Pending)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func waitSettled(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.WaitSettled(ctx); err != nil {
		t.Fatalf("wait settled: %v", err)
	}
}
