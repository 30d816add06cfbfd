package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"prism-board/domain"
)

var (
	ErrNotReady = errors.New("board is not ready for moves")
	ErrClosed   = errors.New("board session closed")
)

const (
	msgLoadFailed = "Failed to load tasks"
	msgMoved      = "Task moved successfully"
	msgMoveFailed = "Failed to update task position"
)

// State is the lifecycle phase of a board session.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSettled
	StateReconciling
	StateRollingBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSettled:
		return "settled"
	case StateReconciling:
		return "reconciling"
	case StateRollingBack:
		return "rolling_back"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type NoticeKind string

const (
	NoticeInfo  NoticeKind = "info"
	NoticeError NoticeKind = "error"
)

// Notice is a transient user-facing message.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

type Notifier func(Notice)

// Backend is the task API as seen by a board session.
type Backend interface {
	FetchTasks(ctx context.Context) ([]domain.Task, error)
	Updater
}

// Invalidator is implemented by backends that keep a local snapshot.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

type Options struct {
	// SyncConcurrency bounds parallel task updates per diff.
	SyncConcurrency int
	Logger          log.FieldLogger
	Notify          Notifier
}

// Snapshot is a consistent view of a board session.
type Snapshot struct {
	State     State           `json:"state"`
	Ordering  domain.Ordering `json:"ordering"`
	Tasks     []domain.Task   `json:"tasks"`
	Syncing   bool            `json:"syncing"`
	Pending   bool            `json:"pending"`
	Closed    bool            `json:"closed,omitempty"`
	LoadError string          `json:"loadError,omitempty"`
}

// Controller owns the optimistic ordering of one user's board. Every
// mutation is serialized by mu; network calls run on goroutines and their
// results are dropped when the epoch moved on (rollback, reload, close).
type Controller struct {
	backend   Backend
	scheduler *Scheduler
	logger    log.FieldLogger
	notify    Notifier

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	epoch      uint64
	store      TaskStore
	committed  domain.Ordering
	optimistic domain.Ordering
	syncing    bool
	pending    bool
	fetching   bool
	loadErr    error
	closed     bool
	changed    chan struct{}

	// unconfirmed holds tasks whose persisted placement is unknown because a
	// superseded sync failed part way.
	unconfirmed map[int64]struct{}
}

func NewController(backend Backend, opts Options) *Controller {
	if backend == nil {
		panic("board.NewController: backend is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	notify := opts.Notify
	if notify == nil {
		notify = func(n Notice) {
			logger.WithField("kind", n.Kind).Debug(n.Message)
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	empty := domain.OrderingOf(nil)
	return &Controller{
		backend:    backend,
		scheduler:  NewScheduler(backend, opts.SyncConcurrency, logger),
		logger:     logger,
		notify:     notify,
		ctx:        ctx,
		cancel:     cancel,
		committed:  empty,
		optimistic: empty,
		changed:    make(chan struct{}),
	}
}

// Load fetches the board if it has not been loaded yet. A fetch already in
// flight is awaited rather than duplicated.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch {
	case c.state == StateSettled || c.state == StateReconciling:
		c.mu.Unlock()
		return nil
	case c.fetching:
		c.mu.Unlock()
		return c.WaitSettled(ctx)
	}
	epoch := c.beginFetch()
	c.mu.Unlock()

	return c.fetch(ctx, epoch)
}

// Reload refetches the board from Settled or after a failed load.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateReconciling || c.state == StateRollingBack || c.fetching {
		c.mu.Unlock()
		return ErrNotReady
	}
	epoch := c.beginFetch()
	c.mu.Unlock()

	c.invalidate(ctx)
	return c.fetch(ctx, epoch)
}

// beginFetch moves to Loading under a fresh epoch. Caller holds mu.
func (c *Controller) beginFetch() uint64 {
	c.epoch++
	c.fetching = true
	c.loadErr = nil
	c.syncing = false
	c.pending = false
	c.setState(StateLoading)
	return c.epoch
}

func (c *Controller) fetch(ctx context.Context, epoch uint64) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	tasks, err := c.backend.FetchTasks(ctx)
	return c.finishLoad(epoch, tasks, err)
}

func (c *Controller) finishLoad(epoch uint64, tasks []domain.Task, err error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if epoch != c.epoch {
		c.mu.Unlock()
		return nil
	}
	c.fetching = false

	if err != nil {
		c.loadErr = err
		c.touch()
		c.mu.Unlock()
		c.logger.WithError(err).Error("board load failed")
		c.notify(Notice{Kind: NoticeError, Message: msgLoadFailed})
		return fmt.Errorf("load tasks: %w", err)
	}

	store, dropped := NewTaskStore(tasks)
	c.store = store
	c.unconfirmed = nil
	c.committed = store.Ordering()
	c.optimistic = c.committed
	c.setState(StateSettled)
	c.mu.Unlock()

	for _, t := range dropped {
		c.logger.WithFields(log.Fields{"task": t.ID, "status": t.Lane}).Debug("dropping task with unknown status")
	}
	if !store.Dense() {
		c.logger.WithField("lanes", store.SparseLanes()).Warn("loaded board has non-dense task orders")
	}
	return nil
}

// Move applies g to the optimistic ordering and schedules persistence. It
// reports whether the ordering changed; degenerate gestures are ignored.
func (c *Controller) Move(g domain.Gesture) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	if c.state != StateSettled && c.state != StateReconciling {
		return false, ErrNotReady
	}

	next, changed, err := c.optimistic.Apply(g)
	if err != nil || !changed {
		return false, err
	}
	c.optimistic = next
	c.touch()

	if c.syncing {
		c.pending = true
		return true, nil
	}
	if !c.startSync() {
		c.setState(StateSettled)
	}
	return true, nil
}

// startSync issues the diff between persisted placements and the optimistic
// ordering. Unconfirmed tasks are always resent. It reports false when there
// is nothing to persist. Caller holds mu.
func (c *Controller) startSync() bool {
	baseline := c.store.Placements()
	for id := range c.unconfirmed {
		delete(baseline, id)
	}
	diff := domain.DiffPlacements(baseline, c.optimistic)
	if len(diff) == 0 {
		c.committed = c.optimistic
		return false
	}
	c.syncing = true
	c.pending = false
	c.setState(StateReconciling)

	epoch := c.epoch
	target := c.optimistic
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.scheduler.Persist(c.ctx, diff)
		c.finishSync(epoch, diff, target, err)
	}()
	return true
}

func (c *Controller) finishSync(epoch uint64, diff domain.SyncDiff, target domain.Ordering, err error) {
	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.syncing = false

	if err == nil {
		c.store = c.store.WithUpdates(diff)
		for _, id := range diff.TaskIDs() {
			delete(c.unconfirmed, id)
		}
		c.committed = target
		if c.pending && c.startSync() {
			c.mu.Unlock()
			return
		}
		c.pending = false
		c.setState(StateSettled)
		c.mu.Unlock()
		c.notify(Notice{Kind: NoticeInfo, Message: msgMoved})
		return
	}

	if c.pending {
		// Some entries may have been written before the failure.
		if c.unconfirmed == nil {
			c.unconfirmed = make(map[int64]struct{}, len(diff))
		}
		for _, id := range diff.TaskIDs() {
			c.unconfirmed[id] = struct{}{}
		}
		if c.startSync() {
			c.logger.WithError(err).Warn("board sync superseded by newer moves")
			c.mu.Unlock()
			return
		}
	}

	c.pending = false
	c.optimistic = c.committed
	c.epoch++
	refetchEpoch := c.epoch
	c.fetching = true
	c.setState(StateRollingBack)
	c.wg.Add(1)
	c.mu.Unlock()

	c.logger.WithError(err).Error("board sync failed, rolling back")
	c.notify(Notice{Kind: NoticeError, Message: msgMoveFailed})
	go c.refetch(refetchEpoch)
}

func (c *Controller) refetch(epoch uint64) {
	defer c.wg.Done()
	c.invalidate(c.ctx)

	c.mu.Lock()
	if c.closed || epoch != c.epoch {
		c.mu.Unlock()
		return
	}
	c.setState(StateLoading)
	c.mu.Unlock()

	tasks, err := c.backend.FetchTasks(c.ctx)
	_ = c.finishLoad(epoch, tasks, err)
}

func (c *Controller) invalidate(ctx context.Context) {
	if inv, ok := c.backend.(Invalidator); ok {
		inv.Invalidate(ctx)
	}
}

// Preview returns the ordering g would produce without committing it. When
// hover is set the move only applies once the pointer crossed the hovered
// item's midpoint.
func (c *Controller) Preview(g domain.Gesture, hover *domain.Hover) (domain.Ordering, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.Ordering{}, false, ErrClosed
	}
	if c.state != StateSettled && c.state != StateReconciling {
		return c.optimistic, false, ErrNotReady
	}
	if hover != nil && !hover.Crossed() {
		return c.optimistic, false, nil
	}
	return c.optimistic.Apply(g)
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:    c.state,
		Ordering: c.optimistic,
		Tasks:    c.store.Arrange(c.optimistic),
		Syncing:  c.syncing,
		Pending:  c.pending,
		Closed:   c.closed,
	}
	if c.loadErr != nil {
		snap.LoadError = c.loadErr.Error()
	}
	return snap
}

// Tasks returns the displayed tasks with their current lane and position.
func (c *Controller) Tasks() []domain.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Arrange(c.optimistic)
}

// Changed returns a channel that is closed on the next change of state or
// ordering, including Close.
func (c *Controller) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// WaitSettled blocks until the board is Settled, a load failed, or ctx ends.
func (c *Controller) WaitSettled(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		if c.state == StateSettled {
			c.mu.Unlock()
			return nil
		}
		if c.loadErr != nil && !c.fetching {
			err := c.loadErr
			c.mu.Unlock()
			return fmt.Errorf("load tasks: %w", err)
		}
		ch := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Close ends the session. In-flight syncs and refetches are cancelled and
// their results discarded.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.epoch++
	c.cancel()
	c.touch()
	c.mu.Unlock()

	c.wg.Wait()
	return nil
}

// setState records s and wakes waiters. Caller holds mu.
func (c *Controller) setState(s State) {
	c.state = s
	c.touch()
}

func (c *Controller) touch() {
	close(c.changed)
	c.changed = make(chan struct{})
}
