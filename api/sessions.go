package api

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"prism-board/board"
	"prism-board/storage"
)

const maxQueuedNotices = 8

// BackendFactory builds the task backend of one user session. creds carries
// the user's latest bearer token.
type BackendFactory func(userID string, creds storage.Credentials) board.Backend

// Session is one user's board controller plus the credential slot its
// backend calls read from.
type Session struct {
	Controller *board.Controller
	token      *storage.TokenSlot

	mu       sync.Mutex
	notices  []board.Notice
	lastUsed time.Time
}

// DrainNotices returns and clears the notices queued since the last call.
func (s *Session) DrainNotices() []board.Notice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.notices
	s.notices = nil
	return out
}

func (s *Session) push(n board.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
	if len(s.notices) > maxQueuedNotices {
		s.notices = s.notices[len(s.notices)-maxQueuedNotices:]
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastUsed = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Sessions keeps one board session per user id.
type Sessions struct {
	newBackend  BackendFactory
	concurrency int
	idleTTL     time.Duration
	logger      *log.Logger
	now         func() time.Time

	mu     sync.Mutex
	byUser map[string]*Session
}

func NewSessions(factory BackendFactory, concurrency int, idleTTL time.Duration, logger *log.Logger) *Sessions {
	if factory == nil {
		panic("api.NewSessions: backend factory is nil")
	}
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Sessions{
		newBackend:  factory,
		concurrency: concurrency,
		idleTTL:     idleTTL,
		logger:      logger,
		now:         time.Now,
		byUser:      make(map[string]*Session),
	}
}

// Acquire returns the user's session, creating it on first use, and stores
// the presented token for backend calls.
func (s *Sessions) Acquire(p Principal) *Session {
	s.mu.Lock()
	sess, ok := s.byUser[p.UserID]
	if !ok {
		sess = &Session{token: &storage.TokenSlot{}}
		userLog := s.logger.WithField("user", p.UserID)
		sess.Controller = board.NewController(s.newBackend(p.UserID, sess.token), board.Options{
			SyncConcurrency: s.concurrency,
			Logger:          userLog,
			Notify: func(n board.Notice) {
				userLog.WithField("kind", n.Kind).Debug(n.Message)
				sess.push(n)
			},
		})
		s.byUser[p.UserID] = sess
		userLog.Debug("board session opened")
	}
	// Touched under s.mu so a concurrent Sweep cannot close it on the way out.
	sess.token.Set(p.Token)
	sess.touch(s.now())
	s.mu.Unlock()
	return sess
}

// Close ends the user's session. It reports whether one existed.
func (s *Sessions) Close(userID string) bool {
	s.mu.Lock()
	sess, ok := s.byUser[userID]
	delete(s.byUser, userID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	s.shutdown(userID, sess)
	return true
}

// Sweep closes sessions idle for longer than the idle TTL and returns how
// many were closed.
func (s *Sessions) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	idle := make(map[string]*Session)
	for userID, sess := range s.byUser {
		if sess.idleSince().Before(cutoff) {
			idle[userID] = sess
			delete(s.byUser, userID)
		}
	}
	s.mu.Unlock()

	for userID, sess := range idle {
		s.shutdown(userID, sess)
	}
	return len(idle)
}

// Run sweeps idle sessions every interval until ctx is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Infof("swept %d idle board sessions", n)
			}
		}
	}
}

// CloseAll ends every session.
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.byUser
	s.byUser = make(map[string]*Session)
	s.mu.Unlock()

	for userID, sess := range all {
		s.shutdown(userID, sess)
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}

func (s *Sessions) shutdown(userID string, sess *Session) {
	_ = sess.Controller.Close()
	sess.token.Clear()
	s.logger.WithField("user", userID).Debug("board session closed")
}
