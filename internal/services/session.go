package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/metrics"
	"github.com/damacus/iron-studio/internal/models"
	"github.com/damacus/iron-studio/internal/pathmodel"
	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/storage"
)

// Session is one browser session bound to a profile. It exclusively owns
// its store handle; once closed it refuses further store access.
type Session struct {
	ID        string
	CreatedAt time.Time

	Listing *ListingCache
	Tracker *OperationTracker

	runMu   sync.Mutex
	mu      sync.RWMutex
	profile profiles.Profile
	store   storage.Store
	closed  bool
	segs    pathmodel.Segments
}

// Profile returns the profile the session is connected with.
func (s *Session) Profile() profiles.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Segments returns a copy of the current path.
func (s *Session) Segments() pathmodel.Segments {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append(pathmodel.Segments(nil), s.segs...)
}

// Prefix returns the key prefix of the current path.
func (s *Session) Prefix() string {
	return pathmodel.PrefixFor(s.Segments())
}

// Navigate replaces the current path.
func (s *Session) Navigate(segs pathmodel.Segments) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segs = append(pathmodel.Segments(nil), segs...)
}

// Closed reports whether the store handle was released.
func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// With runs fn with the session's store. The handle cannot be released
// while fn runs.
func (s *Session) With(fn func(storage.Store) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.store == nil {
		return errs.New(errs.KindSessionClosed, "session "+s.ID+" is closed")
	}
	return fn(s.store)
}

// Run executes a mutating operation through the tracker and invalidates
// the listing afterwards, whatever the outcome. Mutations of one session
// run one at a time.
func (s *Session) Run(op Op, key string, fn func(storage.Store) *Result) (*Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	var res *Result
	err := s.With(func(st storage.Store) error {
		token := s.Tracker.Start(op, key)
		res = fn(st)
		s.Tracker.Finish(token, res)
		s.Listing.Invalidate()
		return nil
	})
	return res, err
}

// Refresh lists the current path through the listing cache. The returned
// snapshot is the visible listing, which is unchanged when a newer fetch or
// a mutation superseded this one.
func (s *Session) Refresh(ctx context.Context, ops *FileOperations) (ListingSnapshot, bool, error) {
	prefix := s.Prefix()
	seq := s.Listing.Begin(prefix)

	var items []models.ViewItem
	err := s.With(func(st storage.Store) error {
		var lerr error
		items, lerr = ops.ListDirectory(ctx, st, prefix)
		return lerr
	})
	var applied bool
	if err != nil {
		applied = s.Listing.Fail(seq, err)
	} else {
		applied = s.Listing.Apply(seq, items)
	}
	return s.Listing.Current(), applied, err
}

// release closes the store. Callers hold the write lock.
func (s *Session) release() error {
	if s.closed {
		return nil
	}
	s.closed = true
	st := s.store
	s.store = nil
	if st == nil {
		return nil
	}
	return st.Close()
}

// SessionManager owns every open session.
type SessionManager struct {
	factory StoreFactory
	log     zerolog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty manager.
func NewSessionManager(factory StoreFactory, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		factory:  factory,
		log:      log.With().Str("component", "sessions").Logger(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open connects to p and registers a new session.
func (m *SessionManager) Open(ctx context.Context, p profiles.Profile) (*Session, error) {
	st, err := m.factory.NewStore(ctx, StorageConfigFor(p))
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: m.now(),
		Listing:   NewListingCache(),
		Tracker:   &OperationTracker{},
		profile:   p,
		store:     st,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SetActiveSessions(n)
	m.log.Info().Str("session", sess.ID).Str("profile", p.Name).Str("provider", string(p.Config.Provider)).Msg("session opened")
	return sess, nil
}

// Get returns an open session.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, errs.New(errs.KindSessionClosed, "no open session "+id)
	}
	return sess, nil
}

// Switch points an open session at another profile. The old handle is
// released before the new one is opened; if opening fails the session is
// closed.
func (m *SessionManager) Switch(ctx context.Context, id string, p profiles.Profile) (*Session, error) {
	sess, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if err := sess.release(); err != nil {
		m.log.Warn().Err(err).Str("session", id).Msg("closing previous store failed")
	}
	st, err := m.factory.NewStore(ctx, StorageConfigFor(p))
	if err != nil {
		sess.mu.Unlock()
		m.remove(id)
		return nil, err
	}
	sess.store = st
	sess.closed = false
	sess.profile = p
	sess.segs = nil
	sess.mu.Unlock()

	sess.Listing.Reset()
	sess.Tracker.Reset()
	m.log.Info().Str("session", id).Str("profile", p.Name).Msg("session switched profile")
	return sess, nil
}

// Close releases a session's store and forgets the session.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	err := sess.release()
	sess.mu.Unlock()
	m.remove(id)

	m.log.Info().Str("session", id).Msg("session closed")
	return err
}

// CloseAll releases every session, for shutdown.
func (m *SessionManager) CloseAll() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var all []error
	for _, id := range ids {
		if err := m.Close(id); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

// Count returns the number of open sessions.
func (m *SessionManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SetActiveSessions(n)
}
