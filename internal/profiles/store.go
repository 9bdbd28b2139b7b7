package profiles

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/damacus/iron-studio/internal/errs"
)

// fileState is the on-disk layout of the profiles file.
type fileState struct {
	Version         int       `yaml:"version"`
	ActiveProfileID string    `yaml:"activeProfileId,omitempty"`
	Profiles        []Profile `yaml:"profiles"`
}

// Store holds the profiles. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	path     string // empty for a memory-only store
	order    []string
	profiles map[string]Profile
	activeID string
	tests    map[string]TestResult

	now func() time.Time
}

// NewMemoryStore returns a store that is never written to disk.
func NewMemoryStore() *Store {
	return &Store{
		profiles: make(map[string]Profile),
		tests:    make(map[string]TestResult),
		now:      time.Now,
	}
}

// Open loads the profiles file at path. A missing file is an empty store;
// the file is created on the first change.
func Open(path string) (*Store, error) {
	s := NewMemoryStore()
	s.path = path
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, "read profiles file", err)
	}

	var state fileState
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, errs.Wrap(errs.KindInvalidInput, "parse profiles file "+path, err)
	}
	for _, p := range state.Profiles {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if _, dup := s.profiles[p.ID]; dup {
			continue
		}
		s.profiles[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	if _, ok := s.profiles[state.ActiveProfileID]; ok {
		s.activeID = state.ActiveProfileID
	}
	return s, nil
}

// save writes the store atomically. Callers hold the write lock.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	state := fileState{Version: exportVersion, ActiveProfileID: s.activeID, Profiles: s.listLocked()}
	data, err := yaml.Marshal(&state)
	if err != nil {
		return errs.Wrap(errs.KindUnknown, "encode profiles", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errs.Wrap(errs.KindPermissionDenied, "create profiles directory", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errs.Wrap(errs.KindPermissionDenied, "write profiles file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return errs.Wrap(errs.KindPermissionDenied, "replace profiles file", err)
	}
	return nil
}

func (s *Store) listLocked() []Profile {
	out := make([]Profile, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.profiles[id])
	}
	return out
}

// List returns all profiles in insertion order.
func (s *Store) List() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

// Len returns the number of profiles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Get returns the profile with id.
func (s *Store) Get(id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, errs.New(errs.KindNotFound, fmt.Sprintf("profile %q not found", id))
	}
	return p, nil
}

// Add normalises cfg and appends a new profile.
func (s *Store) Add(name string, cfg Config) (Profile, error) {
	name, err := profileName(name)
	if err != nil {
		return Profile{}, err
	}
	cfg, err = Normalize(cfg)
	if err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	p := Profile{ID: uuid.NewString(), Name: name, Config: cfg, CreatedAt: now, UpdatedAt: now}
	s.profiles[p.ID] = p
	s.order = append(s.order, p.ID)
	if err := s.save(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Update replaces the name and config of a profile. A blank secret keeps
// the stored one, so edit forms never have to echo credentials back.
func (s *Store) Update(id, name string, cfg Config) (Profile, error) {
	name, err := profileName(name)
	if err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, errs.New(errs.KindNotFound, fmt.Sprintf("profile %q not found", id))
	}
	if cfg.SecretAccessKey == "" {
		cfg.SecretAccessKey = p.Config.SecretAccessKey
	}
	cfg, err = Normalize(cfg)
	if err != nil {
		return Profile{}, err
	}

	p.Name = name
	p.Config = cfg
	p.UpdatedAt = s.now().UTC()
	s.profiles[id] = p
	delete(s.tests, id)
	if err := s.save(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Delete removes a profile. Deleting the active profile activates the first
// remaining one.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[id]; !ok {
		return errs.New(errs.KindNotFound, fmt.Sprintf("profile %q not found", id))
	}
	delete(s.profiles, id)
	delete(s.tests, id)
	order := s.order[:0]
	for _, pid := range s.order {
		if pid != id {
			order = append(order, pid)
		}
	}
	s.order = order
	if s.activeID == id {
		s.activeID = ""
		if len(s.order) > 0 {
			s.activeID = s.order[0]
		}
	}
	return s.save()
}

// SetActive marks id as the active profile. An empty id clears it.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != "" {
		if _, ok := s.profiles[id]; !ok {
			return errs.New(errs.KindNotFound, fmt.Sprintf("profile %q not found", id))
		}
	}
	s.activeID = id
	return s.save()
}

// Active returns the active profile, if any.
func (s *Store) Active() (Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[s.activeID]
	return p, ok
}

// SetTestResult records a connection test outcome for id.
func (s *Store) SetTestResult(id string, r TestResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; ok {
		s.tests[id] = r
	}
}

// TestResult returns the last connection test for id, idle when none ran.
func (s *Store) TestResult(id string) TestResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.tests[id]; ok {
		return r
	}
	return TestResult{Status: TestIdle}
}

func profileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.New(errs.KindInvalidInput, "profile name is required")
	}
	return name, nil
}
