package services

import (
	"context"
	"sort"

	"github.com/minio/madmin-go/v3"
	"github.com/stretchr/testify/mock"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/storage"
)

// MockStore is a testify mock of storage.Store.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) List(ctx context.Context, prefix string) ([]storage.Entry, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]storage.Entry), args.Error(1)
}

func (m *MockStore) Read(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStore) Write(ctx context.Context, key string, data []byte) error {
	args := m.Called(ctx, key, data)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) Stat(ctx context.Context, key string) (storage.Entry, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(storage.Entry), args.Error(1)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockRenamerStore adds a native Rename.
type MockRenamerStore struct {
	MockStore
}

func (m *MockRenamerStore) Rename(ctx context.Context, from, to string) error {
	args := m.Called(ctx, from, to)
	return args.Error(0)
}

// MockStoreFactory is a testify mock of StoreFactory.
type MockStoreFactory struct {
	mock.Mock
}

func (m *MockStoreFactory) NewStore(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(storage.Store), args.Error(1)
}

func (m *MockStoreFactory) NewAdminClient(cfg storage.Config) (AdminClient, error) {
	args := m.Called(cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(AdminClient), args.Error(1)
}

// MockAdminClient is a testify mock of AdminClient.
type MockAdminClient struct {
	mock.Mock
}

func (m *MockAdminClient) ServerInfo(ctx context.Context, opts ...func(*madmin.ServerInfoOpts)) (madmin.InfoMessage, error) {
	args := m.Called(ctx)
	return args.Get(0).(madmin.InfoMessage), args.Error(1)
}

func (m *MockAdminClient) DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(madmin.DataUsageInfo), args.Error(1)
}

// memStore is an in-memory storage.Store that records every call, used to
// check exact call order and to model listings precisely.
type memStore struct {
	objects map[string][]byte
	calls   []string
	// failOn makes the call "<op> <key>" fail with the given error.
	failOn map[string]error
	// listings overrides List results per prefix.
	listings map[string][]storage.Entry
	closed   bool
}

func newMemStore(keys ...string) *memStore {
	s := &memStore{objects: map[string][]byte{}, failOn: map[string]error{}, listings: map[string][]storage.Entry{}}
	for _, k := range keys {
		s.objects[k] = []byte("data:" + k)
	}
	return s
}

func (s *memStore) record(op, key string) error {
	call := op + " " + key
	s.calls = append(s.calls, call)
	return s.failOn[call]
}

func (s *memStore) List(_ context.Context, prefix string) ([]storage.Entry, error) {
	if err := s.record("list", prefix); err != nil {
		return nil, err
	}
	if entries, ok := s.listings[prefix]; ok {
		return entries, nil
	}
	seen := map[string]bool{}
	var out []storage.Entry
	for key := range s.objects {
		if key == prefix || len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		rest := key[len(prefix):]
		child := key
		isDir := storage.IsDirKey(key)
		for i := 0; i < len(rest); i++ {
			if rest[i] == '/' {
				child = prefix + rest[:i+1]
				isDir = true
				break
			}
		}
		if seen[child] {
			continue
		}
		seen[child] = true
		out = append(out, storage.Entry{Path: child, IsDir: isDir, Size: int64(len(s.objects[child]))})
	}
	sortEntries(out)
	return out, nil
}

func (s *memStore) Read(_ context.Context, key string) ([]byte, error) {
	if err := s.record("read", key); err != nil {
		return nil, err
	}
	data, ok := s.objects[key]
	if !ok {
		return nil, errNotFound(key)
	}
	return data, nil
}

func (s *memStore) Write(_ context.Context, key string, data []byte) error {
	if err := s.record("write", key); err != nil {
		return err
	}
	s.objects[key] = append([]byte(nil), data...)
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	if err := s.record("delete", key); err != nil {
		return err
	}
	delete(s.objects, key)
	return nil
}

func (s *memStore) Stat(_ context.Context, key string) (storage.Entry, error) {
	if err := s.record("stat", key); err != nil {
		return storage.Entry{}, err
	}
	data, ok := s.objects[key]
	if !ok {
		return storage.Entry{}, errNotFound(key)
	}
	return storage.Entry{Path: key, Size: int64(len(data)), IsDir: storage.IsDirKey(key)}, nil
}

func (s *memStore) Close() error {
	s.closed = true
	return nil
}

func sortEntries(entries []storage.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
}

func errNotFound(key string) error {
	return errs.New(errs.KindNotFound, "no such key "+key)
}
