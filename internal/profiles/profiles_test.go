package profiles

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/storage"
)

func s3Config() Config {
	return Config{AccessKeyID: "AKIA", SecretAccessKey: "secret", Region: "eu-west-1", Bucket: "photos"}
}

func fixedStore() *Store {
	s := NewMemoryStore()
	s.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestNormalize(t *testing.T) {
	t.Run("trims and defaults to s3", func(t *testing.T) {
		cfg, err := Normalize(Config{AccessKeyID: " AKIA ", Region: " us-east-1", Bucket: "b ", SessionToken: "  "})
		require.NoError(t, err)
		assert.Equal(t, storage.ProviderS3, cfg.Provider)
		assert.Equal(t, "AKIA", cfg.AccessKeyID)
		assert.Equal(t, "us-east-1", cfg.Region)
		assert.Equal(t, "b", cfg.Bucket)
		assert.Empty(t, cfg.SessionToken)
	})

	t.Run("s3 requires region", func(t *testing.T) {
		_, err := Normalize(Config{AccessKeyID: "a", Bucket: "b"})
		require.Error(t, err)
		assert.True(t, errs.IsInvalidInput(err))
		assert.Contains(t, err.Error(), "region")
	})

	t.Run("minio requires endpoint", func(t *testing.T) {
		_, err := Normalize(Config{Provider: storage.ProviderMinIO, AccessKeyID: "a", Bucket: "b"})
		assert.True(t, errs.IsInvalidInput(err))
	})

	t.Run("minio endpoint scheme sets ssl", func(t *testing.T) {
		cfg, err := Normalize(Config{Provider: "MinIO", Endpoint: "https://play.min.io/", AccessKeyID: "a", Bucket: "b"})
		require.NoError(t, err)
		assert.Equal(t, "play.min.io", cfg.Endpoint)
		require.NotNil(t, cfg.UseSSL)
		assert.True(t, *cfg.UseSSL)
	})

	t.Run("local needs only root", func(t *testing.T) {
		cfg, err := Normalize(Config{Provider: storage.ProviderLocal, Root: "/srv/data"})
		require.NoError(t, err)
		assert.Equal(t, "/srv/data", cfg.Root)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := Normalize(Config{Provider: "ftp"})
		assert.True(t, errs.IsInvalidInput(err))
	})
}

func TestStore_AddListOrder(t *testing.T) {
	s := fixedStore()
	a, err := s.Add("Work", s3Config())
	require.NoError(t, err)
	b, err := s.Add("Home", s3Config())
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, a.ID, list[0].ID)
	assert.Equal(t, b.ID, list[1].ID)
	assert.NotEqual(t, a.ID, b.ID)

	_, err = s.Add("  ", s3Config())
	assert.True(t, errs.IsInvalidInput(err))
}

func TestStore_UpdateKeepsSecret(t *testing.T) {
	s := fixedStore()
	p, err := s.Add("Work", s3Config())
	require.NoError(t, err)
	s.SetTestResult(p.ID, TestResult{Status: TestSuccess})

	cfg := s3Config()
	cfg.SecretAccessKey = ""
	cfg.Bucket = "archive"
	updated, err := s.Update(p.ID, "Work 2", cfg)
	require.NoError(t, err)
	assert.Equal(t, "Work 2", updated.Name)
	assert.Equal(t, "archive", updated.Config.Bucket)
	assert.Equal(t, "secret", updated.Config.SecretAccessKey)
	assert.Equal(t, TestIdle, s.TestResult(p.ID).Status)

	_, err = s.Update("missing", "x", cfg)
	assert.True(t, errs.IsNotFound(err))
}

func TestStore_DeleteActiveFallsBackToFirst(t *testing.T) {
	s := fixedStore()
	a, _ := s.Add("A", s3Config())
	b, _ := s.Add("B", s3Config())
	c, _ := s.Add("C", s3Config())
	require.NoError(t, s.SetActive(b.ID))

	require.NoError(t, s.Delete(b.ID))
	active, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, a.ID, active.ID)

	require.NoError(t, s.Delete(c.ID))
	require.NoError(t, s.Delete(a.ID))
	_, ok = s.Active()
	assert.False(t, ok)

	assert.True(t, errs.IsNotFound(s.Delete(a.ID)))
}

func TestStore_SetActiveUnknown(t *testing.T) {
	s := fixedStore()
	assert.True(t, errs.IsNotFound(s.SetActive("nope")))
	assert.NoError(t, s.SetActive(""))
}

func TestStore_TestResults(t *testing.T) {
	s := fixedStore()
	p, _ := s.Add("A", s3Config())

	assert.Equal(t, TestIdle, s.TestResult(p.ID).Status)
	s.SetTestResult(p.ID, TestResult{Status: TestError, Message: "denied"})
	assert.Equal(t, "denied", s.TestResult(p.ID).Message)

	s.SetTestResult("unknown", TestResult{Status: TestSuccess})
	assert.Equal(t, TestIdle, s.TestResult("unknown").Status)

	require.NoError(t, s.Delete(p.ID))
	assert.Equal(t, TestIdle, s.TestResult(p.ID).Status)
}

func TestStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.yaml")

	s, err := Open(path)
	require.NoError(t, err)
	p, err := s.Add("Work", s3Config())
	require.NoError(t, err)
	require.NoError(t, s.SetActive(p.ID))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	reopened, err := Open(path)
	require.NoError(t, err)
	list := reopened.List()
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
	assert.Equal(t, "secret", list[0].Config.SecretAccessKey)
	active, ok := reopened.Active()
	require.True(t, ok)
	assert.Equal(t, p.ID, active.ID)
}

func TestOpen_Errors(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("profiles: {not: [a list"), 0o600))
	_, err = Open(bad)
	assert.True(t, errs.IsInvalidInput(err))
}
