package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T) *Driver {
	t.Helper()
	d, err := New(t.TempDir())
	require.NoError(t, err)
	return d
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New("")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestWriteListRead(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)

	require.NoError(t, d.Write(ctx, "docs/", nil))
	require.NoError(t, d.Write(ctx, "docs/a.txt", []byte("hello")))
	require.NoError(t, d.Write(ctx, "docs/deep/b.txt", []byte("x")))

	entries, err := d.List(ctx, "docs/")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byPath := map[string]storage.Entry{}
	for _, e := range entries {
		byPath[e.Path] = e
	}
	assert.True(t, byPath["docs/deep/"].IsDir)
	assert.Equal(t, int64(5), byPath["docs/a.txt"].Size)
	assert.Equal(t, "a.txt", byPath["docs/a.txt"].Name)
	assert.NotNil(t, byPath["docs/a.txt"].LastModified)

	data, err := d.Read(ctx, "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestList_MissingPrefixIsEmpty(t *testing.T) {
	entries, err := newDriver(t).List(context.Background(), "nope/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRead_MissingIsNotFound(t *testing.T) {
	_, err := newDriver(t).Read(context.Background(), "missing.txt")
	assert.True(t, errs.IsNotFound(err))
}

func TestDelete_DirectoryMustBeEmpty(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)
	require.NoError(t, d.Write(ctx, "f/1", []byte("1")))

	err := d.Delete(ctx, "f/")
	require.Error(t, err)
	assert.True(t, errs.HasKind(err, errs.KindConflict))

	require.NoError(t, d.Delete(ctx, "f/1"))
	require.NoError(t, d.Delete(ctx, "f/"))

	_, err = os.Stat(filepath.Join(d.Root(), "f"))
	assert.True(t, os.IsNotExist(err))
}

func TestStat(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)
	require.NoError(t, d.Write(ctx, "a/b.txt", []byte("abc")))

	e, err := d.Stat(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/b.txt", e.Path)
	assert.Equal(t, int64(3), e.Size)
	assert.Equal(t, "text/plain", e.ContentType)

	dir, err := d.Stat(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, "a/", dir.Path)
	assert.True(t, dir.IsDir)

	_, err = d.Stat(ctx, "a/b.txt/")
	assert.True(t, errs.IsNotFound(err))
}

func TestRename_MovesWholeDirectory(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)
	require.NoError(t, d.Write(ctx, "old/x.txt", []byte("x")))
	require.NoError(t, d.Write(ctx, "old/sub/y.txt", []byte("y")))

	require.NoError(t, d.Rename(ctx, "old/", "new/"))

	data, err := d.Read(ctx, "new/sub/y.txt")
	require.NoError(t, err)
	assert.Equal(t, "y", string(data))

	entries, err := d.List(ctx, "old/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRename_RefusesExistingTarget(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)
	require.NoError(t, d.Write(ctx, "a.txt", []byte("a")))
	require.NoError(t, d.Write(ctx, "b.txt", []byte("b")))

	err := d.Rename(ctx, "a.txt", "b.txt")
	assert.True(t, errs.HasKind(err, errs.KindConflict))
}

func TestResolve_RejectsEscapes(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)

	for _, key := range []string{"../x", "a/../../x", "../"} {
		err := d.Write(ctx, key, []byte("x"))
		assert.True(t, errs.IsPermissionDenied(err), key)
	}

	err := d.Delete(ctx, "")
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestDriver_IsRenamer(t *testing.T) {
	var st storage.Store = newDriver(t)
	_, ok := st.(storage.Renamer)
	assert.True(t, ok)
}

func TestResolve_RejectsSymlinkEscapes(t *testing.T) {
	ctx := context.Background()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s"), 0o644))

	d := newDriver(t)
	require.NoError(t, os.Symlink(outside, filepath.Join(d.Root(), "link")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "missing.txt"), filepath.Join(d.Root(), "dangling")))

	_, err := d.Read(ctx, "link/secret.txt")
	assert.True(t, errs.IsPermissionDenied(err))

	err = d.Write(ctx, "link/new.txt", []byte("x"))
	assert.True(t, errs.IsPermissionDenied(err))
	assert.NoFileExists(t, filepath.Join(outside, "new.txt"))

	err = d.Write(ctx, "dangling", []byte("x"))
	assert.True(t, errs.IsPermissionDenied(err))
	assert.NoFileExists(t, filepath.Join(outside, "missing.txt"))

	_, err = d.List(ctx, "link/")
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestResolve_AllowsSymlinksInsideRoot(t *testing.T) {
	ctx := context.Background()
	d := newDriver(t)
	require.NoError(t, d.Write(ctx, "real/a.txt", []byte("a")))
	require.NoError(t, os.Symlink(filepath.Join(d.Root(), "real"), filepath.Join(d.Root(), "alias")))

	data, err := d.Read(ctx, "alias/a.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
}

func TestNew_ResolvesSymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	link := filepath.Join(t.TempDir(), "root")
	require.NoError(t, os.Symlink(target, link))

	d, err := New(link)
	require.NoError(t, err)
	want, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, want, d.Root())

	require.NoError(t, d.Write(context.Background(), "a.txt", []byte("a")))
	assert.FileExists(t, filepath.Join(target, "a.txt"))
}
