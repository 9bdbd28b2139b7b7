// Package local serves a directory on disk as a storage.Store.
//
// Keys map to paths below the root directory. A key ending in "/" is a
// directory: writing it creates the directory, deleting it removes the
// directory once it is empty. Rename is a single os.Rename, so the driver
// implements storage.Renamer.
package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/metrics"
	"github.com/damacus/iron-studio/internal/pathmodel"
	"github.com/damacus/iron-studio/internal/storage"
)

const driverName = "local"

// Driver implements storage.Store on the local filesystem.
type Driver struct {
	root string
}

// New serves root, creating it when it does not exist.
func New(root string) (*Driver, error) {
	if root == "" {
		return nil, errs.New(errs.KindInvalidInput, "root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "resolve root path", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, mapError(err, "create root directory")
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, mapError(err, "resolve root path")
	}
	return &Driver{root: resolved}, nil
}

// Root returns the absolute root path.
func (d *Driver) Root() string {
	return d.root
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreOperation(driverName, op, time.Since(start), *err == nil)
}

// resolve converts a key to an absolute path and rejects keys that would
// escape the root, textually or through a symlink.
func (d *Driver) resolve(key string) (string, error) {
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", escapes(key)
		}
	}
	abs := filepath.Join(d.root, filepath.FromSlash(strings.TrimSuffix(key, "/")))
	if !d.within(abs) {
		return "", escapes(key)
	}
	if err := d.confine(key, abs); err != nil {
		return "", err
	}
	return abs, nil
}

func (d *Driver) within(p string) bool {
	return p == d.root || strings.HasPrefix(p, d.root+string(filepath.Separator))
}

// confine resolves symlinks along the longest existing part of p. A link
// pointing outside the root, or a dangling link, is refused.
func (d *Driver) confine(key, p string) error {
	for cur := p; ; cur = filepath.Dir(cur) {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			if !d.within(resolved) {
				return escapes(key)
			}
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return mapError(err, "resolve path")
		}
		if info, lerr := os.Lstat(cur); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			return escapes(key)
		}
		if cur == d.root {
			return nil
		}
	}
}

func escapes(key string) error {
	return errs.New(errs.KindPermissionDenied, "key "+key+" escapes storage root")
}

// Ping checks the root is still a readable directory.
func (d *Driver) Ping(_ context.Context) (err error) {
	defer observe("ping", time.Now(), &err)

	info, err := os.Stat(d.root)
	if err != nil {
		return mapError(err, "stat root")
	}
	if !info.IsDir() {
		return errs.New(errs.KindConnectionFailed, d.root+" is not a directory")
	}
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

// List returns the direct children of the prefix directory. A missing
// directory lists as empty, like an unused prefix on S3.
func (d *Driver) List(ctx context.Context, prefix string) (entries []storage.Entry, err error) {
	defer observe("list", time.Now(), &err)

	dir, err := d.resolve(prefix)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []storage.Entry{}, nil
		}
		return nil, mapError(err, "read directory")
	}

	entries = make([]storage.Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return nil, mapError(err, "list cancelled")
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, toEntry(prefix+de.Name(), info))
	}
	return entries, nil
}

// Read returns the file content of key.
func (d *Driver) Read(_ context.Context, key string) (data []byte, err error) {
	defer observe("read", time.Now(), &err)

	p, err := d.resolve(key)
	if err != nil {
		return nil, err
	}
	data, err = os.ReadFile(p)
	if err != nil {
		return nil, mapError(err, "read file")
	}
	return data, nil
}

// Write creates key. Directory keys become directories; file keys get their
// parent directories created on demand.
func (d *Driver) Write(_ context.Context, key string, data []byte) (err error) {
	defer observe("write", time.Now(), &err)

	p, err := d.resolve(key)
	if err != nil {
		return err
	}
	if storage.IsDirKey(key) {
		if err = os.MkdirAll(p, 0o755); err != nil {
			return mapError(err, "create directory")
		}
		return nil
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return mapError(err, "create parent directories")
	}
	if err = os.WriteFile(p, data, 0o644); err != nil {
		return mapError(err, "write file")
	}
	metrics.RecordBytesWritten(len(data))
	return nil
}

// Delete removes a file, or a directory once it is empty.
func (d *Driver) Delete(_ context.Context, key string) (err error) {
	defer observe("delete", time.Now(), &err)

	p, err := d.resolve(key)
	if err != nil {
		return err
	}
	if p == d.root {
		return errs.New(errs.KindPermissionDenied, "cannot delete storage root")
	}
	if err = os.Remove(p); err != nil {
		return mapError(err, "delete")
	}
	return nil
}

// Stat returns metadata for key.
func (d *Driver) Stat(_ context.Context, key string) (entry storage.Entry, err error) {
	defer observe("stat", time.Now(), &err)

	p, err := d.resolve(key)
	if err != nil {
		return storage.Entry{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return storage.Entry{}, mapError(err, "stat")
	}
	if info.IsDir() != storage.IsDirKey(key) && key != "" {
		return storage.Entry{}, errs.New(errs.KindNotFound, "no such key "+key)
	}
	return toEntry(strings.TrimSuffix(key, "/"), info), nil
}

// Rename moves a file or a whole directory in one call. The target must
// not exist.
func (d *Driver) Rename(_ context.Context, from, to string) (err error) {
	defer observe("rename", time.Now(), &err)

	src, err := d.resolve(from)
	if err != nil {
		return err
	}
	dst, err := d.resolve(to)
	if err != nil {
		return err
	}
	if _, statErr := os.Lstat(dst); statErr == nil {
		return errs.New(errs.KindConflict, "target "+to+" already exists")
	}
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return mapError(err, "create parent directories")
	}
	if err = os.Rename(src, dst); err != nil {
		return mapError(err, "rename")
	}
	return nil
}

// toEntry builds an entry for the file at key. Directory keys get the
// trailing slash appended.
func toEntry(key string, info fs.FileInfo) storage.Entry {
	mod := info.ModTime()
	e := storage.Entry{
		Path:         key,
		Name:         info.Name(),
		LastModified: &mod,
		IsDir:        info.IsDir(),
	}
	if e.IsDir {
		e.Path += "/"
		return e
	}
	e.Size = info.Size()
	e.ContentType = pathmodel.ContentType(info.Name())
	return e
}

func mapError(err error, msg string) *errs.Error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Wrap(errs.KindTimeout, msg, err)
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.KindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.KindPermissionDenied, msg, err)
	case errors.Is(err, fs.ErrExist):
		return errs.Wrap(errs.KindConflict, msg, err)
	}
	return errs.Wrap(errs.KindUnknown, msg, err)
}
