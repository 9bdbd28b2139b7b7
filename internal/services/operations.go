package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/metrics"
	"github.com/damacus/iron-studio/internal/models"
	"github.com/damacus/iron-studio/internal/pathmodel"
	"github.com/damacus/iron-studio/internal/storage"
)

// Upload is one local file queued for upload.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FileOperations turns user actions into ordered sequences of store calls.
// Calls inside one operation are issued one after another; the first failure
// stops the sequence and nothing is retried or rolled back.
type FileOperations struct {
	log zerolog.Logger
}

// NewFileOperations creates the operation runner.
func NewFileOperations(log zerolog.Logger) *FileOperations {
	return &FileOperations{log: log.With().Str("component", "file_operations").Logger()}
}

// ListDirectory lists the direct children of prefix as view items, folders
// first. Entries are trusted to live under prefix.
func (o *FileOperations) ListDirectory(ctx context.Context, st storage.Store, prefix string) ([]models.ViewItem, error) {
	entries, err := st.List(ctx, prefix)
	if err != nil {
		o.log.Warn().Err(err).Str("op", string(OpList)).Str("prefix", prefix).Msg("listing failed")
		return nil, &errs.Error{
			Kind:    errs.KindListFailed,
			Op:      string(OpList),
			Key:     prefix,
			Step:    errs.NoStep,
			Message: "failed to list directory",
			Cause:   err,
		}
	}
	return pathmodel.ToViewItems(entries), nil
}

// UploadFiles writes each upload to prefix+name in order. All names are
// validated before the first write. Files written before a failure stay
// written.
func (o *FileOperations) UploadFiles(ctx context.Context, st storage.Store, prefix string, uploads []Upload) *Result {
	res := newResult(OpUpload, prefix)

	keys := make([]string, len(uploads))
	for i, u := range uploads {
		key, err := pathmodel.ChildKey(prefix, u.Name, false)
		if err != nil {
			res.fail(i, prefix+u.Name, ActionValidate, err, nil)
			return o.finish(res)
		}
		keys[i] = key
	}

	for i, u := range uploads {
		data, err := readUpload(u)
		if err != nil {
			res.fail(i, keys[i], ActionRead, err, keys[i+1:])
			break
		}
		res.Calls++
		if err := st.Write(ctx, keys[i], data); err != nil {
			res.fail(i, keys[i], ActionWrite, err, keys[i+1:])
			break
		}
		res.Succeeded = append(res.Succeeded, keys[i])
		res.Created = append(res.Created, keys[i])
	}
	return o.finish(res)
}

func readUpload(u Upload) ([]byte, error) {
	if u.Open == nil {
		return nil, errs.New(errs.KindReadFailed, "no content for "+u.Name)
	}
	rc, err := u.Open()
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, "failed to open "+u.Name, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errs.Wrap(errs.KindReadFailed, "failed to read "+u.Name, err)
	}
	return data, nil
}

// CreateFolder writes an empty marker at prefix+name+"/".
func (o *FileOperations) CreateFolder(ctx context.Context, st storage.Store, prefix, name string) *Result {
	key, err := pathmodel.ChildKey(prefix, name, true)
	if err != nil {
		res := newResult(OpCreateFolder, prefix+name)
		res.fail(0, prefix+name, ActionValidate, err, nil)
		return o.finish(res)
	}

	res := newResult(OpCreateFolder, key)
	res.Target = key
	res.Calls++
	if err := st.Write(ctx, key, nil); err != nil {
		res.fail(0, key, ActionWrite, err, nil)
		return o.finish(res)
	}
	res.Succeeded = append(res.Succeeded, key)
	res.Created = append(res.Created, key)
	return o.finish(res)
}

// DeleteEntry deletes a file, or a folder with everything below it. Folder
// contents are removed children-first and the folder's own marker last.
func (o *FileOperations) DeleteEntry(ctx context.Context, st storage.Store, key string) *Result {
	res := newResult(OpDelete, key)
	if key == "" {
		res.fail(0, key, ActionValidate, errs.New(errs.KindInvalidName, "cannot delete the bucket root"), nil)
		return o.finish(res)
	}

	plan := []string{key}
	if folder, ok := pathmodel.RefFor(key).(pathmodel.FolderRef); ok {
		res.Calls++
		entries, werr := walk(ctx, st, folder.Prefix())
		if werr != nil {
			res.fail(0, werr.prefix, ActionList, werr.err, []string{key})
			return o.finish(res)
		}
		res.Calls += countDirs(entries)
		plan = make([]string, 0, len(entries)+1)
		for _, e := range entries {
			plan = append(plan, e.Path)
		}
		plan = append(plan, key)
	}

	for i, k := range plan {
		if !strings.HasPrefix(k, key) {
			res.fail(i, k, ActionCheck, outsideFolder(k, key), plan[i+1:])
			break
		}
		res.Calls++
		if err := st.Delete(ctx, k); err != nil {
			res.fail(i, k, ActionDelete, err, plan[i+1:])
			break
		}
		res.Succeeded = append(res.Succeeded, k)
	}
	return o.finish(res)
}

// RenameEntry renames the file or folder at key to newName in the same
// parent folder. Stores implementing storage.Renamer get one native call.
// Otherwise files are copied (read, write) and then deleted, and folders
// are moved one descendant at a time followed by their own marker. A source
// key is never deleted unless its copy was written.
func (o *FileOperations) RenameEntry(ctx context.Context, st storage.Store, key, newName string) *Result {
	res := newResult(OpRename, key)
	if key == "" {
		res.fail(0, key, ActionValidate, errs.New(errs.KindInvalidName, "cannot rename the bucket root"), nil)
		return o.finish(res)
	}
	name, err := pathmodel.ValidateRename(key, newName)
	if err != nil {
		res.fail(0, key, ActionValidate, err, nil)
		return o.finish(res)
	}
	ref := pathmodel.RefFor(key)
	_, isFolder := ref.(pathmodel.FolderRef)
	newKey, err := pathmodel.ChildKey(pathmodel.ParentPrefix(key), name, isFolder)
	if err != nil {
		res.fail(0, key, ActionValidate, err, nil)
		return o.finish(res)
	}
	res.Target = newKey

	if renamer, ok := st.(storage.Renamer); ok {
		res.Calls++
		if err := renamer.Rename(ctx, key, newKey); err != nil {
			res.fail(0, key, ActionRename, err, nil)
			return o.finish(res)
		}
		res.Succeeded = append(res.Succeeded, key)
		res.Created = append(res.Created, newKey)
		return o.finish(res)
	}

	if !isFolder {
		if action, err := o.moveObject(ctx, st, res, key, newKey); err != nil {
			res.fail(0, key, action, err, nil)
			return o.finish(res)
		}
		res.Succeeded = append(res.Succeeded, key)
		return o.finish(res)
	}

	res.Calls++
	entries, werr := walk(ctx, st, key)
	if werr != nil {
		res.fail(0, werr.prefix, ActionList, werr.err, []string{key})
		return o.finish(res)
	}
	res.Calls += countDirs(entries)

	plan := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		plan = append(plan, e.Path)
	}
	plan = append(plan, key)

	for i, e := range entries {
		target, ok := pathmodel.Rebase(e.Path, key, newKey)
		if !ok {
			res.fail(i, e.Path, ActionCheck, outsideFolder(e.Path, key), plan[i+1:])
			return o.finish(res)
		}
		var action Action
		if e.IsDir {
			action, err = o.moveMarker(ctx, st, res, e.Path, target)
		} else {
			action, err = o.moveObject(ctx, st, res, e.Path, target)
		}
		if err != nil {
			res.fail(i, e.Path, action, err, plan[i+1:])
			return o.finish(res)
		}
		res.Succeeded = append(res.Succeeded, e.Path)
	}

	last := len(entries)
	if action, err := o.moveMarker(ctx, st, res, key, newKey); err != nil {
		res.fail(last, key, action, err, nil)
		return o.finish(res)
	}
	res.Succeeded = append(res.Succeeded, key)
	return o.finish(res)
}

// moveObject copies from to "to" through a read and a write, then deletes
// the source.
func (o *FileOperations) moveObject(ctx context.Context, st storage.Store, res *Result, from, to string) (Action, error) {
	res.Calls++
	data, err := st.Read(ctx, from)
	if err != nil {
		return ActionRead, err
	}
	res.Calls++
	if err := st.Write(ctx, to, data); err != nil {
		return ActionWrite, err
	}
	res.Created = append(res.Created, to)
	res.Calls++
	if err := st.Delete(ctx, from); err != nil {
		return ActionDelete, err
	}
	return "", nil
}

// moveMarker writes an empty marker at "to" and deletes the one at from.
func (o *FileOperations) moveMarker(ctx context.Context, st storage.Store, res *Result, from, to string) (Action, error) {
	res.Calls++
	if err := st.Write(ctx, to, nil); err != nil {
		return ActionWrite, err
	}
	res.Created = append(res.Created, to)
	res.Calls++
	if err := st.Delete(ctx, from); err != nil {
		return ActionDelete, err
	}
	return "", nil
}

func countDirs(entries []storage.Entry) int {
	n := 0
	for _, e := range entries {
		if e.IsDir {
			n++
		}
	}
	return n
}

func outsideFolder(key, folder string) error {
	return errs.New(errs.KindConflict, fmt.Sprintf("listing returned %q outside %q", key, folder))
}

// finish logs the outcome and records metrics.
func (o *FileOperations) finish(res *Result) *Result {
	state := res.State()
	metrics.RecordFileOperation(string(res.Op), state.String(), res.Calls)

	ev := o.log.Info()
	if state != StateSuccess {
		ev = o.log.Warn().Err(res.Err())
	}
	if f := res.Failed; f != nil {
		ev = ev.Int("step", f.Index).Str("failed_key", f.Key).Str("action", string(f.Action))
	}
	ev.Str("op", string(res.Op)).
		Str("key", res.Key).
		Str("state", state.String()).
		Int("succeeded", len(res.Succeeded)).
		Int("skipped", len(res.Skipped)).
		Int("calls", res.Calls).
		Msg("file operation finished")
	return res
}

// CopyKeyReference formats scheme://bucket/key. The scheme defaults to s3.
func CopyKeyReference(scheme, bucket, key string) string {
	if scheme == "" {
		scheme = "s3"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, bucket, key)
}
