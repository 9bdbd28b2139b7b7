package services

import (
	"archive/zip"
	"context"
	"io"
	"strings"
	"time"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/models"
	"github.com/damacus/iron-studio/internal/pathmodel"
	"github.com/damacus/iron-studio/internal/storage"
)

// DefaultShareTTL is used when a share request gives no expiry.
const DefaultShareTTL = time.Hour

// FileContent is a file read into memory for download or preview.
type FileContent struct {
	Key         string
	Name        string
	ContentType string
	Preview     models.PreviewType
	Data        []byte
}

// ShareLink is a presigned URL and how long it stays valid.
type ShareLink struct {
	URL       string
	Key       string
	TTL       time.Duration
	ExpiresAt time.Time
}

func fileKey(key string) (string, error) {
	ref, ok := pathmodel.RefFor(key).(pathmodel.FileRef)
	if !ok || key == "" {
		return "", errs.New(errs.KindInvalidInput, "not a file: "+key)
	}
	return ref.Key(), nil
}

func readFailed(op, key string, cause error) error {
	return &errs.Error{
		Kind:    errs.KindReadFailed,
		Op:      op,
		Key:     key,
		Step:    errs.NoStep,
		Message: "failed to read",
		Cause:   cause,
	}
}

// ReadFile reads a whole file.
func (o *FileOperations) ReadFile(ctx context.Context, st storage.Store, key string) (*FileContent, error) {
	key, err := fileKey(key)
	if err != nil {
		return nil, err
	}
	data, err := st.Read(ctx, key)
	if err != nil {
		return nil, readFailed("download", key, err)
	}
	ct, preview := pathmodel.ClassifyContent(key)
	return &FileContent{
		Key:         key,
		Name:        pathmodel.BaseName(key),
		ContentType: ct,
		Preview:     preview,
		Data:        data,
	}, nil
}

// Preview reads a file for the inline viewer. Files without a viewer or
// above the preview size limit are refused before any read.
func (o *FileOperations) Preview(ctx context.Context, st storage.Store, key string) (*FileContent, error) {
	key, err := fileKey(key)
	if err != nil {
		return nil, err
	}
	entry, err := st.Stat(ctx, key)
	if err != nil {
		return nil, readFailed("preview", key, err)
	}
	if !pathmodel.CanPreview(key, entry.Size) {
		return nil, errs.New(errs.KindInvalidInput, "file cannot be previewed: "+key)
	}
	return o.ReadFile(ctx, st, key)
}

// Info returns the properties of a file or folder marker.
func (o *FileOperations) Info(ctx context.Context, st storage.Store, key string) (models.ViewItem, storage.Entry, error) {
	if key == "" {
		return models.ViewItem{}, storage.Entry{}, errs.New(errs.KindInvalidInput, "key is required")
	}
	entry, err := st.Stat(ctx, key)
	if err != nil {
		return models.ViewItem{}, storage.Entry{}, readFailed("info", key, err)
	}
	return pathmodel.ToViewItem(entry, 0), entry, nil
}

// Share presigns a GET for key. A non-positive ttl means DefaultShareTTL;
// anything above maxTTL is capped.
func (o *FileOperations) Share(ctx context.Context, st storage.Store, key string, ttl, maxTTL time.Duration) (*ShareLink, error) {
	key, err := fileKey(key)
	if err != nil {
		return nil, err
	}
	p, ok := st.(storage.Presigner)
	if !ok {
		return nil, errs.New(errs.KindInvalidInput, "this storage cannot create share links")
	}
	if ttl <= 0 {
		ttl = DefaultShareTTL
	}
	if maxTTL > 0 && ttl > maxTTL {
		ttl = maxTTL
	}
	url, err := p.PresignGet(ctx, key, ttl)
	if err != nil {
		return nil, readFailed("share", key, err)
	}
	o.log.Info().Str("op", "share").Str("key", key).Dur("ttl", ttl).Msg("share link created")
	return &ShareLink{URL: url, Key: key, TTL: ttl, ExpiresAt: time.Now().Add(ttl)}, nil
}

// FolderFiles lists every file below prefix. Folder markers are left out.
func (o *FileOperations) FolderFiles(ctx context.Context, st storage.Store, prefix string) ([]storage.Entry, error) {
	entries, werr := walk(ctx, st, prefix)
	if werr != nil {
		return nil, &errs.Error{
			Kind:    errs.KindListFailed,
			Op:      "zip",
			Key:     werr.prefix,
			Step:    errs.NoStep,
			Message: "failed to list folder",
			Cause:   werr.err,
		}
	}
	files := make([]storage.Entry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir || !strings.HasPrefix(e.Path, prefix) {
			continue
		}
		files = append(files, e)
	}
	return files, nil
}

// WriteZip streams files into w as a ZIP archive with names relative to
// prefix. A failed read stops the archive without writing its directory,
// so a truncated download is never a valid archive.
func (o *FileOperations) WriteZip(ctx context.Context, st storage.Store, prefix string, files []storage.Entry, w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, f := range files {
		data, err := st.Read(ctx, f.Path)
		if err != nil {
			o.log.Warn().Err(err).Str("op", "zip").Str("key", f.Path).Msg("archive aborted")
			return readFailed("zip", f.Path, err)
		}
		hdr := &zip.FileHeader{Name: strings.TrimPrefix(f.Path, prefix), Method: zip.Deflate}
		if f.LastModified != nil {
			hdr.Modified = *f.LastModified
		}
		fw, err := zw.CreateHeader(hdr)
		if err != nil {
			return err
		}
		if _, err := fw.Write(data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// ArchiveName names the ZIP download of prefix.
func ArchiveName(bucket, prefix string) string {
	if name := pathmodel.BaseName(prefix); name != "" {
		return name + ".zip"
	}
	if bucket == "" {
		return "download.zip"
	}
	return bucket + ".zip"
}
