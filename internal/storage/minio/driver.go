// Package minio provides a minio-go implementation of storage.Store for
// MinIO and other S3-compatible endpoints.
//
// Usage:
//
//	st, err := minio.New(storage.Config{Endpoint: "localhost:9000", Bucket: "photos", ...})
//	if err != nil { ... }
//	defer st.Close()
//
//	entries, err := st.List(ctx, "2024/")
package minio

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/metrics"
	"github.com/damacus/iron-studio/internal/pathmodel"
	"github.com/damacus/iron-studio/internal/storage"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const driverName = "minio"

// Driver is a MinIO implementation of storage.Store bound to one bucket.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New creates a client for cfg. No network call is made until the first
// operation; use Ping to validate the connection.
func New(cfg storage.Config) (*Driver, error) {
	if cfg.Bucket == "" {
		return nil, errs.New(errs.KindInvalidInput, "bucket is required")
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "failed to create minio client", err)
	}
	return &Driver{client: client, bucket: cfg.Bucket}, nil
}

func observe(op string, start time.Time, err *error) {
	metrics.RecordStoreOperation(driverName, op, time.Since(start), *err == nil)
}

// Ping checks that the bucket exists and the credentials can see it.
func (d *Driver) Ping(ctx context.Context) (err error) {
	defer observe("ping", time.Now(), &err)

	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return errs.New(errs.KindNotFound, "bucket "+d.bucket+" does not exist")
	}
	return nil
}

// Close is a no-op: the SDK client holds no persistent connections.
func (d *Driver) Close() error {
	return nil
}

// List returns the direct children of prefix. Common prefixes become
// directory entries; the prefix's own marker is skipped.
func (d *Driver) List(ctx context.Context, prefix string) (entries []storage.Entry, err error) {
	defer observe("list", time.Now(), &err)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for obj := range d.client.ListObjects(ctx, d.bucket, miniogo.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		if obj.Key == prefix {
			continue
		}
		entries = append(entries, toEntry(obj))
	}
	return entries, nil
}

// Read downloads the whole object.
func (d *Driver) Read(ctx context.Context, key string) (data []byte, err error) {
	defer observe("read", time.Now(), &err)

	obj, err := d.client.GetObject(ctx, d.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	defer func() { _ = obj.Close() }()

	data, err = io.ReadAll(obj)
	if err != nil {
		return nil, mapError(err, "failed to read object")
	}
	return data, nil
}

// Write uploads data as key. Folder markers are written with no content type.
func (d *Driver) Write(ctx context.Context, key string, data []byte) (err error) {
	defer observe("write", time.Now(), &err)

	opts := miniogo.PutObjectOptions{}
	if !storage.IsDirKey(key) {
		opts.ContentType = pathmodel.ContentType(key)
	}
	_, err = d.client.PutObject(ctx, d.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		return mapError(err, "failed to put object")
	}
	metrics.RecordBytesWritten(len(data))
	return nil
}

// Delete removes key. Deleting a missing key is not an error on S3.
func (d *Driver) Delete(ctx context.Context, key string) (err error) {
	defer observe("delete", time.Now(), &err)

	if err = d.client.RemoveObject(ctx, d.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to remove object")
	}
	return nil
}

// Stat returns metadata for key.
func (d *Driver) Stat(ctx context.Context, key string) (entry storage.Entry, err error) {
	defer observe("stat", time.Now(), &err)

	info, err := d.client.StatObject(ctx, d.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return storage.Entry{}, mapError(err, "failed to stat object")
	}
	return toEntry(info), nil
}

// PresignGet returns a time-limited GET URL for key.
func (d *Driver) PresignGet(ctx context.Context, key string, ttl time.Duration) (u string, err error) {
	defer observe("presign", time.Now(), &err)

	signed, err := d.client.PresignedGetObject(ctx, d.bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to presign object")
	}
	return signed.String(), nil
}

func toEntry(obj miniogo.ObjectInfo) storage.Entry {
	e := storage.Entry{
		Path:        obj.Key,
		Size:        obj.Size,
		IsDir:       strings.HasSuffix(obj.Key, "/"),
		ContentType: obj.ContentType,
		ETag:        obj.ETag,
	}
	if !obj.LastModified.IsZero() {
		mod := obj.LastModified
		e.LastModified = &mod
	}
	return e
}
