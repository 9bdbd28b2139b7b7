// Package storage defines the object-store contract the file manager is
// built on, plus the connection settings shared by every driver.
//
// A Store exposes one bucket (or one local directory) as a flat key space.
// Folders do not exist natively: a folder is a zero-byte marker object whose
// key ends in "/". List returns the direct children of a prefix only.
//
// Drivers live in sub-packages:
//
//	storage/minio  - minio-go, S3-compatible endpoints
//	storage/s3     - aws-sdk-go-v2, AWS S3 and path-style endpoints
//	storage/local  - a directory on disk, supports native rename
package storage

import (
	"context"
	"strings"
	"time"
)

// Entry is one item of a listing. Entries are produced only by drivers.
type Entry struct {
	// Path is the full key, relative to the bucket root.
	// Directory entries end in "/".
	Path string
	// Name is the display name reported by the store, may be empty.
	Name string
	Size int64
	// IsDir is true for folder markers and common prefixes.
	IsDir bool
	// LastModified is nil when the store does not report it.
	LastModified *time.Time
	ContentType  string
	ETag         string
}

// Store is the primitive object-store API. Implementations must not retry.
type Store interface {
	// List returns the direct children of prefix. The prefix's own marker
	// is never part of the result.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Read(ctx context.Context, key string) ([]byte, error)
	// Write creates or replaces key. Writing an empty body to a key ending
	// in "/" creates a folder marker.
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Stat(ctx context.Context, key string) (Entry, error)
	// Close releases the handle. Further calls are undefined.
	Close() error
}

// Renamer is implemented by stores that can move a key (or a whole folder
// prefix) in one native call.
type Renamer interface {
	Rename(ctx context.Context, from, to string) error
}

// Presigner is implemented by stores that can mint time-limited public URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Pinger is implemented by stores that can check connectivity without
// touching any key.
type Pinger interface {
	Ping(ctx context.Context) error
}

// IsDirKey reports whether key follows the folder-marker convention.
func IsDirKey(key string) bool {
	return strings.HasSuffix(key, "/")
}

// Provider selects the driver used for a profile.
type Provider string

const (
	ProviderMinIO Provider = "minio"
	ProviderS3    Provider = "s3"
	ProviderLocal Provider = "local"
)

// Valid reports whether p names a known driver.
func (p Provider) Valid() bool {
	switch p {
	case ProviderMinIO, ProviderS3, ProviderLocal:
		return true
	}
	return false
}

// Config holds the connection settings for one store handle.
type Config struct {
	Provider     Provider
	Endpoint     string // host:port for minio, URL for s3 (optional)
	Region       string
	Bucket       string
	AccessKey    string
	SecretKey    string
	SessionToken string
	UseSSL       bool
	// Root is the directory served by the local driver.
	Root string
}
