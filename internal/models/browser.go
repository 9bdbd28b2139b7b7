// Package models contains data structures used across handlers
package models

import "time"

// ItemKind tells files and folders apart in a listing
type ItemKind string

const (
	KindFile   ItemKind = "file"
	KindFolder ItemKind = "folder"
)

// PreviewType selects the inline viewer for a file
type PreviewType string

const (
	PreviewImage       PreviewType = "image"
	PreviewText        PreviewType = "text"
	PreviewPDF         PreviewType = "pdf"
	PreviewVideo       PreviewType = "video"
	PreviewAudio       PreviewType = "audio"
	PreviewUnsupported PreviewType = "unsupported"
)

// ViewItem is one row of the file browser, derived from a store entry
type ViewItem struct {
	// ID is the raw key, stable across refreshes
	ID   string
	Name string
	Kind ItemKind
	// KeyPath is the entry's key, used verbatim for every write-back
	KeyPath   string
	SizeBytes int64
	// Size is the human readable size, empty for folders
	Size string
	// LastModified is nil when the store did not report it
	LastModified *time.Time
	ContentType  string
	PreviewType  PreviewType
	// Ordinal is the position in the raw listing
	Ordinal int
}

// IsFolder reports whether the item is a folder
func (v ViewItem) IsFolder() bool {
	return v.Kind == KindFolder
}

// Previewable reports whether the item has an inline viewer
func (v ViewItem) Previewable() bool {
	return v.Kind == KindFile && v.PreviewType != PreviewUnsupported
}

// Modified renders LastModified for display
func (v ViewItem) Modified() string {
	if v.LastModified == nil {
		return "—"
	}
	return v.LastModified.Format("Jan 02, 2006 15:04")
}

// Breadcrumb for navigation
type Breadcrumb struct {
	Name string
	Path string
}
