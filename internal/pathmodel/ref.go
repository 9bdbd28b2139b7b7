package pathmodel

import "strings"

// Ref identifies a key as either a file or a folder. The two variants are
// told apart only by the trailing slash of the key.
type Ref interface {
	Key() string
	isRef()
}

// FileRef is a key without a trailing slash.
type FileRef struct {
	key string
}

func (r FileRef) Key() string { return r.key }
func (FileRef) isRef()        {}

// FolderRef is a folder marker key. Prefix and Key are the same string.
type FolderRef struct {
	prefix string
}

func (r FolderRef) Key() string    { return r.prefix }
func (r FolderRef) Prefix() string { return r.prefix }
func (FolderRef) isRef()           {}

// RefFor classifies key.
func RefFor(key string) Ref {
	if strings.HasSuffix(key, "/") {
		return FolderRef{prefix: key}
	}
	return FileRef{key: key}
}
