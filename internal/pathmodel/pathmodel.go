// Package pathmodel maps the flat key space of an object store onto a
// folder/file hierarchy. Everything here is pure: no I/O, and the only
// failure mode is an invalid name.
package pathmodel

import (
	"strings"

	"github.com/damacus/iron-studio/internal/errs"
)

// Segments is the ordered list of folder names from the bucket root down to
// the current browse position. The root is the empty list.
type Segments []string

// PrefixFor returns the key prefix addressed by segs: "" for the root,
// otherwise the segments joined by "/" with a trailing "/".
func PrefixFor(segs Segments) string {
	if len(segs) == 0 {
		return ""
	}
	return strings.Join(segs, "/") + "/"
}

// SegmentsFromPrefix is the inverse of PrefixFor. Empty parts are dropped so
// "a//b/" and "/a/b" both yield ["a", "b"].
func SegmentsFromPrefix(prefix string) Segments {
	var segs Segments
	for _, part := range strings.Split(prefix, "/") {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return segs
}

// NormalizePrefix turns a user supplied prefix into PrefixFor form.
func NormalizePrefix(prefix string) string {
	return PrefixFor(SegmentsFromPrefix(prefix))
}

// ValidateName checks a single path component entered by the user and
// returns it trimmed.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errs.New(errs.KindInvalidName, "name cannot be empty")
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return "", errs.New(errs.KindInvalidName, `name cannot contain "/" or "\"`)
	}
	if trimmed == "." || trimmed == ".." {
		return "", errs.New(errs.KindInvalidName, "name cannot be . or ..")
	}
	return trimmed, nil
}

// ValidateRename checks newName and rejects it when it equals the current
// name of key.
func ValidateRename(key, newName string) (string, error) {
	name, err := ValidateName(newName)
	if err != nil {
		return "", err
	}
	if name == BaseName(key) {
		return "", errs.New(errs.KindInvalidName, "new name must differ from the current name")
	}
	return name, nil
}

// ChildKey builds the key of name inside prefix. Folder keys get a trailing "/".
func ChildKey(prefix, name string, isFolder bool) (string, error) {
	valid, err := ValidateName(name)
	if err != nil {
		return "", err
	}
	key := prefix + valid
	if isFolder {
		key += "/"
	}
	return key, nil
}

// ParentPrefix returns the prefix that contains key.
// Both "a/b/c" and "a/b/c/" live in "a/b/".
func ParentPrefix(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	return trimmed[:idx+1]
}

// BaseName returns the last path component of key without a trailing "/".
func BaseName(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// Rebase moves key from under oldPrefix to under newPrefix. ok is false when
// key does not live under oldPrefix.
func Rebase(key, oldPrefix, newPrefix string) (string, bool) {
	if !strings.HasPrefix(key, oldPrefix) {
		return "", false
	}
	return newPrefix + strings.TrimPrefix(key, oldPrefix), true
}
