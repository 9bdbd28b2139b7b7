package services

import (
	"context"
	"strings"

	"github.com/damacus/iron-studio/internal/storage"
)

// walkError is a listing failure while enumerating a folder.
type walkError struct {
	prefix string
	err    error
}

// walk enumerates everything below prefix depth-first. Store listings are
// non-recursive, so sub-folders are listed in turn. Children always come
// before the marker of the folder holding them; prefix's own marker is not
// included. A listing that returns the folder itself or a folder already
// visited is not followed again.
func walk(ctx context.Context, st storage.Store, prefix string) ([]storage.Entry, *walkError) {
	visited := map[string]bool{prefix: true}
	var out []storage.Entry
	if werr := walkInto(ctx, st, prefix, visited, &out); werr != nil {
		return nil, werr
	}
	return out, nil
}

func walkInto(ctx context.Context, st storage.Store, prefix string, visited map[string]bool, out *[]storage.Entry) *walkError {
	entries, err := st.List(ctx, prefix)
	if err != nil {
		return &walkError{prefix: prefix, err: err}
	}
	for _, e := range entries {
		if !e.IsDir {
			if e.Path == prefix {
				continue
			}
			*out = append(*out, e)
			continue
		}

		dir := e.Path
		if !strings.HasSuffix(dir, "/") {
			dir += "/"
		}
		if visited[dir] {
			continue
		}
		visited[dir] = true
		e.Path = dir
		if strings.HasPrefix(dir, prefix) {
			if werr := walkInto(ctx, st, dir, visited, out); werr != nil {
				return werr
			}
		}
		*out = append(*out, e)
	}
	return nil
}
