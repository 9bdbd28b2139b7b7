package pathmodel

import (
	"sort"
	"strings"

	"github.com/damacus/iron-studio/internal/models"
	"github.com/damacus/iron-studio/internal/storage"
)

// DisplayName picks the label shown for an entry. Stores may omit Name, in
// which case the last non-empty segment of the path is used.
func DisplayName(e storage.Entry) string {
	if strings.TrimSpace(e.Name) != "" {
		return e.Name
	}
	if base := BaseName(strings.TrimSpace(e.Path)); base != "" {
		return base
	}
	// a path like "a//" has an empty base but non-empty earlier segments
	if segs := SegmentsFromPrefix(e.Path); len(segs) > 0 {
		return segs[len(segs)-1]
	}
	if e.IsDir {
		return "/"
	}
	return "Untitled"
}

// ToViewItem maps a store entry to a browser row. KeyPath is always e.Path.
func ToViewItem(e storage.Entry, ordinal int) models.ViewItem {
	name := DisplayName(e)
	item := models.ViewItem{
		ID:           e.Path,
		Name:         name,
		KeyPath:      e.Path,
		SizeBytes:    e.Size,
		LastModified: e.LastModified,
		Ordinal:      ordinal,
	}
	if e.IsDir {
		item.Kind = models.KindFolder
		item.PreviewType = models.PreviewUnsupported
		return item
	}

	item.Kind = models.KindFile
	item.Size = FormatSize(e.Size)
	contentType, preview := ClassifyContent(name)
	item.ContentType = contentType
	if e.ContentType != "" {
		item.ContentType = e.ContentType
	}
	item.PreviewType = preview
	return item
}

// ToViewItems maps a listing, folders first and then files, each group
// sorted by case-insensitive name.
func ToViewItems(entries []storage.Entry) []models.ViewItem {
	items := make([]models.ViewItem, 0, len(entries))
	for i, e := range entries {
		items = append(items, ToViewItem(e, i))
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind == models.KindFolder
		}
		return strings.ToLower(items[i].Name) < strings.ToLower(items[j].Name)
	})
	return items
}

// FilterItems keeps the items whose name contains query, ignoring case.
// An empty query returns items unchanged.
func FilterItems(items []models.ViewItem, query string) []models.ViewItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	var out []models.ViewItem
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), q) {
			out = append(out, it)
		}
	}
	return out
}

// Breadcrumbs returns one crumb per segment of prefix, each carrying the
// cumulative prefix to navigate to.
func Breadcrumbs(prefix string) []models.Breadcrumb {
	var crumbs []models.Breadcrumb
	path := ""
	for _, part := range SegmentsFromPrefix(prefix) {
		path += part + "/"
		crumbs = append(crumbs, models.Breadcrumb{
			Name: part,
			Path: path,
		})
	}
	return crumbs
}
