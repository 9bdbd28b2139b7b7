// Package views holds the HTML templates, embedded into the binary.
package views

import "embed"

// FS contains layouts/, pages/ and partials/.
//
//go:embed layouts pages partials
var FS embed.FS
