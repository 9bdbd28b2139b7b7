package pathmodel

import (
	"path"
	"strings"

	"github.com/damacus/iron-studio/internal/models"
)

// PreviewSizeLimit is the largest file shown inline.
const PreviewSizeLimit = 10 * 1024 * 1024

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".json": true, ".yaml": true, ".yml": true,
	".xml": true, ".js": true, ".mjs": true, ".cjs": true, ".ts": true,
	".tsx": true, ".jsx": true, ".py": true, ".go": true, ".rs": true,
	".html": true, ".htm": true, ".css": true, ".scss": true, ".less": true,
	".sh": true, ".bash": true, ".zsh": true, ".sql": true, ".toml": true,
	".ini": true, ".env": true, ".gitignore": true, ".dockerignore": true,
	".csv": true, ".log": true, ".svg": true,
}

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".json": "application/json",
	".xml":  "application/xml",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".pdf":  "application/pdf",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".zip":  "application/zip",
	".tar":  "application/x-tar",
	".gz":   "application/gzip",
}

func extension(name string) string {
	return strings.ToLower(path.Ext(name))
}

// ContentType guesses a MIME type from the file extension.
func ContentType(name string) string {
	if t, ok := contentTypes[extension(name)]; ok {
		return t
	}
	if textExtensions[extension(name)] {
		return "text/plain"
	}
	return "application/octet-stream"
}

// ClassifyContent returns the MIME type and the inline viewer for name.
// SVG can carry script, so it is shown as source.
func ClassifyContent(name string) (string, models.PreviewType) {
	ct := ContentType(name)
	switch {
	case ct == "image/svg+xml":
		return ct, models.PreviewText
	case strings.HasPrefix(ct, "image/"):
		return ct, models.PreviewImage
	case ct == "application/pdf":
		return ct, models.PreviewPDF
	case strings.HasPrefix(ct, "video/"):
		return ct, models.PreviewVideo
	case strings.HasPrefix(ct, "audio/"):
		return ct, models.PreviewAudio
	case textExtensions[extension(name)]:
		return ct, models.PreviewText
	}
	return ct, models.PreviewUnsupported
}

// CanPreview reports whether a file of the given name and size may be
// rendered inline.
func CanPreview(name string, size int64) bool {
	if size > PreviewSizeLimit {
		return false
	}
	_, p := ClassifyContent(name)
	return p != models.PreviewUnsupported
}

// InlineSafe reports whether bytes of contentType may be served inline on
// our own origin. Only passive media qualifies.
func InlineSafe(contentType string) bool {
	switch {
	case contentType == "image/svg+xml":
		return false
	case strings.HasPrefix(contentType, "image/"),
		strings.HasPrefix(contentType, "audio/"),
		strings.HasPrefix(contentType, "video/"),
		contentType == "application/pdf":
		return true
	}
	return false
}
