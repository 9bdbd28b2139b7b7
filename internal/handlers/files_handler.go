package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/logger"
	"github.com/damacus/iron-studio/internal/models"
	"github.com/damacus/iron-studio/internal/pathmodel"
	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/storage"
)

type FilesHandler struct {
	ops           *services.FileOperations
	maxUploadSize int64
	maxShareTTL   time.Duration
}

func NewFilesHandler(ops *services.FileOperations, maxUploadSize int64, maxShareTTL time.Duration) *FilesHandler {
	return &FilesHandler{ops: ops, maxUploadSize: maxUploadSize, maxShareTTL: maxShareTTL}
}

// prefixParam reads ?prefix=, falling back to the session's current path.
func prefixParam(c echo.Context, sess *services.Session) string {
	if p, ok := c.QueryParams()["prefix"]; ok && len(p) > 0 {
		return pathmodel.NormalizePrefix(p[0])
	}
	return sess.Prefix()
}

func (h *FilesHandler) listingData(c echo.Context, sess *services.Session, snap services.ListingSnapshot, err error) map[string]interface{} {
	p := sess.Profile()
	prefix := sess.Prefix()
	query := c.QueryParam("q")
	data := map[string]interface{}{
		"ActiveNav":   "files",
		"ProfileName": p.Name,
		"Provider":    string(p.Config.Provider),
		"Target":      p.Config.Target(),
		"Prefix":      prefix,
		"Breadcrumbs": pathmodel.Breadcrumbs(prefix),
		"Items":       pathmodel.FilterItems(snap.Items, query),
		"Query":       query,
		"Operation":   sess.Tracker.Status(),
	}
	if err != nil {
		data["Error"] = err.Error()
	}
	return data
}

// Browse renders the file browser at ?prefix=, optionally filtered by ?q=
func (h *FilesHandler) Browse(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	sess.Navigate(pathmodel.SegmentsFromPrefix(prefixParam(c, sess)))
	snap, applied, err := sess.Refresh(c.Request().Context(), h.ops)
	if err != nil && errs.IsSessionClosed(err) {
		return failure(c, err)
	}
	pending := false
	if !applied {
		snap, pending = visibleListing(snap, sess.Prefix())
		err = nil
	}

	name := "browser"
	if c.Request().Header.Get("HX-Target") == "file-list" {
		name = "file_list"
	}
	data := h.listingData(c, sess, snap, err)
	data["Pending"] = pending
	return c.Render(http.StatusOK, name, data)
}

// visibleListing keeps a snapshot that lost the fetch race only when it
// shows the folder being rendered. Otherwise the page renders pending and
// loads the listing itself.
func visibleListing(snap services.ListingSnapshot, prefix string) (services.ListingSnapshot, bool) {
	if snap.Valid && snap.Prefix == prefix {
		return snap, false
	}
	return services.ListingSnapshot{Prefix: prefix, Loading: true}, true
}

// Listing re-fetches the current directory. A fetch overtaken by a newer
// fetch or by a mutation answers 204 and leaves the page as it is.
func (h *FilesHandler) Listing(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	sess.Navigate(pathmodel.SegmentsFromPrefix(prefixParam(c, sess)))
	snap, applied, err := sess.Refresh(c.Request().Context(), h.ops)
	if err != nil && errs.IsSessionClosed(err) {
		return failure(c, err)
	}
	if !applied {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Render(http.StatusOK, "file_list", h.listingData(c, sess, snap, err))
}

// Upload handles one or more files posted as "files" (or "file")
func (h *FilesHandler) Upload(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadSize)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Upload exceeds %s", pathmodel.FormatSize(h.maxUploadSize)))
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid upload form")
	}
	files := append(form.File["files"], form.File["file"]...)
	if len(files) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "No file uploaded")
	}

	uploads := make([]services.Upload, len(files))
	for i, fh := range files {
		uploads[i] = services.Upload{Name: fh.Filename, Open: openPart(fh)}
	}

	prefix := prefixParam(c, sess)
	ctx := req.Context()
	res, err := sess.Run(services.OpUpload, prefix, func(st storage.Store) *services.Result {
		return h.ops.UploadFiles(ctx, st, prefix, uploads)
	})
	return respond(c, prefix, res, err)
}

func openPart(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return fh.Open()
	}
}

// CreateFolderModal shows the folder creation modal
func (h *FilesHandler) CreateFolderModal(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "folder_create_modal", map[string]interface{}{
		"Prefix": prefixParam(c, sess),
	})
}

// CreateFolder writes a folder marker below ?prefix=
func (h *FilesHandler) CreateFolder(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	prefix := prefixParam(c, sess)
	name := c.FormValue("folderName")
	ctx := c.Request().Context()
	res, err := sess.Run(services.OpCreateFolder, prefix, func(st storage.Store) *services.Result {
		return h.ops.CreateFolder(ctx, st, prefix, name)
	})
	return respond(c, prefix, res, err)
}

// Delete removes a file, or a folder and everything below it
func (h *FilesHandler) Delete(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	key := c.FormValue("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Key is required")
	}
	ctx := c.Request().Context()
	res, err := sess.Run(services.OpDelete, key, func(st storage.Store) *services.Result {
		return h.ops.DeleteEntry(ctx, st, key)
	})
	return respond(c, sess.Prefix(), res, err)
}

// RenameModal shows the rename dialog prefilled with the current name
func (h *FilesHandler) RenameModal(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Key is required")
	}
	return c.Render(http.StatusOK, "rename_modal", map[string]interface{}{
		"Key":      key,
		"Name":     pathmodel.BaseName(key),
		"IsFolder": storage.IsDirKey(key),
	})
}

// Rename renames a file or folder within its parent folder
func (h *FilesHandler) Rename(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	key := c.FormValue("key")
	newName := c.FormValue("newName")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Key is required")
	}
	ctx := c.Request().Context()
	res, err := sess.Run(services.OpRename, key, func(st storage.Store) *services.Result {
		return h.ops.RenameEntry(ctx, st, key, newName)
	})
	return respond(c, sess.Prefix(), res, err)
}

// Download sends a file as an attachment
func (h *FilesHandler) Download(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	var fc *services.FileContent
	err = sess.With(func(st storage.Store) error {
		var rerr error
		fc, rerr = h.ops.ReadFile(c.Request().Context(), st, c.QueryParam("key"))
		return rerr
	})
	if err != nil {
		return failure(c, err)
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fc.Name))
	c.Response().Header().Set(echo.HeaderContentLength, strconv.Itoa(len(fc.Data)))
	return c.Blob(http.StatusOK, fc.ContentType, fc.Data)
}

// DownloadZip streams a folder as a ZIP archive
func (h *FilesHandler) DownloadZip(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	prefix := prefixParam(c, sess)
	ctx := c.Request().Context()
	err = sess.With(func(st storage.Store) error {
		files, err := h.ops.FolderFiles(ctx, st, prefix)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return errs.New(errs.KindNotFound, "no files to download below "+prefix)
		}

		zipName := services.ArchiveName(sess.Profile().Config.Bucket, prefix)
		c.Response().Header().Set(echo.HeaderContentType, "application/zip")
		c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", zipName))
		c.Response().WriteHeader(http.StatusOK)

		// Headers are sent; a failure can only be logged.
		if err := h.ops.WriteZip(ctx, st, prefix, files, c.Response()); err != nil {
			logger.FromContext(ctx).Error().Err(err).Str("prefix", prefix).Msg("zip download aborted")
		}
		return nil
	})
	if err != nil {
		return failure(c, err)
	}
	return nil
}

// Preview renders small text, image, audio, video and PDF files inline
func (h *FilesHandler) Preview(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	var fc *services.FileContent
	err = sess.With(func(st storage.Store) error {
		var perr error
		fc, perr = h.ops.Preview(c.Request().Context(), st, c.QueryParam("key"))
		return perr
	})
	if err != nil {
		return failure(c, err)
	}

	if c.QueryParam("raw") == "1" {
		return rawPreview(c, fc)
	}
	data := map[string]interface{}{
		"Key":         fc.Key,
		"Name":        fc.Name,
		"ContentType": fc.ContentType,
		"Preview":     string(fc.Preview),
	}
	if fc.Preview == models.PreviewText {
		data["Text"] = string(fc.Data)
	}
	return c.Render(http.StatusOK, "preview", data)
}

// rawPreviewPolicy applies to file bytes served from our origin.
const rawPreviewPolicy = "sandbox; default-src 'none'; img-src 'self'; media-src 'self'; frame-ancestors 'self'"

// rawPreview serves passive media inline for the viewer. Anything else is
// sent as a download so stored markup never runs on our origin.
func rawPreview(c echo.Context, fc *services.FileContent) error {
	headers := c.Response().Header()
	headers.Set("Content-Security-Policy", rawPreviewPolicy)
	if pathmodel.InlineSafe(fc.ContentType) {
		headers.Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", fc.Name))
		return c.Blob(http.StatusOK, fc.ContentType, fc.Data)
	}
	headers.Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fc.Name))
	return c.Blob(http.StatusOK, echo.MIMEOctetStream, fc.Data)
}

// Info returns the properties of a file or folder
func (h *FilesHandler) Info(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	key := c.QueryParam("key")
	err = sess.With(func(st storage.Store) error {
		item, entry, ierr := h.ops.Info(c.Request().Context(), st, key)
		if ierr != nil {
			return ierr
		}
		return c.Render(http.StatusOK, "object_info", map[string]interface{}{
			"Key":          key,
			"Name":         item.Name,
			"IsFolder":     item.IsFolder(),
			"Size":         pathmodel.FormatSize(entry.Size),
			"ContentType":  item.ContentType,
			"ETag":         entry.ETag,
			"LastModified": item.Modified(),
			"Reference":    keyReference(sess.Profile().Config, key),
		})
	})
	if err != nil {
		return failure(c, err)
	}
	return nil
}

// Share creates a presigned URL for sharing a file
func (h *FilesHandler) Share(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	key := c.FormValue("key")
	var ttl time.Duration
	if s := c.FormValue("expires"); s != "" {
		if secs, perr := strconv.ParseInt(s, 10, 64); perr == nil && secs > 0 {
			ttl = time.Duration(secs) * time.Second
		}
	}

	var link *services.ShareLink
	err = sess.With(func(st storage.Store) error {
		var serr error
		link, serr = h.ops.Share(c.Request().Context(), st, key, ttl, h.maxShareTTL)
		return serr
	})
	if err != nil {
		return failure(c, err)
	}

	return c.Render(http.StatusOK, "share_link", map[string]interface{}{
		"URL":            link.URL,
		"ObjectKey":      link.Key,
		"ExpiresAt":      link.ExpiresAt.Format("Jan 02, 2006 15:04 MST"),
		"ExpiresDisplay": formatExpiration(link.TTL),
	})
}

// CopyURI returns the scheme://bucket/key reference of an entry as text
func (h *FilesHandler) CopyURI(c echo.Context) error {
	sess, err := GetSession(c)
	if err != nil {
		return err
	}

	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Key is required")
	}
	return c.String(http.StatusOK, keyReference(sess.Profile().Config, key))
}

func keyReference(cfg profiles.Config, key string) string {
	if cfg.Provider == storage.ProviderLocal {
		return services.CopyKeyReference("file", cfg.Root, key)
	}
	return services.CopyKeyReference("s3", cfg.Bucket, key)
}

// formatExpiration formats duration for display
func formatExpiration(d time.Duration) string {
	if d >= 24*time.Hour {
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	if d >= time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	minutes := int(d.Minutes())
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
