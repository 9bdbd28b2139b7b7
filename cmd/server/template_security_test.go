package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readView(t *testing.T, path string) string {
	t.Helper()
	contentBytes, err := os.ReadFile("../../views/" + path)
	require.NoError(t, err)
	return string(contentBytes)
}

func TestTemplatesUsePinnedCDNVersions(t *testing.T) {
	for _, file := range []string{"layouts/base.html", "pages/browser.html", "pages/profiles.html", "pages/login.html"} {
		content := readView(t, file)

		assert.NotContains(t, content, "@latest", file)
		assert.NotContains(t, content, "3.x.x", file)
	}
	assert.Contains(t, readView(t, "layouts/base.html"), "htmx.org@2.0.4")
}

func TestBaseLayoutAttachesCSRFHeaderForHTMX(t *testing.T) {
	content := readView(t, "layouts/base.html")

	assert.True(t, strings.Contains(content, "htmx:configRequest") && strings.Contains(content, "X-CSRF-Token"))
}

func TestBaseLayoutDoesNotGloballyOverrideHTMXTargeting(t *testing.T) {
	content := readView(t, "layouts/base.html")

	assert.NotContains(t, content, `hx-target="#main-content"`)
	assert.NotContains(t, content, `hx-select="#main-content"`)
	assert.NotContains(t, content, `hx-swap="outerHTML"`)
}

func TestStaleListingResponsesDoNotSwap(t *testing.T) {
	content := readView(t, "layouts/base.html")

	assert.Contains(t, content, `{code: '204', swap: false}`)
}

func TestBrowserUploadProgressModalIsHiddenByDefault(t *testing.T) {
	content := readView(t, "pages/browser.html")

	assert.Contains(t, content, `id="upload-progress-modal"`)
	assert.Contains(t, content, `style="display: none;"`)
}

func TestKeysArePostedAsFormValues(t *testing.T) {
	content := readView(t, "partials/file_list.html")

	assert.Equal(t, 2, strings.Count(content, `<input type="hidden" name="key" value="{{.KeyPath}}">`))
	assert.NotContains(t, content, `hx-post="/files/delete?`)
}
