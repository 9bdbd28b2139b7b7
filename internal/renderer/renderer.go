package renderer

import (
	"html/template"
	"io"
	"io/fs"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/views"
)

// TemplateRenderer implements echo.Renderer
type TemplateRenderer struct {
	Templates map[string]*template.Template
}

// New creates a TemplateRenderer from the embedded views
func New() *TemplateRenderer {
	return NewFromFS(views.FS)
}

// NewFromFS parses every page and partial found in fsys. It panics on a
// template error, like template.Must.
func NewFromFS(fsys fs.FS) *TemplateRenderer {
	r := &TemplateRenderer{
		Templates: make(map[string]*template.Template),
	}
	r.parseTemplates(fsys)
	return r
}

// pages render inside the base layout.
var pages = map[string]string{
	"browser":  "browser.html",
	"profiles": "profiles.html",
	"login":    "login.html",
}

// selfExecutingTemplates lists templates that execute their own named block instead of "base"
var selfExecutingTemplates = map[string]bool{
	"file_list":           true,
	"folder_create_modal": true,
	"rename_modal":        true,
	"operation_result":    true,
	"share_link":          true,
	"object_info":         true,
	"preview":             true,
	"storage_widget":      true,
	"server_widget":       true,
	"profile_test_status": true,
	"import_result":       true,
}

func (t *TemplateRenderer) parseTemplates(fsys fs.FS) {
	for name, file := range pages {
		t.Templates[name] = template.Must(template.ParseFS(fsys,
			"layouts/base.html",
			"partials/file_list.html",
			"pages/"+file,
		))
	}
	for name := range selfExecutingTemplates {
		t.Templates[name] = template.Must(template.ParseFS(fsys, "partials/"+name+".html"))
	}
}

// Render renders a template document
func (t *TemplateRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	tmpl, ok := t.Templates[name]
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "Template not found: "+name)
	}

	// Templates that define their own named block execute that block directly
	if selfExecutingTemplates[name] {
		return tmpl.ExecuteTemplate(w, name, data)
	}
	// All other templates (pages with layout) execute the "base" block
	return tmpl.ExecuteTemplate(w, "base", data)
}
