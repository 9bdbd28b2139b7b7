package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/damacus/iron-studio/internal/errs"
	"github.com/damacus/iron-studio/internal/metrics"
	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/storage"
)

// maxImportSize caps an uploaded profiles file.
const maxImportSize = 1 << 20

type ProfilesHandler struct {
	store           *profiles.Store
	factory         services.StoreFactory
	defaultEndpoint string
}

func NewProfilesHandler(store *profiles.Store, factory services.StoreFactory, defaultEndpoint string) *ProfilesHandler {
	return &ProfilesHandler{store: store, factory: factory, defaultEndpoint: defaultEndpoint}
}

// profileView is a profile as the list page shows it. Secrets are removed.
type profileView struct {
	ID        string
	Name      string
	Config    profiles.Config
	Target    string
	Active    bool
	HasSecret bool
	Test      profiles.TestResult
}

func (h *ProfilesHandler) views() []profileView {
	active, _ := h.store.Active()
	list := h.store.List()
	out := make([]profileView, len(list))
	for i, p := range list {
		out[i] = profileView{
			ID:        p.ID,
			Name:      p.Name,
			Config:    p.Config.Redacted(),
			Target:    p.Config.Target(),
			Active:    p.ID == active.ID,
			HasSecret: p.Config.SecretAccessKey != "",
			Test:      h.store.TestResult(p.ID),
		}
	}
	return out
}

// List renders the profile manager
func (h *ProfilesHandler) List(c echo.Context) error {
	return c.Render(http.StatusOK, "profiles", map[string]interface{}{
		"ActiveNav":       "profiles",
		"Profiles":        h.views(),
		"DefaultEndpoint": h.defaultEndpoint,
		"Providers":       []storage.Provider{storage.ProviderS3, storage.ProviderMinIO, storage.ProviderLocal},
	})
}

// configFromForm reads connection settings posted by the profile form.
func configFromForm(c echo.Context) profiles.Config {
	cfg := profiles.Config{
		Provider:        storage.Provider(c.FormValue("provider")),
		AccessKeyID:     c.FormValue("accessKeyId"),
		SecretAccessKey: c.FormValue("secretAccessKey"),
		SessionToken:    c.FormValue("sessionToken"),
		Region:          c.FormValue("region"),
		Bucket:          c.FormValue("bucket"),
		Endpoint:        c.FormValue("endpoint"),
		Root:            c.FormValue("root"),
	}
	switch strings.ToLower(c.FormValue("useSSL")) {
	case "on", "true", "1":
		v := true
		cfg.UseSSL = &v
	case "off", "false", "0":
		v := false
		cfg.UseSSL = &v
	}
	return cfg
}

// Create adds a profile
func (h *ProfilesHandler) Create(c echo.Context) error {
	if _, err := h.store.Add(c.FormValue("name"), configFromForm(c)); err != nil {
		return failure(c, err)
	}
	return redirect(c, "/profiles")
}

// Update edits profile :id. A blank secret keeps the stored one.
func (h *ProfilesHandler) Update(c echo.Context) error {
	if _, err := h.store.Update(c.Param("id"), c.FormValue("name"), configFromForm(c)); err != nil {
		return failure(c, err)
	}
	return redirect(c, "/profiles")
}

// Delete removes profile :id
func (h *ProfilesHandler) Delete(c echo.Context) error {
	if err := h.store.Delete(c.Param("id")); err != nil {
		return failure(c, err)
	}
	return redirect(c, "/profiles")
}

// Test opens a throwaway connection with profile :id and records the outcome
func (h *ProfilesHandler) Test(c echo.Context) error {
	p, err := h.store.Get(c.Param("id"))
	if err != nil {
		return failure(c, err)
	}

	h.store.SetTestResult(p.ID, profiles.TestResult{Status: profiles.TestRunning, TestedAt: time.Now()})
	result := profiles.TestResult{Status: profiles.TestSuccess, Message: "Connected", TestedAt: time.Now()}
	if err := services.TestConnection(c.Request().Context(), h.factory, p); err != nil {
		result = profiles.TestResult{Status: profiles.TestError, Message: err.Error(), TestedAt: time.Now()}
	}
	h.store.SetTestResult(p.ID, result)
	metrics.RecordProfileTest(result.Status == profiles.TestSuccess)

	return c.Render(http.StatusOK, "profile_test_status", map[string]interface{}{
		"ID":     p.ID,
		"Status": string(result.Status),
		"Result": result,
	})
}

// Export downloads all profiles as JSON. ?secrets=1 includes secret keys.
func (h *ProfilesHandler) Export(c echo.Context) error {
	include, _ := strconv.ParseBool(c.QueryParam("secrets"))
	exp := h.store.Export(include)

	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="iron-studio-profiles.json"`)
	return c.JSONPretty(http.StatusOK, exp, "  ")
}

// Import reads a profiles file posted as "file" or pasted as "data"
func (h *ProfilesHandler) Import(c echo.Context) error {
	strategy, err := profiles.ParseStrategy(c.FormValue("strategy"))
	if err != nil {
		return failure(c, err)
	}

	data, err := importPayload(c)
	if err != nil {
		return failure(c, err)
	}

	res, err := h.store.Import(data, strategy)
	if err != nil {
		return failure(c, err)
	}
	return c.Render(http.StatusOK, "import_result", map[string]interface{}{
		"Result":   res,
		"Strategy": string(strategy),
	})
}

func importPayload(c echo.Context) ([]byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "cannot open uploaded file", err)
		}
		defer func() { _ = f.Close() }()
		data, err := io.ReadAll(io.LimitReader(f, maxImportSize+1))
		if err != nil {
			return nil, errs.Wrap(errs.KindInvalidInput, "cannot read uploaded file", err)
		}
		if len(data) > maxImportSize {
			return nil, errs.New(errs.KindInvalidInput, "profiles file is too large")
		}
		return data, nil
	}
	if s := c.FormValue("data"); strings.TrimSpace(s) != "" {
		return []byte(s), nil
	}
	return nil, errs.New(errs.KindInvalidInput, "no profiles file provided")
}
