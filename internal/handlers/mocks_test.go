package handlers

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/minio/madmin-go/v3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/services"
	"github.com/damacus/iron-studio/internal/storage"
	"github.com/damacus/iron-studio/internal/utils"
)

// MockRenderer records the last template rendered
type MockRenderer struct {
	Name string
	Data map[string]interface{}
}

func (r *MockRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	r.Name = name
	r.Data, _ = data.(map[string]interface{})
	return nil
}

// MockAdminClient implements services.AdminClient
type MockAdminClient struct {
	mock.Mock
}

func (m *MockAdminClient) ServerInfo(ctx context.Context, opts ...func(*madmin.ServerInfoOpts)) (madmin.InfoMessage, error) {
	args := m.Called(ctx)
	return args.Get(0).(madmin.InfoMessage), args.Error(1)
}

func (m *MockAdminClient) DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(madmin.DataUsageInfo), args.Error(1)
}

// testFactory opens real local stores below root for every provider and
// hands out admin to anyone asking.
type testFactory struct {
	local *services.RealStoreFactory
	admin services.AdminClient
}

func newTestFactory(t *testing.T) *testFactory {
	return &testFactory{local: &services.RealStoreFactory{LocalRoot: t.TempDir()}}
}

func (f *testFactory) NewStore(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	cfg.Provider = storage.ProviderLocal
	if cfg.Root == "" {
		cfg.Root = "."
	}
	return f.local.NewStore(ctx, cfg)
}

func (f *testFactory) NewAdminClient(cfg storage.Config) (services.AdminClient, error) {
	if f.admin == nil {
		return nil, errors.New("no admin client")
	}
	return f.admin, nil
}

func localProfile(id string) profiles.Profile {
	return profiles.Profile{ID: id, Name: "Local " + id, Config: profiles.Config{Provider: storage.ProviderLocal, Root: "."}}
}

func minioProfile(id string) profiles.Profile {
	return profiles.Profile{ID: id, Name: "MinIO " + id, Config: profiles.Config{
		Provider: storage.ProviderMinIO, Endpoint: "localhost:9000", Bucket: "photos", AccessKeyID: "admin",
	}}
}

// openSession opens a session for p and returns it with its manager.
func openSession(t *testing.T, f services.StoreFactory, p profiles.Profile) (*services.SessionManager, *services.Session) {
	t.Helper()
	m := services.NewSessionManager(f, zerolog.Nop())
	sess, err := m.Open(context.Background(), p)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.CloseAll() })
	return m, sess
}

// newContext builds a context carrying sess. A non-empty form is sent
// urlencoded.
func newContext(method, target, form string, sess *services.Session) (echo.Context, *httptest.ResponseRecorder, *MockRenderer) {
	e := echo.New()
	r := &MockRenderer{}
	e.Renderer = r
	var body io.Reader
	if form != "" {
		body = strings.NewReader(form)
	}
	req := httptest.NewRequest(method, target, body)
	if form != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if sess != nil {
		c.Set(utils.ContextKeySession, sess)
	}
	return c, rec, r
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	require.True(t, ok, "expected *echo.HTTPError, got %T", err)
	return he.Code
}

