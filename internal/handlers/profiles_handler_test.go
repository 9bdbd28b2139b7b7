package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/damacus/iron-studio/internal/profiles"
	"github.com/damacus/iron-studio/internal/storage"
)

func newProfilesHandler(t *testing.T) (*ProfilesHandler, *profiles.Store) {
	store := profiles.NewMemoryStore()
	return NewProfilesHandler(store, newTestFactory(t), "localhost:9000"), store
}

func s3Form(name, secret string) string {
	return url.Values{
		"name":            {name},
		"provider":        {"s3"},
		"accessKeyId":     {"AKIA"},
		"secretAccessKey": {secret},
		"region":          {"eu-west-1"},
		"bucket":          {"photos"},
	}.Encode()
}

func TestProfiles_CreateAndList(t *testing.T) {
	h, store := newProfilesHandler(t)

	c, rec, _ := newContext(http.MethodPost, "/profiles", s3Form("Prod", "s3cret"), nil)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, 1, store.Len())

	c, _, r := newContext(http.MethodGet, "/profiles", "", nil)
	require.NoError(t, h.List(c))
	assert.Equal(t, "profiles", r.Name)
	assert.Equal(t, "localhost:9000", r.Data["DefaultEndpoint"])

	views, ok := r.Data["Profiles"].([]profileView)
	require.True(t, ok)
	require.Len(t, views, 1)
	assert.Equal(t, "Prod", views[0].Name)
	assert.True(t, views[0].HasSecret)
	assert.Empty(t, views[0].Config.SecretAccessKey)
	assert.Equal(t, "photos (eu-west-1)", views[0].Target)
}

func TestProfiles_CreateRejectsIncompleteConfig(t *testing.T) {
	h, store := newProfilesHandler(t)

	form := url.Values{"name": {"Broken"}, "provider": {"s3"}}.Encode()
	c, _, _ := newContext(http.MethodPost, "/profiles", form, nil)

	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.Create(c)))
	assert.Equal(t, 0, store.Len())
}

func TestProfiles_UpdateKeepsBlankSecret(t *testing.T) {
	h, store := newProfilesHandler(t)
	p, err := store.Add("Prod", profiles.Config{
		Provider: storage.ProviderS3, AccessKeyID: "AKIA", SecretAccessKey: "s3cret", Region: "eu-west-1", Bucket: "photos",
	})
	require.NoError(t, err)

	c, _, _ := newContext(http.MethodPost, "/profiles/"+p.ID, s3Form("Renamed", ""), nil)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	require.NoError(t, h.Update(c))

	got, err := store.Get(p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "s3cret", got.Config.SecretAccessKey)
}

func TestProfiles_Delete(t *testing.T) {
	h, store := newProfilesHandler(t)
	p, err := store.Add("Scratch", profiles.Config{Provider: storage.ProviderLocal, Root: "."})
	require.NoError(t, err)

	c, _, _ := newContext(http.MethodPost, "/profiles/"+p.ID+"/delete", "", nil)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	require.NoError(t, h.Delete(c))
	assert.Equal(t, 0, store.Len())

	assert.Equal(t, http.StatusNotFound, httpCode(t, h.Delete(c)))
}

func TestProfiles_TestConnection(t *testing.T) {
	h, store := newProfilesHandler(t)
	p, err := store.Add("Scratch", profiles.Config{Provider: storage.ProviderLocal, Root: "."})
	require.NoError(t, err)

	c, _, r := newContext(http.MethodPost, "/profiles/"+p.ID+"/test", "", nil)
	c.SetParamNames("id")
	c.SetParamValues(p.ID)
	require.NoError(t, h.Test(c))

	assert.Equal(t, "profile_test_status", r.Name)
	assert.Equal(t, "success", r.Data["Status"])
	assert.Equal(t, profiles.TestSuccess, store.TestResult(p.ID).Status)
}

func TestProfiles_TestUnknownProfile(t *testing.T) {
	h, _ := newProfilesHandler(t)

	c, _, _ := newContext(http.MethodPost, "/profiles/nope/test", "", nil)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	assert.Equal(t, http.StatusNotFound, httpCode(t, h.Test(c)))
}

func TestProfiles_ExportHidesSecretsByDefault(t *testing.T) {
	h, store := newProfilesHandler(t)
	_, err := store.Add("Prod", profiles.Config{
		Provider: storage.ProviderS3, AccessKeyID: "AKIA", SecretAccessKey: "s3cret", Region: "eu-west-1", Bucket: "photos",
	})
	require.NoError(t, err)

	c, rec, _ := newContext(http.MethodGet, "/profiles/export", "", nil)
	require.NoError(t, h.Export(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "iron-studio-profiles.json")
	assert.NotContains(t, rec.Body.String(), "s3cret")

	c, rec, _ = newContext(http.MethodGet, "/profiles/export?secrets=true", "", nil)
	require.NoError(t, h.Export(c))
	assert.Contains(t, rec.Body.String(), "s3cret")
}

func TestProfiles_Import(t *testing.T) {
	h, store := newProfilesHandler(t)
	doc := `{"version":1,"profiles":[{"name":"Scratch","config":{"provider":"local","root":"."}}]}`

	c, _, r := newContext(http.MethodPost, "/profiles/import", url.Values{"data": {doc}, "strategy": {"skip"}}.Encode(), nil)
	require.NoError(t, h.Import(c))
	assert.Equal(t, "import_result", r.Name)
	assert.Equal(t, "skip", r.Data["Strategy"])
	assert.Equal(t, 1, store.Len())
}

func TestProfiles_ImportErrors(t *testing.T) {
	h, _ := newProfilesHandler(t)

	c, _, _ := newContext(http.MethodPost, "/profiles/import", "strategy=rename", nil)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.Import(c)))

	c, _, _ = newContext(http.MethodPost, "/profiles/import", "strategy=merge&data=%7B%7D", nil)
	assert.Equal(t, http.StatusBadRequest, httpCode(t, h.Import(c)))
}
