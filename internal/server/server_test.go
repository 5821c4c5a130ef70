package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resource-matcher/internal/ai"
	"github.com/spigell/resource-matcher/internal/catalog"
	"github.com/spigell/resource-matcher/internal/identity"
	"github.com/spigell/resource-matcher/internal/matching"
	"github.com/spigell/resource-matcher/internal/metrics"
	"github.com/spigell/resource-matcher/internal/profile"
	"github.com/spigell/resource-matcher/internal/scoring"
)

type fakeSeeder struct {
	got *catalog.Resources
	err error
}

func (f *fakeSeeder) Insert(_ context.Context, r *catalog.Resources) (int, error) {
	f.got = r
	if f.err != nil {
		return 0, f.err
	}
	return r.Len(), nil
}

type failingCatalog struct{}

func (failingCatalog) ListVerified(context.Context) (*catalog.Resources, error) {
	return nil, errors.New("db down")
}

type testEnv struct {
	handler http.Handler
	store   *identity.Store
	seeder  *fakeSeeder
	metrics *metrics.Metrics
}

func setup(t *testing.T, mutate func(*Deps)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	seed, err := catalog.LoadSeed()
	require.NoError(t, err)

	env := &testEnv{
		store:   identity.NewStore(client, identity.Config{}),
		seeder:  &fakeSeeder{},
		metrics: metrics.New(),
	}
	deps := Deps{
		Catalog:     catalog.NewStatic(seed),
		Matcher:     matching.New(scoring.New(scoring.WithSeed(5))),
		Store:       env.store,
		Seeder:      env.seeder,
		SeedCatalog: seed,
		Metrics:     env.metrics,
	}
	if mutate != nil {
		mutate(&deps)
	}

	srv, err := New(Config{}, deps)
	require.NoError(t, err)
	env.handler = srv.Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Config{}, Deps{})
	assert.Error(t, err)
	_, err = New(Config{}, Deps{Catalog: failingCatalog{}})
	assert.Error(t, err)
}

func TestHealthAndRequestID(t *testing.T) {
	env := setup(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = env.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"route not found"}`, rec.Body.String())
}

func TestListResources(t *testing.T) {
	env := setup(t, nil)

	rec := env.do(t, http.MethodGet, "/api/resources?q=food&category=food", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Resources []*catalog.Resource `json:"resources"`
		Count     int                 `json:"count"`
	}
	decode(t, rec, &resp)
	require.NotZero(t, resp.Count)
	for _, res := range resp.Resources {
		assert.Equal(t, "food", res.NormalizedCategory())
	}

	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/api/resources"`)
}

func TestListResourcesGroupedByCategory(t *testing.T) {
	env := setup(t, nil)

	rec := env.do(t, http.MethodGet, "/api/resources?category=food&group=category", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Groups map[string][]map[string]string `json:"groups"`
		Count  int                            `json:"count"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Groups, 1)
	assert.Len(t, resp.Groups["food"], resp.Count)
	for _, entry := range resp.Groups["food"] {
		assert.NotEmpty(t, entry["id"])
		assert.NotEmpty(t, entry["title"])
	}
}

func TestCategories(t *testing.T) {
	env := setup(t, nil)

	rec := env.do(t, http.MethodGet, "/api/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Categories []categoryOption `json:"categories"`
	}
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Categories)
	assert.Equal(t, categoryOption{Value: catalog.CategoryAll, Label: "All categories"}, resp.Categories[0])
	assert.Contains(t, resp.Categories, categoryOption{Value: "food", Label: "food"})
	assert.Contains(t, resp.Categories, categoryOption{Value: "housing", Label: "housing"})

	failing := setup(t, func(d *Deps) { d.Catalog = failingCatalog{} })
	rec = failing.do(t, http.MethodGet, "/api/categories", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListResourcesCatalogError(t *testing.T) {
	env := setup(t, func(d *Deps) { d.Catalog = failingCatalog{} })

	rec := env.do(t, http.MethodGet, "/api/resources", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"failed to fetch resources"}`, rec.Body.String())
}

func TestOnboardingAndRecommendations(t *testing.T) {
	env := setup(t, nil)

	rec := env.do(t, http.MethodPut, "/api/users/u1/answers", map[string]any{
		"name":  "Maria",
		"email": "maria@example.com",
		"answers": map[string]any{
			"1": "Homeless",
			"2": []string{"food", "housing"},
			"3": "immediate",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var p profile.UserProfile
	decode(t, rec, &p)
	assert.Equal(t, "Maria", p.Name)
	assert.Equal(t, "homeless", p.LivingSituation())

	rec = env.do(t, http.MethodPut, "/api/users/u1/answers", map[string]any{
		"answers":   map[string]any{"6": "Two kids", "3": nil},
		"completed": true,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated profile.UserProfile
	decode(t, rec, &updated)
	assert.Empty(t, updated.Urgency())
	assert.Equal(t, "homeless", updated.LivingSituation())
	assert.Equal(t, "Two kids", updated.AdditionalDetails())

	rec = env.do(t, http.MethodPost, "/api/recommendations", map[string]string{"userId": "u1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result matching.Result
	decode(t, rec, &result)
	assert.Equal(t, ai.SourceFallback, result.Source)
	require.NotEmpty(t, result.Bundle.Recommendations)
	assert.NotEmpty(t, result.Opportunities.HiddenOpportunities)

	stored, err := env.store.Recommendations(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, result.Bundle.ResourceIDs(), stored.Recommendations.ResourceIDs())

	rec = env.do(t, http.MethodGet, "/api/users/u1/recommendations", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/users/u1/activity?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var activity struct {
		Activity []*identity.Activity `json:"activity"`
	}
	decode(t, rec, &activity)
	require.Len(t, activity.Activity, 3)
	assert.Equal(t, identity.ActionRecommendationsGenerated, activity.Activity[0].Action)
	assert.Equal(t, identity.ActionOnboardingCompleted, activity.Activity[1].Action)
	assert.Equal(t, identity.ActionProfileCreated, activity.Activity[2].Action)
}

func TestRecommendationErrors(t *testing.T) {
	env := setup(t, nil)

	cases := []struct {
		name   string
		body   any
		status int
	}{
		{name: "missing user id", body: map[string]string{}, status: http.StatusBadRequest},
		{name: "blank user id", body: map[string]string{"userId": "  "}, status: http.StatusBadRequest},
		{name: "unknown user", body: map[string]string{"userId": "ghost"}, status: http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/recommendations", tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.True(t, strings.Contains(rec.Body.String(), `"error"`), rec.Body.String())
		})
	}

	rec := env.do(t, http.MethodGet, "/api/users/ghost/recommendations", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/users/u1/activity?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSaveAnswersRejectsUnknownOptions(t *testing.T) {
	env := setup(t, nil)

	rec := env.do(t, http.MethodPut, "/api/users/u1/answers", map[string]any{
		"answers": map[string]any{"1": "castle"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	_, err := env.store.Account(context.Background(), "u1")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCreateUser(t *testing.T) {
	env := setup(t, nil)

	rec := env.do(t, http.MethodPost, "/api/users", map[string]string{"id": "u2", "name": "Ana"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/users", map[string]string{"name": "No id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStoreDisabled(t *testing.T) {
	env := setup(t, func(d *Deps) { d.Store = nil })

	rec := env.do(t, http.MethodPost, "/api/recommendations", map[string]string{"userId": "u1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSeedResources(t *testing.T) {
	env := setup(t, nil)

	rec := env.do(t, http.MethodPost, "/api/seed-resources", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool `json:"success"`
		Count   int  `json:"count"`
	}
	decode(t, rec, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, env.seeder.got.Len(), resp.Count)

	env.seeder.err = errors.New("insert failed")
	rec = env.do(t, http.MethodPost, "/api/seed-resources", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	noSeeder := setup(t, func(d *Deps) { d.Seeder = nil })
	rec = noSeeder.do(t, http.MethodPost, "/api/seed-resources", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}
