package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collections-lab/georef-cli/internal/gazetteer"
	"github.com/collections-lab/georef-cli/internal/geometry"
	"github.com/collections-lab/georef-cli/internal/matcher"
	"github.com/collections-lab/georef-cli/internal/resolver"
)

type fakeGazetteer struct {
	sites map[string]*gazetteer.Site
	err   error
}

func (f *fakeGazetteer) Search(_ context.Context, params gazetteer.SearchParams) ([]*gazetteer.Site, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*gazetteer.Site
	for _, site := range f.sites {
		if strings.EqualFold(site.Name, params.Name) {
			out = append(out, site)
		}
	}
	return out, nil
}

func (f *fakeGazetteer) Get(_ context.Context, locationID string) (*gazetteer.Site, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sites[locationID], nil
}

func (f *fakeGazetteer) Close() error { return nil }

func testServer(t *testing.T, resolveErr error) *httptest.Server {
	t.Helper()

	gaz := &fakeGazetteer{sites: map[string]*gazetteer.Site{
		"5793933": {
			LocationID: "5793933",
			Name:       "Ellensburg",
			SiteClass:  "P",
			SiteKind:   "PPL",
			Geometry:   geometry.NewPoint(46.99, -120.55),
		},
	}}
	resolve := func(_ context.Context, _ *matcher.Record) (*resolver.Result, error) {
		if resolveErr != nil {
			return nil, resolveErr
		}
		return &resolver.Result{
			Geometry:    geometry.NewPoint(46.99, -120.55),
			RadiusKm:    7.1,
			Sources:     []string{"GeoNames"},
			Explanation: "Feature matched on locality.",
			Interpretations: map[string]resolver.Status{
				"5793933": resolver.StatusSelected,
			},
		}, nil
	}

	srv := httptest.NewServer(newRouter(&server{gaz: gaz, resolve: resolve}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServeHealth(t *testing.T) {
	srv := testServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestServeResolve(t *testing.T) {
	srv := testServer(t, nil)

	req := `{"country":"United States","state_province":["Washington"],"locality":"Ellensburg"}`
	resp, err := http.Post(srv.URL+"/resolve", "application/json", strings.NewReader(req))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body resolutionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.InDelta(t, 46.99, body.Latitude, 0.001)
	assert.InDelta(t, -120.55, body.Longitude, 0.001)
	assert.InDelta(t, 7.1, body.RadiusKm, 0.001)
	assert.Equal(t, []string{"GeoNames"}, body.Sources)
	assert.Equal(t, "selected", body.Interpretations["5793933"])
	assert.NotEmpty(t, body.Geometry)
}

func TestServeResolveUnresolvable(t *testing.T) {
	srv := testServer(t, eris.Wrap(resolver.ErrNoCandidates, "serve test"))

	req := `{"locality":"Nowhere Gulch"}`
	resp, err := http.Post(srv.URL+"/resolve", "application/json", strings.NewReader(req))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestServeResolveBackendError(t *testing.T) {
	srv := testServer(t, eris.New("gazetteer offline"))

	req := `{"locality":"Ellensburg"}`
	resp, err := http.Post(srv.URL+"/resolve", "application/json", strings.NewReader(req))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServeResolveBadRequest(t *testing.T) {
	srv := testServer(t, nil)

	resp, err := http.Post(srv.URL+"/resolve", "application/json", strings.NewReader("{not json"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/resolve", "application/json", strings.NewReader(`{"location_id":"x"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServeSite(t *testing.T) {
	srv := testServer(t, nil)

	resp, err := http.Get(srv.URL + "/sites/5793933")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var site gazetteer.Site
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&site))
	assert.Equal(t, "Ellensburg", site.Name)

	resp, err = http.Get(srv.URL + "/sites/999")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServeSearch(t *testing.T) {
	srv := testServer(t, nil)

	resp, err := http.Get(srv.URL + "/search?name=Ellensburg")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Sites []*gazetteer.Site `json:"sites"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Sites, 1)
	assert.Equal(t, "5793933", body.Sites[0].LocationID)

	resp, err = http.Get(srv.URL + "/search")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
