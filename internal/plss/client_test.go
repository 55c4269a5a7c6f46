package plss

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collections-lab/georef-cli/internal/geometry"
	"github.com/collections-lab/georef-cli/internal/resilience"
)

const townshipResponse = `{
	"features": [
		{"attributes": {"PLSSID": "WA330020N0010E0", "STATEABBR": "WA",
			"TWNSHPNO": "002", "TWNSHPDIR": "N", "RANGENO": "001", "RANGEDIR": "E"}},
		{"attributes": {"PLSSID": "OR360020N0010E0", "STATEABBR": "OR",
			"TWNSHPNO": "002", "TWNSHPDIR": "N", "RANGENO": "001", "RANGEDIR": "E"}}
	]
}`

const sectionResponse = `{
	"spatialReference": {"wkid": 4326, "latestWkid": 4326},
	"features": [
		{"attributes": {"FRSTDIVNO": "07"},
		 "geometry": {"rings": [[
			[-122.60, 47.10], [-122.58, 47.10], [-122.58, 47.12],
			[-122.60, 47.12], [-122.60, 47.10]
		 ]]}}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(
		WithBaseURL(srv.URL),
		WithRetryConfig(resilience.RetryConfig{MaxAttempts: 1}),
	)
}

func TestGetTownships(t *testing.T) {
	var gotWhere string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/1/query"))
		gotWhere = r.URL.Query().Get("where")
		fmt.Fprint(w, townshipResponse)
	})

	ids, err := c.GetTownships(context.Background(), "WA", "T2N", "R1E")
	require.NoError(t, err)
	// The Oregon row fails the attribute check and is dropped.
	assert.Equal(t, []string{"WA330020N0010E0"}, ids)
	assert.Contains(t, gotWhere, "STATEABBR='WA'")
	assert.Contains(t, gotWhere, "TWNSHPNO='002'")
	assert.Contains(t, gotWhere, "RANGEDIR='E'")
}

func TestGetTownships_BadInput(t *testing.T) {
	t.Parallel()
	c := NewClient()
	_, err := c.GetTownships(context.Background(), "Washington", "T2N", "R1E")
	assert.Error(t, err)
	_, err = c.GetTownships(context.Background(), "WA", "T2X", "R1E")
	assert.Error(t, err)
}

func TestGetSection(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasPrefix(r.URL.Path, "/2/query"))
		where := r.URL.Query().Get("where")
		assert.Contains(t, where, "PLSSID='WA330020N0010E0'")
		assert.Contains(t, where, "FRSTDIVNO='07'")
		assert.Contains(t, where, "FRSTDIVTYP='SN'")
		fmt.Fprint(w, sectionResponse)
	})

	box, err := c.GetSection(context.Background(), "WA330020N0010E0", "Sec. 7")
	require.NoError(t, err)
	require.NotNil(t, box)
	minLat, minLng, maxLat, maxLng := box.Shape.LatLngBounds()
	assert.InDelta(t, 47.10, minLat, 1e-9)
	assert.InDelta(t, -122.60, minLng, 1e-9)
	assert.InDelta(t, 47.12, maxLat, 1e-9)
	assert.InDelta(t, -122.58, maxLng, 1e-9)
}

func TestGetSection_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"features": []}`)
	})

	box, err := c.GetSection(context.Background(), "WA330020N0010E0", "Sec. 36")
	require.NoError(t, err)
	assert.Nil(t, box)
}

func TestGetSections(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/1/") {
			fmt.Fprint(w, townshipResponse)
			return
		}
		fmt.Fprint(w, sectionResponse)
	})

	boxes, err := c.GetSections(context.Background(), "WA", "T2N", "R1E", "Sec. 7")
	require.NoError(t, err)
	require.Len(t, boxes, 1)
}

func TestGetSections_ServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.GetSections(context.Background(), "WA", "T2N", "R1E", "Sec. 7")
	assert.Error(t, err)
}

func TestQueryServiceErrorPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": 400, "message": "Invalid query"}}`)
	})

	_, err := c.GetTownships(context.Background(), "WA", "T2N", "R1E")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid query")
}

func TestWebMercatorEnvelope(t *testing.T) {
	t.Parallel()
	// Web mercator coordinates for roughly (47.1N, 122.6W).
	box, err := ringEnvelope([][]float64{
		{-13647712, 5955865}, {-13645000, 5955865},
		{-13645000, 5958000}, {-13647712, 5958000},
	}, 102100)
	require.NoError(t, err)
	minLat, minLng, maxLat, maxLng := box.Shape.LatLngBounds()
	assert.InDelta(t, 47.1, minLat, 0.1)
	assert.InDelta(t, -122.6, minLng, 0.1)
	assert.Greater(t, maxLat, minLat)
	assert.Greater(t, maxLng, minLng)

	_, err = ringEnvelope([][]float64{{0, 0}}, 9999)
	assert.Error(t, err)
}

func TestBoxSubsection(t *testing.T) {
	t.Parallel()
	shape, err := geometry.NewBox(47.0, -122.0, 47.2, -121.8)
	require.NoError(t, err)
	box := NewBox(shape)

	t.Run("quadrant", func(t *testing.T) {
		sub := box.Subsection("NE")
		minLat, minLng, maxLat, maxLng := sub.Shape.LatLngBounds()
		assert.InDelta(t, 47.1, minLat, 1e-9)
		assert.InDelta(t, -121.9, minLng, 1e-9)
		assert.InDelta(t, 47.2, maxLat, 1e-9)
		assert.InDelta(t, -121.8, maxLng, 1e-9)
	})

	t.Run("half", func(t *testing.T) {
		sub := box.Subsection("W")
		minLat, minLng, maxLat, maxLng := sub.Shape.LatLngBounds()
		assert.InDelta(t, 47.0, minLat, 1e-9)
		assert.InDelta(t, -122.0, minLng, 1e-9)
		assert.InDelta(t, 47.2, maxLat, 1e-9)
		assert.InDelta(t, -121.9, maxLng, 1e-9)
	})

	t.Run("chained quarters narrow the box", func(t *testing.T) {
		sub := box.Subsection("SW").Subsection("NE")
		assert.Less(t, sub.Shape.RadiusKm(), box.Shape.RadiusKm()/2)
	})

	t.Run("unrecognized code is a no-op", func(t *testing.T) {
		sub := box.Subsection("Q")
		assert.Equal(t, box.Shape, sub.Shape)
	})
}

func TestQuery_CircuitOpensOnServiceTrouble(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	breakerCfg.FailureThreshold = 2
	breakerCfg.ShouldTrip = resilience.IsTransient
	c := NewClient(
		WithBaseURL(srv.URL),
		WithRetryConfig(resilience.RetryConfig{MaxAttempts: 1}),
		WithCircuitBreaker(resilience.NewCircuitBreaker(breakerCfg)),
	)

	ctx := context.Background()
	_, err := c.GetTownships(ctx, "WA", "T2N", "R1E")
	assert.Error(t, err)
	_, err = c.GetTownships(ctx, "WA", "T2N", "R1E")
	assert.Error(t, err)

	// Third call is rejected without touching the service.
	before := calls
	_, err = c.GetTownships(ctx, "WA", "T2N", "R1E")
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, before, calls)
}
