package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLocations() []Location {
	return []Location{
		{ID: "miraflores", Name: "Miraflores", Lat: -12.1203, Lng: -77.0282},
		{ID: "barranco", Name: "Barranco", Lat: -12.1406, Lng: -77.0214},
		{ID: "san_isidro", Name: "San Isidro", Lat: -12.1040, Lng: -77.0348},
	}
}

func TestLookupByNameIsCaseSensitive(t *testing.T) {
	c := New()
	c.Replace(testLocations())

	loc, ok := c.LookupByName("Miraflores")
	require.True(t, ok)
	assert.Equal(t, "miraflores", loc.ID)

	_, ok = c.LookupByName("miraflores")
	assert.False(t, ok)
}

func TestLookupByNameFold(t *testing.T) {
	c := New()
	c.Replace(testLocations())

	loc, ok := c.LookupByNameFold("  MIRAFLORES ")
	require.True(t, ok)
	assert.Equal(t, "Miraflores", loc.Name)
}

func TestReplaceDuplicateNameLastWins(t *testing.T) {
	c := New()
	c.Replace([]Location{
		{ID: "a", Name: "Surco", Lat: -12.10, Lng: -77.00},
		{ID: "b", Name: "Surco", Lat: -12.1339, Lng: -76.9931},
	})

	require.Equal(t, 1, c.Len())
	loc, ok := c.LookupByName("Surco")
	require.True(t, ok)
	assert.Equal(t, "b", loc.ID)
	assert.InDelta(t, -76.9931, loc.Lng, 1e-9)
}

func TestReplaceDropsInvalidEntries(t *testing.T) {
	c := New()
	c.Replace([]Location{
		{Name: "", Lat: -12.1, Lng: -77.0},
		{Name: "Nowhere", Lat: 120.0, Lng: -77.0},
		{Name: "Lince", Lat: -12.0876, Lng: -77.0364},
	})
	assert.Equal(t, 1, c.Len())
}

func TestSnapNearest(t *testing.T) {
	c := New()
	c.Replace(testLocations())

	// A point a few hundred meters from Miraflores.
	loc, ok := c.SnapNearest(-12.1200, -77.0280, 20)
	require.True(t, ok)
	assert.Equal(t, "Miraflores", loc.Name)
}

func TestSnapNearestBound(t *testing.T) {
	c := New()
	c.Replace(testLocations())

	// Cusco is hundreds of kilometers from every catalog entry.
	_, ok := c.SnapNearest(-13.53, -71.97, 20)
	assert.False(t, ok)

	// Unbounded snap still returns the minimum.
	loc, ok := c.SnapNearest(-13.53, -71.97, 0)
	require.True(t, ok)
	assert.NotEmpty(t, loc.Name)
}

func TestSnapNearestEmptyCatalog(t *testing.T) {
	c := New()
	_, ok := c.SnapNearest(-12.12, -77.03, 20)
	assert.False(t, ok)
}

func TestSnapNearestTieFirstWins(t *testing.T) {
	c := New()
	c.Replace([]Location{
		{ID: "first", Name: "Cercado de Lima", Lat: -12.0464, Lng: -77.0428},
		{ID: "second", Name: "Centro de Lima", Lat: -12.0464, Lng: -77.0428},
	})

	loc, ok := c.SnapNearest(-12.0464, -77.0428, 20)
	require.True(t, ok)
	assert.Equal(t, "first", loc.ID)
}

func TestLoaderUsesSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"miraflores","nombre":"Miraflores","lat":-12.1203,"lng":-77.0282}]`))
	}))
	defer srv.Close()

	loader := NewLoader(srv.URL, zap.NewNop())
	locations := loader.Load(context.Background())

	require.Len(t, locations, 1)
	assert.Equal(t, "Miraflores", locations[0].Name)
}

func TestLoaderFallsBackOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	loader := NewLoader(srv.URL, zap.NewNop())
	locations := loader.Load(context.Background())

	assert.Equal(t, Fallback, locations)
}

func TestLoaderFallsBackOnEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	loader := NewLoader(srv.URL, zap.NewNop())
	assert.Equal(t, Fallback, loader.Load(context.Background()))
}

func TestLoaderFallsBackOnUnreachableSource(t *testing.T) {
	loader := NewLoader("http://127.0.0.1:1/nodes", zap.NewNop())
	assert.Equal(t, Fallback, loader.Load(context.Background()))
}
