package resolver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/TransPort-Lima/service-rides/internal/catalog"
	"github.com/TransPort-Lima/service-rides/internal/domain/geo"
	"github.com/TransPort-Lima/service-rides/internal/routing"
)

type fakeGeocoder struct {
	mu           sync.Mutex
	reverseFn    func(lat, lng float64) (string, error)
	forwardFn    func(query string) (geo.Point, bool, error)
	forwardCalls []string
}

func (f *fakeGeocoder) Reverse(_ context.Context, lat, lng float64) (string, error) {
	f.mu.Lock()
	fn := f.reverseFn
	f.mu.Unlock()
	if fn == nil {
		return "", nil
	}
	return fn(lat, lng)
}

func (f *fakeGeocoder) Forward(_ context.Context, query string) (geo.Point, bool, error) {
	f.mu.Lock()
	f.forwardCalls = append(f.forwardCalls, query)
	fn := f.forwardFn
	f.mu.Unlock()
	if fn == nil {
		return geo.Point{}, false, nil
	}
	return fn(query)
}

func (f *fakeGeocoder) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.forwardCalls))
	copy(out, f.forwardCalls)
	return out
}

type fakePreviewer struct{}

func (fakePreviewer) Preview(_ context.Context, from, to geo.Point) routing.Preview {
	return routing.Preview{
		Kind:       routing.PreviewEstimate,
		Points:     []geo.Point{from, to},
		DistanceKm: geo.Haversine(from, to),
	}
}

type recordingListener struct {
	mu         sync.Mutex
	selections []Selection
	previews   []routing.Preview
	validity   []bool
	advisories []string
}

func (l *recordingListener) SelectionChanged(_ Role, sel Selection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.selections = append(l.selections, sel)
}

func (l *recordingListener) PreviewChanged(p routing.Preview) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.previews = append(l.previews, p)
}

func (l *recordingListener) ValidityChanged(valid bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.validity = append(l.validity, valid)
}

func (l *recordingListener) Advisory(severity, _ string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.advisories = append(l.advisories, severity)
}

func (l *recordingListener) lastValidity() (bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.validity) == 0 {
		return false, false
	}
	return l.validity[len(l.validity)-1], true
}

func (l *recordingListener) lastPreview() (routing.Preview, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.previews) == 0 {
		return routing.Preview{}, false
	}
	return l.previews[len(l.previews)-1], true
}

func (l *recordingListener) advisoryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.advisories)
}

func testCatalog() *catalog.Catalog {
	cat := catalog.New()
	cat.Replace(catalog.Fallback)
	return cat
}

func newTestSession(t *testing.T, gc Geocoder, l Listener) *Session {
	t.Helper()
	cfg := Config{SnapMaxKm: 20, Debounce: 20 * time.Millisecond, MinQueryLen: 3}
	return NewSession(cfg, testCatalog(), gc, fakePreviewer{}, l, zap.NewNop())
}

func TestSessionMapClickSnapsToCatalog(t *testing.T) {
	gc := &fakeGeocoder{reverseFn: func(lat, lng float64) (string, error) {
		return "Av. Larco 400, Miraflores, Lima", nil
	}}
	s := newTestSession(t, gc, nil)

	sel, err := s.SetPointFromCoords(context.Background(), RoleOrigin, -12.1196, -77.0365)
	require.NoError(t, err)

	assert.Equal(t, StateBoundToCoords, sel.State)
	assert.Equal(t, "Miraflores", sel.ResolvedName)
	assert.Equal(t, "Av. Larco 400, Miraflores, Lima", sel.DisplayAddress)
	assert.Equal(t, sel.DisplayAddress, s.DisplayText(RoleOrigin))
}

func TestSessionMapClickFarFromAnyNode(t *testing.T) {
	gc := &fakeGeocoder{}
	s := newTestSession(t, gc, nil)

	// Cusco is well outside the snap bound around Lima.
	sel, err := s.SetPointFromCoords(context.Background(), RoleOrigin, -13.5320, -71.9675)
	require.NoError(t, err)

	assert.Equal(t, StateBoundToCoords, sel.State)
	assert.Empty(t, sel.ResolvedName)
	assert.Equal(t, "-13.53200, -71.96750", sel.DisplayAddress)
}

func TestSessionReverseGeocodeFailureDegrades(t *testing.T) {
	gc := &fakeGeocoder{reverseFn: func(lat, lng float64) (string, error) {
		return "", assert.AnError
	}}
	s := newTestSession(t, gc, nil)

	sel, err := s.SetPointFromCoords(context.Background(), RoleDestination, -12.1196, -77.0365)
	require.NoError(t, err)

	assert.Equal(t, "Miraflores", sel.ResolvedName)
	assert.Equal(t, "-12.11960, -77.03650", sel.DisplayAddress)
}

func TestSessionPickLocationMatchesClickAtSameCoords(t *testing.T) {
	gc := &fakeGeocoder{reverseFn: func(lat, lng float64) (string, error) {
		return "Parque Kennedy, Miraflores", nil
	}}
	s := newTestSession(t, gc, nil)
	ctx := context.Background()

	picked, err := s.PickLocation(ctx, RoleOrigin, "Miraflores")
	require.NoError(t, err)

	clicked, err := s.SetPointFromCoords(ctx, RoleDestination, picked.Lat, picked.Lng)
	require.NoError(t, err)

	assert.Equal(t, StateBoundToLocation, picked.State)
	assert.Equal(t, StateBoundToCoords, clicked.State)
	assert.Equal(t, picked.ResolvedName, clicked.ResolvedName)
	assert.Equal(t, picked.DisplayAddress, clicked.DisplayAddress)
}

func TestSessionPickUnknownLocation(t *testing.T) {
	s := newTestSession(t, &fakeGeocoder{}, nil)

	_, err := s.PickLocation(context.Background(), RoleOrigin, "Atlantis")
	assert.Error(t, err)
}

func TestSessionResolutionIsIdempotent(t *testing.T) {
	gc := &fakeGeocoder{reverseFn: func(lat, lng float64) (string, error) {
		return "Jr. de la Unión 500", nil
	}}
	s := newTestSession(t, gc, nil)
	ctx := context.Background()

	first, err := s.SetPointFromCoords(ctx, RoleOrigin, -12.0464, -77.0428)
	require.NoError(t, err)
	second, err := s.SetPointFromCoords(ctx, RoleOrigin, -12.0464, -77.0428)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestSessionTypedTextDebounce(t *testing.T) {
	gc := &fakeGeocoder{forwardFn: func(query string) (geo.Point, bool, error) {
		return geo.Point{Lat: -12.1196, Lng: -77.0365}, true, nil
	}}
	s := newTestSession(t, gc, nil)
	ctx := context.Background()

	require.NoError(t, s.SetTypedText(ctx, RoleOrigin, "Av. Are"))
	require.NoError(t, s.SetTypedText(ctx, RoleOrigin, "Av. Arequi"))
	require.NoError(t, s.SetTypedText(ctx, RoleOrigin, "Av. Arequipa 1234"))

	time.Sleep(100 * time.Millisecond)

	calls := gc.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Av. Arequipa 1234", calls[0])
	assert.Equal(t, "Miraflores", s.Selection(RoleOrigin).ResolvedName)
}

// ctxCheckedGeocoder fails any call whose context is already done, like a
// real HTTP client would.
type ctxCheckedGeocoder struct {
	inner fakeGeocoder
}

func (g *ctxCheckedGeocoder) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return g.inner.Reverse(ctx, lat, lng)
}

func (g *ctxCheckedGeocoder) Forward(ctx context.Context, query string) (geo.Point, bool, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, false, err
	}
	return g.inner.Forward(ctx, query)
}

func TestSessionTypedTextResolvesAfterCallerContextEnds(t *testing.T) {
	gc := &ctxCheckedGeocoder{inner: fakeGeocoder{forwardFn: func(query string) (geo.Point, bool, error) {
		return geo.Point{Lat: -12.1196, Lng: -77.0365}, true, nil
	}}}
	s := newTestSession(t, gc, nil)

	// Request-scoped contexts are cancelled as soon as the handler
	// returns, well before the debounce window elapses.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.SetTypedText(ctx, RoleOrigin, "Av. Arequipa 1234"))
	cancel()

	time.Sleep(100 * time.Millisecond)

	calls := gc.inner.calls()
	require.Len(t, calls, 1)
	sel := s.Selection(RoleOrigin)
	assert.Equal(t, StateBoundToCoords, sel.State)
	assert.Equal(t, "Miraflores", sel.ResolvedName)
}

func TestSessionTypedExactCatalogNameSkipsGeocoder(t *testing.T) {
	gc := &fakeGeocoder{}
	s := newTestSession(t, gc, nil)

	require.NoError(t, s.SetTypedText(context.Background(), RoleDestination, "Barranco"))
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, gc.calls())
	sel := s.Selection(RoleDestination)
	assert.Equal(t, StateBoundToLocation, sel.State)
	assert.Equal(t, "Barranco", sel.ResolvedName)
}

func TestSessionTypedTextMissClearsName(t *testing.T) {
	gc := &fakeGeocoder{forwardFn: func(query string) (geo.Point, bool, error) {
		return geo.Point{}, false, nil
	}}
	listener := &recordingListener{}
	s := newTestSession(t, gc, listener)
	ctx := context.Background()

	_, err := s.SetPointFromCoords(ctx, RoleOrigin, -12.1196, -77.0365)
	require.NoError(t, err)
	require.Equal(t, "Miraflores", s.Selection(RoleOrigin).ResolvedName)

	require.NoError(t, s.SetTypedText(ctx, RoleOrigin, "calle que no existe"))
	time.Sleep(100 * time.Millisecond)

	sel := s.Selection(RoleOrigin)
	assert.Empty(t, sel.ResolvedName)
	assert.Equal(t, 1, listener.advisoryCount())
	valid, ok := listener.lastValidity()
	require.True(t, ok)
	assert.False(t, valid)
}

func TestSessionTypedTextTooShortDoesNothing(t *testing.T) {
	gc := &fakeGeocoder{}
	s := newTestSession(t, gc, nil)

	require.NoError(t, s.SetTypedText(context.Background(), RoleOrigin, "Av"))
	time.Sleep(100 * time.Millisecond)

	assert.Empty(t, gc.calls())
	assert.Equal(t, StateEmpty, s.Selection(RoleOrigin).State)
}

func TestSessionStaleResolutionDiscarded(t *testing.T) {
	release := make(chan struct{})
	gc := &fakeGeocoder{forwardFn: func(query string) (geo.Point, bool, error) {
		if query == "lenta" {
			<-release
			return geo.Point{Lat: -13.5320, Lng: -71.9675}, true, nil
		}
		return geo.Point{Lat: -12.1196, Lng: -77.0365}, true, nil
	}}
	s := newTestSession(t, gc, nil)
	ctx := context.Background()

	require.NoError(t, s.SetTypedText(ctx, RoleOrigin, "lenta"))
	time.Sleep(50 * time.Millisecond)

	// A newer input supersedes the in-flight one before it returns.
	require.NoError(t, s.SetTypedText(ctx, RoleOrigin, "rapida"))
	time.Sleep(50 * time.Millisecond)
	close(release)
	time.Sleep(50 * time.Millisecond)

	sel := s.Selection(RoleOrigin)
	assert.Equal(t, "Miraflores", sel.ResolvedName)
	assert.InDelta(t, -12.1196, sel.Lat, 1e-9)
}

func TestSessionGeolocationAdvancesMode(t *testing.T) {
	gc := &fakeGeocoder{reverseFn: func(lat, lng float64) (string, error) {
		return "Av. Brasil 100, Jesús María", nil
	}}
	s := newTestSession(t, gc, nil)

	require.Equal(t, RoleOrigin, s.Mode())
	sel, err := s.GeolocationFix(context.Background(), -12.0776, -77.0494)
	require.NoError(t, err)

	assert.Equal(t, "Jesús María", sel.ResolvedName)
	assert.Equal(t, RoleDestination, s.Mode())
}

func TestSessionClearAndReset(t *testing.T) {
	gc := &fakeGeocoder{}
	listener := &recordingListener{}
	s := newTestSession(t, gc, listener)
	ctx := context.Background()

	_, err := s.PickLocation(ctx, RoleOrigin, "Miraflores")
	require.NoError(t, err)
	_, err = s.PickLocation(ctx, RoleDestination, "Barranco")
	require.NoError(t, err)
	require.True(t, s.FormValid())

	require.NoError(t, s.Clear(ctx, RoleDestination))
	assert.Equal(t, StateEmpty, s.Selection(RoleDestination).State)
	assert.False(t, s.FormValid())

	s.SetMode(RoleDestination)
	s.Reset(ctx)
	assert.Equal(t, RoleOrigin, s.Mode())
	assert.Equal(t, StateEmpty, s.Selection(RoleOrigin).State)
	assert.Empty(t, s.DisplayText(RoleOrigin))

	p, ok := listener.lastPreview()
	require.True(t, ok)
	assert.Equal(t, routing.PreviewNone, p.Kind)
}

func TestSessionPreviewEmittedWhenBothBound(t *testing.T) {
	gc := &fakeGeocoder{}
	listener := &recordingListener{}
	s := newTestSession(t, gc, listener)
	ctx := context.Background()

	_, err := s.PickLocation(ctx, RoleOrigin, "Miraflores")
	require.NoError(t, err)
	p, ok := listener.lastPreview()
	require.True(t, ok)
	assert.Equal(t, routing.PreviewNone, p.Kind)

	_, err = s.PickLocation(ctx, RoleDestination, "Callao")
	require.NoError(t, err)
	p, ok = listener.lastPreview()
	require.True(t, ok)
	assert.Equal(t, routing.PreviewEstimate, p.Kind)
	assert.Greater(t, p.DistanceKm, 0.0)
}

func TestSessionRevalidateAfterCatalogReload(t *testing.T) {
	cat := catalog.New()
	cat.Replace([]catalog.Location{
		{Name: "Nodo Viejo", Lat: -12.1196, Lng: -77.0365},
	})
	cfg := Config{SnapMaxKm: 20, Debounce: 20 * time.Millisecond, MinQueryLen: 3}
	s := NewSession(cfg, cat, &fakeGeocoder{}, fakePreviewer{}, nil, zap.NewNop())
	ctx := context.Background()

	_, err := s.PickLocation(ctx, RoleOrigin, "Nodo Viejo")
	require.NoError(t, err)

	cat.Replace([]catalog.Location{
		{Name: "Nodo Nuevo", Lat: -12.1200, Lng: -77.0360},
	})
	s.RevalidateBindings(ctx)

	sel := s.Selection(RoleOrigin)
	assert.Equal(t, "Nodo Nuevo", sel.ResolvedName)
	assert.Equal(t, StateBoundToCoords, sel.State)

	// Nothing within the bound: the name is dropped entirely.
	cat.Replace([]catalog.Location{
		{Name: "Lejano", Lat: -13.5320, Lng: -71.9675},
	})
	s.RevalidateBindings(ctx)
	assert.Empty(t, s.Selection(RoleOrigin).ResolvedName)
}

func TestSessionRejectsInvalidInput(t *testing.T) {
	s := newTestSession(t, &fakeGeocoder{}, nil)
	ctx := context.Background()

	_, err := s.SetPointFromCoords(ctx, RoleOrigin, 95.0, -77.0)
	assert.Error(t, err)

	_, err = s.SetPointFromCoords(ctx, Role("pasajero"), -12.0, -77.0)
	assert.Error(t, err)

	assert.Error(t, s.SetMode(Role("otro")))
}
