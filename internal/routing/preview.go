package routing

import (
	"context"
	"math"
	"sync"

	"github.com/TransPort-Lima/service-rides/internal/domain/geo"
	"go.uber.org/zap"
)

// PreviewKind distinguishes the degraded states of a route preview.
type PreviewKind string

const (
	// PreviewNone means no preview is shown.
	PreviewNone PreviewKind = "none"
	// PreviewPath is a real drivable path from the routing provider.
	PreviewPath PreviewKind = "path"
	// PreviewEstimate is a straight two-point segment labeled with the
	// great-circle distance.
	PreviewEstimate PreviewKind = "estimate"
)

// Preview is the transient rendering state between two resolved points.
// At most one kind is present at a time; a real path always supersedes an
// estimate for the same endpoints.
type Preview struct {
	Kind       PreviewKind `json:"kind"`
	Points     []geo.Point `json:"points,omitempty"`
	DistanceKm float64     `json:"distance_km,omitempty"`
}

// Router fetches a drivable path between two points.
type Router interface {
	Route(ctx context.Context, from, to geo.Point) (*Path, error)
}

// pairKey identifies an endpoint pair at ~1e-5 degree precision.
type pairKey struct {
	fromLat, fromLng, toLat, toLng int64
}

func keyFor(from, to geo.Point) pairKey {
	round := func(v float64) int64 { return int64(math.Round(v * 1e5)) }
	return pairKey{
		fromLat: round(from.Lat),
		fromLng: round(from.Lng),
		toLat:   round(to.Lat),
		toLng:   round(to.Lng),
	}
}

// PreviewChain resolves a preview through an ordered fallback: a cached real
// path for the same endpoint pair, then the routing provider, then a
// straight-line estimate. Only real paths are cached.
type PreviewChain struct {
	router Router
	logger *zap.Logger

	mu    sync.Mutex
	cache map[pairKey]*Path
}

// NewPreviewChain creates a PreviewChain over the given router.
func NewPreviewChain(router Router, logger *zap.Logger) *PreviewChain {
	return &PreviewChain{
		router: router,
		logger: logger,
		cache:  make(map[pairKey]*Path),
	}
}

// Preview returns the best available preview for the endpoint pair. It never
// fails: when the provider is down the straight-line estimate is returned.
func (p *PreviewChain) Preview(ctx context.Context, from, to geo.Point) Preview {
	key := keyFor(from, to)

	p.mu.Lock()
	cached := p.cache[key]
	p.mu.Unlock()
	if cached != nil {
		return Preview{Kind: PreviewPath, Points: cached.Points, DistanceKm: cached.DistanceKm}
	}

	path, err := p.router.Route(ctx, from, to)
	if err == nil {
		p.mu.Lock()
		p.cache[key] = path
		p.mu.Unlock()
		return Preview{Kind: PreviewPath, Points: path.Points, DistanceKm: path.DistanceKm}
	}

	p.logger.Warn("routing provider failed, showing straight-line estimate", zap.Error(err))
	return Preview{
		Kind:       PreviewEstimate,
		Points:     []geo.Point{from, to},
		DistanceKm: geo.Haversine(from, to),
	}
}
