// Package routing fetches drivable paths from an OSRM-compatible provider
// and builds the best-effort route preview between two resolved points.
package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/TransPort-Lima/service-rides/internal/domain/geo"
	"go.uber.org/zap"
)

// Path is a drivable route returned by the provider.
type Path struct {
	Points      []geo.Point `json:"points"`
	DistanceKm  float64     `json:"distance_km"`
	DurationMin float64     `json:"duration_min"`
}

// Client talks to an OSRM-compatible routing provider.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient creates a routing client for the given OSRM base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	trimmed := strings.TrimRight(baseURL, "/")
	if trimmed == "" {
		trimmed = "https://router.project-osrm.org"
	}
	return &Client{
		baseURL: trimmed,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route requests a driving path between the two points. Any transport
// failure, non-Ok code or empty route list is returned as an error.
func (c *Client) Route(ctx context.Context, from, to geo.Point) (*Path, error) {
	// OSRM takes lng,lat pairs.
	rawURL := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=full&geometries=geojson",
		c.baseURL, from.Lng, from.Lat, to.Lng, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing provider status %d", resp.StatusCode)
	}

	var payload osrmResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(&payload); err != nil {
		return nil, err
	}
	if payload.Code != "Ok" || len(payload.Routes) == 0 {
		return nil, fmt.Errorf("routing provider returned code %q with %d routes", payload.Code, len(payload.Routes))
	}

	route := payload.Routes[0]
	points := make([]geo.Point, 0, len(route.Geometry.Coordinates))
	for _, pair := range route.Geometry.Coordinates {
		if len(pair) != 2 {
			continue
		}
		points = append(points, geo.Point{Lat: pair[1], Lng: pair[0]})
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("routing provider returned a degenerate geometry")
	}

	return &Path{
		Points:      points,
		DistanceKm:  route.Distance / 1000.0,
		DurationMin: route.Duration / 60.0,
	}, nil
}
