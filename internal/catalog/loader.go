package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Fallback is the built-in location list used when the catalog source cannot
// be reached or returns nothing.
var Fallback = []Location{
	{ID: "centro_lima", Name: "Centro de Lima", Lat: -12.0464, Lng: -77.0428},
	{ID: "miraflores", Name: "Miraflores", Lat: -12.1203, Lng: -77.0282},
	{ID: "san_isidro", Name: "San Isidro", Lat: -12.1040, Lng: -77.0348},
	{ID: "barranco", Name: "Barranco", Lat: -12.1406, Lng: -77.0214},
	{ID: "surco", Name: "Surco", Lat: -12.1339, Lng: -76.9931},
	{ID: "la_molina", Name: "La Molina", Lat: -12.0794, Lng: -76.9397},
	{ID: "callao", Name: "Callao", Lat: -12.0566, Lng: -77.1181},
	{ID: "san_miguel", Name: "San Miguel", Lat: -12.0773, Lng: -77.0907},
	{ID: "pueblo_libre", Name: "Pueblo Libre", Lat: -12.0740, Lng: -77.0615},
	{ID: "jesus_maria", Name: "Jesús María", Lat: -12.0719, Lng: -77.0431},
	{ID: "lince", Name: "Lince", Lat: -12.0876, Lng: -77.0364},
	{ID: "san_borja", Name: "San Borja", Lat: -12.1086, Lng: -77.0023},
	{ID: "surquillo", Name: "Surquillo", Lat: -12.1142, Lng: -77.0177},
	{ID: "cercado", Name: "Cercado de Lima", Lat: -12.0464, Lng: -77.0428},
}

// Loader fetches the location catalog from its network source, falling back
// to the built-in list on any failure. Load never returns an error.
type Loader struct {
	sourceURL string
	client    *http.Client
	logger    *zap.Logger
}

// NewLoader creates a Loader for the given catalog source URL.
func NewLoader(sourceURL string, logger *zap.Logger) *Loader {
	return &Loader{
		sourceURL: sourceURL,
		client:    &http.Client{Timeout: 10 * time.Second},
		logger:    logger,
	}
}

// Load fetches the catalog source and returns its locations, or the fallback
// list when the source is unreachable, non-OK, malformed or empty.
func (l *Loader) Load(ctx context.Context) []Location {
	locations, err := l.fetch(ctx)
	if err != nil {
		l.logger.Warn("catalog source unavailable, using fallback list",
			zap.String("url", l.sourceURL),
			zap.Error(err),
		)
		return Fallback
	}
	if len(locations) == 0 {
		l.logger.Warn("catalog source returned no locations, using fallback list",
			zap.String("url", l.sourceURL),
		)
		return Fallback
	}
	l.logger.Info("catalog loaded", zap.Int("locations", len(locations)))
	return locations
}

func (l *Loader) fetch(ctx context.Context) ([]Location, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.sourceURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog source status %d", resp.StatusCode)
	}

	var locations []Location
	if err := json.NewDecoder(io.LimitReader(resp.Body, 2<<20)).Decode(&locations); err != nil {
		return nil, err
	}
	return locations, nil
}
