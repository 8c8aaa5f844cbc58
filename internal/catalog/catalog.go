// Package catalog holds the in-memory index of named pickup/dropoff
// locations and the nearest-node matcher over them.
package catalog

import (
	"strings"
	"sync"

	"github.com/TransPort-Lima/service-rides/internal/domain/geo"
)

// Location is a named, coordinate-tagged catalog entry. Immutable once loaded.
type Location struct {
	ID   string  `json:"id,omitempty"`
	Name string  `json:"nombre"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// Point returns the location's coordinates.
func (l Location) Point() geo.Point {
	return geo.Point{Lat: l.Lat, Lng: l.Lng}
}

// Catalog is the shared location index. Rebuilds are atomic: lookups either
// see the previous load or the new one, never a partial index.
type Catalog struct {
	mu        sync.RWMutex
	locations []Location
	byName    map[string]Location
	byFold    map[string]Location
	byID      map[string]Location
}

// New creates an empty catalog.
func New() *Catalog {
	c := &Catalog{}
	c.Replace(nil)
	return c
}

// Replace swaps in a new set of locations, rebuilding all indexes. Entries
// without a name or with out-of-range coordinates are dropped; a duplicate
// name overwrites the earlier entry.
func (c *Catalog) Replace(locations []Location) {
	valid := make([]Location, 0, len(locations))
	byName := make(map[string]Location, len(locations))
	byFold := make(map[string]Location, len(locations))
	byID := make(map[string]Location, len(locations))

	for _, loc := range locations {
		if loc.Name == "" || geo.Validate(loc.Lat, loc.Lng) != nil {
			continue
		}
		if _, seen := byName[loc.Name]; !seen {
			valid = append(valid, loc)
		} else {
			for i := range valid {
				if valid[i].Name == loc.Name {
					valid[i] = loc
					break
				}
			}
		}
		byName[loc.Name] = loc
		byFold[strings.ToLower(loc.Name)] = loc
		if loc.ID != "" {
			byID[loc.ID] = loc
		}
	}

	c.mu.Lock()
	c.locations = valid
	c.byName = byName
	c.byFold = byFold
	c.byID = byID
	c.mu.Unlock()
}

// LookupByName returns the location with the exact, case-sensitive name.
func (c *Catalog) LookupByName(name string) (Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.byName[name]
	return loc, ok
}

// LookupByNameFold returns the location whose name matches case-insensitively.
func (c *Catalog) LookupByNameFold(name string) (Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.byFold[strings.ToLower(strings.TrimSpace(name))]
	return loc, ok
}

// LookupByID returns the location with the given catalog ID.
func (c *Catalog) LookupByID(id string) (Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.byID[id]
	return loc, ok
}

// Locations returns a copy of the currently loaded set, in load order.
func (c *Catalog) Locations() []Location {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Location, len(c.locations))
	copy(out, c.locations)
	return out
}

// Len returns the number of loaded locations.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.locations)
}

// SnapNearest returns the cataloged location closest to (lat, lng) by
// haversine distance, walking the catalog in load order so the first minimum
// wins. When maxKm > 0 and the minimum exceeds it, no match is returned.
func (c *Catalog) SnapNearest(lat, lng, maxKm float64) (Location, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var nearest Location
	found := false
	minDist := 0.0

	for _, loc := range c.locations {
		d := geo.HaversineCoords(lat, lng, loc.Lat, loc.Lng)
		if !found || d < minDist {
			nearest = loc
			minDist = d
			found = true
		}
	}

	if !found {
		return Location{}, false
	}
	if maxKm > 0 && minDist > maxKm {
		return Location{}, false
	}
	return nearest, true
}
