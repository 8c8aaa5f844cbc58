// Package resolver turns heterogeneous point inputs (map clicks, typed text,
// named picks, geolocation fixes) into a consistent per-role Selection, and
// re-derives canonical location names at submit time.
package resolver

import (
	"context"

	"github.com/TransPort-Lima/service-rides/internal/domain/geo"
	"github.com/TransPort-Lima/service-rides/internal/routing"
)

// Role identifies which endpoint of the trip an input applies to. The string
// values match the wire parameters of the matching service.
type Role string

const (
	RoleOrigin      Role = "origen"
	RoleDestination Role = "destino"
)

// IsValid reports whether the role is one of the two known roles.
func (r Role) IsValid() bool {
	return r == RoleOrigin || r == RoleDestination
}

// BindingState is the resolution state of one role.
type BindingState string

const (
	// StateEmpty means no binding exists for the role.
	StateEmpty BindingState = "empty"
	// StateBoundToCoords means the role is bound to raw coordinates, with a
	// catalog name attached only if a snap succeeded.
	StateBoundToCoords BindingState = "coords"
	// StateBoundToLocation means the role is bound to a catalog entry.
	StateBoundToLocation BindingState = "location"
)

// Selection is the resolved binding for one role: coordinates, the canonical
// catalog name used by the matching service, and the human-readable address
// shown to the user.
type Selection struct {
	State          BindingState `json:"state"`
	Lat            float64      `json:"lat"`
	Lng            float64      `json:"lng"`
	ResolvedName   string       `json:"resolved_name,omitempty"`
	DisplayAddress string       `json:"display_address,omitempty"`
}

// Bound reports whether the selection carries coordinates.
func (s Selection) Bound() bool { return s.State != StateEmpty }

// Point returns the selection's coordinates. Only meaningful when Bound.
func (s Selection) Point() geo.Point { return geo.Point{Lat: s.Lat, Lng: s.Lng} }

// Geocoder converts between coordinates and text. Implementations are best
// effort; the session treats any error as a soft failure.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
	Forward(ctx context.Context, query string) (geo.Point, bool, error)
}

// Previewer produces the best-effort route preview between two points.
type Previewer interface {
	Preview(ctx context.Context, from, to geo.Point) routing.Preview
}

// Advisory severities surfaced to the UI layer.
const (
	AdvisorySuccess = "success"
	AdvisoryWarning = "warning"
	AdvisoryError   = "error"
)

// Listener receives the session's produced interface: selection changes per
// role, route-preview state, form validity, and transient advisories.
type Listener interface {
	SelectionChanged(role Role, sel Selection)
	PreviewChanged(p routing.Preview)
	ValidityChanged(valid bool)
	Advisory(severity, message string)
}

// NopListener discards all emissions.
type NopListener struct{}

func (NopListener) SelectionChanged(Role, Selection) {}
func (NopListener) PreviewChanged(routing.Preview)   {}
func (NopListener) ValidityChanged(bool)             {}
func (NopListener) Advisory(string, string)          {}
