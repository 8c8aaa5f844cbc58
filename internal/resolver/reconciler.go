package resolver

import (
	"fmt"
	"strings"

	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
)

// SearchRequest carries the canonical names and passenger count the matching
// service expects.
type SearchRequest struct {
	Origin      string `json:"origen"`
	Destination string `json:"destino"`
	Passengers  int    `json:"pasajeros"`
}

// Reconcile derives the canonical catalog name for both roles and validates
// the passenger count. For each role the name is taken, in order, from the
// bound selection, from a case-insensitive catalog match on the visible input
// text, or from snapping the bound coordinates; when none apply the request
// is rejected before anything leaves the process.
func (s *Session) Reconcile(passengers int) (SearchRequest, error) {
	if passengers < 1 {
		return SearchRequest{}, shared.NewValidationError("pasajeros must be at least 1")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	names := make(map[Role]string, 2)
	for _, role := range []Role{RoleOrigin, RoleDestination} {
		name := s.canonicalNameLocked(role)
		if name == "" {
			return SearchRequest{}, shared.NewValidationError(
				fmt.Sprintf("selecciona un punto de %s válido", role))
		}
		names[role] = name
	}

	return SearchRequest{
		Origin:      names[RoleOrigin],
		Destination: names[RoleDestination],
		Passengers:  passengers,
	}, nil
}

func (s *Session) canonicalNameLocked(role Role) string {
	sel := s.selections[role]
	if sel.ResolvedName != "" {
		return sel.ResolvedName
	}
	if text := strings.TrimSpace(s.displayText[role]); text != "" {
		if loc, ok := s.catalog.LookupByNameFold(text); ok {
			return loc.Name
		}
	}
	if sel.Bound() {
		if loc, ok := s.catalog.SnapNearest(sel.Lat, sel.Lng, s.cfg.SnapMaxKm); ok {
			return loc.Name
		}
	}
	return ""
}
