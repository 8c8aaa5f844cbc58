package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/TransPort-Lima/service-rides/internal/catalog"
	"github.com/TransPort-Lima/service-rides/internal/domain/geo"
	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
	"github.com/TransPort-Lima/service-rides/internal/routing"
)

// Config tunes the session's resolution behavior.
type Config struct {
	// SnapMaxKm bounds coordinate-to-catalog snapping. Zero disables the bound.
	SnapMaxKm float64
	// Debounce is the quiet period after a keystroke before typed text is
	// resolved.
	Debounce time.Duration
	// MinQueryLen is the minimum rune count before typed text that misses the
	// catalog is sent to the forward geocoder.
	MinQueryLen int
}

func (c Config) withDefaults() Config {
	if c.Debounce <= 0 {
		c.Debounce = 350 * time.Millisecond
	}
	if c.MinQueryLen <= 0 {
		c.MinQueryLen = 3
	}
	return c
}

// Session holds the selection state for one user picking trip endpoints. All
// methods are safe for concurrent use; superseded resolutions are fenced per
// role so only the most recently issued input wins.
type Session struct {
	cfg       Config
	catalog   *catalog.Catalog
	geocoder  Geocoder
	previewer Previewer
	listener  Listener
	logger    *zap.Logger

	mu          sync.Mutex
	mode        Role
	selections  map[Role]Selection
	displayText map[Role]string
	seq         map[Role]uint64
	timers      map[Role]*time.Timer
	pendingText map[Role]string
}

// NewSession builds a session over the shared catalog, geocoder and previewer.
// A nil listener is replaced with NopListener.
func NewSession(cfg Config, cat *catalog.Catalog, gc Geocoder, pv Previewer, listener Listener, logger *zap.Logger) *Session {
	if listener == nil {
		listener = NopListener{}
	}
	return &Session{
		cfg:       cfg.withDefaults(),
		catalog:   cat,
		geocoder:  gc,
		previewer: pv,
		listener:  listener,
		logger:    logger,
		mode:      RoleOrigin,
		selections: map[Role]Selection{
			RoleOrigin:      {State: StateEmpty},
			RoleDestination: {State: StateEmpty},
		},
		displayText: map[Role]string{},
		seq:         map[Role]uint64{},
		timers:      map[Role]*time.Timer{},
		pendingText: map[Role]string{},
	}
}

// Mode returns the role the next map click applies to.
func (s *Session) Mode() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches which role subsequent map clicks bind.
func (s *Session) SetMode(role Role) error {
	if !role.IsValid() {
		return shared.NewValidationError(fmt.Sprintf("unknown role %q", role))
	}
	s.mu.Lock()
	s.mode = role
	s.mu.Unlock()
	return nil
}

// Selection returns the current selection for a role.
func (s *Session) Selection(role Role) Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selections[role]
}

// DisplayText returns the text currently shown in the role's input field.
func (s *Session) DisplayText(role Role) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayText[role]
}

// FormValid reports whether both roles carry a canonical catalog name.
func (s *Session) FormValid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.formValidLocked()
}

func (s *Session) formValidLocked() bool {
	return s.selections[RoleOrigin].ResolvedName != "" &&
		s.selections[RoleDestination].ResolvedName != ""
}

// SetPointFromCoords binds a role to raw coordinates, as from a map click.
// The role defaults to the current mode when empty.
func (s *Session) SetPointFromCoords(ctx context.Context, role Role, lat, lng float64) (Selection, error) {
	role, err := s.normalizeRole(role)
	if err != nil {
		return Selection{}, err
	}
	if err := geo.Validate(lat, lng); err != nil {
		return Selection{}, shared.NewValidationError(err.Error())
	}
	seq := s.issue(role)
	sel, _ := s.resolveCoords(ctx, role, lat, lng, seq)
	return sel, nil
}

// PickLocation binds a role to a catalog entry by exact name, as from a
// suggestion tap or marker click.
func (s *Session) PickLocation(ctx context.Context, role Role, name string) (Selection, error) {
	role, err := s.normalizeRole(role)
	if err != nil {
		return Selection{}, err
	}
	loc, ok := s.catalog.LookupByName(name)
	if !ok {
		return Selection{}, shared.NewNotFoundError("location", name)
	}
	seq := s.issue(role)
	sel, _ := s.resolveLocation(ctx, role, loc, seq)
	return sel, nil
}

// GeolocationFix binds the origin to a device position fix and, when the fix
// is applied, advances the click mode to the destination.
func (s *Session) GeolocationFix(ctx context.Context, lat, lng float64) (Selection, error) {
	if err := geo.Validate(lat, lng); err != nil {
		return Selection{}, shared.NewValidationError(err.Error())
	}
	seq := s.issue(RoleOrigin)
	sel, applied := s.resolveCoords(ctx, RoleOrigin, lat, lng, seq)
	if applied {
		s.mu.Lock()
		s.mode = RoleDestination
		s.mu.Unlock()
	}
	return sel, nil
}

// SetTypedText records a keystroke in a role's input field. Resolution runs
// after the debounce window; a newer input for the same role cancels it.
func (s *Session) SetTypedText(ctx context.Context, role Role, text string) error {
	role, err := s.normalizeRole(role)
	if err != nil {
		return err
	}
	seq := s.issue(role)
	// The timer outlives the caller, so resolution must not die with a
	// per-request context.
	deferred := context.WithoutCancel(ctx)
	s.mu.Lock()
	s.displayText[role] = text
	s.pendingText[role] = text
	if t := s.timers[role]; t != nil {
		t.Stop()
	}
	s.timers[role] = time.AfterFunc(s.cfg.Debounce, func() {
		s.resolveTypedText(deferred, role, seq)
	})
	s.mu.Unlock()
	return nil
}

// Clear empties one role's binding.
func (s *Session) Clear(ctx context.Context, role Role) error {
	role, err := s.normalizeRole(role)
	if err != nil {
		return err
	}
	seq := s.issue(role)
	s.clearSelection(ctx, role, seq)
	return nil
}

// Reset empties both bindings and returns the click mode to the origin.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	for _, role := range []Role{RoleOrigin, RoleDestination} {
		s.seq[role]++
		if t := s.timers[role]; t != nil {
			t.Stop()
		}
		s.selections[role] = Selection{State: StateEmpty}
		s.displayText[role] = ""
		s.pendingText[role] = ""
	}
	s.mode = RoleOrigin
	s.mu.Unlock()
	s.emitChange(ctx, RoleOrigin)
	s.emitChange(ctx, RoleDestination)
}

// RevalidateBindings re-checks bound names against the current catalog, as
// after a catalog reload. Vanished names are re-snapped to the nearest entry
// or dropped when nothing is within the snap bound.
func (s *Session) RevalidateBindings(ctx context.Context) {
	var changed []Role
	s.mu.Lock()
	for _, role := range []Role{RoleOrigin, RoleDestination} {
		sel := s.selections[role]
		if !sel.Bound() || sel.ResolvedName == "" {
			continue
		}
		if _, ok := s.catalog.LookupByName(sel.ResolvedName); ok {
			continue
		}
		if loc, ok := s.catalog.SnapNearest(sel.Lat, sel.Lng, s.cfg.SnapMaxKm); ok {
			sel.ResolvedName = loc.Name
		} else {
			sel.ResolvedName = ""
		}
		sel.State = StateBoundToCoords
		s.selections[role] = sel
		changed = append(changed, role)
	}
	s.mu.Unlock()
	for _, role := range changed {
		s.emitChange(ctx, role)
	}
}

func (s *Session) normalizeRole(role Role) (Role, error) {
	if role == "" {
		return s.Mode(), nil
	}
	if !role.IsValid() {
		return "", shared.NewValidationError(fmt.Sprintf("unknown role %q", role))
	}
	return role, nil
}

// issue allocates the next sequence number for a role, superseding any
// resolution still in flight.
func (s *Session) issue(role Role) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[role]++
	return s.seq[role]
}

func (s *Session) resolveCoords(ctx context.Context, role Role, lat, lng float64, seq uint64) (Selection, bool) {
	addr := s.reverseAddress(ctx, lat, lng)
	s.mu.Lock()
	if s.seq[role] != seq {
		cur := s.selections[role]
		s.mu.Unlock()
		return cur, false
	}
	display := addr
	if display == "" {
		display = fmt.Sprintf("%.5f, %.5f", lat, lng)
	}
	sel := Selection{State: StateBoundToCoords, Lat: lat, Lng: lng, DisplayAddress: display}
	if loc, ok := s.catalog.SnapNearest(lat, lng, s.cfg.SnapMaxKm); ok {
		sel.ResolvedName = loc.Name
	}
	s.selections[role] = sel
	s.displayText[role] = display
	s.mu.Unlock()
	s.emitChange(ctx, role)
	return sel, true
}

func (s *Session) resolveLocation(ctx context.Context, role Role, loc catalog.Location, seq uint64) (Selection, bool) {
	addr := s.reverseAddress(ctx, loc.Lat, loc.Lng)
	s.mu.Lock()
	if s.seq[role] != seq {
		cur := s.selections[role]
		s.mu.Unlock()
		return cur, false
	}
	display := addr
	if display == "" {
		display = loc.Name
	}
	sel := Selection{
		State:          StateBoundToLocation,
		Lat:            loc.Lat,
		Lng:            loc.Lng,
		ResolvedName:   loc.Name,
		DisplayAddress: display,
	}
	s.selections[role] = sel
	s.displayText[role] = display
	s.mu.Unlock()
	s.emitChange(ctx, role)
	return sel, true
}

func (s *Session) resolveTypedText(ctx context.Context, role Role, seq uint64) {
	s.mu.Lock()
	if s.seq[role] != seq {
		s.mu.Unlock()
		return
	}
	text := strings.TrimSpace(s.pendingText[role])
	s.mu.Unlock()

	if text == "" {
		s.clearSelection(ctx, role, seq)
		return
	}
	if loc, ok := s.catalog.LookupByName(text); ok {
		s.resolveLocation(ctx, role, loc, seq)
		return
	}
	if len([]rune(text)) < s.cfg.MinQueryLen {
		return
	}

	pt, found, err := s.geocoder.Forward(ctx, text)
	if err != nil {
		s.logger.Warn("forward geocode failed", zap.String("query", text), zap.Error(err))
		found = false
	}
	if found {
		s.resolveCoords(ctx, role, pt.Lat, pt.Lng, seq)
		return
	}

	// Unresolvable text: keep whatever coordinates were bound but drop the
	// canonical name so the form cannot submit a stale match.
	s.mu.Lock()
	if s.seq[role] != seq {
		s.mu.Unlock()
		return
	}
	sel := s.selections[role]
	sel.ResolvedName = ""
	s.selections[role] = sel
	s.mu.Unlock()
	s.listener.Advisory(AdvisoryWarning, "No se encontró la dirección, intenta con otra referencia")
	s.emitChange(ctx, role)
}

func (s *Session) clearSelection(ctx context.Context, role Role, seq uint64) {
	s.mu.Lock()
	if s.seq[role] != seq {
		s.mu.Unlock()
		return
	}
	s.selections[role] = Selection{State: StateEmpty}
	s.displayText[role] = ""
	s.pendingText[role] = ""
	s.mu.Unlock()
	s.emitChange(ctx, role)
}

func (s *Session) reverseAddress(ctx context.Context, lat, lng float64) string {
	addr, err := s.geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		s.logger.Warn("reverse geocode failed",
			zap.Float64("lat", lat), zap.Float64("lng", lng), zap.Error(err))
		return ""
	}
	return addr
}

// emitChange notifies the listener of the role's new selection, the resulting
// form validity and the refreshed route preview. Runs outside the lock since
// the preview may hit the network.
func (s *Session) emitChange(ctx context.Context, role Role) {
	s.mu.Lock()
	sel := s.selections[role]
	origin := s.selections[RoleOrigin]
	dest := s.selections[RoleDestination]
	valid := s.formValidLocked()
	s.mu.Unlock()

	s.listener.SelectionChanged(role, sel)
	s.listener.ValidityChanged(valid)
	if origin.Bound() && dest.Bound() {
		s.listener.PreviewChanged(s.previewer.Preview(ctx, origin.Point(), dest.Point()))
	} else {
		s.listener.PreviewChanged(routing.Preview{Kind: routing.PreviewNone})
	}
}
