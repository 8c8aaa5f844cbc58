package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TransPort-Lima/service-rides/internal/catalog"
	"github.com/TransPort-Lima/service-rides/internal/domain/shared"
	"github.com/TransPort-Lima/service-rides/internal/resolver"
	"github.com/TransPort-Lima/service-rides/internal/routing"
	"github.com/TransPort-Lima/service-rides/internal/search"
)

// Searcher queries the matching service for available drivers.
type Searcher interface {
	Search(ctx context.Context, req resolver.SearchRequest) (*search.SearchResponse, error)
}

// Session event types accepted by ApplyEvent.
const (
	EventMapClick  = "map_click"
	EventPick      = "pick"
	EventTyped     = "typed"
	EventGeolocate = "geolocate"
	EventClear     = "clear"
	EventSetMode   = "set_mode"
	EventReset     = "reset"
)

// SessionEventRequest is one input applied to a selection session.
type SessionEventRequest struct {
	Type string  `json:"type" binding:"required"`
	Role string  `json:"role"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Name string  `json:"name"`
	Text string  `json:"text"`
}

// Advisory is a transient message for the session's user.
type Advisory struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// SessionSnapshot is the full observable state of a selection session.
type SessionSnapshot struct {
	ID          uuid.UUID                     `json:"id"`
	Mode        string                        `json:"mode"`
	Selections  map[string]resolver.Selection `json:"selections"`
	DisplayText map[string]string             `json:"display_text"`
	Preview     routing.Preview               `json:"preview"`
	Valid       bool                          `json:"valid"`
	Advisories  []Advisory                    `json:"advisories,omitempty"`
}

// sessionState records the session's emitted output for snapshot polling.
// It implements resolver.Listener.
type sessionState struct {
	mu         sync.Mutex
	preview    routing.Preview
	valid      bool
	advisories []Advisory
}

func (st *sessionState) SelectionChanged(resolver.Role, resolver.Selection) {}

func (st *sessionState) PreviewChanged(p routing.Preview) {
	st.mu.Lock()
	st.preview = p
	st.mu.Unlock()
}

func (st *sessionState) ValidityChanged(valid bool) {
	st.mu.Lock()
	st.valid = valid
	st.mu.Unlock()
}

func (st *sessionState) Advisory(severity, message string) {
	st.mu.Lock()
	if len(st.advisories) < 10 {
		st.advisories = append(st.advisories, Advisory{
			Severity: severity,
			Message:  message,
			At:       time.Now().UTC(),
		})
	}
	st.mu.Unlock()
}

// drain returns and clears the pending advisories.
func (st *sessionState) drain() (routing.Preview, bool, []Advisory) {
	st.mu.Lock()
	defer st.mu.Unlock()
	advisories := st.advisories
	st.advisories = nil
	return st.preview, st.valid, advisories
}

type sessionEntry struct {
	session *resolver.Session
	state   *sessionState
}

// SessionService owns the live selection sessions and the shared location
// catalog they resolve against.
type SessionService struct {
	cfg       resolver.Config
	catalog   *catalog.Catalog
	loader    *catalog.Loader
	geocoder  resolver.Geocoder
	previewer resolver.Previewer
	matching  Searcher
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*sessionEntry
}

// NewSessionService creates a SessionService over the shared dependencies.
func NewSessionService(
	cfg resolver.Config,
	cat *catalog.Catalog,
	loader *catalog.Loader,
	geocoder resolver.Geocoder,
	previewer resolver.Previewer,
	matching Searcher,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		cfg:       cfg,
		catalog:   cat,
		loader:    loader,
		geocoder:  geocoder,
		previewer: previewer,
		matching:  matching,
		logger:    logger,
		sessions:  make(map[uuid.UUID]*sessionEntry),
	}
}

// CreateSession starts a new selection session and returns its initial state.
func (s *SessionService) CreateSession() *SessionSnapshot {
	state := &sessionState{preview: routing.Preview{Kind: routing.PreviewNone}}
	entry := &sessionEntry{
		session: resolver.NewSession(s.cfg, s.catalog, s.geocoder, s.previewer, state, s.logger),
		state:   state,
	}

	id := uuid.New()
	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()

	return s.snapshot(id, entry)
}

// GetSession returns the current state of a session.
func (s *SessionService) GetSession(id uuid.UUID) (*SessionSnapshot, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	return s.snapshot(id, entry), nil
}

// RemoveSession discards a session.
func (s *SessionService) RemoveSession(id uuid.UUID) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// ApplyEvent applies one input event to a session and returns the resulting
// state.
func (s *SessionService) ApplyEvent(ctx context.Context, id uuid.UUID, req SessionEventRequest) (*SessionSnapshot, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	sess := entry.session
	role := resolver.Role(req.Role)

	switch req.Type {
	case EventMapClick:
		_, err = sess.SetPointFromCoords(ctx, role, req.Lat, req.Lng)
	case EventPick:
		_, err = sess.PickLocation(ctx, role, req.Name)
	case EventTyped:
		err = sess.SetTypedText(ctx, role, req.Text)
	case EventGeolocate:
		_, err = sess.GeolocationFix(ctx, req.Lat, req.Lng)
	case EventClear:
		err = sess.Clear(ctx, role)
	case EventSetMode:
		err = sess.SetMode(role)
	case EventReset:
		sess.Reset(ctx)
	default:
		err = shared.NewValidationError("unknown event type: " + req.Type)
	}
	if err != nil {
		return nil, err
	}
	return s.snapshot(id, entry), nil
}

// Submit reconciles the session's selections into canonical names and queries
// the matching service.
func (s *SessionService) Submit(ctx context.Context, id uuid.UUID, passengers int) (*search.SearchResponse, error) {
	entry, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	req, err := entry.session.Reconcile(passengers)
	if err != nil {
		return nil, err
	}
	s.logger.Info("searching trips",
		zap.String("origen", req.Origin),
		zap.String("destino", req.Destination),
		zap.Int("pasajeros", req.Passengers),
	)
	return s.matching.Search(ctx, req)
}

// ReloadCatalog refreshes the location catalog from its source and
// revalidates every live session against the new contents.
func (s *SessionService) ReloadCatalog(ctx context.Context) int {
	locations := s.loader.Load(ctx)
	s.catalog.Replace(locations)

	s.mu.RLock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		e.session.RevalidateBindings(ctx)
	}

	s.logger.Info("catalog reloaded",
		zap.Int("locations", s.catalog.Len()),
		zap.Int("sessions_revalidated", len(entries)),
	)
	return s.catalog.Len()
}

func (s *SessionService) entry(id uuid.UUID) (*sessionEntry, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, shared.NewNotFoundError("Session", id.String())
	}
	return entry, nil
}

func (s *SessionService) snapshot(id uuid.UUID, entry *sessionEntry) *SessionSnapshot {
	sess := entry.session
	preview, valid, advisories := entry.state.drain()
	return &SessionSnapshot{
		ID:   id,
		Mode: string(sess.Mode()),
		Selections: map[string]resolver.Selection{
			string(resolver.RoleOrigin):      sess.Selection(resolver.RoleOrigin),
			string(resolver.RoleDestination): sess.Selection(resolver.RoleDestination),
		},
		DisplayText: map[string]string{
			string(resolver.RoleOrigin):      sess.DisplayText(resolver.RoleOrigin),
			string(resolver.RoleDestination): sess.DisplayText(resolver.RoleDestination),
		},
		Preview:    preview,
		Valid:      valid,
		Advisories: advisories,
	}
}
