package locator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/savegress/medroute/internal/directory"
	"github.com/savegress/medroute/pkg/geo"
	"github.com/savegress/medroute/pkg/models"
)

// ErrLocationUnavailable is returned when no usable origin fix exists.
// On the emergency path there is no silent fallback to a default
// coordinate; the directory is never queried without a fix.
var ErrLocationUnavailable = errors.New("location unavailable")

// ErrSessionClosed is returned for operations on a torn-down session.
var ErrSessionClosed = errors.New("locator session closed")

// ErrUnknownCandidate is returned when a selection names a hospital
// that is not in the routable candidate set.
var ErrUnknownCandidate = errors.New("unknown candidate")

// demoOrigin is the demo coordinate the non-critical nearby search may
// fall back to when geolocation is denied. The emergency path never
// uses it.
var demoOrigin = geo.Point{Lat: 20.5937, Lng: 78.9629}

// Directory is the slice of the directory client the locator uses.
type Directory interface {
	Search(ctx context.Context, specialty string) ([]models.HospitalCandidate, error)
}

// Router computes road routes between two points.
type Router interface {
	Route(ctx context.Context, from, to geo.Point) (models.RouteSummary, error)
}

// Session is one mounted locator screen. It exclusively owns its
// candidate set and the single active route computation; Close
// releases everything, and a new mount for the same owner disposes the
// previous session first.
type Session struct {
	ID        string
	Specialty string

	dir      Directory
	router   Router
	critical bool

	mu          sync.Mutex
	origin      geo.Point
	located     bool
	candidates  []models.HospitalCandidate
	unroutable  []models.HospitalCandidate
	selectedID  string
	route       *models.RouteSummary
	routeCancel context.CancelFunc
	routeDone   chan struct{}
	routeGen    int
	status      string
	closed      bool
}

// NewSession creates an unmounted locator session. critical selects
// the emergency behavior: no demo-coordinate fallback.
func NewSession(dir Directory, router Router, specialty string, critical bool) *Session {
	return &Session{
		ID:        uuid.New().String(),
		Specialty: specialty,
		dir:       dir,
		router:    router,
		critical:  critical,
		status:    "Acquiring location fix",
	}
}

// Start resolves the origin and queries the directory. The geolocation
// fix must resolve before any directory query is issued: a missing or
// invalid origin on the critical path aborts with LocationUnavailable,
// while the non-critical search falls back to the demo coordinate.
// Directory failure leaves the candidate list empty behind a status
// message; it does not fail the mount.
func (s *Session) Start(ctx context.Context, origin *geo.Point) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}

	switch {
	case origin != nil && origin.Valid():
		s.origin = *origin
	case s.critical:
		s.status = "Location Signal Lost. Enable GPS."
		s.mu.Unlock()
		return ErrLocationUnavailable
	default:
		s.origin = demoOrigin
	}
	s.located = true
	from := s.origin
	specialty := s.Specialty
	s.mu.Unlock()

	candidates, err := s.dir.Search(ctx, specialty)
	if err != nil {
		s.mu.Lock()
		s.status = "Network Offline"
		s.mu.Unlock()
		return nil
	}

	routable, unknown := directory.Routable(candidates)

	s.mu.Lock()
	s.candidates = routable
	s.unroutable = unknown
	if len(routable) == 0 {
		s.status = fmt.Sprintf("No %s coverage available.", specialty)
		s.mu.Unlock()
		return nil
	}
	s.status = fmt.Sprintf("%d units detected", len(routable))
	s.mu.Unlock()

	// Default target is the directory's nearest-first head.
	return s.selectCandidate(routable[0].HospitalID, from)
}

// Select routes to the named candidate, replacing the active route
// computation.
func (s *Session) Select(hospitalID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !s.located {
		s.mu.Unlock()
		return ErrLocationUnavailable
	}
	from := s.origin
	s.mu.Unlock()

	return s.selectCandidate(hospitalID, from)
}

func (s *Session) selectCandidate(hospitalID string, from geo.Point) error {
	s.mu.Lock()

	var target geo.Point
	found := false
	for _, c := range s.candidates {
		if c.HospitalID == hospitalID {
			if p, ok := c.Position(); ok {
				target = p
				found = true
			}
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return ErrUnknownCandidate
	}

	// Only one route is active at a time: cancel the previous
	// computation before starting the next.
	if s.routeCancel != nil {
		s.routeCancel()
	}
	routeCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.routeCancel = cancel
	s.routeDone = done
	s.routeGen++
	gen := s.routeGen
	s.selectedID = hospitalID
	s.route = nil
	s.mu.Unlock()

	go func() {
		defer close(done)
		summary, err := s.router.Route(routeCtx, from, target)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed || gen != s.routeGen {
			// A newer selection superseded this computation.
			return
		}
		if err != nil {
			// Routing failure leaves the ETA blank; selection and
			// admission requests stay available.
			log.Printf("route to %s failed: %v", hospitalID, err)
			return
		}
		s.route = &summary
	}()

	return nil
}

// Snapshot is a read-only view of the session for rendering.
type Snapshot struct {
	SessionID   string                     `json:"sessionId"`
	Specialty   string                     `json:"specialty"`
	Status      string                     `json:"status"`
	Candidates  []models.HospitalCandidate `json:"candidates"`
	Unroutable  []models.HospitalCandidate `json:"unroutable,omitempty"`
	SelectedID  string                     `json:"selectedId,omitempty"`
	ETA         string                     `json:"eta,omitempty"`
	DistanceKm  float64                    `json:"distanceKm,omitempty"`
	EtaResolved bool                       `json:"etaResolved"`
}

// Snapshot returns the current view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:  s.ID,
		Specialty:  s.Specialty,
		Status:     s.status,
		Candidates: append([]models.HospitalCandidate(nil), s.candidates...),
		Unroutable: append([]models.HospitalCandidate(nil), s.unroutable...),
		SelectedID: s.selectedID,
	}
	if s.route != nil {
		snap.ETA = s.route.ETA()
		snap.DistanceKm = s.route.TotalDistance / 1000
		snap.EtaResolved = true
	} else if s.located && s.selectedID != "" {
		// Straight-line distance stands in until the road route
		// resolves.
		for _, c := range s.candidates {
			if c.HospitalID != s.selectedID {
				continue
			}
			if pos, ok := c.Position(); ok {
				snap.DistanceKm = geo.DistanceKm(s.origin, pos)
			}
			break
		}
	}
	return snap
}

// Closed reports whether the session has been torn down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close tears the session down: the in-flight route computation is
// cancelled and awaited, and the session refuses further operations.
// Close is idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.routeCancel
	done := s.routeDone
	s.routeCancel = nil
	s.routeDone = nil
	s.route = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Manager hands out locator sessions and guarantees that each owner
// has at most one live session: acquiring a new one fully disposes the
// previous instance's resources first.
type Manager struct {
	dir    Directory
	router Router

	mu       sync.Mutex
	sessions map[string]*Session // by owner
}

// NewManager creates a session manager.
func NewManager(dir Directory, router Router) *Manager {
	return &Manager{
		dir:      dir,
		router:   router,
		sessions: make(map[string]*Session),
	}
}

// Acquire creates the locator session for an owner, closing any
// previous one.
func (m *Manager) Acquire(ownerID, specialty string, critical bool) *Session {
	session := NewSession(m.dir, m.router, specialty, critical)

	m.mu.Lock()
	previous := m.sessions[ownerID]
	m.sessions[ownerID] = session
	m.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	return session
}

// Get returns the owner's live session, if any.
func (m *Manager) Get(ownerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[ownerID]
	return session, ok
}

// Release closes and forgets the owner's session.
func (m *Manager) Release(ownerID string) {
	m.mu.Lock()
	session := m.sessions[ownerID]
	delete(m.sessions, ownerID)
	m.mu.Unlock()

	if session != nil {
		session.Close()
	}
}

// Live returns the number of live sessions, for teardown checks.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
