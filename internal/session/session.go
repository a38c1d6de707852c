package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/savegress/medroute/pkg/models"
)

// View identifies the active screen of a session.
type View string

const (
	ViewLanding                View = "Landing"
	ViewAuthLogin              View = "AuthLogin"
	ViewAuthSignup             View = "AuthSignup"
	ViewUserDashboard          View = "UserDashboard"
	ViewUserDashboardEmergency View = "UserDashboardEmergency"
	ViewPublicEmergencyMap     View = "PublicEmergencyMap"
	ViewHospitalLogin          View = "HospitalLogin"
	ViewHospitalSignup         View = "HospitalSignup"
	ViewHospitalDashboard      View = "HospitalDashboard"
)

// ErrNotAuthenticated is returned when a transition requires a logged
// in account that the session does not have.
var ErrNotAuthenticated = errors.New("not authenticated")

// Account is the identity kept for session continuity.
type Account struct {
	Email string
	Phone string
}

// Session owns the navigation state of one client: the current view,
// the account, and the pending medical context of the running triage
// episode. At most one context is pending at a time; producing a new
// one overwrites the old.
type Session struct {
	ID string

	mu       sync.Mutex
	view     View
	user     *Account
	hospital *Account
	pending  *models.MedicalContext

	// cleanup releases the resources of the currently mounted
	// map/workflow screen (locator session, poll loop). It runs on
	// every exit path from that screen.
	cleanup func()
}

// New creates a session on the landing screen.
func New() *Session {
	return &Session{
		ID:   uuid.New().String(),
		view: ViewLanding,
	}
}

// View returns the current view.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Pending returns the pending medical context, if any.
func (s *Session) Pending() (models.MedicalContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return models.MedicalContext{}, false
	}
	return *s.pending, true
}

// User returns the authenticated patient account, if any.
func (s *Session) User() (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return Account{}, false
	}
	return *s.user, true
}

// AttachCleanup registers the disposer of the currently mounted
// map/workflow screen. A previously registered disposer is run first,
// so two mounts never hold resources at once.
func (s *Session) AttachCleanup(fn func()) {
	s.mu.Lock()
	previous := s.cleanup
	s.cleanup = fn
	s.mu.Unlock()

	if previous != nil {
		previous()
	}
}

// runCleanup runs and clears the screen disposer. The disposer itself
// runs unlocked.
func (s *Session) runCleanup() {
	s.mu.Lock()
	fn := s.cleanup
	s.cleanup = nil
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// AnalysisProduced records the triage decision and branches: critical
// cases go straight to the public emergency map with no login wall;
// non-critical cases are forced through authentication first.
func (s *Session) AnalysisProduced(ctx models.MedicalContext) View {
	s.mu.Lock()
	s.pending = &ctx
	if ctx.IsCritical {
		s.view = ViewPublicEmergencyMap
	} else {
		s.view = ViewAuthLogin
	}
	view := s.view
	s.mu.Unlock()
	return view
}

// AnalysisFailed records a gateway failure. The view never changes:
// the landing screen stays active and shows the error prompt.
func (s *Session) AnalysisFailed() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// ShowLogin navigates to the patient login form.
func (s *Session) ShowLogin() {
	s.setView(ViewAuthLogin)
}

// ShowSignup navigates to the patient signup form.
func (s *Session) ShowSignup() {
	s.setView(ViewAuthSignup)
}

// ShowHospitalLogin navigates to the hospital staff login form.
func (s *Session) ShowHospitalLogin() {
	s.setView(ViewHospitalLogin)
}

// ShowHospitalSignup navigates to the hospital registration form.
func (s *Session) ShowHospitalSignup() {
	s.setView(ViewHospitalSignup)
}

func (s *Session) setView(v View) {
	s.mu.Lock()
	leaving := s.view
	s.view = v
	s.mu.Unlock()

	if leavesScreenResources(leaving, v) {
		s.runCleanup()
	}
}

// leavesScreenResources reports whether moving from one view to
// another abandons a mounted map/workflow screen.
func leavesScreenResources(from, to View) bool {
	if from == to {
		return false
	}
	return from == ViewPublicEmergencyMap || from == ViewUserDashboardEmergency
}

// LoginSucceeded installs the patient account. With a pending medical
// context from before login the session resumes the emergency flow on
// the dashboard; otherwise it lands on the plain dashboard.
func (s *Session) LoginSucceeded(account Account) View {
	s.mu.Lock()
	s.user = &account
	if s.pending != nil {
		s.view = ViewUserDashboardEmergency
	} else {
		s.view = ViewUserDashboard
	}
	view := s.view
	s.mu.Unlock()
	return view
}

// HospitalLoginSucceeded installs the hospital account and opens the
// staff dashboard.
func (s *Session) HospitalLoginSucceeded(account Account) View {
	s.mu.Lock()
	s.hospital = &account
	s.view = ViewHospitalDashboard
	view := s.view
	s.mu.Unlock()
	return view
}

// Hospital returns the authenticated hospital account, if any.
func (s *Session) Hospital() (Account, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hospital == nil {
		return Account{}, false
	}
	return *s.hospital, true
}

// Logout returns to the landing screen, clearing all session and
// medical-context state.
func (s *Session) Logout() View {
	s.mu.Lock()
	s.user = nil
	s.hospital = nil
	s.pending = nil
	s.view = ViewLanding
	s.mu.Unlock()

	s.runCleanup()
	return ViewLanding
}

// GoHome is the explicit "home" action available from any screen. It
// always clears the in-flight medical context and any admission
// tracking.
func (s *Session) GoHome() View {
	s.mu.Lock()
	s.pending = nil
	s.view = ViewLanding
	s.mu.Unlock()

	s.runCleanup()
	return ViewLanding
}

// ConsumeContext hands the pending context to the next screen and
// discards it; the context is consumed exactly once.
func (s *Session) ConsumeContext() (models.MedicalContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return models.MedicalContext{}, false
	}
	ctx := *s.pending
	s.pending = nil
	return ctx, true
}

// Manager tracks live sessions by ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

// Create registers a new session.
func (m *Manager) Create() *Session {
	session := New()
	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	return session
}

// Get looks up a session by ID.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	return session, ok
}

// GetOrCreate resolves the session for an ID, creating one when the ID
// is unknown or empty.
func (m *Manager) GetOrCreate(id string) *Session {
	if id != "" {
		if session, ok := m.Get(id); ok {
			return session
		}
	}
	return m.Create()
}

// Remove forgets a session and releases its screen resources.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	session := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if session != nil {
		session.runCleanup()
	}
}
