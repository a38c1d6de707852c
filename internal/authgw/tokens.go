package authgw

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token is a stored bearer token with the claims we read out of it.
// The upstream auth service signs tokens; this side only inspects
// them.
type Token struct {
	Raw       string
	Subject   string
	ExpiresAt time.Time
	Email     string
	Phone     string
}

// Valid reports whether the token exists and has not expired. Tokens
// without an exp claim are treated as non-expiring.
func (t *Token) Valid() bool {
	if t == nil || t.Raw == "" {
		return false
	}
	if t.ExpiresAt.IsZero() {
		return true
	}
	return time.Now().Before(t.ExpiresAt)
}

// Inspect parses a bearer token without verifying its signature and
// extracts the subject and expiry. Opaque (non-JWT) tokens are kept
// as-is with no claims.
func Inspect(raw string) Token {
	token := Token{Raw: raw}

	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return token
	}

	if sub, err := parsed.Claims.GetSubject(); err == nil {
		token.Subject = sub
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		token.ExpiresAt = exp.Time
	}

	return token
}

// Store keeps the bearer tokens and identity strings of the current
// process. This is the only identity state that survives navigation;
// nothing is written to disk.
type Store struct {
	mu       sync.RWMutex
	patient  *Token
	hospital *Token
}

// NewStore creates an empty token store.
func NewStore() *Store {
	return &Store{}
}

// SetPatient stores the patient login result.
func (s *Store) SetPatient(result *LoginResult) {
	token := Inspect(result.Token)
	token.Email = result.Email
	token.Phone = result.Phone

	s.mu.Lock()
	s.patient = &token
	s.mu.Unlock()
}

// SetHospital stores the hospital login result.
func (s *Store) SetHospital(result *LoginResult) {
	token := Inspect(result.Token)
	token.Email = result.Email

	s.mu.Lock()
	s.hospital = &token
	s.mu.Unlock()
}

// Patient returns the stored patient token, if still valid.
func (s *Store) Patient() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.patient.Valid() {
		return Token{}, false
	}
	return *s.patient, true
}

// Hospital returns the stored hospital token, if still valid.
func (s *Store) Hospital() (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hospital.Valid() {
		return Token{}, false
	}
	return *s.hospital, true
}

// Clear drops all stored identity.
func (s *Store) Clear() {
	s.mu.Lock()
	s.patient = nil
	s.hospital = nil
	s.mu.Unlock()
}
