package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/savegress/medroute/internal/admission"
	"github.com/savegress/medroute/internal/analysis"
	"github.com/savegress/medroute/internal/authgw"
	"github.com/savegress/medroute/internal/config"
	"github.com/savegress/medroute/internal/directory"
	"github.com/savegress/medroute/internal/journal"
	"github.com/savegress/medroute/internal/locator"
	"github.com/savegress/medroute/internal/session"
)

// Server represents the API server
type Server struct {
	config   *config.Config
	router   chi.Router
	handlers *Handlers
}

// Dependencies bundles the components the API serves.
type Dependencies struct {
	Sessions  *session.Manager
	Analysis  *analysis.Client
	Directory *directory.Client
	Locators  *locator.Manager
	Admission *admission.Client
	Auth      *authgw.Client
	Tokens    *authgw.Store
	Journal   *journal.Journal
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps *Dependencies) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		handlers: NewHandlers(cfg, deps),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-ID"},
		ExposedHeaders:   []string{"Link", "X-Session-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Session navigation
		r.Post("/session", s.handlers.OpenSession)
		r.Get("/session", s.handlers.SessionState)
		r.Post("/session/home", s.handlers.GoHome)
		r.Post("/session/logout", s.handlers.Logout)

		// Triage: text, audio, manual body map
		r.Route("/triage", func(r chi.Router) {
			r.Post("/text", s.handlers.TriageText)
			r.Post("/audio", s.handlers.TriageAudio)
			r.Post("/body-region", s.handlers.TriageBodyRegion)
		})

		// Emergency map screen
		r.Route("/locator", func(r chi.Router) {
			r.Post("/start", s.handlers.LocatorStart)
			r.Get("/", s.handlers.LocatorSnapshot)
			r.Post("/select", s.handlers.LocatorSelect)
			r.Post("/close", s.handlers.LocatorClose)
		})

		// Admission workflow
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", s.handlers.SubmitRequest)
			r.Get("/active", s.handlers.ActiveRequest)
		})

		// Auth proxy
		r.Route("/auth", func(r chi.Router) {
			r.Post("/patient/login", s.handlers.PatientLogin)
			r.Post("/patient/register", s.handlers.PatientRegister)
			r.Post("/hospital/login", s.handlers.HospitalLogin)
			r.Post("/hospital/register", s.handlers.HospitalRegister)
		})

		// Hospital staff, behind bearer auth
		r.Route("/staff", func(r chi.Router) {
			r.Use(AuthMiddleware(s.config))
			r.Get("/requests", s.handlers.StaffRequests)
			r.Post("/requests/{id}/resolve", s.handlers.StaffResolve)
			r.Get("/journal", s.handlers.JournalBySession)
		})
	})
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// Close releases handler-owned background loops.
func (s *Server) Close() {
	s.handlers.Close()
}
