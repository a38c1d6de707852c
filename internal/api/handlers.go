package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/savegress/medroute/internal/admission"
	"github.com/savegress/medroute/internal/authgw"
	"github.com/savegress/medroute/internal/config"
	"github.com/savegress/medroute/internal/directory"
	"github.com/savegress/medroute/internal/locator"
	"github.com/savegress/medroute/internal/session"
	"github.com/savegress/medroute/internal/staff"
	"github.com/savegress/medroute/internal/triage"
	"github.com/savegress/medroute/internal/voice"
	"github.com/savegress/medroute/pkg/geo"
	"github.com/savegress/medroute/pkg/models"
)

// Handlers contains the HTTP handlers for the triage API. Admission
// workflows are held per session, staff feeds per hospital; both are
// torn down through Close on shutdown.
type Handlers struct {
	config   *config.Config
	deps     *Dependencies
	recorder *voice.Recorder

	mu        sync.Mutex
	workflows map[string]*admission.Workflow
	feeds     map[string]*staff.Feed
}

// NewHandlers creates handlers with the given dependencies
func NewHandlers(cfg *config.Config, deps *Dependencies) *Handlers {
	return &Handlers{
		config:    cfg,
		deps:      deps,
		recorder:  voice.NewRecorder(cfg.Voice.RecordWindow, cfg.Voice.MaxAudioSize),
		workflows: make(map[string]*admission.Workflow),
		feeds:     make(map[string]*staff.Feed),
	}
}

// Close stops every live workflow poll loop and staff feed.
func (h *Handlers) Close() {
	h.mu.Lock()
	workflows := make([]*admission.Workflow, 0, len(h.workflows))
	for _, wf := range h.workflows {
		workflows = append(workflows, wf)
	}
	feeds := make([]*staff.Feed, 0, len(h.feeds))
	for _, f := range h.feeds {
		feeds = append(feeds, f)
	}
	h.workflows = make(map[string]*admission.Workflow)
	h.feeds = make(map[string]*staff.Feed)
	h.mu.Unlock()

	for _, wf := range workflows {
		wf.Stop()
	}
	for _, f := range feeds {
		f.Stop()
	}
}

// HealthCheck returns service health status
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "medroute",
	})
}

func (h *Handlers) sessionFrom(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.Header.Get("X-Session-ID")
	if id == "" {
		respondError(w, http.StatusBadRequest, "Missing X-Session-ID header")
		return nil, false
	}
	sess, ok := h.deps.Sessions.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown session")
		return nil, false
	}
	return sess, true
}

// OpenSession starts a new navigation session on the landing screen.
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	sess := h.deps.Sessions.Create()
	respond(w, http.StatusCreated, map[string]interface{}{
		"sessionId": sess.ID,
		"view":      sess.View(),
	})
}

// SessionState reports the current view and identity of a session.
func (h *Handlers) SessionState(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	state := map[string]interface{}{
		"sessionId": sess.ID,
		"view":      sess.View(),
	}
	if account, ok := sess.User(); ok {
		state["user"] = account
	}
	if account, ok := sess.Hospital(); ok {
		state["hospital"] = account
	}
	if pending, ok := sess.Pending(); ok {
		state["pendingContext"] = pending
	}
	respond(w, http.StatusOK, state)
}

// GoHome returns a session to the landing screen, releasing any
// screen-bound resources on the way out.
func (h *Handlers) GoHome(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}
	view := sess.GoHome()
	respond(w, http.StatusOK, map[string]interface{}{"view": view})
}

// Logout clears the session identity and stored tokens.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}
	view := sess.Logout()
	h.deps.Tokens.Clear()
	respond(w, http.StatusOK, map[string]interface{}{"view": view})
}

// TriageText runs the text description through the analysis service
// and applies the triage decision to the session.
func (h *Handlers) TriageText(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	var payload struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Empty input never reaches the analysis service.
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		respondError(w, http.StatusBadRequest, "Describe the emergency before submitting")
		return
	}

	result, err := h.deps.Analysis.AnalyzeText(r.Context(), text)
	if err != nil {
		view := sess.AnalysisFailed()
		respond(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Analysis service unavailable. Please try again.",
			"view":  view,
		})
		return
	}

	h.applyDecision(w, sess, result, result.TranscribedText)
}

// TriageAudio captures the uploaded recording within the fixed
// recording window and runs it through audio analysis.
func (h *Handlers) TriageAudio(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "Missing audio file")
		return
	}
	defer file.Close()

	audio, err := h.recorder.Capture(r.Context(), file)
	if err != nil {
		switch {
		case errors.Is(err, voice.ErrNoAudio):
			respondError(w, http.StatusBadRequest, "No audio captured")
		case errors.Is(err, voice.ErrAudioTooLarge):
			respondError(w, http.StatusRequestEntityTooLarge, "Audio recording too large")
		default:
			respondError(w, http.StatusBadRequest, "Could not read audio")
		}
		return
	}

	analyzed, err := h.deps.Analysis.AnalyzeAudio(r.Context(), bytes.NewReader(audio), header.Filename)
	if err != nil {
		view := sess.AnalysisFailed()
		respond(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Analysis service unavailable. Please try again.",
			"view":  view,
		})
		return
	}

	h.applyDecision(w, sess, analyzed.Analysis, analyzed.TranscribedText)
}

func (h *Handlers) applyDecision(w http.ResponseWriter, sess *session.Session, result models.AnalysisResult, transcript string) {
	mctx, err := triage.Decide(result)
	if err != nil {
		view := sess.AnalysisFailed()
		respond(w, http.StatusBadGateway, map[string]interface{}{
			"error": "Analysis returned an incomplete result. Please try again.",
			"view":  view,
		})
		return
	}

	h.deps.Journal.RecordDecision(sess.ID, mctx, result.DiseaseInfo.DiseasePrediction)
	view := sess.AnalysisProduced(mctx)

	response := map[string]interface{}{
		"view":     view,
		"context":  mctx,
		"analysis": result,
	}
	if transcript != "" {
		response["transcribedText"] = transcript
	}
	respond(w, http.StatusOK, response)
}

// TriageBodyRegion applies a manual body-map selection. Every manual
// selection routes as critical; the general emergency region skips the
// informational card entirely.
func (h *Handlers) TriageBodyRegion(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	var payload struct {
		Region string `json:"region"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(payload.Region) == "" {
		respondError(w, http.StatusBadRequest, "Missing body region")
		return
	}

	region := models.BodyRegion(payload.Region)
	mctx := triage.DecideFromBodyRegion(region)
	h.deps.Journal.RecordDecision(sess.ID, mctx, triage.DescribeRegion(region))
	view := sess.AnalysisProduced(mctx)

	response := map[string]interface{}{
		"view":    view,
		"context": mctx,
	}
	if region != models.RegionGeneralEmergency {
		response["card"] = triage.CardFor(region)
	}
	respond(w, http.StatusOK, response)
}

// LocatorStart consumes the pending triage decision and mounts the
// hospital locator for the session. The origin comes from the client's
// geolocation; critical cases never proceed without one.
func (h *Handlers) LocatorStart(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	var payload struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	mctx, ok := sess.ConsumeContext()
	if !ok {
		respondError(w, http.StatusConflict, "No pending triage decision")
		return
	}

	var origin *geo.Point
	if payload.Latitude != nil && payload.Longitude != nil {
		origin = &geo.Point{Lat: *payload.Latitude, Lng: *payload.Longitude}
	}

	// Attaching first runs the previous screen's disposer, so the
	// release below can only ever hit the outgoing locator session.
	sessionID := sess.ID
	sess.AttachCleanup(func() {
		h.deps.Locators.Release(sessionID)
		h.stopWorkflow(sessionID)
	})
	loc := h.deps.Locators.Acquire(sessionID, mctx.Specialty, mctx.IsCritical)

	if err := loc.Start(r.Context(), origin); err != nil && !errors.Is(err, locator.ErrLocationUnavailable) {
		respondError(w, http.StatusInternalServerError, "Could not start hospital search")
		return
	}

	snap := loc.Snapshot()
	h.deps.Journal.RecordLocation(sess.ID, snap.Status)
	respond(w, http.StatusOK, snap)
}

func (h *Handlers) locatorFrom(w http.ResponseWriter, sess *session.Session) (*locator.Session, bool) {
	loc, ok := h.deps.Locators.Get(sess.ID)
	if !ok {
		respondError(w, http.StatusNotFound, "No locator session")
		return nil, false
	}
	return loc, true
}

// LocatorSnapshot returns the current state of the mounted locator.
func (h *Handlers) LocatorSnapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}
	loc, ok := h.locatorFrom(w, sess)
	if !ok {
		return
	}
	respond(w, http.StatusOK, loc.Snapshot())
}

// LocatorSelect switches the selected hospital and kicks off the road
// route computation for it.
func (h *Handlers) LocatorSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}
	loc, ok := h.locatorFrom(w, sess)
	if !ok {
		return
	}

	var payload struct {
		HospitalID string `json:"hospitalId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.HospitalID == "" {
		respondError(w, http.StatusBadRequest, "Missing hospital ID")
		return
	}

	if err := loc.Select(payload.HospitalID); err != nil {
		switch {
		case errors.Is(err, locator.ErrUnknownCandidate):
			respondError(w, http.StatusNotFound, "Hospital is not on the current map")
		case errors.Is(err, locator.ErrSessionClosed):
			respondError(w, http.StatusConflict, "Locator session closed")
		default:
			respondError(w, http.StatusInternalServerError, "Selection failed")
		}
		return
	}

	respond(w, http.StatusOK, loc.Snapshot())
}

// LocatorClose tears down the locator session explicitly.
func (h *Handlers) LocatorClose(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}
	h.deps.Locators.Release(sess.ID)
	respond(w, http.StatusOK, map[string]bool{"released": true})
}

func (h *Handlers) workflowFor(sessionID string) *admission.Workflow {
	h.mu.Lock()
	defer h.mu.Unlock()
	if wf, ok := h.workflows[sessionID]; ok {
		return wf
	}
	wf := admission.NewWorkflow(h.deps.Admission, h.config.Requests.PollInterval, func(req models.AdmissionRequest) {
		h.deps.Journal.RecordAdmission(sessionID, req)
	})
	h.workflows[sessionID] = wf
	return wf
}

func (h *Handlers) workflow(sessionID string) (*admission.Workflow, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	wf, ok := h.workflows[sessionID]
	return wf, ok
}

func (h *Handlers) stopWorkflow(sessionID string) {
	h.mu.Lock()
	wf, ok := h.workflows[sessionID]
	delete(h.workflows, sessionID)
	h.mu.Unlock()
	if ok {
		wf.Stop()
	}
}

// SubmitRequest sends an admission request to the selected hospital
// and starts polling its status. Submission requires explicit
// confirmation from the caller.
func (h *Handlers) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	var payload struct {
		HospitalID         string `json:"hospitalId"`
		PatientName        string `json:"patientName"`
		ContactNumber      string `json:"contactNumber"`
		SymptomDescription string `json:"symptomDescription"`
		Confirmed          bool   `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.HospitalID == "" || payload.PatientName == "" || payload.ContactNumber == "" {
		respondError(w, http.StatusBadRequest, "Hospital, patient name and contact number are required")
		return
	}

	wf := h.workflowFor(sess.ID)

	// The poll loop outlives this HTTP request; it is stopped through
	// the session cleanup or Close.
	created, err := wf.Submit(context.Background(), admission.CreateRequest{
		HospitalID:         payload.HospitalID,
		PatientName:        payload.PatientName,
		ContactNumber:      payload.ContactNumber,
		SymptomDescription: payload.SymptomDescription,
	}, payload.Confirmed)
	if err != nil {
		switch {
		case errors.Is(err, admission.ErrNotConfirmed):
			respondError(w, http.StatusBadRequest, "Confirm the request before sending")
		case errors.Is(err, admission.ErrRequestInFlight):
			respondError(w, http.StatusConflict, "A request to this hospital is already pending")
		default:
			respondError(w, http.StatusBadGateway, "Could not submit the admission request")
		}
		return
	}

	respond(w, http.StatusAccepted, created)
}

// ActiveRequest reports the in-flight admission request, if any.
func (h *Handlers) ActiveRequest(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	wf, ok := h.workflow(sess.ID)
	if !ok {
		respondError(w, http.StatusNotFound, "No admission request")
		return
	}
	active, ok := wf.Active()
	if !ok {
		respondError(w, http.StatusNotFound, "No admission request")
		return
	}
	respond(w, http.StatusOK, active)
}

// PatientLogin authenticates a patient and advances the session. A
// pending critical context survives the login and lands the patient on
// the emergency dashboard.
func (h *Handlers) PatientLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	var creds authgw.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.deps.Auth.PatientLogin(r.Context(), creds)
	if err != nil {
		if errors.Is(err, authgw.ErrAuthFailed) {
			respondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondError(w, http.StatusBadGateway, "Authentication service unavailable")
		return
	}

	h.deps.Tokens.SetPatient(result)
	view := sess.LoginSucceeded(session.Account{Email: result.Email, Phone: result.Phone})
	respond(w, http.StatusOK, map[string]interface{}{
		"view":  view,
		"token": result.Token,
	})
}

// PatientRegister creates a patient account and returns to the login
// screen.
func (h *Handlers) PatientRegister(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	var reg authgw.PatientRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil || reg.Email == "" || reg.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	if err := h.deps.Auth.PatientRegister(r.Context(), reg); err != nil {
		if errors.Is(err, authgw.ErrAuthFailed) {
			respondError(w, http.StatusConflict, "Registration rejected")
			return
		}
		respondError(w, http.StatusBadGateway, "Authentication service unavailable")
		return
	}

	sess.ShowLogin()
	respond(w, http.StatusCreated, map[string]interface{}{"view": sess.View()})
}

// HospitalLogin authenticates hospital staff.
func (h *Handlers) HospitalLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	var creds authgw.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	result, err := h.deps.Auth.HospitalLogin(r.Context(), creds)
	if err != nil {
		if errors.Is(err, authgw.ErrAuthFailed) {
			respondError(w, http.StatusUnauthorized, "Invalid email or password")
			return
		}
		respondError(w, http.StatusBadGateway, "Authentication service unavailable")
		return
	}

	h.deps.Tokens.SetHospital(result)
	view := sess.HospitalLoginSucceeded(session.Account{Email: result.Email, Phone: result.Phone})
	respond(w, http.StatusOK, map[string]interface{}{
		"view":  view,
		"token": result.Token,
	})
}

// HospitalRegister creates a hospital account.
func (h *Handlers) HospitalRegister(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessionFrom(w, r)
	if !ok {
		return
	}

	var reg authgw.HospitalRegistration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil || reg.Email == "" || reg.Password == "" {
		respondError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	if err := h.deps.Auth.HospitalRegister(r.Context(), reg); err != nil {
		if errors.Is(err, authgw.ErrAuthFailed) {
			respondError(w, http.StatusConflict, "Registration rejected")
			return
		}
		respondError(w, http.StatusBadGateway, "Authentication service unavailable")
		return
	}

	sess.ShowHospitalLogin()
	respond(w, http.StatusCreated, map[string]interface{}{"view": sess.View()})
}

func (h *Handlers) feedFor(hospitalID string) *staff.Feed {
	h.mu.Lock()
	defer h.mu.Unlock()
	if f, ok := h.feeds[hospitalID]; ok {
		return f
	}
	f := staff.NewFeed(h.deps.Admission, h.deps.Admission, hospitalID, h.config.Requests.FeedInterval, nil)
	if err := f.Start(context.Background()); err != nil {
		log.Printf("staff feed start failed for %s: %v", hospitalID, err)
	}
	h.feeds[hospitalID] = f
	return f
}

func (h *Handlers) staffHospital(w http.ResponseWriter, r *http.Request) (*directory.HospitalProfile, bool) {
	email, ok := r.Context().Value("hospitalEmail").(string)
	if !ok || email == "" {
		respondError(w, http.StatusUnauthorized, "Missing hospital identity")
		return nil, false
	}

	profile, err := h.deps.Directory.ByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, directory.ErrHospitalNotFound) {
			respondError(w, http.StatusNotFound, "Hospital profile not found")
			return nil, false
		}
		respondError(w, http.StatusBadGateway, "Hospital directory unavailable")
		return nil, false
	}
	return profile, true
}

// StaffRequests lists the admission requests addressed to the
// authenticated hospital.
func (h *Handlers) StaffRequests(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.staffHospital(w, r)
	if !ok {
		return
	}

	feed := h.feedFor(profile.HospitalID)
	requests := feed.Refresh(r.Context())
	respond(w, http.StatusOK, map[string]interface{}{
		"hospitalId": profile.HospitalID,
		"requests":   requests,
	})
}

// StaffResolve accepts or declines an admission request.
func (h *Handlers) StaffResolve(w http.ResponseWriter, r *http.Request) {
	profile, ok := h.staffHospital(w, r)
	if !ok {
		return
	}

	requestID := chi.URLParam(r, "id")

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	status := models.RequestStatus(payload.Status)
	if !status.Terminal() {
		respondError(w, http.StatusBadRequest, "Status must be Accepted or Declined")
		return
	}

	feed := h.feedFor(profile.HospitalID)
	if err := feed.Resolve(r.Context(), requestID, status); err != nil {
		respondError(w, http.StatusBadGateway, "Could not update the request")
		return
	}

	respond(w, http.StatusOK, map[string]interface{}{
		"requests": feed.Latest(),
	})
}

// JournalBySession returns the recorded triage trail of one session.
func (h *Handlers) JournalBySession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "Missing session query parameter")
		return
	}
	respond(w, http.StatusOK, h.deps.Journal.BySession(sessionID))
}

// respond writes a JSON response
func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}
