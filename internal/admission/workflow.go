package admission

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/savegress/medroute/pkg/models"
)

// ErrNotConfirmed is returned when a submission arrives without the
// explicit confirmation guard. The network call is never made.
var ErrNotConfirmed = errors.New("admission request not confirmed")

// ErrRequestInFlight is returned when a non-terminal request already
// exists for the same hospital. Rapid double-clicks must not produce
// duplicate submissions.
var ErrRequestInFlight = errors.New("admission request already in flight for this hospital")

// StatusChecker is the slice of the admission client the poll loop
// needs.
type StatusChecker interface {
	CheckStatus(ctx context.Context, requestID string) (models.RequestStatus, error)
}

// Submitter creates admission requests.
type Submitter interface {
	Submit(ctx context.Context, req CreateRequest) (string, error)
}

// SubmitClient combines the two workflow dependencies; *Client
// satisfies it.
type SubmitClient interface {
	Submitter
	StatusChecker
}

// Workflow owns the admission attempts of one emergency screen. At
// most one request is active (non-terminal) at a time; submitting
// against a different hospital stops the previous poll loop first, so
// no loop is ever orphaned.
type Workflow struct {
	client   SubmitClient
	interval time.Duration
	onResult func(models.AdmissionRequest)

	mu       sync.Mutex
	inFlight bool
	active   *models.AdmissionRequest
	cancel   context.CancelFunc
	done     chan struct{}
	history  []models.AdmissionRequest
}

// NewWorkflow creates a workflow polling at the given interval.
// onResult is invoked once per request, when it reaches a terminal
// status; it may be nil.
func NewWorkflow(client SubmitClient, interval time.Duration, onResult func(models.AdmissionRequest)) *Workflow {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Workflow{
		client:   client,
		interval: interval,
		onResult: onResult,
	}
}

// Submit creates an admission request after the confirmation guard and
// starts its status poll loop. The previous request's loop, if any, is
// stopped before the new submission goes out.
func (w *Workflow) Submit(ctx context.Context, req CreateRequest, confirmed bool) (*models.AdmissionRequest, error) {
	if !confirmed {
		return nil, ErrNotConfirmed
	}

	w.mu.Lock()
	if w.inFlight {
		w.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	if w.active != nil && !w.active.Status.Terminal() && w.active.HospitalID == req.HospitalID {
		w.mu.Unlock()
		return nil, ErrRequestInFlight
	}
	// Reserve the submission slot before releasing the lock: a rapid
	// second click must fail the guard, not race the network call.
	w.inFlight = true
	if w.active != nil && !w.active.Status.Terminal() {
		// Switching targets: stop the previous poll loop before a new
		// request exists.
		w.stopLocked()
	}
	w.mu.Unlock()

	id, err := w.client.Submit(ctx, req)
	if err != nil {
		w.mu.Lock()
		w.inFlight = false
		w.mu.Unlock()
		return nil, err
	}

	active := &models.AdmissionRequest{
		ID:                 id,
		HospitalID:         req.HospitalID,
		PatientName:        req.PatientName,
		ContactNumber:      req.ContactNumber,
		SymptomDescription: req.SymptomDescription,
		Status:             models.RequestPending,
		CreatedAt:          time.Now().UTC(),
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	w.mu.Lock()
	w.inFlight = false
	w.active = active
	w.cancel = cancel
	w.done = done
	w.mu.Unlock()

	go w.poll(pollCtx, id, done)

	result := *active
	return &result, nil
}

// poll checks the request status at the configured interval until a
// terminal status is observed or the loop is cancelled. The loop
// honors cancellation before each tick's network call.
func (w *Workflow) poll(ctx context.Context, requestID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if ctx.Err() != nil {
			return
		}

		status, err := w.client.CheckStatus(ctx, requestID)
		if err != nil {
			// Transient failure: keep polling.
			log.Printf("admission status check failed for %s: %v", requestID, err)
			continue
		}

		if !status.Terminal() {
			continue
		}

		w.mu.Lock()
		var resolved models.AdmissionRequest
		if w.active != nil && w.active.ID == requestID {
			w.active.Status = status
			resolved = *w.active
			w.history = append(w.history, resolved)
		}
		w.mu.Unlock()

		if w.onResult != nil && resolved.ID != "" {
			w.onResult(resolved)
		}
		return
	}
}

// Active returns a copy of the current request, terminal or not.
func (w *Workflow) Active() (models.AdmissionRequest, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil {
		return models.AdmissionRequest{}, false
	}
	return *w.active, true
}

// CanSubmit reports whether a new request may target the hospital.
// It is false while a non-terminal request exists for that target.
func (w *Workflow) CanSubmit(hospitalID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight {
		return false
	}
	if w.active == nil || w.active.Status.Terminal() {
		return true
	}
	return w.active.HospitalID != hospitalID
}

// History returns the resolved requests, oldest first. Entries are
// immutable once terminal.
func (w *Workflow) History() []models.AdmissionRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.AdmissionRequest, len(w.history))
	copy(out, w.history)
	return out
}

// Stop cancels the outstanding poll loop, if any, and waits for it to
// exit. Called on screen teardown.
func (w *Workflow) Stop() {
	w.mu.Lock()
	w.stopLocked()
	w.mu.Unlock()
}

func (w *Workflow) stopLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	if w.done != nil {
		done := w.done
		w.done = nil
		w.mu.Unlock()
		<-done
		w.mu.Lock()
	}
}
