package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/savegress/medroute/pkg/models"
)

// fakeClient serves scripted statuses and counts poll calls.
type fakeClient struct {
	mu          sync.Mutex
	submits     int
	checks      map[string]int
	statuses    map[string][]models.RequestStatus // consumed per check; last value sticks
	submitErr   error
	submitDelay time.Duration
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		checks:   make(map[string]int),
		statuses: make(map[string][]models.RequestStatus),
	}
}

func (f *fakeClient) Submit(ctx context.Context, req CreateRequest) (string, error) {
	f.mu.Lock()
	delay, submitErr := f.submitDelay, f.submitErr
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if submitErr != nil {
		return "", submitErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits++
	return fmt.Sprintf("req-%d", f.submits), nil
}

func (f *fakeClient) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits
}

func (f *fakeClient) CheckStatus(ctx context.Context, requestID string) (models.RequestStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks[requestID]++
	script := f.statuses[requestID]
	if len(script) == 0 {
		return models.RequestPending, nil
	}
	status := script[0]
	if len(script) > 1 {
		f.statuses[requestID] = script[1:]
	}
	return status, nil
}

func (f *fakeClient) checkCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checks[id]
}

func TestWorkflow_Submit_RequiresConfirmation(t *testing.T) {
	client := newFakeClient()
	w := NewWorkflow(client, 10*time.Millisecond, nil)

	_, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h1"}, false)
	if !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("error = %v, want ErrNotConfirmed", err)
	}
	if client.submits != 0 {
		t.Error("unconfirmed submission must not reach the network")
	}
}

func TestWorkflow_PollingStopsAtTerminal(t *testing.T) {
	client := newFakeClient()
	client.statuses["req-1"] = []models.RequestStatus{
		models.RequestPending,
		models.RequestPending,
		models.RequestAccepted,
	}

	resolved := make(chan models.AdmissionRequest, 1)
	w := NewWorkflow(client, 10*time.Millisecond, func(r models.AdmissionRequest) {
		resolved <- r
	})
	defer w.Stop()

	req, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h1"}, true)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if req.Status != models.RequestPending {
		t.Errorf("initial status = %s, want Pending", req.Status)
	}

	select {
	case r := <-resolved:
		if r.Status != models.RequestAccepted {
			t.Errorf("resolved status = %s, want Accepted", r.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("terminal status never surfaced")
	}

	// Accepted was observed on the third poll; no fourth must follow.
	after := client.checkCount("req-1")
	if after != 3 {
		t.Errorf("polls at resolution = %d, want 3", after)
	}
	time.Sleep(60 * time.Millisecond)
	if final := client.checkCount("req-1"); final != after {
		t.Errorf("poll loop kept running after terminal status: %d -> %d", after, final)
	}

	// The resolved request is immutable history.
	history := w.History()
	if len(history) != 1 || history[0].Status != models.RequestAccepted {
		t.Errorf("history = %+v", history)
	}
}

func TestWorkflow_DoubleSubmitSameHospitalBlocked(t *testing.T) {
	client := newFakeClient()
	w := NewWorkflow(client, 10*time.Millisecond, nil)
	defer w.Stop()

	if _, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h1"}, true); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	if w.CanSubmit("h1") {
		t.Error("CanSubmit(h1) should be false while the request is pending")
	}

	_, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h1"}, true)
	if !errors.Is(err, ErrRequestInFlight) {
		t.Fatalf("error = %v, want ErrRequestInFlight", err)
	}
	if client.submits != 1 {
		t.Errorf("submits = %d, want 1", client.submits)
	}
}

func TestWorkflow_RapidConcurrentSubmitsSingleNetworkCall(t *testing.T) {
	client := newFakeClient()
	client.submitDelay = 50 * time.Millisecond
	w := NewWorkflow(client, 10*time.Millisecond, nil)
	defer w.Stop()

	// Two confirmed clicks land before the first network call returns.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h1"}, true)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, blocked int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrRequestInFlight):
			blocked++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || blocked != 1 {
		t.Errorf("submits: %d succeeded, %d blocked, want 1 and 1", succeeded, blocked)
	}
	if got := client.submitCount(); got != 1 {
		t.Errorf("network submissions = %d, want 1", got)
	}
	if w.CanSubmit("h1") {
		t.Error("CanSubmit(h1) should be false for the pending request")
	}
}

func TestWorkflow_NewHospitalStopsPreviousLoop(t *testing.T) {
	client := newFakeClient()
	w := NewWorkflow(client, 10*time.Millisecond, nil)
	defer w.Stop()

	if _, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h1"}, true); err != nil {
		t.Fatalf("first Submit() error = %v", err)
	}
	time.Sleep(35 * time.Millisecond) // let the first loop tick a few times

	if !w.CanSubmit("h2") {
		t.Error("CanSubmit(h2) should be true for a different hospital")
	}
	if _, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h2"}, true); err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}

	firstCount := client.checkCount("req-1")
	time.Sleep(50 * time.Millisecond)
	if got := client.checkCount("req-1"); got != firstCount {
		t.Errorf("orphaned poll loop for req-1 still running: %d -> %d", firstCount, got)
	}
	if client.checkCount("req-2") == 0 {
		t.Error("new request's poll loop never started")
	}

	active, ok := w.Active()
	if !ok || active.HospitalID != "h2" {
		t.Errorf("active = %+v, want hospital h2", active)
	}
}

func TestWorkflow_StopCancelsPolling(t *testing.T) {
	client := newFakeClient()
	w := NewWorkflow(client, 10*time.Millisecond, nil)

	if _, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h1"}, true); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	time.Sleep(25 * time.Millisecond)
	w.Stop()

	count := client.checkCount("req-1")
	time.Sleep(50 * time.Millisecond)
	if got := client.checkCount("req-1"); got != count {
		t.Errorf("polling continued after Stop(): %d -> %d", count, got)
	}
}

func TestWorkflow_SubmitFailure(t *testing.T) {
	client := newFakeClient()
	client.submitErr = ErrSubmitFailed
	w := NewWorkflow(client, 10*time.Millisecond, nil)

	_, err := w.Submit(context.Background(), CreateRequest{HospitalID: "h1"}, true)
	if !errors.Is(err, ErrSubmitFailed) {
		t.Fatalf("error = %v, want ErrSubmitFailed", err)
	}
	if _, ok := w.Active(); ok {
		t.Error("failed submission must not leave an active request")
	}

	// A retry against the same hospital is allowed after failure.
	if !w.CanSubmit("h1") {
		t.Error("CanSubmit(h1) should be true after a failed submission")
	}
}
