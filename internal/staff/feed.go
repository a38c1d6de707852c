package staff

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/savegress/medroute/pkg/models"
)

// ErrFeedRunning is returned when a feed is started twice.
var ErrFeedRunning = errors.New("request feed already running")

// RequestSource lists the requests addressed to a hospital; the
// admission client satisfies it.
type RequestSource interface {
	HospitalRequests(ctx context.Context, hospitalID string) ([]models.AdmissionRequest, error)
}

// Resolver resolves requests from the hospital side; the admission
// client satisfies it.
type Resolver interface {
	UpdateStatus(ctx context.Context, requestID string, status models.RequestStatus) error
}

// Feed polls the pending admission requests of one hospital on a
// fixed interval and hands each snapshot to the subscriber. The loop
// is bound to the staff dashboard's lifetime: Stop (or context
// cancellation) ends it.
type Feed struct {
	source     RequestSource
	resolver   Resolver
	hospitalID string
	interval   time.Duration
	onUpdate   func([]models.AdmissionRequest)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	latest  []models.AdmissionRequest
	running bool
}

// NewFeed creates a feed for a hospital. onUpdate may be nil; the
// latest snapshot is always available via Latest.
func NewFeed(source RequestSource, resolver Resolver, hospitalID string, interval time.Duration, onUpdate func([]models.AdmissionRequest)) *Feed {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Feed{
		source:     source,
		resolver:   resolver,
		hospitalID: hospitalID,
		interval:   interval,
		onUpdate:   onUpdate,
	}
}

// Start begins polling. The first fetch happens immediately so the
// dashboard is not empty for a full interval.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrFeedRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	f.cancel = cancel
	f.done = done
	f.running = true
	f.mu.Unlock()

	go f.loop(loopCtx, done)
	return nil
}

func (f *Feed) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	f.fetch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil {
			return
		}
		f.fetch(ctx)
	}
}

func (f *Feed) fetch(ctx context.Context) {
	requests, err := f.source.HospitalRequests(ctx, f.hospitalID)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("request feed fetch failed for %s: %v", f.hospitalID, err)
		}
		return
	}

	f.mu.Lock()
	f.latest = requests
	f.mu.Unlock()

	if f.onUpdate != nil {
		f.onUpdate(requests)
	}
}

// Refresh fetches the snapshot synchronously, outside the tick
// schedule.
func (f *Feed) Refresh(ctx context.Context) []models.AdmissionRequest {
	f.fetch(ctx)
	return f.Latest()
}

// Latest returns the most recent snapshot.
func (f *Feed) Latest() []models.AdmissionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.AdmissionRequest, len(f.latest))
	copy(out, f.latest)
	return out
}

// Resolve accepts or declines a request and refreshes the snapshot so
// the resolved entry disappears without waiting for the next tick.
func (f *Feed) Resolve(ctx context.Context, requestID string, status models.RequestStatus) error {
	if !status.Terminal() {
		return errors.New("resolution status must be terminal")
	}
	if err := f.resolver.UpdateStatus(ctx, requestID, status); err != nil {
		return err
	}
	f.fetch(ctx)
	return nil
}

// Stop cancels the poll loop and waits for it to exit. Safe to call
// more than once.
func (f *Feed) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	done := f.done
	f.cancel = nil
	f.done = nil
	f.running = false
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}
