package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/savegress/medroute/pkg/models"
)

// EntryKind classifies journal entries.
type EntryKind string

const (
	KindDecision  EntryKind = "decision"
	KindLocation  EntryKind = "location"
	KindAdmission EntryKind = "admission"
)

// Entry is one recorded step of a triage episode.
type Entry struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Kind      EntryKind `json:"kind"`
	Specialty string    `json:"specialty,omitempty"`
	Critical  bool      `json:"critical,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Recorded  time.Time `json:"recorded"`
}

// Journal keeps an in-memory trail of triage episodes: the decision
// taken, the locator outcome and the terminal admission status. It is
// diagnostic state only and is lost on restart.
type Journal struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	running bool
	stopCh  chan struct{}
	entryCh chan *Entry
}

// New creates a journal.
func New() *Journal {
	return &Journal{
		entries: make(map[string]*Entry),
		stopCh:  make(chan struct{}),
		entryCh: make(chan *Entry, 256),
	}
}

// Start starts the journal's intake goroutine.
func (j *Journal) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.mu.Unlock()

	go j.process(ctx)
	return nil
}

// Stop stops the intake goroutine.
func (j *Journal) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		close(j.stopCh)
		j.running = false
	}
}

func (j *Journal) process(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			return
		case entry := <-j.entryCh:
			j.mu.Lock()
			j.entries[entry.ID] = entry
			j.mu.Unlock()
		}
	}
}

func (j *Journal) record(entry *Entry) {
	entry.ID = uuid.New().String()
	entry.Recorded = time.Now().UTC()

	select {
	case j.entryCh <- entry:
	default:
		// Full buffer: drop rather than stall a request path.
	}
}

// RecordDecision journals a triage decision for a session.
func (j *Journal) RecordDecision(sessionID string, ctx models.MedicalContext, prediction string) {
	j.record(&Entry{
		SessionID: sessionID,
		Kind:      KindDecision,
		Specialty: ctx.Specialty,
		Critical:  ctx.IsCritical,
		Detail:    prediction,
	})
}

// RecordLocation journals the locator outcome (units found, offline,
// no fix).
func (j *Journal) RecordLocation(sessionID, status string) {
	j.record(&Entry{
		SessionID: sessionID,
		Kind:      KindLocation,
		Detail:    status,
	})
}

// RecordAdmission journals the terminal status of an admission
// request.
func (j *Journal) RecordAdmission(sessionID string, req models.AdmissionRequest) {
	j.record(&Entry{
		SessionID: sessionID,
		Kind:      KindAdmission,
		Detail:    string(req.Status) + " by " + req.HospitalID,
	})
}

// BySession returns a session's entries, oldest first.
func (j *Journal) BySession(sessionID string) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var out []Entry
	for _, e := range j.entries {
		if e.SessionID == sessionID {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Recorded.Before(out[b].Recorded)
	})
	return out
}

// Len returns the number of stored entries.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}
