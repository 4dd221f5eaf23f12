package internal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrFormNotFound is returned when a form id is unknown or has expired
var ErrFormNotFound = errors.New("form not found")

// DefaultFormIdleTTL is how long an untouched form is kept
const DefaultFormIdleTTL = time.Hour

// DefaultMaxForms caps how many forms are held at once
const DefaultMaxForms = 10000

type storeEntry struct {
	form     *Form
	lastSeen time.Time
}

// Store keeps the forms of open pages in memory
type Store struct {
	mu       sync.Mutex
	forms    map[string]*storeEntry
	idleTTL  time.Duration
	maxForms int
	newForm  func() *Form
	now      func() time.Time
	metrics  *Metrics
	logger   logrus.FieldLogger
}

// NewStore builds an empty store holding at most maxForms forms.
// newForm creates each form.
func NewStore(idleTTL time.Duration, maxForms int, newForm func() *Form, metrics *Metrics, logger logrus.FieldLogger) *Store {
	if idleTTL <= 0 {
		idleTTL = DefaultFormIdleTTL
	}
	if maxForms <= 0 {
		maxForms = DefaultMaxForms
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Store{
		forms:    make(map[string]*storeEntry),
		idleTTL:  idleTTL,
		maxForms: maxForms,
		newForm:  newForm,
		now:      time.Now,
		metrics:  metrics,
		logger:   logger.WithField("component", "store"),
	}
}

// Create opens a new form and returns its id. When the store is full the
// least recently used form is dropped to make room.
func (s *Store) Create() (string, *Form) {
	id := uuid.NewString()
	form := s.newForm()

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if len(s.forms) >= s.maxForms {
		s.sweepLocked(now)
	}
	for len(s.forms) >= s.maxForms {
		s.evictOldestLocked()
	}
	s.forms[id] = &storeEntry{form: form, lastSeen: now}
	s.metrics.SetOpenForms(len(s.forms))
	return id, form
}

// Get returns the form with the given id and marks it as used
func (s *Store) Get(id string) (*Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.forms[id]
	if !ok {
		return nil, ErrFormNotFound
	}
	entry.lastSeen = s.now()
	return entry.form, nil
}

// Delete drops a form
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, id)
	s.metrics.SetOpenForms(len(s.forms))
}

// Len returns the number of forms held
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.forms)
}

// Sweep removes forms idle since before now minus the idle TTL
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.sweepLocked(now)
	s.metrics.SetOpenForms(len(s.forms))
	return removed
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for id, entry := range s.forms {
		if now.Sub(entry.lastSeen) > s.idleTTL {
			delete(s.forms, id)
			removed++
		}
	}
	return removed
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, entry := range s.forms {
		if oldestID == "" || entry.lastSeen.Before(oldest) {
			oldestID, oldest = id, entry.lastSeen
		}
	}
	if oldestID == "" {
		return
	}
	delete(s.forms, oldestID)
	s.logger.WithField("form", oldestID).Debug("Evicted least recently used form")
}

// Run sweeps on every interval until ctx ends
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(s.now()); removed > 0 {
				s.logger.WithField("removed", removed).Debug("Swept idle forms")
			}
		}
	}
}
