// Package history keeps the bounded, newest-first log of payment events and
// its JSON backing file.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fundsync-dev/fundsync/internal/model"
)

// DefaultCapacity is the number of events kept before the oldest is evicted.
const DefaultCapacity = 1000

// ErrCorrupt marks a backing file that cannot be decoded as an event log.
var ErrCorrupt = errors.New("history: corrupt event log")

// Store owns the event log and its backing file. Writers hold the lock
// exclusively, readers share it. The lock is process-local.
type Store struct {
	path     string
	capacity int
	logger   *slog.Logger

	mu      sync.RWMutex
	events  []model.PaymentEvent // newest first
	version uint64
}

// Option configures a Store.
type Option func(*Store)

// WithCapacity overrides DefaultCapacity. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithLogger sets the logger. A nil logger means slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Snapshot is an immutable view of the log at one version.
type Snapshot struct {
	Events  []model.PaymentEvent
	Version uint64
}

// Open returns a Store backed by path and loads whatever the file holds.
// A missing or corrupt file yields an empty log.
func Open(path string, opts ...Option) *Store {
	s := &Store{path: path, capacity: DefaultCapacity, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	events := s.LoadAll()
	if len(events) > s.capacity {
		events = events[:s.capacity]
	}

	s.mu.Lock()
	s.events = events
	s.mu.Unlock()
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Capacity returns the maximum number of events kept.
func (s *Store) Capacity() int {
	return s.capacity
}

// Append inserts ev at the head, evicts from the tail beyond capacity and
// rewrites the whole backing file. The in-memory log is updated even when the
// write fails.
func (s *Store) Append(ev model.PaymentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.events) + 1
	if n > s.capacity {
		n = s.capacity
	}
	events := make([]model.PaymentEvent, 0, n)
	events = append(events, ev)
	events = append(events, s.events[:n-1]...)
	if evicted := len(s.events) + 1 - n; evicted > 0 {
		s.logger.Debug("evicted oldest events", "count", evicted)
	}

	s.events = events
	s.version++
	return s.saveLocked()
}

// LoadAll reads the backing file. A missing or empty file yields no events.
// A file that does not decode is deleted and also yields no events.
func (s *Store) LoadAll() []model.PaymentEvent {
	s.mu.RLock()
	events, err := s.read()
	s.mu.RUnlock()

	if errors.Is(err, ErrCorrupt) {
		s.mu.Lock()
		defer s.mu.Unlock()
		// A writer may have replaced the file since the shared read.
		events, err = s.read()
		if errors.Is(err, ErrCorrupt) {
			s.discardLocked(err)
			return nil
		}
	}
	if err != nil {
		s.logger.Error("failed to read event log", "path", s.path, "error", err)
		return nil
	}
	return events
}

// Snapshot returns a copy of the in-memory log and its version. The version
// changes on every Append and Clear.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]model.PaymentEvent, len(s.events))
	copy(events, s.events)
	return Snapshot{Events: events, Version: s.version}
}

// Len returns the number of events in the log.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Clear empties the log and removes the backing file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = nil
	s.version++
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing event log: %w", err)
	}
	s.logger.Info("cleared event log", "path", s.path)
	return nil
}

func (s *Store) read() ([]model.PaymentEvent, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading event log: %w", err)
	}
	return Decode(data)
}

// discardLocked deletes a corrupt backing file. Callers hold s.mu.
func (s *Store) discardLocked(cause error) {
	s.logger.Error("discarding corrupt event log", "path", s.path, "error", cause)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Error("failed to delete corrupt event log", "path", s.path, "error", err)
	}
	s.events = nil
	s.version++
}

// saveLocked writes the whole log through a temporary file and a rename.
// Callers hold s.mu exclusively.
func (s *Store) saveLocked() error {
	if len(s.events) == 0 {
		return nil
	}
	data, err := Encode(s.events)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating event log dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing event log: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing event log: %w", err)
	}
	s.logger.Debug("saved event log", "path", s.path, "events", len(s.events))
	return nil
}

// record mirrors model.PaymentEvent with pointers so missing fields can be
// told apart from zero values.
type record struct {
	Amount       *string `json:"amount"`
	Sender       *string `json:"sender"`
	Timestamp    *int64  `json:"timestamp"`
	DonationID   *string `json:"donationId"`
	Success      *bool   `json:"isSuccess"`
	ErrorMessage *string `json:"errorMessage"`
}

// Encode renders events as a JSON array. Absent optional fields are written
// as null.
func Encode(events []model.PaymentEvent) ([]byte, error) {
	if events == nil {
		events = []model.PaymentEvent{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return nil, fmt.Errorf("marshaling event log: %w", err)
	}
	return data, nil
}

// Decode parses a JSON event array. Blank input is an empty log; anything
// else that is not an array of complete records wraps ErrCorrupt.
func Decode(data []byte) ([]model.PaymentEvent, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] != '[' {
		return nil, fmt.Errorf("%w: not a JSON array", ErrCorrupt)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var events []model.PaymentEvent
	for i, r := range records {
		if r.Amount == nil || r.Sender == nil || r.Timestamp == nil {
			return nil, fmt.Errorf("%w: record %d: missing amount, sender or timestamp", ErrCorrupt, i)
		}
		success := true
		if r.Success != nil {
			success = *r.Success
		}
		events = append(events, model.PaymentEvent{
			Amount:       *r.Amount,
			Sender:       *r.Sender,
			Timestamp:    *r.Timestamp,
			DonationID:   r.DonationID,
			Success:      success,
			ErrorMessage: r.ErrorMessage,
		})
	}
	return events, nil
}
