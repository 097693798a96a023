package forward

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrStateMismatch means a redirect's state is not the one issued by BeginAuth.
var ErrStateMismatch = errors.New("forward: authorization state does not match")

// StateStore holds the state value of the pending authorization.
type StateStore interface {
	Save(state string) error
	// Consume reports whether state is the pending value and forgets it if so.
	Consume(state string) (bool, error)
}

// WithStateStore replaces the in-memory state store, e.g. with one that
// survives across processes.
func WithStateStore(s StateStore) Option {
	return func(f *Forwarder) {
		if s != nil {
			f.states = s
		}
	}
}

// BeginAuth issues a fresh state, remembers it and returns the authorization
// URL carrying it. A later BeginAuth supersedes the pending state.
func (f *Forwarder) BeginAuth() (string, error) {
	state := uuid.NewString()
	if err := f.states.Save(state); err != nil {
		return "", fmt.Errorf("saving authorization state: %w", err)
	}
	return f.AuthURL(state), nil
}

// CompleteAuth checks state against the pending authorization and starts the
// code exchange. A mismatched state starts nothing and returns
// ErrStateMismatch.
func (f *Forwarder) CompleteAuth(code, state string) error {
	ok, err := f.states.Consume(state)
	if err != nil {
		return fmt.Errorf("checking authorization state: %w", err)
	}
	if !ok {
		f.logger.Warn("rejecting redirect with unknown state")
		return ErrStateMismatch
	}
	f.ExchangeCode(code)
	return nil
}

type memoryStates struct {
	mu      sync.Mutex
	pending string
}

func (m *memoryStates) Save(state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = state
	return nil
}

func (m *memoryStates) Consume(state string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !stateMatches(m.pending, state) {
		return false, nil
	}
	m.pending = ""
	return true, nil
}

// stateMatches compares a pending and a received state in constant time. An
// empty pending state matches nothing.
func stateMatches(pending, got string) bool {
	if pending == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pending), []byte(got)) == 1
}
