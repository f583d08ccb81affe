package core

import (
	"maps"
	"sync"
	"time"
)

// conversationalRoles are the content roles replayed to models as history.
// Control events (no content) and roles like "memory" stay out of the
// provider message stream.
var conversationalRoles = map[string]bool{
	"user":      true,
	"assistant": true,
	"tool":      true,
}

// Session is the durable record of one research conversation: the questions
// asked, every analyst / datarunner / writer event of each run, and the
// key/value state (system prompt overrides, tool-written annotations) that
// carries across runs. All methods are safe for concurrent use.
type Session struct {
	ID       string            `json:"id"`
	State    map[string]any    `json:"state"`
	Events   []Event           `json:"events"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`

	mu sync.RWMutex
}

// NewSession creates an empty session.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:       id,
		State:    map[string]any{},
		Events:   []Event{},
		Created:  now,
		Updated:  now,
		Metadata: map[string]string{},
	}
}

// GetState returns the value stored under key and whether it exists.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.State[key]
	return v, ok
}

// SetState stores a single key/value pair.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.State[key] = value
	s.Updated = time.Now()
}

// ApplyStateDelta merges a batch of key/value pairs, as produced by event
// actions during a run.
func (s *Session) ApplyStateDelta(delta map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	maps.Copy(s.State, delta)
	s.Updated = time.Now()
}

// AddEvent appends an event to the run history.
func (s *Session) AddEvent(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Events = append(s.Events, ev)
	s.Updated = time.Now()
}

// GetEvents returns a copy of the full event history, including control and
// memory events that never reach a model.
func (s *Session) GetEvents() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]Event, len(s.Events))
	copy(events, s.Events)
	return events
}

// GetConversationHistory returns the events replayed to models on follow-up
// runs: user questions, assistant turns and tool results, with streaming
// fragments dropped.
func (s *Session) GetConversationHistory() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := make([]Event, 0, len(s.Events))
	for _, ev := range s.Events {
		if isConversational(ev) {
			history = append(history, ev)
		}
	}
	return history
}

// HasConversation reports whether any prior run left replayable history in
// this session. The runner uses it to decide if client-supplied history
// still needs seeding.
func (s *Session) HasConversation() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ev := range s.Events {
		if isConversational(ev) {
			return true
		}
	}
	return false
}

func isConversational(ev Event) bool {
	if ev.Content == nil || !conversationalRoles[ev.Content.Role] {
		return false
	}
	return !ev.IsPartial()
}

// Clone returns a deep copy safe for independent mutation. Run snapshots are
// clones, so recalled findings injected into a snapshot never leak back into
// the persisted session.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clone := &Session{
		ID:       s.ID,
		State:    make(map[string]any, len(s.State)),
		Events:   make([]Event, len(s.Events)),
		Created:  s.Created,
		Updated:  s.Updated,
		Metadata: make(map[string]string, len(s.Metadata)),
	}
	maps.Copy(clone.State, s.State)
	maps.Copy(clone.Metadata, s.Metadata)
	copy(clone.Events, s.Events)

	return clone
}

// SessionStore persists sessions and their evolving state / event history.
type SessionStore interface {
	Create(id string) (*Session, error)
	Get(id string) (*Session, error)
	AppendEvent(sessionID string, event Event) error
	ApplyDelta(sessionID string, delta map[string]any) error
}
