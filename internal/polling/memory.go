package polling

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryLog is the default single-process MessageLog.
type MemoryLog struct {
	mu       sync.Mutex
	sessions map[string]map[string][]json.RawMessage
}

// NewMemoryLog creates an empty in-memory message log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		sessions: make(map[string]map[string][]json.RawMessage),
	}
}

func (m *MemoryLog) Append(_ context.Context, sessionID, msgType string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[sessionID]
	if !ok {
		session = make(map[string][]json.RawMessage)
		m.sessions[sessionID] = session
	}
	session[msgType] = append(session[msgType], payload)
	return nil
}

func (m *MemoryLog) After(_ context.Context, sessionID, msgType string, lastIndex int) ([]json.RawMessage, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if lastIndex < 0 {
		lastIndex = 0
	}

	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, lastIndex, nil
	}
	log := session[msgType]
	if lastIndex >= len(log) {
		return nil, lastIndex, nil
	}

	tail := log[lastIndex:]
	out := make([]json.RawMessage, len(tail))
	copy(out, tail)
	return out, lastIndex + len(out), nil
}

func (m *MemoryLog) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}
