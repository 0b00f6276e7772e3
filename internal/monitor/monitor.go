// Package monitor tracks the currently active session and mutates its live
// metrics as conversation events occur. It never persists; that is the
// controller's job, via the store.
package monitor

import (
	"sync"

	"github.com/rs/zerolog"

	ctxerrors "github.com/deckide/contextd/internal/errors"
	"github.com/deckide/contextd/internal/session"
)

// Monitor holds the process-wide current-session pointer. Only the controller
// mutates it; the pointer must always refer to a session that also exists in
// the store.
type Monitor struct {
	mu      sync.Mutex
	current *session.Session
	logger  zerolog.Logger
}

// New creates a Monitor with no active session.
func New(logger zerolog.Logger) *Monitor {
	return &Monitor{
		logger: logger.With().Str("component", "monitor").Logger(),
	}
}

// SetCurrent makes s the active session.
func (m *Monitor) SetCurrent(s *session.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = s
	m.logger.Debug().Str("session_id", s.ID).Msg("current session set")
}

// Current returns the active session, or nil.
func (m *Monitor) Current() *session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Clear drops the current-session pointer.
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// RecordMessage appends a message event to the active session, incrementing
// the message counter and the crude token estimate.
func (m *Monitor) RecordMessage(role, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ctxerrors.ErrNoActiveSession
	}

	m.current.Metrics.MessageCount++
	m.current.Metrics.TotalTokens += session.EstimateTokens(content)
	m.current.AppendEvent(session.EventMessage, map[string]any{
		"role":    role,
		"content": content,
	})
	return nil
}

// RecordTool appends a tool event. Tool calls do not affect the message count.
func (m *Monitor) RecordTool(name, args, result string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ctxerrors.ErrNoActiveSession
	}

	m.current.AppendEvent(session.EventTool, map[string]any{
		"name":   name,
		"args":   args,
		"result": result,
	})
	return nil
}

// RecordError appends an error event and increments the error counter.
// Recoverable errors also count as retries.
func (m *Monitor) RecordError(message string, recoverable bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ctxerrors.ErrNoActiveSession
	}

	m.current.Metrics.ErrorCount++
	if recoverable {
		m.current.Metrics.RetryCount++
	}
	m.current.AppendEvent(session.EventError, map[string]any{
		"message":     message,
		"recoverable": recoverable,
	})
	return nil
}
