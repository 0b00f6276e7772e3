// Package session defines the Session aggregate tracked by the context
// manager: the chronological event trail, live metrics, topic fingerprint
// and snapshot references for one AI-agent conversation.
package session

import (
	"time"
)

// EventType classifies a session event.
type EventType string

const (
	EventMessage  EventType = "message"
	EventTool     EventType = "tool"
	EventError    EventType = "error"
	EventSnapshot EventType = "snapshot"
	EventCompact  EventType = "compact"
)

// Phase labels for Metadata.Phase. Advisory only — no operation is gated on
// the phase except those on an ended session.
const (
	PhasePlanning       = "planning"
	PhaseImplementation = "implementation"
	PhaseDebugging      = "debugging"
	PhaseReview         = "review"
	PhaseEnded          = "ended"
)

// Event is an immutable record of something that happened in a session.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      EventType      `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// Metadata holds descriptive session state.
type Metadata struct {
	InitialPrompt string  `json:"initial_prompt"`
	Phase         string  `json:"phase"`
	HealthScore   float64 `json:"health_score"`
}

// Metrics holds the live counters for a session. All counters are cumulative:
// MessageCount counts every message ever tracked, including ones later
// compacted away. DriftScore is overwritten by each drift detection run.
type Metrics struct {
	TotalTokens  int     `json:"total_tokens"`
	MessageCount int     `json:"message_count"`
	ErrorCount   int     `json:"error_count"`
	RetryCount   int     `json:"retry_count"`
	DriftScore   float64 `json:"drift_score"`
}

// TopicTracking is the topic fingerprint established at session creation,
// used as the drift baseline. Keyword order is not significant.
type TopicTracking struct {
	Keywords         []string  `json:"keywords"`
	FilePaths        []string  `json:"file_paths"`
	InitialEmbedding []float32 `json:"initial_embedding,omitempty"`
}

// SnapshotRef is a stable handle into external snapshot storage. The payload
// itself lives in a content-addressed store keyed by CommitHash.
type SnapshotRef struct {
	CommitHash  string    `json:"commit_hash"`
	Timestamp   time.Time `json:"timestamp"`
	HealthScore float64   `json:"health_score"`
	Description string    `json:"description"`
}

// Session is the central aggregate of the context manager.
type Session struct {
	ID        string        `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Metadata  Metadata      `json:"metadata"`
	Metrics   Metrics       `json:"metrics"`
	Topic     TopicTracking `json:"topic_tracking"`
	Events    []Event       `json:"events"`
	Snapshots []SnapshotRef `json:"snapshots"`
}

// New creates a session with its topic fingerprint extracted from the
// initial prompt. The health score starts at the maximum: nothing has gone
// wrong yet.
func New(id, initialPrompt string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: Metadata{
			InitialPrompt: initialPrompt,
			Phase:         PhasePlanning,
			HealthScore:   1.0,
		},
		Topic: TopicTracking{
			Keywords: ExtractKeywords(initialPrompt),
		},
	}
}

// AppendEvent appends an event and refreshes UpdatedAt.
func (s *Session) AppendEvent(typ EventType, data map[string]any) {
	now := time.Now().UTC()
	s.Events = append(s.Events, Event{Timestamp: now, Type: typ, Data: data})
	s.UpdatedAt = now
}

// Ended reports whether the session has been logically closed.
func (s *Session) Ended() bool {
	return s.Metadata.Phase == PhaseEnded
}

// LastEventAt returns the timestamp of the most recent event, falling back
// to UpdatedAt for sessions without events.
func (s *Session) LastEventAt() time.Time {
	if len(s.Events) == 0 {
		return s.UpdatedAt
	}
	return s.Events[len(s.Events)-1].Timestamp
}

// RecentMessages returns the content of the last n message events, oldest
// first. Non-message events are skipped.
func (s *Session) RecentMessages(n int) []string {
	if n <= 0 {
		return nil
	}
	var out []string
	for i := len(s.Events) - 1; i >= 0 && len(out) < n; i-- {
		ev := s.Events[i]
		if ev.Type != EventMessage {
			continue
		}
		if content, ok := ev.Data["content"].(string); ok {
			out = append(out, content)
		}
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Snapshot returns the snapshot reference with the given commit hash, or nil.
func (s *Session) Snapshot(commitHash string) *SnapshotRef {
	for i := range s.Snapshots {
		if s.Snapshots[i].CommitHash == commitHash {
			return &s.Snapshots[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the session. Stores hand out clones so callers
// never alias persisted state.
func (s *Session) Clone() *Session {
	out := *s
	out.Events = make([]Event, len(s.Events))
	for i, ev := range s.Events {
		out.Events[i] = ev
		if ev.Data != nil {
			data := make(map[string]any, len(ev.Data))
			for k, v := range ev.Data {
				data[k] = v
			}
			out.Events[i].Data = data
		}
	}
	out.Snapshots = append([]SnapshotRef(nil), s.Snapshots...)
	out.Topic.Keywords = append([]string(nil), s.Topic.Keywords...)
	out.Topic.FilePaths = append([]string(nil), s.Topic.FilePaths...)
	out.Topic.InitialEmbedding = append([]float32(nil), s.Topic.InitialEmbedding...)
	return &out
}
