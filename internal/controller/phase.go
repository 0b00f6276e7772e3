package controller

import (
	"strings"

	"github.com/deckide/contextd/internal/session"
)

// Phase inference is advisory: the label follows what the conversation looks
// like right now but never gates an operation.
var (
	debugKeywords = []string{
		"error", "panic", "crash", "fail", "bug", "broken", "traceback",
		"stack trace", "fix", "debug",
	}
	reviewKeywords = []string{
		"review", "approve", "lgtm", "merge", "polish", "cleanup", "refine",
	}
	planKeywords = []string{
		"plan", "design", "architecture", "approach", "spec", "requirement",
		"outline", "sketch",
	}
)

// inferPhase updates the session phase from a new piece of message content.
// An ended session keeps its phase; content without any phase signal leaves
// the label alone, except that a planning session moves to implementation
// once ordinary work messages arrive.
func (c *Controller) inferPhase(s *session.Session, content string) {
	if s.Ended() {
		return
	}

	lower := strings.ToLower(content)
	switch {
	case containsAny(lower, debugKeywords):
		s.Metadata.Phase = session.PhaseDebugging
	case containsAny(lower, reviewKeywords):
		s.Metadata.Phase = session.PhaseReview
	case containsAny(lower, planKeywords):
		s.Metadata.Phase = session.PhasePlanning
	case s.Metadata.Phase == session.PhasePlanning && s.Metrics.MessageCount > 3:
		s.Metadata.Phase = session.PhaseImplementation
	}
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
