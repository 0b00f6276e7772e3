// Package trim truncates oversized tool and error payloads in a session's
// event trail. Long command output and file dumps dominate context size
// without carrying proportional signal; trimming keeps the head and tail of
// each payload and elides the middle.
package trim

import (
	"fmt"
	"time"

	"github.com/deckide/contextd/internal/session"
)

// DefaultThreshold is the character count above which a payload is trimmed.
const DefaultThreshold = 2000

// headShare is the fraction of the retained budget given to the head of the
// payload; the rest goes to the tail.
const headShare = 0.7

// Options control a trim run.
type Options struct {
	// Threshold is the per-payload character cap. Zero means DefaultThreshold.
	Threshold int
}

// Result reports what a trim run did.
type Result struct {
	TrimmedEvents int `json:"trimmed_events"`
	SpaceSaved    int `json:"space_saved"`
}

// Trim walks the session's tool and error events and truncates payloads over
// the threshold in place. Message events are never trimmed; they feed drift
// detection.
func Trim(s *session.Session, opts Options) Result {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultThreshold
	}

	var res Result
	for i := range s.Events {
		ev := &s.Events[i]
		var key string
		switch ev.Type {
		case session.EventTool:
			key = "result"
		case session.EventError:
			key = "message"
		default:
			continue
		}

		text, ok := ev.Data[key].(string)
		if !ok || len(text) <= threshold {
			continue
		}

		trimmed := truncate(text, threshold)
		ev.Data[key] = trimmed
		res.TrimmedEvents++
		res.SpaceSaved += len(text) - len(trimmed)
	}

	if res.TrimmedEvents > 0 {
		s.UpdatedAt = time.Now().UTC()
	}
	return res
}

// truncate keeps the head and tail of text within the budget, marking the
// elision with the number of characters dropped.
func truncate(text string, budget int) string {
	head := int(float64(budget) * headShare)
	tail := budget - head
	dropped := len(text) - head - tail
	return fmt.Sprintf("%s\n… [%d chars trimmed] …\n%s", text[:head], dropped, text[len(text)-tail:])
}
