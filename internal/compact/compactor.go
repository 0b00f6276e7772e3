// Package compact bounds session history growth by replacing a prefix of the
// event list with a single synthetic summary event.
package compact

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/deckide/contextd/internal/session"
)

const (
	// DefaultKeepRecentEvents is the canonical default for how many trailing
	// events survive a compaction untouched.
	DefaultKeepRecentEvents = 20

	// DefaultThreshold is the minimum event count before compaction runs.
	DefaultThreshold = 100

	// digestCap is the hard character cap on the message digest carried by
	// the summary event. This is concatenation with truncation, not NLP
	// summarization.
	digestCap = 500
)

// Summarizer produces a text summary of a batch of events. The LLM-backed
// implementation is injectable; none ships with the core.
type Summarizer interface {
	Summarize(ctx context.Context, events []session.Event) (string, error)
}

// Options control a single compaction run. Zero fields fall back to defaults.
type Options struct {
	// KeepRecentEvents is how many trailing events to retain verbatim.
	KeepRecentEvents int

	// Threshold is the minimum event count required to trigger compaction.
	Threshold int

	// SummarizeWithLLM requests an LLM summary. Without a Summarizer the
	// request fails closed to the local digest.
	SummarizeWithLLM bool

	// Summarizer is the optional LLM summarization strategy.
	Summarizer Summarizer
}

func (o Options) withDefaults() Options {
	if o.KeepRecentEvents <= 0 {
		o.KeepRecentEvents = DefaultKeepRecentEvents
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

// Result reports what a compaction run did.
type Result struct {
	OriginalEvents  int    `json:"original_events"`
	RemainingEvents int    `json:"remaining_events"`
	CompactedEvents int    `json:"compacted_events"`
	Summary         string `json:"summary"`
	SpaceSaved      int    `json:"space_saved"`
}

// Compact replaces the compactable prefix of s.Events with one summary event,
// preserving the order of the retained suffix. It is a no-op (CompactedEvents
// = 0) when the event count is at or below the threshold, or when
// KeepRecentEvents covers the whole list. Cumulative metrics are untouched:
// compaction condenses the trail, it does not rewrite history counters.
func Compact(ctx context.Context, s *session.Session, opts Options) Result {
	opts = opts.withDefaults()
	total := len(s.Events)

	if total <= opts.Threshold || opts.KeepRecentEvents >= total {
		return Result{OriginalEvents: total, RemainingEvents: total}
	}

	cut := total - opts.KeepRecentEvents
	toCompact := s.Events[:cut]
	toKeep := s.Events[cut:]

	summary := summarize(ctx, toCompact, opts)

	summaryEvent := session.Event{
		Timestamp: time.Now().UTC(),
		Type:      session.EventCompact,
		Data: map[string]any{
			"summary":          summary.text,
			"counts":           summary.counts,
			"tools":            summary.tools,
			"errors":           summary.errors,
			"compacted_events": cut,
		},
	}

	saved := serializedLen(toCompact) - serializedLen([]session.Event{summaryEvent})
	if saved < 0 {
		saved = 0
	}

	events := make([]session.Event, 0, 1+len(toKeep))
	events = append(events, summaryEvent)
	events = append(events, toKeep...)
	s.Events = events
	s.UpdatedAt = time.Now().UTC()

	return Result{
		OriginalEvents:  total,
		RemainingEvents: len(s.Events),
		CompactedEvents: cut,
		Summary:         summary.text,
		SpaceSaved:      saved,
	}
}

type eventSummary struct {
	text   string
	counts map[string]int
	tools  []string
	errors int
}

// summarize condenses the prefix into counts, tool names and a capped digest.
// When an LLM summarizer is supplied and requested, its output replaces the
// digest text; on any failure the local digest stands.
func summarize(ctx context.Context, events []session.Event, opts Options) eventSummary {
	counts := make(map[string]int, 4)
	toolSet := make(map[string]struct{})
	errors := 0
	var digest strings.Builder

	for _, ev := range events {
		counts[string(ev.Type)]++
		switch ev.Type {
		case session.EventTool:
			if name, ok := ev.Data["name"].(string); ok {
				toolSet[name] = struct{}{}
			}
		case session.EventError:
			errors++
		case session.EventMessage:
			if content, ok := ev.Data["content"].(string); ok && digest.Len() < digestCap {
				if digest.Len() > 0 {
					digest.WriteString(" | ")
				}
				digest.WriteString(content)
			}
		}
	}

	tools := make([]string, 0, len(toolSet))
	for name := range toolSet {
		tools = append(tools, name)
	}
	sort.Strings(tools)

	text := digest.String()
	if len(text) > digestCap {
		text = text[:digestCap] + "…"
	}

	if opts.SummarizeWithLLM && opts.Summarizer != nil {
		if llmText, err := opts.Summarizer.Summarize(ctx, events); err == nil && llmText != "" {
			text = llmText
		}
	}

	return eventSummary{text: text, counts: counts, tools: tools, errors: errors}
}

func serializedLen(events []session.Event) int {
	b, err := json.Marshal(events)
	if err != nil {
		return 0
	}
	return len(b)
}
