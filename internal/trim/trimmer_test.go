package trim_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deckide/contextd/internal/session"
	"github.com/deckide/contextd/internal/trim"
)

func TestTrim_TruncatesOversizedToolResult(t *testing.T) {
	s := session.New("s1", "profile the server")
	long := strings.Repeat("a", 300) + strings.Repeat("z", 300)
	s.AppendEvent(session.EventTool, map[string]any{"name": "run", "args": "", "result": long})

	got := trim.Trim(s, trim.Options{Threshold: 100})

	assert.Equal(t, 1, got.TrimmedEvents)
	assert.Greater(t, got.SpaceSaved, 0)

	result := s.Events[0].Data["result"].(string)
	assert.Contains(t, result, "chars trimmed")
	assert.True(t, strings.HasPrefix(result, "aaa"), "head survives")
	assert.True(t, strings.HasSuffix(result, "zzz"), "tail survives")
	assert.Less(t, len(result), len(long))
}

func TestTrim_TruncatesErrorMessages(t *testing.T) {
	s := session.New("s1", "profile the server")
	s.AppendEvent(session.EventError, map[string]any{
		"message":     strings.Repeat("stack frame\n", 500),
		"recoverable": false,
	})

	got := trim.Trim(s, trim.Options{})

	assert.Equal(t, 1, got.TrimmedEvents)
	assert.Contains(t, s.Events[0].Data["message"].(string), "chars trimmed")
}

func TestTrim_MessagesNeverTrimmed(t *testing.T) {
	s := session.New("s1", "profile the server")
	content := strings.Repeat("important detail ", 1000)
	s.AppendEvent(session.EventMessage, map[string]any{"role": "user", "content": content})

	got := trim.Trim(s, trim.Options{Threshold: 100})

	assert.Equal(t, 0, got.TrimmedEvents)
	assert.Equal(t, content, s.Events[0].Data["content"])
}

func TestTrim_UnderThresholdUntouched(t *testing.T) {
	s := session.New("s1", "profile the server")
	s.AppendEvent(session.EventTool, map[string]any{"name": "ls", "args": "", "result": "main.go"})
	before := s.UpdatedAt

	got := trim.Trim(s, trim.Options{})

	assert.Equal(t, 0, got.TrimmedEvents)
	assert.Equal(t, 0, got.SpaceSaved)
	assert.Equal(t, "main.go", s.Events[0].Data["result"])
	assert.Equal(t, before, s.UpdatedAt, "no-op trim must not touch UpdatedAt")
}

func TestTrim_SpaceSavedAccounting(t *testing.T) {
	s := session.New("s1", "profile the server")
	long := strings.Repeat("x", 5000)
	s.AppendEvent(session.EventTool, map[string]any{"name": "cat", "args": "", "result": long})
	s.AppendEvent(session.EventTool, map[string]any{"name": "cat", "args": "", "result": long})

	got := trim.Trim(s, trim.Options{})

	require.Equal(t, 2, got.TrimmedEvents)
	first := len(s.Events[0].Data["result"].(string))
	second := len(s.Events[1].Data["result"].(string))
	assert.Equal(t, 2*len(long)-first-second, got.SpaceSaved)
}
