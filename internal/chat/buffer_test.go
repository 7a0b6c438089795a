package chat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uphera/adachat/internal/chat"
	"github.com/uphera/adachat/internal/models"
)

type recorder struct {
	turns []models.Turn
}

func (r *recorder) notify(t models.Turn) {
	r.turns = append(r.turns, t)
}

func (r *recorder) texts() []string {
	out := make([]string, 0, len(r.turns))
	for _, t := range r.turns {
		out = append(out, t.Text)
	}
	return out
}

func TestBufferAppend(t *testing.T) {
	rec := &recorder{}
	buf := chat.NewBuffer(models.Turn{ID: "t1", Role: models.RoleAssistant, Text: "stale"}, rec.notify)
	assert.Empty(t, buf.Turn().Text)
	assert.True(t, buf.Turn().Streaming)

	w := buf.Writer()
	assert.True(t, w.Append("Mer"))
	assert.True(t, w.Append(""))
	assert.True(t, w.Append("haba"))

	assert.Equal(t, "Merhaba", buf.Turn().Text)
	assert.Equal(t, []string{"Mer", "Merhaba"}, rec.texts())
	assert.Equal(t, "t1", buf.Turn().ID)
}

func TestBufferWriterRevocation(t *testing.T) {
	buf := chat.NewBuffer(models.Turn{}, nil)

	first := buf.Writer()
	require.True(t, first.Append("a"))

	second := buf.Writer()
	assert.False(t, first.Append("late"))
	assert.True(t, second.Append("b"))

	third := buf.Writer()
	assert.False(t, second.Append("c"))
	assert.True(t, third.Append("d"))

	assert.Equal(t, "abd", buf.Turn().Text)
}

func TestBufferFinalize(t *testing.T) {
	rec := &recorder{}
	buf := chat.NewBuffer(models.Turn{}, rec.notify)
	w := buf.Writer()
	w.Append("Yanıt")

	assert.True(t, buf.Finalize([]string{"a"}, true))
	assert.False(t, buf.Finalize([]string{"b"}, false))
	assert.False(t, buf.FinalizeDegraded("offline", nil))
	assert.False(t, w.Append("more"))
	assert.False(t, buf.Writer().Append("more"))

	turn := buf.Turn()
	assert.False(t, turn.Streaming)
	assert.Equal(t, "Yanıt", turn.Text)
	assert.Equal(t, []string{"a"}, turn.Suggestions)
	assert.True(t, turn.Enhanced)
	assert.False(t, turn.Degraded)

	last := rec.turns[len(rec.turns)-1]
	assert.False(t, last.Streaming)
	assert.Len(t, rec.turns, 2)
}

func TestBufferFinalizeDegraded(t *testing.T) {
	t.Run("Empty turn", func(t *testing.T) {
		buf := chat.NewBuffer(models.Turn{Enhanced: true}, nil)

		assert.True(t, buf.FinalizeDegraded("offline", []string{"s"}))

		turn := buf.Turn()
		assert.Equal(t, "offline", turn.Text)
		assert.Equal(t, []string{"s"}, turn.Suggestions)
		assert.True(t, turn.Degraded)
		assert.False(t, turn.Enhanced)
		assert.False(t, turn.Streaming)
	})

	t.Run("Turn with content", func(t *testing.T) {
		buf := chat.NewBuffer(models.Turn{}, nil)
		buf.Writer().Append("Kısmi")

		assert.False(t, buf.FinalizeDegraded("offline", []string{"s"}))

		turn := buf.Turn()
		assert.False(t, turn.Streaming)
		assert.Equal(t, "Kısmi", turn.Text)
		assert.Empty(t, turn.Suggestions)
		assert.False(t, turn.Degraded)
		assert.False(t, buf.Finalize(nil, true))
	})

	t.Run("Whitespace only", func(t *testing.T) {
		buf := chat.NewBuffer(models.Turn{}, nil)
		buf.Writer().Append(" \n ")

		assert.True(t, buf.FinalizeDegraded("offline", []string{"s"}))

		turn := buf.Turn()
		assert.Equal(t, "offline", turn.Text)
		assert.True(t, turn.Degraded)
	})
}

func TestBufferTurnIsSnapshot(t *testing.T) {
	buf := chat.NewBuffer(models.Turn{}, nil)
	buf.Finalize([]string{"a"}, false)

	turn := buf.Turn()
	turn.Suggestions[0] = "changed"
	assert.Equal(t, []string{"a"}, buf.Turn().Suggestions)
}
