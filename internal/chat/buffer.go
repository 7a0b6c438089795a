// Package chat drives one assistant answer from the moment a user sends a message until the turn is
// final: the partial-content buffer, the per-attempt session controller, the fallback orchestrator and
// the conversation that owns the turns.
package chat

import (
	"strings"
	"sync"

	"github.com/uphera/adachat/internal/models"
)

// Buffer owns the text of the in-flight assistant turn. Only the writer handed out last may append;
// older writers are revoked so an abandoned attempt can never race the next one. The buffer is created
// empty for each outgoing message and is never reset while a cascade runs.
type Buffer struct {
	mu sync.Mutex

	turn  models.Turn
	owner uint64
	final bool

	notify func(models.Turn)
}

// NewBuffer starts streaming into turn. Its text is cleared and it is marked streaming. notify, if not
// nil, receives a snapshot after every change, in order. It is called with the buffer locked and must
// not call back into the buffer.
func NewBuffer(turn models.Turn, notify func(models.Turn)) *Buffer {
	turn.Text = ""
	turn.Streaming = true
	turn.Degraded = false
	turn.Suggestions = nil
	return &Buffer{turn: turn, notify: notify}
}

// Writer hands out a new writer and revokes every writer handed out before.
func (b *Buffer) Writer() *Writer {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.owner++
	return &Writer{b: b, gen: b.owner}
}

// Turn returns a snapshot of the turn.
func (b *Buffer) Turn() models.Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.turn.Clone()
}

// Finalize ends streaming, keeping the accumulated text. It returns false when the turn was already final.
func (b *Buffer) Finalize(suggestions []string, enhanced bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final {
		return false
	}
	b.turn.Suggestions = suggestions
	b.turn.Enhanced = enhanced
	b.finish()
	return true
}

// FinalizeDegraded ends streaming with a locally synthesized answer. It only applies to a turn that
// received no content besides whitespace; otherwise it behaves like Finalize without suggestions and
// reports false.
func (b *Buffer) FinalizeDegraded(text string, suggestions []string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final {
		return false
	}
	if strings.TrimSpace(b.turn.Text) != "" {
		b.finish()
		return false
	}
	b.turn.Text = text
	b.turn.Suggestions = suggestions
	b.turn.Degraded = true
	b.turn.Enhanced = false
	b.finish()
	return true
}

func (b *Buffer) finish() {
	b.final = true
	b.owner++
	b.turn.Streaming = false
	b.publish()
}

func (b *Buffer) publish() {
	if b.notify != nil {
		b.notify(b.turn.Clone())
	}
}

// Writer appends on behalf of one attempt.
type Writer struct {
	b   *Buffer
	gen uint64
}

// Append adds a fragment to the turn and publishes it. It returns false, leaving the turn unchanged,
// when the writer was revoked or the turn is final.
func (w *Writer) Append(fragment string) bool {
	b := w.b
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.final || b.owner != w.gen {
		return false
	}
	if fragment == "" {
		return true
	}
	b.turn.Text += fragment
	b.publish()
	return true
}
