package models

import (
	"slices"
	"time"
)

// Turn is one exchange shown in the conversation view. An assistant turn is mutable while Streaming is
// true and frozen once it becomes false.
type Turn struct {
	ID        string
	Role      Role
	Text      string
	CreatedAt time.Time

	Streaming   bool
	Suggestions []string

	// Degraded is set when Text was synthesized locally because no live attempt produced content.
	Degraded bool
	// Enhanced mirrors the flag reported by the assistant in its terminal frame.
	Enhanced bool
}

// Clone returns a copy of the turn that shares no mutable state with the receiver.
func (t Turn) Clone() Turn {
	t.Suggestions = slices.Clone(t.Suggestions)
	return t
}

// History converts turns into request history entries, keeping at most the last limit turns. Turns
// still streaming and empty turns are skipped.
func History(turns []Turn, limit int) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(turns))
	for _, t := range turns {
		if t.Streaming || t.Text == "" {
			continue
		}
		entries = append(entries, HistoryEntry{Type: string(t.Role), Content: t.Text})
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries
}
