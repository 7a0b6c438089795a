package models

import "time"

// Message is one stored entry of a conversation on the server side.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// HistoryEntry is the wire shape of a prior turn sent along with a chat request.
type HistoryEntry struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// HistoryFromMessages converts stored messages into history entries, keeping at most the last limit
// entries. A non-positive limit keeps everything.
func HistoryFromMessages(messages []Message, limit int) []HistoryEntry {
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	entries := make([]HistoryEntry, 0, len(messages))
	for _, m := range messages {
		entries = append(entries, HistoryEntry{Type: string(m.Role), Content: m.Content})
	}
	return entries
}
