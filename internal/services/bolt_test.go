package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uphera/adachat/internal/models"
	"github.com/uphera/adachat/internal/services"
)

func newBolt(t *testing.T) services.BoltDB {
	t.Helper()

	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltDBAddConversation(t *testing.T) {
	db := newBolt(t)
	ctx := context.Background()

	assert.Error(t, db.AddConversation(ctx, models.Conversation{}))

	conv := models.Conversation{ID: "anonymous:general", Context: "general", CreatedAt: time.Now()}
	require.NoError(t, db.AddConversation(ctx, conv))
	_, err := db.AddMessage(ctx, conv.ID, models.Message{ID: "m1", Role: models.RoleUser, Content: "Selam"})
	require.NoError(t, err)

	// Adding it again, as every request does, keeps the messages.
	conv.Context = "changed"
	require.NoError(t, db.AddConversation(ctx, conv))

	msgs, err := db.Messages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Selam", msgs[0].Content)
}

func TestBoltDBMessages(t *testing.T) {
	db := newBolt(t)
	ctx := context.Background()

	_, err := db.AddMessage(ctx, "missing", models.Message{ID: "m"})
	require.ErrorIs(t, err, services.ErrConversationNotFound)

	msgs, err := db.Messages(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, db.AddConversation(ctx, models.Conversation{ID: "c"}))

	contents := []string{"bir", "iki", "üç", "dört", "beş", "altı", "yedi", "sekiz", "dokuz", "on", "on bir"}
	for i, c := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		id, err := db.AddMessage(ctx, "c", models.Message{ID: "m", Role: role, Content: c})
		require.NoError(t, err)
		assert.Contains(t, id, "-m")
	}

	msgs, err = db.Messages(ctx, "c")
	require.NoError(t, err)
	require.Len(t, msgs, len(contents))
	for i, m := range msgs {
		assert.Equal(t, contents[i], m.Content)
	}
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)

	history := models.HistoryFromMessages(msgs, 6)
	require.Len(t, history, 6)
	assert.Equal(t, "on bir", history[5].Content)
}
