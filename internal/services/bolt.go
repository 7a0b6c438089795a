package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/uphera/adachat/internal/models"
	bolt "go.etcd.io/bbolt"
)

// ErrConversationNotFound is returned when messages are added to a conversation that was never stored.
var ErrConversationNotFound = errors.New("conversation not found")

var conversationsBucket = []byte("conversations")

// BoltDB stores assistant conversations and their messages in a BoltDB file. Each conversation has its own
// message bucket, keyed by an increasing sequence so messages are read back in the order they were added.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (or creates, with 0600 permissions) the database file at path and makes sure the
// conversations bucket exists.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(conversationsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, fmt.Errorf("failed to create conversations bucket: %w", err)
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

func messageBucketName(conversationID string) []byte {
	return []byte(fmt.Sprintf("conversation-%s", conversationID))
}

// AddConversation stores conv and creates its message bucket. Adding a conversation whose id is already
// stored keeps the existing record and its messages.
func (b BoltDB) AddConversation(_ context.Context, conv models.Conversation) error {
	if conv.ID == "" {
		return errors.New("conversation id is required")
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(conversationsBucket)
		if bk.Get([]byte(conv.ID)) != nil {
			return nil
		}

		if _, err := tx.CreateBucketIfNotExists(messageBucketName(conv.ID)); err != nil {
			return fmt.Errorf("failed to create message bucket: %w", err)
		}

		v, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}
		return bk.Put([]byte(conv.ID), v)
	})
}

// Messages returns the messages of a conversation in the order they were added. An unknown conversation
// has no messages.
func (b BoltDB) Messages(_ context.Context, conversationID string) ([]models.Message, error) {
	var messages []models.Message
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket(messageBucketName(conversationID))
		if bk == nil {
			return nil
		}

		return bk.ForEach(func(_, v []byte) error {
			var message models.Message
			if err := json.Unmarshal(v, &message); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			messages = append(messages, message)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// AddMessage appends message to a conversation. The stored id is prefixed with a sequence number, which is
// returned. The conversation must exist.
func (b BoltDB) AddMessage(_ context.Context, conversationID string, message models.Message) (string, error) {
	var newID string
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(messageBucketName(conversationID))
		if bk == nil {
			return ErrConversationNotFound
		}

		seq, err := bk.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		// Zero padded so the byte order of keys follows the sequence.
		newID = fmt.Sprintf("%020d-%s", seq, message.ID)
		message.ID = newID

		v, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		return bk.Put([]byte(newID), v)
	})

	return newID, err
}
