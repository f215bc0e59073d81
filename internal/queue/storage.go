package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketMessages   = []byte("messages")
	bucketPending    = []byte("pending")
	bucketDeadLetter = []byte("dead_letter")
)

// Storage is a BoltDB-backed queue
type Storage struct {
	db *bolt.DB
}

// Open opens (or creates) the queue database at path
func Open(path string) (*Storage, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open queue database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketMessages, bucketPending, bucketDeadLetter} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Enqueue adds a message to the queue
func (s *Storage) Enqueue(msg *Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if err := tx.Bucket(bucketMessages).Put([]byte(msg.ID), data); err != nil {
			return fmt.Errorf("failed to store message: %w", err)
		}

		indexKey := makeIndexKey(msg.CreatedAt, msg.ID)
		if err := tx.Bucket(bucketPending).Put(indexKey, []byte(msg.ID)); err != nil {
			return fmt.Errorf("failed to add to pending index: %w", err)
		}
		return nil
	})
}

// DequeueBatch returns up to limit pending messages in enqueue order.
// The messages stay pending until acknowledged.
func (s *Storage) DequeueBatch(limit int) ([]*Message, error) {
	var messages []*Message

	err := s.db.View(func(tx *bolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages)
		c := tx.Bucket(bucketPending).Cursor()

		for k, id := c.First(); k != nil && len(messages) < limit; k, id = c.Next() {
			data := msgBucket.Get(id)
			if data == nil {
				continue
			}
			msg := &Message{}
			if err := json.Unmarshal(data, msg); err != nil {
				return fmt.Errorf("failed to unmarshal message %s: %w", id, err)
			}
			messages = append(messages, msg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return messages, nil
}

// Ack removes a delivered message from the queue
func (s *Storage) Ack(msg *Message) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketPending).Delete(makeIndexKey(msg.CreatedAt, msg.ID)); err != nil {
			return err
		}
		return tx.Bucket(bucketMessages).Delete([]byte(msg.ID))
	})
}

// Nack records a failed attempt. When attempts reach maxAttempts the
// message moves to the dead-letter bucket; otherwise it stays pending.
func (s *Storage) Nack(msg *Message, deliveryErr error, maxAttempts int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		msg.Attempts++
		if deliveryErr != nil {
			msg.LastError = deliveryErr.Error()
		}

		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		if msg.Attempts >= maxAttempts {
			if err := tx.Bucket(bucketPending).Delete(makeIndexKey(msg.CreatedAt, msg.ID)); err != nil {
				return err
			}
			if err := tx.Bucket(bucketMessages).Delete([]byte(msg.ID)); err != nil {
				return err
			}
			return tx.Bucket(bucketDeadLetter).Put([]byte(msg.ID), data)
		}

		return tx.Bucket(bucketMessages).Put([]byte(msg.ID), data)
	})
}

// PendingForCampaign counts messages still queued for one campaign
func (s *Storage) PendingForCampaign(campaignID string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages)
		c := tx.Bucket(bucketPending).Cursor()

		for k, id := c.First(); k != nil; k, id = c.Next() {
			data := msgBucket.Get(id)
			if data == nil {
				continue
			}
			msg := &Message{}
			if err := json.Unmarshal(data, msg); err != nil {
				continue
			}
			if msg.CampaignID == campaignID {
				count++
			}
		}
		return nil
	})
	return count, err
}

// Stats returns queue depth counts
func (s *Storage) Stats() (*Stats, error) {
	stats := &Stats{}
	err := s.db.View(func(tx *bolt.Tx) error {
		stats.Pending = tx.Bucket(bucketPending).Stats().KeyN
		stats.DeadLetter = tx.Bucket(bucketDeadLetter).Stats().KeyN
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// makeIndexKey builds a sortable key so cursor order is enqueue order
func makeIndexKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d-%s", t.UnixNano(), id))
}
