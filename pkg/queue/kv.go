package queue

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

// KV is the durable key→string primitive the queue persists into. It mirrors
// the synchronous get/set/remove storage surface the host environment offers.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

var bucketOffline = []byte("offline")

// BoltKV implements KV on a BoltDB file.
type BoltKV struct {
	db *bolt.DB
}

// NewBoltKV opens (or creates) the queue database under dataDir
func NewBoltKV(dataDir string) (*BoltKV, error) {
	dbPath := filepath.Join(dataDir, "usher.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketOffline); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucketOffline, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltKV{db: db}, nil
}

func (s *BoltKV) Get(key string) (string, bool, error) {
	var value string
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketOffline).Get([]byte(key))
		if data == nil {
			return nil
		}
		value = string(data)
		ok = true
		return nil
	})
	return value, ok, err
}

func (s *BoltKV) Set(key, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOffline).Put([]byte(key), []byte(value))
	})
}

func (s *BoltKV) Delete(key string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketOffline).Delete([]byte(key))
	})
}

// Close closes the database
func (s *BoltKV) Close() error {
	return s.db.Close()
}
