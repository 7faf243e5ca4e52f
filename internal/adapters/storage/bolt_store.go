// Package storage implements the file storage collaborator for downloaded media
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"facebook-action/internal/core/ports"
)

var filesBucket = []byte("files")

// Ensure BoltStore implements the storage ports
var (
	_ ports.FileStorage = (*BoltStore)(nil)
	_ ports.FileReader  = (*BoltStore)(nil)
)

// BoltStore keeps files in a single bbolt database file
type BoltStore struct {
	db      *bolt.DB
	baseURL string
}

// NewBoltStore opens (or creates) the database at path
// baseURL is the public prefix files are served under, e.g. https://host/files
func NewBoltStore(path, baseURL string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(filesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating files bucket: %w", err)
	}

	return &BoltStore{db: db, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Save stores data under path
func (s *BoltStore) Save(path string, data []byte) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(filesBucket).Put([]byte(path), data)
	})
	if err != nil {
		return fmt.Errorf("save file %s: %w", path, err)
	}
	slog.Debug("File stored", "backend", "bolt", "path", path, "size", len(data))
	return nil
}

// PublicURL returns the web-accessible URL of path
func (s *BoltStore) PublicURL(path string) string {
	return publicURL(s.baseURL, path)
}

// Load returns the stored bytes, ports.ErrNotFound when absent
func (s *BoltStore) Load(_ context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(filesBucket).Get([]byte(path))
		if v == nil {
			return ports.ErrNotFound
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func publicURL(baseURL, path string) string {
	return baseURL + "/" + strings.TrimPrefix(path, "/")
}
