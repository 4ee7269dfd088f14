package state

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var appendedBucket = []byte("appended")

// Store remembers which items have already been appended to a day's
// record, so a rerun after a partial failure does not write duplicate
// blocks. Keys are "<date>|<item URL>".
type Store struct {
	db *bolt.DB
}

func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("state: failed to open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists(appendedBucket)
		return createErr
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("state: failed to create bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func markerKey(date, url string) []byte {
	return []byte(date + "|" + url)
}

// Marked reports whether the item was already appended on the given
// date.
func (s *Store) Marked(date, url string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(appendedBucket).Get(markerKey(date, url)) != nil
		return nil
	})
	return found, err
}

// Mark records the items as appended for the given date.
func (s *Store) Mark(date string, urls []string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(appendedBucket)
		for _, url := range urls {
			if err := b.Put(markerKey(date, url), []byte{1}); err != nil {
				return err
			}
		}
		return nil
	})
}
