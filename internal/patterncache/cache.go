// Package patterncache persists translated pattern sources in a bbolt
// file so configuration reloads skip the ICU-class translation step. The
// cache is strictly best-effort: every failure is logged and treated as a
// miss, and compilation always proceeds in memory.
package patterncache

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"fmt"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketPatterns = []byte("patterns")

// entry is the stored record for one pattern source. Engine is the matcher
// engine version the translation was produced for; an entry from another
// engine version is stale and ignored.
type entry struct {
	Engine     string
	Translated string
}

// Cache is a bbolt-backed pattern translation cache. A nil *Cache is valid
// and behaves as an always-miss cache, so callers can thread the result of
// a failed Open straight through.
type Cache struct {
	db     *bolt.DB
	engine string
}

// Open opens (creating if needed) the cache file at path for the given
// engine version. Callers should treat an error as non-fatal: log it and
// continue with a nil cache.
func Open(path, engineVersion string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("patterncache: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketPatterns)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("patterncache: init bucket: %w", err)
	}

	return &Cache{db: db, engine: engineVersion}, nil
}

// Get returns the cached translation for a pattern source. Stale entries
// (recorded under a different engine version) and read failures are misses.
func (c *Cache) Get(src string) (string, bool) {
	if c == nil {
		return "", false
	}

	var e entry
	found := false
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketPatterns).Get(key(src))
		if raw == nil {
			return nil
		}
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&e); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		log.Printf("[patterncache] read failed: %v (treating as miss)", err)
		return "", false
	}
	if !found || e.Engine != c.engine {
		return "", false
	}
	return e.Translated, true
}

// Put stores the translation for a pattern source, overwriting any stale
// entry. Write failures are logged and swallowed.
func (c *Cache) Put(src, translated string) {
	if c == nil {
		return
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry{Engine: c.engine, Translated: translated}); err != nil {
		log.Printf("[patterncache] encode failed: %v (skipping cache write)", err)
		return
	}

	err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPatterns).Put(key(src), buf.Bytes())
	})
	if err != nil {
		log.Printf("[patterncache] write failed: %v (skipping cache write)", err)
	}
}

// Close releases the underlying bbolt file.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

func key(src string) []byte {
	sum := sha256.Sum256([]byte(src))
	return sum[:]
}
