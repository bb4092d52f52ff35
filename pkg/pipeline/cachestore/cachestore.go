// Package cachestore is the on-disk half of the cache manager: a
// bbolt-backed blob store keyed by source path, holding the serialized
// IndexFile bytes plus a version-tagged header. Grounded on the teacher's
// pkg/store.BoltStore (bucket-per-concern bbolt usage) and
// pkg/store.RunMigrations (schema-version stamping).
package cachestore

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jmylchreest/aidepipe/pkg/pipeline/model"
	"github.com/jmylchreest/aidepipe/pkg/pipeline/serialize"
)

var cacheLog = log.New(os.Stderr, "[aidepipe:cachestore] ", log.Ltime)

// SchemaVersion is the current on-disk schema version for the cache bucket
// layout. Bump when the bucket layout (not the IndexFile format, tracked
// separately via model.CurrentIndexFileVersion) changes incompatibly.
const SchemaVersion uint64 = 1

var (
	bucketIndexBlobs = []byte("index_blobs")
	bucketContents   = []byte("file_contents")
	bucketMeta       = []byte("meta")
	metaSchemaKey    = []byte("schema_version")
)

// BoltCacheStore persists serialized IndexFiles keyed by source path.
type BoltCacheStore struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt-backed cache store at path.
func Open(path string) (*BoltCacheStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("cachestore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketIndexBlobs, bucketContents, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("cachestore: init buckets: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("cachestore: schema migration: %w", err)
	}

	return &BoltCacheStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltCacheStore) Close() error {
	return s.db.Close()
}

// Load reads and deserializes the IndexFile persisted for path. Returns nil,
// nil on a clean miss (never persisted, or version mismatch — treated as
// absent per the cache-incompatibility policy).
func (s *BoltCacheStore) Load(path string) (*model.IndexFile, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketIndexBlobs)
		v := b.Get([]byte(path))
		if v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	f, err := serialize.Deserialize(serialize.FormatBinary, path, raw, model.CurrentIndexFileVersion)
	if err != nil {
		return nil, fmt.Errorf("cachestore: deserialize %s: %w", path, err)
	}
	if f == nil {
		cacheLog.Printf("cache blob for %s failed version check, treating as miss", path)
	}
	return f, nil
}

// Store serializes and persists file under its own path.
func (s *BoltCacheStore) Store(file *model.IndexFile) error {
	raw, err := serialize.Serialize(serialize.FormatBinary, file, serialize.Options{})
	if err != nil {
		return fmt.Errorf("cachestore: serialize %s: %w", file.Path, err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketIndexBlobs).Put([]byte(file.Path), raw)
	})
}

// LoadFileContents returns the last-known raw source text for path, if the
// pipeline has ever cached it alongside the index.
func (s *BoltCacheStore) LoadFileContents(path string) (string, bool, error) {
	var contents []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketContents).Get([]byte(path))
		if v != nil {
			contents = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", false, err
	}
	if contents == nil {
		return "", false, nil
	}
	return string(contents), true, nil
}

// StoreFileContents records the raw source text last seen for path.
func (s *BoltCacheStore) StoreFileContents(path, contents string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketContents).Put([]byte(path), []byte(contents))
	})
}

// Delete removes any persisted blob and contents for path (used when a
// watched file is removed).
func (s *BoltCacheStore) Delete(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketIndexBlobs).Delete([]byte(path)); err != nil {
			return err
		}
		return tx.Bucket(bucketContents).Delete([]byte(path))
	})
}

func runMigrations(db *bolt.DB) error {
	var current uint64
	err := db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(metaSchemaKey)
		if len(v) == 8 {
			current = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if current > SchemaVersion {
		return fmt.Errorf("cache database schema version %d is ahead of binary version %d", current, SchemaVersion)
	}
	if current == SchemaVersion {
		return nil
	}

	cacheLog.Printf("stamping cache schema v%d (was v%d)", SchemaVersion, current)
	return db.Update(func(tx *bolt.Tx) error {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, SchemaVersion)
		return tx.Bucket(bucketMeta).Put(metaSchemaKey, buf)
	})
}
