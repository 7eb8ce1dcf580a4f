// Package store persists trained models in an embedded BadgerDB
// database, one entry per model identifier plus a metadata record.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/colorpref/colorpref/internal/nn"
)

const (
	modelKeyPrefix = "model:"
	metaKeyPrefix  = "modelmeta:"
)

var (
	// ErrSave reports a failed model save.
	ErrSave = errors.New("model save failed")

	// ErrLoad reports a failed model load. Missing and corrupt entries
	// are indistinguishable to the caller; interpretation (fresh-model
	// fallback) is a caller concern.
	ErrLoad = errors.New("model load failed")
)

// Snapshotter is anything that can serialize itself for storage.
type Snapshotter interface {
	Serialize() ([]byte, error)
}

// Meta describes a stored model entry.
type Meta struct {
	ID        string    `json:"id"`
	SavedAt   time.Time `json:"saved_at"`
	SizeBytes int       `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
	Saves     int       `json:"saves"`
}

// Store is a durable model store. Safe for concurrent use; Badger
// provides transactional isolation.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the store at dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open model store at %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save serializes the model under the given identifier, replacing any
// prior entry, and updates its metadata record. Any failure is wrapped
// in ErrSave with the underlying cause.
func (s *Store) Save(ctx context.Context, id string, m Snapshotter) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	if id == "" {
		return fmt.Errorf("%w: empty model id", ErrSave)
	}

	data, err := m.Serialize()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	sum := sha256.Sum256(data)

	err = s.db.Update(func(txn *badger.Txn) error {
		meta := Meta{ID: id}
		if item, err := txn.Get([]byte(metaKeyPrefix + id)); err == nil {
			_ = item.Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
		}
		meta.SavedAt = time.Now().UTC()
		meta.SizeBytes = len(data)
		meta.Checksum = hex.EncodeToString(sum[:])
		meta.Saves++

		metaData, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		if err := txn.Set([]byte(modelKeyPrefix+id), data); err != nil {
			return fmt.Errorf("set model: %w", err)
		}
		if err := txn.Set([]byte(metaKeyPrefix+id), metaData); err != nil {
			return fmt.Errorf("set metadata: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSave, err)
	}
	return nil
}

// Load deserializes the model stored under the given identifier. Every
// failure mode (missing entry, checksum mismatch, undecodable payload)
// surfaces as ErrLoad.
func (s *Store) Load(ctx context.Context, id string) (*nn.Network, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	var data []byte
	var meta *Meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(modelKeyPrefix + id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if metaItem, err := txn.Get([]byte(metaKeyPrefix + id)); err == nil {
			var m Meta
			if err := metaItem.Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err == nil {
				meta = &m
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	if meta != nil {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != meta.Checksum {
			return nil, fmt.Errorf("%w: checksum mismatch for %q", ErrLoad, id)
		}
	}

	net, err := nn.Deserialize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return net, nil
}

// Metadata returns the metadata record for a stored model.
func (s *Store) Metadata(ctx context.Context, id string) (*Meta, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}

	var meta Meta
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKeyPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return &meta, nil
}
