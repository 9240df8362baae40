package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/yourusername/ledgercore/internal/block"
)

var (
	bucketHeaders = []byte("headers_by_id")
	bucketNumbers = []byte("ids_by_number")
)

// HeaderIndex keeps main-chain headers in a bbolt file, addressable by id
// and by block number. Retargeting reads the header that opened a period
// from here.
type HeaderIndex struct {
	db *bolt.DB
}

// OpenHeaderIndex opens (or creates) the index at path.
func OpenHeaderIndex(path string) (*HeaderIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketHeaders, bucketNumbers} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &HeaderIndex{db: db}, nil
}

func (x *HeaderIndex) Close() error {
	if x == nil || x.db == nil {
		return nil
	}
	return x.db.Close()
}

func numberKey(n uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, n)
}

// Put stores h under its id and its block number.
func (x *HeaderIndex) Put(h *block.Header) error {
	id := h.ID()
	return x.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketHeaders).Put(id[:], h.Encode()); err != nil {
			return err
		}
		return tx.Bucket(bucketNumbers).Put(numberKey(h.NBlock), id[:])
	})
}

// Get returns the header with the given id.
func (x *HeaderIndex) Get(id [32]byte) (*block.Header, bool, error) {
	var out *block.Header
	err := x.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHeaders).Get(id[:])
		if v == nil {
			return nil
		}
		h, err := block.DecodeHeader(v)
		if err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// GetByNumber returns the main-chain header numbered n.
func (x *HeaderIndex) GetByNumber(n uint64) (*block.Header, bool, error) {
	var out *block.Header
	err := x.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket(bucketNumbers).Get(numberKey(n))
		if id == nil {
			return nil
		}
		v := tx.Bucket(bucketHeaders).Get(id)
		if v == nil {
			return fmt.Errorf("header %x indexed at %d is missing", id, n)
		}
		h, err := block.DecodeHeader(v)
		if err != nil {
			return err
		}
		out = h
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// Count returns the number of indexed block numbers.
func (x *HeaderIndex) Count() (int, error) {
	var n int
	err := x.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketNumbers).Stats().KeyN
		return nil
	})
	return n, err
}
