package storage

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
	"go.uber.org/zap"

	"github.com/yourusername/ledgercore/internal/block"
	"github.com/yourusername/ledgercore/internal/tx"
	"github.com/yourusername/ledgercore/internal/utxo"
)

const (
	// Database prefixes
	blockPrefix  = "block_"
	heightPrefix = "height_"
	utxoPrefix   = "utxo_"
	tipKey       = "chain_tip"
)

// ErrNotFound is returned when a key is absent.
var ErrNotFound = errors.New("not found")

// Storage represents the LevelDB storage layer: blocks by id, block ids by
// number, the chain tip and the unspent output set.
type Storage struct {
	db  *leveldb.DB
	log *zap.Logger
}

// NewStorage opens (or creates) a database at path
func NewStorage(path string, log *zap.Logger) (*Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db, log), nil
}

// NewMemStorage opens a database that lives in memory
func NewMemStorage(log *zap.Logger) (*Storage, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db, log), nil
}

func newStorage(db *leveldb.DB, log *zap.Logger) *Storage {
	if log == nil {
		log = zap.NewNop()
	}
	return &Storage{db: db, log: log.Named("storage")}
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func get(db *leveldb.DB, key []byte) ([]byte, error) {
	data, err := db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return data, err
}

func blockKey(id [32]byte) []byte {
	return append([]byte(blockPrefix), id[:]...)
}

func heightKey(n uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(heightPrefix), n)
}

func utxoKey(txID [32]byte, index uint32) []byte {
	k := append([]byte(utxoPrefix), txID[:]...)
	return binary.BigEndian.AppendUint32(k, index)
}

// GetBlock retrieves a block by id
func (s *Storage) GetBlock(id [32]byte) (*block.Block, error) {
	data, err := get(s.db, blockKey(id))
	if err != nil {
		return nil, fmt.Errorf("block %x: %w", id, err)
	}
	blk, err := block.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode block %x: %w", id, err)
	}
	return blk, nil
}

// GetBlockIDByNumber returns the id of the main-chain block numbered n
func (s *Storage) GetBlockIDByNumber(n uint64) ([32]byte, error) {
	var id [32]byte
	data, err := get(s.db, heightKey(n))
	if err != nil {
		return id, fmt.Errorf("block number %d: %w", n, err)
	}
	copy(id[:], data)
	return id, nil
}

// BlockExists checks if a block exists in the database
func (s *Storage) BlockExists(id [32]byte) bool {
	exists, _ := s.db.Has(blockKey(id), nil)
	return exists
}

// GetChainTip retrieves the id of the current chain tip
func (s *Storage) GetChainTip() ([32]byte, error) {
	var id [32]byte
	data, err := get(s.db, []byte(tipKey))
	if err != nil {
		return id, err
	}
	copy(id[:], data)
	return id, nil
}

// GetUTXO retrieves an unspent output
func (s *Storage) GetUTXO(txID [32]byte, index uint32) (*tx.TxOutput, error) {
	data, err := get(s.db, utxoKey(txID, index))
	if err != nil {
		return nil, err
	}
	return tx.DecodeOutput(data)
}

// Get implements tx.OutputMap over the stored UTXO set. Read errors other
// than a missing key are logged and reported as absent.
func (s *Storage) Get(txID [32]byte, index uint32) (*tx.TxOutput, bool) {
	out, err := s.GetUTXO(txID, index)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Error("utxo lookup failed", zap.Binary("txid", txID[:]), zap.Uint32("index", index), zap.Error(err))
		}
		return nil, false
	}
	return out, true
}

// CommitBlock stores blk as the new tip and applies its UTXO changes in a
// single batch.
func (s *Storage) CommitBlock(blk *block.Block, view *utxo.View) error {
	id := blk.ID()
	batch := new(leveldb.Batch)

	batch.Put(blockKey(id), blk.Encode())
	batch.Put(heightKey(blk.Header.NBlock), id[:])
	batch.Put([]byte(tipKey), id[:])

	spent := view.Spent()
	for _, op := range spent {
		batch.Delete(utxoKey(op.TxID, op.Index))
	}
	created := view.Created()
	for op, out := range created {
		batch.Put(utxoKey(op.TxID, op.Index), out.Encode())
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to commit block %x: %w", id, err)
	}
	s.log.Debug("block committed",
		zap.Binary("id", id[:]),
		zap.Uint64("nBlock", blk.Header.NBlock),
		zap.Int("spent", len(spent)),
		zap.Int("created", len(created)))
	return nil
}

// ForEachUTXO calls fn for every stored unspent output, in key order.
func (s *Storage) ForEachUTXO(fn func(op tx.OutPoint, out *tx.TxOutput) error) error {
	iter := s.db.NewIterator(util.BytesPrefix([]byte(utxoPrefix)), nil)
	defer iter.Release()

	for iter.Next() {
		key := iter.Key()[len(utxoPrefix):]
		if len(key) != 36 {
			return fmt.Errorf("corrupt utxo key %x", iter.Key())
		}
		var op tx.OutPoint
		copy(op.TxID[:], key[:32])
		op.Index = binary.BigEndian.Uint32(key[32:])

		out, err := tx.DecodeOutput(iter.Value())
		if err != nil {
			return fmt.Errorf("corrupt utxo %x:%d: %w", op.TxID, op.Index, err)
		}
		if err := fn(op, out); err != nil {
			return err
		}
	}
	return iter.Error()
}

// LoadUTXOSet copies the stored outputs into an in-memory set
func (s *Storage) LoadUTXOSet() (*utxo.UTXOSet, error) {
	set := utxo.NewUTXOSet()
	err := s.ForEachUTXO(func(op tx.OutPoint, out *tx.TxOutput) error {
		set.UTXOs[op] = *out
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// Clear removes all data from the database
func (s *Storage) Clear() error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(iter.Key())
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}
