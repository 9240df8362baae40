package block

import (
	"encoding/binary"

	"github.com/yourusername/ledgercore/internal/tx"
)

// Builder assembles a block template around a coinbase transaction.
type Builder struct {
	Header Header
	Txs    []*tx.Transaction
}

// CoinbaseInputScript commits the coinbase to its block number so coinbase
// ids are unique across the chain.
func CoinbaseInputScript(nBlock uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, nBlock)
}

// NewGenesisBuilder starts the first block of a chain.
func NewGenesisBuilder(target [32]byte, coinbaseScript []byte, amount uint64, now uint64) *Builder {
	header := NewGenesis(target, now)
	coinbase := tx.NewCoinbaseTx(CoinbaseInputScript(0), coinbaseScript, amount)
	b := &Builder{Header: *header, Txs: []*tx.Transaction{coinbase}}
	b.updateRoot()
	return b
}

// NewBuilderFromPrev starts the block after prev. prevAdj follows the rules
// of FromPrevBlockHeader.
func NewBuilderFromPrev(prev, prevAdj *Header, coinbaseScript []byte, amount uint64, now uint64) (*Builder, error) {
	header, err := FromPrevBlockHeader(prev, prevAdj, now)
	if err != nil {
		return nil, err
	}
	coinbase := tx.NewCoinbaseTx(CoinbaseInputScript(header.NBlock), coinbaseScript, amount)
	b := &Builder{Header: *header, Txs: []*tx.Transaction{coinbase}}
	b.updateRoot()
	return b, nil
}

// AddTx appends a transaction and refreshes the merkle root.
func (b *Builder) AddTx(t *tx.Transaction) *Builder {
	b.Txs = append(b.Txs, t)
	b.updateRoot()
	return b
}

func (b *Builder) updateRoot() {
	if root, err := (&Block{Txs: b.Txs}).MerkleRoot(); err == nil {
		b.Header.MerkleRoot = root
	}
}

// Build returns the block with a freshly computed merkle root.
func (b *Builder) Build() (*Block, error) {
	blk, err := NewBlock(b.Header, append([]*tx.Transaction(nil), b.Txs...))
	if err != nil {
		return nil, err
	}
	root, err := blk.MerkleRoot()
	if err != nil {
		return nil, err
	}
	blk.Header.MerkleRoot = root
	return blk, nil
}
