package block

import (
	"encoding/hex"
	"fmt"

	"github.com/yourusername/ledgercore/internal/codec"
	"github.com/yourusername/ledgercore/internal/errs"
	"github.com/yourusername/ledgercore/internal/merkle"
	"github.com/yourusername/ledgercore/internal/tx"
)

// Block represents a header and its ordered transactions
type Block struct {
	Header Header
	Txs    []*tx.Transaction
}

// NewBlock creates a block. A block carries at least one transaction.
func NewBlock(header Header, txs []*tx.Transaction) (*Block, error) {
	if len(txs) == 0 {
		return nil, errs.Invalid("txs", "block has no transactions")
	}
	return &Block{Header: header, Txs: txs}, nil
}

// ID returns the header id.
func (b *Block) ID() [32]byte {
	return b.Header.ID()
}

// IsGenesis reports whether b is a genesis block: a genesis header and a
// single transaction.
func (b *Block) IsGenesis() bool {
	return b.Header.IsGenesis() && len(b.Txs) == 1
}

// TxIDs returns the ids of the block's transactions in order.
func (b *Block) TxIDs() [][32]byte {
	ids := make([][32]byte, len(b.Txs))
	for i, t := range b.Txs {
		ids[i] = t.ID()
	}
	return ids
}

// MerkleRoot computes the root over the transaction ids.
func (b *Block) MerkleRoot() ([32]byte, error) {
	return merkle.Root(b.TxIDs())
}

// Encode serializes the block: header, VarInt count, transactions.
func (b *Block) Encode() []byte {
	w := codec.NewWriter()
	b.Header.EncodeTo(w)
	w.WriteVarInt(uint64(len(b.Txs)))
	for _, t := range b.Txs {
		t.EncodeTo(w)
	}
	return w.Bytes()
}

// Decode parses a canonical block. Trailing bytes are an error.
func Decode(data []byte) (*Block, error) {
	r := codec.NewReader(data)
	h, err := DecodeHeaderFrom(r)
	if err != nil {
		return nil, errs.Malformed("header", err)
	}

	// The smallest transaction is version, two empty counts and lockAbs.
	n, err := r.ReadCount(1 + 1 + 1 + 8)
	if err != nil {
		return nil, errs.Malformed("txCount", err)
	}
	txs := make([]*tx.Transaction, n)
	for i := range txs {
		if txs[i], err = tx.DecodeFrom(r); err != nil {
			return nil, errs.Malformed(fmt.Sprintf("txs[%d]", i), err)
		}
	}
	if !r.EOF() {
		return nil, errs.Malformed("block", fmt.Errorf("%d trailing bytes", r.Remaining()))
	}
	return NewBlock(*h, txs)
}

// ToHex returns the lowercase hex form of the encoding.
func (b *Block) ToHex() string {
	return hex.EncodeToString(b.Encode())
}

// FromHex parses the output of ToHex.
func FromHex(s string) (*Block, error) {
	data, err := tx.DecodeHex(s)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
