package block

import (
	"bytes"
	"strings"
	"testing"

	"github.com/yourusername/ledgercore/internal/errs"
	"github.com/yourusername/ledgercore/internal/merkle"
	"github.com/yourusername/ledgercore/internal/tx"
)

func sampleBlock(t *testing.T) *Block {
	t.Helper()
	b := NewGenesisBuilder(MaxTarget, []byte("miner"), CoinbaseAmount(0), 1000)
	b.AddTx(tx.NewTransaction(
		[]tx.TxInput{{InputTxID: [32]byte{9}, InputTxIndex: 1, Script: []byte{1, 2}}},
		[]tx.TxOutput{{Value: 5, Script: []byte("x")}},
		0,
	))
	blk, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return blk
}

func TestNewBlockRejectsEmpty(t *testing.T) {
	_, err := NewBlock(*zeroHeader(), nil)
	if !errs.Is(err, errs.InvalidStructure) {
		t.Errorf("expected InvalidStructure, got %v", err)
	}
}

func TestBlockEncodeDecode(t *testing.T) {
	blk := sampleBlock(t)

	encoded := blk.Encode()
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Header != blk.Header {
		t.Error("header mismatch")
	}
	if len(decoded.Txs) != len(blk.Txs) {
		t.Fatalf("tx count = %d, want %d", len(decoded.Txs), len(blk.Txs))
	}
	for i := range blk.Txs {
		if decoded.Txs[i].ID() != blk.Txs[i].ID() {
			t.Errorf("tx %d mismatch", i)
		}
	}
	if !bytes.Equal(decoded.Encode(), encoded) {
		t.Error("re-encoding differs")
	}

	fromHex, err := FromHex(blk.ToHex())
	if err != nil || fromHex.ID() != blk.ID() {
		t.Errorf("hex round trip failed: %v", err)
	}
}

func TestBlockDecodeErrors(t *testing.T) {
	encoded := sampleBlock(t).Encode()

	_, err := Decode(encoded[:100])
	if err == nil || !strings.Contains(err.Error(), "header.") {
		t.Errorf("expected header error, got %v", err)
	}

	_, err = Decode(encoded[:len(encoded)-2])
	if err == nil || !strings.Contains(err.Error(), "txs[1].lockAbs") {
		t.Errorf("expected txs[1].lockAbs error, got %v", err)
	}

	// Header followed by a zero count.
	empty := append(zeroHeader().Encode(), 0x00)
	if _, err := Decode(empty); !errs.Is(err, errs.InvalidStructure) {
		t.Errorf("expected InvalidStructure for an empty block, got %v", err)
	}

	if _, err := Decode(append(encoded, 0)); err == nil {
		t.Error("expected error for trailing bytes")
	}
}

func TestBlockMerkleRoot(t *testing.T) {
	blk := sampleBlock(t)
	ids := blk.TxIDs()

	want, _ := merkle.Root(ids)
	got, err := blk.MerkleRoot()
	if err != nil {
		t.Fatalf("MerkleRoot failed: %v", err)
	}
	if got != want || blk.Header.MerkleRoot != want {
		t.Error("merkle root mismatch")
	}
}

func TestBlockIsGenesis(t *testing.T) {
	coinbase := tx.NewCoinbaseTx(nil, nil, 0)
	other := tx.NewTransaction(nil, nil, 1)

	tests := []struct {
		name string
		prev [32]byte
		txs  []*tx.Transaction
		want bool
	}{
		{"genesis", [32]byte{}, []*tx.Transaction{coinbase}, true},
		{"two txs", [32]byte{}, []*tx.Transaction{coinbase, other}, false},
		{"has parent", [32]byte{1}, []*tx.Transaction{coinbase}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blk, err := NewBlock(Header{Version: 1, PrevBlockID: tt.prev}, tt.txs)
			if err != nil {
				t.Fatalf("NewBlock failed: %v", err)
			}
			if got := blk.IsGenesis(); got != tt.want {
				t.Errorf("IsGenesis = %v, want %v", got, tt.want)
			}
		})
	}
}
