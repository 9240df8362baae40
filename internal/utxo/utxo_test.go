package utxo

import (
	"bytes"
	"errors"
	"testing"

	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/script"
	"github.com/yourusername/ledgercore/internal/tx"
)

func testPkh(b byte) crypto.Pkh {
	return crypto.Pkh(crypto.HashBytes([]byte{b}))
}

func TestNewUTXOSet(t *testing.T) {
	utxoSet := NewUTXOSet()

	if utxoSet == nil {
		t.Fatal("NewUTXOSet returned nil")
	}
	if utxoSet.UTXOs == nil {
		t.Error("UTXOs map is nil")
	}
	if utxoSet.CountUTXOs() != 0 {
		t.Error("New UTXO set should be empty")
	}
}

func TestAddAndGetUTXO(t *testing.T) {
	utxoSet := NewUTXOSet()
	txID := [32]byte{1}
	outputs := []tx.TxOutput{
		{Value: 100, Script: []byte("a")},
		{Value: 200, Script: []byte("b")},
	}

	utxoSet.AddUTXO(txID, outputs)

	if utxoSet.CountUTXOs() != 2 {
		t.Errorf("Expected 2 UTXOs, got %d", utxoSet.CountUTXOs())
	}

	output, ok := utxoSet.Get(txID, 1)
	if !ok {
		t.Fatal("Failed to find UTXO")
	}
	if output.Value != 200 {
		t.Errorf("Expected value 200, got %d", output.Value)
	}

	if _, ok := utxoSet.Get(txID, 2); ok {
		t.Error("Get should miss an invalid index")
	}
	if _, ok := utxoSet.Get([32]byte{9}, 0); ok {
		t.Error("Get should miss an unknown txid")
	}
}

func TestGetBalanceAndSpendable(t *testing.T) {
	utxoSet := NewUTXOSet()
	mine, theirs := testPkh(1), testPkh(2)

	utxoSet.AddUTXO([32]byte{1}, []tx.TxOutput{
		{Value: 30, Script: script.AddressOutput(mine)},
		{Value: 50, Script: script.AddressOutput(theirs)},
	})
	utxoSet.AddUTXO([32]byte{2}, []tx.TxOutput{
		{Value: 20, Script: script.AddressOutput(mine)},
		{Value: 99, Script: []byte("not an address")},
	})

	if got := utxoSet.GetBalance(mine); got != 50 {
		t.Errorf("balance = %d, want 50", got)
	}

	total, ops, err := utxoSet.FindSpendableOutputs(mine, 40)
	if err != nil {
		t.Fatalf("FindSpendableOutputs failed: %v", err)
	}
	if total != 50 || len(ops) != 2 {
		t.Errorf("got total %d from %d outputs, want 50 from 2", total, len(ops))
	}

	total, ops, _ = utxoSet.FindSpendableOutputs(mine, 10)
	if total != 30 || len(ops) != 1 || ops[0].TxID != [32]byte{1} {
		t.Errorf("selection should be deterministic, got %d from %v", total, ops)
	}

	if _, _, err := utxoSet.FindSpendableOutputs(mine, 51); err == nil {
		t.Error("Expected insufficient funds error")
	}
}

func TestUpdate(t *testing.T) {
	utxoSet := NewUTXOSet()
	coinbase := tx.NewCoinbaseTx(nil, []byte("miner"), 100)
	if err := utxoSet.Update(coinbase); err != nil {
		t.Fatalf("Update coinbase failed: %v", err)
	}

	spend := tx.NewTransaction(
		[]tx.TxInput{{InputTxID: coinbase.ID(), InputTxIndex: 0}},
		[]tx.TxOutput{{Value: 60}, {Value: 40}},
		0,
	)
	if err := utxoSet.Update(spend); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, ok := utxoSet.Get(coinbase.ID(), 0); ok {
		t.Error("spent output still present")
	}
	if out, ok := utxoSet.Get(spend.ID(), 1); !ok || out.Value != 40 {
		t.Error("created output missing")
	}
	if utxoSet.CountUTXOs() != 2 {
		t.Errorf("Expected 2 UTXOs, got %d", utxoSet.CountUTXOs())
	}

	// A failing update leaves the set unchanged.
	before := utxoSet.Serialize()
	bad := tx.NewTransaction(
		[]tx.TxInput{
			{InputTxID: spend.ID(), InputTxIndex: 0},
			{InputTxID: [32]byte{7}, InputTxIndex: 0},
		},
		nil, 0,
	)
	err := utxoSet.Update(bad)
	var missing *MissingOutputError
	if !errors.As(err, &missing) || missing.OutPoint.TxID != [32]byte{7} {
		t.Fatalf("Expected a missing output error, got %v", err)
	}
	if !bytes.Equal(utxoSet.Serialize(), before) {
		t.Error("failed Update modified the set")
	}

	double := tx.NewTransaction(
		[]tx.TxInput{
			{InputTxID: spend.ID(), InputTxIndex: 0},
			{InputTxID: spend.ID(), InputTxIndex: 0},
		},
		nil, 0,
	)
	if err := utxoSet.Update(double); err == nil {
		t.Error("Expected error for an output spent twice")
	}
	if !bytes.Equal(utxoSet.Serialize(), before) {
		t.Error("failed Update modified the set")
	}
}

func TestOwned(t *testing.T) {
	utxoSet := NewUTXOSet()
	mine, theirs := testPkh(1), testPkh(2)
	utxoSet.AddUTXO([32]byte{1}, []tx.TxOutput{
		{Value: 30, Script: script.AddressOutput(mine)},
		{Value: 50, Script: script.AddressOutput(theirs)},
		{Value: 70, Script: []byte("not an address")},
	})

	owned := utxoSet.Owned(mine)
	if owned.CountUTXOs() != 1 {
		t.Fatalf("Owned returned %d outputs, want 1", owned.CountUTXOs())
	}
	if owned.GetBalance(mine) != 30 {
		t.Errorf("owned balance = %d, want 30", owned.GetBalance(mine))
	}
	if utxoSet.CountUTXOs() != 3 {
		t.Error("Owned modified the source set")
	}
}

func TestSerializeDeserialize(t *testing.T) {
	utxoSet := NewUTXOSet()
	utxoSet.AddUTXO([32]byte{2}, []tx.TxOutput{{Value: 5, Script: []byte{1, 2}}})
	utxoSet.AddUTXO([32]byte{1}, []tx.TxOutput{{Value: 7}, {Value: 9, Script: []byte{3}}})

	data := utxoSet.Serialize()
	decoded, err := DeserializeUTXOSet(data)
	if err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if decoded.CountUTXOs() != 3 {
		t.Errorf("Expected 3 UTXOs, got %d", decoded.CountUTXOs())
	}
	if !bytes.Equal(decoded.Serialize(), data) {
		t.Error("re-serialization differs")
	}

	if _, err := DeserializeUTXOSet(data[:len(data)-1]); err == nil {
		t.Error("Expected error for truncated data")
	}
	if _, err := DeserializeUTXOSet(append(data, 0)); err == nil {
		t.Error("Expected error for trailing data")
	}
}
