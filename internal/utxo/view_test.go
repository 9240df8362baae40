package utxo

import (
	"errors"
	"testing"

	"github.com/yourusername/ledgercore/internal/tx"
)

func TestViewChainsWithinSequence(t *testing.T) {
	base := NewUTXOSet()
	base.AddUTXO([32]byte{1}, []tx.TxOutput{{Value: 10}})

	view := NewView(base)
	first := tx.NewTransaction([]tx.TxInput{{InputTxID: [32]byte{1}}}, []tx.TxOutput{{Value: 10}}, 0)
	if err := view.Apply(first); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if _, ok := view.Get([32]byte{1}, 0); ok {
		t.Error("spent base output visible through the view")
	}
	if _, ok := base.Get([32]byte{1}, 0); !ok {
		t.Error("view modified its base")
	}

	second := tx.NewTransaction([]tx.TxInput{{InputTxID: first.ID()}}, []tx.TxOutput{{Value: 10}}, 0)
	if err := view.Apply(second); err != nil {
		t.Fatalf("spending an output created earlier in the view failed: %v", err)
	}
	if _, ok := view.Get(first.ID(), 0); ok {
		t.Error("output created and spent in the view still visible")
	}

	if len(view.Spent()) != 1 {
		t.Errorf("Spent = %d outpoints, want 1", len(view.Spent()))
	}
	if len(view.Created()) != 1 {
		t.Errorf("Created = %d outputs, want 1", len(view.Created()))
	}
}

func TestViewRejectsDoubleSpend(t *testing.T) {
	base := NewUTXOSet()
	base.AddUTXO([32]byte{1}, []tx.TxOutput{{Value: 10}})
	view := NewView(base)

	dup := tx.NewTransaction(
		[]tx.TxInput{{InputTxID: [32]byte{1}}, {InputTxID: [32]byte{1}}},
		[]tx.TxOutput{{Value: 20}}, 0,
	)
	err := view.Apply(dup)
	var missing *MissingOutputError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingOutputError, got %v", err)
	}
	if _, ok := view.Get([32]byte{1}, 0); !ok {
		t.Error("failed Apply changed the view")
	}

	a := tx.NewTransaction([]tx.TxInput{{InputTxID: [32]byte{1}}}, []tx.TxOutput{{Value: 10}}, 0)
	b := tx.NewTransaction([]tx.TxInput{{InputTxID: [32]byte{1}}}, []tx.TxOutput{{Value: 9}}, 0)
	if err := view.Apply(a); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if err := view.Apply(b); err == nil {
		t.Error("expected error for a double spend across transactions")
	}
}
