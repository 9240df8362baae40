package utxo

import "github.com/yourusername/ledgercore/internal/tx"

// View layers the effects of a sequence of transactions over a base
// OutputMap without modifying it. Outputs created earlier in the sequence
// are visible to later transactions; spent outputs disappear.
type View struct {
	base    tx.OutputMap
	created *UTXOSet
	spent   map[tx.OutPoint]struct{}
}

// NewView returns an empty overlay over base.
func NewView(base tx.OutputMap) *View {
	return &View{
		base:    base,
		created: NewUTXOSet(),
		spent:   make(map[tx.OutPoint]struct{}),
	}
}

// Get implements tx.OutputMap.
func (v *View) Get(txID [32]byte, index uint32) (*tx.TxOutput, bool) {
	op := tx.OutPoint{TxID: txID, Index: index}
	if _, gone := v.spent[op]; gone {
		return nil, false
	}
	if out, ok := v.created.Get(txID, index); ok {
		return out, true
	}
	return v.base.Get(txID, index)
}

// Apply spends the inputs of t and exposes its outputs. It fails, leaving
// the view unchanged, when an input is missing or already spent.
func (v *View) Apply(t *tx.Transaction) error {
	if !t.IsCoinbase() {
		seen := make(map[tx.OutPoint]struct{}, len(t.Inputs))
		for _, in := range t.Inputs {
			op := tx.OutPoint{TxID: in.InputTxID, Index: in.InputTxIndex}
			if _, dup := seen[op]; dup {
				return errMissing(op, "spent twice")
			}
			seen[op] = struct{}{}
			if _, ok := v.Get(op.TxID, op.Index); !ok {
				return errMissing(op, "not found")
			}
		}
		for op := range seen {
			if _, ok := v.created.UTXOs[op]; ok {
				delete(v.created.UTXOs, op)
			} else {
				v.spent[op] = struct{}{}
			}
		}
	}
	v.created.AddUTXO(t.ID(), t.Outputs)
	return nil
}

// Spent returns the base outpoints consumed through the view.
func (v *View) Spent() []tx.OutPoint {
	out := make([]tx.OutPoint, 0, len(v.spent))
	for op := range v.spent {
		out = append(out, op)
	}
	return out
}

// Created returns the outputs added through the view and still unspent.
func (v *View) Created() map[tx.OutPoint]tx.TxOutput {
	return v.created.UTXOs
}
