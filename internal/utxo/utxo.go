package utxo

import (
	"fmt"
	"sort"

	"github.com/yourusername/ledgercore/internal/codec"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
	"github.com/yourusername/ledgercore/internal/script"
	"github.com/yourusername/ledgercore/internal/tx"
)

// UTXOSet represents the unspent transaction output set
type UTXOSet struct {
	UTXOs map[tx.OutPoint]tx.TxOutput
}

// NewUTXOSet creates a new UTXO set
func NewUTXOSet() *UTXOSet {
	return &UTXOSet{
		UTXOs: make(map[tx.OutPoint]tx.TxOutput),
	}
}

// Get implements tx.OutputMap.
func (u *UTXOSet) Get(txID [32]byte, index uint32) (*tx.TxOutput, bool) {
	out, ok := u.UTXOs[tx.OutPoint{TxID: txID, Index: index}]
	if !ok {
		return nil, false
	}
	return &out, true
}

// AddUTXO adds every output of a transaction to the set
func (u *UTXOSet) AddUTXO(txID [32]byte, outputs []tx.TxOutput) {
	for i, out := range outputs {
		u.UTXOs[tx.OutPoint{TxID: txID, Index: uint32(i)}] = out
	}
}

// sortedOutPoints returns the keys in (txid, index) order so selection is
// deterministic.
func (u *UTXOSet) sortedOutPoints() []tx.OutPoint {
	keys := make([]tx.OutPoint, 0, len(u.UTXOs))
	for k := range u.UTXOs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TxID != keys[j].TxID {
			return string(keys[i].TxID[:]) < string(keys[j].TxID[:])
		}
		return keys[i].Index < keys[j].Index
	})
	return keys
}

// FindSpendableOutputs selects address outputs locked to pkh until amount is covered
func (u *UTXOSet) FindSpendableOutputs(pkh crypto.Pkh, amount uint64) (uint64, []tx.OutPoint, error) {
	var selected []tx.OutPoint
	accumulated := uint64(0)

	for _, op := range u.sortedOutPoints() {
		if accumulated >= amount {
			break
		}
		out := u.UTXOs[op]
		if owner, ok := script.AddressOutputPkh(out.Script); ok && owner == pkh {
			accumulated += out.Value
			selected = append(selected, op)
		}
	}

	if accumulated < amount {
		return 0, nil, fmt.Errorf("insufficient funds: have %d, need %d", accumulated, amount)
	}
	return accumulated, selected, nil
}

// GetBalance sums the address outputs locked to pkh
func (u *UTXOSet) GetBalance(pkh crypto.Pkh) uint64 {
	balance := uint64(0)
	for _, out := range u.UTXOs {
		if owner, ok := script.AddressOutputPkh(out.Script); ok && owner == pkh {
			balance += out.Value
		}
	}
	return balance
}

// Update spends the inputs of a transaction and adds its outputs. On error
// the set is left unchanged.
func (u *UTXOSet) Update(transaction *tx.Transaction) error {
	if !transaction.IsCoinbase() {
		spent := make(map[tx.OutPoint]tx.TxOutput, len(transaction.Inputs))
		for _, input := range transaction.Inputs {
			op := tx.OutPoint{TxID: input.InputTxID, Index: input.InputTxIndex}
			out, ok := u.UTXOs[op]
			if !ok {
				for k, v := range spent {
					u.UTXOs[k] = v
				}
				return errMissing(op, "not found")
			}
			spent[op] = out
			delete(u.UTXOs, op)
		}
	}
	u.AddUTXO(transaction.ID(), transaction.Outputs)
	return nil
}

// Owned returns the subset of address outputs locked to pkh.
func (u *UTXOSet) Owned(pkh crypto.Pkh) *UTXOSet {
	owned := NewUTXOSet()
	for op, out := range u.UTXOs {
		if owner, ok := script.AddressOutputPkh(out.Script); ok && owner == pkh {
			owned.UTXOs[op] = out
		}
	}
	return owned
}

// Serialize encodes the set canonically: a VarInt count followed by
// (txid, index, output) entries in outpoint order.
func (u *UTXOSet) Serialize() []byte {
	keys := u.sortedOutPoints()
	w := codec.NewWriter()
	w.WriteVarInt(uint64(len(keys)))
	for _, op := range keys {
		out := u.UTXOs[op]
		w.Write(op.TxID[:]).WriteU32BE(op.Index).Write(out.Encode())
	}
	return w.Bytes()
}

// DeserializeUTXOSet decodes the output of Serialize
func DeserializeUTXOSet(data []byte) (*UTXOSet, error) {
	r := codec.NewReader(data)
	n, err := r.ReadCount(32 + 4 + 8 + 1)
	if err != nil {
		return nil, errs.Malformed("utxos", err)
	}

	u := NewUTXOSet()
	for i := 0; i < n; i++ {
		op, out, err := decodeEntry(r)
		if err != nil {
			return nil, errs.Malformed(fmt.Sprintf("utxos[%d]", i), err)
		}
		u.UTXOs[op] = out
	}
	if !r.EOF() {
		return nil, errs.Malformed("utxos", fmt.Errorf("%d trailing bytes", r.Remaining()))
	}
	return u, nil
}

func decodeEntry(r *codec.Reader) (tx.OutPoint, tx.TxOutput, error) {
	var op tx.OutPoint
	var out tx.TxOutput
	var err error
	if op.TxID, err = r.ReadFixed32(); err != nil {
		return op, out, errs.Malformed("txid", err)
	}
	if op.Index, err = r.ReadU32BE(); err != nil {
		return op, out, errs.Malformed("index", err)
	}
	if out.Value, err = r.ReadU64BE(); err != nil {
		return op, out, errs.Malformed("value", err)
	}
	if out.Script, err = r.ReadVarBytes(); err != nil {
		return op, out, errs.Malformed("script", err)
	}
	return op, out, nil
}

// CountUTXOs returns the total number of UTXOs
func (u *UTXOSet) CountUTXOs() int {
	return len(u.UTXOs)
}
