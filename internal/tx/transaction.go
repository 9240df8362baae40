package tx

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/yourusername/ledgercore/internal/codec"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
)

const (
	// Version is the only transaction version produced by this package.
	Version uint8 = 1

	// CoinbaseIndex marks the single input of a coinbase transaction.
	CoinbaseIndex uint32 = 0xffffffff

	minInputSize  = 32 + 4 + 1 + 4
	minOutputSize = 8 + 1
)

// Transaction represents a ledger transaction
type Transaction struct {
	Version uint8
	Inputs  []TxInput
	Outputs []TxOutput
	LockAbs uint64
}

// TxInput references an output of an earlier transaction
type TxInput struct {
	InputTxID    [32]byte
	InputTxIndex uint32
	Script       []byte
	LockRel      uint32
}

// TxOutput represents a spendable amount locked by a script
type TxOutput struct {
	Value  uint64
	Script []byte
}

// NewTransaction creates a version 1 transaction
func NewTransaction(inputs []TxInput, outputs []TxOutput, lockAbs uint64) *Transaction {
	return &Transaction{
		Version: Version,
		Inputs:  inputs,
		Outputs: outputs,
		LockAbs: lockAbs,
	}
}

// NewCoinbaseInput returns the sentinel input of a coinbase transaction.
func NewCoinbaseInput(script []byte) TxInput {
	return TxInput{InputTxIndex: CoinbaseIndex, Script: script}
}

// NewCoinbaseTx creates a coinbase transaction paying amount to outputScript
func NewCoinbaseTx(inputScript, outputScript []byte, amount uint64) *Transaction {
	return NewTransaction(
		[]TxInput{NewCoinbaseInput(inputScript)},
		[]TxOutput{{Value: amount, Script: outputScript}},
		0,
	)
}

// IsCoinbase reports whether the input has the coinbase sentinel shape.
func (in *TxInput) IsCoinbase() bool {
	return in.InputTxID == [32]byte{} && in.InputTxIndex == CoinbaseIndex
}

// IsCoinbase checks if the transaction is a coinbase transaction
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].IsCoinbase()
}

// ID returns the double hash of the canonical encoding.
func (tx *Transaction) ID() [32]byte {
	return crypto.DoubleHashBytes(tx.Encode())
}

// Hash returns the single hash of the canonical encoding.
func (tx *Transaction) Hash() [32]byte {
	return crypto.HashBytes(tx.Encode())
}

func (in *TxInput) encodeTo(w *codec.Writer) {
	w.Write(in.InputTxID[:]).
		WriteU32BE(in.InputTxIndex).
		WriteVarBytes(in.Script).
		WriteU32BE(in.LockRel)
}

func (out *TxOutput) encodeTo(w *codec.Writer) {
	w.WriteU64BE(out.Value).WriteVarBytes(out.Script)
}

// Encode serializes the output.
func (out *TxOutput) Encode() []byte {
	w := codec.NewWriter()
	out.encodeTo(w)
	return w.Bytes()
}

// EncodeTo appends the canonical encoding of tx to w.
func (tx *Transaction) EncodeTo(w *codec.Writer) {
	w.WriteU8(tx.Version)
	w.WriteVarInt(uint64(len(tx.Inputs)))
	for i := range tx.Inputs {
		tx.Inputs[i].encodeTo(w)
	}
	w.WriteVarInt(uint64(len(tx.Outputs)))
	for i := range tx.Outputs {
		tx.Outputs[i].encodeTo(w)
	}
	w.WriteU64BE(tx.LockAbs)
}

// Encode serializes the transaction to its canonical bytes
func (tx *Transaction) Encode() []byte {
	w := codec.NewWriter()
	tx.EncodeTo(w)
	return w.Bytes()
}

func decodeInput(r *codec.Reader) (TxInput, error) {
	var in TxInput
	var err error
	if in.InputTxID, err = r.ReadFixed32(); err != nil {
		return in, errs.Malformed("inputTxId", err)
	}
	if in.InputTxIndex, err = r.ReadU32BE(); err != nil {
		return in, errs.Malformed("inputTxIndex", err)
	}
	if in.Script, err = r.ReadVarBytes(); err != nil {
		return in, errs.Malformed("script", err)
	}
	if in.LockRel, err = r.ReadU32BE(); err != nil {
		return in, errs.Malformed("lockRel", err)
	}
	return in, nil
}

func decodeOutput(r *codec.Reader) (TxOutput, error) {
	var out TxOutput
	var err error
	if out.Value, err = r.ReadU64BE(); err != nil {
		return out, errs.Malformed("value", err)
	}
	if out.Script, err = r.ReadVarBytes(); err != nil {
		return out, errs.Malformed("script", err)
	}
	return out, nil
}

// DecodeOutput parses a single canonical output.
func DecodeOutput(data []byte) (*TxOutput, error) {
	r := codec.NewReader(data)
	out, err := decodeOutput(r)
	if err != nil {
		return nil, err
	}
	if !r.EOF() {
		return nil, errs.Malformed("output", fmt.Errorf("%d trailing bytes", r.Remaining()))
	}
	return &out, nil
}

// DecodeFrom reads one transaction from r, leaving any following bytes unread.
func DecodeFrom(r *codec.Reader) (*Transaction, error) {
	tx := &Transaction{}
	var err error

	if tx.Version, err = r.ReadU8(); err != nil {
		return nil, errs.Malformed("version", err)
	}

	nIn, err := r.ReadCount(minInputSize)
	if err != nil {
		return nil, errs.Malformed("inputs", err)
	}
	tx.Inputs = make([]TxInput, nIn)
	for i := range tx.Inputs {
		if tx.Inputs[i], err = decodeInput(r); err != nil {
			return nil, errs.Malformed(fmt.Sprintf("inputs[%d]", i), err)
		}
	}

	nOut, err := r.ReadCount(minOutputSize)
	if err != nil {
		return nil, errs.Malformed("outputs", err)
	}
	tx.Outputs = make([]TxOutput, nOut)
	for i := range tx.Outputs {
		if tx.Outputs[i], err = decodeOutput(r); err != nil {
			return nil, errs.Malformed(fmt.Sprintf("outputs[%d]", i), err)
		}
	}

	if tx.LockAbs, err = r.ReadU64BE(); err != nil {
		return nil, errs.Malformed("lockAbs", err)
	}
	return tx, nil
}

// Decode parses canonical bytes into a transaction. Trailing bytes are an error.
func Decode(data []byte) (*Transaction, error) {
	r := codec.NewReader(data)
	tx, err := DecodeFrom(r)
	if err != nil {
		return nil, err
	}
	if !r.EOF() {
		return nil, errs.Malformed("tx", fmt.Errorf("%d trailing bytes", r.Remaining()))
	}
	return tx, nil
}

// ToHex returns the lowercase hex form of the canonical encoding.
func (tx *Transaction) ToHex() string {
	return hex.EncodeToString(tx.Encode())
}

// FromHex parses the output of ToHex.
func FromHex(s string) (*Transaction, error) {
	data, err := DecodeHex(s)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// DecodeHex decodes strict lowercase hex.
func DecodeHex(s string) ([]byte, error) {
	if strings.ToLower(s) != s {
		return nil, errs.Malformed("hex", fmt.Errorf("uppercase hex digits"))
	}
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, errs.Malformed("hex", err)
	}
	return data, nil
}

// Clone returns a deep copy of tx.
func (tx *Transaction) Clone() *Transaction {
	c := &Transaction{
		Version: tx.Version,
		Inputs:  make([]TxInput, len(tx.Inputs)),
		Outputs: make([]TxOutput, len(tx.Outputs)),
		LockAbs: tx.LockAbs,
	}
	for i, in := range tx.Inputs {
		in.Script = append([]byte(nil), in.Script...)
		c.Inputs[i] = in
	}
	for i, out := range tx.Outputs {
		out.Script = append([]byte(nil), out.Script...)
		c.Outputs[i] = out
	}
	return c
}

// String returns a human-readable representation of the transaction
func (tx *Transaction) String() string {
	id := tx.ID()
	var lines []string
	lines = append(lines, fmt.Sprintf("--- Transaction %x:", id))
	for i, in := range tx.Inputs {
		lines = append(lines, fmt.Sprintf("     Input %d:", i))
		lines = append(lines, fmt.Sprintf("       TxID:      %x", in.InputTxID))
		lines = append(lines, fmt.Sprintf("       Index:     %d", in.InputTxIndex))
		lines = append(lines, fmt.Sprintf("       Script:    %x", in.Script))
		lines = append(lines, fmt.Sprintf("       LockRel:   %d", in.LockRel))
	}
	for i, out := range tx.Outputs {
		lines = append(lines, fmt.Sprintf("     Output %d:", i))
		lines = append(lines, fmt.Sprintf("       Value:     %d", out.Value))
		lines = append(lines, fmt.Sprintf("       Script:    %x", out.Script))
	}
	lines = append(lines, fmt.Sprintf("     LockAbs: %d", tx.LockAbs))
	return strings.Join(lines, "\n")
}

// OutputMap resolves the previous output an input refers to.
type OutputMap interface {
	Get(txID [32]byte, index uint32) (*TxOutput, bool)
}

// MapOutputs is an OutputMap backed by a Go map, keyed by outpoint.
type MapOutputs map[OutPoint]*TxOutput

// OutPoint identifies a transaction output.
type OutPoint struct {
	TxID  [32]byte
	Index uint32
}

func (m MapOutputs) Get(txID [32]byte, index uint32) (*TxOutput, bool) {
	out, ok := m[OutPoint{TxID: txID, Index: index}]
	return out, ok
}
