package tx

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/yourusername/ledgercore/internal/codec"
	"github.com/yourusername/ledgercore/internal/errs"
)

func sampleTx() *Transaction {
	inputs := []TxInput{
		{InputTxID: [32]byte{1}, InputTxIndex: 0, Script: []byte{0x01, 0xaa}, LockRel: 5},
		{InputTxID: [32]byte{2}, InputTxIndex: 3, Script: []byte{0x02, 0xbb, 0xcc}, LockRel: 0xffffffff},
	}
	outputs := []TxOutput{
		{Value: 100, Script: []byte("recipient")},
		{Value: 50, Script: nil},
	}
	return NewTransaction(inputs, outputs, 42)
}

func assertTxEqual(t *testing.T, got, want *Transaction) {
	t.Helper()
	if got.Version != want.Version || got.LockAbs != want.LockAbs {
		t.Fatalf("header fields mismatch: got (%d, %d), want (%d, %d)", got.Version, got.LockAbs, want.Version, want.LockAbs)
	}
	if len(got.Inputs) != len(want.Inputs) || len(got.Outputs) != len(want.Outputs) {
		t.Fatalf("shape mismatch")
	}
	for i := range want.Inputs {
		g, w := got.Inputs[i], want.Inputs[i]
		if g.InputTxID != w.InputTxID || g.InputTxIndex != w.InputTxIndex || g.LockRel != w.LockRel || !bytes.Equal(g.Script, w.Script) {
			t.Errorf("input %d mismatch", i)
		}
	}
	for i := range want.Outputs {
		g, w := got.Outputs[i], want.Outputs[i]
		if g.Value != w.Value || !bytes.Equal(g.Script, w.Script) {
			t.Errorf("output %d mismatch", i)
		}
	}
}

func TestNewTransaction(t *testing.T) {
	tx := sampleTx()

	if tx.Version != Version {
		t.Errorf("Expected version %d, got %d", Version, tx.Version)
	}
	if len(tx.Inputs) != 2 {
		t.Errorf("Expected 2 inputs, got %d", len(tx.Inputs))
	}
	if len(tx.Outputs) != 2 {
		t.Errorf("Expected 2 outputs, got %d", len(tx.Outputs))
	}
}

func TestNewCoinbaseTx(t *testing.T) {
	tx := NewCoinbaseTx([]byte("height 1"), []byte("miner"), 100*1e8)

	if !tx.IsCoinbase() {
		t.Error("Transaction is not coinbase")
	}
	if tx.Outputs[0].Value != 100*1e8 {
		t.Errorf("Expected value 100*1e8, got %d", tx.Outputs[0].Value)
	}
	if tx.LockAbs != 0 {
		t.Errorf("Expected lockAbs 0, got %d", tx.LockAbs)
	}
}

func TestIsCoinbase(t *testing.T) {
	tests := []struct {
		name   string
		inputs []TxInput
		want   bool
	}{
		{"sentinel", []TxInput{NewCoinbaseInput(nil)}, true},
		{"no inputs", nil, false},
		{"nonzero id", []TxInput{{InputTxID: [32]byte{1}, InputTxIndex: CoinbaseIndex}}, false},
		{"wrong index", []TxInput{{InputTxIndex: 0}}, false},
		{"two inputs with sentinel", []TxInput{NewCoinbaseInput(nil), {InputTxID: [32]byte{1}}}, false},
		{"two sentinels", []TxInput{NewCoinbaseInput(nil), NewCoinbaseInput(nil)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := NewTransaction(tt.inputs, nil, 0)
			if got := tx.IsCoinbase(); got != tt.want {
				t.Errorf("IsCoinbase = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	tx := NewCoinbaseTx(nil, nil, 0)

	expected := "01" + "01" + strings.Repeat("00", 32) + "ffffffff" + "00" + "00000000" +
		"01" + "0000000000000000" + "00" +
		"0000000000000000"
	if got := tx.ToHex(); got != expected {
		t.Errorf("ToHex =\n%s\nwant\n%s", got, expected)
	}
}

func TestTransactionIDAndHash(t *testing.T) {
	tx := sampleTx()

	id1 := tx.ID()
	id2 := tx.ID()
	if id1 != id2 {
		t.Error("Transaction ID is not deterministic")
	}
	if id1 == tx.Hash() {
		t.Error("ID should be the double hash, not the single hash")
	}

	tx.Outputs[0].Value = 101
	if tx.ID() == id1 {
		t.Error("Changing an output should change the ID")
	}
}

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		name string
		tx   *Transaction
	}{
		{"sample", sampleTx()},
		{"coinbase", NewCoinbaseTx([]byte("data"), []byte("out"), 7)},
		{"empty", NewTransaction(nil, nil, 0)},
		{"long script", NewTransaction(nil, []TxOutput{{Value: 1, Script: bytes.Repeat([]byte{0x51}, 300)}}, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := tt.tx.Encode()
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			assertTxEqual(t, decoded, tt.tx)
			if !bytes.Equal(decoded.Encode(), encoded) {
				t.Error("re-encoding differs")
			}
			if decoded.ID() != tt.tx.ID() {
				t.Error("decoded tx has a different ID")
			}
		})
	}
}

func TestDecodeErrorsNameField(t *testing.T) {
	encoded := sampleTx().Encode()

	// Give the second input a script length running past the end.
	corrupt := append([]byte(nil), encoded...)
	corrupt[1+1+(32+4+1+2+4)+32+4] = 0xfc
	_, err := Decode(corrupt)
	if err == nil {
		t.Fatal("expected error for truncated input")
	}
	if !errs.Is(err, errs.MalformedInput) {
		t.Errorf("expected MalformedInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "inputs[1].script") {
		t.Errorf("error %q should name inputs[1].script", err)
	}
	if !errors.Is(err, codec.ErrMalformedValue) {
		t.Errorf("expected ErrMalformedValue in chain, got %v", err)
	}

	_, err = Decode(encoded[:len(encoded)-3])
	if err == nil || !strings.Contains(err.Error(), "lockAbs") {
		t.Errorf("expected lockAbs error, got %v", err)
	}
	if !errors.Is(err, codec.ErrTruncatedInput) {
		t.Errorf("expected ErrTruncatedInput in chain, got %v", err)
	}

	_, err = Decode(nil)
	if err == nil || !strings.Contains(err.Error(), "version") {
		t.Errorf("expected version error, got %v", err)
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	encoded := append(sampleTx().Encode(), 0x00)
	if _, err := Decode(encoded); err == nil {
		t.Error("expected error for trailing bytes")
	}
}

func TestDecodeRejectsHugeCount(t *testing.T) {
	// version, input count 0xfe 0x7fffffff
	data := []byte{0x01, 0xfe, 0x7f, 0xff, 0xff, 0xff}
	_, err := Decode(data)
	if err == nil {
		t.Fatal("expected error for impossible input count")
	}
	if !strings.Contains(err.Error(), "inputs") {
		t.Errorf("error %q should name inputs", err)
	}
}

func TestHexRoundTrip(t *testing.T) {
	tx := sampleTx()
	decoded, err := FromHex(tx.ToHex())
	if err != nil {
		t.Fatalf("FromHex failed: %v", err)
	}
	assertTxEqual(t, decoded, tx)

	if _, err := FromHex(strings.ToUpper(tx.ToHex())); err == nil {
		t.Error("expected error for uppercase hex")
	}
	if _, err := FromHex("0g"); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestClone(t *testing.T) {
	tx := sampleTx()
	c := tx.Clone()
	c.Inputs[0].Script[0] = 0xff
	c.Outputs[0].Value = 1

	if tx.Inputs[0].Script[0] == 0xff || tx.Outputs[0].Value == 1 {
		t.Error("Clone shares state with the original")
	}
}

func TestSignatureEncoding(t *testing.T) {
	sig := &TxSignature{HashType: SighashAll}
	sig.Signature[0] = 0xaa
	sig.Signature[63] = 0xbb

	encoded := sig.Encode()
	if len(encoded) != SignatureSize {
		t.Fatalf("encoded length = %d, want %d", len(encoded), SignatureSize)
	}
	if encoded[0] != SighashAll {
		t.Error("hash type should be the first byte")
	}

	decoded, err := DecodeSignature(encoded)
	if err != nil {
		t.Fatalf("DecodeSignature failed: %v", err)
	}
	if *decoded != *sig {
		t.Error("signature mismatch after round trip")
	}

	if _, err := DecodeSignature(encoded[:64]); err == nil {
		t.Error("expected error for short signature")
	}
}
