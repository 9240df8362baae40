package tx

import (
	"fmt"

	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
)

// Sighash flags.
const (
	SighashAll          uint8 = 0x01
	SighashNone         uint8 = 0x02
	SighashSingle       uint8 = 0x03
	SighashAnyoneCanPay uint8 = 0x80

	sighashTypeMask uint8 = 0x1f
)

// SignatureSize is the encoded length of a TxSignature.
const SignatureSize = 1 + crypto.SignatureSize

// TxSignature is a signature together with the hash type it commits to.
type TxSignature struct {
	HashType  uint8
	Signature [crypto.SignatureSize]byte
}

// Encode returns hashType || signature.
func (s *TxSignature) Encode() []byte {
	out := make([]byte, 0, SignatureSize)
	out = append(out, s.HashType)
	return append(out, s.Signature[:]...)
}

// DecodeSignature parses a 65-byte encoded TxSignature.
func DecodeSignature(b []byte) (*TxSignature, error) {
	if len(b) != SignatureSize {
		return nil, errs.Malformed("signature", fmt.Errorf("length %d, want %d", len(b), SignatureSize))
	}
	s := &TxSignature{HashType: b[0]}
	copy(s.Signature[:], b[1:])
	return s, nil
}
