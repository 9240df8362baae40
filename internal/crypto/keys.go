package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

const (
	// PrivKeySize is the length of a serialized private key.
	PrivKeySize = 32

	// PubKeySize is the length of a compressed public key.
	PubKeySize = 33

	// SignatureSize is the length of a compact r||s signature.
	SignatureSize = 64
)

// PrivKey is a secp256k1 private key.
type PrivKey struct {
	key *btcec.PrivateKey
}

// PubKey is a secp256k1 public key, serialized compressed.
type PubKey struct {
	key *btcec.PublicKey
}

// KeyPair holds a private key and its public key.
type KeyPair struct {
	PrivKey *PrivKey
	PubKey  *PubKey
}

// NewKeyPair generates a random key pair.
func NewKeyPair() (*KeyPair, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %v", err)
	}
	return KeyPairFromPrivKey(&PrivKey{key: key}), nil
}

// KeyPairFromPrivKey derives the public half of priv.
func KeyPairFromPrivKey(priv *PrivKey) *KeyPair {
	return &KeyPair{PrivKey: priv, PubKey: priv.PubKey()}
}

// PrivKeyFromBytes parses a 32-byte scalar. Zero and values >= the curve
// order are rejected.
func PrivKeyFromBytes(b []byte) (*PrivKey, error) {
	if len(b) != PrivKeySize {
		return nil, fmt.Errorf("invalid private key length %d", len(b))
	}
	var s btcec.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return nil, fmt.Errorf("private key out of range")
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	return &PrivKey{key: key}, nil
}

// PrivKeyFromHex parses a hex encoded private key.
func PrivKeyFromHex(s string) (*PrivKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %v", err)
	}
	return PrivKeyFromBytes(b)
}

func (k *PrivKey) Bytes() []byte {
	return k.key.Serialize()
}

func (k *PrivKey) Hex() string {
	return hex.EncodeToString(k.Bytes())
}

func (k *PrivKey) PubKey() *PubKey {
	return &PubKey{key: k.key.PubKey()}
}

// PubKeyFromBytes parses a 33-byte compressed public key.
func PubKeyFromBytes(b []byte) (*PubKey, error) {
	if len(b) != PubKeySize {
		return nil, fmt.Errorf("invalid public key length %d", len(b))
	}
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %v", err)
	}
	return &PubKey{key: key}, nil
}

func (p *PubKey) Bytes() []byte {
	return p.key.SerializeCompressed()
}

// Sign produces a deterministic (RFC 6979) low-S ECDSA signature over digest
// in 64-byte r||s form.
func Sign(priv *PrivKey, digest [32]byte) [SignatureSize]byte {
	sig := ecdsa.Sign(priv.key, digest[:])
	r, s := sig.R(), sig.S()
	var out [SignatureSize]byte
	r.PutBytesUnchecked(out[:32])
	s.PutBytesUnchecked(out[32:])
	return out
}

// VerifySignature checks a 64-byte r||s signature over digest. High-S and
// out-of-range scalars are rejected.
func VerifySignature(pub *PubKey, digest [32]byte, sig [SignatureSize]byte) bool {
	if pub == nil {
		return false
	}
	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow || r.IsZero() {
		return false
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow || s.IsZero() {
		return false
	}
	if s.IsOverHalfOrder() {
		return false
	}
	return ecdsa.NewSignature(&r, &s).Verify(digest[:], pub.key)
}
