// Package token issues short-lived permission tokens. A token is 32 random
// bytes and a millisecond timestamp; an Authority authenticates tokens with
// a keyed hash so it can later recognise the ones it issued.
package token

import (
	"crypto/subtle"
	"fmt"
	"time"

	"lukechampine.com/frand"

	"github.com/yourusername/ledgercore/internal/codec"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
)

const (
	// Size is the encoded length of a Token.
	Size = 32 + 8

	// SignedSize is the encoded length of a token followed by its MAC.
	SignedSize = Size + 32

	// Lifetime is how long a token stays valid after it is issued.
	Lifetime = 15 * time.Minute
)

// Token is a random value stamped with its issue time.
type Token struct {
	Rand      [32]byte
	Timestamp uint64 // milliseconds since the Unix epoch
}

// New returns a fresh token issued at now.
func New(now time.Time) *Token {
	t := &Token{Timestamp: uint64(now.UnixMilli())}
	frand.Read(t.Rand[:])
	return t
}

// Encode returns rand || timestamp.
func (t *Token) Encode() []byte {
	return codec.NewWriter().Write(t.Rand[:]).WriteU64BE(t.Timestamp).Bytes()
}

// Decode parses exactly Size bytes.
func Decode(b []byte) (*Token, error) {
	if len(b) != Size {
		return nil, errs.Malformed("token", fmt.Errorf("length %d, want %d", len(b), Size))
	}
	r := codec.NewReader(b)
	t := &Token{}
	t.Rand, _ = r.ReadFixed32()
	t.Timestamp, _ = r.ReadU64BE()
	return t, nil
}

// IsValid reports whether the token is younger than Lifetime at now.
func (t *Token) IsValid(now time.Time) bool {
	ms := uint64(now.UnixMilli())
	if ms < t.Timestamp {
		return true
	}
	return ms-t.Timestamp < uint64(Lifetime.Milliseconds())
}

// Authority issues and checks signed tokens.
type Authority struct {
	key [32]byte
}

// NewAuthority returns an Authority with a random key.
func NewAuthority() *Authority {
	a := &Authority{}
	frand.Read(a.key[:])
	return a
}

// NewAuthorityWithKey returns an Authority using key.
func NewAuthorityWithKey(key [32]byte) *Authority {
	return &Authority{key: key}
}

// Issue returns a signed token: the encoded token followed by its MAC.
func (a *Authority) Issue(now time.Time) []byte {
	enc := New(now).Encode()
	mac := crypto.KeyedHash(a.key, enc)
	return append(enc, mac[:]...)
}

// Verify checks the MAC and age of a signed token.
func (a *Authority) Verify(signed []byte, now time.Time) (*Token, error) {
	if len(signed) != SignedSize {
		return nil, errs.Malformed("token", fmt.Errorf("length %d, want %d", len(signed), SignedSize))
	}
	want := crypto.KeyedHash(a.key, signed[:Size])
	if subtle.ConstantTimeCompare(want[:], signed[Size:]) != 1 {
		return nil, errs.Rejected("token", "bad MAC")
	}
	t, err := Decode(signed[:Size])
	if err != nil {
		return nil, err
	}
	if !t.IsValid(now) {
		return nil, errs.Rejected("token", "expired")
	}
	return t, nil
}
