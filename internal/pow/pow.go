package pow

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math/big"

	"github.com/yourusername/ledgercore/internal/block"
	"github.com/yourusername/ledgercore/internal/codec"
	"github.com/yourusername/ledgercore/internal/crypto"
)

const (
	// DefaultMaxIterations bounds a single search.
	DefaultMaxIterations uint64 = 1 << 32

	// DefaultTargetBits gives a target easy enough for tests and local
	// networks: 16 leading zero bits.
	DefaultTargetBits = 16

	checkInterval = 1024
)

// ErrExhausted is returned when the iteration budget ran out without a
// solution.
var ErrExhausted = errors.New("nonce space exhausted")

// Searcher finds a nonce that makes a header's id fall below target.
// Cancelling ctx aborts the search with ctx.Err().
type Searcher interface {
	Search(ctx context.Context, template *block.Header, target [32]byte) ([32]byte, error)
}

// TargetFromBits returns 2^(256-bits), the target that requires bits
// leading zero bits.
func TargetFromBits(bits uint) [32]byte {
	if bits == 0 {
		return block.MaxTarget
	}
	t := big.NewInt(1)
	t.Lsh(t, 256-bits)
	var out [32]byte
	t.FillBytes(out[:])
	return out
}

// ProofOfWork is a linear searcher: it counts through the last eight bytes
// of the nonce, keeping the template's first 24 bytes.
type ProofOfWork struct {
	Provider      crypto.Provider
	MaxIterations uint64
}

// NewProofOfWork creates a searcher hashing with p.
func NewProofOfWork(p crypto.Provider) *ProofOfWork {
	return &ProofOfWork{Provider: p, MaxIterations: DefaultMaxIterations}
}

// Search implements Searcher.
func (pow *ProofOfWork) Search(ctx context.Context, template *block.Header, target [32]byte) ([32]byte, error) {
	h := *template
	w := codec.NewWriter()
	h.EncodeTo(w)
	buf := w.Bytes()

	// Nonce counter occupies the last eight nonce bytes, just before nBlock.
	counterOff := block.HeaderSize - 8 - 8
	start := binary.BigEndian.Uint64(buf[counterOff:])

	for i := uint64(0); i < pow.MaxIterations; i++ {
		if i%checkInterval == 0 {
			if err := ctx.Err(); err != nil {
				return [32]byte{}, err
			}
		}
		binary.BigEndian.PutUint64(buf[counterOff:], start+i)
		id := pow.Provider.DoubleHash(buf)
		if bytes.Compare(id[:], target[:]) < 0 {
			var nonce [32]byte
			copy(nonce[:], buf[counterOff-24:counterOff+8])
			return nonce, nil
		}
	}
	return [32]byte{}, ErrExhausted
}

// Validate checks if the header's proof-of-work is valid
func Validate(h *block.Header) bool {
	return h.IsValidPoW()
}
