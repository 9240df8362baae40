// Package block defines block headers, blocks and the consensus rules tied
// to them: target retargeting, proof-of-work validity and the coinbase
// subsidy schedule.
package block

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/yourusername/ledgercore/internal/codec"
	"github.com/yourusername/ledgercore/internal/crypto"
	"github.com/yourusername/ledgercore/internal/errs"
)

const (
	// Version is the only valid header version.
	Version uint8 = 1

	// HeaderSize is the length of an encoded header.
	HeaderSize = 1 + 32 + 32 + 8 + 32 + 32 + 8

	// BlocksPerTargetAdjPeriod is the number of blocks between retargets.
	BlocksPerTargetAdjPeriod uint64 = 2016

	// BlockIntervalSeconds is the nominal time between blocks.
	BlockIntervalSeconds uint64 = 600

	// InitialSubsidy is the coinbase amount before the first halving.
	InitialSubsidy uint64 = 100 * 100_000_000

	// HalvingInterval is the number of blocks between subsidy halvings.
	HalvingInterval uint64 = 210_000
)

// MaxTarget is the easiest possible target.
var MaxTarget = [32]byte{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// Header represents a block header
type Header struct {
	Version     uint8
	PrevBlockID [32]byte
	MerkleRoot  [32]byte
	Timestamp   uint64
	Target      [32]byte
	Nonce       [32]byte
	NBlock      uint64
}

// EncodeTo appends the canonical encoding of h to w.
func (h *Header) EncodeTo(w *codec.Writer) {
	w.WriteU8(h.Version).
		Write(h.PrevBlockID[:]).
		Write(h.MerkleRoot[:]).
		WriteU64BE(h.Timestamp).
		Write(h.Target[:]).
		Write(h.Nonce[:]).
		WriteU64BE(h.NBlock)
}

// Encode serializes the header to its canonical bytes
func (h *Header) Encode() []byte {
	w := codec.NewWriter()
	h.EncodeTo(w)
	return w.Bytes()
}

// DecodeHeaderFrom reads one header from r.
func DecodeHeaderFrom(r *codec.Reader) (*Header, error) {
	h := &Header{}
	var err error
	if h.Version, err = r.ReadU8(); err != nil {
		return nil, errs.Malformed("version", err)
	}
	if h.PrevBlockID, err = r.ReadFixed32(); err != nil {
		return nil, errs.Malformed("prevBlockId", err)
	}
	if h.MerkleRoot, err = r.ReadFixed32(); err != nil {
		return nil, errs.Malformed("merkleRoot", err)
	}
	if h.Timestamp, err = r.ReadU64BE(); err != nil {
		return nil, errs.Malformed("timestamp", err)
	}
	if h.Target, err = r.ReadFixed32(); err != nil {
		return nil, errs.Malformed("target", err)
	}
	if h.Nonce, err = r.ReadFixed32(); err != nil {
		return nil, errs.Malformed("nonce", err)
	}
	if h.NBlock, err = r.ReadU64BE(); err != nil {
		return nil, errs.Malformed("nBlock", err)
	}
	return h, nil
}

// DecodeHeader parses exactly HeaderSize bytes.
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) != HeaderSize {
		return nil, errs.Malformed("header", fmt.Errorf("length %d, want %d", len(data), HeaderSize))
	}
	return DecodeHeaderFrom(codec.NewReader(data))
}

// ToHex returns the lowercase hex form of the encoding.
func (h *Header) ToHex() string {
	return hex.EncodeToString(h.Encode())
}

// ID returns the double hash of the encoding.
func (h *Header) ID() [32]byte {
	return crypto.DoubleHashBytes(h.Encode())
}

// Hash returns the single hash of the encoding.
func (h *Header) Hash() [32]byte {
	return crypto.HashBytes(h.Encode())
}

// IsGenesis reports whether h has no parent.
func (h *Header) IsGenesis() bool {
	return h.PrevBlockID == [32]byte{}
}

// IsValid checks the fields that can be checked in isolation.
func (h *Header) IsValid() bool {
	return h.Version == Version
}

// IsValidPoW reports whether the header id, read as a big-endian integer,
// is below the target.
func (h *Header) IsValidPoW() bool {
	id := h.ID()
	return bytes.Compare(id[:], h.Target[:]) < 0
}

// NewGenesis returns the header of a chain's first block.
func NewGenesis(target [32]byte, now uint64) *Header {
	return &Header{
		Version:   Version,
		Timestamp: now,
		Target:    target,
	}
}

// FromPrevBlockHeader returns the header that follows prev, stamped with
// now. On a retarget boundary prevAdj must be the header that opened the
// period being closed; otherwise it is ignored and may be nil.
func FromPrevBlockHeader(prev, prevAdj *Header, now uint64) (*Header, error) {
	nBlock := prev.NBlock + 1
	target := prev.Target

	if nBlock%BlocksPerTargetAdjPeriod == 0 {
		if prevAdj == nil {
			return nil, errs.Invalid("prevAdj", fmt.Sprintf("adjustment header required at block %d", nBlock))
		}
		var elapsed uint64
		if prev.Timestamp > prevAdj.Timestamp {
			elapsed = prev.Timestamp - prevAdj.Timestamp
		}
		target = AdjustTarget(prevAdj.Target, elapsed)
	}

	return &Header{
		Version:     Version,
		PrevBlockID: prev.ID(),
		Timestamp:   now,
		Target:      target,
		NBlock:      nBlock,
	}, nil
}

// Now returns the current Unix time in seconds.
func Now() uint64 {
	return uint64(time.Now().Unix())
}

// AdjustTarget scales prevTarget by elapsed over the expected period
// duration. The ratio is clamped to [1/2, 2] and the result saturates at
// MaxTarget.
func AdjustTarget(prevTarget [32]byte, elapsed uint64) [32]byte {
	expected := BlocksPerTargetAdjPeriod * BlockIntervalSeconds
	if elapsed < expected/2 {
		elapsed = expected / 2
	}
	if elapsed > expected*2 {
		elapsed = expected * 2
	}

	t := new(big.Int).SetBytes(prevTarget[:])
	t.Mul(t, new(big.Int).SetUint64(elapsed))
	t.Quo(t, new(big.Int).SetUint64(expected))

	if t.BitLen() > 256 {
		return MaxTarget
	}
	var out [32]byte
	t.FillBytes(out[:])
	return out
}

// CoinbaseAmount returns the subsidy for block nBlock.
func CoinbaseAmount(nBlock uint64) uint64 {
	halvings := nBlock / HalvingInterval
	if halvings >= 64 {
		return 0
	}
	return InitialSubsidy >> halvings
}

// String returns a human-readable representation of the header
func (h *Header) String() string {
	return fmt.Sprintf("Header{v%d n=%d prev=%x root=%x ts=%d target=%x nonce=%x}",
		h.Version, h.NBlock, h.PrevBlockID, h.MerkleRoot, h.Timestamp, h.Target, h.Nonce)
}
