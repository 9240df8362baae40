package crypto

import (
	"lukechampine.com/blake3"
)

// Provider is the narrow hashing interface consumed by components that take
// their hash backend as a dependency.
type Provider interface {
	Hash(data []byte) [32]byte
	DoubleHash(data []byte) [32]byte
	KeyedHash(key [32]byte, data []byte) [32]byte
}

// Blake3 is the consensus hash backend. The library picks its SIMD path from
// CPU features at init, so callers never branch on the host environment.
type Blake3 struct{}

func (Blake3) Hash(data []byte) [32]byte {
	return blake3.Sum256(data)
}

func (b Blake3) DoubleHash(data []byte) [32]byte {
	first := blake3.Sum256(data)
	return blake3.Sum256(first[:])
}

func (Blake3) KeyedHash(key [32]byte, data []byte) [32]byte {
	h := blake3.New(32, key[:])
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashBytes returns the BLAKE3-256 digest of data.
func HashBytes(data []byte) [32]byte {
	return Blake3{}.Hash(data)
}

// DoubleHashBytes returns HashBytes(HashBytes(data)).
func DoubleHashBytes(data []byte) [32]byte {
	return Blake3{}.DoubleHash(data)
}

// KeyedHash returns the BLAKE3 keyed-mode MAC of data. It is used for
// non-consensus tokens only.
func KeyedHash(key [32]byte, data []byte) [32]byte {
	return Blake3{}.KeyedHash(key, data)
}
