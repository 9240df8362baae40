package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const (
	// AddressPrefix starts every string-encoded public key hash.
	AddressPrefix = "ebxpkh"

	// ChecksumLength is the number of hash bytes in the address checksum.
	ChecksumLength = 4
)

// Pkh is a public key hash: the double hash of a compressed public key.
type Pkh [32]byte

// PublicKeyHash returns the Pkh of pub.
func PublicKeyHash(pub *PubKey) Pkh {
	return Pkh(DoubleHashBytes(pub.Bytes()))
}

// PkhFromBytes wraps a 32-byte public key hash.
func PkhFromBytes(b []byte) (Pkh, error) {
	var p Pkh
	if len(b) != len(p) {
		return p, fmt.Errorf("invalid public key hash length %d", len(b))
	}
	copy(p[:], b)
	return p, nil
}

// Checksum returns the first ChecksumLength bytes of the hash of payload.
func Checksum(payload []byte) []byte {
	h := HashBytes(payload)
	return h[:ChecksumLength]
}

// EncodeAddress renders pkh as prefix || hex(checksum) || base58(pkh).
func EncodeAddress(pkh Pkh) string {
	return AddressPrefix + hex.EncodeToString(Checksum(pkh[:])) + base58.Encode(pkh[:])
}

// DecodeAddress parses and checksums an address produced by EncodeAddress.
func DecodeAddress(address string) (Pkh, error) {
	var p Pkh
	if !strings.HasPrefix(address, AddressPrefix) {
		return p, fmt.Errorf("invalid address prefix")
	}
	rest := address[len(AddressPrefix):]
	if len(rest) < 2*ChecksumLength {
		return p, fmt.Errorf("invalid address length")
	}
	checksumProvided, err := hex.DecodeString(rest[:2*ChecksumLength])
	if err != nil {
		return p, fmt.Errorf("invalid address checksum encoding: %v", err)
	}
	decoded, err := base58.Decode(rest[2*ChecksumLength:])
	if err != nil {
		return p, fmt.Errorf("failed to decode address: %v", err)
	}
	if !bytes.Equal(Checksum(decoded), checksumProvided) {
		return p, fmt.Errorf("invalid address checksum")
	}
	return PkhFromBytes(decoded)
}

// IsValidAddress reports whether address decodes.
func IsValidAddress(address string) bool {
	_, err := DecodeAddress(address)
	return err == nil
}
