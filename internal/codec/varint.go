package codec

import (
	"encoding/binary"
	"fmt"
)

// AppendVarInt appends the minimal VarInt encoding of v to dst.
func AppendVarInt(dst []byte, v uint64) []byte {
	switch {
	case v < 0xfd:
		return append(dst, byte(v))
	case v <= 0xffff:
		dst = append(dst, 0xfd)
		return binary.BigEndian.AppendUint16(dst, uint16(v))
	case v <= 0xffffffff:
		dst = append(dst, 0xfe)
		return binary.BigEndian.AppendUint32(dst, uint32(v))
	}
	dst = append(dst, 0xff)
	return binary.BigEndian.AppendUint64(dst, v)
}

// VarIntSize returns the encoded length of v.
func VarIntSize(v uint64) int {
	switch {
	case v < 0xfd:
		return 1
	case v <= 0xffff:
		return 3
	case v <= 0xffffffff:
		return 5
	}
	return 9
}

// DecodeVarInt decodes a VarInt from the front of b and returns the value and
// the number of bytes consumed. Non-minimal encodings are rejected.
func DecodeVarInt(b []byte) (uint64, int, error) {
	if len(b) < 1 {
		return 0, 0, ErrTruncatedInput
	}
	switch tag := b[0]; tag {
	case 0xfd:
		if len(b) < 3 {
			return 0, 0, ErrTruncatedInput
		}
		v := uint64(binary.BigEndian.Uint16(b[1:]))
		if v < 0xfd {
			return 0, 0, fmt.Errorf("%w: non-minimal varint u16", ErrMalformedValue)
		}
		return v, 3, nil
	case 0xfe:
		if len(b) < 5 {
			return 0, 0, ErrTruncatedInput
		}
		v := uint64(binary.BigEndian.Uint32(b[1:]))
		if v < 0x1_0000 {
			return 0, 0, fmt.Errorf("%w: non-minimal varint u32", ErrMalformedValue)
		}
		return v, 5, nil
	case 0xff:
		if len(b) < 9 {
			return 0, 0, ErrTruncatedInput
		}
		v := binary.BigEndian.Uint64(b[1:])
		if v < 0x1_0000_0000 {
			return 0, 0, fmt.Errorf("%w: non-minimal varint u64", ErrMalformedValue)
		}
		return v, 9, nil
	default:
		return uint64(tag), 1, nil
	}
}
