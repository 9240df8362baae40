// Package codec implements the canonical big-endian buffer encoding shared
// by transactions, headers and blocks.
//
// All multi-byte integers are big-endian. There is no padding or alignment.
// A Reader is a single-pass forward-only cursor.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	// ErrTruncatedInput is returned when fewer bytes remain than a read needs.
	ErrTruncatedInput = errors.New("truncated input")

	// ErrMalformedValue is returned when a length field implies more data than
	// is available, or a VarInt is not minimally encoded.
	ErrMalformedValue = errors.New("malformed value")
)

// Reader consumes canonical values from a byte slice.
type Reader struct {
	b   []byte
	pos int
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.b) - r.pos
}

// EOF reports whether every byte has been consumed.
func (r *Reader) EOF() bool {
	return r.Remaining() == 0
}

// Read returns the next n bytes. The returned slice is a copy.
func (r *Reader) Read(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrTruncatedInput
	}
	out := make([]byte, n)
	copy(out, r.b[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// ReadFixed32 reads a 32-byte digest.
func (r *Reader) ReadFixed32() ([32]byte, error) {
	var out [32]byte
	if r.Remaining() < 32 {
		return out, ErrTruncatedInput
	}
	copy(out[:], r.b[r.pos:r.pos+32])
	r.pos += 32
	return out, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if r.Remaining() < 1 {
		return 0, ErrTruncatedInput
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *Reader) ReadU32BE() (uint32, error) {
	if r.Remaining() < 4 {
		return 0, ErrTruncatedInput
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *Reader) ReadU64BE() (uint64, error) {
	if r.Remaining() < 8 {
		return 0, ErrTruncatedInput
	}
	v := binary.BigEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadVarInt reads a minimally encoded VarInt.
func (r *Reader) ReadVarInt() (uint64, error) {
	v, n, err := DecodeVarInt(r.b[r.pos:])
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// ReadVarBytes reads a VarInt length followed by that many bytes.
func (r *Reader) ReadVarBytes() ([]byte, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Remaining()) {
		return nil, fmt.Errorf("%w: length %d exceeds %d remaining bytes", ErrMalformedValue, n, r.Remaining())
	}
	return r.Read(int(n))
}

// ReadCount reads a VarInt element count and checks it against the bytes left,
// given the smallest possible encoding of one element.
func (r *Reader) ReadCount(minElemSize int) (int, error) {
	n, err := r.ReadVarInt()
	if err != nil {
		return 0, err
	}
	if minElemSize > 0 && n > uint64(r.Remaining()/minElemSize) {
		return 0, fmt.Errorf("%w: count %d exceeds remaining input", ErrMalformedValue, n)
	}
	return int(n), nil
}

// Writer accumulates canonical values.
type Writer struct {
	b []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte {
	return w.b
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.b)
}

func (w *Writer) Write(b []byte) *Writer {
	w.b = append(w.b, b...)
	return w
}

func (w *Writer) WriteU8(v uint8) *Writer {
	w.b = append(w.b, v)
	return w
}

func (w *Writer) WriteU32BE(v uint32) *Writer {
	w.b = binary.BigEndian.AppendUint32(w.b, v)
	return w
}

func (w *Writer) WriteU64BE(v uint64) *Writer {
	w.b = binary.BigEndian.AppendUint64(w.b, v)
	return w
}

func (w *Writer) WriteVarInt(v uint64) *Writer {
	w.b = AppendVarInt(w.b, v)
	return w
}

// WriteVarBytes writes len(b) as a VarInt followed by b.
func (w *Writer) WriteVarBytes(b []byte) *Writer {
	w.WriteVarInt(uint64(len(b)))
	return w.Write(b)
}
