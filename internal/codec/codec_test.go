package codec

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter().
		WriteU8(0x01).
		WriteU32BE(1234567890).
		WriteU64BE(12345678901234567890).
		WriteVarBytes([]byte("script")).
		Write([]byte{0xaa, 0xbb})

	r := NewReader(w.Bytes())

	if v, err := r.ReadU8(); err != nil || v != 0x01 {
		t.Fatalf("ReadU8 = %d, %v", v, err)
	}
	if v, err := r.ReadU32BE(); err != nil || v != 1234567890 {
		t.Fatalf("ReadU32BE = %d, %v", v, err)
	}
	if v, err := r.ReadU64BE(); err != nil || v != 12345678901234567890 {
		t.Fatalf("ReadU64BE = %d, %v", v, err)
	}
	b, err := r.ReadVarBytes()
	if err != nil || string(b) != "script" {
		t.Fatalf("ReadVarBytes = %q, %v", b, err)
	}
	raw, err := r.Read(2)
	if err != nil || !bytes.Equal(raw, []byte{0xaa, 0xbb}) {
		t.Fatalf("Read = %x, %v", raw, err)
	}
	if !r.EOF() {
		t.Errorf("expected EOF, %d bytes remaining", r.Remaining())
	}
}

func TestBigEndianLayout(t *testing.T) {
	got := NewWriter().WriteU32BE(0x01020304).Bytes()
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("WriteU32BE = %x, want 01020304", got)
	}
}

func TestReaderTruncated(t *testing.T) {
	r := NewReader([]byte{0x01, 0x02, 0x03})
	if _, err := r.ReadU32BE(); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("ReadU32BE err = %v, want ErrTruncatedInput", err)
	}
	// a failed read does not advance the cursor
	if r.Remaining() != 3 {
		t.Errorf("Remaining = %d, want 3", r.Remaining())
	}
	if _, err := r.Read(4); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("Read err = %v, want ErrTruncatedInput", err)
	}
	if _, err := r.ReadFixed32(); !errors.Is(err, ErrTruncatedInput) {
		t.Errorf("ReadFixed32 err = %v, want ErrTruncatedInput", err)
	}
}

func TestReadVarBytesOverlong(t *testing.T) {
	r := NewReader([]byte{0x05, 0x01, 0x02})
	if _, err := r.ReadVarBytes(); !errors.Is(err, ErrMalformedValue) {
		t.Errorf("err = %v, want ErrMalformedValue", err)
	}
}

func TestReadCount(t *testing.T) {
	r := NewReader([]byte{0x03, 0x00, 0x00})
	if _, err := r.ReadCount(1); !errors.Is(err, ErrMalformedValue) {
		t.Errorf("err = %v, want ErrMalformedValue", err)
	}
	r = NewReader([]byte{0x02, 0x00, 0x00})
	if n, err := r.ReadCount(1); err != nil || n != 2 {
		t.Errorf("ReadCount = %d, %v", n, err)
	}
}

func TestVarIntEncoding(t *testing.T) {
	tests := []struct {
		name  string
		value uint64
		enc   []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"max single byte", 0xfc, []byte{0xfc}},
		{"min u16", 0xfd, []byte{0xfd, 0x00, 0xfd}},
		{"max u16", 0xffff, []byte{0xfd, 0xff, 0xff}},
		{"min u32", 0x10000, []byte{0xfe, 0x00, 0x01, 0x00, 0x00}},
		{"max u32", 0xffffffff, []byte{0xfe, 0xff, 0xff, 0xff, 0xff}},
		{"min u64", 0x100000000, []byte{0xff, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AppendVarInt(nil, tt.value)
			if !bytes.Equal(got, tt.enc) {
				t.Fatalf("AppendVarInt(%d) = %x, want %x", tt.value, got, tt.enc)
			}
			if VarIntSize(tt.value) != len(tt.enc) {
				t.Errorf("VarIntSize(%d) = %d, want %d", tt.value, VarIntSize(tt.value), len(tt.enc))
			}
			v, n, err := DecodeVarInt(tt.enc)
			if err != nil {
				t.Fatalf("DecodeVarInt: %v", err)
			}
			if v != tt.value || n != len(tt.enc) {
				t.Errorf("DecodeVarInt = (%d, %d), want (%d, %d)", v, n, tt.value, len(tt.enc))
			}
		})
	}
}

func TestVarIntRejectsNonMinimal(t *testing.T) {
	tests := [][]byte{
		{0xfd, 0x00, 0xfc},
		{0xfe, 0x00, 0x00, 0xff, 0xff},
		{0xff, 0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff},
	}
	for _, enc := range tests {
		if _, _, err := DecodeVarInt(enc); !errors.Is(err, ErrMalformedValue) {
			t.Errorf("DecodeVarInt(%x) err = %v, want ErrMalformedValue", enc, err)
		}
	}
}

func TestVarIntTruncated(t *testing.T) {
	tests := [][]byte{
		{},
		{0xfd, 0x01},
		{0xfe, 0x01, 0x00, 0x00},
		{0xff, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	}
	for _, enc := range tests {
		if _, _, err := DecodeVarInt(enc); !errors.Is(err, ErrTruncatedInput) {
			t.Errorf("DecodeVarInt(%x) err = %v, want ErrTruncatedInput", enc, err)
		}
	}
}
