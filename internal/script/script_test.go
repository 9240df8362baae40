package script

import (
	"bytes"
	"testing"
)

func TestParse(t *testing.T) {
	script := NewBuilder().
		AddData([]byte{0xaa}).
		AddData(bytes.Repeat([]byte{0x01}, 80)).
		AddData(bytes.Repeat([]byte{0x02}, 300)).
		AddOp(Op1).
		AddData(nil).
		Script()

	chunks, err := Parse(script)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(chunks) != 5 {
		t.Fatalf("Expected 5 chunks, got %d", len(chunks))
	}
	if chunks[1].Opcode != OpPushData1 || len(chunks[1].Data) != 80 {
		t.Errorf("chunk 1: opcode %#x len %d", chunks[1].Opcode, len(chunks[1].Data))
	}
	if chunks[2].Opcode != OpPushData2 || len(chunks[2].Data) != 300 {
		t.Errorf("chunk 2: opcode %#x len %d", chunks[2].Opcode, len(chunks[2].Data))
	}
	if chunks[3].Opcode != Op1 || chunks[3].Data != nil {
		t.Error("chunk 3 should be a bare OP_1")
	}
}

func TestParseTruncated(t *testing.T) {
	tests := []struct {
		name   string
		script []byte
	}{
		{"direct push", []byte{0x05, 0x01}},
		{"pushdata1 length", []byte{OpPushData1}},
		{"pushdata2 length", []byte{OpPushData2, 0x01}},
		{"pushdata4 length", []byte{OpPushData4, 0, 0}},
		{"pushdata4 body", []byte{OpPushData4, 0, 0, 0, 2, 0xaa}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.script); err == nil {
				t.Error("expected parse error")
			}
			if IsPushOnly(tt.script) {
				t.Error("unparseable script should not be push-only")
			}
		})
	}
}

func TestIsPushOnly(t *testing.T) {
	tests := []struct {
		name   string
		script []byte
		want   bool
	}{
		{"empty", nil, true},
		{"data", NewBuilder().AddData([]byte("sig")).AddData([]byte("key")).Script(), true},
		{"small ints", []byte{Op0, Op1Negate, Op1, Op16}, true},
		{"reserved", []byte{OpReserved}, false},
		{"dup", NewBuilder().AddData([]byte{1}).AddOp(OpDup).Script(), false},
		{"checksig", []byte{OpCheckSig}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPushOnly(tt.script); got != tt.want {
				t.Errorf("IsPushOnly = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInitialStack(t *testing.T) {
	script := NewBuilder().AddData([]byte("a")).AddOp(Op0).AddOp(Op1).AddData([]byte("bc")).Script()

	stack, err := InitialStack(script)
	if err != nil {
		t.Fatalf("InitialStack failed: %v", err)
	}
	want := [][]byte{[]byte("a"), {}, {}, []byte("bc")}
	if len(stack) != len(want) {
		t.Fatalf("stack length %d, want %d", len(stack), len(want))
	}
	for i := range want {
		if !bytes.Equal(stack[i], want[i]) || stack[i] == nil {
			t.Errorf("stack[%d] = %x, want %x", i, stack[i], want[i])
		}
	}

	if _, err := InitialStack([]byte{OpDup}); err == nil {
		t.Error("expected error for non-push opcode")
	}
}

func TestBuilderMinimalPush(t *testing.T) {
	tests := []struct {
		size   int
		prefix []byte
	}{
		{1, []byte{0x01}},
		{75, []byte{0x4b}},
		{76, []byte{OpPushData1, 76}},
		{255, []byte{OpPushData1, 0xff}},
		{256, []byte{OpPushData2, 0x01, 0x00}},
		{70000, []byte{OpPushData4, 0x00, 0x01, 0x11, 0x70}},
	}

	for _, tt := range tests {
		s := NewBuilder().AddData(make([]byte, tt.size)).Script()
		if !bytes.HasPrefix(s, tt.prefix) {
			t.Errorf("size %d: prefix %x, want %x", tt.size, s[:len(tt.prefix)], tt.prefix)
		}
		if len(s) != len(tt.prefix)+tt.size {
			t.Errorf("size %d: script length %d", tt.size, len(s))
		}
	}
}
