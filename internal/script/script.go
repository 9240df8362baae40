// Package script parses push-only unlocking scripts and defines the
// capability that evaluates them against a locking script.
package script

import (
	"encoding/binary"
	"fmt"

	"github.com/yourusername/ledgercore/internal/errs"
)

// Push opcodes.
const (
	Op0         byte = 0x00
	OpPushData1 byte = 0x4c
	OpPushData2 byte = 0x4d
	OpPushData4 byte = 0x4e
	Op1Negate   byte = 0x4f
	OpReserved  byte = 0x50
	Op1         byte = 0x51
	Op16        byte = 0x60
)

// Opcodes used by the address template.
const (
	OpDup          byte = 0x76
	OpEqualVerify  byte = 0x88
	OpDoubleBlake3 byte = 0xa9
	OpCheckSig     byte = 0xac
)

// Chunk is one parsed script element: an opcode and, for data pushes, the
// pushed bytes.
type Chunk struct {
	Opcode byte
	Data   []byte
}

// IsPush reports whether the chunk only places a literal on the stack.
func (c Chunk) IsPush() bool {
	return c.Opcode <= Op16 && c.Opcode != OpReserved
}

// Parse splits a script into chunks. Push lengths for PUSHDATA2 and
// PUSHDATA4 are big-endian.
func Parse(script []byte) ([]Chunk, error) {
	var chunks []Chunk
	for pos := 0; pos < len(script); {
		op := script[pos]
		pos++

		var n int
		switch {
		case op > Op0 && op < OpPushData1:
			n = int(op)
		case op == OpPushData1:
			if pos+1 > len(script) {
				return nil, errs.Malformed(fmt.Sprintf("chunks[%d]", len(chunks)), fmt.Errorf("missing PUSHDATA1 length"))
			}
			n = int(script[pos])
			pos++
		case op == OpPushData2:
			if pos+2 > len(script) {
				return nil, errs.Malformed(fmt.Sprintf("chunks[%d]", len(chunks)), fmt.Errorf("missing PUSHDATA2 length"))
			}
			n = int(binary.BigEndian.Uint16(script[pos:]))
			pos += 2
		case op == OpPushData4:
			if pos+4 > len(script) {
				return nil, errs.Malformed(fmt.Sprintf("chunks[%d]", len(chunks)), fmt.Errorf("missing PUSHDATA4 length"))
			}
			n = int(binary.BigEndian.Uint32(script[pos:]))
			pos += 4
		default:
			chunks = append(chunks, Chunk{Opcode: op})
			continue
		}

		if n > len(script)-pos {
			return nil, errs.Malformed(fmt.Sprintf("chunks[%d]", len(chunks)), fmt.Errorf("push of %d bytes exceeds script", n))
		}
		data := make([]byte, n)
		copy(data, script[pos:pos+n])
		pos += n
		chunks = append(chunks, Chunk{Opcode: op, Data: data})
	}
	return chunks, nil
}

// IsPushOnly reports whether script parses and contains only push opcodes.
func IsPushOnly(script []byte) bool {
	chunks, err := Parse(script)
	if err != nil {
		return false
	}
	for _, c := range chunks {
		if !c.IsPush() {
			return false
		}
	}
	return true
}

// InitialStack returns the data pushed by a push-only script, in order.
// Pushes without a data payload (OP_0, OP_1NEGATE, OP_1..OP_16) contribute
// an empty item.
func InitialStack(script []byte) ([][]byte, error) {
	chunks, err := Parse(script)
	if err != nil {
		return nil, err
	}
	stack := make([][]byte, 0, len(chunks))
	for i, c := range chunks {
		if !c.IsPush() {
			return nil, errs.Invalid(fmt.Sprintf("chunks[%d]", i), fmt.Sprintf("opcode %#x is not a push", c.Opcode))
		}
		item := c.Data
		if item == nil {
			item = []byte{}
		}
		stack = append(stack, item)
	}
	return stack, nil
}

// Builder assembles a script.
type Builder struct {
	script []byte
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddOp appends a bare opcode.
func (b *Builder) AddOp(op byte) *Builder {
	b.script = append(b.script, op)
	return b
}

// AddData appends the smallest push of data.
func (b *Builder) AddData(data []byte) *Builder {
	n := len(data)
	switch {
	case n == 0:
		b.script = append(b.script, Op0)
		return b
	case n < int(OpPushData1):
		b.script = append(b.script, byte(n))
	case n <= 0xff:
		b.script = append(b.script, OpPushData1, byte(n))
	case n <= 0xffff:
		b.script = append(b.script, OpPushData2)
		b.script = binary.BigEndian.AppendUint16(b.script, uint16(n))
	default:
		b.script = append(b.script, OpPushData4)
		b.script = binary.BigEndian.AppendUint32(b.script, uint32(n))
	}
	b.script = append(b.script, data...)
	return b
}

// Script returns the assembled bytes.
func (b *Builder) Script() []byte {
	return b.script
}
