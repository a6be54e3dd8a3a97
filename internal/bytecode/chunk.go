package bytecode

import (
	"encoding/binary"

	"slate/internal/value"
)

// DebugEntry records the source location in effect starting at Offset,
// until the next entry. The generator records an entry at each statement
// boundary, and an entry at the same offset replaces the previous one, so
// this is sparse rather than per-byte.
type DebugEntry struct {
	Offset int
	Line   int
	Column int
}

// Chunk is an append-only byte vector of instructions plus the constant
// pool they reference (§3 "Bytecode chunk"). Constants are never mutated
// after being added.
type Chunk struct {
	Code      []byte
	Constants []value.Value
	Debug     []DebugEntry
}

func NewChunk() *Chunk {
	return &Chunk{}
}

// WriteOp appends an opcode byte and returns its offset.
func (c *Chunk) WriteOp(op OpCode) int {
	c.Code = append(c.Code, byte(op))
	return len(c.Code) - 1
}

func (c *Chunk) WriteByte(b byte) int {
	c.Code = append(c.Code, b)
	return len(c.Code) - 1
}

// WriteU16 appends a big-endian 16-bit operand and returns the offset of
// its first byte.
func (c *Chunk) WriteU16(n uint16) int {
	off := len(c.Code)
	c.Code = append(c.Code, 0, 0)
	binary.BigEndian.PutUint16(c.Code[off:], n)
	return off
}

// PatchU16 rewrites the u16 operand at off (used by patch_jump, §4.5.3).
func (c *Chunk) PatchU16(off int, n uint16) {
	binary.BigEndian.PutUint16(c.Code[off:], n)
}

func (c *Chunk) ReadU16(off int) uint16 {
	return binary.BigEndian.Uint16(c.Code[off:])
}

// AddConstant appends v to the constant pool, retaining it on the chunk's
// behalf, and returns its index.
func (c *Chunk) AddConstant(v value.Value) int {
	value.Retain(v)
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// SetDebugLocation records that, starting at offset, the currently
// executing source position is (line, column). The generator calls this
// at each statement boundary; a call at the same offset as the last entry
// overwrites that entry.
func (c *Chunk) SetDebugLocation(offset, line, column int) {
	if n := len(c.Debug); n > 0 && c.Debug[n-1].Offset == offset {
		c.Debug[n-1].Line = line
		c.Debug[n-1].Column = column
		return
	}
	c.Debug = append(c.Debug, DebugEntry{Offset: offset, Line: line, Column: column})
}

// LocationAt returns the (line, column) in effect at ip, i.e. the last
// recorded entry whose Offset <= ip. Returns (0, 0) if no entry applies.
func (c *Chunk) LocationAt(ip int) (line, column int) {
	lo, hi := 0, len(c.Debug)
	for lo < hi {
		mid := (lo + hi) / 2
		if c.Debug[mid].Offset <= ip {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, 0
	}
	e := c.Debug[lo-1]
	return e.Line, e.Column
}

// Len reports the number of bytes written so far, used as a jump target
// reference point during emission.
func (c *Chunk) Len() int { return len(c.Code) }

// Release drops the chunk's ownership of its constant pool. Called when
// the owning FunctionObj is collected.
func (c *Chunk) Release() {
	for _, v := range c.Constants {
		value.Release(v)
	}
}
