package bytecode

import (
	"testing"

	"slate/internal/value"
)

func TestWriteAndReadU16RoundTrips(t *testing.T) {
	c := NewChunk()
	off := c.WriteU16(0xBEEF)
	if got := c.ReadU16(off); got != 0xBEEF {
		t.Errorf("ReadU16 = %#x, want %#x", got, 0xBEEF)
	}
}

func TestPatchU16OverwritesPlaceholder(t *testing.T) {
	c := NewChunk()
	c.WriteOp(JUMP)
	off := c.WriteU16(0xFFFF)
	c.PatchU16(off, 7)
	if got := c.ReadU16(off); got != 7 {
		t.Errorf("ReadU16 after patch = %d, want 7", got)
	}
}

func TestAddConstantReturnsDistinctStableIndexes(t *testing.T) {
	c := NewChunk()
	i0 := c.AddConstant(value.Int32(1))
	i1 := c.AddConstant(value.Int32(2))
	if i0 == i1 {
		t.Errorf("AddConstant returned the same index %d for two different values", i0)
	}
	if len(c.Constants) != 2 {
		t.Fatalf("Constants has %d entries, want 2", len(c.Constants))
	}
	if c.Constants[i0].AsInt32() != 1 || c.Constants[i1].AsInt32() != 2 {
		t.Error("constants were not stored at the indices AddConstant returned")
	}
}

func TestSetDebugLocationAndLocationAt(t *testing.T) {
	c := NewChunk()
	c.WriteOp(PUSH_NULL)
	offset := c.Len()
	c.SetDebugLocation(offset, 4, 9)
	c.WriteOp(POP)
	line, col := c.LocationAt(offset)
	if line != 4 || col != 9 {
		t.Errorf("LocationAt(%d) = (%d, %d), want (4, 9)", offset, line, col)
	}
}

func TestLocationAtFallsBackToNearestEarlierEntry(t *testing.T) {
	c := NewChunk()
	c.SetDebugLocation(0, 1, 1)
	c.WriteOp(PUSH_NULL)
	c.WriteOp(POP)
	c.WriteOp(POP)
	line, _ := c.LocationAt(c.Len() - 1)
	if line != 1 {
		t.Errorf("LocationAt without an exact entry = line %d, want 1 (nearest earlier)", line)
	}
}

func TestOpCodeStringIsNeverEmpty(t *testing.T) {
	for _, op := range []OpCode{PUSH_CONSTANT, ADD, POP_N_PRESERVE_TOP, SET_RESULT, HALT, RETURN} {
		if op.String() == "" {
			t.Errorf("OpCode(%d).String() returned empty", op)
		}
	}
}
