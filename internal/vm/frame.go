package vm

import (
	"slate/internal/bytecode"
	"slate/internal/value"
)

// callFrame is one activation record (§4.6.3). slotBase is the index into
// VM.stack where this frame's locals begin (slot 0 is the first
// parameter); the frame's own return address and the caller's stack depth
// live on a separate Go-level call stack (VM.frames) rather than being
// pushed as stack values, since this implementation's stack holds only
// value.Value operands.
type callFrame struct {
	closure   *ClosureObj
	ip        int
	slotBase  int
	openCells map[int]*Cell // local slot -> open upvalue cell, for CLOSURE capture

	// isInit and receiver support constructor dispatch (§9 prototypes): a
	// frame running a class's init method ignores its own RETURN value and
	// yields the receiver instead, mirroring how the instance got threaded
	// in as the implicit first argument.
	isInit   bool
	receiver value.Value
}

func (f *callFrame) chunk() *bytecode.Chunk { return f.closure.Fn.Chunk }

// handlerFrame records a PUSH_HANDLER entry: the catch target ip, the
// frame depth and stack depth to restore to when a THROW unwinds into it
// (§4.6.7).
type handlerFrame struct {
	target     int
	frameDepth int
	stackDepth int
}
