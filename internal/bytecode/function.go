package bytecode

import "fmt"

// UpvalueDesc describes how a closure created from this function should
// populate one upvalue cell (§4.5.1): either by capturing a local slot of
// the immediately enclosing function (IsLocal true, Index is a local slot)
// or by forwarding an upvalue already captured by the enclosing function
// (IsLocal false, Index is an upvalue index in the enclosing function).
type UpvalueDesc struct {
	IsLocal bool
	Index   uint8
}

// FunctionObj is the immutable function record of §3: name, declared
// parameter count, its bytecode, and the upvalue descriptors a CLOSURE
// instruction consults when instantiating a closure over it. It implements
// value.HeapObject directly so functions are first-class values without
// package value needing to import package bytecode's callers.
type FunctionObj struct {
	Name       string
	Arity      int
	ParamNames []string
	Chunk      *Chunk
	Upvalues   []UpvalueDesc
	IsArrow    bool // arrow functions display differently but dispatch the same

	refs int
}

func NewFunction(name string, paramNames []string, isArrow bool) *FunctionObj {
	return &FunctionObj{
		Name:       name,
		Arity:      len(paramNames),
		ParamNames: paramNames,
		Chunk:      NewChunk(),
		IsArrow:    isArrow,
	}
}

func (f *FunctionObj) Retain()       { f.refs++ }
func (f *FunctionObj) RefCount() int { return f.refs }
func (f *FunctionObj) Release() {
	f.refs--
	if f.refs == 0 {
		f.Chunk.Release()
	}
}

// DisplayString implements value.Displayer.
func (f *FunctionObj) DisplayString() string {
	if f.Name == "" {
		return "<function (anonymous)>"
	}
	return fmt.Sprintf("<function %s>", f.Name)
}

// AddUpvalue appends desc, deduplicating descriptors that refer to the same
// enclosing slot (CLOSURE's "memoize" rule, §4.5.1), and returns its index.
func (f *FunctionObj) AddUpvalue(desc UpvalueDesc) int {
	for i, existing := range f.Upvalues {
		if existing == desc {
			return i
		}
	}
	f.Upvalues = append(f.Upvalues, desc)
	return len(f.Upvalues) - 1
}
