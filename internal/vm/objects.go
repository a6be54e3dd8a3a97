// Package vm implements the stack-machine bytecode interpreter: frame
// management, the instruction dispatch loop, numeric promotion, closures
// and upvalues, the iterator protocol, bound methods, and the error-trap
// mechanism used by try/catch/finally.
package vm

import (
	"fmt"

	"slate/internal/bytecode"
	"slate/internal/value"
)

// Cell is an upvalue cell (§4.5.1/Glossary: Upvalue cell). An open cell
// aliases a slot still live on the VM stack; Close snapshots that slot's
// value into the cell itself so it survives the owning frame's return.
type Cell struct {
	slot   *value.Value
	closed value.Value
	isOpen bool
	refs   int
}

func newOpenCell(slot *value.Value) *Cell {
	return &Cell{slot: slot, isOpen: true}
}

func (c *Cell) Get() value.Value {
	if c.isOpen {
		return *c.slot
	}
	return c.closed
}

// Set takes ownership of v (the caller must not release it separately),
// releasing whatever value previously lived in the cell.
func (c *Cell) Set(v value.Value) {
	if c.isOpen {
		value.Release(*c.slot)
		*c.slot = v
		return
	}
	value.Release(c.closed)
	c.closed = v
}

// Close snapshots the aliased slot's current value and detaches the cell
// from the stack, used when the owning frame returns (§4.6.4).
func (c *Cell) Close() {
	if !c.isOpen {
		return
	}
	c.closed = *c.slot
	value.Retain(c.closed)
	c.isOpen = false
	c.slot = nil
}

func (c *Cell) Retain()       { c.refs++ }
func (c *Cell) RefCount() int { return c.refs }
func (c *Cell) Release() {
	c.refs--
	if c.refs == 0 && !c.isOpen {
		value.Release(c.closed)
	}
}

// ClosureObj pairs a FunctionObj with the upvalue cells it captured at
// creation time (§4.5.1, §4.6.4).
type ClosureObj struct {
	Fn       *bytecode.FunctionObj
	Upvalues []*Cell
	refs     int
}

func NewClosure(fn *bytecode.FunctionObj, upvalues []*Cell) *ClosureObj {
	fn.Retain()
	for _, u := range upvalues {
		u.Retain()
	}
	return &ClosureObj{Fn: fn, Upvalues: upvalues}
}

func (c *ClosureObj) Retain()       { c.refs++ }
func (c *ClosureObj) RefCount() int { return c.refs }
func (c *ClosureObj) Release() {
	c.refs--
	if c.refs == 0 {
		c.Fn.Release()
		for _, u := range c.Upvalues {
			u.Release()
		}
	}
}

func (c *ClosureObj) DisplayString() string { return c.Fn.DisplayString() }

// NativeFn is the signature of a builtin implemented in Go.
type NativeFn func(vm *VM, args []value.Value) (value.Value, error)

// NativeObj wraps a Go function as a callable value (§6 builtins).
type NativeObj struct {
	Name  string
	Arity int // -1 means variadic
	Fn    NativeFn
	refs  int
}

func NewNative(name string, arity int, fn NativeFn) *NativeObj {
	return &NativeObj{Name: name, Arity: arity, Fn: fn}
}

func (n *NativeObj) Retain()              {}
func (n *NativeObj) RefCount() int        { return 1 }
func (n *NativeObj) Release()             {}
func (n *NativeObj) DisplayString() string { return fmt.Sprintf("<native %s>", n.Name) }

// BoundMethodObj binds a receiver to a method value, produced by
// GET_PROPERTY on an instance when the named property resolves to a class
// method rather than a field (§4.6.6, Glossary: Bound method).
type BoundMethodObj struct {
	Receiver value.Value
	Method   value.Value
	refs     int
}

func NewBoundMethod(receiver, method value.Value) *BoundMethodObj {
	value.Retain(receiver)
	value.Retain(method)
	return &BoundMethodObj{Receiver: receiver, Method: method}
}

func (b *BoundMethodObj) Retain()       { b.refs++ }
func (b *BoundMethodObj) RefCount() int { return b.refs }
func (b *BoundMethodObj) Release() {
	b.refs--
	if b.refs == 0 {
		value.Release(b.Receiver)
		value.Release(b.Method)
	}
}

func (b *BoundMethodObj) DisplayString() string { return "<bound method>" }

// ClassObj is the runtime representation of a class declaration: its own
// methods plus an optional superclass link walked for inherited methods
// and `instanceof` (the supplemented prototype model, SPEC_FULL.md PART D).
type ClassObj struct {
	Name       string
	Superclass *ClassObj
	Methods    map[string]value.Value
	Fields     []string
	refs       int
}

func NewClass(name string, super *ClassObj, fields []string) *ClassObj {
	return &ClassObj{Name: name, Superclass: super, Methods: map[string]value.Value{}, Fields: fields}
}

func (c *ClassObj) Retain()       { c.refs++ }
func (c *ClassObj) RefCount() int { return c.refs }
func (c *ClassObj) Release() {
	c.refs--
	if c.refs == 0 {
		for _, m := range c.Methods {
			value.Release(m)
		}
		if c.Superclass != nil {
			c.Superclass.Release()
		}
	}
}

func (c *ClassObj) DisplayString() string { return fmt.Sprintf("<class %s>", c.Name) }

// findMethod walks the superclass chain looking up name, implementing
// prototype-style inheritance.
func (c *ClassObj) findMethod(name string) (value.Value, bool) {
	for cls := c; cls != nil; cls = cls.Superclass {
		if m, ok := cls.Methods[name]; ok {
			return m, true
		}
	}
	return value.Value{}, false
}

func (c *ClassObj) isSubclassOf(other *ClassObj) bool {
	for cls := c; cls != nil; cls = cls.Superclass {
		if cls == other {
			return true
		}
	}
	return false
}

// InstanceObj is an object allocated from a ClassObj via MAKE_CLASS/CALL on
// the class value; fields are stored by name like ObjectObj but carry a
// class pointer so property lookup can fall through to methods.
type InstanceObj struct {
	Class  *ClassObj
	Fields map[string]value.Value
	refs   int
}

func NewInstance(class *ClassObj) *InstanceObj {
	class.Retain()
	fields := make(map[string]value.Value, len(class.Fields))
	for _, f := range class.Fields {
		fields[f] = value.Undefined()
	}
	return &InstanceObj{Class: class, Fields: fields}
}

func (o *InstanceObj) Retain()       { o.refs++ }
func (o *InstanceObj) RefCount() int { return o.refs }
func (o *InstanceObj) Release() {
	o.refs--
	if o.refs == 0 {
		for _, v := range o.Fields {
			value.Release(v)
		}
		o.Class.Release()
	}
}

func (o *InstanceObj) DisplayString() string { return fmt.Sprintf("<%s instance>", o.Class.Name) }

// ModuleObj holds every exported binding of a loaded module, by name.
// IMPORT_MODULE does not push it directly: it pushes a plain object copy of
// Exports.
type ModuleObj struct {
	Path    string
	Exports map[string]value.Value
	refs    int
}

func NewModule(path string) *ModuleObj {
	return &ModuleObj{Path: path, Exports: map[string]value.Value{}}
}

func (m *ModuleObj) Retain()       { m.refs++ }
func (m *ModuleObj) RefCount() int { return m.refs }
func (m *ModuleObj) Release() {
	m.refs--
	if m.refs == 0 {
		for _, v := range m.Exports {
			value.Release(v)
		}
	}
}

func (m *ModuleObj) DisplayString() string { return fmt.Sprintf("<module %s>", m.Path) }
