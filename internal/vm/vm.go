package vm

import (
	"errors"
	"fmt"

	"slate/internal/bytecode"
	stdlibErrors "slate/internal/errors"
	"slate/internal/value"
)

var (
	errDivisionByZero     = errors.New("division by zero")
	errUnsupportedOperand = errors.New("unsupported operand types")
)

const maxStack = 1 << 16

// ModuleLoader resolves an import path to a compiled module's exports, the
// collaborator interface described in §6 so package vm never has to know
// about the filesystem directly.
type ModuleLoader interface {
	Load(vm *VM, path string) (*ModuleObj, error)
}

// VM executes a single top-level FunctionObj's bytecode to completion. The
// stack is preallocated at a fixed capacity so Cell can hold a raw pointer
// into it without risking invalidation from a reallocating append.
type VM struct {
	stack []value.Value
	sp    int

	frames []callFrame

	handlers []handlerFrame

	globals       map[string]value.Value
	globalMutable map[string]bool

	file   string
	Loader ModuleLoader

	Stdout func(string)
}

func New(file string) *VM {
	vm := &VM{
		stack:         make([]value.Value, maxStack),
		globals:       map[string]value.Value{},
		globalMutable: map[string]bool{},
		file:          file,
		Stdout:        func(s string) { fmt.Print(s) },
	}
	return vm
}

// Globals returns the VM's top-level bindings by name. A ModuleLoader uses
// this after running a module's script function to collect its exports:
// every global the module declared at depth 0 (§4.5.1) becomes visible to
// importers, there being no separate export statement in this language.
func (vm *VM) Globals() map[string]value.Value {
	return vm.globals
}

// DefineGlobal installs a builtin or host-provided binding before Run.
func (vm *VM) DefineGlobal(name string, v value.Value, mutable bool) {
	value.Retain(v)
	vm.globals[name] = v
	vm.globalMutable[name] = mutable
}

func (vm *VM) push(v value.Value) error {
	if vm.sp >= len(vm.stack) {
		return errors.New("stack overflow")
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

func (vm *VM) pop() value.Value {
	vm.sp--
	v := vm.stack[vm.sp]
	vm.stack[vm.sp] = value.Value{}
	return v
}

func (vm *VM) peek(distFromTop int) value.Value {
	return vm.stack[vm.sp-1-distFromTop]
}

func (vm *VM) currentFrame() *callFrame { return &vm.frames[len(vm.frames)-1] }

// Run executes fn (normally the script-level function the compiler
// returns) to completion and reports its final result value plus any
// uncaught runtime error.
func (vm *VM) Run(fn *bytecode.FunctionObj) (value.Value, error) {
	closure := NewClosure(fn, nil)
	calleeIdx := vm.sp
	if err := vm.push(value.NewHeapValue(value.KindClosure, closure)); err != nil {
		return value.Value{}, err
	}
	if err := vm.callValue(calleeIdx, 0); err != nil {
		return value.Value{}, err
	}
	return vm.run()
}

// run is the bytecode dispatch loop (§4.6.1).
func (vm *VM) run() (value.Value, error) {
	var result value.Value = value.Undefined()
	for {
		frame := vm.currentFrame()
		chunk := frame.chunk()
		if frame.ip >= len(chunk.Code) {
			return value.Value{}, vm.runtimeError(stdlibErrors.Type, "chunk ran past its end without RETURN")
		}
		op := bytecode.OpCode(chunk.Code[frame.ip])
		frame.ip++

		switch op {
		case bytecode.PUSH_CONSTANT:
			idx := vm.readU16(frame)
			v := chunk.Constants[idx]
			value.Retain(v)
			vm.push(v)
		case bytecode.PUSH_NULL:
			vm.push(value.Null())
		case bytecode.PUSH_UNDEFINED:
			vm.push(value.Undefined())
		case bytecode.PUSH_TRUE:
			vm.push(value.Bool(true))
		case bytecode.PUSH_FALSE:
			vm.push(value.Bool(false))
		case bytecode.POP:
			value.Release(vm.pop())
		case bytecode.POP_N:
			n := int(vm.readByte(frame))
			for i := 0; i < n; i++ {
				value.Release(vm.pop())
			}
		case bytecode.POP_N_PRESERVE_TOP:
			n := int(vm.readU16(frame))
			top := vm.pop()
			for i := 0; i < n; i++ {
				value.Release(vm.pop())
			}
			vm.push(top)
		case bytecode.DUP:
			top := vm.peek(0)
			value.Retain(top)
			vm.push(top)
		case bytecode.SET_RESULT:
			// The result register owns one reference (§4.6.6): retain the
			// new value before releasing whatever it replaces, since both
			// may alias the same heap object across successive statements.
			next := vm.peek(0)
			value.Retain(next)
			value.Release(result)
			result = next

		case bytecode.ADD, bytecode.SUBTRACT, bytecode.MULTIPLY, bytecode.DIVIDE, bytecode.MOD:
			if err := vm.execArith(op); err != nil {
				return value.Value{}, err
			}
		case bytecode.FLOOR_DIV:
			b, a := vm.pop(), vm.pop()
			r, err := floorDiv(a, b)
			value.Release(a)
			value.Release(b)
			if err != nil {
				return value.Value{}, vm.wrapArithErr(err)
			}
			vm.push(r)
		case bytecode.POWER:
			if err := vm.execPower(); err != nil {
				return value.Value{}, err
			}
		case bytecode.NEGATE:
			if err := vm.execNegate(); err != nil {
				return value.Value{}, err
			}
		case bytecode.NOT:
			a := vm.pop()
			vm.push(value.Bool(!value.Truthy(a)))
			value.Release(a)
		case bytecode.BITWISE_AND, bytecode.BITWISE_OR, bytecode.BITWISE_XOR,
			bytecode.LEFT_SHIFT, bytecode.RIGHT_SHIFT, bytecode.LOGICAL_RIGHT_SHIFT:
			if err := vm.execBitwise(op); err != nil {
				return value.Value{}, err
			}
		case bytecode.BITWISE_NOT:
			a := vm.pop()
			if a.Kind != value.KindInt32 {
				return value.Value{}, vm.runtimeError(stdlibErrors.Type, "~ requires an int operand")
			}
			vm.push(value.Int32(^a.AsInt32()))

		case bytecode.EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equals(a, b)))
			value.Release(a)
			value.Release(b)
		case bytecode.NOT_EQUAL:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(!value.Equals(a, b)))
			value.Release(a)
			value.Release(b)
		case bytecode.LESS, bytecode.LESS_EQUAL, bytecode.GREATER, bytecode.GREATER_EQUAL:
			if err := vm.execCompare(op); err != nil {
				return value.Value{}, err
			}
		case bytecode.IN:
			if err := vm.execIn(); err != nil {
				return value.Value{}, err
			}
		case bytecode.INSTANCEOF:
			if err := vm.execInstanceof(); err != nil {
				return value.Value{}, err
			}

		case bytecode.GET_LOCAL:
			slot := int(vm.readByte(frame))
			v := vm.stack[frame.slotBase+slot]
			value.Retain(v)
			vm.push(v)
		case bytecode.SET_LOCAL:
			slot := int(vm.readByte(frame))
			v := vm.pop()
			idx := frame.slotBase + slot
			value.Release(vm.stack[idx])
			vm.stack[idx] = v
		case bytecode.GET_UPVALUE:
			idx := int(vm.readByte(frame))
			v := frame.closure.Upvalues[idx].Get()
			value.Retain(v)
			vm.push(v)
		case bytecode.SET_UPVALUE:
			idx := int(vm.readByte(frame))
			v := vm.pop()
			frame.closure.Upvalues[idx].Set(v)
		case bytecode.GET_GLOBAL:
			idx := vm.readU16(frame)
			name := vm.constString(chunk, idx)
			v, ok := vm.globals[name]
			if !ok {
				return value.Value{}, vm.runtimeError(stdlibErrors.Reference, "undefined variable "+name)
			}
			value.Retain(v)
			vm.push(v)
		case bytecode.SET_GLOBAL:
			idx := vm.readU16(frame)
			name := vm.constString(chunk, idx)
			if _, ok := vm.globals[name]; !ok {
				return value.Value{}, vm.runtimeError(stdlibErrors.Reference, "undefined variable "+name)
			}
			if !vm.globalMutable[name] {
				return value.Value{}, vm.runtimeError(stdlibErrors.Type, "cannot assign to immutable binding "+name)
			}
			v := vm.pop()
			value.Release(vm.globals[name])
			vm.globals[name] = v
		case bytecode.DEFINE_GLOBAL:
			idx := vm.readU16(frame)
			name := vm.constString(chunk, idx)
			flags := vm.readByte(frame)
			v := vm.pop()
			vm.globals[name] = v
			vm.globalMutable[name] = flags&bytecode.DefineGlobalImmutable == 0

		case bytecode.JUMP:
			off := vm.readU16(frame)
			frame.ip += int(off)
		case bytecode.JUMP_IF_FALSE:
			off := vm.readU16(frame)
			if !value.Truthy(vm.peek(0)) {
				frame.ip += int(off)
			}
		case bytecode.JUMP_IF_TRUE:
			off := vm.readU16(frame)
			if value.Truthy(vm.peek(0)) {
				frame.ip += int(off)
			}
		case bytecode.JUMP_IF_NULLISH:
			off := vm.readU16(frame)
			top := vm.peek(0)
			if top.Kind == value.KindNull || top.Kind == value.KindUndefined {
				frame.ip += int(off)
			}
		case bytecode.LOOP:
			off := vm.readU16(frame)
			frame.ip -= int(off)

		case bytecode.CALL:
			argCount := int(vm.readU16(frame))
			calleeIdx := vm.sp - argCount - 1
			if err := vm.callValue(calleeIdx, argCount); err != nil {
				return value.Value{}, err
			}
		case bytecode.CLOSURE:
			idx := vm.readU16(frame)
			fnVal := chunk.Constants[idx]
			childFn := value.HeapOf(fnVal).(*bytecode.FunctionObj)
			upvalues := make([]*Cell, len(childFn.Upvalues))
			for i, desc := range childFn.Upvalues {
				isLocal := vm.readByte(frame) != 0
				index := int(vm.readByte(frame))
				_ = desc
				if isLocal {
					upvalues[i] = vm.captureLocal(frame, index)
				} else {
					upvalues[i] = frame.closure.Upvalues[index]
				}
			}
			cl := NewClosure(childFn, upvalues)
			vm.push(value.NewHeapValue(value.KindClosure, cl))
		case bytecode.RETURN:
			ret := vm.pop()
			if err := vm.doReturn(ret); err != nil {
				return value.Value{}, err
			}
			if len(vm.frames) == 0 {
				return vm.pop(), nil
			}
		case bytecode.HALT:
			// HALT ends the program: unwind the current frame the same way
			// doReturn does (close cells, release the callee's stack
			// window), but hand back the result register instead of a
			// popped return value — result already holds its own retained
			// reference, so it survives the window's release.
			for _, cell := range frame.openCells {
				cell.Close()
			}
			calleeIdx := frame.slotBase - 1
			for i := calleeIdx; i < vm.sp; i++ {
				value.Release(vm.stack[i])
				vm.stack[i] = value.Value{}
			}
			vm.sp = calleeIdx
			vm.frames = vm.frames[:len(vm.frames)-1]
			return result, nil

		case bytecode.BUILD_ARRAY:
			n := int(vm.readU16(frame))
			elems := make([]value.Value, n)
			for i := n - 1; i >= 0; i-- {
				elems[i] = vm.pop()
			}
			arr := value.NewArray(elems)
			for _, e := range elems {
				value.Release(e)
			}
			vm.push(arr)
		case bytecode.BUILD_OBJECT:
			n := int(vm.readU16(frame))
			obj := value.NewObject()
			pairs := make([]struct {
				k string
				v value.Value
			}, n)
			for i := n - 1; i >= 0; i-- {
				v := vm.pop()
				k := vm.pop()
				pairs[i] = struct {
					k string
					v value.Value
				}{value.ToDisplayString(k), v}
				value.Release(k)
			}
			for _, p := range pairs {
				obj.Set(p.k, p.v)
				value.Release(p.v)
			}
			vm.push(value.NewObjectValue(obj))
		case bytecode.GET_INDEX:
			if err := vm.execGetIndex(); err != nil {
				return value.Value{}, err
			}
		case bytecode.SET_INDEX:
			if err := vm.execSetIndex(); err != nil {
				return value.Value{}, err
			}
		case bytecode.GET_PROPERTY:
			idx := vm.readU16(frame)
			name := vm.constString(chunk, idx)
			if err := vm.execGetProperty(name); err != nil {
				return value.Value{}, err
			}
		case bytecode.SET_PROPERTY:
			idx := vm.readU16(frame)
			name := vm.constString(chunk, idx)
			if err := vm.execSetProperty(name); err != nil {
				return value.Value{}, err
			}

		case bytecode.SET_DEBUG_LOCATION, bytecode.CLEAR_DEBUG_LOCATION:
			// debug-only, no runtime effect

		case bytecode.MAKE_RANGE:
			if err := vm.execMakeRange(frame); err != nil {
				return value.Value{}, err
			}
		case bytecode.GET_ITERATOR:
			src := vm.pop()
			it, err := vm.makeIterator(src)
			value.Release(src)
			if err != nil {
				return value.Value{}, err
			}
			vm.push(it)
		case bytecode.ITER_NEXT:
			off := vm.readU16(frame)
			it := vm.peek(0)
			next, ok := iterNext(value.HeapOf(it).(*value.IteratorObj))
			if !ok {
				frame.ip += int(off)
				break
			}
			vm.push(next)

		case bytecode.MAKE_CLASS:
			if err := vm.execMakeClass(frame); err != nil {
				return value.Value{}, err
			}

		case bytecode.PUSH_HANDLER:
			off := vm.readU16(frame)
			vm.handlers = append(vm.handlers, handlerFrame{
				target:     frame.ip + int(off),
				frameDepth: len(vm.frames),
				stackDepth: vm.sp,
			})
		case bytecode.POP_HANDLER:
			vm.handlers = vm.handlers[:len(vm.handlers)-1]
		case bytecode.THROW:
			thrown := vm.pop()
			if !vm.raiseValue(thrown) {
				msg := value.ToDisplayString(thrown)
				value.Release(thrown)
				return value.Value{}, vm.runtimeError(stdlibErrors.Value, "uncaught exception: "+msg)
			}

		case bytecode.IMPORT_MODULE:
			idx := vm.readU16(frame)
			path := vm.constString(chunk, idx)
			if vm.Loader == nil {
				return value.Value{}, vm.runtimeError(stdlibErrors.Reference, "no module loader configured")
			}
			mod, err := vm.Loader.Load(vm, path)
			if err != nil {
				return value.Value{}, vm.runtimeError(stdlibErrors.Reference, err.Error())
			}
			vm.push(value.NewHeapValue(value.KindObject, moduleAsObject(mod)))

		default:
			return value.Value{}, vm.runtimeError(stdlibErrors.Type, fmt.Sprintf("unimplemented opcode %s", op))
		}
	}
}

func (vm *VM) readByte(frame *callFrame) byte {
	b := frame.chunk().Code[frame.ip]
	frame.ip++
	return b
}

func (vm *VM) readU16(frame *callFrame) uint16 {
	n := frame.chunk().ReadU16(frame.ip)
	frame.ip += 2
	return n
}

func (vm *VM) constString(chunk *bytecode.Chunk, idx uint16) string {
	return value.ToDisplayString(chunk.Constants[idx])
}

// NewError builds a LangError carrying the current call frame's debug
// location, for use by native functions (package builtins) that need to
// report a typed runtime error the same way the core dispatch loop does.
func (vm *VM) NewError(kind stdlibErrors.Kind, msg string) error {
	return vm.runtimeError(kind, msg)
}

func (vm *VM) runtimeError(kind stdlibErrors.Kind, msg string) error {
	frame := vm.currentFrame()
	line, col := frame.chunk().LocationAt(frame.ip)
	e := stdlibErrors.NewValueError(msg, vm.file, line, col)
	e.Kind = kind
	return e
}

func (vm *VM) wrapArithErr(err error) error {
	if err == errDivisionByZero {
		frame := vm.currentFrame()
		line, col := frame.chunk().LocationAt(frame.ip)
		return stdlibErrors.NewDivisionByZeroError(vm.file, line, col)
	}
	return vm.runtimeError(stdlibErrors.Type, err.Error())
}
