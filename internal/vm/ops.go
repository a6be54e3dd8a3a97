package vm

import (
	"strings"

	"slate/internal/bigint"
	"slate/internal/bytecode"
	stdlibErrors "slate/internal/errors"
	"slate/internal/value"
)

// --- arithmetic/logic/comparison ---

func (vm *VM) execArith(op bytecode.OpCode) error {
	b := vm.pop()
	a := vm.pop()
	if op == bytecode.ADD && (a.Kind == value.KindString || b.Kind == value.KindString) {
		vm.push(value.NewString(value.ToDisplayString(a) + value.ToDisplayString(b)))
		value.Release(a)
		value.Release(b)
		return nil
	}
	if !isNumericKind(a) || !isNumericKind(b) {
		value.Release(a)
		value.Release(b)
		return vm.runtimeError(stdlibErrors.Type, "operator requires numeric operands")
	}
	var opByte byte
	switch op {
	case bytecode.ADD:
		opByte = '+'
	case bytecode.SUBTRACT:
		opByte = '-'
	case bytecode.MULTIPLY:
		opByte = '*'
	case bytecode.DIVIDE:
		opByte = '/'
	case bytecode.MOD:
		opByte = '%'
	}
	r, err := arith(opByte, a, b)
	value.Release(a)
	value.Release(b)
	if err != nil {
		return vm.wrapArithErr(err)
	}
	vm.push(r)
	return nil
}

func (vm *VM) execPower() error {
	b := vm.pop()
	a := vm.pop()
	if !isNumericKind(a) || !isNumericKind(b) {
		value.Release(a)
		value.Release(b)
		return vm.runtimeError(stdlibErrors.Type, "** requires numeric operands")
	}
	r, err := power(a, b)
	value.Release(a)
	value.Release(b)
	if err != nil {
		return vm.wrapArithErr(err)
	}
	vm.push(r)
	return nil
}

func (vm *VM) execNegate() error {
	a := vm.pop()
	defer value.Release(a)
	switch a.Kind {
	case value.KindInt32:
		vm.push(value.Int32(-a.AsInt32()))
		return nil
	case value.KindFloat32:
		vm.push(value.Float32(-a.AsFloat32()))
		return nil
	case value.KindFloat64:
		vm.push(value.Float64(-a.AsFloat64()))
		return nil
	case value.KindBigInt:
		vm.push(value.BigInt(a.AsBigInt().Mul(bigint.FromInt32(-1))))
		return nil
	}
	return vm.runtimeError(stdlibErrors.Type, "unary - requires a numeric operand")
}

func (vm *VM) execBitwise(op bytecode.OpCode) error {
	b := vm.pop()
	a := vm.pop()
	defer func() {
		value.Release(a)
		value.Release(b)
	}()
	if a.Kind != value.KindInt32 || b.Kind != value.KindInt32 {
		return vm.runtimeError(stdlibErrors.Type, "bitwise operators require int operands")
	}
	ia, ib := a.AsInt32(), b.AsInt32()
	var r int32
	switch op {
	case bytecode.BITWISE_AND:
		r = ia & ib
	case bytecode.BITWISE_OR:
		r = ia | ib
	case bytecode.BITWISE_XOR:
		r = ia ^ ib
	case bytecode.LEFT_SHIFT:
		r = ia << uint32(ib)
	case bytecode.RIGHT_SHIFT:
		r = ia >> uint32(ib)
	case bytecode.LOGICAL_RIGHT_SHIFT:
		r = int32(uint32(ia) >> uint32(ib))
	}
	vm.push(value.Int32(r))
	return nil
}

func (vm *VM) execCompare(op bytecode.OpCode) error {
	b := vm.pop()
	a := vm.pop()
	defer func() {
		value.Release(a)
		value.Release(b)
	}()
	var cmp int
	switch {
	case isNumericKind(a) && isNumericKind(b):
		cmp = compareNumeric(a, b)
	case a.Kind == value.KindString && b.Kind == value.KindString:
		sa := value.HeapOf(a).(*value.StringObj).Value
		sb := value.HeapOf(b).(*value.StringObj).Value
		switch {
		case sa < sb:
			cmp = -1
		case sa > sb:
			cmp = 1
		default:
			cmp = 0
		}
	default:
		return vm.runtimeError(stdlibErrors.Type, "comparison requires two numbers or two strings")
	}
	var r bool
	switch op {
	case bytecode.LESS:
		r = cmp < 0
	case bytecode.LESS_EQUAL:
		r = cmp <= 0
	case bytecode.GREATER:
		r = cmp > 0
	case bytecode.GREATER_EQUAL:
		r = cmp >= 0
	}
	vm.push(value.Bool(r))
	return nil
}

func (vm *VM) execIn() error {
	b := vm.pop()
	a := vm.pop()
	defer func() {
		value.Release(a)
		value.Release(b)
	}()
	switch b.Kind {
	case value.KindArray:
		arr := value.HeapOf(b).(*value.ArrayObj)
		for _, e := range arr.Elements {
			if value.Equals(a, e) {
				vm.push(value.Bool(true))
				return nil
			}
		}
		vm.push(value.Bool(false))
		return nil
	case value.KindObject:
		o := value.HeapOf(b).(*value.ObjectObj)
		if a.Kind != value.KindString {
			vm.push(value.Bool(false))
			return nil
		}
		_, ok := o.Get(value.HeapOf(a).(*value.StringObj).Value)
		vm.push(value.Bool(ok))
		return nil
	case value.KindRange:
		r := value.HeapOf(b).(*value.RangeObj)
		if !isNumericKind(a) {
			vm.push(value.Bool(false))
			return nil
		}
		lo := compareNumeric(a, r.Start) >= 0
		var hi bool
		if r.Exclusive {
			hi = compareNumeric(a, r.End) < 0
		} else {
			hi = compareNumeric(a, r.End) <= 0
		}
		vm.push(value.Bool(lo && hi))
		return nil
	case value.KindString:
		if a.Kind != value.KindString {
			return vm.runtimeError(stdlibErrors.Type, "in requires a string operand on a string")
		}
		hay := value.HeapOf(b).(*value.StringObj).Value
		needle := value.HeapOf(a).(*value.StringObj).Value
		vm.push(value.Bool(strings.Contains(hay, needle)))
		return nil
	}
	return vm.runtimeError(stdlibErrors.Type, "in requires an array, object, range, or string")
}

func (vm *VM) execInstanceof() error {
	b := vm.pop()
	a := vm.pop()
	defer func() {
		value.Release(a)
		value.Release(b)
	}()
	if b.Kind != value.KindClass {
		return vm.runtimeError(stdlibErrors.Type, "right-hand side of instanceof must be a class")
	}
	cls := value.HeapOf(b).(*ClassObj)
	if a.Kind != value.KindInstance {
		vm.push(value.Bool(false))
		return nil
	}
	inst := value.HeapOf(a).(*InstanceObj)
	vm.push(value.Bool(inst.Class.isSubclassOf(cls)))
	return nil
}

// --- calls ---

func (vm *VM) captureLocal(frame *callFrame, index int) *Cell {
	if frame.openCells == nil {
		frame.openCells = map[int]*Cell{}
	}
	if cell, ok := frame.openCells[index]; ok {
		return cell
	}
	cell := newOpenCell(&vm.stack[frame.slotBase+index])
	frame.openCells[index] = cell
	return cell
}

func (vm *VM) doReturn(ret value.Value) error {
	frame := vm.currentFrame()
	for _, cell := range frame.openCells {
		cell.Close()
	}
	calleeIdx := frame.slotBase - 1
	result := ret
	if frame.isInit {
		value.Release(ret)
		result = frame.receiver
	}
	for i := calleeIdx; i < vm.sp; i++ {
		value.Release(vm.stack[i])
		vm.stack[i] = value.Value{}
	}
	vm.sp = calleeIdx
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.push(result)
	return nil
}

func (vm *VM) callValue(calleeIdx int, argCount int) error {
	callee := vm.stack[calleeIdx]
	switch callee.Kind {
	case value.KindClosure:
		cl := value.HeapOf(callee).(*ClosureObj)
		if cl.Fn.Arity != argCount {
			return vm.runtimeError(stdlibErrors.Arity, errArity(cl.Fn.Name, cl.Fn.Arity, argCount))
		}
		vm.frames = append(vm.frames, callFrame{closure: cl, slotBase: calleeIdx + 1})
		return nil
	case value.KindNative:
		nat := value.HeapOf(callee).(*NativeObj)
		if nat.Arity >= 0 && nat.Arity != argCount {
			return vm.runtimeError(stdlibErrors.Arity, errArity(nat.Name, nat.Arity, argCount))
		}
		args := make([]value.Value, argCount)
		copy(args, vm.stack[calleeIdx+1:calleeIdx+1+argCount])
		result, err := nat.Fn(vm, args)
		for i := calleeIdx; i < vm.sp; i++ {
			value.Release(vm.stack[i])
			vm.stack[i] = value.Value{}
		}
		vm.sp = calleeIdx
		if err != nil {
			return err
		}
		vm.push(result)
		return nil
	case value.KindBoundMethod:
		bm := value.HeapOf(callee).(*BoundMethodObj)
		return vm.callBound(calleeIdx, argCount, bm.Receiver, bm.Method)
	case value.KindClass:
		cls := value.HeapOf(callee).(*ClassObj)
		inst := NewInstance(cls)
		instVal := value.NewHeapValue(value.KindInstance, inst)
		if method, ok := cls.findMethod("init"); ok {
			return vm.callInit(calleeIdx, argCount, instVal, method)
		}
		for i := calleeIdx; i < vm.sp; i++ {
			value.Release(vm.stack[i])
			vm.stack[i] = value.Value{}
		}
		vm.sp = calleeIdx
		vm.push(instVal)
		return nil
	default:
		return vm.runtimeError(stdlibErrors.Type, "value is not callable")
	}
}

func errArity(name string, want, got int) string {
	return name + " expects " + itoa(want) + " arguments, got " + itoa(got)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func (vm *VM) shiftArgsRight(calleeIdx, argCount int) {
	for i := vm.sp; i > calleeIdx+1; i-- {
		vm.stack[i] = vm.stack[i-1]
	}
	vm.sp++
}

// callBound injects receiver as the implicit first argument of a bound
// method call (§4.6.6).
func (vm *VM) callBound(calleeIdx, argCount int, receiver, method value.Value) error {
	old := vm.stack[calleeIdx]
	vm.shiftArgsRight(calleeIdx, argCount)
	value.Retain(receiver)
	vm.stack[calleeIdx+1] = receiver
	value.Retain(method)
	value.Release(old)
	vm.stack[calleeIdx] = method
	return vm.callValue(calleeIdx, argCount+1)
}

// callInit threads a freshly allocated instance into its class's init
// method as the implicit receiver, then marks the resulting frame so its
// RETURN yields the instance instead of init's own return value.
func (vm *VM) callInit(calleeIdx, argCount int, instVal, method value.Value) error {
	old := vm.stack[calleeIdx]
	vm.shiftArgsRight(calleeIdx, argCount)
	vm.stack[calleeIdx+1] = instVal // transfers the creation reference
	value.Retain(method)
	value.Release(old)
	vm.stack[calleeIdx] = method
	if err := vm.callValue(calleeIdx, argCount+1); err != nil {
		return err
	}
	frame := vm.currentFrame()
	frame.isInit = true
	value.Retain(instVal)
	frame.receiver = instVal
	return nil
}

// --- aggregates ---

func (vm *VM) execGetIndex() error {
	idx := vm.pop()
	obj := vm.pop()
	defer func() {
		value.Release(obj)
		value.Release(idx)
	}()
	switch obj.Kind {
	case value.KindArray:
		if !isNumericKind(idx) {
			return vm.runtimeError(stdlibErrors.Type, "array index must be a number")
		}
		arr := value.HeapOf(obj).(*value.ArrayObj)
		i := numericToInt(idx)
		if i < 0 || i >= len(arr.Elements) {
			return vm.runtimeError(stdlibErrors.Index, "array index out of bounds")
		}
		v := arr.Elements[i]
		value.Retain(v)
		vm.push(v)
		return nil
	case value.KindString:
		if !isNumericKind(idx) {
			return vm.runtimeError(stdlibErrors.Type, "string index must be a number")
		}
		s := []rune(value.HeapOf(obj).(*value.StringObj).Value)
		i := numericToInt(idx)
		if i < 0 || i >= len(s) {
			return vm.runtimeError(stdlibErrors.Index, "string index out of bounds")
		}
		vm.push(value.NewString(string(s[i])))
		return nil
	case value.KindObject:
		if idx.Kind != value.KindString {
			return vm.runtimeError(stdlibErrors.Type, "object index must be a string")
		}
		o := value.HeapOf(obj).(*value.ObjectObj)
		v, ok := o.Get(value.HeapOf(idx).(*value.StringObj).Value)
		if !ok {
			vm.push(value.Undefined())
			return nil
		}
		value.Retain(v)
		vm.push(v)
		return nil
	}
	return vm.runtimeError(stdlibErrors.Type, "value is not indexable")
}

func numericToInt(v value.Value) int {
	if v.Kind == value.KindInt32 {
		return int(v.AsInt32())
	}
	return int(toFloat64(v))
}

func (vm *VM) execSetIndex() error {
	idx := vm.pop()
	obj := vm.pop()
	val := vm.pop()
	defer func() {
		value.Release(obj)
		value.Release(idx)
	}()
	switch obj.Kind {
	case value.KindArray:
		if !isNumericKind(idx) {
			value.Release(val)
			return vm.runtimeError(stdlibErrors.Type, "array index must be a number")
		}
		arr := value.HeapOf(obj).(*value.ArrayObj)
		i := numericToInt(idx)
		if i < 0 || i >= len(arr.Elements) {
			value.Release(val)
			return vm.runtimeError(stdlibErrors.Index, "array index out of bounds")
		}
		value.Release(arr.Elements[i])
		arr.Elements[i] = val
		return nil
	case value.KindObject:
		if idx.Kind != value.KindString {
			value.Release(val)
			return vm.runtimeError(stdlibErrors.Type, "object index must be a string")
		}
		o := value.HeapOf(obj).(*value.ObjectObj)
		o.Set(value.HeapOf(idx).(*value.StringObj).Value, val)
		value.Release(val)
		return nil
	}
	value.Release(val)
	return vm.runtimeError(stdlibErrors.Type, "value is not indexable")
}

func (vm *VM) execGetProperty(name string) error {
	obj := vm.pop()
	defer value.Release(obj)
	switch obj.Kind {
	case value.KindInstance:
		inst := value.HeapOf(obj).(*InstanceObj)
		if v, ok := inst.Fields[name]; ok {
			value.Retain(v)
			vm.push(v)
			return nil
		}
		if m, ok := inst.Class.findMethod(name); ok {
			bm := NewBoundMethod(obj, m)
			vm.push(value.NewHeapValue(value.KindBoundMethod, bm))
			return nil
		}
		return vm.runtimeError(stdlibErrors.Reference, "undefined property "+name)
	case value.KindObject:
		o := value.HeapOf(obj).(*value.ObjectObj)
		if v, ok := o.Get(name); ok {
			value.Retain(v)
			vm.push(v)
			return nil
		}
		vm.push(value.Undefined())
		return nil
	case value.KindArray:
		if name == "length" {
			vm.push(value.Int32(int32(len(value.HeapOf(obj).(*value.ArrayObj).Elements))))
			return nil
		}
		return vm.runtimeError(stdlibErrors.Reference, "undefined property "+name)
	case value.KindString:
		if name == "length" {
			vm.push(value.Int32(int32(len([]rune(value.HeapOf(obj).(*value.StringObj).Value)))))
			return nil
		}
		return vm.runtimeError(stdlibErrors.Reference, "undefined property "+name)
	case value.KindRange:
		r := value.HeapOf(obj).(*value.RangeObj)
		switch name {
		case "start":
			value.Retain(r.Start)
			vm.push(r.Start)
			return nil
		case "end":
			value.Retain(r.End)
			vm.push(r.End)
			return nil
		case "length":
			vm.push(bindNative(obj, "length", 0, nativeRangeLength))
			return nil
		case "contains":
			vm.push(bindNative(obj, "contains", 1, nativeRangeContains))
			return nil
		case "toArray":
			vm.push(bindNative(obj, "toArray", 0, nativeRangeToArray))
			return nil
		}
		return vm.runtimeError(stdlibErrors.Reference, "undefined property "+name)
	case value.KindIterator:
		switch name {
		case "hasNext":
			vm.push(bindNative(obj, "hasNext", 0, nativeIterHasNext))
			return nil
		case "next":
			vm.push(bindNative(obj, "next", 0, nativeIterNext))
			return nil
		case "isEmpty":
			vm.push(bindNative(obj, "isEmpty", 0, nativeIterIsEmpty))
			return nil
		case "toArray":
			vm.push(bindNative(obj, "toArray", 0, nativeIterToArray))
			return nil
		}
		return vm.runtimeError(stdlibErrors.Reference, "undefined property "+name)
	case value.KindClass:
		cls := value.HeapOf(obj).(*ClassObj)
		if m, ok := cls.Methods[name]; ok {
			value.Retain(m)
			vm.push(m)
			return nil
		}
		return vm.runtimeError(stdlibErrors.Reference, "undefined property "+name)
	}
	return vm.runtimeError(stdlibErrors.Type, "cannot read property "+name+" of "+value.TypeName(obj))
}

func (vm *VM) execSetProperty(name string) error {
	obj := vm.pop()
	val := vm.pop()
	defer value.Release(obj)
	switch obj.Kind {
	case value.KindInstance:
		inst := value.HeapOf(obj).(*InstanceObj)
		if old, ok := inst.Fields[name]; ok {
			value.Release(old)
		}
		inst.Fields[name] = val
		return nil
	case value.KindObject:
		o := value.HeapOf(obj).(*value.ObjectObj)
		o.Set(name, val)
		value.Release(val)
		return nil
	}
	value.Release(val)
	return vm.runtimeError(stdlibErrors.Type, "cannot set property "+name+" on "+value.TypeName(obj))
}

// --- ranges and iteration ---

func (vm *VM) execMakeRange(frame *callFrame) error {
	flags := vm.readByte(frame)
	exclusive := flags&bytecode.MakeRangeExclusive != 0
	hasStep := flags&bytecode.MakeRangeHasStep != 0
	var step value.Value
	if hasStep {
		step = vm.pop()
	} else {
		step = value.Null()
	}
	end := vm.pop()
	start := vm.pop()
	r := value.NewRange(start, end, exclusive, step)
	value.Release(start)
	value.Release(end)
	if hasStep {
		value.Release(step)
	}
	vm.push(r)
	return nil
}

func (vm *VM) makeIterator(src value.Value) (value.Value, error) {
	switch src.Kind {
	case value.KindArray:
		return value.NewArrayIterator(src), nil
	case value.KindRange:
		r := value.HeapOf(src).(*value.RangeObj)
		step := r.Step
		if step.Kind == value.KindNull {
			step = value.Int32(1)
			if compareNumeric(r.End, r.Start) < 0 {
				step = value.Int32(-1)
			}
		}
		direction := 1
		if compareNumeric(step, value.Int32(0)) < 0 {
			direction = -1
		}
		return value.NewRangeIterator(src, r.Start, step, r.Exclusive, direction), nil
	}
	return value.Value{}, vm.runtimeError(stdlibErrors.Type, "value is not iterable")
}

// iteratorHasNext reports whether it would yield another element without
// consuming one (the pure predicate backing both ITER_NEXT's exhaustion
// check and the hasNext()/isEmpty() iterator methods, §4.6.5).
func iteratorHasNext(it *value.IteratorObj) bool {
	switch it.KindOf {
	case value.IterArray:
		arr := value.HeapOf(it.Source).(*value.ArrayObj)
		return it.Index < len(arr.Elements)
	case value.IterRange:
		r := value.HeapOf(it.Source).(*value.RangeObj)
		cmp := compareNumeric(it.Cur, r.End)
		if it.Direction > 0 {
			if it.Exclusive {
				return cmp < 0
			}
			return cmp <= 0
		}
		if it.Exclusive {
			return cmp > 0
		}
		return cmp >= 0
	}
	return false
}

// iterNext advances it, returning (nextValue, true) or (zero, false) once
// exhausted (§4.6.5).
func iterNext(it *value.IteratorObj) (value.Value, bool) {
	if !iteratorHasNext(it) {
		return value.Value{}, false
	}
	switch it.KindOf {
	case value.IterArray:
		arr := value.HeapOf(it.Source).(*value.ArrayObj)
		v := arr.Elements[it.Index]
		it.Index++
		value.Retain(v)
		return v, true
	case value.IterRange:
		result := it.Cur
		value.Retain(result)
		if next, err := arith('+', it.Cur, it.Step); err == nil {
			value.Release(it.Cur)
			it.Cur = next
		}
		return result, true
	}
	return value.Value{}, false
}

// iteratorToArray drains it into a freshly allocated array, per toArray's
// consuming semantics (§4.6.5).
func iteratorToArray(it *value.IteratorObj) value.Value {
	var elems []value.Value
	for {
		v, ok := iterNext(it)
		if !ok {
			break
		}
		elems = append(elems, v)
	}
	arr := value.NewArray(elems)
	for _, e := range elems {
		value.Release(e)
	}
	return arr
}

// rangeContains implements Range.contains(v) (§4.6.5): v must be reachable
// from start by a whole number of steps and fall within [start, end] in the
// range's direction.
func rangeContains(r *value.RangeObj, v value.Value) bool {
	if !isNumericKind(v) {
		return false
	}
	step := r.Step
	if step.Kind == value.KindNull {
		step = value.Int32(1)
		if compareNumeric(r.End, r.Start) < 0 {
			step = value.Int32(-1)
		}
	}
	forward := compareNumeric(step, value.Int32(0)) >= 0
	var lo, hi bool
	if forward {
		lo = compareNumeric(v, r.Start) >= 0
		if r.Exclusive {
			hi = compareNumeric(v, r.End) < 0
		} else {
			hi = compareNumeric(v, r.End) <= 0
		}
	} else {
		hi = compareNumeric(v, r.Start) <= 0
		if r.Exclusive {
			lo = compareNumeric(v, r.End) > 0
		} else {
			lo = compareNumeric(v, r.End) >= 0
		}
	}
	if !lo || !hi {
		return false
	}
	diff, err := arith('-', v, r.Start)
	if err != nil {
		return false
	}
	mod, err := arith('%', diff, step)
	if err != nil {
		return false
	}
	return compareNumeric(mod, value.Int32(0)) == 0
}

// rangeLength counts the elements a range iteration would yield.
func rangeLength(r *value.RangeObj) int {
	step := r.Step
	if step.Kind == value.KindNull {
		step = value.Int32(1)
		if compareNumeric(r.End, r.Start) < 0 {
			step = value.Int32(-1)
		}
	}
	direction := 1
	if compareNumeric(step, value.Int32(0)) < 0 {
		direction = -1
	}
	cur := r.Start
	value.Retain(cur)
	defer value.Release(cur)
	n := 0
	for {
		it := &value.IteratorObj{KindOf: value.IterRange, Cur: cur, Step: step, Exclusive: r.Exclusive, Direction: direction}
		if !iteratorHasNext(it) {
			break
		}
		n++
		next, err := arith('+', cur, step)
		if err != nil {
			break
		}
		value.Release(cur)
		cur = next
		if n > 1<<24 {
			break // runaway guard; a well-formed range terminates long before this
		}
	}
	return n
}

// bindNative wraps fn as a zero-argument-as-seen-by-the-caller native
// method bound to receiver: callBound prepends receiver as native arg 0,
// so fn itself is registered with arity+1.
func bindNative(receiver value.Value, name string, arity int, fn NativeFn) value.Value {
	nat := NewNative(name, arity+1, fn)
	natVal := value.NewHeapValue(value.KindNative, nat)
	bm := NewBoundMethod(receiver, natVal)
	value.Release(natVal)
	return value.NewHeapValue(value.KindBoundMethod, bm)
}

func nativeIterHasNext(vm *VM, args []value.Value) (value.Value, error) {
	it := value.HeapOf(args[0]).(*value.IteratorObj)
	return value.Bool(iteratorHasNext(it)), nil
}

func nativeIterIsEmpty(vm *VM, args []value.Value) (value.Value, error) {
	it := value.HeapOf(args[0]).(*value.IteratorObj)
	return value.Bool(!iteratorHasNext(it)), nil
}

func nativeIterNext(vm *VM, args []value.Value) (value.Value, error) {
	it := value.HeapOf(args[0]).(*value.IteratorObj)
	v, ok := iterNext(it)
	if !ok {
		return value.Value{}, vm.runtimeError(stdlibErrors.Value, "next() called on an exhausted iterator")
	}
	return v, nil
}

func nativeIterToArray(vm *VM, args []value.Value) (value.Value, error) {
	it := value.HeapOf(args[0]).(*value.IteratorObj)
	return iteratorToArray(it), nil
}

func nativeRangeLength(vm *VM, args []value.Value) (value.Value, error) {
	r := value.HeapOf(args[0]).(*value.RangeObj)
	return value.Int32(int32(rangeLength(r))), nil
}

func nativeRangeContains(vm *VM, args []value.Value) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, vm.runtimeError(stdlibErrors.Arity, "contains expects 1 argument, got 0")
	}
	r := value.HeapOf(args[0]).(*value.RangeObj)
	return value.Bool(rangeContains(r, args[1])), nil
}

func nativeRangeToArray(vm *VM, args []value.Value) (value.Value, error) {
	it, err := vm.makeIterator(args[0])
	if err != nil {
		return value.Value{}, err
	}
	result := iteratorToArray(value.HeapOf(it).(*value.IteratorObj))
	value.Release(it)
	return result, nil
}

// --- classes ---

func (vm *VM) execMakeClass(frame *callFrame) error {
	nameIdx := vm.readU16(frame)
	methodCount := int(vm.readU16(frame))
	flags := vm.readByte(frame)
	hasSuper := flags&1 != 0

	type methodPair struct {
		name string
		fn   value.Value
	}
	methods := make([]methodPair, methodCount)
	for i := methodCount - 1; i >= 0; i-- {
		fnVal := vm.pop()
		nameVal := vm.pop()
		methods[i] = methodPair{value.ToDisplayString(nameVal), fnVal}
		value.Release(nameVal)
	}

	var super *ClassObj
	var superVal value.Value
	if hasSuper {
		superVal = vm.pop()
		if superVal.Kind != value.KindClass {
			return vm.runtimeError(stdlibErrors.Type, "superclass must be a class")
		}
		super = value.HeapOf(superVal).(*ClassObj)
	}

	fieldsVal := vm.pop()
	fieldsArr := value.HeapOf(fieldsVal).(*value.ArrayObj)
	fields := make([]string, len(fieldsArr.Elements))
	for i, e := range fieldsArr.Elements {
		fields[i] = value.ToDisplayString(e)
	}
	value.Release(fieldsVal)

	name := vm.constString(frame.chunk(), nameIdx)
	cls := NewClass(name, super, fields)
	if hasSuper {
		value.Release(superVal)
	}
	for _, p := range methods {
		cls.Methods[p.name] = p.fn
	}
	vm.push(value.NewHeapValue(value.KindClass, cls))
	return nil
}

// --- exceptions ---

// raiseValue unwinds to the innermost active handler and delivers v to its
// catch target, taking ownership of v. Returns false (leaving v untouched)
// if no handler is active.
func (vm *VM) raiseValue(v value.Value) bool {
	if len(vm.handlers) == 0 {
		return false
	}
	h := vm.handlers[len(vm.handlers)-1]
	vm.handlers = vm.handlers[:len(vm.handlers)-1]
	for len(vm.frames) > h.frameDepth {
		f := &vm.frames[len(vm.frames)-1]
		for _, cell := range f.openCells {
			cell.Close()
		}
		vm.frames = vm.frames[:len(vm.frames)-1]
	}
	for i := h.stackDepth; i < vm.sp; i++ {
		value.Release(vm.stack[i])
		vm.stack[i] = value.Value{}
	}
	vm.sp = h.stackDepth
	vm.push(v)
	vm.currentFrame().ip = h.target
	return true
}

// --- modules ---

func moduleAsObject(mod *ModuleObj) *value.ObjectObj {
	o := value.NewObject()
	for k, v := range mod.Exports {
		o.Set(k, v)
	}
	return o
}
