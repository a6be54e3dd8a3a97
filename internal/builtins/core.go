package builtins

import (
	stdlibErrors "slate/internal/errors"
	"slate/internal/value"
	"slate/internal/vm"
)

// registerCore installs the small set of free functions the distilled core
// spec calls for directly: type() (§4.1 type_name), len(), and print
// family used to demonstrate native dispatch (§1 "built-in library
// functions beyond those needed to demonstrate dispatch" stays out of
// scope, so this list stays short).
func registerCore(v *vm.VM) {
	define(v, "type", 1, nativeType)
	define(v, "len", 1, nativeLen)
	define(v, "print", -1, nativePrint)
	define(v, "println", -1, nativePrintln)
}

func nativeType(vmm *vm.VM, args []value.Value) (value.Value, error) {
	return value.NewString(value.TypeName(args[0])), nil
}

func nativeLen(vmm *vm.VM, args []value.Value) (value.Value, error) {
	a := args[0]
	switch a.Kind {
	case value.KindArray:
		return value.Int32(int32(len(value.HeapOf(a).(*value.ArrayObj).Elements))), nil
	case value.KindString:
		return value.Int32(int32(len([]rune(value.HeapOf(a).(*value.StringObj).Value)))), nil
	case value.KindObject:
		return value.Int32(int32(len(value.HeapOf(a).(*value.ObjectObj).Keys))), nil
	}
	return value.Value{}, vmm.NewError(stdlibErrors.Type, "len() requires an array, string, or object")
}

func nativePrint(vmm *vm.VM, args []value.Value) (value.Value, error) {
	for i, a := range args {
		if i > 0 {
			vmm.Stdout(" ")
		}
		vmm.Stdout(value.ToDisplayString(a))
	}
	return value.Undefined(), nil
}

func nativePrintln(vmm *vm.VM, args []value.Value) (value.Value, error) {
	nativePrint(vmm, args)
	vmm.Stdout("\n")
	return value.Undefined(), nil
}
