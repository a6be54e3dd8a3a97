// Package builtins installs the native global functions and native method
// tables a slate program sees at startup: the small core library
// (type/len/print/println) plus the domain-stack natives demonstrating
// native callables that hold Go-side resources behind opaque handles
// (db.go, net.go), grounded on the teacher's internal/database and
// internal/network packages.
package builtins

import (
	"slate/internal/value"
	"slate/internal/vm"
)

// Register installs every built-in global this module ships into v. Callers
// (cmd/slate, the REPL, tests) call this once before running any program.
func Register(v *vm.VM) {
	registerCore(v)
	registerDB(v)
	registerNet(v)
}

func define(v *vm.VM, name string, arity int, fn vm.NativeFn) {
	nat := vm.NewNative(name, arity, fn)
	nv := value.NewHeapValue(value.KindNative, nat)
	v.DefineGlobal(name, nv, false)
	value.Release(nv)
}
