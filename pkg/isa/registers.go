// Package isa describes the fixed register-based virtual machine that
// pkg/asmgen, pkg/regalloc and pkg/emitter all target: 64 general-purpose
// registers, a reserved non-allocatable subset, and a 12/18/24-bit
// immediate encoding. It has no dependency on pkg/ir so
// that the backend packages can be tested in isolation from the frontend.
package isa

import "fmt"

// NumRegisters is the VM's total general-purpose register file size.
const NumRegisters = 64

// Reserved registers occupy the low end of the register file; everything
// from NumReserved upward is available to the allocator. This mirrors the
// real machine's split between hardware/ABI registers and the allocatable
// pool.
const (
	RegZero Register = iota
	RegOne
	RegOverflow
	RegPC
	RegSP
	RegFP
	RegLocalsBase
	RegScratch
	RegCallReturnValue
	RegCallReturnAddress
	RegArg0
	RegArg1
	RegArg2
	RegArg3
	RegArg4
	RegArg5

	NumReserved = int(RegArg5) + 1
)

// NumAllocatableRegisters is K, the number of physical registers the
// allocator may assign: 48.
const NumAllocatableRegisters = NumRegisters - NumReserved

// NumArgRegisters is the count of fixed argument-passing registers in the
// calling convention.
const NumArgRegisters = int(RegArg5 - RegArg0 + 1)

// Register is a physical register index, 0..NumRegisters-1.
type Register int

func (r Register) IsReserved() bool { return int(r) < NumReserved }

func (r Register) IsAllocatable() bool { return int(r) >= NumReserved && int(r) < NumRegisters }

// ArgRegister returns the i-th argument-passing register (0-indexed),
// panicking if i is out of range — callers must check against
// NumArgRegisters first, matching the calling convention's fixed shape.
func ArgRegister(i int) Register {
	if i < 0 || i >= NumArgRegisters {
		panic(fmt.Sprintf("isa: argument index %d out of range [0,%d)", i, NumArgRegisters))
	}
	return RegArg0 + Register(i)
}

func (r Register) String() string {
	switch r {
	case RegZero:
		return "zero"
	case RegOne:
		return "one"
	case RegOverflow:
		return "of"
	case RegPC:
		return "pc"
	case RegSP:
		return "sp"
	case RegFP:
		return "fp"
	case RegLocalsBase:
		return "lb"
	case RegScratch:
		return "scratch"
	case RegCallReturnValue:
		return "ret"
	case RegCallReturnAddress:
		return "reta"
	}
	if r.IsReserved() {
		return fmt.Sprintf("arg%d", int(r-RegArg0))
	}
	if r.IsAllocatable() {
		return fmt.Sprintf("r%d", int(r))
	}
	return fmt.Sprintf("reg<%d>", int(r))
}
