package regalloc

import (
	"testing"

	"vmc/pkg/asmgen"
	"vmc/pkg/isa"
)

// chain builds a function computing a long dependency chain of ADD
// instructions over n virtual registers that are all simultaneously live
// at the final use, forcing every pair to interfere. v0 is loaded with an
// immediate; v1..v(n-1) are each v(i) = v(i-1) + v(i-1); all n registers
// are then summed into one RET value so none can be reused early.
func chain(n int) *asmgen.Func {
	fn := &asmgen.Func{Name: "chain"}
	regs := make([]asmgen.Reg, n)
	for i := 0; i < n; i++ {
		regs[i] = asmgen.VR(fn.NewVReg())
	}

	fn.Ops = append(fn.Ops, asmgen.Op{Org: asmgen.OrgLabel, Target: fn.EntryLabel})
	imm, _ := isa.NewImmediate(isa.Imm18, 1)
	fn.Ops = append(fn.Ops, asmgen.Op{Org: asmgen.OrgNone, Opcode: isa.MOVI, Imm: &imm, Operands: []asmgen.Reg{regs[0]}})
	for i := 1; i < n; i++ {
		fn.Ops = append(fn.Ops, asmgen.Op{Org: asmgen.OrgNone, Opcode: isa.ADD, Operands: []asmgen.Reg{regs[i], regs[i-1], regs[i-1]}})
	}

	acc := fn.NewVReg()
	accReg := asmgen.VR(acc)
	fn.Ops = append(fn.Ops, asmgen.Op{Org: asmgen.OrgNone, Opcode: isa.MOVE, Operands: []asmgen.Reg{accReg, regs[0]}})
	for i := 1; i < n; i++ {
		next := asmgen.VR(fn.NewVReg())
		fn.Ops = append(fn.Ops, asmgen.Op{Org: asmgen.OrgNone, Opcode: isa.ADD, Operands: []asmgen.Reg{next, accReg, regs[i]}})
		accReg = next
	}
	fn.Ops = append(fn.Ops, asmgen.Op{Org: asmgen.OrgNone, Opcode: isa.MOVE, Operands: []asmgen.Reg{asmgen.PR(isa.RegCallReturnValue), accReg}})
	fn.Ops = append(fn.Ops, asmgen.Op{Org: asmgen.OrgNone, Opcode: isa.RET})
	return fn
}

func TestAllocateColorsInterferingRegistersDistinctly(t *testing.T) {
	fn := chain(6)
	if err := Allocate(fn, 4); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	// Every MOVE/ADD destination must have landed on a physical register,
	// and the interference graph built before coloring said every pair of
	// the first six chain registers is live simultaneously at the final
	// sum, so property 3 requires no two of their assigned physicals to
	// collide when they are still both read afterward.
	seen := map[isa.Register]bool{}
	for _, op := range fn.Ops {
		for i, r := range op.Operands {
			if r.Virtual {
				t.Fatalf("unrewritten virtual operand remains: op=%+v idx=%d", op, i)
			}
		}
	}
	// Reuse is fine once a register's last use has passed; what must never
	// happen is a collision between registers simultaneously live. The MOVI
	// and the five chain ADDs define the six chain registers, all live
	// together at the final sum, so their physical registers must differ.
	defs := 0
	for _, op := range fn.Ops {
		if defs == 6 {
			break
		}
		if op.Org != asmgen.OrgNone || (op.Opcode != isa.MOVI && op.Opcode != isa.ADD) {
			continue
		}
		r := op.Operands[0].Phys
		if seen[r] {
			t.Fatalf("simultaneously live chain registers share physical register %s", r)
		}
		seen[r] = true
		defs++
	}
}

func TestAllocateIsDeterministicAcrossRuns(t *testing.T) {
	fn1 := chain(10)
	fn2 := chain(10)

	if err := Allocate(fn1, 4); err != nil {
		t.Fatalf("Allocate fn1: %v", err)
	}
	if err := Allocate(fn2, 4); err != nil {
		t.Fatalf("Allocate fn2: %v", err)
	}

	if len(fn1.Ops) != len(fn2.Ops) {
		t.Fatalf("op count diverged: %d vs %d", len(fn1.Ops), len(fn2.Ops))
	}
	for i := range fn1.Ops {
		a, b := fn1.Ops[i], fn2.Ops[i]
		if a.Opcode != b.Opcode || a.Org != b.Org {
			t.Fatalf("op %d diverged: %+v vs %+v", i, a, b)
		}
		for j := range a.Operands {
			if a.Operands[j] != b.Operands[j] {
				t.Fatalf("op %d operand %d diverged: %+v vs %+v", i, j, a.Operands[j], b.Operands[j])
			}
		}
	}
}

func TestAllocateConvergesWithManyLongLivedRegisters(t *testing.T) {
	// 200 long-lived virtual registers, comfortably more than the 48
	// allocatable physical registers, forces at least one spill round.
	fn := chain(200)
	if err := Allocate(fn, 4); err != nil {
		t.Fatalf("Allocate did not converge within 4 rounds: %v", err)
	}
	for _, op := range fn.Ops {
		for _, r := range op.Operands {
			if r.Virtual {
				t.Fatalf("virtual register survived allocation: %+v", op)
			}
		}
	}

	var loads, stores int
	for _, op := range fn.Ops {
		if op.Org != asmgen.OrgNone {
			continue
		}
		switch op.Opcode {
		case isa.LW:
			loads++
		case isa.SW:
			stores++
		}
	}
	if loads == 0 || stores == 0 {
		t.Fatalf("expected spill traffic for 200 live registers against %d allocatable, got loads=%d stores=%d",
			isa.NumAllocatableRegisters, loads, stores)
	}
}

func TestAllocateFailsAfterMaxRounds(t *testing.T) {
	fn := chain(200)
	if err := Allocate(fn, 0); err == nil {
		t.Fatalf("expected allocation error with zero rounds budget")
	}
}
