// Command opcode-lint checks the virtual-machine opcode catalogue
// (pkg/isa) for duplicate opcode numbers or names.
package main

import (
	"fmt"
	"log"

	"vmc/pkg/isa"
)

func main() {
	ops := isa.Catalogue()
	seenOps := make(map[isa.Opcode]struct{})
	seenNames := make(map[string]struct{})
	for _, info := range ops {
		if _, ok := seenOps[info.Op]; ok {
			log.Fatalf("duplicate opcode %d", info.Op)
		}
		seenOps[info.Op] = struct{}{}
		if _, ok := seenNames[info.Name]; ok {
			log.Fatalf("duplicate opcode name %s", info.Name)
		}
		seenNames[info.Name] = struct{}{}
	}
	fmt.Printf("checked %d opcodes, no collisions detected\n", len(ops))
}
