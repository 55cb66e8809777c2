package isa

import "testing"

func TestEncodeRRRRoundTrip(t *testing.T) {
	w, err := EncodeRRR(ADD, Register(20), Register(21), Register(22))
	if err != nil {
		t.Fatalf("EncodeRRR: %v", err)
	}
	got := Opcode(w >> 24)
	if got != ADD {
		t.Fatalf("opcode field = %s, want ADD", got)
	}
	if a := Register((w >> 18) & 0x3F); a != 20 {
		t.Fatalf("rA field = %d, want 20", a)
	}
}

func TestEncodeRejectsWrongForm(t *testing.T) {
	if _, err := EncodeRRR(MOVI, 16, 17, 18); err == nil {
		t.Fatal("expected error encoding RI18-form opcode via EncodeRRR")
	}
}

func TestEncodeRRI12RejectsWrongImmediateWidth(t *testing.T) {
	imm18, _ := NewImmediate(Imm18, 10)
	if _, err := EncodeRRI12(LW, 16, 17, imm18); err == nil {
		t.Fatal("expected error passing an 18-bit immediate to an RRI12 opcode")
	}
}

func TestImmediateRangeChecked(t *testing.T) {
	if _, err := NewImmediate(Imm12, 1<<12); err == nil {
		t.Fatal("expected range error for value == 2^12")
	}
	if _, err := NewImmediate(Imm12, (1<<12)-1); err != nil {
		t.Fatalf("max in-range 12-bit value rejected: %v", err)
	}
}

func TestReservedVsAllocatable(t *testing.T) {
	if !RegZero.IsReserved() {
		t.Fatal("RegZero should be reserved")
	}
	if RegZero.IsAllocatable() {
		t.Fatal("RegZero should not be allocatable")
	}
	first := Register(NumReserved)
	if !first.IsAllocatable() {
		t.Fatalf("register %d should be allocatable", first)
	}
	if NumAllocatableRegisters != 48 {
		t.Fatalf("NumAllocatableRegisters = %d, want 48", NumAllocatableRegisters)
	}
}

func TestCatalogueHasNoDuplicates(t *testing.T) {
	seen := make(map[Opcode]bool)
	names := make(map[string]bool)
	for _, info := range Catalogue() {
		if seen[info.Op] {
			t.Fatalf("duplicate opcode value %d", info.Op)
		}
		seen[info.Op] = true
		if names[info.Name] {
			t.Fatalf("duplicate opcode name %s", info.Name)
		}
		names[info.Name] = true
	}
}
