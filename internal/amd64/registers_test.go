package amd64

import (
	"testing"

	"github.com/x64cc/x64cc/internal/mir"
)

func TestRegNameVariesByOperandSize(t *testing.T) {
	cases := []struct {
		size int
		want string
	}{
		{1, "al"}, {2, "ax"}, {4, "eax"}, {8, "rax"},
	}
	for _, c := range cases {
		if got := RegName(RAX, c.size); got != c.want {
			t.Fatalf("RegName(RAX, %d) = %q, want %q", c.size, got, c.want)
		}
	}
}

func TestRegNameExtendedRegister(t *testing.T) {
	if got := RegName(R9, 4); got != "r9d" {
		t.Fatalf("RegName(R9, 4) = %q, want r9d", got)
	}
}

func TestRegNameOutOfRangeReturnsPlaceholder(t *testing.T) {
	if got := RegName(mir.VReg(NumPhysRegs), 8); got != "?" {
		t.Fatalf("expected a placeholder for a non-physical register, got %q", got)
	}
}

func TestIsExtendedOnlyForR8ThroughR15(t *testing.T) {
	if isExtended(RAX) || isExtended(RDI) || isExtended(RBP) {
		t.Fatalf("expected the original 8 registers to not be extended")
	}
	if !isExtended(R8) || !isExtended(R15) {
		t.Fatalf("expected r8 and r15 to be extended")
	}
}

func TestEncodingLowRegisterHasNoExtensionBit(t *testing.T) {
	field, ext := encoding(RDX)
	if field != 2 || ext {
		t.Fatalf("expected field 2, ext false, got field %d, ext %v", field, ext)
	}
}

func TestEncodingExtendedRegisterReusesLowThreeBitsPlusExtensionBit(t *testing.T) {
	fieldR8, extR8 := encoding(R8)
	fieldRAX, extRAX := encoding(RAX)
	if fieldR8 != fieldRAX {
		t.Fatalf("expected r8's ModRM field to alias rax's (%d), got %d", fieldRAX, fieldR8)
	}
	if extRAX {
		t.Fatalf("rax must not require an extension bit")
	}
	if !extR8 {
		t.Fatalf("expected encoding(R8) to report ext=true")
	}
}
