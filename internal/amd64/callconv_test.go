package amd64

import (
	"testing"

	"github.com/x64cc/x64cc/internal/regalloc"
)

func TestSystemVArgumentOrder(t *testing.T) {
	want := []regalloc.PhysReg{RDI, RSI, RDX, RCX, R8, R9}
	got := SystemV.ArgumentRegisters()
	if len(got) != len(want) {
		t.Fatalf("expected %d argument registers, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("argument register %d: expected %v, got %v", i, w, got[i])
		}
	}
}

func TestMicrosoftX64ArgumentOrder(t *testing.T) {
	want := []regalloc.PhysReg{RCX, RDX, R8, R9}
	got := MicrosoftX64.ArgumentRegisters()
	if len(got) != len(want) {
		t.Fatalf("expected %d argument registers, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("argument register %d: expected %v, got %v", i, w, got[i])
		}
	}
}

func TestSystemVHasNoShadowSpace(t *testing.T) {
	if SystemV.ShadowSpaceBytes() != 0 {
		t.Fatalf("expected System V to reserve no shadow space, got %d", SystemV.ShadowSpaceBytes())
	}
}

func TestMicrosoftX64ReservesShadowSpace(t *testing.T) {
	if got := MicrosoftX64.ShadowSpaceBytes(); got != 40 {
		t.Fatalf("expected 40 bytes of shadow space (4 arg slots + return address), got %d", got)
	}
}

func TestSystemVTreatsSiDiAsArgumentsNotCalleeSaved(t *testing.T) {
	for _, r := range SystemV.CalleeSaved() {
		if r == RSI || r == RDI {
			t.Fatalf("RSI/RDI are argument registers under System V, not callee-saved")
		}
	}
}

func TestMicrosoftX64TreatsSiDiAsCalleeSaved(t *testing.T) {
	found := map[regalloc.PhysReg]bool{}
	for _, r := range MicrosoftX64.CalleeSaved() {
		found[r] = true
	}
	if !found[RSI] || !found[RDI] {
		t.Fatalf("expected RSI and RDI to be callee-saved under Microsoft x64")
	}
}

func TestBothConventionsUseRaxForTheResult(t *testing.T) {
	if SystemV.ResultRegister() != RAX || MicrosoftX64.ResultRegister() != RAX {
		t.Fatalf("expected both conventions to return values in RAX")
	}
}

func TestBothConventionsAlign16(t *testing.T) {
	if SystemV.StackAlignment() != 16 || MicrosoftX64.StackAlignment() != 16 {
		t.Fatalf("expected a 16-byte stack alignment requirement under both conventions")
	}
}
