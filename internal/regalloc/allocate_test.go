package regalloc_test

import (
	"testing"

	"github.com/x64cc/x64cc/internal/amd64"
	"github.com/x64cc/x64cc/internal/mir"
	"github.com/x64cc/x64cc/internal/regalloc"
)

// vregFunction builds "dst = a + b; ret dst" over three distinct virtual
// registers, more than SystemV's argument registers alone would need,
// forcing Allocate to actually run the coloring pass rather than trivially
// falling through with zero pressure.
func vregFunction() *mir.MIRFunction {
	a := mir.MinVirtualRegister
	b := mir.MinVirtualRegister + 1
	dst := mir.MinVirtualRegister + 2
	return &mir.MIRFunction{
		Name:     "vfn",
		NumVRegs: 3,
		Blocks: []*mir.MIRBlock{{
			Name: "entry",
			Insts: []mir.MInst{
				{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, 8), mir.Reg(a, 8)}},
				{Op: mir.M_ADD, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, 8), mir.Reg(b, 8)}},
				{Op: mir.M_RET, Def: -1, Operands: []mir.MachineOperand{mir.Reg(dst, 8)}},
			},
		}},
	}
}

func TestAllocateAssignsPhysicalRegistersToEveryVirtualRegister(t *testing.T) {
	mf := vregFunction()
	if err := regalloc.Allocate(mf, amd64.SystemV, true); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	for _, b := range mf.Blocks {
		for _, inst := range b.Insts {
			for _, o := range inst.Operands {
				if o.Kind == mir.OperandReg && o.Reg.IsVirtual() {
					t.Fatalf("expected every register operand to be physical after allocation, found virtual %v in %v", o.Reg, inst)
				}
			}
		}
	}
}

func TestAllocateLeafWithNoLocalsGetsNoFrame(t *testing.T) {
	mf := vregFunction()
	mf.IsLeaf = true
	if err := regalloc.Allocate(mf, amd64.SystemV, true); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if mf.FrameSize != 0 {
		t.Fatalf("expected a leaf function with no locals to need no frame, got size %d", mf.FrameSize)
	}
}

func TestAllocateMinimalFrameReservesEightBytesForCallAlignment(t *testing.T) {
	mf := vregFunction() // IsLeaf defaults to false: no locals, but not a leaf.
	if err := regalloc.Allocate(mf, amd64.SystemV, true); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	// System V has no shadow space, so a minimal frame with no locals
	// reserves exactly align16(0)+8 = 8 bytes to restore 16-byte stack
	// alignment for any call this function makes.
	if mf.FrameSize != 8 {
		t.Fatalf("expected a minimal frame with no locals to reserve 8 bytes, got %d", mf.FrameSize)
	}
}

func TestAllocateMicrosoftX64FoldsShadowSpaceIntoFrameSize(t *testing.T) {
	mf := vregFunction()
	if err := regalloc.Allocate(mf, amd64.MicrosoftX64, true); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	// align16(0+40)=48, then +8 for minimal-frame call alignment = 56.
	if mf.FrameSize != 56 {
		t.Fatalf("expected the Microsoft x64 shadow space folded into a minimal frame's reserve, got %d", mf.FrameSize)
	}
}

func TestAllocateRejectsEmptyRegisterPool(t *testing.T) {
	mf := vregFunction()
	if err := regalloc.Allocate(mf, emptyPoolDescription{}, true); err == nil {
		t.Fatalf("expected an error for a machine description with an empty register pool")
	}
}

type emptyPoolDescription struct{}

func (emptyPoolDescription) Name() string                         { return "empty" }
func (emptyPoolDescription) GeneralPurposePool() []regalloc.PhysReg { return nil }
func (emptyPoolDescription) ArgumentRegisters() []regalloc.PhysReg  { return nil }
func (emptyPoolDescription) ResultRegister() regalloc.PhysReg       { return 0 }
func (emptyPoolDescription) CallerSaved() []regalloc.PhysReg        { return nil }
func (emptyPoolDescription) CalleeSaved() []regalloc.PhysReg        { return nil }
func (emptyPoolDescription) ShadowSpaceBytes() int                  { return 0 }
func (emptyPoolDescription) StackAlignment() int                    { return 16 }
func (emptyPoolDescription) FramePointerRegister() regalloc.PhysReg  { return 0 }
func (emptyPoolDescription) StackPointerRegister() regalloc.PhysReg  { return 0 }
