package regalloc

import (
	"testing"

	"github.com/x64cc/x64cc/internal/mir"
)

// chainFunction builds two blocks, entry -> exit, where entry defines a
// vreg entirely consumed in exit, so liveness must carry it across the
// edge: entry's live-out and exit's live-in both contain a, but a never
// appears in exit's live-out since exit's M_RET is its last use.
func chainFunction() *mir.MIRFunction {
	a := mir.MinVirtualRegister
	entry := &mir.MIRBlock{
		Name: "entry",
		Insts: []mir.MInst{
			{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(a, 8), mir.Imm(1, 8)}},
			{Op: mir.M_JMP, Def: -1, Label: "exit"},
		},
	}
	exit := &mir.MIRBlock{
		Name: "exit",
		Insts: []mir.MInst{
			{Op: mir.M_RET, Def: -1, Operands: []mir.MachineOperand{mir.Reg(a, 8)}},
		},
	}
	entry.Succs = []*mir.MIRBlock{exit}
	exit.Preds = []*mir.MIRBlock{entry}
	return &mir.MIRFunction{Name: "chain", NumVRegs: 1, Blocks: []*mir.MIRBlock{entry, exit}}
}

func TestComputeLivenessCarriesValueAcrossBlockBoundary(t *testing.T) {
	mf := chainFunction()
	lv := computeLiveness(mf)

	a := mir.MinVirtualRegister
	if !lv.out[mf.Blocks[0]].has(a) {
		t.Fatalf("expected entry's live-out to contain the value passed to exit")
	}
	if !lv.in[mf.Blocks[1]].has(a) {
		t.Fatalf("expected exit's live-in to contain the value it consumes")
	}
	if lv.out[mf.Blocks[1]].has(a) {
		t.Fatalf("did not expect anything live past the function's only return")
	}
}

func TestComputeLivenessDeadDefinitionDoesNotEscapeItsBlock(t *testing.T) {
	a := mir.MinVirtualRegister
	dead := mir.MinVirtualRegister + 1
	entry := &mir.MIRBlock{
		Insts: []mir.MInst{
			{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dead, 8), mir.Imm(9, 8)}},
			{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(a, 8), mir.Imm(1, 8)}},
			{Op: mir.M_RET, Def: -1, Operands: []mir.MachineOperand{mir.Reg(a, 8)}},
		},
	}
	mf := &mir.MIRFunction{NumVRegs: 2, Blocks: []*mir.MIRBlock{entry}}
	lv := computeLiveness(mf)
	if lv.in[entry].has(dead) {
		t.Fatalf("a value defined and never used should never be live-in")
	}
}

func TestVsetUnionReportsWhetherAnythingChanged(t *testing.T) {
	a, b := vset{1: struct{}{}}, vset{1: struct{}{}, 2: struct{}{}}
	if changed := a.union(b); !changed {
		t.Fatalf("expected union to report a change when it adds a new member")
	}
	if changed := a.union(b); changed {
		t.Fatalf("expected a repeated union to report no change")
	}
}
