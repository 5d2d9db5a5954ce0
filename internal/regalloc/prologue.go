package regalloc

import "github.com/x64cc/x64cc/internal/mir"

// insertPrologueEpilogue threads a function's calling-convention
// bookkeeping around its already-colored body: the frame kind decides
// whether a frame pointer is established at all, and every physical
// callee-saved register the allocator actually handed out gets pushed on
// entry and popped, in reverse order, before every return.
func insertPrologueEpilogue(mf *mir.MIRFunction, md MachineDescription, kind FrameKind, calleeSaved []PhysReg) {
	rbp := md.FramePointerRegister()
	rsp := md.StackPointerRegister()

	var prologue []mir.MInst
	switch kind {
	case FrameFull:
		prologue = append(prologue, mir.MInst{Op: mir.M_PUSH, Def: -1, Operands: []mir.MachineOperand{mir.Reg(rbp, 8)}})
		prologue = append(prologue, mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(rbp, 8), mir.Reg(rsp, 8)}})
		if mf.FrameSize > 0 {
			prologue = append(prologue, mir.MInst{Op: mir.M_SUB, Def: 0, Operands: []mir.MachineOperand{mir.Reg(rsp, 8), mir.Imm(int64(mf.FrameSize), 4)}})
		}
	case FrameMinimal:
		// Unconditional: Allocate has already folded the return-address
		// realignment (and any shadow space) into mf.FrameSize, so this
		// is never legitimately zero for a frame kind that exists
		// precisely because the function makes a call of its own.
		prologue = append(prologue, mir.MInst{Op: mir.M_SUB, Def: 0, Operands: []mir.MachineOperand{mir.Reg(rsp, 8), mir.Imm(int64(mf.FrameSize), 4)}})
	}
	for _, r := range calleeSaved {
		if r == rbp && kind == FrameFull {
			continue // already pushed above as part of establishing the frame
		}
		prologue = append(prologue, mir.MInst{Op: mir.M_PUSH, Def: -1, Operands: []mir.MachineOperand{mir.Reg(r, 8)}})
	}

	if len(mf.Blocks) > 0 {
		mf.Blocks[0].Insts = append(prologue, mf.Blocks[0].Insts...)
	}

	var epilogue []mir.MInst
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		r := calleeSaved[i]
		if r == rbp && kind == FrameFull {
			continue
		}
		epilogue = append(epilogue, mir.MInst{Op: mir.M_POP, Def: 0, Operands: []mir.MachineOperand{mir.Reg(r, 8)}})
	}
	switch kind {
	case FrameFull:
		epilogue = append(epilogue, mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(rsp, 8), mir.Reg(rbp, 8)}})
		epilogue = append(epilogue, mir.MInst{Op: mir.M_POP, Def: 0, Operands: []mir.MachineOperand{mir.Reg(rbp, 8)}})
	case FrameMinimal:
		epilogue = append(epilogue, mir.MInst{Op: mir.M_ADD, Def: 0, Operands: []mir.MachineOperand{mir.Reg(rsp, 8), mir.Imm(int64(mf.FrameSize), 4)}})
	}
	if len(epilogue) == 0 {
		return
	}

	for _, b := range mf.Blocks {
		n := len(b.Insts)
		if n == 0 || b.Insts[n-1].Op != mir.M_RET {
			continue
		}
		rewritten := make([]mir.MInst, 0, n+len(epilogue))
		rewritten = append(rewritten, b.Insts[:n-1]...)
		rewritten = append(rewritten, epilogue...)
		rewritten = append(rewritten, b.Insts[n-1])
		b.Insts = rewritten
	}
}
