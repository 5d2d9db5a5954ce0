package isel

import (
	"fmt"

	"github.com/x64cc/x64cc/internal/amd64"
	"github.com/x64cc/x64cc/internal/cgerr"
	"github.com/x64cc/x64cc/internal/ir"
	"github.com/x64cc/x64cc/internal/mir"
)

// arithOpcode maps an ir.Opcode to the mir.Opcode a register-register (or
// register-immediate) form of it selects to.
var arithOpcode = map[ir.Opcode]mir.Opcode{
	ir.OpAdd: mir.M_ADD,
	ir.OpSub: mir.M_SUB,
	ir.OpAnd: mir.M_AND,
	ir.OpOr:  mir.M_OR,
	ir.OpXor: mir.M_XOR,
}

// commutative marks opcodes where an immediate on the left may be
// swapped to the right so the register-immediate pattern still matches.
var commutative = map[ir.Opcode]bool{
	ir.OpAdd: true, ir.OpMul: true, ir.OpAnd: true, ir.OpOr: true, ir.OpXor: true,
}

var cmpToCond = map[ir.CompareKind]mir.CondCode{
	ir.CmpEq:  mir.CondE,
	ir.CmpNe:  mir.CondNE,
	ir.CmpSLt: mir.CondL,
	ir.CmpSLe: mir.CondLE,
	ir.CmpSGt: mir.CondG,
	ir.CmpSGe: mir.CondGE,
}

func (s *Selector) selectOne(inst *ir.Instruction) error {
	switch inst.Op {
	case ir.OpConst, ir.OpAlloca, ir.OpGlobalAddr, ir.OpFuncAddr:
		// Materialized lazily by operand()/memoryOperand() at each use
		// site; nothing to emit for the definition itself.
		return nil

	case ir.OpParam:
		dst := s.values[inst]
		phys := s.mf.ParamRegs[paramIndex(s.fn, inst)]
		s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, sizeOf(inst)), mir.Reg(phys, sizeOf(inst))}})
		return nil

	case ir.OpAdd, ir.OpSub, ir.OpAnd, ir.OpOr, ir.OpXor:
		return s.selectArith(inst)

	case ir.OpMul:
		return s.selectMul(inst)

	case ir.OpSDiv, ir.OpUDiv, ir.OpSRem, ir.OpURem:
		return s.selectDivRem(inst)

	case ir.OpShl, ir.OpLShr, ir.OpAShr:
		return s.selectShift(inst)

	case ir.OpNeg:
		return s.selectUnary(inst, mir.M_NEG)
	case ir.OpNot:
		return s.selectUnary(inst, mir.M_NOT)

	case ir.OpICmp:
		return s.selectCompare(inst)

	case ir.OpTrunc, ir.OpCopy:
		return s.selectMove(inst)
	case ir.OpZExt:
		return s.selectExtend(inst, mir.M_MOVZX)
	case ir.OpSExt:
		return s.selectExtend(inst, mir.M_MOVSX)

	case ir.OpLoad:
		return s.selectLoad(inst)
	case ir.OpStore:
		return s.selectStore(inst)

	case ir.OpCall:
		return s.selectCall(inst)

	case ir.OpBr:
		s.emit(mir.MInst{Op: mir.M_JMP, Def: -1, Label: blockLabel(s.blocks, inst.Targets[0])})
		return nil
	case ir.OpCondBr:
		return s.selectCondBr(inst)
	case ir.OpRet:
		return s.selectReturn(inst)
	case ir.OpUnreachable:
		return nil

	default:
		return fmt.Errorf("%w: opcode %v", cgerr.Unsupported, inst.Op)
	}
}

func paramIndex(fn *ir.Function, inst *ir.Instruction) int {
	for i, p := range fn.Params {
		if p == inst {
			return i
		}
	}
	return 0
}

func blockLabel(blocks map[*ir.BasicBlock]*mir.MIRBlock, b *ir.BasicBlock) string {
	return blocks[b].Name
}

// selectArith handles the commutative/near-commutative binary ops that
// have a direct register-immediate encoding. Pattern order: try folding
// an in-range immediate operand first (the "longer", more specific
// match), falling back to the register-register form.
func (s *Selector) selectArith(inst *ir.Instruction) error {
	op := arithOpcode[inst.Op]
	dst := s.values[inst]
	size := sizeOf(inst)
	l, r := inst.Operands[0], inst.Operands[1]

	if commutative[inst.Op] {
		if c, ok := constOperand(l); ok && fitsInt32(c) {
			l, r = r, l
		}
	}

	lo := s.operand(l)
	s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), lo}})

	if c, ok := constOperand(r); ok && fitsInt32(c) {
		s.emit(mir.MInst{Op: op, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), mir.Imm(c, size)}})
		return nil
	}

	ro := s.operand(r)
	s.emit(mir.MInst{Op: op, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), ro}})
	return nil
}

// selectMul always goes through IMUL reg,reg (or reg,reg,imm — modeled
// here as mov+imul for uniformity with the other binary ops); it does
// not clobber RDX the way DIV/IDIV do, so it needs no special register
// pinning.
func (s *Selector) selectMul(inst *ir.Instruction) error {
	dst := s.values[inst]
	size := sizeOf(inst)
	lo := s.operand(inst.Operands[0])
	s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), lo}})
	ro := s.operand(inst.Operands[1])
	s.emit(mir.MInst{Op: mir.M_IMUL, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), ro}})
	return nil
}

// selectDivRem pins the dividend into RAX, sign/zero-extends into RDX,
// and reads the quotient from RAX or the remainder from RDX; both halves
// of the pair are clobbered regardless of which one the instruction
// wants, which the allocator's opcode-interference pass accounts for via
// Clobbers.
func (s *Selector) selectDivRem(inst *ir.Instruction) error {
	dst := s.values[inst]
	size := sizeOf(inst)
	signed := inst.Op == ir.OpSDiv || inst.Op == ir.OpSRem
	wantsRemainder := inst.Op == ir.OpSRem || inst.Op == ir.OpURem

	num := s.operand(inst.Operands[0])
	den := s.operand(inst.Operands[1])
	if den.Kind == mir.OperandImm {
		// idiv/div only encode a register or memory divisor.
		tmp := s.freshVReg()
		s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(tmp, size), den}})
		den = mir.Reg(tmp, size)
	}

	s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(amd64.RAX, size), num}})
	if signed {
		s.emit(mir.MInst{Op: mir.M_CQO, Def: -1, Operands: []mir.MachineOperand{mir.Reg(amd64.RDX, size), mir.Reg(amd64.RAX, size)}})
	} else {
		s.emit(mir.MInst{Op: mir.M_XOR, Def: 0, Operands: []mir.MachineOperand{mir.Reg(amd64.RDX, size), mir.Reg(amd64.RDX, size)}})
	}

	op := mir.M_DIV
	if signed {
		op = mir.M_IDIV
	}
	s.emit(mir.MInst{Op: op, Def: -1, Operands: []mir.MachineOperand{den}, Clobbers: []mir.VReg{amd64.RAX, amd64.RDX}})

	result := amd64.RAX
	if wantsRemainder {
		result = amd64.RDX
	}
	s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), mir.Reg(result, size)}})
	return nil
}

// selectShift pins the shift count into CL, since x86-64 only encodes a
// register shift count through CL.
func (s *Selector) selectShift(inst *ir.Instruction) error {
	dst := s.values[inst]
	size := sizeOf(inst)
	var op mir.Opcode
	switch inst.Op {
	case ir.OpShl:
		op = mir.M_SHL
	case ir.OpLShr:
		op = mir.M_SHR
	default:
		op = mir.M_SAR
	}

	lo := s.operand(inst.Operands[0])
	s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), lo}})

	if c, ok := constOperand(inst.Operands[1]); ok && c >= 0 && c < 64 {
		s.emit(mir.MInst{Op: op, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), mir.Imm(c, 1)}})
		return nil
	}

	ro := s.operand(inst.Operands[1])
	s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(amd64.RCX, 1), ro}})
	s.emit(mir.MInst{Op: op, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), mir.Reg(amd64.RCX, 1)}, Clobbers: []mir.VReg{amd64.RCX}})
	return nil
}

func (s *Selector) selectUnary(inst *ir.Instruction, op mir.Opcode) error {
	dst := s.values[inst]
	size := sizeOf(inst)
	xo := s.operand(inst.Operands[0])
	s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), xo}})
	s.emit(mir.MInst{Op: op, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size)}})
	return nil
}

func (s *Selector) selectCompare(inst *ir.Instruction) error {
	dst := s.values[inst]
	lo := s.operand(inst.Operands[0])
	ro := s.operand(inst.Operands[1])
	s.emit(mir.MInst{Op: mir.M_CMP, Def: -1, Operands: []mir.MachineOperand{lo, ro}})
	s.emit(mir.MInst{Op: mir.M_SETCC, Def: 0, Cond: cmpToCond[inst.Cmp], Operands: []mir.MachineOperand{mir.Reg(dst, 1)}})
	return nil
}

func (s *Selector) selectMove(inst *ir.Instruction) error {
	dst := s.values[inst]
	size := sizeOf(inst)
	xo := s.operand(inst.Operands[0])
	s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), xo}})
	return nil
}

func (s *Selector) selectExtend(inst *ir.Instruction, op mir.Opcode) error {
	dst := s.values[inst]
	size := sizeOf(inst)
	xo := s.operand(inst.Operands[0])
	s.emit(mir.MInst{Op: op, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), xo}})
	return nil
}

func (s *Selector) selectLoad(inst *ir.Instruction) error {
	dst := s.values[inst]
	size := sizeOf(inst)
	addr := inst.Operands[0]
	mem := s.memoryOperand(addr, size)
	s.emit(mir.MInst{Op: mir.M_LOAD, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), mem}})
	return nil
}

func (s *Selector) selectStore(inst *ir.Instruction) error {
	addr, val := inst.Operands[0], inst.Operands[1]
	size := sizeOf(val)
	mem := s.memoryOperand(addr, size)
	vo := s.operand(val)
	s.emit(mir.MInst{Op: mir.M_STORE, Def: -1, Operands: []mir.MachineOperand{mem, vo}})
	return nil
}

func (s *Selector) selectCall(inst *ir.Instruction) error {
	argRegs := s.md.ArgumentRegisters()
	args := inst.Operands
	indirect := inst.Callee == ""
	if indirect {
		args = inst.Operands[1:]
	}
	if len(args) > len(argRegs) {
		return fmt.Errorf("%w: call has %d arguments, only %d argument registers available", cgerr.Unsupported, len(args), len(argRegs))
	}
	for i, a := range args {
		ao := s.operand(a)
		s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(argRegs[i], sizeOf(a)), ao}})
	}

	var target mir.MachineOperand
	if indirect {
		target = s.operand(inst.Operands[0])
	} else {
		target = mir.FuncOperand(inst.Callee)
	}
	s.emit(mir.MInst{Op: mir.M_CALL, Def: -1, Operands: []mir.MachineOperand{target}, Clobbers: s.md.CallerSaved()})

	if producesValue(inst) {
		dst := s.values[inst]
		size := sizeOf(inst)
		s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, size), mir.Reg(s.md.ResultRegister(), size)}})
	}
	return nil
}

func (s *Selector) selectCondBr(inst *ir.Instruction) error {
	cond := inst.Operands[0]
	if cond.Op == ir.OpICmp {
		lo := s.operand(cond.Operands[0])
		ro := s.operand(cond.Operands[1])
		s.emit(mir.MInst{Op: mir.M_CMP, Def: -1, Operands: []mir.MachineOperand{lo, ro}})
		s.emit(mir.MInst{Op: mir.M_JCC, Def: -1, Cond: cmpToCond[cond.Cmp], Label: blockLabel(s.blocks, inst.Targets[0])})
	} else {
		co := s.operand(cond)
		s.emit(mir.MInst{Op: mir.M_TEST, Def: -1, Operands: []mir.MachineOperand{co, co}})
		s.emit(mir.MInst{Op: mir.M_JCC, Def: -1, Cond: mir.CondNE, Label: blockLabel(s.blocks, inst.Targets[0])})
	}
	s.emit(mir.MInst{Op: mir.M_JMP, Def: -1, Label: blockLabel(s.blocks, inst.Targets[1])})
	return nil
}

func (s *Selector) selectReturn(inst *ir.Instruction) error {
	if len(inst.Operands) == 1 {
		vo := s.operand(inst.Operands[0])
		size := sizeOf(inst.Operands[0])
		s.emit(mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(s.md.ResultRegister(), size), vo}})
	}
	s.emit(mir.MInst{Op: mir.M_RET, Def: -1})
	return nil
}
