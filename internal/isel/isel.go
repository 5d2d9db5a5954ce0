// Package isel selects x86-64 mir.MInst sequences for each ir.Instruction
// using a table of patterns tried in most-specific-first order, lowers
// phi nodes into parallel copies at the end of each predecessor, and
// materializes call argument shuffles against a regalloc.MachineDescription.
package isel

import (
	"fmt"
	"math"

	"github.com/x64cc/x64cc/internal/cgerr"
	"github.com/x64cc/x64cc/internal/ir"
	"github.com/x64cc/x64cc/internal/mir"
	"github.com/x64cc/x64cc/internal/regalloc"
)

// Selector holds the per-function state a selection pass threads through
// its pattern callbacks: the memoized ir.Instruction -> mir.VReg mapping
// (so a value used twice is only selected once), the block being
// appended to, and the target's calling convention.
type Selector struct {
	fn       *ir.Function
	mf       *mir.MIRFunction
	md       regalloc.MachineDescription
	values   map[*ir.Instruction]mir.VReg
	frameIDs map[*ir.Instruction]int
	blocks   map[*ir.BasicBlock]*mir.MIRBlock
	cur      *mir.MIRBlock
	nextVReg mir.VReg
}

// Select lowers fn into a MIRFunction for the given calling convention.
func Select(fn *ir.Function, md regalloc.MachineDescription) (*mir.MIRFunction, error) {
	if err := fn.Verify(); err != nil {
		return nil, err
	}

	s := &Selector{
		fn:       fn,
		mf:       &mir.MIRFunction{Name: fn.Name, IsLeaf: fn.Leaf},
		md:       md,
		values:   make(map[*ir.Instruction]mir.VReg),
		frameIDs: make(map[*ir.Instruction]int),
		blocks:   make(map[*ir.BasicBlock]*mir.MIRBlock),
		nextVReg: mir.MinVirtualRegister,
	}

	for _, b := range fn.Blocks {
		mb := &mir.MIRBlock{Name: fmt.Sprintf("%s.%d", b.Name, b.ID)}
		s.blocks[b] = mb
		s.mf.Blocks = append(s.mf.Blocks, mb)
	}
	for _, b := range fn.Blocks {
		mb := s.blocks[b]
		for _, pred := range b.Preds {
			mb.Preds = append(mb.Preds, s.blocks[pred])
		}
		for _, succ := range b.Succs {
			mb.Succs = append(mb.Succs, s.blocks[succ])
		}
	}

	// Pre-allocate a vreg for every value-producing instruction so
	// operand lookups succeed regardless of visitation order (needed for
	// loop-carried phi arguments defined later in program order than
	// their use).
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			if inst.Op == ir.OpAlloca {
				id := len(s.mf.FrameSlots)
				s.mf.FrameSlots = append(s.mf.FrameSlots, mir.FrameSlot{Size: inst.AllocSize, Align: inst.AllocAlign})
				s.frameIDs[inst] = id
			}
			if producesValue(inst) {
				s.values[inst] = s.freshVReg()
			}
		}
	}

	argRegs := md.ArgumentRegisters()
	for i, p := range fn.Params {
		if i >= len(argRegs) {
			return nil, fmt.Errorf("%w: function %q has more than %d parameters", cgerr.Unsupported, fn.Name, len(argRegs))
		}
		s.mf.ParamRegs = append(s.mf.ParamRegs, argRegs[i])
		_ = p
	}
	s.mf.NumParams = len(fn.Params)

	for _, b := range fn.Blocks {
		s.cur = s.blocks[b]
		for i, inst := range b.Instructions {
			if inst.Op == ir.OpPhi {
				continue // resolved by lowerPhis below, once every block's copies can be placed
			}
			if err := s.selectOne(inst); err != nil {
				return nil, fmt.Errorf("isel: function %q: instruction %d: %w", fn.Name, i, err)
			}
		}
	}

	if err := s.lowerPhis(); err != nil {
		return nil, err
	}

	s.mf.NumVRegs = int(s.nextVReg - mir.MinVirtualRegister)
	return s.mf, nil
}

func producesValue(inst *ir.Instruction) bool {
	switch inst.Op {
	case ir.OpBr, ir.OpCondBr, ir.OpRet, ir.OpUnreachable, ir.OpStore:
		return false
	}
	if inst.Type == nil {
		return false
	}
	if _, ok := inst.Type.(interface{ SizeOf() int }); ok {
		return inst.Type.SizeOf() > 0 || inst.Op == ir.OpAlloca
	}
	return true
}

func (s *Selector) freshVReg() mir.VReg {
	v := s.nextVReg
	s.nextVReg++
	return v
}

func (s *Selector) emit(inst mir.MInst) {
	s.cur.Insts = append(s.cur.Insts, inst)
}

func sizeOf(inst *ir.Instruction) int {
	if inst.Type == nil {
		return 8
	}
	n := inst.Type.SizeOf()
	if n == 0 {
		return 8
	}
	if n == 3 {
		return 4
	}
	if n > 8 {
		return 8
	}
	return n
}

func fitsInt32(v int64) bool { return v >= math.MinInt32 && v <= math.MaxInt32 }

// operand resolves inst's already-selected value into a MachineOperand
// suitable for use as a register source; for an alloca or global address
// used as a first-class value, it materializes the address via M_LEA.
func (s *Selector) operand(inst *ir.Instruction) mir.MachineOperand {
	size := sizeOf(inst)
	switch inst.Op {
	case ir.OpConst:
		return mir.Imm(inst.ConstValue, size)
	case ir.OpAlloca:
		dst := s.values[inst]
		s.emit(mir.MInst{Op: mir.M_LEA, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, 8), mir.FrameMem(s.frameIDs[inst], 0, 8)}})
		return mir.Reg(dst, 8)
	case ir.OpGlobalAddr:
		dst := s.values[inst]
		s.emit(mir.MInst{Op: mir.M_LEA, Def: 0, Operands: []mir.MachineOperand{mir.Reg(dst, 8), mir.RIPMem(inst.Name, 8)}})
		return mir.Reg(dst, 8)
	case ir.OpFuncAddr:
		return mir.FuncOperand(inst.Name)
	default:
		return mir.Reg(s.values[inst], size)
	}
}

// memoryOperand resolves the address inst points at directly into a
// mir.MachineOperand memory operand, skipping the LEA the generic
// operand() path would emit for a plain load/store through an alloca or
// global — the pattern-table equivalent of a fused "mov [rbp-8], reg"
// addressing-mode match instead of "lea; mov [reg], reg".
func (s *Selector) memoryOperand(addr *ir.Instruction, size int) mir.MachineOperand {
	switch addr.Op {
	case ir.OpAlloca:
		return mir.FrameMem(s.frameIDs[addr], 0, size)
	case ir.OpGlobalAddr:
		return mir.RIPMem(addr.Name, size)
	case ir.OpAdd:
		// base + constant offset, produced by MemberExpr lowering.
		if len(addr.Operands) == 2 {
			if c, ok := constOperand(addr.Operands[1]); ok && fitsInt32(c) {
				base := addr.Operands[0]
				if base.Op == ir.OpAlloca {
					return mir.FrameMem(s.frameIDs[base], int32(c), size)
				}
				if base.Op == ir.OpGlobalAddr {
					return mir.GlobalOperand(base.Name, int32(c))
				}
				return mir.Mem(s.values[base], int32(c), size)
			}
		}
	}
	return mir.Mem(s.values[addr], 0, size)
}

func constOperand(inst *ir.Instruction) (int64, bool) {
	if inst.Op == ir.OpConst {
		return inst.ConstValue, true
	}
	return 0, false
}

type pendingCopy struct {
	dst mir.VReg
	tmp mir.VReg
	sz  int
}

// lowerPhis resolves every OpPhi left behind by the main selection loop
// into parallel copies inserted just before each predecessor block's
// already-selected terminator (M_JMP/M_JCC), one M_MOV-into-temporary per
// phi per predecessor followed by one M_COPY per phi writing its
// destination vreg from that temporary. Reading every source into a fresh
// temporary before writing any phi destination means a cyclic rotation
// between phis (dst of one phi is the source of another, and vice versa)
// resolves correctly instead of one copy clobbering a value a sibling
// copy still needs.
func (s *Selector) lowerPhis() error {
	for _, b := range s.fn.Blocks {
		phis := b.Phis()
		if len(phis) == 0 {
			continue
		}
		mb := s.blocks[b]
		for _, pred := range b.Preds {
			mpred := s.blocks[pred]

			// A predecessor with more than one successor (the taken and
			// fallthrough arms of a condbr) cannot host this edge's
			// copies directly: they would also run on the other arm.
			// Split the edge with a fresh block that only this edge
			// reaches.
			dest := mpred
			if len(pred.Succs) > 1 {
				dest = s.splitCriticalEdge(mpred, mb)
			}

			var copies []pendingCopy
			for _, phi := range phis {
				var srcInst *ir.Instruction
				for i, p := range phi.PhiIncoming {
					if p == pred {
						srcInst = phi.Operands[i]
						break
					}
				}
				if srcInst == nil {
					return fmt.Errorf("%w: phi in block %q has no incoming value from predecessor %q", cgerr.Invariant, b.Name, pred.Name)
				}

				size := sizeOf(phi)
				savedCur := s.cur
				s.cur = dest
				src := s.operand(srcInst)
				s.cur = savedCur

				tmp := s.freshVReg()
				s.insertBeforeTerminator(dest, mir.MInst{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(tmp, size), src}})
				copies = append(copies, pendingCopy{dst: s.values[phi], tmp: tmp, sz: size})
			}

			for _, c := range copies {
				s.insertBeforeTerminator(dest, mir.MInst{Op: mir.M_COPY, Def: 0, Operands: []mir.MachineOperand{mir.Reg(c.dst, c.sz), mir.Reg(c.tmp, c.sz)}})
			}
		}
	}
	return nil
}

// splitCriticalEdge inserts a new block reachable only from mpred's edge
// to mb, redirects whichever of mpred's trailing M_JMP/M_JCC targets
// mb.Name to the new block, and gives the new block an unconditional jump
// on to mb so control flow is unchanged apart from the copies lowerPhis
// places in it.
func (s *Selector) splitCriticalEdge(mpred, mb *mir.MIRBlock) *mir.MIRBlock {
	split := &mir.MIRBlock{Name: fmt.Sprintf("%s.to.%s", mpred.Name, mb.Name), Preds: []*mir.MIRBlock{mpred}, Succs: []*mir.MIRBlock{mb}}
	split.Insts = append(split.Insts, mir.MInst{Op: mir.M_JMP, Def: -1, Label: mb.Name})
	s.mf.Blocks = append(s.mf.Blocks, split)

	for i := range mpred.Insts {
		inst := &mpred.Insts[i]
		if inst.Label == mb.Name && (inst.Op == mir.M_JMP || inst.Op == mir.M_JCC) {
			inst.Label = split.Name
		}
	}
	for i, succ := range mpred.Succs {
		if succ == mb {
			mpred.Succs[i] = split
		}
	}
	for i, p := range mb.Preds {
		if p == mpred {
			mb.Preds[i] = split
		}
	}
	return split
}

// insertBeforeTerminator appends inst to mb, keeping any already-selected
// terminator (M_JMP/M_JCC/M_RET) as the last instruction; s.operand's use
// of s.emit inside lowerPhis' s.cur-swap trick above appends straight to
// mb.Insts, so by the time this runs the terminator is always last.
func (s *Selector) insertBeforeTerminator(mb *mir.MIRBlock, inst mir.MInst) {
	n := len(mb.Insts)
	if n == 0 {
		mb.Insts = append(mb.Insts, inst)
		return
	}
	last := mb.Insts[n-1]
	switch last.Op {
	case mir.M_JMP, mir.M_JCC, mir.M_RET:
		mb.Insts = append(mb.Insts, mir.MInst{})
		copy(mb.Insts[n:], mb.Insts[n-1:])
		mb.Insts[n-1] = inst
	default:
		mb.Insts = append(mb.Insts, inst)
	}
}
