package regalloc

import (
	"fmt"

	"github.com/x64cc/x64cc/internal/cgerr"
	"github.com/x64cc/x64cc/internal/mir"
)

// maxSpillRounds bounds how many times allocate will insert spill code
// and retry coloring before giving up; each round strictly shrinks a
// spilled vreg's live range to a single instruction, so real programs
// converge in one or two rounds and this is only a backstop against a
// pathological interference graph.
const maxSpillRounds = 8

// Allocate assigns a physical register (or a stack slot) to every
// virtual register in mf, in place: MachineOperand.Reg fields are
// rewritten from virtual to physical, IsFrame operands are resolved to
// concrete base+displacement addressing, and a prologue/epilogue is
// inserted according to the function's decided FrameKind. optimize
// mirrors the -O flag the reference compiler's frame-kind decision reads.
func Allocate(mf *mir.MIRFunction, md MachineDescription, optimize bool) error {
	pool := md.GeneralPurposePool()
	if len(pool) == 0 {
		return fmt.Errorf("%w: machine description %q has an empty register pool", cgerr.Invariant, md.Name())
	}

	var result colorResult
	for round := 0; ; round++ {
		lv := computeLiveness(mf)
		g := buildInterference(mf, lv)
		result = colorGraph(g, pool)
		if len(result.spills) == 0 {
			break
		}
		if round >= maxSpillRounds {
			return fmt.Errorf("%w: could not color %s after %d spill rounds", cgerr.Invariant, mf.Name, maxSpillRounds)
		}
		spillVRegs(mf, result.spills)
	}

	for _, b := range mf.Blocks {
		for i := range b.Insts {
			rewriteColors(&b.Insts[i], result.colors)
		}
	}

	offsets := layoutFrame(mf)
	kind := decideFrameKind(mf, optimize, len(mf.FrameSlots))
	if kind != FrameNone {
		if shadow := md.ShadowSpaceBytes(); shadow > 0 {
			// Every frame that can itself make a call must reserve the
			// callee's mandatory shadow space below its own locals,
			// whether or not this function's own arguments spill there.
			mf.FrameSize = alignUp(mf.FrameSize+shadow, 16)
		}
	}
	if kind == FrameMinimal {
		// No rbp push realigns the stack for a minimal frame, so the
		// reserved amount itself must restore 16-byte alignment for any
		// call this function makes: align16(frame)+8 compensates for the
		// 8-byte return address already on the stack at entry.
		mf.FrameSize = alignUp(mf.FrameSize, 16) + 8
	}
	base := md.FramePointerRegister()
	if kind != FrameFull {
		base = md.StackPointerRegister()
	}
	resolveFrameOperands(mf, offsets, base, kind)

	used := usedCalleeSaved(result.colors, md.CalleeSaved())
	insertPrologueEpilogue(mf, md, kind, used)
	return nil
}

func rewriteColors(inst *mir.MInst, colors map[mir.VReg]PhysReg) {
	for i := range inst.Operands {
		o := &inst.Operands[i]
		if o.Kind == mir.OperandReg && o.Reg.IsVirtual() {
			if p, ok := colors[o.Reg]; ok {
				o.Reg = p
			}
		}
		if o.Kind == mir.OperandMem {
			if o.HasBase && o.Base.IsVirtual() {
				if p, ok := colors[o.Base]; ok {
					o.Base = p
				}
			}
			if o.HasIdx && o.Index.IsVirtual() {
				if p, ok := colors[o.Index]; ok {
					o.Index = p
				}
			}
		}
	}
}

func usedCalleeSaved(colors map[mir.VReg]PhysReg, calleeSaved []PhysReg) []PhysReg {
	want := make(map[PhysReg]struct{}, len(calleeSaved))
	for _, r := range calleeSaved {
		want[r] = struct{}{}
	}
	seen := make(map[PhysReg]struct{})
	var out []PhysReg
	for _, p := range colors {
		if _, ok := want[p]; !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// spillVRegs gives each vreg in victims its own frame slot and rewrites
// every instruction touching it into a load-use/def-store around a
// fresh, tightly-scoped temporary vreg, exactly as if the source program
// had spelled the value as a local variable in the first place.
func spillVRegs(mf *mir.MIRFunction, victims []mir.VReg) {
	slotOf := make(map[mir.VReg]int, len(victims))
	for _, v := range victims {
		id := len(mf.FrameSlots)
		mf.FrameSlots = append(mf.FrameSlots, mir.FrameSlot{Size: 8, Align: 8})
		slotOf[v] = id
	}
	isVictim := func(r mir.VReg) (int, bool) {
		id, ok := slotOf[r]
		return id, ok
	}

	for _, b := range mf.Blocks {
		var out []mir.MInst
		for _, inst := range b.Insts {
			var pre, post []mir.MInst
			for oi := range inst.Operands {
				o := &inst.Operands[oi]
				if o.Kind != mir.OperandReg || !o.Reg.IsVirtual() {
					continue
				}
				slotID, ok := isVictim(o.Reg)
				if !ok {
					continue
				}
				tmp := freshFrom(mf)
				if oi == inst.Def {
					post = append(post, mir.MInst{Op: mir.M_STORE, Def: -1, Operands: []mir.MachineOperand{mir.FrameMem(slotID, 0, o.Size), mir.Reg(tmp, o.Size)}})
				}
				for _, u := range inst.UseOperands() {
					if u == oi {
						pre = append(pre, mir.MInst{Op: mir.M_LOAD, Def: 0, Operands: []mir.MachineOperand{mir.Reg(tmp, o.Size), mir.FrameMem(slotID, 0, o.Size)}})
					}
				}
				o.Reg = tmp
			}
			out = append(out, pre...)
			out = append(out, inst)
			out = append(out, post...)
		}
		b.Insts = out
	}
}

func freshFrom(mf *mir.MIRFunction) mir.VReg {
	id := mir.MinVirtualRegister + mir.VReg(mf.NumVRegs)
	mf.NumVRegs++
	return id
}
