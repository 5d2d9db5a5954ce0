package regalloc

import "github.com/x64cc/x64cc/internal/mir"

// FrameKind classifies how much prologue/epilogue a function needs,
// mirroring the reference compiler's stack_frame_kind decision: with
// optimizations on, a leaf function with no stack slots needs no frame at
// all and a non-leaf function with no stack slots needs only an RSP
// adjustment with no frame pointer; everything else (optimizations off,
// or any alloca or spill slot) gets the full push-rbp/mov-rbp-rsp
// treatment.
type FrameKind int

const (
	FrameNone FrameKind = iota
	FrameMinimal
	FrameFull
)

func (k FrameKind) String() string {
	switch k {
	case FrameNone:
		return "none"
	case FrameMinimal:
		return "minimal"
	default:
		return "full"
	}
}

// decideFrameKind ports arch_x86_64.c's stack_frame_kind: optimizations
// off always gets the full frame (debuggability trumps size), any locals
// (including spill slots materialized during allocation) force a full
// frame so a debugger can always find them relative to rbp, and a leaf
// function with nothing to spill needs no frame at all.
func decideFrameKind(mf *mir.MIRFunction, optimize bool, slotCount int) FrameKind {
	if !optimize {
		return FrameFull
	}
	if slotCount > 0 {
		return FrameFull
	}
	if mf.IsLeaf {
		return FrameNone
	}
	return FrameMinimal
}

func alignUp(v, a int) int {
	if a <= 1 {
		return v
	}
	return (v + a - 1) / a * a
}

// layoutFrame assigns every FrameSlot (allocas and register-allocator
// spill slots alike) a byte offset below the frame base, largest
// alignment first so smaller slots can fill any padding. It returns each
// slot's offset, indexed like mf.FrameSlots, and stores the total
// (16-byte aligned) frame size in mf.FrameSize.
func layoutFrame(mf *mir.MIRFunction) []int32 {
	offsets := make([]int32, len(mf.FrameSlots))
	order := make([]int, len(mf.FrameSlots))
	for i := range order {
		order[i] = i
	}
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && mf.FrameSlots[order[j]].Align > mf.FrameSlots[order[j-1]].Align; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	cur := 0
	for _, idx := range order {
		slot := mf.FrameSlots[idx]
		cur = alignUp(cur, slot.Align)
		cur += slot.Size
		offsets[idx] = -int32(cur)
	}
	mf.FrameSize = alignUp(cur, 16)
	return offsets
}

// resolveFrameOperands rewrites every IsFrame memory operand into a
// concrete base-register+displacement operand once the frame's byte
// layout is fixed. base is RBP for a full frame (offsets already
// negative relative to rbp) or RSP for a minimal frame (offsets need
// re-basing since nothing pins rsp at a fixed distance from the slots
// until the whole frame size is known).
func resolveFrameOperands(mf *mir.MIRFunction, offsets []int32, base PhysReg, kind FrameKind) {
	fix := func(o *mir.MachineOperand) {
		if !o.IsFrame {
			return
		}
		disp := offsets[o.FrameID] + o.Disp
		if kind != FrameFull {
			disp += int32(mf.FrameSize)
		}
		o.IsFrame = false
		o.HasBase = true
		o.Base = base
		o.Disp = disp
	}
	for _, b := range mf.Blocks {
		for i := range b.Insts {
			for j := range b.Insts[i].Operands {
				fix(&b.Insts[i].Operands[j])
			}
		}
	}
}
