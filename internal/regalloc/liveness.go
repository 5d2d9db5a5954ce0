package regalloc

import "github.com/x64cc/x64cc/internal/mir"

// vset is a small set of virtual registers, used for per-block live-in/
// live-out sets. A plain map is enough here: function bodies produced by
// this backend rarely carry more than a few dozen live vregs per block,
// so a bitset (as a real compiler would use to keep dataflow iterations
// cheap) buys nothing but complexity at this scale.
type vset map[mir.VReg]struct{}

func (s vset) add(r mir.VReg)      { s[r] = struct{}{} }
func (s vset) has(r mir.VReg) bool { _, ok := s[r]; return ok }
func (s vset) clone() vset {
	out := make(vset, len(s))
	for r := range s {
		out[r] = struct{}{}
	}
	return out
}
func (s vset) union(other vset) bool {
	changed := false
	for r := range other {
		if !s.has(r) {
			s[r] = struct{}{}
			changed = true
		}
	}
	return changed
}

// liveness holds the fixed-point live-in/live-out sets for every block of
// a MIRFunction, virtual registers only.
type liveness struct {
	in  map[*mir.MIRBlock]vset
	out map[*mir.MIRBlock]vset
}

// defUse returns the vreg defined by inst (if any) and the vregs it
// reads, restricted to virtual registers: physical registers named
// directly in an operand are handled separately, as forced colors rather
// than graph nodes.
func defUse(inst *mir.MInst) (def mir.VReg, hasDef bool, uses []mir.VReg) {
	for _, idx := range inst.UseOperands() {
		o := inst.Operands[idx]
		if o.Kind == mir.OperandReg && o.Reg.IsVirtual() {
			uses = append(uses, o.Reg)
		}
		if o.Kind == mir.OperandMem {
			if o.HasBase && o.Base.IsVirtual() {
				uses = append(uses, o.Base)
			}
			if o.HasIdx && o.Index.IsVirtual() {
				uses = append(uses, o.Index)
			}
		}
	}
	if d := inst.DefOperand(); d != nil && d.Kind == mir.OperandReg && d.Reg.IsVirtual() {
		return d.Reg, true, uses
	}
	return 0, false, uses
}

// computeLiveness runs the standard backward dataflow fixed point over
// mf's block graph: live-out of a block is the union of its successors'
// live-in, live-in is (live-out - defs) union uses.
func computeLiveness(mf *mir.MIRFunction) *liveness {
	lv := &liveness{in: make(map[*mir.MIRBlock]vset), out: make(map[*mir.MIRBlock]vset)}
	for _, b := range mf.Blocks {
		lv.in[b] = make(vset)
		lv.out[b] = make(vset)
	}

	changed := true
	for changed {
		changed = false
		for i := len(mf.Blocks) - 1; i >= 0; i-- {
			b := mf.Blocks[i]

			out := make(vset)
			for _, succ := range b.Succs {
				out.union(lv.in[succ])
			}
			if !setEqual(out, lv.out[b]) {
				lv.out[b] = out
				changed = true
			}

			live := out.clone()
			for j := len(b.Insts) - 1; j >= 0; j-- {
				def, hasDef, uses := defUse(&b.Insts[j])
				if hasDef {
					delete(live, def)
				}
				for _, u := range uses {
					live.add(u)
				}
			}
			if !setEqual(live, lv.in[b]) {
				lv.in[b] = live
				changed = true
			}
		}
	}
	return lv
}

func setEqual(a, b vset) bool {
	if len(a) != len(b) {
		return false
	}
	for r := range a {
		if !b.has(r) {
			return false
		}
	}
	return true
}
