package ir

// NewBlock appends a fresh, unterminated block to f and returns it.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := &BasicBlock{ID: f.nextBlockID, Name: name, Function: f}
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// AddEdge records that b falls through or branches to succ.
func AddEdge(b, succ *BasicBlock) {
	b.Succs = append(b.Succs, succ)
	succ.Preds = append(succ.Preds, b)
}

// emit appends inst to b and wires up its operand use-list. Every
// instruction constructor in build.go funnels through this so the
// use-list invariant (an instruction appears in operand X's users
// exactly once per operand slot referencing it) can never be forgotten.
func (b *BasicBlock) emit(inst *Instruction) *Instruction {
	inst.ID = b.Function.nextValueID
	b.Function.nextValueID++
	inst.Block = b
	for i, operand := range inst.Operands {
		if operand == nil {
			continue
		}
		operand.addUser(inst, i)
	}
	b.Instructions = append(b.Instructions, inst)
	return inst
}

func (v *Instruction) addUser(user *Instruction, index int) {
	v.users = append(v.users, use{user: user, index: index})
}

// Users returns the instructions that reference v as an operand, one
// entry per referencing operand slot (an instruction using v twice
// appears twice).
func (v *Instruction) Users() []*Instruction {
	out := make([]*Instruction, len(v.users))
	for i, u := range v.users {
		out[i] = u.user
	}
	return out
}

// HasUsers reports whether any instruction still references v.
func (v *Instruction) HasUsers() bool { return len(v.users) > 0 }

// ReplaceUses rewrites every operand slot that currently references old
// so it references replacement instead, transferring old's use-list to
// replacement and leaving old with none. This is the SSA graph's core
// rewrite primitive (ir_replace_uses in the original); no pass in this
// backend calls it, since there are no IR simplifications and isel
// lowers phis without rewriting the IR.
func ReplaceUses(old, replacement *Instruction) {
	if old == replacement {
		return
	}
	for _, u := range old.users {
		u.user.Operands[u.index] = replacement
		if replacement != nil {
			replacement.addUser(u.user, u.index)
		}
	}
	old.users = nil
}

// RemoveUse detaches user's reference to operand at index, shrinking
// operand's use-list. It does not remove user from its block; callers
// that are deleting an instruction entirely should call UnmarkUsees on it
// first.
func (inst *Instruction) RemoveUse(index int) {
	operand := inst.Operands[index]
	if operand == nil {
		return
	}
	for i, u := range operand.users {
		if u.user == inst && u.index == index {
			operand.users = append(operand.users[:i], operand.users[i+1:]...)
			break
		}
	}
}

// UnmarkUsees detaches inst from every operand's use-list, without
// touching inst.Operands itself. Call this before splicing inst out of
// its block so operands don't retain a dangling user.
func (inst *Instruction) UnmarkUsees() {
	for i := range inst.Operands {
		inst.RemoveUse(i)
	}
}

// ForEachChild calls fn once per non-nil operand of inst, including phi
// arguments. A direct call's Callee is a bare name, not an operand, so
// it has no child instruction to visit; an indirect call's target value
// is already Operands[0].
func (inst *Instruction) ForEachChild(fn func(*Instruction)) {
	for _, op := range inst.Operands {
		if op != nil {
			fn(op)
		}
	}
}

// RemoveInstruction splices inst out of its block, unlinking it from
// every operand's use-list first. It panics if inst still has users,
// matching the invariant violation the original treats as unrecoverable
// (removing a value that is still referenced would silently corrupt the
// graph rather than fail loudly).
func RemoveInstruction(inst *Instruction) {
	if inst.HasUsers() {
		panic("ir: RemoveInstruction on a value that still has users")
	}
	inst.UnmarkUsees()
	b := inst.Block
	for i, other := range b.Instructions {
		if other == inst {
			b.Instructions = append(b.Instructions[:i], b.Instructions[i+1:]...)
			break
		}
	}
}

// MarkUnreachable converts b into dead code: b is stripped as an
// incoming predecessor from every phi in every block it currently
// reaches, then its own terminator (if it has one yet) is replaced with
// OpUnreachable. Everything before the terminator is left untouched —
// only the fact that b can be reached, and where it goes, is undone.
func MarkUnreachable(b *BasicBlock) {
	for _, succ := range b.Succs {
		for _, phi := range succ.Phis() {
			removePhiIncoming(phi, b)
		}
		for i, p := range succ.Preds {
			if p == b {
				succ.Preds = append(succ.Preds[:i], succ.Preds[i+1:]...)
				break
			}
		}
	}
	b.Succs = nil

	if term := b.Terminator(); term != nil {
		term.UnmarkUsees()
		b.Instructions = b.Instructions[:len(b.Instructions)-1]
	}
	b.emit(&Instruction{Op: OpUnreachable})
}

// removePhiIncoming strips pred's incoming argument from phi, unmarking
// the removed value's usee and renumbering the use-list indices of every
// operand shifted down by the removal.
func removePhiIncoming(phi *Instruction, pred *BasicBlock) {
	idx := -1
	for i, p := range phi.PhiIncoming {
		if p == pred {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	phi.RemoveUse(idx)
	phi.Operands = append(phi.Operands[:idx], phi.Operands[idx+1:]...)
	phi.PhiIncoming = append(phi.PhiIncoming[:idx], phi.PhiIncoming[idx+1:]...)
	for i := idx; i < len(phi.Operands); i++ {
		v := phi.Operands[i]
		if v == nil {
			continue
		}
		for j := range v.users {
			if v.users[j].user == phi && v.users[j].index == i+1 {
				v.users[j].index = i
			}
		}
	}
}

// AddPhiArgument appends (value, pred) to phi's operand list. pred must
// be a predecessor of phi's block.
func AddPhiArgument(phi *Instruction, pred *BasicBlock, value *Instruction) {
	idx := len(phi.Operands)
	phi.Operands = append(phi.Operands, value)
	phi.PhiIncoming = append(phi.PhiIncoming, pred)
	if value != nil {
		value.addUser(phi, idx)
	}
}

// IncomingFor returns the value a phi carries for predecessor pred, and
// whether one was found.
func (inst *Instruction) IncomingFor(pred *BasicBlock) (*Instruction, bool) {
	for i, p := range inst.PhiIncoming {
		if p == pred {
			return inst.Operands[i], true
		}
	}
	return nil, false
}
