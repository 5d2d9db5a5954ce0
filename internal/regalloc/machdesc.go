// Package regalloc implements graph-coloring register allocation over a
// mir.MIRFunction: liveness dataflow, interference graph construction
// (including opcode-inherent clobber edges), simplify/spill/color, and
// frame materialization for whatever the allocator could not keep in a
// register.
package regalloc

import "github.com/x64cc/x64cc/internal/mir"

// PhysReg is a physical register, one of the values below
// mir.MinVirtualRegister that the target package (internal/amd64) hands
// out as named constants.
type PhysReg = mir.VReg

// MachineDescription is the calling-convention and register-file
// capability object the allocator and instruction selector both consult,
// so neither hardcodes "6 integer argument registers" or "RCX is the
// shift count register" — those facts live in one place per convention.
type MachineDescription interface {
	// Name identifies the convention, e.g. "sysv" or "mswin".
	Name() string

	// GeneralPurposePool lists every physical register available to the
	// allocator, in the order the allocator should prefer to assign them
	// (caller-saved first, so a value that dies before the next call
	// needn't force a save/restore).
	GeneralPurposePool() []PhysReg

	// ArgumentRegisters lists the registers integer/pointer arguments
	// are passed in, in order.
	ArgumentRegisters() []PhysReg

	// ResultRegister is where a function's scalar return value lives.
	ResultRegister() PhysReg

	// CallerSaved lists registers a call clobbers.
	CallerSaved() []PhysReg

	// CalleeSaved lists registers a callee must preserve across a call.
	CalleeSaved() []PhysReg

	// ShadowSpaceBytes is the caller-reserved scratch area below the
	// return address a callee may use without its own sub rsp (0 for
	// System V; 40 for Microsoft x64, its 32-byte shadow area plus 8).
	ShadowSpaceBytes() int

	// StackAlignment is the required alignment of RSP at a call site.
	StackAlignment() int

	// FramePointerRegister and StackPointerRegister name the two
	// registers frame materialization addresses locals and spill slots
	// through; both conventions agree these are RBP and RSP, but the
	// interface keeps regalloc from importing the amd64 package's named
	// constants directly and creating an import cycle.
	FramePointerRegister() PhysReg
	StackPointerRegister() PhysReg
}

// OpcodeClobbers returns the physical registers an instruction with this
// opcode destroys beyond its declared def, independent of calling
// convention: IDIV/DIV always clobber RDX (the other half of the
// dividend/remainder pair) and shifts by a register always clobber RCX
// (the only encodable shift-count register), regardless of which ABI is
// in effect. CALL's clobber set does depend on the convention and is
// supplied by the MachineDescription's CallerSaved instead.
func OpcodeClobbers(op mir.Opcode, rdx, rcx PhysReg) []PhysReg {
	switch op {
	case mir.M_IDIV, mir.M_DIV:
		return []PhysReg{rdx}
	case mir.M_SHL, mir.M_SHR, mir.M_SAR:
		return []PhysReg{rcx}
	default:
		return nil
	}
}
