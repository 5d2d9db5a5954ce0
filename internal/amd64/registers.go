// Package amd64 hand-encodes x86-64 machine code: REX/ModRM/SIB byte
// construction, the two calling conventions (System V and Microsoft x64)
// as register-allocator machine descriptions, and the §6.3 name-mangling
// grammar. Prologues and epilogues are inserted by internal/regalloc.
package amd64

import "github.com/x64cc/x64cc/internal/mir"

// PhysReg values below mir.MinVirtualRegister name a physical general
// purpose register. The enumeration order matches
// FOR_ALL_X86_64_REGISTERS in the reference implementation this backend
// is modeled on, so register numbers are stable across the encoder,
// the allocator's precoloring, and disassembly output.
const (
	RAX mir.VReg = iota
	RCX
	RDX
	R8
	R9
	R10
	R11
	R12
	RBX
	R13
	R14
	R15
	RSI
	RDI
	RBP
	RSP
)

// NumPhysRegs bounds the physical register namespace at 16 (rax..r15).
const NumPhysRegs = 16

// regNames8/16/32/64 are indexed by register number (0=RAX..15=RSP order
// above), giving the width-specific mnemonic used by the disassembler
// dumper and by mangling diagnostics.
var regNames64 = [...]string{"rax", "rcx", "rdx", "r8", "r9", "r10", "r11", "r12", "rbx", "r13", "r14", "r15", "rsi", "rdi", "rbp", "rsp"}
var regNames32 = [...]string{"eax", "ecx", "edx", "r8d", "r9d", "r10d", "r11d", "r12d", "ebx", "r13d", "r14d", "r15d", "esi", "edi", "ebp", "esp"}
var regNames16 = [...]string{"ax", "cx", "dx", "r8w", "r9w", "r10w", "r11w", "r12w", "bx", "r13w", "r14w", "r15w", "si", "di", "bp", "sp"}
var regNames8 = [...]string{"al", "cl", "dl", "r8b", "r9b", "r10b", "r11b", "r12b", "bl", "r13b", "r14b", "r15b", "sil", "dil", "bpl", "spl"}

// RegName returns the assembler mnemonic for physical register r at the
// given operand size in bytes.
func RegName(r mir.VReg, size int) string {
	if int(r) >= NumPhysRegs {
		return "?"
	}
	switch size {
	case 1:
		return regNames8[r]
	case 2:
		return regNames16[r]
	case 4:
		return regNames32[r]
	default:
		return regNames64[r]
	}
}

// isExtended reports whether r is one of r8-r15, needing REX.B/X/R to
// address at all.
func isExtended(r mir.VReg) bool {
	switch r {
	case R8, R9, R10, R11, R12, R13, R14, R15:
		return true
	default:
		return false
	}
}

// encoding returns the 3-bit ModRM/SIB register field and whether the
// extension bit (REX.B/X/R) must be set for r.
func encoding(r mir.VReg) (field byte, ext bool) {
	// Physical register numbers above are already assigned in an order
	// that does not match the ModRM 3-bit encoding directly (that
	// encoding interleaves rax..rdi with r8..r15 by low 3 bits), so map
	// explicitly.
	table := map[mir.VReg]byte{
		RAX: 0, RCX: 1, RDX: 2, RBX: 3, RSP: 4, RBP: 5, RSI: 6, RDI: 7,
		R8: 0, R9: 1, R10: 2, R11: 3, R12: 4, R13: 5, R14: 6, R15: 7,
	}
	field, ok := table[r]
	if !ok {
		field = 0
	}
	return field, isExtended(r)
}
