package amd64

import "github.com/x64cc/x64cc/internal/regalloc"

// systemV is the Linux/BSD/macOS convention.
type systemV struct{}

// SystemV is the calling convention used on Linux, *BSD, and macOS:
// integer/pointer arguments in RDI, RSI, RDX, RCX, R8, R9; no shadow
// space; RAX, RCX, RDX, RSI, RDI, R8-R11 are caller-saved.
var SystemV regalloc.MachineDescription = systemV{}

func (systemV) Name() string { return "sysv" }
func (systemV) GeneralPurposePool() []regalloc.PhysReg {
	return []regalloc.PhysReg{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11, RBX, R12, R13, R14, R15}
}
func (systemV) ArgumentRegisters() []regalloc.PhysReg { return []regalloc.PhysReg{RDI, RSI, RDX, RCX, R8, R9} }
func (systemV) ResultRegister() regalloc.PhysReg      { return RAX }
func (systemV) CallerSaved() []regalloc.PhysReg {
	return []regalloc.PhysReg{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}
}
func (systemV) CalleeSaved() []regalloc.PhysReg { return []regalloc.PhysReg{RBX, R12, R13, R14, R15, RBP} }
func (systemV) ShadowSpaceBytes() int             { return 0 }
func (systemV) StackAlignment() int               { return 16 }
func (systemV) FramePointerRegister() regalloc.PhysReg { return RBP }
func (systemV) StackPointerRegister() regalloc.PhysReg { return RSP }

// microsoftX64 is the Windows x64 convention.
type microsoftX64 struct{}

// MicrosoftX64 is the Windows x64 convention: integer/pointer arguments
// in RCX, RDX, R8, R9; a 32-byte shadow space the callee may scribble on;
// RAX, RCX, RDX, R8-R11 are caller-saved; RSI/RDI are callee-saved
// (unlike System V, where they are argument registers).
var MicrosoftX64 regalloc.MachineDescription = microsoftX64{}

func (microsoftX64) Name() string { return "mswin" }
func (microsoftX64) GeneralPurposePool() []regalloc.PhysReg {
	return []regalloc.PhysReg{RAX, RCX, RDX, R8, R9, R10, R11, RBX, RSI, RDI, R12, R13, R14, R15}
}
func (microsoftX64) ArgumentRegisters() []regalloc.PhysReg { return []regalloc.PhysReg{RCX, RDX, R8, R9} }
func (microsoftX64) ResultRegister() regalloc.PhysReg      { return RAX }
func (microsoftX64) CallerSaved() []regalloc.PhysReg {
	return []regalloc.PhysReg{RAX, RCX, RDX, R8, R9, R10, R11}
}
func (microsoftX64) CalleeSaved() []regalloc.PhysReg {
	return []regalloc.PhysReg{RBX, RSI, RDI, R12, R13, R14, R15, RBP}
}

// msvcShadowSpace is the fixed 32-byte scratch area (4 argument slots x
// 8 bytes) plus the return address slot every Microsoft x64 frame
// reserves below the caller's arguments; named once here and read only
// through ShadowSpaceBytes, which regalloc.Allocate folds into the frame
// size that both the prologue and the epilogue use, so the two can never
// drift out of step with each other.
const msvcShadowSpace = 4*8 + 8

func (microsoftX64) ShadowSpaceBytes() int             { return msvcShadowSpace }
func (microsoftX64) StackAlignment() int               { return 16 }
func (microsoftX64) FramePointerRegister() regalloc.PhysReg { return RBP }
func (microsoftX64) StackPointerRegister() regalloc.PhysReg { return RSP }
