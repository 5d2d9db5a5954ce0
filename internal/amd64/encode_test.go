package amd64

import (
	"bytes"
	"math"
	"testing"

	"github.com/x64cc/x64cc/internal/mir"
	"github.com/x64cc/x64cc/internal/obj"
)

func encodeOne(t *testing.T, inst *mir.MInst) encodedInst {
	t.Helper()
	enc, err := EncodeInstruction(inst)
	if err != nil {
		t.Fatalf("EncodeInstruction: %v", err)
	}
	return enc
}

func TestEncodeMovRegImm64NarrowsToImm32WhenItFits(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_MOV, Operands: []mir.MachineOperand{mir.Reg(RAX, 8), mir.Imm(1, 8)}}
	enc := encodeOne(t, inst)
	if enc.bytes[0] != 0x48 {
		t.Fatalf("expected REX.W prefix 0x48, got %#x", enc.bytes[0])
	}
	if enc.bytes[1] != 0xC7 {
		t.Fatalf("expected narrowed mov-imm32 opcode 0xC7, got %#x", enc.bytes[1])
	}
	if len(enc.bytes) != 7 {
		t.Fatalf("expected rex+opcode+modrm+imm32 (7 bytes), got % x", enc.bytes)
	}
}

func TestEncodeMovRegImm64NeedsMovabsWhenImmExceedsInt32(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_MOV, Operands: []mir.MachineOperand{mir.Reg(RAX, 8), mir.Imm(int64(math.MaxInt32)+1, 8)}}
	enc := encodeOne(t, inst)
	if enc.bytes[0] != 0x48 {
		t.Fatalf("expected REX.W prefix 0x48, got %#x", enc.bytes[0])
	}
	if enc.bytes[1] != 0xB8 {
		t.Fatalf("expected movabs opcode 0xB8 for an out-of-int32-range immediate, got %#x", enc.bytes[1])
	}
	if len(enc.bytes) != 10 {
		t.Fatalf("expected rex+opcode+imm64 (10 bytes), got % x", enc.bytes)
	}
}

func TestEncodeMovRegImm32NoRex(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_MOV, Operands: []mir.MachineOperand{mir.Reg(RAX, 4), mir.Imm(7, 4)}}
	enc := encodeOne(t, inst)
	if enc.bytes[0] != 0xB8 {
		t.Fatalf("expected no REX prefix, first byte 0xB8, got %#x", enc.bytes[0])
	}
}

func TestEncodeMovRegImmExtendedRegisterSetsRexB(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_MOV, Operands: []mir.MachineOperand{mir.Reg(R8, 8), mir.Imm(1, 8)}}
	enc := encodeOne(t, inst)
	if enc.bytes[0]&0x01 == 0 {
		t.Fatalf("expected REX.B set for r8, got prefix %#x", enc.bytes[0])
	}
}

func TestEncodeAddRegRegOpcodeAndModRM(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_ADD, Operands: []mir.MachineOperand{mir.Reg(RAX, 8), mir.Reg(RCX, 8)}}
	enc := encodeOne(t, inst)
	want := []byte{0x48, 0x01, 0xC8} // rex.w, add r/m64,r64, modrm rax<-rcx
	if !bytes.Equal(enc.bytes, want) {
		t.Fatalf("got % x, want % x", enc.bytes, want)
	}
}

func TestEncodeCmpRegImm8FitsInSignedByte(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_CMP, Operands: []mir.MachineOperand{mir.Reg(RAX, 8), mir.Imm(5, 8)}}
	enc := encodeOne(t, inst)
	if enc.bytes[len(enc.bytes)-3] != 0x83 {
		t.Fatalf("expected imm8 opcode 0x83 for small immediate, got %#x", enc.bytes[len(enc.bytes)-3])
	}
}

func TestEncodeCmpRegImm32WhenOutOfByteRange(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_CMP, Operands: []mir.MachineOperand{mir.Reg(RAX, 8), mir.Imm(1000, 8)}}
	enc := encodeOne(t, inst)
	if enc.bytes[len(enc.bytes)-6] != 0x81 {
		t.Fatalf("expected imm32 opcode 0x81 for out-of-byte-range immediate, got %#x", enc.bytes[len(enc.bytes)-6])
	}
}

func TestEncodeJmpPlaceholderAndRelocSite(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_JMP, Label: "loop"}
	enc := encodeOne(t, inst)
	if len(enc.bytes) != 5 || enc.bytes[0] != 0xE9 {
		t.Fatalf("expected 5-byte near jmp with opcode 0xE9, got % x", enc.bytes)
	}
	if enc.jumpTarget != "loop" || enc.rel32At != 1 {
		t.Fatalf("expected jumpTarget=loop rel32At=1, got %q %d", enc.jumpTarget, enc.rel32At)
	}
}

func TestEncodeJccOpcodeTable(t *testing.T) {
	cases := []struct {
		cc   mir.CondCode
		want byte
	}{
		{mir.CondE, 0x84},
		{mir.CondNE, 0x85},
		{mir.CondL, 0x8C},
		{mir.CondLE, 0x8E},
		{mir.CondG, 0x8F},
		{mir.CondGE, 0x8D},
	}
	for _, c := range cases {
		inst := &mir.MInst{Op: mir.M_JCC, Cond: c.cc, Label: "target"}
		enc := encodeOne(t, inst)
		if enc.bytes[0] != 0x0F || enc.bytes[1] != c.want {
			t.Fatalf("cond %v: got opcode %#x %#x, want 0x0F %#x", c.cc, enc.bytes[0], enc.bytes[1], c.want)
		}
	}
}

func TestEncodeCallDirectProducesRelocation(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_CALL, Operands: []mir.MachineOperand{mir.FuncOperand("callee")}}
	enc := encodeOne(t, inst)
	if enc.bytes[0] != 0xE8 {
		t.Fatalf("expected near-call opcode 0xE8, got %#x", enc.bytes[0])
	}
	if enc.relocSym != "callee" || enc.relocAddend != 0 {
		t.Fatalf("expected relocSym=callee addend=0, got %q %d", enc.relocSym, enc.relocAddend)
	}
}

func TestEncodeCallIndirectThroughRegister(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_CALL, Operands: []mir.MachineOperand{mir.Reg(RAX, 8)}}
	enc := encodeOne(t, inst)
	want := []byte{0xFF, 0xD0}
	if !bytes.Equal(enc.bytes, want) {
		t.Fatalf("got % x, want % x", enc.bytes, want)
	}
}

func TestEncodeRIPRelativeLoadFromGlobal(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_LOAD, Operands: []mir.MachineOperand{mir.Reg(RAX, 4), mir.GlobalOperand("counter", 0)}}
	enc := encodeOne(t, inst)
	if enc.relocSym != "counter" {
		t.Fatalf("expected relocation against global symbol, got %q", enc.relocSym)
	}
	if enc.relocAddend != 0 {
		t.Fatalf("expected addend 0 for a bare global reference, got %d", enc.relocAddend)
	}
}

func TestEncodeRIPRelativeMemberOffsetCarriesDispAsAddend(t *testing.T) {
	inst := &mir.MInst{Op: mir.M_STORE, Operands: []mir.MachineOperand{mir.GlobalOperand("origin", 4), mir.Reg(RAX, 4)}}
	enc := encodeOne(t, inst)
	if enc.relocAddend != 4 {
		t.Fatalf("expected addend to carry the member offset 4, got %d", enc.relocAddend)
	}
}

func TestEncodeMemoryRbpZeroDispForcesDisp8(t *testing.T) {
	mem := mir.Mem(RBP, 0, 8)
	enc, err := encodeMemory(mem)
	if err != nil {
		t.Fatalf("encodeMemory: %v", err)
	}
	if enc.modrm&0xC0 != 0x40 {
		t.Fatalf("expected mod=01 (disp8) for [rbp+0], got modrm %#x", enc.modrm)
	}
	if len(enc.disp) != 1 || enc.disp[0] != 0 {
		t.Fatalf("expected an explicit zero disp8 byte, got %v", enc.disp)
	}
}

func TestEncodeMemoryRspRequiresSIB(t *testing.T) {
	mem := mir.Mem(RSP, 8, 8)
	enc, err := encodeMemory(mem)
	if err != nil {
		t.Fatalf("encodeMemory: %v", err)
	}
	if len(enc.sib) != 1 {
		t.Fatalf("expected a SIB byte when base is rsp, got %v", enc.sib)
	}
	if enc.modrm&0x07 != 4 {
		t.Fatalf("expected rm field 100 (SIB escape), got modrm %#x", enc.modrm)
	}
}

func TestEncodeMemoryRejectsRspAsIndex(t *testing.T) {
	mem := mir.MemIndexed(RAX, RSP, 4, 0, 8)
	if _, err := encodeMemory(mem); err == nil {
		t.Fatalf("expected an error using rsp as an index register")
	}
}

func TestEncodeFunctionResolvesLocalJumpsAndStripsLabels(t *testing.T) {
	o := obj.NewObject()
	mf := &mir.MIRFunction{
		Name: "loopfn",
		Blocks: []*mir.MIRBlock{
			{Name: "entry", Insts: []mir.MInst{
				{Op: mir.M_JMP, Label: "body"},
			}},
			{Name: "body", Insts: []mir.MInst{
				{Op: mir.M_RET},
			}},
		},
	}

	if err := EncodeFunction(o, mf, true); err != nil {
		t.Fatalf("EncodeFunction: %v", err)
	}
	if err := ResolveLocalLabels(o); err != nil {
		t.Fatalf("ResolveLocalLabels: %v", err)
	}

	for _, r := range o.Relocs {
		if len(r.Symbol) >= 2 && r.Symbol[:2] == ".L" {
			t.Fatalf("expected no .L relocations to survive, found %q", r.Symbol)
		}
	}
	for _, s := range o.Symbols {
		if len(s.Name) >= 2 && s.Name[:2] == ".L" {
			t.Fatalf("expected no .L symbols to survive, found %q", s.Name)
		}
	}

	sym, ok := o.FindSymbol("loopfn")
	if !ok || sym.Type != obj.SymExport {
		t.Fatalf("expected an exported symbol loopfn, got %v ok=%v", sym, ok)
	}

	// jmp rel32 field at offset 1: body starts right after the 5-byte jmp,
	// so disp32 = 5 - (1+4) = 0.
	code := o.CodeSection().Bytes
	if code[0] != 0xE9 {
		t.Fatalf("expected jmp opcode at start of function, got %#x", code[0])
	}
	got := int32(code[1]) | int32(code[2])<<8 | int32(code[3])<<16 | int32(code[4])<<24
	if got != 0 {
		t.Fatalf("expected patched displacement 0, got %d", got)
	}
}
