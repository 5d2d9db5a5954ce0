package amd64

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/x64cc/x64cc/internal/cgerr"
	"github.com/x64cc/x64cc/internal/mir"
	"github.com/x64cc/x64cc/internal/obj"
)

// rexState accumulates the four REX bits an instruction needs; force is
// set when a byte-sized operand names one of the low-8 registers whose
// legacy encoding (ah/ch/dh/bh) would otherwise be selected instead of
// sil/dil/bpl/spl.
type rexState struct {
	w, r, x, b, force bool
}

func (s rexState) prefix() (byte, bool) {
	if !s.w && !s.r && !s.x && !s.b && !s.force {
		return 0, false
	}
	p := byte(0x40)
	if s.w {
		p |= 0x08
	}
	if s.r {
		p |= 0x04
	}
	if s.x {
		p |= 0x02
	}
	if s.b {
		p |= 0x01
	}
	return p, true
}

func needsByteREX(r mir.VReg) bool {
	switch r {
	case RSP, RBP, RSI, RDI:
		return true
	default:
		return isExtended(r)
	}
}

func operandSizePrefix(size int) (byte, bool) {
	if size == 2 {
		return 0x66, true
	}
	return 0, false
}

// memEncoding is the ModRM/SIB/displacement byte sequence addressing a
// resolved (non-RIP, non-frame — those are rewritten to concrete
// base+displacement by internal/regalloc before this point) memory
// operand, plus whichever REX bits it forces regardless of which
// register ends up in ModRM.reg.
type memEncoding struct {
	modrm byte
	sib   []byte
	disp  []byte
	rex   rexState
}

func encodeMemory(o mir.MachineOperand) (memEncoding, error) {
	if !o.HasBase {
		return memEncoding{}, fmt.Errorf("%w: memory operand has no base register", cgerr.Unsupported)
	}
	baseCode, baseHigh := encoding(o.Base)

	var indexCode byte
	var indexHigh bool
	if o.HasIdx {
		indexCode, indexHigh = encoding(o.Index)
		if indexCode == 4 && !indexHigh {
			return memEncoding{}, fmt.Errorf("%w: rsp cannot be used as an index register", cgerr.Unsupported)
		}
	}

	enc := memEncoding{rex: rexState{b: baseHigh, x: o.HasIdx && indexHigh}}

	rm := baseCode
	disp := o.Disp
	switch {
	case disp == 0 && rm != 5:
		enc.modrm = 0x00
	case disp >= -128 && disp <= 127:
		enc.modrm = 0x40
		enc.disp = []byte{byte(disp)}
	default:
		enc.modrm = 0x80
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(disp))
		enc.disp = buf[:]
	}

	useSIB := o.HasIdx || rm == 4
	if useSIB {
		rm = 4
		idx := byte(4)
		if o.HasIdx {
			idx = indexCode
		}
		scaleBits := byte(0)
		switch o.Scale {
		case 0, 1:
			scaleBits = 0
		case 2:
			scaleBits = 1
		case 4:
			scaleBits = 2
		case 8:
			scaleBits = 3
		default:
			return memEncoding{}, fmt.Errorf("%w: invalid scale %d", cgerr.Unsupported, o.Scale)
		}
		if enc.modrm == 0x00 && baseCode == 5 {
			enc.modrm = 0x40
			enc.disp = []byte{0}
		}
		enc.sib = []byte{scaleBits<<6 | idx<<3 | baseCode}
	} else if enc.modrm == 0x00 && rm == 5 {
		// [rbp]/[r13] with a zero displacement must still carry an
		// explicit disp8=0: mod=00,rm=101 is the RIP-relative escape.
		enc.modrm = 0x40
		enc.disp = []byte{0}
	}

	enc.modrm |= rm
	return enc, nil
}

// encodedInst is one machine instruction's bytes, plus whatever this
// backend could not resolve at selection time: a same-function branch
// target (patched in a second pass once every block's offset is known)
// or a reference to a symbol outside this function (turned into an
// obj.Relocation once the instruction's final position in the section is
// known).
type encodedInst struct {
	bytes      []byte
	jumpTarget string // block name, set for M_JMP/M_JCC
	rel32At    int    // byte offset within bytes where the jump's rel32 field starts
	relocSym   string // set when this instruction refers to an external symbol
	relocAt    int
	relocAddend int64
}

func simple(b ...byte) encodedInst { return encodedInst{bytes: b} }

// EncodeInstruction lowers one already-allocated MInst (every register
// operand physical, every frame reference a concrete base+displacement)
// into its byte encoding.
func EncodeInstruction(inst *mir.MInst) (encodedInst, error) {
	switch inst.Op {
	case mir.M_MOV, mir.M_COPY, mir.M_LOAD, mir.M_STORE:
		return encodeMov(inst)
	case mir.M_MOVZX:
		return encodeMovX(inst, false)
	case mir.M_MOVSX:
		return encodeMovX(inst, true)
	case mir.M_LEA:
		return encodeLea(inst)
	case mir.M_ADD:
		return encodeALU(inst, 0x00, 0)
	case mir.M_OR:
		return encodeALU(inst, 0x08, 1)
	case mir.M_AND:
		return encodeALU(inst, 0x20, 4)
	case mir.M_SUB:
		return encodeALU(inst, 0x28, 5)
	case mir.M_XOR:
		return encodeALU(inst, 0x30, 6)
	case mir.M_CMP:
		return encodeALU(inst, 0x38, 7)
	case mir.M_TEST:
		return encodeTest(inst)
	case mir.M_NOT:
		return encodeUnary(inst, 2)
	case mir.M_NEG:
		return encodeUnary(inst, 3)
	case mir.M_IMUL:
		return encodeImul(inst)
	case mir.M_IDIV:
		return encodeDivMul(inst, 7)
	case mir.M_DIV:
		return encodeDivMul(inst, 6)
	case mir.M_SHL:
		return encodeShift(inst, 4)
	case mir.M_SHR:
		return encodeShift(inst, 5)
	case mir.M_SAR:
		return encodeShift(inst, 7)
	case mir.M_SETCC:
		return encodeSetcc(inst)
	case mir.M_JMP:
		return encodedInst{bytes: []byte{0xE9, 0, 0, 0, 0}, jumpTarget: inst.Label, rel32At: 1}, nil
	case mir.M_JCC:
		cc := ccIndex(inst.Cond)
		return encodedInst{bytes: []byte{0x0F, 0x80 | cc, 0, 0, 0, 0}, jumpTarget: inst.Label, rel32At: 2}, nil
	case mir.M_CALL:
		return encodeCall(inst)
	case mir.M_RET:
		return simple(0xC3), nil
	case mir.M_PUSH:
		return encodePushPop(inst, 0x50)
	case mir.M_POP:
		return encodePushPop(inst, 0x58)
	case mir.M_CQO:
		return encodeCqo(inst)
	case mir.M_NOP:
		return simple(0x90), nil
	default:
		return encodedInst{}, fmt.Errorf("%w: no encoding for %v", cgerr.Unsupported, inst.Op)
	}
}

func ccIndex(c mir.CondCode) byte {
	switch c {
	case mir.CondE:
		return 0x4
	case mir.CondNE:
		return 0x5
	case mir.CondL:
		return 0xC
	case mir.CondLE:
		return 0xE
	case mir.CondG:
		return 0xF
	case mir.CondGE:
		return 0xD
	default:
		return 0x4
	}
}

// regRIPRelative reports whether o addresses a not-yet-linked symbol —
// either a RIP-relative memory operand (mir.RIPMem) or a global's
// member offset (mir.GlobalOperand) — rather than a resolved
// base+displacement.
func regRIPRelative(o mir.MachineOperand) bool {
	return (o.Kind == mir.OperandMem && o.RIPRel) || o.Kind == mir.OperandGlobal
}

// encodeRIPOperand builds a RIP-relative ModRM (mod=00, rm=101) plus a
// placeholder rel32, returning the relocation site so the caller can
// register it once the instruction's absolute position is known.
func encodeRIPOperand(reg byte, regHigh bool) (bytes []byte, relocAt int, rex rexState) {
	rex = rexState{r: regHigh}
	modrm := 0x05 | (reg << 3)
	return []byte{modrm, 0, 0, 0, 0}, 1, rex
}

func encodeMov(inst *mir.MInst) (encodedInst, error) {
	dst, src := inst.Operands[0], inst.Operands[1]
	if inst.Op == mir.M_STORE {
		return encodeStoreLike(dst, src, 0x89, 0x88)
	}
	if inst.Op == mir.M_LOAD {
		return encodeLoadLike(dst, src, 0x8B, 0x8A)
	}
	if dst.Kind == mir.OperandReg && src.Kind == mir.OperandImm {
		return encodeMovRegImm(dst, src.Imm)
	}
	if dst.Kind == mir.OperandReg && src.Kind == mir.OperandReg {
		return encodeMovRegReg(dst, src)
	}
	if dst.Kind == mir.OperandReg && src.Kind == mir.OperandMem {
		return encodeLoadLike(dst, src, 0x8B, 0x8A)
	}
	if dst.Kind == mir.OperandMem && src.Kind == mir.OperandReg {
		return encodeStoreLike(dst, src, 0x89, 0x88)
	}
	return encodedInst{}, fmt.Errorf("%w: unsupported mov operand shape", cgerr.Unsupported)
}

func regRex(size int) bool { return size == 8 }

func fitsInt32(value int64) bool {
	return value >= math.MinInt32 && value <= math.MaxInt32
}

func encodeMovRegImm(reg mir.MachineOperand, value int64) (encodedInst, error) {
	code, high := encoding(reg.Reg)
	rex := rexState{w: regRex(reg.Size), b: high, force: reg.Size == 1 && needsByteREX(reg.Reg)}

	var out []byte
	if p, ok := operandSizePrefix(reg.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}

	if reg.Size == 8 && fitsInt32(value) {
		// C7 /0 id sign-extends its 32-bit immediate to 64 bits, so any
		// value in this range needs neither the rd-encoded opcode nor
		// the full 8-byte immediate the B8 movabs form carries.
		imm := make([]byte, 4)
		binary.LittleEndian.PutUint32(imm, uint32(value))
		out = append(out, 0xC7, 0xC0|code)
		out = append(out, imm...)
		return encodedInst{bytes: out}, nil
	}

	var opcode byte
	var imm []byte
	switch reg.Size {
	case 8:
		opcode = 0xB8 + code
		imm = make([]byte, 8)
		binary.LittleEndian.PutUint64(imm, uint64(value))
	case 4:
		opcode = 0xB8 + code
		imm = make([]byte, 4)
		binary.LittleEndian.PutUint32(imm, uint32(value))
	case 2:
		opcode = 0xB8 + code
		imm = make([]byte, 2)
		binary.LittleEndian.PutUint16(imm, uint16(value))
	default:
		opcode = 0xB0 + code
		imm = []byte{byte(value)}
	}
	out = append(out, opcode)
	out = append(out, imm...)
	return encodedInst{bytes: out}, nil
}

func encodeMovRegReg(dst, src mir.MachineOperand) (encodedInst, error) {
	if dst.Size != src.Size {
		return encodedInst{}, fmt.Errorf("%w: mismatched register widths %d/%d", cgerr.Invariant, dst.Size, src.Size)
	}
	dstCode, dstHigh := encoding(dst.Reg)
	srcCode, srcHigh := encoding(src.Reg)
	rex := rexState{w: regRex(dst.Size), r: srcHigh, b: dstHigh, force: dst.Size == 1 && (needsByteREX(dst.Reg) || needsByteREX(src.Reg))}

	var out []byte
	if p, ok := operandSizePrefix(dst.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	opcode := byte(0x89)
	if dst.Size == 1 {
		opcode = 0x88
	}
	modrm := 0xC0 | srcCode<<3 | dstCode
	out = append(out, opcode, modrm)
	return encodedInst{bytes: out}, nil
}

// encodeLoadLike encodes "reg <- mem" shaped instructions (mov, movzx's
// caller handles its own opcode), used by both M_MOV reg,mem and M_LOAD.
func encodeLoadLike(dst, src mir.MachineOperand, wideOp, byteOp byte) (encodedInst, error) {
	dstCode, dstHigh := encoding(dst.Reg)

	if regRIPRelative(src) {
		bytes, relocAt, rex := encodeRIPOperand(dstCode, dstHigh)
		rex.w = regRex(dst.Size)
		var out []byte
		if p, ok := operandSizePrefix(dst.Size); ok {
			out = append(out, p)
		}
		if p, ok := rex.prefix(); ok {
			out = append(out, p)
		}
		opcode := wideOp
		if dst.Size == 1 {
			opcode = byteOp
		}
		out = append(out, opcode)
		relocAt += len(out)
		out = append(out, bytes...)
		return encodedInst{bytes: out, relocSym: src.Label, relocAt: relocAt, relocAddend: int64(src.Disp)}, nil
	}

	memEnc, err := encodeMemory(src)
	if err != nil {
		return encodedInst{}, err
	}
	rex := memEnc.rex
	rex.r = dstHigh
	rex.w = regRex(dst.Size)
	rex.force = rex.force || (dst.Size == 1 && dstHigh)

	var out []byte
	if p, ok := operandSizePrefix(dst.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	opcode := wideOp
	if dst.Size == 1 {
		opcode = byteOp
	}
	out = append(out, opcode, memEnc.modrm|dstCode<<3)
	out = append(out, memEnc.sib...)
	out = append(out, memEnc.disp...)
	return encodedInst{bytes: out}, nil
}

func encodeStoreLike(dst, src mir.MachineOperand, wideOp, byteOp byte) (encodedInst, error) {
	srcCode, srcHigh := encoding(src.Reg)

	if regRIPRelative(dst) {
		bytes, relocAt, rex := encodeRIPOperand(srcCode, srcHigh)
		rex.w = regRex(src.Size)
		var out []byte
		if p, ok := operandSizePrefix(src.Size); ok {
			out = append(out, p)
		}
		if p, ok := rex.prefix(); ok {
			out = append(out, p)
		}
		opcode := wideOp
		if src.Size == 1 {
			opcode = byteOp
		}
		out = append(out, opcode)
		relocAt += len(out)
		out = append(out, bytes...)
		return encodedInst{bytes: out, relocSym: dst.Label, relocAt: relocAt, relocAddend: int64(dst.Disp)}, nil
	}

	memEnc, err := encodeMemory(dst)
	if err != nil {
		return encodedInst{}, err
	}
	rex := memEnc.rex
	rex.r = srcHigh
	rex.w = regRex(src.Size)
	rex.force = rex.force || (src.Size == 1 && srcHigh)

	var out []byte
	if p, ok := operandSizePrefix(src.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	opcode := wideOp
	if src.Size == 1 {
		opcode = byteOp
	}
	out = append(out, opcode, memEnc.modrm|srcCode<<3)
	out = append(out, memEnc.sib...)
	out = append(out, memEnc.disp...)
	return encodedInst{bytes: out}, nil
}

func encodeLea(inst *mir.MInst) (encodedInst, error) {
	dst, src := inst.Operands[0], inst.Operands[1]
	dstCode, dstHigh := encoding(dst.Reg)

	if regRIPRelative(src) {
		bytes, relocAt, rex := encodeRIPOperand(dstCode, dstHigh)
		rex.w = true
		var out []byte
		if p, ok := rex.prefix(); ok {
			out = append(out, p)
		}
		out = append(out, 0x8D)
		relocAt += len(out)
		out = append(out, bytes...)
		return encodedInst{bytes: out, relocSym: src.Label, relocAt: relocAt, relocAddend: int64(src.Disp)}, nil
	}

	memEnc, err := encodeMemory(src)
	if err != nil {
		return encodedInst{}, err
	}
	rex := memEnc.rex
	rex.r = dstHigh
	rex.w = true

	var out []byte
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	out = append(out, 0x8D, memEnc.modrm|dstCode<<3)
	out = append(out, memEnc.sib...)
	out = append(out, memEnc.disp...)
	return encodedInst{bytes: out}, nil
}

func encodeMovX(inst *mir.MInst, signed bool) (encodedInst, error) {
	dst, src := inst.Operands[0], inst.Operands[1]
	dstCode, dstHigh := encoding(dst.Reg)

	op0, op1 := byte(0x0F), byte(0xB6)
	if signed {
		op1 = 0xBE
	}
	if src.Size == 2 {
		op1++
	}

	if src.Kind == mir.OperandReg {
		srcCode, srcHigh := encoding(src.Reg)
		rex := rexState{w: regRex(dst.Size), r: dstHigh, b: srcHigh, force: src.Size == 1 && (needsByteREX(src.Reg) || needsByteREX(dst.Reg))}
		var out []byte
		if p, ok := rex.prefix(); ok {
			out = append(out, p)
		}
		out = append(out, op0, op1, 0xC0|dstCode<<3|srcCode)
		return encodedInst{bytes: out}, nil
	}

	memEnc, err := encodeMemory(src)
	if err != nil {
		return encodedInst{}, err
	}
	rex := memEnc.rex
	rex.r = dstHigh
	rex.w = regRex(dst.Size)
	var out []byte
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	out = append(out, op0, op1, memEnc.modrm|dstCode<<3)
	out = append(out, memEnc.sib...)
	out = append(out, memEnc.disp...)
	return encodedInst{bytes: out}, nil
}

func encodeALU(inst *mir.MInst, regRegOp, immSubcode byte) (encodedInst, error) {
	dst, src := inst.Operands[0], inst.Operands[1]
	if dst.Kind != mir.OperandReg {
		return encodedInst{}, fmt.Errorf("%w: ALU destination must be a register", cgerr.Invariant)
	}
	if src.Kind == mir.OperandImm {
		return encodeALURegImm(dst, immSubcode, src.Imm)
	}
	if src.Kind != mir.OperandReg {
		return encodedInst{}, fmt.Errorf("%w: ALU source must be a register or immediate", cgerr.Unsupported)
	}
	dstCode, dstHigh := encoding(dst.Reg)
	srcCode, srcHigh := encoding(src.Reg)
	rex := rexState{w: regRex(dst.Size), r: srcHigh, b: dstHigh, force: dst.Size == 1 && (needsByteREX(dst.Reg) || needsByteREX(src.Reg))}

	var out []byte
	if p, ok := operandSizePrefix(dst.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	opcode := regRegOp | 1
	if dst.Size == 1 {
		opcode = regRegOp
	}
	out = append(out, opcode, 0xC0|srcCode<<3|dstCode)
	return encodedInst{bytes: out}, nil
}

func encodeALURegImm(reg mir.MachineOperand, subcode byte, value int64) (encodedInst, error) {
	code, high := encoding(reg.Reg)
	rex := rexState{w: regRex(reg.Size), b: high, force: reg.Size == 1 && needsByteREX(reg.Reg)}

	var out []byte
	if p, ok := operandSizePrefix(reg.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}

	var opcode byte
	var imm []byte
	switch reg.Size {
	case 1:
		opcode = 0x80
		imm = []byte{byte(value)}
	default:
		if value >= math.MinInt8 && value <= math.MaxInt8 {
			opcode = 0x83
			imm = []byte{byte(value)}
		} else {
			opcode = 0x81
			imm = make([]byte, 4)
			binary.LittleEndian.PutUint32(imm, uint32(value))
		}
	}
	out = append(out, opcode, 0xC0|subcode<<3|code)
	out = append(out, imm...)
	return encodedInst{bytes: out}, nil
}

func encodeTest(inst *mir.MInst) (encodedInst, error) {
	dst, src := inst.Operands[0], inst.Operands[1]
	dstCode, dstHigh := encoding(dst.Reg)
	srcCode, srcHigh := encoding(src.Reg)
	rex := rexState{w: regRex(dst.Size), r: srcHigh, b: dstHigh, force: dst.Size == 1 && (needsByteREX(dst.Reg) || needsByteREX(src.Reg))}

	var out []byte
	if p, ok := operandSizePrefix(dst.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	opcode := byte(0x85)
	if dst.Size == 1 {
		opcode = 0x84
	}
	out = append(out, opcode, 0xC0|srcCode<<3|dstCode)
	return encodedInst{bytes: out}, nil
}

func encodeUnary(inst *mir.MInst, subcode byte) (encodedInst, error) {
	reg := inst.Operands[0]
	code, high := encoding(reg.Reg)
	rex := rexState{w: regRex(reg.Size), b: high, force: reg.Size == 1 && needsByteREX(reg.Reg)}

	var out []byte
	if p, ok := operandSizePrefix(reg.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	opcode := byte(0xF7)
	if reg.Size == 1 {
		opcode = 0xF6
	}
	out = append(out, opcode, 0xC0|subcode<<3|code)
	return encodedInst{bytes: out}, nil
}

func encodeImul(inst *mir.MInst) (encodedInst, error) {
	dst, src := inst.Operands[0], inst.Operands[1]
	dstCode, dstHigh := encoding(dst.Reg)
	srcCode, srcHigh := encoding(src.Reg)
	rex := rexState{w: regRex(dst.Size), r: dstHigh, b: srcHigh}

	var out []byte
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	out = append(out, 0x0F, 0xAF, 0xC0|dstCode<<3|srcCode)
	return encodedInst{bytes: out}, nil
}

func encodeDivMul(inst *mir.MInst, subcode byte) (encodedInst, error) {
	reg := inst.Operands[0]
	code, high := encoding(reg.Reg)
	rex := rexState{w: regRex(reg.Size), b: high}

	var out []byte
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	out = append(out, 0xF7, 0xC0|subcode<<3|code)
	return encodedInst{bytes: out}, nil
}

func encodeShift(inst *mir.MInst, subcode byte) (encodedInst, error) {
	dst, amount := inst.Operands[0], inst.Operands[1]
	code, high := encoding(dst.Reg)
	rex := rexState{w: regRex(dst.Size), b: high}

	var out []byte
	if p, ok := operandSizePrefix(dst.Size); ok {
		out = append(out, p)
	}
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}

	if amount.Kind == mir.OperandImm {
		opcode := byte(0xC1)
		if dst.Size == 1 {
			opcode = 0xC0
		}
		out = append(out, opcode, 0xC0|subcode<<3|code, byte(amount.Imm))
		return encodedInst{bytes: out}, nil
	}

	// amount is CL, encoded implicitly.
	opcode := byte(0xD3)
	if dst.Size == 1 {
		opcode = 0xD2
	}
	out = append(out, opcode, 0xC0|subcode<<3|code)
	return encodedInst{bytes: out}, nil
}

func encodeSetcc(inst *mir.MInst) (encodedInst, error) {
	reg := inst.Operands[0]
	code, high := encoding(reg.Reg)
	rex := rexState{b: high, force: needsByteREX(reg.Reg)}

	var out []byte
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	out = append(out, 0x0F, 0x90|ccIndex(inst.Cond), 0xC0|code)
	return encodedInst{bytes: out}, nil
}

func encodeCall(inst *mir.MInst) (encodedInst, error) {
	target := inst.Operands[0]
	if target.Kind == mir.OperandFunc {
		out := []byte{0xE8, 0, 0, 0, 0}
		return encodedInst{bytes: out, relocSym: target.Label, relocAt: 1, relocAddend: 0}, nil
	}
	code, high := encoding(target.Reg)
	rex := rexState{b: high}
	var out []byte
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	out = append(out, 0xFF, 0xD0|code)
	return encodedInst{bytes: out}, nil
}

func encodePushPop(inst *mir.MInst, base byte) (encodedInst, error) {
	reg := inst.Operands[0]
	code, high := encoding(reg.Reg)
	rex := rexState{b: high}
	var out []byte
	if p, ok := rex.prefix(); ok {
		out = append(out, p)
	}
	out = append(out, base+code)
	return encodedInst{bytes: out}, nil
}

// encodeCqo emits cdq/cqo/cwd depending on operand width: the
// implicit rax-sign-extend-into-rdx instruction ahead of a signed idiv.
func encodeCqo(inst *mir.MInst) (encodedInst, error) {
	size := inst.Operands[0].Size
	switch size {
	case 8:
		return encodedInst{bytes: []byte{0x48, 0x99}}, nil
	case 2:
		return encodedInst{bytes: []byte{0x66, 0x99}}, nil
	default:
		return encodedInst{bytes: []byte{0x99}}, nil
	}
}

// localLabel names the block bl within function fn as the encoder's own
// intra-function jump target, distinct from any symbol a caller could
// reference: the ".L" prefix is what ResolveLocalLabels later scans for.
func localLabel(fn, bl string) string { return ".L" + fn + "." + bl }

// EncodeFunction appends fn's machine code to o's text section, records
// a symbol for the function itself, and records a ".L"-prefixed local
// symbol at each of its blocks. Every M_JMP/M_JCC becomes an ordinary
// DISP32PCRel relocation against its block's local symbol rather than a
// bespoke same-function fixup — the encoder does not distinguish "jump
// within this function" from "reference to any other symbol" until
// ResolveLocalLabels sweeps the object afterward. References to symbols
// outside the function (RIP-relative globals, calls) become the same
// kind of relocation, anchored at the function's final position in the
// section.
func EncodeFunction(o *obj.Object, mf *mir.MIRFunction, exported bool) error {
	code := o.CodeSection()
	base := len(code.Bytes)

	var buf []byte
	type labelSite struct {
		name   string
		offset int
	}
	var labels []labelSite
	type relocSite struct {
		pos    int
		sym    string
		addend int64
	}
	var relocs []relocSite

	for _, b := range mf.Blocks {
		labels = append(labels, labelSite{name: localLabel(mf.Name, b.Name), offset: len(buf)})
		for i := range b.Insts {
			inst := &b.Insts[i]
			enc, err := EncodeInstruction(inst)
			if err != nil {
				return fmt.Errorf("amd64: function %q: %w", mf.Name, err)
			}
			if enc.jumpTarget != "" {
				relocs = append(relocs, relocSite{pos: len(buf) + enc.rel32At, sym: localLabel(mf.Name, enc.jumpTarget), addend: 0})
			}
			if enc.relocSym != "" {
				relocs = append(relocs, relocSite{pos: len(buf) + enc.relocAt, sym: enc.relocSym, addend: enc.relocAddend})
			}
			buf = append(buf, enc.bytes...)
		}
	}

	code.Write(buf)
	for _, l := range labels {
		o.AddSymbol(obj.Symbol{Type: obj.SymNone, Name: l.name, Section: code.Name, Offset: base + l.offset})
	}
	for _, r := range relocs {
		o.AddRelocation(obj.Relocation{Type: obj.DISP32PCRel, Symbol: r.sym, Section: code.Name, Offset: base + r.pos, Addend: r.addend})
	}

	symType := obj.SymStatic
	if exported {
		symType = obj.SymExport
	}
	o.AddSymbol(obj.Symbol{Type: symType, Name: mf.Name, Section: code.Name, Offset: base})
	return nil
}

// ResolveLocalLabels is the post-emission pass every EncodeFunction call
// leaves for the object as a whole: it patches every relocation whose
// symbol name begins with ".L" directly into the code bytes (these never
// leave the object that produced them, so they need no linker), then
// removes those relocations and every ".L" symbol, including block
// labels no jump referenced. Called once, after
// every function in a compilation unit has been encoded, so a forward
// jump to a block encoded later in the same function — or another
// function's local labels not yet in scope while it was being encoded —
// still resolves.
func ResolveLocalLabels(o *obj.Object) error {
	var remainingRelocs []obj.Relocation

	for _, r := range o.Relocs {
		if !strings.HasPrefix(r.Symbol, ".L") {
			remainingRelocs = append(remainingRelocs, r)
			continue
		}
		sym, ok := o.FindSymbol(r.Symbol)
		if !ok {
			return fmt.Errorf("%w: local label %q has no matching symbol", cgerr.UnresolvedRef, r.Symbol)
		}
		sec := o.FindSection(r.Section)
		if sec == nil {
			return fmt.Errorf("%w: relocation references unknown section %q", cgerr.Invariant, r.Section)
		}
		disp32 := int32(sym.Offset) - int32(r.Offset+4) + int32(r.Addend)
		if r.Offset+4 > len(sec.Bytes) {
			return fmt.Errorf("%w: relocation at %s+%d falls outside its section", cgerr.Invariant, r.Section, r.Offset)
		}
		binary.LittleEndian.PutUint32(sec.Bytes[r.Offset:r.Offset+4], uint32(disp32))
	}
	o.Relocs = remainingRelocs

	var remainingSyms []obj.Symbol
	for _, s := range o.Symbols {
		if strings.HasPrefix(s.Name, ".L") {
			continue
		}
		remainingSyms = append(remainingSyms, s)
	}
	o.Symbols = remainingSyms
	return nil
}
