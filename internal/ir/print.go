package ir

import (
	"fmt"
	"strings"
)

// String renders m in a linear, greppable form used by tests to assert
// on instruction shapes without a real disassembler. It is not a
// serialization format — nothing parses it back.
func (m *Module) String() string {
	var sb strings.Builder
	for _, g := range m.Globals {
		fmt.Fprintf(&sb, "global %s %s\n", g.Name, g.Type)
	}
	for _, f := range m.Functions {
		sb.WriteString(f.String())
	}
	return sb.String()
}

func (f *Function) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "function %s {\n", f.Name)
	for _, b := range f.Blocks {
		fmt.Fprintf(&sb, "%s\n", b.String())
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (b *BasicBlock) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s:", blockLabel(b))
	for _, inst := range b.Instructions {
		fmt.Fprintf(&sb, "\n  %s", inst.String())
	}
	return sb.String()
}

func blockLabel(b *BasicBlock) string {
	return fmt.Sprintf("%s.%d", b.Name, b.ID)
}

func valueRef(inst *Instruction) string {
	if inst == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%%%d", inst.ID)
}

func (inst *Instruction) String() string {
	lhs := ""
	if !inst.Op.IsTerminator() && inst.Type != nil {
		lhs = fmt.Sprintf("%s = ", valueRef(inst))
	}
	switch inst.Op {
	case OpConst:
		return fmt.Sprintf("%s%s %d", lhs, inst.Op, inst.ConstValue)
	case OpParam, OpFuncAddr, OpGlobalAddr, OpAlloca:
		return fmt.Sprintf("%s%s %s", lhs, inst.Op, inst.Name)
	case OpICmp:
		return fmt.Sprintf("%s%s.%s %s, %s", lhs, inst.Op, inst.Cmp, valueRef(inst.Operands[0]), valueRef(inst.Operands[1]))
	case OpCall:
		operands := inst.Operands
		target := inst.Callee
		if target == "" {
			// Indirect call: Operands[0] is the callee value itself.
			target = valueRef(operands[0])
			operands = operands[1:]
		}
		args := make([]string, len(operands))
		for i, o := range operands {
			args[i] = valueRef(o)
		}
		return fmt.Sprintf("%s%s %s(%s)", lhs, inst.Op, target, strings.Join(args, ", "))
	case OpPhi:
		parts := make([]string, len(inst.Operands))
		for i, o := range inst.Operands {
			parts[i] = fmt.Sprintf("[%s, %s]", valueRef(o), blockLabel(inst.PhiIncoming[i]))
		}
		return fmt.Sprintf("%s%s %s", lhs, inst.Op, strings.Join(parts, ", "))
	case OpBr:
		return fmt.Sprintf("%s %s", inst.Op, blockLabel(inst.Targets[0]))
	case OpCondBr:
		return fmt.Sprintf("%s %s, %s, %s", inst.Op, valueRef(inst.Operands[0]), blockLabel(inst.Targets[0]), blockLabel(inst.Targets[1]))
	case OpRet:
		if len(inst.Operands) == 0 {
			return inst.Op.String()
		}
		return fmt.Sprintf("%s %s", inst.Op, valueRef(inst.Operands[0]))
	case OpUnreachable:
		return inst.Op.String()
	default:
		args := make([]string, len(inst.Operands))
		for i, o := range inst.Operands {
			args[i] = valueRef(o)
		}
		return fmt.Sprintf("%s%s %s", lhs, inst.Op, strings.Join(args, ", "))
	}
}
