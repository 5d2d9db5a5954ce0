// Package compile orchestrates the whole backend: SSA construction,
// name mangling, per-function instruction selection, register
// allocation, and x86-64 encoding into a Generic Object File. Every
// phase runs to completion before the next begins and none may be
// skipped or reordered; there is no concurrency here to synchronize.
package compile

import (
	"fmt"
	"log/slog"

	"github.com/x64cc/x64cc/internal/amd64"
	"github.com/x64cc/x64cc/internal/cgerr"
	"github.com/x64cc/x64cc/internal/ir"
	"github.com/x64cc/x64cc/internal/isel"
	"github.com/x64cc/x64cc/internal/mir"
	"github.com/x64cc/x64cc/internal/obj"
	"github.com/x64cc/x64cc/internal/regalloc"
	"github.com/x64cc/x64cc/internal/typesys"
)

func machineDescription(cc CallConvention) (regalloc.MachineDescription, error) {
	switch cc {
	case SystemV:
		return amd64.SystemV, nil
	case MicrosoftX64:
		return amd64.MicrosoftX64, nil
	default:
		return nil, fmt.Errorf("compile: %w: unknown calling convention %d", cgerr.Invariant, int(cc))
	}
}

// Compile lowers prog to a linkable Generic Object File under cfg. No
// partial object is returned on error: everything Compile allocated
// along the way (the IR module, MIR functions, allocator scratch state)
// goes out of scope with the call, matching spec.md's scoped-resource
// model.
func Compile(prog *typesys.Program, cfg Config) (*obj.Object, error) {
	md, err := machineDescription(cfg.CallConvention)
	if err != nil {
		return nil, err
	}

	slog.Info("building SSA", "functions", len(prog.Functions), "globals", len(prog.Globals))
	mod, err := ir.Build(prog)
	if err != nil {
		return nil, fmt.Errorf("compile: build ir: %w", err)
	}

	mangleModule(mod, prog)

	o := obj.NewObject()
	emitGlobals(o, mod)

	total := len(mod.Functions)
	for i, f := range mod.Functions {
		if len(f.Blocks) == 0 {
			// Extern declaration: nothing to select, allocate, or
			// encode, just a promise the linker must fulfill.
			o.AddSymbol(obj.Symbol{Type: obj.SymExternal, Name: f.Name})
			reportProgress(cfg, i+1, total, f.Name)
			continue
		}

		slog.Debug("selecting instructions", "function", f.Name)
		mf, err := isel.Select(f, md)
		if err != nil {
			return nil, fmt.Errorf("compile: function %q: isel: %w", f.Name, err)
		}

		slog.Debug("allocating registers", "function", f.Name, "vregs", mf.NumVRegs)
		if err := regalloc.Allocate(mf, md, cfg.Optimize); err != nil {
			return nil, fmt.Errorf("compile: function %q: regalloc: %w", f.Name, err)
		}
		f.LocalsTotalSize = mf.FrameSize
		f.RegistersInUse = registersInUse(mf)

		exported := f.Linkage == typesys.Exported
		slog.Debug("encoding", "function", f.Name, "exported", exported, "frame_size", mf.FrameSize)
		if err := amd64.EncodeFunction(o, mf, exported); err != nil {
			return nil, fmt.Errorf("compile: function %q: encode: %w", f.Name, err)
		}
		reportProgress(cfg, i+1, total, f.Name)
	}

	if err := amd64.ResolveLocalLabels(o); err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	slog.Info("compile finished", "functions", total, "code_bytes", o.CodeSection().Size())
	return o, nil
}

// registersInUse scans mf, once every operand is physical, for the set
// of amd64 general-purpose registers the function actually references,
// returned as a bitset indexed by each register's number in amd64's
// register enumeration (not its ModRM encoding).
func registersInUse(mf *mir.MIRFunction) uint32 {
	var bits uint32
	mark := func(r mir.VReg) {
		if !r.IsVirtual() {
			bits |= 1 << uint(r)
		}
	}
	for _, b := range mf.Blocks {
		for _, inst := range b.Insts {
			for _, o := range inst.Operands {
				switch o.Kind {
				case mir.OperandReg:
					mark(o.Reg)
				case mir.OperandMem:
					if o.HasBase {
						mark(o.Base)
					}
					if o.HasIdx {
						mark(o.Index)
					}
				}
			}
		}
	}
	return bits
}

func reportProgress(cfg Config, done, total int, name string) {
	if cfg.Progress != nil {
		cfg.Progress(done, total, name)
	}
}

// emitGlobals lays out mod's globals into a ".data" section (literal
// initializer bytes) or a ".bss" fill section (zero-initialized),
// recording a symbol for each; an Imported global gets only an external
// symbol, no storage, since its bytes live in whatever object defines it.
func emitGlobals(o *obj.Object, mod *ir.Module) {
	for _, g := range mod.Globals {
		if g.Linkage == typesys.Imported {
			o.AddSymbol(obj.Symbol{Type: obj.SymExternal, Name: g.Name})
			continue
		}

		symType := obj.SymStatic
		if g.Linkage == typesys.Exported {
			symType = obj.SymExport
		}

		if g.Init != nil {
			data := o.Section(".data", obj.AttrWritable)
			offset := data.Write(g.Init)
			o.AddSymbol(obj.Symbol{Type: symType, Name: g.Name, Section: data.Name, Offset: offset})
			continue
		}

		bss := o.Section(".bss", obj.AttrWritable|obj.AttrSpanFill)
		offset := bss.FillCount
		bss.FillCount += g.Type.SizeOf()
		o.AddSymbol(obj.Symbol{Type: symType, Name: g.Name, Section: bss.Name, Offset: offset})
	}
}
