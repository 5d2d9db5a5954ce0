package compile

import (
	"github.com/x64cc/x64cc/internal/amd64"
	"github.com/x64cc/x64cc/internal/ir"
	"github.com/x64cc/x64cc/internal/typesys"
)

// mangleModule renames every non-extern, non-main function in mod to its
// mangled symbol and rewrites every reference to it (a direct call's
// resolved Callee, or a function address taken as a first-class value via
// OpFuncAddr) so both sides agree on the linked name. prog's
// functions and mod's functions are the same program in the same order
// (ir.Build appends exactly one *ir.Function per *typesys.Function), so
// mangled names are computed by walking them in lockstep rather than by
// re-deriving type information mod alone no longer carries.
func mangleModule(mod *ir.Module, prog *typesys.Program) {
	renamed := make(map[string]string, len(mod.Functions))
	for i, f := range mod.Functions {
		renamed[f.Name] = amd64.MangleFunctionName(prog.Functions[i])
	}
	for _, f := range mod.Functions {
		f.Name = renamed[f.Name]
	}
	for _, f := range mod.Functions {
		for _, b := range f.Blocks {
			for _, inst := range b.Instructions {
				switch {
				case inst.Op == ir.OpCall && inst.Callee != "":
					if nn, ok := renamed[inst.Callee]; ok {
						inst.Callee = nn
					}
				case inst.Op == ir.OpFuncAddr:
					if nn, ok := renamed[inst.Name]; ok {
						inst.Name = nn
					}
				}
			}
		}
	}
}
