package compile

import (
	"strings"
	"testing"

	"github.com/x64cc/x64cc/internal/amd64"
	"github.com/x64cc/x64cc/internal/mir"
	"github.com/x64cc/x64cc/internal/obj"
	"github.com/x64cc/x64cc/internal/typesys"
)

// addOneProgram is "export fn add_one(n: i32) -> i32 { return n + 1; }",
// the smallest program that exercises a real function body end to end.
func addOneProgram() *typesys.Program {
	i32 := typesys.I32
	fn := &typesys.Function{
		Name:    "add_one",
		Type:    &typesys.FunctionType{Params: []typesys.Type{i32}, Result: i32},
		Params:  []*typesys.ParamDecl{{Name: "n", Type: i32}},
		Linkage: typesys.Exported,
		Leaf:    true,
		Body: []typesys.Stmt{
			&typesys.ReturnStmt{Value: typesys.NewBinaryExpr(typesys.BinAdd,
				typesys.NewVarRef("n", i32), typesys.NewIntLiteral(1, i32), i32)},
		},
	}
	return &typesys.Program{Functions: []*typesys.Function{fn}}
}

func TestCompileSimpleFunctionProducesExportedSymbol(t *testing.T) {
	o, err := Compile(addOneProgram(), Config{CallConvention: SystemV, Optimize: true})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	// add_one is not extern and not literally "main", so §6.3 mangles it;
	// only its mangled form should be present in the object.
	if _, ok := o.FindSymbol("add_one"); ok {
		t.Fatalf("expected add_one's plain name to be mangled away, got:\n%s", o.String())
	}
	var exportSym obj.Symbol
	found := false
	for _, s := range o.Symbols {
		if strings.HasPrefix(s.Name, "_XF7add_one") {
			exportSym, found = s, true
		}
	}
	if !found {
		t.Fatalf("expected a mangled export symbol for add_one, got:\n%s", o.String())
	}
	if exportSym.Type != obj.SymExport {
		t.Fatalf("expected add_one to be an export symbol, got %v", exportSym.Type)
	}
	if o.CodeSection().Size() == 0 {
		t.Fatalf("expected non-empty code section")
	}

	// No .L-prefixed artifact should survive Compile: it runs
	// ResolveLocalLabels itself after encoding every function.
	if strings.Contains(o.String(), ".L") {
		t.Fatalf("expected no local-label artifacts to survive Compile, got:\n%s", o.String())
	}
}

func TestCompileExternFunctionYieldsExternalSymbolOnly(t *testing.T) {
	extern := &typesys.Function{
		Name:     "puts",
		Type:     &typesys.FunctionType{Params: []typesys.Type{&typesys.PointerType{Elem: typesys.I8}}, Result: typesys.I32},
		IsExtern: true,
	}
	o, err := Compile(&typesys.Program{Functions: []*typesys.Function{extern}}, Config{CallConvention: SystemV})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	sym, ok := o.FindSymbol("puts")
	if !ok || sym.Type != obj.SymExternal {
		t.Fatalf("expected puts to be an external symbol, got %v ok=%v", sym, ok)
	}
	if o.CodeSection().Size() != 0 {
		t.Fatalf("expected an extern-only program to emit no code")
	}
}

func TestCompileDirectCallReferencesMangledCallee(t *testing.T) {
	i32 := typesys.I32
	helperSig := &typesys.FunctionType{Params: []typesys.Type{i32}, Result: i32}
	helper := &typesys.Function{
		Name:   "helper",
		Type:   helperSig,
		Params: []*typesys.ParamDecl{{Name: "x", Type: i32}},
		Leaf:   true,
		Body:   []typesys.Stmt{&typesys.ReturnStmt{Value: typesys.NewVarRef("x", i32)}},
	}
	caller := &typesys.Function{
		Name:    "caller",
		Type:    &typesys.FunctionType{Params: []typesys.Type{i32}, Result: i32},
		Params:  []*typesys.ParamDecl{{Name: "x", Type: i32}},
		Linkage: typesys.Exported,
		Body: []typesys.Stmt{
			&typesys.ReturnStmt{Value: typesys.NewCallExpr(
				typesys.NewFuncRef("helper", helperSig),
				[]typesys.Expr{typesys.NewVarRef("x", i32)},
				i32,
			)},
		},
	}

	o, err := Compile(&typesys.Program{Functions: []*typesys.Function{helper, caller}}, Config{CallConvention: SystemV})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if _, ok := o.FindSymbol("helper"); ok {
		t.Fatalf("expected helper's definition to be mangled, plain name should not survive")
	}
	found := false
	for _, s := range o.Symbols {
		if strings.HasPrefix(s.Name, "_XF6helper") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a mangled symbol for helper, got:\n%s", o.String())
	}
}

func TestCompileReportsProgress(t *testing.T) {
	var calls []string
	cfg := Config{CallConvention: SystemV, Progress: func(done, total int, name string) {
		calls = append(calls, name)
	}}
	if _, err := Compile(addOneProgram(), cfg); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	// The reported name is post-mangling, since mangleModule runs before
	// the per-function compile loop that calls back into Progress.
	if len(calls) != 1 || !strings.HasPrefix(calls[0], "_XF7add_one") {
		t.Fatalf("expected one progress call for add_one's mangled name, got %v", calls)
	}
}

func TestCompileUnknownCallConventionErrors(t *testing.T) {
	if _, err := Compile(addOneProgram(), Config{CallConvention: CallConvention(99)}); err == nil {
		t.Fatalf("expected an error for an unknown calling convention")
	}
}

func TestRegistersInUseTracksBothRegAndMemoryOperands(t *testing.T) {
	mf := &mir.MIRFunction{Blocks: []*mir.MIRBlock{{Insts: []mir.MInst{
		{Op: mir.M_MOV, Def: 0, Operands: []mir.MachineOperand{mir.Reg(amd64.RAX, 8), mir.Reg(amd64.RCX, 8)}},
		{Op: mir.M_LOAD, Def: 0, Operands: []mir.MachineOperand{mir.Reg(amd64.RDX, 8), mir.MemIndexed(amd64.RBX, amd64.R9, 4, 0, 8)}},
	}}}}

	got := registersInUse(mf)
	for _, r := range []mir.VReg{amd64.RAX, amd64.RCX, amd64.RDX, amd64.RBX, amd64.R9} {
		if got&(1<<uint(r)) == 0 {
			t.Fatalf("expected register %d to be marked in use, got bitset %#x", r, got)
		}
	}
	if got&(1<<uint(amd64.R15)) != 0 {
		t.Fatalf("expected an unreferenced register to stay unmarked, got bitset %#x", got)
	}
}
