package amd64

import (
	"testing"

	"github.com/x64cc/x64cc/internal/typesys"
)

func TestMangleFunctionNameSkipsExternAndMain(t *testing.T) {
	extern := &typesys.Function{Name: "puts", IsExtern: true, Type: &typesys.FunctionType{Result: typesys.I32}}
	if got := MangleFunctionName(extern); got != "puts" {
		t.Fatalf("expected extern function name unmangled, got %q", got)
	}

	main := &typesys.Function{Name: "main", Type: &typesys.FunctionType{Result: typesys.I32}}
	if got := MangleFunctionName(main); got != "main" {
		t.Fatalf("expected main unmangled, got %q", got)
	}
}

func TestMangleFunctionNameSimpleSignature(t *testing.T) {
	fn := &typesys.Function{
		Name: "abs",
		Type: &typesys.FunctionType{Params: []typesys.Type{typesys.I32}, Result: typesys.I32},
	}
	got := MangleFunctionName(fn)
	want := "_XF3absF3i323i32E"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMangleFunctionNamePointerAndArrayParams(t *testing.T) {
	fn := &typesys.Function{
		Name: "f",
		Type: &typesys.FunctionType{
			Params: []typesys.Type{
				&typesys.PointerType{Elem: typesys.I8},
				&typesys.ArrayType{Elem: typesys.I32, N: 4},
			},
			Result: typesys.Void,
		},
	}
	got := MangleFunctionName(fn)
	want := "_XF1fF4voidP2i8A4E3i32E"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMangleFunctionNameStructParamByTypeNotMemberNames(t *testing.T) {
	point := &typesys.StructType{Name: "Point", Members: []typesys.StructMember{
		{Name: "x", Type: typesys.I32},
		{Name: "y", Type: typesys.I32},
	}}
	fn := &typesys.Function{
		Name: "dist",
		Type: &typesys.FunctionType{Params: []typesys.Type{point}, Result: typesys.I32},
	}
	got := MangleFunctionName(fn)
	want := "_XF4distF3i325Point3i323i32E"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMangleFunctionNameDistinguishesOverloadsByType(t *testing.T) {
	i32fn := &typesys.Function{Name: "id", Type: &typesys.FunctionType{Params: []typesys.Type{typesys.I32}, Result: typesys.I32}}
	i64fn := &typesys.Function{Name: "id", Type: &typesys.FunctionType{Params: []typesys.Type{typesys.I64}, Result: typesys.I64}}
	if MangleFunctionName(i32fn) == MangleFunctionName(i64fn) {
		t.Fatalf("expected distinct mangled names for distinct signatures sharing a base name")
	}
}
