package amd64

import (
	"strconv"
	"strings"

	"github.com/x64cc/x64cc/internal/typesys"
)

// MangleFunctionName produces the linker-visible symbol for fn: every
// non-extern function whose name is not "main" is mangled to
// _XF<len><name><type-mangle>, so two functions overloaded on parameter
// type never collide in the object file's symbol table. main and every
// extern declaration keep their bare source name so they still link
// against the C entry point / runtime they're declared against.
func MangleFunctionName(fn *typesys.Function) string {
	if fn.IsExtern || fn.Name == "main" {
		return fn.Name
	}
	var sb strings.Builder
	sb.WriteString("_XF")
	sb.WriteString(strconv.Itoa(len(fn.Name)))
	sb.WriteString(fn.Name)
	mangleType(&sb, fn.Type)
	return sb.String()
}

// mangleType is mangle_type_to's structural grammar: a pointer nests as
// P<T>, an array as A<n>E<T>, a function as F<ret><params...>E, and
// every named or primitive type falls through to <len><name>. Struct
// members participate by type only, never by member name, mirroring
// mangle_type_to's walk over t->structure.members.
func mangleType(sb *strings.Builder, t typesys.Type) {
	switch tt := t.(type) {
	case *typesys.PointerType:
		sb.WriteByte('P')
		mangleType(sb, tt.Elem)
	case *typesys.ArrayType:
		sb.WriteByte('A')
		sb.WriteString(strconv.Itoa(tt.N))
		sb.WriteByte('E')
		mangleType(sb, tt.Elem)
	case *typesys.FunctionType:
		sb.WriteByte('F')
		mangleType(sb, tt.Result)
		for _, p := range tt.Params {
			mangleType(sb, p)
		}
		sb.WriteByte('E')
	case *typesys.StructType:
		mangleNamed(sb, tt.Name)
		for _, m := range tt.Members {
			mangleType(sb, m.Type)
		}
	default:
		mangleNamed(sb, t.String())
	}
}

func mangleNamed(sb *strings.Builder, name string) {
	sb.WriteString(strconv.Itoa(len(name)))
	sb.WriteString(name)
}
