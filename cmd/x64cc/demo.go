package main

import "github.com/x64cc/x64cc/internal/typesys"

// demoProgram builds a small checked program in-process, standing in for
// the lexer/parser/type-checker this repo does not implement. It exercises
// arithmetic, a direct call, a conditional, a loop with a break and a
// continue, a pointer/struct member store, and a plain and an exported
// global, so a single run touches every lowering path from SSA
// construction through encoding.
//
//	extern fn puts(msg: i8*) -> i32
//
//	struct Point { x: i32, y: i32 }
//
//	global counter: i32 = 0
//	export global origin: Point = { 0, 0 }
//
//	fn abs(n: i32) -> i32 {
//	    if (n < 0) { return 0 - n; }
//	    return n;
//	}
//
//	export fn sum_to(n: i32) -> i32 {
//	    var total: i32 = 0;
//	    var i: i32 = 0;
//	    while (i < n) {
//	        i = i + 1;
//	        if (i == 5) { continue; }
//	        if (i == 20) { break; }
//	        total = total + abs(i);
//	    }
//	    counter = counter + 1;
//	    origin.x = total;
//	    return total;
//	}
func demoProgram() *typesys.Program {
	i32 := typesys.I32
	pointT := &typesys.StructType{Name: "Point", Members: []typesys.StructMember{
		{Name: "x", Type: i32},
		{Name: "y", Type: i32},
	}}

	absSig := &typesys.FunctionType{Params: []typesys.Type{i32}, Result: i32}
	nParam := &typesys.ParamDecl{Name: "n", Type: i32}
	nRef := typesys.NewVarRef("n", i32)
	zero := typesys.NewIntLiteral(0, i32)

	absFn := &typesys.Function{
		Name:   "abs",
		Type:   absSig,
		Params: []*typesys.ParamDecl{nParam},
		Body: []typesys.Stmt{
			typesys.NewIfExpr(
				typesys.NewBinaryExpr(typesys.BinLt, nRef, zero, typesys.Void),
				[]typesys.Stmt{&typesys.ReturnStmt{Value: typesys.NewBinaryExpr(typesys.BinSub, zero, nRef, i32)}},
				nil,
				typesys.Void,
			),
			&typesys.ReturnStmt{Value: nRef},
		},
		Leaf: true,
	}

	sumSig := &typesys.FunctionType{Params: []typesys.Type{i32}, Result: i32}
	sumParam := &typesys.ParamDecl{Name: "n", Type: i32}
	sumN := typesys.NewVarRef("n", i32)

	sumFn := &typesys.Function{
		Name:    "sum_to",
		Type:    sumSig,
		Params:  []*typesys.ParamDecl{sumParam},
		Linkage: typesys.Exported,
		Body: []typesys.Stmt{
			&typesys.VarDecl{Name: "total", Type: i32, Init: typesys.NewIntLiteral(0, i32)},
			&typesys.VarDecl{Name: "i", Type: i32, Init: typesys.NewIntLiteral(0, i32)},
			&typesys.WhileStmt{
				Cond: typesys.NewBinaryExpr(typesys.BinLt, typesys.NewVarRef("i", i32), sumN, typesys.Void),
				Body: []typesys.Stmt{
					&typesys.AssignStmt{
						LHS: typesys.NewVarRef("i", i32),
						RHS: typesys.NewBinaryExpr(typesys.BinAdd, typesys.NewVarRef("i", i32), typesys.NewIntLiteral(1, i32), i32),
					},
					typesys.NewIfExpr(
						typesys.NewBinaryExpr(typesys.BinEq, typesys.NewVarRef("i", i32), typesys.NewIntLiteral(5, i32), typesys.Void),
						[]typesys.Stmt{&typesys.ContinueStmt{}},
						nil,
						typesys.Void,
					),
					typesys.NewIfExpr(
						typesys.NewBinaryExpr(typesys.BinEq, typesys.NewVarRef("i", i32), typesys.NewIntLiteral(20, i32), typesys.Void),
						[]typesys.Stmt{&typesys.BreakStmt{}},
						nil,
						typesys.Void,
					),
					&typesys.AssignStmt{
						LHS: typesys.NewVarRef("total", i32),
						RHS: typesys.NewBinaryExpr(typesys.BinAdd,
							typesys.NewVarRef("total", i32),
							typesys.NewCallExpr(typesys.NewFuncRef("abs", absSig), []typesys.Expr{typesys.NewVarRef("i", i32)}, i32),
							i32),
					},
				},
			},
			&typesys.AssignStmt{
				LHS: typesys.NewVarRef("counter", i32),
				RHS: typesys.NewBinaryExpr(typesys.BinAdd, typesys.NewVarRef("counter", i32), typesys.NewIntLiteral(1, i32), i32),
			},
			&typesys.AssignStmt{
				LHS: typesys.NewMemberExpr(typesys.NewVarRef("origin", pointT), "x", i32),
				RHS: typesys.NewVarRef("total", i32),
			},
			&typesys.ReturnStmt{Value: typesys.NewVarRef("total", i32)},
		},
	}

	putsFn := &typesys.Function{
		Name:     "puts",
		Type:     &typesys.FunctionType{Params: []typesys.Type{&typesys.PointerType{Elem: typesys.I8}}, Result: i32},
		Params:   []*typesys.ParamDecl{{Name: "msg", Type: &typesys.PointerType{Elem: typesys.I8}}},
		IsExtern: true,
	}

	return &typesys.Program{
		Functions: []*typesys.Function{putsFn, absFn, sumFn},
		Globals: []*typesys.GlobalDecl{
			{Name: "counter", Type: i32, Linkage: typesys.Local, Init: nil},
			{Name: "origin", Type: pointT, Linkage: typesys.Exported, Init: nil},
		},
	}
}
