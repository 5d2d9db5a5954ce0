package typesys

// This file is the only public way to construct Expr nodes from outside
// the package: exprBase carries its Type unexported, so callers without a
// real front end (there isn't one here) need constructors instead of
// struct literals.

func NewIntLiteral(v int64, t Type) *IntLiteral {
	return &IntLiteral{exprBase: exprBase{T: t}, Value: v}
}

func NewVarRef(name string, t Type) *VarRef {
	return &VarRef{exprBase: exprBase{T: t}, Name: name}
}

func NewFuncRef(name string, t Type) *FuncRef {
	return &FuncRef{exprBase: exprBase{T: t}, Name: name}
}

func NewUnaryExpr(op UnaryOp, x Expr, t Type) *UnaryExpr {
	return &UnaryExpr{exprBase: exprBase{T: t}, Op: op, X: x}
}

func NewBinaryExpr(op BinaryOp, l, r Expr, t Type) *BinaryExpr {
	return &BinaryExpr{exprBase: exprBase{T: t}, Op: op, L: l, R: r}
}

func NewCallExpr(callee Expr, args []Expr, t Type) *CallExpr {
	return &CallExpr{exprBase: exprBase{T: t}, Callee: callee, Args: args}
}

func NewCastExpr(x Expr, to Type) *CastExpr {
	return &CastExpr{exprBase: exprBase{T: to}, X: x}
}

func NewMemberExpr(x Expr, field string, t Type) *MemberExpr {
	return &MemberExpr{exprBase: exprBase{T: t}, X: x, Field: field}
}

func NewIfExpr(cond Expr, then, els []Stmt, t Type) *IfExpr {
	return &IfExpr{exprBase: exprBase{T: t}, Cond: cond, Then: then, Else: els}
}

func NewBlockExpr(stmts []Stmt, t Type) *BlockExpr {
	return &BlockExpr{exprBase: exprBase{T: t}, Stmts: stmts}
}
