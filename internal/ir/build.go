package ir

import (
	"fmt"

	"github.com/x64cc/x64cc/internal/cgerr"
	"github.com/x64cc/x64cc/internal/typesys"
)

// Builder lowers a checked typesys.Program into a Module. One Builder is
// used per Module; it is not safe for concurrent use across functions.
type Builder struct {
	mod           *Module
	globals       map[string]*Global
	noReturnFuncs map[string]bool
	loopStack     []loopContext
}

type loopContext struct {
	continueTarget *BasicBlock
	breakTarget    *BasicBlock
}

type scope struct {
	vars   map[string]*Instruction // name -> alloca
	parent *scope
}

func newScope(parent *scope) *scope {
	return &scope{vars: make(map[string]*Instruction), parent: parent}
}

func (s *scope) lookup(name string) (*Instruction, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Build lowers prog into a fresh Module.
func Build(prog *typesys.Program) (*Module, error) {
	b := &Builder{
		mod:           &Module{},
		globals:       make(map[string]*Global),
		noReturnFuncs: make(map[string]bool),
	}

	for _, fn := range prog.Functions {
		if fn.NoReturn {
			b.noReturnFuncs[fn.Name] = true
		}
	}

	for _, g := range prog.Globals {
		global := &Global{Name: g.Name, Type: g.Type, Linkage: g.Linkage}
		if g.Init != nil {
			lit, ok := g.Init.(*typesys.IntLiteral)
			if !ok {
				return nil, fmt.Errorf("ir: global %q: %w: non-literal initializer", g.Name, cgerr.Unsupported)
			}
			global.Init = encodeIntLiteral(lit.Value, g.Type.SizeOf())
		}
		b.mod.Globals = append(b.mod.Globals, global)
		b.globals[g.Name] = global
	}

	for _, fn := range prog.Functions {
		f, err := b.buildFunction(fn)
		if err != nil {
			return nil, fmt.Errorf("ir: function %q: %w", fn.Name, err)
		}
		b.mod.Functions = append(b.mod.Functions, f)
	}

	return b.mod, nil
}

func encodeIntLiteral(v int64, size int) []byte {
	if size <= 0 {
		size = 8
	}
	out := make([]byte, size)
	u := uint64(v)
	for i := 0; i < size && i < 8; i++ {
		out[i] = byte(u >> (8 * i))
	}
	return out
}

type funcCtx struct {
	f   *Function
	cur *BasicBlock
	sc  *scope
}

func (b *Builder) buildFunction(fn *typesys.Function) (*Function, error) {
	f := &Function{
		Name:        fn.Name,
		Type:        fn.Type,
		Linkage:     fn.Linkage,
		Consteval:   fn.Consteval,
		ForceInline: fn.ForceInline,
		Global:      fn.Global,
		Leaf:        fn.Leaf,
		NoReturn:    fn.NoReturn,
		Pure:        fn.Pure,
		IsExtern:    fn.IsExtern,
	}
	if fn.IsExtern {
		return f, nil
	}

	entry := f.NewBlock("entry")
	f.Entry = entry

	fc := &funcCtx{f: f, cur: entry, sc: newScope(nil)}

	for i, p := range fn.Params {
		param := entry.emit(&Instruction{Op: OpParam, Type: p.Type, Name: p.Name})
		f.Params = append(f.Params, param)
		alloca := entry.emit(&Instruction{Op: OpAlloca, Type: &typesys.PointerType{Elem: p.Type}, Name: p.Name, AllocSize: p.Type.SizeOf(), AllocAlign: p.Type.AlignOf()})
		entry.emit(&Instruction{Op: OpStore, Type: typesys.Void, Operands: []*Instruction{alloca, param}})
		fc.sc.vars[p.Name] = alloca
		_ = i
	}

	if err := b.buildStmts(fc, fn.Body); err != nil {
		return nil, err
	}

	if fc.cur != nil && fc.cur.Terminator() == nil {
		if fn.Type.Result == nil || isVoid(fn.Type.Result) {
			fc.cur.emit(&Instruction{Op: OpRet})
		} else {
			return nil, fmt.Errorf("%w: function %q falls off the end without returning a value", cgerr.Invariant, fn.Name)
		}
	}

	return f, nil
}

func isVoid(t typesys.Type) bool {
	_, ok := t.(*typesys.VoidType)
	return ok
}

func (b *Builder) buildStmts(fc *funcCtx, stmts []typesys.Stmt) error {
	for _, s := range stmts {
		if fc.cur == nil || fc.cur.Terminator() != nil {
			// Dead code after a terminator; nothing left to attach it to.
			return nil
		}
		if err := b.buildStmt(fc, s); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) buildStmt(fc *funcCtx, s typesys.Stmt) error {
	switch v := s.(type) {
	case *typesys.VarDecl:
		alloca := fc.cur.emit(&Instruction{Op: OpAlloca, Type: &typesys.PointerType{Elem: v.Type}, Name: v.Name, AllocSize: v.Type.SizeOf(), AllocAlign: v.Type.AlignOf()})
		fc.sc.vars[v.Name] = alloca
		if v.Init != nil {
			val, err := b.buildExpr(fc, v.Init)
			if err != nil {
				return err
			}
			fc.cur.emit(&Instruction{Op: OpStore, Type: typesys.Void, Operands: []*Instruction{alloca, val}})
		}
		return nil

	case *typesys.AssignStmt:
		addr, err := b.buildAddress(fc, v.LHS)
		if err != nil {
			return err
		}
		val, err := b.buildExpr(fc, v.RHS)
		if err != nil {
			return err
		}
		fc.cur.emit(&Instruction{Op: OpStore, Type: typesys.Void, Operands: []*Instruction{addr, val}})
		return nil

	case *typesys.ReturnStmt:
		if v.Value == nil {
			fc.cur.emit(&Instruction{Op: OpRet})
			return nil
		}
		val, err := b.buildExpr(fc, v.Value)
		if err != nil {
			return err
		}
		fc.cur.emit(&Instruction{Op: OpRet, Operands: []*Instruction{val}})
		return nil

	case *typesys.WhileStmt:
		return b.buildWhile(fc, v.Cond, v.Body)

	case *typesys.ForStmt:
		return b.buildFor(fc, v)

	case *typesys.BreakStmt:
		if len(b.loopStack) == 0 {
			return fmt.Errorf("%w: break outside a loop", cgerr.Invariant)
		}
		target := b.loopStack[len(b.loopStack)-1].breakTarget
		AddEdge(fc.cur, target)
		fc.cur.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{target}})
		return nil

	case *typesys.ContinueStmt:
		if len(b.loopStack) == 0 {
			return fmt.Errorf("%w: continue outside a loop", cgerr.Invariant)
		}
		target := b.loopStack[len(b.loopStack)-1].continueTarget
		AddEdge(fc.cur, target)
		fc.cur.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{target}})
		return nil

	case *typesys.IfExpr:
		_, err := b.buildIf(fc, v)
		return err

	case *typesys.BlockExpr:
		_, err := b.buildBlockExpr(fc, v)
		return err

	case typesys.Expr:
		_, err := b.buildExpr(fc, v)
		return err

	default:
		return fmt.Errorf("%w: statement %T", cgerr.Unsupported, s)
	}
}

func (b *Builder) buildWhile(fc *funcCtx, cond typesys.Expr, body []typesys.Stmt) error {
	header := fc.f.NewBlock("while.cond")
	bodyBlk := fc.f.NewBlock("while.body")
	exit := fc.f.NewBlock("while.exit")

	AddEdge(fc.cur, header)
	fc.cur.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{header}})

	fc.cur = header
	cv, err := b.buildExpr(fc, cond)
	if err != nil {
		return err
	}
	AddEdge(header, bodyBlk)
	AddEdge(header, exit)
	header.emit(&Instruction{Op: OpCondBr, Operands: []*Instruction{cv}, Targets: []*BasicBlock{bodyBlk, exit}})

	b.loopStack = append(b.loopStack, loopContext{continueTarget: header, breakTarget: exit})
	fc.cur = bodyBlk
	fc.sc = newScope(fc.sc)
	if err := b.buildStmts(fc, body); err != nil {
		return err
	}
	fc.sc = fc.sc.parent
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	if fc.cur != nil && fc.cur.Terminator() == nil {
		AddEdge(fc.cur, header)
		fc.cur.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{header}})
	}

	fc.cur = exit
	return nil
}

func (b *Builder) buildFor(fc *funcCtx, f *typesys.ForStmt) error {
	fc.sc = newScope(fc.sc)
	defer func() { fc.sc = fc.sc.parent }()

	if f.Init != nil {
		if err := b.buildStmt(fc, f.Init); err != nil {
			return err
		}
	}

	header := fc.f.NewBlock("for.cond")
	bodyBlk := fc.f.NewBlock("for.body")
	latch := fc.f.NewBlock("for.latch")
	exit := fc.f.NewBlock("for.exit")

	AddEdge(fc.cur, header)
	fc.cur.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{header}})

	fc.cur = header
	if f.Cond != nil {
		cv, err := b.buildExpr(fc, f.Cond)
		if err != nil {
			return err
		}
		AddEdge(header, bodyBlk)
		AddEdge(header, exit)
		header.emit(&Instruction{Op: OpCondBr, Operands: []*Instruction{cv}, Targets: []*BasicBlock{bodyBlk, exit}})
	} else {
		AddEdge(header, bodyBlk)
		header.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{bodyBlk}})
	}

	b.loopStack = append(b.loopStack, loopContext{continueTarget: latch, breakTarget: exit})
	fc.cur = bodyBlk
	fc.sc = newScope(fc.sc)
	if err := b.buildStmts(fc, f.Body); err != nil {
		return err
	}
	fc.sc = fc.sc.parent
	b.loopStack = b.loopStack[:len(b.loopStack)-1]

	if fc.cur != nil && fc.cur.Terminator() == nil {
		AddEdge(fc.cur, latch)
		fc.cur.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{latch}})
	}

	fc.cur = latch
	if f.Post != nil {
		if err := b.buildStmt(fc, f.Post); err != nil {
			return err
		}
	}
	if fc.cur != nil && fc.cur.Terminator() == nil {
		AddEdge(fc.cur, header)
		fc.cur.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{header}})
	}

	fc.cur = exit
	return nil
}

// buildIf lowers a checked if/else. When isVoid(v.Type()) it is a
// statement (no merged value); otherwise both arms must yield a value and
// a phi is inserted in the join block, exercising the IR's phi machinery.
func (b *Builder) buildIf(fc *funcCtx, v *typesys.IfExpr) (*Instruction, error) {
	cv, err := b.buildExpr(fc, v.Cond)
	if err != nil {
		return nil, err
	}

	thenBlk := fc.f.NewBlock("if.then")
	join := fc.f.NewBlock("if.join")
	elseBlk := join
	hasElse := len(v.Else) > 0
	if hasElse {
		elseBlk = fc.f.NewBlock("if.else")
	}

	entryBlk := fc.cur
	AddEdge(entryBlk, thenBlk)
	AddEdge(entryBlk, elseBlk)
	entryBlk.emit(&Instruction{Op: OpCondBr, Operands: []*Instruction{cv}, Targets: []*BasicBlock{thenBlk, elseBlk}})

	wantValue := !isVoid(v.Type())
	// An arm ending in a return leaves the function without reaching
	// join, so it yields no phi argument and is built as plain statements.
	armValue := func(stmts []typesys.Stmt) bool {
		if !wantValue || len(stmts) == 0 {
			return wantValue
		}
		_, returns := stmts[len(stmts)-1].(*typesys.ReturnStmt)
		return !returns
	}

	fc.cur = thenBlk
	fc.sc = newScope(fc.sc)
	thenVal, err := b.buildArmValue(fc, v.Then, armValue(v.Then))
	fc.sc = fc.sc.parent
	if err != nil {
		return nil, err
	}
	thenEnd := fc.cur
	if thenEnd != nil && thenEnd.Terminator() == nil {
		AddEdge(thenEnd, join)
		thenEnd.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{join}})
	}

	var elseVal *Instruction
	var elseEnd *BasicBlock
	if hasElse {
		fc.cur = elseBlk
		fc.sc = newScope(fc.sc)
		elseVal, err = b.buildArmValue(fc, v.Else, armValue(v.Else))
		fc.sc = fc.sc.parent
		if err != nil {
			return nil, err
		}
		elseEnd = fc.cur
		if elseEnd != nil && elseEnd.Terminator() == nil {
			AddEdge(elseEnd, join)
			elseEnd.emit(&Instruction{Op: OpBr, Targets: []*BasicBlock{join}})
		}
	}

	fc.cur = join

	if !wantValue {
		return nil, nil
	}

	phi := &Instruction{Op: OpPhi, Type: v.Type()}
	if thenEnd != nil && thenEnd.Terminator() != nil && thenEnd.Terminator().Op == OpBr {
		AddPhiArgument(phi, thenEnd, thenVal)
	}
	if hasElse {
		if elseEnd != nil && elseEnd.Terminator() != nil && elseEnd.Terminator().Op == OpBr {
			AddPhiArgument(phi, elseEnd, elseVal)
		}
	} else {
		// No else branch: the implicit else value is the literal 0,
		// materialized ahead of entryBlk's own terminator since entryBlk
		// itself is what reaches join along that edge.
		zero := &Instruction{Op: OpConst, Type: v.Type(), ConstValue: 0}
		n := len(entryBlk.Instructions)
		zero.ID = fc.f.nextValueID
		fc.f.nextValueID++
		zero.Block = entryBlk
		entryBlk.Instructions = append(entryBlk.Instructions[:n-1], append([]*Instruction{zero}, entryBlk.Instructions[n-1:]...)...)
		AddPhiArgument(phi, entryBlk, zero)
	}
	join.Instructions = append([]*Instruction{phi}, join.Instructions...)
	phi.Block = join
	phi.ID = fc.f.nextValueID
	fc.f.nextValueID++
	return phi, nil
}

func (b *Builder) buildArmValue(fc *funcCtx, stmts []typesys.Stmt, wantValue bool) (*Instruction, error) {
	if !wantValue {
		return nil, b.buildStmts(fc, stmts)
	}
	if len(stmts) == 0 {
		return nil, fmt.Errorf("%w: value-producing if arm has no statements", cgerr.Invariant)
	}
	if err := b.buildStmts(fc, stmts[:len(stmts)-1]); err != nil {
		return nil, err
	}
	last, ok := stmts[len(stmts)-1].(typesys.Expr)
	if !ok {
		return nil, fmt.Errorf("%w: value-producing if arm's final statement is not an expression", cgerr.Invariant)
	}
	return b.buildExpr(fc, last)
}

func (b *Builder) buildBlockExpr(fc *funcCtx, v *typesys.BlockExpr) (*Instruction, error) {
	fc.sc = newScope(fc.sc)
	defer func() { fc.sc = fc.sc.parent }()
	return b.buildArmValue(fc, v.Stmts, !isVoid(v.Type()))
}

// buildAddress evaluates expr for its address rather than its value; expr
// must be an lvalue (VarRef, MemberExpr, or a pointer dereference).
func (b *Builder) buildAddress(fc *funcCtx, expr typesys.Expr) (*Instruction, error) {
	switch v := expr.(type) {
	case *typesys.VarRef:
		if alloca, ok := fc.sc.lookup(v.Name); ok {
			return alloca, nil
		}
		if g, ok := b.globals[v.Name]; ok {
			return fc.cur.emit(&Instruction{Op: OpGlobalAddr, Type: &typesys.PointerType{Elem: g.Type}, Name: g.Name}), nil
		}
		return nil, fmt.Errorf("%w: %q", cgerr.UnresolvedRef, v.Name)

	case *typesys.UnaryExpr:
		if v.Op != typesys.UnaryDeref {
			return nil, fmt.Errorf("%w: address of unary op %v", cgerr.Unsupported, v.Op)
		}
		return b.buildExpr(fc, v.X)

	case *typesys.MemberExpr:
		base, err := b.buildAddress(fc, v.X)
		if err != nil {
			return nil, err
		}
		st, ok := underlyingStruct(v.X.Type())
		if !ok {
			return nil, fmt.Errorf("%w: member access on non-struct %v", cgerr.Unsupported, v.X.Type())
		}
		offset, fieldType, ok := fieldOffset(st, v.Field)
		if !ok {
			return nil, fmt.Errorf("%w: struct %q has no field %q", cgerr.UnresolvedRef, st.Name, v.Field)
		}
		if offset == 0 {
			return base, nil
		}
		offsetConst := fc.cur.emit(&Instruction{Op: OpConst, Type: typesys.I64, ConstValue: int64(offset)})
		return fc.cur.emit(&Instruction{Op: OpAdd, Type: &typesys.PointerType{Elem: fieldType}, Operands: []*Instruction{base, offsetConst}}), nil

	default:
		return nil, fmt.Errorf("%w: %T is not addressable", cgerr.Unsupported, expr)
	}
}

func underlyingStruct(t typesys.Type) (*typesys.StructType, bool) {
	if p, ok := t.(*typesys.PointerType); ok {
		t = p.Elem
	}
	st, ok := t.(*typesys.StructType)
	return st, ok
}

func fieldOffset(st *typesys.StructType, name string) (int, typesys.Type, bool) {
	offs := st.Offsets()
	for i, m := range st.Members {
		if m.Name == name {
			return offs[i], m.Type, true
		}
	}
	return 0, nil, false
}

func (b *Builder) buildExpr(fc *funcCtx, expr typesys.Expr) (*Instruction, error) {
	switch v := expr.(type) {
	case *typesys.IntLiteral:
		return fc.cur.emit(&Instruction{Op: OpConst, Type: v.Type(), ConstValue: v.Value}), nil

	case *typesys.VarRef:
		addr, err := b.buildAddress(fc, v)
		if err != nil {
			return nil, err
		}
		return fc.cur.emit(&Instruction{Op: OpLoad, Type: v.Type(), Operands: []*Instruction{addr}}), nil

	case *typesys.FuncRef:
		return b.funcAddr(fc, v.Name, v.Type()), nil

	case *typesys.UnaryExpr:
		return b.buildUnary(fc, v)

	case *typesys.BinaryExpr:
		return b.buildBinary(fc, v)

	case *typesys.CastExpr:
		return b.buildCast(fc, v)

	case *typesys.CallExpr:
		return b.buildCall(fc, v)

	case *typesys.MemberExpr:
		addr, err := b.buildAddress(fc, v)
		if err != nil {
			return nil, err
		}
		return fc.cur.emit(&Instruction{Op: OpLoad, Type: v.Type(), Operands: []*Instruction{addr}}), nil

	case *typesys.IfExpr:
		return b.buildIf(fc, v)

	case *typesys.BlockExpr:
		return b.buildBlockExpr(fc, v)

	default:
		return nil, fmt.Errorf("%w: expression %T", cgerr.Unsupported, expr)
	}
}

// funcAddr materializes a function reference used as a first-class value
// (as opposed to the immediate callee of a call, which resolves by name
// alone and never reaches here). It always emits fresh at the current
// insertion point: an OpFuncAddr belongs to exactly one block of exactly
// one function, so it can never be cached and handed back across either.
func (b *Builder) funcAddr(fc *funcCtx, name string, t typesys.Type) *Instruction {
	return fc.cur.emit(&Instruction{Op: OpFuncAddr, Type: t, Name: name})
}

func (b *Builder) buildUnary(fc *funcCtx, v *typesys.UnaryExpr) (*Instruction, error) {
	switch v.Op {
	case typesys.UnaryAddressOf:
		return b.buildAddress(fc, v.X)
	case typesys.UnaryDeref:
		addr, err := b.buildExpr(fc, v.X)
		if err != nil {
			return nil, err
		}
		return fc.cur.emit(&Instruction{Op: OpLoad, Type: v.Type(), Operands: []*Instruction{addr}}), nil
	case typesys.UnaryNeg:
		x, err := b.buildExpr(fc, v.X)
		if err != nil {
			return nil, err
		}
		return fc.cur.emit(&Instruction{Op: OpNeg, Type: v.Type(), Operands: []*Instruction{x}}), nil
	case typesys.UnaryNot:
		x, err := b.buildExpr(fc, v.X)
		if err != nil {
			return nil, err
		}
		return fc.cur.emit(&Instruction{Op: OpNot, Type: v.Type(), Operands: []*Instruction{x}}), nil
	default:
		return nil, fmt.Errorf("%w: unary op %v", cgerr.Unsupported, v.Op)
	}
}

var binOpcode = map[typesys.BinaryOp]Opcode{
	typesys.BinAdd:  OpAdd,
	typesys.BinSub:  OpSub,
	typesys.BinMul:  OpMul,
	typesys.BinSDiv: OpSDiv,
	typesys.BinUDiv: OpUDiv,
	typesys.BinSRem: OpSRem,
	typesys.BinURem: OpURem,
	typesys.BinAnd:  OpAnd,
	typesys.BinOr:   OpOr,
	typesys.BinXor:  OpXor,
	typesys.BinShl:  OpShl,
	typesys.BinLShr: OpLShr,
	typesys.BinAShr: OpAShr,
}

var binCompare = map[typesys.BinaryOp]CompareKind{
	typesys.BinEq: CmpEq,
	typesys.BinNe: CmpNe,
	typesys.BinLt: CmpSLt,
	typesys.BinLe: CmpSLe,
	typesys.BinGt: CmpSGt,
	typesys.BinGe: CmpSGe,
}

func (b *Builder) buildBinary(fc *funcCtx, v *typesys.BinaryExpr) (*Instruction, error) {
	l, err := b.buildExpr(fc, v.L)
	if err != nil {
		return nil, err
	}
	r, err := b.buildExpr(fc, v.R)
	if err != nil {
		return nil, err
	}
	if op, ok := binOpcode[v.Op]; ok {
		return fc.cur.emit(&Instruction{Op: op, Type: v.Type(), Operands: []*Instruction{l, r}}), nil
	}
	if kind, ok := binCompare[v.Op]; ok {
		return fc.cur.emit(&Instruction{Op: OpICmp, Type: typesys.I8, Cmp: kind, Operands: []*Instruction{l, r}}), nil
	}
	return nil, fmt.Errorf("%w: binary op %v", cgerr.Unsupported, v.Op)
}

func (b *Builder) buildCast(fc *funcCtx, v *typesys.CastExpr) (*Instruction, error) {
	x, err := b.buildExpr(fc, v.X)
	if err != nil {
		return nil, err
	}
	fromSize := v.X.Type().SizeOf()
	toSize := v.Type().SizeOf()
	switch {
	case fromSize == toSize:
		return fc.cur.emit(&Instruction{Op: OpCopy, Type: v.Type(), Operands: []*Instruction{x}}), nil
	case fromSize > toSize:
		return fc.cur.emit(&Instruction{Op: OpTrunc, Type: v.Type(), Operands: []*Instruction{x}}), nil
	default:
		if v.Type().IsSigned() {
			return fc.cur.emit(&Instruction{Op: OpSExt, Type: v.Type(), Operands: []*Instruction{x}}), nil
		}
		return fc.cur.emit(&Instruction{Op: OpZExt, Type: v.Type(), Operands: []*Instruction{x}}), nil
	}
}

func (b *Builder) buildCall(fc *funcCtx, v *typesys.CallExpr) (*Instruction, error) {
	// A direct call resolves its callee by name alone: the FuncRef never
	// becomes a value, so nothing is emitted for it and there is no
	// instruction identity to place or to share across functions.
	// Anything else (a function pointer stored in a variable, a member,
	// ...) is a genuine indirect call through a runtime value.
	fr, direct := v.Callee.(*typesys.FuncRef)

	var callee *Instruction
	if !direct {
		var err error
		callee, err = b.buildExpr(fc, v.Callee)
		if err != nil {
			return nil, err
		}
	}

	args := make([]*Instruction, 0, len(v.Args))
	for _, a := range v.Args {
		av, err := b.buildExpr(fc, a)
		if err != nil {
			return nil, err
		}
		args = append(args, av)
	}

	inst := &Instruction{Op: OpCall, Type: v.Type()}
	if direct {
		inst.Callee = fr.Name
		inst.Operands = args
	} else {
		inst.Operands = append([]*Instruction{callee}, args...)
	}
	fc.cur.emit(inst)

	if direct && b.noReturnFuncs[fr.Name] {
		MarkUnreachable(fc.cur)
	}
	return inst, nil
}
