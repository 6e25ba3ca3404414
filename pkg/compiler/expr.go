package compiler

import (
	"strconv"

	"quartz.dev/qcc/pkg/ast"
	"quartz.dev/qcc/pkg/bytecode"
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

func (c *Compiler) expr(e ast.Expr) {
	switch ex := e.(type) {
	case *ast.LiteralExpr:
		c.literal(ex)
	case *ast.IdentifierExpr:
		c.identifier(ex)
	case *ast.AssignmentExpr:
		c.assignment(ex)
	case *ast.UnaryExpr:
		c.unary(ex)
	case *ast.BinaryExpr:
		c.binary(ex)
	case *ast.CallExpr:
		c.call(ex)
	case *ast.NewExpr:
		c.newExpr(ex)
	case *ast.PropExpr:
		c.prop(ex)
	case *ast.PropAssignExpr:
		c.propAssign(ex)
	case *ast.ArrayExpr:
		c.array(ex)
	case *ast.CastExpr:
		c.cast(ex)
	}
}

func (c *Compiler) literal(e *ast.LiteralExpr) {
	ch := c.current().chunk
	l := e.Tok.Line

	switch {
	case e.ResolvedType != nil && types.Resolve(e.ResolvedType).Kind == types.Bool:
		if e.Value == "true" {
			ch.WriteOp(bytecode.TRUE, l)
		} else {
			ch.WriteOp(bytecode.FALSE, l)
		}
	case e.ResolvedType != nil && types.Resolve(e.ResolvedType).Kind == types.Nil:
		ch.WriteOp(bytecode.NIL, l)
	case e.ResolvedType != nil && types.Resolve(e.ResolvedType).Kind == types.Number:
		n, _ := strconv.ParseFloat(e.Value, 64)
		idx := ch.AddConstant(value.Number(n, types.NumberType()), types.NumberType())
		ch.WriteConstant(idx, l)
	default: // String
		idx := ch.AddConstant(value.FromObj(&value.String{Bytes: e.Value}, types.StringType()), types.StringType())
		ch.WriteConstant(idx, l)
	}
}

func (c *Compiler) identifier(e *ast.IdentifierExpr) {
	ch := c.current().chunk
	l := e.Tok.Line
	depth := len(c.funcs) - 1

	if idx, ok := c.resolveLocal(c.funcs[depth], e.Name); ok {
		ch.WriteOp(bytecode.GET_LOCAL, l)
		ch.Write(byte(idx), l)
		return
	}
	if idx, ok := c.resolveUpvalue(depth, e.Name); ok {
		ch.WriteOp(bytecode.GET_UPVALUE, l)
		ch.Write(byte(idx), l)
		return
	}
	nameIdx := ch.AddConstant(internedName(e.Name), types.StringType())
	c.emitGlobalOp(bytecode.GET_GLOBAL, bytecode.GET_GLOBAL_LONG, nameIdx, l)
}

func (c *Compiler) assignment(e *ast.AssignmentExpr) {
	c.expr(e.Value)
	ch := c.current().chunk
	l := e.Tok.Line
	depth := len(c.funcs) - 1

	if idx, ok := c.resolveLocal(c.funcs[depth], e.Name); ok {
		ch.WriteOp(bytecode.SET_LOCAL, l)
		ch.Write(byte(idx), l)
		return
	}
	if idx, ok := c.resolveUpvalue(depth, e.Name); ok {
		ch.WriteOp(bytecode.SET_UPVALUE, l)
		ch.Write(byte(idx), l)
		return
	}
	nameIdx := ch.AddConstant(internedName(e.Name), types.StringType())
	c.emitGlobalOp(bytecode.SET_GLOBAL, bytecode.SET_GLOBAL_LONG, nameIdx, l)
}

func (c *Compiler) unary(e *ast.UnaryExpr) {
	c.expr(e.Expr)
	ch := c.current().chunk
	l := e.Tok.Line
	switch e.Op {
	case token.Bang:
		ch.WriteOp(bytecode.NOT, l)
	case token.Minus:
		ch.WriteOp(bytecode.NEGATE, l)
	// unary '+' is a no-op at the bytecode level: its only effect was the
	// checker validating the operand is a Number.
	}
}

func (c *Compiler) binary(e *ast.BinaryExpr) {
	c.expr(e.Left)
	c.expr(e.Right)
	ch := c.current().chunk
	l := e.Tok.Line

	switch e.Op {
	case token.Plus:
		ch.WriteOp(bytecode.ADD, l)
	case token.Minus:
		ch.WriteOp(bytecode.SUB, l)
	case token.Star:
		ch.WriteOp(bytecode.MUL, l)
	case token.Slash:
		ch.WriteOp(bytecode.DIV, l)
	case token.Percent:
		ch.WriteOp(bytecode.MOD, l)
	case token.AmpAmp:
		ch.WriteOp(bytecode.AND, l)
	case token.PipePipe:
		ch.WriteOp(bytecode.OR, l)
	case token.EqualEqual:
		ch.WriteOp(bytecode.EQUAL, l)
	case token.BangEqual:
		ch.WriteOp(bytecode.EQUAL, l)
		ch.WriteOp(bytecode.NOT, l)
	case token.Greater:
		ch.WriteOp(bytecode.GREATER, l)
	case token.Lower:
		ch.WriteOp(bytecode.LOWER, l)
	case token.GreaterEqual:
		ch.WriteOp(bytecode.LOWER, l)
		ch.WriteOp(bytecode.NOT, l)
	case token.LowerEqual:
		ch.WriteOp(bytecode.GREATER, l)
		ch.WriteOp(bytecode.NOT, l)
	}
}

// call emits a plain CALL for an ordinary callee, but special-cases
// `receiver.method(args)` (Callee is a PropExpr) as a direct INVOKE —
// skipping an intermediate GET_PROP/BINDED_METHOD + CALL pair, the same way
// array indexing already desugars straight to INVOKE.
func (c *Compiler) call(e *ast.CallExpr) {
	ch := c.current().chunk
	if prop, ok := e.Callee.(*ast.PropExpr); ok {
		c.expr(prop.Receiver)
		for _, arg := range e.Args {
			c.expr(arg)
		}
		idx := ch.AddConstant(internedName(prop.Prop), types.StringType())
		ch.WriteOp(bytecode.INVOKE, e.Tok.Line)
		ch.Write(byte(idx), e.Tok.Line)
		ch.Write(byte(len(e.Args)), e.Tok.Line)
		return
	}

	c.expr(e.Callee)
	for _, arg := range e.Args {
		c.expr(arg)
	}
	ch.WriteOp(bytecode.CALL, e.Tok.Line)
	ch.Write(byte(len(e.Args)), e.Tok.Line)
}

// newExpr pushes the class object itself (resolved like any other
// identifier — local, upvalue, or global), not its name, since OP_NEW reads
// an actual Class value off the stack to instantiate. OP_NEW takes no
// operand: it pops the class and pushes the fresh instance twice, one copy
// kept as the expression's final value and one copy consumed by the INVOKE
// of "init" that follows (whose Void return is then discarded) — classes
// with no declared init skip the INVOKE/POP pair entirely.
func (c *Compiler) newExpr(e *ast.NewExpr) {
	ch := c.current().chunk
	l := e.Tok.Line
	depth := len(c.funcs) - 1

	if idx, ok := c.resolveLocal(c.funcs[depth], e.ClassName); ok {
		ch.WriteOp(bytecode.GET_LOCAL, l)
		ch.Write(byte(idx), l)
	} else if idx, ok := c.resolveUpvalue(depth, e.ClassName); ok {
		ch.WriteOp(bytecode.GET_UPVALUE, l)
		ch.Write(byte(idx), l)
	} else {
		nameIdx := ch.AddConstant(internedName(e.ClassName), types.StringType())
		c.emitGlobalOp(bytecode.GET_GLOBAL, bytecode.GET_GLOBAL_LONG, nameIdx, l)
	}

	ch.WriteOp(bytecode.NEW, l)

	if c.classHasInit(e.ClassName) {
		for _, arg := range e.Args {
			c.expr(arg)
		}
		initIdx := ch.AddConstant(internedName("init"), types.StringType())
		ch.WriteOp(bytecode.INVOKE, l)
		ch.Write(byte(initIdx), l)
		ch.Write(byte(len(e.Args)), l)
		ch.WriteOp(bytecode.POP, l)
	}
}

// classHasInit reports whether className's scope declares an "init"
// method, consulted so zero-init classes skip the INVOKE/POP pair.
func (c *Compiler) classHasInit(className string) bool {
	classSym, ok := c.Symbols.LookupWithClass(className)
	if !ok || classSym.Body == nil {
		return false
	}
	_, ok = classSym.Body.LookupLocal("init")
	return ok
}

// prop compiles a standalone `receiver.prop` read (not the callee slot of a
// CallExpr, which compiler.call handles via INVOKE instead). A property
// that resolves to a method is bound via BINDED_METHOD so a later CALL on
// the resulting value still has its receiver; anything else reads with
// plain GET_PROP.
func (c *Compiler) prop(e *ast.PropExpr) {
	c.expr(e.Receiver)
	ch := c.current().chunk
	idx := ch.AddConstant(internedName(e.Prop), types.StringType())

	if e.ResolvedType != nil && types.Resolve(e.ResolvedType).Kind == types.Function {
		ch.WriteOp(bytecode.BINDED_METHOD, e.Tok.Line)
		ch.Write(byte(idx), e.Tok.Line)
		return
	}
	ch.WriteOp(bytecode.GET_PROP, e.Tok.Line)
	ch.Write(byte(idx), e.Tok.Line)
}

func (c *Compiler) propAssign(e *ast.PropAssignExpr) {
	c.expr(e.Receiver)
	c.expr(e.Value)
	ch := c.current().chunk
	idx := ch.AddConstant(internedName(e.Prop), types.StringType())
	ch.WriteOp(bytecode.SET_PROP, e.Tok.Line)
	ch.Write(byte(idx), e.Tok.Line)
}

func (c *Compiler) array(e *ast.ArrayExpr) {
	ch := c.current().chunk
	l := e.Tok.Line

	if e.Array != nil {
		// `arr[i]` desugars to `arr.get(i)`: the instruction set has no
		// dedicated index opcode, and Array already has a `get` method for
		// exactly this, so INVOKE covers both syntaxes with one code path.
		c.expr(e.Array)
		c.expr(e.Index)
		idx := ch.AddConstant(internedName("get"), types.StringType())
		ch.WriteOp(bytecode.INVOKE, l)
		ch.Write(byte(idx), l)
		ch.Write(1, l)
		return
	}

	typeIdx := ch.AddConstant(value.Value{}, e.ElementType)
	ch.WriteOp(bytecode.ARRAY, l)
	ch.Write(byte(typeIdx), l)
	for _, el := range e.Elements {
		c.expr(el)
		ch.WriteOp(bytecode.ARRAY_PUSH, l)
	}
}

func (c *Compiler) cast(e *ast.CastExpr) {
	c.expr(e.Inner)
	ch := c.current().chunk
	typeIdx := ch.AddConstant(value.Value{}, e.Target)
	ch.WriteOp(bytecode.CAST, e.Tok.Line)
	ch.Write(byte(typeIdx), e.Tok.Line)
}
