// Package checker implements Quartz's single-pass type checker. It re-walks
// the scope tree pkg/parser built, using symbol.Table's
// ResetScopes/StartScope exactly as pkg/jack's TypeChecker.Check was meant
// to drive HandleClass/HandleSubroutine/HandleStatement (those were stubs;
// this is the completed shape, generalized to Quartz's type system).
package checker

import (
	"fmt"

	"quartz.dev/qcc/pkg/ast"
	"quartz.dev/qcc/pkg/symbol"
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/utils"
)

type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("[Line %d] Error: %s", d.Line, d.Message)
}

// funcMeta tracks the function nest so return-type checks, terminal-path
// analysis, and upvalue discovery can all refer to "the current function".
type funcMeta struct {
	sym        *symbol.Symbol
	returnType *types.Type
	scopeNode  *symbol.Node // the function's parameter scope; its body block's scope is a child
}

// Checker runs the single type-checking pass over an already-parsed tree.
type Checker struct {
	Pool    *types.Pool
	Symbols *symbol.Table

	diagnostics []Diagnostic
	funcs       utils.Stack[funcMeta]
	isInClass   bool

	lastType  *types.Type
	lastToken token.Token
}

func New(pool *types.Pool, symbols *symbol.Table) *Checker {
	return &Checker{Pool: pool, Symbols: symbols}
}

func (c *Checker) Diagnostics() []Diagnostic { return c.diagnostics }
func (c *Checker) HadError() bool            { return len(c.diagnostics) > 0 }

func (c *Checker) error(tok token.Token, format string, args ...any) {
	c.diagnostics = append(c.diagnostics, Diagnostic{
		Line: tok.Line, Column: tok.Column, Message: fmt.Sprintf(format, args...),
	})
}

// Check type-checks every top-level statement. It never stops at the first
// error so the caller can report every diagnostic at once; Check itself
// reports whether checking as a whole succeeded.
func (c *Checker) Check(stmts []ast.Stmt) []Diagnostic {
	c.Symbols.ResetScopes()
	for _, stmt := range stmts {
		c.checkStmt(stmt)
	}
	return c.diagnostics
}

// ----------------------------------------------------------------------------
// Statements

func (c *Checker) checkStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		c.checkExpr(s.Expr)

	case *ast.VarStmt:
		c.checkVarStmt(s)

	case *ast.FunctionStmt:
		c.checkFunctionStmt(s, nil)

	case *ast.ListStmt:
		for _, inner := range s.Stmts {
			c.checkStmt(inner)
		}

	case *ast.BlockStmt:
		c.Symbols.StartScope()
		for _, inner := range s.Stmts {
			c.checkStmt(inner)
		}
		c.Symbols.EndScope()

	case *ast.ReturnStmt:
		c.checkReturnStmt(s)

	case *ast.IfStmt:
		c.checkExpr(s.Condition)
		c.checkStmt(s.Then)
		if s.Else != nil {
			c.checkStmt(s.Else)
		}

	case *ast.ForStmt:
		c.Symbols.StartScope() // mirrors the parser's CreateScope in forStatement
		if s.Init != nil {
			c.checkStmt(s.Init)
		}
		if s.Condition != nil {
			c.checkExpr(s.Condition)
		}
		if s.Post != nil {
			c.checkStmt(s.Post)
		}
		c.checkStmt(s.Body)
		c.Symbols.EndScope()

	case *ast.WhileStmt:
		c.checkExpr(s.Condition)
		c.checkStmt(s.Body)

	case *ast.LoopGotoStmt:
		// Legality was already checked by the parser.

	case *ast.TypealiasStmt:
		// Nothing further to check: the pool already resolved the alias.

	case *ast.ImportStmt:
		if s.ImportedStmts != nil {
			for _, inner := range s.ImportedStmts {
				c.checkStmt(inner)
			}
		}

	case *ast.NativeFunctionStmt:
		// Native symbols are already typed by the parser from the provider.

	case *ast.ClassStmt:
		c.checkClassStmt(s)

	case *ast.NativeClassStmt:
		// Intrinsic class methods are typed by pkg/stdlib's registration.
	}
}

func (c *Checker) checkVarStmt(s *ast.VarStmt) {
	sym, _ := c.Symbols.Lookup(s.Name.Lexeme)

	if s.Annotated != nil && types.Resolve(s.Annotated).Kind == types.Void {
		c.error(s.Name, "variable '%s' cannot have type Void", s.Name.Lexeme)
	}

	if s.Initializer == nil {
		return // annotation-only: already validated not to be both-absent by the parser
	}

	initType := c.checkExpr(s.Initializer)
	if s.Annotated != nil {
		if !types.AssignableTo(initType, s.Annotated) {
			c.error(s.Name, "cannot assign %s to variable '%s' of type %s", initType, s.Name.Lexeme, s.Annotated)
		}
	} else if sym != nil {
		sym.Type = initType // untyped declaration: infer from the initializer
	}
}

func (c *Checker) checkFunctionStmt(s *ast.FunctionStmt, selfType *types.Type) {
	sym, _ := c.Symbols.LookupWithClass(s.Name.Lexeme)

	node := c.Symbols.StartScope() // mirrors functionDeclaration's CreateScope
	c.funcs.Push(funcMeta{sym: sym, returnType: s.ReturnType, scopeNode: node})

	c.Symbols.StartScope() // mirrors the body block's own CreateScope in blockBody
	for _, stmt := range s.Body {
		c.checkStmt(stmt)
	}
	c.Symbols.EndScope()

	if !terminalPathReturns(s.Body) && s.ReturnType != nil {
		resolved := types.Resolve(s.ReturnType)
		if resolved.Kind != types.Void && resolved.Kind != types.Nil {
			c.error(s.Name, "function '%s' does not return on every path", s.Name.Lexeme)
		}
	}

	c.funcs.Pop()
	c.Symbols.EndScope()
}

// terminalPathReturns performs a "last-statement walk": a function's body
// provably returns if its last statement is a Return, or an If whose both
// branches provably return, or a Block whose last statement provably
// returns.
func terminalPathReturns(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	return stmtReturns(body[len(body)-1])
}

func stmtReturns(stmt ast.Stmt) bool {
	switch s := stmt.(type) {
	case *ast.ReturnStmt:
		return true
	case *ast.BlockStmt:
		return terminalPathReturns(s.Stmts)
	case *ast.IfStmt:
		return s.Else != nil && stmtReturns(s.Then) && stmtReturns(s.Else)
	default:
		return false
	}
}

func (c *Checker) checkReturnStmt(s *ast.ReturnStmt) {
	var actual *types.Type = types.VoidType()
	if s.Expr != nil {
		actual = c.checkExpr(s.Expr)
	}
	current, err := c.funcs.Top()
	if err != nil {
		c.error(s.Tok, "'return' used outside of a function")
		return
	}
	expected := current.returnType
	if expected != nil && !types.Equals(actual, expected) {
		c.error(s.Tok, "return type %s does not match function's declared return type %s", actual, expected)
	}
}

func (c *Checker) checkClassStmt(s *ast.ClassStmt) {
	c.Symbols.StartScope() // mirrors classDeclaration's CreateClassScope
	prevInClass := c.isInClass
	c.isInClass = true

	for _, method := range s.Methods {
		c.checkFunctionStmt(method.Fn, nil)
	}

	c.isInClass = prevInClass
	c.Symbols.EndScope()
}

// ----------------------------------------------------------------------------
// Expressions

func (c *Checker) checkExpr(expr ast.Expr) *types.Type {
	var t *types.Type
	switch e := expr.(type) {
	case *ast.LiteralExpr:
		t = e.ResolvedType
		if t == nil {
			t = types.AnyType()
		}

	case *ast.IdentifierExpr:
		t = c.checkIdentifier(e)

	case *ast.AssignmentExpr:
		t = c.checkAssignment(e)

	case *ast.UnaryExpr:
		t = c.checkUnary(e)

	case *ast.BinaryExpr:
		t = c.checkBinary(e)

	case *ast.CallExpr:
		t = c.checkCall(e)

	case *ast.NewExpr:
		t = c.checkNew(e)

	case *ast.PropExpr:
		t = c.checkProp(e)

	case *ast.PropAssignExpr:
		t = c.checkPropAssign(e)

	case *ast.ArrayExpr:
		t = c.checkArray(e)

	case *ast.CastExpr:
		t = c.checkCast(e)

	default:
		t = types.UnknownType()
	}

	if m := metaOf(expr); m != nil {
		m.ResolvedType = t
	}
	c.lastType = t
	return t
}

// metaOf extracts the embedded *ast.Meta so checkExpr can annotate every
// node uniformly without a type switch duplicated at the call site.
func metaOf(expr ast.Expr) *ast.Meta {
	type metaHaver interface{ exprNode() *ast.Meta }
	if mh, ok := expr.(metaHaver); ok {
		return mh.exprNode()
	}
	return nil
}

func (c *Checker) checkIdentifier(e *ast.IdentifierExpr) *types.Type {
	sym, ok := c.Symbols.LookupWithClass(e.Name)
	if !ok {
		c.error(e.Tok, "undefined identifier '%s'", e.Name)
		return types.UnknownType()
	}
	c.recordUpvalueIfNeeded(sym)
	return sym.Type
}

// recordUpvalueIfNeeded performs upvalue discovery: if the
// symbol is not global and was not declared in the scope subtree rooted at
// the current function's own body node, every enclosing function down to
// (and not including) the one whose scope actually contains the
// declaration captures it as an upvalue.
func (c *Checker) recordUpvalueIfNeeded(sym *symbol.Symbol) {
	if sym.Global || c.funcs.Count() == 0 {
		return
	}
	for fn := range c.funcs.Iterator() {
		if declaredWithin(fn.scopeNode, sym) {
			break
		}
		if fn.sym != nil {
			c.Symbols.Upvalue(fn.sym, sym)
		}
	}
}

// declaredWithin reports whether sym was inserted in node or one of its
// descendants. Symbol doesn't store its owning node, so this walks the
// subtree looking for byte-identical pointer membership; scope trees are
// small enough per function that this is cheap.
func declaredWithin(node *symbol.Node, sym *symbol.Symbol) bool {
	if node == nil {
		return false
	}
	if found, ok := node.LookupLocal(sym.Name); ok && found == sym {
		return true
	}
	for _, child := range node.Children {
		if declaredWithin(child, sym) {
			return true
		}
	}
	return false
}

func (c *Checker) checkAssignment(e *ast.AssignmentExpr) *types.Type {
	sym, ok := c.Symbols.LookupWithClass(e.Name)
	if !ok {
		c.error(e.Tok, "undefined identifier '%s'", e.Name)
		return types.UnknownType()
	}
	c.recordUpvalueIfNeeded(sym)
	valueType := c.checkExpr(e.Value)
	if !types.AssignableTo(valueType, sym.Type) {
		c.error(e.Tok, "cannot assign %s to '%s' of type %s", valueType, e.Name, sym.Type)
	}
	sym.Assigned = true
	return sym.Type
}

func (c *Checker) checkUnary(e *ast.UnaryExpr) *types.Type {
	operand := c.checkExpr(e.Expr)
	switch e.Op {
	case token.Bang:
		if !types.Equals(operand, types.BoolType()) {
			c.error(e.Tok, "'!' requires a bool operand, got %s", operand)
		}
		return types.BoolType()
	default: // Plus, Minus
		if !types.Equals(operand, types.NumberType()) {
			c.error(e.Tok, "unary '%s' requires a number operand, got %s", e.Op, operand)
		}
		return types.NumberType()
	}
}

func (c *Checker) checkBinary(e *ast.BinaryExpr) *types.Type {
	left := c.checkExpr(e.Left)
	right := c.checkExpr(e.Right)

	switch e.Op {
	case token.Plus:
		if types.Equals(left, types.StringType()) && types.Equals(right, types.StringType()) {
			return types.StringType()
		}
		if !types.Equals(left, types.NumberType()) || !types.Equals(right, types.NumberType()) {
			c.error(e.Tok, "'+' requires Number×Number or String×String, got %s and %s", left, right)
		}
		return types.NumberType()

	case token.Minus, token.Star, token.Slash, token.Percent:
		if !types.Equals(left, types.NumberType()) || !types.Equals(right, types.NumberType()) {
			c.error(e.Tok, "'%s' requires Number×Number, got %s and %s", e.Op, left, right)
		}
		return types.NumberType()

	case token.Lower, token.LowerEqual, token.Greater, token.GreaterEqual:
		if !types.Equals(left, types.NumberType()) || !types.Equals(right, types.NumberType()) {
			c.error(e.Tok, "comparison requires Number×Number, got %s and %s", left, right)
		}
		return types.BoolType()

	case token.AmpAmp, token.PipePipe:
		if !types.Equals(left, types.BoolType()) || !types.Equals(right, types.BoolType()) {
			c.error(e.Tok, "'%s' requires Bool×Bool, got %s and %s", e.Op, left, right)
		}
		return types.BoolType()

	case token.EqualEqual, token.BangEqual:
		if !types.AssignableTo(left, right) && !types.AssignableTo(right, left) {
			c.error(e.Tok, "'%s' requires comparable operands, got %s and %s", e.Op, left, right)
		}
		return types.BoolType()

	default:
		c.error(e.Tok, "unsupported binary operator %s", e.Op)
		return types.UnknownType()
	}
}

func (c *Checker) checkCall(e *ast.CallExpr) *types.Type {
	calleeType := c.checkExpr(e.Callee)
	argTypes := make([]*types.Type, len(e.Args))
	for i, arg := range e.Args {
		argTypes[i] = c.checkExpr(arg)
	}

	resolved := types.Resolve(calleeType)
	if resolved == nil || resolved.Kind != types.Function {
		if resolved != nil && resolved.Kind == types.Any {
			return types.AnyType()
		}
		c.error(e.Tok, "cannot call a value of type %s", calleeType)
		return types.UnknownType()
	}

	if len(resolved.Params) != len(argTypes) {
		c.error(e.Tok, "expected %d arguments, got %d", len(resolved.Params), len(argTypes))
	} else {
		for i, want := range resolved.Params {
			if !types.AssignableTo(argTypes[i], want) {
				c.error(e.Tok, "argument %d: cannot assign %s to parameter of type %s", i+1, argTypes[i], want)
			}
		}
	}
	return resolved.Return
}

func (c *Checker) checkNew(e *ast.NewExpr) *types.Type {
	classSym, ok := c.Symbols.LookupWithClass(e.ClassName)
	if !ok || classSym.Kind != symbol.ClassKind {
		c.error(e.Tok, "'new' requires a known class, got '%s'", e.ClassName)
		return types.UnknownType()
	}
	for _, arg := range e.Args {
		c.checkExpr(arg)
	}
	if classSym.Body != nil {
		if initSym, ok := classSym.Body.LookupLocal("init"); ok {
			if initSym.Visibility != symbol.Public {
				c.error(e.Tok, "class '%s' init must be public to be used by 'new'", e.ClassName)
			}
			resolved := types.Resolve(initSym.Type)
			if resolved != nil && resolved.Kind == types.Function {
				if resolved.Return == nil || types.Resolve(resolved.Return).Kind != types.Void {
					c.error(e.Tok, "class '%s' init must return Void", e.ClassName)
				}
				wantArgs := len(resolved.Params) - 1 // drop synthetic self
				if wantArgs != len(e.Args) {
					c.error(e.Tok, "class '%s' init expects %d arguments, got %d", e.ClassName, wantArgs, len(e.Args))
				}
			}
		}
	}
	return c.Pool.Object(types.Resolve(classSym.Type))
}

// nativeClassScopeOf resolves the class body scope backing Array/String
// property access: Array.x and String.x dispatch to the corresponding
// native class body.
func (c *Checker) nativeClassScopeOf(t *types.Type) (*symbol.Node, bool) {
	name := ""
	switch types.Resolve(t).Kind {
	case types.Array:
		name = "Array"
	case types.String:
		name = "String"
	default:
		return nil, false
	}
	sym, ok := c.Symbols.LookupWithClass(name)
	if !ok || sym.Body == nil {
		return nil, false
	}
	return sym.Body, true
}

func (c *Checker) checkProp(e *ast.PropExpr) *types.Type {
	receiverType := c.checkExpr(e.Receiver)
	resolved := types.Resolve(receiverType)

	var scope *symbol.Node
	switch {
	case resolved != nil && resolved.Kind == types.Object:
		classSym, ok := c.Symbols.LookupWithClass(resolved.ObjectOf.Name)
		if !ok || classSym.Body == nil {
			c.error(e.Tok, "unknown class for property access")
			return types.UnknownType()
		}
		scope = classSym.Body
	default:
		var ok bool
		scope, ok = c.nativeClassScopeOf(receiverType)
		if !ok {
			c.error(e.Tok, "'.%s' requires an Object, Array, or String receiver, got %s", e.Prop, receiverType)
			return types.UnknownType()
		}
	}

	propSym, ok := scope.LookupLocal(e.Prop)
	if !ok {
		c.error(e.Tok, "unknown property '%s'", e.Prop)
		return types.UnknownType()
	}
	if propSym.Visibility == symbol.Private && !c.isInClass {
		c.error(e.Tok, "property '%s' is private", e.Prop)
	}
	return propSym.Type
}

func (c *Checker) checkPropAssign(e *ast.PropAssignExpr) *types.Type {
	receiverType := c.checkExpr(e.Receiver)
	valueType := c.checkExpr(e.Value)
	resolved := types.Resolve(receiverType)

	if resolved == nil || resolved.Kind != types.Object {
		c.error(e.Tok, "property assignment requires an Object receiver, got %s", receiverType)
		return types.UnknownType()
	}
	classSym, ok := c.Symbols.LookupWithClass(resolved.ObjectOf.Name)
	if !ok || classSym.Body == nil {
		c.error(e.Tok, "unknown class for property assignment")
		return types.UnknownType()
	}
	propSym, ok := classSym.Body.LookupLocal(e.Prop)
	if !ok {
		c.error(e.Tok, "unknown property '%s'", e.Prop)
		return types.UnknownType()
	}
	if propSym.Kind == symbol.FunctionKind {
		c.error(e.Tok, "cannot assign to method property '%s'", e.Prop)
	}
	if propSym.Visibility == symbol.Private && !c.isInClass {
		c.error(e.Tok, "property '%s' is private", e.Prop)
	}
	if !types.AssignableTo(valueType, propSym.Type) {
		c.error(e.Tok, "cannot assign %s to property '%s' of type %s", valueType, e.Prop, propSym.Type)
	}
	return propSym.Type
}

func (c *Checker) checkArray(e *ast.ArrayExpr) *types.Type {
	if e.Array != nil { // index expression
		arrType := c.checkExpr(e.Array)
		idxType := c.checkExpr(e.Index)
		if !types.Equals(idxType, types.NumberType()) {
			c.error(e.Tok, "array index must be a number, got %s", idxType)
		}
		resolved := types.Resolve(arrType)
		if resolved == nil || resolved.Kind != types.Array {
			c.error(e.Tok, "indexing requires an array, got %s", arrType)
			return types.UnknownType()
		}
		return resolved.Inner
	}

	for _, el := range e.Elements {
		elType := c.checkExpr(el)
		if !types.AssignableTo(elType, e.ElementType) {
			c.error(e.Tok, "array element of type %s is not assignable to %s", elType, e.ElementType)
		}
	}
	return c.Pool.Array(e.ElementType)
}

// checkCast validates a `cast<T>(expr)`: identity, widening to Bool
// (truthiness), or either side being Any.
func (c *Checker) checkCast(e *ast.CastExpr) *types.Type {
	innerType := c.checkExpr(e.Inner)
	target := e.Target

	legal := types.Equals(innerType, target) ||
		types.Resolve(target).Kind == types.Bool ||
		types.Resolve(target).Kind == types.Any ||
		types.Resolve(innerType).Kind == types.Any

	if !legal {
		c.error(e.Tok, "illegal cast from %s to %s", innerType, target)
	}
	return target
}
