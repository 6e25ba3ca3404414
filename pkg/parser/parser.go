// Package parser implements Quartz's recursive-descent parser with Pratt
// expression parsing. It grows pkg/symbol's scope tree
// in lockstep with the pkg/ast tree it builds, exactly as pkg/jack's
// (unfinished) Parser.Parse was meant to but never did — this package
// completes that shape rather than copying its stub.
package parser

import (
	"fmt"
	"strings"

	"quartz.dev/qcc/pkg/ast"
	"quartz.dev/qcc/pkg/lexer"
	"quartz.dev/qcc/pkg/provider"
	"quartz.dev/qcc/pkg/symbol"
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
)

// Diagnostic is one syntactic error, formatted as
// "[File path, Line L] Error at 'lexeme': message" plus a caret-annotated
// excerpt.
type Diagnostic struct {
	File    string
	Line    int
	Column  int
	Lexeme  string
	Message string
	Excerpt string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("[%s, Line %d] Error at '%s': %s\n%s", d.File, d.Line, d.Lexeme, d.Message, d.Excerpt)
}

type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precCast
	precPrimary
)

type (
	prefixParseFn func(p *Parser) ast.Expr
	infixParseFn  func(p *Parser, left ast.Expr) ast.Expr
)

type rule struct {
	prefix prefixParseFn
	infix  infixParseFn
	prec   precedence
}

// Parser holds the single-token lookahead, the scope tree it shares with
// the checker/emitter passes, the type pool, and accumulated diagnostics.
type Parser struct {
	lex      *lexer.Lexer
	file     *token.File
	current  token.Token
	previous token.Token

	Pool    *types.Pool
	Symbols *symbol.Table
	Prov    provider.SourceProvider

	diagnostics []Diagnostic
	panicMode   bool

	loopDepth        int
	classDepth       int
	currentClassName string
}

func New(file *token.File, pool *types.Pool, symbols *symbol.Table, prov provider.SourceProvider) *Parser {
	p := &Parser{
		lex:     lexer.New(file),
		file:    file,
		Pool:    pool,
		Symbols: symbols,
		Prov:    prov,
	}
	bootstrapIntrinsics(pool, symbols)
	p.advance()
	return p
}

// intrinsicMethod is one entry of an intrinsic class's fixed method set.
type intrinsicMethod struct {
	name   string
	params []*types.Type
	ret    *types.Type
}

// bootstrapIntrinsics declares the Array and String classes' method sets
// as global symbols, exactly once per shared symbol table no matter how
// many Parser instances (one per imported file) end up sharing it —
// mirroring qcc/parser.c's parse_global, which registers both ahead of the
// first declaration in every translation unit. `[]T` and string values
// carry these methods regardless of whether anything was ever imported,
// so this runs unconditionally rather than behind an import statement.
func bootstrapIntrinsics(pool *types.Pool, symbols *symbol.Table) {
	if _, ok := symbols.Global.LookupLocal("Array"); ok {
		return
	}
	declareIntrinsicClass(pool, symbols, "Array", []intrinsicMethod{
		{"push", []*types.Type{types.AnyType()}, types.VoidType()},
		{"get", []*types.Type{types.NumberType()}, types.AnyType()},
		{"set", []*types.Type{types.NumberType(), types.AnyType()}, types.AnyType()},
		{"length", nil, types.NumberType()},
	})
	declareIntrinsicClass(pool, symbols, "String", []intrinsicMethod{
		{"length", nil, types.NumberType()},
		{"get_char", []*types.Type{types.NumberType()}, types.StringType()},
		{"to_ascii", nil, pool.Array(types.NumberType())},
	})
}

func declareIntrinsicClass(pool *types.Pool, symbols *symbol.Table, name string, methods []intrinsicMethod) {
	nameTok := token.Token{Kind: token.Identifier, Lexeme: name}
	classSym := symbol.NewClass(nameTok, pool.Class(name))

	classScope := symbols.NewDetachedScope(symbols.Global)
	saved := symbols.Current
	symbols.Current = classScope
	for _, m := range methods {
		mTok := token.Token{Kind: token.Identifier, Lexeme: m.name}
		mSym := symbol.NewFunction(mTok, pool.Function(m.params, m.ret))
		mSym.Visibility = symbol.Public
		symbols.Insert(mSym)
	}
	symbols.Current = saved

	classSym.Body = classScope
	symbols.Global.Insert(classSym)
}

// Parse consumes the whole file as a sequence of top-level declarations.
// It never stops at the first error, continuing to gather more
// diagnostics; the caller checks Diagnostics() afterwards.
func (p *Parser) Parse() ([]ast.Stmt, []Diagnostic) {
	var stmts []ast.Stmt
	for p.current.Kind != token.End {
		stmts = append(stmts, p.declaration())
	}
	return stmts, p.diagnostics
}

func (p *Parser) Diagnostics() []Diagnostic { return p.diagnostics }
func (p *Parser) HadError() bool            { return len(p.diagnostics) > 0 }

// ----------------------------------------------------------------------------
// Token stream helpers

func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.NextToken()
		if p.current.Kind != token.Error {
			break
		}
		p.errorAt(p.current, p.current.Lexeme)
	}
}

func (p *Parser) check(k token.Kind) bool { return p.current.Kind == k }

func (p *Parser) match(k token.Kind) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(k token.Kind, message string) token.Token {
	if p.current.Kind == k {
		tok := p.current
		p.advance()
		return tok
	}
	p.errorAt(p.current, message)
	return p.current
}

func (p *Parser) errorAt(tok token.Token, message string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.diagnostics = append(p.diagnostics, Diagnostic{
		File: p.fileName(), Line: tok.Line, Column: tok.Column,
		Lexeme: tok.Lexeme, Message: message, Excerpt: p.excerpt(tok),
	})
}

func (p *Parser) fileName() string {
	if p.file == nil {
		return "<input>"
	}
	return p.file.Path
}

// excerpt renders the offending source line with a caret under the
// token's column.
func (p *Parser) excerpt(tok token.Token) string {
	if p.file == nil {
		return ""
	}
	lines := strings.Split(p.file.Text, "\n")
	if tok.Line < 1 || tok.Line > len(lines) {
		return ""
	}
	line := lines[tok.Line-1]
	caret := strings.Repeat(" ", max(0, tok.Column-1)) + "^"
	return line + "\n" + caret
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// synchronize implements panic-mode recovery: discard tokens until a
// statement-starter or a semicolon is reached.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Kind != token.End {
		if p.previous.Kind == token.Semicolon {
			return
		}
		switch p.current.Kind {
		case token.Var, token.Fn, token.If, token.While, token.For, token.Return, token.Break, token.Continue:
			return
		}
		p.advance()
	}
}

// ----------------------------------------------------------------------------
// Declarations

func (p *Parser) declaration() (result ast.Stmt) {
	defer func() {
		if p.panicMode {
			p.synchronize()
		}
	}()

	switch {
	case p.match(token.Var):
		return p.varDeclaration()
	case p.match(token.Fn):
		return p.functionDeclaration(false)
	case p.match(token.Typedef):
		return p.typealiasDeclaration()
	case p.match(token.Import):
		return p.importDeclaration()
	case p.match(token.Class):
		return p.classDeclaration()
	default:
		return p.statement()
	}
}

// varDeclaration parses `var name [: Type] [= expr];`. A declaration with
// neither annotation nor initializer has no way to infer a type and is
// rejected.
func (p *Parser) varDeclaration() ast.Stmt {
	name := p.consume(token.Identifier, "expected variable name")

	var annotated *types.Type
	if p.match(token.Colon) {
		annotated = p.typeAnnotation()
	}

	var init ast.Expr
	if p.match(token.Equal) {
		init = p.expression()
	}

	if annotated == nil && init == nil {
		p.errorAt(name, "variable declaration needs a type annotation or an initializer")
	}

	p.consume(token.Semicolon, "expected ';' after variable declaration")

	declType := annotated
	if declType == nil {
		declType = types.UnknownType()
	}
	sym := symbol.NewVar(name, declType)
	if err := p.Symbols.Insert(sym); err != nil {
		p.errorAt(name, err.Error())
	}

	return &ast.VarStmt{Name: name, Annotated: annotated, Initializer: init}
}

// typeAnnotation parses one of the built-in type keywords, an identifier
// (a class or alias name), `[]Type` for an array type, or
// `(T1, T2, ...): Ret` for a function type.
func (p *Parser) typeAnnotation() *types.Type {
	if p.match(token.LeftBracket) {
		p.consume(token.RightBracket, "expected ']' in array type")
		inner := p.typeAnnotation()
		return p.Pool.Array(inner)
	}

	if p.match(token.LeftParen) {
		var params []*types.Type
		if !p.check(token.RightParen) {
			for {
				params = append(params, p.typeAnnotation())
				if !p.match(token.Comma) {
					break
				}
			}
		}
		p.consume(token.RightParen, "expected ')' in function type")
		p.consume(token.Colon, "expected ':' before function type's return type")
		return p.Pool.Function(params, p.typeAnnotation())
	}

	switch {
	case p.match(token.TypeAny):
		return types.AnyType()
	case p.match(token.TypeNumber):
		return types.NumberType()
	case p.match(token.TypeString):
		return types.StringType()
	case p.match(token.TypeBool):
		return types.BoolType()
	case p.match(token.TypeVoid):
		return types.VoidType()
	case p.check(token.Identifier):
		name := p.consume(token.Identifier, "expected type name")
		return p.Pool.Class(name.Lexeme)
	default:
		p.errorAt(p.current, "expected a type")
		return types.UnknownType()
	}
}

func (p *Parser) functionDeclaration(isMethod bool) *ast.FunctionStmt {
	name := p.consume(token.Identifier, "expected function name")
	sym := symbol.NewFunction(name, nil)
	if !isMethod {
		if err := p.Symbols.Insert(sym); err != nil {
			p.errorAt(name, err.Error())
		}
	}

	p.Symbols.CreateScope()
	defer p.Symbols.EndScope()

	params := p.parameterList(isMethod)

	var ret *types.Type
	if p.match(token.Colon) {
		ret = p.typeAnnotation()
	} else {
		ret = types.VoidType()
	}

	body := p.block()

	fnType := p.Pool.Function(paramTypes(params), ret)
	sym.Type = fnType
	sym.ParamNames = paramTokens(params)

	return &ast.FunctionStmt{Name: name, Params: params, ReturnType: ret, Body: body, IsMethod: isMethod}
}

func (p *Parser) parameterList(isMethod bool) []ast.Param {
	p.consume(token.LeftParen, "expected '(' after function name")

	var params []ast.Param
	if isMethod {
		selfTok := token.Token{Kind: token.Self, Lexeme: "self", Line: p.previous.Line, Column: p.previous.Column, File: p.file}
		selfType := types.AnyType()
		if p.classDepth > 0 {
			selfType = p.Pool.Object(p.Pool.Class(p.currentClassName))
		}
		params = append(params, ast.Param{Name: selfTok, Type: selfType})
		p.Symbols.Insert(symbol.NewVar(selfTok, selfType))
	}

	if !p.check(token.RightParen) {
		for {
			pname := p.consume(token.Identifier, "expected parameter name")
			p.consume(token.Colon, "expected ':' after parameter name")
			ptype := p.typeAnnotation()
			params = append(params, ast.Param{Name: pname, Type: ptype})
			p.Symbols.Insert(symbol.NewVar(pname, ptype))
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "expected ')' after parameters")
	return params
}

func paramTypes(params []ast.Param) []*types.Type {
	out := make([]*types.Type, len(params))
	for i, pr := range params {
		out[i] = pr.Type
	}
	return out
}

func paramTokens(params []ast.Param) []token.Token {
	out := make([]token.Token, len(params))
	for i, pr := range params {
		out[i] = pr.Name
	}
	return out
}

// nativeParams synthesizes parameter names for a NativeFunctionStmt: the
// provider only carries types (qcc's NativeFunction.type.function.param_types
// has no parameter names either), and nothing reads these names back since
// pkg/checker/pkg/compiler treat NativeFunctionStmt as a no-op.
func nativeParams(at token.Token, paramTypes []*types.Type) []ast.Param {
	params := make([]ast.Param, len(paramTypes))
	for i, t := range paramTypes {
		params[i] = ast.Param{
			Name: token.Token{Kind: token.Identifier, Lexeme: fmt.Sprintf("arg%d", i), Line: at.Line, Column: at.Column, File: at.File},
			Type: t,
		}
	}
	return params
}

func (p *Parser) typealiasDeclaration() ast.Stmt {
	name := p.consume(token.Identifier, "expected alias name")
	p.consume(token.Equal, "expected '=' in typedef")
	def := p.typeAnnotation()
	p.consume(token.Semicolon, "expected ';' after typedef")

	aliasType := p.Pool.Alias(name.Lexeme, def)
	if err := p.Symbols.Insert(symbol.NewTypealias(name, aliasType)); err != nil {
		p.errorAt(name, err.Error())
	}
	return &ast.TypealiasStmt{Name: name, Def: aliasType}
}

// importDeclaration consults the source provider; a native module
// registers each of its functions as a native-flagged variable symbol, a
// file import is reparsed and merged as a List subtree.
func (p *Parser) importDeclaration() ast.Stmt {
	pathTok := p.consume(token.String, "expected import path string")
	p.consume(token.Semicolon, "expected ';' after import")

	path := pathTok.Lexeme
	if p.Prov == nil {
		p.errorAt(pathTok, "no source provider configured")
		return &ast.ImportStmt{Path: pathTok}
	}

	if p.Prov.AlreadyLoaded(path) {
		return &ast.ImportStmt{Path: pathTok, AlreadyLoaded: true}
	}
	p.Prov.MarkLoaded(path)

	src, err := p.Prov.Resolve(path)
	if err != nil {
		p.errorAt(pathTok, err.Error())
		return &ast.ImportStmt{Path: pathTok}
	}

	if src.IsNative() {
		stmts := make([]ast.Stmt, 0, len(src.Functions))
		for _, fn := range src.Functions {
			nameTok := token.Token{Kind: token.Identifier, Lexeme: fn.Name, Line: pathTok.Line, Column: pathTok.Column, File: p.file}
			sym := symbol.NewVar(nameTok, p.Pool.Function(fn.Params, fn.Return))
			sym.Native = true
			if err := p.Symbols.Insert(sym); err != nil {
				p.errorAt(pathTok, err.Error())
			}
			stmts = append(stmts, &ast.NativeFunctionStmt{
				Name:   nameTok,
				Params: nativeParams(nameTok, fn.Params),
				Return: fn.Return,
			})
		}
		return &ast.ImportStmt{Path: pathTok, NativeModule: src.NativeModule, ImportedStmts: stmts}
	}

	sub := New(&token.File{Path: src.FilePath, Text: src.FileText}, p.Pool, p.Symbols, p.Prov)
	stmts, diags := sub.Parse()
	p.diagnostics = append(p.diagnostics, diags...)
	return &ast.ImportStmt{Path: pathTok, ImportedStmts: stmts}
}

// classDeclaration parses `class Name { (pub? (var … | fn …))* }`.
// Properties may not carry initializers; visibility defaults to private.
func (p *Parser) classDeclaration() ast.Stmt {
	name := p.consume(token.Identifier, "expected class name")
	classType := p.Pool.Class(name.Lexeme)
	if err := p.Symbols.Insert(symbol.NewClass(name, classType)); err != nil {
		p.errorAt(name, err.Error())
	}

	p.classDepth++
	prevClassName := p.currentClassName
	p.currentClassName = name.Lexeme
	defer func() { p.classDepth--; p.currentClassName = prevClassName }()

	classScope := p.Symbols.CreateClassScope()
	defer p.Symbols.EndScope()

	p.consume(token.LeftBrace, "expected '{' to start class body")

	var props []ast.ClassProperty
	var methods []ast.ClassMethod

	for !p.check(token.RightBrace) && !p.check(token.End) {
		public := p.match(token.Pub)
		switch {
		case p.match(token.Var):
			pname := p.consume(token.Identifier, "expected property name")
			p.consume(token.Colon, "expected ':' in property declaration")
			ptype := p.typeAnnotation()
			p.consume(token.Semicolon, "expected ';' after property declaration")
			p.Symbols.Insert(symbol.NewVar(pname, ptype))
			props = append(props, ast.ClassProperty{Name: pname, Type: ptype, Public: public})
		case p.match(token.Fn):
			fn := p.functionDeclaration(true)
			methods = append(methods, ast.ClassMethod{Public: public, Fn: fn})
		default:
			p.errorAt(p.current, "expected 'var' or 'fn' in class body")
			p.advance()
		}
	}
	p.consume(token.RightBrace, "expected '}' to close class body")

	classSym, _ := p.Symbols.LookupWithClass(name.Lexeme)
	if classSym != nil {
		classSym.Body = classScope
	}

	return &ast.ClassStmt{Name: name, Properties: props, Methods: methods}
}

// ----------------------------------------------------------------------------
// Statements

func (p *Parser) statement() ast.Stmt {
	switch {
	case p.match(token.LeftBrace):
		return &ast.BlockStmt{Stmts: p.blockBody()}
	case p.match(token.Return):
		return p.returnStatement()
	case p.match(token.If):
		return p.ifStatement()
	case p.match(token.For):
		return p.forStatement()
	case p.match(token.While):
		return p.whileStatement()
	case p.match(token.Break):
		return p.loopGoto(ast.Break)
	case p.match(token.Continue):
		return p.loopGoto(ast.Continue)
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) block() []ast.Stmt {
	p.consume(token.LeftBrace, "expected '{' to start block")
	return p.blockBody()
}

func (p *Parser) blockBody() []ast.Stmt {
	p.Symbols.CreateScope()
	defer p.Symbols.EndScope()

	var stmts []ast.Stmt
	for !p.check(token.RightBrace) && !p.check(token.End) {
		stmts = append(stmts, p.declaration())
	}
	p.consume(token.RightBrace, "expected '}' to close block")
	return stmts
}

func (p *Parser) returnStatement() ast.Stmt {
	tok := p.previous
	var expr ast.Expr
	if !p.check(token.Semicolon) {
		expr = p.expression()
	}
	p.consume(token.Semicolon, "expected ';' after return")
	return &ast.ReturnStmt{Tok: tok, Expr: expr}
}

func (p *Parser) ifStatement() ast.Stmt {
	p.consume(token.LeftParen, "expected '(' after if")
	cond := p.expression()
	p.consume(token.RightParen, "expected ')' after if condition")
	then := p.statement()
	var els ast.Stmt
	if p.match(token.Else) {
		els = p.statement()
	}
	return &ast.IfStmt{Condition: cond, Then: then, Else: els}
}

func (p *Parser) forStatement() ast.Stmt {
	p.Symbols.CreateScope()
	defer p.Symbols.EndScope()

	p.consume(token.LeftParen, "expected '(' after for")

	var init ast.Stmt
	switch {
	case p.match(token.Semicolon):
		// no initializer
	case p.match(token.Var):
		init = p.varDeclaration()
	default:
		init = p.expressionStatement()
	}

	var cond ast.Expr
	if !p.check(token.Semicolon) {
		cond = p.expression()
	}
	p.consume(token.Semicolon, "expected ';' after for condition")

	var post ast.Stmt
	if !p.check(token.RightParen) {
		post = &ast.ExprStmt{Expr: p.expression()}
	}
	p.consume(token.RightParen, "expected ')' after for clauses")

	p.loopDepth++
	body := p.statement()
	p.loopDepth--

	return &ast.ForStmt{Init: init, Condition: cond, Post: post, Body: body}
}

func (p *Parser) whileStatement() ast.Stmt {
	p.consume(token.LeftParen, "expected '(' after while")
	cond := p.expression()
	p.consume(token.RightParen, "expected ')' after while condition")

	p.loopDepth++
	body := p.statement()
	p.loopDepth--

	return &ast.WhileStmt{Condition: cond, Body: body}
}

func (p *Parser) loopGoto(kind ast.LoopGotoKind) ast.Stmt {
	tok := p.previous
	if p.loopDepth == 0 {
		p.errorAt(tok, "'break'/'continue' used outside of a loop")
	}
	p.consume(token.Semicolon, "expected ';' after break/continue")
	return &ast.LoopGotoStmt{Tok: tok, Kind: kind}
}

func (p *Parser) expressionStatement() ast.Stmt {
	expr := p.expression()
	p.consume(token.Semicolon, "expected ';' after expression")
	return &ast.ExprStmt{Expr: expr}
}

// ----------------------------------------------------------------------------
// Expressions (Pratt parsing)

func (p *Parser) expression() ast.Expr {
	return p.parsePrecedence(precAssignment)
}

func (p *Parser) parsePrecedence(min precedence) ast.Expr {
	r := rules[p.current.Kind]
	if r.prefix == nil {
		p.errorAt(p.current, "expected expression")
		p.advance()
		return &ast.LiteralExpr{Meta: ast.Meta{Tok: p.previous}, Value: "nil"}
	}
	p.advance()
	left := r.prefix(p)

	for {
		next := rules[p.current.Kind]
		if next.infix == nil || next.prec < min {
			break
		}
		p.advance()
		left = next.infix(p, left)
	}
	return left
}

func parseNumber(p *Parser) ast.Expr {
	tok := p.previous
	return &ast.LiteralExpr{Meta: ast.Meta{Tok: tok, ResolvedType: types.NumberType()}, Value: tok.Lexeme}
}

func parseString(p *Parser) ast.Expr {
	tok := p.previous
	return &ast.LiteralExpr{Meta: ast.Meta{Tok: tok, ResolvedType: types.StringType()}, Value: tok.Lexeme}
}

func parseLiteralKeyword(t *types.Type) prefixParseFn {
	return func(p *Parser) ast.Expr {
		tok := p.previous
		return &ast.LiteralExpr{Meta: ast.Meta{Tok: tok, ResolvedType: t}, Value: tok.Lexeme}
	}
}

func parseIdentifier(p *Parser) ast.Expr {
	tok := p.previous
	return &ast.IdentifierExpr{Meta: ast.Meta{Tok: tok}, Name: tok.Lexeme}
}

func parseSelf(p *Parser) ast.Expr {
	tok := p.previous
	return &ast.IdentifierExpr{Meta: ast.Meta{Tok: tok}, Name: "self"}
}

func parseGrouping(p *Parser) ast.Expr {
	expr := p.expression()
	p.consume(token.RightParen, "expected ')' after expression")
	return expr
}

func parseUnary(p *Parser) ast.Expr {
	op := p.previous
	operand := p.parsePrecedence(precUnary)
	return &ast.UnaryExpr{Meta: ast.Meta{Tok: op}, Op: op.Kind, Expr: operand}
}

func parseNew(p *Parser) ast.Expr {
	tok := p.previous
	name := p.consume(token.Identifier, "expected class name after 'new'")
	p.consume(token.LeftParen, "expected '(' after class name")
	args := parseArgs(p)
	return &ast.NewExpr{Meta: ast.Meta{Tok: tok}, ClassName: name.Lexeme, Args: args}
}

func parseCast(p *Parser) ast.Expr {
	tok := p.previous
	p.consume(token.Lower, "expected '<' after cast")
	target := p.typeAnnotationPublic()
	p.consume(token.Greater, "expected '>' after cast target type")
	p.consume(token.LeftParen, "expected '(' before cast operand")
	inner := p.expression()
	p.consume(token.RightParen, "expected ')' after cast operand")
	return &ast.CastExpr{Meta: ast.Meta{Tok: tok}, Target: target, Inner: inner}
}

// typeAnnotationPublic lets cast<T> reuse typeAnnotation without exporting
// it outside the package's own call sites.
func (p *Parser) typeAnnotationPublic() *types.Type { return p.typeAnnotation() }

func parseArrayLiteralOrIndex(p *Parser) ast.Expr {
	tok := p.previous
	// `[]Type{...}` literal: RightBracket immediately follows LeftBracket.
	p.consume(token.RightBracket, "expected ']' in array literal")
	elemType := p.typeAnnotation()
	p.consume(token.LeftBrace, "expected '{' to start array literal")

	var elements []ast.Expr
	if !p.check(token.RightBrace) {
		for {
			elements = append(elements, p.expression())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightBrace, "expected '}' to close array literal")
	return &ast.ArrayExpr{Meta: ast.Meta{Tok: tok}, ElementType: elemType, Elements: elements}
}

func parseBinary(p *Parser, left ast.Expr) ast.Expr {
	op := p.previous
	r := rules[op.Kind]
	right := p.parsePrecedence(r.prec + 1)
	return &ast.BinaryExpr{Meta: ast.Meta{Tok: op}, Op: op.Kind, Left: left, Right: right}
}

func parseAnd(p *Parser, left ast.Expr) ast.Expr {
	op := p.previous
	right := p.parsePrecedence(precAnd + 1)
	return &ast.BinaryExpr{Meta: ast.Meta{Tok: op}, Op: op.Kind, Left: left, Right: right}
}

func parseOr(p *Parser, left ast.Expr) ast.Expr {
	op := p.previous
	right := p.parsePrecedence(precOr + 1)
	return &ast.BinaryExpr{Meta: ast.Meta{Tok: op}, Op: op.Kind, Left: left, Right: right}
}

func parseCall(p *Parser, callee ast.Expr) ast.Expr {
	tok := p.previous
	args := parseArgs(p)
	return &ast.CallExpr{Meta: ast.Meta{Tok: tok}, Callee: callee, Args: args}
}

func parseArgs(p *Parser) []ast.Expr {
	var args []ast.Expr
	if !p.check(token.RightParen) {
		for {
			args = append(args, p.expression())
			if !p.match(token.Comma) {
				break
			}
		}
	}
	p.consume(token.RightParen, "expected ')' after arguments")
	return args
}

func parseIndex(p *Parser, receiver ast.Expr) ast.Expr {
	tok := p.previous
	idx := p.expression()
	p.consume(token.RightBracket, "expected ']' after index expression")
	return &ast.ArrayExpr{Meta: ast.Meta{Tok: tok}, Array: receiver, Index: idx}
}

// parseDot handles both `obj.prop` read and, when immediately followed by
// `=`, `obj.prop = value` write.
func parseDot(p *Parser, receiver ast.Expr) ast.Expr {
	tok := p.previous
	prop := p.consume(token.Identifier, "expected property name after '.'")
	if p.match(token.Equal) {
		value := p.expression()
		return &ast.PropAssignExpr{Meta: ast.Meta{Tok: tok}, Receiver: receiver, Prop: prop.Lexeme, Value: value}
	}
	return &ast.PropExpr{Meta: ast.Meta{Tok: tok}, Receiver: receiver, Prop: prop.Lexeme}
}

// parseAssign handles plain `name = value`; only identifiers are legal
// assignment targets through this path (field writes are parsed directly by
// parseDot; an index expression such as `arr[i]` on the left is reported as
// an invalid assignment target).
func parseAssign(p *Parser, left ast.Expr) ast.Expr {
	tok := p.previous
	id, ok := left.(*ast.IdentifierExpr)
	if !ok {
		p.errorAt(tok, "invalid assignment target")
		return left
	}
	value := p.parsePrecedence(precAssignment)
	return &ast.AssignmentExpr{Meta: ast.Meta{Tok: tok}, Name: id.Name, Value: value}
}

var rules map[token.Kind]rule

func init() {
	rules = map[token.Kind]rule{
		token.Number:     {prefix: parseNumber, prec: precNone},
		token.String:     {prefix: parseString, prec: precNone},
		token.True:       {prefix: parseLiteralKeyword(types.BoolType()), prec: precNone},
		token.False:      {prefix: parseLiteralKeyword(types.BoolType()), prec: precNone},
		token.Nil:        {prefix: parseLiteralKeyword(types.NilType()), prec: precNone},
		token.Identifier: {prefix: parseIdentifier, prec: precNone},
		token.Self:       {prefix: parseSelf, prec: precNone},
		token.LeftParen:  {prefix: parseGrouping, infix: parseCall, prec: precCall},
		token.LeftBracket: {prefix: parseArrayLiteralOrIndex, infix: parseIndex, prec: precCall},
		token.New:   {prefix: parseNew, prec: precNone},
		token.Cast:  {prefix: parseCast, prec: precCast},
		token.Minus: {prefix: parseUnary, infix: parseBinary, prec: precTerm},
		token.Bang:  {prefix: parseUnary, prec: precNone},
		token.Plus:  {infix: parseBinary, prec: precTerm},
		token.Star:  {infix: parseBinary, prec: precFactor},
		token.Slash: {infix: parseBinary, prec: precFactor},
		token.Percent: {infix: parseBinary, prec: precFactor},
		token.EqualEqual:   {infix: parseBinary, prec: precEquality},
		token.BangEqual:    {infix: parseBinary, prec: precEquality},
		token.Lower:        {infix: parseBinary, prec: precComparison},
		token.LowerEqual:   {infix: parseBinary, prec: precComparison},
		token.Greater:      {infix: parseBinary, prec: precComparison},
		token.GreaterEqual: {infix: parseBinary, prec: precComparison},
		token.AmpAmp: {infix: parseAnd, prec: precAnd},
		token.PipePipe: {infix: parseOr, prec: precOr},
		token.Dot:   {infix: parseDot, prec: precCall},
		token.Equal: {infix: parseAssign, prec: precAssignment},
	}
}
