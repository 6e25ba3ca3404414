package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quartz.dev/qcc/pkg/ast"
	"quartz.dev/qcc/pkg/parser"
	"quartz.dev/qcc/pkg/symbol"
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
)

func parse(t *testing.T, src string) ([]ast.Stmt, *parser.Parser) {
	t.Helper()
	pool := types.NewPool()
	symbols := symbol.NewTable()
	p := parser.New(&token.File{Path: "<test>", Text: src}, pool, symbols, nil)
	stmts, diags := p.Parse()
	require.Empty(t, diags, "expected no diagnostics, got %v", diags)
	return stmts, p
}

func TestVarDeclarationWithAnnotationAndInitializer(t *testing.T) {
	stmts, _ := parse(t, "var a: Number = 1;")
	require.Len(t, stmts, 1)
	v, ok := stmts[0].(*ast.VarStmt)
	require.True(t, ok)
	assert.Equal(t, "a", v.Name.Lexeme)
	assert.NotNil(t, v.Annotated)
	assert.NotNil(t, v.Initializer)
}

func TestVarDeclarationMissingBothIsError(t *testing.T) {
	pool := types.NewPool()
	symbols := symbol.NewTable()
	p := parser.New(&token.File{Path: "<test>", Text: "var a;"}, pool, symbols, nil)
	_, diags := p.Parse()
	require.NotEmpty(t, diags)
}

func TestFunctionDeclarationParsesParamsAndBody(t *testing.T) {
	stmts, _ := parse(t, "fn add(a: Number, b: Number): Number { return a + b; }")
	require.Len(t, stmts, 1)
	fn, ok := stmts[0].(*ast.FunctionStmt)
	require.True(t, ok)
	assert.Len(t, fn.Params, 2)
	assert.Len(t, fn.Body, 1)
}

func TestBinaryPrecedence(t *testing.T) {
	stmts, _ := parse(t, "var a: Number = 2 + 3 * 4;")
	v := stmts[0].(*ast.VarStmt)
	bin, ok := v.Initializer.(*ast.BinaryExpr)
	require.True(t, ok)
	assert.Equal(t, token.Plus, bin.Op)
	rhs, ok := bin.Right.(*ast.BinaryExpr)
	require.True(t, ok, "multiplication should bind tighter than addition")
	assert.Equal(t, token.Star, rhs.Op)
}

func TestIfWhileForAndLoopGoto(t *testing.T) {
	stmts, _ := parse(t, `
		for (var i: Number = 0; i < 10; i = i + 1) {
			if (i == 5) { break; } else { continue; }
		}
	`)
	require.Len(t, stmts, 1)
	_, ok := stmts[0].(*ast.ForStmt)
	assert.True(t, ok)
}

func TestBreakOutsideLoopIsError(t *testing.T) {
	pool := types.NewPool()
	symbols := symbol.NewTable()
	p := parser.New(&token.File{Path: "<test>", Text: "break;"}, pool, symbols, nil)
	_, diags := p.Parse()
	require.NotEmpty(t, diags)
}

func TestClassDeclarationWithPropertyAndMethod(t *testing.T) {
	stmts, _ := parse(t, `
		class Point {
			pub var x: Number;
			pub fn length(): Number { return self.x; }
		}
	`)
	require.Len(t, stmts, 1)
	cls, ok := stmts[0].(*ast.ClassStmt)
	require.True(t, ok)
	require.Len(t, cls.Properties, 1)
	require.Len(t, cls.Methods, 1)
	assert.True(t, cls.Methods[0].Fn.IsMethod)
}

func TestNewAndCastExpressions(t *testing.T) {
	stmts, _ := parse(t, `
		class Point { pub var x: Number; }
		var p: Point = new Point();
		var asAny: Any = cast<Any>(p);
	`)
	require.Len(t, stmts, 3)
	_, ok := stmts[1].(*ast.VarStmt).Initializer.(*ast.NewExpr)
	assert.True(t, ok)
	_, ok = stmts[2].(*ast.VarStmt).Initializer.(*ast.CastExpr)
	assert.True(t, ok)
}

func TestArrayLiteralAndIndex(t *testing.T) {
	stmts, _ := parse(t, `
		var xs: []Number = []Number{1, 2, 3};
		var first: Number = xs[0];
	`)
	require.Len(t, stmts, 2)
	arr, ok := stmts[0].(*ast.VarStmt).Initializer.(*ast.ArrayExpr)
	require.True(t, ok)
	assert.Len(t, arr.Elements, 3)

	idx, ok := stmts[1].(*ast.VarStmt).Initializer.(*ast.ArrayExpr)
	require.True(t, ok)
	assert.NotNil(t, idx.Array)
	assert.NotNil(t, idx.Index)
}

func TestPropAccessAndAssign(t *testing.T) {
	stmts, _ := parse(t, `
		class Point { pub var x: Number; }
		var p: Point = new Point();
		p.x = 5;
	`)
	require.Len(t, stmts, 3)
	assignStmt, ok := stmts[2].(*ast.ExprStmt)
	require.True(t, ok)
	_, ok = assignStmt.Expr.(*ast.PropAssignExpr)
	assert.True(t, ok)
}
