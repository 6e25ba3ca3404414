package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quartz.dev/qcc/pkg/bytecode"
	"quartz.dev/qcc/pkg/compiler"
	"quartz.dev/qcc/pkg/parser"
	"quartz.dev/qcc/pkg/symbol"
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

func compileSrc(t *testing.T, src string) *value.Chunk {
	t.Helper()
	pool := types.NewPool()
	symbols := symbol.NewTable()
	p := parser.New(&token.File{Path: "<test>", Text: src}, pool, symbols, nil)
	stmts, diags := p.Parse()
	require.Empty(t, diags)

	c := compiler.New(pool, symbols)
	return c.Compile(stmts)
}

func TestArithmeticCompilesWithoutError(t *testing.T) {
	chunk := compileSrc(t, "var a: Number = 2 + 3 * 4;")
	assert.NotEmpty(t, chunk.Code)
	assert.Contains(t, chunk.Code, byte(bytecode.MUL))
	assert.Contains(t, chunk.Code, byte(bytecode.ADD))
}

func TestGlobalVarDefinesConstantName(t *testing.T) {
	chunk := compileSrc(t, "var a: Number = 1;")
	require.NotEmpty(t, chunk.Code)
	assert.Contains(t, chunk.Code, byte(bytecode.DEFINE_GLOBAL))
}

func TestIfElseCompilesWithPatchedJumps(t *testing.T) {
	src := `
		var a: Number = 0;
		if (a == 0) { a = 1; } else { a = 2; }
	`
	chunk := compileSrc(t, src)
	assert.NotEmpty(t, chunk.Code)
	assert.Contains(t, chunk.Code, byte(bytecode.JUMP_IF_FALSE))
	assert.Contains(t, chunk.Code, byte(bytecode.JUMP))
}

func TestWhileLoopEmitsBackwardJump(t *testing.T) {
	src := `
		var a: Number = 0;
		while (a == 0) { a = 1; }
	`
	chunk := compileSrc(t, src)
	assert.Contains(t, chunk.Code, byte(bytecode.JUMP_IF_FALSE))
	assert.Contains(t, chunk.Code, byte(bytecode.JUMP))
}

func TestFunctionDeclarationEmitsClosureConstruction(t *testing.T) {
	chunk := compileSrc(t, "fn add(a: Number, b: Number): Number { return a + b; }")
	assert.Contains(t, chunk.Code, byte(bytecode.CONSTANT))
	assert.Contains(t, chunk.Code, byte(bytecode.DEFINE_GLOBAL))
}

func TestClassDeclarationEmitsSingleConstant(t *testing.T) {
	src := `
		class Point {
			pub var x: Number;
			pub fn init(x: Number) { self.x = x; }
		}
	`
	chunk := compileSrc(t, src)
	assert.Contains(t, chunk.Code, byte(bytecode.CONSTANT))
	assert.Contains(t, chunk.Code, byte(bytecode.DEFINE_GLOBAL))
	assert.NotContains(t, chunk.Code, byte(bytecode.NEW))
}

func TestArrayIndexDesugarsToInvoke(t *testing.T) {
	src := `
		var a: []Number = []Number{1, 2, 3};
		var b: Number = a[0];
	`
	chunk := compileSrc(t, src)
	assert.Contains(t, chunk.Code, byte(bytecode.ARRAY))
	assert.Contains(t, chunk.Code, byte(bytecode.ARRAY_PUSH))
	assert.Contains(t, chunk.Code, byte(bytecode.INVOKE))
}
