package checker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quartz.dev/qcc/pkg/checker"
	"quartz.dev/qcc/pkg/parser"
	"quartz.dev/qcc/pkg/symbol"
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
)

func check(t *testing.T, src string) []checker.Diagnostic {
	t.Helper()
	pool := types.NewPool()
	symbols := symbol.NewTable()
	p := parser.New(&token.File{Path: "<test>", Text: src}, pool, symbols, nil)
	stmts, diags := p.Parse()
	require.Empty(t, diags, "expected no parse diagnostics, got %v", diags)

	c := checker.New(pool, symbols)
	return c.Check(stmts)
}

func TestValidProgramHasNoDiagnostics(t *testing.T) {
	diags := check(t, `
		var a: Number = 2 + 3 * 4;
		fn add(x: Number, y: Number): Number { return x + y; }
		var result: Number = add(a, 1);
	`)
	assert.Empty(t, diags)
}

func TestVoidVariableIsRejected(t *testing.T) {
	diags := check(t, "var a: Void;")
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "cannot have type Void")
}

func TestAssigningIncompatibleTypeIsRejected(t *testing.T) {
	diags := check(t, `var a: Number = "not a number";`)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "cannot assign")
}

func TestUntypedVarInfersFromInitializer(t *testing.T) {
	diags := check(t, `
		var a = 1;
		var b: Number = a;
	`)
	assert.Empty(t, diags)
}

func TestFunctionMissingReturnOnSomePathIsRejected(t *testing.T) {
	diags := check(t, `
		fn maybe(flag: Bool): Number {
			if (flag) { return 1; }
		}
	`)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "does not return on every path")
}

func TestFunctionReturningOnEveryBranchIsAccepted(t *testing.T) {
	diags := check(t, `
		fn maybe(flag: Bool): Number {
			if (flag) { return 1; } else { return 0; }
		}
	`)
	assert.Empty(t, diags)
}

func TestVoidFunctionNeedNotReturnOnEveryPath(t *testing.T) {
	diags := check(t, `
		fn sideEffect(flag: Bool) {
			if (flag) { return; }
		}
	`)
	assert.Empty(t, diags)
}

func TestClassMethodSelfPropertyAccessTypeChecks(t *testing.T) {
	diags := check(t, `
		class Point {
			pub var x: Number;
			pub fn init(v: Number) { self.x = v; }
			pub fn get(): Number { return self.x; }
		}
		var p = new Point(1);
		var n: Number = p.get();
	`)
	assert.Empty(t, diags)
}

func TestAssigningToUndeclaredPropertyIsRejected(t *testing.T) {
	diags := check(t, `
		class Point { pub var x: Number; }
		var p = new Point(1);
		p.y = 2;
	`)
	require.NotEmpty(t, diags)
}

func TestAnyAcceptsAnyAssignment(t *testing.T) {
	diags := check(t, `
		class Point { pub var x: Number; }
		var p = new Point(1);
		var a: Any = p;
		var b: Any = 1;
		var c: Any = "hi";
	`)
	assert.Empty(t, diags)
}

func TestClosureOverEnclosingLocalTypeChecks(t *testing.T) {
	diags := check(t, `
		fn make(): (): Number {
			var x: Number = 1;
			fn inner(): Number { x = x + 1; return x; }
			return inner;
		}
	`)
	assert.Empty(t, diags)
}

func TestCastWideningToBoolIsAccepted(t *testing.T) {
	diags := check(t, `
		var a: Number = 1;
		var b: Bool = cast<Bool>(a);
	`)
	assert.Empty(t, diags)
}

func TestCastBetweenIncompatibleTypesIsRejected(t *testing.T) {
	diags := check(t, `
		var a: Number = 1;
		var b: String = cast<String>(a);
	`)
	require.NotEmpty(t, diags)
}

func TestArrayElementTypeMismatchIsRejected(t *testing.T) {
	diags := check(t, `var xs: []Number = []Number{1, "two", 3};`)
	require.NotEmpty(t, diags)
}

func TestCheckNeverStopsAtFirstError(t *testing.T) {
	diags := check(t, `
		var a: Number = "x";
		var b: Bool = 1;
	`)
	assert.Len(t, diags, 2)
}
