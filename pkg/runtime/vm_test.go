package runtime_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quartz.dev/qcc/pkg/checker"
	"quartz.dev/qcc/pkg/compiler"
	"quartz.dev/qcc/pkg/parser"
	"quartz.dev/qcc/pkg/provider"
	"quartz.dev/qcc/pkg/runtime"
	"quartz.dev/qcc/pkg/stdlib"
	"quartz.dev/qcc/pkg/symbol"
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

// runProgram parses, checks, compiles and runs src against a fresh VM with
// the standard library installed, returning whatever it printed via
// println/print.
func runProgram(t *testing.T, src string) string {
	t.Helper()
	pool := types.NewPool()
	symbols := symbol.NewTable()
	prov := provider.NewFileProvider(t.TempDir())

	p := parser.New(&token.File{Path: "<test>", Text: src}, pool, symbols, prov)
	stmts, diags := p.Parse()
	require.Empty(t, diags)

	chk := checker.New(pool, symbols)
	chk.Check(stmts)
	require.Empty(t, chk.Diagnostics())

	emit := compiler.New(pool, symbols)
	chunk := emit.Compile(stmts)

	vm := runtime.New(pool)
	var out strings.Builder
	vm.Stdout = func(s string) { out.WriteString(s) }
	stdlib.Install(vm)

	err := vm.Run(&value.Function{Name: "<script>", Chunk: chunk})
	require.NoError(t, err)
	return out.String()
}

func TestPrintlnViaStdio(t *testing.T) {
	out := runProgram(t, `import "stdio"; println("hi");`)
	assert.Equal(t, "hi\n", out)
}

func TestArithmeticPrecedence(t *testing.T) {
	out := runProgram(t, `
		import "stdio";
		import "stdconv";
		var a: Number = 2 + 3 * 4;
		println(ntos(a));
	`)
	assert.Equal(t, "14\n", out)
}

func TestClosureUpvaluePromotion(t *testing.T) {
	out := runProgram(t, `
		import "stdio";
		import "stdconv";
		fn make(): (): Number {
			var x: Number = 1;
			fn inner(): Number { x = x + 1; return x; }
			return inner;
		}
		var f = make();
		println(ntos(f()));
		println(ntos(f()));
	`)
	assert.Equal(t, "2\n3\n", out)
}

func TestSiblingClosuresShareUpvalue(t *testing.T) {
	out := runProgram(t, `
		import "stdio";
		import "stdconv";
		fn make(): (): Number {
			var x: Number = 0;
			fn bump(): Number { x = x + 1; return x; }
			return bump;
		}
		var a = make();
		var b = make();
		println(ntos(a()));
		println(ntos(a()));
		println(ntos(b()));
	`)
	assert.Equal(t, "1\n2\n1\n", out)
}

func TestClassInitAndMethodDispatch(t *testing.T) {
	out := runProgram(t, `
		import "stdio";
		import "stdconv";
		class P {
			pub var n: Number;
			pub fn init(v: Number) { self.n = v; }
			pub fn get(): Number { return self.n; }
		}
		var p = new P(7);
		println(ntos(p.get()));
	`)
	assert.Equal(t, "7\n", out)
}

func TestArrayPushAndLength(t *testing.T) {
	out := runProgram(t, `
		import "stdio";
		import "stdconv";
		var xs = []Number{1, 2, 3};
		xs.push(4);
		println(ntos(xs.length()));
	`)
	assert.Equal(t, "4\n", out)
}

func TestArrayGetSet(t *testing.T) {
	out := runProgram(t, `
		import "stdio";
		import "stdconv";
		var xs = []Number{1, 2, 3};
		xs.set(1, 99);
		println(ntos(xs.get(1)));
	`)
	assert.Equal(t, "99\n", out)
}

func TestForLoop(t *testing.T) {
	out := runProgram(t, `
		import "stdio";
		import "stdconv";
		for (var i: Number = 0; i < 3; i = i + 1) {
			println(ntos(i));
		}
	`)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestStringConcatenationAndMethods(t *testing.T) {
	out := runProgram(t, `
		import "stdio";
		import "stdconv";
		var s = "hi" + " there";
		println(s);
		println(ntos(s.length()));
	`)
	assert.Equal(t, "hi there\n8\n", out)
}

func TestDiamondImportLoadsOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/shared.qz", []byte(`var counted: Number = 1;`), 0o644))
	require.NoError(t, os.WriteFile(dir+"/a.qz", []byte(`import "shared";`), 0o644))
	require.NoError(t, os.WriteFile(dir+"/b.qz", []byte(`
		import "stdio";
		import "stdconv";
		import "a";
		import "shared";
		println(ntos(counted));
	`), 0o644))

	pool := types.NewPool()
	symbols := symbol.NewTable()
	prov := provider.NewFileProvider(dir)

	source, err := os.ReadFile(dir + "/b.qz")
	require.NoError(t, err)

	p := parser.New(&token.File{Path: dir + "/b.qz", Text: string(source)}, pool, symbols, prov)
	stmts, diags := p.Parse()
	require.Empty(t, diags)

	chk := checker.New(pool, symbols)
	chk.Check(stmts)
	require.Empty(t, chk.Diagnostics())

	emit := compiler.New(pool, symbols)
	chunk := emit.Compile(stmts)

	vm := runtime.New(pool)
	var out strings.Builder
	vm.Stdout = func(s string) { out.WriteString(s) }
	stdlib.Install(vm)

	require.NoError(t, vm.Run(&value.Function{Name: "<script>", Chunk: chunk}))
	assert.Equal(t, "1\n", out.String())
}
