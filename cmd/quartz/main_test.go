package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runSource writes source to a temp .qz file and runs it through Handler,
// capturing whatever the program printed via stdio.println/print.
func runSource(t *testing.T, source string) (stdout string, status int) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "main.qz")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))

	var buf bytes.Buffer
	old := Stdout
	Stdout = &buf
	defer func() { Stdout = old }()

	status = Handler([]string{path}, map[string]string{})
	return buf.String(), status
}

// These mirror the end-to-end scenarios that validate the compiler and VM
// together: lexing through running, each exercising a different pipeline
// stage (constants, closures, classes, arrays, loops).
func TestEndToEndScenarios(t *testing.T) {
	t.Run("println via stdio", func(t *testing.T) {
		out, status := runSource(t, `import "stdio"; println("hi");`)
		require.Equal(t, 0, status)
		assert.Equal(t, "hi\n", out)
	})

	t.Run("arithmetic precedence", func(t *testing.T) {
		out, status := runSource(t, `
			import "stdio";
			import "stdconv";
			var a: Number = 2 + 3 * 4;
			println(ntos(a));
		`)
		require.Equal(t, 0, status)
		assert.Equal(t, "14\n", out)
	})

	t.Run("closures and upvalue promotion", func(t *testing.T) {
		out, status := runSource(t, `
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
		require.Equal(t, 0, status)
		assert.Equal(t, "2\n3\n", out)
	})

	t.Run("classes and init", func(t *testing.T) {
		out, status := runSource(t, `
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
		require.Equal(t, 0, status)
		assert.Equal(t, "7\n", out)
	})

	t.Run("arrays", func(t *testing.T) {
		out, status := runSource(t, `
			import "stdio";
			import "stdconv";
			var xs = []Number{1, 2, 3};
			xs.push(4);
			println(ntos(xs.length()));
		`)
		require.Equal(t, 0, status)
		assert.Equal(t, "4\n", out)
	})

	t.Run("for loop", func(t *testing.T) {
		out, status := runSource(t, `
			import "stdio";
			import "stdconv";
			for (var i: Number = 0; i < 3; i = i + 1) {
				println(ntos(i));
			}
		`)
		require.Equal(t, 0, status)
		assert.Equal(t, "0\n1\n2\n", out)
	})
}

// TestREPL feeds several lines through Stdin with no input file, checking
// that declarations from an earlier line (here, a function) stay visible
// to a later one in the same VM — the scenario the symbol table's
// FloorChild/Commit bookkeeping exists for.
func TestREPL(t *testing.T) {
	oldStdin, oldStdout := Stdin, Stdout
	defer func() { Stdin, Stdout = oldStdin, oldStdout }()

	Stdin = strings.NewReader(strings.Join([]string{
		`import "stdio";`,
		`import "stdconv";`,
		`fn double(n: Number): Number { return n * 2; }`,
		`println(ntos(double(21)));`,
		``,
	}, "\n"))
	var buf bytes.Buffer
	Stdout = &buf

	status := Handler([]string{}, map[string]string{})
	assert.Equal(t, 0, status)
	assert.Equal(t, "42\n", buf.String())
}

func TestHandlerTypecheckOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.qz")
	require.NoError(t, os.WriteFile(path, []byte(`var a: Number = 1 + 1;`), 0o644))

	status := Handler([]string{path}, map[string]string{"typecheck-only": "true"})
	assert.Equal(t, 0, status)
}

func TestHandlerTypeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.qz")
	require.NoError(t, os.WriteFile(path, []byte(`var a: Number = "not a number";`), 0o644))

	status := Handler([]string{path}, map[string]string{})
	assert.Equal(t, -1, status)
}
