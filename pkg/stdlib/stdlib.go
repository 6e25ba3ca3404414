// Package stdlib implements Quartz's native registry: the Go
// callables backing the `stdio`, `stdtime`, and `stdconv` modules.
// pkg/provider's FunctionSignature lists already declared these as global
// symbols during parsing (pkg/parser.importDeclaration); Install supplies
// the other half, the actual behavior, wired onto a VM's globals exactly
// once before Run starts.
//
// Each function here is grounded directly on its qcc/stdlib/qstd*.c
// counterpart, ported from the (argc, argv) native convention to a Go
// closure over no receiver — the same porting pkg/runtime/intrinsics.go
// applies to the Array/String methods, which close over a receiver
// instead. The Array/String intrinsic classes themselves live in
// pkg/runtime, not here: their methods dispatch off the receiver's Go Obj
// kind at property-lookup time rather than a name a program ever imports.
package stdlib

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"quartz.dev/qcc/pkg/runtime"
	"quartz.dev/qcc/pkg/types"
	"quartz.dev/qcc/pkg/value"
)

// Install defines every stdlib native function as a VM global. Call once
// per VM, before Run — cmd/quartz does this right after constructing the
// VM and before feeding it the compiled entrypoint function.
func Install(vm *runtime.VM) {
	installStdio(vm)
	installStdtime(vm)
	installStdconv(vm)
}

func define(vm *runtime.VM, name string, arity int, ret *types.Type, fn value.NativeFn) {
	vm.DefineGlobal(name, value.FromObj(&value.Native{Name: name, Arity: arity, Fn: fn, Return: ret}, nil))
}

// asString reads the backing bytes of a String argument; native functions
// trust the checker to have already enforced the declared parameter type.
func asString(v value.Value) string {
	if s, ok := v.Obj.(*value.String); ok {
		return s.Bytes
	}
	return v.String()
}

// ----------------------------------------------------------------------------
// stdio (qcc/stdlib/qstdio.c)

// stdinReader is shared across readstr/stdin calls so a program alternating
// between the two keeps its place in the input stream.
var stdinReader = bufio.NewReader(os.Stdin)

func installStdio(vm *runtime.VM) {
	define(vm, "println", 1, types.VoidType(), func(args []value.Value) (value.Value, error) {
		vm.Stdout(asString(args[0]) + "\n")
		return value.Nil(types.VoidType()), nil
	})
	define(vm, "print", 1, types.VoidType(), func(args []value.Value) (value.Value, error) {
		vm.Stdout(asString(args[0]))
		return value.Nil(types.VoidType()), nil
	})
	// readstr reads one line, stripping the trailing newline; qstdio.c also
	// gates this on stdin being a tty, which would need a platform-specific
	// isatty call with no analogue in the corpus's dependency set — dropped
	// rather than faked, since piping a line in on non-interactive stdin
	// (the common test-harness case) should still work, not silently return
	// nil.
	define(vm, "readstr", 0, types.StringType(), func(args []value.Value) (value.Value, error) {
		line, err := stdinReader.ReadString('\n')
		if err != nil && err != io.EOF {
			return value.Value{}, err
		}
		line = strings.TrimRight(line, "\r\n")
		return value.FromObj(vm.Intern(line), types.StringType()), nil
	})
	define(vm, "stdin", 0, types.StringType(), func(args []value.Value) (value.Value, error) {
		rest, err := io.ReadAll(stdinReader)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromObj(vm.Intern(string(rest)), types.StringType()), nil
	})
}

// ----------------------------------------------------------------------------
// stdtime (qcc/stdlib/qstdtime.c)

func installStdtime(vm *runtime.VM) {
	// qstdtime_time returns clock()/CLOCKS_PER_SEC, CPU seconds since
	// process start; Go's standard library has no portable equivalent
	// without cgo. Wall-clock seconds since the Unix epoch is what a
	// script calling a function named `time` actually wants, so that is
	// what this reports instead.
	define(vm, "time", 0, types.NumberType(), func(args []value.Value) (value.Value, error) {
		return value.Number(float64(time.Now().UnixNano())/1e9, types.NumberType()), nil
	})
}

// ----------------------------------------------------------------------------
// stdconv (qcc/stdlib/qstdconv.c)

func installStdconv(vm *runtime.VM) {
	define(vm, "ntos", 1, types.StringType(), func(args []value.Value) (value.Value, error) {
		s := fmt.Sprintf("%g", args[0].Number)
		return value.FromObj(vm.Intern(s), types.StringType()), nil
	})
	define(vm, "btos", 1, types.StringType(), func(args []value.Value) (value.Value, error) {
		s := "false"
		if args[0].Bool {
			s = "true"
		}
		return value.FromObj(vm.Intern(s), types.StringType()), nil
	})
	define(vm, "ston", 1, types.NumberType(), func(args []value.Value) (value.Value, error) {
		n, _ := strconv.ParseFloat(asString(args[0]), 64)
		return value.Number(n, types.NumberType()), nil
	})
	// typeof prints the runtime type of its argument and returns nothing,
	// exactly like qstdconv_typeof's type_fprint(stdout, ...) call.
	define(vm, "typeof", 1, types.VoidType(), func(args []value.Value) (value.Value, error) {
		vm.Stdout(args[0].Type.String() + "\n")
		return value.Nil(types.VoidType()), nil
	})
}
