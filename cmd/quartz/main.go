package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

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

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Quartz Compiler parses, type-checks, compiles and runs a Quartz source
file (plus anything it transitively imports) on qcc's stack VM. Invoked with
no input file, it starts a line-by-line REPL against the same VM instead.
`, "\n", " ")

var QuartzCompiler = cli.New(Description).
	WithArg(cli.NewArg("input", "The entrypoint (.qz) source file to run; omit to start a REPL").
		AsOptional().WithType(cli.TypeString)).
	WithOption(cli.NewOption("typecheck-only", "Stops after the typecheck pass, without running the program").
		WithType(cli.TypeBool)).
	WithAction(Handler)

// Stdout is where a running program's `print`/`println` calls write;
// os.Stdout by default, swapped out by tests to capture a program's output
// without shelling out.
var Stdout io.Writer = os.Stdout

// Stdin feeds the REPL's line reader; os.Stdin by default.
var Stdin io.Reader = os.Stdin

func Handler(args []string, options map[string]string) int {
	_, typecheckOnly := options["typecheck-only"]

	if len(args) < 1 {
		return runREPL(typecheckOnly)
	}
	return runFile(args[0], typecheckOnly)
}

// runFile reads and runs entrypoint in a fresh pool/symbol table/VM, with a
// FileProvider rooted at its directory so sibling imports resolve relative
// to it.
func runFile(entrypoint string, typecheckOnly bool) int {
	source, err := os.ReadFile(entrypoint)
	if err != nil {
		fmt.Printf("ERROR: Unable to open input file: %s\n", err)
		return -1
	}

	pool := types.NewPool()
	symbols := symbol.NewTable()
	prov := provider.NewFileProvider(filepath.Dir(entrypoint))
	vm := newVM(pool)

	file := &token.File{Path: entrypoint, Text: string(source)}
	return pipeline(pool, symbols, vm, file, prov, typecheckOnly)
}

// runREPL reads one line at a time from Stdin and compiles+runs each in the
// same pool/symbol table/VM, so declarations from earlier lines (globals,
// classes, functions) stay visible to later ones.
func runREPL(typecheckOnly bool) int {
	pool := types.NewPool()
	symbols := symbol.NewTable()
	prov := provider.NewFileProvider(".")
	vm := newVM(pool)

	scanner := bufio.NewScanner(Stdin)
	status := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		file := &token.File{Path: "<repl>", Text: line}
		status = pipeline(pool, symbols, vm, file, prov, typecheckOnly)
		if status == 0 {
			symbols.Commit()
		}
	}
	return status
}

func newVM(pool *types.Pool) *runtime.VM {
	vm := runtime.New(pool)
	vm.Stdout = func(s string) { fmt.Fprint(Stdout, s) }
	stdlib.Install(vm)
	return vm
}

// pipeline runs one translation unit (a file or a REPL line) through parse,
// check, compile and (unless typecheckOnly) run, against the given shared
// pool/symbols/vm.
func pipeline(pool *types.Pool, symbols *symbol.Table, vm *runtime.VM, file *token.File, prov provider.SourceProvider, typecheckOnly bool) int {
	p := parser.New(file, pool, symbols, prov)
	stmts, diags := p.Parse()
	if p.HadError() {
		for _, d := range diags {
			fmt.Println(d.Error())
		}
		return -1
	}

	chk := checker.New(pool, symbols)
	chk.Check(stmts)
	if chk.HadError() {
		for _, d := range chk.Diagnostics() {
			fmt.Println(d.Error())
		}
		return -1
	}

	if typecheckOnly {
		return 0
	}

	emit := compiler.New(pool, symbols)
	chunk := emit.Compile(stmts)

	entry := &value.Function{Name: "<script>", Chunk: chunk}
	if err := vm.Run(entry); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return -1
	}
	return 0
}

func main() { os.Exit(QuartzCompiler.Run(os.Args, os.Stdout)) }
