// Package provider implements Quartz's external collaborators: the
// SourceProvider that resolves an `import "path";` statement to either a
// native module's function signatures or another file's source text. The
// native functions' callables live in pkg/stdlib.
//
// The filesystem walk in FileProvider is grounded on
// cmd/jack_compiler/main.go's filepath.Walk-based translation-unit
// discovery, generalized from "every .jack file under a directory" to
// "resolve one import path against a root directory".
package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"quartz.dev/qcc/pkg/types"
)

// Source is what a SourceProvider hands back for one import path: either
// the name of a native module (its functions described by Functions) or
// the raw text of another Quartz
// source file to be parsed and merged.
type Source struct {
	NativeModule string
	Functions    []FunctionSignature
	FileText     string
	FilePath     string
}

func (s Source) IsNative() bool { return s.NativeModule != "" }

// FunctionSignature is the declarative half of a native registry entry
// (name, arity, type signature, and a callable): enough for
// pkg/parser to declare a global symbol for the function. The callable
// half is pkg/stdlib's job, wired onto VM globals at bootstrap instead of
// carried here — that keeps this package free of a pkg/runtime import.
type FunctionSignature struct {
	Name   string
	Params []*types.Type
	Return *types.Type
}

func stdioSignatures() []FunctionSignature {
	return []FunctionSignature{
		{Name: "println", Params: []*types.Type{types.StringType()}, Return: types.VoidType()},
		{Name: "print", Params: []*types.Type{types.StringType()}, Return: types.VoidType()},
		{Name: "readstr", Return: types.StringType()},
		{Name: "stdin", Return: types.StringType()},
	}
}

func stdtimeSignatures() []FunctionSignature {
	return []FunctionSignature{
		{Name: "time", Return: types.NumberType()},
	}
}

// stdconvSignatures skips qcc/stdlib/qstdconv.c's __t_sum: a debug probe
// never registered under a name Quartz source can call, so there is
// nothing to port it to.
func stdconvSignatures() []FunctionSignature {
	return []FunctionSignature{
		{Name: "ntos", Params: []*types.Type{types.NumberType()}, Return: types.StringType()},
		{Name: "btos", Params: []*types.Type{types.BoolType()}, Return: types.StringType()},
		{Name: "ston", Params: []*types.Type{types.StringType()}, Return: types.NumberType()},
		{Name: "typeof", Params: []*types.Type{types.AnyType()}, Return: types.VoidType()},
	}
}

// nativeSignatures is the fixed set of module names the stdlib registers
// under and the functions each one exposes; anything else is
// resolved against the filesystem.
var nativeSignatures = map[string]func() []FunctionSignature{
	"stdio":   stdioSignatures,
	"stdtime": stdtimeSignatures,
	"stdconv": stdconvSignatures,
}

// SourceProvider resolves import paths. Implementations are responsible
// for their own already-loaded bookkeeping so re-importing the same path
// from two different files is a no-op the second time (import cycle
// breaking).
type SourceProvider interface {
	Resolve(importPath string) (Source, error)
	AlreadyLoaded(importPath string) bool
	MarkLoaded(importPath string)
}

// FileProvider resolves non-native imports relative to a root directory on
// disk, and tracks which paths have already been loaded so cyclic or
// diamond imports only parse their source once.
type FileProvider struct {
	Root   string
	loaded map[string]bool
}

func NewFileProvider(root string) *FileProvider {
	return &FileProvider{Root: root, loaded: map[string]bool{}}
}

func (p *FileProvider) Resolve(importPath string) (Source, error) {
	if sigs, ok := nativeSignatures[importPath]; ok {
		return Source{NativeModule: importPath, Functions: sigs()}, nil
	}

	candidate := importPath
	if !strings.HasSuffix(candidate, ".qz") {
		candidate += ".qz"
	}
	full := filepath.Join(p.Root, candidate)

	bytes, err := os.ReadFile(full)
	if err != nil {
		return Source{}, fmt.Errorf("cannot resolve import %q: %w", importPath, err)
	}
	return Source{FileText: string(bytes), FilePath: full}, nil
}

func (p *FileProvider) AlreadyLoaded(importPath string) bool { return p.loaded[importPath] }

func (p *FileProvider) MarkLoaded(importPath string) { p.loaded[importPath] = true }

// DiscoverSources mirrors cmd/jack_compiler/main.go's filepath.Walk idiom:
// it collects every *.qz file under root so a directory can be compiled as
// a whole program's set of translation units.
func DiscoverSources(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".qz" {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}
