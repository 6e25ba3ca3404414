package symbol_test

import (
	"testing"

	"quartz.dev/qcc/pkg/symbol"
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
)

func tok(name string) token.Token {
	return token.Token{Kind: token.Identifier, Lexeme: name, Line: 1, Column: 1}
}

func TestInsertAndLookupInSameScope(t *testing.T) {
	table := symbol.NewTable()
	sym := symbol.NewVar(tok("x"), types.NumberType())
	if err := table.Insert(sym); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, ok := table.Lookup("x")
	if !ok || got != sym {
		t.Fatalf("expected to find x in its own scope")
	}
}

func TestDuplicateInsertFails(t *testing.T) {
	table := symbol.NewTable()
	table.Insert(symbol.NewVar(tok("x"), types.NumberType()))
	if err := table.Insert(symbol.NewVar(tok("x"), types.NumberType())); err == nil {
		t.Fatalf("expected duplicate insert to fail")
	}
}

func TestLookupWalksUpParentScopes(t *testing.T) {
	table := symbol.NewTable()
	outer := symbol.NewVar(tok("outer"), types.NumberType())
	table.Insert(outer)

	table.CreateScope()
	got, ok := table.Lookup("outer")
	if !ok || got != outer {
		t.Fatalf("expected nested scope to see outer variable")
	}
}

func TestLookupSkipsClassScopeButLookupWithClassDoesNot(t *testing.T) {
	table := symbol.NewTable()
	table.CreateClassScope()
	prop := symbol.NewVar(tok("field"), types.NumberType())
	table.Insert(prop)

	table.CreateScope() // method body scope, nested inside the class scope

	if _, ok := table.Lookup("field"); ok {
		t.Fatalf("Lookup should skip class scopes")
	}
	if got, ok := table.LookupWithClass("field"); !ok || got != prop {
		t.Fatalf("LookupWithClass should see class-scope members")
	}
}

func TestLookupLevelsBoundsDepth(t *testing.T) {
	table := symbol.NewTable()
	table.Insert(symbol.NewVar(tok("g"), types.NumberType()))
	table.CreateScope()
	table.CreateScope()

	if _, ok := table.LookupLevels("g", 1); ok {
		t.Fatalf("g is 2 levels up, LookupLevels(1) must not find it")
	}
	if _, ok := table.LookupLevels("g", 2); !ok {
		t.Fatalf("LookupLevels(2) should find g")
	}
}

func TestResetAndStartScopeReplaysChildOrder(t *testing.T) {
	table := symbol.NewTable()
	table.CreateScope()
	first := symbol.NewVar(tok("a"), types.NumberType())
	table.Insert(first)
	table.EndScope()

	table.CreateScope()
	second := symbol.NewVar(tok("b"), types.NumberType())
	table.Insert(second)
	table.EndScope()

	table.ResetScopes()
	table.StartScope()
	if _, ok := table.Lookup("a"); !ok {
		t.Fatalf("first StartScope should re-enter the scope declaring 'a'")
	}
	table.EndScope()
	table.StartScope()
	if _, ok := table.Lookup("b"); !ok {
		t.Fatalf("second StartScope should re-enter the scope declaring 'b'")
	}
}

func TestUpvalueRecordsBothDirections(t *testing.T) {
	table := symbol.NewTable()
	fn := symbol.NewFunction(tok("inner"), nil)
	v := symbol.NewVar(tok("captured"), types.NumberType())

	table.Upvalue(fn, v)

	if !fn.Upvalues.Has(v) {
		t.Fatalf("function symbol should record the captured variable")
	}
	if !v.UpvalueFnRefs.Has(fn) {
		t.Fatalf("variable symbol should record the capturing function")
	}
}
