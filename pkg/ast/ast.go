// Package ast defines the Quartz abstract syntax tree produced by pkg/parser
// and consumed by pkg/checker and pkg/compiler.
//
// Section layout and comment density follow pkg/jack/jack.go: a banner
// comment per node family, one doc comment per node type explaining what it
// captures rather than restating its field names. Nodes use a
// tagged-interface style (an empty marker interface, visitors type switch on
// the concrete pointer type) exactly like jack.Statement / jack.Expression,
// rather than a function-pointer vtable per node.
package ast

import (
	"quartz.dev/qcc/pkg/token"
	"quartz.dev/qcc/pkg/types"
)

// ----------------------------------------------------------------------------
// Shared node metadata

// Meta is embedded in every expression node. The checker fills in
// ResolvedType as it annotates the tree; the emitter reads it back when
// compiling. Tok anchors diagnostics to a source location.
type Meta struct {
	ResolvedType *types.Type
	Tok          token.Token
}

// ----------------------------------------------------------------------------
// Statements

// Stmt is the marker interface implemented by every statement node.
type Stmt interface{ stmtNode() }

// ExprStmt evaluates an expression purely for its side effects, discarding
// the result.
type ExprStmt struct {
	Expr Expr
}

// VarStmt declares a new variable, with an optional type annotation and an
// optional initializer; at least one of the two must be present.
type VarStmt struct {
	Name        token.Token
	Annotated   *types.Type // nil if no ": Type" was written
	Initializer Expr        // nil if no "= expr" was written
}

// FunctionStmt declares a named function or method. IsMethod is set when
// this function was parsed inside a class scope; Params then starts with
// the synthetic self parameter.
type FunctionStmt struct {
	Name       token.Token
	Params     []Param
	ReturnType *types.Type
	Body       []Stmt
	IsMethod   bool
}

// Param is a single (name, type) function parameter.
type Param struct {
	Name token.Token
	Type *types.Type
}

// ListStmt is a flat sequence of statements produced by merging a reparsed
// import's top level declarations into the current AST.
type ListStmt struct {
	Stmts []Stmt
}

// BlockStmt is a lexically scoped sequence of statements, `{ ... }`.
type BlockStmt struct {
	Stmts []Stmt
}

// ReturnStmt optionally carries the expression being returned; a nil Expr
// means a bare `return;`.
type ReturnStmt struct {
	Tok  token.Token
	Expr Expr
}

// IfStmt forks control flow on Condition; Else is nil when there was no
// else clause.
type IfStmt struct {
	Condition Expr
	Then      Stmt
	Else      Stmt
}

// ForStmt is a C-style three-clause loop; any of Init/Condition/Post may be
// nil.
type ForStmt struct {
	Init      Stmt
	Condition Expr
	Post      Stmt
	Body      Stmt
}

// WhileStmt repeats Body while Condition holds.
type WhileStmt struct {
	Condition Expr
	Body      Stmt
}

// LoopGotoKind distinguishes break from continue.
type LoopGotoKind int

const (
	Break LoopGotoKind = iota
	Continue
)

// LoopGotoStmt is a `break;` or `continue;`; the parser rejects it outside
// a loop.
type LoopGotoStmt struct {
	Tok  token.Token
	Kind LoopGotoKind
}

// TypealiasStmt introduces `typedef Name = Type;`.
type TypealiasStmt struct {
	Name token.Token
	Def  *types.Type
}

// ImportStmt records `import "path";`; NativeModule and ImportedStmts hold
// what the source provider yielded, and AlreadyLoaded whether this import
// path had already been loaded (cycle breaking for diamond/repeated
// imports).
type ImportStmt struct {
	Path           token.Token
	AlreadyLoaded  bool
	NativeModule   string // non-empty if the provider returned a native module
	ImportedStmts  []Stmt // the reparsed file's statements, or one NativeFunctionStmt per native function
}

// NativeFunctionStmt registers one function from a native module as a
// symbol with Native=true.
type NativeFunctionStmt struct {
	Name   token.Token
	Params []Param
	Return *types.Type
}

// ClassStmt declares `class Name { ... }`: properties (no initializers
// allowed at declaration) and methods, each visibility-tagged.
type ClassStmt struct {
	Name       token.Token
	Properties []ClassProperty
	Methods    []ClassMethod
}

// ClassProperty is one `pub? var name: Type;` inside a class body.
type ClassProperty struct {
	Name    token.Token
	Type    *types.Type
	Public  bool
}

// ClassMethod is one `pub? fn name(...): Ret { ... }` inside a class body.
type ClassMethod struct {
	Public bool
	Fn     *FunctionStmt
}

// NativeClassStmt declares a class whose methods are backed by native code
// (the intrinsic Array/String classes).
type NativeClassStmt struct {
	Name    token.Token
	Methods []NativeFunctionStmt
}

func (*ExprStmt) stmtNode()           {}
func (*VarStmt) stmtNode()            {}
func (*FunctionStmt) stmtNode()       {}
func (*ListStmt) stmtNode()           {}
func (*BlockStmt) stmtNode()          {}
func (*ReturnStmt) stmtNode()         {}
func (*IfStmt) stmtNode()             {}
func (*ForStmt) stmtNode()            {}
func (*WhileStmt) stmtNode()          {}
func (*LoopGotoStmt) stmtNode()       {}
func (*TypealiasStmt) stmtNode()      {}
func (*ImportStmt) stmtNode()         {}
func (*NativeFunctionStmt) stmtNode() {}
func (*ClassStmt) stmtNode()          {}
func (*NativeClassStmt) stmtNode()    {}

// ----------------------------------------------------------------------------
// Expressions

// Expr is the marker interface implemented by every expression node.
type Expr interface{ exprNode() *Meta }

// LiteralExpr is a number, string, bool, or nil constant.
type LiteralExpr struct {
	Meta
	Value string // raw lexeme; pkg/compiler parses it into the constant-pool Value
}

// IdentifierExpr reads a variable by name; the checker/compiler resolve it
// against the symbol table (local, global, upvalue, or class member).
type IdentifierExpr struct {
	Meta
	Name string
}

// AssignmentExpr is `name = value` (only a plain identifier target; field
// writes use PropAssignExpr, and the parser rejects an index expression such
// as `arr[i]` as an assignment target).
type AssignmentExpr struct {
	Meta
	Name  string
	Value Expr
}

// UnaryExpr is `!expr`, `-expr`, or `+expr`.
type UnaryExpr struct {
	Meta
	Op   token.Kind
	Expr Expr
}

// BinaryExpr is any two-operand arithmetic/comparison/logical operator.
type BinaryExpr struct {
	Meta
	Op    token.Kind
	Left  Expr
	Right Expr
}

// CallExpr invokes Callee (itself an expression, usually an Identifier or a
// Prop) with Args.
type CallExpr struct {
	Meta
	Callee Expr
	Args   []Expr
}

// NewExpr is `new ClassName(args...)`.
type NewExpr struct {
	Meta
	ClassName string
	Args      []Expr
}

// PropExpr is `obj.prop` read access.
type PropExpr struct {
	Meta
	Receiver Expr
	Prop     string
}

// PropAssignExpr is `obj.prop = value` write access.
type PropAssignExpr struct {
	Meta
	Receiver Expr
	Prop     string
	Value    Expr
}

// ArrayExpr is an array literal, `[]T{e1, e2, ...}`, or an index expression
// `arr[idx]` depending on whether Index is nil.
type ArrayExpr struct {
	Meta
	ElementType *types.Type
	Elements    []Expr // literal elements; empty for an index expression
	Array       Expr   // non-nil for an index expression
	Index       Expr   // non-nil for an index expression
}

// CastExpr is `cast<Type>(expr)`.
type CastExpr struct {
	Meta
	Target *types.Type
	Inner  Expr
}

func (e *LiteralExpr) exprNode() *Meta     { return &e.Meta }
func (e *IdentifierExpr) exprNode() *Meta  { return &e.Meta }
func (e *AssignmentExpr) exprNode() *Meta  { return &e.Meta }
func (e *UnaryExpr) exprNode() *Meta       { return &e.Meta }
func (e *BinaryExpr) exprNode() *Meta      { return &e.Meta }
func (e *CallExpr) exprNode() *Meta        { return &e.Meta }
func (e *NewExpr) exprNode() *Meta         { return &e.Meta }
func (e *PropExpr) exprNode() *Meta        { return &e.Meta }
func (e *PropAssignExpr) exprNode() *Meta  { return &e.Meta }
func (e *ArrayExpr) exprNode() *Meta       { return &e.Meta }
func (e *CastExpr) exprNode() *Meta        { return &e.Meta }
