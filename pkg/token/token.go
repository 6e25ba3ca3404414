// Package token defines the lexical tokens produced by pkg/lexer and
// consumed by pkg/parser.
package token

import "fmt"

// Kind enumerates every token the lexer can produce. Ordering mirrors
// qcc/token.h: special tokens, single-char punctuators, two-char compounds,
// literals/keywords, then the built-in type names used in annotations and
// cast<T>(...) expressions.
type Kind int

const (
	End Kind = iota
	Error

	// Single character tokens
	Plus
	Minus
	Star
	Slash
	Percent
	LeftParen
	RightParen
	LeftBracket
	RightBracket
	LeftBrace
	RightBrace
	Dot
	Bang
	Equal
	Lower
	Greater
	Semicolon
	Colon
	Comma

	// Two character tokens
	EqualEqual
	BangEqual
	LowerEqual
	GreaterEqual
	AmpAmp
	PipePipe

	// Literals
	Number
	String
	Identifier

	// Keywords
	Return
	Fn
	Var
	True
	False
	Nil
	Break
	Continue
	If
	Else
	For
	While
	New
	Typedef
	Import
	Class
	Pub
	Self
	Cast

	// Built-in type names
	TypeAny
	TypeNumber
	TypeString
	TypeBool
	TypeVoid
)

var names = map[Kind]string{
	End: "EOF", Error: "ERROR",
	Plus: "+", Minus: "-", Star: "*", Slash: "/", Percent: "%",
	LeftParen: "(", RightParen: ")", LeftBracket: "[", RightBracket: "]",
	LeftBrace: "{", RightBrace: "}", Dot: ".", Bang: "!", Equal: "=",
	Lower: "<", Greater: ">", Semicolon: ";", Colon: ":", Comma: ",",
	EqualEqual: "==", BangEqual: "!=", LowerEqual: "<=", GreaterEqual: ">=",
	AmpAmp: "&&", PipePipe: "||",
	Number: "NUMBER", String: "STRING", Identifier: "IDENTIFIER",
	Return: "return", Fn: "fn", Var: "var", True: "true", False: "false",
	Nil: "nil", Break: "break", Continue: "continue", If: "if", Else: "else",
	For: "for", While: "while", New: "new", Typedef: "typedef",
	Import: "import", Class: "class", Pub: "pub", Self: "self", Cast: "cast",
	TypeAny: "Any", TypeNumber: "Number", TypeString: "String",
	TypeVoid: "Void", TypeBool: "Bool",
}

func (k Kind) String() string {
	if name, ok := names[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Keywords maps every reserved word to its Kind; the lexer always performs a
// full lookup here (never a partial switch) to avoid the qcc/lexer.c
// keyword-prefix fallthrough hazard (e.g. "var" vs "variance").
var Keywords = map[string]Kind{
	"return": Return, "fn": Fn, "var": Var, "true": True, "false": False,
	"nil": Nil, "break": Break, "continue": Continue, "if": If, "else": Else,
	"for": For, "while": While, "new": New, "typedef": Typedef,
	"import": Import, "class": Class, "pub": Pub, "self": Self, "cast": Cast,
	"Any": TypeAny, "Number": TypeNumber, "String": TypeString,
	"Bool": TypeBool, "Void": TypeVoid,
}

// File identifies the source file a Token was lexed from, threaded through
// so the parser can report diagnostics and the import machinery can detect
// re-imports of the same path.
type File struct {
	Path string
	Text string
}

// Token is the smallest unit a lexer hands the parser: a kind, the exact
// source slice it was lexed from, its 1-based line/column, and the file it
// came from.
type Token struct {
	Kind   Kind
	Lexeme string
	Line   int
	Column int
	File   *File
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q) [%s:%d:%d]", t.Kind, t.Lexeme, t.fileName(), t.Line, t.Column)
}

func (t Token) fileName() string {
	if t.File == nil {
		return "<input>"
	}
	return t.File.Path
}
