// Package lexer turns Quartz source text into a stream of tokens.
//
// The lexer is finite and non-restartable: once it has produced an End or
// Error token, every later call produces End. It
// never looks ahead more than one character, mirroring qcc/lexer.c's
// `Lexer{start, current, line}` design.
package lexer

import (
	"unicode"

	"quartz.dev/qcc/pkg/token"
)

// Lexer scans a single source buffer. It borrows the buffer for its whole
// lifetime — the caller must keep `file.Text` alive
// at least as long as any Token produced still needs its Lexeme slice.
type Lexer struct {
	file    *token.File
	src     string
	start   int
	current int
	line    int
	column  int
	// startColumn is the column of `start`, captured before scanning the
	// token so two-char lookahead doesn't shift it.
	startColumn int
	done        bool
	lastKind    token.Kind
}

func New(file *token.File) *Lexer {
	return &Lexer{file: file, src: file.Text, line: 1, column: 1}
}

// NextToken returns the next token in the stream. Once End or Error has
// been produced, every subsequent call returns End.
func (l *Lexer) NextToken() token.Token {
	if l.done {
		return l.makeAt(token.End, l.start, l.start)
	}

	l.skipWhitespaceAndComments()
	l.start = l.current
	l.startColumn = l.column

	if l.atEnd() {
		l.done = true
		l.lastKind = token.End
		return l.make(token.End)
	}

	c := l.advance()

	if isAlpha(c) {
		return l.identifier()
	}
	if isDigit(c) {
		return l.number()
	}
	if c == '\'' || c == '"' {
		return l.stringLiteral(c)
	}

	switch c {
	case '+':
		return l.make(token.Plus)
	case '-':
		return l.make(token.Minus)
	case '*':
		return l.make(token.Star)
	case '/':
		return l.make(token.Slash)
	case '%':
		return l.make(token.Percent)
	case '(':
		return l.make(token.LeftParen)
	case ')':
		return l.make(token.RightParen)
	case '[':
		return l.make(token.LeftBracket)
	case ']':
		return l.make(token.RightBracket)
	case '{':
		return l.make(token.LeftBrace)
	case '}':
		return l.make(token.RightBrace)
	case '.':
		return l.make(token.Dot)
	case ';':
		return l.make(token.Semicolon)
	case ':':
		return l.make(token.Colon)
	case ',':
		return l.make(token.Comma)
	case '!':
		if l.matchNext('=') {
			return l.make(token.BangEqual)
		}
		return l.make(token.Bang)
	case '=':
		if l.matchNext('=') {
			return l.make(token.EqualEqual)
		}
		return l.make(token.Equal)
	case '<':
		if l.matchNext('=') {
			return l.make(token.LowerEqual)
		}
		return l.make(token.Lower)
	case '>':
		if l.matchNext('=') {
			return l.make(token.GreaterEqual)
		}
		return l.make(token.Greater)
	case '&':
		if l.matchNext('&') {
			return l.make(token.AmpAmp)
		}
		return l.errorToken("unexpected character '&'")
	case '|':
		if l.matchNext('|') {
			return l.make(token.PipePipe)
		}
		return l.errorToken("unexpected character '|'")
	}

	return l.errorToken("unexpected character")
}

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		if l.atEnd() {
			return
		}
		switch l.peek() {
		case ' ', '\t', '\r':
			l.advance()
		case '\n':
			l.advance()
			l.line++
			l.column = 1
		case '/':
			if l.peekNext() == '/' {
				for !l.atEnd() && l.peek() != '\n' {
					l.advance()
				}
				continue
			}
			return
		default:
			return
		}
	}
}

func (l *Lexer) identifier() token.Token {
	for !l.atEnd() && isAlphaNumeric(l.peek()) {
		l.advance()
	}
	lexeme := l.src[l.start:l.current]
	if kind, isKeyword := token.Keywords[lexeme]; isKeyword {
		return l.make(kind)
	}
	return l.make(token.Identifier)
}

func (l *Lexer) number() token.Token {
	for !l.atEnd() && isDigit(l.peek()) {
		l.advance()
	}
	if !l.atEnd() && l.peek() == '.' {
		if !isDigit(l.peekNext()) {
			// A trailing dot with no following digit is an error.
			l.advance()
			return l.errorToken("expected at least one digit after '.' in number literal")
		}
		l.advance() // consume '.'
		for !l.atEnd() && isDigit(l.peek()) {
			l.advance()
		}
	}
	return l.make(token.Number)
}

func (l *Lexer) stringLiteral(quote byte) token.Token {
	for !l.atEnd() && l.peek() != quote {
		if l.peek() == '\n' {
			l.line++
			l.column = 0
		}
		l.advance()
	}
	if l.atEnd() {
		return l.errorToken("unterminated string literal")
	}
	l.advance() // consume closing quote
	// The lexeme is the payload between the quotes, not the quotes themselves.
	return l.makeAt(token.String, l.start+1, l.current-1)
}

// --- scanning primitives -----------------------------------------------

func (l *Lexer) atEnd() bool { return l.current >= len(l.src) }

func (l *Lexer) advance() byte {
	c := l.src[l.current]
	l.current++
	l.column++
	return c
}

func (l *Lexer) peek() byte {
	if l.atEnd() {
		return 0
	}
	return l.src[l.current]
}

func (l *Lexer) peekNext() byte {
	if l.current+1 >= len(l.src) {
		return 0
	}
	return l.src[l.current+1]
}

func (l *Lexer) matchNext(expected byte) bool {
	if l.atEnd() || l.src[l.current] != expected {
		return false
	}
	l.current++
	l.column++
	return true
}

func (l *Lexer) make(kind token.Kind) token.Token {
	return l.makeAt(kind, l.start, l.current)
}

func (l *Lexer) makeAt(kind token.Kind, start, end int) token.Token {
	return token.Token{
		Kind:   kind,
		Lexeme: l.src[start:end],
		Line:   l.line,
		Column: l.startColumn,
		File:   l.file,
	}
}

func (l *Lexer) errorToken(msg string) token.Token {
	l.done = true
	l.lastKind = token.Error
	return token.Token{
		Kind:   token.Error,
		Lexeme: msg,
		Line:   l.line,
		Column: l.startColumn,
		File:   l.file,
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isAlpha(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isAlphaNumeric(c byte) bool { return isAlpha(c) || isDigit(c) }
