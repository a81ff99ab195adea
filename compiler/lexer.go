package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for script source
// ---------------------------------------------------------------------------

const eof = -1

// Lexer tokenizes script source code.
type Lexer struct {
	input   string
	pos     int  // offset of ch
	readPos int  // offset after ch
	ch      rune // current character, eof at end of input
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input, line: 1}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.col++
	if l.readPos >= len(l.input) {
		l.ch = eof
		l.pos = len(l.input)
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the character after ch without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the position of ch.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	space := l.skipWhitespaceAndComments()
	pos := l.position()
	tok := l.scan()
	tok.Pos = pos
	tok.SpaceBefore = space || pos.Offset == 0
	return tok
}

func (l *Lexer) simple(t TokenType, lit string) Token {
	for range utf8.RuneCountInString(lit) {
		l.readChar()
	}
	return Token{Type: t, Literal: lit}
}

func (l *Lexer) scan() Token {
	switch ch := l.ch; {
	case ch == eof:
		return Token{Type: TokenEOF}
	case ch == '\n':
		return l.simple(TokenNewline, "\n")
	case ch == '(':
		return l.simple(TokenLParen, "(")
	case ch == ')':
		return l.simple(TokenRParen, ")")
	case ch == '[':
		return l.simple(TokenLBracket, "[")
	case ch == ']':
		return l.simple(TokenRBracket, "]")
	case ch == ',':
		return l.simple(TokenComma, ",")
	case ch == '.':
		return l.simple(TokenDot, ".")
	case ch == ';':
		return l.simple(TokenSemicolon, ";")
	case ch == '+':
		return l.simple(TokenPlus, "+")
	case ch == '-':
		return l.simple(TokenMinus, "-")
	case ch == '*':
		return l.simple(TokenStar, "*")
	case ch == '/':
		return l.simple(TokenSlash, "/")
	case ch == '%':
		return l.simple(TokenPercent, "%")
	case ch == '=':
		if l.peekChar() == '=' {
			return l.simple(TokenEQ, "==")
		}
		return l.simple(TokenAssign, "=")
	case ch == '!':
		if l.peekChar() == '=' {
			return l.simple(TokenNEQ, "!=")
		}
		return l.simple(TokenBang, "!")
	case ch == '<':
		if l.peekChar() == '=' {
			return l.simple(TokenLE, "<=")
		}
		return l.simple(TokenLT, "<")
	case ch == '>':
		if l.peekChar() == '=' {
			return l.simple(TokenGE, ">=")
		}
		return l.simple(TokenGT, ">")
	case ch == '&' && l.peekChar() == '&':
		return l.simple(TokenAndAnd, "&&")
	case ch == '|' && l.peekChar() == '|':
		return l.simple(TokenOrOr, "||")
	case ch == '"' || ch == '\'':
		return l.readString()
	case ch == ':':
		return l.readSymbol()
	case ch == '@':
		return l.readSigiled(TokenIvar)
	case ch == '$':
		return l.readSigiled(TokenGlobal)
	case isDigit(ch):
		return l.readNumber()
	case isIdentStart(ch):
		return l.readIdentifier()
	default:
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character %q", ch)}
	}
}

// skipWhitespaceAndComments skips blanks, line continuations, # comments and
// =begin/=end blocks. Newlines are tokens and are not skipped.
func (l *Lexer) skipWhitespaceAndComments() bool {
	skipped := false
	for {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v':
			l.readChar()
		case l.ch == '\\' && l.peekChar() == '\n':
			l.readChar()
			l.readChar()
		case l.ch == '#':
			for l.ch != '\n' && l.ch != eof {
				l.readChar()
			}
		case l.ch == '=' && l.col == 1 && strings.HasPrefix(l.input[l.pos:], "=begin"):
			l.skipEmbeddedDoc()
		default:
			return skipped
		}
		skipped = true
	}
}

func (l *Lexer) skipEmbeddedDoc() {
	for l.ch != eof {
		if l.col == 1 && strings.HasPrefix(l.input[l.pos:], "=end") {
			for l.ch != '\n' && l.ch != eof {
				l.readChar()
			}
			return
		}
		l.readChar()
	}
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

func (l *Lexer) readIdentifier() Token {
	start := l.pos
	for isIdentChar(l.ch) {
		l.readChar()
	}
	if (l.ch == '?' || l.ch == '!') && l.peekChar() != '=' {
		l.readChar()
	}
	word := l.input[start:l.pos]
	if t, ok := reservedWords[word]; ok {
		return Token{Type: t, Literal: word}
	}
	if r, _ := utf8.DecodeRuneInString(word); unicode.IsUpper(r) {
		return Token{Type: TokenConstant, Literal: word}
	}
	return Token{Type: TokenIdentifier, Literal: word}
}

// readSigiled reads @name or $name.
func (l *Lexer) readSigiled(t TokenType) Token {
	start := l.pos
	l.readChar()
	if !isIdentStart(l.ch) {
		return Token{Type: TokenError, Literal: fmt.Sprintf("'%s' without identifier", l.input[start:l.pos])}
	}
	for isIdentChar(l.ch) {
		l.readChar()
	}
	return Token{Type: t, Literal: l.input[start:l.pos]}
}

func (l *Lexer) readSymbol() Token {
	l.readChar()
	switch {
	case l.ch == '"' || l.ch == '\'':
		tok := l.readString()
		if tok.Type == TokenString {
			tok.Type = TokenSymbol
		}
		return tok
	case isIdentStart(l.ch):
		start := l.pos
		for isIdentChar(l.ch) {
			l.readChar()
		}
		if l.ch == '?' || l.ch == '!' || l.ch == '=' {
			l.readChar()
		}
		return Token{Type: TokenSymbol, Literal: l.input[start:l.pos]}
	}
	return Token{Type: TokenError, Literal: "unexpected ':'"}
}

func (l *Lexer) readNumber() Token {
	start := l.pos
	if l.ch == '0' {
		base := 0
		switch l.peekChar() {
		case 'x', 'X':
			base = 16
		case 'b', 'B':
			base = 2
		case 'o', 'O':
			base = 8
		}
		if base != 0 {
			l.readChar()
			l.readChar()
			digits := l.pos
			for isHexDigit(l.ch) || l.ch == '_' {
				l.readChar()
			}
			text := strings.ReplaceAll(l.input[digits:l.pos], "_", "")
			if _, err := strconv.ParseInt(text, base, 64); err != nil {
				return Token{Type: TokenError, Literal: fmt.Sprintf("invalid number %s", l.input[start:l.pos])}
			}
			return Token{Type: TokenInteger, Literal: l.input[start:l.pos]}
		}
	}

	isFloat := false
	l.readDigits()
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		l.readDigits()
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return Token{Type: TokenError, Literal: "trailing 'e' in number"}
			}
			l.readDigits()
		}
	}
	if isIdentStart(l.ch) {
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected %q after number", l.ch)}
	}
	if isFloat {
		return Token{Type: TokenFloat, Literal: l.input[start:l.pos]}
	}
	return Token{Type: TokenInteger, Literal: l.input[start:l.pos]}
}

func (l *Lexer) readDigits() {
	for isDigit(l.ch) || (l.ch == '_' && isDigit(l.peekChar())) {
		l.readChar()
	}
}

// readString reads a quoted string and returns its decoded contents.
// Double-quoted strings process escapes; single-quoted ones only \\ and \'.
func (l *Lexer) readString() Token {
	quote := l.ch
	l.readChar()
	var sb strings.Builder
	for {
		switch l.ch {
		case eof:
			return Token{Type: TokenError, Literal: "unterminated string meets end of file"}
		case quote:
			l.readChar()
			return Token{Type: TokenString, Literal: sb.String()}
		case '\\':
			l.readChar()
			if quote == '\'' {
				if l.ch != '\\' && l.ch != '\'' {
					sb.WriteByte('\\')
				}
				if l.ch == eof {
					continue
				}
				sb.WriteRune(l.ch)
				l.readChar()
				continue
			}
			if err := l.readEscape(&sb); err != "" {
				return Token{Type: TokenError, Literal: err}
			}
		case '#':
			if quote == '"' && l.peekChar() == '{' {
				return Token{Type: TokenError, Literal: "string interpolation is not supported"}
			}
			sb.WriteRune(l.ch)
			l.readChar()
		default:
			sb.WriteRune(l.ch)
			l.readChar()
		}
	}
}

var simpleEscapes = map[rune]string{
	'n': "\n", 't': "\t", 'r': "\r", 'e': "\x1b", 's': " ", '0': "\x00",
	'a': "\a", 'b': "\b", 'f': "\f", 'v': "\v",
}

// readEscape decodes the escape whose backslash was just consumed.
func (l *Lexer) readEscape(sb *strings.Builder) string {
	ch := l.ch
	if s, ok := simpleEscapes[ch]; ok {
		sb.WriteString(s)
		l.readChar()
		return ""
	}
	switch ch {
	case eof:
		return "unterminated string meets end of file"
	case '\n':
		l.readChar()
		return ""
	case 'x':
		l.readChar()
		start := l.pos
		for i := 0; i < 2 && isHexDigit(l.ch); i++ {
			l.readChar()
		}
		if l.pos == start {
			return "invalid hex escape"
		}
		n, _ := strconv.ParseUint(l.input[start:l.pos], 16, 8)
		sb.WriteByte(byte(n))
		return ""
	case 'u':
		l.readChar()
		start := l.pos
		for i := 0; i < 4 && isHexDigit(l.ch); i++ {
			l.readChar()
		}
		if l.pos-start != 4 {
			return "invalid Unicode escape"
		}
		n, _ := strconv.ParseUint(l.input[start:l.pos], 16, 32)
		sb.WriteRune(rune(n))
		return ""
	}
	sb.WriteRune(ch)
	l.readChar()
	return ""
}

// ---------------------------------------------------------------------------
// Character classes
// ---------------------------------------------------------------------------

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentChar(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}
