package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenNewline

	// Literals and names
	TokenInteger    // 42, 0x2a, 1_000
	TokenFloat      // 3.14, 1e10
	TokenString     // "hello", 'hello'
	TokenSymbol     // :name
	TokenIdentifier // foo, empty?, save!
	TokenConstant   // Foo
	TokenGlobal     // $foo
	TokenIvar       // @foo

	// Keywords
	TokenDef
	TokenEnd
	TokenIf
	TokenElsif
	TokenElse
	TokenUnless
	TokenWhile
	TokenUntil
	TokenDo
	TokenThen
	TokenReturn
	TokenAnd
	TokenOr
	TokenNot
	TokenNil
	TokenTrue
	TokenFalse
	TokenSelf

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenComma     // ,
	TokenDot       // .
	TokenSemicolon // ;
	TokenAssign    // =

	// Operators
	TokenPlus    // +
	TokenMinus   // -
	TokenStar    // *
	TokenSlash   // /
	TokenPercent // %
	TokenEQ      // ==
	TokenNEQ     // !=
	TokenLT      // <
	TokenLE      // <=
	TokenGT      // >
	TokenGE      // >=
	TokenAndAnd  // &&
	TokenOrOr    // ||
	TokenBang    // !
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "end-of-input",
	TokenError:      "ERROR",
	TokenNewline:    "newline",
	TokenInteger:    "integer",
	TokenFloat:      "float",
	TokenString:     "string",
	TokenSymbol:     "symbol",
	TokenIdentifier: "identifier",
	TokenConstant:   "constant",
	TokenGlobal:     "global variable",
	TokenIvar:       "instance variable",
	TokenDef:        "'def'",
	TokenEnd:        "'end'",
	TokenIf:         "'if'",
	TokenElsif:      "'elsif'",
	TokenElse:       "'else'",
	TokenUnless:     "'unless'",
	TokenWhile:      "'while'",
	TokenUntil:      "'until'",
	TokenDo:         "'do'",
	TokenThen:       "'then'",
	TokenReturn:     "'return'",
	TokenAnd:        "'and'",
	TokenOr:         "'or'",
	TokenNot:        "'not'",
	TokenNil:        "'nil'",
	TokenTrue:       "'true'",
	TokenFalse:      "'false'",
	TokenSelf:       "'self'",
	TokenLParen:     "'('",
	TokenRParen:     "')'",
	TokenLBracket:   "'['",
	TokenRBracket:   "']'",
	TokenComma:      "','",
	TokenDot:        "'.'",
	TokenSemicolon:  "';'",
	TokenAssign:     "'='",
	TokenPlus:       "'+'",
	TokenMinus:      "'-'",
	TokenStar:       "'*'",
	TokenSlash:      "'/'",
	TokenPercent:    "'%'",
	TokenEQ:         "'=='",
	TokenNEQ:        "'!='",
	TokenLT:         "'<'",
	TokenLE:         "'<='",
	TokenGT:         "'>'",
	TokenGE:         "'>='",
	TokenAndAnd:     "'&&'",
	TokenOrOr:       "'||'",
	TokenBang:       "'!'",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type        TokenType
	Literal     string   // the raw text, or the decoded value for strings
	Pos         Position // start position
	SpaceBefore bool     // whitespace separates this token from the previous one
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF, TokenNewline:
		return t.Type.String()
	case TokenError:
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"def":    TokenDef,
	"end":    TokenEnd,
	"if":     TokenIf,
	"elsif":  TokenElsif,
	"else":   TokenElse,
	"unless": TokenUnless,
	"while":  TokenWhile,
	"until":  TokenUntil,
	"do":     TokenDo,
	"then":   TokenThen,
	"return": TokenReturn,
	"and":    TokenAnd,
	"or":     TokenOr,
	"not":    TokenNot,
	"nil":    TokenNil,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"self":   TokenSelf,
}

// startsArgument reports whether a token can begin a command-call argument
// (an argument list without parentheses).
func (t Token) startsArgument() bool {
	switch t.Type {
	case TokenInteger, TokenFloat, TokenString, TokenSymbol, TokenIdentifier,
		TokenConstant, TokenGlobal, TokenIvar, TokenNil, TokenTrue, TokenFalse,
		TokenSelf, TokenNot, TokenBang, TokenLBracket, TokenLParen:
		return true
	}
	return false
}
