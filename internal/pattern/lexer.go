package pattern

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenEOF        TokenType = iota
	TokenIdent                // identifiers and word operators (AND, OR, IN, ...)
	TokenColon                // :
	TokenDot                  // .
	TokenComma                // ,
	TokenLBracket             // [
	TokenRBracket             // ]
	TokenLParen               // (
	TokenRParen               // )
	TokenOp                   // = != < <= > >=
	TokenString               // 'quoted string'
	TokenNumber               // 42, -1, 3.14
	TokenTimestamp            // t'2019-01-01T00:00:00Z'
	TokenListMarker           // [*]
	TokenError                // unrecognized input
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "end of input"
	case TokenIdent:
		return "identifier"
	case TokenColon:
		return "':'"
	case TokenDot:
		return "'.'"
	case TokenComma:
		return "','"
	case TokenLBracket:
		return "'['"
	case TokenRBracket:
		return "']'"
	case TokenLParen:
		return "'('"
	case TokenRParen:
		return "')'"
	case TokenOp:
		return "operator"
	case TokenString:
		return "string"
	case TokenNumber:
		return "number"
	case TokenTimestamp:
		return "timestamp"
	case TokenListMarker:
		return "'[*]'"
	default:
		return "invalid token"
	}
}

// Token represents a lexer token.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// Lexer tokenizes a pattern string in a single longest-match pass.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Remainder returns the unconsumed input from pos onward.
func (l *Lexer) Remainder(pos int) string {
	if pos >= len(l.input) {
		return ""
	}
	return l.input[pos:]
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case ':':
		l.pos++
		return Token{Type: TokenColon, Value: ":", Pos: start}
	case '.':
		l.pos++
		return Token{Type: TokenDot, Value: ".", Pos: start}
	case ',':
		l.pos++
		return Token{Type: TokenComma, Value: ",", Pos: start}
	case '[':
		// [*] is a single list-marker token; it can never open an
		// observation expression, so longest match is unambiguous.
		if l.pos+2 < len(l.input) && l.input[l.pos+1] == '*' && l.input[l.pos+2] == ']' {
			l.pos += 3
			return Token{Type: TokenListMarker, Value: "[*]", Pos: start}
		}
		l.pos++
		return Token{Type: TokenLBracket, Value: "[", Pos: start}
	case ']':
		l.pos++
		return Token{Type: TokenRBracket, Value: "]", Pos: start}
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Pos: start}
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Pos: start}
	case '=':
		l.pos++
		return Token{Type: TokenOp, Value: "=", Pos: start}
	case '!':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return Token{Type: TokenOp, Value: "!=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenError, Value: "!", Pos: start}
	case '<':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return Token{Type: TokenOp, Value: "<=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenOp, Value: "<", Pos: start}
	case '>':
		if l.pos+1 < len(l.input) && l.input[l.pos+1] == '=' {
			l.pos += 2
			return Token{Type: TokenOp, Value: ">=", Pos: start}
		}
		l.pos++
		return Token{Type: TokenOp, Value: ">", Pos: start}
	case '\'':
		return l.scanString()
	case '-':
		if l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
			return l.scanNumber()
		}
		l.pos++
		return Token{Type: TokenError, Value: "-", Pos: start}
	default:
		if isDigit(ch) {
			return l.scanNumber()
		}
		if isLetter(ch) {
			return l.scanIdent()
		}
		l.pos++
		return Token{Type: TokenError, Value: string(ch), Pos: start}
	}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

func (l *Lexer) scanIdent() Token {
	start := l.pos
	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}
	value := l.input[start:l.pos]

	// t'...' is a timestamp literal, not the identifier "t".
	if value == "t" && l.pos < len(l.input) && l.input[l.pos] == '\'' {
		str := l.scanString()
		if str.Type == TokenError {
			return Token{Type: TokenError, Value: str.Value, Pos: start}
		}
		return Token{Type: TokenTimestamp, Value: str.Value, Pos: start}
	}
	return Token{Type: TokenIdent, Value: value, Pos: start}
}

// scanString consumes a single-quoted string with \' and \\ escapes.
// The returned value has escapes resolved.
func (l *Lexer) scanString() Token {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			next := l.input[l.pos+1]
			if next == '\'' || next == '\\' {
				sb.WriteByte(next)
				l.pos += 2
				continue
			}
		}
		if ch == '\'' {
			l.pos++
			return Token{Type: TokenString, Value: sb.String(), Pos: start}
		}
		sb.WriteByte(ch)
		l.pos++
	}
	return Token{Type: TokenError, Value: "unterminated string", Pos: start}
}

func (l *Lexer) scanNumber() Token {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos+1 < len(l.input) && l.input[l.pos] == '.' && isDigit(l.input[l.pos+1]) {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	return Token{Type: TokenNumber, Value: l.input[start:l.pos], Pos: start}
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentChar(ch byte) bool {
	return isLetter(ch) || isDigit(ch) || ch == '_' || ch == '-'
}
