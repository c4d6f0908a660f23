package sqfile

import "fmt"

// tokenKind classifies a lexical token of a .sq file.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokQuotedIdent
	tokString
	tokNumber
	tokPunct
)

// token is a lexical unit with its byte offset and 1-based position.
type token struct {
	kind   tokenKind
	text   string
	offset int
	end    int
	line   int
	col    int
}

// lexError is raised for unterminated literals and comments.
type lexError struct {
	line    int
	col     int
	message string
}

func (e *lexError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.line, e.col, e.message)
}

// lexer tokenizes .sq source. Whitespace and comments are skipped.
type lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

func newLexer(input string) *lexer {
	l := &lexer{input: input, line: 1}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
	l.col++
}

func (l *lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// tokens lexes the whole input.
func (l *lexer) tokens() ([]token, error) {
	var out []token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			return out, nil
		}
		out = append(out, tok)
	}
}

func (l *lexer) next() (token, error) {
	if err := l.skipWhitespaceAndComments(); err != nil {
		return token{}, err
	}

	start := token{offset: l.pos, line: l.line, col: l.col}
	if l.atEOF() {
		start.kind = tokEOF
		start.end = l.pos
		return start, nil
	}

	switch {
	case isIdentStart(l.ch):
		for !l.atEOF() && isIdentPart(l.ch) {
			l.readChar()
		}
		start.kind = tokIdent
	case isDigit(l.ch):
		for !l.atEOF() && (isDigit(l.ch) || l.ch == '.') {
			l.readChar()
		}
		start.kind = tokNumber
	case l.ch == '\'':
		if err := l.readQuoted('\'', "unterminated string literal"); err != nil {
			return token{}, err
		}
		start.kind = tokString
	case l.ch == '"':
		if err := l.readQuoted('"', "unterminated quoted identifier"); err != nil {
			return token{}, err
		}
		start.kind = tokQuotedIdent
	case l.ch == '`':
		if err := l.readQuoted('`', "unterminated quoted identifier"); err != nil {
			return token{}, err
		}
		start.kind = tokQuotedIdent
	case l.ch == '[':
		if err := l.readQuoted(']', "unterminated quoted identifier"); err != nil {
			return token{}, err
		}
		start.kind = tokQuotedIdent
	default:
		l.readChar()
		start.kind = tokPunct
	}

	start.end = l.pos
	start.text = l.input[start.offset:start.end]
	return start, nil
}

// readQuoted consumes a quoted run ending with closer. A doubled closer is an
// escaped closer.
func (l *lexer) readQuoted(closer byte, message string) error {
	line, col := l.line, l.col
	l.readChar()
	for {
		if l.atEOF() {
			return &lexError{line: line, col: col, message: message}
		}
		if l.ch == closer {
			if l.peekChar() == closer && closer != ']' {
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar()
			return nil
		}
		l.readChar()
	}
}

func (l *lexer) skipWhitespaceAndComments() error {
	for !l.atEOF() {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '-' && l.peekChar() == '-':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			line, col := l.line, l.col
			l.readChar()
			l.readChar()
			for {
				if l.atEOF() {
					return &lexError{line: line, col: col, message: "unterminated block comment"}
				}
				if l.ch == '*' && l.peekChar() == '/' {
					l.readChar()
					l.readChar()
					break
				}
				l.readChar()
			}
		default:
			return nil
		}
	}
	return nil
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
