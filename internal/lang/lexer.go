// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package lang

import (
	"os"
	"strings"

	"grimm.is/pfrs/internal/errors"
)

// Lexer tokenizes rule configuration text.
type Lexer struct {
	input string
	pos   int
	line  int
	col   int
}

// NewLexer creates a Lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: strings.TrimLeft(input, " \t\r\n\f\v"),
		line:  1,
		col:   1,
	}
}

// LexFile reads a configuration file and returns a Lexer over its contents.
func LexFile(path string) (*Lexer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindInternal, "could not read %s", path)
	}
	return NewLexer(string(data)), nil
}

// Tokenize processes the input and returns all tokens.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token

	for {
		tok, ok, err := l.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tokens = append(tokens, tok)
	}

	return tokens, nil
}

// next returns the next token, or ok=false at end of input.
func (l *Lexer) next() (Token, bool, error) {
	l.skipSpace()

	if l.eof() {
		return Token{}, false, nil
	}

	switch ch := l.peek(); ch {
	case '=':
		l.advance()
		return Token{Type: TokenAssign}, true, nil
	case '\n':
		return l.readNewline(), true, nil
	case '{':
		l.advance()
		tok, err := l.readList()
		return tok, err == nil, err
	case '$':
		l.advance()
		tok, err := l.readIdent()
		return tok, err == nil, err
	}

	word := l.readWord()
	if typ, ok := keywords[word]; ok {
		return Token{Type: typ}, true, nil
	}
	return l.interpret(word), true, nil
}

// readNewline consumes the newline and any whitespace that follows, so runs
// of blank lines collapse into a single statement separator.
func (l *Lexer) readNewline() Token {
	l.advance()
	for !l.eof() && isSpaceOrNewline(l.peek()) {
		l.advance()
	}
	return Token{Type: TokenNewline}
}

// readIdent reads the word named by a `$` reference. The `$` has already
// been consumed.
func (l *Lexer) readIdent() (Token, error) {
	for !l.eof() && isSpace(l.peek()) {
		l.advance()
	}

	word := l.readWord()
	if word == "" {
		return Token{}, errors.Errorf(errors.KindLex, "line %d:%d: invalid token `$`: expected identifier", l.line, l.col)
	}
	return ident(word), nil
}

// readList reads whitespace-separated values up to the closing brace. The
// opening brace has already been consumed. A newline inside the list and an
// empty list are both hard errors.
func (l *Lexer) readList() (Token, error) {
	var items []Token

	for {
		l.skipSpace()

		if l.eof() {
			return Token{}, errors.Errorf(errors.KindLex, "line %d:%d: unclosed list, expected `}`", l.line, l.col)
		}
		if l.peek() == '\n' {
			return Token{}, errors.Errorf(errors.KindLex, `line %d:%d: unexpected token `+"`\\n`"+` in list`, l.line, l.col)
		}
		if l.peek() == '}' {
			l.advance()
			break
		}

		start := l.pos
		for !l.eof() && !isSpaceOrNewline(l.peek()) && l.peek() != '}' {
			l.advance()
		}
		if l.pos > start {
			items = append(items, val(l.input[start:l.pos]))
		}
	}

	if len(items) == 0 {
		return Token{}, errors.Errorf(errors.KindLex, "line %d:%d: no tokens inside list", l.line, l.col)
	}
	return Token{Type: TokenList, Items: items}, nil
}

// interpret decides whether a non-keyword word is a definition head or a
// plain value: it is a definition when the next non-space character on the
// same line is `=`.
func (l *Lexer) interpret(word string) Token {
	l.skipSpace()
	if !l.eof() && l.peek() == '=' {
		return def(word)
	}
	return val(word)
}

// readWord reads a run of non-whitespace characters.
func (l *Lexer) readWord() string {
	start := l.pos
	for !l.eof() && !isSpaceOrNewline(l.peek()) {
		l.advance()
	}
	return l.input[start:l.pos]
}

// skipSpace skips whitespace except newline.
func (l *Lexer) skipSpace() {
	for !l.eof() && isSpace(l.peek()) {
		l.advance()
	}
}

func (l *Lexer) peek() byte {
	return l.input[l.pos]
}

func (l *Lexer) eof() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) advance() {
	if l.input[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f' || ch == '\v'
}

func isSpaceOrNewline(ch byte) bool {
	return isSpace(ch) || ch == '\n'
}
