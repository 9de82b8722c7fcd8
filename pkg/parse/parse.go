// Package parse classifies lexed words into typed elements by their prefix
// and suffix characters.
package parse

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/oisee/mx16/pkg/isa"
	"github.com/oisee/mx16/pkg/lex"
)

// WordScanner is the lexer-side interface the parser pulls from.
type WordScanner interface {
	Scan() bool
	Word() lex.Word
	Err() error
}

// Parser turns words into elements, one per Scan. Errors latch the same way
// lexer errors do.
type Parser struct {
	words WordScanner
	el    Element
	err   error
}

// New returns a Parser pulling from the given word stream.
func New(words WordScanner) *Parser {
	return &Parser{words: words}
}

// Parse classifies an entire source text.
func Parse(src string) ([]Element, error) {
	p := New(lex.NewString(src))
	var els []Element
	for p.Scan() {
		els = append(els, p.Element())
	}
	return els, p.Err()
}

// Element returns the element produced by the last successful Scan.
func (p *Parser) Element() Element {
	return p.el
}

// Err returns the latched error, or nil if the stream ended cleanly.
func (p *Parser) Err() error {
	return p.err
}

func (p *Parser) fail(w lex.Word, kind ErrorKind, cause error) bool {
	p.err = &Error{Word: w, Kind: kind, Err: cause}
	return false
}

// Scan advances to the next element.
func (p *Parser) Scan() bool {
	if p.err != nil {
		return false
	}
	if !p.words.Scan() {
		if err := p.words.Err(); err != nil {
			p.err = fmt.Errorf("lexing error occurred: %w", err)
		}
		return false
	}

	w := p.words.Word()
	switch {
	case w.Prefix == 0 && w.Suffix == 0:
		p.el = Element{Pos: w.Pos, Kind: CpuInstruction, Text: w.Value}
	case w.Prefix == '!' && w.Suffix == 0:
		p.el = Element{Pos: w.Pos, Kind: ProcessorInstruction, Text: w.Value}
	case w.Prefix == '%' && w.Suffix == 0:
		p.el = Element{Pos: w.Pos, Kind: Variable, Text: w.Value}
	case w.Prefix == '~' && w.Suffix == 0:
		delta, err := strconv.ParseInt(w.Value, 10, 16)
		if err != nil {
			return p.fail(w, BadReference, err)
		}
		p.el = Element{Pos: w.Pos, Kind: Reference, Delta: int16(delta)}
	case w.Prefix == '#' && w.Suffix == 0:
		return p.scanNumber(w)
	case w.Prefix == '\'' && w.Suffix == 0:
		if utf8.RuneCountInString(w.Value) != 1 {
			return p.fail(w, BadChar, nil)
		}
		c, _ := utf8.DecodeRuneInString(w.Value)
		p.el = Element{Pos: w.Pos, Kind: Char, Ch: c}
	case w.Prefix == ':' && w.Suffix == 0:
		p.el = Element{Pos: w.Pos, Kind: Label, Text: w.Value}
	case w.Prefix == '$' && w.Suffix == 0:
		reg, ok := isa.RegFromName(w.Value)
		if !ok {
			return p.fail(w, BadRegister, nil)
		}
		p.el = Element{Pos: w.Pos, Kind: Register, Reg: reg}
	case w.Prefix == '"' && w.Suffix == '"':
		p.el = Element{Pos: w.Pos, Kind: Str, Text: w.Value}
	case w.Prefix == '@' && w.Suffix == 0:
		i, err := strconv.ParseUint(w.Value, 10, 32)
		if err != nil {
			return p.fail(w, BadSubstitute, err)
		}
		p.el = Element{Pos: w.Pos, Kind: Substitute, Index: int(i)}
	default:
		return p.fail(w, BadSurroundPair, nil)
	}
	return true
}

// scanNumber parses a #-literal. The first character selects the radix, the
// rest is the digits.
func (p *Parser) scanNumber(w lex.Word) bool {
	if w.Value == "" {
		return p.fail(w, BadIntegerRadix, nil)
	}
	var base int
	switch w.Value[0] {
	case 'x':
		base = 16
	case 'o':
		base = 8
	case 'b':
		base = 2
	case 'd':
		base = 10
	default:
		return p.fail(w, BadIntegerRadix, nil)
	}
	n, err := strconv.ParseUint(w.Value[1:], base, 16)
	if err != nil {
		return p.fail(w, BadInteger, err)
	}
	p.el = Element{Pos: w.Pos, Kind: Number, Num: uint16(n)}
	return true
}
