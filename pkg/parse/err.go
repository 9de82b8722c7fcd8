package parse

import (
	"fmt"

	"github.com/oisee/mx16/pkg/lex"
)

// ErrorKind classifies why a word failed to parse into an element.
type ErrorKind int

const (
	BadSurroundPair ErrorKind = iota
	BadRegister
	BadInteger
	BadIntegerRadix
	BadChar
	BadReference
	BadSubstitute
)

func (k ErrorKind) String() string {
	switch k {
	case BadSurroundPair:
		return "prefix-suffix pair"
	case BadRegister:
		return "register name"
	case BadInteger:
		return "invalid integer"
	case BadIntegerRadix:
		return "integer: radix"
	case BadChar:
		return "char word must be 1-char long"
	case BadReference:
		return "invalid reference"
	case BadSubstitute:
		return "invalid substitute index"
	default:
		return "unknown parsing error"
	}
}

// Error is a word that could not be classified. Err carries the underlying
// integer-conversion failure when there is one.
type Error struct {
	Word lex.Word
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid word (%s): %s", e.Word, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}
