package parse

import (
	"fmt"

	"github.com/oisee/mx16/pkg/isa"
	"github.com/oisee/mx16/pkg/lex"
)

// Kind discriminates the syntactic classes a word can parse into.
type Kind int

const (
	CpuInstruction Kind = iota
	ProcessorInstruction
	Label
	Variable
	Register
	Reference
	Substitute
	Number
	Str
	Char
)

// Element is one classified word. Which payload fields are meaningful
// depends on Kind: Text for names and string literals, Num for number
// literals, Ch for char literals, Reg for registers, Delta for references
// and Index for macro substitution slots.
type Element struct {
	Pos   lex.Pos
	Kind  Kind
	Text  string
	Num   uint16
	Ch    rune
	Reg   isa.Reg
	Delta int16
	Index int
}

func (e Element) String() string {
	return fmt.Sprintf("%s %s", e.Pos, e.describe())
}

func (e Element) describe() string {
	switch e.Kind {
	case CpuInstruction:
		return e.Text
	case ProcessorInstruction:
		return "!" + e.Text
	case Label:
		return ":" + e.Text
	case Variable:
		return "%" + e.Text
	case Register:
		return e.Reg.String()
	case Reference:
		return fmt.Sprintf("~%d", e.Delta)
	case Substitute:
		return fmt.Sprintf("@%d", e.Index)
	case Number:
		return fmt.Sprintf("#d%d", e.Num)
	case Str:
		return fmt.Sprintf("%q", e.Text)
	case Char:
		return fmt.Sprintf("'%c", e.Ch)
	default:
		return "???"
	}
}
