package proc

import (
	"fmt"
	"strings"

	"github.com/oisee/mx16/pkg/isa"
	"github.com/oisee/mx16/pkg/lex"
)

// OpKind discriminates what an instruct contributes to the image.
type OpKind int

const (
	OpCpuInstruction OpKind = iota
	OpSetVariable
	OpInsertByte
	OpInsertWord
	OpInsertBytes
	OpInsertMultipleBytes
	OpInsertCString
	OpVoid
)

// Op is the operation carried by an instruct. Meaningful fields per kind:
// CpuInstruction uses Id and Args; SetVariable uses Name and Value;
// InsertByte uses B; InsertWord uses W; InsertBytes uses Bytes;
// InsertMultipleBytes uses B and Count; InsertCString uses Str.
type Op struct {
	Kind  OpKind
	Id    isa.Op
	Args  []Argument
	Name  string
	Value uint16
	B     uint8
	W     uint16
	Bytes []byte
	Count uint16
	Str   string
}

// Size returns how many image bytes the operation will contribute.
func (op Op) Size() int {
	switch op.Kind {
	case OpCpuInstruction:
		return op.Id.Size()
	case OpInsertByte:
		return 1
	case OpInsertWord:
		return 2
	case OpInsertBytes:
		return len(op.Bytes)
	case OpInsertMultipleBytes:
		return int(op.Count)
	case OpInsertCString:
		return len(op.Str) + 1
	default:
		return 0
	}
}

func (op Op) String() string {
	switch op.Kind {
	case OpCpuInstruction:
		if len(op.Args) == 0 {
			return op.Id.String()
		}
		parts := make([]string, len(op.Args))
		for i, arg := range op.Args {
			parts[i] = arg.String()
		}
		return fmt.Sprintf("%s %s", op.Id, strings.Join(parts, " "))
	case OpSetVariable:
		return fmt.Sprintf("!set %%%s #d%d", op.Name, op.Value)
	case OpInsertByte:
		return fmt.Sprintf("!byte #d%d", op.B)
	case OpInsertWord:
		return fmt.Sprintf("!word #d%d", op.W)
	case OpInsertBytes:
		return `!file "..."`
	case OpInsertMultipleBytes:
		return fmt.Sprintf("!bytes #d%d #d%d", op.B, op.Count)
	case OpInsertCString:
		return fmt.Sprintf("!cstr %q", op.Str)
	default:
		return "!void"
	}
}

// ArgumentKind discriminates assembled CPU operands.
type ArgumentKind int

const (
	ArgReg ArgumentKind = iota
	ArgLiteral
	ArgReference
	ArgVariable
)

// Argument is one operand of an assembled CPU instruction. Literal operands
// are final; references and variables resolve during assembly.
type Argument struct {
	Kind  ArgumentKind
	Reg   isa.Reg
	Lit   uint16
	Delta int16
	Name  string
}

func (a Argument) String() string {
	switch a.Kind {
	case ArgReg:
		return a.Reg.String()
	case ArgLiteral:
		return fmt.Sprintf("#d%d", a.Lit)
	case ArgReference:
		return fmt.Sprintf("~%d", a.Delta)
	default:
		return "%" + a.Name
	}
}

// Instruct is one unit of assembler work: an operation plus the labels that
// were pending when it was emitted.
type Instruct struct {
	Pos    lex.Pos
	Labels []string
	Op     Op
}

func (in Instruct) String() string {
	s := fmt.Sprintf("%s %s", in.Pos, in.Op)
	if len(in.Labels) > 0 {
		s += fmt.Sprintf(" (: %s) ", strings.Join(in.Labels, " "))
	}
	return s
}
