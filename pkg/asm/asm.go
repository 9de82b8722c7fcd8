// Package asm lays out an instruct stream into a binary program image. Two
// passes: the first assigns every instruct its byte address (so labels and
// references can point forward), the second emits bytes.
package asm

import (
	"errors"
	"fmt"
	"math"

	"github.com/oisee/mx16/pkg/proc"
)

// ErrProgTooLarge reports an image that does not fit the 16-bit address
// space.
var ErrProgTooLarge = errors.New("program too large to fit within 64KiB")

// InstructErrorKind classifies why an instruct could not be assembled.
type InstructErrorKind int

const (
	ModifyingLabel InstructErrorKind = iota
	ReferenceOutOfBounds
	UnknownVariable
)

func (k InstructErrorKind) String() string {
	switch k {
	case ModifyingLabel:
		return "reassigning label is forbidden"
	case ReferenceOutOfBounds:
		return "reference leads to non-existent instruction"
	case UnknownVariable:
		return "unknown variable"
	default:
		return "unknown assembling error"
	}
}

// InstructError is an instruct the assembler rejected.
type InstructError struct {
	Instruct proc.Instruct
	Kind     InstructErrorKind
}

func (e *InstructError) Error() string {
	return fmt.Sprintf("invalid instruct (%s): %s", e.Instruct, e.Kind)
}

// InstructScanner is the processor-side interface the assembler drains.
type InstructScanner interface {
	Scan() bool
	Instruct() proc.Instruct
	Err() error
}

type variable struct {
	value   uint16
	isLabel bool
}

// AssembleStream collects the whole instruct stream, then assembles it. Any
// processing error aborts before a single byte is produced.
func AssembleStream(s InstructScanner) ([]byte, error) {
	var ins []proc.Instruct
	for s.Scan() {
		ins = append(ins, s.Instruct())
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("processing error occurred: %w", err)
	}
	return Assemble(ins)
}

// Assemble lays out and emits the given instructs.
func Assemble(ins []proc.Instruct) ([]byte, error) {
	variables := map[string]variable{}
	type layout struct {
		addr uint16
		size uint16
	}
	addrs := make([]layout, 0, len(ins))

	cur := 0
	for _, in := range ins {
		for _, label := range in.Labels {
			variables[label] = variable{value: uint16(cur), isLabel: true}
		}

		size := in.Op.Size()
		addrs = append(addrs, layout{addr: uint16(cur), size: uint16(size)})

		cur += size
		if cur > math.MaxUint16 {
			return nil, ErrProgTooLarge
		}
	}

	var prog []byte
	le := func(v uint16) {
		prog = append(prog, uint8(v), uint8(v>>8))
	}

	for i, in := range ins {
		op := in.Op
		switch op.Kind {
		case proc.OpCpuInstruction:
			prog = append(prog, op.Id.Code())
			for _, arg := range op.Args {
				switch arg.Kind {
				case proc.ArgReg:
					prog = append(prog, arg.Reg.Addr())
				case proc.ArgLiteral:
					le(arg.Lit)
				case proc.ArgReference:
					if arg.Delta > 0 {
						// A positive reference resolves to the END of the
						// instruct it lands on, so ~1 is "right after me".
						idx := i + int(arg.Delta) - 1
						if idx >= len(addrs) {
							return nil, &InstructError{Instruct: in, Kind: ReferenceOutOfBounds}
						}
						le(addrs[idx].addr + addrs[idx].size)
					} else {
						idx := i + int(arg.Delta)
						if idx < 0 {
							return nil, &InstructError{Instruct: in, Kind: ReferenceOutOfBounds}
						}
						le(addrs[idx].addr)
					}
				case proc.ArgVariable:
					v, ok := variables[arg.Name]
					if !ok {
						return nil, &InstructError{Instruct: in, Kind: UnknownVariable}
					}
					le(v.value)
				}
			}

		case proc.OpSetVariable:
			if v, ok := variables[op.Name]; ok && v.isLabel {
				return nil, &InstructError{Instruct: in, Kind: ModifyingLabel}
			}
			variables[op.Name] = variable{value: op.Value}

		case proc.OpInsertByte:
			prog = append(prog, op.B)
		case proc.OpInsertWord:
			le(op.W)
		case proc.OpInsertBytes:
			prog = append(prog, op.Bytes...)
		case proc.OpInsertMultipleBytes:
			for n := uint16(0); n < op.Count; n++ {
				prog = append(prog, op.B)
			}
		case proc.OpInsertCString:
			prog = append(prog, op.Str...)
			prog = append(prog, 0)
		case proc.OpVoid:
		}
	}
	return prog, nil
}
