package isa

import (
	"errors"
	"fmt"
	"io"
)

// Decode failure kinds.
var (
	ErrEarlyEOB        = errors.New("too early end of byte stream")
	ErrInvalidOp       = errors.New("specified a non-existent instruction")
	ErrInvalidRegister = errors.New("specified a non-existent register")
)

// Instruction is one decoded instruction. Only the fields the opcode's
// operand shape calls for are meaningful: Set/SetIfNotZero/SetIfZero use
// A and Imm, Copy/Swap use A and B, everything else is the bare opcode.
type Instruction struct {
	Op  Op
	A   Reg
	B   Reg
	Imm uint16
}

// Encode renders the instruction to its binary form, immediates
// little-endian. The result is always exactly Op.Size() bytes.
func (in Instruction) Encode() []byte {
	switch in.Op {
	case Set, SetIfNotZero, SetIfZero:
		return []byte{in.Op.Code(), in.A.Addr(), uint8(in.Imm), uint8(in.Imm >> 8)}
	case Copy, Swap:
		return []byte{in.Op.Code(), in.A.Addr(), in.B.Addr()}
	default:
		return []byte{in.Op.Code()}
	}
}

// Decode reads one instruction from r. Errors are ErrEarlyEOB, ErrInvalidOp
// or ErrInvalidRegister.
func Decode(r io.ByteReader) (Instruction, error) {
	next := func() (uint8, error) {
		b, err := r.ReadByte()
		if err != nil {
			return 0, ErrEarlyEOB
		}
		return b, nil
	}

	code, err := next()
	if err != nil {
		return Instruction{}, err
	}
	op, ok := OpFromCode(code)
	if !ok {
		return Instruction{}, ErrInvalidOp
	}

	in := Instruction{Op: op}
	switch op {
	case Set, SetIfNotZero, SetIfZero:
		addr, err := next()
		if err != nil {
			return Instruction{}, err
		}
		if in.A, ok = RegFromAddr(addr); !ok {
			return Instruction{}, ErrInvalidRegister
		}
		lo, err := next()
		if err != nil {
			return Instruction{}, err
		}
		hi, err := next()
		if err != nil {
			return Instruction{}, err
		}
		in.Imm = uint16(lo) | uint16(hi)<<8
	case Copy, Swap:
		for _, dst := range []*Reg{&in.A, &in.B} {
			addr, err := next()
			if err != nil {
				return Instruction{}, err
			}
			if *dst, ok = RegFromAddr(addr); !ok {
				return Instruction{}, ErrInvalidRegister
			}
		}
	}
	return in, nil
}

func (in Instruction) String() string {
	switch in.Op {
	case Set, SetIfNotZero, SetIfZero:
		return fmt.Sprintf("%s %s #d%d", in.Op, in.A, in.Imm)
	case Copy, Swap:
		return fmt.Sprintf("%s %s %s", in.Op, in.A, in.B)
	default:
		return in.Op.String()
	}
}
