package proc

import (
	"errors"
	"fmt"

	"github.com/oisee/mx16/pkg/isa"
	"github.com/oisee/mx16/pkg/parse"
)

// ErrEarlyEndOfElements reports an element stream that ended while a
// directive or instruction still expected arguments.
var ErrEarlyEndOfElements = errors.New("early end of elements")

// ElementErrorKind classifies why an element could not be processed.
type ElementErrorKind int

const (
	Unexpected ElementErrorKind = iota
	CpuInstructionName
	ProcessorInstructName
	CpuInstructionArg
	ProcessorInstructArg
	NonAsciiCharAsArg
	IncludedCodeParsingFailure
	IncludedFileProcessingFailure
	MacroName
	AbsolutePathsForbidden
	NoRelPathGiven
	NoLibPathGiven
	PathBreaksOut
	FailedToReadFile
)

func (k ElementErrorKind) String() string {
	switch k {
	case Unexpected:
		return "unexpected element encountered"
	case CpuInstructionName:
		return "unknown cpu instruction name"
	case ProcessorInstructName:
		return "unknown processor instruct name"
	case CpuInstructionArg:
		return "bad cpu instruction arg"
	case ProcessorInstructArg:
		return "expected other processor instruct arg"
	case NonAsciiCharAsArg:
		return "can't encode non-ascii char as byte"
	case IncludedCodeParsingFailure:
		return "macro parsing error"
	case IncludedFileProcessingFailure:
		return "included file processing error"
	case MacroName:
		return "unknown macro name"
	case AbsolutePathsForbidden:
		return "absolute paths are forbidden"
	case NoRelPathGiven:
		return "no relative root configured"
	case NoLibPathGiven:
		return "no library root configured"
	case PathBreaksOut:
		return "path breaks out of its root"
	case FailedToReadFile:
		return "failed to read file"
	default:
		return "unknown processing error"
	}
}

// ElementError is an element the processor rejected. Expected names the
// operand class a CPU instruction wanted, Reason carries an I/O failure
// message, Err nests the failure of included code.
type ElementError struct {
	Elem     parse.Element
	Kind     ElementErrorKind
	Expected isa.ArgKind
	Reason   string
	Err      error
}

func (e *ElementError) Error() string {
	switch e.Kind {
	case CpuInstructionArg:
		return fmt.Sprintf("invalid element (%s): expected %s as an arg", e.Elem, e.Expected)
	case FailedToReadFile:
		return fmt.Sprintf("invalid element (%s): %s: %s", e.Elem, e.Kind, e.Reason)
	default:
		return fmt.Sprintf("invalid element (%s): %s", e.Elem, e.Kind)
	}
}

func (e *ElementError) Unwrap() error {
	return e.Err
}

// InitError reports a failure to resolve a processor root path at
// construction time.
type InitError struct {
	Root string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to process %s path", e.Root)
}

func (e *InitError) Unwrap() error {
	return e.Err
}
