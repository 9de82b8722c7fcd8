// Package proc drives the element stream: it interprets processor
// directives, expands macros, descends into included files and emits a flat
// stream of instructs for the assembler.
package proc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/oisee/mx16/pkg/isa"
	"github.com/oisee/mx16/pkg/lex"
	"github.com/oisee/mx16/pkg/parse"
)

// ElementScanner is the parser-side interface the processor pulls from.
type ElementScanner interface {
	Scan() bool
	Element() parse.Element
	Err() error
}

type child struct {
	proc *Processor
	path string
	pos  lex.Pos
}

// Processor interprets elements into instructs, one per Scan. Errors latch.
type Processor struct {
	parser ElementScanner
	in     Instruct
	err    error

	libRoot       string
	relRoot       string
	allowAbsPaths bool

	// includedFiles memoizes fully processed include paths so a file loads
	// once no matter how often it is pulled in; re-inclusion only re-exports
	// its macros. The map is shared down the whole include chain.
	includedFiles  map[string]map[string]macroDef
	definedMacros  map[string]macroDef
	includedMacros map[string]macroDef

	active []*expansion
	cur    *child
}

// New builds a Processor over an element stream. Empty root paths mean "not
// configured"; non-empty ones are resolved to absolute form up front.
func New(parser ElementScanner, libRoot, relRoot string, allowAbsPaths bool) (*Processor, error) {
	p := &Processor{
		parser:         parser,
		allowAbsPaths:  allowAbsPaths,
		includedFiles:  map[string]map[string]macroDef{},
		definedMacros:  map[string]macroDef{},
		includedMacros: map[string]macroDef{},
	}
	var err error
	if libRoot != "" {
		if p.libRoot, err = filepath.Abs(libRoot); err != nil {
			return nil, &InitError{Root: "lib", Err: err}
		}
	}
	if relRoot != "" {
		if p.relRoot, err = filepath.Abs(relRoot); err != nil {
			return nil, &InitError{Root: "rel", Err: err}
		}
	}
	return p, nil
}

// Process runs a source text through the full lex/parse/process pipeline
// with no include roots configured.
func Process(src string) ([]Instruct, error) {
	return ProcessCustom(src, "", "", false)
}

// ProcessCustom is Process with include roots and the absolute-path policy.
func ProcessCustom(src, libRoot, relRoot string, allowAbsPaths bool) ([]Instruct, error) {
	p, err := New(parse.New(lex.NewString(src)), libRoot, relRoot, allowAbsPaths)
	if err != nil {
		return nil, err
	}
	var ins []Instruct
	for p.Scan() {
		ins = append(ins, p.Instruct())
	}
	return ins, p.Err()
}

// Instruct returns the instruct produced by the last successful Scan.
func (p *Processor) Instruct() Instruct {
	return p.in
}

// Err returns the latched error, or nil if the stream ended cleanly.
func (p *Processor) Err() error {
	return p.err
}

func (p *Processor) failElem(el parse.Element, kind ElementErrorKind) bool {
	p.err = &ElementError{Elem: el, Kind: kind}
	return false
}

// nextEl drains the innermost active macro expansion before falling back to
// the parser.
func (p *Processor) nextEl() (parse.Element, bool) {
	for len(p.active) > 0 {
		if el, ok := p.active[len(p.active)-1].next(); ok {
			return el, true
		}
		p.active = p.active[:len(p.active)-1]
	}
	if !p.parser.Scan() {
		return parse.Element{}, false
	}
	return p.parser.Element(), true
}

// mustEl is nextEl for positions where the stream is not allowed to end.
func (p *Processor) mustEl() (parse.Element, bool) {
	el, ok := p.nextEl()
	if ok {
		return el, true
	}
	if perr := p.parser.Err(); perr != nil {
		p.err = fmt.Errorf("parsing error occurred: %w", perr)
	} else {
		p.err = ErrEarlyEndOfElements
	}
	return parse.Element{}, false
}

func (p *Processor) mustKind(kind parse.Kind) (parse.Element, bool) {
	el, ok := p.mustEl()
	if !ok {
		return parse.Element{}, false
	}
	if el.Kind != kind {
		return parse.Element{}, p.failElem(el, ProcessorInstructArg)
	}
	return el, true
}

// Scan advances to the next instruct.
func (p *Processor) Scan() bool {
outer:
	for {
		if p.err != nil {
			return false
		}

		// An active include yields its instructs first; on completion its
		// macro definitions become our included macros.
		if c := p.cur; c != nil {
			if c.proc.Scan() {
				p.in = c.proc.Instruct()
				return true
			}
			if cerr := c.proc.Err(); cerr != nil {
				p.err = &ElementError{
					Elem: parse.Element{Pos: c.pos, Kind: parse.Str, Text: c.path},
					Kind: IncludedFileProcessingFailure,
					Err:  cerr,
				}
				return false
			}
			for name, m := range c.proc.definedMacros {
				p.includedMacros[name] = m
			}
			p.includedFiles[c.path] = c.proc.definedMacros
			p.cur = nil
		}

		var labels []string
		for {
			el, ok := p.nextEl()
			if !ok {
				if perr := p.parser.Err(); perr != nil {
					p.err = fmt.Errorf("parsing error occurred: %w", perr)
				}
				return false
			}

			switch el.Kind {
			case parse.Label:
				labels = append(labels, el.Text)
			case parse.CpuInstruction:
				return p.scanCpuInstruction(el, labels)
			case parse.ProcessorInstruction:
				emitted, restart, ok := p.directive(el, labels)
				if !ok {
					return false
				}
				if emitted {
					return true
				}
				if restart {
					continue outer
				}
			default:
				return p.failElem(el, Unexpected)
			}
		}
	}
}

func (p *Processor) scanCpuInstruction(el parse.Element, labels []string) bool {
	id, ok := isa.OpFromName(el.Text)
	if !ok {
		return p.failElem(el, CpuInstructionName)
	}

	var args []Argument
	for _, expected := range id.Args() {
		arg, ok := p.mustEl()
		if !ok {
			return false
		}
		switch expected {
		case isa.ArgRegister:
			if arg.Kind != parse.Register {
				p.err = &ElementError{Elem: arg, Kind: CpuInstructionArg, Expected: expected}
				return false
			}
			args = append(args, Argument{Kind: ArgReg, Reg: arg.Reg})
		case isa.ArgNumber:
			switch arg.Kind {
			case parse.Number:
				args = append(args, Argument{Kind: ArgLiteral, Lit: arg.Num})
			case parse.Char:
				if arg.Ch > unicode.MaxASCII {
					return p.failElem(arg, NonAsciiCharAsArg)
				}
				args = append(args, Argument{Kind: ArgLiteral, Lit: uint16(arg.Ch)})
			case parse.Reference:
				args = append(args, Argument{Kind: ArgReference, Delta: arg.Delta})
			case parse.Variable:
				args = append(args, Argument{Kind: ArgVariable, Name: arg.Text})
			default:
				p.err = &ElementError{Elem: arg, Kind: CpuInstructionArg, Expected: expected}
				return false
			}
		}
	}

	p.in = Instruct{Pos: el.Pos, Labels: labels, Op: Op{Kind: OpCpuInstruction, Id: id, Args: args}}
	return true
}

// directive interprets one !name form. It reports whether an instruct was
// emitted and whether the outer loop must restart (an include began).
func (p *Processor) directive(el parse.Element, labels []string) (emitted, restart, ok bool) {
	emit := func(op Op) (bool, bool, bool) {
		p.in = Instruct{Pos: el.Pos, Labels: labels, Op: op}
		return true, false, true
	}
	fail := func() (bool, bool, bool) { return false, false, false }
	cont := func() (bool, bool, bool) { return false, false, true }

	switch el.Text {
	case "byte":
		n, ok := p.mustKind(parse.Number)
		if !ok {
			return fail()
		}
		if n.Num > 0xff {
			p.failElem(n, ProcessorInstructArg)
			return fail()
		}
		return emit(Op{Kind: OpInsertByte, B: uint8(n.Num)})

	case "bytes":
		b, ok := p.mustKind(parse.Number)
		if !ok {
			return fail()
		}
		if b.Num > 0xff {
			p.failElem(b, ProcessorInstructArg)
			return fail()
		}
		count, ok := p.mustKind(parse.Number)
		if !ok {
			return fail()
		}
		return emit(Op{Kind: OpInsertMultipleBytes, B: uint8(b.Num), Count: count.Num})

	case "word":
		n, ok := p.mustKind(parse.Number)
		if !ok {
			return fail()
		}
		return emit(Op{Kind: OpInsertWord, W: n.Num})

	case "cstr":
		s, ok := p.mustKind(parse.Str)
		if !ok {
			return fail()
		}
		if strings.ContainsRune(s.Text, 0) {
			p.failElem(s, ProcessorInstructArg)
			return fail()
		}
		return emit(Op{Kind: OpInsertCString, Str: s.Text})

	case "file":
		path, pel, ok := p.nextPath(p.relRoot, NoRelPathGiven)
		if !ok {
			return fail()
		}
		data, err := os.ReadFile(path)
		if err != nil {
			pel.Text = path
			p.err = &ElementError{Elem: pel, Kind: FailedToReadFile, Reason: err.Error()}
			return fail()
		}
		return emit(Op{Kind: OpInsertBytes, Bytes: data})

	case "set":
		name, ok := p.mustKind(parse.Variable)
		if !ok {
			return fail()
		}
		val, ok := p.mustKind(parse.Number)
		if !ok {
			return fail()
		}
		return emit(Op{Kind: OpSetVariable, Name: name.Text, Value: val.Num})

	case "include":
		return p.startInclude(el, false)

	case "lib":
		return p.startInclude(el, true)

	case "macro":
		name, ok := p.mustKind(parse.CpuInstruction)
		if !ok {
			return fail()
		}
		count, ok := p.mustKind(parse.Number)
		if !ok {
			return fail()
		}
		src, ok := p.mustKind(parse.Str)
		if !ok {
			return fail()
		}
		els, err := parse.Parse(src.Text)
		if err != nil {
			p.err = &ElementError{Elem: src, Kind: IncludedCodeParsingFailure, Err: err}
			return fail()
		}
		p.definedMacros[name.Text] = macroDef{subCount: int(count.Num), source: els}
		return cont()

	case "m":
		name, ok := p.mustKind(parse.CpuInstruction)
		if !ok {
			return fail()
		}
		def, found := p.definedMacros[name.Text]
		if !found {
			if def, found = p.includedMacros[name.Text]; !found {
				p.failElem(name, MacroName)
				return fail()
			}
		}
		subs := make([]parse.Element, 0, def.subCount)
		for i := 0; i < def.subCount; i++ {
			sub, ok := p.mustEl()
			if !ok {
				return fail()
			}
			subs = append(subs, sub)
		}
		p.active = append(p.active, newExpansion(def.source, subs))
		return cont()

	case "void":
		return emit(Op{Kind: OpVoid})

	default:
		p.failElem(el, ProcessorInstructName)
		return fail()
	}
}

// nextPath consumes a string element and resolves it under the given base
// per the path policy: absolute paths need the allow flag, relative paths
// must stay descendants of their base.
func (p *Processor) nextPath(base string, missing ElementErrorKind) (string, parse.Element, bool) {
	el, ok := p.mustKind(parse.Str)
	if !ok {
		return "", parse.Element{}, false
	}

	given := el.Text
	if filepath.IsAbs(given) {
		if !p.allowAbsPaths {
			return "", el, p.failElem(el, AbsolutePathsForbidden)
		}
		return filepath.Clean(given), el, true
	}

	if base == "" {
		return "", el, p.failElem(el, missing)
	}

	joined := filepath.Join(base, given)
	rel, err := filepath.Rel(base, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		el.Text = joined
		return "", el, p.failElem(el, PathBreaksOut)
	}
	return joined, el, true
}

func (p *Processor) startInclude(el parse.Element, lib bool) (bool, bool, bool) {
	base, missing := p.relRoot, NoRelPathGiven
	if lib {
		base, missing = p.libRoot, NoLibPathGiven
	}
	path, pel, ok := p.nextPath(base, missing)
	if !ok {
		return false, false, false
	}

	if macros, done := p.includedFiles[path]; done {
		for name, m := range macros {
			p.includedMacros[name] = m
		}
		return false, false, true
	}

	code, err := os.ReadFile(path)
	if err != nil {
		pel.Text = path
		p.err = &ElementError{Elem: pel, Kind: FailedToReadFile, Reason: err.Error()}
		return false, false, false
	}

	allow := p.allowAbsPaths || lib
	sub, _ := New(parse.New(lex.NewString(string(code))), p.libRoot, filepath.Dir(path), allow)
	sub.includedFiles = p.includedFiles
	p.cur = &child{proc: sub, path: path, pos: el.Pos}
	return false, true, true
}
