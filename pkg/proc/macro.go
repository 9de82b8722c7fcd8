package proc

import "github.com/oisee/mx16/pkg/parse"

// macroDef is a stored macro: an element sequence with numbered substitution
// holes and the count of arguments an expansion must supply.
type macroDef struct {
	subCount int
	source   []parse.Element
}

// expansion drains a macro body element by element, splicing in the stored
// substitution arguments. Bodies are kept reversed so nested expansions
// stack naturally.
type expansion struct {
	elems []parse.Element
	subs  []parse.Element
}

func newExpansion(source, subs []parse.Element) *expansion {
	elems := make([]parse.Element, len(source))
	for i, el := range source {
		elems[len(source)-1-i] = el
	}
	return &expansion{elems: elems, subs: subs}
}

func (x *expansion) next() (parse.Element, bool) {
	if len(x.elems) == 0 {
		return parse.Element{}, false
	}
	el := x.elems[len(x.elems)-1]
	x.elems = x.elems[:len(x.elems)-1]
	if el.Kind == parse.Substitute && el.Index < len(x.subs) {
		el = x.subs[el.Index]
	}
	return el, true
}
