package parse

import (
	"errors"
	"testing"

	"github.com/oisee/mx16/pkg/isa"
	"github.com/oisee/mx16/pkg/lex"
)

func parseAll(t *testing.T, src string) []Element {
	t.Helper()
	els, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", src, err)
	}
	return els
}

func TestClassification(t *testing.T) {
	els := parseAll(t, `set !byte :loop %count $oa ~-2 @1 #d42 'A "hi"`)
	want := []Element{
		{Kind: CpuInstruction, Text: "set"},
		{Kind: ProcessorInstruction, Text: "byte"},
		{Kind: Label, Text: "loop"},
		{Kind: Variable, Text: "count"},
		{Kind: Register, Reg: isa.OA},
		{Kind: Reference, Delta: -2},
		{Kind: Substitute, Index: 1},
		{Kind: Number, Num: 42},
		{Kind: Char, Ch: 'A'},
		{Kind: Str, Text: "hi"},
	}
	if len(els) != len(want) {
		t.Fatalf("got %d elements, want %d", len(els), len(want))
	}
	for i, w := range want {
		got := els[i]
		got.Pos = lex.Pos{}
		if got != w {
			t.Errorf("element %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestNumberRadixes(t *testing.T) {
	tests := []struct {
		src  string
		want uint16
	}{
		{"#xFF", 255},
		{"#x1234", 0x1234},
		{"#o17", 15},
		{"#b1010", 10},
		{"#d65535", 65535},
	}
	for _, tc := range tests {
		els := parseAll(t, tc.src)
		if len(els) != 1 || els[0].Kind != Number || els[0].Num != tc.want {
			t.Errorf("Parse(%q) = %+v, want Number %d", tc.src, els, tc.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		kind ErrorKind
	}{
		{"#q12", BadIntegerRadix},
		{"#dxyz", BadInteger},
		{"#d70000", BadInteger},
		{"$zz", BadRegister},
		{"'ab", BadChar},
		{"~abc", BadReference},
		{"@x", BadSubstitute},
	}
	for _, tc := range tests {
		_, err := Parse(tc.src)
		var perr *Error
		if !errors.As(err, &perr) {
			t.Errorf("Parse(%q): got %v, want parse error", tc.src, err)
			continue
		}
		if perr.Kind != tc.kind {
			t.Errorf("Parse(%q): kind = %v, want %v", tc.src, perr.Kind, tc.kind)
		}
	}
}

func TestLexErrorPropagates(t *testing.T) {
	_, err := Parse(`"unterminated`)
	var lerr *lex.Error
	if !errors.As(err, &lerr) {
		t.Fatalf("expected wrapped lex error, got %v", err)
	}
	if lerr.Kind != lex.UnclosedSurroundPair {
		t.Errorf("kind = %v, want UnclosedSurroundPair", lerr.Kind)
	}
}

func TestStickyError(t *testing.T) {
	p := New(lex.NewString("skip $zz skip"))
	if !p.Scan() {
		t.Fatal("first element expected")
	}
	if p.Scan() {
		t.Fatal("second Scan should fail")
	}
	first := p.Err()
	for i := 0; i < 3; i++ {
		if p.Scan() {
			t.Fatal("Scan should keep failing")
		}
		if p.Err() != first {
			t.Fatal("Err should keep returning the same error")
		}
	}
}

func TestScenarioLexParse(t *testing.T) {
	// The #xFF word parses to the number literal 255.
	words, err := lex.Lex("#xFF")
	if err != nil || len(words) != 1 {
		t.Fatalf("lex: %v %v", words, err)
	}
	if words[0].Prefix != '#' || words[0].Value != "xFF" {
		t.Errorf("word = %+v", words[0])
	}
	els := parseAll(t, "#xFF")
	if els[0].Kind != Number || els[0].Num != 255 {
		t.Errorf("element = %+v", els[0])
	}
}
