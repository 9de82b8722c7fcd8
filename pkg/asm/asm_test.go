package asm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/oisee/mx16/pkg/lex"
	"github.com/oisee/mx16/pkg/parse"
	"github.com/oisee/mx16/pkg/proc"
)

func parseOf(src string) *parse.Parser {
	return parse.New(lex.NewString(src))
}

func assemble(t *testing.T, src string) []byte {
	t.Helper()
	ins, err := proc.Process(src)
	if err != nil {
		t.Fatalf("Process(%q) failed: %v", src, err)
	}
	prog, err := Assemble(ins)
	if err != nil {
		t.Fatalf("Assemble(%q) failed: %v", src, err)
	}
	return prog
}

func TestSimpleImage(t *testing.T) {
	prog := assemble(t, "set $oa #x1234 copy $ga $gb stop")
	want := []byte{
		0x10, 0x10, 0x34, 0x12,
		0x14, 0x20, 0x21,
		0x03,
	}
	if !bytes.Equal(prog, want) {
		t.Errorf("image = % x, want % x", prog, want)
	}
}

func TestCstr(t *testing.T) {
	prog := assemble(t, `!cstr "Hi"`)
	if !bytes.Equal(prog, []byte{0x48, 0x69, 0x00}) {
		t.Errorf("image = % x", prog)
	}
}

func TestDataLayout(t *testing.T) {
	prog := assemble(t, "!byte #d1 !bytes #d9 #d4 !word #xbeef")
	want := []byte{1, 9, 9, 9, 9, 0xef, 0xbe}
	if !bytes.Equal(prog, want) {
		t.Errorf("image = % x, want % x", prog, want)
	}
}

// TestBranchReference is the canonical forward-branch image: the ~2
// reference on the first instruct resolves to the end of the second one.
func TestBranchReference(t *testing.T) {
	prog := assemble(t, "set $si ~2 set $oa #d5 set $oa #d7")
	want := []byte{
		0x10, 0x00, 0x08, 0x00,
		0x10, 0x10, 0x05, 0x00,
		0x10, 0x10, 0x07, 0x00,
	}
	if len(prog) != 12 {
		t.Fatalf("image is %d bytes, want 12", len(prog))
	}
	if !bytes.Equal(prog, want) {
		t.Errorf("image = % x, want % x", prog, want)
	}
}

func TestBackwardReference(t *testing.T) {
	// ~-1 from the second instruct is the start of the first.
	prog := assemble(t, "skip set $si ~-1")
	want := []byte{0x00, 0x10, 0x00, 0x00, 0x00}
	if !bytes.Equal(prog, want) {
		t.Errorf("image = % x, want % x", prog, want)
	}
}

func TestLabelsResolve(t *testing.T) {
	prog := assemble(t, "!byte #d0 :loop set $si %loop")
	// The label sits after the 1-byte prefix, so %loop = 1.
	want := []byte{0x00, 0x10, 0x00, 0x01, 0x00}
	if !bytes.Equal(prog, want) {
		t.Errorf("image = % x, want % x", prog, want)
	}
}

func TestVariables(t *testing.T) {
	prog := assemble(t, "!set %v #d258 set $oa %v !set %v #d3 set $ob %v")
	want := []byte{
		0x10, 0x10, 0x02, 0x01,
		0x10, 0x11, 0x03, 0x00,
	}
	if !bytes.Equal(prog, want) {
		t.Errorf("image = % x, want % x", prog, want)
	}
}

func TestAddressMonotonicity(t *testing.T) {
	src := "set $oa #d1 copy $ga $gb skip !word #d9 stop"
	ins, err := proc.Process(src)
	if err != nil {
		t.Fatal(err)
	}
	addr := 0
	for _, in := range ins {
		addr += in.Op.Size()
	}
	prog, err := Assemble(ins)
	if err != nil {
		t.Fatal(err)
	}
	if len(prog) != addr {
		t.Errorf("image is %d bytes, layout says %d", len(prog), addr)
	}
}

func TestAssemblingErrors(t *testing.T) {
	tests := []struct {
		src  string
		kind InstructErrorKind
	}{
		{":here skip !set %here #d1", ModifyingLabel},
		{"set $oa ~5", ReferenceOutOfBounds},
		{"set $oa ~-3", ReferenceOutOfBounds},
		{"set $oa %ghost", UnknownVariable},
	}
	for _, tc := range tests {
		ins, err := proc.Process(tc.src)
		if err != nil {
			t.Fatalf("Process(%q) failed: %v", tc.src, err)
		}
		_, err = Assemble(ins)
		var ierr *InstructError
		if !errors.As(err, &ierr) {
			t.Errorf("Assemble(%q): got %v, want instruct error", tc.src, err)
			continue
		}
		if ierr.Kind != tc.kind {
			t.Errorf("Assemble(%q): kind = %v, want %v", tc.src, ierr.Kind, tc.kind)
		}
	}
}

func TestProgTooLarge(t *testing.T) {
	ins, err := proc.Process("!bytes #d0 #d65535 !bytes #d0 #d2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err = Assemble(ins); !errors.Is(err, ErrProgTooLarge) {
		t.Errorf("got %v, want ErrProgTooLarge", err)
	}
}

func TestProcessingErrorAborts(t *testing.T) {
	p, err := proc.New(parseOf("skip $zz"), "", "", false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err = AssembleStream(p); err == nil {
		t.Error("expected the parse failure to abort assembly")
	}
}
