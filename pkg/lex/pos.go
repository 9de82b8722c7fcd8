package lex

import "fmt"

// Pos is a source location. Line and Column are zero-based; Abs is the
// absolute rune offset.
type Pos struct {
	Abs    int
	Line   int
	Column int
}

func (p *Pos) nextLine() {
	p.Abs++
	p.Line++
	p.Column = 0
}

func (p *Pos) nextCol() {
	p.Abs++
	p.Column++
}

func (p Pos) String() string {
	return fmt.Sprintf("@%d:%02d", p.Line+1, p.Column+1)
}
