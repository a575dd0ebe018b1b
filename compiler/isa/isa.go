// Package isa describes the abstract register machine the code generator
// targets: registers, labels, instruction records and label markers.
//
// Heap values are tagged objects. Slot 0 of every object holds its tag,
// the rest hold the payload.
package isa

import (
	"strconv"
	"strings"

	"github.com/nikandfor/hacked/hfmt"
)

type (
	Reg   string
	Label string

	// Instr is an instruction or a label marker.
	Instr interface {
		Append(b []byte) []byte
	}

	// Mark places Label at this point of the stream.
	Mark struct {
		Label Label
	}

	MovReg struct {
		Dst Reg
		Src Reg
	}

	MovInt struct {
		Dst   Reg
		Value int64
	}

	// MovLabel loads the address of Label.
	MovLabel struct {
		Dst   Reg
		Label Label
	}

	Alloc struct {
		Dst   Reg
		Slots int
	}

	// Load is Dst := Src[Index].
	Load struct {
		Dst   Reg
		Src   Reg
		Index int
	}

	// Store is Dst[Index] := Src.
	Store struct {
		Dst   Reg
		Index int
		Src   Reg
	}

	Print struct {
		Src Reg
	}

	PrintChar struct {
		Src Reg
	}

	Jump struct {
		Label Label
	}

	JumpEq struct {
		L, R  Reg
		Label Label
	}

	// ICall calls the routine whose address is in Src.
	ICall struct {
		Src Reg
	}

	Return struct{}
)

// Calling convention registers.
const (
	Fun Reg = "@fun"
	Arg Reg = "@arg"
	Res Reg = "@res"
)

const (
	virtualPrefix = "$r"
	globalPrefix  = "@G_"
)

func Virtual(n int) Reg {
	return Reg(virtualPrefix + strconv.Itoa(n))
}

func Global(name string) Reg {
	return Reg(globalPrefix + name)
}

func (r Reg) IsVirtual() bool { return strings.HasPrefix(string(r), virtualPrefix) }
func (r Reg) IsGlobal() bool  { return strings.HasPrefix(string(r), globalPrefix) }

func (x Mark) Append(b []byte) []byte { return hfmt.Appendf(b, "%s:", x.Label) }

func (x MovReg) Append(b []byte) []byte {
	return hfmt.Appendf(b, "mov_reg(%s, %s)", x.Dst, x.Src)
}

func (x MovInt) Append(b []byte) []byte {
	return hfmt.Appendf(b, "mov_int(%s, %d)", x.Dst, x.Value)
}

func (x MovLabel) Append(b []byte) []byte {
	return hfmt.Appendf(b, "mov_label(%s, %s)", x.Dst, x.Label)
}

func (x Alloc) Append(b []byte) []byte {
	return hfmt.Appendf(b, "alloc(%s, %d)", x.Dst, x.Slots)
}

func (x Load) Append(b []byte) []byte {
	return hfmt.Appendf(b, "load(%s, %s, %d)", x.Dst, x.Src, x.Index)
}

func (x Store) Append(b []byte) []byte {
	return hfmt.Appendf(b, "store(%s, %d, %s)", x.Dst, x.Index, x.Src)
}

func (x Print) Append(b []byte) []byte { return hfmt.Appendf(b, "print(%s)", x.Src) }

func (x PrintChar) Append(b []byte) []byte {
	return hfmt.Appendf(b, "print_char(%s)", x.Src)
}

func (x Jump) Append(b []byte) []byte { return hfmt.Appendf(b, "jump(%s)", x.Label) }

func (x JumpEq) Append(b []byte) []byte {
	return hfmt.Appendf(b, "jump_eq(%s, %s, %s)", x.L, x.R, x.Label)
}

func (x ICall) Append(b []byte) []byte { return hfmt.Appendf(b, "icall(%s)", x.Src) }

func (Return) Append(b []byte) []byte { return append(b, "return()"...) }

func (x Mark) String() string      { return string(x.Append(nil)) }
func (x MovReg) String() string    { return string(x.Append(nil)) }
func (x MovInt) String() string    { return string(x.Append(nil)) }
func (x MovLabel) String() string  { return string(x.Append(nil)) }
func (x Alloc) String() string     { return string(x.Append(nil)) }
func (x Load) String() string      { return string(x.Append(nil)) }
func (x Store) String() string     { return string(x.Append(nil)) }
func (x Print) String() string     { return string(x.Append(nil)) }
func (x PrintChar) String() string { return string(x.Append(nil)) }
func (x Jump) String() string      { return string(x.Append(nil)) }
func (x JumpEq) String() string    { return string(x.Append(nil)) }
func (x ICall) String() string     { return string(x.Append(nil)) }
func (x Return) String() string    { return string(x.Append(nil)) }
