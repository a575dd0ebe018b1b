package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstrText(t *testing.T) {
	r1, r2 := Virtual(1), Virtual(2)

	for _, tc := range []struct {
		x    Instr
		text string
	}{
		{Mark{Label: "main"}, "main:"},
		{MovReg{Dst: r1, Src: Fun}, "mov_reg($r1, @fun)"},
		{MovInt{Dst: r2, Value: -42}, "mov_int($r2, -42)"},
		{MovLabel{Dst: r1, Label: "rtn_0"}, "mov_label($r1, rtn_0)"},
		{Alloc{Dst: r1, Slots: 3}, "alloc($r1, 3)"},
		{Load{Dst: r2, Src: r1, Index: 1}, "load($r2, $r1, 1)"},
		{Store{Dst: r1, Index: 0, Src: r2}, "store($r1, 0, $r2)"},
		{Print{Src: r1}, "print($r1)"},
		{PrintChar{Src: r2}, "print_char($r2)"},
		{Jump{Label: "end"}, "jump(end)"},
		{JumpEq{L: r1, R: r2, Label: "b0"}, "jump_eq($r1, $r2, b0)"},
		{ICall{Src: r2}, "icall($r2)"},
		{Return{}, "return()"},
	} {
		assert.Equal(t, tc.text, string(tc.x.Append(nil)))
	}
}

func TestRegKinds(t *testing.T) {
	assert.Equal(t, Reg("$r7"), Virtual(7))
	assert.Equal(t, Reg("@G_main"), Global("main"))

	assert.True(t, Virtual(1).IsVirtual())
	assert.False(t, Virtual(1).IsGlobal())
	assert.True(t, Global("f").IsGlobal())
	assert.False(t, Fun.IsGlobal())
	assert.False(t, Res.IsVirtual())
}
