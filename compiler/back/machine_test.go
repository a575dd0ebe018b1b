package back

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"tlog.app/go/errors"

	"github.com/LaimeJesus/parseo2021-tp/compiler/isa"
)

type (
	// machine runs instruction streams in tests.
	// Virtual registers are private to a call frame,
	// @-registers are shared by all frames.
	machine struct {
		code   []isa.Instr
		labels map[isa.Label]int

		heap    [][]int64
		shared  map[isa.Reg]int64
		frames  []frame
		out     strings.Builder
		calls   int
		steps   int
		maxStep int
	}

	frame struct {
		ret  int
		regs map[isa.Reg]int64
	}
)

func newMachine(code []isa.Instr) *machine {
	m := &machine{
		code:    code,
		labels:  map[isa.Label]int{},
		shared:  map[isa.Reg]int64{},
		frames:  []frame{{ret: -1, regs: map[isa.Reg]int64{}}},
		maxStep: 100000,
	}

	for pc, x := range code {
		if l, ok := x.(isa.Mark); ok {
			m.labels[l.Label] = pc
		}
	}

	return m
}

func run(t testing.TB, code []isa.Instr) *machine {
	t.Helper()

	m := newMachine(code)

	err := m.run()
	require.NoError(t, err)

	return m
}

func (m *machine) run() error {
	for pc := 0; pc < len(m.code); {
		m.steps++
		if m.steps > m.maxStep {
			return errors.New("step limit exceeded")
		}

		next, err := m.step(pc)
		if err != nil {
			return errors.Wrap(err, "pc %d: %v", pc, m.code[pc])
		}

		pc = next
	}

	return nil
}

func (m *machine) step(pc int) (int, error) {
	switch x := m.code[pc].(type) {
	case isa.Mark:
	case isa.MovReg:
		v, err := m.get(x.Src)
		if err != nil {
			return 0, err
		}

		m.set(x.Dst, v)
	case isa.MovInt:
		m.set(x.Dst, x.Value)
	case isa.MovLabel:
		addr, ok := m.labels[x.Label]
		if !ok {
			return 0, errors.New("no label %v", x.Label)
		}

		m.set(x.Dst, int64(addr))
	case isa.Alloc:
		m.heap = append(m.heap, make([]int64, x.Slots))
		m.set(x.Dst, int64(len(m.heap)-1))
	case isa.Load:
		obj, err := m.object(x.Src, x.Index)
		if err != nil {
			return 0, err
		}

		m.set(x.Dst, obj[x.Index])
	case isa.Store:
		obj, err := m.object(x.Dst, x.Index)
		if err != nil {
			return 0, err
		}

		v, err := m.get(x.Src)
		if err != nil {
			return 0, err
		}

		obj[x.Index] = v
	case isa.Print:
		v, err := m.get(x.Src)
		if err != nil {
			return 0, err
		}

		m.out.WriteString(strconv.FormatInt(v, 10))
	case isa.PrintChar:
		v, err := m.get(x.Src)
		if err != nil {
			return 0, err
		}

		m.out.WriteRune(rune(v))
	case isa.Jump:
		return m.jump(x.Label)
	case isa.JumpEq:
		l, err := m.get(x.L)
		if err != nil {
			return 0, err
		}

		r, err := m.get(x.R)
		if err != nil {
			return 0, err
		}

		if l == r {
			return m.jump(x.Label)
		}
	case isa.ICall:
		addr, err := m.get(x.Src)
		if err != nil {
			return 0, err
		}

		if addr < 0 || addr >= int64(len(m.code)) {
			return 0, errors.New("call to bad address %d", addr)
		}

		if _, ok := m.code[addr].(isa.Mark); !ok {
			return 0, errors.New("call to non routine address %d", addr)
		}

		m.calls++
		m.frames = append(m.frames, frame{ret: pc + 1, regs: map[isa.Reg]int64{}})

		return int(addr), nil
	case isa.Return:
		top := m.frames[len(m.frames)-1]
		if top.ret < 0 {
			return 0, errors.New("return from top level")
		}

		m.frames = m.frames[:len(m.frames)-1]

		return top.ret, nil
	default:
		return 0, errors.New("unsupported instruction: %T", x)
	}

	return pc + 1, nil
}

func (m *machine) jump(l isa.Label) (int, error) {
	pc, ok := m.labels[l]
	if !ok {
		return 0, errors.New("no label %v", l)
	}

	return pc, nil
}

func (m *machine) get(r isa.Reg) (int64, error) {
	regs := m.regs(r)

	v, ok := regs[r]
	if !ok {
		return 0, errors.New("read of unset register %v", r)
	}

	return v, nil
}

func (m *machine) set(r isa.Reg, v int64) {
	m.regs(r)[r] = v
}

func (m *machine) regs(r isa.Reg) map[isa.Reg]int64 {
	if r.IsVirtual() {
		return m.frames[len(m.frames)-1].regs
	}

	return m.shared
}

func (m *machine) object(r isa.Reg, idx int) ([]int64, error) {
	p, err := m.get(r)
	if err != nil {
		return nil, err
	}

	if p < 0 || int(p) >= len(m.heap) {
		return nil, errors.New("bad pointer %d in %v", p, r)
	}

	obj := m.heap[p]

	if idx < 0 || idx >= len(obj) {
		return nil, errors.New("slot %d out of object of size %d", idx, len(obj))
	}

	return obj, nil
}

// global returns heap object referenced by the global of a definition.
func (m *machine) global(t testing.TB, name string) []int64 {
	t.Helper()

	p, ok := m.shared[isa.Global(name)]
	require.True(t, ok, "global %v is not set", name)
	require.True(t, p >= 0 && int(p) < len(m.heap), "global %v: bad pointer %d", name, p)

	return m.heap[p]
}

// field follows pointer in slot i of obj.
func (m *machine) field(t testing.TB, obj []int64, i int) []int64 {
	t.Helper()

	require.Less(t, i, len(obj))

	p := obj[i]
	require.True(t, p >= 0 && int(p) < len(m.heap), "bad pointer %d", p)

	return m.heap[p]
}
