package back

import (
	"context"
	"fmt"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/LaimeJesus/parseo2021-tp/compiler/ast"
	"github.com/LaimeJesus/parseo2021-tp/compiler/env"
	"github.com/LaimeJesus/parseo2021-tp/compiler/isa"
	"github.com/LaimeJesus/parseo2021-tp/compiler/tags"
)

type (
	// Dispatch selects what case compares the scrutinee tag with.
	Dispatch int

	Options struct {
		Dispatch Dispatch
	}

	// Compiler holds the state of one compilation.
	// Create a new one for every program.
	Compiler struct {
		Options

		tags *tags.Registry
		env  *env.Env

		labels   int
		routines int

		used bool
	}

	// Routine is a lambda body emitted once as a standalone block.
	Routine struct {
		Label isa.Label
		Code  []isa.Instr
		Free  []string
	}

	// Fragment is the result of lowering a subtree:
	// its inline code and the routines it defined.
	Fragment struct {
		Code     []isa.Instr
		Routines []Routine
	}

	RedefinedError struct {
		Name string
	}

	// ReservedNameError is returned for a definition named like a generated label.
	ReservedNameError struct {
		Name string
	}
)

const (
	// DispatchByPosition compares the tag with the branch index.
	DispatchByPosition Dispatch = iota
	// DispatchByTag compares the tag with the branch constructor tag.
	DispatchByTag
)

var ErrCompilerReused = errors.New("compiler reused")

func New(opts Options) *Compiler {
	return &Compiler{
		Options: opts,
		tags:    tags.New(),
		env:     env.New(),
	}
}

func (c *Compiler) Tags() *tags.Registry { return c.tags }

// CompileProgram lowers p into a single instruction stream:
// jump to the first definition, all routines, then all definitions in order.
func (c *Compiler) CompileProgram(ctx context.Context, p ast.Program) (code []isa.Instr, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile program", "defs", len(p), "dispatch", c.Dispatch)
	defer tr.Finish("err", &err)

	if c.used {
		return nil, ErrCompilerReused
	}

	c.used = true

	for _, d := range p {
		if generatedLabel(d.Name) {
			return nil, NewReservedName(d.Name)
		}

		if !c.env.DeclareGlobal(d.Name) {
			return nil, NewRedefined(d.Name)
		}
	}

	tr.Printw("globals", "names", c.env.Globals())

	var defs Fragment

	for _, d := range p {
		f, err := c.compileDef(ctx, c.env, d)
		if err != nil {
			return nil, errors.Wrap(err, "def %v", d.Name)
		}

		defs.Append(f)
	}

	if len(p) == 0 {
		return nil, nil
	}

	code = append(code, isa.Jump{Label: isa.Label(p[0].Name)})

	for _, r := range defs.Routines {
		code = append(code, r.Code...)
	}

	code = append(code, defs.Code...)

	tr.Printw("compiled", "instrs", len(code), "routines", len(defs.Routines), "tags", len(c.tags.Names()))

	return code, nil
}

func (c *Compiler) compileDef(ctx context.Context, e *env.Env, d ast.Def) (f Fragment, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: def", "name", d.Name)
	defer tr.Finish("err", &err)

	r0 := e.Fresh()

	f.Emit(isa.Mark{Label: isa.Label(d.Name)})

	body, err := c.compileExpr(ctx, e, d.Body, r0)
	if err != nil {
		return f, err
	}

	f.Append(body)
	f.Emit(isa.MovReg{Dst: isa.Global(d.Name), Src: r0})

	return f, nil
}

// compileExpr emits code leaving reference to the value of x in dst.
func (c *Compiler) compileExpr(ctx context.Context, e *env.Env, x ast.Expr, dst isa.Reg) (Fragment, error) {
	switch x := x.(type) {
	case ast.Var:
		return c.compileVar(ctx, e, x, dst)
	case ast.Constructor:
		return c.compileConstructor(ctx, e, x, dst)
	case ast.Number:
		return c.compileBoxed(ctx, e, tags.Num, x.Value, dst)
	case ast.Char:
		return c.compileBoxed(ctx, e, tags.Char, x.Value, dst)
	case ast.Case:
		return c.compileCase(ctx, e, x, dst)
	case ast.Let:
		return c.compileLet(ctx, e, x, dst)
	case ast.Lambda:
		return c.compileLambda(ctx, e, x, dst)
	case ast.Apply:
		return c.compileApply(ctx, e, x, dst)
	case nil:
		return Fragment{}, ast.NewUnsupportedConstruct("<nil>")
	default:
		return Fragment{}, ast.NewUnsupportedConstruct(x.Kind())
	}
}

// compileBoxed allocates [tag, value] object.
func (c *Compiler) compileBoxed(ctx context.Context, e *env.Env, name string, v int64, dst isa.Reg) (f Fragment, err error) {
	t := c.tag(ctx, name, 2)

	tmp := e.Fresh()
	r0 := e.Fresh()

	f.Emit(
		isa.Alloc{Dst: r0, Slots: t.Size},
		isa.MovInt{Dst: tmp, Value: int64(t.ID)},
		isa.Store{Dst: r0, Index: 0, Src: tmp},
		isa.MovInt{Dst: tmp, Value: v},
		isa.Store{Dst: r0, Index: 1, Src: tmp},
		isa.MovReg{Dst: dst, Src: r0},
	)

	return f, nil
}

// compileConstructor allocates the object and stores the tag only.
// Arguments are stored by compileConstruct.
func (c *Compiler) compileConstructor(ctx context.Context, e *env.Env, x ast.Constructor, dst isa.Reg) (f Fragment, err error) {
	t := c.tag(ctx, x.Name, 1)

	tmp := e.Fresh()
	r0 := e.Fresh()

	f.Emit(
		isa.Alloc{Dst: r0, Slots: t.Size},
		isa.MovInt{Dst: tmp, Value: int64(t.ID)},
		isa.Store{Dst: r0, Index: 0, Src: tmp},
		isa.MovReg{Dst: dst, Src: r0},
	)

	return f, nil
}

// compileVar moves the value of x into dst.
// Primitives instead print the payload of the value already in dst.
func (c *Compiler) compileVar(ctx context.Context, e *env.Env, x ast.Var, dst isa.Reg) (f Fragment, err error) {
	if e.IsPrimitive(x.Name) {
		r := e.Fresh()

		f.Emit(isa.Load{Dst: r, Src: dst, Index: 1})

		if x.Name == env.PrintChar {
			f.Emit(isa.PrintChar{Src: r})
		} else {
			f.Emit(isa.Print{Src: r})
		}

		return f, nil
	}

	b, err := e.Get(x.Name)
	if err != nil {
		return f, err
	}

	switch b := b.(type) {
	case env.Register:
		f.Emit(isa.MovReg{Dst: dst, Src: b.Reg})
	case env.Enclosed:
		if e.Closure() == "" {
			return f, errors.New("enclosed %v outside of routine", x.Name)
		}

		f.Emit(isa.Load{Dst: dst, Src: e.Closure(), Index: b.Slot()})
	default:
		return f, errors.New("unsupported binding: %T", b)
	}

	return f, nil
}

func (c *Compiler) compileLet(ctx context.Context, e *env.Env, x ast.Let, dst isa.Reg) (f Fragment, err error) {
	tmp := e.Fresh()

	val, err := c.compileExpr(ctx, e, x.Value, tmp)
	if err != nil {
		return f, errors.Wrap(err, "let %v: value", x.Name)
	}

	f.Append(val)

	restore := e.Shadow(x.Name, env.Register{Name: x.Name, Reg: tmp})
	defer restore()

	body, err := c.compileExpr(ctx, e, x.Body, dst)
	if err != nil {
		return f, errors.Wrap(err, "let %v", x.Name)
	}

	f.Append(body)

	return f, nil
}

func (c *Compiler) compileCase(ctx context.Context, e *env.Env, x ast.Case, dst isa.Reg) (f Fragment, err error) {
	val := e.Fresh()
	tag := e.Fresh()
	test := e.Fresh()

	id := c.nextLabel()
	end := caseLabel(id, "end")

	scr, err := c.compileExpr(ctx, e, x.Scrutinee, val)
	if err != nil {
		return f, errors.Wrap(err, "case: scrutinee")
	}

	f.Append(scr)
	f.Emit(isa.Load{Dst: tag, Src: val, Index: 0})

	for i, b := range x.Branches {
		want := int64(i)

		if c.Dispatch == DispatchByTag {
			t := c.tag(ctx, b.Constructor, len(b.Params)+1)
			want = int64(t.ID)
		}

		f.Emit(
			isa.MovInt{Dst: test, Value: want},
			isa.JumpEq{L: tag, R: test, Label: caseLabel(id, i)},
		)
	}

	for i, b := range x.Branches {
		f.Emit(isa.Mark{Label: caseLabel(id, i)})

		bf, err := c.compileBranch(ctx, e, b, val, dst)
		if err != nil {
			return f, errors.Wrap(err, "case: branch %v", b.Constructor)
		}

		f.Append(bf)
		f.Emit(isa.Jump{Label: end})
	}

	f.Emit(isa.Mark{Label: end})

	return f, nil
}

// compileBranch binds branch params to the fields of the scrutinee in val
// and compiles the body into dst.
func (c *Compiler) compileBranch(ctx context.Context, e *env.Env, b ast.Branch, val, dst isa.Reg) (f Fragment, err error) {
	for i, p := range b.Params {
		r := e.Fresh()

		restore := e.Shadow(p, env.Register{Name: p, Reg: r})
		defer restore()

		f.Emit(isa.Load{Dst: r, Src: val, Index: i + 1})
	}

	body, err := c.compileExpr(ctx, e, b.Body, dst)
	if err != nil {
		return f, err
	}

	f.Append(body)

	return f, nil
}

func (c *Compiler) tag(ctx context.Context, name string, size int) tags.Tag {
	t, added := c.tags.Tag(name, size)

	if added {
		tlog.SpanFromContext(ctx).Printw("tag", "name", name, "tag", t)
	}

	return t
}

func (c *Compiler) nextLabel() int {
	c.labels++

	return c.labels
}

func caseLabel(id int, branch any) isa.Label {
	return isa.Label(fmt.Sprintf("case_%d_%v", id, branch))
}

// generatedLabel reports whether name has the form of rtn_<n>, case_<n>_<i> or case_<n>_end.
func generatedLabel(name string) bool {
	if n, ok := strings.CutPrefix(name, "rtn_"); ok {
		return number(n)
	}

	rest, ok := strings.CutPrefix(name, "case_")
	if !ok {
		return false
	}

	id, branch, ok := strings.Cut(rest, "_")

	return ok && number(id) && (branch == "end" || number(branch))
}

func number(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

func (f *Fragment) Emit(x ...isa.Instr) {
	f.Code = append(f.Code, x...)
}

// Append adds g code after f code.
func (f *Fragment) Append(g Fragment) {
	f.Code = append(f.Code, g.Code...)
	f.Routines = append(f.Routines, g.Routines...)
}

// Prepend adds g code before f code. Routines are still appended.
func (f *Fragment) Prepend(g Fragment) {
	f.Code = append(g.Code[:len(g.Code):len(g.Code)], f.Code...)
	f.Routines = append(f.Routines, g.Routines...)
}

func NewRedefined(name string) RedefinedError {
	return RedefinedError{
		Name: name,
	}
}

func (e RedefinedError) Error() string {
	return fmt.Sprintf("name redefined: %v", e.Name)
}

func NewReservedName(name string) ReservedNameError {
	return ReservedNameError{
		Name: name,
	}
}

func (e ReservedNameError) Error() string {
	return fmt.Sprintf("name is reserved for generated labels: %v", e.Name)
}

func (d Dispatch) String() string {
	switch d {
	case DispatchByPosition:
		return "position"
	case DispatchByTag:
		return "tag"
	default:
		return fmt.Sprintf("Dispatch(%d)", int(d))
	}
}

// ParseDispatch is the inverse of Dispatch.String.
func ParseDispatch(s string) (Dispatch, error) {
	switch s {
	case "", "position":
		return DispatchByPosition, nil
	case "tag":
		return DispatchByTag, nil
	default:
		return 0, errors.New("unknown dispatch: %q", s)
	}
}
