package back

import (
	"context"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/LaimeJesus/parseo2021-tp/compiler/analyze"
	"github.com/LaimeJesus/parseo2021-tp/compiler/ast"
	"github.com/LaimeJesus/parseo2021-tp/compiler/env"
	"github.com/LaimeJesus/parseo2021-tp/compiler/isa"
	"github.com/LaimeJesus/parseo2021-tp/compiler/tags"
)

// compileLambda emits the body of x as a Routine and
// code allocating the closure into dst.
//
// Closure layout: [Closure tag, routine label, free values...].
func (c *Compiler) compileLambda(ctx context.Context, e *env.Env, x ast.Lambda, dst isa.Reg) (f Fragment, err error) {
	label := c.nextRoutine()

	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: routine", "label", label, "param", x.Param)
	defer tr.Finish("err", &err)

	free := analyze.FreeVariables(x, e)

	fun := e.Fresh()
	arg := e.Fresh()
	res := e.Fresh()

	re := e.Routine(fun)
	re.Bind(x.Param, env.Register{Name: x.Param, Reg: arg})

	for i, name := range free {
		re.Bind(name, env.Enclosed{Name: name, Index: i})
	}

	var rf Fragment

	rf.Emit(
		isa.Mark{Label: label},
		isa.MovReg{Dst: fun, Src: isa.Fun},
		isa.MovReg{Dst: arg, Src: isa.Arg},
	)

	body, err := c.compileExpr(ctx, re, x.Body, res)
	if err != nil {
		return f, errors.Wrap(err, "lambda %v", x.Param)
	}

	rf.Append(body)
	rf.Emit(
		isa.MovReg{Dst: isa.Res, Src: res},
		isa.Return{},
	)

	f.Routines = append(f.Routines, rf.Routines...)
	f.Routines = append(f.Routines, Routine{
		Label: label,
		Code:  rf.Code,
		Free:  free,
	})

	tr.Printw("routine", "free", free, "instrs", len(rf.Code), "env", re)

	vals := make([]isa.Reg, len(free))

	for i, name := range free {
		vals[i] = e.Fresh()

		vf, err := c.compileVar(ctx, e, ast.Var{Name: name}, vals[i])
		if err != nil {
			return f, errors.Wrap(err, "lambda %v: capture", x.Param)
		}

		f.Append(vf)
	}

	t := c.tag(ctx, tags.Closure, 1)

	r0 := e.Fresh()
	tmp := e.Fresh()

	f.Emit(
		isa.Alloc{Dst: r0, Slots: env.CaptureOffset + len(free)},
		isa.MovInt{Dst: tmp, Value: int64(t.ID)},
		isa.Store{Dst: r0, Index: 0, Src: tmp},
		isa.MovLabel{Dst: tmp, Label: label},
		isa.Store{Dst: r0, Index: 1, Src: tmp},
	)

	for i, v := range vals {
		f.Emit(isa.Store{Dst: r0, Index: env.CaptureOffset + i, Src: v})
	}

	f.Emit(isa.MovReg{Dst: dst, Src: r0})

	return f, nil
}

func (c *Compiler) compileApply(ctx context.Context, e *env.Env, x ast.Apply, dst isa.Reg) (f Fragment, err error) {
	head, args := ast.Spine(x)

	if h, ok := head.(ast.Constructor); ok {
		return c.compileConstruct(ctx, e, h, args, dst)
	}

	fn, ok := x.Func.(ast.Var)

	switch {
	case ok && e.IsPrimitive(fn.Name):
		arg, err := c.compileExpr(ctx, e, x.Arg, dst)
		if err != nil {
			return f, errors.Wrap(err, "%v", fn.Name)
		}

		f.Append(arg)

		pr, err := c.compileVar(ctx, e, fn, dst)
		if err != nil {
			return f, err
		}

		f.Append(pr)

		return f, nil
	case ok:
		fr := e.Fresh()
		ar := e.Fresh()

		arg, err := c.compileExpr(ctx, e, x.Arg, ar)
		if err != nil {
			return f, errors.Wrap(err, "%v: arg", fn.Name)
		}

		f.Append(arg)

		fv, err := c.compileVar(ctx, e, fn, fr)
		if err != nil {
			return f, err
		}

		f.Append(fv)
		f.Append(c.call(e, fr, ar, dst))

		return f, nil
	}

	fr := e.Fresh()
	ar := e.Fresh()

	fv, err := c.compileExpr(ctx, e, x.Func, fr)
	if err != nil {
		return f, errors.Wrap(err, "apply: func")
	}

	f.Append(fv)

	arg, err := c.compileExpr(ctx, e, x.Arg, ar)
	if err != nil {
		return f, errors.Wrap(err, "apply: arg")
	}

	f.Append(arg)
	f.Append(c.call(e, fr, ar, dst))

	return f, nil
}

// call invokes closure in fr with argument in ar and moves result to dst.
func (c *Compiler) call(e *env.Env, fr, ar, dst isa.Reg) (f Fragment) {
	lab := e.Fresh()
	res := e.Fresh()

	f.Emit(
		isa.Load{Dst: lab, Src: fr, Index: 1},
		isa.MovReg{Dst: isa.Fun, Src: fr},
		isa.MovReg{Dst: isa.Arg, Src: ar},
		isa.ICall{Src: lab},
		isa.MovReg{Dst: res, Src: isa.Res},
		isa.MovReg{Dst: dst, Src: res},
	)

	return f
}

// compileConstruct allocates saturated constructor application h args.
// Argument i is stored at slot i+1. Arguments are compiled in source order
// but the code of later arguments runs first.
func (c *Compiler) compileConstruct(ctx context.Context, e *env.Env, h ast.Constructor, args []ast.Expr, dst isa.Reg) (f Fragment, err error) {
	t := c.tag(ctx, h.Name, len(args)+1)

	regs := make([]isa.Reg, len(args))

	for i, a := range args {
		regs[i] = e.Fresh()

		af, err := c.compileExpr(ctx, e, a, regs[i])
		if err != nil {
			return f, errors.Wrap(err, "%v: arg %d", h.Name, i)
		}

		f.Prepend(af)
	}

	res := e.Fresh()
	tmp := e.Fresh()

	f.Emit(
		isa.Alloc{Dst: res, Slots: len(args) + 1},
		isa.MovInt{Dst: tmp, Value: int64(t.ID)},
		isa.Store{Dst: res, Index: 0, Src: tmp},
	)

	for i, r := range regs {
		f.Emit(isa.Store{Dst: res, Index: i + 1, Src: r})
	}

	f.Emit(isa.MovReg{Dst: dst, Src: res})

	return f, nil
}

func (c *Compiler) nextRoutine() isa.Label {
	l := isa.Label("rtn_" + strconv.Itoa(c.routines))

	c.routines++

	return l
}
