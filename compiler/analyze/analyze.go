package analyze

import (
	"github.com/LaimeJesus/parseo2021-tp/compiler/ast"
	"github.com/LaimeJesus/parseo2021-tp/compiler/env"
	"github.com/LaimeJesus/parseo2021-tp/compiler/set"
)

type (
	freeVars struct {
		env  *env.Env
		free set.Ordered[string]
	}
)

// FreeVariables returns names x refers to which must be captured
// by its closure, in first occurrence order.
//
// A name is captured unless it's a primitive, it's bound inside x,
// or it resolves to a global in e. Names free in nested lambdas
// are captured too so that inner closures can be built from the outer one.
func FreeVariables(x ast.Lambda, e *env.Env) []string {
	w := freeVars{env: e}

	w.expr(x, nil)

	return w.free.Keys()
}

func (w *freeVars) expr(x ast.Expr, bound []string) {
	switch x := x.(type) {
	case ast.Var:
		w.ref(x.Name, bound)
	case ast.Constructor, ast.Number, ast.Char:
	case ast.Let:
		w.expr(x.Value, bound)
		w.expr(x.Body, with(bound, x.Name))
	case ast.Lambda:
		w.expr(x.Body, with(bound, x.Param))
	case ast.Apply:
		w.expr(x.Func, bound)
		w.expr(x.Arg, bound)
	case ast.Case:
		w.expr(x.Scrutinee, bound)

		for _, b := range x.Branches {
			w.expr(b.Body, with(bound, b.Params...))
		}
	}
}

func (w *freeVars) ref(name string, bound []string) {
	if w.env.IsPrimitive(name) {
		return
	}

	for _, b := range bound {
		if b == name {
			return
		}
	}

	if _, ok := w.env.Local(name); !ok && w.env.IsGlobal(name) {
		return
	}

	w.free.Set(name)
}

func with(bound []string, names ...string) []string {
	r := make([]string, 0, len(bound)+len(names))
	r = append(r, bound...)

	return append(r, names...)
}
