package ast

type (
	// Node is any syntax tree node. The set of nodes is closed.
	Node interface {
		Kind() string
		node()
	}

	// Expr is a node allowed in expression position.
	Expr interface {
		Node
		expr()
	}

	Program []Def

	Def struct {
		Name string
		Body Expr
	}

	Var struct {
		Name string
	}

	Constructor struct {
		Name string
	}

	Number struct {
		Value int64
	}

	Char struct {
		Value int64 // code point
	}

	Case struct {
		Scrutinee Expr
		Branches  []Branch
	}

	Branch struct {
		Constructor string
		Params      []string
		Body        Expr
	}

	Let struct {
		Name  string
		Value Expr
		Body  Expr
	}

	Lambda struct {
		Param string
		Body  Expr
	}

	Apply struct {
		Func Expr
		Arg  Expr
	}
)

// Node kinds as they appear in the frontend output.
const (
	KindDef         = "Def"
	KindVar         = "ExprVar"
	KindConstructor = "ExprConstructor"
	KindNumber      = "ExprNumber"
	KindChar        = "ExprChar"
	KindCase        = "ExprCase"
	KindBranch      = "CaseBranch"
	KindLet         = "ExprLet"
	KindLambda      = "ExprLambda"
	KindApply       = "ExprApply"
)

func (Def) Kind() string         { return KindDef }
func (Var) Kind() string         { return KindVar }
func (Constructor) Kind() string { return KindConstructor }
func (Number) Kind() string      { return KindNumber }
func (Char) Kind() string        { return KindChar }
func (Case) Kind() string        { return KindCase }
func (Branch) Kind() string      { return KindBranch }
func (Let) Kind() string         { return KindLet }
func (Lambda) Kind() string      { return KindLambda }
func (Apply) Kind() string       { return KindApply }

func (Def) node()         {}
func (Var) node()         {}
func (Constructor) node() {}
func (Number) node()      {}
func (Char) node()        {}
func (Case) node()        {}
func (Branch) node()      {}
func (Let) node()         {}
func (Lambda) node()      {}
func (Apply) node()       {}

func (Var) expr()         {}
func (Constructor) expr() {}
func (Number) expr()      {}
func (Char) expr()        {}
func (Case) expr()        {}
func (Let) expr()         {}
func (Lambda) expr()      {}
func (Apply) expr()       {}

// Call builds left leaning application f a0 a1 ...
func Call(f Expr, args ...Expr) Expr {
	for _, a := range args {
		f = Apply{Func: f, Arg: a}
	}

	return f
}

// Spine unwinds application chain into its head and arguments in source order.
func Spine(x Apply) (head Expr, args []Expr) {
	var e Expr = x

	for {
		a, ok := e.(Apply)
		if !ok {
			break
		}

		args = append(args, a.Arg)
		e = a.Func
	}

	for i, j := 0, len(args)-1; i < j; i, j = i+1, j-1 {
		args[i], args[j] = args[j], args[i]
	}

	return e, args
}
