package ast

import (
	"encoding/json"
	"fmt"

	"tlog.app/go/errors"
)

type (
	// UnsupportedConstructError is returned for node kinds
	// that are unknown or not allowed where they appear.
	UnsupportedConstructError struct {
		Kind string
	}

	MalformedNodeError struct {
		Kind   string
		Reason string
	}
)

// DecodeProgram decodes a program in the frontend tagged array form:
//
//	[["Def", "main", ["ExprApply", ["ExprVar", "unsafePrintInt"], ["ExprNumber", 42]]]]
func DecodeProgram(data []byte) (p Program, err error) {
	var defs []json.RawMessage

	err = json.Unmarshal(data, &defs)
	if err != nil {
		return nil, errors.Wrap(err, "program")
	}

	p = make(Program, 0, len(defs))

	for i, raw := range defs {
		d, err := DecodeDef(raw)
		if err != nil {
			return nil, errors.Wrap(err, "def %d", i)
		}

		p = append(p, d)
	}

	return p, nil
}

func DecodeDef(raw json.RawMessage) (d Def, err error) {
	kind, f, err := fields(raw)
	if err != nil {
		return d, err
	}

	if kind != KindDef {
		return d, NewUnsupportedConstruct(kind)
	}

	if err = arity(kind, f, 2); err != nil {
		return d, err
	}

	if err = str(kind, f[0], &d.Name); err != nil {
		return d, err
	}

	d.Body, err = DecodeExpr(f[1])
	if err != nil {
		return d, errors.Wrap(err, "%v", d.Name)
	}

	return d, nil
}

func DecodeExpr(raw json.RawMessage) (x Expr, err error) {
	kind, f, err := fields(raw)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindVar:
		var v Var

		if err = arity(kind, f, 1); err == nil {
			err = str(kind, f[0], &v.Name)
		}

		return v, err
	case KindConstructor:
		var v Constructor

		if err = arity(kind, f, 1); err == nil {
			err = str(kind, f[0], &v.Name)
		}

		return v, err
	case KindNumber:
		var v Number

		if err = arity(kind, f, 1); err == nil {
			err = integer(kind, f[0], &v.Value)
		}

		return v, err
	case KindChar:
		var v Char

		if err = arity(kind, f, 1); err == nil {
			err = integer(kind, f[0], &v.Value)
		}

		return v, err
	case KindCase:
		return decodeCase(kind, f)
	case KindLet:
		var v Let

		if err = arity(kind, f, 3); err != nil {
			return nil, err
		}

		if err = str(kind, f[0], &v.Name); err != nil {
			return nil, err
		}

		v.Value, err = DecodeExpr(f[1])
		if err != nil {
			return nil, errors.Wrap(err, "let %v: value", v.Name)
		}

		v.Body, err = DecodeExpr(f[2])
		if err != nil {
			return nil, errors.Wrap(err, "let %v: body", v.Name)
		}

		return v, nil
	case KindLambda:
		var v Lambda

		if err = arity(kind, f, 2); err != nil {
			return nil, err
		}

		if err = str(kind, f[0], &v.Param); err != nil {
			return nil, err
		}

		v.Body, err = DecodeExpr(f[1])
		if err != nil {
			return nil, errors.Wrap(err, "lambda %v", v.Param)
		}

		return v, nil
	case KindApply:
		var v Apply

		if err = arity(kind, f, 2); err != nil {
			return nil, err
		}

		v.Func, err = DecodeExpr(f[0])
		if err != nil {
			return nil, errors.Wrap(err, "apply: func")
		}

		v.Arg, err = DecodeExpr(f[1])
		if err != nil {
			return nil, errors.Wrap(err, "apply: arg")
		}

		return v, nil
	default:
		return nil, NewUnsupportedConstruct(kind)
	}
}

func decodeCase(kind string, f []json.RawMessage) (x Expr, err error) {
	var v Case

	if err = arity(kind, f, 2); err != nil {
		return nil, err
	}

	v.Scrutinee, err = DecodeExpr(f[0])
	if err != nil {
		return nil, errors.Wrap(err, "case: scrutinee")
	}

	var bs []json.RawMessage

	err = json.Unmarshal(f[1], &bs)
	if err != nil {
		return nil, NewMalformedNode(kind, "branches: %v", err)
	}

	for i, raw := range bs {
		b, err := decodeBranch(raw)
		if err != nil {
			return nil, errors.Wrap(err, "case: branch %d", i)
		}

		v.Branches = append(v.Branches, b)
	}

	return v, nil
}

func decodeBranch(raw json.RawMessage) (b Branch, err error) {
	kind, f, err := fields(raw)
	if err != nil {
		return b, err
	}

	if kind != KindBranch {
		return b, NewUnsupportedConstruct(kind)
	}

	if err = arity(kind, f, 3); err != nil {
		return b, err
	}

	if err = str(kind, f[0], &b.Constructor); err != nil {
		return b, err
	}

	err = json.Unmarshal(f[1], &b.Params)
	if err != nil {
		return b, NewMalformedNode(kind, "params: %v", err)
	}

	b.Body, err = DecodeExpr(f[2])
	if err != nil {
		return b, errors.Wrap(err, "%v", b.Constructor)
	}

	return b, nil
}

func fields(raw json.RawMessage) (kind string, f []json.RawMessage, err error) {
	var all []json.RawMessage

	err = json.Unmarshal(raw, &all)
	if err != nil {
		return "", nil, NewMalformedNode("", "node is not an array: %v", err)
	}

	if len(all) == 0 {
		return "", nil, NewMalformedNode("", "empty node")
	}

	err = json.Unmarshal(all[0], &kind)
	if err != nil {
		return "", nil, NewMalformedNode("", "node kind is not a string: %s", all[0])
	}

	return kind, all[1:], nil
}

func arity(kind string, f []json.RawMessage, n int) error {
	if len(f) != n {
		return NewMalformedNode(kind, "%d fields expected, got %d", n, len(f))
	}

	return nil
}

func str(kind string, raw json.RawMessage, s *string) error {
	err := json.Unmarshal(raw, s)
	if err != nil {
		return NewMalformedNode(kind, "string expected, got %s", raw)
	}

	return nil
}

func integer(kind string, raw json.RawMessage, v *int64) error {
	err := json.Unmarshal(raw, v)
	if err != nil {
		return NewMalformedNode(kind, "integer expected, got %s", raw)
	}

	return nil
}

func NewUnsupportedConstruct(kind string) UnsupportedConstructError {
	return UnsupportedConstructError{
		Kind: kind,
	}
}

func NewMalformedNode(kind, f string, args ...any) MalformedNodeError {
	return MalformedNodeError{
		Kind:   kind,
		Reason: fmt.Sprintf(f, args...),
	}
}

func (e UnsupportedConstructError) Error() string {
	return fmt.Sprintf("unsupported construct: %q", e.Kind)
}

func (e MalformedNodeError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("malformed node: %v", e.Reason)
	}

	return fmt.Sprintf("malformed %v node: %v", e.Kind, e.Reason)
}
