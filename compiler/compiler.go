package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/LaimeJesus/parseo2021-tp/compiler/ast"
	"github.com/LaimeJesus/parseo2021-tp/compiler/back"
	"github.com/LaimeJesus/parseo2021-tp/compiler/format"
)

func CompileFile(ctx context.Context, name string, opts back.Options) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text, opts)
}

// Compile lowers program text in the tagged array form to assembly text.
func Compile(ctx context.Context, name string, text []byte, opts back.Options) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", name)
	defer tr.Finish("err", &err)

	p, err := ast.DecodeProgram(text)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}

	code, err := back.New(opts).CompileProgram(ctx, p)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	obj, err = format.Format(ctx, obj, code)
	if err != nil {
		return nil, errors.Wrap(err, "format")
	}

	return obj, nil
}
