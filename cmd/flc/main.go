package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/LaimeJesus/parseo2021-tp/compiler"
	"github.com/LaimeJesus/parseo2021-tp/compiler/ast"
	"github.com/LaimeJesus/parseo2021-tp/compiler/back"
)

func main() {
	checkCmd := &cli.Command{
		Name:        "check",
		Description: "decode programs and print their syntax trees",
		Action:      checkAct,
		Args:        cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile programs to register machine assembly",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("dispatch", "position", "case dispatch: position or tag"),
			cli.NewFlag("output,o", "", "output file, stdout if empty"),
		},
	}

	app := &cli.Command{
		Name:        "flc",
		Description: "flc compiles functional programs to an abstract register machine",
		Commands: []*cli.Command{
			checkCmd,
			compileCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func checkAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		p, err := ast.DecodeProgram(text)
		if err != nil {
			return errors.Wrap(err, "decode %v", a)
		}

		tlog.SpanFromContext(ctx).Printw("decoded", "name", a, "defs", len(p))

		fmt.Printf("ast: %+v\n", p)
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	d, err := back.ParseDispatch(c.String("dispatch"))
	if err != nil {
		return errors.Wrap(err, "dispatch flag")
	}

	opts := back.Options{Dispatch: d}

	var obj []byte

	for _, a := range c.Args {
		o, err := compiler.CompileFile(ctx, a, opts)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		obj = append(obj, o...)
	}

	out := c.String("output")
	if out == "" {
		_, err = os.Stdout.Write(obj)
		return err
	}

	return writeLocked(ctx, out, obj)
}

// writeLocked writes the file holding name.lock.
func writeLocked(ctx context.Context, name string, data []byte) (err error) {
	l := flock.New(name + ".lock")

	err = l.Lock()
	if err != nil {
		return errors.Wrap(err, "lock")
	}

	defer func() {
		e := l.Unlock()
		if err == nil && e != nil {
			err = errors.Wrap(e, "unlock")
		}
	}()

	err = os.WriteFile(name, data, 0o644)
	if err != nil {
		return errors.Wrap(err, "write")
	}

	tlog.SpanFromContext(ctx).Printw("written", "name", name, "size", len(data))

	return nil
}
