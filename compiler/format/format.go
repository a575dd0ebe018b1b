package format

import (
	"context"

	"tlog.app/go/errors"

	"github.com/LaimeJesus/parseo2021-tp/compiler/isa"
)

// Format appends the assembly text of code to b.
// Labels start at the first column, instructions are indented by one tab.
func Format(ctx context.Context, b []byte, code []isa.Instr) (_ []byte, err error) {
	for i, x := range code {
		b, err = formatInstr(ctx, b, x, 1)
		if err != nil {
			return nil, errors.Wrap(err, "instr %d", i)
		}
	}

	return b, nil
}

func formatInstr(ctx context.Context, b []byte, x isa.Instr, d int) ([]byte, error) {
	switch x := x.(type) {
	case nil:
		return nil, errors.New("nil instruction")
	case isa.Mark:
		b = x.Append(b)
	default:
		b = indent(b, d)
		b = x.Append(b)
	}

	b = append(b, '\n')

	return b, nil
}

func indent(b []byte, d int) []byte {
	const tabs = "\t\t\t\t\t\t\t\t"
	return append(b, tabs[:d]...)
}
