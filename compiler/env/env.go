package env

import (
	"fmt"
	"path"

	"tlog.app/go/loc"
	"tlog.app/go/tlog/tlwire"

	"github.com/LaimeJesus/parseo2021-tp/compiler/isa"
	"github.com/LaimeJesus/parseo2021-tp/compiler/set"
)

type (
	// Binding tells where the value of a name lives.
	Binding interface {
		BindingName() string
		binding()
	}

	// Register binding: value is in a directly addressable register.
	Register struct {
		Name string
		Reg  isa.Reg
	}

	// Enclosed binding: value is captured by the running closure
	// and lives in its slot Index+2.
	Enclosed struct {
		Name  string
		Index int
	}

	// Env maps names to bindings.
	// Env derived by Routine shares register counter and globals with its parent.
	Env struct {
		*shared

		bindings map[string]Binding

		closure isa.Reg

		from loc.PC
	}

	shared struct {
		next    int
		globals set.Ordered[string]
	}

	UnboundNameError struct {
		Name string
	}
)

// Primitive names. They are never captured and never resolved as variables.
const (
	PrintInt  = "unsafePrintInt"
	PrintChar = "unsafePrintChar"
)

// CaptureOffset is the first closure slot holding a captured value.
// Slot 0 is the tag, slot 1 is the routine address.
const CaptureOffset = 2

func New() *Env {
	return &Env{
		shared:   &shared{},
		bindings: map[string]Binding{},
		from:     loc.Caller(1),
	}
}

// Routine returns environment for a routine body running closure.
// Only globals are visible in it until the caller binds more names.
func (e *Env) Routine(closure isa.Reg) *Env {
	return &Env{
		shared:   e.shared,
		bindings: map[string]Binding{},
		closure:  closure,
		from:     loc.Caller(1),
	}
}

// Fresh returns a register never returned before by e or any Env derived from it.
func (e *Env) Fresh() isa.Reg {
	e.next++

	return isa.Virtual(e.next)
}

// DeclareGlobal marks name as living in global storage.
// It reports false if the name was already declared.
func (e *Env) DeclareGlobal(name string) bool {
	return e.globals.Set(name)
}

func (e *Env) Globals() []string { return e.globals.Keys() }

func (e *Env) Bind(name string, b Binding) {
	e.bindings[name] = b
}

func (e *Env) Unbind(name string) {
	delete(e.bindings, name)
}

// Shadow binds name to b and returns a func restoring the previous binding.
//
//	restore := e.Shadow(name, b)
//	defer restore()
func (e *Env) Shadow(name string, b Binding) (restore func()) {
	prev, ok := e.bindings[name]

	e.Bind(name, b)

	return func() {
		if ok {
			e.Bind(name, prev)
		} else {
			e.Unbind(name)
		}
	}
}

func (e *Env) IsGlobal(name string) bool {
	return e.globals.IsSet(name)
}

func (e *Env) IsPrimitive(name string) bool {
	return name == PrintInt || name == PrintChar
}

// Exists reports whether Get would succeed.
func (e *Env) Exists(name string) bool {
	_, ok := e.bindings[name]

	return ok || e.IsGlobal(name)
}

// Local returns binding introduced in this environment, globals excluded.
func (e *Env) Local(name string) (Binding, bool) {
	b, ok := e.bindings[name]
	return b, ok
}

// Get resolves name. Local bindings shadow globals.
func (e *Env) Get(name string) (Binding, error) {
	if b, ok := e.bindings[name]; ok {
		return b, nil
	}

	if e.IsGlobal(name) {
		return Register{Name: name, Reg: isa.Global(name)}, nil
	}

	return nil, NewUnboundName(name)
}

// Closure returns register holding the running closure.
// It's empty outside of routines.
func (e *Env) Closure() isa.Reg {
	return e.closure
}

func (e *Env) TlogAppend(b []byte) []byte {
	var en tlwire.Encoder

	from := ""
	if e.from != 0 {
		name, _, line := e.from.NameFileLine()
		from = fmt.Sprintf("%s:%d", path.Ext(name), line)
	}

	b = en.AppendMap(b, 4)
	b = en.AppendKeyString(b, "from", from)
	b = en.AppendKeyString(b, "closure", string(e.closure))
	b = en.AppendKeyInt64(b, "locals", int64(len(e.bindings)))
	b = en.AppendKeyInt64(b, "next", int64(e.next))

	return b
}

func (b Register) BindingName() string { return b.Name }
func (b Enclosed) BindingName() string { return b.Name }

func (Register) binding() {}
func (Enclosed) binding() {}

// Slot is the closure slot the value is loaded from.
func (b Enclosed) Slot() int { return b.Index + CaptureOffset }

func (b Register) TlogAppend(buf []byte) []byte {
	var e tlwire.Encoder

	buf = e.AppendMap(buf, 2)
	buf = e.AppendKeyString(buf, "name", b.Name)
	buf = e.AppendKeyString(buf, "reg", string(b.Reg))

	return buf
}

func (b Enclosed) TlogAppend(buf []byte) []byte {
	var e tlwire.Encoder

	buf = e.AppendMap(buf, 2)
	buf = e.AppendKeyString(buf, "name", b.Name)
	buf = e.AppendKeyInt64(buf, "slot", int64(b.Slot()))

	return buf
}

func NewUnboundName(name string) UnboundNameError {
	return UnboundNameError{
		Name: name,
	}
}

func (e UnboundNameError) Error() string {
	return fmt.Sprintf("unbound name: %v", e.Name)
}
