package tags

import (
	"tlog.app/go/tlog/tlwire"
)

type (
	// Tag identifies heap value shape.
	// Size counts heap words including the tag word at slot 0.
	Tag struct {
		ID   int
		Size int
	}

	// Registry assigns tags to shape names.
	// Assignment is append only: once a name got its Tag it never changes.
	Registry struct {
		tags  map[string]Tag
		names []string
		last  int
	}
)

// Builtin shape names.
const (
	Num     = "Num"
	Char    = "Char"
	Closure = "Closure"
	True    = "True"
	False   = "False"
	Nil     = "Nil"
	Cons    = "Cons"
)

var builtins = []struct {
	name string
	tag  Tag
}{
	{Num, Tag{ID: 1, Size: 2}},
	{Char, Tag{ID: 2, Size: 2}},
	{Closure, Tag{ID: 3, Size: 1}},
	{True, Tag{ID: 4, Size: 1}},
	{False, Tag{ID: 5, Size: 1}},
	{Nil, Tag{ID: 6, Size: 1}},
	{Cons, Tag{ID: 7, Size: 3}},
}

// FirstUserID is the id the first user constructor gets.
const FirstUserID = 8

func New() *Registry {
	r := &Registry{
		tags: make(map[string]Tag, len(builtins)),
	}

	for _, b := range builtins {
		r.tags[b.name] = b.tag
		r.names = append(r.names, b.name)
	}

	r.last = FirstUserID - 1

	return r
}

// Tag returns the tag of name, registering it with size slots if it's new.
// Size of an already registered name is not revised.
func (r *Registry) Tag(name string, size int) (t Tag, added bool) {
	if t, ok := r.tags[name]; ok {
		return t, false
	}

	r.last++

	t = Tag{ID: r.last, Size: size}

	r.tags[name] = t
	r.names = append(r.names, name)

	return t, true
}

func (r *Registry) Lookup(name string) (Tag, bool) {
	t, ok := r.tags[name]
	return t, ok
}

// Names returns all registered names in registration order, builtins first.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

func (t Tag) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 2)
	b = e.AppendKeyInt64(b, "id", int64(t.ID))
	b = e.AppendKeyInt64(b, "size", int64(t.Size))

	return b
}
