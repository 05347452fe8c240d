// Package model defines the typed view of a TypeScript module that gqldesc
// rewrites. Every node records the byte span it occupies in Module.Source.
package model

// MemberKind indicates whether a class member is a method or a property.
type MemberKind string

const (
	Method   MemberKind = "method"
	Property MemberKind = "property"
)

// Span is a half-open byte range [Start, End) into the module source.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int { return s.End - s.Start }

// Module is one parsed source file.
type Module struct {
	Path     string
	Language string
	Source   []byte
	Classes  []ClassDeclaration
}

// Members returns every member of every class, in scan order.
func (m *Module) Members() []*Member {
	var out []*Member
	for i := range m.Classes {
		for j := range m.Classes[i].Members {
			out = append(out, &m.Classes[i].Members[j])
		}
	}
	return out
}

// Text returns the source text covered by span.
func (m *Module) Text(s Span) string {
	return string(m.Source[s.Start:s.End])
}

// ClassDeclaration is a top-level class.
type ClassDeclaration struct {
	Name    string
	Span    Span
	Members []Member
}

// Member is a method or property of a class.
type Member struct {
	Class      string
	Name       string
	Kind       MemberKind
	Line       int
	Span       Span
	Docs       []DocBlock
	Decorators []Decorator
}

// DocBlock is a single /** ... */ comment attached to a member.
type DocBlock struct {
	Span Span
	Tags []DocTag
}

// Last returns the comment of the last tag called name.
func (b DocBlock) Last(name string) (string, bool) {
	for i := len(b.Tags) - 1; i >= 0; i-- {
		if b.Tags[i].Name == name {
			return b.Tags[i].Comment, true
		}
	}
	return "", false
}

// DocTag is a block tag inside a doc comment, e.g. "@typegraphql Some text".
type DocTag struct {
	Name    string
	Comment string
}

// Decorator is an "@Name(...)" invocation attached to a member.
// Args is nil when the decorator is not called, as in "@Name".
type Decorator struct {
	Callee string
	Line   int
	Span   Span
	Args   *ArgumentList
}

// ArgumentList is the parenthesized argument list of a decorator call.
// Its span includes both parentheses.
type ArgumentList struct {
	Span Span
	Args []Argument
}

// Len returns the number of arguments.
func (a *ArgumentList) Len() int { return len(a.Args) }

// At returns the i-th argument (zero based) and whether it exists.
func (a *ArgumentList) At(i int) (Argument, bool) {
	if i < 0 || i >= len(a.Args) {
		return Argument{}, false
	}
	return a.Args[i], true
}

// Inner returns the span between the parentheses.
func (a *ArgumentList) Inner() Span {
	return Span{Start: a.Span.Start + 1, End: a.Span.End - 1}
}

// Argument is one expression in an argument list.
type Argument struct {
	Span   Span
	Object *ObjectLiteral
}

// IsObject reports whether the argument is an object literal.
func (a Argument) IsObject() bool { return a.Object != nil }

// ObjectLiteral is a "{...}" expression. Its span includes both braces.
type ObjectLiteral struct {
	Span       Span
	Properties []ObjectProperty
}

// ObjectProperty is one entry of an object literal. Name is empty for
// entries without a static name (spreads, computed keys).
type ObjectProperty struct {
	Name string
	Span Span
}

// Property returns the index of the first property called name, or -1.
func (o *ObjectLiteral) Property(name string) int {
	for i, p := range o.Properties {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Inner returns the span between the braces.
func (o *ObjectLiteral) Inner() Span {
	return Span{Start: o.Span.Start + 1, End: o.Span.End - 1}
}
