// Package rewrite writes the typegraphql doc tag of class members into the
// description option of their decorators.
//
// For every member with a non-empty description, each decorator's argument
// list is classified and rewritten:
//
//	@Field()                 -> @Field({description: "x"})
//	@Field(T)                -> @Field(T, {description: "x"})
//	@Field({...})            -> description merged into the object
//	@Field(a, b, {...})      -> description merged into the third argument
//
// Any other argument list is left alone and reported as skipped.
package rewrite

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/phobologic/gqldesc/internal/edit"
	"github.com/phobologic/gqldesc/internal/model"
)

const (
	// TagName is the doc tag whose text becomes the description.
	TagName = "typegraphql"
	// PropertyName is the decorator option receiving the description.
	PropertyName = "description"
)

var (
	// ErrMissingArguments is returned for a decorator that is not called,
	// such as a bare "@Field".
	ErrMissingArguments = errors.New("decorator has no argument list")
	// ErrUnexpectedArgument is returned when a three-argument decorator's
	// last argument is not an object literal.
	ErrUnexpectedArgument = errors.New("third decorator argument is not an object literal")
)

// Shape classifies a decorator argument list.
type Shape string

const (
	ShapeEmpty       Shape = "empty"
	ShapeValue       Shape = "value"
	ShapeObject      Shape = "object"
	ShapeThirdObject Shape = "third-object"
	ShapeUnsupported Shape = "unsupported"
)

// Skip reasons.
const (
	ReasonUnsupported = "unsupported argument shape"
	ReasonKept        = "existing description kept"
)

// Config controls rewriting.
type Config struct {
	// Override replaces an existing description option. When false an
	// existing description is kept as written.
	Override bool
}

// DefaultConfig returns the configuration used by the build: existing
// descriptions are always overridden.
func DefaultConfig() Config {
	return Config{Override: true}
}

// Change records one rewritten decorator.
type Change struct {
	Class       string
	Member      string
	Decorator   string
	Line        int
	Shape       Shape
	Description string
}

// Skip records a decorator that had a description available but was left
// unmodified.
type Skip struct {
	Class     string
	Member    string
	Decorator string
	Line      int
	Args      int
	Reason    string
}

// Result holds the edits for one module and what they do.
type Result struct {
	Edits   []edit.Edit
	Changes []Change
	Skipped []Skip
}

// Rewriter computes the edits for a module. It keeps no state between
// modules and may be shared by goroutines.
type Rewriter struct {
	cfg Config
	log *zap.Logger
}

// New creates a Rewriter. A nil logger discards log output.
func New(cfg Config, log *zap.Logger) *Rewriter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Rewriter{cfg: cfg, log: log}
}

// Classify returns the shape of a decorator argument list. A nil list and a
// three-argument list without a trailing object literal are errors.
func Classify(args *model.ArgumentList) (Shape, error) {
	if args == nil {
		return "", ErrMissingArguments
	}
	switch args.Len() {
	case 0:
		return ShapeEmpty, nil
	case 1:
		first, _ := args.At(0)
		if first.IsObject() {
			return ShapeObject, nil
		}
		return ShapeValue, nil
	case 3:
		third, _ := args.At(2)
		if !third.IsObject() {
			return "", ErrUnexpectedArgument
		}
		return ShapeThirdObject, nil
	}
	return ShapeUnsupported, nil
}

// Module computes the edits for every eligible member of mod. Members without
// a description or without decorators are skipped. A structural error in any
// decorator aborts the whole module.
func (r *Rewriter) Module(mod *model.Module) (*Result, error) {
	res := &Result{}
	for _, m := range mod.Members() {
		if len(m.Decorators) == 0 {
			continue
		}
		desc := Description(m)
		if desc == "" {
			continue
		}
		// The separator after the last block is not part of the text written.
		desc = strings.TrimSuffix(desc, "\n")
		value := Quote(desc)
		for i := range m.Decorators {
			if err := r.decorator(mod, m, &m.Decorators[i], desc, value, res); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func (r *Rewriter) decorator(mod *model.Module, m *model.Member, d *model.Decorator, desc, value string, res *Result) error {
	shape, err := Classify(d.Args)
	if err != nil {
		return fmt.Errorf("%s:%d: @%s on %s.%s: %w", mod.Path, d.Line, d.Callee, m.Class, m.Name, err)
	}

	var edits []edit.Edit
	ok := true
	switch shape {
	case ShapeEmpty:
		inner := d.Args.Inner()
		edits = []edit.Edit{edit.Replace(inner.Start, inner.End, objectLiteral(value))}
	case ShapeValue:
		first, _ := d.Args.At(0)
		edits = []edit.Edit{edit.Insert(first.Span.End, ", "+objectLiteral(value))}
	case ShapeObject:
		first, _ := d.Args.At(0)
		edits, ok = mergeProperty(mod.Source, first.Object, value, r.cfg.Override)
	case ShapeThirdObject:
		third, _ := d.Args.At(2)
		edits, ok = mergeProperty(mod.Source, third.Object, value, r.cfg.Override)
	default:
		r.log.Warn("decorator arguments not rewritten",
			zap.String("file", mod.Path),
			zap.Int("line", d.Line),
			zap.String("member", m.Class+"."+m.Name),
			zap.String("decorator", d.Callee),
			zap.Int("args", d.Args.Len()),
		)
		res.Skipped = append(res.Skipped, r.skip(m, d, ReasonUnsupported))
		return nil
	}

	if !ok {
		r.log.Debug("existing description kept",
			zap.String("file", mod.Path),
			zap.Int("line", d.Line),
			zap.String("member", m.Class+"."+m.Name),
		)
		res.Skipped = append(res.Skipped, r.skip(m, d, ReasonKept))
		return nil
	}

	r.log.Debug("decorator rewritten",
		zap.String("file", mod.Path),
		zap.Int("line", d.Line),
		zap.String("member", m.Class+"."+m.Name),
		zap.String("decorator", d.Callee),
		zap.String("shape", string(shape)),
	)
	res.Edits = append(res.Edits, edits...)
	res.Changes = append(res.Changes, Change{
		Class:       m.Class,
		Member:      m.Name,
		Decorator:   d.Callee,
		Line:        d.Line,
		Shape:       shape,
		Description: desc,
	})
	return nil
}

func (r *Rewriter) skip(m *model.Member, d *model.Decorator, reason string) Skip {
	return Skip{
		Class:     m.Class,
		Member:    m.Name,
		Decorator: d.Callee,
		Line:      d.Line,
		Args:      d.Args.Len(),
		Reason:    reason,
	}
}
