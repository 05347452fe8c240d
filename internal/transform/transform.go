// Package transform runs the whole pipeline for one module: load the source
// with tree-sitter, compute the description edits and apply them.
package transform

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"go.uber.org/zap"

	"github.com/phobologic/gqldesc/internal/edit"
	"github.com/phobologic/gqldesc/internal/lang"
	"github.com/phobologic/gqldesc/internal/parse"
	"github.com/phobologic/gqldesc/internal/rewrite"
)

// ErrUnsupportedLanguage is returned for files no registered grammar handles.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Options configures a Transformer.
type Options struct {
	Rewrite rewrite.Config
	Logger  *zap.Logger
}

// Result is the outcome of transforming one module.
type Result struct {
	Path     string
	Language string
	Output   []byte
	Changed  bool
	Changes  []rewrite.Change
	Skipped  []rewrite.Skip
}

// Transformer rewrites modules. It holds one tree-sitter parser per language
// and is not safe for concurrent use; each goroutine needs its own.
type Transformer struct {
	rw      *rewrite.Rewriter
	log     *zap.Logger
	parsers map[string]*parserPair
}

type parserPair struct {
	lang   *lang.Language
	parser *sitter.Parser
	query  *sitter.Query
}

// New creates a Transformer.
func New(opts Options) *Transformer {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Transformer{
		rw:      rewrite.New(opts.Rewrite, log),
		log:     log,
		parsers: make(map[string]*parserPair),
	}
}

// Transform rewrites source. language names a registered grammar; when empty
// it is derived from path. On error no output is produced.
func (t *Transformer) Transform(ctx context.Context, source []byte, path, language string) (*Result, error) {
	if language == "" {
		language = lang.ForPath(path)
	}
	pp, err := t.parserFor(language)
	if err != nil {
		return nil, err
	}

	mod, err := parse.Load(ctx, pp.lang, pp.parser, pp.query, source, path)
	if err != nil {
		return nil, err
	}

	rw, err := t.rw.Module(mod)
	if err != nil {
		return nil, err
	}

	out, err := edit.Apply(source, rw.Edits)
	if err != nil {
		return nil, fmt.Errorf("applying edits to %s: %w", path, err)
	}

	res := &Result{
		Path:     path,
		Language: language,
		Output:   out,
		Changed:  !bytes.Equal(out, source),
		Changes:  rw.Changes,
		Skipped:  rw.Skipped,
	}
	t.log.Debug("module transformed",
		zap.String("file", path),
		zap.Int("changes", len(res.Changes)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Bool("changed", res.Changed),
	)
	return res, nil
}

// Close releases the tree-sitter parsers.
func (t *Transformer) Close() {
	for name, pp := range t.parsers {
		pp.parser.Close()
		delete(t.parsers, name)
	}
}

func (t *Transformer) parserFor(language string) (*parserPair, error) {
	if pp, ok := t.parsers[language]; ok {
		return pp, nil
	}
	l, ok := lang.Languages[language]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnsupportedLanguage, language)
	}
	q, err := l.GetClassQuery()
	if err != nil {
		return nil, err
	}
	pp := &parserPair{lang: l, parser: l.NewParser(), query: q}
	t.parsers[language] = pp
	return pp, nil
}

// Source is a convenience wrapper that rewrites a single module with a
// throwaway Transformer.
func Source(ctx context.Context, source []byte, language string, cfg rewrite.Config) ([]byte, error) {
	t := New(Options{Rewrite: cfg})
	defer t.Close()
	res, err := t.Transform(ctx, source, "", language)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}
