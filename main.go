// gqldesc copies the @typegraphql doc tag of class members into the
// description option of their type-graphql decorators.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/phobologic/gqldesc/internal/cache"
	"github.com/phobologic/gqldesc/internal/discover"
	"github.com/phobologic/gqldesc/internal/lang"
	"github.com/phobologic/gqldesc/internal/logging"
	"github.com/phobologic/gqldesc/internal/report"
	"github.com/phobologic/gqldesc/internal/rewrite"
	"github.com/phobologic/gqldesc/internal/transform"
)

var version = "dev"

const defaultMaxFileSize = 1_000_000 // 1 MB

const stdinName = "<stdin>"

// errNeedsRewrite is returned by -check when a file would change.
var errNeedsRewrite = errors.New("some files need rewriting")

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	write       bool
	list        bool
	check       bool
	report      bool
	skipTests   bool
	langName    string
	langFilter  []string
	cachePath   string
	maxFileSize int
	rewrite     rewrite.Config
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("gqldesc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		opts         options
		keepExisting bool
		logLevel     string
		logFile      string
		showVersion  bool
	)

	fs.BoolVar(&opts.write, "w", false, "write result to source files instead of stdout")
	fs.BoolVar(&opts.list, "l", false, "list files whose output would change")
	fs.BoolVar(&opts.list, "list", false, "list files whose output would change")
	fs.BoolVar(&opts.check, "check", false, "list files that would change and fail if there are any")
	fs.BoolVar(&opts.report, "report", false, "print a table of rewritten and skipped decorators to stderr")
	fs.BoolVar(&opts.skipTests, "skip-tests", false, "ignore *.test.ts, *.spec.ts and __tests__ when walking directories")
	fs.StringVar(&opts.langName, "lang", lang.TypeScript, "grammar for standard input (typescript or tsx); with directories, only walk that language")
	fs.StringVar(&opts.cachePath, "cache", os.Getenv("GQLDESC_CACHE"), "cache file path")
	fs.IntVar(&opts.maxFileSize, "max-file-size", defaultMaxFileSize, "skip files larger than this many bytes")
	fs.BoolVar(&keepExisting, "keep-existing", envBool("GQLDESC_KEEP_EXISTING"), "keep description options that are already present")
	fs.StringVar(&logLevel, "log-level", os.Getenv("GQLDESC_LOG_LEVEL"), "log level (debug, info, warn, error)")
	fs.StringVar(&logFile, "log-file", os.Getenv("GQLDESC_LOG_FILE"), "also write JSON logs to this rotated file")
	fs.BoolVar(&showVersion, "V", false, "show version and exit")
	fs.BoolVar(&showVersion, "version", false, "show version and exit")

	if err := fs.Parse(reorderArgs(args)); err != nil {
		return err
	}

	if showVersion {
		_, _ = fmt.Fprintf(stdout, "gqldesc %s\n", version)
		return nil
	}

	log, closeLog, err := logging.New(logging.Config{Level: logLevel, File: logFile}, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "lang" {
			opts.langFilter = []string{opts.langName}
		}
	})

	opts.rewrite = rewrite.DefaultConfig()
	opts.rewrite.Override = !keepExisting

	if fs.NArg() == 0 {
		return runStdin(opts, log, stdin, stdout, stderr)
	}
	return runFiles(opts, log, fs.Args(), stdout, stderr)
}

func runStdin(opts options, log *zap.Logger, stdin io.Reader, stdout, stderr io.Writer) error {
	if opts.write {
		return errors.New("cannot use -w with standard input")
	}
	if _, ok := lang.Languages[opts.langName]; !ok {
		return fmt.Errorf("unsupported language %q", opts.langName)
	}

	source, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("reading standard input: %w", err)
	}

	tr := transform.New(transform.Options{Rewrite: opts.rewrite, Logger: log})
	defer tr.Close()

	res, err := tr.Transform(context.Background(), source, stdinName, opts.langName)
	if err != nil {
		return err
	}

	if opts.report {
		if err := report.Write(stderr, []*transform.Result{res}); err != nil {
			return err
		}
	}

	if opts.list || opts.check {
		if res.Changed {
			_, _ = fmt.Fprintln(stdout, stdinName)
			if opts.check {
				return errNeedsRewrite
			}
		}
		return nil
	}
	_, err = stdout.Write(res.Output)
	return err
}

// fileJob is one file to rewrite. Path is as shown to the user.
type fileJob struct {
	path     string
	language string
	mode     os.FileMode
}

func runFiles(opts options, log *zap.Logger, paths []string, stdout, stderr io.Writer) error {
	for _, name := range opts.langFilter {
		if _, ok := lang.Languages[name]; !ok {
			return fmt.Errorf("unsupported language %q", name)
		}
	}

	jobs, err := collectFiles(paths, discover.Options{Languages: opts.langFilter, SkipTests: opts.skipTests})
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no TypeScript files found")
	}

	toStdout := !opts.write && !opts.list && !opts.check
	if toStdout && len(jobs) > 1 {
		return fmt.Errorf("%d files matched; use -w, -l or -check for more than one file", len(jobs))
	}

	jobs = filterBySize(jobs, opts.maxFileSize, stderr)
	if len(jobs) == 0 {
		return fmt.Errorf("no TypeScript files found (all exceeded size limit)")
	}

	var c *cache.Cache
	if opts.cachePath != "" {
		c, err = cache.Load(opts.cachePath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
			c = nil
		}
	}

	outcomes := transformConcurrent(jobs, opts, c, log)

	var (
		failed     int
		needsWrite bool
		results    []*transform.Result
	)
	for i, o := range outcomes {
		job := jobs[i]
		if o.err != nil {
			failed++
			_, _ = fmt.Fprintf(stderr, "Error: %s: %v\n", job.path, o.err)
			continue
		}
		res := o.res
		results = append(results, res)

		if res.Changed {
			needsWrite = true
			if opts.list || opts.check {
				_, _ = fmt.Fprintln(stdout, job.path)
			}
			if opts.write {
				if err := os.WriteFile(job.path, res.Output, job.mode); err != nil {
					failed++
					_, _ = fmt.Fprintf(stderr, "Error: %s: %v\n", job.path, err)
					continue
				}
				log.Info("file rewritten", zap.String("file", job.path), zap.Int("changes", len(res.Changes)))
			}
		}
		if toStdout {
			_, _ = stdout.Write(res.Output)
		}
	}

	if opts.report {
		if err := report.Write(stderr, results); err != nil {
			return err
		}
	}

	if c != nil {
		if err := c.Save(); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(jobs))
	}
	if opts.check && needsWrite {
		return errNeedsRewrite
	}
	return nil
}

// collectFiles expands directories through discover and keeps explicit files
// as given, whatever their extension.
func collectFiles(paths []string, walk discover.Options) ([]fileJob, error) {
	var jobs []fileJob
	seen := make(map[string]bool)
	add := func(path, language string) {
		clean := filepath.Clean(path)
		if seen[clean] {
			return
		}
		seen[clean] = true
		jobs = append(jobs, fileJob{path: clean, language: language})
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("path: %w", err)
		}
		if !info.IsDir() {
			add(p, lang.ForPath(p))
			continue
		}
		files, err := discover.Files(p, walk)
		if err != nil {
			return nil, fmt.Errorf("discovering files: %w", err)
		}
		for _, f := range files {
			add(filepath.Join(p, f.Path), f.Language)
		}
	}
	return jobs, nil
}

func filterBySize(jobs []fileJob, maxSize int, stderr io.Writer) []fileJob {
	var kept []fileJob
	for _, j := range jobs {
		fi, err := os.Stat(j.path)
		if err != nil {
			kept = append(kept, j) // reported when read
			continue
		}
		if fi.Size() > int64(maxSize) {
			_, _ = fmt.Fprintf(stderr, "Warning: %s: skipped (>%d bytes)\n", j.path, maxSize)
			continue
		}
		j.mode = fi.Mode().Perm()
		kept = append(kept, j)
	}
	return kept
}

type outcome struct {
	res *transform.Result
	err error
}

// cacheKey identifies everything besides the source that affects output.
func cacheKey(cfg rewrite.Config, language string) string {
	return cache.FormatVersion + "|" + language + "|override=" + strconv.FormatBool(cfg.Override)
}

// transformConcurrent rewrites jobs on GOMAXPROCS workers. Outcomes are
// returned in job order.
func transformConcurrent(jobs []fileJob, opts options, c *cache.Cache, log *zap.Logger) []outcome {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(jobs) {
		numWorkers = len(jobs)
	}

	work := make(chan int, len(jobs))
	outcomes := make([]outcome, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parsers
			tr := transform.New(transform.Options{Rewrite: opts.rewrite, Logger: log})
			defer tr.Close()

			for idx := range work {
				outcomes[idx] = transformFile(tr, jobs[idx], opts, c, log)
			}
		}()
	}

	for i := range jobs {
		work <- i
	}
	close(work)
	wg.Wait()

	return outcomes
}

func transformFile(tr *transform.Transformer, job fileJob, opts options, c *cache.Cache, log *zap.Logger) outcome {
	source, err := os.ReadFile(job.path)
	if err != nil {
		return outcome{err: err}
	}

	var key string
	if c != nil {
		key = cache.Key(cacheKey(opts.rewrite, job.language), source)
		if e, ok := c.Get(key); ok {
			log.Debug("cache hit", zap.String("file", job.path), zap.Int("changes", len(e.Changes)))
			for _, s := range e.Skipped {
				if s.Reason == rewrite.ReasonUnsupported {
					log.Warn("decorator arguments not rewritten",
						zap.String("file", job.path),
						zap.Int("line", s.Line),
						zap.String("member", s.Class+"."+s.Member),
						zap.String("decorator", s.Decorator),
						zap.Int("args", s.Args),
					)
				}
			}
			return outcome{res: &transform.Result{
				Path:     job.path,
				Language: job.language,
				Output:   e.Output,
				Changed:  !bytes.Equal(e.Output, source),
				Changes:  e.Changes,
				Skipped:  e.Skipped,
			}}
		}
	}

	res, err := tr.Transform(context.Background(), source, job.path, job.language)
	if err != nil {
		return outcome{err: err}
	}
	if c != nil {
		c.Put(key, cache.Entry{
			Output:  res.Output,
			Changes: res.Changes,
			Skipped: res.Skipped,
		})
	}
	return outcome{res: res}
}

func envBool(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}

// flagsWithValue lists flags that take a value argument.
var flagsWithValue = map[string]bool{
	"-lang": true, "--lang": true,
	"-cache": true, "--cache": true,
	"-log-level": true, "--log-level": true,
	"-log-file": true, "--log-file": true,
	"-max-file-size": true, "--max-file-size": true,
}

// reorderArgs moves positional arguments after all flags so Go's flag package
// can parse them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if args[i] == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(args[i]) > 0 && args[i][0] == '-' {
			flags = append(flags, args[i])
			if flagsWithValue[args[i]] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}
