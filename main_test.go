package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/gqldesc/internal/cache"
	"github.com/phobologic/gqldesc/internal/lang"
	"github.com/phobologic/gqldesc/internal/rewrite"
)

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readTestFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

const userSource = `import { Field, ObjectType } from "type-graphql";

@ObjectType()
export class User {
  /** @typegraphql The user's name */
  @Field()
  name: string;

  /** @typegraphql Email address */
  @Field({ nullable: true })
  email?: string;
}
`

const userRewritten = `import { Field, ObjectType } from "type-graphql";

@ObjectType()
export class User {
  /** @typegraphql The user's name */
  @Field({description: "The user's name"})
  name: string;

  /** @typegraphql Email address */
  @Field({ nullable: true, description: "Email address" })
  email?: string;
}
`

const plainSource = `export class Plain {
  @Field()
  id: string;
}
`

func createSampleProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeTestFile(t, dir, "src/user.ts", userSource)
	writeTestFile(t, dir, "src/plain.ts", plainSource)
	writeTestFile(t, dir, "src/user.d.ts", userSource)
	writeTestFile(t, dir, "node_modules/lib/index.ts", userSource)
	return dir
}

func TestRunStdin(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run(nil, strings.NewReader(userSource), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if got := stdout.String(); got != userRewritten {
		t.Errorf("output:\n%s\nwant:\n%s", got, userRewritten)
	}
}

func TestRunStdinTSX(t *testing.T) {
	t.Parallel()

	in := `export class View {
  /** @typegraphql Rendered view */
  @Field()
  render() {
    return <div>hi</div>;
  }
}
`
	var stdout, stderr bytes.Buffer
	err := run([]string{"-lang", "tsx"}, strings.NewReader(in), &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), `@Field({description: "Rendered view"})`) {
		t.Errorf("output:\n%s", stdout.String())
	}
}

func TestRunStdinUnsupportedLanguage(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-lang", "rust"}, strings.NewReader(""), &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unsupported language") {
		t.Fatalf("err = %v, want unsupported language", err)
	}
}

func TestRunStdinWrite(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-w"}, strings.NewReader(userSource), &stdout, &stderr); err == nil {
		t.Fatal("expected error for -w with standard input")
	}
}

func TestRunStdinCheck(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-check"}, strings.NewReader(userSource), &stdout, &stderr)
	if !errors.Is(err, errNeedsRewrite) {
		t.Fatalf("err = %v, want errNeedsRewrite", err)
	}
	if strings.TrimSpace(stdout.String()) != stdinName {
		t.Errorf("stdout = %q", stdout.String())
	}

	stdout.Reset()
	if err := run([]string{"-check"}, strings.NewReader(userRewritten), &stdout, &stderr); err != nil {
		t.Errorf("rewritten input should pass -check: %v", err)
	}
}

func TestRunSingleFile(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(dir, "src/user.ts")}, nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if stdout.String() != userRewritten {
		t.Errorf("output:\n%s", stdout.String())
	}
	if readTestFile(t, dir, "src/user.ts") != userSource {
		t.Error("file modified without -w")
	}
}

func TestRunMultipleFilesNeedWrite(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, nil, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "-w") {
		t.Fatalf("err = %v, want hint about -w", err)
	}
}

func TestRunWrite(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-w", dir}, nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if got := readTestFile(t, dir, "src/user.ts"); got != userRewritten {
		t.Errorf("user.ts:\n%s", got)
	}
	if got := readTestFile(t, dir, "src/plain.ts"); got != plainSource {
		t.Errorf("plain.ts changed:\n%s", got)
	}
	if got := readTestFile(t, dir, "src/user.d.ts"); got != userSource {
		t.Error("declaration file should be skipped")
	}
	if got := readTestFile(t, dir, "node_modules/lib/index.ts"); got != userSource {
		t.Error("node_modules should be skipped")
	}

	// Rewriting again is a no-op.
	stdout.Reset()
	if err := run([]string{"-check", dir}, nil, &stdout, &stderr); err != nil {
		t.Errorf("second pass should be clean: %v\nstdout: %s", err, stdout.String())
	}
}

func TestRunList(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{dir, "-l"}, nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	want := filepath.Join(dir, "src", "user.ts") + "\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunCheck(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-check", dir}, nil, &stdout, &stderr)
	if !errors.Is(err, errNeedsRewrite) {
		t.Fatalf("err = %v, want errNeedsRewrite", err)
	}
	if !strings.Contains(stdout.String(), "user.ts") {
		t.Errorf("stdout = %q", stdout.String())
	}
}

func TestRunFileErrorContinues(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "bad.ts", `class A {
  /** @typegraphql x */
  @Field
  a: string;
}
`)
	writeTestFile(t, dir, "good.ts", userSource)

	var stdout, stderr bytes.Buffer
	err := run([]string{"-w", dir}, nil, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for failing file")
	}
	if !strings.Contains(stderr.String(), "Error: "+filepath.Join(dir, "bad.ts")) {
		t.Errorf("stderr = %q", stderr.String())
	}
	if got := readTestFile(t, dir, "good.ts"); got != userRewritten {
		t.Error("good.ts should still be rewritten")
	}
}

func TestRunSyntaxError(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "broken.ts", "class A {\n  @Field(\n")

	var stdout, stderr bytes.Buffer
	err := run([]string{filepath.Join(dir, "broken.ts")}, nil, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(stderr.String(), "syntax error") {
		t.Errorf("stderr = %q", stderr.String())
	}
}

func TestRunUnsupportedShapeWarning(t *testing.T) {
	t.Parallel()

	in := `class A {
  /** @typegraphql x */
  @Field(String, { nullable: true })
  a: string;
}
`
	var stdout, stderr bytes.Buffer
	if err := run(nil, strings.NewReader(in), &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != in {
		t.Errorf("unsupported shape should be untouched:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "decorator arguments not rewritten") {
		t.Errorf("expected warning, stderr = %q", stderr.String())
	}

	stderr.Reset()
	if err := run([]string{"-log-level", "error"}, strings.NewReader(in), &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stderr.Len() != 0 {
		t.Errorf("warning should be filtered at error level: %q", stderr.String())
	}
}

func TestRunKeepExisting(t *testing.T) {
	t.Parallel()

	in := `class A {
  /** @typegraphql new */
  @Field({ description: "old" })
  a: string;
}
`
	var stdout, stderr bytes.Buffer
	if err := run([]string{"-keep-existing"}, strings.NewReader(in), &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != in {
		t.Errorf("existing description should be kept:\n%s", stdout.String())
	}

	stdout.Reset()
	if err := run(nil, strings.NewReader(in), &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), `@Field({ description: "new" })`) {
		t.Errorf("description should be overridden:\n%s", stdout.String())
	}
}

func TestRunKeepExistingEnv(t *testing.T) {
	t.Setenv("GQLDESC_KEEP_EXISTING", "true")

	in := "class A {\n  /** @typegraphql new */\n  @Field({ description: \"old\" })\n  a: string;\n}\n"
	var stdout, stderr bytes.Buffer
	if err := run(nil, strings.NewReader(in), &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != in {
		t.Errorf("env should enable -keep-existing:\n%s", stdout.String())
	}
}

func TestRunSkipTests(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "user.ts", userSource)
	writeTestFile(t, dir, "user.spec.ts", userSource)
	writeTestFile(t, dir, "__tests__/fixture.ts", userSource)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-l", "-skip-tests", dir}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := filepath.Join(dir, "user.ts") + "\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}
}

func TestRunLangFilter(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "user.ts", userSource)
	writeTestFile(t, dir, "view.tsx", userSource)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-l", "-lang", "tsx", dir}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := filepath.Join(dir, "view.tsx") + "\n"
	if stdout.String() != want {
		t.Errorf("stdout = %q, want %q", stdout.String(), want)
	}

	stdout.Reset()
	if err := run([]string{"-l", dir}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if n := strings.Count(stdout.String(), "\n"); n != 2 {
		t.Errorf("without -lang both files should be listed: %q", stdout.String())
	}

	if err := run([]string{"-l", "-lang", "rust", dir}, nil, &stdout, &stderr); err == nil {
		t.Error("expected error for unsupported -lang")
	}
}

func TestRunReport(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-l", "-report", dir}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := stderr.String()
	for _, want := range []string{"User.name", "User.email", "rewritten", "2 rewritten, 0 skipped in 2 files"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRunCache(t *testing.T) {
	t.Parallel()
	dir := createSampleProject(t)
	cachePath := filepath.Join(t.TempDir(), "gqldesc.cache")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-l", "-cache", cachePath, dir}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	first := stdout.String()

	c, err := cache.Load(cachePath)
	if err != nil {
		t.Fatalf("cache.Load: %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 cache entries, got %d", c.Len())
	}

	stdout.Reset()
	if err := run([]string{"-l", "-cache", cachePath, dir}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != first {
		t.Errorf("cached run differs: %q vs %q", stdout.String(), first)
	}

	// A cache hit carries the records the report needs.
	stdout.Reset()
	stderr.Reset()
	if err := run([]string{"-l", "-report", "-cache", cachePath, dir}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr.String(), "User.email") || !strings.Contains(stderr.String(), "2 rewritten, 0 skipped in 2 files") {
		t.Errorf("report from cache:\n%s", stderr.String())
	}

	// A cache hit must still produce the rewritten text.
	stdout.Reset()
	if err := run([]string{"-cache", cachePath, filepath.Join(dir, "src/user.ts")}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != userRewritten {
		t.Errorf("cached output:\n%s", stdout.String())
	}
}

func TestRunCacheHitReport(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "user.ts", userSource)
	cachePath := filepath.Join(t.TempDir(), "gqldesc.cache")

	c, err := cache.Load(cachePath)
	if err != nil {
		t.Fatalf("cache.Load: %v", err)
	}
	key := cache.Key(cacheKey(rewrite.DefaultConfig(), lang.TypeScript), []byte(userSource))
	c.Put(key, cache.Entry{
		Output:  []byte("// from cache\n"),
		Changes: []rewrite.Change{
			{Class: "Cached", Member: "field", Decorator: "Field", Line: 7, Shape: rewrite.ShapeValue},
		},
	})
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	var stdout, stderr bytes.Buffer
	err = run([]string{"-report", "-cache", cachePath, filepath.Join(dir, "user.ts")}, nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if stdout.String() != "// from cache\n" {
		t.Errorf("expected cached output, got:\n%s", stdout.String())
	}
	if !strings.Contains(stderr.String(), "Cached.field") || !strings.Contains(stderr.String(), "1 rewritten, 0 skipped in 1 files") {
		t.Errorf("report should come from the cached records:\n%s", stderr.String())
	}
}

func TestRunMaxFileSize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "small.ts", userSource)
	writeTestFile(t, dir, "big.ts", userSource+strings.Repeat("// padding\n", 200))

	var stdout, stderr bytes.Buffer
	err := run([]string{"--max-file-size", "1000", "-l", dir}, nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "small.ts") {
		t.Error("missing small.ts")
	}
	if strings.Contains(out, "big.ts") {
		t.Error("big.ts should be filtered out")
	}
	if !strings.Contains(stderr.String(), "Warning") {
		t.Error("expected warning about skipped file")
	}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "readme.txt", "nothing here")

	var stdout, stderr bytes.Buffer
	err := run([]string{dir}, nil, &stdout, &stderr)
	if err == nil {
		t.Fatal("expected error for no TypeScript files")
	}
	if !strings.Contains(err.Error(), "no TypeScript files") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRunMissingPath(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{filepath.Join(t.TempDir(), "absent.ts")}, nil, &stdout, &stderr); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-V"}, nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), "gqldesc") {
		t.Errorf("version output: %q", stdout.String())
	}
}

func TestRunBadLogLevel(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"-log-level", "loud"}, strings.NewReader(""), &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "unknown log level") {
		t.Fatalf("err = %v", err)
	}
}

func TestReorderArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"flags first", []string{"-w", "src"}, []string{"-w", "src"}},
		{"positional first", []string{"src", "-w"}, []string{"-w", "src"}},
		{"value flag", []string{"src", "-cache", "c.bin", "-l"}, []string{"-cache", "c.bin", "-l", "src"}},
		{"lang", []string{"-lang", "tsx"}, []string{"-lang", "tsx"}},
		{"no flags", []string{"."}, []string{"."}},
		{"no args", nil, nil},
		{"bool flag", []string{"-V"}, []string{"-V"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := reorderArgs(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len: got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("index %d: got %q, want %q (full: %v)", i, got[i], tt.want[i], got)
					break
				}
			}
		})
	}
}
