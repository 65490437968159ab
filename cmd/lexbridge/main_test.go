package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// lockedBuffer is written from coordinator workers in the watch test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func isolate(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
}

func execute(t *testing.T, ctx context.Context, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errb lockedBuffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errb)
	cmd.SetArgs(append(args, "--no-color", "--log-level", "error"))
	err := cmd.ExecuteContext(ctx)
	return out.String(), errb.String(), err
}

const swiftSample = "// hi\nfunc foo() { let x = 1 }"

func TestTokenizeJSONFromStdin(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, context.Background(), swiftSample, "tokenize", "--lang", "swift", "--format", "json", "--no-native")
	require.NoError(t, err)

	doc := gjson.Parse(out)
	assert.Equal(t, "swift", doc.Get("language").String())
	assert.Equal(t, "pattern", doc.Get("backend").String())
	assert.Equal(t, int64(11), doc.Get("count").Int())
	assert.Equal(t, "comment", doc.Get("tokens.0.category").String())
	assert.Equal(t, "// hi", doc.Get("tokens.0.lexeme").String())

	fn := doc.Get("tokens.1")
	assert.Equal(t, "func", fn.Get("lexeme").String())
	assert.Equal(t, "keyword", fn.Get("category").String())
	assert.Equal(t, int64(2), fn.Get("line").Int())
	assert.Equal(t, int64(1), fn.Get("col").Int())
	assert.Equal(t, int64(4), fn.Get("width").Int())

	assert.Equal(t, int64(6), doc.Get("tokens.2.col").Int())
	assert.Equal(t, "function", doc.Get("tokens.2.category").String())
}

func TestTokenizeFileUsesChroma(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main // entry\n"), 0o644))

	out, _, err := execute(t, context.Background(), "", "tokenize", path, "-f", "json")
	require.NoError(t, err)
	assert.Equal(t, "chroma-go", gjson.Get(out, "backend").String())
	assert.Equal(t, "package", gjson.Get(out, "tokens.0.lexeme").String())
}

func TestTokenizePretty(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, context.Background(), swiftSample, "tokenize", "-l", "swift", "--no-native")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 12)
	assert.Equal(t, "# swift via pattern, 11 tokens", lines[0])
	assert.Contains(t, lines[2], "2:1")
	assert.Contains(t, lines[2], "keyword")
	assert.Contains(t, lines[2], `"func"`)
}

func TestTokenizeErrors(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	_, _, err := execute(t, ctx, "x", "tokenize", "--lang", "cobol")
	assert.ErrorContains(t, err, "unknown language")

	_, _, err = execute(t, ctx, "x", "tokenize")
	assert.ErrorContains(t, err, "use --lang")

	_, _, err = execute(t, ctx, "x", "tokenize", "-l", "go", "-f", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = execute(t, ctx, "", "tokenize", filepath.Join(t.TempDir(), "gone.rs"))
	assert.Error(t, err)
}

func TestMatrixJSON(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, context.Background(), "", "matrix", "--json", "--no-native")
	require.NoError(t, err)

	rows := gjson.Get(out, "rows").Array()
	require.Len(t, rows, 6)
	for _, row := range rows {
		assert.True(t, row.Get("pattern").Bool())
		assert.False(t, row.Get("native").Bool())
		assert.False(t, row.Get("degraded").Bool())
		assert.Equal(t, "pattern", row.Get("active").String())
	}
}

func TestMatrixTable(t *testing.T) {
	isolate(t)
	out, _, err := execute(t, context.Background(), "", "matrix")
	require.NoError(t, err)
	assert.Contains(t, out, "LANGUAGE")
	assert.Contains(t, out, "chroma-go")
}

func TestProbe(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	out, _, err := execute(t, ctx, "", "probe", "--no-native")
	require.NoError(t, err)
	assert.Equal(t, "no native backends declared\n", out)

	out, _, err = execute(t, ctx, "", "probe")
	require.NoError(t, err)
	assert.Contains(t, out, "chroma-rust")
	assert.Contains(t, out, "available")
}

func TestConfigCommand(t *testing.T) {
	isolate(t)
	ctx := context.Background()

	out, _, err := execute(t, ctx, "", "config", "--env")
	require.NoError(t, err)
	assert.Contains(t, out, "LEXBRIDGE_COORDINATOR_DEBOUNCE\n")

	path := filepath.Join(t.TempDir(), "lexbridge.toml")
	require.NoError(t, os.WriteFile(path, []byte("[coordinator]\nworkers = 7\n"), 0o644))
	t.Setenv("LEXBRIDGE_REGISTRY_PROBE_TIMEOUT", "1s")

	out, _, err = execute(t, ctx, "", "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "# "+path)
	assert.Contains(t, out, "workers = 7")
	assert.Contains(t, out, "1s")

	_, _, err = execute(t, ctx, "", "config", "--config", filepath.Join(t.TempDir(), "none.toml"))
	assert.ErrorContains(t, err, "config file not found")
}

func TestBadLogLevel(t *testing.T) {
	isolate(t)
	var out, errb lockedBuffer
	cmd := newRootCmd(strings.NewReader(""), &out, &errb)
	cmd.SetArgs([]string{"config", "--log-level", "chatty"})
	assert.ErrorContains(t, cmd.Execute(), "logging.level")
}

func TestWatch(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "lib.rs")
	require.NoError(t, os.WriteFile(path, []byte("fn a() {}"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errb lockedBuffer
	cmd := newRootCmd(strings.NewReader(""), &out, &errb)
	cmd.SetArgs([]string{"watch", path, "--no-native", "--no-color"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "rev 1: ") && strings.Contains(out.String(), "tokens via pattern")
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("fn a() { let b = 1; }"), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "rev 2: ")
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestLineIndex(t *testing.T) {
	li := newLineIndex("ab\ncd\n\nef")
	for off, want := range map[int]int{0: 1, 2: 1, 3: 2, 5: 2, 6: 3, 7: 4, 8: 4} {
		assert.Equal(t, want, li.line(off), "offset %d", off)
	}
}
