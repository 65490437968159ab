package bridge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/lexbridge/internal/backend"
	"github.com/dshills/lexbridge/internal/config"
	"github.com/dshills/lexbridge/internal/logging"
	"github.com/dshills/lexbridge/internal/matrix"
	"github.com/dshills/lexbridge/internal/native"
	"github.com/dshills/lexbridge/internal/native/chromamod"
	"github.com/dshills/lexbridge/internal/pattern"
	"github.com/dshills/lexbridge/internal/token"
)

func patternOnly() *config.Config {
	cfg := config.Default()
	cfg.Native.EnableDL = false
	cfg.Native.EnableChroma = false
	cfg.Coordinator.Debounce = config.Duration(5 * time.Millisecond)
	return cfg
}

func newBridge(t *testing.T, cfg *config.Config, opts ...Option) *Bridge {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Nop())}, opts...)
	b, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func chromaImage() *native.Image {
	im := native.NewImage("test-process")
	chromamod.Install(im)
	return im
}

func next(t *testing.T, ch <-chan token.Stream) token.Stream {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no highlight update")
		return token.Stream{}
	}
}

func TestNotifyEditEndToEnd(t *testing.T) {
	b := newBridge(t, patternOnly())
	updates := make(chan token.Stream, 4)
	b.OnHighlightUpdate(func(s token.Stream) { updates <- s })

	text := "// hi\nfunc foo() { let x = 1 }"
	b.NotifyEdit(token.LanguageSwift, text, 1)

	s := next(t, updates)
	assert.Equal(t, uint64(1), s.Revision())
	assert.Equal(t, pattern.BackendID, s.Backend())

	var got []string
	var cats []token.Category
	for _, tok := range s.All() {
		got = append(got, tok.Lexeme)
		cats = append(cats, tok.Category)
	}
	assert.Equal(t, []string{"// hi", "func", "foo", "(", ")", "{", "let", "x", "=", "1", "}"}, got)
	assert.Equal(t, []token.Category{
		token.CategoryComment,
		token.CategoryKeyword,
		token.CategoryFunction,
		token.CategoryOperator,
		token.CategoryOperator,
		token.CategoryOperator,
		token.CategoryKeyword,
		token.CategoryIdentifier,
		token.CategoryOperator,
		token.CategoryNumber,
		token.CategoryOperator,
	}, cats)
}

func TestBurstDeliversLatest(t *testing.T) {
	cfg := patternOnly()
	cfg.Coordinator.Debounce = config.Duration(40 * time.Millisecond)
	b := newBridge(t, cfg)
	updates := make(chan token.Stream, 8)
	b.OnHighlightUpdate(func(s token.Stream) { updates <- s })

	for rev, text := range []string{"l", "le", "let", "let x"} {
		b.NotifyEdit(token.LanguageSwift, text, uint64(rev+1))
	}
	s := next(t, updates)
	assert.Equal(t, uint64(4), s.Revision())
	assert.Equal(t, "x", s.At(1).Lexeme)
	assert.Equal(t, uint64(3), b.Stats().Coalesced)
}

func TestChromaBackendsAreSelected(t *testing.T) {
	cfg := config.Default()
	cfg.Native.EnableDL = false
	b := newBridge(t, cfg, WithProcessImage(chromaImage()))

	s, err := b.TokenizeNow(context.Background(), token.LanguageGo, "package main // entry\n")
	require.NoError(t, err)
	assert.Equal(t, "chroma-go", s.Backend())
	assert.Equal(t, token.CategoryKeyword, s.At(0).Category)

	m := b.GetAvailability()
	assert.True(t, m.Has(token.LanguageGo, matrix.CapNative))
	assert.True(t, m.Has(token.LanguageGo, matrix.CapPattern))
	row, ok := m.Row(token.LanguageGo)
	require.True(t, ok)
	assert.Equal(t, "chroma-go", row.Active)
}

func TestEagerProbe(t *testing.T) {
	cfg := config.Default()
	cfg.Native.EnableDL = false
	cfg.Registry.EagerProbe = true
	b := newBridge(t, cfg, WithProcessImage(chromaImage()))

	for _, info := range b.Registry().Backends() {
		assert.True(t, info.State.Settled(), info.ID)
	}
}

func TestMissingChromaImageFallsBack(t *testing.T) {
	cfg := config.Default()
	cfg.Native.EnableDL = false
	b := newBridge(t, cfg, WithProcessImage(native.NewImage("bare")))

	s, err := b.TokenizeNow(context.Background(), token.LanguageRust, "fn main() {}")
	require.NoError(t, err)
	assert.Equal(t, pattern.BackendID, s.Backend())

	info, ok := b.Registry().Backend("chroma-rust")
	require.True(t, ok)
	assert.Equal(t, backend.StateUnavailable, info.State)
	assert.Equal(t, []string{chromamod.RuntimeSymbol, chromamod.LexerSymbol(token.LanguageRust)}, info.Missing)
	assert.True(t, b.GetAvailability().Has(token.LanguageRust, matrix.CapDegraded))
}

func TestLuaPluginBackend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "python.lua"), []byte(`
function python_tokenize(src)
  local out = {}
  local s, e = string.find(src, "def")
  if s then out[1] = {s, e, "keyword"} end
  return out
end
`), 0o644))

	cfg := patternOnly()
	cfg.Native.LuaPluginDir = dir
	b := newBridge(t, cfg)

	s, err := b.TokenizeNow(context.Background(), token.LanguagePython, "def f")
	require.NoError(t, err)
	assert.Equal(t, "lua-python", s.Backend())
	require.Equal(t, 1, s.Len())
	assert.Equal(t, token.Token{Start: 0, End: 3, Category: token.CategoryKeyword, Lexeme: "def"}, s.At(0))

	// No go_tokenize in the plugin dir.
	s, err = b.TokenizeNow(context.Background(), token.LanguageGo, "func")
	require.NoError(t, err)
	assert.Equal(t, pattern.BackendID, s.Backend())
}

func TestFailingBackendDegrades(t *testing.T) {
	im := native.NewImage("broken")
	im.Register("rust_lexer", func(context.Context, []byte) ([]native.Span, error) {
		return nil, errors.New("segfault averted")
	})

	b := newBridge(t, patternOnly(), WithBackends(backend.Descriptor{
		ID:        "broken-rust",
		Languages: []token.Language{token.LanguageRust},
		Symbols:   []string{"rust_lexer"},
		Resolver:  im,
	}))
	updates := make(chan token.Stream, 4)
	b.OnHighlightUpdate(func(s token.Stream) { updates <- s })

	b.NotifyEdit(token.LanguageRust, "fn main() {}", 1)
	s := next(t, updates)
	assert.Equal(t, uint64(1), s.Revision())
	assert.Equal(t, pattern.BackendID, s.Backend())
	assert.Equal(t, "fn", s.At(0).Lexeme)

	m := b.GetAvailability()
	assert.True(t, m.Has(token.LanguageRust, matrix.CapDegraded))
	assert.False(t, m.Has(token.LanguageRust, matrix.CapNative))
	assert.Equal(t, uint64(1), b.Stats().Fallbacks)
}

func TestTokenizeNowRejectsInvalidLanguage(t *testing.T) {
	b := newBridge(t, patternOnly())
	_, err := b.TokenizeNow(context.Background(), token.LanguageNone, "x")
	assert.ErrorIs(t, err, token.ErrUnknownLanguage)
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Coordinator.Workers = 0
	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrValidationFailed)
}

func TestApplyConfig(t *testing.T) {
	b := newBridge(t, patternOnly())

	cfg := b.Config().Clone()
	cfg.Coordinator.Debounce = config.Duration(80 * time.Millisecond)
	cfg.Logging.Level = "debug"
	require.NoError(t, b.ApplyConfig(cfg))
	assert.Equal(t, 80*time.Millisecond, b.Config().Coordinator.Debounce.Std())
	assert.False(t, restartOnly(patternOnly(), cfg))

	cfg = cfg.Clone()
	cfg.Coordinator.Workers = 9
	assert.True(t, restartOnly(b.Config(), cfg))

	bad := cfg.Clone()
	bad.Logging.Format = "xml"
	assert.Error(t, b.ApplyConfig(bad))
}

func TestFollowReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, os.WriteFile(path, []byte("[native]\nenable_dl = false\nenable_chroma = false\n"), 0o644))

	w, err := config.Watch(path,
		config.WithReloadDelay(10*time.Millisecond),
		config.WithLoadOptions(config.WithoutEnv()),
		config.WithWatchLogger(logging.Nop()))
	require.NoError(t, err)
	defer w.Close()

	b := newBridge(t, w.Current())
	b.Follow(w)

	require.NoError(t, os.WriteFile(path, []byte("[native]\nenable_dl = false\nenable_chroma = false\n[coordinator]\ndebounce = \"70ms\"\n"), 0o644))
	require.Eventually(t, func() bool {
		return b.Config().Coordinator.Debounce.Std() == 70*time.Millisecond
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSymbolNames(t *testing.T) {
	assert.Equal(t, "lexbridge_swift_tokenize", DLSymbol(token.LanguageSwift))
	assert.Equal(t, "javascript_tokenize", LuaSymbol(token.LanguageJavaScript))
}
