package native

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/lexbridge/internal/token"
)

// DefaultLuaCallTimeout bounds a single plugin call.
const DefaultLuaCallTimeout = 2 * time.Second

// LuaImage resolves entry points defined as global functions by plugin
// scripts. Scripts are loaded once, before the image is used for probing;
// nothing is read from disk during resolution.
//
// A plugin entry point receives the source as a string and returns an array
// of {first, last, category} triples, where first and last are 1-based
// inclusive byte positions as returned by string.find and category is a
// category name such as "keyword".
//
// gopher-lua states are not goroutine-safe, so calls are serialized.
type LuaImage struct {
	mu      sync.Mutex
	L       *lua.LState
	closed  bool
	scripts []string
	timeout time.Duration
}

// LuaOption configures a LuaImage.
type LuaOption func(*LuaImage)

// WithLuaCallTimeout bounds each plugin call.
func WithLuaCallTimeout(d time.Duration) LuaOption {
	return func(li *LuaImage) {
		if d > 0 {
			li.timeout = d
		}
	}
}

// NewLuaImage creates an empty sandboxed Lua image.
func NewLuaImage(opts ...LuaOption) *LuaImage {
	li := &LuaImage{timeout: DefaultLuaCallTimeout}
	for _, opt := range opts {
		opt(li)
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)
	installSandbox(L)
	li.L = L
	return li
}

// openSafeLibraries opens the side-effect free standard libraries only.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	// io, os, debug and package stay closed.
}

// installSandbox removes globals that load code from outside the state.
func installSandbox(L *lua.LState) {
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}
}

// Name implements Resolver.
func (li *LuaImage) Name() string {
	return "lua"
}

// LoadString runs a plugin script held in memory.
func (li *LuaImage) LoadString(name, code string) error {
	return li.load(name, func() error { return li.L.DoString(code) })
}

// LoadFile runs one plugin script from disk.
func (li *LuaImage) LoadFile(path string) error {
	return li.load(path, func() error { return li.L.DoFile(path) })
}

// LoadDir runs every *.lua file in dir in lexical order. It returns the
// number of scripts loaded; a failing script does not stop the others.
func (li *LuaImage) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("lua plugins: %w", err)
	}

	var loaded int
	var errs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lua") {
			continue
		}
		if err := li.LoadFile(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		loaded++
	}
	if len(errs) > 0 {
		return loaded, fmt.Errorf("lua plugins: %s", strings.Join(errs, "; "))
	}
	return loaded, nil
}

func (li *LuaImage) load(name string, run func() error) (err error) {
	li.mu.Lock()
	defer li.mu.Unlock()

	if li.closed {
		return ErrClosed
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic in %s: %v", name, r)
		}
	}()
	if err := run(); err != nil {
		return fmt.Errorf("load %s: %w", name, err)
	}
	li.scripts = append(li.scripts, name)
	return nil
}

// Scripts returns the names of the scripts loaded so far.
func (li *LuaImage) Scripts() []string {
	li.mu.Lock()
	defer li.mu.Unlock()
	return slices.Clone(li.scripts)
}

// Resolve implements Resolver. Only global functions resolve.
func (li *LuaImage) Resolve(name string) (Symbol, error) {
	li.mu.Lock()
	defer li.mu.Unlock()

	if li.closed {
		return Symbol{}, fmt.Errorf("%s: %w", li.Name(), ErrClosed)
	}

	fn, ok := li.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return Symbol{}, notFound(li, name)
	}

	return Func(name, li.Name(), func(ctx context.Context, src []byte) ([]Span, error) {
		return li.call(ctx, name, fn, src)
	}), nil
}

func (li *LuaImage) call(ctx context.Context, name string, fn *lua.LFunction, src []byte) (spans []Span, err error) {
	li.mu.Lock()
	defer li.mu.Unlock()

	if li.closed {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(ctx, li.timeout)
	defer cancel()
	li.L.SetContext(ctx)
	defer li.L.RemoveContext()

	top := li.L.GetTop()
	defer li.L.SetTop(top)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: lua panic: %v", ErrCallFailed, name, r)
		}
	}()

	if err := li.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, lua.LString(src)); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCallFailed, name, err)
	}

	tbl, ok := li.L.Get(-1).(*lua.LTable)
	if !ok {
		return nil, fmt.Errorf("%w: %s returned %s, want table", ErrCallFailed, name, li.L.Get(-1).Type())
	}
	return luaSpans(name, tbl, len(src))
}

// luaSpans converts a plugin result table.
func luaSpans(name string, tbl *lua.LTable, srcLen int) ([]Span, error) {
	n := tbl.Len()
	spans := make([]Span, 0, n)
	for i := 1; i <= n; i++ {
		entry, ok := tbl.RawGetInt(i).(*lua.LTable)
		if !ok {
			return nil, fmt.Errorf("%w: %s: span %d is not a table", ErrCallFailed, name, i)
		}
		first, ok1 := entry.RawGetInt(1).(lua.LNumber)
		last, ok2 := entry.RawGetInt(2).(lua.LNumber)
		catName, ok3 := entry.RawGetInt(3).(lua.LString)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("%w: %s: span %d malformed", ErrCallFailed, name, i)
		}
		cat, ok := token.ParseCategory(string(catName))
		if !ok {
			return nil, fmt.Errorf("%w: %s: span %d has unknown category %q", ErrCallFailed, name, i, string(catName))
		}
		start, end := int(first)-1, int(last)
		if start < 0 || start >= end || end > srcLen {
			return nil, fmt.Errorf("%w: %s: span %d [%d,%d] out of range", ErrCallFailed, name, i, int(first), int(last))
		}
		spans = append(spans, Span{Start: start, End: end, Category: cat})
	}
	return spans, nil
}

// Close releases the Lua state. Resolved symbols fail afterwards.
func (li *LuaImage) Close() {
	li.mu.Lock()
	defer li.mu.Unlock()

	if li.closed {
		return
	}
	li.closed = true
	li.L.Close()
}
