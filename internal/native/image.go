package native

import (
	"slices"
	"sync"
)

// Image is a table of entry points populated by linked-in modules,
// typically from their init functions. Whether a module is linked into the
// binary decides whether its names resolve.
type Image struct {
	name string

	mu      sync.RWMutex
	symbols map[string]Symbol
}

// Process is the image that modules register into by default.
var Process = NewImage("process")

// NewImage creates an empty image.
func NewImage(name string) *Image {
	return &Image{
		name:    name,
		symbols: make(map[string]Symbol),
	}
}

// Name implements Resolver.
func (im *Image) Name() string {
	return im.name
}

// Register adds a callable entry point. Like database/sql.Register it panics
// if fn is nil or the name is taken, since both are programming errors in a
// module's init.
func (im *Image) Register(name string, fn TokenizeFunc) {
	if fn == nil {
		panic("native: Register entry point is nil: " + name)
	}
	im.add(Func(name, im.name, fn))
}

// Provide adds a presence-only name.
func (im *Image) Provide(name string) {
	im.add(Marker(name, im.name))
}

func (im *Image) add(sym Symbol) {
	im.mu.Lock()
	defer im.mu.Unlock()

	if _, dup := im.symbols[sym.name]; dup {
		panic("native: symbol registered twice: " + sym.name)
	}
	im.symbols[sym.name] = sym
}

// Unregister removes a name. It reports whether the name was present.
func (im *Image) Unregister(name string) bool {
	im.mu.Lock()
	defer im.mu.Unlock()

	_, ok := im.symbols[name]
	delete(im.symbols, name)
	return ok
}

// Resolve implements Resolver.
func (im *Image) Resolve(name string) (Symbol, error) {
	im.mu.RLock()
	sym, ok := im.symbols[name]
	im.mu.RUnlock()

	if !ok {
		return Symbol{}, notFound(im, name)
	}
	return sym, nil
}

// Names returns the registered names, sorted.
func (im *Image) Names() []string {
	im.mu.RLock()
	defer im.mu.RUnlock()

	names := make([]string, 0, len(im.symbols))
	for name := range im.symbols {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Register adds a callable entry point to Process.
func Register(name string, fn TokenizeFunc) {
	Process.Register(name, fn)
}

// Provide adds a presence-only name to Process.
func Provide(name string) {
	Process.Provide(name)
}
