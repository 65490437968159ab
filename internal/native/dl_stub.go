//go:build !cgo || !(linux || darwin)

package native

// DL resolves C entry points against the process image. This build has no
// cgo, so every name is reported missing.
type DL struct{}

// NewDL creates a process-image resolver.
func NewDL() *DL {
	return &DL{}
}

// Name implements Resolver.
func (d *DL) Name() string {
	return "dl"
}

// Supported reports whether this build can resolve C symbols.
func (d *DL) Supported() bool {
	return false
}

// Resolve implements Resolver.
func (d *DL) Resolve(name string) (Symbol, error) {
	return Symbol{}, notFound(d, name)
}
