//go:build cgo && (linux || darwin)

package native

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>

typedef int (*lb_tokenize_fn)(const char*, size_t, uint32_t*, size_t);

static void* lb_self(void) {
	return dlopen(NULL, RTLD_LAZY);
}

// Clear dlerror, call dlsym, and return the error (if any) alongside the symbol.
static void* lb_dlsym(void* h, const char* name, char** err) {
	dlerror();
	void* p = dlsym(h, name);
	char* e = dlerror();
	if (e) { *err = e; return NULL; }
	*err = NULL;
	return p;
}

static int lb_call(void* fn, const char* src, size_t n, uint32_t* out, size_t cap) {
	return ((lb_tokenize_fn)fn)(src, n, out, cap);
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"
)

// DL resolves C entry points against the symbol table of the running
// process with dlopen(NULL) and dlsym. Only code already linked or loaded
// into the process is visible.
type DL struct {
	once   sync.Once
	handle unsafe.Pointer
	err    error
}

// NewDL creates a process-image resolver. The image is opened on first use.
func NewDL() *DL {
	return &DL{}
}

// Name implements Resolver.
func (d *DL) Name() string {
	return "dl"
}

// Supported reports whether this build can resolve C symbols.
func (d *DL) Supported() bool {
	return true
}

func (d *DL) open() error {
	d.once.Do(func() {
		h := C.lb_self()
		if h == nil {
			d.err = fmt.Errorf("dlopen(NULL) failed")
			return
		}
		d.handle = h
	})
	return d.err
}

// Resolve implements Resolver.
func (d *DL) Resolve(name string) (Symbol, error) {
	if err := d.open(); err != nil {
		return Symbol{}, fmt.Errorf("%s: %w", d.Name(), err)
	}

	cs := C.CString(name)
	defer C.free(unsafe.Pointer(cs))

	var cerr *C.char
	p := C.lb_dlsym(d.handle, cs, &cerr)
	if cerr != nil || p == nil {
		return Symbol{}, notFound(d, name)
	}

	return Func(name, d.Name(), func(ctx context.Context, src []byte) ([]Span, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return callC(p, src)
	}), nil
}

// callC invokes fn with the fixed tokenize ABI.
func callC(fn unsafe.Pointer, src []byte) ([]Span, error) {
	out := make([]uint32, tripleCap(len(src)))

	var srcPtr *C.char
	if len(src) > 0 {
		srcPtr = (*C.char)(unsafe.Pointer(&src[0]))
	}

	n := C.lb_call(fn, srcPtr, C.size_t(len(src)),
		(*C.uint32_t)(unsafe.Pointer(&out[0])), C.size_t(len(out)))

	return decodeTriples(out, int(n), len(src))
}
