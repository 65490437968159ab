// Package matrix derives the language by capability availability read model
// from backend states. It is informational only.
package matrix

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dshills/lexbridge/internal/backend"
	"github.com/dshills/lexbridge/internal/notify"
	"github.com/dshills/lexbridge/internal/token"
)

// Capability is one column of the matrix.
type Capability string

// Capabilities reported per language.
const (
	// CapPattern is always true: the pattern tokenizer is always present.
	CapPattern Capability = "pattern"
	// CapNative is true when some native backend is Available.
	CapNative Capability = "native"
	// CapDegraded is true when highlighting is coarser than it could be: a
	// native backend has Failed, or every declared native backend is
	// Unavailable.
	CapDegraded Capability = "degraded"
)

// Capabilities returns the columns in display order.
func Capabilities() []Capability {
	return []Capability{CapPattern, CapNative, CapDegraded}
}

// Row is the availability of one language.
type Row struct {
	Language token.Language
	Pattern  bool
	Native   bool
	Degraded bool

	// Active is the backend Select would choose without probing further.
	Active string
}

// Has returns a capability of the row.
func (r Row) Has(c Capability) bool {
	switch c {
	case CapPattern:
		return r.Pattern
	case CapNative:
		return r.Native
	case CapDegraded:
		return r.Degraded
	}
	return false
}

// Matrix is an immutable snapshot.
type Matrix struct {
	rows []Row
}

// Has reports a capability for a language. Unknown languages report false.
func (m Matrix) Has(lang token.Language, c Capability) bool {
	row, ok := m.Row(lang)
	return ok && row.Has(c)
}

// Row returns the row for a language.
func (m Matrix) Row(lang token.Language) (Row, bool) {
	for _, r := range m.rows {
		if r.Language == lang {
			return r, true
		}
	}
	return Row{}, false
}

// Rows returns a copy of every row.
func (m Matrix) Rows() []Row {
	return slices.Clone(m.rows)
}

// Languages returns the languages in the matrix.
func (m Matrix) Languages() []token.Language {
	out := make([]token.Language, len(m.rows))
	for i, r := range m.rows {
		out[i] = r.Language
	}
	return out
}

// String renders the matrix as a text table.
func (m Matrix) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-8s %-8s %-8s %s\n", "LANGUAGE", "PATTERN", "NATIVE", "DEGRADED", "ACTIVE")
	for _, r := range m.rows {
		fmt.Fprintf(&b, "%-12s %-8s %-8s %-8s %s\n", r.Language, mark(r.Pattern), mark(r.Native), mark(r.Degraded), r.Active)
	}
	return b.String()
}

func mark(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}

// Compute derives a matrix from backend snapshots.
func Compute(langs []token.Language, fallback string, backendsFor func(token.Language) []backend.Info) Matrix {
	rows := make([]Row, 0, len(langs))
	for _, lang := range langs {
		row := Row{Language: lang, Pattern: true, Active: fallback}
		infos := backendsFor(lang)

		unavailable := 0
		for _, info := range infos {
			switch info.State {
			case backend.StateAvailable:
				if !row.Native {
					row.Native = true
					row.Active = info.ID
				}
			case backend.StateFailed:
				row.Degraded = true
			case backend.StateUnavailable:
				unavailable++
			}
		}
		if len(infos) > 0 && unavailable == len(infos) {
			row.Degraded = true
		}
		rows = append(rows, row)
	}
	return Matrix{rows: rows}
}

// Source is what the view reads from.
type Source interface {
	BackendsFor(lang token.Language) []backend.Info
	Subscribe(fn func(backend.StateChange)) *notify.Subscription
}

// View caches the matrix and recomputes it lazily after state changes.
type View struct {
	src      Source
	langs    []token.Language
	fallback string
	sub      *notify.Subscription

	mu       sync.Mutex
	cached   Matrix
	valid    bool
	computes int
}

// NewView creates a view over src for langs. fallback names the backend
// used when nothing native is Available.
func NewView(src Source, langs []token.Language, fallback string) *View {
	v := &View{
		src:      src,
		langs:    slices.Clone(langs),
		fallback: fallback,
	}
	v.sub = src.Subscribe(func(backend.StateChange) { v.Invalidate() })
	return v
}

// Snapshot returns the current matrix.
func (v *View) Snapshot() Matrix {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.valid {
		v.cached = Compute(v.langs, v.fallback, v.src.BackendsFor)
		v.valid = true
		v.computes++
	}
	return v.cached
}

// Invalidate drops the cached matrix.
func (v *View) Invalidate() {
	v.mu.Lock()
	v.valid = false
	v.mu.Unlock()
}

// Computes returns how many times the matrix was recomputed.
func (v *View) Computes() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.computes
}

// Close stops listening for state changes.
func (v *View) Close() {
	v.sub.Unsubscribe()
}
