package native

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/dshills/lexbridge/internal/token"
)

// C entry points resolved by DL share one calling convention:
//
//	int fn(const char *src, size_t len, uint32_t *out, size_t cap);
//
// The callee writes up to cap/3 (start, end, category) triples into out and
// returns the number written, or a negative value on failure. Categories use
// the numeric values of token.Category.

// tripleCap returns the out buffer length for a source of n bytes. A well
// formed result has at most one span per byte.
func tripleCap(n int) int {
	return 3 * (n + 1)
}

// decodeTriples converts n triples from buf into spans over a source of
// srcLen bytes.
func decodeTriples(buf []uint32, n, srcLen int) ([]Span, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: status %d", ErrCallFailed, n)
	}
	if 3*n > len(buf) {
		return nil, fmt.Errorf("%w: %d spans overflow buffer of %d", ErrCallFailed, n, len(buf)/3)
	}

	spans := make([]Span, 0, n)
	for i := range n {
		start, end := int(buf[3*i]), int(buf[3*i+1])
		cat, err := safecast.Conv[uint8](buf[3*i+2])
		if err != nil || !token.Category(cat).Valid() {
			return nil, fmt.Errorf("%w: span %d has invalid category %d", ErrCallFailed, i, buf[3*i+2])
		}
		if start >= end || end > srcLen {
			return nil, fmt.Errorf("%w: span %d [%d,%d) out of range", ErrCallFailed, i, start, end)
		}
		spans = append(spans, Span{Start: start, End: end, Category: token.Category(cat)})
	}
	return spans, nil
}
