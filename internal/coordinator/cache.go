package coordinator

import (
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"

	"github.com/dshills/lexbridge/internal/token"
)

// resultCache keeps recent streams keyed by language, backend and content.
// A nil cache misses and ignores stores.
type resultCache struct {
	c *gocache.Cache
}

func newResultCache(ttl time.Duration) *resultCache {
	return &resultCache{c: gocache.New(ttl, 2*ttl)}
}

func cacheKey(lang token.Language, backendID, text string) string {
	var b strings.Builder
	b.WriteString(lang.String())
	b.WriteByte('|')
	b.WriteString(backendID)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(len(text)))
	b.WriteByte('|')
	b.WriteString(strconv.FormatUint(xxhash.Sum64String(text), 16))
	return b.String()
}

func (rc *resultCache) get(key string) (token.Stream, bool) {
	if rc == nil {
		return token.Stream{}, false
	}
	v, ok := rc.c.Get(key)
	if !ok {
		return token.Stream{}, false
	}
	stream, ok := v.(token.Stream)
	return stream, ok
}

func (rc *resultCache) set(key string, stream token.Stream) {
	if rc == nil {
		return
	}
	rc.c.SetDefault(key, stream)
}

func (rc *resultCache) len() int {
	if rc == nil {
		return 0
	}
	return rc.c.ItemCount()
}

func (rc *resultCache) flush() {
	if rc != nil {
		rc.c.Flush()
	}
}
