package workspace

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
)

type parsedBody struct {
	block *ast.Block
	diags []diag.Diagnostic
}

// BodyCache keeps the most recently resolved function bodies. Bodies that
// fall out are simply parsed again on the next visit.
type BodyCache struct {
	cache  *lru.Cache[*ast.LazyBody, parsedBody]
	hits   atomic.Int64
	misses atomic.Int64
}

func NewBodyCache(size int) *BodyCache {
	if size <= 0 {
		size = DefaultBodyCacheSize
	}
	// lru.New only fails for a non-positive size.
	c, _ := lru.New[*ast.LazyBody, parsedBody](size)
	return &BodyCache{cache: c}
}

// Resolve returns the parsed statements of b.
func (c *BodyCache) Resolve(b *ast.LazyBody) (*ast.Block, []diag.Diagnostic) {
	if b == nil {
		return nil, nil
	}
	if p, ok := c.cache.Get(b); ok {
		c.hits.Add(1)
		return p.block, p.diags
	}
	c.misses.Add(1)
	block, diags := b.Parse()
	c.cache.Add(b, parsedBody{block: block, diags: diags})
	return block, diags
}

func (c *BodyCache) Len() int { return c.cache.Len() }

// Stats returns cache hits and misses.
func (c *BodyCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
