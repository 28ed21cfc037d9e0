package coderun

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// ProgramCache keeps parsed programs keyed by their source text so that
// recompiling an unchanged script skips lexing and parsing. Programs are
// never modified after parsing and may be shared between engines.
type ProgramCache struct {
	cache *ristretto.Cache
}

func NewProgramCache(maxPrograms int) (*ProgramCache, error) {
	if maxPrograms <= 0 {
		return nil, fmt.Errorf("program cache size must be positive, got %d", maxPrograms)
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: int64(maxPrograms * 10),
		MaxCost:     int64(maxPrograms),
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ProgramCache{cache: cache}, nil
}

func cacheKey(source string, maxDepth int) string {
	return fmt.Sprintf("%d:%s", maxDepth, source)
}

func (c *ProgramCache) Get(source string, maxDepth int) (*Program, bool) {
	v, ok := c.cache.Get(cacheKey(source, maxDepth))
	if !ok {
		return nil, false
	}
	p, ok := v.(*Program)
	return p, ok
}

func (c *ProgramCache) Put(source string, maxDepth int, p *Program) {
	if p == nil {
		return
	}
	c.cache.Set(cacheKey(source, maxDepth), p, 1)
	c.cache.Wait()
}

func (c *ProgramCache) Clear() {
	c.cache.Clear()
}

func (c *ProgramCache) Close() {
	c.cache.Close()
}
