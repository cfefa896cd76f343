package nav

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
)

// PathCache memoises search results for one tile-map revision. Any map
// mutation bumps the revision, so stale entries are never served; they age
// out of the cache on their own. Invalidate must be called when the grid
// itself is swapped, since a new map restarts its revision count.
type PathCache struct {
	c     *ristretto.Cache[string, Path]
	epoch uint64
}

func NewPathCache(maxPaths int64) (*PathCache, error) {
	if maxPaths <= 0 {
		maxPaths = 4096
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, Path]{
		NumCounters: maxPaths * 10,
		MaxCost:     maxPaths,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("new path cache: %w", err)
	}
	return &PathCache{c: c}, nil
}

func (p *PathCache) key(rev uint64, req Request) string {
	return fmt.Sprintf("%d|%d|%v|%v|%d", p.epoch, rev, req.From, req.To, req.Traversable)
}

// Get returns a copy of a cached path.
func (p *PathCache) Get(rev uint64, req Request) (Path, bool) {
	v, ok := p.c.Get(p.key(rev, req))
	if !ok {
		return nil, false
	}
	return append(Path{}, v...), true
}

func (p *PathCache) Set(rev uint64, req Request, path Path) {
	p.c.Set(p.key(rev, req), append(Path{}, path...), 1)
}

// Invalidate drops every entry.
func (p *PathCache) Invalidate() {
	p.epoch++
	p.c.Clear()
}

// Wait blocks until buffered writes are applied.
func (p *PathCache) Wait() { p.c.Wait() }

func (p *PathCache) Close() { p.c.Close() }
