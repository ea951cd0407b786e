package sheets

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FormCacheCapacity bounds how many imported form objects stay live during
// one composition. The cap keeps peak memory proportional to cache size on
// very large inputs while still de-duplicating page re-use within a build.
const FormCacheCapacity = 1000

// FormObject is a placeable handle to a source page copied into the output
// document. Release, when set, frees resources the handle pins; it runs on
// eviction.
type FormObject struct {
	TemplateID int
	Width      float32
	Height     float32
	Release    func()
}

// FormCache is a bounded LRU of form objects keyed by source page index. It
// is owned by a single composition and is not safe for concurrent use.
type FormCache struct {
	cache  *lru.Cache[int, FormObject]
	hits   int64
	misses int64
}

// NewFormCache builds a cache holding at most capacity form objects.
func NewFormCache(capacity int) (*FormCache, error) {
	c, err := lru.NewWithEvict(capacity, func(_ int, obj FormObject) {
		if obj.Release != nil {
			obj.Release()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("building form cache: %w", err)
	}
	return &FormCache{cache: c}, nil
}

// Get looks up the form object for a page, counting a hit or a miss.
func (c *FormCache) Get(pageIndex int) (FormObject, bool) {
	obj, ok := c.cache.Get(pageIndex)
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return obj, ok
}

// Add stores a freshly imported form object, evicting the least recently
// used entry when full.
func (c *FormCache) Add(pageIndex int, obj FormObject) {
	c.cache.Add(pageIndex, obj)
}

// Len returns the number of cached objects.
func (c *FormCache) Len() int {
	return c.cache.Len()
}

// Stats returns the hit and miss counts and the hit ratio.
func (c *FormCache) Stats() (hits, misses int64, ratio float64) {
	total := c.hits + c.misses
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}
	return c.hits, c.misses, ratio
}

// Purge empties the cache, running release hooks for every entry.
func (c *FormCache) Purge() {
	c.cache.Purge()
}
