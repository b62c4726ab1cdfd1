// internal/validation/cache.go
package validation

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/xkilldash9x/testflow-cli/api/schemas"
)

// Cache memoizes oracle verdicts keyed by the expected result and the exact
// page content it was judged against. Re-running a case against an unchanged
// page should not cost another model call.
type Cache struct {
	lru *lru.Cache[string, schemas.ValidationResult]
}

// NewCache creates a bounded judgment cache. A non-positive size disables
// caching and returns nil; callers treat a nil cache as a miss on every
// lookup.
func NewCache(size int) *Cache {
	if size <= 0 {
		return nil
	}
	// Only errors on non-positive size, which is guarded above.
	c, err := lru.New[string, schemas.ValidationResult](size)
	if err != nil {
		return nil
	}
	return &Cache{lru: c}
}

// Key derives the cache key for one judgment.
func Key(expected, pageContent string) string {
	h := sha256.New()
	h.Write([]byte(expected))
	h.Write([]byte{0})
	h.Write([]byte(pageContent))
	return hex.EncodeToString(h.Sum(nil))
}

// Get looks up a prior verdict.
func (c *Cache) Get(key string) (schemas.ValidationResult, bool) {
	if c == nil {
		return schemas.ValidationResult{}, false
	}
	return c.lru.Get(key)
}

// Put stores a verdict.
func (c *Cache) Put(key string, result schemas.ValidationResult) {
	if c == nil {
		return
	}
	c.lru.Add(key, result)
}
