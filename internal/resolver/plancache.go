package resolver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/dgraph-io/ristretto/v2"

	"mysql-graphql/internal/compiler"
)

// DefaultPlanCacheEntries bounds the plan cache when no size is configured.
const DefaultPlanCacheEntries = 1024

// planCache holds compiled plans keyed by role, snapshot version, and raw
// operation text. Entries cost one unit each; admission and eviction follow
// ristretto's TinyLFU policy.
type planCache struct {
	cache *ristretto.Cache[string, *compiler.Plan]
}

func newPlanCache(entries int64) (*planCache, error) {
	if entries <= 0 {
		entries = DefaultPlanCacheEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *compiler.Plan]{
		NumCounters: entries * 10,
		MaxCost:     entries,
		BufferItems: 64,
		Metrics:     true,
	})
	if err != nil {
		return nil, err
	}
	return &planCache{cache: cache}, nil
}

func (p *planCache) get(key string) (*compiler.Plan, bool) {
	return p.cache.Get(key)
}

func (p *planCache) put(key string, plan *compiler.Plan) {
	p.cache.Set(key, plan, 1)
}

// wait flushes pending writes so a stored plan becomes visible; tests rely
// on it for read-your-write checks.
func (p *planCache) wait() {
	p.cache.Wait()
}

func (p *planCache) close() {
	p.cache.Close()
}

func (p *planCache) hitRatio() float64 {
	return p.cache.Metrics.Ratio()
}

// planKey digests every component with a length frame so no concatenation
// of role, snapshot version, and operation text collides with another. The
// digest covers the raw text: a literal change misses the cache while a
// variable value change hits it.
func planKey(role string, version uint64, query, operationName string) string {
	h := sha256.New()
	for _, part := range []string{role, strconv.FormatUint(version, 10), query, operationName} {
		_, _ = fmt.Fprintf(h, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(h.Sum(nil))
}
