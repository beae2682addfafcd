package ranking

import (
	"context"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/okian/payday/internal/domain/model"
	"github.com/okian/payday/pkg/metrics"
)

const defaultCacheSize = 256

// CachedSource memoizes ranking snapshots per league and period. Entries of
// a league must be invalidated whenever its performance data is refreshed.
type CachedSource struct {
	next  Source
	cache *lru.Cache[string, []model.RankedParticipant]
}

// NewCachedSource wraps next with an LRU of the given size (default 256 when
// size <= 0).
func NewCachedSource(next Source, size int) (*CachedSource, error) {
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []model.RankedParticipant](size)
	if err != nil {
		return nil, ErrInvalidCacheCap
	}
	return &CachedSource{next: next, cache: cache}, nil
}

func cacheKey(leagueID string, period model.Period) string {
	return leagueID + "|" + period.String()
}

// RankedParticipants implements Source.
func (c *CachedSource) RankedParticipants(ctx context.Context, league model.League, period model.Period) ([]model.RankedParticipant, error) {
	key := cacheKey(league.ID, period)
	if ranked, ok := c.cache.Get(key); ok {
		metrics.RecordRankingCache(true)
		return slices.Clone(ranked), nil
	}
	metrics.RecordRankingCache(false)
	ranked, err := c.next.RankedParticipants(ctx, league, period)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, ranked)
	return slices.Clone(ranked), nil
}

// Invalidate drops every cached snapshot of a league.
func (c *CachedSource) Invalidate(leagueID string) {
	prefix := leagueID + "|"
	for _, k := range c.cache.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Remove(k)
		}
	}
}

// Len returns the number of cached snapshots.
func (c *CachedSource) Len() int {
	return c.cache.Len()
}
