package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain/ports/adapter"
	"offer-ai-service/internal/infra/metrics"
)

var _ adapter.CatalogSearcher = (*SearchCache)(nil)

// SearchCache memoizes catalog search results keyed by the normalized description.
// Cache failures fall through to the wrapped searcher.
type SearchCache struct {
	next   adapter.CatalogSearcher
	client RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewSearchCache(next adapter.CatalogSearcher, client RedisClient, ttl time.Duration, log *zerolog.Logger) *SearchCache {
	return &SearchCache{next: next, client: client, ttl: ttl, log: log}
}

func searchKey(description string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(description)), " ")
	sum := sha256.Sum256([]byte(norm))
	return "catalog_search:" + hex.EncodeToString(sum[:12])
}

func (c *SearchCache) Search(ctx context.Context, description string) (*adapter.SearchResults, error) {
	key := searchKey(description)
	data, err := c.client.Get(ctx, key)
	switch {
	case err == nil:
		var res adapter.SearchResults
		if uerr := json.Unmarshal([]byte(data), &res); uerr == nil {
			metrics.IncCacheRequest("catalog_search", "hit")
			return &res, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding undecodable cache entry")
	case errors.Is(err, redis.Nil):
	default:
		c.log.Warn().Err(err).Msg("search cache read failed")
	}
	metrics.IncCacheRequest("catalog_search", "miss")

	res, err := c.next.Search(ctx, description)
	if err != nil {
		return nil, err
	}
	if b, merr := json.Marshal(res); merr == nil {
		if serr := c.client.Set(ctx, key, b, c.ttl); serr != nil {
			c.log.Warn().Err(serr).Msg("search cache write failed")
		}
	}
	return res, nil
}
