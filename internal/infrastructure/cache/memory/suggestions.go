package memory

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sitedocs/docqa/internal/core/domain"
)

// SuggestionCache keeps tested suggestion lists in process memory with a
// TTL. Entries are small and reads dominate, so no external store needed.
type SuggestionCache struct {
	cache *gocache.Cache
}

func NewSuggestionCache(ttl time.Duration) *SuggestionCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SuggestionCache{
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *SuggestionCache) Get(projectID, question string) ([]domain.QuerySuggestion, bool) {
	value, ok := c.cache.Get(cacheKey(projectID, question))
	if !ok {
		return nil, false
	}
	suggestions, ok := value.([]domain.QuerySuggestion)
	return suggestions, ok
}

func (c *SuggestionCache) Set(projectID, question string, suggestions []domain.QuerySuggestion) {
	c.cache.SetDefault(cacheKey(projectID, question), suggestions)
}

// cacheKey normalizes the question so trivial whitespace and casing
// variants share an entry.
func cacheKey(projectID, question string) string {
	return projectID + "\x00" + strings.ToLower(strings.TrimSpace(question))
}
