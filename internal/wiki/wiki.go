// Package wiki answers the WIKI command: a keyword is resolved to an
// article slug and returned as a full URL. Slugs come from the config and
// are mirrored into Redis so services sharing the instance can add or
// override entries at runtime.
package wiki

import (
	"context"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "wiki:slug:"

// Store resolves wiki keywords. A nil Redis client serves from the seeded
// map alone.
type Store struct {
	baseURL string
	seed    map[string]string
	rdb     *redis.Client
}

// New creates a Store and mirrors the seed slugs into Redis. Mirror
// failures are logged and ignored; lookups fall back to the seed map.
func New(ctx context.Context, baseURL string, slugs map[string]string, rdb *redis.Client) *Store {
	s := &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		seed:    make(map[string]string, len(slugs)),
		rdb:     rdb,
	}
	for kw, slug := range slugs {
		kw = strings.ToLower(kw)
		s.seed[kw] = slug
		if rdb != nil {
			if err := rdb.Set(ctx, keyPrefix+kw, slug, 0).Err(); err != nil {
				log.Printf("[wiki] seed %q: %v", kw, err)
			}
		}
	}
	return s
}

// Lookup resolves keyword to an article URL. Redis entries win over the
// config seed so runtime additions take effect without a rehash; a Redis
// error falls back to the seed.
func (s *Store) Lookup(ctx context.Context, keyword string) (string, bool) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return "", false
	}

	if s.rdb != nil {
		slug, err := s.rdb.Get(ctx, keyPrefix+keyword).Result()
		if err == nil {
			return s.url(slug), true
		}
		if err != redis.Nil {
			log.Printf("[wiki] lookup %q: %v", keyword, err)
		}
	}

	slug, ok := s.seed[keyword]
	if !ok {
		return "", false
	}
	return s.url(slug), true
}

func (s *Store) url(slug string) string {
	return s.baseURL + "/" + slug
}
