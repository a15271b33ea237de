package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/drive-module/internal/domain/model"
)

// Prometheus-метрики кэша ссылок.
var (
	shareCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_share_cache_hits_total",
		Help: "Общее количество попаданий в кэш ссылок доступа.",
	})
	shareCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dm_share_cache_misses_total",
		Help: "Общее количество промахов кэша ссылок доступа.",
	})
)

// ShareCache — LRU-кэш ссылок по токену с TTL.
// Ссылки неизменяемы, поэтому инвалидация нужна только при удалении.
// Методы безопасны для nil-получателя: nil означает выключенный кэш.
type ShareCache struct {
	cache *expirable.LRU[string, *model.Share]
}

// NewShareCache создаёт кэш. maxSize <= 0 — кэш выключен (nil).
func NewShareCache(maxSize int, ttl time.Duration) *ShareCache {
	if maxSize <= 0 {
		return nil
	}
	return &ShareCache{cache: expirable.NewLRU[string, *model.Share](maxSize, nil, ttl)}
}

// Get возвращает копию ссылки по токену.
func (c *ShareCache) Get(token string) (*model.Share, bool) {
	if c == nil {
		return nil, false
	}
	val, ok := c.cache.Get(token)
	if ok {
		shareCacheHitsTotal.Inc()
		cp := *val
		return &cp, true
	}
	shareCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет ссылку в кэш.
func (c *ShareCache) Set(s *model.Share) {
	if c == nil {
		return
	}
	cp := *s
	c.cache.Add(s.Token, &cp)
}

// Invalidate удаляет токены из кэша.
func (c *ShareCache) Invalidate(tokens ...string) {
	if c == nil {
		return
	}
	for _, t := range tokens {
		c.cache.Remove(t)
	}
}

// Len возвращает количество записей.
func (c *ShareCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
