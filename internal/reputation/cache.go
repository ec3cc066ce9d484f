package reputation

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Akshita3104/SentinelAi-sub000/internal/core/model"
	"github.com/Akshita3104/SentinelAi-sub000/internal/metrics"
)

// suspiciousScoreCutoff is the raw-score boundary for the entry status. It is
// deliberately independent of the configurable threat threshold used by the
// fusion policy.
const suspiciousScoreCutoff = 25

// Entry is one memoized reputation result, valid for the cache TTL.
type Entry struct {
	Score      int
	Status     string // clean | suspicious
	InsertedAt time.Time
}

// Cache is the TTL-bounded memoization layer guarding the reputation service.
// Concurrent lookups for the same cold IP may each go upstream; last writer
// wins.
type Cache struct {
	checker Checker
	ttl     time.Duration
	log     *logrus.Entry

	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache wraps checker with a TTL cache.
func NewCache(checker Checker, ttl time.Duration, logger *logrus.Entry) *Cache {
	return &Cache{
		checker: checker,
		ttl:     ttl,
		log:     logger,
		entries: make(map[string]Entry),
	}
}

// Lookup returns the reputation outcome for ip. A fresh cache entry answers
// without an upstream request. Upstream failures are never cached and yield
// an Unavailable outcome.
func (c *Cache) Lookup(ctx context.Context, ip string) model.ReputationOutcome {
	now := time.Now()

	c.mu.RLock()
	entry, ok := c.entries[ip]
	c.mu.RUnlock()
	if ok && now.Sub(entry.InsertedAt) < c.ttl {
		metrics.ReputationCacheHits.Inc()
		return model.ReputationOutcome{Available: true, Score: entry.Score, Status: entry.Status}
	}

	metrics.ReputationCacheMisses.Inc()
	score, err := c.checker.Check(ctx, ip)
	if err != nil {
		metrics.GraderFailures.WithLabelValues("reputation").Inc()
		c.log.WithError(err).WithField("ip", ip).Warn("reputation lookup failed")
		return model.Unavailable()
	}

	entry = Entry{Score: score, Status: statusFor(score), InsertedAt: now}
	c.mu.Lock()
	c.entries[ip] = entry
	c.mu.Unlock()

	return model.ReputationOutcome{Available: true, Score: entry.Score, Status: entry.Status}
}

// Size returns the number of cached entries, fresh or stale.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func statusFor(score int) string {
	if score > suspiciousScoreCutoff {
		return "suspicious"
	}
	return "clean"
}
