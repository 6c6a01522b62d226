package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/evidlabel/did/internal/config"
	"github.com/evidlabel/did/internal/detect"
	"github.com/evidlabel/did/internal/logger"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// DetectionCache is a Redis-backed cache of recognizer results, keyed by a
// hash of language and text. Serve mode uses it so repeated requests for the
// same document skip detection. Only spans are stored, never documents.
type DetectionCache struct {
	client *redis.Client
	config config.CacheConfig
	logger *logger.Logger

	hits   int64
	misses int64
}

// New creates a Redis-based detection cache and verifies the connection.
func New(cfg config.CacheConfig, log *logger.Logger) (*DetectionCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	c := &DetectionCache{
		client: client,
		config: cfg,
		logger: log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Detection cache initialized",
		zap.Duration("default_ttl", cfg.DefaultTTL),
		zap.String("key_prefix", cfg.KeyPrefix),
	)

	return c, nil
}

// key derives the cache key for a text and language.
func (c *DetectionCache) key(text, language string) string {
	sum := sha256.Sum256([]byte(language + "\x00" + text))
	return fmt.Sprintf("%s:%s", c.config.KeyPrefix, hex.EncodeToString(sum[:]))
}

// Get returns cached spans for the text, if present.
func (c *DetectionCache) Get(ctx context.Context, text, language string) ([]detect.Span, bool, error) {
	data, err := c.client.Get(ctx, c.key(text, language)).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}

	var cached CachedDetection
	if err := json.Unmarshal(data, &cached); err != nil {
		// Treat a corrupt entry as a miss.
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}

	atomic.AddInt64(&c.hits, 1)
	return cached.Spans, true, nil
}

// Put stores spans for the text.
func (c *DetectionCache) Put(ctx context.Context, text, language string, spans []detect.Span) error {
	data, err := json.Marshal(CachedDetection{
		Language: language,
		Spans:    spans,
		CachedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("cache encode failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(text, language), data, c.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("cache put failed: %w", err)
	}
	return nil
}

// Stats returns hit/miss counters.
func (c *DetectionCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	s := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// Close releases the Redis connection.
func (c *DetectionCache) Close() error {
	return c.client.Close()
}

// Recognizer wraps a recognizer with the cache. Cache failures degrade to a
// direct detection call; they never fail the request.
type Recognizer struct {
	inner detect.Recognizer
	cache *DetectionCache
}

// Wrap returns a caching recognizer around inner.
func Wrap(inner detect.Recognizer, cache *DetectionCache) *Recognizer {
	return &Recognizer{inner: inner, cache: cache}
}

// Detect serves spans from the cache when possible.
func (r *Recognizer) Detect(ctx context.Context, text, language string) ([]detect.Span, error) {
	if spans, ok, err := r.cache.Get(ctx, text, language); err == nil && ok {
		return spans, nil
	} else if err != nil {
		r.cache.logger.Warn("Cache lookup failed, detecting directly", zap.Error(err))
	}

	spans, err := r.inner.Detect(ctx, text, language)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Put(ctx, text, language, spans); err != nil {
		r.cache.logger.Warn("Cache store failed", zap.Error(err))
	}
	return spans, nil
}
