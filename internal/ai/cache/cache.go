// Package cache remembers text classification scores in Redis.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spigell/offer-matcher/internal/ai"
	"github.com/spigell/offer-matcher/internal/logger"
)

const (
	keyPrefix  = "offer-matcher:moderation:"
	defaultTTL = 7 * 24 * time.Hour
)

// errMiss is returned by a store when the key is absent.
var errMiss = errors.New("cache miss")

type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type redisStore struct {
	client *redis.Client
}

func (s redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errMiss
	}
	return data, err
}

func (s redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL(%q): %w", redisURL, err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Classifier wraps another classifier and serves repeated texts from the cache.
// Cache failures are logged and fall through to the wrapped classifier.
type Classifier struct {
	next   ai.TextClassifier
	store  store
	ttl    time.Duration
	logger *zap.Logger
}

var _ ai.BatchClassifier = (*Classifier)(nil)

func New(next ai.TextClassifier, client *redis.Client, ttl time.Duration, log *zap.Logger) *Classifier {
	return newClassifier(next, redisStore{client: client}, ttl, log)
}

func newClassifier(next ai.TextClassifier, s store, ttl time.Duration, log *zap.Logger) *Classifier {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Classifier{
		next:   next,
		store:  s,
		ttl:    ttl,
		logger: logger.WithFields(log, zap.String("cache", "redis")),
	}
}

func (c *Classifier) Classify(ctx context.Context, text string) (*ai.RiskScores, error) {
	if scores, ok := c.lookup(ctx, text); ok {
		return scores, nil
	}

	scores, err := c.next.Classify(ctx, text)
	if err != nil {
		return nil, err
	}

	c.remember(ctx, text, scores)
	return scores, nil
}

// ClassifyBatch serves cached texts and sends the rest to the wrapped classifier,
// as one batch when it supports batching.
func (c *Classifier) ClassifyBatch(ctx context.Context, texts []string) []ai.BatchResult {
	results := make([]ai.BatchResult, len(texts))
	var misses []int
	for i, text := range texts {
		results[i].Index = i
		if scores, ok := c.lookup(ctx, text); ok {
			results[i].Scores = scores
			continue
		}
		misses = append(misses, i)
	}
	if len(misses) == 0 {
		return results
	}

	pending := make([]string, len(misses))
	for i, idx := range misses {
		pending[i] = texts[idx]
	}

	var fresh []ai.BatchResult
	if batcher, ok := c.next.(ai.BatchClassifier); ok {
		fresh = batcher.ClassifyBatch(ctx, pending)
	} else {
		fresh = make([]ai.BatchResult, len(pending))
		for i, text := range pending {
			scores, err := c.next.Classify(ctx, text)
			fresh[i] = ai.BatchResult{Index: i, Scores: scores, Error: err}
		}
	}

	answered := make([]bool, len(misses))
	for _, r := range fresh {
		if r.Index < 0 || r.Index >= len(misses) {
			continue
		}
		answered[r.Index] = true
		idx := misses[r.Index]
		results[idx].Scores, results[idx].Error = r.Scores, r.Error
		if r.Error == nil && r.Scores != nil {
			c.remember(ctx, texts[idx], r.Scores)
		}
	}
	for i, ok := range answered {
		if !ok {
			results[misses[i]].Error = errors.New("missing from batch response")
		}
	}

	return results
}

func (c *Classifier) lookup(ctx context.Context, text string) (*ai.RiskScores, bool) {
	key := Key(text)

	data, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		var scores ai.RiskScores
		if err := json.Unmarshal(data, &scores); err == nil {
			c.logger.Debug("classification served from cache", zap.String("key", key))
			return &scores, true
		}
		c.logger.Warn("dropping unreadable cache entry", zap.String("key", key))
	case !errors.Is(err, errMiss):
		c.logger.Warn("reading classification cache", zap.Error(err))
	}
	return nil, false
}

func (c *Classifier) remember(ctx context.Context, text string, scores *ai.RiskScores) {
	data, err := json.Marshal(scores)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, Key(text), data, c.ttl); err != nil {
		c.logger.Warn("writing classification cache", zap.Error(err))
	}
}

// Key derives the cache key from the normalized text.
func Key(text string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(text), " ")))
	return keyPrefix + hex.EncodeToString(sum[:])
}
