package llm

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"

	"github.com/assemblage-lab/governor/pkg/contracts"
	"github.com/assemblage-lab/governor/pkg/governance"
)

// DefaultCacheTTL bounds how long an opinion is reused.
const DefaultCacheTTL = 24 * time.Hour

// OpinionCache stores oracle opinions by content key.
type OpinionCache interface {
	Get(ctx context.Context, key string) (*governance.OracleOpinion, bool, error)
	Set(ctx context.Context, key string, op governance.OracleOpinion, ttl time.Duration) error
}

// RedisOpinionCache implements OpinionCache on Redis.
type RedisOpinionCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisOpinionCache wraps an existing client.
func NewRedisOpinionCache(client redis.UniversalClient) *RedisOpinionCache {
	return &RedisOpinionCache{client: client, prefix: "governor:opinion:"}
}

// DialRedisOpinionCache connects to addr.
func DialRedisOpinionCache(addr, password string, db int) *RedisOpinionCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisOpinionCache(rdb)
}

func (c *RedisOpinionCache) Get(ctx context.Context, key string) (*governance.OracleOpinion, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis opinion cache: %w", err)
	}
	var op governance.OracleOpinion
	if err := json.Unmarshal(raw, &op); err != nil {
		return nil, false, fmt.Errorf("redis opinion cache: corrupt entry %s: %w", key, err)
	}
	return &op, true, nil
}

func (c *RedisOpinionCache) Set(ctx context.Context, key string, op governance.OracleOpinion, ttl time.Duration) error {
	raw, err := json.Marshal(op)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis opinion cache: %w", err)
	}
	return nil
}

// CachedOracle reuses opinions for identical inputs. Cache failures degrade
// to a direct call. Abstentions, errors and degraded opinions are never
// cached.
type CachedOracle struct {
	next   governance.EscalationOracle
	cache  OpinionCache
	ttl    time.Duration
	salt   string
	logger *slog.Logger
}

// NewCachedOracle wraps next. salt separates entries across prompt or
// model changes.
func NewCachedOracle(next governance.EscalationOracle, cache OpinionCache, ttl time.Duration, salt string, logger *slog.Logger) *CachedOracle {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedOracle{next: next, cache: cache, ttl: ttl, salt: salt, logger: logger.With("component", "opinion_cache")}
}

func (o *CachedOracle) Evaluate(ctx context.Context, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (*governance.OracleOpinion, error) {
	key, err := OpinionKey(o.salt, doc, cfg)
	if err != nil {
		return o.next.Evaluate(ctx, doc, cfg)
	}

	if op, ok, err := o.cache.Get(ctx, key); err != nil {
		o.logger.WarnContext(ctx, "opinion cache read failed", "error", err)
	} else if ok {
		return op, nil
	}

	op, err := o.next.Evaluate(ctx, doc, cfg)
	if err != nil || op == nil || op.Degraded {
		return op, err
	}
	if err := o.cache.Set(ctx, key, *op, o.ttl); err != nil {
		o.logger.WarnContext(ctx, "opinion cache write failed", "error", err)
	}
	return op, nil
}

// OpinionKey is the blake2b-256 digest of the audited inputs.
func OpinionKey(salt string, doc *contracts.AnalysisResult, cfg contracts.EscalationConfiguration) (string, error) {
	var in struct {
		Salt            string                       `json:"salt"`
		KeyInsight      string                       `json:"key_insight"`
		RawResponse     string                       `json:"raw_response"`
		Assemblage      any                          `json:"assemblage"`
		RecurrenceCount int                          `json:"recurrence_count"`
		Domain          contracts.RiskDomainSeverity `json:"domain"`
	}
	in.Salt = salt
	if doc != nil {
		in.KeyInsight = doc.KeyInsight
		in.RawResponse = doc.RawResponse
		in.Assemblage = doc.AssemblageAnalysis
	}
	in.RecurrenceCount = cfg.RecurrenceCount
	in.Domain = cfg.RiskDomainSeverity

	raw, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
