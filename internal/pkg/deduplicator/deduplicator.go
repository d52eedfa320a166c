package deduper

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dupebot/internal/pkg/circuitbreaker"
	"dupebot/internal/pkg/config"
	"dupebot/internal/pkg/logger"
	"dupebot/internal/pkg/metrics"
)

// Timeout applied to every store operation that has no earlier deadline.
const operationTimeout = time.Second

// Maps link fingerprints to the permalink of the message that first posted
// them, with a reverse index from message to fingerprints.
type Store interface {
	// Returns the reference stored for hash, if any.
	Lookup(ctx context.Context, hash string) (string, bool, error)
	// Unconditionally stores hash -> reference and indexes hash under indexKey.
	Record(ctx context.Context, hash, reference, indexKey string) error
	// Atomic lookup-or-record. When hash is already known its reference is
	// returned with duplicate=true and nothing is written.
	Claim(ctx context.Context, hash, reference, indexKey string) (prior string, duplicate bool, err error)
	// Removes every fingerprint recorded under indexKey, and the index.
	Forget(ctx context.Context, indexKey string) error
	Close() error
}

// Implements the Store interface with Redis as the backing store.
type redisStore struct {
	client         *redis.Client
	redisKeyPrefix string
	retention      time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

// KEYS[1] link key, KEYS[2] index key.
// ARGV[1] reference, ARGV[2] hash, ARGV[3] retention in ms (0 = keep).
var claimScript = redis.NewScript(`
local prior = redis.call("GET", KEYS[1])
if prior then
	return prior
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ttl)
else
	redis.call("SET", KEYS[1], ARGV[1])
end
redis.call("SADD", KEYS[2], ARGV[2])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[2], ttl)
end
return false
`)

// KEYS[1] index key. ARGV[1] link key prefix.
var forgetScript = redis.NewScript(`
local hashes = redis.call("SMEMBERS", KEYS[1])
for _, hash in ipairs(hashes) do
	redis.call("DEL", ARGV[1] .. hash)
end
redis.call("DEL", KEYS[1])
return #hashes
`)

// Connects to Redis as described by config and returns a Store on top of it.
func NewRedisStore(config *config.Config) (Store, error) {
	options := &redis.Options{
		Addr:     config.RedisAddr(),
		Password: config.RedisPassword, // "" if no auth
		DB:       config.RedisDB,
	}
	if config.RedisURL != "" {
		parsed, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		options = parsed
	}
	rdb := redis.NewClient(options)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Log.Error("Failed to connect to Redis", zap.String("addr", options.Addr), zap.Error(err))
		rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", options.Addr, err)
	}

	logger.Log.Info("Connected to Redis successfully",
		zap.String("addr", options.Addr),
		zap.Int("db", options.DB),
	)

	breaker := circuitbreaker.NewCircuitBreaker("redis", config.BreakerThreshold, config.BreakerReset)
	return NewStore(rdb, config.RedisKeyPrefix, config.Retention, breaker), nil
}

// Wraps an existing client. A nil breaker disables fast failing.
func NewStore(client *redis.Client, prefix string, retention time.Duration, breaker *circuitbreaker.CircuitBreaker) Store {
	if prefix != "" {
		prefix += ":"
	}
	return &redisStore{
		client:         client,
		redisKeyPrefix: prefix,
		retention:      retention,
		breaker:        breaker,
	}
}

// Hashes "{link}-{scope}" with xxhash. Collisions are not handled.
func Fingerprint(link, scope string) string {
	return strconv.FormatUint(xxhash.Sum64String(link+"-"+scope), 16)
}

// Key of the reverse index for a message within a scope.
func IndexKey(scope, messageID string) string {
	return scope + "-" + messageID
}

func (s *redisStore) linkKey(hash string) string {
	return s.redisKeyPrefix + "link:" + hash
}

func (s *redisStore) indexKey(indexKey string) string {
	return s.redisKeyPrefix + "msg:" + indexKey
}

func (s *redisStore) Lookup(ctx context.Context, hash string) (string, bool, error) {
	var reference string
	var found bool
	err := s.execute(ctx, "lookup", func(ctx context.Context) error {
		value, err := s.client.Get(ctx, s.linkKey(hash)).Result()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		reference, found = value, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("lookup %s: %w", hash, err)
	}
	return reference, found, nil
}

func (s *redisStore) Record(ctx context.Context, hash, reference, indexKey string) error {
	err := s.execute(ctx, "record", func(ctx context.Context) error {
		_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.linkKey(hash), reference, s.retention)
			pipe.SAdd(ctx, s.indexKey(indexKey), hash)
			if s.retention > 0 {
				pipe.PExpire(ctx, s.indexKey(indexKey), s.retention)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("record %s: %w", hash, err)
	}
	return nil
}

func (s *redisStore) Claim(ctx context.Context, hash, reference, indexKey string) (string, bool, error) {
	var prior string
	var duplicate bool
	err := s.execute(ctx, "claim", func(ctx context.Context) error {
		keys := []string{s.linkKey(hash), s.indexKey(indexKey)}
		value, err := claimScript.Run(ctx, s.client, keys, reference, hash, s.retention.Milliseconds()).Text()
		if errors.Is(err, redis.Nil) {
			// Recorded as new.
			return nil
		}
		if err != nil {
			return err
		}
		prior, duplicate = value, true
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("claim %s: %w", hash, err)
	}
	return prior, duplicate, nil
}

func (s *redisStore) Forget(ctx context.Context, indexKey string) error {
	err := s.execute(ctx, "forget", func(ctx context.Context) error {
		removed, err := forgetScript.Run(ctx, s.client, []string{s.indexKey(indexKey)}, s.linkKey("")).Int()
		if err != nil {
			return err
		}
		logger.Log.Debug("Forgot message fingerprints",
			zap.String("index_key", indexKey),
			zap.Int("removed", removed))
		return nil
	})
	if err != nil {
		return fmt.Errorf("forget %s: %w", indexKey, err)
	}
	return nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}

// Runs fn with a timeout, through the circuit breaker, recording latency
// and failures under the operation label.
func (s *redisStore) execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	start := time.Now()
	call := func() error { return fn(ctx) }
	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(call)
	} else {
		err = call()
	}
	metrics.CacheLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.CacheErrors.WithLabelValues(operation).Inc()
	}
	return err
}
