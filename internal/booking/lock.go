package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/dental-voice-scheduler/pkg/logging"
)

// ErrSlotLocked is returned when another booking for the same slot holds the lock.
var ErrSlotLocked = errors.New("booking: slot is locked by another request")

// SlotLocker serializes check-then-insert for one appointment slot. Acquire
// does not wait: it either takes the lock or returns ErrSlotLocked.
type SlotLocker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context), err error)
}

const defaultSlotLockTTL = 30 * time.Second

// releaseScript deletes the lock only while it still holds our token, so an
// expired lock re-taken by another request is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSlotLocker holds slot locks in Redis so every replica sees them.
type RedisSlotLocker struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisSlotLocker returns a Redis-backed locker. ttl bounds how long a
// crashed request can block a slot.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisSlotLocker {
	if client == nil {
		panic("booking: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSlotLockTTL
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisSlotLocker{redis: client, ttl: ttl, logger: logger}
}

var _ SlotLocker = (*RedisSlotLocker)(nil)

func (l *RedisSlotLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	redisKey := slotLockKey(key)
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("booking: acquire slot lock: %w", err)
	}
	if !ok {
		return nil, ErrSlotLocked
	}
	return func(ctx context.Context) {
		if err := releaseScript.Run(ctx, l.redis, []string{redisKey}, token).Err(); err != nil {
			l.logger.Warn("slot lock release failed; held until expiry",
				"key", redisKey, "ttl", l.ttl.String(), "error", err)
		}
	}, nil
}

func slotLockKey(key string) string {
	return fmt.Sprintf("slot_lock:%s", key)
}

// LocalSlotLocker holds slot locks in process memory. It protects a single
// replica only.
type LocalSlotLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalSlotLocker returns an in-process locker.
func NewLocalSlotLocker() *LocalSlotLocker {
	return &LocalSlotLocker{held: make(map[string]struct{})}
}

var _ SlotLocker = (*LocalSlotLocker)(nil)

func (l *LocalSlotLocker) Acquire(ctx context.Context, key string) (func(context.Context), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return nil, ErrSlotLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
