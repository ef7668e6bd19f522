package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Record 幂等键对应的执行记录
type Record struct {
	Status    string `json:"status"` // pending, succeeded, failed
	Amount    string `json:"amount"`
	GatewayID string `json:"gatewayId,omitempty"`
}

const (
	StatusPending   = "pending"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Lua 脚本：不存在则占位并返回 nil，存在则返回已有记录
// 保证"检查 + 占位"原子执行，重试方看到的要么是自己的占位要么是先前的结果
var claimScript = redis.NewScript(`
	local existing = redis.call("GET", KEYS[1])
	if existing == false then
		redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[2])
		return false
	end
	return existing
`)

// Store 网关调用幂等键存储
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) key(kind, id string) string {
	return fmt.Sprintf("idem:%s:%s", kind, id)
}

// Claim 尝试占用幂等键
// 占用成功返回 (nil, true)；键已存在返回先前的记录和 false
func (s *Store) Claim(ctx context.Context, kind, id string, rec Record) (*Record, bool, error) {
	rec.Status = StatusPending
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, false, err
	}

	result, err := claimScript.Run(ctx, s.rdb, []string{s.key(kind, id)}, payload, int(s.ttl.Seconds())).Result()
	if err == redis.Nil || result == nil {
		// 脚本返回 false 表示占位成功
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis error: %w", err)
	}

	raw, ok := result.(string)
	if !ok {
		return nil, false, fmt.Errorf("unexpected claim result type %T", result)
	}
	var existing Record
	if err := json.Unmarshal([]byte(raw), &existing); err != nil {
		return nil, false, err
	}
	return &existing, false, nil
}

// Complete 将幂等键标记为终态（succeeded / failed）
func (s *Store) Complete(ctx context.Context, kind, id string, rec Record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(kind, id), payload, s.ttl).Err()
}

// Release 放弃占位，允许后续重试重新发起
func (s *Store) Release(ctx context.Context, kind, id string) error {
	return s.rdb.Del(ctx, s.key(kind, id)).Err()
}
