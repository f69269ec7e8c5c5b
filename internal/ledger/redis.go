package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "uploads:"

// RedisLedger keeps one list per chat. RPUSH is atomic, so several bot
// processes may share it.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisClient connects and pings the server.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func NewRedisLedger(client *redis.Client) *RedisLedger {
	return &RedisLedger{client: client}
}

func (l *RedisLedger) Append(ctx context.Context, chatID int64, url string) error {
	if err := l.client.RPush(ctx, key(chatID), url).Err(); err != nil {
		return fmt.Errorf("append upload: %w", err)
	}
	return nil
}

func (l *RedisLedger) List(ctx context.Context, chatID int64) ([]string, error) {
	urls, err := l.client.LRange(ctx, key(chatID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	if len(urls) == 0 {
		return nil, nil
	}
	return urls, nil
}

func key(chatID int64) string {
	return keyPrefix + strconv.FormatInt(chatID, 10)
}
