package observers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// LogMailer stands in for the external email-delivery service. It records
// what would have been sent; real delivery is wired in deployment.
type LogMailer struct {
	log *slog.Logger
}

func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) Send(_ context.Context, recipient, template string, data map[string]any) error {
	m.log.Info("email queued", "to", recipient, "template", template, "data", fmt.Sprintf("%v", data))
	return nil
}

// RedisDirectory resolves customer emails from the cache the identity
// service maintains under customer:email:<id>.
type RedisDirectory struct {
	rdb *redis.Client
}

func NewRedisDirectory(rdb *redis.Client) *RedisDirectory {
	return &RedisDirectory{rdb: rdb}
}

func (d *RedisDirectory) EmailFor(ctx context.Context, customerID string) (string, error) {
	v, err := d.rdb.Get(ctx, "customer:email:"+customerID).Result()
	if errors.Is(err, redis.Nil) || (err == nil && v == "") {
		return "", ErrNoEmail
	}
	if err != nil {
		return "", err
	}
	return v, nil
}
