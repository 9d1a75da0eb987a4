package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store guards double-submitted checkouts. A client supplies an idempotency
// key with each checkout attempt; at most one order is ever created per
// (customer, key) pair.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(customerID, idemKey string) string {
	return fmt.Sprintf("checkout:%s:%s", customerID, idemKey)
}

// Recall returns the order id previously recorded for this key, if any.
func (s *Store) Recall(ctx context.Context, customerID, idemKey string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key(customerID, idemKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if v == "" || v == "pending" {
		return "", false, nil
	}
	return v, true, nil
}

// TryLock claims the key for an in-flight checkout. It returns false when
// another attempt already holds it.
func (s *Store) TryLock(ctx context.Context, customerID, idemKey string) (bool, error) {
	return s.rdb.SetNX(ctx, key(customerID, idemKey), "pending", s.ttl).Result()
}

// Remember records the order created for this key so later retries are
// answered without a second checkout.
func (s *Store) Remember(ctx context.Context, customerID, idemKey, orderID string) error {
	return s.rdb.Set(ctx, key(customerID, idemKey), orderID, s.ttl).Err()
}

// Release drops the claim after a failed checkout so the client may retry.
func (s *Store) Release(ctx context.Context, customerID, idemKey string) error {
	return s.rdb.Del(ctx, key(customerID, idemKey)).Err()
}
