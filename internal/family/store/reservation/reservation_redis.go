package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kinlink/pkg/platform/sentinel"
)

const (
	// Redis key prefixes for claimed identifiers
	emailClaimKeyPrefix = "family:claim:email:"
	phoneClaimKeyPrefix = "family:claim:phone:"
)

// Redis claims email/phone pairs across instances with SET NX, so two
// servers cannot create the same person concurrently. The TTL bounds how
// long a crashed instance can hold a claim.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis constructs a Redis-backed reservation.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Reserve(ctx context.Context, email, phone string) error {
	claimed, err := r.client.SetNX(ctx, emailClaimKeyPrefix+email, "1", r.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim email: %w", err)
	}
	if !claimed {
		return sentinel.ErrAlreadyUsed
	}

	claimed, err = r.client.SetNX(ctx, phoneClaimKeyPrefix+phone, "1", r.ttl).Result()
	if err != nil {
		r.client.Del(ctx, emailClaimKeyPrefix+email)
		return fmt.Errorf("claim phone: %w", err)
	}
	if !claimed {
		r.client.Del(ctx, emailClaimKeyPrefix+email)
		return sentinel.ErrAlreadyUsed
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, email, phone string) {
	r.client.Del(ctx, emailClaimKeyPrefix+email, phoneClaimKeyPrefix+phone)
}
