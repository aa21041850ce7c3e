package reservation

import (
	"context"
	"sync"
	"time"

	"kinlink/pkg/platform/sentinel"
)

// InMemory holds email/phone claims in process memory with a TTL so an
// abandoned claim cannot block the pair forever.
type InMemory struct {
	mu     sync.Mutex
	claims map[string]time.Time
	ttl    time.Duration
}

func NewInMemory(ttl time.Duration) *InMemory {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &InMemory{
		claims: make(map[string]time.Time),
		ttl:    ttl,
	}
}

func (r *InMemory) Reserve(_ context.Context, email, phone string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for key, expiry := range r.claims {
		if now.After(expiry) {
			delete(r.claims, key)
		}
	}
	if _, held := r.claims[emailKey(email)]; held {
		return sentinel.ErrAlreadyUsed
	}
	if _, held := r.claims[phoneKey(phone)]; held {
		return sentinel.ErrAlreadyUsed
	}
	expiry := now.Add(r.ttl)
	r.claims[emailKey(email)] = expiry
	r.claims[phoneKey(phone)] = expiry
	return nil
}

func (r *InMemory) Release(_ context.Context, email, phone string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, emailKey(email))
	delete(r.claims, phoneKey(phone))
}

func emailKey(email string) string { return "email:" + email }
func phoneKey(phone string) string { return "phone:" + phone }
