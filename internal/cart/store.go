package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store persists a session's cart under a single scoped key so the cart
// survives navigation within the till session. The key is private to one
// session and never shared between tills.
type Store struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{Client: client, TTL: ttl}
}

func cartKey(sessionID string) string {
	return "cart:" + sessionID
}

// Load fetches the stored cart for a session, returning a fresh empty cart
// when none is stored.
func (s *Store) Load(ctx context.Context, sessionID string) (*Cart, error) {
	data, err := s.Client.Get(ctx, cartKey(sessionID)).Bytes()
	if err == redis.Nil {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cart %s: %w", sessionID, err)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", sessionID, err)
	}
	return &c, nil
}

// Save writes the cart back under the session key, refreshing the TTL.
func (s *Store) Save(ctx context.Context, sessionID string, c *Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart %s: %w", sessionID, err)
	}
	if err := s.Client.Set(ctx, cartKey(sessionID), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("save cart %s: %w", sessionID, err)
	}
	return nil
}

// Delete removes the stored cart after commit or cancellation.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if err := s.Client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete cart %s: %w", sessionID, err)
	}
	return nil
}
