// Package session persists per-participant conversation state in Redis.
// Sessions are whole-value JSON documents keyed by phone number; the store
// never merges fields — callers load, mutate, and save the full session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/indianamx/buenfinbot/internal/campaign"
)

const keyPrefix = "chatbot:"

// ErrNoSession is returned when no session exists for a phone number,
// either because none was started or because it expired.
var ErrNoSession = errors.New("no session")

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStore creates a session store. Every save refreshes the TTL, so an
// abandoned conversation disappears after ttl of inactivity.
func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func key(phone string) string {
	return keyPrefix + phone
}

// Load fetches and validates the session for a phone number. A malformed
// or invariant-violating payload is an error, not a silent empty session.
func (s *Store) Load(ctx context.Context, phone string) (*campaign.Session, error) {
	data, err := s.rdb.Get(ctx, key(phone)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("loading session for %s: %w", phone, err)
	}

	var sess campaign.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decoding session for %s: %w", phone, err)
	}
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("stored session for %s: %w", phone, err)
	}
	return &sess, nil
}

// Save writes the whole session back and refreshes its expiry.
func (s *Store) Save(ctx context.Context, phone string, sess *campaign.Session) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session for %s: %w", phone, err)
	}
	if err := s.rdb.Set(ctx, key(phone), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving session for %s: %w", phone, err)
	}
	return nil
}

// Delete removes the session outright. Deleting an absent session is fine.
func (s *Store) Delete(ctx context.Context, phone string) error {
	if err := s.rdb.Del(ctx, key(phone)).Err(); err != nil {
		return fmt.Errorf("deleting session for %s: %w", phone, err)
	}
	return nil
}
