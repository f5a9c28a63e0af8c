// Package inventory guards the campaign's finite prize stock. Counters
// live in Redis so that many webhook workers can allocate concurrently;
// Take is a single atomic decrement, never a read-then-write pair.
package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const prizePrefix = "premio:"

type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

func key(prize string) string {
	return prizePrefix + prize
}

// Take atomically claims one unit of the given prize. It decrements the
// cached available count; a non-negative result means the caller owns a
// unit. A negative result means the decrement raced past zero (or the
// prize was never stocked), so the unit is handed back with a
// compensating increment and the take is denied. Under N+K concurrent
// callers with N units available, exactly N are granted.
func (s *Store) Take(ctx context.Context, prize string) (bool, error) {
	n, err := s.rdb.Decr(ctx, key(prize)).Result()
	if err != nil {
		return false, fmt.Errorf("decrementing stock for %q: %w", prize, err)
	}
	if n < 0 {
		if err := s.rdb.Incr(ctx, key(prize)).Err(); err != nil {
			return false, fmt.Errorf("compensating stock for %q: %w", prize, err)
		}
		return false, nil
	}
	return true, nil
}

// Return hands back a unit previously claimed with Take, for callers
// whose downstream write failed after the claim.
func (s *Store) Return(ctx context.Context, prize string) error {
	if err := s.rdb.Incr(ctx, key(prize)).Err(); err != nil {
		return fmt.Errorf("returning stock for %q: %w", prize, err)
	}
	return nil
}

// Seed sets the cached available count for a prize. Idempotent; used at
// boot and by reconciliation.
func (s *Store) Seed(ctx context.Context, prize string, count int) error {
	if err := s.rdb.Set(ctx, key(prize), count, 0).Err(); err != nil {
		return fmt.Errorf("seeding stock for %q: %w", prize, err)
	}
	return nil
}

// Peek reads the cached available count without claiming anything.
// A missing key reads as zero.
func (s *Store) Peek(ctx context.Context, prize string) (int, error) {
	val, err := s.rdb.Get(ctx, key(prize)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading stock for %q: %w", prize, err)
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("stock for %q is not a number: %w", prize, err)
	}
	return n, nil
}

// All returns the cached available count per prize, for reporting.
func (s *Store) All(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int)
	iter := s.rdb.Scan(ctx, 0, prizePrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		val, err := s.rdb.Get(ctx, k).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", k, err)
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			continue
		}
		counts[strings.TrimPrefix(k, prizePrefix)] = n
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning stock keys: %w", err)
	}
	return counts, nil
}
