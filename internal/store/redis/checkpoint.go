// Package redis stores ledger checkpoints in Redis so the engine can
// restore balance and open positions after a restart. Writes go through
// a circuit breaker: when Redis is down, checkpointing degrades to
// log-and-continue instead of stalling the trading loop.
package redis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	latestKey  = "ledger:checkpoint:latest"
	historyKey = "ledger:checkpoint:history"

	// historyDepth bounds the LPUSH history list so a long-running
	// engine does not grow Redis without limit.
	historyDepth = 100
)

// CheckpointStore persists ledger snapshots to Redis.
type CheckpointStore struct {
	client  *redis.Client
	breaker *CircuitBreaker
}

// NewCheckpointStore connects to Redis and verifies the connection.
func NewCheckpointStore(addr, password string) (*CheckpointStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}

	breaker := NewCircuitBreaker(5, 10*time.Second)
	breaker.OnStateChange = func(from, to State) {
		log.Printf("[checkpoint] circuit breaker %s → %s", from, to)
	}

	log.Printf("[checkpoint] connected to redis at %s", addr)
	return &CheckpointStore{client: client, breaker: breaker}, nil
}

// SaveCheckpoint writes a snapshot as the latest checkpoint and pushes it
// onto a bounded history list. The latest key is what restarts read; the
// history exists for post-mortem inspection.
func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, snapshot []byte) error {
	return s.breaker.Execute(func() error {
		pipe := s.client.TxPipeline()
		pipe.Set(ctx, latestKey, snapshot, 0)
		pipe.LPush(ctx, historyKey, snapshot)
		pipe.LTrim(ctx, historyKey, 0, historyDepth-1)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis: save checkpoint: %w", err)
		}
		return nil
	})
}

// ReadLatestCheckpoint returns the most recent snapshot, or (nil, nil)
// when no checkpoint has ever been written.
func (s *CheckpointStore) ReadLatestCheckpoint(ctx context.Context) ([]byte, error) {
	var data []byte
	err := s.breaker.Execute(func() error {
		raw, err := s.client.Get(ctx, latestKey).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("redis: read checkpoint: %w", err)
		}
		data = raw
		return nil
	})
	return data, err
}

// Client exposes the underlying connection for liveness probes.
func (s *CheckpointStore) Client() *redis.Client { return s.client }

// Close releases the Redis connection.
func (s *CheckpointStore) Close() error {
	return s.client.Close()
}
