// Package repository persists the auto-start timer's daily record so a
// daemon restart cannot re-fire a start that already happened.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/macilentiores/ChurchStreamGuard/config"
)

// Timer record statuses.
const (
	TimerStatusArmed  = "armed"
	TimerStatusFired  = "fired"
	TimerStatusMissed = "missed"
)

// TimerRecord is one day's scheduled-start outcome.
type TimerRecord struct {
	Date   string `json:"date"` // YYYY-MM-DD in the timer's zone
	Status string `json:"status"`
	HHMM   string `json:"hhmm"`
}

// TimerStateStore loads and saves the daily timer record. Load returns
// (nil, nil) when no record exists yet.
type TimerStateStore interface {
	Load() (*TimerRecord, error)
	Save(rec *TimerRecord) error
}

// NewTimerStateStore builds the configured backend.
func NewTimerStateStore(cfg config.StoreConfig, client *redis.Client) (TimerStateStore, error) {
	switch cfg.Backend {
	case "", "file":
		return &FileTimerStore{path: cfg.FilePath}, nil
	case "redis":
		if client == nil {
			return nil, errors.New("redis store selected but no redis client")
		}
		return &RedisTimerStore{client: client, key: cfg.Redis.Key}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// FileTimerStore keeps the record as a small JSON file next to the
// daemon. A missing file means no record.
type FileTimerStore struct {
	path string
}

func NewFileTimerStore(path string) *FileTimerStore {
	return &FileTimerStore{path: path}
}

func (s *FileTimerStore) Load() (*TimerRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read timer state: %w", err)
	}
	var rec TimerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse timer state: %w", err)
	}
	return &rec, nil
}

func (s *FileTimerStore) Save(rec *TimerRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write timer state: %w", err)
	}
	return nil
}

// RedisTimerStore keeps the record under a single key.
type RedisTimerStore struct {
	client *redis.Client
	key    string
}

func NewRedisTimerStore(client *redis.Client, key string) *RedisTimerStore {
	return &RedisTimerStore{client: client, key: key}
}

func (s *RedisTimerStore) Load() (*TimerRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get timer state: %w", err)
	}
	var rec TimerRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse timer state: %w", err)
	}
	return &rec, nil
}

func (s *RedisTimerStore) Save(rec *TimerRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set timer state: %w", err)
	}
	return nil
}
