// Package resource holds process-wide shared resources, built once at
// startup and handed to services by the service manager.
package resource

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/macilentiores/ChurchStreamGuard/config"
	"github.com/macilentiores/ChurchStreamGuard/core/clock"
	"github.com/macilentiores/ChurchStreamGuard/logger"
	"github.com/macilentiores/ChurchStreamGuard/repository"
)

type Resource struct {
	Config *config.Config
	Clock  *clock.ZoneClock

	// Redis is nil unless the redis store backend is configured.
	Redis      *redis.Client
	TimerStore repository.TimerStateStore
}

func NewResource(cfg *config.Config) (*Resource, error) {
	r := &Resource{
		Config: cfg,
		Clock:  clock.NewZoneClock(cfg.Timer),
	}

	if cfg.Store.Backend == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Store.Redis.Addr, err)
		}
		r.Redis = client
		logger.Info("redis connected", "addr", cfg.Store.Redis.Addr)
	}

	store, err := repository.NewTimerStateStore(cfg.Store, r.Redis)
	if err != nil {
		return nil, err
	}
	r.TimerStore = store
	return r, nil
}

func (r *Resource) Close() error {
	if r.Redis != nil {
		if err := r.Redis.Close(); err != nil {
			return fmt.Errorf("close redis: %w", err)
		}
	}
	return nil
}
