package tenant

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store provides persistence for tenant configurations.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new tenant config store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

func (s *Store) key(tenantID string) string {
	return fmt.Sprintf("tenant:config:%s", tenantID)
}

func (s *Store) numberKey(number string) string {
	return fmt.Sprintf("tenant:by-number:%s", number)
}

// Get retrieves tenant config, returning the default if not found.
func (s *Store) Get(ctx context.Context, tenantID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(tenantID)).Bytes()
	if err == redis.Nil {
		return DefaultConfig(tenantID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenant: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("tenant: unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Set saves tenant config and the intake-number reverse index.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("tenant: marshal config: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(cfg.TenantID), data, 0).Err(); err != nil {
		return fmt.Errorf("tenant: set config: %w", err)
	}
	if cfg.IntakeNumber != "" {
		if err := s.redis.Set(ctx, s.numberKey(cfg.IntakeNumber), cfg.TenantID, 0).Err(); err != nil {
			return fmt.Errorf("tenant: set number index: %w", err)
		}
	}
	return nil
}

// LookupByNumber resolves a tenant ID from the inbound phone number that
// received a call or text. Empty string when no tenant owns the number.
func (s *Store) LookupByNumber(ctx context.Context, number string) (string, error) {
	tenantID, err := s.redis.Get(ctx, s.numberKey(number)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("tenant: lookup by number: %w", err)
	}
	return tenantID, nil
}
