package outstanding

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	cacheKeyCustomers = "outstanding:customers"
	cacheKeySuppliers = "outstanding:suppliers"
)

// Cache keeps the flat open-invoice lists in Redis so repeated dashboard
// loads skip the balance views. Settlement writes invalidate it.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
	ttl    time.Duration
}

// NewCache builds Cache instance.
func NewCache(client *redis.Client, logger *slog.Logger, ttl time.Duration) *Cache {
	return &Cache{client: client, logger: logger, ttl: ttl}
}

func (c *Cache) get(ctx context.Context, key string) ([]Invoice, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("outstanding cache read", slog.String("key", key), slog.Any("error", err))
		}
		return nil, false
	}
	var invoices []Invoice
	if err := json.Unmarshal(raw, &invoices); err != nil {
		c.logger.Warn("outstanding cache decode", slog.String("key", key), slog.Any("error", err))
		return nil, false
	}
	return invoices, true
}

func (c *Cache) set(ctx context.Context, key string, invoices []Invoice) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(invoices)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("outstanding cache write", slog.String("key", key), slog.Any("error", err))
	}
}

// InvalidateOutstanding drops both cached lists. Called after every
// settlement or invoice write.
func (c *Cache) InvalidateOutstanding(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKeyCustomers, cacheKeySuppliers).Err(); err != nil {
		c.logger.Warn("outstanding cache invalidate", slog.Any("error", err))
	}
}
