package cache

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/tradeforge/settlement/internal/ports"
)

// CachedCapabilityProber caches positive and negative capability answers in
// Redis. An asset's capability set changes only when the asset is redeployed,
// which also changes its address, so a modest TTL keeps entries honest.
type CachedCapabilityProber struct {
	client *redis.Client
	inner  ports.CapabilityProber
	ttl    time.Duration
}

func NewCachedCapabilityProber(client *redis.Client, inner ports.CapabilityProber, ttl time.Duration) *CachedCapabilityProber {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedCapabilityProber{client: client, inner: inner, ttl: ttl}
}

// Supports serves from cache when possible. Cache failures fall through to the
// inner prober: a broken cache must never decide a royalty outcome.
func (p *CachedCapabilityProber) Supports(ctx context.Context, asset common.Address, capability ports.CapabilityID) (bool, error) {
	key := "settlement:capability:" + asset.Hex() + ":" + capability.String()

	raw, err := p.client.Get(ctx, key).Result()
	if err == nil {
		return raw == "1", nil
	}
	// redis.Nil and transport errors alike fall through to the real probe.

	supported, err := p.inner.Supports(ctx, asset, capability)
	if err != nil {
		return false, err
	}

	value := "0"
	if supported {
		value = "1"
	}
	_ = p.client.Set(ctx, key, value, p.ttl).Err()
	return supported, nil
}
