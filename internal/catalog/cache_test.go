package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/roastdirect/internal/domain"
)

const productID = "8f14e45f-ceea-4e2b-9c2a-0d1f7b6a1001"

type countingFinder struct {
	product *domain.Product
	err     error
	calls   int
}

func (f *countingFinder) Find(context.Context, string) (*domain.Product, error) {
	f.calls++
	return f.product, f.err
}

func newCache(t *testing.T, next *countingFinder) (*DisplayCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDisplayCache(client, next, time.Minute, logger), mr
}

func sunrise() *domain.Product {
	return &domain.Product{
		ID: productID, Name: "Cerrado Sunrise", Price: decimal.RequireFromString("12.50"),
		ImageURL: "/img/cerrado.png", IsActive: true, TastingNotes: []string{"cocoa"},
	}
}

func TestDisplayCache_Find(t *testing.T) {
	ctx := context.Background()

	t.Run("reads through once then serves from redis", func(t *testing.T) {
		next := &countingFinder{product: sunrise()}
		cache, mr := newCache(t, next)

		for i := 0; i < 3; i++ {
			p, err := cache.Find(ctx, productID)
			require.NoError(t, err)
			require.NotNil(t, p)
			assert.Equal(t, "Cerrado Sunrise", p.Name)
			assert.True(t, p.Price.Equal(decimal.RequireFromString("12.50")))
		}

		assert.Equal(t, 1, next.calls)
		assert.True(t, mr.Exists(productKeyPrefix+productID))
		assert.Equal(t, time.Minute, mr.TTL(productKeyPrefix+productID))
	})

	t.Run("expires after the ttl", func(t *testing.T) {
		next := &countingFinder{product: sunrise()}
		cache, mr := newCache(t, next)

		_, err := cache.Find(ctx, productID)
		require.NoError(t, err)
		mr.FastForward(2 * time.Minute)
		_, err = cache.Find(ctx, productID)
		require.NoError(t, err)

		assert.Equal(t, 2, next.calls)
	})

	t.Run("does not cache misses", func(t *testing.T) {
		next := &countingFinder{}
		cache, mr := newCache(t, next)

		p, err := cache.Find(ctx, productID)
		require.NoError(t, err)
		assert.Nil(t, p)
		assert.False(t, mr.Exists(productKeyPrefix+productID))
	})

	t.Run("falls back to the store when redis is down", func(t *testing.T) {
		next := &countingFinder{product: sunrise()}
		cache, mr := newCache(t, next)
		mr.Close()

		p, err := cache.Find(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, "Cerrado Sunrise", p.Name)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("replaces corrupt entries", func(t *testing.T) {
		next := &countingFinder{product: sunrise()}
		cache, mr := newCache(t, next)
		require.NoError(t, mr.Set(productKeyPrefix+productID, "{not json"))

		p, err := cache.Find(ctx, productID)
		require.NoError(t, err)
		assert.Equal(t, "Cerrado Sunrise", p.Name)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		next := &countingFinder{err: errors.New("db down")}
		cache, _ := newCache(t, next)

		_, err := cache.Find(ctx, productID)
		require.Error(t, err)
	})

	t.Run("invalidate forces a reload", func(t *testing.T) {
		next := &countingFinder{product: sunrise()}
		cache, _ := newCache(t, next)

		_, err := cache.Find(ctx, productID)
		require.NoError(t, err)
		require.NoError(t, cache.Invalidate(ctx, productID))
		_, err = cache.Find(ctx, productID)
		require.NoError(t, err)

		assert.Equal(t, 2, next.calls)
	})
}
