package worker

import (
	"context"
	"log"
	"time"
)

// Refresher reloads a cached value; cache.TTLCache satisfies it.
type Refresher[T any] interface {
	Refresh(ctx context.Context) (T, error)
}

// PriceRefreshWorker keeps the spot price cache warm so visitors rarely wait
// on the upstream feed.
type PriceRefreshWorker[T any] struct {
	cache        Refresher[T]
	tickInterval time.Duration
	timeout      time.Duration
}

func NewPriceRefreshWorker[T any](cache Refresher[T], interval time.Duration) *PriceRefreshWorker[T] {
	if interval <= 0 {
		interval = 4 * time.Minute
	}
	return &PriceRefreshWorker[T]{
		cache:        cache,
		tickInterval: interval,
		timeout:      10 * time.Second,
	}
}

func (w *PriceRefreshWorker[T]) Start(ctx context.Context) {
	log.Printf("🕒 Price refresh worker started (every %s)", w.tickInterval)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Price refresh worker stopped")
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *PriceRefreshWorker[T]) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if _, err := w.cache.Refresh(ctx); err != nil {
		log.Printf("❌ Spot price refresh failed: %v", err)
	}
}
