package usecase

import (
	"context"
	"time"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

// Deduper claims a key for ttl. Claim returns false when the key was already
// claimed and has not expired. Release drops a claim so a retry is processed.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// LeadStore is optional everywhere; a nil store disables persistence.
type LeadStore = entity.LeadRepositoryInterface

// Clock is swapped in tests.
type Clock func() time.Time
