package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/richdadretirement/leadrelay/internal/entity"
	"github.com/richdadretirement/leadrelay/internal/notification"
)

type MockLeadStore struct {
	mock.Mock
}

func (m *MockLeadStore) Insert(ctx context.Context, lead *entity.Lead) (*entity.Lead, error) {
	args := m.Called(ctx, lead)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadStore) UpdateStatus(ctx context.Context, id string, status entity.LeadStatus, upd entity.LeadUpdate) (bool, error) {
	args := m.Called(ctx, id, status, upd)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeadStore) GetByID(ctx context.Context, id string) (*entity.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadStore) GetByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

// recordingOutbox keeps every enqueued notification.
type recordingOutbox struct {
	mu  sync.Mutex
	got []notification.Notification
	err error
}

func (o *recordingOutbox) Enqueue(_ context.Context, n notification.Notification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, n)
	return o.err
}

func (o *recordingOutbox) All() []notification.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]notification.Notification(nil), o.got...)
}

type failingDeduper struct{}

func (failingDeduper) Claim(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingDeduper) Release(context.Context, string) error {
	return errors.New("redis: connection refused")
}

var fixedNow = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }
