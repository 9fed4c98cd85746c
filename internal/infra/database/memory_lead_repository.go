package database

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

// MemoryLeadRepository keeps leads in process. Used in dev and tests.
type MemoryLeadRepository struct {
	mu    sync.RWMutex
	leads map[string]entity.Lead
	order []string
	now   func() time.Time
}

func NewMemoryLeadRepository() *MemoryLeadRepository {
	return &MemoryLeadRepository{
		leads: make(map[string]entity.Lead),
		now:   time.Now,
	}
}

func (r *MemoryLeadRepository) Insert(_ context.Context, lead *entity.Lead) (*entity.Lead, error) {
	row := *lead
	row.ID = uuid.NewString()
	row.CreatedAt = r.now().UTC()
	if row.Status == "" {
		row.Status = entity.LeadStatusNew
	}

	r.mu.Lock()
	r.leads[row.ID] = row
	r.order = append(r.order, row.ID)
	r.mu.Unlock()

	return &row, nil
}

func (r *MemoryLeadRepository) UpdateStatus(_ context.Context, id string, status entity.LeadStatus, upd entity.LeadUpdate) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.leads[id]
	if !ok {
		return false, nil
	}
	row.Status = status
	if upd.AugustaSubmittedAt != nil {
		t := upd.AugustaSubmittedAt.UTC()
		row.AugustaSubmittedAt = &t
	}
	if upd.Notes != nil {
		row.Notes = *upd.Notes
	}
	r.leads[id] = row
	return true, nil
}

func (r *MemoryLeadRepository) GetByID(_ context.Context, id string) (*entity.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.leads[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

// GetByEmail returns the most recently inserted lead with that email.
func (r *MemoryLeadRepository) GetByEmail(_ context.Context, email string) (*entity.Lead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		if row := r.leads[r.order[i]]; row.Email == email {
			return &row, nil
		}
	}
	return nil, nil
}
