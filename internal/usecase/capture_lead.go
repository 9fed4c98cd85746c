package usecase

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/richdadretirement/leadrelay/internal/entity"
	"github.com/richdadretirement/leadrelay/internal/notification"
)

const defaultLeadSource = "lead-form"

type CaptureLeadInput struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=200"`
	Phone     string `json:"phone" validate:"required,min=7,max=20"`
	Source    string `json:"source" validate:"max=100"`

	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type CaptureLeadOutput struct {
	ID     string
	Stored bool
}

type CaptureLeadUseCase struct {
	Leads          LeadStore
	Outbox         notification.Outbox
	EnqueueTimeout time.Duration
	Now            Clock
}

func NewCaptureLeadUseCase(leads LeadStore, outbox notification.Outbox, enqueueTimeout time.Duration) *CaptureLeadUseCase {
	return &CaptureLeadUseCase{
		Leads:          leads,
		Outbox:         outbox,
		EnqueueTimeout: enqueueTimeout,
		Now:            time.Now,
	}
}

// Execute stores the lead and always notifies, even when the insert fails, so
// the submission is not lost.
func (uc *CaptureLeadUseCase) Execute(ctx context.Context, input CaptureLeadInput) (*CaptureLeadOutput, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Phone = strings.TrimSpace(input.Phone)
	input.Source = strings.TrimSpace(input.Source)

	if err := validateStruct(input); err != nil {
		return nil, err
	}
	if input.Source == "" {
		input.Source = defaultLeadSource
	}

	lead := &entity.Lead{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     input.Email,
		Phone:     input.Phone,
		Source:    input.Source,
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
		Status:    entity.LeadStatusNew,
	}

	if uc.Leads == nil {
		log.Printf("⚠️ [LEAD] Lead store disabled, %s only notified", lead.Email)
		enqueue(ctx, uc.Outbox, uc.EnqueueTimeout, "LEAD", notification.FromLead(lead, uc.Now()))
		return &CaptureLeadOutput{}, nil
	}

	created, err := uc.Leads.Insert(ctx, lead)
	if err != nil {
		log.Printf("❌ [LEAD] Insert failed for %s: %v", lead.Email, err)
		enqueue(ctx, uc.Outbox, uc.EnqueueTimeout, "LEAD", notification.FromLead(lead, uc.Now()))
		return nil, &TechnicalError{Code: "LEAD_STORE_FAILED", Message: "failed to save lead", Err: err}
	}

	log.Printf("✅ [LEAD] Lead %s stored (%s)", created.ID, created.Source)
	enqueue(ctx, uc.Outbox, uc.EnqueueTimeout, "LEAD", notification.FromLead(created, uc.Now()))
	return &CaptureLeadOutput{ID: created.ID, Stored: true}, nil
}
