package entity

import (
	"context"
	"fmt"
	"time"
)

type LeadStatus string

const (
	LeadStatusNew           LeadStatus = "new"
	LeadStatusSentToAugusta LeadStatus = "sent_to_augusta"
	LeadStatusContacted     LeadStatus = "contacted"
	LeadStatusQualified     LeadStatus = "qualified"
	LeadStatusUnqualified   LeadStatus = "unqualified"
	LeadStatusConverted     LeadStatus = "converted"
)

var leadStatuses = map[LeadStatus]struct{}{
	LeadStatusNew:           {},
	LeadStatusSentToAugusta: {},
	LeadStatusContacted:     {},
	LeadStatusQualified:     {},
	LeadStatusUnqualified:   {},
	LeadStatusConverted:     {},
}

func (s LeadStatus) Valid() bool {
	_, ok := leadStatuses[s]
	return ok
}

func ParseLeadStatus(raw string) (LeadStatus, error) {
	s := LeadStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid lead status %q", raw)
	}
	return s, nil
}

type Lead struct {
	ID                 string     `json:"id,omitempty"`
	CreatedAt          time.Time  `json:"created_at,omitempty"`
	FirstName          string     `json:"first_name"`
	LastName           string     `json:"last_name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"`
	Source             string     `json:"source"`
	IPAddress          string     `json:"ip_address,omitempty"`
	UserAgent          string     `json:"user_agent,omitempty"`
	Status             LeadStatus `json:"status"`
	AugustaSubmittedAt *time.Time `json:"augusta_submitted_at,omitempty"`
	Notes              string     `json:"notes,omitempty"`
}

func (l *Lead) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	}
	return l.FirstName + " " + l.LastName
}

// LeadUpdate carries the optional columns written alongside a status change.
// Nil pointers leave the stored value untouched.
type LeadUpdate struct {
	AugustaSubmittedAt *time.Time
	Notes              *string
}

// LeadRepositoryInterface is the lead store contract. Lookups return (nil, nil)
// when no row matches; a non-nil error always means the backend failed.
type LeadRepositoryInterface interface {
	Insert(ctx context.Context, lead *Lead) (*Lead, error)
	UpdateStatus(ctx context.Context, id string, status LeadStatus, upd LeadUpdate) (bool, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	GetByEmail(ctx context.Context, email string) (*Lead, error)
}
