package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

// Notification is the channel-agnostic event handed to the outbox. It is
// JSON-serialisable so durable outboxes can carry it.
type Notification struct {
	ID         string           `json:"id"`
	Type       entity.EventType `json:"type"`
	RawType    string           `json:"raw_type,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
	SubID      entity.SubID     `json:"sub_id"`
	LeadID     string           `json:"lead_id,omitempty"`
	Location   string           `json:"location,omitempty"`
	Fields     entity.Fields    `json:"fields,omitempty"`
}

func FromPostback(p entity.Postback) Notification {
	return Notification{
		ID:         uuid.NewString(),
		Type:       p.Type,
		RawType:    p.RawType,
		OccurredAt: p.Timestamp,
		SubID:      p.SubID,
		LeadID:     p.LeadID,
		Location:   p.Location,
		Fields:     append(entity.Fields(nil), p.Extra...),
	}
}

func FromClick(c entity.ClickEvent, at time.Time) Notification {
	var fields entity.Fields
	fields = fields.
		With("company", c.Company).
		With("traffic", string(c.Traffic)).
		With("destination", c.Destination)

	return Notification{
		ID:         uuid.NewString(),
		Type:       entity.EventAffiliateClick,
		OccurredAt: at.UTC(),
		SubID:      c.SubID(),
		Fields:     fields,
	}
}

func FromLead(l *entity.Lead, at time.Time) Notification {
	var fields entity.Fields
	fields = fields.
		With("name", l.FullName()).
		With("email", l.Email).
		With("phone", l.Phone)

	return Notification{
		ID:         uuid.NewString(),
		Type:       entity.EventLeadForm,
		OccurredAt: at.UTC(),
		SubID:      entity.SubID{Source: l.Source},
		LeadID:     l.ID,
		Fields:     fields,
	}
}

// Outbox accepts notifications for delivery. Implementations decide when and
// how often delivery is attempted.
type Outbox interface {
	Enqueue(ctx context.Context, n Notification) error
}
