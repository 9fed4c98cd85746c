package notification

import "github.com/richdadretirement/leadrelay/internal/entity"

type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

type EventMeta struct {
	Emoji    string
	Label    string
	Priority Priority
}

// Urgent events ring the phone; the rest are delivered silently.
func (m EventMeta) Urgent() bool {
	return m.Priority == PriorityHigh
}

var fallbackMeta = EventMeta{Emoji: "🔔", Label: "Affiliate Event", Priority: PriorityNormal}

var eventMeta = map[entity.EventType]EventMeta{
	entity.EventLeadCapture:    {Emoji: "📝", Label: "New Lead Captured", Priority: PriorityNormal},
	entity.EventQualifiedLead:  {Emoji: "🔥", Label: "Qualified Lead", Priority: PriorityHigh},
	entity.EventTradeComplete:  {Emoji: "💰", Label: "Trade Complete", Priority: PriorityHigh},
	entity.EventAffiliateClick: {Emoji: "🖱️", Label: "Affiliate Click", Priority: PriorityLow},
	entity.EventLeadForm:       {Emoji: "🙋", Label: "New Form Submission", Priority: PriorityNormal},
}

func MetaFor(t entity.EventType) EventMeta {
	if m, ok := eventMeta[t]; ok {
		return m
	}
	return fallbackMeta
}

var footers = map[entity.EventType]string{
	entity.EventQualifiedLead: "💰 This lead qualifies for commission!",
	entity.EventTradeComplete: "🎉 Trade completed! Commission incoming.",
}
