package usecase

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/richdadretirement/leadrelay/internal/entity"
	"github.com/richdadretirement/leadrelay/internal/notification"
)

const DefaultDedupTTL = 24 * time.Hour

// Status update outcomes, also used as metric labels.
const (
	StatusUpdateSkipped  = "skipped"
	StatusUpdateUpdated  = "updated"
	StatusUpdateNotFound = "not_found"
	StatusUpdateFailed   = "error"
)

type HandlePostbackOutput struct {
	Success     bool              `json:"success"`
	Event       entity.EventType  `json:"event"`
	Duplicate   bool              `json:"duplicate"`
	LeadUpdated bool              `json:"lead_updated"`
	Status      entity.LeadStatus `json:"-"`
	StatusWrite string            `json:"-"`
}

type HandlePostbackUseCase struct {
	Outbox         notification.Outbox
	Leads          LeadStore
	Deduper        Deduper
	DedupTTL       time.Duration
	EnqueueTimeout time.Duration
	Now            Clock
}

func NewHandlePostbackUseCase(outbox notification.Outbox, leads LeadStore, deduper Deduper, dedupTTL, enqueueTimeout time.Duration) *HandlePostbackUseCase {
	if dedupTTL <= 0 {
		dedupTTL = DefaultDedupTTL
	}
	return &HandlePostbackUseCase{
		Outbox:         outbox,
		Leads:          leads,
		Deduper:        deduper,
		DedupTTL:       dedupTTL,
		EnqueueTimeout: enqueueTimeout,
		Now:            time.Now,
	}
}

// Execute processes one partner postback. Downstream failures are logged and
// never turn into an error for the partner.
func (uc *HandlePostbackUseCase) Execute(ctx context.Context, values url.Values) HandlePostbackOutput {
	p := entity.ParsePostback(values, uc.Now())
	out := HandlePostbackOutput{Success: true, Event: p.Type, StatusWrite: StatusUpdateSkipped}

	log.Printf("📥 [POSTBACK] %s sub_id=%q lead_id=%q", describeType(p), p.SubID.String(), p.LeadID)

	claimed, duplicate := uc.claim(ctx, p)
	if duplicate {
		log.Printf("🔁 [POSTBACK] Duplicate %s for lead %s ignored", describeType(p), p.LeadID)
		out.Duplicate = true
		return out
	}

	enqueueErr := enqueue(ctx, uc.Outbox, uc.EnqueueTimeout, "POSTBACK", notification.FromPostback(p))

	out = uc.writeStatus(ctx, p, out)

	// A partner retry must get through when this attempt lost work.
	if claimed && (enqueueErr != nil || out.StatusWrite == StatusUpdateFailed) {
		uc.release(ctx, p)
	}
	return out
}

func (uc *HandlePostbackUseCase) writeStatus(ctx context.Context, p entity.Postback, out HandlePostbackOutput) HandlePostbackOutput {
	status, ok := p.Type.LeadStatus()
	if !ok || p.LeadID == "" {
		return out
	}
	out.Status = status
	if uc.Leads == nil {
		log.Printf("⚠️ [POSTBACK] Lead store disabled, status %s for %s not written", status, p.LeadID)
		return out
	}

	updated, err := uc.Leads.UpdateStatus(ctx, p.LeadID, status, entity.LeadUpdate{})
	switch {
	case err != nil:
		log.Printf("❌ [POSTBACK] Status update for lead %s failed: %v", p.LeadID, err)
		out.StatusWrite = StatusUpdateFailed
	case !updated:
		log.Printf("🔎 [POSTBACK] Unknown lead %s, status %s ignored", p.LeadID, status)
		out.StatusWrite = StatusUpdateNotFound
	default:
		log.Printf("✅ [POSTBACK] Lead %s is now %s", p.LeadID, status)
		out.StatusWrite = StatusUpdateUpdated
		out.LeadUpdated = true
	}
	return out
}

// DedupKey identifies a partner event for one lead and sub-id.
func DedupKey(p entity.Postback) string {
	return fmt.Sprintf("postback:%s:%s:%s", dedupType(p), p.LeadID, p.SubID.String())
}

func dedupType(p entity.Postback) string {
	if p.Type == entity.EventUnknown && p.RawType != "" {
		return "unknown." + strings.ToLower(p.RawType)
	}
	return string(p.Type)
}

// claim reports whether this call now holds the dedup key and whether the
// event was already seen. Deduper errors fail open.
func (uc *HandlePostbackUseCase) claim(ctx context.Context, p entity.Postback) (claimed, duplicate bool) {
	if uc.Deduper == nil || p.LeadID == "" {
		return false, false
	}
	fresh, err := uc.Deduper.Claim(ctx, DedupKey(p), uc.DedupTTL)
	if err != nil {
		log.Printf("⚠️ [POSTBACK] Dedup unavailable, processing anyway: %v", err)
		return false, false
	}
	return fresh, !fresh
}

func (uc *HandlePostbackUseCase) release(ctx context.Context, p entity.Postback) {
	ctx = context.WithoutCancel(ctx)
	if err := uc.Deduper.Release(ctx, DedupKey(p)); err != nil {
		log.Printf("⚠️ [POSTBACK] Could not release dedup key for lead %s: %v", p.LeadID, err)
		return
	}
	log.Printf("↩️ [POSTBACK] Released %s for lead %s so a retry is processed", describeType(p), p.LeadID)
}

func describeType(p entity.Postback) string {
	if p.Type == entity.EventUnknown && p.RawType != "" {
		return fmt.Sprintf("unknown(%s)", p.RawType)
	}
	return string(p.Type)
}
