package usecase

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/richdadretirement/leadrelay/internal/entity"
	"github.com/richdadretirement/leadrelay/internal/notification"
)

type TrackClickInput struct {
	URL     string
	Source  string
	Company string
	Traffic string
	ClickID string
}

type TrackClickOutput struct {
	RedirectURL string
	// Event is nil when the destination was rejected.
	Event *entity.ClickEvent
}

type TrackClickUseCase struct {
	Outbox         notification.Outbox
	FallbackURL    string
	DefaultCompany string
	EnqueueTimeout time.Duration
	Now            Clock

	allowedHosts []string
}

func NewTrackClickUseCase(outbox notification.Outbox, fallbackURL, defaultCompany string, allowedHosts []string, enqueueTimeout time.Duration) *TrackClickUseCase {
	if fallbackURL == "" {
		fallbackURL = "/"
	}
	if defaultCompany == "" {
		defaultCompany = entity.DefaultCompany
	}
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &TrackClickUseCase{
		Outbox:         outbox,
		FallbackURL:    fallbackURL,
		DefaultCompany: defaultCompany,
		EnqueueTimeout: enqueueTimeout,
		Now:            time.Now,
		allowedHosts:   hosts,
	}
}

// Execute never fails: a bad destination yields the fallback redirect and a
// notification problem is only logged.
func (uc *TrackClickUseCase) Execute(ctx context.Context, in TrackClickInput) TrackClickOutput {
	// Validation ignores surrounding whitespace; the redirect uses the url as given.
	dest, ok := uc.destination(strings.TrimSpace(in.URL))
	if !ok {
		log.Printf("⚠️ [TRACK] Rejected destination %q, redirecting to %s", in.URL, uc.FallbackURL)
		return TrackClickOutput{RedirectURL: uc.FallbackURL}
	}

	carried := entity.ParseSubID(dest.Query().Get("sub_id"))

	event := entity.ClickEvent{
		ClickID:     strings.TrimSpace(in.ClickID),
		Source:      strings.TrimSpace(in.Source),
		Company:     strings.TrimSpace(in.Company),
		Traffic:     entity.ParseTrafficType(in.Traffic),
		Destination: in.URL,
	}
	if event.ClickID == "" {
		event.ClickID = carried.ClickID
	}
	if event.Source == "" {
		event.Source = carried.Source
	}
	if event.Company == "" {
		event.Company = uc.DefaultCompany
	}

	enqueue(ctx, uc.Outbox, uc.EnqueueTimeout, "TRACK", notification.FromClick(event, uc.Now()))

	return TrackClickOutput{RedirectURL: in.URL, Event: &event}
}

func (uc *TrackClickUseCase) destination(raw string) (*url.URL, bool) {
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, false
	}
	if u.Hostname() == "" {
		return nil, false
	}
	return u, uc.hostAllowed(strings.ToLower(u.Hostname()))
}

// hostAllowed accepts any host when no allowlist is set; otherwise the host
// must equal an entry or be a subdomain of one.
func (uc *TrackClickUseCase) hostAllowed(host string) bool {
	if len(uc.allowedHosts) == 0 {
		return true
	}
	for _, allowed := range uc.allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
