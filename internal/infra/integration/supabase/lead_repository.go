package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

const leadsTable = "leads"

// invalidTextRepresentation is the SQLSTATE PostgREST relays for a malformed
// uuid filter such as id=eq.not-a-uuid.
const invalidTextRepresentation = "22P02"

// apiError is a non-2xx PostgREST answer.
type apiError struct {
	Status int
	Code   string
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

func isInvalidInput(err error) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Code == invalidTextRepresentation
}

// LeadRepository stores leads through the Supabase REST (PostgREST) API using
// the service-role key. ID and created_at come from column defaults.
type LeadRepository struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewLeadRepository(projectURL, serviceKey string) *LeadRepository {
	return &LeadRepository{
		baseURL:    strings.TrimRight(projectURL, "/") + "/rest/v1",
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type insertRow struct {
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	Source    string            `json:"source"`
	IPAddress *string           `json:"ip_address"`
	UserAgent *string           `json:"user_agent"`
	Status    entity.LeadStatus `json:"status"`
	Notes     *string           `json:"notes"`
}

func (r *LeadRepository) Insert(ctx context.Context, lead *entity.Lead) (*entity.Lead, error) {
	status := lead.Status
	if status == "" {
		status = entity.LeadStatusNew
	}

	row := insertRow{
		FirstName: lead.FirstName,
		LastName:  lead.LastName,
		Email:     lead.Email,
		Phone:     lead.Phone,
		Source:    lead.Source,
		IPAddress: nullString(lead.IPAddress),
		UserAgent: nullString(lead.UserAgent),
		Status:    status,
		Notes:     nullString(lead.Notes),
	}

	rows, err := r.do(ctx, http.MethodPost, nil, row)
	if err != nil {
		return nil, fmt.Errorf("supabase insert lead: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("supabase insert lead: empty representation")
	}
	return &rows[0], nil
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id string, status entity.LeadStatus, upd entity.LeadUpdate) (bool, error) {
	patch := map[string]any{"status": status}
	if upd.AugustaSubmittedAt != nil {
		patch["augusta_submitted_at"] = upd.AugustaSubmittedAt.UTC().Format(time.RFC3339Nano)
	}
	if upd.Notes != nil {
		patch["notes"] = *upd.Notes
	}

	q := url.Values{"id": {"eq." + id}}
	rows, err := r.do(ctx, http.MethodPatch, q, patch)
	if isInvalidInput(err) {
		log.Printf("🔎 Supabase: lead id %q is not a valid uuid", id)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("supabase update lead %s: %w", id, err)
	}
	return len(rows) > 0, nil
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*entity.Lead, error) {
	q := url.Values{
		"id":     {"eq." + id},
		"select": {"*"},
		"limit":  {"1"},
	}
	return r.first(ctx, q)
}

func (r *LeadRepository) GetByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	q := url.Values{
		"email":  {"eq." + email},
		"select": {"*"},
		"order":  {"created_at.desc"},
		"limit":  {"1"},
	}
	return r.first(ctx, q)
}

func (r *LeadRepository) first(ctx context.Context, q url.Values) (*entity.Lead, error) {
	rows, err := r.do(ctx, http.MethodGet, q, nil)
	if isInvalidInput(err) {
		log.Printf("🔎 Supabase: invalid filter %s treated as no match", q.Encode())
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("supabase get lead: %w", err)
	}
	if len(rows) == 0 {
		log.Printf("🔎 Supabase: no lead matched %s", q.Encode())
		return nil, nil
	}
	return &rows[0], nil
}

func (r *LeadRepository) do(ctx context.Context, method string, q url.Values, payload any) ([]entity.Lead, error) {
	endpoint := r.baseURL + "/" + leadsTable
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("apikey", r.serviceKey)
	req.Header.Set("Authorization", "Bearer "+r.serviceKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode, Body: excerpt(respBody)}
		var payload struct {
			Code string `json:"code"`
		}
		if json.Unmarshal(respBody, &payload) == nil {
			apiErr.Code = payload.Code
		}
		return nil, apiErr
	}

	var rows []entity.Lead
	if len(bytes.TrimSpace(respBody)) == 0 {
		return rows, nil
	}
	if err := json.Unmarshal(respBody, &rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return rows, nil
}

func excerpt(b []byte) string {
	const max = 300
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
