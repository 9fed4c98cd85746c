package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

const leadColumns = `id, created_at, first_name, last_name, email, phone, source,
	ip_address, user_agent, status, augusta_submitted_at, notes`

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

func (r *LeadRepository) Insert(ctx context.Context, lead *entity.Lead) (*entity.Lead, error) {
	status := lead.Status
	if status == "" {
		status = entity.LeadStatusNew
	}

	query := `
		INSERT INTO leads (first_name, last_name, email, phone, source, ip_address, user_agent, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + leadColumns

	row := r.DB.QueryRowContext(
		ctx,
		query,
		lead.FirstName,
		lead.LastName,
		lead.Email,
		lead.Phone,
		lead.Source,
		nullString(lead.IPAddress),
		nullString(lead.UserAgent),
		string(status),
		nullString(lead.Notes),
	)

	created, err := scanLead(row)
	if err != nil {
		if isCheckViolation(err) {
			return nil, fmt.Errorf("insert lead: invalid status %q: %w", status, err)
		}
		return nil, fmt.Errorf("insert lead: %w", err)
	}
	return created, nil
}

// UpdateStatus writes status and, when given, the optional columns. Last write
// wins; there is no version check.
func (r *LeadRepository) UpdateStatus(ctx context.Context, id string, status entity.LeadStatus, upd entity.LeadUpdate) (bool, error) {
	query := `
		UPDATE leads
		SET
			status = $2,
			augusta_submitted_at = COALESCE($3, augusta_submitted_at),
			notes = COALESCE($4, notes)
		WHERE id = $1
	`

	var submitted *time.Time
	if upd.AugustaSubmittedAt != nil {
		t := upd.AugustaSubmittedAt.UTC()
		submitted = &t
	}

	res, err := r.DB.ExecContext(ctx, query, id, string(status), submitted, upd.Notes)
	if err != nil {
		if isInvalidInput(err) {
			log.Printf("🔎 Lead id %q is not a valid uuid, nothing updated", id)
			return false, nil
		}
		return false, fmt.Errorf("update lead %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update lead %s: rows affected: %w", id, err)
	}
	return n > 0, nil
}

func (r *LeadRepository) GetByID(ctx context.Context, id string) (*entity.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`
	return r.one(ctx, query, id)
}

func (r *LeadRepository) GetByEmail(ctx context.Context, email string) (*entity.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE email = $1 ORDER BY created_at DESC LIMIT 1`
	return r.one(ctx, query, email)
}

func (r *LeadRepository) one(ctx context.Context, query string, arg string) (*entity.Lead, error) {
	lead, err := scanLead(r.DB.QueryRowContext(ctx, query, arg))
	switch {
	case errors.Is(err, sql.ErrNoRows), isInvalidInput(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return lead, nil
}

func scanLead(row *sql.Row) (*entity.Lead, error) {
	var (
		lead      entity.Lead
		status    string
		ip, ua    sql.NullString
		notes     sql.NullString
		submitted sql.NullTime
	)

	err := row.Scan(
		&lead.ID,
		&lead.CreatedAt,
		&lead.FirstName,
		&lead.LastName,
		&lead.Email,
		&lead.Phone,
		&lead.Source,
		&ip,
		&ua,
		&status,
		&submitted,
		&notes,
	)
	if err != nil {
		return nil, err
	}

	lead.Status = entity.LeadStatus(status)
	lead.IPAddress = ip.String
	lead.UserAgent = ua.String
	lead.Notes = notes.String
	if submitted.Valid {
		t := submitted.Time.UTC()
		lead.AugustaSubmittedAt = &t
	}
	lead.CreatedAt = lead.CreatedAt.UTC()
	return &lead, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
