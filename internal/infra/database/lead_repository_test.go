package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

// Runs against a real Postgres when TEST_DATABASE_URL is set.
func newIntegrationRepo(t *testing.T, driver string) *LeadRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := NewDBConnection(driver, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, EnsureSchema(context.Background(), db))

	return NewLeadRepository(db)
}

func TestLeadRepositoryIntegration(t *testing.T) {
	for _, driver := range []string{DriverPgx, DriverPostgres} {
		t.Run(driver, func(t *testing.T) {
			repo := newIntegrationRepo(t, driver)
			ctx := context.Background()
			email := uuid.NewString() + "@example.com"

			created, err := repo.Insert(ctx, &entity.Lead{
				FirstName: "Ada",
				LastName:  "Lovelace",
				Email:     email,
				Phone:     "555-0100",
				Source:    "ira-guide",
			})
			require.NoError(t, err)
			assert.Equal(t, entity.LeadStatusNew, created.Status)
			_, err = uuid.Parse(created.ID)
			require.NoError(t, err)

			got, err := repo.GetByEmail(ctx, email)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, "Lovelace", got.LastName)
			assert.Empty(t, got.IPAddress)

			at := time.Now().UTC().Truncate(time.Second)
			notes := "forwarded to partner"
			ok, err := repo.UpdateStatus(ctx, created.ID, entity.LeadStatusSentToAugusta, entity.LeadUpdate{AugustaSubmittedAt: &at, Notes: &notes})
			require.NoError(t, err)
			assert.True(t, ok)

			got, err = repo.GetByID(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, entity.LeadStatusSentToAugusta, got.Status)
			assert.True(t, at.Equal(*got.AugustaSubmittedAt))
			assert.Equal(t, notes, got.Notes)

			ok, err = repo.UpdateStatus(ctx, uuid.NewString(), entity.LeadStatusQualified, entity.LeadUpdate{})
			require.NoError(t, err)
			assert.False(t, ok)

			// a malformed id reads as not found instead of an error
			missing, err := repo.GetByID(ctx, "not-a-uuid")
			assert.NoError(t, err)
			assert.Nil(t, missing)
			ok, err = repo.UpdateStatus(ctx, "not-a-uuid", entity.LeadStatusQualified, entity.LeadUpdate{})
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestNewDBConnectionRejectsUnknownDriver(t *testing.T) {
	_, err := NewDBConnection("mysql", "whatever")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
}
