package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subtracker/subscriptions/internal/model"
)

func TestIntegration_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	// If POSTGRES_DSN is provided (e.g. in CI), use it directly, else start a docker postgres via dockertest
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		db, err := sqlx.Connect("postgres", dsn)
		if err != nil {
			t.Fatalf("could not connect to provided POSTGRES_DSN: %v", err)
		}
		defer db.Close()
		runIntegrationAgainstDB(t, db)
		return
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_PASSWORD=postgres",
			"POSTGRES_DB=subscriptions_db",
		},
	})
	if err != nil {
		t.Fatalf("could not start resource: %v", err)
	}
	defer func() {
		_ = pool.Purge(resource)
	}()

	var db *sqlx.DB
	// the container may not accept connections right away
	if err := pool.Retry(func() error {
		port := resource.GetPort("5432/tcp")
		dsn := fmt.Sprintf("host=localhost port=%s user=postgres password=postgres dbname=subscriptions_db sslmode=disable", port)
		var err error
		db, err = sqlx.Connect("postgres", dsn)
		if err != nil {
			return err
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("could not connect to docker postgres: %v", err)
	}
	defer db.Close()

	runIntegrationAgainstDB(t, db)
}

func runIntegrationAgainstDB(t *testing.T, db *sqlx.DB) {
	require.NoError(t, EnsureMigrations(db))
	// a second run is a no-op
	require.NoError(t, EnsureMigrations(db))

	ctx := context.Background()
	repo := NewPostgresRepository(db, logrus.New())

	require.NoError(t, repo.UpsertUser(ctx, model.User{
		ID: "user-1", Email: "a@b.com", Username: "user1", Timezone: "UTC", EmailNotifications: true,
	}))
	u, err := repo.FindUserByID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", u.Email)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = repo.FindUserByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)

	later, err := repo.CreateSubscription(ctx, model.NewSubscription{
		Name: "Later", Cost: 120, Cycle: model.CycleYearly, UserID: "user-1", IsActive: true,
		RenewalDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.True(t, later.CreatedAt.Valid)
	assert.False(t, later.Category.Valid)

	sooner, err := repo.CreateSubscription(ctx, model.NewSubscription{
		Name: "Sooner", Cost: 9.99, Cycle: model.CycleMonthly, UserID: "user-1", IsActive: true,
		RenewalDate: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC),
		Category:    sql.NullString{String: "entertainment", Valid: true},
		Reminder:    sql.NullString{String: `[{"timeframe":"days","value":3}]`, Valid: true},
	})
	require.NoError(t, err)

	_, err = repo.CreateSubscription(ctx, model.NewSubscription{
		Name: "Orphan", Cycle: model.CycleMonthly, UserID: "ghost", RenewalDate: time.Now(),
	})
	assert.Error(t, err, "foreign key rejects unknown owner")

	rows, err := repo.ListSubscriptionsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, sooner.ID, rows[0].ID)
	assert.Equal(t, later.ID, rows[1].ID)

	inactive := false
	updated, err := repo.UpdateSubscription(ctx, sooner.ID, model.SubscriptionPatch{IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, sooner.Name, updated.Name)
	assert.Equal(t, sooner.Reminder, updated.Reminder)
	assert.Equal(t, sooner.Category, updated.Category)

	_, err = repo.UpdateSubscription(ctx, 999999, model.SubscriptionPatch{IsActive: &inactive})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.UpsertSubscription(ctx, model.SubscriptionRecord{
		ID: 500, Name: "Seeded", Cost: 1, Cycle: model.CycleMonthly, UserID: "user-1", IsActive: true,
		RenewalDate: sql.NullTime{Time: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
	}))
	next, err := repo.CreateSubscription(ctx, model.NewSubscription{
		Name: "After seed", Cycle: model.CycleMonthly, UserID: "user-1", RenewalDate: time.Now(),
	})
	require.NoError(t, err)
	assert.Greater(t, next.ID, int64(500))

	require.NoError(t, repo.Ping(ctx))
}
