package service

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/subtracker/subscriptions/internal/apperr"
	"github.com/subtracker/subscriptions/internal/auth"
	"github.com/subtracker/subscriptions/internal/model"
	"github.com/subtracker/subscriptions/internal/store"
	"github.com/subtracker/subscriptions/internal/validation"
)

// countingRepo records mutations and can inject storage faults.
type countingRepo struct {
	*store.MemoryRepo
	updates int
	creates int
	failOn  string
}

var errBoom = errors.New("connection reset")

func (c *countingRepo) CreateSubscription(ctx context.Context, ns model.NewSubscription) (*model.SubscriptionRecord, error) {
	c.creates++
	if c.failOn == "create" {
		return nil, errBoom
	}
	return c.MemoryRepo.CreateSubscription(ctx, ns)
}

func (c *countingRepo) UpdateSubscription(ctx context.Context, id int64, p model.SubscriptionPatch) (*model.SubscriptionRecord, error) {
	c.updates++
	if c.failOn == "update" {
		return nil, errBoom
	}
	return c.MemoryRepo.UpdateSubscription(ctx, id, p)
}

func (c *countingRepo) ListSubscriptionsByUser(ctx context.Context, userID string) ([]model.SubscriptionRecord, error) {
	if c.failOn == "list" {
		return nil, errBoom
	}
	return c.MemoryRepo.ListSubscriptionsByUser(ctx, userID)
}

func setup(t *testing.T) (*Service, *countingRepo, *test.Hook) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemoryRepository()
	require.NoError(t, mem.UpsertUser(ctx, model.User{ID: "user-1", Email: "one@example.com", Timezone: "UTC"}))
	require.NoError(t, mem.UpsertUser(ctx, model.User{ID: "user-2", Email: "two@example.com", Timezone: "UTC"}))
	repo := &countingRepo{MemoryRepo: mem}
	log, hook := test.NewNullLogger()
	return New(repo, validation.New(), log), repo, hook
}

func as(userID string) context.Context {
	return auth.WithIdentity(context.Background(), auth.Identity{UserID: userID})
}

func seedSub(t *testing.T, repo *countingRepo, id int64, owner string) model.SubscriptionRecord {
	t.Helper()
	ts := sql.NullTime{Time: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true}
	rec := model.SubscriptionRecord{
		ID: id, Name: "Netflix", Cost: 15.49, Cycle: model.CycleMonthly, UserID: owner, IsActive: true,
		RenewalDate: sql.NullTime{Time: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), Valid: true},
		CreatedAt:   ts, UpdatedAt: ts,
		Category:    sql.NullString{String: "entertainment", Valid: true},
		Notes:       sql.NullString{String: "family plan", Valid: true},
		Reminder:    sql.NullString{String: `[{"timeframe":"days","value":3}]`, Valid: true},
	}
	require.NoError(t, repo.MemoryRepo.UpsertSubscription(context.Background(), rec))
	return rec
}

func assertStatus(t *testing.T, err error, want int) string {
	t.Helper()
	require.Error(t, err)
	status, msg := apperr.Resolve(err)
	assert.Equal(t, want, status, msg)
	return msg
}

func TestCreate_OwnedByCaller(t *testing.T) {
	svc, _, _ := setup(t)
	body := `{"name":"Spotify","cost":9.99,"cycle":"monthly","renewalDate":"2025-12-15T00:00:00Z","userId":"user-2"}`

	res, err := svc.Create(as("user-1"), []byte(body))
	require.NoError(t, err)
	sub := res.Subscription
	assert.Equal(t, "user-1", sub.UserID)
	assert.True(t, sub.IsActive)
	assert.Equal(t, "Spotify", sub.Name)
	assert.Equal(t, 9.99, sub.Cost)
	require.NotNil(t, sub.RenewalDate)
	assert.Equal(t, "2025-12-15T00:00:00.000Z", *sub.RenewalDate)
	assert.Empty(t, sub.Category)
	assert.Empty(t, sub.ReminderAlert)
}

func TestCreate_WithOptionalFields(t *testing.T) {
	svc, _, _ := setup(t)
	body := `{"name":"Gym","cost":0,"cycle":"yearly","renewalDate":"2026-01-01T10:00:00+02:00",
		"category":"health","notes":"annual","isActive":false,
		"reminderAlert":[{"timeframe":"weeks","value":1},{"timeframe":"days","value":2}]}`

	res, err := svc.Create(as("user-1"), []byte(body))
	require.NoError(t, err)
	sub := res.Subscription
	assert.False(t, sub.IsActive)
	assert.Equal(t, 0.0, sub.Cost)
	assert.Equal(t, model.Category("health"), sub.Category)
	assert.Equal(t, "annual", sub.Notes)
	assert.Len(t, sub.ReminderAlert, 2)
	assert.Equal(t, "2026-01-01T08:00:00.000Z", *sub.RenewalDate)
}

func TestCreate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		body    string
		status  int
		message string
	}{
		{"anonymous", context.Background(), `{}`, http.StatusUnauthorized, "Unauthorized"},
		{"anonymous with bad body", context.Background(), `{nope`, http.StatusUnauthorized, "Unauthorized"},
		{"malformed json", as("user-1"), `{nope`, http.StatusBadRequest, "Invalid request body"},
		{"not an object", as("user-1"), `[1,2]`, http.StatusBadRequest, "Invalid request body"},
		{"missing fields", as("user-1"), `{"name":"x"}`, http.StatusBadRequest, "Validation failed"},
		{"unknown user", as("ghost"), `{"name":"x","cost":1,"cycle":"monthly","renewalDate":"2025-12-15T00:00:00Z"}`, http.StatusNotFound, "User not found"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := setup(t)
			_, err := svc.Create(tc.ctx, []byte(tc.body))
			msg := assertStatus(t, err, tc.status)
			assert.Contains(t, msg, tc.message)
			assert.Zero(t, repo.creates)
		})
	}
}

func TestCreate_StorageFault(t *testing.T) {
	svc, repo, hook := setup(t)
	repo.failOn = "create"
	_, err := svc.Create(as("user-1"), []byte(`{"name":"x","cost":1,"cycle":"monthly","renewalDate":"2025-12-15T00:00:00Z"}`))
	msg := assertStatus(t, err, http.StatusInternalServerError)
	assert.Equal(t, errBoom.Error(), msg)
	assert.ErrorIs(t, err, errBoom)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestList(t *testing.T) {
	svc, repo, _ := setup(t)
	seedSub(t, repo, 2, "user-1")
	early := seedSub(t, repo, 3, "user-1")
	early.RenewalDate.Time = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MemoryRepo.UpsertSubscription(context.Background(), early))
	seedSub(t, repo, 4, "user-2")

	res, err := svc.List(as("user-1"))
	require.NoError(t, err)
	assert.Equal(t, "one@example.com", res.User.Email)
	require.Len(t, res.Subscriptions, 2)
	assert.Equal(t, int64(3), res.Subscriptions[0].ID)
	assert.Equal(t, int64(2), res.Subscriptions[1].ID)
	assert.Len(t, res.Subscriptions[1].ReminderAlert, 1)
}

func TestList_EmptyIsNotNil(t *testing.T) {
	svc, _, _ := setup(t)
	res, err := svc.List(as("user-2"))
	require.NoError(t, err)
	assert.NotNil(t, res.Subscriptions)
	assert.Empty(t, res.Subscriptions)
}

func TestList_Failures(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.List(context.Background())
		assert.Equal(t, "Unauthorized", assertStatus(t, err, http.StatusUnauthorized))
	})
	t.Run("unknown user", func(t *testing.T) {
		svc, _, _ := setup(t)
		_, err := svc.List(as("ghost"))
		assert.Equal(t, "User not found", assertStatus(t, err, http.StatusNotFound))
	})
	t.Run("storage fault", func(t *testing.T) {
		svc, repo, _ := setup(t)
		repo.failOn = "list"
		_, err := svc.List(as("user-1"))
		assertStatus(t, err, http.StatusInternalServerError)
	})
	t.Run("corrupt row", func(t *testing.T) {
		svc, repo, _ := setup(t)
		bad := seedSub(t, repo, 9, "user-1")
		bad.Cycle = "weekly"
		require.NoError(t, repo.MemoryRepo.UpsertSubscription(context.Background(), bad))
		_, err := svc.List(as("user-1"))
		msg := assertStatus(t, err, http.StatusInternalServerError)
		assert.Contains(t, msg, "id=9")
	})
	t.Run("null renewal date", func(t *testing.T) {
		svc, repo, _ := setup(t)
		bad := seedSub(t, repo, 9, "user-1")
		bad.RenewalDate = sql.NullTime{}
		require.NoError(t, repo.MemoryRepo.UpsertSubscription(context.Background(), bad))
		_, err := svc.List(as("user-1"))
		msg := assertStatus(t, err, http.StatusInternalServerError)
		assert.Contains(t, msg, "Failed to map subscription id=9")
	})
}

func TestUpdate_PartialPatch(t *testing.T) {
	svc, repo, _ := setup(t)
	before := seedSub(t, repo, 1, "user-1")

	res, err := svc.Update(as("user-1"), "1", []byte(`{"cost":12.5,"notes":"solo"}`))
	require.NoError(t, err)
	sub := res.Subscription
	assert.Equal(t, 12.5, sub.Cost)
	assert.Equal(t, "solo", sub.Notes)
	assert.Equal(t, before.Name, sub.Name)
	assert.Equal(t, before.Cycle, sub.Cycle)
	assert.Equal(t, model.Category("entertainment"), sub.Category)
	assert.Len(t, sub.ReminderAlert, 1)
	assert.Equal(t, 1, repo.updates)
}

func TestUpdate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		id      string
		body    string
		status  int
		message string
	}{
		{"anonymous", context.Background(), "1", `{"cost":1}`, http.StatusUnauthorized, "Unauthorized"},
		{"non numeric id", as("user-1"), "invalid", `{"cost":1}`, http.StatusBadRequest, "Invalid subscription ID"},
		{"partially numeric id", as("user-1"), "12abc", `{"cost":1}`, http.StatusBadRequest, "Invalid subscription ID"},
		{"negative cost", as("user-1"), "1", `{"cost":-10}`, http.StatusBadRequest, "Validation failed"},
		{"empty payload", as("user-1"), "1", `{}`, http.StatusBadRequest, "At least one field must be provided for update"},
		{"unknown fields only", as("user-1"), "1", `{"color":"red"}`, http.StatusBadRequest, "At least one field must be provided for update"},
		{"malformed body", as("user-1"), "1", `{`, http.StatusBadRequest, "Invalid request body"},
		{"missing subscription", as("user-1"), "77", `{"cost":1}`, http.StatusNotFound, "Subscription not found"},
		{"missing before ownership", as("user-2"), "77", `{"cost":1}`, http.StatusNotFound, "Subscription not found"},
		{"foreign subscription", as("user-2"), "1", `{"cost":1}`, http.StatusForbidden, "Forbidden"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := setup(t)
			seedSub(t, repo, 1, "user-1")
			_, err := svc.Update(tc.ctx, tc.id, []byte(tc.body))
			msg := assertStatus(t, err, tc.status)
			assert.Contains(t, msg, tc.message)
			assert.Zero(t, repo.updates, "storage must not be mutated")
		})
	}
}

func TestDelete_Deactivates(t *testing.T) {
	svc, repo, _ := setup(t)
	before := seedSub(t, repo, 1, "user-1")

	res, err := svc.Delete(as("user-1"), "1")
	require.NoError(t, err)
	assert.Equal(t, "Subscription deleted successfully", res.Message)

	after, err := repo.FindSubscriptionByID(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, after.IsActive)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, before.Cost, after.Cost)
	assert.Equal(t, before.Cycle, after.Cycle)
	assert.Equal(t, before.RenewalDate, after.RenewalDate)
	assert.Equal(t, before.Category, after.Category)
	assert.Equal(t, before.Notes, after.Notes)
	assert.Equal(t, before.Reminder, after.Reminder)
}

func TestDelete_Failures(t *testing.T) {
	tests := []struct {
		name    string
		ctx     context.Context
		id      string
		status  int
		message string
	}{
		{"anonymous", context.Background(), "1", http.StatusUnauthorized, "Unauthorized"},
		{"bad id", as("user-1"), "1.5", http.StatusBadRequest, "Invalid subscription ID"},
		{"missing", as("user-1"), "404", http.StatusNotFound, "Subscription not found"},
		{"foreign", as("user-2"), "1", http.StatusForbidden, "Forbidden: You can only delete your own subscriptions"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, repo, _ := setup(t)
			seedSub(t, repo, 1, "user-1")
			_, err := svc.Delete(tc.ctx, tc.id)
			msg := assertStatus(t, err, tc.status)
			assert.Contains(t, msg, tc.message)
			assert.Zero(t, repo.updates)
		})
	}
}

func TestDelete_StorageFault(t *testing.T) {
	svc, repo, _ := setup(t)
	seedSub(t, repo, 1, "user-1")
	repo.failOn = "update"
	_, err := svc.Delete(as("user-1"), "1")
	assertStatus(t, err, http.StatusInternalServerError)
	assert.Equal(t, 1, repo.updates)
}
