// Package seed loads users and subscriptions from JSON fixtures into storage.
// Every row is upserted, so running it twice leaves the same data.
package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/subtracker/subscriptions/internal/mapper"
	"github.com/subtracker/subscriptions/internal/metrics"
	"github.com/subtracker/subscriptions/internal/model"
	"github.com/subtracker/subscriptions/internal/store"
)

const (
	UsersFile         = "users.json"
	SubscriptionsFile = "subs.json"
)

// Store is the part of the repository the seeder writes through.
type Store interface {
	FindUserByID(ctx context.Context, id string) (*model.User, error)
	UpsertUser(ctx context.Context, u model.User) error
	UpsertSubscription(ctx context.Context, rec model.SubscriptionRecord) error
	CreateSubscription(ctx context.Context, ns model.NewSubscription) (*model.SubscriptionRecord, error)
}

type userFixture struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	Username           string `json:"username"`
	CreatedAt          string `json:"createdAt"`
	EmailNotifications *bool  `json:"emailNotifications"`
	Timezone           string `json:"timezone"`
}

type subscriptionFixture struct {
	ID            int64                 `json:"id"`
	Name          string                `json:"name"`
	Cost          *float64              `json:"cost"`
	Cycle         string                `json:"cycle"`
	RenewalDate   string                `json:"renewalDate"`
	CreatedAt     string                `json:"createdAt"`
	UpdatedAt     string                `json:"updatedAt"`
	UserID        string                `json:"userId"`
	IsActive      *bool                 `json:"isActive"`
	Category      *string               `json:"category"`
	Notes         *string               `json:"notes"`
	ReminderAlert []model.ReminderAlert `json:"reminderAlert"`
	Reminder      string                `json:"reminder"`
}

// Result counts what a run wrote and skipped.
type Result struct {
	Users                int
	SkippedUsers         int
	Subscriptions        int
	SkippedSubscriptions int
}

func (r Result) String() string {
	return fmt.Sprintf("seeded %d users (%d skipped), %d subscriptions (%d skipped)",
		r.Users, r.SkippedUsers, r.Subscriptions, r.SkippedSubscriptions)
}

type Seeder struct {
	store Store
	log   *logrus.Logger
}

func New(s Store, log *logrus.Logger) *Seeder {
	return &Seeder{store: s, log: log}
}

// Run seeds users.json then subs.json from dir.
func (s *Seeder) Run(ctx context.Context, dir string) (Result, error) {
	var res Result
	users, err := loadUsers(filepath.Join(dir, UsersFile))
	if err != nil {
		return res, err
	}
	subs, err := loadSubscriptions(filepath.Join(dir, SubscriptionsFile))
	if err != nil {
		return res, err
	}
	s.log.Infof("found %d users and %d subscriptions to seed", len(users), len(subs))

	for _, u := range users {
		ok, err := s.seedUser(ctx, u)
		if err != nil {
			return res, err
		}
		if ok {
			res.Users++
			metrics.SeededTotal.WithLabelValues("user", "seeded").Inc()
		} else {
			res.SkippedUsers++
			metrics.SeededTotal.WithLabelValues("user", "skipped").Inc()
		}
	}
	for _, sub := range subs {
		if s.seedSubscription(ctx, sub) {
			res.Subscriptions++
			metrics.SeededTotal.WithLabelValues("subscription", "seeded").Inc()
		} else {
			res.SkippedSubscriptions++
			metrics.SeededTotal.WithLabelValues("subscription", "skipped").Inc()
		}
	}
	s.log.Info(res.String())
	return res, nil
}

func (s *Seeder) seedUser(ctx context.Context, f userFixture) (bool, error) {
	if f.ID == "" || f.Email == "" {
		s.log.WithField("user", f).Warn("skipping user with missing id or email")
		return false, nil
	}
	u := model.User{
		ID:                 f.ID,
		Email:              f.Email,
		Username:           f.Username,
		EmailNotifications: true,
		Timezone:           model.Timezone(f.Timezone),
	}
	if u.Username == "" {
		u.Username = strings.SplitN(f.Email, "@", 2)[0]
	}
	if f.EmailNotifications != nil {
		u.EmailNotifications = *f.EmailNotifications
	}
	if !u.Timezone.Valid() {
		if f.Timezone != "" {
			s.log.WithFields(logrus.Fields{"user_id": f.ID, "timezone": f.Timezone}).Warn("unknown timezone, using UTC")
		}
		u.Timezone = model.Timezone("UTC")
	}
	if t, ok := parseOptional(f.CreatedAt); ok {
		u.CreatedAt = t
	}
	if err := s.store.UpsertUser(ctx, u); err != nil {
		return false, fmt.Errorf("upsert user %s: %w", f.ID, err)
	}
	return true, nil
}

func (s *Seeder) seedSubscription(ctx context.Context, f subscriptionFixture) bool {
	entry := s.log.WithFields(logrus.Fields{"name": f.Name, "user_id": f.UserID})
	if f.Name == "" || f.UserID == "" || f.RenewalDate == "" {
		entry.Warn("skipping subscription with missing required fields")
		return false
	}
	renewal, err := model.ParseISO(f.RenewalDate)
	if err != nil {
		entry.WithField("renewal_date", f.RenewalDate).Warn("skipping subscription with invalid renewalDate")
		return false
	}
	if _, err := s.store.FindUserByID(ctx, f.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			entry.Warn("skipping subscription for non-existent user")
		} else {
			entry.WithError(err).Error("failed to look up subscription owner")
		}
		return false
	}

	rec, err := toRecord(f, renewal)
	if err != nil {
		entry.WithError(err).Warn("skipping subscription with unencodable reminders")
		return false
	}
	if f.ID == 0 {
		_, err = s.store.CreateSubscription(ctx, model.NewSubscription{
			Name: rec.Name, Cost: rec.Cost, Cycle: rec.Cycle, RenewalDate: renewal, UserID: rec.UserID,
			IsActive: rec.IsActive, Category: rec.Category, Notes: rec.Notes, Reminder: rec.Reminder,
		})
	} else {
		err = s.store.UpsertSubscription(ctx, rec)
	}
	if err != nil {
		entry.WithError(err).Error("failed to upsert subscription")
		return false
	}
	return true
}

func toRecord(f subscriptionFixture, renewal time.Time) (model.SubscriptionRecord, error) {
	rec := model.SubscriptionRecord{
		ID:          f.ID,
		Name:        f.Name,
		Cycle:       model.CycleMonthly,
		RenewalDate: sql.NullTime{Time: renewal, Valid: true},
		UserID:      f.UserID,
		IsActive:    true,
	}
	if f.Cost != nil {
		rec.Cost = *f.Cost
	}
	if f.Cycle != "" {
		rec.Cycle = model.Cycle(f.Cycle)
	}
	if f.IsActive != nil {
		rec.IsActive = *f.IsActive
	}
	if t, ok := parseOptional(f.CreatedAt); ok {
		rec.CreatedAt = sql.NullTime{Time: t, Valid: true}
	}
	if t, ok := parseOptional(f.UpdatedAt); ok {
		rec.UpdatedAt = sql.NullTime{Time: t, Valid: true}
	}
	if f.Category != nil {
		rec.Category = sql.NullString{String: *f.Category, Valid: true}
	}
	if f.Notes != nil {
		rec.Notes = sql.NullString{String: *f.Notes, Valid: true}
	}
	switch {
	case f.ReminderAlert != nil:
		blob, err := mapper.EncodeReminders(f.ReminderAlert)
		if err != nil {
			return model.SubscriptionRecord{}, err
		}
		rec.Reminder = sql.NullString{String: blob, Valid: true}
	case f.Reminder != "":
		rec.Reminder = sql.NullString{String: f.Reminder, Valid: true}
	}
	return rec, nil
}

func parseOptional(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := model.ParseISO(s)
	return t, err == nil
}

func loadUsers(path string) ([]userFixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users: %w", err)
	}
	var users []userFixture
	if err := json.Unmarshal(b, &users); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return users, nil
}

// loadSubscriptions accepts a bare array or an object wrapping it under
// "data" or "subscriptions".
func loadSubscriptions(path string) ([]subscriptionFixture, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subscriptions: %w", err)
	}
	var subs []subscriptionFixture
	if err := json.Unmarshal(b, &subs); err == nil {
		return subs, nil
	}
	var wrapped struct {
		Data          []subscriptionFixture `json:"data"`
		Subscriptions []subscriptionFixture `json:"subscriptions"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return wrapped.Subscriptions, nil
}
