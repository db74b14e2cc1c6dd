package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/subtracker/subscriptions/internal/model"
)

// MemoryRepo keeps users and subscriptions in process. It backs the
// "memory" storage driver and tests.
type MemoryRepo struct {
	mu     sync.Mutex
	users  map[string]model.User
	subs   map[int64]model.SubscriptionRecord
	nextID int64
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepo {
	return &MemoryRepo{
		users:  map[string]model.User{},
		subs:   map[int64]model.SubscriptionRecord{},
		nextID: 1,
		now:    time.Now,
	}
}

func (m *MemoryRepo) FindUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryRepo) FindSubscriptionByID(_ context.Context, id int64) (*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *MemoryRepo) ListSubscriptionsByUser(_ context.Context, userID string) ([]model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := []model.SubscriptionRecord{}
	for _, rec := range m.subs {
		if rec.UserID == userID {
			rows = append(rows, rec)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].RenewalDate, rows[j].RenewalDate
		if a.Valid != b.Valid {
			return a.Valid
		}
		if !a.Time.Equal(b.Time) {
			return a.Time.Before(b.Time)
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

func (m *MemoryRepo) CreateSubscription(_ context.Context, ns model.NewSubscription) (*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[ns.UserID]; !ok {
		return nil, fmt.Errorf("subscription owner %q does not exist", ns.UserID)
	}
	now := sql.NullTime{Time: m.now(), Valid: true}
	rec := model.SubscriptionRecord{
		ID:          m.nextID,
		Name:        ns.Name,
		Cost:        ns.Cost,
		Cycle:       ns.Cycle,
		RenewalDate: sql.NullTime{Time: ns.RenewalDate, Valid: true},
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      ns.UserID,
		IsActive:    ns.IsActive,
		Category:    ns.Category,
		Notes:       ns.Notes,
		Reminder:    ns.Reminder,
	}
	m.subs[rec.ID] = rec
	m.nextID++
	return &rec, nil
}

func (m *MemoryRepo) UpdateSubscription(_ context.Context, id int64, p model.SubscriptionPatch) (*model.SubscriptionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if p.Name != nil {
		rec.Name = *p.Name
	}
	if p.Cost != nil {
		rec.Cost = *p.Cost
	}
	if p.Cycle != nil {
		rec.Cycle = *p.Cycle
	}
	if p.RenewalDate != nil {
		rec.RenewalDate = sql.NullTime{Time: *p.RenewalDate, Valid: true}
	}
	if p.IsActive != nil {
		rec.IsActive = *p.IsActive
	}
	if p.Category != nil {
		rec.Category = sql.NullString{String: string(*p.Category), Valid: true}
	}
	if p.Notes != nil {
		rec.Notes = sql.NullString{String: *p.Notes, Valid: true}
	}
	if p.Reminder != nil {
		rec.Reminder = sql.NullString{String: *p.Reminder, Valid: true}
	}
	rec.UpdatedAt = sql.NullTime{Time: m.now(), Valid: true}
	m.subs[id] = rec
	return &rec, nil
}

func (m *MemoryRepo) UpsertUser(_ context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = m.now()
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryRepo) UpsertSubscription(_ context.Context, rec model.SubscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[rec.UserID]; !ok {
		return fmt.Errorf("subscription owner %q does not exist", rec.UserID)
	}
	now := m.now()
	if existing, ok := m.subs[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if !rec.CreatedAt.Valid {
		rec.CreatedAt = sql.NullTime{Time: now, Valid: true}
	}
	if !rec.UpdatedAt.Valid {
		rec.UpdatedAt = sql.NullTime{Time: now, Valid: true}
	}
	m.subs[rec.ID] = rec
	if rec.ID >= m.nextID {
		m.nextID = rec.ID + 1
	}
	return nil
}

func (m *MemoryRepo) Ping(context.Context) error { return nil }
