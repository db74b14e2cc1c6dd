package model

import (
	"database/sql"
	"time"
)

// MaxReminderAlerts caps the number of reminders a subscription may carry.
const MaxReminderAlerts = 5

type ReminderAlert struct {
	Timeframe ReminderTimeframe `json:"timeframe" validate:"required,timeframe"`
	Value     int               `json:"value" validate:"gt=0"`
}

// Subscription is the validated in-process form. Category and Notes are unset
// when empty.
type Subscription struct {
	ID            int64
	Name          string
	Cost          float64
	Cycle         Cycle
	RenewalDate   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	UserID        string
	IsActive      bool
	Category      Category
	Notes         string
	ReminderAlert []ReminderAlert
}

// SubscriptionRecord is a row as persisted. Reminder holds the JSON encoded
// reminder list.
type SubscriptionRecord struct {
	ID          int64          `db:"id"`
	Name        string         `db:"name" validate:"required"`
	Cost        float64        `db:"cost" validate:"gte=0"`
	Cycle       Cycle          `db:"cycle" validate:"required,cycle"`
	RenewalDate sql.NullTime   `db:"renewal_date"`
	CreatedAt   sql.NullTime   `db:"created_at"`
	UpdatedAt   sql.NullTime   `db:"updated_at"`
	UserID      string         `db:"user_id" validate:"required"`
	IsActive    bool           `db:"is_active"`
	Category    sql.NullString `db:"category" validate:"omitempty,category"`
	Notes       sql.NullString `db:"notes"`
	Reminder    sql.NullString `db:"reminder"`
}

// WireSubscription is the JSON shape returned to clients.
type WireSubscription struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Cost          float64         `json:"cost"`
	Cycle         Cycle           `json:"cycle"`
	RenewalDate   *string         `json:"renewalDate"`
	CreatedAt     *string         `json:"createdAt"`
	UpdatedAt     *string         `json:"updatedAt"`
	UserID        string          `json:"userId"`
	IsActive      bool            `json:"isActive"`
	Category      Category        `json:"category,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	ReminderAlert []ReminderAlert `json:"reminderAlert,omitempty"`
}

// NewSubscription carries the columns written by an insert.
type NewSubscription struct {
	Name        string
	Cost        float64
	Cycle       Cycle
	RenewalDate time.Time
	UserID      string
	IsActive    bool
	Category    sql.NullString
	Notes       sql.NullString
	Reminder    sql.NullString
}

// SubscriptionPatch is a partial update. Nil fields are left untouched.
type SubscriptionPatch struct {
	Name        *string
	Cost        *float64
	Cycle       *Cycle
	RenewalDate *time.Time
	IsActive    *bool
	Category    *Category
	Notes       *string
	Reminder    *string
}

func (p SubscriptionPatch) Empty() bool {
	return p.Name == nil && p.Cost == nil && p.Cycle == nil && p.RenewalDate == nil &&
		p.IsActive == nil && p.Category == nil && p.Notes == nil && p.Reminder == nil
}

// ISOLayout renders instants the way clients expect: UTC with milliseconds.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO accepts RFC 3339 date-times, with or without fractional seconds.
func ParseISO(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
