// Package mapper converts subscriptions between their wire, domain and
// storage representations.
package mapper

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/subtracker/subscriptions/internal/model"
)

// Error reports a persisted row that cannot be represented as a domain
// subscription.
type Error struct {
	ID     int64
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("Failed to map subscription id=%d: %s %s", e.ID, e.Field, e.Reason)
}

// NewSubscription builds the insert columns for a validated create request.
// The owner always comes from userID.
func NewSubscription(userID string, req model.CreateSubscriptionRequest) (model.NewSubscription, error) {
	ns := model.NewSubscription{
		Name:        req.Name,
		Cycle:       req.Cycle,
		RenewalDate: req.Renewal,
		UserID:      userID,
		IsActive:    true,
	}
	if req.Cost != nil {
		ns.Cost = *req.Cost
	}
	if req.IsActive != nil {
		ns.IsActive = *req.IsActive
	}
	if req.Category != nil {
		ns.Category = sql.NullString{String: string(*req.Category), Valid: true}
	}
	if req.Notes != nil {
		ns.Notes = sql.NullString{String: *req.Notes, Valid: true}
	}
	if req.ReminderAlert != nil {
		blob, err := EncodeReminders(req.ReminderAlert)
		if err != nil {
			return model.NewSubscription{}, err
		}
		ns.Reminder = sql.NullString{String: blob, Valid: true}
	}
	return ns, nil
}

// Patch copies the fields present in req. Absent fields stay nil.
func Patch(req model.UpdateSubscriptionRequest) (model.SubscriptionPatch, error) {
	p := model.SubscriptionPatch{
		Name:        req.Name,
		Cost:        req.Cost,
		Cycle:       req.Cycle,
		RenewalDate: req.Renewal,
		IsActive:    req.IsActive,
		Category:    req.Category,
		Notes:       req.Notes,
	}
	if req.ReminderAlert != nil {
		blob, err := EncodeReminders(req.ReminderAlert)
		if err != nil {
			return model.SubscriptionPatch{}, err
		}
		p.Reminder = &blob
	}
	return p, nil
}

func EncodeReminders(alerts []model.ReminderAlert) (string, error) {
	b, err := json.Marshal(alerts)
	if err != nil {
		return "", fmt.Errorf("encode reminders: %w", err)
	}
	return string(b), nil
}

// ToDomain converts a stored row. Missing timestamps are an error; an
// unreadable reminder blob is logged and dropped.
func ToDomain(rec model.SubscriptionRecord, log logrus.FieldLogger) (model.Subscription, error) {
	renewal, err := requireTime(rec.ID, "renewalDate", rec.RenewalDate)
	if err != nil {
		return model.Subscription{}, err
	}
	created, err := requireTime(rec.ID, "createdAt", rec.CreatedAt)
	if err != nil {
		return model.Subscription{}, err
	}
	updated, err := requireTime(rec.ID, "updatedAt", rec.UpdatedAt)
	if err != nil {
		return model.Subscription{}, err
	}

	s := model.Subscription{
		ID:          rec.ID,
		Name:        rec.Name,
		Cost:        rec.Cost,
		Cycle:       rec.Cycle,
		RenewalDate: renewal,
		CreatedAt:   created,
		UpdatedAt:   updated,
		UserID:      rec.UserID,
		IsActive:    rec.IsActive,
	}
	if rec.Category.Valid && rec.Category.String != "" {
		s.Category = model.Category(rec.Category.String)
	}
	if rec.Notes.Valid && rec.Notes.String != "" {
		s.Notes = rec.Notes.String
	}
	if rec.Reminder.Valid && rec.Reminder.String != "" {
		var alerts []model.ReminderAlert
		if err := json.Unmarshal([]byte(rec.Reminder.String), &alerts); err != nil {
			if log != nil {
				log.WithFields(logrus.Fields{"subscription_id": rec.ID, "error": err}).
					Warn("dropping malformed reminder data")
			}
		} else {
			s.ReminderAlert = alerts
		}
	}
	return s, nil
}

func requireTime(id int64, field string, t sql.NullTime) (time.Time, error) {
	if !t.Valid || t.Time.IsZero() {
		return time.Time{}, &Error{ID: id, Field: field, Reason: "is null or not a valid date"}
	}
	return t.Time, nil
}

// ToWire renders instants as ISO 8601 strings; everything else passes through.
func ToWire(s model.Subscription) model.WireSubscription {
	return model.WireSubscription{
		ID:            s.ID,
		Name:          s.Name,
		Cost:          s.Cost,
		Cycle:         s.Cycle,
		RenewalDate:   isoPtr(s.RenewalDate),
		CreatedAt:     isoPtr(s.CreatedAt),
		UpdatedAt:     isoPtr(s.UpdatedAt),
		UserID:        s.UserID,
		IsActive:      s.IsActive,
		Category:      s.Category,
		Notes:         s.Notes,
		ReminderAlert: s.ReminderAlert,
	}
}

func isoPtr(t time.Time) *string {
	v := model.FormatISO(t)
	return &v
}
