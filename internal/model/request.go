package model

import "time"

// CreateSubscriptionRequest is the typed create payload produced by validation.
// Renewal holds the parsed RenewalDate.
type CreateSubscriptionRequest struct {
	Name          string          `json:"name" validate:"required"`
	Cost          *float64        `json:"cost" validate:"required,gte=0"`
	Cycle         Cycle           `json:"cycle" validate:"required,cycle"`
	RenewalDate   string          `json:"renewalDate" validate:"required,isodatetime"`
	IsActive      *bool           `json:"isActive"`
	Category      *Category       `json:"category" validate:"omitempty,category"`
	Notes         *string         `json:"notes"`
	ReminderAlert []ReminderAlert `json:"reminderAlert" validate:"omitempty,max=5,dive"`

	Renewal time.Time `json:"-" validate:"-"`
}

// UpdateSubscriptionRequest holds only the fields present in the request body.
type UpdateSubscriptionRequest struct {
	Name          *string         `json:"name" validate:"omitempty,min=1"`
	Cost          *float64        `json:"cost" validate:"omitempty,gte=0"`
	Cycle         *Cycle          `json:"cycle" validate:"omitempty,cycle"`
	RenewalDate   *string         `json:"renewalDate" validate:"omitempty,isodatetime"`
	IsActive      *bool           `json:"isActive"`
	Category      *Category       `json:"category" validate:"omitempty,category"`
	Notes         *string         `json:"notes"`
	ReminderAlert []ReminderAlert `json:"reminderAlert" validate:"omitempty,max=5,dive"`

	Renewal *time.Time `json:"-" validate:"-"`
}

func (r UpdateSubscriptionRequest) Empty() bool {
	return r.Name == nil && r.Cost == nil && r.Cycle == nil && r.RenewalDate == nil &&
		r.IsActive == nil && r.Category == nil && r.Notes == nil && r.ReminderAlert == nil
}
