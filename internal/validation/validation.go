// Package validation turns untyped request payloads into typed, trusted
// requests and re-checks rows read back from storage.
package validation

import (
	"bytes"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/subtracker/subscriptions/internal/model"
)

// Payload is a decoded JSON object whose values have not been interpreted yet.
type Payload map[string]json.RawMessage

var ErrNotObject = errors.New("request body must be a JSON object")

// DecodePayload parses body as a JSON object.
func DecodePayload(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotObject
	}
	return p, nil
}

type Issue struct {
	Field   string
	Message string
}

// Error aggregates every offending field of a payload or record.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Field == "" {
			parts = append(parts, is.Message)
			continue
		}
		parts = append(parts, is.Field+": "+is.Message)
	}
	return "Validation failed: " + strings.Join(parts, ", ")
}

const emptyUpdateMessage = "At least one field must be provided for update"

// messages overrides the generic wording for specific field/tag pairs.
var messages = map[string]string{
	"name.required":           "Name is required",
	"name.min":                "Name is required",
	"cost.required":           "Cost is required",
	"cost.gte":                "Cost must be non-negative",
	"cycle.required":          "Cycle must be 'monthly' or 'yearly'",
	"cycle.cycle":             "Cycle must be 'monthly' or 'yearly'",
	"renewalDate.required":    "Renewal date is required",
	"renewalDate.isodatetime": "Invalid renewal date format",
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "db"} {
			name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return ""
	})
	v.RegisterCustomTypeFunc(nullableValue, sql.NullString{}, sql.NullTime{})
	mustRegister(v, "cycle", func(fl validator.FieldLevel) bool {
		return model.Cycle(fl.Field().String()).Valid()
	})
	mustRegister(v, "category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})
	mustRegister(v, "timeframe", func(fl validator.FieldLevel) bool {
		return model.ReminderTimeframe(fl.Field().String()).Valid()
	})
	mustRegister(v, "isodatetime", func(fl validator.FieldLevel) bool {
		_, err := model.ParseISO(fl.Field().String())
		return err == nil
	})
	return &Validator{v: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func nullableValue(field reflect.Value) interface{} {
	if valuer, ok := field.Interface().(driver.Valuer); ok {
		val, err := valuer.Value()
		if err == nil {
			return val
		}
	}
	return nil
}

// Create validates a create payload. IsActive defaults to true.
func (val *Validator) Create(p Payload) (model.CreateSubscriptionRequest, error) {
	var req model.CreateSubscriptionRequest
	issues := decodeFields(p, &req)
	issues = append(issues, val.check(&req, issues)...)
	if len(issues) > 0 {
		return model.CreateSubscriptionRequest{}, &Error{Issues: issues}
	}
	req.Renewal, _ = model.ParseISO(req.RenewalDate)
	if req.IsActive == nil {
		active := true
		req.IsActive = &active
	}
	return req, nil
}

// Update validates a partial update payload. A payload without any
// recognized field is rejected.
func (val *Validator) Update(p Payload) (model.UpdateSubscriptionRequest, error) {
	var req model.UpdateSubscriptionRequest
	issues := decodeFields(p, &req)
	issues = append(issues, val.check(&req, issues)...)
	if len(issues) > 0 {
		return model.UpdateSubscriptionRequest{}, &Error{Issues: issues}
	}
	if req.Empty() {
		return model.UpdateSubscriptionRequest{}, &Error{Issues: []Issue{{Message: emptyUpdateMessage}}}
	}
	if req.RenewalDate != nil {
		t, _ := model.ParseISO(*req.RenewalDate)
		req.Renewal = &t
	}
	return req, nil
}

// Record re-checks a row returned by storage.
func (val *Validator) Record(rec model.SubscriptionRecord) error {
	if issues := val.check(&rec, nil); len(issues) > 0 {
		return &Error{Issues: issues}
	}
	return nil
}

// check runs struct validation, skipping fields that already failed decoding.
func (val *Validator) check(s interface{}, prior []Issue) []Issue {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []Issue{{Message: err.Error()}}
	}
	seen := map[string]bool{}
	for _, is := range prior {
		seen[topLevel(is.Field)] = true
	}
	var issues []Issue
	for _, fe := range verrs {
		field := fieldPath(fe.Namespace())
		if seen[topLevel(field)] {
			continue
		}
		issues = append(issues, Issue{Field: field, Message: describe(field, fe)})
	}
	return issues
}

// decodeFields unmarshals each known key of p into the matching field of dst
// and reports type mismatches per field.
func decodeFields(p Payload, dst interface{}) []Issue {
	rv := reflect.ValueOf(dst).Elem()
	rt := rv.Type()
	var issues []Issue
	for i := 0; i < rt.NumField(); i++ {
		name := strings.SplitN(rt.Field(i).Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		raw, ok := p[name]
		if !ok {
			continue
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			issues = append(issues, Issue{Field: name, Message: fmt.Sprintf("expected %s, received null", kindName(rt.Field(i).Type))})
			continue
		}
		if err := json.Unmarshal(raw, rv.Field(i).Addr().Interface()); err != nil {
			issues = append(issues, typeIssue(name, err))
		}
	}
	return issues
}

func typeIssue(name string, err error) Issue {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		field := name
		if te.Field != "" {
			field = name + "." + te.Field
		}
		return Issue{Field: field, Message: fmt.Sprintf("expected %s, received %s", kindName(te.Type), te.Value)}
	}
	return Issue{Field: name, Message: err.Error()}
}

func kindName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Struct, reflect.Map:
		return "object"
	}
	return t.String()
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func topLevel(field string) string {
	if i := strings.IndexAny(field, ".["); i >= 0 {
		return field[:i]
	}
	return field
}

func describe(field string, fe validator.FieldError) string {
	if msg, ok := messages[field+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Kind() == reflect.Slice {
			return "must contain at most " + fe.Param() + " items"
		}
		return "must be at most " + fe.Param()
	case "cycle":
		return "must be one of: " + joinSet(model.Cycles)
	case "category":
		return "must be one of: " + joinSet(model.Categories)
	case "timeframe":
		return "must be one of: " + joinSet(model.ReminderTimeframes)
	case "isodatetime":
		return "must be an ISO 8601 date-time"
	}
	return "failed on " + fe.Tag()
}

func joinSet[T ~string](set []T) string {
	parts := make([]string, len(set))
	for i, s := range set {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
