// Package service runs the subscription operations: each one resolves the
// caller, validates input, talks to storage and maps the result for clients.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/subtracker/subscriptions/internal/apperr"
	"github.com/subtracker/subscriptions/internal/auth"
	"github.com/subtracker/subscriptions/internal/mapper"
	"github.com/subtracker/subscriptions/internal/model"
	"github.com/subtracker/subscriptions/internal/store"
	"github.com/subtracker/subscriptions/internal/validation"
)

const DeletedMessage = "Subscription deleted successfully"

type ListResult struct {
	User          model.User               `json:"user"`
	Subscriptions []model.WireSubscription `json:"subscriptions"`
}

type SubscriptionResult struct {
	Subscription model.WireSubscription `json:"subscription"`
}

type MessageResult struct {
	Message string `json:"message"`
}

type Service struct {
	repo store.Repository
	val  *validation.Validator
	log  *logrus.Logger
}

func New(repo store.Repository, val *validation.Validator, log *logrus.Logger) *Service {
	return &Service{repo: repo, val: val, log: log}
}

// List returns the caller's user record and all of their subscriptions,
// soonest renewal first.
func (s *Service) List(ctx context.Context) (*ListResult, error) {
	caller, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.findUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSubscriptionsByUser(ctx, caller.UserID)
	if err != nil {
		return nil, s.storageFault("list subscriptions", err)
	}
	subs := make([]model.WireSubscription, 0, len(rows))
	for _, rec := range rows {
		w, err := s.present(rec)
		if err != nil {
			return nil, err
		}
		subs = append(subs, w)
	}
	return &ListResult{User: *user, Subscriptions: subs}, nil
}

// Create stores a new subscription owned by the caller. Any userId in the
// body is ignored.
func (s *Service) Create(ctx context.Context, body []byte) (*SubscriptionResult, error) {
	caller, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.decode(body)
	if err != nil {
		return nil, err
	}
	req, err := s.val.Create(p)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	if _, err := s.findUser(ctx, caller.UserID); err != nil {
		return nil, err
	}
	ns, err := mapper.NewSubscription(caller.UserID, req)
	if err != nil {
		return nil, apperr.Internal(err.Error(), err)
	}
	rec, err := s.repo.CreateSubscription(ctx, ns)
	if err != nil {
		return nil, s.storageFault("create subscription", err)
	}
	w, err := s.present(*rec)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": caller.UserID, "subscription_id": rec.ID}).Info("subscription created")
	return &SubscriptionResult{Subscription: w}, nil
}

// Update applies the fields present in body to a subscription the caller owns.
func (s *Service) Update(ctx context.Context, rawID string, body []byte) (*SubscriptionResult, error) {
	caller, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	p, err := s.decode(body)
	if err != nil {
		return nil, err
	}
	req, err := s.val.Update(p)
	if err != nil {
		return nil, apperr.BadRequest(err.Error())
	}
	if _, err := s.loadOwned(ctx, caller, id, "update"); err != nil {
		return nil, err
	}
	patch, err := mapper.Patch(req)
	if err != nil {
		return nil, apperr.Internal(err.Error(), err)
	}
	rec, err := s.repo.UpdateSubscription(ctx, id, patch)
	if err != nil {
		return nil, s.storageFault("update subscription", err)
	}
	w, err := s.present(*rec)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": caller.UserID, "subscription_id": id}).Info("subscription updated")
	return &SubscriptionResult{Subscription: w}, nil
}

// Delete marks a subscription the caller owns as inactive. Rows are never
// removed.
func (s *Service) Delete(ctx context.Context, rawID string) (*MessageResult, error) {
	caller, err := auth.RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadOwned(ctx, caller, id, "delete"); err != nil {
		return nil, err
	}
	inactive := false
	if _, err := s.repo.UpdateSubscription(ctx, id, model.SubscriptionPatch{IsActive: &inactive}); err != nil {
		return nil, s.storageFault("deactivate subscription", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": caller.UserID, "subscription_id": id}).Info("subscription deactivated")
	return &MessageResult{Message: DeletedMessage}, nil
}

// parseID accepts only a complete base-10 integer.
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.BadRequest("Invalid subscription ID")
	}
	return id, nil
}

func (s *Service) decode(body []byte) (validation.Payload, error) {
	p, err := validation.DecodePayload(body)
	if err != nil {
		s.log.WithError(err).Warn("invalid request body")
		return nil, apperr.BadRequest("Invalid request body")
	}
	return p, nil
}

func (s *Service) findUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.repo.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, s.storageFault("find user", err)
	}
	return u, nil
}

// loadOwned checks existence before ownership.
func (s *Service) loadOwned(ctx context.Context, caller auth.Identity, id int64, action string) (*model.SubscriptionRecord, error) {
	rec, err := s.repo.FindSubscriptionByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Subscription not found")
	}
	if err != nil {
		return nil, s.storageFault("find subscription", err)
	}
	if err := auth.Authorize(caller, rec.UserID, action); err != nil {
		s.log.WithFields(logrus.Fields{"user_id": caller.UserID, "subscription_id": id, "action": action}).
			Warn("rejected access to foreign subscription")
		return nil, err
	}
	return rec, nil
}

// present re-validates a stored row and converts it to the wire form.
func (s *Service) present(rec model.SubscriptionRecord) (model.WireSubscription, error) {
	if err := s.val.Record(rec); err != nil {
		s.log.WithError(err).WithField("subscription_id", rec.ID).Error("storage returned an invalid subscription")
		return model.WireSubscription{}, apperr.Internal(fmt.Sprintf("Invalid subscription record id=%d: %v", rec.ID, err), err)
	}
	dom, err := mapper.ToDomain(rec, s.log)
	if err != nil {
		s.log.WithError(err).Error("subscription mapping failed")
		return model.WireSubscription{}, apperr.Internal(err.Error(), err)
	}
	return mapper.ToWire(dom), nil
}

func (s *Service) storageFault(op string, err error) error {
	s.log.WithError(err).Errorf("%s failed", op)
	return apperr.Internal(err.Error(), err)
}

// Health reports whether storage is reachable.
func (s *Service) Health(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
