package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_listing/internal/adapters/observability"
	"hotel_listing/internal/domain"
)

// LifecycleEngine guards and executes every status change of a listing.
// Each executed transition is persisted together with its audit entry.
type LifecycleEngine struct {
	repo  domain.ListingRepository
	cache domain.Cache
	now   func() time.Time
}

func NewLifecycleEngine(r domain.ListingRepository, c domain.Cache) *LifecycleEngine {
	return &LifecycleEngine{repo: r, cache: c, now: time.Now}
}

// Execute applies action to the listing on behalf of actor and returns the listing
// in its new state. Delete returns the listing as it was before removal.
func (e *LifecycleEngine) Execute(ctx context.Context, listingID int64, action domain.Action, actor domain.Identity, reason string) (domain.Listing, error) {
	l, err := e.execute(ctx, listingID, action, actor, reason)
	observability.ObserveTransition(string(action), transitionResult(err))

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int64("listing_id", listingID).
		Str("action", string(action)).
		Int64("actor_id", actor.ID).
		Str("status", string(l.Status)).
		Msg("lifecycle action")
	return l, err
}

func (e *LifecycleEngine) execute(ctx context.Context, listingID int64, action domain.Action, actor domain.Identity, reason string) (domain.Listing, error) {
	tr, ok := domain.TransitionFor(action)
	if !ok {
		return domain.Listing{}, &domain.ValidationError{Field: "action", Reason: "unknown action " + string(action)}
	}

	l, err := e.repo.GetListing(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}

	if action.ByReviewer() {
		if !actor.IsAdmin() {
			return l, domain.Forbidden("action " + string(action) + " requires the admin role")
		}
	} else if actor.ID != l.OwnerID {
		return l, domain.Forbidden("listing belongs to another merchant")
	}

	reason = strings.TrimSpace(reason)
	if action == domain.ActionReject && reason == "" {
		return l, &domain.ValidationError{Field: "reason", Reason: "is required when rejecting"}
	}

	if !tr.Allows(l.Status) {
		return l, &domain.TransitionError{Action: action, Current: l.Status}
	}

	if action == domain.ActionDelete {
		err = e.repo.DeleteListing(ctx, l.ID, l.Status)
	} else {
		entry := domain.AuditEntry{
			ListingID:  l.ID,
			ReviewerID: actor.ID,
			FromStatus: l.Status,
			ToStatus:   tr.To,
			CreatedAt:  e.now().UTC(),
		}
		if reason != "" {
			entry.Reason = &reason
		}
		err = e.repo.ApplyTransition(ctx, l.ID, l.Status, tr.To, entry)
	}
	if err != nil {
		// lost a race: report against the status that won
		var conflict *domain.StatusConflictError
		if errors.As(err, &conflict) {
			l.Status = conflict.Current
			return l, &domain.TransitionError{Action: action, Current: conflict.Current}
		}
		return l, err
	}

	invalidateListing(ctx, e.cache, l.ID)
	if action != domain.ActionDelete {
		l.Status = tr.To
		l.UpdatedAt = e.now().UTC()
	}
	return l, nil
}

func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrValidation):
		return "invalid"
	}
	return "error"
}

/********** cache keys **********/

const bannersKey = "banners:active"

func listingKey(id int64) string { return fmt.Sprintf("listing:%d", id) }

// invalidateListing drops the cached detail view; failures are logged, never returned.
func invalidateListing(ctx context.Context, c domain.Cache, id int64) {
	if c == nil {
		return
	}
	if err := c.Del(ctx, listingKey(id)); err != nil {
		log.Warn().Err(err).Int64("listing_id", id).Msg("cache invalidate failed")
	}
	// banners embed a listing digest
	if err := c.Del(ctx, bannersKey); err != nil {
		log.Warn().Err(err).Msg("cache invalidate failed")
	}
}
