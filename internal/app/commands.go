package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"hotel_listing/internal/domain"
)

// ListingService owns merchant-side writes to a listing's descriptive data.
// Status changes always go through the LifecycleEngine.
type ListingService struct {
	repo   domain.ListingRepository
	cache  domain.Cache
	engine *LifecycleEngine
}

func NewListingService(r domain.ListingRepository, c domain.Cache, e *LifecycleEngine) *ListingService {
	return &ListingService{repo: r, cache: c, engine: e}
}

// CreateListing stores a new listing in Draft owned by the calling merchant.
func (s *ListingService) CreateListing(ctx context.Context, actor domain.Identity, in ListingInput) (domain.Listing, error) {
	if actor.Role != domain.RoleMerchant {
		return domain.Listing{}, domain.Forbidden("only merchants own listings")
	}
	if err := validateInput(in); err != nil {
		return domain.Listing{}, err
	}
	l, err := mapListing(actor.ID, in)
	if err != nil {
		return domain.Listing{}, err
	}
	id, err := s.repo.CreateListing(ctx, l)
	if err != nil {
		return domain.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	log.Info().Int64("listing_id", id).Int64("owner_id", actor.ID).Msg("listing created")
	return s.repo.GetListing(ctx, id)
}

// UpdateListing merges patch into the listing while it is Draft or Rejected.
func (s *ListingService) UpdateListing(ctx context.Context, listingID int64, actor domain.Identity, patch ListingPatch) (domain.Listing, error) {
	if err := validateInput(patch); err != nil {
		return domain.Listing{}, err
	}
	l, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	if l.OwnerID != actor.ID {
		return domain.Listing{}, domain.Forbidden("listing belongs to another merchant")
	}
	if !l.Status.Editable() {
		return domain.Listing{}, &domain.StateError{Current: l.Status}
	}

	opts, err := applyListingPatch(&l, patch)
	if err != nil {
		return domain.Listing{}, err
	}
	if err := s.repo.UpdateListing(ctx, l, opts); err != nil {
		var conflict *domain.StatusConflictError
		if errors.As(err, &conflict) {
			return domain.Listing{}, &domain.StateError{Current: conflict.Current}
		}
		return domain.Listing{}, fmt.Errorf("update listing %d: %w", listingID, err)
	}
	invalidateListing(ctx, s.cache, listingID)
	return s.repo.GetListing(ctx, listingID)
}

// DeleteListing permanently removes a Draft listing and all of its children.
func (s *ListingService) DeleteListing(ctx context.Context, listingID int64, actor domain.Identity) error {
	_, err := s.engine.Execute(ctx, listingID, domain.ActionDelete, actor, "")
	return err
}

func (s *ListingService) Submit(ctx context.Context, listingID int64, actor domain.Identity) (domain.Listing, error) {
	return s.engine.Execute(ctx, listingID, domain.ActionSubmit, actor, "")
}

// Review runs a reviewer action named by its wire form (APPROVE, REJECT, OFFLINE, ONLINE).
func (s *ListingService) Review(ctx context.Context, listingID int64, action string, actor domain.Identity, reason string) (domain.Listing, error) {
	a, ok := domain.ParseAction(action)
	if !ok || !a.ByReviewer() {
		return domain.Listing{}, &domain.ValidationError{Field: "action", Reason: "must be one of [APPROVE REJECT OFFLINE ONLINE]"}
	}
	return s.engine.Execute(ctx, listingID, a, actor, reason)
}
