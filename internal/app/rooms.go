package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"hotel_listing/internal/adapters/observability"
	"hotel_listing/internal/domain"
)

// RoomService manages room types and their price rules. Mutations are
// allowed at any listing status; every room-type write refreshes the
// listing's cached minimum price.
type RoomService struct {
	listings domain.ListingRepository
	rooms    domain.RoomRepository
	cache    domain.Cache
}

func NewRoomService(l domain.ListingRepository, r domain.RoomRepository, c domain.Cache) *RoomService {
	return &RoomService{listings: l, rooms: r, cache: c}
}

func (s *RoomService) ownedListing(ctx context.Context, listingID int64, actor domain.Identity) (domain.Listing, error) {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return domain.Listing{}, err
	}
	if l.OwnerID != actor.ID {
		return domain.Listing{}, domain.Forbidden("listing belongs to another merchant")
	}
	return l, nil
}

func (s *RoomService) ownedRoomType(ctx context.Context, roomTypeID int64, actor domain.Identity) (domain.RoomType, error) {
	rt, err := s.rooms.GetRoomType(ctx, roomTypeID)
	if err != nil {
		return domain.RoomType{}, err
	}
	if _, err := s.ownedListing(ctx, rt.ListingID, actor); err != nil {
		return domain.RoomType{}, err
	}
	return rt, nil
}

// RefreshMinPrice recomputes the listing's minimum price and drops its cached detail.
// Room-type writes call it; cmd/reprice runs it over every listing.
func (s *RoomService) RefreshMinPrice(ctx context.Context, listingID int64) error {
	p, err := s.rooms.RecomputeMinPrice(ctx, listingID)
	observability.ObserveRecompute(err)
	if err != nil {
		log.Error().Err(err).Int64("listing_id", listingID).Msg("min price recompute failed")
		return fmt.Errorf("recompute min price for listing %d: %w", listingID, err)
	}
	ev := log.Debug().Int64("listing_id", listingID)
	if p != nil {
		ev = ev.Float64("min_price", *p)
	}
	ev.Msg("min price recomputed")
	invalidateListing(ctx, s.cache, listingID)
	return nil
}

/********** room types **********/

func (s *RoomService) CreateRoomType(ctx context.Context, actor domain.Identity, in RoomTypeInput) (domain.RoomType, error) {
	if err := validateInput(in); err != nil {
		return domain.RoomType{}, err
	}
	if _, err := s.ownedListing(ctx, in.ListingID, actor); err != nil {
		return domain.RoomType{}, err
	}
	id, err := s.rooms.CreateRoomType(ctx, mapRoomType(in))
	if err != nil {
		return domain.RoomType{}, fmt.Errorf("create room type: %w", err)
	}
	if err := s.RefreshMinPrice(ctx, in.ListingID); err != nil {
		return domain.RoomType{}, err
	}
	return s.rooms.GetRoomType(ctx, id)
}

func (s *RoomService) UpdateRoomType(ctx context.Context, roomTypeID int64, actor domain.Identity, patch RoomTypePatch) (domain.RoomType, error) {
	if err := validateInput(patch); err != nil {
		return domain.RoomType{}, err
	}
	rt, err := s.ownedRoomType(ctx, roomTypeID, actor)
	if err != nil {
		return domain.RoomType{}, err
	}
	applyRoomTypePatch(&rt, patch)
	if err := s.rooms.UpdateRoomType(ctx, rt); err != nil {
		return domain.RoomType{}, fmt.Errorf("update room type %d: %w", roomTypeID, err)
	}
	if err := s.RefreshMinPrice(ctx, rt.ListingID); err != nil {
		return domain.RoomType{}, err
	}
	return s.rooms.GetRoomType(ctx, roomTypeID)
}

func (s *RoomService) DeleteRoomType(ctx context.Context, roomTypeID int64, actor domain.Identity) error {
	rt, err := s.ownedRoomType(ctx, roomTypeID, actor)
	if err != nil {
		return err
	}
	if err := s.rooms.DeleteRoomType(ctx, roomTypeID); err != nil {
		return fmt.Errorf("delete room type %d: %w", roomTypeID, err)
	}
	return s.RefreshMinPrice(ctx, rt.ListingID)
}

func (s *RoomService) GetRoomType(ctx context.Context, roomTypeID int64) (domain.RoomType, error) {
	rt, err := s.rooms.GetRoomType(ctx, roomTypeID)
	if err != nil {
		return domain.RoomType{}, err
	}
	if rt.PriceRules, err = s.rooms.ListPriceRules(ctx, roomTypeID); err != nil {
		return domain.RoomType{}, err
	}
	return rt, nil
}

// ListRoomTypes returns the listing's room types ordered by base price.
func (s *RoomService) ListRoomTypes(ctx context.Context, listingID int64) ([]domain.RoomType, error) {
	if _, err := s.listings.GetListing(ctx, listingID); err != nil {
		return nil, err
	}
	return s.rooms.ListRoomTypes(ctx, listingID)
}

/********** price rules **********/

func (s *RoomService) CreatePriceRule(ctx context.Context, actor domain.Identity, in PriceRuleInput) (domain.PriceRule, error) {
	if err := validateInput(in); err != nil {
		return domain.PriceRule{}, err
	}
	pr, err := mapPriceRule(in)
	if err != nil {
		return domain.PriceRule{}, err
	}
	rt, err := s.ownedRoomType(ctx, in.RoomTypeID, actor)
	if err != nil {
		return domain.PriceRule{}, err
	}
	id, err := s.rooms.CreatePriceRule(ctx, pr)
	if err != nil {
		return domain.PriceRule{}, fmt.Errorf("create price rule: %w", err)
	}
	invalidateListing(ctx, s.cache, rt.ListingID)
	return s.rooms.GetPriceRule(ctx, id)
}

func (s *RoomService) UpdatePriceRule(ctx context.Context, ruleID int64, actor domain.Identity, patch PriceRulePatch) (domain.PriceRule, error) {
	if err := validateInput(patch); err != nil {
		return domain.PriceRule{}, err
	}
	pr, err := s.rooms.GetPriceRule(ctx, ruleID)
	if err != nil {
		return domain.PriceRule{}, err
	}
	rt, err := s.ownedRoomType(ctx, pr.RoomTypeID, actor)
	if err != nil {
		return domain.PriceRule{}, err
	}
	if err := applyPriceRulePatch(&pr, patch); err != nil {
		return domain.PriceRule{}, err
	}
	if err := s.rooms.UpdatePriceRule(ctx, pr); err != nil {
		return domain.PriceRule{}, fmt.Errorf("update price rule %d: %w", ruleID, err)
	}
	invalidateListing(ctx, s.cache, rt.ListingID)
	return s.rooms.GetPriceRule(ctx, ruleID)
}

func (s *RoomService) DeletePriceRule(ctx context.Context, ruleID int64, actor domain.Identity) error {
	pr, err := s.rooms.GetPriceRule(ctx, ruleID)
	if err != nil {
		return err
	}
	rt, err := s.ownedRoomType(ctx, pr.RoomTypeID, actor)
	if err != nil {
		return err
	}
	if err := s.rooms.DeletePriceRule(ctx, ruleID); err != nil {
		return fmt.Errorf("delete price rule %d: %w", ruleID, err)
	}
	invalidateListing(ctx, s.cache, rt.ListingID)
	return nil
}

// ListPriceRules returns a room type's rules by start date. Overlapping ranges are kept as stored.
func (s *RoomService) ListPriceRules(ctx context.Context, roomTypeID int64) ([]domain.PriceRule, error) {
	if _, err := s.rooms.GetRoomType(ctx, roomTypeID); err != nil {
		return nil, err
	}
	return s.rooms.ListPriceRules(ctx, roomTypeID)
}
