package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_listing/internal/domain"
)

// minCacheTTL bounds every cache write; entries never live without expiry.
const minCacheTTL = time.Minute

type QueryService struct {
	repo     domain.ListingRepository
	rooms    domain.RoomRepository
	cache    domain.Cache
	cacheTTL time.Duration
	paging   Paging
}

func NewQueryService(r domain.ListingRepository, rooms domain.RoomRepository, c domain.Cache, ttl time.Duration, pg Paging) *QueryService {
	return &QueryService{repo: r, rooms: rooms, cache: c, cacheTTL: ttl, paging: pg}
}

// GetListing returns the full detail view: children, room types and their price rules.
// Visibility of non-approved listings is decided by the caller.
func (s *QueryService) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	key := listingKey(id)
	var l domain.Listing
	if s.load(ctx, key, &l) {
		return l, nil
	}

	l, err := s.repo.GetListing(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	rts, err := s.rooms.ListRoomTypes(ctx, id)
	if err != nil {
		return domain.Listing{}, err
	}
	for i := range rts {
		if rts[i].PriceRules, err = s.rooms.ListPriceRules(ctx, rts[i].ID); err != nil {
			return domain.Listing{}, err
		}
	}
	l.RoomTypes = rts

	s.store(ctx, key, l)
	s.verifyFill(ctx, key, l)
	return l, nil
}

// verifyFill drops a just-written detail when the row moved on while it was
// being assembled, so a transition racing the read cannot leave a stale entry.
func (s *QueryService) verifyFill(ctx context.Context, key string, l domain.Listing) {
	if s.cache == nil {
		return
	}
	cur, err := s.repo.GetListing(ctx, l.ID)
	if err == nil && cur.Status == l.Status && cur.UpdatedAt.Equal(l.UpdatedAt) && samePrice(cur.MinPrice, l.MinPrice) {
		return
	}
	if err := s.cache.Del(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache invalidate failed")
	}
}

func samePrice(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SearchListings resolves raw params for view and runs the query. Never cached.
func (s *QueryService) SearchListings(ctx context.Context, view domain.View, actor *domain.Identity, p SearchParams) (domain.ListingPage, error) {
	q, err := BuildQuery(view, actor, p, s.paging)
	if err != nil {
		return domain.ListingPage{}, err
	}
	return s.repo.SearchListings(ctx, q)
}

// ListAuditLog returns the listing's history, newest first. Visible to its owner and admins.
func (s *QueryService) ListAuditLog(ctx context.Context, listingID int64, actor domain.Identity) ([]domain.AuditEntry, error) {
	l, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && actor.ID != l.OwnerID {
		return nil, domain.Forbidden("audit log is visible to the owner and admins only")
	}
	entries, err := s.repo.ListAuditEntries(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return entries, nil
}

// ListBanners returns active banners by sort rank, each with its linked listing digest.
func (s *QueryService) ListBanners(ctx context.Context) ([]domain.Banner, error) {
	var out []domain.Banner
	if s.load(ctx, bannersKey, &out) {
		return out, nil
	}
	out, err := s.repo.ListActiveBanners(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Banner{}
	}
	s.store(ctx, bannersKey, out)
	return out, nil
}

// load reports a cache hit; a failing cache is logged and treated as a miss.
func (s *QueryService) load(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache get failed")
		return false
	}
	return ok
}

func (s *QueryService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	ttl := max(s.cacheTTL, minCacheTTL)
	if err := s.cache.Set(ctx, key, v, int(ttl.Seconds())); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache set failed")
	}
}
