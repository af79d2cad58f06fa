// Package memory is a process-local implementation of the listing and room
// repositories. It backs APP_STORAGE=memory and the service tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"hotel_listing/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	nextID   int64
	listings map[int64]domain.Listing
	rooms    map[int64]domain.RoomType
	rules    map[int64]domain.PriceRule
	audit    []domain.AuditEntry
	banners  []domain.Banner

	now func() time.Time
}

func New() *Store {
	return &Store{
		listings: map[int64]domain.Listing{},
		rooms:    map[int64]domain.RoomType{},
		rules:    map[int64]domain.PriceRule{},
		now:      time.Now,
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// AddBanner seeds a banner. ListingID 0 means no linked listing.
func (s *Store) AddBanner(imageURL string, sort int, active bool, listingID int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := domain.Banner{ID: s.id(), ImageURL: imageURL, Sort: sort, IsActive: active}
	if listingID != 0 {
		b.Listing = &domain.ListingDigest{ID: listingID}
	}
	s.banners = append(s.banners, b)
	return b.ID
}

/********** listings **********/

func (s *Store) CreateListing(_ context.Context, l domain.Listing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	l.ID = s.id()
	l.MinPrice = nil
	l.RoomTypes = nil
	l.CreatedAt, l.UpdatedAt = now, now
	l.Images = s.withIDs(l.Images)
	l.NearbySpots = s.spotIDs(l.NearbySpots)
	l.Promotions = s.promoIDs(l.Promotions)
	s.listings[l.ID] = cloneListing(l)
	return l.ID, nil
}

func (s *Store) UpdateListing(_ context.Context, l domain.Listing, opts domain.UpdateOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings[l.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "listing", ID: l.ID}
	}
	if len(opts.Expect) > 0 && !slices.Contains(opts.Expect, cur.Status) {
		return &domain.StatusConflictError{Current: cur.Status}
	}
	cur.NameZh, cur.NameEn = l.NameZh, l.NameEn
	cur.Address, cur.City = l.Address, l.City
	cur.StarLevel, cur.Phone, cur.Description = l.StarLevel, l.Phone, l.Description
	if opts.ReplaceImages {
		cur.Images = s.withIDs(l.Images)
	}
	if opts.ReplaceSpots {
		cur.NearbySpots = s.spotIDs(l.NearbySpots)
	}
	if opts.ReplacePromotions {
		cur.Promotions = s.promoIDs(l.Promotions)
	}
	cur.UpdatedAt = s.now().UTC()
	s.listings[l.ID] = cloneListing(cur)
	return nil
}

func (s *Store) ApplyTransition(_ context.Context, id int64, from, to domain.Status, entry domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings[id]
	if !ok {
		return &domain.NotFoundError{Entity: "listing", ID: id}
	}
	if cur.Status != from {
		return &domain.StatusConflictError{Current: cur.Status}
	}
	cur.Status = to
	cur.UpdatedAt = s.now().UTC()
	s.listings[id] = cur

	entry.ID = s.id()
	entry.ListingID = id
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = cur.UpdatedAt
	}
	s.audit = append(s.audit, entry)
	return nil
}

func (s *Store) DeleteListing(_ context.Context, id int64, from domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.listings[id]
	if !ok {
		return &domain.NotFoundError{Entity: "listing", ID: id}
	}
	if cur.Status != from {
		return &domain.StatusConflictError{Current: cur.Status}
	}
	for rid, rt := range s.rooms {
		if rt.ListingID != id {
			continue
		}
		for pid, pr := range s.rules {
			if pr.RoomTypeID == rid {
				delete(s.rules, pid)
			}
		}
		delete(s.rooms, rid)
	}
	for i := range s.banners {
		if s.banners[i].Listing != nil && s.banners[i].Listing.ID == id {
			s.banners[i].Listing = nil
		}
	}
	delete(s.listings, id)
	return nil
}

func (s *Store) GetListing(_ context.Context, id int64) (domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.listings[id]
	if !ok {
		return domain.Listing{}, &domain.NotFoundError{Entity: "listing", ID: id}
	}
	return cloneListing(l), nil
}

func (s *Store) SearchListings(_ context.Context, q domain.ListingQuery) (domain.ListingPage, error) {
	s.mu.RLock()
	matched := make([]domain.Listing, 0)
	for _, l := range s.listings {
		if matches(l, q) {
			matched = append(matched, cloneListing(l))
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Listing) int {
		c := compareBy(a, b, q.SortBy)
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if q.Desc {
			return -c
		}
		return c
	})

	total := int64(len(matched))
	start := min(max(q.Offset(), 0), len(matched))
	end := min(start+q.PageSize, len(matched))
	items := matched[start:end]
	for i := range items {
		items[i].NearbySpots, items[i].Promotions = nil, nil
	}
	return domain.NewListingPage(items, total, q.Page, q.PageSize), nil
}

func (s *Store) ListAuditEntries(_ context.Context, listingID int64) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].ListingID == listingID {
			out = append(out, s.audit[i])
		}
	}
	return out, nil
}

func (s *Store) ListListingIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.listings))
	for id := range s.listings {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *Store) ListActiveBanners(_ context.Context) ([]domain.Banner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Banner, 0, len(s.banners))
	for _, b := range s.banners {
		if !b.IsActive {
			continue
		}
		if b.Listing != nil {
			if l, ok := s.listings[b.Listing.ID]; ok {
				b.Listing = &domain.ListingDigest{ID: l.ID, NameZh: l.NameZh, NameEn: l.NameEn, City: l.City, MinPrice: l.MinPrice}
			} else {
				b.Listing = nil
			}
		}
		out = append(out, b)
	}
	slices.SortStableFunc(out, func(a, b domain.Banner) int { return cmp.Compare(a.Sort, b.Sort) })
	return out, nil
}

/********** room types & price rules **********/

func (s *Store) CreateRoomType(_ context.Context, r domain.RoomType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.listings[r.ListingID]; !ok {
		return 0, &domain.NotFoundError{Entity: "listing", ID: r.ListingID}
	}
	now := s.now().UTC()
	r.ID = s.id()
	r.CreatedAt, r.UpdatedAt = now, now
	r.PriceRules = nil
	s.rooms[r.ID] = cloneRoom(r)
	return r.ID, nil
}

func (s *Store) UpdateRoomType(_ context.Context, r domain.RoomType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rooms[r.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "room type", ID: r.ID}
	}
	r.ListingID = cur.ListingID
	r.CreatedAt = cur.CreatedAt
	r.UpdatedAt = s.now().UTC()
	r.PriceRules = nil
	s.rooms[r.ID] = cloneRoom(r)
	return nil
}

func (s *Store) DeleteRoomType(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return &domain.NotFoundError{Entity: "room type", ID: id}
	}
	for pid, pr := range s.rules {
		if pr.RoomTypeID == id {
			delete(s.rules, pid)
		}
	}
	delete(s.rooms, id)
	return nil
}

func (s *Store) GetRoomType(_ context.Context, id int64) (domain.RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.RoomType{}, &domain.NotFoundError{Entity: "room type", ID: id}
	}
	return cloneRoom(r), nil
}

func (s *Store) ListRoomTypes(_ context.Context, listingID int64) ([]domain.RoomType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.RoomType, 0)
	for _, r := range s.rooms {
		if r.ListingID == listingID {
			out = append(out, cloneRoom(r))
		}
	}
	slices.SortFunc(out, func(a, b domain.RoomType) int {
		return cmp.Or(cmp.Compare(a.BasePrice, b.BasePrice), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

func (s *Store) RecomputeMinPrice(_ context.Context, listingID int64) (*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "listing", ID: listingID}
	}
	var rts []domain.RoomType
	for _, r := range s.rooms {
		if r.ListingID == listingID {
			rts = append(rts, r)
		}
	}
	l.MinPrice = domain.MinBasePrice(rts)
	s.listings[listingID] = l
	if l.MinPrice == nil {
		return nil, nil
	}
	p := *l.MinPrice
	return &p, nil
}

func (s *Store) CreatePriceRule(_ context.Context, p domain.PriceRule) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[p.RoomTypeID]; !ok {
		return 0, &domain.NotFoundError{Entity: "room type", ID: p.RoomTypeID}
	}
	p.ID = s.id()
	s.rules[p.ID] = p
	return p.ID, nil
}

func (s *Store) UpdatePriceRule(_ context.Context, p domain.PriceRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rules[p.ID]
	if !ok {
		return &domain.NotFoundError{Entity: "price rule", ID: p.ID}
	}
	p.RoomTypeID = cur.RoomTypeID
	s.rules[p.ID] = p
	return nil
}

func (s *Store) DeletePriceRule(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return &domain.NotFoundError{Entity: "price rule", ID: id}
	}
	delete(s.rules, id)
	return nil
}

func (s *Store) GetPriceRule(_ context.Context, id int64) (domain.PriceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rules[id]
	if !ok {
		return domain.PriceRule{}, &domain.NotFoundError{Entity: "price rule", ID: id}
	}
	return p, nil
}

func (s *Store) ListPriceRules(_ context.Context, roomTypeID int64) ([]domain.PriceRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PriceRule, 0)
	for _, p := range s.rules {
		if p.RoomTypeID == roomTypeID {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.PriceRule) int {
		return cmp.Or(a.StartDate.Compare(b.StartDate), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

/********** helpers **********/

func matches(l domain.Listing, q domain.ListingQuery) bool {
	if q.Status != nil && l.Status != *q.Status {
		return false
	}
	if q.OwnerID != nil && l.OwnerID != *q.OwnerID {
		return false
	}
	if kw := strings.ToLower(q.Keyword); kw != "" {
		if !strings.Contains(strings.ToLower(l.NameZh), kw) &&
			!strings.Contains(strings.ToLower(l.NameEn), kw) &&
			!strings.Contains(strings.ToLower(l.City), kw) {
			return false
		}
	}
	if q.City != "" && l.City != q.City {
		return false
	}
	if q.StarLevel != nil && l.StarLevel != *q.StarLevel {
		return false
	}
	// listings without rooms have no price and never match a price bound
	if q.MinPrice != nil && (l.MinPrice == nil || *l.MinPrice < *q.MinPrice) {
		return false
	}
	if q.MaxPrice != nil && (l.MinPrice == nil || *l.MinPrice > *q.MaxPrice) {
		return false
	}
	return true
}

func compareBy(a, b domain.Listing, f domain.SortField) int {
	switch f {
	case domain.SortByPrice:
		// NULL prices first, as MySQL orders them ascending
		switch {
		case a.MinPrice == nil && b.MinPrice == nil:
			return 0
		case a.MinPrice == nil:
			return -1
		case b.MinPrice == nil:
			return 1
		}
		return cmp.Compare(*a.MinPrice, *b.MinPrice)
	case domain.SortByStarLevel:
		return cmp.Compare(a.StarLevel, b.StarLevel)
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}

func (s *Store) withIDs(in []domain.Image) []domain.Image {
	out := make([]domain.Image, len(in))
	for i, img := range in {
		img.ID = s.id()
		out[i] = img
	}
	slices.SortStableFunc(out, func(a, b domain.Image) int { return cmp.Compare(a.Sort, b.Sort) })
	return out
}

func (s *Store) spotIDs(in []domain.NearbySpot) []domain.NearbySpot {
	out := make([]domain.NearbySpot, len(in))
	for i, sp := range in {
		sp.ID = s.id()
		out[i] = sp
	}
	return out
}

func (s *Store) promoIDs(in []domain.Promotion) []domain.Promotion {
	out := make([]domain.Promotion, len(in))
	for i, p := range in {
		p.ID = s.id()
		out[i] = p
	}
	return out
}

func cloneListing(l domain.Listing) domain.Listing {
	l.Images = slices.Clone(l.Images)
	l.NearbySpots = slices.Clone(l.NearbySpots)
	l.Promotions = slices.Clone(l.Promotions)
	l.RoomTypes = nil
	if l.MinPrice != nil {
		p := *l.MinPrice
		l.MinPrice = &p
	}
	if l.Images == nil {
		l.Images = []domain.Image{}
	}
	return l
}

func cloneRoom(r domain.RoomType) domain.RoomType {
	r.Facilities = slices.Clone(r.Facilities)
	r.Images = slices.Clone(r.Images)
	if r.Facilities == nil {
		r.Facilities = []string{}
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	return r
}

var (
	_ domain.ListingRepository = (*Store)(nil)
	_ domain.RoomRepository    = (*Store)(nil)
)
