package domain

import "context"

type ListingRepository interface {
	// Write paths
	CreateListing(ctx context.Context, l Listing) (int64, error)
	// UpdateListing rewrites descriptive fields (and the child collections
	// selected in opts) only while the stored status is one of opts.Expect.
	UpdateListing(ctx context.Context, l Listing, opts UpdateOptions) error
	// ApplyTransition sets status to `to` only if it is still `from`, and
	// appends entry in the same transaction.
	ApplyTransition(ctx context.Context, id int64, from, to Status, entry AuditEntry) error
	// DeleteListing removes the listing and all dependents if status is still `from`.
	DeleteListing(ctx context.Context, id int64, from Status) error

	// Read paths
	GetListing(ctx context.Context, id int64) (Listing, error)
	SearchListings(ctx context.Context, q ListingQuery) (ListingPage, error)
	ListAuditEntries(ctx context.Context, listingID int64) ([]AuditEntry, error)
	ListListingIDs(ctx context.Context) ([]int64, error)
	ListActiveBanners(ctx context.Context) ([]Banner, error)
}

type RoomRepository interface {
	CreateRoomType(ctx context.Context, r RoomType) (int64, error)
	UpdateRoomType(ctx context.Context, r RoomType) error
	// DeleteRoomType removes the room type and its price rules.
	DeleteRoomType(ctx context.Context, id int64) error
	GetRoomType(ctx context.Context, id int64) (RoomType, error)
	ListRoomTypes(ctx context.Context, listingID int64) ([]RoomType, error)
	// RecomputeMinPrice stores min(base_price) over the listing's current room
	// types (NULL when none) and returns the stored value.
	RecomputeMinPrice(ctx context.Context, listingID int64) (*float64, error)

	CreatePriceRule(ctx context.Context, p PriceRule) (int64, error)
	UpdatePriceRule(ctx context.Context, p PriceRule) error
	DeletePriceRule(ctx context.Context, id int64) error
	GetPriceRule(ctx context.Context, id int64) (PriceRule, error)
	ListPriceRules(ctx context.Context, roomTypeID int64) ([]PriceRule, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

type UpdateOptions struct {
	Expect            []Status
	ReplaceImages     bool
	ReplaceSpots      bool
	ReplacePromotions bool
}

// Read models & queries

type ViewKind int

const (
	ViewPublicSearch ViewKind = iota
	ViewOwnerListings
	ViewReviewQueue
)

// View selects the caller context of a listing query and its mandatory base filter.
type View struct {
	Kind    ViewKind
	OwnerID int64
}

func PublicSearch() View             { return View{Kind: ViewPublicSearch} }
func OwnerListings(owner int64) View { return View{Kind: ViewOwnerListings, OwnerID: owner} }
func ReviewQueue() View              { return View{Kind: ViewReviewQueue} }

type SortField string

const (
	SortByPrice     SortField = "price"
	SortByStarLevel SortField = "starLevel"
	SortByCreatedAt SortField = "createdAt"
)

// ListingQuery is a fully resolved query: base filters already applied,
// every field either set or absent.
type ListingQuery struct {
	OwnerID   *int64
	Status    *Status
	Keyword   string
	City      string
	StarLevel *int
	MinPrice  *float64
	MaxPrice  *float64
	SortBy    SortField
	Desc      bool
	Page      int
	PageSize  int
}

func (q ListingQuery) Offset() int { return (q.Page - 1) * q.PageSize }

type ListingPage struct {
	Items      []Listing `json:"items"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"pageSize"`
	TotalPages int64     `json:"totalPages"`
}

func NewListingPage(items []Listing, total int64, page, pageSize int) ListingPage {
	if items == nil {
		items = []Listing{}
	}
	var pages int64
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return ListingPage{Items: items, Total: total, Page: page, PageSize: pageSize, TotalPages: pages}
}
