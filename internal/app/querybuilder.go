package app

import (
	"math"
	"strings"

	"hotel_listing/internal/domain"
)

// SearchParams are the raw, untrusted filter values of a listing query,
// typically taken verbatim from a URL query string.
type SearchParams struct {
	Keyword   string
	City      string
	StarLevel string
	MinPrice  string
	MaxPrice  string
	Status    string
	SortBy    string
	SortOrder string
	Page      string
	PageSize  string
}

type Paging struct {
	DefaultSize int
	MaxSize     int
}

var DefaultPaging = Paging{DefaultSize: 10, MaxSize: 100}

const maxOffset = math.MaxInt32

var sortFields = map[string]domain.SortField{
	"price":     domain.SortByPrice,
	"starlevel": domain.SortByStarLevel,
	"createdat": domain.SortByCreatedAt,
}

// BuildQuery resolves raw params against the view's mandatory base filter.
// Malformed optional values are treated as absent; only an unauthorized view is an error.
func BuildQuery(view domain.View, actor *domain.Identity, p SearchParams, pg Paging) (domain.ListingQuery, error) {
	if pg.DefaultSize <= 0 {
		pg.DefaultSize = DefaultPaging.DefaultSize
	}
	if pg.MaxSize <= 0 {
		pg.MaxSize = DefaultPaging.MaxSize
	}

	var q domain.ListingQuery
	switch view.Kind {
	case domain.ViewPublicSearch:
		st := domain.StatusApproved
		q.Status = &st
	case domain.ViewOwnerListings:
		if actor == nil || actor.ID != view.OwnerID {
			return q, domain.Forbidden("listings belong to another merchant")
		}
		owner := view.OwnerID
		q.OwnerID = &owner
		if st, ok := domain.ParseStatus(p.Status); ok {
			q.Status = &st
		}
	case domain.ViewReviewQueue:
		if actor == nil || !actor.IsAdmin() {
			return q, domain.Forbidden("review queue requires the admin role")
		}
		if st, ok := domain.ParseStatus(p.Status); ok {
			q.Status = &st
		}
	default:
		return q, domain.Forbidden("unknown view")
	}

	q.Keyword = strings.TrimSpace(p.Keyword)
	q.City = strings.TrimSpace(p.City)
	q.StarLevel = parseIntFlexible(p.StarLevel)
	q.MinPrice = parseFloatFlexible(p.MinPrice)
	q.MaxPrice = parseFloatFlexible(p.MaxPrice)

	q.SortBy = domain.SortByCreatedAt
	if f, ok := sortFields[strings.ToLower(strings.TrimSpace(p.SortBy))]; ok {
		q.SortBy = f
	}
	q.Desc = !strings.EqualFold(strings.TrimSpace(p.SortOrder), "asc")

	q.PageSize = pg.DefaultSize
	if n := parseIntFlexible(p.PageSize); n != nil && *n >= 1 {
		q.PageSize = min(*n, pg.MaxSize)
	}
	q.Page = 1
	if n := parseIntFlexible(p.Page); n != nil && *n >= 1 {
		// clamp so the row offset always fits an int32
		q.Page = min(*n, maxOffset/q.PageSize+1)
	}
	return q, nil
}
