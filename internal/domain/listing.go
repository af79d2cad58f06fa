package domain

import (
	"math"
	"strings"
	"time"
)

// Status is the review lifecycle state of a listing.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
	StatusOffline  Status = "OFFLINE"
)

var allStatuses = []Status{StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusOffline}

// ParseStatus accepts the wire form case-insensitively.
func ParseStatus(s string) (Status, bool) {
	for _, st := range allStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, true
		}
	}
	return "", false
}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusOffline:
		return true
	}
	return false
}

// EditableStatuses are the states in which the owner may change descriptive fields.
var EditableStatuses = []Status{StatusDraft, StatusRejected}

func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

type SpotType string

const (
	SpotScenic    SpotType = "SCENIC"
	SpotTransport SpotType = "TRANSPORT"
	SpotShopping  SpotType = "SHOPPING"
)

type Listing struct {
	ID          int64        `json:"id"`
	OwnerID     int64        `json:"merchantId"`
	NameZh      string       `json:"nameZh"`
	NameEn      string       `json:"nameEn"`
	Address     string       `json:"address"`
	City        string       `json:"city"`
	StarLevel   int          `json:"starLevel"`
	Phone       string       `json:"phone"`
	Description string       `json:"description"`
	MinPrice    *float64     `json:"minPrice"`
	Status      Status       `json:"status"`
	Images      []Image      `json:"images"`
	NearbySpots []NearbySpot `json:"nearbySpots,omitempty"`
	Promotions  []Promotion  `json:"promotions,omitempty"`
	RoomTypes   []RoomType   `json:"roomTypes,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Cover returns the image flagged as cover, else the first by rank.
func (l Listing) Cover() *Image {
	for i := range l.Images {
		if l.Images[i].IsCover {
			return &l.Images[i]
		}
	}
	if len(l.Images) > 0 {
		return &l.Images[0]
	}
	return nil
}

type Image struct {
	ID      int64  `json:"id,omitempty"`
	URL     string `json:"url"`
	Sort    int    `json:"sort"`
	IsCover bool   `json:"isCover"`
}

type NearbySpot struct {
	ID       int64    `json:"id,omitempty"`
	Type     SpotType `json:"type"`
	Name     string   `json:"name"`
	Distance string   `json:"distance"`
}

type PromotionType string

const (
	PromotionDiscount  PromotionType = "DISCOUNT"
	PromotionReduction PromotionType = "REDUCTION"
)

type Promotion struct {
	ID           int64         `json:"id,omitempty"`
	Type         PromotionType `json:"type"`
	DiscountRate *float64      `json:"discountRate"`
	ReduceAmount *float64      `json:"reduceAmount"`
	MinAmount    *float64      `json:"minAmount"`
	StartDate    time.Time     `json:"startDate"`
	EndDate      time.Time     `json:"endDate"`
}

// ActiveOn reports whether day falls inside the inclusive validity range.
func (p Promotion) ActiveOn(day time.Time) bool {
	return !day.Before(p.StartDate) && !day.After(p.EndDate)
}

// Apply returns price after the promotion. Discounts round to cents;
// reductions only apply once price reaches MinAmount.
func (p Promotion) Apply(price float64) float64 {
	switch p.Type {
	case PromotionDiscount:
		if p.DiscountRate == nil {
			return price
		}
		return math.Round(price*(*p.DiscountRate)*100) / 100
	case PromotionReduction:
		if p.ReduceAmount == nil {
			return price
		}
		threshold := 0.0
		if p.MinAmount != nil {
			threshold = *p.MinAmount
		}
		if price >= threshold {
			return price - *p.ReduceAmount
		}
	}
	return price
}

// Banner is a home-page slot optionally pointing at a listing.
type Banner struct {
	ID       int64          `json:"id"`
	ImageURL string         `json:"imageUrl"`
	Sort     int            `json:"sort"`
	IsActive bool           `json:"isActive"`
	Listing  *ListingDigest `json:"hotel,omitempty"`
}

type ListingDigest struct {
	ID       int64    `json:"id"`
	NameZh   string   `json:"nameZh"`
	NameEn   string   `json:"nameEn"`
	City     string   `json:"city"`
	MinPrice *float64 `json:"minPrice"`
}
