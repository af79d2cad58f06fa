package app

import (
	"math"
	"strconv"
	"strings"
	"time"

	"hotel_listing/internal/domain"
)

const dateLayout = "2006-01-02"

/********** request payloads **********/

type ImageInput struct {
	URL     string `json:"url" validate:"required,notblank"`
	Sort    int    `json:"sort" validate:"gte=0"`
	IsCover bool   `json:"isCover"`
}

type SpotInput struct {
	Type     string `json:"type" validate:"required,oneof=SCENIC TRANSPORT SHOPPING"`
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Distance string `json:"distance" validate:"max=50"`
}

type PromotionInput struct {
	Type         string   `json:"type" validate:"required,oneof=DISCOUNT REDUCTION"`
	DiscountRate *float64 `json:"discountRate" validate:"required_if=Type DISCOUNT,omitempty,gt=0,lte=1"`
	ReduceAmount *float64 `json:"reduceAmount" validate:"required_if=Type REDUCTION,omitempty,gt=0"`
	MinAmount    *float64 `json:"minAmount" validate:"omitempty,gte=0"`
	StartDate    string   `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate      string   `json:"endDate" validate:"required,datetime=2006-01-02"`
}

type ListingInput struct {
	NameZh      string           `json:"nameZh" validate:"required,notblank,max=100"`
	NameEn      string           `json:"nameEn" validate:"required,notblank,max=200"`
	Address     string           `json:"address" validate:"required,notblank,max=255"`
	City        string           `json:"city" validate:"required,notblank,max=64"`
	StarLevel   int              `json:"starLevel" validate:"oneof=2 3 4 5"`
	Description string           `json:"description" validate:"required,notblank"`
	Phone       string           `json:"phone" validate:"required,notblank,max=32"`
	Images      []ImageInput     `json:"images" validate:"dive"`
	NearbySpots []SpotInput      `json:"nearbySpots" validate:"dive"`
	Promotions  []PromotionInput `json:"promotions" validate:"dive"`
}

// ListingPatch carries only the fields being changed. A nil collection is
// left untouched; a non-nil (even empty) one replaces the stored set.
type ListingPatch struct {
	NameZh      *string          `json:"nameZh" validate:"omitnil,notblank,max=100"`
	NameEn      *string          `json:"nameEn" validate:"omitnil,notblank,max=200"`
	Address     *string          `json:"address" validate:"omitnil,notblank,max=255"`
	City        *string          `json:"city" validate:"omitnil,notblank,max=64"`
	StarLevel   *int             `json:"starLevel" validate:"omitempty,oneof=2 3 4 5"`
	Description *string          `json:"description" validate:"omitnil,notblank"`
	Phone       *string          `json:"phone" validate:"omitnil,notblank,max=32"`
	Images      []ImageInput     `json:"images" validate:"omitempty,dive"`
	NearbySpots []SpotInput      `json:"nearbySpots" validate:"omitempty,dive"`
	Promotions  []PromotionInput `json:"promotions" validate:"omitempty,dive"`
}

type RoomTypeInput struct {
	ListingID   int64    `json:"hotelId" validate:"required,gt=0"`
	Name        string   `json:"name" validate:"required,notblank,max=100"`
	BedType     string   `json:"bedType" validate:"required,oneof=SINGLE DOUBLE TWIN KING SUITE"`
	Area        float64  `json:"area" validate:"gte=0"`
	MaxGuests   int      `json:"maxGuests" validate:"gte=1"`
	BasePrice   float64  `json:"basePrice" validate:"gte=0"`
	Stock       int      `json:"stock" validate:"gte=0"`
	Description string   `json:"description"`
	Facilities  []string `json:"facilities" validate:"dive,notblank"`
	Images      []string `json:"images" validate:"dive,notblank"`
}

type RoomTypePatch struct {
	Name        *string  `json:"name" validate:"omitnil,notblank,max=100"`
	BedType     *string  `json:"bedType" validate:"omitempty,oneof=SINGLE DOUBLE TWIN KING SUITE"`
	Area        *float64 `json:"area" validate:"omitempty,gte=0"`
	MaxGuests   *int     `json:"maxGuests" validate:"omitempty,gte=1"`
	BasePrice   *float64 `json:"basePrice" validate:"omitempty,gte=0"`
	Stock       *int     `json:"stock" validate:"omitempty,gte=0"`
	Description *string  `json:"description"`
	Facilities  []string `json:"facilities" validate:"omitempty,dive,notblank"`
	Images      []string `json:"images" validate:"omitempty,dive,notblank"`
}

type PriceRuleInput struct {
	RoomTypeID int64   `json:"roomTypeId" validate:"required,gt=0"`
	Type       string  `json:"type" validate:"required,oneof=WEEKEND HOLIDAY CUSTOM"`
	StartDate  string  `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate    string  `json:"endDate" validate:"required,datetime=2006-01-02"`
	Price      float64 `json:"price" validate:"gte=0"`
}

type PriceRulePatch struct {
	Type      *string  `json:"type" validate:"omitempty,oneof=WEEKEND HOLIDAY CUSTOM"`
	StartDate *string  `json:"startDate" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string  `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Price     *float64 `json:"price" validate:"omitempty,gte=0"`
}

/********** tiny helpers **********/

// parseFloatFlexible: number from a query string ("299", "299.5", "299,5"); nil when absent or malformed.
func parseFloatFlexible(s string) *float64 {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// parseIntFlexible accepts "4" and "4.0"; nil when absent, malformed or fractional.
func parseIntFlexible(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f := parseFloatFlexible(s)
	if f == nil || *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	n := int(*f)
	return &n
}

func parseDate(s string) time.Time {
	t, _ := time.Parse(dateLayout, s) // format already checked by the validator
	return t
}

func checkDateRange(start, end time.Time) error {
	if end.Before(start) {
		return &domain.ValidationError{Field: "endDate", Reason: "must not be before startDate"}
	}
	return nil
}

/********** payload -> domain **********/

func mapImages(in []ImageInput) []domain.Image {
	out := make([]domain.Image, 0, len(in))
	for _, img := range in {
		out = append(out, domain.Image{URL: strings.TrimSpace(img.URL), Sort: img.Sort, IsCover: img.IsCover})
	}
	return out
}

func mapSpots(in []SpotInput) []domain.NearbySpot {
	out := make([]domain.NearbySpot, 0, len(in))
	for _, s := range in {
		out = append(out, domain.NearbySpot{Type: domain.SpotType(s.Type), Name: s.Name, Distance: s.Distance})
	}
	return out
}

func mapPromotions(in []PromotionInput) ([]domain.Promotion, error) {
	out := make([]domain.Promotion, 0, len(in))
	for _, p := range in {
		start, end := parseDate(p.StartDate), parseDate(p.EndDate)
		if err := checkDateRange(start, end); err != nil {
			return nil, err
		}
		out = append(out, domain.Promotion{
			Type:         domain.PromotionType(p.Type),
			DiscountRate: p.DiscountRate,
			ReduceAmount: p.ReduceAmount,
			MinAmount:    p.MinAmount,
			StartDate:    start,
			EndDate:      end,
		})
	}
	return out, nil
}

func mapListing(owner int64, in ListingInput) (domain.Listing, error) {
	promos, err := mapPromotions(in.Promotions)
	if err != nil {
		return domain.Listing{}, err
	}
	return domain.Listing{
		OwnerID:     owner,
		NameZh:      strings.TrimSpace(in.NameZh),
		NameEn:      strings.TrimSpace(in.NameEn),
		Address:     strings.TrimSpace(in.Address),
		City:        strings.TrimSpace(in.City),
		StarLevel:   in.StarLevel,
		Description: in.Description,
		Phone:       strings.TrimSpace(in.Phone),
		Status:      domain.StatusDraft,
		Images:      mapImages(in.Images),
		NearbySpots: mapSpots(in.NearbySpots),
		Promotions:  promos,
	}, nil
}

// applyListingPatch merges p into l and reports which child collections must be replaced.
func applyListingPatch(l *domain.Listing, p ListingPatch) (domain.UpdateOptions, error) {
	opts := domain.UpdateOptions{Expect: domain.EditableStatuses}
	if p.NameZh != nil {
		l.NameZh = strings.TrimSpace(*p.NameZh)
	}
	if p.NameEn != nil {
		l.NameEn = strings.TrimSpace(*p.NameEn)
	}
	if p.Address != nil {
		l.Address = strings.TrimSpace(*p.Address)
	}
	if p.City != nil {
		l.City = strings.TrimSpace(*p.City)
	}
	if p.StarLevel != nil {
		l.StarLevel = *p.StarLevel
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Phone != nil {
		l.Phone = strings.TrimSpace(*p.Phone)
	}
	if p.Images != nil {
		l.Images = mapImages(p.Images)
		opts.ReplaceImages = true
	}
	if p.NearbySpots != nil {
		l.NearbySpots = mapSpots(p.NearbySpots)
		opts.ReplaceSpots = true
	}
	if p.Promotions != nil {
		promos, err := mapPromotions(p.Promotions)
		if err != nil {
			return opts, err
		}
		l.Promotions = promos
		opts.ReplacePromotions = true
	}
	return opts, nil
}

func mapRoomType(in RoomTypeInput) domain.RoomType {
	return domain.RoomType{
		ListingID:   in.ListingID,
		Name:        strings.TrimSpace(in.Name),
		BedType:     domain.BedType(in.BedType),
		Area:        in.Area,
		MaxGuests:   in.MaxGuests,
		BasePrice:   in.BasePrice,
		Stock:       in.Stock,
		Description: in.Description,
		Facilities:  nonNil(in.Facilities),
		Images:      nonNil(in.Images),
	}
}

func applyRoomTypePatch(r *domain.RoomType, p RoomTypePatch) {
	if p.Name != nil {
		r.Name = strings.TrimSpace(*p.Name)
	}
	if p.BedType != nil {
		r.BedType = domain.BedType(*p.BedType)
	}
	if p.Area != nil {
		r.Area = *p.Area
	}
	if p.MaxGuests != nil {
		r.MaxGuests = *p.MaxGuests
	}
	if p.BasePrice != nil {
		r.BasePrice = *p.BasePrice
	}
	if p.Stock != nil {
		r.Stock = *p.Stock
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Facilities != nil {
		r.Facilities = p.Facilities
	}
	if p.Images != nil {
		r.Images = p.Images
	}
}

func mapPriceRule(in PriceRuleInput) (domain.PriceRule, error) {
	start, end := parseDate(in.StartDate), parseDate(in.EndDate)
	if err := checkDateRange(start, end); err != nil {
		return domain.PriceRule{}, err
	}
	return domain.PriceRule{
		RoomTypeID: in.RoomTypeID,
		Type:       domain.PriceRuleType(in.Type),
		StartDate:  start,
		EndDate:    end,
		Price:      in.Price,
	}, nil
}

func applyPriceRulePatch(r *domain.PriceRule, p PriceRulePatch) error {
	if p.Type != nil {
		r.Type = domain.PriceRuleType(*p.Type)
	}
	if p.StartDate != nil {
		r.StartDate = parseDate(*p.StartDate)
	}
	if p.EndDate != nil {
		r.EndDate = parseDate(*p.EndDate)
	}
	if p.Price != nil {
		r.Price = *p.Price
	}
	return checkDateRange(r.StartDate, r.EndDate)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
