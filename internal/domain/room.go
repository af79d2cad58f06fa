package domain

import "time"

type BedType string

const (
	BedSingle BedType = "SINGLE"
	BedDouble BedType = "DOUBLE"
	BedTwin   BedType = "TWIN"
	BedKing   BedType = "KING"
	BedSuite  BedType = "SUITE"
)

type RoomType struct {
	ID          int64       `json:"id"`
	ListingID   int64       `json:"hotelId"`
	Name        string      `json:"name"`
	BedType     BedType     `json:"bedType"`
	Area        float64     `json:"area"`
	MaxGuests   int         `json:"maxGuests"`
	BasePrice   float64     `json:"basePrice"`
	Stock       int         `json:"stock"`
	Description string      `json:"description"`
	Facilities  []string    `json:"facilities"`
	Images      []string    `json:"images"`
	PriceRules  []PriceRule `json:"priceRules,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

type PriceRuleType string

const (
	PriceRuleWeekend PriceRuleType = "WEEKEND"
	PriceRuleHoliday PriceRuleType = "HOLIDAY"
	PriceRuleCustom  PriceRuleType = "CUSTOM"
)

// PriceRule overrides a room type's base price over a date range. Rules may
// overlap; no precedence between them is defined.
type PriceRule struct {
	ID         int64         `json:"id"`
	RoomTypeID int64         `json:"roomTypeId"`
	Type       PriceRuleType `json:"type"`
	StartDate  time.Time     `json:"startDate"`
	EndDate    time.Time     `json:"endDate"`
	Price      float64       `json:"price"`
}

// MinBasePrice is the aggregate cached on the parent listing; nil when rooms is empty.
func MinBasePrice(rooms []RoomType) *float64 {
	var out *float64
	for _, r := range rooms {
		if out == nil || r.BasePrice < *out {
			p := r.BasePrice
			out = &p
		}
	}
	return out
}
