package domain

import "time"

// AuditEntry records one executed lifecycle transition. Entries are append-only.
type AuditEntry struct {
	ID         int64     `json:"id"`
	ListingID  int64     `json:"hotelId"`
	ReviewerID int64     `json:"reviewerId"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	Reason     *string   `json:"reason"`
	CreatedAt  time.Time `json:"createdAt"`
}
