package models

import "time"

type Booking struct {
	ID                int64      `json:"id"`
	SportID           int64      `json:"sport_id"`
	SportName         string     `json:"sport_name"`
	UserID            *string    `json:"user_id,omitempty"`
	GuestID           *string    `json:"guest_id,omitempty"`
	Date              string     `json:"date"`
	StartTime         string     `json:"start_time"`
	EndTime           string     `json:"end_time"`
	Duration          float64    `json:"duration"`
	CustomerName      string     `json:"customer_name"`
	CustomerPhone     string     `json:"customer_phone"`
	CustomerEmail     string     `json:"customer_email,omitempty"`
	Amount            float64    `json:"amount"`
	Status            string     `json:"status"` // pending, confirmed, cancelled, rescheduled
	PaymentStatus     string     `json:"payment_status"`
	PaymentMethod     string     `json:"payment_method,omitempty"`
	PaidAmount        float64    `json:"paid_amount"`
	PaymentVerified   bool       `json:"payment_verified"`
	PaymentVerifiedAt *time.Time `json:"payment_verified_at,omitempty"`
	Source            string     `json:"source"` // online, walk-in
	RescheduledFrom   *int64     `json:"rescheduled_from,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	Version           int64      `json:"version"`
}

// IsActive reports whether the booking still holds its time range.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled && b.Status != StatusRescheduled
}

// OwnedBy reports whether ownerID matches the booking's user or guest identity.
func (b *Booking) OwnedBy(ownerID string) bool {
	if b.UserID != nil && *b.UserID == ownerID {
		return true
	}
	return b.GuestID != nil && *b.GuestID == ownerID
}

// PaymentUpdate carries admin-entered payment metadata.
type PaymentUpdate struct {
	Status     string
	Method     string
	PaidAmount float64
	Verified   bool
}
