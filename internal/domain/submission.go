package domain

import "time"

const (
	DealSale = "sale"
	DealRent = "rent"

	SubmissionPending  = "pending"
	SubmissionApproved = "approved"
	SubmissionRejected = "rejected"
)

// Submission is an end-user proposed listing awaiting moderation.
// ImageURLs is written after the asynchronous photo upload completes; an
// empty list may mean "photos uploaded but never recorded", which is why
// reads fall back to listing the object-store namespace.
type Submission struct {
	ID          string
	UserID      string
	Title       string
	Location    string
	PriceUSD    float64
	AreaM2      float64
	Type        string
	DealType    string
	Description *string
	Status      string
	ImageURLs   []string
	Lat, Lng    *float64
	CreatedAt   time.Time
}
