package domain

import "time"

// Plot statuses and types. Values arrive lower-cased from the sanitizer;
// unknown values are stored as-is (the catalog is advisory, not an enum DB).
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusSold      = "sold"

	TypeResidential = "residential"
	TypeAgrarian    = "agrarian"
	TypeCommercial  = "commercial"
)

type Plot struct {
	ID          string
	Title       string
	Location    string
	PriceUSD    float64
	AreaM2      float64
	Status      string
	Type        string
	Description *string
	ImageURL    *string // cover image; first of ImageURLs when both are set
	ImageURLs   []string
	Lat, Lng    *float64
	CreatedAt   time.Time
}

// PlotPatch carries a partial admin update. Nil fields are left untouched.
type PlotPatch struct {
	Title       *string
	Location    *string
	PriceUSD    *float64
	AreaM2      *float64
	Status      *string
	Type        *string
	Description *string
	ImageURL    *string
	Lat, Lng    *float64
}
