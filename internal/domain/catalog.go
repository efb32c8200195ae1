package domain

import "time"

// Car, Location and Option are read-only catalog data owned by external
// collaborators; the wizard only resolves them by identifier.

type Car struct {
	ID             int64
	Make           string
	Model          string
	Year           int
	DailyRateCents int64
	Seats          int
	Transmission   string
	IsAvailable    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Location struct {
	ID      int64
	Name    string
	City    string
	State   string
	Country string
}

type OptionPricing string

const (
	OptionPricingPerDay OptionPricing = "per_day"
	OptionPricingFlat   OptionPricing = "flat_fee"
)

// Option is a priced extra attached to a booking. MaxQuantity 0 is the
// "unlimited" sentinel.
type Option struct {
	ID             int64
	Name           string
	Pricing        OptionPricing
	UnitPriceCents int64
	MaxQuantity    int
}
