package domain

import "time"

type DraftStage string

const (
	StageCreated          DraftStage = "CREATED"
	StageOptionsSelected  DraftStage = "OPTIONS_SELECTED"
	StageDriversCollected DraftStage = "DRIVERS_COLLECTED"
	StagePaymentPending   DraftStage = "PAYMENT_PENDING"
)

type PaymentMode string

const (
	PaymentModeIntent PaymentMode = "intent"
	PaymentModeHosted PaymentMode = "hosted"
)

// CostBreakdown is always the pricing engine's latest output for the draft;
// it is recomputed server-side before any amount reaches the gateway.
type CostBreakdown struct {
	BaseCents    int64 `json:"base_cents"`
	OptionsCents int64 `json:"options_cents"`
	TotalCents   int64 `json:"total_cents"`
}

// DraftBooking is the transient in-progress reservation. It lives only in the
// draft store and is destroyed by commit, cancel or expiry.
type DraftBooking struct {
	ID                string         `json:"id"`
	RenterID          int64          `json:"renter_id"`
	CarID             int64          `json:"car_id"`
	PickupLocationID  int64          `json:"pickup_location_id"`
	DropoffLocationID int64          `json:"dropoff_location_id"`
	PickupDate        time.Time      `json:"pickup_date"`
	ReturnDate        time.Time      `json:"return_date"`
	DriverAge         int            `json:"driver_age"`
	SelectedOptions   map[int64]int  `json:"selected_options"`
	Drivers           []Driver       `json:"drivers"`
	Stage             DraftStage     `json:"stage"`
	Cost              CostBreakdown  `json:"cost"`
	PaymentHandleID   string         `json:"payment_handle_id,omitempty"`
	PaymentMode       PaymentMode    `json:"payment_mode,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
}

// DurationDays returns the rental length in whole days with a single-day
// minimum charge even when pickup and return fall on the same date.
func (d *DraftBooking) DurationDays() int {
	days := int(d.ReturnDate.Sub(d.PickupDate).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days
}
