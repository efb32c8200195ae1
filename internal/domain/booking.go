package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
)

// Booking is the durable record created exactly once per successful draft
// commit. Cancellation only flips Status; cost and dates never change after
// confirmation.
type Booking struct {
	ID                int64
	DraftID           string
	RenterID          int64
	CarID             int64
	PickupLocationID  int64
	DropoffLocationID int64
	PickupDate        time.Time
	ReturnDate        time.Time
	DriverAge         int
	Status            BookingStatus
	BaseCents         int64
	OptionsCents      int64
	TotalCents        int64
	BookingDate       time.Time
	Drivers           []Driver
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
