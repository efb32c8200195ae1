package domain

import "time"

// Driver belongs to a draft until commit, then to the persisted booking.
// SavedDriverID links back to the renter's saved-driver profile when the
// entry was prefilled from it; the fields are a snapshot, not a live
// reference.
type Driver struct {
	ID                int64     `json:"id,omitempty"`
	BookingID         int64     `json:"booking_id,omitempty"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Email             string    `json:"email"`
	DateOfBirth       time.Time `json:"date_of_birth"`
	LicenseNumber     string    `json:"license_number"`
	LicenseIssuedIn   string    `json:"license_issued_in"`
	LicenseExpiryDate time.Time `json:"license_expiry_date"`
	LicenseIsLifetime bool      `json:"license_is_lifetime"`
	Address           string    `json:"address"`
	City              string    `json:"city"`
	State             string    `json:"state"`
	Postcode          string    `json:"postcode"`
	Country           string    `json:"country_of_residence"`
	Phone             string    `json:"phone,omitempty"`
	Mobile            string    `json:"mobile"`
	Occupation        string    `json:"occupation,omitempty"`
	IsPrimary         bool      `json:"is_primary"`
	SavedDriverID     int64     `json:"saved_driver_id,omitempty"`
}

func (d Driver) FullName() string {
	return d.FirstName + " " + d.LastName
}

// AgeOn derives the driver's age at the given date, accounting for a
// birthday that has not yet been reached in the year.
func (d Driver) AgeOn(date time.Time) int {
	age := date.Year() - d.DateOfBirth.Year()
	anniversary := time.Date(date.Year(), d.DateOfBirth.Month(), d.DateOfBirth.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(anniversary) {
		age--
	}
	return age
}
