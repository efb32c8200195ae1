package drivers

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rushrental/carbooking/internal/domain"
)

const (
	MinAge = 18
	MaxAge = 99
)

// RawEntry is one submitted driver. When SavedDriverID is set the personal
// fields are ignored and the saved profile is snapshotted instead.
type RawEntry struct {
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
	Phone             string    `json:"phone"`
	Mobile            string    `json:"mobile"`
	Occupation        string    `json:"occupation"`
	IsPrimary         bool      `json:"is_primary"`
	SavedDriverID     int64     `json:"saved_driver_id"`
}

// SavedDriverLookup resolves a saved-driver reference to a field snapshot.
// Later edits to the saved profile must not alter an in-flight draft, so the
// collector copies values at collection time.
type SavedDriverLookup interface {
	GetSavedDriver(ctx context.Context, renterID, driverID int64) (*domain.Driver, error)
}

// Collect validates and normalizes the submitted drivers. On success exactly
// one driver carries the primary flag: if the input flags zero or several,
// the first entry wins and the rest are cleared.
func Collect(ctx context.Context, now time.Time, renterID int64, entries []RawEntry, lookup SavedDriverLookup) ([]domain.Driver, error) {
	if len(entries) == 0 {
		return nil, domain.NewValidationError("drivers", domain.CodeNoDriverProvided)
	}

	collected := make([]domain.Driver, 0, len(entries))
	for i, entry := range entries {
		driver, err := resolve(ctx, renterID, entry, lookup)
		if err != nil {
			return nil, err
		}
		if err := validate(now, i, driver); err != nil {
			return nil, err
		}
		collected = append(collected, driver)
	}

	normalizePrimary(collected)
	return collected, nil
}

func resolve(ctx context.Context, renterID int64, entry RawEntry, lookup SavedDriverLookup) (domain.Driver, error) {
	if entry.SavedDriverID != 0 {
		if lookup == nil {
			return domain.Driver{}, fmt.Errorf("saved driver %d referenced without a profile store", entry.SavedDriverID)
		}
		saved, err := lookup.GetSavedDriver(ctx, renterID, entry.SavedDriverID)
		if err != nil {
			return domain.Driver{}, fmt.Errorf("resolve saved driver %d: %w", entry.SavedDriverID, err)
		}
		snapshot := *saved
		snapshot.ID = 0
		snapshot.SavedDriverID = entry.SavedDriverID
		snapshot.IsPrimary = entry.IsPrimary
		return snapshot, nil
	}

	return domain.Driver{
		FirstName:         entry.FirstName,
		LastName:          entry.LastName,
		Email:             entry.Email,
		DateOfBirth:       entry.DateOfBirth,
		LicenseNumber:     entry.LicenseNumber,
		LicenseIssuedIn:   entry.LicenseIssuedIn,
		LicenseExpiryDate: entry.LicenseExpiryDate,
		LicenseIsLifetime: entry.LicenseIsLifetime,
		Address:           entry.Address,
		City:              entry.City,
		State:             entry.State,
		Postcode:          entry.Postcode,
		Country:           entry.Country,
		Phone:             entry.Phone,
		Mobile:            entry.Mobile,
		Occupation:        entry.Occupation,
		IsPrimary:         entry.IsPrimary,
	}, nil
}

func validate(now time.Time, index int, driver domain.Driver) error {
	field := "drivers[" + strconv.Itoa(index) + "]"

	if driver.FirstName == "" || driver.LastName == "" {
		return domain.NewValidationError(field+".name", domain.CodeMissingField)
	}
	if driver.LicenseNumber == "" {
		return domain.NewValidationError(field+".license_number", domain.CodeMissingField)
	}
	if driver.DateOfBirth.IsZero() || driver.DateOfBirth.After(now) {
		return domain.NewValidationError(field+".date_of_birth", domain.CodeDriverAgeOutOfRange)
	}

	age := driver.AgeOn(now)
	if age < MinAge || age > MaxAge {
		return domain.NewValidationError(field+".date_of_birth", domain.CodeDriverAgeOutOfRange)
	}

	if !driver.LicenseIsLifetime && driver.LicenseExpiryDate.Before(now) {
		return domain.NewValidationError(field+".license_expiry_date", domain.CodeLicenseExpired)
	}

	return nil
}

// normalizePrimary enforces the exactly-one-primary invariant with a
// deterministic first-entry tie-break.
func normalizePrimary(collected []domain.Driver) {
	primaries := 0
	for _, d := range collected {
		if d.IsPrimary {
			primaries++
		}
	}
	if primaries == 1 {
		return
	}
	for i := range collected {
		collected[i].IsPrimary = i == 0
	}
}
