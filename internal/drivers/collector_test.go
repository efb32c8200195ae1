package drivers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rushrental/carbooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockSavedDriverLookup struct {
	mock.Mock
}

func (m *MockSavedDriverLookup) GetSavedDriver(ctx context.Context, renterID, driverID int64) (*domain.Driver, error) {
	args := m.Called(ctx, renterID, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Driver), args.Error(1)
}

func validEntry() RawEntry {
	return RawEntry{
		FirstName:         "John",
		LastName:          "Doe",
		Email:             "john.doe@example.com",
		DateOfBirth:       time.Date(1990, 1, 15, 0, 0, 0, 0, time.UTC),
		LicenseNumber:     "DL12345678",
		LicenseIssuedIn:   "NSW",
		LicenseExpiryDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Address:           "123 Test Street",
		City:              "Sydney",
		State:             "NSW",
		Postcode:          "2000",
		Country:           "Australia",
		Mobile:            "0400123456",
		IsPrimary:         true,
	}
}

var testNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestCollect_Valid(t *testing.T) {
	drivers, err := Collect(context.Background(), testNow, 1, []RawEntry{validEntry()}, nil)

	assert.NoError(t, err)
	assert.Len(t, drivers, 1)
	assert.True(t, drivers[0].IsPrimary)
	assert.Equal(t, "John Doe", drivers[0].FullName())
}

func TestCollect_Empty(t *testing.T) {
	_, err := Collect(context.Background(), testNow, 1, nil, nil)

	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, domain.CodeNoDriverProvided, vErr.Code)
}

func TestCollect_UnderageDriver(t *testing.T) {
	// Born 2008-01-01, evaluated on 2025-06-01: age 17.
	entry := validEntry()
	entry.DateOfBirth = time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := Collect(context.Background(), testNow, 1, []RawEntry{entry}, nil)

	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, domain.CodeDriverAgeOutOfRange, vErr.Code)
}

func TestCollect_BirthdayNotYetReached(t *testing.T) {
	// Turns 18 two days after the evaluation date.
	entry := validEntry()
	entry.DateOfBirth = time.Date(2007, 6, 3, 0, 0, 0, 0, time.UTC)

	_, err := Collect(context.Background(), testNow, 1, []RawEntry{entry}, nil)
	assert.Error(t, err)

	// Already 18 once the birthday has passed this year.
	entry.DateOfBirth = time.Date(2007, 5, 30, 0, 0, 0, 0, time.UTC)
	drivers, err := Collect(context.Background(), testNow, 1, []RawEntry{entry}, nil)
	assert.NoError(t, err)
	assert.Len(t, drivers, 1)
}

func TestCollect_ExpiredLicense(t *testing.T) {
	entry := validEntry()
	entry.LicenseExpiryDate = time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	_, err := Collect(context.Background(), testNow, 1, []RawEntry{entry}, nil)

	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, domain.CodeLicenseExpired, vErr.Code)
}

func TestCollect_LifetimeLicense(t *testing.T) {
	entry := validEntry()
	entry.LicenseExpiryDate = time.Time{}
	entry.LicenseIsLifetime = true

	drivers, err := Collect(context.Background(), testNow, 1, []RawEntry{entry}, nil)

	assert.NoError(t, err)
	assert.Len(t, drivers, 1)
}

func TestCollect_TwoPrimariesFirstWins(t *testing.T) {
	first := validEntry()
	second := validEntry()
	second.FirstName = "Jane"
	second.IsPrimary = true

	drivers, err := Collect(context.Background(), testNow, 1, []RawEntry{first, second}, nil)

	assert.NoError(t, err)
	assert.True(t, drivers[0].IsPrimary)
	assert.False(t, drivers[1].IsPrimary)
}

func TestCollect_NoPrimaryForcesFirst(t *testing.T) {
	first := validEntry()
	first.IsPrimary = false
	second := validEntry()
	second.FirstName = "Jane"
	second.IsPrimary = false

	drivers, err := Collect(context.Background(), testNow, 1, []RawEntry{first, second}, nil)

	assert.NoError(t, err)
	assert.True(t, drivers[0].IsPrimary)
	assert.False(t, drivers[1].IsPrimary)
}

func TestCollect_SinglePrimaryOnSecondEntryKept(t *testing.T) {
	first := validEntry()
	first.IsPrimary = false
	second := validEntry()
	second.FirstName = "Jane"

	drivers, err := Collect(context.Background(), testNow, 1, []RawEntry{first, second}, nil)

	assert.NoError(t, err)
	assert.False(t, drivers[0].IsPrimary)
	assert.True(t, drivers[1].IsPrimary)
}

func TestCollect_SavedDriverSnapshot(t *testing.T) {
	lookup := &MockSavedDriverLookup{}
	saved := &domain.Driver{
		ID:                42,
		FirstName:         "Alice",
		LastName:          "Smith",
		Email:             "alice@example.com",
		DateOfBirth:       time.Date(1985, 3, 10, 0, 0, 0, 0, time.UTC),
		LicenseNumber:     "DL999",
		LicenseIssuedIn:   "VIC",
		LicenseExpiryDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Address:           "9 Saved Road",
		City:              "Melbourne",
		State:             "VIC",
		Postcode:          "3000",
		Country:           "Australia",
		Mobile:            "0400999888",
	}
	lookup.On("GetSavedDriver", mock.Anything, int64(7), int64(42)).Return(saved, nil)

	drivers, err := Collect(context.Background(), testNow, 7, []RawEntry{{SavedDriverID: 42, IsPrimary: true}}, lookup)

	assert.NoError(t, err)
	assert.Len(t, drivers, 1)
	assert.Equal(t, "Alice", drivers[0].FirstName)
	assert.Equal(t, int64(42), drivers[0].SavedDriverID)
	assert.True(t, drivers[0].IsPrimary)

	// Snapshot: mutating the saved profile afterwards must not touch the
	// collected driver.
	saved.FirstName = "Changed"
	assert.Equal(t, "Alice", drivers[0].FirstName)

	lookup.AssertExpectations(t)
}

func TestCollect_SavedDriverLookupError(t *testing.T) {
	lookup := &MockSavedDriverLookup{}
	lookup.On("GetSavedDriver", mock.Anything, int64(7), int64(42)).Return(nil, errors.New("profile store down"))

	_, err := Collect(context.Background(), testNow, 7, []RawEntry{{SavedDriverID: 42}}, lookup)
	assert.Error(t, err)
}
