package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rushrental/carbooking/internal/domain"
	"github.com/rushrental/carbooking/internal/draftstore"
	"github.com/rushrental/carbooking/internal/drivers"
	"github.com/rushrental/carbooking/internal/payment"
	"github.com/rushrental/carbooking/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// Mocks

type MockCatalogRepository struct {
	mock.Mock
}

func (m *MockCatalogRepository) GetCar(ctx context.Context, id int64) (*domain.Car, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Car), args.Error(1)
}

func (m *MockCatalogRepository) LocationExists(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalogRepository) ListOptions(ctx context.Context) (map[int64]domain.Option, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]domain.Option), args.Error(1)
}

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) CreateConfirmed(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) GetByDraftID(ctx context.Context, draftID string) (*domain.Booking, error) {
	args := m.Called(ctx, draftID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetSavedDriver(ctx context.Context, renterID, driverID int64) (*domain.Driver, error) {
	args := m.Called(ctx, renterID, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Driver), args.Error(1)
}

func (m *MockProfileRepository) ListSavedDrivers(ctx context.Context, renterID int64) ([]domain.Driver, error) {
	args := m.Called(ctx, renterID)
	return args.Get(0).([]domain.Driver), args.Error(1)
}

func (m *MockProfileRepository) UpsertPrimaryDriver(ctx context.Context, renterID int64, driver domain.Driver) error {
	args := m.Called(ctx, renterID, driver)
	return args.Error(0)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

// Fixture

type fixture struct {
	service  *WizardService
	store    *draftstore.MemoryStore
	catalog  *MockCatalogRepository
	bookings *MockBookingRepository
	profiles *MockProfileRepository
	gateway  *payment.MockGateway
	now      time.Time
	clock    func() time.Time
	advance  func(d time.Duration)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		catalog:  &MockCatalogRepository{},
		bookings: &MockBookingRepository{},
		profiles: &MockProfileRepository{},
		gateway:  payment.NewMockGateway(),
		now:      time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC),
	}
	f.clock = func() time.Time { return f.now }
	f.advance = func(d time.Duration) { f.now = f.now.Add(d) }
	f.store = draftstore.NewMemoryStore().WithClock(f.clock)

	f.service = NewWizardService(
		f.store,
		f.catalog,
		f.bookings,
		f.profiles,
		f.gateway,
		nil,
		"",
		45*time.Minute,
		"aud",
		WithClock(f.clock),
		WithHostedCheckoutURLs("https://example.com/ok", "https://example.com/cancel"),
	)
	return f
}

func (f *fixture) stubCatalog() {
	car := &domain.Car{ID: 1, Make: "Toyota", Model: "Camry", Year: 2023, DailyRateCents: 7000, IsAvailable: true}
	f.catalog.On("GetCar", mock.Anything, int64(1)).Return(car, nil)
	f.catalog.On("LocationExists", mock.Anything, mock.Anything).Return(true, nil)
	f.catalog.On("ListOptions", mock.Anything).Return(map[int64]domain.Option{
		1: {ID: 1, Name: "Damage Waiver", Pricing: domain.OptionPricingPerDay, UnitPriceCents: 1400, MaxQuantity: 1},
		2: {ID: 2, Name: "Extended Area", Pricing: domain.OptionPricingFlat, UnitPriceCents: 15000, MaxQuantity: 1},
	}, nil)
}

func startInput() StartDraftInput {
	return StartDraftInput{
		RenterID:          7,
		CarID:             1,
		PickupLocationID:  10,
		DropoffLocationID: 11,
		PickupDate:        time.Date(2025, 4, 15, 0, 0, 0, 0, time.UTC),
		ReturnDate:        time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC),
		DriverAge:         30,
	}
}

func driverEntries() []drivers.RawEntry {
	return []drivers.RawEntry{{
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
	}}
}

// advanceToPaymentPending walks a fresh draft through the wizard up to
// PAYMENT_PENDING and returns it.
func (f *fixture) advanceToPaymentPending(t *testing.T) *domain.DraftBooking {
	t.Helper()
	ctx := context.Background()

	draft, err := f.service.StartDraft(ctx, startInput())
	assert.NoError(t, err)

	draft, err = f.service.SetOptions(ctx, draft.ID, map[int64]int{1: 1, 2: 1})
	assert.NoError(t, err)

	draft, err = f.service.SetDrivers(ctx, draft.ID, driverEntries())
	assert.NoError(t, err)

	_, err = f.service.BeginPayment(ctx, draft.ID, domain.PaymentModeIntent)
	assert.NoError(t, err)

	updated, err := f.store.Get(ctx, draft.ID)
	assert.NoError(t, err)
	return updated
}

// Tests

func TestStartDraft_InitialCost(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())

	assert.NoError(t, err)
	assert.Equal(t, domain.StageCreated, draft.Stage)
	assert.NotEmpty(t, draft.ID)
	// 5 days at $70/day, no options yet.
	assert.Equal(t, int64(35000), draft.Cost.BaseCents)
	assert.Equal(t, int64(35000), draft.Cost.TotalCents)
	assert.Equal(t, f.now.Add(45*time.Minute), draft.ExpiresAt)
}

func TestStartDraft_RejectsPastPickup(t *testing.T) {
	f := newFixture(t)

	input := startInput()
	input.PickupDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	input.ReturnDate = time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)

	_, err := f.service.StartDraft(context.Background(), input)

	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "pickup_date", vErr.Field)
}

func TestStartDraft_RejectsReturnBeforePickup(t *testing.T) {
	f := newFixture(t)

	input := startInput()
	input.ReturnDate = input.PickupDate.AddDate(0, 0, -1)

	_, err := f.service.StartDraft(context.Background(), input)

	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "return_date", vErr.Field)
}

func TestStartDraft_RejectsUnderage(t *testing.T) {
	f := newFixture(t)

	input := startInput()
	input.DriverAge = 17

	_, err := f.service.StartDraft(context.Background(), input)

	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, domain.CodeDriverAgeOutOfRange, vErr.Code)
}

func TestStartDraft_UnavailableCar(t *testing.T) {
	f := newFixture(t)
	car := &domain.Car{ID: 1, DailyRateCents: 7000, IsAvailable: false}
	f.catalog.On("GetCar", mock.Anything, int64(1)).Return(car, nil)

	_, err := f.service.StartDraft(context.Background(), startInput())
	assert.ErrorIs(t, err, domain.ErrCarUnavailable)
}

func TestSetOptions_RecomputesCost(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)

	updated, err := f.service.SetOptions(context.Background(), draft.ID, map[int64]int{1: 1, 2: 1})

	assert.NoError(t, err)
	assert.Equal(t, domain.StageOptionsSelected, updated.Stage)
	assert.Equal(t, int64(35000), updated.Cost.BaseCents)
	assert.Equal(t, int64(22000), updated.Cost.OptionsCents)
	assert.Equal(t, int64(57000), updated.Cost.TotalCents)
}

func TestSetOptions_QuantityOutOfRangeLeavesDraftUnchanged(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)

	_, err = f.service.SetOptions(context.Background(), draft.ID, map[int64]int{1: 5})

	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))

	stored, err := f.store.Get(context.Background(), draft.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StageCreated, stored.Stage)
	assert.Empty(t, stored.SelectedOptions)
}

func TestSetOptions_UnknownDraft(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SetOptions(context.Background(), "missing", map[int64]int{1: 1})
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestSetDrivers_ValidationFailureKeepsStage(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)
	_, err = f.service.SetOptions(context.Background(), draft.ID, nil)
	assert.NoError(t, err)

	underage := driverEntries()
	underage[0].DateOfBirth = time.Date(2008, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err = f.service.SetDrivers(context.Background(), draft.ID, underage)

	var vErr *domain.ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, domain.CodeDriverAgeOutOfRange, vErr.Code)

	stored, err := f.store.Get(context.Background(), draft.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StageOptionsSelected, stored.Stage)
	assert.Empty(t, stored.Drivers)
}

func TestSetDrivers_BeforeOptionsIsStageConflict(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)

	_, err = f.service.SetDrivers(context.Background(), draft.ID, driverEntries())
	assert.ErrorIs(t, err, domain.ErrStageConflict)
}

func TestBeginPayment_IntentUsesServerCost(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)
	_, err = f.service.SetOptions(context.Background(), draft.ID, map[int64]int{1: 1, 2: 1})
	assert.NoError(t, err)
	_, err = f.service.SetDrivers(context.Background(), draft.ID, driverEntries())
	assert.NoError(t, err)

	handle, err := f.service.BeginPayment(context.Background(), draft.ID, domain.PaymentModeIntent)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentModeIntent, handle.Mode)
	assert.NotEmpty(t, handle.HandleID)
	assert.NotEmpty(t, handle.ClientSecret)
	assert.Equal(t, int64(57000), handle.AmountCents)

	stored, err := f.store.Get(context.Background(), draft.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StagePaymentPending, stored.Stage)
	assert.Equal(t, handle.HandleID, stored.PaymentHandleID)
}

func TestBeginPayment_HostedSession(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)
	_, err = f.service.SetOptions(context.Background(), draft.ID, nil)
	assert.NoError(t, err)
	_, err = f.service.SetDrivers(context.Background(), draft.ID, driverEntries())
	assert.NoError(t, err)

	handle, err := f.service.BeginPayment(context.Background(), draft.ID, domain.PaymentModeHosted)

	assert.NoError(t, err)
	assert.Equal(t, domain.PaymentModeHosted, handle.Mode)
	assert.NotEmpty(t, handle.RedirectURL)
}

func TestBeginPayment_GatewayFailureIsRecoverable(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)
	_, err = f.service.SetOptions(context.Background(), draft.ID, nil)
	assert.NoError(t, err)
	_, err = f.service.SetDrivers(context.Background(), draft.ID, driverEntries())
	assert.NoError(t, err)

	f.gateway.FailNextOps(true)
	_, err = f.service.BeginPayment(context.Background(), draft.ID, domain.PaymentModeIntent)

	var pErr *domain.PaymentError
	assert.True(t, errors.As(err, &pErr))

	// Draft stays where it was; the payment step can be retried.
	stored, err := f.store.Get(context.Background(), draft.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StageDriversCollected, stored.Stage)

	f.gateway.FailNextOps(false)
	_, err = f.service.BeginPayment(context.Background(), draft.ID, domain.PaymentModeIntent)
	assert.NoError(t, err)
}

func TestConfirmPayment_CommitsBooking(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()
	draft := f.advanceToPaymentPending(t)

	f.bookings.On("CreateConfirmed", mock.Anything, mock.MatchedBy(func(b *domain.Booking) bool {
		return b.DraftID == draft.ID && b.TotalCents == 57000 && len(b.Drivers) == 1 && b.Drivers[0].IsPrimary
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Booking).ID = 501
	}).Return(nil).Once()
	f.profiles.On("UpsertPrimaryDriver", mock.Anything, int64(7), mock.Anything).Return(nil).Once()

	booking, err := f.service.ConfirmPayment(context.Background(), draft.ID)

	assert.NoError(t, err)
	assert.Equal(t, int64(501), booking.ID)
	assert.Equal(t, domain.BookingStatusConfirmed, booking.Status)

	// The draft is gone.
	_, err = f.store.Get(context.Background(), draft.ID)
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)

	f.bookings.AssertExpectations(t)
	f.profiles.AssertExpectations(t)
}

func TestConfirmPayment_FailedPaymentKeepsDraft(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()
	draft := f.advanceToPaymentPending(t)

	f.gateway.SetStatus(draft.PaymentHandleID, payment.StatusFailed)

	_, err := f.service.ConfirmPayment(context.Background(), draft.ID)

	var pErr *domain.PaymentError
	assert.True(t, errors.As(err, &pErr))

	stored, err := f.store.Get(context.Background(), draft.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StagePaymentPending, stored.Stage)
}

func TestConfirmPayment_PendingStatusIsNotSuccess(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()
	draft := f.advanceToPaymentPending(t)

	f.gateway.SetStatus(draft.PaymentHandleID, payment.StatusPending)

	_, err := f.service.ConfirmPayment(context.Background(), draft.ID)

	var pErr *domain.PaymentError
	assert.True(t, errors.As(err, &pErr))
}

func TestConfirmPayment_AtMostOnce(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()
	draft := f.advanceToPaymentPending(t)

	f.bookings.On("CreateConfirmed", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Booking).ID = 501
	}).Return(nil).Once()
	f.bookings.On("GetByDraftID", mock.Anything, draft.ID).Return(&domain.Booking{ID: 501, DraftID: draft.ID, Status: domain.BookingStatusConfirmed}, nil)
	f.profiles.On("UpsertPrimaryDriver", mock.Anything, int64(7), mock.Anything).Return(nil)

	var wg sync.WaitGroup
	ids := make(chan int64, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			booking, err := f.service.ConfirmPayment(context.Background(), draft.ID)
			assert.NoError(t, err)
			ids <- booking.ID
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		assert.Equal(t, int64(501), id)
	}

	// Exactly one persisted booking.
	f.bookings.AssertNumberOfCalls(t, "CreateConfirmed", 1)
}

func TestConfirmPayment_ExpiredDraftNeverBooks(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()
	draft := f.advanceToPaymentPending(t)

	f.advance(46 * time.Minute)
	f.bookings.On("GetByDraftID", mock.Anything, draft.ID).Return(nil, repository.ErrBookingNotFound)

	_, err := f.service.ConfirmPayment(context.Background(), draft.ID)

	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
	f.bookings.AssertNotCalled(t, "CreateConfirmed", mock.Anything, mock.Anything)
}

func TestConfirmPayment_WrongStage(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)

	_, err = f.service.ConfirmPayment(context.Background(), draft.ID)
	assert.ErrorIs(t, err, domain.ErrStageConflict)
}

func TestConfirmPayment_SavedPrimaryNotReUpserted(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	saved := &domain.Driver{
		ID:                42,
		FirstName:         "Alice",
		LastName:          "Smith",
		Email:             "alice@example.com",
		DateOfBirth:       time.Date(1985, 3, 10, 0, 0, 0, 0, time.UTC),
		LicenseNumber:     "DL999",
		LicenseExpiryDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	f.profiles.On("GetSavedDriver", mock.Anything, int64(7), int64(42)).Return(saved, nil)

	ctx := context.Background()
	draft, err := f.service.StartDraft(ctx, startInput())
	assert.NoError(t, err)
	_, err = f.service.SetOptions(ctx, draft.ID, nil)
	assert.NoError(t, err)
	_, err = f.service.SetDrivers(ctx, draft.ID, []drivers.RawEntry{{SavedDriverID: 42, IsPrimary: true}})
	assert.NoError(t, err)
	_, err = f.service.BeginPayment(ctx, draft.ID, domain.PaymentModeIntent)
	assert.NoError(t, err)

	f.bookings.On("CreateConfirmed", mock.Anything, mock.Anything).Return(nil).Once()

	_, err = f.service.ConfirmPayment(ctx, draft.ID)
	assert.NoError(t, err)

	// Primary came from the saved list: no profile write at commit.
	f.profiles.AssertNotCalled(t, "UpsertPrimaryDriver", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelDraft_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)

	assert.NoError(t, f.service.CancelDraft(context.Background(), draft.ID))
	assert.NoError(t, f.service.CancelDraft(context.Background(), draft.ID))

	_, err = f.store.Get(context.Background(), draft.ID)
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestCancelDraft_AfterExpiryIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)

	f.advance(time.Hour)
	assert.NoError(t, f.service.CancelDraft(context.Background(), draft.ID))
}

func TestCancelDraft_GatewayFailureDoesNotBlock(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()
	draft := f.advanceToPaymentPending(t)

	f.gateway.FailNextOps(true)

	assert.NoError(t, f.service.CancelDraft(context.Background(), draft.ID))

	f.gateway.FailNextOps(false)
	_, err := f.store.Get(context.Background(), draft.ID)
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
}

func TestExpiredDraft_OperationsReturnNotFound(t *testing.T) {
	f := newFixture(t)
	f.stubCatalog()

	draft, err := f.service.StartDraft(context.Background(), startInput())
	assert.NoError(t, err)

	f.advance(time.Hour)

	_, err = f.service.SetOptions(context.Background(), draft.ID, map[int64]int{1: 1})
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)

	_, err = f.service.SetDrivers(context.Background(), draft.ID, driverEntries())
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)

	_, err = f.service.BeginPayment(context.Background(), draft.ID, domain.PaymentModeIntent)
	assert.ErrorIs(t, err, domain.ErrDraftNotFound)
}
