package wizard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rushrental/carbooking/internal/domain"
	"github.com/rushrental/carbooking/internal/draftstore"
	"github.com/rushrental/carbooking/internal/drivers"
	"github.com/rushrental/carbooking/internal/kafka"
	"github.com/rushrental/carbooking/internal/observability"
	"github.com/rushrental/carbooking/internal/payment"
	"github.com/rushrental/carbooking/internal/pricing"
	"github.com/rushrental/carbooking/internal/repository"
)

// DraftUseCase is the booking wizard: it moves a draft through
// CREATED -> OPTIONS_SELECTED -> DRIVERS_COLLECTED -> PAYMENT_PENDING and
// commits it into a durable booking, or discards it.
type DraftUseCase interface {
	StartDraft(ctx context.Context, input StartDraftInput) (*domain.DraftBooking, error)
	SetOptions(ctx context.Context, draftID string, selections map[int64]int) (*domain.DraftBooking, error)
	SetDrivers(ctx context.Context, draftID string, entries []drivers.RawEntry) (*domain.DraftBooking, error)
	BeginPayment(ctx context.Context, draftID string, mode domain.PaymentMode) (*PaymentHandle, error)
	ConfirmPayment(ctx context.Context, draftID string) (*domain.Booking, error)
	CancelDraft(ctx context.Context, draftID string) error
}

type StartDraftInput struct {
	RenterID          int64     `json:"renter_id"`
	CarID             int64     `json:"car_id"`
	PickupLocationID  int64     `json:"pickup_location_id"`
	DropoffLocationID int64     `json:"dropoff_location_id"`
	PickupDate        time.Time `json:"pickup_date"`
	ReturnDate        time.Time `json:"return_date"`
	DriverAge         int       `json:"driver_age"`
}

// PaymentHandle is what the client needs to finish paying: a client secret
// for the embedded flow or a redirect URL for hosted checkout.
type PaymentHandle struct {
	HandleID     string             `json:"handle_id"`
	Mode         domain.PaymentMode `json:"mode"`
	ClientSecret string             `json:"client_secret,omitempty"`
	RedirectURL  string             `json:"redirect_url,omitempty"`
	AmountCents  int64              `json:"amount_cents"`
	Currency     string             `json:"currency"`
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*payment.Intent, error)
	CreateHostedSession(ctx context.Context, amountCents int64, currency, successURL, cancelURL string, metadata map[string]string) (*payment.Session, error)
	Confirm(ctx context.Context, handleID string) (payment.Status, error)
	Cancel(ctx context.Context, handleID string) error
}

type WizardService struct {
	store              draftstore.Store
	catalog            repository.CatalogRepository
	bookings           repository.BookingRepository
	profiles           repository.ProfileRepository
	gateway            PaymentGateway
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	draftTTL           time.Duration
	currency           string
	successURL         string
	cancelURL          string
	locks              *keyedMutex
	now                func() time.Time
}

type WizardServiceOption func(*WizardService)

func WithNotificationsTopic(topic string) WizardServiceOption {
	return func(s *WizardService) {
		s.notificationsTopic = topic
	}
}

func WithHostedCheckoutURLs(successURL, cancelURL string) WizardServiceOption {
	return func(s *WizardService) {
		s.successURL = successURL
		s.cancelURL = cancelURL
	}
}

func WithClock(now func() time.Time) WizardServiceOption {
	return func(s *WizardService) {
		s.now = now
	}
}

func NewWizardService(
	store draftstore.Store,
	catalog repository.CatalogRepository,
	bookings repository.BookingRepository,
	profiles repository.ProfileRepository,
	gateway PaymentGateway,
	producer Producer,
	bookingTopic string,
	draftTTL time.Duration,
	currency string,
	opts ...WizardServiceOption,
) *WizardService {
	service := &WizardService{
		store:        store,
		catalog:      catalog,
		bookings:     bookings,
		profiles:     profiles,
		gateway:      gateway,
		producer:     producer,
		bookingTopic: bookingTopic,
		draftTTL:     draftTTL,
		currency:     currency,
		locks:        newKeyedMutex(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *WizardService) StartDraft(ctx context.Context, input StartDraftInput) (*domain.DraftBooking, error) {
	if err := s.validateDates(input.PickupDate, input.ReturnDate); err != nil {
		return nil, err
	}
	if input.DriverAge < drivers.MinAge || input.DriverAge > drivers.MaxAge {
		return nil, domain.NewValidationError("driver_age", domain.CodeDriverAgeOutOfRange)
	}

	car, err := s.catalog.GetCar(ctx, input.CarID)
	if err != nil {
		return nil, err
	}
	if !car.IsAvailable {
		return nil, domain.ErrCarUnavailable
	}
	for _, locID := range []int64{input.PickupLocationID, input.DropoffLocationID} {
		exists, err := s.catalog.LocationExists(ctx, locID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrLocationNotFound
		}
	}

	now := s.now()
	draft := &domain.DraftBooking{
		ID:                uuid.NewString(),
		RenterID:          input.RenterID,
		CarID:             input.CarID,
		PickupLocationID:  input.PickupLocationID,
		DropoffLocationID: input.DropoffLocationID,
		PickupDate:        input.PickupDate,
		ReturnDate:        input.ReturnDate,
		DriverAge:         input.DriverAge,
		SelectedOptions:   map[int64]int{},
		Stage:             domain.StageCreated,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.draftTTL),
	}

	cost, err := pricing.Price(car.DailyRateCents, draft.DurationDays(), nil, nil)
	if err != nil {
		return nil, err
	}
	draft.Cost = cost

	if err := s.store.Put(ctx, draft); err != nil {
		return nil, err
	}

	observability.DraftsStarted.Inc()
	s.publish(ctx, "draft_started", draft, nil)
	return draft, nil
}

func (s *WizardService) SetOptions(ctx context.Context, draftID string, selections map[int64]int) (*domain.DraftBooking, error) {
	s.locks.Lock(draftID)
	defer s.locks.Unlock(draftID)

	draft, err := s.store.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Stage != domain.StageCreated && draft.Stage != domain.StageOptionsSelected {
		return nil, domain.ErrStageConflict
	}

	cost, err := s.recomputeCost(ctx, draft.CarID, draft.DurationDays(), selections)
	if err != nil {
		return nil, err
	}

	draft.SelectedOptions = selections
	draft.Cost = cost
	draft.Stage = domain.StageOptionsSelected
	if err := s.store.Put(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *WizardService) SetDrivers(ctx context.Context, draftID string, entries []drivers.RawEntry) (*domain.DraftBooking, error) {
	s.locks.Lock(draftID)
	defer s.locks.Unlock(draftID)

	draft, err := s.store.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if draft.Stage != domain.StageOptionsSelected && draft.Stage != domain.StageDriversCollected {
		return nil, domain.ErrStageConflict
	}

	// On validation failure nothing is stored: the draft keeps its stage and
	// any previously collected drivers.
	collected, err := drivers.Collect(ctx, s.now(), draft.RenterID, entries, s.profiles)
	if err != nil {
		return nil, err
	}

	draft.Drivers = collected
	draft.Stage = domain.StageDriversCollected
	if err := s.store.Put(ctx, draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (s *WizardService) BeginPayment(ctx context.Context, draftID string, mode domain.PaymentMode) (*PaymentHandle, error) {
	s.locks.Lock(draftID)
	defer s.locks.Unlock(draftID)

	draft, err := s.store.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	// PAYMENT_PENDING is allowed back in so a failed gateway call can be
	// retried with a fresh handle.
	if draft.Stage != domain.StageDriversCollected && draft.Stage != domain.StagePaymentPending {
		return nil, domain.ErrStageConflict
	}

	// The amount sent to the gateway is always recomputed here; a
	// client-supplied figure never reaches the provider.
	cost, err := s.recomputeCost(ctx, draft.CarID, draft.DurationDays(), draft.SelectedOptions)
	if err != nil {
		return nil, err
	}
	draft.Cost = cost

	metadata := map[string]string{"draft_id": draft.ID}
	handle := &PaymentHandle{Mode: mode, AmountCents: cost.TotalCents, Currency: s.currency}

	switch mode {
	case domain.PaymentModeHosted:
		session, err := s.gateway.CreateHostedSession(ctx, cost.TotalCents, s.currency, s.successURL, s.cancelURL, metadata)
		if err != nil {
			observability.PaymentFailures.Inc()
			return nil, &domain.PaymentError{Op: "create_session", Err: err}
		}
		handle.HandleID = session.ID
		handle.RedirectURL = session.RedirectURL
	default:
		intent, err := s.gateway.CreateIntent(ctx, cost.TotalCents, s.currency, metadata)
		if err != nil {
			observability.PaymentFailures.Inc()
			return nil, &domain.PaymentError{Op: "create_intent", Err: err}
		}
		handle.Mode = domain.PaymentModeIntent
		handle.HandleID = intent.ID
		handle.ClientSecret = intent.ClientSecret
	}

	draft.PaymentHandleID = handle.HandleID
	draft.PaymentMode = handle.Mode
	draft.Stage = domain.StagePaymentPending
	if err := s.store.Put(ctx, draft); err != nil {
		return nil, err
	}
	return handle, nil
}

// ConfirmPayment is the commit transition. Success requires an explicit
// succeeded signal from the gateway; the draft is then consumed through the
// store's atomic CompareAndDelete so two concurrent confirms can never both
// persist a booking. The loser of that race gets the winner's booking back.
func (s *WizardService) ConfirmPayment(ctx context.Context, draftID string) (*domain.Booking, error) {
	started := s.now()
	defer func() {
		observability.ConfirmLatency.Observe(s.now().Sub(started).Seconds())
	}()

	s.locks.Lock(draftID)
	defer s.locks.Unlock(draftID)

	draft, err := s.store.Get(ctx, draftID)
	if err != nil {
		if errors.Is(err, domain.ErrDraftNotFound) {
			return s.alreadyCommitted(ctx, draftID)
		}
		return nil, err
	}
	if draft.Stage != domain.StagePaymentPending {
		return nil, domain.ErrStageConflict
	}

	status, err := s.gateway.Confirm(ctx, draft.PaymentHandleID)
	if err != nil {
		observability.PaymentFailures.Inc()
		return nil, &domain.PaymentError{Op: "confirm", Err: err}
	}
	if status != payment.StatusSucceeded {
		observability.PaymentFailures.Inc()
		return nil, &domain.PaymentError{Op: "confirm", Err: fmt.Errorf("gateway reported status %q", status)}
	}

	// Final server-side recompute before anything durable is written.
	cost, err := s.recomputeCost(ctx, draft.CarID, draft.DurationDays(), draft.SelectedOptions)
	if err != nil {
		return nil, err
	}
	draft.Cost = cost

	consumed, err := s.store.CompareAndDelete(ctx, draftID, domain.StagePaymentPending)
	if err != nil {
		return nil, err
	}
	if !consumed {
		observability.CommitConflicts.Inc()
		return s.alreadyCommitted(ctx, draftID)
	}

	booking := bookingFromDraft(draft)
	if err := s.bookings.CreateConfirmed(ctx, booking); err != nil {
		// The draft was already consumed; put it back so the confirmed
		// payment is not orphaned and the commit can be retried.
		if restoreErr := s.store.Put(ctx, draft); restoreErr != nil {
			log.Printf("restore draft %s after failed commit: %v", draftID, restoreErr)
		}
		return nil, err
	}

	s.upsertSavedPrimary(ctx, draft, booking)

	observability.BookingsConfirmed.Inc()
	s.publish(ctx, "booking_confirmed", draft, booking)
	return booking, nil
}

func (s *WizardService) CancelDraft(ctx context.Context, draftID string) error {
	s.locks.Lock(draftID)
	defer s.locks.Unlock(draftID)

	draft, err := s.store.Get(ctx, draftID)
	if err != nil {
		if errors.Is(err, domain.ErrDraftNotFound) {
			// Already cancelled, expired or committed: cancelling again is a
			// no-op, not an error.
			return nil
		}
		return err
	}

	// Best-effort release of the provider-side handle; a gateway failure
	// never blocks the local cancellation.
	if draft.PaymentHandleID != "" {
		if err := s.gateway.Cancel(ctx, draft.PaymentHandleID); err != nil {
			log.Printf("cancel payment handle %s for draft %s: %v", draft.PaymentHandleID, draftID, err)
		}
	}

	if err := s.store.Delete(ctx, draftID); err != nil {
		return err
	}

	observability.DraftsCancelled.Inc()
	s.publish(ctx, "draft_cancelled", draft, nil)
	return nil
}

func (s *WizardService) validateDates(pickup, ret time.Time) error {
	if pickup.IsZero() || ret.IsZero() {
		return domain.NewValidationError("pickup_date", domain.CodeBadDates)
	}
	today := s.now().Truncate(24 * time.Hour)
	if pickup.Before(today) {
		return domain.NewValidationError("pickup_date", domain.CodeBadDates)
	}
	if ret.Before(pickup) {
		return domain.NewValidationError("return_date", domain.CodeBadDates)
	}
	return nil
}

func (s *WizardService) recomputeCost(ctx context.Context, carID int64, durationDays int, selections map[int64]int) (domain.CostBreakdown, error) {
	car, err := s.catalog.GetCar(ctx, carID)
	if err != nil {
		return domain.CostBreakdown{}, err
	}

	var options map[int64]domain.Option
	if len(selections) > 0 {
		options, err = s.catalog.ListOptions(ctx)
		if err != nil {
			return domain.CostBreakdown{}, err
		}
	}

	return pricing.Price(car.DailyRateCents, durationDays, selections, options)
}

// alreadyCommitted resolves a lost commit race (or a confirm retry after the
// draft is gone) to the booking the draft already produced.
func (s *WizardService) alreadyCommitted(ctx context.Context, draftID string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByDraftID(ctx, draftID)
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			return nil, domain.ErrDraftNotFound
		}
		return nil, err
	}
	return booking, nil
}

// upsertSavedPrimary saves the primary driver into the renter's profile when
// the renter is authenticated and the driver was typed in rather than picked
// from the saved list. Failure here must not unwind the committed booking.
func (s *WizardService) upsertSavedPrimary(ctx context.Context, draft *domain.DraftBooking, booking *domain.Booking) {
	if draft.RenterID == 0 || s.profiles == nil {
		return
	}
	for _, d := range booking.Drivers {
		if !d.IsPrimary || d.SavedDriverID != 0 {
			continue
		}
		if err := s.profiles.UpsertPrimaryDriver(ctx, draft.RenterID, d); err != nil {
			log.Printf("upsert primary driver for renter %d: %v", draft.RenterID, err)
		}
	}
}

func bookingFromDraft(draft *domain.DraftBooking) *domain.Booking {
	driversCopy := make([]domain.Driver, len(draft.Drivers))
	copy(driversCopy, draft.Drivers)

	return &domain.Booking{
		DraftID:           draft.ID,
		RenterID:          draft.RenterID,
		CarID:             draft.CarID,
		PickupLocationID:  draft.PickupLocationID,
		DropoffLocationID: draft.DropoffLocationID,
		PickupDate:        draft.PickupDate,
		ReturnDate:        draft.ReturnDate,
		DriverAge:         draft.DriverAge,
		Status:            domain.BookingStatusConfirmed,
		BaseCents:         draft.Cost.BaseCents,
		OptionsCents:      draft.Cost.OptionsCents,
		TotalCents:        draft.Cost.TotalCents,
		Drivers:           driversCopy,
	}
}

func (s *WizardService) publish(ctx context.Context, eventType string, draft *domain.DraftBooking, booking *domain.Booking) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}

	event := eventFromDraft(eventType, draft, booking)
	if err := s.producer.Publish(ctx, s.bookingTopic, draft.ID, event); err != nil {
		log.Printf("WARNING: failed to publish %s event for draft %s: %v", eventType, draft.ID, err)
		return
	}
	if s.notificationsTopic != "" {
		if err := s.producer.Publish(ctx, s.notificationsTopic, draft.ID, event); err != nil {
			log.Printf("WARNING: failed to publish %s notification for draft %s: %v", eventType, draft.ID, err)
		}
	}
}

func eventFromDraft(eventType string, draft *domain.DraftBooking, booking *domain.Booking) kafka.BookingEvent {
	event := kafka.BookingEvent{
		Type:       eventType,
		DraftID:    draft.ID,
		RenterID:   draft.RenterID,
		CarID:      draft.CarID,
		Status:     string(draft.Stage),
		TotalCents: draft.Cost.TotalCents,
		PickupDate: draft.PickupDate,
		ReturnDate: draft.ReturnDate,
	}
	if booking != nil {
		event.BookingID = booking.ID
		event.Status = string(booking.Status)
		event.TotalCents = booking.TotalCents
	}
	for _, d := range draft.Drivers {
		if d.IsPrimary {
			event.Email = d.Email
			break
		}
	}
	return event
}

var _ DraftUseCase = (*WizardService)(nil)
