package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rushrental/carbooking/internal/domain"
)

var ErrBookingNotFound = errors.New("booking not found")

// BookingRepository persists committed bookings. CreateConfirmed writes the
// booking together with its driver rows in one transaction; bookings.draft_id
// is unique so a draft can never yield two bookings.
type BookingRepository interface {
	CreateConfirmed(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByDraftID(ctx context.Context, draftID string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) CreateConfirmed(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	booking.Status = domain.BookingStatusConfirmed
	if err := tx.QueryRow(ctx, `INSERT INTO bookings (draft_id, renter_id, car_id, pickup_location_id, dropoff_location_id, pickup_date, return_date, driver_age, status, base_cents, options_cents, total_cents, booking_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		RETURNING id, booking_date, created_at, updated_at`,
		booking.DraftID, booking.RenterID, booking.CarID, booking.PickupLocationID, booking.DropoffLocationID,
		booking.PickupDate, booking.ReturnDate, booking.DriverAge, booking.Status,
		booking.BaseCents, booking.OptionsCents, booking.TotalCents).
		Scan(&booking.ID, &booking.BookingDate, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}

	for i := range booking.Drivers {
		d := &booking.Drivers[i]
		d.BookingID = booking.ID
		if err := tx.QueryRow(ctx, `INSERT INTO booking_drivers (booking_id, first_name, last_name, email, date_of_birth, license_number, license_issued_in, license_expiry_date, license_is_lifetime, address, city, state, postcode, country_of_residence, phone, mobile, occupation, is_primary)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id`,
			d.BookingID, d.FirstName, d.LastName, d.Email, d.DateOfBirth, d.LicenseNumber, d.LicenseIssuedIn,
			d.LicenseExpiryDate, d.LicenseIsLifetime, d.Address, d.City, d.State, d.Postcode, d.Country,
			d.Phone, d.Mobile, d.Occupation, d.IsPrimary).Scan(&d.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return r.get(ctx, `WHERE id=$1`, id)
}

func (r *PGBookingRepository) GetByDraftID(ctx context.Context, draftID string) (*domain.Booking, error) {
	return r.get(ctx, `WHERE draft_id=$1`, draftID)
}

func (r *PGBookingRepository) get(ctx context.Context, where string, arg interface{}) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT id, draft_id, renter_id, car_id, pickup_location_id, dropoff_location_id, pickup_date, return_date, driver_age, status, base_cents, options_cents, total_cents, booking_date, created_at, updated_at FROM bookings `+where, arg)
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.DraftID, &b.RenterID, &b.CarID, &b.PickupLocationID, &b.DropoffLocationID, &b.PickupDate, &b.ReturnDate, &b.DriverAge, &b.Status, &b.BaseCents, &b.OptionsCents, &b.TotalCents, &b.BookingDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	drivers, err := r.driversFor(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Drivers = drivers
	return &b, nil
}

func (r *PGBookingRepository) driversFor(ctx context.Context, bookingID int64) ([]domain.Driver, error) {
	rows, err := r.db.Query(ctx, `SELECT id, booking_id, first_name, last_name, email, date_of_birth, license_number, license_issued_in, license_expiry_date, license_is_lifetime, address, city, state, postcode, country_of_residence, phone, mobile, occupation, is_primary FROM booking_drivers WHERE booking_id=$1 ORDER BY id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []domain.Driver
	for rows.Next() {
		var d domain.Driver
		if err := rows.Scan(&d.ID, &d.BookingID, &d.FirstName, &d.LastName, &d.Email, &d.DateOfBirth, &d.LicenseNumber, &d.LicenseIssuedIn, &d.LicenseExpiryDate, &d.LicenseIsLifetime, &d.Address, &d.City, &d.State, &d.Postcode, &d.Country, &d.Phone, &d.Mobile, &d.Occupation, &d.IsPrimary); err != nil {
			return nil, err
		}
		drivers = append(drivers, d)
	}
	return drivers, rows.Err()
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, id int64, status domain.BookingStatus) (*domain.Booking, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE id=$2`, status, id)
	if err != nil {
		return nil, err
	}
	if cmd.RowsAffected() == 0 {
		return nil, ErrBookingNotFound
	}
	return r.GetByID(ctx, id)
}

var _ BookingRepository = (*PGBookingRepository)(nil)
