package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rushrental/carbooking/internal/domain"
)

var ErrSavedDriverNotFound = errors.New("saved driver not found")

// ProfileRepository manages the renter's saved drivers: read for prefill
// during the wizard, written only at commit time.
type ProfileRepository interface {
	GetSavedDriver(ctx context.Context, renterID, driverID int64) (*domain.Driver, error)
	ListSavedDrivers(ctx context.Context, renterID int64) ([]domain.Driver, error)
	UpsertPrimaryDriver(ctx context.Context, renterID int64, driver domain.Driver) error
}

type PGProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) ProfileRepository {
	return &PGProfileRepository{db: db}
}

const savedDriverColumns = `id, first_name, last_name, email, date_of_birth, license_number, license_issued_in, license_expiry_date, license_is_lifetime, address, city, state, postcode, country_of_residence, phone, mobile, occupation, is_primary`

func (r *PGProfileRepository) GetSavedDriver(ctx context.Context, renterID, driverID int64) (*domain.Driver, error) {
	row := r.db.QueryRow(ctx, `SELECT `+savedDriverColumns+` FROM saved_drivers WHERE renter_id=$1 AND id=$2`, renterID, driverID)
	d, err := scanSavedDriver(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSavedDriverNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *PGProfileRepository) ListSavedDrivers(ctx context.Context, renterID int64) ([]domain.Driver, error) {
	rows, err := r.db.Query(ctx, `SELECT `+savedDriverColumns+` FROM saved_drivers WHERE renter_id=$1 ORDER BY is_primary DESC, id`, renterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []domain.Driver
	for rows.Next() {
		d, err := scanSavedDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, *d)
	}
	return drivers, rows.Err()
}

// UpsertPrimaryDriver inserts the driver as the renter's primary saved
// driver, demoting any previous primary in the same transaction.
func (r *PGProfileRepository) UpsertPrimaryDriver(ctx context.Context, renterID int64, driver domain.Driver) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE saved_drivers SET is_primary=false, updated_at=now() WHERE renter_id=$1 AND is_primary`, renterID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `INSERT INTO saved_drivers (renter_id, first_name, last_name, email, date_of_birth, license_number, license_issued_in, license_expiry_date, license_is_lifetime, address, city, state, postcode, country_of_residence, phone, mobile, occupation, is_primary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, true)
		ON CONFLICT (renter_id, license_number) DO UPDATE SET
			first_name=EXCLUDED.first_name, last_name=EXCLUDED.last_name, email=EXCLUDED.email,
			date_of_birth=EXCLUDED.date_of_birth, license_issued_in=EXCLUDED.license_issued_in,
			license_expiry_date=EXCLUDED.license_expiry_date, license_is_lifetime=EXCLUDED.license_is_lifetime,
			address=EXCLUDED.address, city=EXCLUDED.city, state=EXCLUDED.state, postcode=EXCLUDED.postcode,
			country_of_residence=EXCLUDED.country_of_residence, phone=EXCLUDED.phone, mobile=EXCLUDED.mobile,
			occupation=EXCLUDED.occupation, is_primary=true, updated_at=now()`,
		renterID, driver.FirstName, driver.LastName, driver.Email, driver.DateOfBirth, driver.LicenseNumber,
		driver.LicenseIssuedIn, driver.LicenseExpiryDate, driver.LicenseIsLifetime, driver.Address, driver.City,
		driver.State, driver.Postcode, driver.Country, driver.Phone, driver.Mobile, driver.Occupation); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func scanSavedDriver(row pgx.Row) (*domain.Driver, error) {
	var d domain.Driver
	if err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.DateOfBirth, &d.LicenseNumber, &d.LicenseIssuedIn, &d.LicenseExpiryDate, &d.LicenseIsLifetime, &d.Address, &d.City, &d.State, &d.Postcode, &d.Country, &d.Phone, &d.Mobile, &d.Occupation, &d.IsPrimary); err != nil {
		return nil, err
	}
	return &d, nil
}

var _ ProfileRepository = (*PGProfileRepository)(nil)
