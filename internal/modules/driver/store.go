// README: Driver store backed by PostgreSQL plus Redis GEO for live positions.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"bistro/internal/types"
)

const geoKey = "drivers:geo"

type Store struct {
	db       *pgxpool.Pool
	redis    *redis.Client
	currency string
}

func NewStore(db *pgxpool.Pool, rdb *redis.Client, currency string) *Store {
	return &Store{db: db, redis: rdb, currency: currency}
}

func (s *Store) Create(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (id, name, email, phone, password_hash, vehicle_info, is_available)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(d.ID), d.Name, d.Email, d.Phone, d.PasswordHash, d.VehicleInfo, d.IsAvailable,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

const driverColumns = `
	id, name, email, phone, password_hash, vehicle_info, is_available,
	lat, lng, accuracy, location_updated_at,
	rating, total_deliveries, earnings, created_at, updated_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	return s.scanDriver(row)
}

func (s *Store) GetByPhone(ctx context.Context, phone string) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE phone = $1`, phone)
	return s.scanDriver(row)
}

func (s *Store) scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var lat, lng, accuracy *float64
	var locUpdatedAt *time.Time
	err := row.Scan(
		&d.ID, &d.Name, &d.Email, &d.Phone, &d.PasswordHash, &d.VehicleInfo, &d.IsAvailable,
		&lat, &lng, &accuracy, &locUpdatedAt,
		&d.Rating, &d.TotalDeliveries, &d.Earnings.Amount, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Earnings.Currency = s.currency
	if lat != nil && lng != nil && locUpdatedAt != nil {
		d.Location = &Location{Lat: *lat, Lng: *lng, Accuracy: accuracy, Timestamp: *locUpdatedAt}
	}
	return &d, nil
}

func (s *Store) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET is_available = $2, updated_at = NOW() WHERE id = $1`,
		string(id), available,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLocation overwrites the latest position (last write wins) and
// mirrors it into the Redis GEO set used by live maps.
func (s *Store) UpdateLocation(ctx context.Context, id types.ID, loc Location) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET lat = $2, lng = $3, accuracy = $4, location_updated_at = $5, updated_at = NOW()
		WHERE id = $1`,
		string(id), loc.Lat, loc.Lng, loc.Accuracy, loc.Timestamp,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if s.redis != nil {
		_ = s.redis.GeoAdd(ctx, geoKey, &redis.GeoLocation{
			Name:      string(id),
			Longitude: loc.Lng,
			Latitude:  loc.Lat,
		}).Err()
	}
	return nil
}

// ListActive returns available drivers whose last location update is within
// the staleness window, each with their in-flight deliveries attached.
func (s *Store) ListActive(ctx context.Context, staleness time.Duration) ([]ActiveDriver, error) {
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+`
		FROM drivers
		WHERE is_available = TRUE
		  AND location_updated_at IS NOT NULL
		  AND location_updated_at > NOW() - make_interval(secs => $1)
		ORDER BY name`,
		staleness.Seconds(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var active []ActiveDriver
	for rows.Next() {
		d, err := s.scanDriver(rows)
		if err != nil {
			return nil, err
		}
		active = append(active, ActiveDriver{Driver: *d})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range active {
		deliveries, err := s.deliveries(ctx, active[i].ID)
		if err != nil {
			return nil, err
		}
		active[i].Deliveries = deliveries
	}
	return active, nil
}

func (s *Store) deliveries(ctx context.Context, driverID types.ID) ([]Delivery, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_number, status, COALESCE(delivery_address, '')
		FROM orders
		WHERE driver_id = $1 AND status = 'OUT_FOR_DELIVERY'
		ORDER BY created_at`, string(driverID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ds []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.OrderID, &d.OrderNumber, &d.Status, &d.DeliveryAddress); err != nil {
			return nil, err
		}
		ds = append(ds, d)
	}
	return ds, rows.Err()
}

// Delete removes a driver unless it still owns active orders.
func (s *Store) Delete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM drivers
		WHERE id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM orders
			WHERE driver_id = $1 AND status IN ('OUT_FOR_DELIVERY', 'READY_FOR_PICKUP')
		  )`, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, gerr := s.Get(ctx, id); gerr != nil {
			return gerr
		}
		return ErrActiveDeliveries
	}
	if s.redis != nil {
		_ = s.redis.ZRem(ctx, geoKey, string(id)).Err()
	}
	return nil
}

// UpsertRating writes one rating per order; resubmission edits in place.
func (s *Store) UpsertRating(ctx context.Context, r Rating) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO driver_ratings (order_id, driver_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (order_id) DO UPDATE
		SET rating = EXCLUDED.rating, comment = EXCLUDED.comment, updated_at = NOW()`,
		string(r.OrderID), string(r.DriverID), r.Rating, r.Comment,
	)
	return err
}

// RecomputeRating persists the arithmetic mean of all the driver's ratings
// back onto the driver row and returns it. Zero when unrated.
func (s *Store) RecomputeRating(ctx context.Context, driverID types.ID) (float64, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE drivers
		SET rating = COALESCE((SELECT AVG(rating)::float8 FROM driver_ratings WHERE driver_id = $1), 0),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING rating`, string(driverID),
	)
	var rating float64
	err := row.Scan(&rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return rating, err
}

// RecordDelivery bumps the delivery counter and credits the delivery fee.
func (s *Store) RecordDelivery(ctx context.Context, driverID types.ID, fee types.Money) error {
	_, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET total_deliveries = total_deliveries + 1,
		    earnings = earnings + $2,
		    updated_at = NOW()
		WHERE id = $1`, string(driverID), fee.Amount,
	)
	return err
}
