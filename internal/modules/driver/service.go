// README: Driver registry service; registration, auth, availability, location.
package driver

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bistro/internal/modules/notify"
	"bistro/internal/types"
)

type Service struct {
	store       *Store
	broker      *notify.Broker
	minPassword int
	staleness   time.Duration
}

func NewService(store *Store, broker *notify.Broker, minPassword int, staleness time.Duration) *Service {
	return &Service{store: store, broker: broker, minPassword: minPassword, staleness: staleness}
}

type RegisterCommand struct {
	ID          types.ID
	Name        string
	Email       string
	Phone       string
	Password    string
	VehicleInfo string
}

// Register creates the driver account. The ID is the caller's Firebase UID,
// so driver-scoped routes can match the authenticated user against the
// driver record; a blank ID gets a generated one.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Driver, error) {
	if cmd.Phone == "" || cmd.Name == "" {
		return nil, errors.New("name and phone are required")
	}
	if len(cmd.Password) < s.minPassword {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	id := cmd.ID
	if id == "" {
		id = newID()
	}
	d := &Driver{
		ID:           id,
		Name:         cmd.Name,
		Email:        cmd.Email,
		Phone:        cmd.Phone,
		PasswordHash: string(hash),
		VehicleInfo:  cmd.VehicleInfo,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, d.ID)
}

// Authenticate verifies the phone/password pair. Accounts without a stored
// hash are rejected outright instead of matching an empty password.
func (s *Service) Authenticate(ctx context.Context, phone, password string) (*Driver, error) {
	d, err := s.store.GetByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if d.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(d.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	return s.store.SetAvailability(ctx, id, available)
}

type LocationUpdate struct {
	DriverID  types.ID
	Lat       float64
	Lng       float64
	Accuracy  *float64
	Timestamp *time.Time
}

// UpdateLocation overwrites the driver's position, latest wins. Each accepted
// update is published so tracking viewers see the movement live.
func (s *Service) UpdateLocation(ctx context.Context, u LocationUpdate) (*Location, error) {
	if u.Lat < -90 || u.Lat > 90 || u.Lng < -180 || u.Lng > 180 {
		return nil, ErrInvalidLocation
	}
	ts := time.Now().UTC()
	if u.Timestamp != nil {
		ts = u.Timestamp.UTC()
	}
	loc := Location{Lat: u.Lat, Lng: u.Lng, Accuracy: u.Accuracy, Timestamp: ts}
	if err := s.store.UpdateLocation(ctx, u.DriverID, loc); err != nil {
		return nil, err
	}
	if s.broker != nil {
		s.broker.Publish(ctx, notify.Event{
			Type:     notify.EventDriverLocation,
			DriverID: u.DriverID,
			Payload: map[string]any{
				"latitude":  loc.Lat,
				"longitude": loc.Lng,
			},
			At: ts,
		})
	}
	return &loc, nil
}

// ListActive returns available drivers that have reported a position within
// the staleness window. Drivers that went quiet drop off live maps even if
// they never flipped their availability.
func (s *Service) ListActive(ctx context.Context) ([]ActiveDriver, error) {
	return s.store.ListActive(ctx, s.staleness)
}

func (s *Service) Delete(ctx context.Context, id types.ID) error {
	return s.store.Delete(ctx, id)
}

// SubmitRating upserts the per-order rating and returns the driver's
// recomputed aggregate. Called by the order module once delivery and
// ownership checks have passed.
func (s *Service) SubmitRating(ctx context.Context, orderID, driverID types.ID, rating int, comment string) (float64, error) {
	if rating < 1 || rating > 5 {
		return 0, errors.New("rating must be between 1 and 5")
	}
	if err := s.store.UpsertRating(ctx, Rating{OrderID: orderID, DriverID: driverID, Rating: rating, Comment: comment}); err != nil {
		return 0, err
	}
	return s.store.RecomputeRating(ctx, driverID)
}

// RecordDelivery credits a completed delivery to the driver.
func (s *Service) RecordDelivery(ctx context.Context, driverID types.ID, fee types.Money) error {
	return s.store.RecordDelivery(ctx, driverID, fee)
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
