// README: Driver registry tests (auth, location validation, staleness, deletion guards).
package driver

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"bistro/internal/types"
)

func TestUpdateLocationRejectsOutOfRange(t *testing.T) {
	svc := NewService(nil, nil, 6, 30*time.Minute)
	ctx := context.Background()

	cases := []struct{ lat, lng float64 }{
		{91, 0},
		{-91, 0},
		{0, 181},
		{0, -181},
		{90.0001, 180.0001},
	}
	for _, tc := range cases {
		if _, err := svc.UpdateLocation(ctx, LocationUpdate{DriverID: "d1", Lat: tc.lat, Lng: tc.lng}); err != ErrInvalidLocation {
			t.Errorf("(%v, %v): expected ErrInvalidLocation, got %v", tc.lat, tc.lng, err)
		}
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	svc := NewService(nil, nil, 6, 30*time.Minute)

	_, err := svc.Register(context.Background(), RegisterCommand{
		Name:     "Kim Novak",
		Phone:    "07700111222",
		Password: "short",
	})
	if err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := setupDriverTest(t)
	ctx := context.Background()

	d, err := svc.Register(ctx, RegisterCommand{
		Name:        "Kim Novak",
		Phone:       "07700111222",
		Password:    "hunter22",
		VehicleInfo: "Honda PCX",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if d.PasswordHash == "hunter22" {
		t.Fatal("password stored in plain text")
	}

	got, err := svc.Authenticate(ctx, "07700111222", "hunter22")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != d.ID {
		t.Fatalf("authenticated the wrong driver: %s", got.ID)
	}

	if _, err := svc.Authenticate(ctx, "07700111222", "wrong-pass"); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "07700999999", "hunter22"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Phone numbers are unique.
	_, err = svc.Register(ctx, RegisterCommand{Name: "Impostor", Phone: "07700111222", Password: "hunter22"})
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

// TestRegisterKeyedByCallerID pins the driver record to the identity the HTTP
// layer supplies, so own-id checks on location and availability routes hold.
func TestRegisterKeyedByCallerID(t *testing.T) {
	svc, _ := setupDriverTest(t)
	ctx := context.Background()

	d, err := svc.Register(ctx, RegisterCommand{
		ID:       "fb_uid_42",
		Name:     "Kim Novak",
		Phone:    "07700555666",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if d.ID != "fb_uid_42" {
		t.Fatalf("expected driver keyed by caller id, got %s", d.ID)
	}
	if got, err := svc.Get(ctx, "fb_uid_42"); err != nil || got.Phone != "07700555666" {
		t.Fatalf("lookup by caller id: %+v, %v", got, err)
	}
}

func TestAuthenticateRejectsEmptyHash(t *testing.T) {
	svc, db := setupDriverTest(t)
	ctx := context.Background()

	// Legacy row with no stored hash must not match an empty password.
	if _, err := db.Exec(ctx, `
		INSERT INTO drivers (id, name, phone) VALUES ('d_legacy', 'Legacy', '07700333444')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "07700333444", ""); err != ErrInvalidCredentials {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestListActiveStaleness(t *testing.T) {
	svc, db := setupDriverTest(t)
	ctx := context.Background()

	fresh := registerAvailable(t, svc, "Fresh", "07700111001")
	stale := registerAvailable(t, svc, "Stale", "07700111002")
	// Never reports a position at all.
	registerAvailable(t, svc, "Quiet", "07700111003")
	offDuty := registerAvailable(t, svc, "OffDuty", "07700111004")

	mustUpdateLocation(t, svc, fresh.ID)
	mustUpdateLocation(t, svc, stale.ID)
	mustUpdateLocation(t, svc, offDuty.ID)

	// Backdate one position beyond the 30-minute window; quiet never reported.
	if _, err := db.Exec(ctx, `
		UPDATE drivers SET location_updated_at = NOW() - INTERVAL '31 minutes' WHERE id = $1`,
		string(stale.ID)); err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if err := svc.SetAvailability(ctx, offDuty.ID, false); err != nil {
		t.Fatalf("set availability: %v", err)
	}

	active, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active driver, got %d", len(active))
	}
	if active[0].ID != fresh.ID {
		t.Fatalf("expected %s, got %s", fresh.ID, active[0].ID)
	}
}

func TestListActiveAttachesDeliveries(t *testing.T) {
	svc, db := setupDriverTest(t)
	ctx := context.Background()

	d := registerAvailable(t, svc, "Kim Novak", "07700111005")
	mustUpdateLocation(t, svc, d.ID)
	insertOrder(t, db, "o_active", "ORD-20260831-001", "OUT_FOR_DELIVERY", d.ID)
	insertOrder(t, db, "o_done", "ORD-20260831-002", "DELIVERED", d.ID)

	active, err := svc.ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active driver, got %d", len(active))
	}
	if len(active[0].Deliveries) != 1 {
		t.Fatalf("expected 1 in-flight delivery, got %d", len(active[0].Deliveries))
	}
	if active[0].Deliveries[0].OrderNumber != "ORD-20260831-001" {
		t.Fatalf("unexpected delivery: %+v", active[0].Deliveries[0])
	}
}

func TestDeleteGuards(t *testing.T) {
	svc, db := setupDriverTest(t)
	ctx := context.Background()

	if err := svc.Delete(ctx, "d_nothing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	d := registerAvailable(t, svc, "Kim Novak", "07700111006")
	insertOrder(t, db, "o_guard", "ORD-20260831-003", "OUT_FOR_DELIVERY", d.ID)

	if err := svc.Delete(ctx, d.ID); err != ErrActiveDeliveries {
		t.Fatalf("expected ErrActiveDeliveries, got %v", err)
	}

	if _, err := db.Exec(ctx, `UPDATE orders SET status = 'DELIVERED' WHERE id = 'o_guard'`); err != nil {
		t.Fatalf("finish order: %v", err)
	}
	if err := svc.Delete(ctx, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, d.ID); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRecordDeliveryAccumulates(t *testing.T) {
	svc, _ := setupDriverTest(t)
	ctx := context.Background()

	d := registerAvailable(t, svc, "Kim Novak", "07700111007")
	fee := types.Money{Amount: 250, Currency: "GBP"}
	for i := 0; i < 3; i++ {
		if err := svc.RecordDelivery(ctx, d.ID, fee); err != nil {
			t.Fatalf("record delivery: %v", err)
		}
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalDeliveries != 3 {
		t.Errorf("expected 3 deliveries, got %d", got.TotalDeliveries)
	}
	if got.Earnings.Amount != 750 {
		t.Errorf("expected earnings 750, got %d", got.Earnings.Amount)
	}
}

func TestSubmitRatingAggregates(t *testing.T) {
	svc, db := setupDriverTest(t)
	ctx := context.Background()

	d := registerAvailable(t, svc, "Kim Novak", "07700111008")
	insertOrder(t, db, "o_rate_1", "ORD-20260831-004", "DELIVERED", d.ID)
	insertOrder(t, db, "o_rate_2", "ORD-20260831-005", "DELIVERED", d.ID)

	avg, err := svc.SubmitRating(ctx, "o_rate_1", d.ID, 4, "quick")
	if err != nil {
		t.Fatalf("first rating: %v", err)
	}
	if avg != 4 {
		t.Fatalf("expected aggregate 4, got %v", avg)
	}

	avg, err = svc.SubmitRating(ctx, "o_rate_2", d.ID, 5, "")
	if err != nil {
		t.Fatalf("second rating: %v", err)
	}
	if avg != 4.5 {
		t.Fatalf("expected aggregate 4.5, got %v", avg)
	}

	got, err := svc.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Rating != 4.5 {
		t.Fatalf("expected persisted rating 4.5, got %v", got.Rating)
	}
}

func registerAvailable(t *testing.T, svc *Service, name, phone string) *Driver {
	t.Helper()
	ctx := context.Background()
	d, err := svc.Register(ctx, RegisterCommand{Name: name, Phone: phone, Password: "hunter22"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := svc.SetAvailability(ctx, d.ID, true); err != nil {
		t.Fatalf("set availability: %v", err)
	}
	return d
}

func mustUpdateLocation(t *testing.T, svc *Service, id types.ID) {
	t.Helper()
	if _, err := svc.UpdateLocation(context.Background(), LocationUpdate{
		DriverID: id,
		Lat:      51.5033,
		Lng:      -0.1196,
	}); err != nil {
		t.Fatalf("update location: %v", err)
	}
}

func insertOrder(t *testing.T, db *pgxpool.Pool, id, number, status string, driverID types.ID) {
	t.Helper()
	if _, err := db.Exec(context.Background(), `
		INSERT INTO orders (
			id, order_number, order_type, status, payment_status,
			customer_name, customer_phone, delivery_address,
			subtotal, tax, delivery_fee, total, currency
		) VALUES ($1, $2, 'DELIVERY', $3, 'COMPLETED', 'Ada Price', '07700900123', '1 High Street',
			500, 100, 250, 850, 'GBP')`,
		id, number, status,
	); err != nil {
		t.Fatalf("insert order: %v", err)
	}
	if _, err := db.Exec(context.Background(), `
		UPDATE orders SET driver_id = $2 WHERE id = $1`, id, string(driverID)); err != nil {
		t.Fatalf("attach driver: %v", err)
	}
}

func setupDriverTest(t *testing.T) (*Service, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("BISTRO_TEST_DSN")
	if dsn == "" {
		t.Skip("BISTRO_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, `TRUNCATE TABLE driver_ratings, payments, order_items,
		order_status_events, orders, drivers`); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	store := NewStore(db, nil, "GBP")
	return NewService(store, nil, 6, 30*time.Minute), db
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	path := filepath.Join(root, "migrations", "0001_init.sql")
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
