/*
Package sqlite provides a SQLite-backed implementation of the waybill ports.

PURPOSE:
  Implements every collaborator the engine consumes (calendar, blanks,
  vehicles, employees, waybill repository) plus the audit snapshot source,
  using SQLite.

INTERFACES IMPLEMENTED:
  waybill.TxRepository:   Waybill and blank persistence under a transaction
  waybill.CalendarStore:  Production calendar events per year
  waybill.BlankStore:     Issued blanks of a driver
  waybill.VehicleStore:   Vehicle lookup (rates, mileage, current fuel)
  waybill.EmployeeStore:  Employee lookup
  audit.SnapshotSource:   Everything at once for the consistency audit

KEY TABLES:
  waybills:           Waybills, routes stored as JSON
  blanks:             Serial-numbered forms, UNIQUE(series, number)
  calendar_events:    One override per date
  vehicles:           Consumption rates, mileage, current fuel
  employees:          Fuel card balances
  stock_items:        Warehouse balances
  stock_transactions: Income/expense movements

NUMBERS:
  Decimals are stored as TEXT (decimal.String) so nothing passes through a
  float. Dates are "YYYY-MM-DD", timestamps RFC 3339.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  duration of the transaction.

USAGE:
  store, err := sqlite.New("./data/waybills.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := waybill.NewService(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - waybill/ports.go: Interface definitions
  - waybill/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/waybill-engine/audit"
	"github.com/warp/waybill-engine/fuel"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	season generic.SeasonSettings
}

var (
	_ waybill.TxRepository  = (*Store)(nil)
	_ waybill.CalendarStore = (*Store)(nil)
	_ waybill.BlankStore    = (*Store)(nil)
	_ waybill.VehicleStore  = (*Store)(nil)
	_ waybill.EmployeeStore = (*Store)(nil)
	_ audit.SnapshotSource  = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetSeason sets the season settings reported in snapshots.
func (s *Store) SetSeason(settings generic.SeasonSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.season = settings
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		fuel_card_balance TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		plate TEXT NOT NULL,
		summer_rate TEXT NOT NULL,
		winter_rate TEXT NOT NULL,
		city_increase_percent TEXT,
		warming_increase_percent TEXT,
		mileage INTEGER NOT NULL DEFAULT 0,
		current_fuel TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS blanks (
		id TEXT PRIMARY KEY,
		series TEXT NOT NULL,
		number INTEGER NOT NULL,
		status TEXT NOT NULL,
		owner_employee_id TEXT,
		reserved_by_waybill_id TEXT,
		used_in_waybill_id TEXT,
		reserved_at TEXT,
		used_at TEXT,
		UNIQUE (series, number)
	);

	-- Allocation order for a driver's issued blanks
	CREATE INDEX IF NOT EXISTS idx_blanks_owner_status
		ON blanks(owner_employee_id, status, series, number);

	CREATE TABLE IF NOT EXISTS waybills (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		valid_from TEXT NOT NULL,
		valid_to TEXT NOT NULL,
		vehicle_id TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		organization_id TEXT,
		dispatcher_id TEXT,
		controller_id TEXT,
		odometer_start INTEGER NOT NULL,
		odometer_end INTEGER NOT NULL,
		fuel_at_start TEXT NOT NULL,
		fuel_at_end TEXT NOT NULL,
		fuel_planned TEXT NOT NULL,
		fuel_filled TEXT NOT NULL,
		routes_json TEXT NOT NULL,
		blank_id TEXT,
		calculation_method TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_waybills_driver
		ON waybills(driver_id, valid_from);
	CREATE INDEX IF NOT EXISTS idx_waybills_blank
		ON waybills(blank_id) WHERE blank_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS calendar_events (
		date TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		note TEXT
	);

	CREATE TABLE IF NOT EXISTS stock_items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0'
	);

	CREATE TABLE IF NOT EXISTS stock_transactions (
		id TEXT PRIMARY KEY,
		tx_type TEXT NOT NULL,
		expense_reason TEXT,
		item_id TEXT NOT NULL,
		quantity TEXT NOT NULL,
		waybill_id TEXT,
		employee_id TEXT,
		date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_transactions_waybill
		ON stock_transactions(waybill_id) WHERE waybill_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// =============================================================================
// REFERENCE DATA
// =============================================================================

// PutEmployee inserts or replaces an employee.
func (s *Store) PutEmployee(ctx context.Context, e waybill.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO employees (id, name, fuel_card_balance) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, fuel_card_balance = excluded.fuel_card_balance
	`, e.ID, e.Name, e.FuelCardBalance.String())
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// GetEmployee returns an employee or a *generic.NotFoundError.
func (s *Store) GetEmployee(ctx context.Context, id waybill.EmployeeID) (waybill.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT id, name, fuel_card_balance FROM employees WHERE id = ?`, id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return waybill.Employee{}, &generic.NotFoundError{Entity: "employee", ID: string(id)}
	}
	return e, err
}

func scanEmployee(row scanner) (waybill.Employee, error) {
	var (
		e       waybill.Employee
		balance string
	)
	if err := row.Scan(&e.ID, &e.Name, &balance); err != nil {
		return e, err
	}
	var err error
	e.FuelCardBalance, err = decimal.NewFromString(balance)
	return e, err
}

// PutVehicle inserts or replaces a vehicle.
func (s *Store) PutVehicle(ctx context.Context, v waybill.Vehicle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, plate, summer_rate, winter_rate, city_increase_percent,
			warming_increase_percent, mileage, current_fuel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plate = excluded.plate,
			summer_rate = excluded.summer_rate,
			winter_rate = excluded.winter_rate,
			city_increase_percent = excluded.city_increase_percent,
			warming_increase_percent = excluded.warming_increase_percent,
			mileage = excluded.mileage,
			current_fuel = excluded.current_fuel
	`,
		v.ID, v.Plate,
		v.Rates.SummerRate.String(), v.Rates.WinterRate.String(),
		nullDecimal(v.Rates.CityIncreasePercent), nullDecimal(v.Rates.WarmingIncreasePercent),
		v.Mileage, v.CurrentFuel.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to save vehicle: %w", err)
	}
	return nil
}

const vehicleColumns = `id, plate, summer_rate, winter_rate, city_increase_percent,
	warming_increase_percent, mileage, current_fuel`

// GetVehicle returns a vehicle or a *generic.NotFoundError.
func (s *Store) GetVehicle(ctx context.Context, id waybill.VehicleID) (waybill.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+vehicleColumns+` FROM vehicles WHERE id = ?`, id)
	v, err := scanVehicle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return waybill.Vehicle{}, &generic.NotFoundError{Entity: "vehicle", ID: string(id)}
	}
	return v, err
}

func scanVehicle(row scanner) (waybill.Vehicle, error) {
	var (
		v                       waybill.Vehicle
		summer, winter, current string
		city, warming           sql.NullString
	)
	if err := row.Scan(&v.ID, &v.Plate, &summer, &winter, &city, &warming, &v.Mileage, &current); err != nil {
		return v, err
	}
	var err error
	if v.Rates.SummerRate, err = decimal.NewFromString(summer); err != nil {
		return v, err
	}
	if v.Rates.WinterRate, err = decimal.NewFromString(winter); err != nil {
		return v, err
	}
	if v.Rates.CityIncreasePercent, err = parseNullDecimal(city); err != nil {
		return v, err
	}
	if v.Rates.WarmingIncreasePercent, err = parseNullDecimal(warming); err != nil {
		return v, err
	}
	v.CurrentFuel, err = decimal.NewFromString(current)
	return v, err
}

// =============================================================================
// CALENDAR
// =============================================================================

// AddCalendarEvents upserts events; a later event for the same date wins.
func (s *Store) AddCalendarEvents(ctx context.Context, events ...generic.CalendarEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, e := range events {
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO calendar_events (date, kind, note) VALUES (?, ?, ?)
			ON CONFLICT(date) DO UPDATE SET kind = excluded.kind, note = excluded.note
		`, e.Date.String(), string(e.Kind), nullString(e.Note))
		if err != nil {
			return fmt.Errorf("failed to save calendar event %s: %w", e.Date, err)
		}
	}
	return sqlTx.Commit()
}

// GetEvents returns the events of one year in date order.
func (s *Store) GetEvents(ctx context.Context, year int) ([]generic.CalendarEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT date, kind, note FROM calendar_events
		WHERE date >= ? AND date <= ?
		ORDER BY date
	`, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar events: %w", err)
	}
	defer rows.Close()

	var events []generic.CalendarEvent
	for rows.Next() {
		var (
			date, kind string
			note       sql.NullString
		)
		if err := rows.Scan(&date, &kind, &note); err != nil {
			return nil, fmt.Errorf("failed to scan calendar event: %w", err)
		}
		d, err := generic.ParseDate(date)
		if err != nil {
			return nil, err
		}
		events = append(events, generic.CalendarEvent{Date: d, Kind: generic.EventKind(kind), Note: note.String})
	}
	return events, rows.Err()
}

// =============================================================================
// BLANKS
// =============================================================================

const blankColumns = `id, series, number, status, owner_employee_id, reserved_by_waybill_id,
	used_in_waybill_id, reserved_at, used_at`

// PutBlank inserts a blank; an empty id gets a fresh uuid.
func (s *Store) PutBlank(ctx context.Context, b waybill.Blank) (waybill.BlankID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.ID == "" {
		b.ID = waybill.BlankID(uuid.NewString())
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blanks (`+blankColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, blankArgs(b)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return "", fmt.Errorf("blank %s-%d already exists: %w", b.Series, b.Number, err)
		}
		return "", fmt.Errorf("failed to save blank: %w", err)
	}
	return b.ID, nil
}

// GetAvailableBlanks returns the driver's issued blanks by series, then number.
func (s *Store) GetAvailableBlanks(ctx context.Context, driverID waybill.EmployeeID) ([]waybill.BlankRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, series, number FROM blanks
		WHERE owner_employee_id = ? AND status = ?
		ORDER BY series, number
	`, driverID, string(waybill.BlankIssued))
	if err != nil {
		return nil, fmt.Errorf("failed to query blanks: %w", err)
	}
	defer rows.Close()

	var refs []waybill.BlankRef
	for rows.Next() {
		var r waybill.BlankRef
		if err := rows.Scan(&r.ID, &r.Series, &r.Number); err != nil {
			return nil, fmt.Errorf("failed to scan blank: %w", err)
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

func blankArgs(b waybill.Blank) []any {
	return []any{
		b.ID, b.Series, b.Number, string(b.Status),
		nullString(string(b.OwnerEmployeeID)),
		nullString(string(b.ReservedByWaybillID)),
		nullString(string(b.UsedInWaybillID)),
		nullTime(b.ReservedAt),
		nullTime(b.UsedAt),
	}
}

func scanBlank(row scanner) (waybill.Blank, error) {
	var (
		b                         waybill.Blank
		status                    string
		owner, reservedBy, usedIn sql.NullString
		reservedAt, usedAt        sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Series, &b.Number, &status, &owner, &reservedBy, &usedIn, &reservedAt, &usedAt); err != nil {
		return b, err
	}
	b.Status = waybill.BlankStatus(status)
	b.OwnerEmployeeID = waybill.EmployeeID(owner.String)
	b.ReservedByWaybillID = waybill.WaybillID(reservedBy.String)
	b.UsedInWaybillID = waybill.WaybillID(usedIn.String)
	b.ReservedAt = parseNullTime(reservedAt)
	b.UsedAt = parseNullTime(usedAt)
	return b, nil
}

func getBlank(ctx context.Context, q querier, id waybill.BlankID) (waybill.Blank, error) {
	row := q.QueryRowContext(ctx, `SELECT `+blankColumns+` FROM blanks WHERE id = ?`, id)
	b, err := scanBlank(row)
	if errors.Is(err, sql.ErrNoRows) {
		return waybill.Blank{}, &generic.NotFoundError{Entity: "blank", ID: string(id)}
	}
	return b, err
}

func updateBlank(ctx context.Context, q querier, b waybill.Blank) error {
	res, err := q.ExecContext(ctx, `
		UPDATE blanks SET series = ?, number = ?, status = ?, owner_employee_id = ?,
			reserved_by_waybill_id = ?, used_in_waybill_id = ?, reserved_at = ?, used_at = ?
		WHERE id = ?
	`, append(blankArgs(b)[1:], b.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update blank: %w", err)
	}
	return expectOneRow(res, "blank", string(b.ID))
}

// =============================================================================
// WAYBILLS
// =============================================================================

const waybillColumns = `id, status, valid_from, valid_to, vehicle_id, driver_id, organization_id,
	dispatcher_id, controller_id, odometer_start, odometer_end, fuel_at_start, fuel_at_end,
	fuel_planned, fuel_filled, routes_json, blank_id, calculation_method, created_at, updated_at`

func waybillArgs(wb waybill.Waybill) ([]any, error) {
	routes := wb.Routes
	if routes == nil {
		routes = []waybill.RouteSegment{}
	}
	routesJSON, err := json.Marshal(routes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode routes: %w", err)
	}
	return []any{
		wb.ID, string(wb.Status), wb.ValidFrom.String(), wb.ValidTo.String(),
		wb.VehicleID, wb.DriverID,
		nullString(string(wb.OrganizationID)),
		nullString(string(wb.DispatcherID)),
		nullString(string(wb.ControllerID)),
		wb.OdometerStart, wb.OdometerEnd,
		wb.FuelAtStart.String(), wb.FuelAtEnd.String(), wb.FuelPlanned.String(), wb.FuelFilled.String(),
		string(routesJSON),
		nullString(string(wb.BlankID)),
		nullString(string(wb.CalculationMethod)),
		wb.CreatedAt.UTC().Format(time.RFC3339Nano),
		wb.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}, nil
}

func scanWaybill(row scanner) (waybill.Waybill, error) {
	var (
		wb                                  waybill.Waybill
		status, validFrom, validTo          string
		org, dispatcher, controller         sql.NullString
		fuelStart, fuelEnd, planned, filled string
		routesJSON                          string
		blankID, method                     sql.NullString
		createdAt, updatedAt                string
	)
	err := row.Scan(
		&wb.ID, &status, &validFrom, &validTo, &wb.VehicleID, &wb.DriverID, &org,
		&dispatcher, &controller, &wb.OdometerStart, &wb.OdometerEnd, &fuelStart, &fuelEnd,
		&planned, &filled, &routesJSON, &blankID, &method, &createdAt, &updatedAt,
	)
	if err != nil {
		return wb, err
	}

	wb.Status = waybill.Status(status)
	if wb.ValidFrom, err = generic.ParseDate(validFrom); err != nil {
		return wb, err
	}
	if wb.ValidTo, err = generic.ParseDate(validTo); err != nil {
		return wb, err
	}
	wb.OrganizationID = waybill.OrganizationID(org.String)
	wb.DispatcherID = waybill.EmployeeID(dispatcher.String)
	wb.ControllerID = waybill.EmployeeID(controller.String)
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&wb.FuelAtStart, fuelStart},
		{&wb.FuelAtEnd, fuelEnd},
		{&wb.FuelPlanned, planned},
		{&wb.FuelFilled, filled},
	} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return wb, err
		}
	}
	if err := json.Unmarshal([]byte(routesJSON), &wb.Routes); err != nil {
		return wb, fmt.Errorf("failed to decode routes of waybill %s: %w", wb.ID, err)
	}
	wb.BlankID = waybill.BlankID(blankID.String)
	wb.CalculationMethod = fuel.Method(method.String)
	wb.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	wb.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return wb, nil
}

func getWaybill(ctx context.Context, q querier, id waybill.WaybillID) (waybill.Waybill, error) {
	row := q.QueryRowContext(ctx, `SELECT `+waybillColumns+` FROM waybills WHERE id = ?`, id)
	wb, err := scanWaybill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return waybill.Waybill{}, &generic.NotFoundError{Entity: "waybill", ID: string(id)}
	}
	return wb, err
}

func insertWaybill(ctx context.Context, q querier, wb waybill.Waybill) error {
	args, err := waybillArgs(wb)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO waybills (`+waybillColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to insert waybill: %w", err)
	}
	return nil
}

func updateWaybill(ctx context.Context, q querier, wb waybill.Waybill) error {
	args, err := waybillArgs(wb)
	if err != nil {
		return err
	}
	// created_at is not rewritten.
	set := make([]any, 0, len(args))
	set = append(set, args[1:18]...)
	set = append(set, args[19], wb.ID)
	res, err := q.ExecContext(ctx, `
		UPDATE waybills SET status = ?, valid_from = ?, valid_to = ?, vehicle_id = ?, driver_id = ?,
			organization_id = ?, dispatcher_id = ?, controller_id = ?, odometer_start = ?,
			odometer_end = ?, fuel_at_start = ?, fuel_at_end = ?, fuel_planned = ?, fuel_filled = ?,
			routes_json = ?, blank_id = ?, calculation_method = ?, updated_at = ?
		WHERE id = ?
	`, set...)
	if err != nil {
		return fmt.Errorf("failed to update waybill: %w", err)
	}
	return expectOneRow(res, "waybill", string(wb.ID))
}

func deleteWaybill(ctx context.Context, q querier, id waybill.WaybillID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM waybills WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete waybill: %w", err)
	}
	return expectOneRow(res, "waybill", string(id))
}

// =============================================================================
// REPOSITORY (waybill.Repository interface)
// =============================================================================

func (s *Store) GetWaybill(ctx context.Context, id waybill.WaybillID) (waybill.Waybill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getWaybill(ctx, s.db, id)
}

func (s *Store) InsertWaybill(ctx context.Context, wb waybill.Waybill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertWaybill(ctx, s.db, wb)
}

func (s *Store) UpdateWaybill(ctx context.Context, wb waybill.Waybill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateWaybill(ctx, s.db, wb)
}

func (s *Store) DeleteWaybill(ctx context.Context, id waybill.WaybillID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteWaybill(ctx, s.db, id)
}

func (s *Store) GetBlank(ctx context.Context, id waybill.BlankID) (waybill.Blank, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getBlank(ctx, s.db, id)
}

func (s *Store) UpdateBlank(ctx context.Context, b waybill.Blank) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateBlank(ctx, s.db, b)
}

// =============================================================================
// TRANSACTIONAL STORE (waybill.TxRepository interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(waybill.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetWaybill(ctx context.Context, id waybill.WaybillID) (waybill.Waybill, error) {
	return getWaybill(ctx, ts.tx, id)
}

func (ts *txStore) InsertWaybill(ctx context.Context, wb waybill.Waybill) error {
	return insertWaybill(ctx, ts.tx, wb)
}

func (ts *txStore) UpdateWaybill(ctx context.Context, wb waybill.Waybill) error {
	return updateWaybill(ctx, ts.tx, wb)
}

func (ts *txStore) DeleteWaybill(ctx context.Context, id waybill.WaybillID) error {
	return deleteWaybill(ctx, ts.tx, id)
}

func (ts *txStore) GetBlank(ctx context.Context, id waybill.BlankID) (waybill.Blank, error) {
	return getBlank(ctx, ts.tx, id)
}

func (ts *txStore) UpdateBlank(ctx context.Context, b waybill.Blank) error {
	return updateBlank(ctx, ts.tx, b)
}

// =============================================================================
// STOCK
// =============================================================================

// PutStockItem inserts or replaces a stock item.
func (s *Store) PutStockItem(ctx context.Context, item waybill.StockItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_items (id, name, balance) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, balance = excluded.balance
	`, item.ID, item.Name, item.Balance.String())
	if err != nil {
		return fmt.Errorf("failed to save stock item: %w", err)
	}
	return nil
}

// AddStockTransaction records a movement; an empty id gets a fresh uuid.
func (s *Store) AddStockTransaction(ctx context.Context, tx waybill.StockTransaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_transactions (id, tx_type, expense_reason, item_id, quantity, waybill_id, employee_id, date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID, string(tx.Type), nullString(string(tx.ExpenseReason)), tx.ItemID, tx.Quantity.String(),
		nullString(string(tx.WaybillID)), nullString(string(tx.EmployeeID)), tx.Date.String(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to save stock transaction: %w", err)
	}
	return tx.ID, nil
}

// =============================================================================
// SNAPSHOT (audit.SnapshotSource interface)
// =============================================================================

// Snapshot loads every table the audit reads, in one read transaction.
func (s *Store) Snapshot(ctx context.Context) (audit.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return audit.Snapshot{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	snap := audit.Snapshot{Season: s.season}

	if err := queryAll(ctx, sqlTx, `SELECT `+waybillColumns+` FROM waybills ORDER BY id`, func(row scanner) error {
		wb, err := scanWaybill(row)
		snap.Waybills = append(snap.Waybills, wb)
		return err
	}); err != nil {
		return audit.Snapshot{}, fmt.Errorf("waybills: %w", err)
	}
	if err := queryAll(ctx, sqlTx, `SELECT `+blankColumns+` FROM blanks ORDER BY id`, func(row scanner) error {
		b, err := scanBlank(row)
		snap.Blanks = append(snap.Blanks, b)
		return err
	}); err != nil {
		return audit.Snapshot{}, fmt.Errorf("blanks: %w", err)
	}
	if err := queryAll(ctx, sqlTx, `SELECT id, name, fuel_card_balance FROM employees ORDER BY id`, func(row scanner) error {
		e, err := scanEmployee(row)
		snap.Employees = append(snap.Employees, e)
		return err
	}); err != nil {
		return audit.Snapshot{}, fmt.Errorf("employees: %w", err)
	}
	if err := queryAll(ctx, sqlTx, `SELECT `+vehicleColumns+` FROM vehicles ORDER BY id`, func(row scanner) error {
		v, err := scanVehicle(row)
		snap.Vehicles = append(snap.Vehicles, v)
		return err
	}); err != nil {
		return audit.Snapshot{}, fmt.Errorf("vehicles: %w", err)
	}
	if err := queryAll(ctx, sqlTx, `SELECT id, name, balance FROM stock_items ORDER BY id`, func(row scanner) error {
		var (
			item    waybill.StockItem
			balance string
		)
		if err := row.Scan(&item.ID, &item.Name, &balance); err != nil {
			return err
		}
		var err error
		item.Balance, err = decimal.NewFromString(balance)
		snap.StockItems = append(snap.StockItems, item)
		return err
	}); err != nil {
		return audit.Snapshot{}, fmt.Errorf("stock items: %w", err)
	}
	if err := queryAll(ctx, sqlTx, `
		SELECT id, tx_type, expense_reason, item_id, quantity, waybill_id, employee_id, date
		FROM stock_transactions ORDER BY date, id
	`, func(row scanner) error {
		var (
			tx                            waybill.StockTransaction
			txType, quantity, date        string
			reason, waybillID, employeeID sql.NullString
		)
		if err := row.Scan(&tx.ID, &txType, &reason, &tx.ItemID, &quantity, &waybillID, &employeeID, &date); err != nil {
			return err
		}
		tx.Type = waybill.StockTxType(txType)
		tx.ExpenseReason = waybill.ExpenseReason(reason.String)
		tx.WaybillID = waybill.WaybillID(waybillID.String)
		tx.EmployeeID = waybill.EmployeeID(employeeID.String)
		var err error
		if tx.Quantity, err = decimal.NewFromString(quantity); err != nil {
			return err
		}
		if tx.Date, err = generic.ParseDate(date); err != nil {
			return err
		}
		snap.StockTransactions = append(snap.StockTransactions, tx)
		return nil
	}); err != nil {
		return audit.Snapshot{}, fmt.Errorf("stock transactions: %w", err)
	}

	return snap, nil
}

func queryAll(ctx context.Context, q querier, query string, each func(scanner) error) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Reset deletes all data (for testing).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"waybills", "blanks", "calendar_events", "vehicles", "employees", "stock_items", "stock_transactions"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (*decimal.Decimal, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &generic.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
