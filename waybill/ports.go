/*
ports.go - Interfaces to the collaborators around the engine

PURPOSE:
  The engine does no I/O of its own. Route parsing, calendar events, blanks,
  reference data and waybill persistence all come through these interfaces.
  The batch engine and the audit take plain values; only the status service
  and the batch runner call into a store.

IMPLEMENTATIONS:
  - waybill/store/memory.go: In-memory, for tests and dev
  - store/sqlite/sqlite.go:  SQLite

SEE ALSO:
  - service.go: Uses Repository under a transaction
  - batch/engine.go: Uses Creator once per group
*/
package waybill

import (
	"context"

	"github.com/warp/waybill-engine/generic"
)

// =============================================================================
// CONSUMED COLLABORATORS
// =============================================================================

// RouteImporter turns a trip report into route segments. Date formats,
// autocorrection and de-duplication are the importer's concern.
type RouteImporter interface {
	ParseTripFile(ctx context.Context, data []byte) ([]RouteSegment, error)
}

// CalendarStore serves the production calendar of a year.
type CalendarStore interface {
	GetEvents(ctx context.Context, year int) ([]generic.CalendarEvent, error)
}

// BlankStore serves the blanks a driver can attach to new waybills: status
// issued, ordered by series then number.
type BlankStore interface {
	GetAvailableBlanks(ctx context.Context, driverID EmployeeID) ([]BlankRef, error)
}

// Creator persists a new waybill. The batch engine calls it once per group.
type Creator interface {
	CreateWaybill(ctx context.Context, draft Draft) (Waybill, error)
}

// VehicleStore is a read-only lookup of vehicles.
type VehicleStore interface {
	GetVehicle(ctx context.Context, id VehicleID) (Vehicle, error)
}

// EmployeeStore is a read-only lookup of employees.
type EmployeeStore interface {
	GetEmployee(ctx context.Context, id EmployeeID) (Employee, error)
}

// =============================================================================
// REPOSITORY - Persistence behind the status service
// =============================================================================

// Repository is the low-level waybill/blank persistence used by Service.
type Repository interface {
	GetWaybill(ctx context.Context, id WaybillID) (Waybill, error)
	InsertWaybill(ctx context.Context, wb Waybill) error
	UpdateWaybill(ctx context.Context, wb Waybill) error
	DeleteWaybill(ctx context.Context, id WaybillID) error

	GetBlank(ctx context.Context, id BlankID) (Blank, error)
	UpdateBlank(ctx context.Context, b Blank) error
}

// TxRepository runs fn atomically: if fn returns an error nothing it wrote
// is kept.
type TxRepository interface {
	Repository
	WithTx(ctx context.Context, fn func(Repository) error) error
}
