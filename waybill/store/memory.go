// Package store provides in-memory implementations of the waybill ports.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/waybill-engine/audit"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu     sync.RWMutex
	state  memoryState
	season generic.SeasonSettings
}

type memoryState struct {
	waybills   map[waybill.WaybillID]waybill.Waybill
	blanks     map[waybill.BlankID]waybill.Blank
	vehicles   map[waybill.VehicleID]waybill.Vehicle
	employees  map[waybill.EmployeeID]waybill.Employee
	stockItems map[waybill.StockItemID]waybill.StockItem
	stockTxs   []waybill.StockTransaction
	events     []generic.CalendarEvent
}

func NewMemory() *Memory {
	return &Memory{state: memoryState{
		waybills:   make(map[waybill.WaybillID]waybill.Waybill),
		blanks:     make(map[waybill.BlankID]waybill.Blank),
		vehicles:   make(map[waybill.VehicleID]waybill.Vehicle),
		employees:  make(map[waybill.EmployeeID]waybill.Employee),
		stockItems: make(map[waybill.StockItemID]waybill.StockItem),
	}}
}

var (
	_ waybill.TxRepository  = (*Memory)(nil)
	_ waybill.CalendarStore = (*Memory)(nil)
	_ waybill.BlankStore    = (*Memory)(nil)
	_ waybill.VehicleStore  = (*Memory)(nil)
	_ waybill.EmployeeStore = (*Memory)(nil)
	_ audit.SnapshotSource  = (*Memory)(nil)
)

// =============================================================================
// SEEDING - Reference data owned by other systems
// =============================================================================

func (m *Memory) PutVehicle(v waybill.Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.vehicles[v.ID] = v
}

func (m *Memory) PutEmployee(e waybill.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.employees[e.ID] = e
}

func (m *Memory) PutBlank(b waybill.Blank) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.blanks[b.ID] = b
}

func (m *Memory) PutStockItem(item waybill.StockItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.stockItems[item.ID] = item
}

func (m *Memory) AddStockTransaction(tx waybill.StockTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.stockTxs = append(m.state.stockTxs, tx)
}

func (m *Memory) AddCalendarEvents(events ...generic.CalendarEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.events = append(m.state.events, events...)
}

// SetSeason sets the season settings reported in snapshots.
func (m *Memory) SetSeason(s generic.SeasonSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.season = s
}

// =============================================================================
// COLLABORATOR PORTS
// =============================================================================

func (m *Memory) GetEvents(_ context.Context, year int) ([]generic.CalendarEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []generic.CalendarEvent
	for _, e := range m.state.events {
		if e.Date.Year() == year {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetAvailableBlanks returns the driver's issued blanks by series, then number.
func (m *Memory) GetAvailableBlanks(_ context.Context, driverID waybill.EmployeeID) ([]waybill.BlankRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []waybill.BlankRef
	for _, b := range m.state.blanks {
		if b.Status == waybill.BlankIssued && b.OwnerEmployeeID == driverID {
			out = append(out, b.Ref())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Series != out[j].Series {
			return out[i].Series < out[j].Series
		}
		return out[i].Number < out[j].Number
	})
	return out, nil
}

func (m *Memory) GetVehicle(_ context.Context, id waybill.VehicleID) (waybill.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.state.vehicles[id]
	if !ok {
		return waybill.Vehicle{}, &generic.NotFoundError{Entity: "vehicle", ID: string(id)}
	}
	return v, nil
}

func (m *Memory) GetEmployee(_ context.Context, id waybill.EmployeeID) (waybill.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.state.employees[id]
	if !ok {
		return waybill.Employee{}, &generic.NotFoundError{Entity: "employee", ID: string(id)}
	}
	return e, nil
}

// =============================================================================
// REPOSITORY
// =============================================================================

func (m *Memory) GetWaybill(_ context.Context, id waybill.WaybillID) (waybill.Waybill, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getWaybill(id)
}

func (m *Memory) InsertWaybill(_ context.Context, wb waybill.Waybill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.waybills[wb.ID] = wb
	return nil
}

func (m *Memory) UpdateWaybill(_ context.Context, wb waybill.Waybill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateWaybill(wb)
}

func (m *Memory) DeleteWaybill(_ context.Context, id waybill.WaybillID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteWaybill(id)
}

func (m *Memory) GetBlank(_ context.Context, id waybill.BlankID) (waybill.Blank, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getBlank(id)
}

func (m *Memory) UpdateBlank(_ context.Context, b waybill.Blank) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.updateBlank(b)
}

func (s *memoryState) getWaybill(id waybill.WaybillID) (waybill.Waybill, error) {
	wb, ok := s.waybills[id]
	if !ok {
		return waybill.Waybill{}, &generic.NotFoundError{Entity: "waybill", ID: string(id)}
	}
	return wb, nil
}

func (s *memoryState) updateWaybill(wb waybill.Waybill) error {
	if _, ok := s.waybills[wb.ID]; !ok {
		return &generic.NotFoundError{Entity: "waybill", ID: string(wb.ID)}
	}
	s.waybills[wb.ID] = wb
	return nil
}

func (s *memoryState) deleteWaybill(id waybill.WaybillID) error {
	if _, ok := s.waybills[id]; !ok {
		return &generic.NotFoundError{Entity: "waybill", ID: string(id)}
	}
	delete(s.waybills, id)
	return nil
}

func (s *memoryState) getBlank(id waybill.BlankID) (waybill.Blank, error) {
	b, ok := s.blanks[id]
	if !ok {
		return waybill.Blank{}, &generic.NotFoundError{Entity: "blank", ID: string(id)}
	}
	return b, nil
}

func (s *memoryState) updateBlank(b waybill.Blank) error {
	if _, ok := s.blanks[b.ID]; !ok {
		return &generic.NotFoundError{Entity: "blank", ID: string(b.ID)}
	}
	s.blanks[b.ID] = b
	return nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(waybill.Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := m.state.clone()
	if err := fn(&txView{state: &m.state}); err != nil {
		m.state = saved
		return err
	}
	return nil
}

func (s *memoryState) clone() memoryState {
	c := memoryState{
		waybills:   make(map[waybill.WaybillID]waybill.Waybill, len(s.waybills)),
		blanks:     make(map[waybill.BlankID]waybill.Blank, len(s.blanks)),
		vehicles:   s.vehicles,
		employees:  s.employees,
		stockItems: s.stockItems,
		stockTxs:   s.stockTxs,
		events:     s.events,
	}
	for k, v := range s.waybills {
		c.waybills[k] = v
	}
	for k, v := range s.blanks {
		c.blanks[k] = v
	}
	return c
}

// txView runs repository calls against state already locked by WithTx.
type txView struct {
	state *memoryState
}

func (tv *txView) GetWaybill(_ context.Context, id waybill.WaybillID) (waybill.Waybill, error) {
	return tv.state.getWaybill(id)
}

func (tv *txView) InsertWaybill(_ context.Context, wb waybill.Waybill) error {
	tv.state.waybills[wb.ID] = wb
	return nil
}

func (tv *txView) UpdateWaybill(_ context.Context, wb waybill.Waybill) error {
	return tv.state.updateWaybill(wb)
}

func (tv *txView) DeleteWaybill(_ context.Context, id waybill.WaybillID) error {
	return tv.state.deleteWaybill(id)
}

func (tv *txView) GetBlank(_ context.Context, id waybill.BlankID) (waybill.Blank, error) {
	return tv.state.getBlank(id)
}

func (tv *txView) UpdateBlank(_ context.Context, b waybill.Blank) error {
	return tv.state.updateBlank(b)
}

// =============================================================================
// SNAPSHOT - Everything the audit needs, in stable order
// =============================================================================

func (m *Memory) Snapshot(_ context.Context) (audit.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := audit.Snapshot{
		Season:            m.season,
		StockTransactions: append([]waybill.StockTransaction(nil), m.state.stockTxs...),
	}
	for _, wb := range m.state.waybills {
		snap.Waybills = append(snap.Waybills, wb)
	}
	for _, b := range m.state.blanks {
		snap.Blanks = append(snap.Blanks, b)
	}
	for _, v := range m.state.vehicles {
		snap.Vehicles = append(snap.Vehicles, v)
	}
	for _, e := range m.state.employees {
		snap.Employees = append(snap.Employees, e)
	}
	for _, item := range m.state.stockItems {
		snap.StockItems = append(snap.StockItems, item)
	}
	snap.Sort()
	return snap, nil
}
