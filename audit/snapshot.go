// Package audit checks cross-entity consistency of waybills, blanks, stock
// and fuel cards. It only reads.
package audit

import (
	"context"
	"sort"

	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

// Snapshot is the data one audit runs over.
type Snapshot struct {
	Waybills          []waybill.Waybill          `json:"waybills"`
	Blanks            []waybill.Blank            `json:"blanks"`
	Employees         []waybill.Employee         `json:"employees"`
	Vehicles          []waybill.Vehicle          `json:"vehicles"`
	StockItems        []waybill.StockItem        `json:"stock_items"`
	StockTransactions []waybill.StockTransaction `json:"stock_transactions"`

	// Season enables the fuel plan recheck. Nil skips it.
	Season generic.SeasonSettings `json:"-"`
}

// SnapshotSource loads a snapshot from storage.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (Snapshot, error)
}

// Sort orders every collection by id (transactions by date, then id) so
// that reports are stable.
func (s *Snapshot) Sort() {
	sort.Slice(s.Waybills, func(i, j int) bool { return s.Waybills[i].ID < s.Waybills[j].ID })
	sort.Slice(s.Blanks, func(i, j int) bool { return s.Blanks[i].ID < s.Blanks[j].ID })
	sort.Slice(s.Employees, func(i, j int) bool { return s.Employees[i].ID < s.Employees[j].ID })
	sort.Slice(s.Vehicles, func(i, j int) bool { return s.Vehicles[i].ID < s.Vehicles[j].ID })
	sort.Slice(s.StockItems, func(i, j int) bool { return s.StockItems[i].ID < s.StockItems[j].ID })
	sort.SliceStable(s.StockTransactions, func(i, j int) bool {
		a, b := s.StockTransactions[i], s.StockTransactions[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.ID < b.ID
	})
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Waybills:          append([]waybill.Waybill(nil), s.Waybills...),
		Blanks:            append([]waybill.Blank(nil), s.Blanks...),
		Employees:         append([]waybill.Employee(nil), s.Employees...),
		Vehicles:          append([]waybill.Vehicle(nil), s.Vehicles...),
		StockItems:        append([]waybill.StockItem(nil), s.StockItems...),
		StockTransactions: append([]waybill.StockTransaction(nil), s.StockTransactions...),
		Season:            s.Season,
	}
}

// index gives the checker id lookups over a snapshot.
type index struct {
	waybills   map[waybill.WaybillID]waybill.Waybill
	blanks     map[waybill.BlankID]waybill.Blank
	employees  map[waybill.EmployeeID]waybill.Employee
	vehicles   map[waybill.VehicleID]waybill.Vehicle
	stockItems map[waybill.StockItemID]waybill.StockItem
}

func newIndex(s Snapshot) index {
	ix := index{
		waybills:   make(map[waybill.WaybillID]waybill.Waybill, len(s.Waybills)),
		blanks:     make(map[waybill.BlankID]waybill.Blank, len(s.Blanks)),
		employees:  make(map[waybill.EmployeeID]waybill.Employee, len(s.Employees)),
		vehicles:   make(map[waybill.VehicleID]waybill.Vehicle, len(s.Vehicles)),
		stockItems: make(map[waybill.StockItemID]waybill.StockItem, len(s.StockItems)),
	}
	for _, wb := range s.Waybills {
		ix.waybills[wb.ID] = wb
	}
	for _, b := range s.Blanks {
		ix.blanks[b.ID] = b
	}
	for _, e := range s.Employees {
		ix.employees[e.ID] = e
	}
	for _, v := range s.Vehicles {
		ix.vehicles[v.ID] = v
	}
	for _, item := range s.StockItems {
		ix.stockItems[item.ID] = item
	}
	return ix
}
