/*
service.go - Status changes gated by both state machines

PURPOSE:
  The only path by which waybills are created, change status, or are
  deleted. Each operation validates the waybill transition and the blank
  move it causes, then writes both in one repository transaction.

BLANK FOLLOWS WAYBILL:
  create draft with blank    issued|available → reserved
  post                       reserved → used
  revert posted to draft     used → issued
  cancel / delete draft      reserved → issued

  A blank that is not in the expected 'from' status is still moved when the
  blank machine allows it from its actual status, directly or by passing
  through the expected 'from' status; otherwise the whole change is rejected.

EXAMPLE:
  svc := waybill.NewService(store)
  wb, err := svc.CreateWaybill(ctx, draft)
  wb, err = svc.ChangeStatus(ctx, wb.ID, waybill.StatusPosted, waybill.ModeDriver)
*/
package waybill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/warp/waybill-engine/generic"
)

// Service owns waybill status changes.
type Service struct {
	Repo  TxRepository
	Now   func() time.Time
	NewID func() WaybillID
}

// NewService wires a Service with the wall clock and uuid ids.
func NewService(repo TxRepository) *Service {
	return &Service{
		Repo:  repo,
		Now:   time.Now,
		NewID: func() WaybillID { return WaybillID(uuid.NewString()) },
	}
}

var _ Creator = (*Service)(nil)

// CreateWaybill persists draft as a new DRAFT waybill and reserves its blank.
func (s *Service) CreateWaybill(ctx context.Context, draft Draft) (Waybill, error) {
	if err := validateDraft(draft); err != nil {
		return Waybill{}, err
	}

	now := s.Now()
	wb := Waybill{
		ID:        s.NewID(),
		Status:    StatusDraft,
		Draft:     draft,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		if draft.BlankID != "" {
			blank, err := repo.GetBlank(ctx, draft.BlankID)
			if err != nil {
				return err
			}
			path, err := ReservePath(blank.Status)
			if err != nil {
				return err
			}
			for _, step := range path {
				if err := blank.Apply(step, wb.ID, draft.DriverID, now); err != nil {
					return err
				}
			}
			if err := repo.UpdateBlank(ctx, blank); err != nil {
				return err
			}
		}
		return repo.InsertWaybill(ctx, wb)
	})
	if err != nil {
		return Waybill{}, fmt.Errorf("%w: %w", generic.ErrCreateFailed, err)
	}
	return wb, nil
}

// ChangeStatus moves waybill id to status 'to' and its blank along with it.
func (s *Service) ChangeStatus(ctx context.Context, id WaybillID, to Status, mode ReviewMode) (Waybill, error) {
	var out Waybill
	err := s.Repo.WithTx(ctx, func(repo Repository) error {
		wb, err := repo.GetWaybill(ctx, id)
		if err != nil {
			return err
		}
		if err := ValidateTransition(wb.Status, to, mode); err != nil {
			return err
		}

		now := s.Now()
		if move, ok := BlankEffect(wb.Status, to); ok && wb.BlankID != "" {
			if err := moveBlank(ctx, repo, wb, move, now); err != nil {
				return err
			}
		}

		wb.Status = to
		wb.UpdatedAt = now
		if err := repo.UpdateWaybill(ctx, wb); err != nil {
			return err
		}
		out = wb
		return nil
	})
	return out, err
}

// Delete removes a DRAFT waybill and releases its blank.
func (s *Service) Delete(ctx context.Context, id WaybillID) error {
	return s.Repo.WithTx(ctx, func(repo Repository) error {
		wb, err := repo.GetWaybill(ctx, id)
		if err != nil {
			return err
		}
		if wb.Status != StatusDraft {
			return &generic.TransitionError{Entity: "waybill", From: string(wb.Status), To: "DELETED", Reason: "only drafts can be deleted"}
		}
		if wb.BlankID != "" {
			move := BlankMove{From: BlankReserved, To: BlankIssued}
			if err := moveBlank(ctx, repo, wb, move, s.Now()); err != nil {
				return err
			}
		}
		return repo.DeleteWaybill(ctx, id)
	})
}

func moveBlank(ctx context.Context, repo Repository, wb Waybill, move BlankMove, at time.Time) error {
	blank, err := repo.GetBlank(ctx, wb.BlankID)
	if err != nil {
		return err
	}
	// A reverted draft holds an issued blank; posting it again re-reserves first.
	if !CanTransitionBlank(blank.Status, move.To) && CanTransitionBlank(blank.Status, move.From) {
		if err := blank.Apply(move.From, wb.ID, wb.DriverID, at); err != nil {
			return err
		}
	}
	if err := blank.Apply(move.To, wb.ID, wb.DriverID, at); err != nil {
		return fmt.Errorf("blank %s %s-%d: %w", blank.ID, blank.Series, blank.Number, err)
	}
	return repo.UpdateBlank(ctx, blank)
}

func validateDraft(d Draft) error {
	if d.VehicleID == "" || d.DriverID == "" {
		return generic.NewContractViolation("waybill_draft", "vehicle and driver are required")
	}
	if d.ValidTo.Before(d.ValidFrom) {
		return generic.NewContractViolation("waybill_draft", "valid to %s before valid from %s", d.ValidTo, d.ValidFrom)
	}
	for _, r := range d.Routes {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
