package waybill_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
	"github.com/warp/waybill-engine/waybill/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newService(t *testing.T, blanks ...waybill.Blank) (*waybill.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	for _, b := range blanks {
		mem.PutBlank(b)
	}
	svc := waybill.NewService(mem)
	svc.Now = func() time.Time { return time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC) }
	return svc, mem
}

func draftWithBlank(blank waybill.BlankID) waybill.Draft {
	return waybill.Draft{
		ValidFrom: generic.MustParseDate("2024-02-10"),
		ValidTo:   generic.MustParseDate("2024-02-10"),
		VehicleID: "veh",
		DriverID:  "drv",
		BlankID:   blank,
	}
}

func issued(id waybill.BlankID, number int64) waybill.Blank {
	return waybill.Blank{ID: id, Series: "AA", Number: number, Status: waybill.BlankIssued, OwnerEmployeeID: "drv"}
}

func blankStatus(t *testing.T, mem *store.Memory, id waybill.BlankID) waybill.BlankStatus {
	t.Helper()
	b, err := mem.GetBlank(context.Background(), id)
	require.NoError(t, err)
	return b.Status
}

// =============================================================================
// CREATE
// =============================================================================

func TestService_CreateReservesBlank(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t, issued("b1", 1))

	wb, err := svc.CreateWaybill(ctx, draftWithBlank("b1"))

	require.NoError(t, err)
	assert.Equal(t, waybill.StatusDraft, wb.Status)
	assert.NotEmpty(t, wb.ID)

	b, err := mem.GetBlank(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, waybill.BlankReserved, b.Status)
	assert.Equal(t, wb.ID, b.ReservedByWaybillID)
}

func TestService_CreateWithUsedBlankRollsBack(t *testing.T) {
	ctx := context.Background()
	used := issued("b1", 1)
	used.Status = waybill.BlankUsed
	svc, mem := newService(t, used)
	svc.NewID = func() waybill.WaybillID { return "wb-x" }

	_, err := svc.CreateWaybill(ctx, draftWithBlank("b1"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrCreateFailed))
	assert.True(t, errors.Is(err, generic.ErrInvalidTransition))
	assert.Equal(t, waybill.BlankUsed, blankStatus(t, mem, "b1"))

	_, err = mem.GetWaybill(ctx, "wb-x")
	assert.True(t, generic.IsNotFound(err), "no waybill is written when the blank move fails")
}

func TestService_CreateRejectsInvalidDraft(t *testing.T) {
	svc, _ := newService(t)
	d := draftWithBlank("")
	d.ValidTo = generic.MustParseDate("2024-02-09")

	_, err := svc.CreateWaybill(context.Background(), d)

	assert.ErrorIs(t, err, generic.ErrContractViolation)
}

// =============================================================================
// STATUS CHANGES
// =============================================================================

func TestService_PostRevertRepost(t *testing.T) {
	// GIVEN: a draft holding blank b1
	// WHEN: posted, reverted to draft, then posted again
	// THEN: the blank goes reserved -> used -> issued -> used

	ctx := context.Background()
	svc, mem := newService(t, issued("b1", 1))
	wb, err := svc.CreateWaybill(ctx, draftWithBlank("b1"))
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, wb.ID, waybill.StatusPosted, waybill.ModeDriver)
	require.NoError(t, err)
	assert.Equal(t, waybill.BlankUsed, blankStatus(t, mem, "b1"))

	_, err = svc.ChangeStatus(ctx, wb.ID, waybill.StatusDraft, waybill.ModeDriver)
	require.NoError(t, err)
	assert.Equal(t, waybill.BlankIssued, blankStatus(t, mem, "b1"))

	got, err := svc.ChangeStatus(ctx, wb.ID, waybill.StatusPosted, waybill.ModeDriver)
	require.NoError(t, err)
	assert.Equal(t, waybill.StatusPosted, got.Status)
	assert.Equal(t, waybill.BlankUsed, blankStatus(t, mem, "b1"))
}

func TestService_CancelSubmittedNeedsCentralMode(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t, issued("b1", 1))
	wb, err := svc.CreateWaybill(ctx, draftWithBlank("b1"))
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, wb.ID, waybill.StatusSubmitted, waybill.ModeCentral)
	require.NoError(t, err)

	_, err = svc.ChangeStatus(ctx, wb.ID, waybill.StatusCancelled, waybill.ModeDriver)
	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
	assert.Equal(t, waybill.BlankReserved, blankStatus(t, mem, "b1"))

	got, err := svc.ChangeStatus(ctx, wb.ID, waybill.StatusCancelled, waybill.ModeCentral)
	require.NoError(t, err)
	assert.Equal(t, waybill.StatusCancelled, got.Status)
	assert.Equal(t, waybill.BlankIssued, blankStatus(t, mem, "b1"))
}

func TestService_SpoiledBlankBlocksPosting(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t, issued("b1", 1))
	wb, err := svc.CreateWaybill(ctx, draftWithBlank("b1"))
	require.NoError(t, err)

	b, err := mem.GetBlank(ctx, "b1")
	require.NoError(t, err)
	b.Status = waybill.BlankSpoiled
	require.NoError(t, mem.UpdateBlank(ctx, b))

	_, err = svc.ChangeStatus(ctx, wb.ID, waybill.StatusPosted, waybill.ModeDriver)
	require.Error(t, err)

	got, err := mem.GetWaybill(ctx, wb.ID)
	require.NoError(t, err)
	assert.Equal(t, waybill.StatusDraft, got.Status, "waybill status is rolled back with the blank")
}

func TestService_ChangeStatusUnknownWaybill(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.ChangeStatus(context.Background(), "nope", waybill.StatusPosted, waybill.ModeDriver)
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// DELETE
// =============================================================================

func TestService_DeleteDraftReleasesBlank(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService(t, issued("b1", 1))
	wb, err := svc.CreateWaybill(ctx, draftWithBlank("b1"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, wb.ID))

	assert.Equal(t, waybill.BlankIssued, blankStatus(t, mem, "b1"))
	_, err = mem.GetWaybill(ctx, wb.ID)
	assert.True(t, generic.IsNotFound(err))
}

func TestService_DeletePostedRejected(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, issued("b1", 1))
	wb, err := svc.CreateWaybill(ctx, draftWithBlank("b1"))
	require.NoError(t, err)
	_, err = svc.ChangeStatus(ctx, wb.ID, waybill.StatusPosted, waybill.ModeDriver)
	require.NoError(t, err)

	err = svc.Delete(ctx, wb.ID)

	assert.ErrorIs(t, err, generic.ErrInvalidTransition)
}
