package waybill_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

var allStatuses = []waybill.Status{
	waybill.StatusDraft, waybill.StatusSubmitted, waybill.StatusPosted, waybill.StatusCancelled,
}

func TestCanTransition_Table(t *testing.T) {
	tests := []struct {
		from, to waybill.Status
		mode     waybill.ReviewMode
		want     bool
	}{
		{waybill.StatusDraft, waybill.StatusSubmitted, waybill.ModeDriver, true},
		{waybill.StatusDraft, waybill.StatusPosted, waybill.ModeDriver, true},
		{waybill.StatusDraft, waybill.StatusCancelled, waybill.ModeDriver, true},
		{waybill.StatusSubmitted, waybill.StatusPosted, waybill.ModeDriver, true},
		{waybill.StatusSubmitted, waybill.StatusDraft, waybill.ModeDriver, true},
		{waybill.StatusSubmitted, waybill.StatusCancelled, waybill.ModeDriver, false},
		{waybill.StatusSubmitted, waybill.StatusCancelled, waybill.ModeCentral, true},
		{waybill.StatusPosted, waybill.StatusDraft, waybill.ModeDriver, true},
		{waybill.StatusPosted, waybill.StatusCancelled, waybill.ModeCentral, false},
		{waybill.StatusPosted, waybill.StatusSubmitted, waybill.ModeCentral, false},
		{waybill.StatusDraft, waybill.StatusDraft, waybill.ModeDriver, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to)+"/"+string(tt.mode), func(t *testing.T) {
			assert.Equal(t, tt.want, waybill.CanTransition(tt.from, tt.to, tt.mode))
		})
	}
}

func TestCanTransition_CancelledIsTerminal(t *testing.T) {
	for _, mode := range []waybill.ReviewMode{waybill.ModeDriver, waybill.ModeCentral} {
		for _, to := range allStatuses {
			assert.False(t, waybill.CanTransition(waybill.StatusCancelled, to, mode), "CANCELLED -> %s", to)
		}
	}
	assert.True(t, waybill.StatusCancelled.IsTerminal())
	assert.False(t, waybill.StatusPosted.IsTerminal())
}

func TestValidateTransition_MessageNamesBothStatuses(t *testing.T) {
	err := waybill.ValidateTransition(waybill.StatusSubmitted, waybill.StatusCancelled, waybill.ModeDriver)
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInvalidTransition))
	assert.Contains(t, err.Error(), "SUBMITTED → CANCELLED")
	assert.Contains(t, err.Error(), "central")

	var te *generic.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "waybill", te.Entity)
}

func TestAllowedTransitions_DependsOnMode(t *testing.T) {
	assert.ElementsMatch(t,
		[]waybill.Status{waybill.StatusPosted, waybill.StatusDraft},
		waybill.AllowedTransitions(waybill.StatusSubmitted, waybill.ModeDriver))
	assert.ElementsMatch(t,
		[]waybill.Status{waybill.StatusPosted, waybill.StatusDraft, waybill.StatusCancelled},
		waybill.AllowedTransitions(waybill.StatusSubmitted, waybill.ModeCentral))
	assert.Empty(t, waybill.AllowedTransitions(waybill.StatusCancelled, waybill.ModeCentral))
}

func TestParseReviewMode(t *testing.T) {
	mode, err := waybill.ParseReviewMode("")
	require.NoError(t, err)
	assert.Equal(t, waybill.ModeDriver, mode)

	mode, err = waybill.ParseReviewMode("central")
	require.NoError(t, err)
	assert.Equal(t, waybill.ModeCentral, mode)

	_, err = waybill.ParseReviewMode("chief")
	assert.ErrorIs(t, err, generic.ErrContractViolation)
}

func TestBlankEffect(t *testing.T) {
	move, ok := waybill.BlankEffect(waybill.StatusDraft, waybill.StatusPosted)
	require.True(t, ok)
	assert.Equal(t, waybill.BlankMove{From: waybill.BlankReserved, To: waybill.BlankUsed}, move)

	move, ok = waybill.BlankEffect(waybill.StatusSubmitted, waybill.StatusPosted)
	require.True(t, ok)
	assert.Equal(t, waybill.BlankUsed, move.To)

	move, ok = waybill.BlankEffect(waybill.StatusPosted, waybill.StatusDraft)
	require.True(t, ok)
	assert.Equal(t, waybill.BlankMove{From: waybill.BlankUsed, To: waybill.BlankIssued}, move)

	move, ok = waybill.BlankEffect(waybill.StatusSubmitted, waybill.StatusCancelled)
	require.True(t, ok)
	assert.Equal(t, waybill.BlankMove{From: waybill.BlankReserved, To: waybill.BlankIssued}, move)

	_, ok = waybill.BlankEffect(waybill.StatusDraft, waybill.StatusSubmitted)
	assert.False(t, ok, "submitting leaves the blank reserved")
}

// Every blank move a legal waybill transition causes must itself be legal.
func TestBlankEffect_AlwaysLegalForBlankMachine(t *testing.T) {
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			if !waybill.CanTransition(from, to, waybill.ModeCentral) {
				continue
			}
			if move, ok := waybill.BlankEffect(from, to); ok {
				assert.True(t, waybill.CanTransitionBlank(move.From, move.To), "%s -> %s causes %v", from, to, move)
			}
		}
	}
}
