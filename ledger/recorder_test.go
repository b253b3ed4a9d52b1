package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nadsa/loyalty-engine/docstore/memory"
	"github.com/nadsa/loyalty-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestEngine(t *testing.T) (*ledger.Recorder, *ledger.Aggregator, *ledger.Ledger) {
	t.Helper()
	entries := ledger.New(memory.New())
	recorder := ledger.NewRecorder(entries, ledger.NewLinearPolicy(ledger.DefaultRate))
	aggregator := ledger.NewAggregator(entries)
	return recorder, aggregator, entries
}

func clientActor(id string) ledger.Actor {
	return ledger.Actor{ID: id, Email: id + "@example.com", Role: ledger.RoleClient}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestRecorder_RejectsInvalidAmounts(t *testing.T) {
	// GIVEN: A recorder over an empty ledger
	// WHEN: Adding orders with malformed amounts
	// THEN: Each fails with ErrValidation and nothing is appended

	recorder, _, entries := newTestEngine(t)
	ctx := context.Background()

	for _, raw := range []string{"", "   ", "abc", "12abc", "0", "-50", "-0.01"} {
		_, err := recorder.AddOrder(ctx, "c-1", raw, clientActor("c-1"))
		assert.ErrorIs(t, err, ledger.ErrValidation, "amount %q should be rejected", raw)
	}

	history, err := entries.ByClient(ctx, "c-1")
	require.NoError(t, err)
	assert.Empty(t, history, "rejected orders must leave no side effect")
}

func TestRecorder_RejectsEmptyClientID(t *testing.T) {
	recorder, _, _ := newTestEngine(t)

	_, err := recorder.AddOrder(context.Background(), "", "100", clientActor("c-1"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

// =============================================================================
// DERIVATION TESTS
// =============================================================================

func TestRecorder_DerivesPointsAndDiscountAtInsert(t *testing.T) {
	// GIVEN: The default linear policy with RATE=1.3
	// WHEN: A client adds an order with amount 1500
	// THEN: The credit entry has points=15 and discount=20

	recorder, _, entries := newTestEngine(t)
	ctx := context.Background()

	id, err := recorder.AddOrder(ctx, "c-1", "1500", clientActor("c-1"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	history, err := entries.ByClient(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, history, 1)

	entry := history[0]
	assert.Equal(t, ledger.KindCredit, entry.Kind)
	assert.Equal(t, int64(1500), entry.Amount)
	assert.Equal(t, int64(15), entry.Points)
	assert.Equal(t, int64(20), entry.Discount)
	assert.Equal(t, "c-1@example.com", entry.ClientEmail)
	assert.Equal(t, ledger.RoleClient, entry.RecordedRole)
}

func TestRecorder_FloorsFractionalAmounts(t *testing.T) {
	recorder, _, entries := newTestEngine(t)
	ctx := context.Background()

	_, err := recorder.AddOrder(ctx, "c-1", "199.99", clientActor("c-1"))
	require.NoError(t, err)

	history, err := entries.ByClient(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(199), history[0].Amount)
	assert.Equal(t, int64(1), history[0].Points)
}

func TestRecorder_SubUnitAmountIsValidZeroCredit(t *testing.T) {
	// GIVEN: rawAmount 0.5 (positive, floors to 0)
	// WHEN: Recording the order
	// THEN: It is accepted as a zero-earning credit, matching legacy behavior

	recorder, _, entries := newTestEngine(t)
	ctx := context.Background()

	_, err := recorder.AddOrder(ctx, "c-1", "0.5", clientActor("c-1"))
	require.NoError(t, err)

	history, err := entries.ByClient(ctx, "c-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(0), history[0].Amount)
	assert.Equal(t, int64(0), history[0].Points)
}

func TestRecorder_TimestampsWithClock(t *testing.T) {
	recorder, _, entries := newTestEngine(t)
	fixed := time.Date(2026, time.March, 10, 14, 30, 0, 0, time.Local)
	recorder.WithClock(func() time.Time { return fixed })

	_, err := recorder.AddOrder(context.Background(), "c-1", "300", clientActor("c-1"))
	require.NoError(t, err)

	history, err := entries.ByClient(context.Background(), "c-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].CreatedAt.Equal(fixed))
}
