package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/stripe-ledger-recon/internal/domain/records"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	store, err := NewSQLiteStorage(context.Background(), filepath.Join(t.TempDir(), "recon.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeSnapshot(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func testSnapshot() *Snapshot {
	return &Snapshot{
		StripeTransactions: []records.StripeTransaction{
			{ID: "ch_2", PaymentIntentID: records.Str("pi_2"), Amount: "50.00", Status: records.Str("Paid")},
			{ID: "ch_1", PaymentIntentID: records.Str("pi_1"), Amount: "100.00", Status: records.Str("Paid"), Captured: records.Str("true")},
			{ID: "ch_3", Amount: "10.00", Status: records.Str("Failed")},
		},
		StripeBalanceEvents: []records.StripeBalanceEvent{
			{BalanceTransactionID: "txn_1", Net: records.Str("97.00"), Currency: records.Str("USD")},
		},
		LedgerTransactions: []records.LedgerTransaction{
			{ID: "L1", LedgerID: records.Str("LG1"), Metadata: records.LedgerMetadata{
				LatestStripeChargeID: records.Str("ch_1"), StripeBalanceTrxID: records.Str("txn_1"),
			}},
			{ID: "L2", Status: records.Str("SUCCEEDED"), Metadata: records.LedgerMetadata{PaymentID: records.Str("  ")}},
			{ID: "L3", Metadata: records.LedgerMetadata{Type: records.Str("PAY_IN_STARTED")}},
			{ID: "L4", Metadata: records.LedgerMetadata{Type: records.Str("PAYOUT")}},
		},
		LedgerAccounts: []records.LedgerAccount{
			{ID: "A1", LedgerID: records.Str("LG1"), Name: "Stripe Revenue", Currency: records.Str("USD"), PostedBalance: records.Str("97.00")},
			{ID: "A2", LedgerID: records.Str("LG1"), Name: "Operating Cash", Currency: records.Str("USD"), PostedBalance: records.Str("5")},
		},
	}
}

func TestStorage_LoadStripeTransactions(t *testing.T) {
	// Arrange
	store := newTestStorage(t)
	ctx := context.Background()
	_, err := store.ImportSnapshot(ctx, testSnapshot(), false)
	require.NoError(t, err)

	// Act
	paid, err := store.LoadStripeTransactions(ctx, "Paid")
	require.NoError(t, err)
	all, err := store.LoadStripeTransactions(ctx, "")
	require.NoError(t, err)

	// Assert
	require.Len(t, paid, 2)
	assert.Equal(t, "ch_2", paid[0].ID, "file order is kept")
	assert.Equal(t, "ch_1", paid[1].ID)
	assert.Equal(t, "true", *paid[1].Captured)
	assert.Nil(t, paid[0].Captured)
	assert.Len(t, all, 3)
}

func TestStorage_LoadLedgerTransactions_Filters(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_, err := store.ImportSnapshot(ctx, testSnapshot(), false)
	require.NoError(t, err)

	started, err := store.LoadLedgerTransactions(ctx, records.StartedCandidates())
	require.NoError(t, err)
	succeeded, err := store.LoadLedgerTransactions(ctx, records.SucceededCandidates())
	require.NoError(t, err)
	all, err := store.LoadLedgerTransactions(ctx, records.LedgerFilter{})
	require.NoError(t, err)

	assert.Equal(t, []string{"L1", "L3"}, ledgerIDs(started))
	assert.Equal(t, []string{"L2"}, ledgerIDs(succeeded))
	assert.Len(t, all, 4)

	// SQL and in-memory filtering agree
	snap := testSnapshot()
	var inMemory []string
	for _, tx := range snap.LedgerTransactions {
		if records.StartedCandidates().Matches(tx) {
			inMemory = append(inMemory, tx.ID)
		}
	}
	assert.Equal(t, inMemory, ledgerIDs(started))
	assert.Equal(t, "txn_1", *started[0].Metadata.StripeBalanceTrxID)
}

func ledgerIDs(txs []records.LedgerTransaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.ID
	}
	return out
}

func TestStorage_LoadLedgerAccounts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_, err := store.ImportSnapshot(ctx, testSnapshot(), false)
	require.NoError(t, err)

	accounts, err := store.LoadLedgerAccounts(ctx, records.DefaultAccountAllowlist)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, "Stripe Revenue", accounts[0].Name)
	assert.Equal(t, "97.00", *accounts[0].PostedBalance)

	none, err := store.LoadLedgerAccounts(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestStorage_LoadStripeBalanceEvents(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	_, err := store.ImportSnapshot(ctx, testSnapshot(), false)
	require.NoError(t, err)

	events, err := store.LoadStripeBalanceEvents(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "97.00", *events[0].Net)
	assert.Nil(t, events[0].Gross)
}

func TestStorage_ImportSnapshot_UpsertAndReplace(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	stats, err := store.ImportSnapshot(ctx, testSnapshot(), false)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.StripeTransactions)
	assert.Equal(t, 4, stats.LedgerTransactions)

	update := &Snapshot{StripeTransactions: []records.StripeTransaction{
		{ID: "ch_2", Amount: "55.00", Status: records.Str("Paid")},
		{ID: "ch_9", Amount: "1.00", Status: records.Str("Paid")},
	}}
	_, err = store.ImportSnapshot(ctx, update, false)
	require.NoError(t, err)

	paid, err := store.LoadStripeTransactions(ctx, "Paid")
	require.NoError(t, err)
	require.Len(t, paid, 3)
	assert.Equal(t, "ch_2", paid[0].ID, "upsert keeps the original position")
	assert.Equal(t, "55.00", paid[0].Amount)
	assert.Equal(t, "ch_9", paid[2].ID, "new rows go last")

	_, err = store.ImportSnapshot(ctx, update, true)
	require.NoError(t, err)
	all, err := store.LoadLedgerTransactions(ctx, records.LedgerFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLoadSnapshotFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	writeSnapshot(t, path, `
stripe_transactions:
  - id: ch_1
    payment_intent_id: pi_1
    amount: "100.00"
    status: Paid
ledger_transactions:
  - id: L1
    ledger_id: LG1
    amounts:
      usd: {amount: "100.00", currency: USD}
    metadata:
      latestStripeChargeId: ch_1
      stripeBalanceTrxId: txn_1
`)

	snap, err := LoadSnapshotFile(path)
	require.NoError(t, err)
	require.Len(t, snap.StripeTransactions, 1)
	assert.Equal(t, "pi_1", *snap.StripeTransactions[0].PaymentIntentID)
	require.Len(t, snap.LedgerTransactions, 1)
	assert.Equal(t, "ch_1", *snap.LedgerTransactions[0].Metadata.LatestStripeChargeID)
	assert.Equal(t, "100.00", *snap.LedgerTransactions[0].Amounts.USD.Amount)

	_, err = LoadSnapshotFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	pg := &Storage{driver: "postgres"}
	lite := &Storage{driver: "sqlite3"}

	q := "SELECT * FROM t WHERE a = ? AND b IN (?, ?)"
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
	assert.Equal(t, "(?, ?, ?)", inClause(3))
}
