package ingest_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tioga/tax-ledger/ingest"
	"github.com/tioga/tax-ledger/store/sqlite"
	"github.com/tioga/tax-ledger/tax"
)

func newTestPipeline(t *testing.T) (*ingest.Pipeline, *sqlite.Store) {
	store, err := sqlite.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ledger := tax.NewLedger(store, tax.NewValidator(tax.NewCalculator(defaultIssue)))
	return ingest.NewPipeline(store, ledger, zerolog.Nop()), store
}

func seedPipelineParcel(t *testing.T, store *sqlite.Store) {
	_, err := store.ImportParcels(context.Background(), []tax.Parcel{{
		ID:              "P-010",
		OwnerName:       "John Smith",
		PropertyAddress: "10 Main St",
		MailingAddress:  "10 Main St",
		BillNumber:      "B-010",
		AssessedValue:   tax.Dollars("30000"),
		FaceAmount:      tax.Dollars("450.00"),
		DiscountAmount:  tax.Dollars("441.00"),
		PenaltyAmount:   tax.Dollars("495.00"),
		TaxType:         tax.TaxRealEstate,
		BillIssueDate:   defaultIssue,
		Status:          tax.StatusUnpaid,
	}})
	require.NoError(t, err)
}

func TestPipeline_Process_AcceptedPayment(t *testing.T) {
	pipeline, store := newTestPipeline(t)
	ctx := context.Background()
	seedPipelineParcel(t, store)

	out, err := pipeline.Process(ctx, ingest.Candidate{
		ParcelID:     "P-010",
		Amount:       "441.00",
		PostmarkDate: "2025-04-20",
		CheckNumber:  "1001",
	}, false)
	require.NoError(t, err)

	assert.True(t, out.Validation.Accepted)
	assert.False(t, out.DuplicateSuspected)
	assert.Greater(t, int64(out.TransactionID), int64(0))
}

func TestPipeline_Process_RejectionStillRecorded(t *testing.T) {
	// A validation rejection is a recorded outcome, not a pipeline error.

	pipeline, store := newTestPipeline(t)
	ctx := context.Background()
	seedPipelineParcel(t, store)

	out, err := pipeline.Process(ctx, ingest.Candidate{
		ParcelID:     "P-010",
		Amount:       "440.99",
		PostmarkDate: "2025-04-20",
		CheckNumber:  "1001",
	}, false)
	require.NoError(t, err)

	assert.False(t, out.Validation.Accepted)
	assert.Equal(t, tax.RejectedUnder, out.Validation.Code)

	got, err := store.GetTransaction(ctx, out.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, tax.TxRejectedPayment, got.Type)
}

func TestPipeline_Process_DuplicateFlagged(t *testing.T) {
	// GIVEN: A recorded check payment
	// WHEN: The same parcel, check number, and amount arrive again
	// THEN: The candidate is flagged and not recorded unless forced

	pipeline, store := newTestPipeline(t)
	ctx := context.Background()
	seedPipelineParcel(t, store)

	c := ingest.Candidate{
		ParcelID:     "P-010",
		Amount:       "441.00",
		PostmarkDate: "2025-04-20",
		CheckNumber:  "1001",
	}

	first, err := pipeline.Process(ctx, c, false)
	require.NoError(t, err)
	require.True(t, first.Validation.Accepted)

	second, err := pipeline.Process(ctx, c, false)
	require.NoError(t, err)
	assert.True(t, second.DuplicateSuspected)
	assert.Zero(t, second.TransactionID, "flagged candidate is not recorded")

	txs, err := store.TransactionsForParcel(ctx, "P-010")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestPipeline_Process_CashNeverFlaggedDuplicate(t *testing.T) {
	pipeline, store := newTestPipeline(t)
	ctx := context.Background()
	seedPipelineParcel(t, store)

	dup, err := pipeline.CheckDuplicate(ctx, "P-010", "", tax.Dollars("441.00"))
	require.NoError(t, err)
	assert.False(t, dup, "cash payments carry no check number to match on")
}

func TestPipeline_Process_BadInput(t *testing.T) {
	pipeline, _ := newTestPipeline(t)
	ctx := context.Background()

	_, err := pipeline.Process(ctx, ingest.Candidate{
		Amount:       "441.00",
		PostmarkDate: "2025-04-20",
	}, false)
	assert.Error(t, err, "missing parcel id")

	_, err = pipeline.Process(ctx, ingest.Candidate{
		ParcelID:     "P-010",
		Amount:       "four hundred",
		PostmarkDate: "2025-04-20",
	}, false)
	assert.Error(t, err, "unparseable amount")

	_, err = pipeline.Process(ctx, ingest.Candidate{
		ParcelID:     "P-010",
		Amount:       "441.00",
		PostmarkDate: "04/20/2025",
	}, false)
	assert.Error(t, err, "malformed postmark date")
}
