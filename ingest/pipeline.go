package ingest

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tioga/tax-ledger/tax"
)

// Candidate is a payment as captured at intake, before validation.
type Candidate struct {
	ParcelID       string `validate:"required"`
	Amount         string `validate:"required"`
	PostmarkDate   string `validate:"required"`
	DateReceived   string
	CheckNumber    string
	InstallmentNum int    `validate:"gte=0,lte=3"`
	DepositBatchID string
}

// Outcome is what the pipeline produced for one candidate.
type Outcome struct {
	Validation    tax.Result
	TransactionID tax.TransactionID
	// DuplicateSuspected flags a prior ledger payment with the same
	// parcel, check number, and amount. Advisory only; the caller
	// decides whether to proceed.
	DuplicateSuspected bool
}

// Pipeline runs payment candidates through format validation, duplicate
// detection, and ledger recording.
type Pipeline struct {
	store    tax.Store
	ledger   *tax.Ledger
	validate *validator.Validate
	log      zerolog.Logger
}

// NewPipeline creates a payment intake pipeline.
func NewPipeline(store tax.Store, ledger *tax.Ledger, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		ledger:   ledger,
		validate: newValidator(),
		log:      log,
	}
}

// CheckDuplicate reports whether a prior ledger payment matches the
// candidate's parcel, check number, and amount.
func (p *Pipeline) CheckDuplicate(ctx context.Context, parcelID tax.ParcelID, checkNumber string, amount decimal.Decimal) (bool, error) {
	if checkNumber == "" {
		return false, nil
	}

	txs, err := p.store.TransactionsForParcel(ctx, parcelID)
	if err != nil {
		return false, err
	}
	for _, t := range txs {
		if t.Type == tax.TxPayment && t.CheckNumber == checkNumber && tax.SameAmount(t.Amount, amount) {
			return true, nil
		}
	}
	return false, nil
}

// Process validates a candidate, checks for duplicates, and records the
// payment. ForceDuplicate must be set to record a payment the duplicate
// check has flagged; without it a flagged candidate is returned
// unrecorded for manual review.
func (p *Pipeline) Process(ctx context.Context, c Candidate, forceDuplicate bool) (Outcome, error) {
	if err := p.validate.Struct(c); err != nil {
		return Outcome{}, fmt.Errorf("invalid payment candidate: %w", err)
	}

	amount, err := decimal.NewFromString(c.Amount)
	if err != nil {
		return Outcome{}, fmt.Errorf("bad amount %q", c.Amount)
	}

	postmark, err := tax.ParseDate(c.PostmarkDate)
	if err != nil {
		return Outcome{}, err
	}

	req := tax.PaymentRequest{
		ParcelID:       tax.ParcelID(c.ParcelID),
		Amount:         amount,
		Postmark:       postmark,
		CheckNumber:    c.CheckNumber,
		InstallmentNum: c.InstallmentNum,
		DepositBatchID: c.DepositBatchID,
	}
	if c.DateReceived != "" {
		received, err := tax.ParseDate(c.DateReceived)
		if err != nil {
			return Outcome{}, err
		}
		req.DateReceived = received
	}

	dup, err := p.CheckDuplicate(ctx, req.ParcelID, req.CheckNumber, amount)
	if err != nil {
		return Outcome{}, err
	}
	if dup && !forceDuplicate {
		p.log.Warn().
			Str("parcel", c.ParcelID).
			Str("check", c.CheckNumber).
			Msg("potential duplicate payment; not recorded")
		return Outcome{DuplicateSuspected: true}, nil
	}

	res, id, err := p.ledger.RecordPayment(ctx, req)
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{Validation: res, TransactionID: id, DuplicateSuspected: dup}, nil
}
