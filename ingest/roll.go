/*
Package ingest handles data entering the system from outside: the annual
tax roll CSV and individual payment candidates headed for the ledger.

Both paths validate before anything touches storage. Roll rows that fail
validation abort the whole import; a partial roll is worse than no roll.
*/
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/tioga/tax-ledger/tax"
)

// RollRecord is one row of the annual roll CSV, as read off the wire.
type RollRecord struct {
	ParcelID        string `validate:"required"`
	OwnerName       string `validate:"required"`
	PropertyAddress string `validate:"required"`
	MailingAddress  string
	BillNumber      string `validate:"required"`
	AssessedValue   string `validate:"required"`
	FaceAmount      string `validate:"required"`
	DiscountAmount  string `validate:"required"`
	PenaltyAmount   string `validate:"required"`
	TaxType         string `validate:"required,oneof='Real Estate' 'Per Capita'"`
	BillIssueDate   string
	Installment     string
}

// RollError reports a bad roll row with its 1-based line number.
type RollError struct {
	Line int
	Err  error
}

func (e *RollError) Error() string {
	return fmt.Sprintf("roll line %d: %v", e.Line, e.Err)
}

func (e *RollError) Unwrap() error { return e.Err }

// ReadRoll parses and validates an annual roll CSV. Rows missing a bill
// issue date inherit defaultIssueDate. Any invalid row fails the whole
// read.
func ReadRoll(r io.Reader, defaultIssueDate time.Time) ([]tax.Parcel, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading roll header: %w", err)
	}

	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"parcel_id", "owner_name", "property_address", "bill_number",
		"assessment_value", "face_tax_amount", "discount_amount", "penalty_amount", "tax_type"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("roll header missing column %q", required)
		}
	}

	v := newValidator()
	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var parcels []tax.Parcel
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading roll: %w", err)
		}
		line++

		rec := RollRecord{
			ParcelID:        field(row, "parcel_id"),
			OwnerName:       field(row, "owner_name"),
			PropertyAddress: field(row, "property_address"),
			MailingAddress:  field(row, "mailing_address"),
			BillNumber:      field(row, "bill_number"),
			AssessedValue:   field(row, "assessment_value"),
			FaceAmount:      field(row, "face_tax_amount"),
			DiscountAmount:  field(row, "discount_amount"),
			PenaltyAmount:   field(row, "penalty_amount"),
			TaxType:         field(row, "tax_type"),
			BillIssueDate:   field(row, "bill_issue_date"),
			Installment:     field(row, "is_installment_plan"),
		}

		p, err := rec.toParcel(v, defaultIssueDate)
		if err != nil {
			return nil, &RollError{Line: line, Err: err}
		}
		parcels = append(parcels, p)
	}

	return parcels, nil
}

func newValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func (rec RollRecord) toParcel(v *validator.Validate, defaultIssueDate time.Time) (tax.Parcel, error) {
	if err := v.Struct(rec); err != nil {
		return tax.Parcel{}, err
	}

	assessed, err := decimal.NewFromString(rec.AssessedValue)
	if err != nil {
		return tax.Parcel{}, fmt.Errorf("bad assessment_value %q", rec.AssessedValue)
	}
	face, err := decimal.NewFromString(rec.FaceAmount)
	if err != nil {
		return tax.Parcel{}, fmt.Errorf("bad face_tax_amount %q", rec.FaceAmount)
	}
	discount, err := decimal.NewFromString(rec.DiscountAmount)
	if err != nil {
		return tax.Parcel{}, fmt.Errorf("bad discount_amount %q", rec.DiscountAmount)
	}
	penalty, err := decimal.NewFromString(rec.PenaltyAmount)
	if err != nil {
		return tax.Parcel{}, fmt.Errorf("bad penalty_amount %q", rec.PenaltyAmount)
	}

	// The three tiers must be ordered or the bill was mis-keyed.
	if discount.GreaterThan(face) || face.GreaterThan(penalty) {
		return tax.Parcel{}, fmt.Errorf(
			"amounts out of order: discount %s <= face %s <= penalty %s required",
			discount.StringFixed(2), face.StringFixed(2), penalty.StringFixed(2))
	}

	issueDate := defaultIssueDate
	if rec.BillIssueDate != "" {
		issueDate, err = tax.ParseDate(rec.BillIssueDate)
		if err != nil {
			return tax.Parcel{}, err
		}
	}

	installment := false
	if rec.Installment != "" {
		n, err := strconv.Atoi(rec.Installment)
		if err != nil {
			return tax.Parcel{}, fmt.Errorf("bad is_installment_plan %q", rec.Installment)
		}
		installment = n != 0
	}

	mailing := rec.MailingAddress
	if mailing == "" {
		mailing = rec.PropertyAddress
	}

	return tax.Parcel{
		ID:              tax.ParcelID(rec.ParcelID),
		OwnerName:       rec.OwnerName,
		PropertyAddress: rec.PropertyAddress,
		MailingAddress:  mailing,
		BillNumber:      rec.BillNumber,
		AssessedValue:   assessed,
		FaceAmount:      face,
		DiscountAmount:  discount,
		PenaltyAmount:   penalty,
		TaxType:         tax.TaxType(rec.TaxType),
		BillIssueDate:   issueDate,
		Installment:     installment,
		Status:          tax.StatusUnpaid,
	}, nil
}
