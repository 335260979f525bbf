/*
dto.go - Request/response data structures

All money fields serialize as fixed two-decimal strings; the dashboard
must never see float money.
*/
package api

// ParcelDTO is the wire shape of one parcel.
type ParcelDTO struct {
	ParcelID        string `json:"parcel_id"`
	OwnerName       string `json:"owner_name"`
	PropertyAddress string `json:"property_address"`
	MailingAddress  string `json:"mailing_address"`
	BillNumber      string `json:"bill_number"`
	AssessedValue   string `json:"assessed_value"`
	FaceAmount      string `json:"face_amount"`
	DiscountAmount  string `json:"discount_amount"`
	PenaltyAmount   string `json:"penalty_amount"`
	TaxType         string `json:"tax_type"`
	BillIssueDate   string `json:"bill_issue_date"`
	Installment     bool   `json:"is_installment"`
	Interim         bool   `json:"is_interim"`
	Status          string `json:"status"`
}

// TransactionDTO is the wire shape of one ledger row.
type TransactionDTO struct {
	ID               int64  `json:"id"`
	DateReceived     string `json:"date_received"`
	PostmarkDate     string `json:"postmark_date"`
	ParcelID         string `json:"parcel_id"`
	Type             string `json:"type"`
	Method           string `json:"method,omitempty"`
	CheckNumber      string `json:"check_number,omitempty"`
	Amount           string `json:"amount"`
	BalanceRemaining string `json:"balance_remaining"`
	Period           string `json:"period,omitempty"`
	InstallmentNum   int    `json:"installment_num,omitempty"`
	DepositBatchID   string `json:"deposit_batch_id,omitempty"`
	Closed           bool   `json:"closed"`
	Notes            string `json:"notes,omitempty"`
}

// LookupResponse pairs a parcel with its full transaction history.
type LookupResponse struct {
	Parcel       ParcelDTO        `json:"parcel"`
	Transactions []TransactionDTO `json:"transactions"`
}

// SettlementDTO is the wire shape of the settlement sheet.
type SettlementDTO struct {
	OriginalFace       string `json:"original_face"`
	InterimFace        string `json:"interim_face"`
	PenaltiesCollected string `json:"penalties_collected"`
	PenaltiesOnReturns string `json:"penalties_on_returns"`
	TotalCharges       string `json:"total_charges"`
	CashCollected      string `json:"cash_collected"`
	DiscountsAllowed   string `json:"discounts_allowed"`
	Exonerations       string `json:"exonerations"`
	ReturnsFace        string `json:"returns_face"`
	TotalCredits       string `json:"total_credits"`
	Balance            string `json:"balance"`
	Balanced           bool   `json:"balanced"`
}

// SummaryDTO carries collection totals for the dashboard overview.
type SummaryDTO struct {
	ParcelCount   int            `json:"parcel_count"`
	ByStatus      map[string]int `json:"by_status"`
	CashCollected string         `json:"cash_collected"`
	FaceBilled    string         `json:"face_billed"`
}

// AuditEntryDTO is the wire shape of one audit log row.
type AuditEntryDTO struct {
	LogID     int64  `json:"log_id"`
	Timestamp string `json:"timestamp"`
	Table     string `json:"table"`
	RecordID  string `json:"record_id"`
	Action    string `json:"action"`
	Field     string `json:"field,omitempty"`
	OldValue  string `json:"old_value,omitempty"`
	NewValue  string `json:"new_value,omitempty"`
}

// ErrorResponse is the wire shape of all API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
