/*
handlers.go - HTTP API handlers for the tax collection dashboard

PURPOSE:
  Exposes the ledger to a read-only dashboard. Handles HTTP
  request/response and JSON serialization, and delegates to domain
  logic. No endpoint here mutates the database.

ENDPOINTS:
  GET /api/parcels                   List all parcels
  GET /api/parcels/{id}              Get parcel details
  GET /api/parcels/{id}/transactions Full transaction history
  GET /api/lookup?q=                 Search by parcel id or owner name
  GET /api/settlement                Current settlement sheet
  GET /api/summary                   Collection totals by status
  GET /api/audit?limit=              Audit log tail

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input
  - 404: Parcel or transaction not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/tioga/tax-ledger/tax"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      tax.Store
	Reconciler *tax.Reconciler
}

// NewHandler creates a new handler with the given store.
func NewHandler(store tax.Store) *Handler {
	return &Handler{
		Store:      store,
		Reconciler: tax.NewReconciler(store),
	}
}

// =============================================================================
// PARCEL HANDLERS
// =============================================================================

// ListParcels returns the full roll.
func (h *Handler) ListParcels(w http.ResponseWriter, r *http.Request) {
	parcels, err := h.Store.AllParcels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list parcels", err)
		return
	}

	dtos := make([]ParcelDTO, len(parcels))
	for i, p := range parcels {
		dtos[i] = toParcelDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetParcel returns a single parcel.
func (h *Handler) GetParcel(w http.ResponseWriter, r *http.Request) {
	id := tax.ParcelID(chi.URLParam(r, "id"))

	p, err := h.Store.GetParcel(r.Context(), id)
	if tax.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "Parcel not found", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get parcel", err)
		return
	}
	writeJSON(w, http.StatusOK, toParcelDTO(p))
}

// GetTransactions returns a parcel's full ledger history, oldest first.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := tax.ParcelID(chi.URLParam(r, "id"))

	if _, err := h.Store.GetParcel(r.Context(), id); err != nil {
		if tax.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Parcel not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get parcel", err)
		return
	}

	txs, err := h.Store.TransactionsForParcel(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transactions", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Lookup searches by exact parcel id or owner-name substring.
func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		writeError(w, http.StatusBadRequest, "Query parameter q is required", nil)
		return
	}

	p, txs, err := h.Store.Lookup(r.Context(), term)
	if tax.IsNotFound(err) {
		writeError(w, http.StatusNotFound, "No parcel matched", err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Lookup failed", err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, LookupResponse{
		Parcel:       toParcelDTO(p),
		Transactions: dtos,
	})
}

// =============================================================================
// SETTLEMENT AND SUMMARY
// =============================================================================

// GetSettlement computes the settlement sheet over the current ledger.
func (h *Handler) GetSettlement(w http.ResponseWriter, r *http.Request) {
	s, err := h.Reconciler.Settle(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute settlement", err)
		return
	}

	writeJSON(w, http.StatusOK, SettlementDTO{
		OriginalFace:       s.OriginalFace.StringFixed(2),
		InterimFace:        s.InterimFace.StringFixed(2),
		PenaltiesCollected: s.PenaltiesCollected.StringFixed(2),
		PenaltiesOnReturns: s.PenaltiesOnReturns.StringFixed(2),
		TotalCharges:       s.Charges().StringFixed(2),
		CashCollected:      s.CashCollected.StringFixed(2),
		DiscountsAllowed:   s.DiscountsAllowed.StringFixed(2),
		Exonerations:       s.Exonerations.StringFixed(2),
		ReturnsFace:        s.ReturnsFace.StringFixed(2),
		TotalCredits:       s.Credits().StringFixed(2),
		Balance:            s.Balance().StringFixed(2),
		Balanced:           s.Balanced(),
	})
}

// GetSummary returns roll-wide counts and totals.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	parcels, err := h.Store.AllParcels(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list parcels", err)
		return
	}
	txs, err := h.Store.AllTransactions(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	byStatus := map[string]int{}
	faceBilled := decimal.Zero
	for _, p := range parcels {
		byStatus[string(p.Status)]++
		faceBilled = faceBilled.Add(p.FaceAmount)
	}

	cash := decimal.Zero
	for _, t := range txs {
		if t.Type == tax.TxPayment || t.Type == tax.TxNSFReversal {
			cash = cash.Add(t.Amount)
		}
	}

	writeJSON(w, http.StatusOK, SummaryDTO{
		ParcelCount:   len(parcels),
		ByStatus:      byStatus,
		CashCollected: cash.StringFixed(2),
		FaceBilled:    faceBilled.StringFixed(2),
	})
}

// =============================================================================
// AUDIT
// =============================================================================

// GetAuditTail returns the most recent audit entries, newest first.
func (h *Handler) GetAuditTail(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = n
	}

	entries, err := h.Store.AuditTail(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read audit log", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			LogID:     e.LogID,
			Timestamp: e.Timestamp.Format(time.RFC3339),
			Table:     e.Table,
			RecordID:  e.RecordID,
			Action:    string(e.Action),
			Field:     e.Field,
			OldValue:  e.OldValue,
			NewValue:  e.NewValue,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SERIALIZATION HELPERS
// =============================================================================

func toParcelDTO(p tax.Parcel) ParcelDTO {
	return ParcelDTO{
		ParcelID:        string(p.ID),
		OwnerName:       p.OwnerName,
		PropertyAddress: p.PropertyAddress,
		MailingAddress:  p.MailingAddress,
		BillNumber:      p.BillNumber,
		AssessedValue:   p.AssessedValue.String(),
		FaceAmount:      p.FaceAmount.StringFixed(2),
		DiscountAmount:  p.DiscountAmount.StringFixed(2),
		PenaltyAmount:   p.PenaltyAmount.StringFixed(2),
		TaxType:         string(p.TaxType),
		BillIssueDate:   tax.FormatDate(p.BillIssueDate),
		Installment:     p.Installment,
		Interim:         p.Interim,
		Status:          string(p.Status),
	}
}

func toTransactionDTO(t tax.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:               int64(t.ID),
		DateReceived:     tax.FormatDate(t.DateReceived),
		PostmarkDate:     tax.FormatDate(t.PostmarkDate),
		ParcelID:         string(t.ParcelID),
		Type:             string(t.Type),
		Method:           string(t.Method),
		CheckNumber:      t.CheckNumber,
		Amount:           t.Amount.StringFixed(2),
		BalanceRemaining: t.BalanceRemaining.StringFixed(2),
		Period:           string(t.Period),
		InstallmentNum:   t.InstallmentNum,
		DepositBatchID:   t.DepositBatchID,
		Closed:           t.Closed,
		Notes:            t.Notes,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
