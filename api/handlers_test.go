package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tioga/tax-ledger/api"
	"github.com/tioga/tax-ledger/store/sqlite"
	"github.com/tioga/tax-ledger/tax"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	store, err := sqlite.New(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	handler := api.NewHandler(store)
	router := api.NewRouter(handler, zerolog.Nop(), []string{"*"})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func seedAPIParcel(t *testing.T, store *sqlite.Store, id string) {
	_, err := store.ImportParcels(context.Background(), []tax.Parcel{{
		ID:              tax.ParcelID(id),
		OwnerName:       "John Smith",
		PropertyAddress: "10 Main St",
		MailingAddress:  "10 Main St",
		BillNumber:      "B-" + id,
		AssessedValue:   tax.Dollars("30000"),
		FaceAmount:      tax.Dollars("450.00"),
		DiscountAmount:  tax.Dollars("441.00"),
		PenaltyAmount:   tax.Dollars("495.00"),
		TaxType:         tax.TaxRealEstate,
		BillIssueDate:   time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		Status:          tax.StatusUnpaid,
	}})
	require.NoError(t, err)
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// =============================================================================
// PARCEL ENDPOINTS
// =============================================================================

func TestAPI_GetParcel(t *testing.T) {
	srv, store := newTestServer(t)
	seedAPIParcel(t, store, "P-001")

	var dto api.ParcelDTO
	resp := getJSON(t, srv.URL+"/api/parcels/P-001", &dto)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "P-001", dto.ParcelID)
	assert.Equal(t, "450.00", dto.FaceAmount)
	assert.Equal(t, "2025-03-01", dto.BillIssueDate)
	assert.Equal(t, "UNPAID", dto.Status)
}

func TestAPI_GetParcel_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	var errResp api.ErrorResponse
	resp := getJSON(t, srv.URL+"/api/parcels/P-404", &errResp)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Parcel not found", errResp.Error)
}

func TestAPI_ListParcels(t *testing.T) {
	srv, store := newTestServer(t)
	seedAPIParcel(t, store, "P-001")
	seedAPIParcel(t, store, "P-002")

	var dtos []api.ParcelDTO
	resp := getJSON(t, srv.URL+"/api/parcels", &dtos)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dtos, 2)
}

func TestAPI_GetTransactions(t *testing.T) {
	srv, store := newTestServer(t)
	seedAPIParcel(t, store, "P-001")

	_, err := store.Append(context.Background(), tax.Transaction{
		DateReceived:     time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC),
		PostmarkDate:     time.Date(2025, time.April, 20, 0, 0, 0, 0, time.UTC),
		ParcelID:         "P-001",
		Type:             tax.TxPayment,
		Method:           tax.MethodCheck,
		CheckNumber:      "1001",
		Amount:           tax.Dollars("441.00"),
		BalanceRemaining: tax.Dollars("0"),
		Period:           tax.PeriodDiscount,
	})
	require.NoError(t, err)

	var dtos []api.TransactionDTO
	resp := getJSON(t, srv.URL+"/api/parcels/P-001/transactions", &dtos)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, dtos, 1)
	assert.Equal(t, "PAYMENT", dtos[0].Type)
	assert.Equal(t, "441.00", dtos[0].Amount)
	assert.Equal(t, "DISCOUNT", dtos[0].Period)
}

// =============================================================================
// LOOKUP
// =============================================================================

func TestAPI_Lookup(t *testing.T) {
	srv, store := newTestServer(t)
	seedAPIParcel(t, store, "P-001")

	var out api.LookupResponse
	resp := getJSON(t, srv.URL+"/api/lookup?q=Smith", &out)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "P-001", out.Parcel.ParcelID)
}

func TestAPI_Lookup_MissingQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := getJSON(t, srv.URL+"/api/lookup", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// SETTLEMENT AND SUMMARY
// =============================================================================

func TestAPI_Settlement_FreshRollBalanced(t *testing.T) {
	srv, store := newTestServer(t)
	seedAPIParcel(t, store, "P-001")

	var dto api.SettlementDTO
	resp := getJSON(t, srv.URL+"/api/settlement", &dto)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "450.00", dto.OriginalFace)
	assert.Equal(t, "945.00", dto.TotalCharges)
	assert.Equal(t, "945.00", dto.TotalCredits)
	assert.Equal(t, "0.00", dto.Balance)
	assert.True(t, dto.Balanced)
}

func TestAPI_Summary(t *testing.T) {
	srv, store := newTestServer(t)
	seedAPIParcel(t, store, "P-001")
	seedAPIParcel(t, store, "P-002")

	var dto api.SummaryDTO
	resp := getJSON(t, srv.URL+"/api/summary", &dto)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, dto.ParcelCount)
	assert.Equal(t, 2, dto.ByStatus["UNPAID"])
	assert.Equal(t, "900.00", dto.FaceBilled)
	assert.Equal(t, "0.00", dto.CashCollected)
}

// =============================================================================
// AUDIT
// =============================================================================

func TestAPI_AuditTail(t *testing.T) {
	srv, store := newTestServer(t)
	seedAPIParcel(t, store, "P-001")

	require.NoError(t, store.UpdateParcelInfo(context.Background(), "P-001", "Jane Doe", ""))

	var dtos []api.AuditEntryDTO
	resp := getJSON(t, srv.URL+"/api/audit?limit=5", &dtos)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, dtos, 1)
	assert.Equal(t, "owner_name", dtos[0].Field)
	assert.Equal(t, "Jane Doe", dtos[0].NewValue)
}

func TestAPI_AuditTail_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := getJSON(t, srv.URL+"/api/audit?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestAPI_RequestIDHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := getJSON(t, srv.URL+"/api/parcels", nil)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}
