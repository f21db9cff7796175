package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dvmnase/bonus-system/internal/model"
)

type stubService struct {
	processResults []model.Transaction
	gotPurchases   []model.Purchase
	gotPolicy      model.Policy

	transactions []model.Transaction

	resetErr    error
	resetCalled bool
}

func (s *stubService) ProcessBatch(ctx context.Context, purchases []model.Purchase, policy model.Policy) []model.Transaction {
	s.gotPurchases = purchases
	s.gotPolicy = policy
	return s.processResults
}

func (s *stubService) Transactions() []model.Transaction {
	return s.transactions
}

func (s *stubService) ResetHistory(ctx context.Context) error {
	s.resetCalled = true
	return s.resetErr
}

type stubOplog struct {
	content string
	readErr error
}

func (s *stubOplog) Read() (string, error) {
	return s.content, s.readErr
}

func newTestHandler(svc *stubService, log *stubOplog) *Handler {
	return NewHandler(svc, log, zap.NewNop(), model.DefaultPolicy())
}

func TestProcessBatch(t *testing.T) {
	svc := &stubService{
		processResults: []model.Transaction{
			{
				ID:          "tx-1",
				CardNo:      "CARD123456",
				Amount:      decimal.RequireFromString("1000"),
				BonusAmount: decimal.RequireFromString("10"),
				ProcessedAt: time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
				Status:      model.StatusSuccess,
				Processed:   true,
			},
		},
	}
	h := newTestHandler(svc, &stubOplog{})

	body := bytes.NewBufferString(`{
		"purchases": [
			{"card_no": "CARD123456", "amount": "1000", "date": "2024-01-15"}
		]
	}`)

	req := httptest.NewRequest(http.MethodPost, "/api/batch", body)
	rec := httptest.NewRecorder()

	h.ProcessBatch(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	if len(svc.gotPurchases) != 1 {
		t.Fatalf("service received %d purchases, want 1", len(svc.gotPurchases))
	}
	if svc.gotPurchases[0].CardNo != "CARD123456" {
		t.Fatalf("card = %q, want CARD123456", svc.gotPurchases[0].CardNo)
	}
	if !svc.gotPolicy.Rate.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("policy rate = %s, want default 0.01", svc.gotPolicy.Rate)
	}

	var resp []transactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].Status != "SUCCESS" || resp[0].BonusAmount != "10" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestProcessBatch_RateOverride(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(svc, &stubOplog{})

	body := bytes.NewBufferString(`{
		"rate": "0.05",
		"purchases": [
			{"card_no": "CARD123456", "amount": "100", "date": "2024-01-15"}
		]
	}`)

	rec := httptest.NewRecorder()
	h.ProcessBatch(rec, httptest.NewRequest(http.MethodPost, "/api/batch", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !svc.gotPolicy.Rate.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("policy rate = %s, want 0.05", svc.gotPolicy.Rate)
	}
}

func TestProcessBatch_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "malformed json",
			body: `{`,
		},
		{
			name: "empty batch",
			body: `{"purchases": []}`,
		},
		{
			name: "invalid amount",
			body: `{"purchases": [{"card_no": "CARD123456", "amount": "ten", "date": "2024-01-15"}]}`,
		},
		{
			name: "invalid date",
			body: `{"purchases": [{"card_no": "CARD123456", "amount": "10", "date": "15.01.2024"}]}`,
		},
		{
			name: "invalid rate",
			body: `{"rate": "-1", "purchases": [{"card_no": "CARD123456", "amount": "10", "date": "2024-01-15"}]}`,
		},
	}

	h := newTestHandler(&stubService{}, &stubOplog{})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/batch", bytes.NewBufferString(tt.body))

			h.ProcessBatch(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestGetTransactions_Empty(t *testing.T) {
	h := newTestHandler(&stubService{}, &stubOplog{})

	rec := httptest.NewRecorder()
	h.GetTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
}

func TestGetTransactions(t *testing.T) {
	svc := &stubService{
		transactions: []model.Transaction{
			{
				ID:          "tx-1",
				CardNo:      "CARD123456",
				Amount:      decimal.RequireFromString("1000"),
				BonusAmount: decimal.RequireFromString("10"),
				ProcessedAt: time.Now(),
				Status:      model.StatusSuccess,
				Processed:   true,
			},
		},
	}
	h := newTestHandler(svc, &stubOplog{})

	rec := httptest.NewRecorder()
	h.GetTransactions(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp []transactionResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 1 || resp[0].ID != "tx-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestGetOperationLog(t *testing.T) {
	log := &stubOplog{content: "2024-01-15 12:00:00 [INFO] entry\n"}
	h := newTestHandler(&stubService{}, log)

	rec := httptest.NewRecorder()
	h.GetOperationLog(rec, httptest.NewRequest(http.MethodGet, "/api/log", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != log.content {
		t.Fatalf("body = %q, want %q", rec.Body.String(), log.content)
	}
}

func TestResetHistory(t *testing.T) {
	svc := &stubService{}
	h := newTestHandler(svc, &stubOplog{})

	rec := httptest.NewRecorder()
	h.ResetHistory(rec, httptest.NewRequest(http.MethodDelete, "/api/history", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !svc.resetCalled {
		t.Fatalf("reset must be delegated to the service")
	}
}

func TestResetHistory_Error(t *testing.T) {
	svc := &stubService{resetErr: errors.New("storage failure")}
	h := newTestHandler(svc, &stubOplog{})

	rec := httptest.NewRecorder()
	h.ResetHistory(rec, httptest.NewRequest(http.MethodDelete, "/api/history", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestRouterNotFound(t *testing.T) {
	h := newTestHandler(&stubService{}, &stubOplog{})
	r := h.SetupRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetReportSummary(t *testing.T) {
	svc := &stubService{
		transactions: []model.Transaction{
			{
				CardNo:      "CARD123456",
				Amount:      decimal.RequireFromString("1000"),
				BonusAmount: decimal.RequireFromString("10"),
				Status:      model.StatusSuccess,
			},
		},
	}
	h := newTestHandler(svc, &stubOplog{})

	rec := httptest.NewRecorder()
	h.GetReportSummary(rec, httptest.NewRequest(http.MethodGet, "/api/report/summary", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Transactions int `json:"transactions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Transactions != 1 {
		t.Fatalf("transactions = %d, want 1", resp.Transactions)
	}
}
