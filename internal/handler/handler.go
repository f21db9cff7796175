// Package handler содержит HTTP-обработчики API системы начисления бонусов.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/dvmnase/bonus-system/internal/ingest"
	"github.com/dvmnase/bonus-system/internal/model"
	"github.com/dvmnase/bonus-system/internal/report"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ProcessBatch(ctx context.Context, purchases []model.Purchase, policy model.Policy) []model.Transaction
	Transactions() []model.Transaction
	ResetHistory(ctx context.Context) error
}

// OperationLog определяет контракт чтения протокола операций.
type OperationLog interface {
	Read() (string, error)
}

// Handler реализует HTTP-обработчики API системы начисления бонусов.
type Handler struct {
	service       Service
	oplog         OperationLog
	logger        *zap.Logger
	defaultPolicy model.Policy
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, oplog OperationLog, logger *zap.Logger, defaultPolicy model.Policy) *Handler {
	return &Handler{
		service:       s,
		oplog:         oplog,
		logger:        logger,
		defaultPolicy: defaultPolicy,
	}
}

type purchaseRequest struct {
	CardNo string `json:"card_no"`
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

type batchRequest struct {
	Rate      string            `json:"rate,omitempty"`
	Purchases []purchaseRequest `json:"purchases"`
}

type transactionResponse struct {
	ID             string `json:"id,omitempty"`
	CardNo         string `json:"card_no"`
	Amount         string `json:"amount"`
	BonusAmount    string `json:"bonus_amount"`
	ProcessedAt    string `json:"processed_at"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Status         string `json:"status"`
	Message        string `json:"message,omitempty"`
	Processed      bool   `json:"processed"`
}

func toTransactionResponse(tx model.Transaction) transactionResponse {
	return transactionResponse{
		ID:             tx.ID,
		CardNo:         tx.CardNo,
		Amount:         tx.Amount.String(),
		BonusAmount:    tx.BonusAmount.String(),
		ProcessedAt:    tx.ProcessedAt.Format(time.RFC3339),
		IdempotencyKey: tx.IdempotencyKey,
		Status:         string(tx.Status),
		Message:        tx.Message,
		Processed:      tx.Processed,
	}
}

func (h *Handler) resolvePolicy(rate string) (model.Policy, bool) {
	if rate == "" {
		return h.defaultPolicy, true
	}
	parsed, err := decimal.NewFromString(rate)
	if err != nil || parsed.IsNegative() {
		return model.Policy{}, false
	}
	return model.Policy{Rate: parsed}, true
}

// ProcessBatch принимает пакет покупок и возвращает результат обработки
// каждой из них в исходном порядке.
func (h *Handler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if len(req.Purchases) == 0 {
		http.Error(w, "batch must contain at least one purchase", http.StatusBadRequest)
		return
	}

	policy, ok := h.resolvePolicy(req.Rate)
	if !ok {
		http.Error(w, "invalid bonus rate", http.StatusBadRequest)
		return
	}

	purchases := make([]model.Purchase, 0, len(req.Purchases))
	for _, p := range req.Purchases {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			http.Error(w, "invalid purchase amount", http.StatusBadRequest)
			return
		}
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			http.Error(w, "invalid purchase date", http.StatusBadRequest)
			return
		}
		purchases = append(purchases, model.Purchase{
			CardNo: p.CardNo,
			Amount: amount,
			Date:   date,
		})
	}

	results := h.service.ProcessBatch(r.Context(), purchases, policy)

	resp := make([]transactionResponse, 0, len(results))
	for _, tx := range results {
		resp = append(resp, toTransactionResponse(tx))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

type batchFileRequest struct {
	Path string `json:"path"`
	Rate string `json:"rate,omitempty"`
}

// ProcessBatchFile обрабатывает пакет покупок из XML-файла на сервере.
func (h *Handler) ProcessBatchFile(w http.ResponseWriter, r *http.Request) {
	var req batchFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Path == "" {
		http.Error(w, "path is required", http.StatusBadRequest)
		return
	}

	policy, ok := h.resolvePolicy(req.Rate)
	if !ok {
		http.Error(w, "invalid bonus rate", http.StatusBadRequest)
		return
	}

	purchases, err := ingest.ReadPurchasesXML(req.Path)
	if err != nil {
		// Нечитаемый файл — отказ всего пакета до обработки покупок.
		h.logger.Error("read purchases file error", zap.Error(err), zap.String("path", req.Path))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	results := h.service.ProcessBatch(r.Context(), purchases, policy)

	resp := make([]transactionResponse, 0, len(results))
	for _, tx := range results {
		resp = append(resp, toTransactionResponse(tx))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// GetTransactions возвращает журнал успешных транзакций.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	transactions := h.service.Transactions()

	if len(transactions) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]transactionResponse, 0, len(transactions))
	for _, tx := range transactions {
		resp = append(resp, toTransactionResponse(tx))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// GetReportSummary возвращает сводный отчёт по журналу транзакций.
func (h *Handler) GetReportSummary(w http.ResponseWriter, r *http.Request) {
	summary := report.Build(h.service.Transactions())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
}

// GetOperationLog возвращает протокол операций в текстовом виде.
func (h *Handler) GetOperationLog(w http.ResponseWriter, r *http.Request) {
	content, err := h.oplog.Read()
	if err != nil {
		h.logger.Error("read operation log error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(content)); err != nil {
		h.logger.Error("write operation log response", zap.Error(err))
	}
}

// ResetHistory удаляет всю историю операций для чистого повторного прогона.
func (h *Handler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResetHistory(r.Context()); err != nil {
		h.logger.Error("reset history error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
