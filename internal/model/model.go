// Package model содержит доменные сущности системы начисления бонусов.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Purchase представляет запись о покупке по бонусной карте.
// Идентичность покупки определяется только её полями: две покупки с
// одинаковыми картой, суммой и датой считаются одним логическим событием.
type Purchase struct {
	CardNo string
	Amount decimal.Decimal
	Date   time.Time
}

// TransactionStatus описывает итог обработки одной покупки в пакете.
type TransactionStatus string

const (
	StatusSuccess  TransactionStatus = "SUCCESS"
	StatusSkipped  TransactionStatus = "SKIPPED"
	StatusRejected TransactionStatus = "REJECTED"
	StatusError    TransactionStatus = "ERROR"
)

// Transaction описывает результат обработки покупки и начисленный бонус.
// Успешные транзакции попадают в журнал и после создания не изменяются.
type Transaction struct {
	ID             string            `json:"id,omitempty"`
	CardNo         string            `json:"card_no"`
	Amount         decimal.Decimal   `json:"amount"`
	BonusAmount    decimal.Decimal   `json:"bonus_amount"`
	ProcessedAt    time.Time         `json:"processed_at"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	Status         TransactionStatus `json:"status"`
	Message        string            `json:"message,omitempty"`
	Processed      bool              `json:"processed"`
}

// Policy задаёт ставку начисления бонусов для пакета покупок.
type Policy struct {
	Rate decimal.Decimal
}

// DefaultPolicy возвращает политику начисления по умолчанию — 1% от суммы.
func DefaultPolicy() Policy {
	return Policy{Rate: decimal.NewFromFloat(0.01)}
}

// Bonus вычисляет размер бонуса для указанной суммы покупки.
// Округление до двух знаков, половина округляется от нуля.
func (p Policy) Bonus(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(p.Rate).Round(2)
}

// AwardEvent описывает событие обработки одной покупки для подписчиков.
type AwardEvent struct {
	CardNo      string            `json:"card_no"`
	Amount      decimal.Decimal   `json:"amount"`
	BonusAmount decimal.Decimal   `json:"bonus_amount"`
	Status      TransactionStatus `json:"status"`
}
