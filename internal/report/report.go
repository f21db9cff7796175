// Package report строит сводные отчёты по журналу транзакций.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvmnase/bonus-system/internal/model"
)

// CardSummary — сводка начислений по одной карте.
type CardSummary struct {
	CardNo        string          `json:"card_no"`
	Purchases     int             `json:"purchases"`
	AmountTotal   decimal.Decimal `json:"amount_total"`
	BonusTotal    decimal.Decimal `json:"bonus_total"`
	LastProcessed string          `json:"last_processed"`
}

// Summary — полный отчёт по журналу.
type Summary struct {
	Transactions int             `json:"transactions"`
	BonusTotal   decimal.Decimal `json:"bonus_total"`
	StatusCounts map[string]int  `json:"status_counts"`
	Cards        []CardSummary   `json:"cards"`
}

// Build строит отчёт по списку транзакций журнала. Карты сортируются по
// убыванию суммы бонусов, при равенстве — по номеру карты.
func Build(transactions []model.Transaction) Summary {
	summary := Summary{
		Transactions: len(transactions),
		BonusTotal:   decimal.Zero,
		StatusCounts: make(map[string]int),
	}

	byCard := make(map[string]*CardSummary)

	for _, tx := range transactions {
		summary.StatusCounts[string(tx.Status)]++
		summary.BonusTotal = summary.BonusTotal.Add(tx.BonusAmount)

		card, ok := byCard[tx.CardNo]
		if !ok {
			card = &CardSummary{
				CardNo:      tx.CardNo,
				AmountTotal: decimal.Zero,
				BonusTotal:  decimal.Zero,
			}
			byCard[tx.CardNo] = card
		}

		card.Purchases++
		card.AmountTotal = card.AmountTotal.Add(tx.Amount)
		card.BonusTotal = card.BonusTotal.Add(tx.BonusAmount)
		if processed := tx.ProcessedAt.Format("2006-01-02 15:04:05"); processed > card.LastProcessed {
			card.LastProcessed = processed
		}
	}

	summary.Cards = make([]CardSummary, 0, len(byCard))
	for _, card := range byCard {
		summary.Cards = append(summary.Cards, *card)
	}

	sort.Slice(summary.Cards, func(i, j int) bool {
		a, b := summary.Cards[i], summary.Cards[j]
		if !a.BonusTotal.Equal(b.BonusTotal) {
			return a.BonusTotal.GreaterThan(b.BonusTotal)
		}
		return a.CardNo < b.CardNo
	})

	return summary
}

// TopCards возвращает не более n карт с наибольшей суммой бонусов.
func TopCards(transactions []model.Transaction, n int) []CardSummary {
	cards := Build(transactions).Cards
	if n < len(cards) {
		cards = cards[:n]
	}
	return cards
}
