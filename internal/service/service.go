// Package service реализует бизнес-логику массового начисления бонусов.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvmnase/bonus-system/internal/fingerprint"
	"github.com/dvmnase/bonus-system/internal/model"
	"github.com/dvmnase/bonus-system/internal/validation"
)

// Repository описывает контракт доступа к хранилищу обработанных ключей
// и журнала транзакций, используемый сервисом.
type Repository interface {
	Close() error
	IsProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string) error
	LoadTransactions(ctx context.Context) ([]model.Transaction, error)
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	Reset(ctx context.Context) error
}

// OperationLog описывает контракт протокола операций.
type OperationLog interface {
	Info(message string)
	Success(message string)
	Error(message string)
	Reset() error
}

// Observer получает событие по каждой обработанной покупке.
type Observer func(event model.AwardEvent)

// Service обрабатывает пакеты покупок и начисляет бонусы идемпотентно:
// повторная обработка той же покупки никогда не приводит к повторному
// начислению.
type Service struct {
	repo  Repository
	oplog OperationLog

	// mu сериализует проверку и отметку ключа идемпотентности, чтобы две
	// одновременные одинаковые покупки не прошли проверку дубликата обе.
	mu           sync.Mutex
	transactions []model.Transaction
	observers    []Observer

	now func() time.Time
}

// NewService создаёт сервис начисления бонусов.
func NewService(repo Repository, oplog OperationLog) *Service {
	return &Service{
		repo:  repo,
		oplog: oplog,
		now:   time.Now,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Subscribe регистрирует подписчика на события обработки покупок.
// Подписчики вызываются синхронно, в порядке обработки пакета.
func (s *Service) Subscribe(obs Observer) {
	s.observers = append(s.observers, obs)
}

// LoadHistory загружает журнал транзакций из хранилища в память.
func (s *Service) LoadHistory(ctx context.Context) error {
	transactions, err := s.repo.LoadTransactions(ctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	s.mu.Lock()
	s.transactions = transactions
	s.mu.Unlock()

	return nil
}

// Transactions возвращает копию журнала успешных транзакций.
func (s *Service) Transactions() []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]model.Transaction, len(s.transactions))
	copy(res, s.transactions)
	return res
}

// ProcessBatch обрабатывает пакет покупок и возвращает результат по каждой
// из них в исходном порядке. Ошибка одной покупки не прерывает пакет.
// После обработки всех покупок полный журнал сохраняется в хранилище.
func (s *Service) ProcessBatch(ctx context.Context, purchases []model.Purchase, policy model.Policy) []model.Transaction {
	results := make([]model.Transaction, 0, len(purchases))

	for _, p := range purchases {
		tx := s.processPurchase(ctx, p, policy)
		results = append(results, tx)

		s.notify(model.AwardEvent{
			CardNo:      tx.CardNo,
			Amount:      tx.Amount,
			BonusAmount: tx.BonusAmount,
			Status:      tx.Status,
		})
	}

	if err := s.repo.SaveTransactions(ctx, s.Transactions()); err != nil {
		s.oplog.Error(fmt.Sprintf("failed to save transaction history: %s", err))
	}

	return results
}

func (s *Service) processPurchase(ctx context.Context, p model.Purchase, policy model.Policy) (tx model.Transaction) {
	defer func() {
		if rec := recover(); rec != nil {
			msg := fmt.Sprintf("processing failed for card %s: %v", p.CardNo, rec)
			s.oplog.Error(msg)
			tx = s.failedTransaction(p, fmt.Sprintf("%v", rec))
		}
	}()

	if !validation.IsValidCardNumber(p.CardNo) {
		s.oplog.Error(fmt.Sprintf("invalid card number: %s", p.CardNo))
		return model.Transaction{
			CardNo:      p.CardNo,
			Amount:      p.Amount,
			BonusAmount: decimal.Zero,
			ProcessedAt: s.now(),
			Status:      model.StatusRejected,
			Message:     "invalid card number",
		}
	}

	key := fingerprint.Key(p)

	s.mu.Lock()
	defer s.mu.Unlock()

	processed, err := s.repo.IsProcessed(ctx, key)
	if err != nil {
		s.oplog.Error(fmt.Sprintf("idempotency check failed for card %s: %s", p.CardNo, err))
		return s.failedTransaction(p, err.Error())
	}

	if processed {
		s.oplog.Info(fmt.Sprintf("skipped (already processed): %s", p.CardNo))
		return model.Transaction{
			CardNo:         p.CardNo,
			Amount:         p.Amount,
			BonusAmount:    decimal.Zero,
			ProcessedAt:    s.now(),
			IdempotencyKey: key,
			Status:         model.StatusSkipped,
			Message:        "already processed",
			Processed:      true,
		}
	}

	bonus := policy.Bonus(p.Amount)

	tx = model.Transaction{
		ID:             uuid.NewString(),
		CardNo:         p.CardNo,
		Amount:         p.Amount,
		BonusAmount:    bonus,
		ProcessedAt:    s.now(),
		IdempotencyKey: key,
		Status:         model.StatusSuccess,
		Processed:      true,
	}

	s.transactions = append(s.transactions, tx)

	if err := s.repo.MarkProcessed(ctx, key); err != nil {
		// Незаписанная отметка означает риск повторного начисления при
		// следующем запуске, поэтому начисление не засчитывается.
		s.transactions = s.transactions[:len(s.transactions)-1]
		s.oplog.Error(fmt.Sprintf("failed to persist idempotency key for card %s: %s", p.CardNo, err))
		return s.failedTransaction(p, err.Error())
	}

	s.oplog.Success(fmt.Sprintf("awarded %s bonus points for card %s", bonus, p.CardNo))
	return tx
}

func (s *Service) failedTransaction(p model.Purchase, message string) model.Transaction {
	return model.Transaction{
		CardNo:      p.CardNo,
		Amount:      p.Amount,
		BonusAmount: decimal.Zero,
		ProcessedAt: s.now(),
		Status:      model.StatusError,
		Message:     message,
	}
}

// notify рассылает событие подписчикам. Паника подписчика не должна
// прерывать обработку пакета, поэтому каждый вызов изолирован.
func (s *Service) notify(event model.AwardEvent) {
	for _, obs := range s.observers {
		func() {
			defer func() {
				_ = recover()
			}()
			obs(event)
		}()
	}
}

// ResetHistory удаляет всю историю операций: обработанные ключи, журнал
// транзакций, протокол операций и транзакции в памяти.
func (s *Service) ResetHistory(ctx context.Context) error {
	if err := s.repo.Reset(ctx); err != nil {
		return fmt.Errorf("reset storage: %w", err)
	}
	if err := s.oplog.Reset(); err != nil {
		return fmt.Errorf("reset operation log: %w", err)
	}

	s.mu.Lock()
	s.transactions = nil
	s.mu.Unlock()

	return nil
}
