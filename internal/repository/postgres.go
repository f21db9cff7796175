package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/shopspring/decimal"

	"github.com/dvmnase/bonus-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository хранит обработанные ключи и журнал транзакций
// в PostgreSQL. Используется вместо файлового хранилища, когда задан
// адрес подключения к БД.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи оправданы для Serialization Failure и Deadlock,
		// с переподключениями pgxpool справляется сам.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// IsProcessed сообщает, был ли ключ идемпотентности отмечен ранее.
func (r *PostgresRepository) IsProcessed(ctx context.Context, key string) (bool, error) {
	var processed bool
	err := r.withRetry(ctx, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM processed_keys WHERE key = $1)`,
			key,
		).Scan(&processed)
	})
	if err != nil {
		return false, fmt.Errorf("check processed key: %w", err)
	}
	return processed, nil
}

// MarkProcessed отмечает ключ как обработанный. Повторная вставка уже
// известного ключа не является ошибкой.
func (r *PostgresRepository) MarkProcessed(ctx context.Context, key string) error {
	err := r.withRetry(ctx, func() error {
		_, execErr := r.pool.Exec(ctx,
			`INSERT INTO processed_keys (key) VALUES ($1)`,
			key,
		)
		return execErr
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil
		}
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

// LoadTransactions возвращает полный журнал транзакций в порядке записи.
func (r *PostgresRepository) LoadTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, card_no, amount::text, bonus_amount::text, processed_at,
		        idempotency_key, status, message, processed
		 FROM bonus_transactions
		 ORDER BY position`,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	var res []model.Transaction
	for rows.Next() {
		var (
			tx     model.Transaction
			amount string
			bonus  string
			status string
		)
		if err := rows.Scan(&tx.ID, &tx.CardNo, &amount, &bonus, &tx.ProcessedAt,
			&tx.IdempotencyKey, &status, &tx.Message, &tx.Processed); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		tx.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		tx.BonusAmount, err = decimal.NewFromString(bonus)
		if err != nil {
			return nil, fmt.Errorf("parse bonus amount: %w", err)
		}
		tx.Status = model.TransactionStatus(status)

		res = append(res, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// SaveTransactions перезаписывает полный снимок журнала транзакций.
func (r *PostgresRepository) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM bonus_transactions`); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}

	for i, t := range transactions {
		_, err := tx.Exec(ctx,
			`INSERT INTO bonus_transactions
			 (id, card_no, amount, bonus_amount, processed_at, idempotency_key, status, message, processed, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			t.ID, t.CardNo, t.Amount.String(), t.BonusAmount.String(), t.ProcessedAt,
			t.IdempotencyKey, string(t.Status), t.Message, t.Processed, int64(i),
		)
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// Reset удаляет всю историю: обработанные ключи и журнал транзакций.
func (r *PostgresRepository) Reset(ctx context.Context) error {
	err := r.withRetry(ctx, func() error {
		_, execErr := r.pool.Exec(ctx, `TRUNCATE processed_keys, bonus_transactions`)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("reset history: %w", err)
	}
	return nil
}
