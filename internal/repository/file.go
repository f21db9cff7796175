// Package repository содержит реализации хранилищ обработанных ключей
// и журнала транзакций.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dvmnase/bonus-system/internal/model"
)

const (
	processedKeysFile = "processed_transactions.txt"
	transactionsFile  = "transactions_history.json"
)

// FileRepository хранит ключи идемпотентности и журнал транзакций в файлах
// рабочего каталога: ключи — построчно в текстовом файле, журнал — полным
// JSON-снимком. Набор ключей целиком перечитывается при создании и целиком
// перезаписывается на диск при каждой новой отметке.
type FileRepository struct {
	dir string

	mu   sync.Mutex
	keys map[string]struct{}
}

// NewFileRepository создаёт файловое хранилище в указанном каталоге и
// загружает ранее обработанные ключи. Отсутствие файлов не является ошибкой.
func NewFileRepository(dir string) (*FileRepository, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	r := &FileRepository{
		dir:  dir,
		keys: make(map[string]struct{}),
	}

	if err := r.loadKeys(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *FileRepository) loadKeys() error {
	data, err := os.ReadFile(filepath.Join(r.dir, processedKeysFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read processed keys: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		key := strings.TrimSpace(line)
		if key == "" {
			continue
		}
		r.keys[key] = struct{}{}
	}

	return nil
}

// Close освобождает ресурсы хранилища.
func (r *FileRepository) Close() error {
	return nil
}

// IsProcessed сообщает, был ли ключ идемпотентности отмечен ранее,
// включая отметки предыдущих запусков процесса.
func (r *FileRepository) IsProcessed(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.keys[key]
	return ok, nil
}

// MarkProcessed отмечает ключ как обработанный. Повторная отметка уже
// известного ключа — ничего не делающая операция. Новая отметка надёжно
// записывается на диск до возврата из метода; при ошибке записи отметка
// откатывается и возвращается ошибка.
func (r *FileRepository) MarkProcessed(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[key]; ok {
		return nil
	}

	r.keys[key] = struct{}{}
	if err := r.saveKeysLocked(); err != nil {
		delete(r.keys, key)
		return fmt.Errorf("persist processed key: %w", err)
	}

	return nil
}

func (r *FileRepository) saveKeysLocked() error {
	keys := make([]string, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	content := strings.Join(keys, "\n")
	if content != "" {
		content += "\n"
	}

	return writeFileAtomic(filepath.Join(r.dir, processedKeysFile), []byte(content))
}

// LoadTransactions читает полный снимок журнала транзакций.
// Отсутствие снимка означает пустой журнал, а не ошибку.
func (r *FileRepository) LoadTransactions(_ context.Context) ([]model.Transaction, error) {
	data, err := os.ReadFile(filepath.Join(r.dir, transactionsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read transactions: %w", err)
	}

	var transactions []model.Transaction
	if err := json.Unmarshal(data, &transactions); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	return transactions, nil
}

// SaveTransactions перезаписывает полный снимок журнала транзакций.
func (r *FileRepository) SaveTransactions(_ context.Context, transactions []model.Transaction) error {
	if transactions == nil {
		transactions = []model.Transaction{}
	}

	data, err := json.MarshalIndent(transactions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transactions: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(r.dir, transactionsFile), data); err != nil {
		return fmt.Errorf("write transactions: %w", err)
	}

	return nil
}

// Reset удаляет всю историю: файл обработанных ключей и снимок журнала,
// а также очищает набор ключей в памяти.
func (r *FileRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range []string{processedKeysFile, transactionsFile} {
		if err := os.Remove(filepath.Join(r.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}

	r.keys = make(map[string]struct{})
	return nil
}

// writeFileAtomic записывает файл через временный файл и переименование,
// чтобы при сбое на диске не остался частично записанный файл.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
