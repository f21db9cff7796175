// Package oplog ведёт протокол операций — долговечный текстовый журнал,
// в который построчно дописывается итог каждой операции.
package oplog

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level задаёт уровень записи протокола.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelSuccess Level = "SUCCESS"
	LevelError   Level = "ERROR"
)

const timeLayout = "2006-01-02 15:04:05"

// Log дописывает записи вида `2006-01-02 15:04:05 [LEVEL] message` в файл
// протокола. Запись защищена мьютексом; ошибки записи не прерывают
// обработку и сообщаются только через zap-логгер процесса.
type Log struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex

	now func() time.Time
}

// New создаёт протокол операций поверх указанного файла.
func New(path string, logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// Info записывает информационную запись.
func (l *Log) Info(message string) {
	l.append(LevelInfo, message)
}

// Success записывает запись об успешной операции.
func (l *Log) Success(message string) {
	l.append(LevelSuccess, message)
}

// Error записывает запись об ошибке.
func (l *Log) Error(message string) {
	l.append(LevelError, message)
}

func (l *Log) append(level Level, message string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := fmt.Sprintf("%s [%s] %s\n", l.now().Format(timeLayout), level, message)

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		l.logger.Error("open operation log", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.WriteString(entry); err != nil {
		l.logger.Error("write operation log", zap.Error(err))
	}
}

// Read возвращает полное содержимое протокола.
// Отсутствие файла означает пустой протокол, а не ошибку.
func (l *Log) Read() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read operation log: %w", err)
	}
	return string(data), nil
}

// Reset удаляет файл протокола.
func (l *Log) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove operation log: %w", err)
	}
	return nil
}
