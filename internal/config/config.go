// Package config содержит логику чтения конфигурации системы начисления бонусов.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"github.com/dvmnase/bonus-system/internal/model"
)

// Config содержит параметры конфигурации системы начисления бонусов.
type Config struct {
	RunAddress          string `env:"RUN_ADDRESS"`
	DatabaseURI         string `env:"DATABASE_URI"`
	StoragePath         string `env:"STORAGE_PATH"`
	BonusRate           string `env:"BONUS_RATE"`
	EventWebhookAddress string `env:"EVENT_WEBHOOK_ADDRESS"`
	PurchasesFile       string `env:"PURCHASES_FILE"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Значения из окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envStoragePath := cfg.StoragePath
	envBonusRate := cfg.BonusRate
	envWebhookAddress := cfg.EventWebhookAddress
	envPurchasesFile := cfg.PurchasesFile

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (file storage is used when empty)")
	flag.StringVar(&cfg.StoragePath, "s", ".", "directory for file storage and the operation log")
	flag.StringVar(&cfg.BonusRate, "b", "0.01", "bonus rate applied to purchase amounts")
	flag.StringVar(&cfg.EventWebhookAddress, "w", "", "address to deliver award events to")
	flag.StringVar(&cfg.PurchasesFile, "f", "", "process the given purchases XML file and exit")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envStoragePath != "" {
		cfg.StoragePath = envStoragePath
	}
	if envBonusRate != "" {
		cfg.BonusRate = envBonusRate
	}
	if envWebhookAddress != "" {
		cfg.EventWebhookAddress = envWebhookAddress
	}
	if envPurchasesFile != "" {
		cfg.PurchasesFile = envPurchasesFile
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.StoragePath == "" {
		cfg.StoragePath = "."
	}
	if cfg.BonusRate == "" {
		cfg.BonusRate = "0.01"
	}

	return cfg, nil
}

// Policy возвращает политику начисления, заданную конфигурацией.
func (c *Config) Policy() (model.Policy, error) {
	rate, err := decimal.NewFromString(c.BonusRate)
	if err != nil {
		return model.Policy{}, fmt.Errorf("parse bonus rate %q: %w", c.BonusRate, err)
	}
	if rate.IsNegative() {
		return model.Policy{}, fmt.Errorf("bonus rate must not be negative: %s", rate)
	}
	return model.Policy{Rate: rate}, nil
}
