// Package ingest читает пакеты покупок из внешних XML-файлов.
package ingest

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvmnase/bonus-system/internal/model"
)

const dateLayout = "2006-01-02"

type purchasesDocument struct {
	XMLName   xml.Name      `xml:"Purchases"`
	Purchases []purchaseXML `xml:"Purchase"`
}

type purchaseXML struct {
	CardNo string `xml:"CardNo"`
	Amount string `xml:"Amount"`
	Date   string `xml:"Date"`
}

// ReadPurchasesXML читает упорядоченный список покупок из XML-файла.
// Нечитаемый файл или некорректная запись — ошибка уровня всего пакета:
// ни одна покупка из такого файла не передаётся в обработку.
func ReadPurchasesXML(path string) ([]model.Purchase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read purchases file: %w", err)
	}

	var doc purchasesDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode purchases file: %w", err)
	}

	purchases := make([]model.Purchase, 0, len(doc.Purchases))
	for i, p := range doc.Purchases {
		amount, err := decimal.NewFromString(strings.TrimSpace(p.Amount))
		if err != nil {
			return nil, fmt.Errorf("purchase %d: invalid amount %q: %w", i+1, p.Amount, err)
		}

		date, err := time.Parse(dateLayout, strings.TrimSpace(p.Date))
		if err != nil {
			return nil, fmt.Errorf("purchase %d: invalid date %q: %w", i+1, p.Date, err)
		}

		purchases = append(purchases, model.Purchase{
			CardNo: strings.TrimSpace(p.CardNo),
			Amount: amount,
			Date:   date,
		})
	}

	return purchases, nil
}

// WriteSamplePurchasesXML записывает файл с примером пакета покупок,
// включающим намеренный дубликат для проверки идемпотентности.
func WriteSamplePurchasesXML(path string) error {
	doc := purchasesDocument{
		Purchases: []purchaseXML{
			{CardNo: "CARD123456", Amount: "1500.50", Date: "2024-01-15"},
			{CardNo: "CARD789012", Amount: "2300.00", Date: "2024-01-15"},
			{CardNo: "CARD123456", Amount: "1500.50", Date: "2024-01-15"},
			{CardNo: "SHORT", Amount: "500.00", Date: "2024-01-16"},
		},
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sample purchases: %w", err)
	}

	content := append([]byte(xml.Header), data...)
	content = append(content, '\n')

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write sample purchases: %w", err)
	}

	return nil
}
