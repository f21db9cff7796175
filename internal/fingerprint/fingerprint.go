// Package fingerprint вычисляет ключи идемпотентности для покупок.
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/dvmnase/bonus-system/internal/model"
)

// Key возвращает детерминированный ключ идемпотентности покупки.
// Ключ строится по дате (с точностью до дня), номеру карты и сумме:
// две покупки одной картой на одну сумму в один календарный день
// считаются одним событием и дают одинаковый ключ.
func Key(p model.Purchase) string {
	canonical := fmt.Sprintf("%s_%s_%s", p.Date.Format("20060102"), p.CardNo, p.Amount.String())
	sum := sha256.Sum256([]byte(canonical))
	return base64.StdEncoding.EncodeToString(sum[:])
}
