// Package notify предоставляет внешний канал уведомлений о начислениях.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dvmnase/bonus-system/internal/model"
)

// WebhookObserver отправляет события обработки покупок на внешний адрес
// одним POST-запросом на событие. Доставка выполняется по принципу
// "best effort": неудачная отправка не влияет на обработку пакета.
type WebhookObserver struct {
	baseURL    string
	httpClient *http.Client
}

// NewWebhookObserver создаёт наблюдателя, отправляющего события по указанному адресу.
func NewWebhookObserver(baseURL string) *WebhookObserver {
	return &WebhookObserver{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Send отправляет одно событие. Возвращает ошибку только для диагностики,
// вызывающая сторона вправе её игнорировать.
func (o *WebhookObserver) Send(ctx context.Context, event model.AwardEvent) error {
	if o == nil || o.baseURL == "" {
		return fmt.Errorf("webhook observer not configured")
	}

	base := o.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	url := base + "/api/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}

// Observer возвращает подписчика для сервиса начислений.
// Ошибки доставки игнорируются: канал уведомлений не персистентный.
func (o *WebhookObserver) Observer() func(event model.AwardEvent) {
	return func(event model.AwardEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Send(ctx, event)
	}
}
