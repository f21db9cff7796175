package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dvmnase/bonus-system/internal/model"
)

func TestWebhookObserverSend(t *testing.T) {
	var gotPath string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	obs := NewWebhookObserver(srv.URL)

	event := model.AwardEvent{
		CardNo:      "CARD123456",
		Amount:      decimal.RequireFromString("1000"),
		BonusAmount: decimal.RequireFromString("10"),
		Status:      model.StatusSuccess,
	}

	if err := obs.Send(context.Background(), event); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if gotPath != "/api/events" {
		t.Fatalf("request path = %q, want /api/events", gotPath)
	}

	var received model.AwardEvent
	if err := json.Unmarshal(gotBody, &received); err != nil {
		t.Fatalf("decode received event: %v", err)
	}
	if received.CardNo != event.CardNo || received.Status != event.Status {
		t.Fatalf("received event %+v, want %+v", received, event)
	}
}

func TestWebhookObserverSend_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	obs := NewWebhookObserver(srv.URL)

	err := obs.Send(context.Background(), model.AwardEvent{CardNo: "CARD123456"})
	if err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestWebhookObserverSend_NotConfigured(t *testing.T) {
	obs := NewWebhookObserver("")

	err := obs.Send(context.Background(), model.AwardEvent{})
	if err == nil {
		t.Fatalf("expected error for unconfigured observer")
	}
}

func TestWebhookObserver_ObserverSwallowsFailures(t *testing.T) {
	// Адрес без слушателя: доставка не удастся, но паники быть не должно.
	obs := NewWebhookObserver("127.0.0.1:0")

	fn := obs.Observer()
	fn(model.AwardEvent{CardNo: "CARD123456"})
}
