package pagerduty

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/target/redis-bulk-actions/internal/observability/notify"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error when routing key missing")
	}
}

func TestBuildEventDefaults(t *testing.T) {
	client, err := NewClient(Config{RoutingKey: "key", Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	event := client.buildEvent(notify.BulkActionFailurePayload{
		ActionID:   "123",
		ActionType: "unlink",
		DatabaseID: "cache",
		Error:      "boom",
		ErrorClass: "err_class",
	})

	payloadSection, ok := event["payload"].(map[string]any)
	if !ok {
		t.Fatalf("expected payload section")
	}
	if payloadSection["severity"] != notify.SeverityCritical {
		t.Fatalf("expected default severity, got %v", payloadSection["severity"])
	}
	if payloadSection["source"] != "redis-bulk-actions" {
		t.Fatalf("expected default source, got %v", payloadSection["source"])
	}
	if summary, _ := payloadSection["summary"].(string); summary != "Bulk unlink 123 on database cache failed" {
		t.Fatalf("unexpected summary %q", summary)
	}

	custom, ok := payloadSection["custom_details"].(map[string]any)
	if !ok {
		t.Fatalf("expected custom details")
	}
	for _, key := range []string{"action_id", "action_type", "database_id", "error", "error_class"} {
		if _, exists := custom[key]; !exists {
			t.Fatalf("expected key %s in custom details", key)
		}
	}

	if dedup, _ := event["dedup_key"].(string); !strings.Contains(dedup, "123") {
		t.Fatalf("expected dedup key to reference action id, got %s", dedup)
	}
}

func TestSendBulkActionFailureUsesEndpoint(t *testing.T) {
	var routingKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		routingKey, _ = body["routing_key"].(string)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	client, err := NewClient(Config{RoutingKey: "rk", Endpoint: srv.URL, Client: srv.Client()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := client.SendBulkActionFailure(context.Background(), notify.BulkActionFailurePayload{ActionID: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if routingKey != "rk" {
		t.Fatalf("expected routing key rk, got %q", routingKey)
	}
}
