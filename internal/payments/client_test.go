// README: Gateway client tests against a stub HTTP server.
package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bistro/internal/types"
)

func TestChargeSendsAmountAndReference(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":       true,
			"transactionId": "txn_123",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "secret-key")
	res, err := client.Charge(context.Background(), types.Money{Amount: 1810, Currency: "GBP"}, "ORD-20260831-001")
	if err != nil {
		t.Fatalf("charge: %v", err)
	}

	if !res.Success || res.TransactionID != "txn_123" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotPath != "/charge" {
		t.Errorf("expected /charge, got %s", gotPath)
	}
	if gotAuth != "Bearer secret-key" {
		t.Errorf("expected bearer auth, got %q", gotAuth)
	}
	if gotBody["amount"] != float64(1810) || gotBody["currency"] != "GBP" {
		t.Errorf("unexpected charge body: %+v", gotBody)
	}
	if gotBody["reference"] != "ORD-20260831-001" {
		t.Errorf("expected order reference, got %v", gotBody["reference"])
	}
}

func TestChargeDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "insufficient funds",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	res, err := client.Charge(context.Background(), types.Money{Amount: 100, Currency: "GBP"}, "ORD-1")
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if res.Success {
		t.Fatal("expected declined charge")
	}
	if res.Error != "insufficient funds" {
		t.Errorf("unexpected decline reason: %q", res.Error)
	}
}

func TestGatewayServerErrorSurfacesAsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	if _, err := client.Charge(context.Background(), types.Money{Amount: 100, Currency: "GBP"}, "ORD-1"); err == nil {
		t.Fatal("expected error for 5xx response")
	}
}

func TestRefund(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/refund" {
			t.Errorf("expected /refund, got %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	if err := client.Refund(context.Background(), "txn_123", types.Money{Amount: 1810, Currency: "GBP"}); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if gotBody["transactionId"] != "txn_123" {
		t.Errorf("unexpected refund body: %+v", gotBody)
	}
}

func TestRefundDeclined(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "too late"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")
	err := client.Refund(context.Background(), "txn_123", types.Money{Amount: 1810, Currency: "GBP"})
	if err == nil || !strings.Contains(err.Error(), "too late") {
		t.Fatalf("expected declined refund error, got %v", err)
	}
}
