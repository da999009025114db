package execution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPVenue_Submit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != venueOrdersPath {
			t.Errorf("expected path %s, got %s", venueOrdersPath, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", got)
		}

		var order VenueOrder
		if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
			t.Fatalf("decode order: %v", err)
		}
		if order.Side != SideBuy {
			t.Errorf("expected side buy, got %s", order.Side)
		}
		if order.NotionalUSD != 500 {
			t.Errorf("expected notional 500, got %v", order.NotionalUSD)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         "filled",
			"order_id":       "ord-42",
			"fill_price_usd": 0.0205,
			"filled_qty":     24390.2,
			"tx_signature":   "sig-42",
		})
	}))
	defer server.Close()

	venue := NewHTTPVenue(server.URL, WithVenueAPIKey("test-key"))
	fill, err := venue.Submit(context.Background(), VenueOrder{
		ClientOrderID:    "pos-1",
		Side:             SideBuy,
		Address:          "mint-1",
		NotionalUSD:      500,
		ExpectedPriceUSD: 0.02,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if fill.OrderID != "ord-42" {
		t.Errorf("OrderID = %q, want ord-42", fill.OrderID)
	}
	if fill.PriceUSD != 0.0205 {
		t.Errorf("PriceUSD = %v, want 0.0205", fill.PriceUSD)
	}
	if fill.TxSignature != "sig-42" {
		t.Errorf("TxSignature = %q, want sig-42", fill.TxSignature)
	}
}

func TestHTTPVenue_Submit_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "rejected",
			"reason": "slippage exceeded",
		})
	}))
	defer server.Close()

	venue := NewHTTPVenue(server.URL)
	_, err := venue.Submit(context.Background(), VenueOrder{Side: SideBuy, Address: "mint-1"})
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if IsRetryable(err) {
		t.Errorf("rejection classified transient: %v", err)
	}
}

func TestHTTPVenue_Submit_RateLimitedIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	venue := NewHTTPVenue(server.URL)
	_, err := venue.Submit(context.Background(), VenueOrder{Side: SideBuy, Address: "mint-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("429 not classified transient: %v", err)
	}

	var ve *VenueError
	if !errors.As(err, &ve) {
		t.Fatalf("error type = %T, want *VenueError", err)
	}
	if ve.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", ve.StatusCode)
	}
}

func TestHTTPVenue_Submit_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	venue := NewHTTPVenue(server.URL)
	_, err := venue.Submit(context.Background(), VenueOrder{Side: SideBuy, Address: "mint-1"})
	if !IsRetryable(err) {
		t.Errorf("502 not classified transient: %v", err)
	}
}

func TestHTTPVenue_Submit_BadRequestIsFinal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown mint", http.StatusBadRequest)
	}))
	defer server.Close()

	venue := NewHTTPVenue(server.URL)
	_, err := venue.Submit(context.Background(), VenueOrder{Side: SideBuy, Address: "mint-1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Errorf("400 classified transient: %v", err)
	}
}

func TestHTTPVenue_Submit_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	venue := NewHTTPVenue(server.URL)
	_, err := venue.Submit(context.Background(), VenueOrder{Side: SideBuy, Address: "mint-1"})
	if !IsRetryable(err) {
		t.Errorf("connection refusal not classified transient: %v", err)
	}
}

func TestHTTPVenue_Submit_Timeout(t *testing.T) {
	var served atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served.Store(true)
		<-r.Context().Done()
	}))
	defer server.Close()

	venue := NewHTTPVenue(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := venue.Submit(ctx, VenueOrder{Side: SideBuy, Address: "mint-1"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("submit blocked %v past its deadline", elapsed)
	}
	if !served.Load() {
		t.Error("request never reached the server")
	}
	if !IsRetryable(err) {
		t.Errorf("timeout not classified transient: %v", err)
	}
}
