package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newStubChannel serves the auth and data endpoints the client talks to and
// counts token requests so caching can be asserted.
func newStubChannel(t *testing.T, reservations []map[string]interface{}, tokenHits *int) *ChannelClient {
	return newStubChannelWithExpenses(t, reservations, nil, tokenHits)
}

func newStubChannelWithExpenses(t *testing.T, reservations, expenses []map[string]interface{}, tokenHits *int) *ChannelClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/accessTokens", func(w http.ResponseWriter, r *http.Request) {
		*tokenHits++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "opaque-token",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v1/reservations", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer opaque-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": reservations})
	})
	mux.HandleFunc("/v1/expenses", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"result": expenses})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &ChannelClient{
		baseURL:      server.URL,
		clientID:     "id",
		clientSecret: "secret",
		http:         server.Client(),
	}
}

func TestGetReservationsConvertsWirePayload(t *testing.T) {
	hits := 0
	cleaningFee := 148.0
	client := newStubChannel(t, []map[string]interface{}{
		{
			"id":            int64(4411),
			"guestName":     "Dana",
			"arrivalDate":   "2025-06-03",
			"departureDate": "2025-06-06",
			"channelName":   "Airbnb",
			"status":        "confirmed",
			"totalPrice":    812.50,
			"clientRevenue": 700.0,
			"cleaningFee":   cleaningFee,
		},
		{
			"id":            int64(4412),
			"guestName":     "Bad Dates",
			"arrivalDate":   "not-a-date",
			"departureDate": "2025-06-08",
		},
	}, &hits)

	got, err := client.GetReservations(context.Background(), 7, date(2025, 6, 1), date(2025, 6, 8), "checkout")
	if err != nil {
		t.Fatalf("GetReservations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the malformed row to be skipped, got %d rows", len(got))
	}

	r := got[0]
	if r.ID != "4411" || r.PropertyID != 7 {
		t.Errorf("identity mismatch: id=%s property=%d", r.ID, r.PropertyID)
	}
	if !r.IsAirbnb() {
		t.Error("Airbnb channel name not recognized")
	}
	if !r.GrossAmount.Equal(dec("812.5")) {
		t.Errorf("gross = %s", r.GrossAmount)
	}
	if r.CleaningFee == nil || !r.CleaningFee.Equal(dec("148")) {
		t.Errorf("cleaning fee override not carried: %v", r.CleaningFee)
	}
}

func TestGetExpensesSkipsMalformedRows(t *testing.T) {
	hits := 0
	client := newStubChannelWithExpenses(t, nil, []map[string]interface{}{
		{
			"id":          int64(300),
			"listingId":   7,
			"date":        "2025-06-04",
			"description": "Hot tub service",
			"category":    "maintenance",
			"amount":      90.0,
			"type":        "expense",
		},
		{
			"id":   int64(-12),
			"date": "2025-06-05",
		},
		{
			"id":   int64(301),
			"date": "last tuesday",
		},
	}, &hits)

	got, err := client.GetExpenses(context.Background(), 7, date(2025, 6, 1), date(2025, 6, 8))
	if err != nil {
		t.Fatalf("GetExpenses: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("negative-id and bad-date rows must be skipped, got %d rows", len(got))
	}
	if got[0].ID != 300 || !got[0].Amount.Equal(dec("90")) {
		t.Errorf("row mismatch: %+v", got[0])
	}
}

func TestTokenIsReusedAcrossCalls(t *testing.T) {
	hits := 0
	client := newStubChannel(t, nil, &hits)

	ctx := context.Background()
	if _, err := client.GetReservations(ctx, 1, date(2025, 6, 1), date(2025, 6, 8), "checkout"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := client.GetReservations(ctx, 1, date(2025, 6, 1), date(2025, 6, 8), "checkout"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected one token request, got %d", hits)
	}
}

func TestTokenExpiryFallsBackToExpiresIn(t *testing.T) {
	until := tokenExpiry("not-a-jwt", 120)
	if remain := time.Until(until); remain < 100*time.Second || remain > 140*time.Second {
		t.Fatalf("expected ~120s validity, got %s", remain)
	}
}

func TestCancelledCountCacheDisabledRecomputes(t *testing.T) {
	cache := NewCancelledCountCache(nil, 0)

	calls := 0
	compute := func() (int, error) {
		calls++
		return 3, nil
	}

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		n, err := cache.Count(ctx, 9, date(2025, 6, 1), date(2025, 6, 8), compute)
		if err != nil || n != 3 {
			t.Fatalf("count = %d, err = %v", n, err)
		}
	}
	if calls != 2 {
		t.Fatalf("disabled cache should recompute every time, got %d calls", calls)
	}

	// no-op on a disabled cache
	cache.Invalidate(ctx, 9, date(2025, 6, 1), date(2025, 6, 8))
}
