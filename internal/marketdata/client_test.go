package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"viklyst/internal/domain"
	"viklyst/internal/storage"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDay(s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

func TestClient_GetDailyBars(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/instruments/ACME/bars/daily" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("from"); got != "2024-01-01" {
			t.Errorf("expected from 2024-01-01, got %s", got)
		}
		if got := r.URL.Query().Get("to"); got != "2024-01-03" {
			t.Errorf("expected to 2024-01-03, got %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(barsResponse{
			Symbol: "ACME",
			Bars: []barRow{
				{Day: "2024-01-01", Open: 99, High: 101, Low: 98, Close: 100, Volume: 5000},
				{Day: "2024-01-02", Open: 100, High: 103, Low: 100, Close: 102, Volume: 6200},
				{Day: "2024-01-03", Open: 102, High: 102, Low: 100, Close: 101, Volume: 4100},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	bars, err := client.GetDailyBars(context.Background(), "ACME", day(t, "2024-01-01"), day(t, "2024-01-03"))
	if err != nil {
		t.Fatalf("GetDailyBars: %v", err)
	}

	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if bars[0].Symbol != "ACME" {
		t.Errorf("expected symbol ACME, got %s", bars[0].Symbol)
	}
	if bars[1].Close != 102 {
		t.Errorf("expected close 102, got %v", bars[1].Close)
	}
	if got := domain.FormatDay(bars[2].Day); got != "2024-01-03" {
		t.Errorf("expected day 2024-01-03, got %s", got)
	}
}

func TestClient_GetDailyBars_UnknownSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such instrument", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.GetDailyBars(context.Background(), "NOPE", day(t, "2024-01-01"), day(t, "2024-01-03"))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_GetDailyBars_BreakerOpensAfterFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithRateLimit(1000, 1000))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := client.GetDailyBars(ctx, "ACME", day(t, "2024-01-01"), day(t, "2024-01-03")); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	// Breaker has tripped; subsequent calls fail fast without a request.
	_, err := client.GetDailyBars(ctx, "ACME", day(t, "2024-01-01"), day(t, "2024-01-03"))
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestClient_GetDailyBars_BadDay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(barsResponse{
			Symbol: "ACME",
			Bars:   []barRow{{Day: "01.02.2024", Close: 100}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	_, err := client.GetDailyBars(context.Background(), "ACME", day(t, "2024-01-01"), day(t, "2024-01-03"))
	if err == nil {
		t.Fatal("expected error for malformed day")
	}
}
