package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"viklyst/internal/domain"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDay(s)
	if err != nil {
		t.Fatalf("parse day %q: %v", s, err)
	}
	return d
}

func TestClient_Predict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("expected path /predict, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Symbol != "ACME" {
			t.Errorf("expected symbol ACME, got %s", req.Symbol)
		}
		if req.FromDate != "2024-01-01" {
			t.Errorf("expected from_date 2024-01-01, got %s", req.FromDate)
		}
		if req.ToDate != "2024-02-15" {
			t.Errorf("expected to_date 2024-02-15, got %s", req.ToDate)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(predictResponse{
			Symbol:    "ACME",
			ModelFile: "acme_gb.joblib",
			AsOf:      "2024-02-15",
			ProbUp:    0.63,
			Predicted: 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	pred, err := client.Predict(context.Background(), "ACME", day(t, "2024-01-01"), day(t, "2024-02-15"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if pred.Symbol != "ACME" {
		t.Errorf("expected symbol ACME, got %s", pred.Symbol)
	}
	if pred.ProbUp != 0.63 {
		t.Errorf("expected probUp 0.63, got %v", pred.ProbUp)
	}
	if pred.Predicted != 1 {
		t.Errorf("expected predicted 1, got %d", pred.Predicted)
	}
	if pred.ModelFile != "acme_gb.joblib" {
		t.Errorf("expected model file acme_gb.joblib, got %s", pred.ModelFile)
	}
	if got := domain.FormatDay(pred.AsOf); got != "2024-02-15" {
		t.Errorf("expected asOf 2024-02-15, got %s", got)
	}
}

// The inference service encodes predicted as a bare 0/1 number, not a JSON
// bool. Decode its literal payload rather than one round-tripped through our
// own wire struct.
func TestClient_Predict_DecodesNumericPredicted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"ACME","model_file":"acme_gb.joblib","as_of":"2024-02-15","prob_up":0.63,"predicted":1}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)

	pred, err := client.Predict(context.Background(), "ACME", day(t, "2024-01-01"), day(t, "2024-02-15"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.Predicted != 1 {
		t.Errorf("expected predicted 1, got %d", pred.Predicted)
	}
	if pred.ProbUp != 0.63 {
		t.Errorf("expected probUp 0.63, got %v", pred.ProbUp)
	}
}

func TestClient_Predict_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(predictResponse{
			Symbol: "ACME", AsOf: "2024-02-15", ProbUp: 0.58, Predicted: 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, WithMaxRetries(3))

	pred, err := client.Predict(context.Background(), "ACME", day(t, "2024-01-01"), day(t, "2024-02-15"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if pred.ProbUp != 0.58 {
		t.Errorf("expected probUp 0.58, got %v", pred.ProbUp)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("expected 3 calls, got %d", got)
	}
}

func TestClient_Predict_UnavailableAfterRetries(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithMaxRetries(1))

	_, err := client.Predict(context.Background(), "ACME", day(t, "2024-01-01"), day(t, "2024-02-15"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 calls (1 retry), got %d", got)
	}
}

func TestClient_Predict_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown symbol", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithMaxRetries(3))

	_, err := client.Predict(context.Background(), "NOPE", day(t, "2024-01-01"), day(t, "2024-02-15"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("expected single call for 4xx, got %d", got)
	}
}

func TestClient_Predict_InvalidResponse(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"prob_up": `},
		{"bad as_of", `{"symbol":"ACME","as_of":"15/02/2024","prob_up":0.6,"predicted":1}`},
		{"prob out of range", `{"symbol":"ACME","as_of":"2024-02-15","prob_up":1.6,"predicted":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(tc.body))
			}))
			defer server.Close()

			client := NewClient(server.URL)

			_, err := client.Predict(context.Background(), "ACME", day(t, "2024-01-01"), day(t, "2024-02-15"))
			if !errors.Is(err, ErrInvalidResponse) {
				t.Fatalf("expected ErrInvalidResponse, got %v", err)
			}
		})
	}
}
