// Package api exposes the instrument registry, bar series and backtest
// endpoints over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"viklyst/internal/backtest"
	"viklyst/internal/observability"
	"viklyst/internal/storage"
)

// Default backtest parameters applied when the query omits them.
const (
	DefaultLookback       = 20
	DefaultThreshold      = 0.55
	DefaultInitialCapital = 10000
)

// ServerOptions contains configuration for creating a Server.
type ServerOptions struct {
	Engine      *backtest.Engine
	Instruments storage.InstrumentStore
	Bars        storage.DailyBarStore
	Oracle      backtest.ProbabilitySource
	Lookback    int     // default momentum lookback, 0 means DefaultLookback
	Threshold   float64 // default ml threshold, 0 means DefaultThreshold
	Logger      zerolog.Logger
}

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	engine      *backtest.Engine
	instruments storage.InstrumentStore
	bars        storage.DailyBarStore
	oracle      backtest.ProbabilitySource
	lookback    int
	threshold   float64
	logger      zerolog.Logger
}

// NewServer creates a Server.
func NewServer(opts ServerOptions) *Server {
	lookback := opts.Lookback
	if lookback == 0 {
		lookback = DefaultLookback
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	return &Server{
		engine:      opts.Engine,
		instruments: opts.Instruments,
		bars:        opts.Bars,
		oracle:      opts.Oracle,
		lookback:    lookback,
		threshold:   threshold,
		logger:      opts.Logger,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.instrument)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", observability.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/instruments", s.handleListInstruments).Methods(http.MethodGet)
	api.HandleFunc("/instruments/{symbol}/bars/daily", s.handleDailyBars).Methods(http.MethodGet)
	api.HandleFunc("/backtests/baseline/buy-and-hold", s.handleBuyAndHold).Methods(http.MethodGet)
	api.HandleFunc("/backtests/momentum/curve", s.handleMomentumCurve).Methods(http.MethodGet)
	api.HandleFunc("/backtests/ml/curve", s.handleMLCurve).Methods(http.MethodGet)

	return r
}

// instrument is the request instrumentation middleware.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		elapsed := time.Since(start)
		observability.RecordHTTPRequest(route, r.Method, strconv.Itoa(rec.status), elapsed.Seconds())
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", elapsed).
			Msg("http request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorDTO{Error: msg})
}
