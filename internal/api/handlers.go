package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"viklyst/internal/backtest"
	"viklyst/internal/domain"
	"viklyst/internal/observability"
	"viklyst/internal/storage"
)

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.instruments.List(r.Context())
	if err != nil {
		s.handleStoreError(w, err)
		return
	}

	out := make([]instrumentDTO, 0, len(instruments))
	for _, ins := range instruments {
		out = append(out, toInstrumentDTO(ins))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDailyBars(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	from, to, err := parseRange(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The symbol must exist even when the range holds no bars.
	if _, err := s.instruments.GetBySymbol(r.Context(), symbol); err != nil {
		s.handleStoreError(w, err)
		return
	}

	bars, err := s.bars.GetBySymbolRange(r.Context(), symbol, from, to)
	if err != nil {
		s.handleStoreError(w, err)
		return
	}

	out := make([]barDTO, 0, len(bars))
	for _, bar := range bars {
		out = append(out, toBarDTO(bar))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleBuyAndHold returns the baseline summary directly, without curves.
func (s *Server) handleBuyAndHold(w http.ResponseWriter, r *http.Request) {
	req, err := parseBacktestRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	bundle, err := s.runBacktest(w, r, req, backtest.BuyAndHold{})
	if err != nil {
		return
	}

	s.writeJSON(w, http.StatusOK, toSummaryDTO(bundle.Summary))
}

func (s *Server) handleMomentumCurve(w http.ResponseWriter, r *http.Request) {
	req, err := parseBacktestRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	lookback := s.lookback
	if raw := r.URL.Query().Get("lookback"); raw != "" {
		lookback, err = strconv.Atoi(raw)
		if err != nil || lookback < 1 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid lookback %q", raw))
			return
		}
	}

	bundle, err := s.runBacktest(w, r, req, backtest.MomentumLookback{Lookback: lookback})
	if err != nil {
		return
	}

	s.writeJSON(w, http.StatusOK, toBundleDTO(bundle))
}

func (s *Server) handleMLCurve(w http.ResponseWriter, r *http.Request) {
	req, err := parseBacktestRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold := s.threshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil || threshold < 0 || threshold > 1 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid threshold %q", raw))
			return
		}
	}

	if s.oracle == nil {
		s.writeError(w, http.StatusServiceUnavailable, "ml backtests are not configured")
		return
	}

	bundle, err := s.runBacktest(w, r, req,
		backtest.ProbabilityGated{Oracle: s.oracle, Threshold: threshold})
	if err != nil {
		return
	}

	s.writeJSON(w, http.StatusOK, toBundleDTO(bundle))
}

// runBacktest executes one engine run and maps failures onto HTTP statuses.
// On failure the response has already been written and nil is returned.
func (s *Server) runBacktest(w http.ResponseWriter, r *http.Request, req backtest.Request, policy backtest.Policy) (*domain.CurveBundle, error) {
	start := time.Now()
	bundle, err := s.engine.Run(r.Context(), req, policy)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
	}
	observability.RecordBacktest(policy.ID(), status, elapsed.Seconds())

	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			s.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, backtest.ErrInsufficientData):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error().
				Str("strategy", policy.ID()).
				Str("symbol", req.Symbol).
				Err(err).
				Msg("backtest failed")
			s.writeError(w, http.StatusInternalServerError, "internal error")
		}
		return nil, err
	}

	return bundle, nil
}

func (s *Server) handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, storage.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error().Err(err).Msg("store query failed")
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseRange(r *http.Request) (from, to time.Time, err error) {
	q := r.URL.Query()

	rawFrom := q.Get("from")
	if rawFrom == "" {
		return from, to, fmt.Errorf("missing required parameter from")
	}
	from, err = domain.ParseDay(rawFrom)
	if err != nil {
		return from, to, fmt.Errorf("invalid from %q, want YYYY-MM-DD", rawFrom)
	}

	rawTo := q.Get("to")
	if rawTo == "" {
		return from, to, fmt.Errorf("missing required parameter to")
	}
	to, err = domain.ParseDay(rawTo)
	if err != nil {
		return from, to, fmt.Errorf("invalid to %q, want YYYY-MM-DD", rawTo)
	}

	if to.Before(from) {
		return from, to, fmt.Errorf("to %s precedes from %s", rawTo, rawFrom)
	}

	return from, to, nil
}

func parseBacktestRequest(r *http.Request) (backtest.Request, error) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		return backtest.Request{}, fmt.Errorf("missing required parameter symbol")
	}

	from, to, err := parseRange(r)
	if err != nil {
		return backtest.Request{}, err
	}

	capital := float64(DefaultInitialCapital)
	if raw := r.URL.Query().Get("initialCapital"); raw != "" {
		capital, err = strconv.ParseFloat(raw, 64)
		if err != nil || capital <= 0 {
			return backtest.Request{}, fmt.Errorf("invalid initialCapital %q", raw)
		}
	}

	return backtest.Request{
		Symbol:         symbol,
		From:           from,
		To:             to,
		InitialCapital: capital,
	}, nil
}
