package domain

import "time"

// Bar represents one day's OHLCV record for an instrument.
// Corresponds to daily_bars tables in PostgreSQL and ClickHouse.
// Bars are ordered by day ascending and unique per (symbol, day);
// once fetched they are the immutable source of truth for all computation.
type Bar struct {
	Symbol string
	Day    time.Time // UTC midnight of the trading day
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DayFormat is the wire format for trading days.
const DayFormat = "2006-01-02"

// ParseDay parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DayFormat, s)
}

// FormatDay renders a trading day in wire format.
func FormatDay(t time.Time) string {
	return t.UTC().Format(DayFormat)
}
