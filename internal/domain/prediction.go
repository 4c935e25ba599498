package domain

import "time"

// Prediction is the Probability Oracle's estimate of next-day movement
// for a symbol as of a given day.
type Prediction struct {
	Symbol    string
	AsOf      time.Time
	ProbUp    float64 // probability of an upward close tomorrow, in [0,1]
	Predicted int     // 1 = up, 0 = down
	ModelFile string  // model artifact the oracle served from
}
