package backtest

import "errors"

// ErrInsufficientData is returned when the supplied bar history is shorter
// than a policy's minimum. The engine fails before any curve point is
// emitted; a partial curve is never returned for this reason.
var ErrInsufficientData = errors.New("insufficient bar history")
