package cronexpr

import "errors"

// ErrInvalidExpression is the sentinel wrapped into every parse failure, so
// callers can recover with errors.Is(err, cronexpr.ErrInvalidExpression).
var ErrInvalidExpression = errors.New("invalid cron expression")
