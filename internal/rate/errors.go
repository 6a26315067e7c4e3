package rate

import "errors"

// ErrRateLimited reports an exhausted failed-login budget.
var ErrRateLimited = errors.New("rate limited")
