package clientip

import "errors"

// ErrInvalidProxy is returned by New for an unparsable trusted proxy entry.
var ErrInvalidProxy = errors.New("clientip: invalid trusted proxy")
