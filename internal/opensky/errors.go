package opensky

import "errors"

var (
	// ErrUnauthorized is returned for 401/403 responses.
	ErrUnauthorized = errors.New("opensky: unauthorized")
	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("opensky: rate limited")
	// ErrUpstream covers any other non-2xx response.
	ErrUpstream = errors.New("opensky: upstream error")
)
