package domain

import "errors"

var (
	// ErrEmptyFeed is returned for blank response text. It is the "no result"
	// sentinel: nothing to parse, not a malformed document.
	ErrEmptyFeed = errors.New("empty feed")

	// ErrParse marks a structurally invalid feed document.
	ErrParse = errors.New("parse feed")

	// ErrNetwork marks a failed fetch: bad URL, transport error, or non-200 status.
	ErrNetwork = errors.New("fetch feed")
)
