package fmcsa

import "errors"

var (
	// ErrNoDataAvailable means the page exists but carries nothing for the carrier.
	ErrNoDataAvailable = errors.New("fmcsa: no data available")
	// ErrRecordNotFound means SAFER does not know the DOT number.
	ErrRecordNotFound = errors.New("fmcsa: record not found")
	// ErrInactiveRecord means SAFER knows the DOT number but it is inactive or out of service.
	ErrInactiveRecord = errors.New("fmcsa: inactive record")
	ErrFetchTimeout   = errors.New("fmcsa: fetch timed out")
	ErrUnknownPage    = errors.New("fmcsa: unknown page")
)
