package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so callers can branch with errors.Is:
// - ErrNotFound: entity does not exist in store
// - ErrInvalidState: stored or received data is malformed for its use
// - ErrUnavailable: dependency temporarily unavailable
//
// Request validation failures use pkg/domain-errors instead.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
