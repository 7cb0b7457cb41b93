package engine

import "errors"

// Error kinds raised by the engine. Callers test them with errors.Is; the
// wrapped message names the offending table, column or value.
var (
	ErrNotConnected = errors.New("database is not connected")
	ErrNotFound     = errors.New("not found")
	ErrSchema       = errors.New("schema violation")
	ErrType         = errors.New("type mismatch")
	ErrConstraint   = errors.New("constraint violation")
)
