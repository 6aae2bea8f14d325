package gamificationdb

import "errors"

// Sentinel errors for the repository layer.
// These are infrastructure-level signals; the service layer decides what they mean.
var (
	// ErrDuplicate indicates the ledger already holds the entry being appended:
	// the attempt was already scored, or the user already holds the badge kind.
	ErrDuplicate = errors.New("ledger entry already exists")
)
