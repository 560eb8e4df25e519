package ledger

import "errors"

// ErrDuplicateID is returned by Append when a transaction with the same
// ID is already present; the ledger keeps the first one.
var ErrDuplicateID = errors.New("duplicate transaction id")
