package core

import "errors"

// Transaction-level rejections. Apply wraps them with detail; match with
// errors.Is. None of them is fatal: the record is skipped and the store is
// left untouched.
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrDuplicateTransaction = errors.New("duplicate transaction")
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountLocked        = errors.New("account locked")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrTransactionNotFound  = errors.New("transaction not found")

	// ErrBalanceOverflow rejects a record whose result would not fit the
	// fixed-point range of Money.
	ErrBalanceOverflow = errors.New("balance overflow")
)

var rejectReasons = []struct {
	err    error
	reason string
}{
	{ErrInvalidAmount, "invalid_amount"},
	{ErrDuplicateTransaction, "duplicate_transaction"},
	{ErrAccountNotFound, "account_not_found"},
	{ErrAccountLocked, "account_locked"},
	{ErrInsufficientFunds, "insufficient_funds"},
	{ErrTransactionNotFound, "transaction_not_found"},
	{ErrBalanceOverflow, "balance_overflow"},
}

// RejectReason returns a stable snake_case label for a rejection, used as a
// metric label and log field. Errors that are not rejections map to "unknown".
func RejectReason(err error) string {
	for _, r := range rejectReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "unknown"
}

// IsRejection reports whether err is one of the transaction-level rejections.
func IsRejection(err error) bool {
	return RejectReason(err) != "unknown"
}
