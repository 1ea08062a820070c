package query

import (
	"github.com/google/uuid"

	"PayLedger/internal/ledger"
)

// AccountsResponse lists accounts sorted by client.
type AccountsResponse struct {
	Accounts []ledger.Snapshot `json:"accounts"`
	Count    int               `json:"count"`
	Digest   string            `json:"digest"` // hex StateDigest of Accounts
}

// StatusResponse summarizes the running ledger.
type StatusResponse struct {
	RunID    uuid.UUID `json:"run_id"`
	Applied  int64     `json:"applied"`
	Rejected int64     `json:"rejected"`
	Accounts int       `json:"accounts"`
	Locked   int       `json:"locked"`
	Digest   string    `json:"digest"`
}
