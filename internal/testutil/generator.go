package testutil

import (
	"fmt"

	"PayLedger/internal/event"
	"PayLedger/internal/ledger"
	"PayLedger/internal/money"
)

// Workload shape per client. Amounts scale with the client id i.
const (
	GenDeposits    = 70
	GenWithdrawals = 20
	GenDisputes    = 5
	GenResolves    = 4

	// Deposits, withdrawals, disputes, resolves, then one final record
	GenRecordsPerClient = GenDeposits + GenWithdrawals + GenDisputes + GenResolves + 1

	genDepositUnits    = 10
	genWithdrawalUnits = 20
)

// GenerateClients builds a workload for clients 1..n whose final state is
// known in closed form (see ExpectedSnapshot). Records are emitted round
// by round: in every round each client produces its next record, so
// clients interleave. Deposit and withdrawal ids come from one global
// counter; disputes, resolves and the chargeback reference the deposit a
// client made in round k, whose id is k*n + client.
func GenerateClients(n int) ([]event.Transaction, error) {
	if n < 1 || n > 65535 {
		return nil, fmt.Errorf("number of clients must be in [1, 65535], got %d", n)
	}

	records := make([]event.Transaction, 0, n*GenRecordsPerClient)
	next := event.TransactionID(1)
	depositID := func(round, client int) event.TransactionID {
		return event.TransactionID(round*n + client)
	}

	for round := 0; round < GenRecordsPerClient; round++ {
		for c := 1; c <= n; c++ {
			client := event.ClientID(c)

			switch {
			case round < GenDeposits:
				records = append(records, &event.Deposit{ID: next, ClientID: client, Amount: units(genDepositUnits, c)})
				next++

			case round < GenDeposits+GenWithdrawals:
				records = append(records, &event.Withdrawal{ID: next, ClientID: client, Amount: units(genWithdrawalUnits, c)})
				next++

			case round < GenDeposits+GenWithdrawals+GenDisputes:
				k := round - GenDeposits - GenWithdrawals
				records = append(records, &event.Dispute{ID: depositID(k, c), ClientID: client})

			case round < GenDeposits+GenWithdrawals+GenDisputes+GenResolves:
				k := round - GenDeposits - GenWithdrawals - GenDisputes
				records = append(records, &event.Resolve{ID: depositID(k, c), ClientID: client})

			case c%2 == 0:
				// The deposit of round GenResolves is the one left disputed
				records = append(records, &event.Chargeback{ID: depositID(GenResolves, c), ClientID: client})

			default:
				records = append(records, &event.Withdrawal{ID: next, ClientID: client, Amount: units(genWithdrawalUnits, c)})
				next++
			}
		}
	}

	return records, nil
}

// ExpectedSnapshot is the final state of client i after GenerateClients:
// odd i ends with available 270i, held 10i, unlocked; even i with
// available 290i, held 0, locked.
func ExpectedSnapshot(i int) ledger.Snapshot {
	if i%2 == 1 {
		return ledger.Account{Available: units(270, i), Held: units(10, i)}.Snapshot(event.ClientID(i))
	}
	return ledger.Account{Available: units(290, i), Locked: true}.Snapshot(event.ClientID(i))
}

func units(whole, client int) money.Money {
	return money.FromUnits(int64(whole) * int64(client) * money.AmountConfig.Scale)
}
