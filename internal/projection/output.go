package projection

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"PayLedger/internal/ledger"
)

var csvHeader = []string{"client", "available", "held", "total", "locked"}

// WriteCSV renders snapshots as client,available,held,total,locked with
// exactly four fractional digits. Rows are written in the given order;
// callers pass Store.Snapshots or MergeSnapshots, both sorted by client.
func WriteCSV(w io.Writer, snapshots []ledger.Snapshot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	row := make([]string, len(csvHeader))
	for _, s := range snapshots {
		row[0] = strconv.FormatUint(uint64(s.Client), 10)
		row[1] = s.Available.String()
		row[2] = s.Held.String()
		row[3] = s.Total.String()
		row[4] = strconv.FormatBool(s.Locked)
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON renders snapshots as a JSON array, amounts as strings.
func WriteJSON(w io.Writer, snapshots []ledger.Snapshot) error {
	if snapshots == nil {
		snapshots = []ledger.Snapshot{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snapshots)
}
