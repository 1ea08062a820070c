package core

import (
	"crypto/sha256"
	"encoding/binary"

	"PayLedger/internal/ledger"
)

const digestSeed = "PayLedger:accounts:v1"

// StateDigest computes SHA-256(seed || count || canonical(snapshot)...).
// Snapshots must be sorted by client; Store.Snapshots and MergeSnapshots
// both guarantee that. Two runs over the same input produce the same digest
// regardless of how the work was partitioned.
func StateDigest(snapshots []ledger.Snapshot) [32]byte {
	hasher := sha256.New()

	hasher.Write([]byte(digestSeed))

	// Write count (8 bytes LE)
	var countBuf [8]byte
	binary.LittleEndian.PutUint64(countBuf[:], uint64(len(snapshots)))
	hasher.Write(countBuf[:])

	for _, s := range snapshots {
		hasher.Write(s.CanonicalBytes())
	}

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	return hash
}
