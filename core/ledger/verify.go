package ledger

import (
	"fmt"

	"arogyarakshak/core/block"
)

// IntegrityReport lists every problem found while walking the chain.
type IntegrityReport struct {
	Valid         bool     `json:"valid"`
	Errors        []string `json:"errors"`
	BlocksChecked int      `json:"blocksChecked"`
}

// VerifyIntegrity checks the whole in-memory chain.
func (l *Ledger) VerifyIntegrity() IntegrityReport {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return VerifyBlocks(l.chain)
}

// VerifyBlocks checks numbering, transaction shape and hashes, and parent
// linkage for every block. It does not stop at the first failure; each error
// names the block position it concerns.
func VerifyBlocks(chain []block.Block) IntegrityReport {
	report := IntegrityReport{Errors: []string{}, BlocksChecked: len(chain)}
	fail := func(format string, args ...any) {
		report.Errors = append(report.Errors, fmt.Sprintf(format, args...))
	}
	if len(chain) == 0 {
		fail("chain is empty")
	}
	for i, b := range chain {
		n := uint64(i)
		if b.BlockNo != n {
			fail("block %d: blockNo is %d", i, b.BlockNo)
		}
		if len(b.Transactions) != 1 {
			fail("block %d: expected exactly one transaction, found %d", i, len(b.Transactions))
		} else {
			tx := b.Transactions[0]
			if tx.BlockNo != b.BlockNo {
				fail("block %d: transaction %s has blockNo %d", i, tx.TxID, tx.BlockNo)
			}
			if h, err := tx.ComputeHash(); err != nil {
				fail("block %d: transaction %s cannot be hashed: %v", i, tx.TxID, err)
			} else if h != tx.Hash {
				fail("block %d: transaction %s hash mismatch", i, tx.TxID)
			}
		}
		if h, err := b.ComputeHash(); err != nil {
			fail("block %d: cannot be hashed: %v", i, err)
		} else if h != b.BlockHash {
			fail("block %d: blockHash mismatch", i)
		}
		if i == 0 {
			if b.PreviousHash != block.GenesisPreviousHash {
				fail("block 0: genesis previousHash is %q", b.PreviousHash)
			}
		} else if b.PreviousHash != chain[i-1].BlockHash {
			fail("block %d: previousHash does not match block %d", i, i-1)
		}
	}
	report.Valid = len(report.Errors) == 0
	return report
}
