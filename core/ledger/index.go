package ledger

import (
	"time"

	"arogyarakshak/core/block"
)

// ChainIndexes maps lookup keys to chain positions. Blocks carry one
// transaction each, so a block number also identifies its transaction.
type ChainIndexes struct {
	ByTxID     map[string]uint64
	ByHash     map[string]uint64
	ByActor    map[string][]uint64
	ByAction   map[string][]uint64
	ByRecordID map[string][]uint64
	// Times holds each block's parsed transaction timestamp, by position.
	Times []time.Time
}

func newChainIndexes() *ChainIndexes {
	return &ChainIndexes{
		ByTxID:     make(map[string]uint64),
		ByHash:     make(map[string]uint64),
		ByActor:    make(map[string][]uint64),
		ByAction:   make(map[string][]uint64),
		ByRecordID: make(map[string][]uint64),
	}
}

// add indexes b at chain position n.
func (ix *ChainIndexes) add(n uint64, b block.Block) {
	ix.ByHash[b.BlockHash] = n
	tx := b.Tx()
	ts, err := block.ParseTime(tx.Timestamp)
	if err != nil {
		ts, _ = block.ParseTime(b.Timestamp)
	}
	ix.Times = append(ix.Times, ts)
	if tx.TxID == "" {
		return
	}
	ix.ByTxID[tx.TxID] = n
	ix.ByActor[tx.Actor] = append(ix.ByActor[tx.Actor], n)
	ix.ByAction[tx.Action] = append(ix.ByAction[tx.Action], n)
	if tx.RecordID != "" {
		ix.ByRecordID[tx.RecordID] = append(ix.ByRecordID[tx.RecordID], n)
	}
}
