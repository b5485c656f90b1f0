package genesis

import (
	"fmt"
	"time"

	"arogyarakshak/core/block"
	"arogyarakshak/types/ids"
)

const (
	// Action is the ledger action of the genesis transaction.
	Action = "GENESIS"
	// Actor is the actor of the genesis transaction.
	Actor = "system:genesis"
)

// CreateBlock builds block 0 from cfg. A nil cfg uses defaults and the
// current time.
func CreateBlock(cfg *Config) (block.Block, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	message := cfg.Message
	if message == "" {
		message = DefaultMessage
	}
	at := cfg.GenesisTime
	if at.IsZero() {
		at = time.Now()
	}
	txID, err := ids.NewTxID()
	if err != nil {
		return block.Block{}, fmt.Errorf("genesis: %w", err)
	}
	tx := block.Transaction{
		TxID:   txID,
		Actor:  Actor,
		Action: Action,
		Details: map[string]any{
			"message": message,
			"chainId": cfg.ChainID,
		},
	}
	blk, err := block.New(0, block.GenesisPreviousHash, tx, at)
	if err != nil {
		return block.Block{}, fmt.Errorf("genesis: %w", err)
	}
	return blk, nil
}

// IsGenesis reports whether b has the shape of a genesis block.
func IsGenesis(b block.Block) bool {
	return b.BlockNo == 0 &&
		b.PreviousHash == block.GenesisPreviousHash &&
		len(b.Transactions) == 1 &&
		b.Transactions[0].Action == Action
}
