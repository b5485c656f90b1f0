package block

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"arogyarakshak/core"
)

// TimeFormat is the timestamp layout used on transactions and blocks:
// RFC3339 in UTC with millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z"

// GenesisPreviousHash is the previousHash of block 0.
const GenesisPreviousHash = "0"

// Transaction is one audited action. Every block carries exactly one.
type Transaction struct {
	TxID      string         `json:"txId"`
	BlockNo   uint64         `json:"blockNo"`
	Timestamp string         `json:"timestamp"`
	Actor     string         `json:"actor"`  // "role:id"
	Action    string         `json:"action"` // e.g. RECORD_ADD
	RecordID  string         `json:"recordId,omitempty"`
	Details   map[string]any `json:"details"`
	Hash      string         `json:"hash"`
}

// Block is a single-transaction block linked to its parent by PreviousHash.
type Block struct {
	BlockNo      uint64        `json:"blockNo"`
	Timestamp    string        `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	PreviousHash string        `json:"previousHash"`
	BlockHash    string        `json:"blockHash"`
}

// FormatTime renders t in TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a transaction or block timestamp.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// ComputeHash hashes the canonical form of tx with its hash field blanked.
func (tx Transaction) ComputeHash() (string, error) {
	tx.Hash = ""
	if tx.Details == nil {
		tx.Details = map[string]any{}
	}
	return core.Hash(tx)
}

// ComputeHash hashes the canonical form of the block without its blockHash.
func (b Block) ComputeHash() (string, error) {
	header := struct {
		BlockNo      uint64        `json:"blockNo"`
		Timestamp    string        `json:"timestamp"`
		Transactions []Transaction `json:"transactions"`
		PreviousHash string        `json:"previousHash"`
	}{b.BlockNo, b.Timestamp, b.Transactions, b.PreviousHash}
	return core.Hash(header)
}

// Tx returns the block's transaction. Blocks read from disk are checked for
// the single-transaction shape by the ledger verifier before this is relied on.
func (b Block) Tx() Transaction {
	if len(b.Transactions) == 0 {
		return Transaction{}
	}
	return b.Transactions[0]
}

// New seals tx into block blockNo on top of previousHash. The transaction's
// blockNo and hash are filled in, then the block hash is computed.
func New(blockNo uint64, previousHash string, tx Transaction, at time.Time) (Block, error) {
	if tx.TxID == "" {
		return Block{}, errors.New("block: transaction id is required")
	}
	if tx.Details == nil {
		tx.Details = map[string]any{}
	}
	ts := FormatTime(at)
	tx.BlockNo = blockNo
	if tx.Timestamp == "" {
		tx.Timestamp = ts
	}
	h, err := tx.ComputeHash()
	if err != nil {
		return Block{}, fmt.Errorf("block %d: hash transaction: %w", blockNo, err)
	}
	tx.Hash = h

	b := Block{
		BlockNo:      blockNo,
		Timestamp:    ts,
		Transactions: []Transaction{tx},
		PreviousHash: previousHash,
	}
	if b.BlockHash, err = b.ComputeHash(); err != nil {
		return Block{}, fmt.Errorf("block %d: hash block: %w", blockNo, err)
	}
	return b, nil
}

// Serialize encodes the block as JSON.
func (b Block) Serialize() ([]byte, error) {
	return json.Marshal(b)
}

// Deserialize decodes a block. Numbers inside details are kept as json.Number
// so that re-hashing reproduces the stored digest exactly.
func Deserialize(data []byte) (Block, error) {
	var b Block
	if err := decodeStrict(data, &b); err != nil {
		return Block{}, err
	}
	return b, nil
}

// DeserializeChain decodes a JSON array of blocks.
func DeserializeChain(data []byte) ([]Block, error) {
	var chain []Block
	if err := decodeStrict(data, &chain); err != nil {
		return nil, err
	}
	return chain, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
