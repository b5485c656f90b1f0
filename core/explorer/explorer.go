// Package explorer exposes read-only views of the ledger and lets auditors
// flag suspicious transactions.
package explorer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"arogyarakshak/core/block"
	"arogyarakshak/core/ledger"
	"arogyarakshak/core/wallet"
	"arogyarakshak/types/ids"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid explorer request")
)

const ActionAuditFlag = "AUDIT_FLAG"

// Version is the node software version, overridden at link time.
var Version = "0.1.0"

var Severities = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

// Chain is the part of the ledger the explorer reads and writes.
type Chain interface {
	ledger.Appender
	State() ledger.State
	Height() uint64
	Tip() block.Block
	Genesis() block.Block
	Block(blockNo uint64) (block.Block, error)
	BlockByHash(hash string) (block.Block, error)
	Transaction(txID string) (block.Transaction, error)
	TransactionsByActor(actor string) []block.Transaction
	TransactionsByRecordID(recordID string) []block.Transaction
	Stats() ledger.Stats
	VerifyIntegrity() ledger.IntegrityReport
}

// Match is one search hit. Kind is transaction, block, record or actor.
type Match struct {
	Kind        string             `json:"kind"`
	Block       *block.Block       `json:"block,omitempty"`
	Transaction *block.Transaction `json:"transaction,omitempty"`
}

type Stats struct {
	ledger.Stats
	Integrity ledger.IntegrityReport `json:"integrity"`
}

type NetworkInfo struct {
	NodeID      string   `json:"nodeId"`
	NodeOrg     string   `json:"nodeOrg"`
	ChainID     string   `json:"chainId"`
	Height      uint64   `json:"height"`
	TipHash     string   `json:"tipHash"`
	GenesisHash string   `json:"genesisHash"`
	State       string   `json:"state"`
	Peers       []string `json:"peers"`
	Version     string   `json:"version"`
}

type Flag struct {
	ID        string    `json:"id"`
	TxID      string    `json:"txId"`
	Auditor   string    `json:"auditor"`
	Reason    string    `json:"reason"`
	Severity  string    `json:"severity"`
	FlagTxID  string    `json:"flagTxId"`
	FlaggedAt time.Time `json:"flaggedAt"`
}

type Explorer struct {
	chain   Chain
	keys    wallet.KeyStore
	nodeOrg string
	chainID string

	mu    sync.RWMutex
	flags []Flag
	now   func() time.Time
}

// New returns an explorer for chain. The node is identified by the public
// key of nodeOrg.
func New(chain Chain, keys wallet.KeyStore, nodeOrg, chainID string) *Explorer {
	return &Explorer{chain: chain, keys: keys, nodeOrg: nodeOrg, chainID: chainID, now: time.Now}
}

// Search looks q up as a transaction id, block number, block hash, record id
// and actor, in that order, and returns every hit.
func (e *Explorer) Search(q string) ([]Match, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalid)
	}
	matches := []Match{}
	if tx, err := e.chain.Transaction(q); err == nil {
		matches = append(matches, Match{Kind: "transaction", Transaction: &tx})
	}
	if n, err := strconv.ParseUint(q, 10, 64); err == nil {
		if b, err := e.chain.Block(n); err == nil {
			matches = append(matches, Match{Kind: "block", Block: &b})
		}
	}
	if b, err := e.chain.BlockByHash(q); err == nil {
		matches = append(matches, Match{Kind: "block", Block: &b})
	}
	for _, tx := range e.chain.TransactionsByRecordID(q) {
		tx := tx
		matches = append(matches, Match{Kind: "record", Transaction: &tx})
	}
	for _, tx := range e.chain.TransactionsByActor(q) {
		tx := tx
		matches = append(matches, Match{Kind: "actor", Transaction: &tx})
	}
	return matches, nil
}

func (e *Explorer) Stats() Stats {
	return Stats{Stats: e.chain.Stats(), Integrity: e.chain.VerifyIntegrity()}
}

func (e *Explorer) Network() (NetworkInfo, error) {
	kp, err := e.keys.GetOrCreate(e.nodeOrg)
	if err != nil {
		return NetworkInfo{}, fmt.Errorf("node key: %w", err)
	}
	return NetworkInfo{
		NodeID:      kp.PublicKey,
		NodeOrg:     e.nodeOrg,
		ChainID:     e.chainID,
		Height:      e.chain.Height(),
		TipHash:     e.chain.Tip().BlockHash,
		GenesisHash: e.chain.Genesis().BlockHash,
		State:       e.chain.State().String(),
		Peers:       []string{},
		Version:     Version,
	}, nil
}

func (e *Explorer) Block(blockNo uint64) (block.Block, error) {
	b, err := e.chain.Block(blockNo)
	if errors.Is(err, ledger.ErrNotFound) {
		return block.Block{}, fmt.Errorf("%w: block %d", ErrNotFound, blockNo)
	}
	return b, err
}

// FlagTransaction records an auditor's concern about txID on the ledger.
func (e *Explorer) FlagTransaction(txID, auditor, reason, severity string) (Flag, error) {
	if reason == "" {
		return Flag{}, fmt.Errorf("%w: reason is required", ErrInvalid)
	}
	if severity == "" {
		severity = "medium"
	}
	if !Severities[severity] {
		return Flag{}, fmt.Errorf("%w: unknown severity %q", ErrInvalid, severity)
	}
	if auditor == "" {
		auditor = "auditor:system"
	}
	if _, err := e.chain.Transaction(txID); err != nil {
		return Flag{}, fmt.Errorf("%w: transaction %s", ErrNotFound, txID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	f := Flag{
		ID:       ids.NewEntityID("FLAG"),
		TxID:     txID,
		Auditor:  auditor,
		Reason:   reason,
		Severity: severity,
	}
	receipt, err := e.chain.AppendTx(ledger.TxInput{
		Actor:    auditor,
		Action:   ActionAuditFlag,
		RecordID: txID,
		Details:  map[string]any{"flagId": f.ID, "reason": reason, "severity": severity},
	})
	if err != nil {
		return Flag{}, err
	}
	f.FlagTxID = receipt.TxID
	f.FlaggedAt = e.now().UTC()
	e.flags = append(e.flags, f)
	return f, nil
}

// Flags lists flags, newest first.
func (e *Explorer) Flags() []Flag {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Flag, len(e.flags))
	for i, f := range e.flags {
		out[len(e.flags)-1-i] = f
	}
	return out
}
