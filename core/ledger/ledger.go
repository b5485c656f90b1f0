// Package ledger is the append-only audit log behind every domain action.
// Each action becomes a single-transaction block chained to its parent by
// hash. Blocks are persisted to a LevelDB store before they become visible
// and a JSON snapshot of the chain is written periodically.
package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"arogyarakshak/core/block"
	"arogyarakshak/core/genesis"
	"arogyarakshak/core/storage"
	"arogyarakshak/types/ids"
)

var (
	ErrInvalidTx = errors.New("invalid transaction")
	ErrNotReady  = errors.New("ledger is not ready")
	ErrNotFound  = errors.New("not found")
)

const (
	DefaultSnapshotEvery = 50
	StoreDirName         = "ledger.db"
	SnapshotFileName     = "ledger.json"
)

// State is the lifecycle state of a Ledger.
type State int

const (
	Uninitialized State = iota
	Loading
	Ready
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options configures Open.
type Options struct {
	// Dir holds the block store and snapshot. Empty keeps everything in memory.
	Dir string
	// Cipher seals blocks at rest. Nil stores them in plaintext.
	Cipher storage.Cipher
	// SnapshotEvery is the number of appends between snapshots. Zero means
	// DefaultSnapshotEvery, negative disables periodic snapshots.
	SnapshotEvery int
	Genesis       *genesis.Config
	Clock         func() time.Time
	Logger        *log.Logger
}

// TxInput describes an action to record.
type TxInput struct {
	Actor    string
	Action   string
	RecordID string
	Details  map[string]any
}

// Receipt identifies an appended transaction.
type Receipt struct {
	TxID      string `json:"txId"`
	BlockNo   uint64 `json:"blockNo"`
	Timestamp string `json:"timestamp"`
	BlockHash string `json:"blockHash"`
}

// Appender is the write side of the ledger used by the domain managers.
type Appender interface {
	AppendTx(in TxInput) (Receipt, error)
}

// Ledger is safe for concurrent use. Appends are serialized.
type Ledger struct {
	mu            sync.RWMutex
	state         State
	store         *storage.Storage
	chain         []block.Block
	idx           *ChainIndexes
	snapshotPath  string
	snapshotEvery int
	sinceSnapshot int
	clock         func() time.Time
	logger        *log.Logger
}

// Open loads the chain from the block store. An empty store is seeded from a
// legacy snapshot when one decodes, otherwise from a new genesis block. A
// block that cannot be decoded fails Open.
func Open(opts Options) (*Ledger, error) {
	l := &Ledger{
		state:         Loading,
		idx:           newChainIndexes(),
		snapshotEvery: opts.SnapshotEvery,
		clock:         opts.Clock,
		logger:        opts.Logger,
	}
	if l.snapshotEvery == 0 {
		l.snapshotEvery = DefaultSnapshotEvery
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.logger == nil {
		l.logger = log.Default()
	}

	var err error
	if opts.Dir == "" {
		l.store, err = storage.NewMemStorage(opts.Cipher)
	} else {
		if err = os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, err
		}
		l.snapshotPath = filepath.Join(opts.Dir, SnapshotFileName)
		l.store, err = storage.NewStorage(filepath.Join(opts.Dir, StoreDirName), opts.Cipher)
	}
	if err != nil {
		return nil, err
	}

	chain, err := l.store.LoadBlocks()
	if err != nil {
		l.store.Close()
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	if len(chain) == 0 {
		if chain, err = l.seed(opts.Genesis); err != nil {
			l.store.Close()
			return nil, err
		}
	}
	for i, b := range chain {
		l.idx.add(uint64(i), b)
	}
	l.chain = chain
	l.state = Ready
	l.logger.Printf("[LEDGER] Ready with %d blocks, tip %s", len(chain), chain[len(chain)-1].BlockHash)
	return l, nil
}

// seed populates an empty store from the snapshot or a genesis block.
func (l *Ledger) seed(cfg *genesis.Config) ([]block.Block, error) {
	if chain := l.readLegacySnapshot(); len(chain) > 0 {
		for _, b := range chain {
			if err := l.store.AppendBlock(b); err != nil {
				return nil, fmt.Errorf("import snapshot: %w", err)
			}
		}
		l.logger.Printf("[LEDGER] Imported %d blocks from %s", len(chain), l.snapshotPath)
		return chain, nil
	}
	g, err := genesis.CreateBlock(cfg)
	if err != nil {
		return nil, err
	}
	l.logger.Printf("[LEDGER] Created genesis block %s for chain %q", g.BlockHash, g.Tx().Details["chainId"])
	if err := l.store.AppendBlock(g); err != nil {
		return nil, fmt.Errorf("persist genesis: %w", err)
	}
	if l.snapshotPath != "" {
		if err := storage.WriteSnapshot(l.snapshotPath, []block.Block{g}); err != nil {
			l.logger.Printf("[LEDGER] WARNING: snapshot write failed: %v", err)
		}
	}
	return []block.Block{g}, nil
}

// readLegacySnapshot returns the snapshot chain if it exists, decodes and
// passes VerifyBlocks. Anything else is moved aside so it is not overwritten.
func (l *Ledger) readLegacySnapshot() []block.Block {
	if l.snapshotPath == "" {
		return nil
	}
	chain, err := storage.ReadSnapshot(l.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err == nil {
		if report := VerifyBlocks(chain); !report.Valid {
			err = fmt.Errorf("integrity check failed: %s", strings.Join(report.Errors, "; "))
		}
	}
	if err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", l.snapshotPath, l.clock().Unix())
		l.logger.Printf("[LEDGER] WARNING: ignoring unreadable snapshot (%v); moved to %s", err, aside)
		if rerr := os.Rename(l.snapshotPath, aside); rerr != nil {
			l.logger.Printf("[LEDGER] WARNING: could not move snapshot: %v", rerr)
		}
		return nil
	}
	return chain
}

// State returns the lifecycle state.
func (l *Ledger) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// AppendTx records an action as a new block. The block is durable before it
// is visible to readers; a failed write leaves the chain unchanged.
func (l *Ledger) AppendTx(in TxInput) (Receipt, error) {
	if in.Actor == "" || in.Action == "" {
		return Receipt{}, fmt.Errorf("%w: actor and action are required", ErrInvalidTx)
	}
	details, err := normalizeDetails(in.Details)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %v", ErrInvalidTx, err)
	}
	txID, err := ids.NewTxID()
	if err != nil {
		return Receipt{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != Ready {
		return Receipt{}, fmt.Errorf("%w: %s", ErrNotReady, l.state)
	}
	tip := l.chain[len(l.chain)-1]
	b, err := block.New(uint64(len(l.chain)), tip.BlockHash, block.Transaction{
		TxID:     txID,
		Actor:    in.Actor,
		Action:   in.Action,
		RecordID: in.RecordID,
		Details:  details,
	}, l.clock())
	if err != nil {
		return Receipt{}, err
	}
	if err := l.store.AppendBlock(b); err != nil {
		return Receipt{}, fmt.Errorf("persist block %d: %w", b.BlockNo, err)
	}
	l.chain = append(l.chain, b)
	l.idx.add(uint64(len(l.chain)-1), b)

	l.sinceSnapshot++
	if l.snapshotEvery > 0 && l.sinceSnapshot >= l.snapshotEvery {
		l.snapshotLocked()
	}
	return Receipt{TxID: txID, BlockNo: b.BlockNo, Timestamp: b.Timestamp, BlockHash: b.BlockHash}, nil
}

// Snapshot writes the chain to the snapshot file now.
func (l *Ledger) Snapshot() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.snapshotPath == "" {
		return nil
	}
	l.sinceSnapshot = 0
	return storage.WriteSnapshot(l.snapshotPath, l.chain)
}

func (l *Ledger) snapshotLocked() {
	if l.snapshotPath == "" {
		return
	}
	if err := storage.WriteSnapshot(l.snapshotPath, l.chain); err != nil {
		// Blocks are already durable in the store; the next attempt retries.
		l.logger.Printf("[LEDGER] WARNING: snapshot write failed: %v", err)
		return
	}
	l.sinceSnapshot = 0
}

// Close writes a final snapshot and releases the block store.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == Closed {
		return nil
	}
	var snapErr error
	if l.snapshotPath != "" {
		snapErr = storage.WriteSnapshot(l.snapshotPath, l.chain)
	}
	l.state = Closed
	if err := l.store.Close(); err != nil {
		return err
	}
	return snapErr
}

// normalizeDetails deep-copies details into the form they take after a
// JSON round trip, so in-memory and reloaded blocks hash identically.
func normalizeDetails(details map[string]any) (map[string]any, error) {
	if len(details) == 0 {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
