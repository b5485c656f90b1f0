package ledger

import (
	"fmt"
	"sort"
	"time"

	"arogyarakshak/core/block"
)

// Filter selects transactions for Query. Zero fields match everything.
type Filter struct {
	Actor    string
	Action   string
	RecordID string
	From     time.Time
	To       time.Time
	Limit    int
}

func (l *Ledger) Height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return uint64(len(l.chain))
}

// Tip returns the latest block.
func (l *Ledger) Tip() block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1]
}

// Genesis returns block 0.
func (l *Ledger) Genesis() block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[0]
}

// Blocks returns a copy of the chain.
func (l *Ledger) Blocks() []block.Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]block.Block, len(l.chain))
	copy(out, l.chain)
	return out
}

func (l *Ledger) Block(blockNo uint64) (block.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if blockNo >= uint64(len(l.chain)) {
		return block.Block{}, fmt.Errorf("block %d: %w", blockNo, ErrNotFound)
	}
	return l.chain[blockNo], nil
}

func (l *Ledger) BlockByHash(hash string) (block.Block, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.idx.ByHash[hash]
	if !ok {
		return block.Block{}, fmt.Errorf("block %s: %w", hash, ErrNotFound)
	}
	return l.chain[n], nil
}

func (l *Ledger) Transaction(txID string) (block.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n, ok := l.idx.ByTxID[txID]
	if !ok {
		return block.Transaction{}, fmt.Errorf("transaction %s: %w", txID, ErrNotFound)
	}
	return l.chain[n].Tx(), nil
}

// Transactions returns every transaction in chain order.
func (l *Ledger) Transactions() []block.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]block.Transaction, 0, len(l.chain))
	for _, b := range l.chain {
		out = append(out, b.Tx())
	}
	return out
}

func (l *Ledger) TransactionsByActor(actor string) []block.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.idx.ByActor[actor])
}

func (l *Ledger) TransactionsByAction(action string) []block.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.idx.ByAction[action])
}

func (l *Ledger) TransactionsByRecordID(recordID string) []block.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.collect(l.idx.ByRecordID[recordID])
}

// TransactionsByDateRange returns transactions with from <= timestamp <= to,
// in chain order.
func (l *Ledger) TransactionsByDateRange(from, to time.Time) []block.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []block.Transaction
	for n, ts := range l.idx.Times {
		if ts.Before(from) || ts.After(to) {
			continue
		}
		out = append(out, l.chain[n].Tx())
	}
	return out
}

// RecentTransactions returns up to limit transactions, newest first.
// A non-positive limit returns all of them.
func (l *Ledger) RecentTransactions(limit int) []block.Transaction {
	return l.Query(Filter{Limit: limit})
}

// Query returns matching transactions ordered by timestamp descending, then
// block number descending.
func (l *Ledger) Query(f Filter) []block.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	candidates := l.candidates(f)
	type hit struct {
		n  uint64
		ts time.Time
	}
	hits := make([]hit, 0, len(candidates))
	for _, n := range candidates {
		tx := l.chain[n].Tx()
		ts := l.idx.Times[n]
		if f.Actor != "" && tx.Actor != f.Actor {
			continue
		}
		if f.Action != "" && tx.Action != f.Action {
			continue
		}
		if f.RecordID != "" && tx.RecordID != f.RecordID {
			continue
		}
		if !f.From.IsZero() && ts.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && ts.After(f.To) {
			continue
		}
		hits = append(hits, hit{n, ts})
	}
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].ts.Equal(hits[j].ts) {
			return hits[i].ts.After(hits[j].ts)
		}
		return hits[i].n > hits[j].n
	})
	if f.Limit > 0 && len(hits) > f.Limit {
		hits = hits[:f.Limit]
	}
	out := make([]block.Transaction, len(hits))
	for i, h := range hits {
		out[i] = l.chain[h.n].Tx()
	}
	return out
}

// candidates narrows the scan using the most selective index available.
func (l *Ledger) candidates(f Filter) []uint64 {
	switch {
	case f.RecordID != "":
		return l.idx.ByRecordID[f.RecordID]
	case f.Actor != "":
		return l.idx.ByActor[f.Actor]
	case f.Action != "":
		return l.idx.ByAction[f.Action]
	}
	all := make([]uint64, len(l.chain))
	for i := range all {
		all[i] = uint64(i)
	}
	return all
}

func (l *Ledger) collect(nums []uint64) []block.Transaction {
	out := make([]block.Transaction, 0, len(nums))
	for _, n := range nums {
		out = append(out, l.chain[n].Tx())
	}
	return out
}
