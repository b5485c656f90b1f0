package explorer

import (
	"errors"
	"io"
	"log"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arogyarakshak/core/ledger"
	"arogyarakshak/core/wallet"
)

func setup(t *testing.T) (*Explorer, *ledger.Ledger) {
	t.Helper()
	l, err := ledger.Open(ledger.Options{Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	ks, err := wallet.NewFileKeyStore(t.TempDir(), nil)
	require.NoError(t, err)
	return New(l, ks, "node:arogya-1", "arogya-test"), l
}

func TestSearch(t *testing.T) {
	e, l := setup(t)
	r, err := l.AppendTx(ledger.TxInput{Actor: "doctor:D1", Action: "RECORD_ADD", RecordID: "REC-1"})
	require.NoError(t, err)
	_, err = l.AppendTx(ledger.TxInput{Actor: "doctor:D1", Action: "RECORD_ENDORSE", RecordID: "REC-1"})
	require.NoError(t, err)

	got, err := e.Search(r.TxID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "transaction", got[0].Kind)
	assert.Equal(t, r.TxID, got[0].Transaction.TxID)

	got, err = e.Search(strconv.FormatUint(r.BlockNo, 10))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, r.BlockHash, got[0].Block.BlockHash)

	got, err = e.Search(r.BlockHash)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "block", got[0].Kind)

	got, err = e.Search("REC-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	got, err = e.Search("doctor:D1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = e.Search("nothing-here")
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = e.Search("  ")
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestStatsAndNetwork(t *testing.T) {
	e, l := setup(t)
	_, err := l.AppendTx(ledger.TxInput{Actor: "a", Action: "B"})
	require.NoError(t, err)

	s := e.Stats()
	assert.True(t, s.Integrity.Valid)
	assert.Equal(t, 2, s.TotalBlocks)

	n, err := e.Network()
	require.NoError(t, err)
	assert.NotEmpty(t, n.NodeID)
	assert.Equal(t, "arogya-test", n.ChainID)
	assert.Equal(t, uint64(2), n.Height)
	assert.Equal(t, l.Tip().BlockHash, n.TipHash)
	assert.Equal(t, l.Genesis().BlockHash, n.GenesisHash)
	assert.Equal(t, "ready", n.State)
	assert.Empty(t, n.Peers)

	again, err := e.Network()
	require.NoError(t, err)
	assert.Equal(t, n.NodeID, again.NodeID)
}

func TestBlock(t *testing.T) {
	e, _ := setup(t)
	b, err := e.Block(0)
	require.NoError(t, err)
	assert.Equal(t, "0", b.PreviousHash)
	_, err = e.Block(99)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFlagTransaction(t *testing.T) {
	e, l := setup(t)
	r, err := l.AppendTx(ledger.TxInput{Actor: "hospital:H1", Action: "CLAIM_SUBMIT", RecordID: "CLM-1"})
	require.NoError(t, err)

	f, err := e.FlagTransaction(r.TxID, "auditor:A1", "duplicate claim", "high")
	require.NoError(t, err)
	assert.Equal(t, r.TxID, f.TxID)

	flagTx, err := l.Transaction(f.FlagTxID)
	require.NoError(t, err)
	assert.Equal(t, ActionAuditFlag, flagTx.Action)
	assert.Equal(t, r.TxID, flagTx.RecordID)
	assert.Equal(t, "auditor:A1", flagTx.Actor)

	_, err = e.FlagTransaction("TX-missing", "auditor:A1", "x", "low")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = e.FlagTransaction(r.TxID, "auditor:A1", "x", "extreme")
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = e.FlagTransaction(r.TxID, "", "", "low")
	assert.True(t, errors.Is(err, ErrInvalid))

	second, err := e.FlagTransaction(r.TxID, "", "second look", "")
	require.NoError(t, err)
	assert.Equal(t, "auditor:system", second.Auditor)
	assert.Equal(t, "medium", second.Severity)

	flags := e.Flags()
	require.Len(t, flags, 2)
	assert.Equal(t, second.ID, flags[0].ID)
}
