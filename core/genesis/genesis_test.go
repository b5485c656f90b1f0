package genesis

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arogyarakshak/types/ids"
)

func TestCreateBlockDefaults(t *testing.T) {
	b, err := CreateBlock(nil)
	require.NoError(t, err)

	assert.True(t, IsGenesis(b))
	tx := b.Tx()
	assert.Equal(t, Actor, tx.Actor)
	assert.Equal(t, DefaultMessage, tx.Details["message"])
	assert.True(t, ids.IsTxID(tx.TxID))
	assert.Equal(t, uint64(0), tx.BlockNo)

	h, err := b.ComputeHash()
	require.NoError(t, err)
	assert.Equal(t, b.BlockHash, h)
}

func TestCreateBlockFromConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"chainId":"test-chain","message":"hello","genesisTime":"2024-04-30T00:00:00Z"}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	b, err := CreateBlock(cfg)
	require.NoError(t, err)

	assert.Equal(t, "2024-04-30T00:00:00.000Z", b.Timestamp)
	assert.Equal(t, "test-chain", b.Tx().Details["chainId"])
	assert.Equal(t, "hello", b.Tx().Details["message"])
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestIsGenesisRejectsOtherBlocks(t *testing.T) {
	b, err := CreateBlock(&Config{GenesisTime: time.Now()})
	require.NoError(t, err)
	b.BlockNo = 1
	assert.False(t, IsGenesis(b))
}
