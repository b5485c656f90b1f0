package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultMessage is recorded in the genesis transaction when no config
// overrides it.
const DefaultMessage = "Arogya Rakshak ledger initialized"

// Config describes the genesis block. All fields are optional.
type Config struct {
	ChainID     string    `json:"chainId"`
	Message     string    `json:"message,omitempty"`
	GenesisTime time.Time `json:"genesisTime,omitempty"`
}

// LoadConfig reads a genesis config from a JSON file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not open genesis config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse genesis config: %w", err)
	}
	return &cfg, nil
}
