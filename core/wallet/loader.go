package wallet

import "arogyarakshak/core"

// KeyStore resolves organization keypairs.
type KeyStore interface {
	// GetOrCreate returns the org's keypair, creating and persisting one on
	// first use.
	GetOrCreate(orgID string) (core.KeyPair, error)
	// Generate creates a fresh keypair for the org, replacing any existing one.
	Generate(orgID string) (core.KeyPair, error)
	// Lookup returns an existing keypair or ErrKeyNotFound.
	Lookup(orgID string) (core.KeyPair, error)
}
