package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"arogyarakshak/core/block"
)

// WriteSnapshot writes chain as an indented JSON array to path. The file is
// written to a temporary sibling and renamed into place.
func WriteSnapshot(path string, chain []block.Block) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if chain == nil {
		chain = []block.Block{}
	}
	data, err := json.MarshalIndent(chain, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// ReadSnapshot reads a chain written by WriteSnapshot. A missing file returns
// an error satisfying errors.Is(err, os.ErrNotExist).
func ReadSnapshot(path string) ([]block.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	chain, err := block.DeserializeChain(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return chain, nil
}
