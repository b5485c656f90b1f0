package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"arogyarakshak/types/ids"
)

// Canonicalize encodes v as compact JSON with object keys sorted at every
// depth. Array order is preserved and numbers keep their literal form, so two
// deep-equal payloads produce identical bytes regardless of key order.
func Canonicalize(v any) ([]byte, error) {
	raw, err := encodeJSON(v)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	// encoding/json writes map keys in sorted order.
	out, err := encodeJSON(generic)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}
	return out, nil
}

// HashPayload returns the SHA-256 digest of the canonical form of v.
func HashPayload(v any) (ids.ID, error) {
	b, err := Canonicalize(v)
	if err != nil {
		return ids.Empty, err
	}
	return ids.NewID(b), nil
}

// Hash returns the hex SHA-256 of the canonical form of v.
func Hash(v any) (string, error) {
	id, err := HashPayload(v)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func encodeJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
