package core

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// SignedPayload is a payload together with a detached Ed25519 signature over
// "{payloadHash}:{timestamp}".
type SignedPayload struct {
	Payload         any    `json:"payload"`
	PayloadHash     string `json:"payloadHash"`
	Signature       string `json:"signature"`
	SignerPublicKey string `json:"signerPublicKey"`
	Timestamp       int64  `json:"timestamp"` // unix milliseconds
}

// Verification is the outcome of checking a SignedPayload. It is either
// Verified or Unverified.
type Verification interface {
	verification()
}

// Verified means the payload hash and signature both check out.
type Verified struct {
	SignerPublicKey string
}

// Unverified carries the reason a signature was not accepted.
type Unverified struct {
	Reason string
}

func (Verified) verification()   {}
func (Unverified) verification() {}

func (v Verified) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"status": "verified", "signerPublicKey": v.SignerPublicKey})
}

func (u Unverified) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"status": "unverified", "reason": u.Reason})
}

// IsVerified reports whether v is the Verified variant.
func IsVerified(v Verification) bool {
	_, ok := v.(Verified)
	return ok
}

// Sign hashes payload, stamps it with the current time and signs
// "{hash}:{timestamp}" with priv.
func Sign(priv ed25519.PrivateKey, payload any) (SignedPayload, error) {
	return SignAt(priv, payload, time.Now().UnixMilli())
}

// SignAt is Sign with an explicit millisecond timestamp.
func SignAt(priv ed25519.PrivateKey, payload any, ts int64) (SignedPayload, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return SignedPayload{}, fmt.Errorf("sign: invalid Ed25519 private key size")
	}
	hash, err := Hash(payload)
	if err != nil {
		return SignedPayload{}, fmt.Errorf("sign: %w", err)
	}
	sig := ed25519.Sign(priv, signingMessage(hash, ts))
	pub := priv.Public().(ed25519.PublicKey)
	return SignedPayload{
		Payload:         payload,
		PayloadHash:     hash,
		Signature:       base64.StdEncoding.EncodeToString(sig),
		SignerPublicKey: base64.StdEncoding.EncodeToString(pub),
		Timestamp:       ts,
	}, nil
}

// SignWith signs payload with the keypair's private key.
func SignWith(kp KeyPair, payload any) (SignedPayload, error) {
	priv, err := kp.Private()
	if err != nil {
		return SignedPayload{}, fmt.Errorf("sign: %w", err)
	}
	return Sign(priv, payload)
}

// Verify reports whether sp is intact and correctly signed. It never panics
// and returns false for malformed input.
func Verify(sp SignedPayload) bool {
	return IsVerified(Check(sp))
}

// Check verifies sp and explains a failure.
func Check(sp SignedPayload) Verification {
	if sp.PayloadHash == "" || sp.Signature == "" || sp.SignerPublicKey == "" {
		return Unverified{Reason: "missing signature fields"}
	}
	hash, err := Hash(sp.Payload)
	if err != nil {
		return Unverified{Reason: "payload is not hashable"}
	}
	if hash != sp.PayloadHash {
		return Unverified{Reason: "payload hash mismatch"}
	}
	pub, err := DecodePublicKey(sp.SignerPublicKey)
	if err != nil {
		return Unverified{Reason: "malformed signer public key"}
	}
	sig, err := base64.StdEncoding.DecodeString(sp.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return Unverified{Reason: "malformed signature"}
	}
	if !ed25519.Verify(pub, signingMessage(sp.PayloadHash, sp.Timestamp), sig) {
		return Unverified{Reason: "signature verification failed"}
	}
	return Verified{SignerPublicKey: sp.SignerPublicKey}
}

func signingMessage(hash string, ts int64) []byte {
	return []byte(fmt.Sprintf("%s:%d", hash, ts))
}
