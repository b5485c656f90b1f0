package wallet

import (
	"errors"

	"arogyarakshak/core"
)

// SignatureVerifier checks that a signed payload was produced by a given org.
type SignatureVerifier interface {
	VerifyFor(orgID string, sp core.SignedPayload) core.Verification
}

// Verifier checks signatures against the org keys held in a KeyStore.
type Verifier struct {
	Keys KeyStore
}

func NewVerifier(keys KeyStore) *Verifier {
	return &Verifier{Keys: keys}
}

// VerifyFor checks the payload hash and signature, then that the signer key
// is the one registered for orgID.
func (v *Verifier) VerifyFor(orgID string, sp core.SignedPayload) core.Verification {
	res := core.Check(sp)
	if !core.IsVerified(res) {
		return res
	}
	kp, err := v.Keys.Lookup(orgID)
	switch {
	case errors.Is(err, ErrKeyNotFound), errors.Is(err, ErrInvalidOrgID):
		return core.Unverified{Reason: "unknown signer org"}
	case err != nil:
		return core.Unverified{Reason: "signer key unavailable"}
	}
	if kp.PublicKey != sp.SignerPublicKey {
		return core.Unverified{Reason: "signer key does not match org"}
	}
	return res
}
