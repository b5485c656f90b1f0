package auth

import "errors"

// KeyProvider returns the verification key for a token key id.
type KeyProvider interface {
	GetKey(kid string) (any, error)
}

// StaticKeyProvider serves one HMAC secret for every key id.
type StaticKeyProvider struct {
	Secret []byte
}

func (p *StaticKeyProvider) GetKey(kid string) (any, error) {
	if len(p.Secret) == 0 {
		return nil, errors.New("no signing secret set")
	}
	return p.Secret, nil
}
