package auth

import (
	"errors"
	"strings"
	"time"

	"arogyarakshak/core/audit"
)

var ErrUnauthorized = errors.New("unauthorized")

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Role    string
	Actor   string
}

type Authorizer struct {
	Tokens      *TokenVerifier
	AuditLogger audit.AuditLogger
}

// NewAuthorizer returns nil when secret is empty, which disables auth.
func NewAuthorizer(secret, issuer string, logger audit.AuditLogger) *Authorizer {
	if secret == "" {
		return nil
	}
	if logger == nil {
		logger = audit.Discard{}
	}
	return &Authorizer{
		Tokens:      &TokenVerifier{KeyProvider: &StaticKeyProvider{Secret: []byte(secret)}, Issuer: issuer},
		AuditLogger: logger,
	}
}

// AuthorizeBearer checks an Authorization header value.
func (a *Authorizer) AuthorizeBearer(header string) (Principal, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		a.fail("", "missing bearer token")
		return Principal{}, ErrUnauthorized
	}
	claims, err := a.Tokens.Verify(strings.TrimSpace(raw))
	if err != nil {
		a.fail("", err.Error())
		return Principal{}, ErrUnauthorized
	}
	a.AuditLogger.LogEvent(audit.AuditEvent{
		EventType: "TokenVerification",
		EntityID:  claims.Actor(),
		Result:    audit.ResultSuccess,
		Reason:    "Authorized",
		Metadata:  map[string]string{"role": claims.Role},
		Timestamp: time.Now(),
	})
	return Principal{Subject: claims.Subject, Role: claims.Role, Actor: claims.Actor()}, nil
}

func (a *Authorizer) fail(entity, reason string) {
	a.AuditLogger.LogEvent(audit.AuditEvent{
		EventType: "TokenVerification",
		EntityID:  entity,
		Result:    audit.ResultFailure,
		Reason:    reason,
		Metadata:  map[string]string{},
		Timestamp: time.Now(),
	})
}
