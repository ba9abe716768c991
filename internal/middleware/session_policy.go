package middleware

import "strings"

// SessionPolicy is the session-validity configuration: when SingleUse is
// set, a session is revoked after serving any request whose path does not
// start with one of the exempt prefixes. This replaces ambient
// force-logout behavior with an explicit, testable policy.
type SessionPolicy struct {
	SingleUse      bool
	ExemptPrefixes []string
}

// NewSessionPolicy builds a policy from configuration values.
func NewSessionPolicy(singleUse bool, exemptPrefixes []string) *SessionPolicy {
	return &SessionPolicy{
		SingleUse:      singleUse,
		ExemptPrefixes: exemptPrefixes,
	}
}

// ShouldRevoke reports whether the session that served path must be revoked.
func (p *SessionPolicy) ShouldRevoke(path string) bool {
	if p == nil || !p.SingleUse {
		return false
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}
