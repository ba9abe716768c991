package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionPolicyShouldRevoke(t *testing.T) {
	exempt := []string{"/api/auth/", "/static/", "/healthz"}

	tests := []struct {
		name      string
		singleUse bool
		path      string
		want      bool
	}{
		{"disabled policy never revokes", false, "/api/accounts", false},
		{"protected path revokes", true, "/api/accounts", true},
		{"login exempt", true, "/api/auth/login", false},
		{"oauth callback exempt", true, "/api/auth/discord/callback", false},
		{"static exempt", true, "/static/app.js", false},
		{"healthz exempt", true, "/healthz", false},
		{"bank sync revokes", true, "/api/bank/sync", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSessionPolicy(tt.singleUse, exempt)
			assert.Equal(t, tt.want, p.ShouldRevoke(tt.path))
		})
	}
}

func TestSessionPolicyNil(t *testing.T) {
	var p *SessionPolicy
	assert.False(t, p.ShouldRevoke("/api/accounts"))
}
