// Package ident rewrites user idents: a keyed hash of the connecting IP
// replaces the ident on registration, and configured nicks get a fixed
// ident on nick change.
package ident

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// maxIdent matches the host's ident length limit.
const maxIdent = 11

// Rule assigns a fixed ident to users holding a nick.
type Rule struct {
	Nick  string
	Ident string
}

// Manager computes hashed idents and applies per-nick rules.
type Manager struct {
	secret []byte
	rules  map[string]string
}

// New creates a Manager. An empty secret disables hashed idents; an empty
// rule list disables nick rewrites.
func New(secret string, rules []Rule) *Manager {
	m := &Manager{rules: make(map[string]string, len(rules))}
	if secret != "" {
		m.secret = []byte(secret)
	}
	for _, r := range rules {
		m.rules[strings.ToLower(r.Nick)] = r.Ident
	}
	return m
}

// HashedIdent returns the ident for a freshly registered connection: the
// hex HMAC-SHA256 of the IP under the configured secret, clipped to the
// ident length limit. The second return is false when hashing is disabled.
func (m *Manager) HashedIdent(ip string) (string, bool) {
	if m.secret == nil {
		return "", false
	}
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))[:maxIdent], true
}

// ForNick returns the fixed ident configured for nick, if any. Matching is
// case-insensitive.
func (m *Manager) ForNick(nick string) (string, bool) {
	ident, ok := m.rules[strings.ToLower(nick)]
	return ident, ok
}
