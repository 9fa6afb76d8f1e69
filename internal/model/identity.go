package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// RuleFallback is the MatchedRule value when the generic label scanner
// produced the identity rather than a registered pattern rule.
const RuleFallback = "fallback"

// ExtractedIdentity holds the structured fields pulled out of one raw
// transaction description. It is derived, never persisted standalone.
type ExtractedIdentity struct {
	CompanyID       string
	CompanyName     string
	CustomerID      string
	CustomerName    string
	SubAccount      string
	MatchedRule     string // rule name, RuleFallback, or "" when nothing matched
	MatchConfidence float64
}

// HasIdentity reports whether the extraction found at least a company or a
// customer identity. Absence of identity is a normal business outcome, not an
// error.
func (id *ExtractedIdentity) HasIdentity() bool {
	return id.CompanyID != "" || id.CompanyName != "" ||
		id.CustomerID != "" || id.CustomerName != ""
}

// NormalizeField canonicalizes an identity field for fingerprinting: trim,
// case-fold, collapse internal whitespace runs to single spaces. Nil/absent
// fields are the empty string.
func NormalizeField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Fingerprint produces the deterministic dedup key for this identity: a
// sha256 hex digest over the normalized (company_id, company_name,
// customer_id, customer_name) tuple. Two identities differing only in casing
// or whitespace hash identically. The unit separator keeps adjacent fields
// from colliding.
func (id *ExtractedIdentity) Fingerprint() string {
	data := strings.Join([]string{
		NormalizeField(id.CompanyID),
		NormalizeField(id.CompanyName),
		NormalizeField(id.CustomerID),
		NormalizeField(id.CustomerName),
	}, "\x1f")
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
