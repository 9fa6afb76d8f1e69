package model

import "time"

// CanonicalMapping is the authoritative record linking an identity
// fingerprint to a confirmed paying-client identity. Created the first time a
// fingerprint is seen; ClientID and the curation fields are set only by an
// external curation step. Mappings are never deleted, only enriched.
type CanonicalMapping struct {
	CreatedAt    time.Time
	CuratedAt    *time.Time
	ClientID     *int64
	Fingerprint  string
	CompanyID    string
	CompanyName  string
	CustomerID   string
	CustomerName string
	Curated      bool
}

// Resolved reports whether this mapping has been curated to a client.
func (m *CanonicalMapping) Resolved() bool {
	return m.Curated && m.ClientID != nil
}

// NewMapping builds an uncurated mapping from a fresh extraction.
func NewMapping(identity ExtractedIdentity) *CanonicalMapping {
	return &CanonicalMapping{
		Fingerprint:  identity.Fingerprint(),
		CompanyID:    identity.CompanyID,
		CompanyName:  identity.CompanyName,
		CustomerID:   identity.CustomerID,
		CustomerName: identity.CustomerName,
	}
}
