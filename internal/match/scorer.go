// Package match scores extracted identities against the master customer
// table to suggest curation candidates. Suggestions only rank; they never
// curate — assigning a client id stays a human decision.
package match

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/spidersync/ledgerlink/internal/model"
)

// Band classifies a composite confidence score.
type Band string

// Confidence bands.
const (
	BandHigh   Band = "high"
	BandMedium Band = "medium"
	BandLow    Band = "low"
	BandNone   Band = "none"
)

// Candidate is one scored customer suggestion.
type Candidate struct {
	Customer   model.Customer
	Confidence float64
	Band       Band
}

// Scorer combines name, company, and account similarity into one composite
// confidence. A direct customer-id match (exact string compare, leading
// zeros significant) short-circuits to 1.0.
type Scorer struct {
	nameWeight    float64
	companyWeight float64
	accountWeight float64

	highThreshold   float64
	mediumThreshold float64
	lowThreshold    float64
}

// NewScorer returns a scorer with the default weights and thresholds.
func NewScorer() *Scorer {
	return &Scorer{
		nameWeight:      0.35,
		companyWeight:   0.25,
		accountWeight:   0.40,
		highThreshold:   0.60,
		mediumThreshold: 0.50,
		lowThreshold:    0.40,
	}
}

// Confidence scores one customer against an extracted identity.
func (s *Scorer) Confidence(identity model.ExtractedIdentity, customer model.Customer) float64 {
	if identity.CustomerID != "" && identity.CustomerID == customer.CustomerID {
		return 1.0
	}

	name := NameSimilarity(identity.CustomerName, customer.Name)
	company := NameSimilarity(identity.CompanyName, customer.CompanyName)
	account := AccountSimilarity(identity.CustomerID, customer.CustomerID)

	return s.nameWeight*name + s.companyWeight*company + s.accountWeight*account
}

// Band maps a confidence score to its band.
func (s *Scorer) Band(confidence float64) Band {
	switch {
	case confidence >= s.highThreshold:
		return BandHigh
	case confidence >= s.mediumThreshold:
		return BandMedium
	case confidence >= s.lowThreshold:
		return BandLow
	default:
		return BandNone
	}
}

// Rank scores every customer and returns candidates at or above the low
// threshold, best first.
func (s *Scorer) Rank(identity model.ExtractedIdentity, customers []model.Customer) []Candidate {
	var candidates []Candidate
	for _, customer := range customers {
		confidence := s.Confidence(identity, customer)
		if confidence < s.lowThreshold {
			continue
		}
		candidates = append(candidates, Candidate{
			Customer:   customer,
			Confidence: confidence,
			Band:       s.Band(confidence),
		})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Confidence > candidates[b].Confidence
	})
	return candidates
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

// normalizeName lowercases, strips punctuation, and collapses whitespace.
func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = nonAlnum.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(name), " ")
}

// normalizeAccount strips everything but alphanumerics.
func normalizeAccount(account string) string {
	var b strings.Builder
	for _, r := range account {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NameSimilarity compares two names with several methods and returns the
// best score: exact match, containment, token Jaccard, and edit distance.
func NameSimilarity(a, b string) float64 {
	a = normalizeName(a)
	b = normalizeName(b)
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	best := containsScore(a, b)
	if s := tokenScore(a, b); s > best {
		best = s
	}
	if s := editScore(a, b); s > best {
		best = s
	}
	return best
}

// AccountSimilarity compares two account-style identifiers. Stricter than
// name similarity: identifiers should match precisely or nearly so.
func AccountSimilarity(a, b string) float64 {
	a = normalizeAccount(a)
	b = normalizeAccount(b)
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	// Partial account numbers: one contained in the other.
	if strings.Contains(a, b) || strings.Contains(b, a) {
		minLen, maxLen := len(a), len(b)
		if minLen > maxLen {
			minLen, maxLen = maxLen, minLen
		}
		return 0.8 * float64(minLen) / float64(maxLen)
	}

	return editScore(a, b) * 0.8
}

func containsScore(a, b string) float64 {
	switch {
	case strings.Contains(b, a):
		return 0.8 * float64(len(a)) / float64(len(b))
	case strings.Contains(a, b):
		return 0.8 * float64(len(b)) / float64(len(a))
	default:
		return 0.0
	}
}

func tokenScore(a, b string) float64 {
	tokensA := toSet(strings.Fields(a))
	tokensB := toSet(strings.Fields(b))
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	intersection := 0
	for token := range tokensA {
		if tokensB[token] {
			intersection++
		}
	}
	union := len(tokensA) + len(tokensB) - intersection
	return 0.85 * float64(intersection) / float64(union)
}

func editScore(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 0.9 * (1.0 - float64(distance)/float64(maxLen))
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		set[token] = true
	}
	return set
}
