package pattern

import (
	"strings"

	"github.com/spidersync/ledgerlink/internal/model"
)

// FallbackConfidence is assigned when the generic label scanner produced the
// identity; it is deliberately below any plausible registered-rule confidence.
const FallbackConfidence = 0.3

// Extractor applies registry rules to raw descriptions and falls back to a
// generic labeled-field scanner when no rule matches.
type Extractor struct {
	registry *Registry
}

// NewExtractor creates an extractor backed by a loaded registry.
func NewExtractor(registry *Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract parses one raw description. Rules for the source tag are tried in
// registry order and the first match wins; scoring across all candidates is
// deliberately not done, trading ambiguity for determinism. A rule match
// with an empty required field is rejected. When no rule produces a valid
// identity, the fallback scanner runs at FallbackConfidence. Extract never
// fails: if no identity is found it returns a zero-confidence empty identity.
func (e *Extractor) Extract(rawDescription, sourceTag string) model.ExtractedIdentity {
	desc := strings.TrimSpace(rawDescription)
	if desc == "" {
		return model.ExtractedIdentity{}
	}

	for _, cr := range e.registry.compiledFor(sourceTag) {
		identity, ok := applyRule(cr, desc)
		if ok {
			return identity
		}
	}

	if identity, ok := scanLabeledFields(desc); ok {
		identity.MatchedRule = model.RuleFallback
		identity.MatchConfidence = FallbackConfidence
		return identity
	}

	return model.ExtractedIdentity{}
}

// applyRule matches one compiled rule against the description and maps its
// capture groups onto identity fields.
func applyRule(cr compiledRule, desc string) (model.ExtractedIdentity, bool) {
	match := cr.re.FindStringSubmatch(desc)
	if match == nil {
		return model.ExtractedIdentity{}, false
	}

	identity := model.ExtractedIdentity{
		MatchedRule:     cr.rule.Name,
		MatchConfidence: cr.rule.BaseConfidence,
	}

	for _, bm := range cr.bound {
		value := strings.TrimSpace(match[bm.Index])
		if value == "" && bm.Required {
			// Empty required capture invalidates the whole match.
			return model.ExtractedIdentity{}, false
		}
		setField(&identity, bm.Field, value)
	}

	if !identity.HasIdentity() {
		return model.ExtractedIdentity{}, false
	}
	return identity, true
}

func setField(identity *model.ExtractedIdentity, field, value string) {
	switch field {
	case model.FieldCompanyID:
		identity.CompanyID = value
	case model.FieldCompanyName:
		identity.CompanyName = value
	case model.FieldCustomerID:
		identity.CustomerID = value
	case model.FieldCustomerName:
		identity.CustomerName = value
	case model.FieldSubAccount:
		identity.SubAccount = value
	case model.FieldDate:
		// Dates ride along on the raw record; extraction ignores them.
	}
}
