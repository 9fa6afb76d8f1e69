package model

import (
	"fmt"
	"regexp"
	"strconv"
)

// Identity field names a pattern rule may map capture groups onto.
const (
	FieldCompanyID    = "company_id"
	FieldCompanyName  = "company_name"
	FieldCustomerID   = "customer_id"
	FieldCustomerName = "customer_name"
	FieldSubAccount   = "sub_account"
	FieldDate         = "date"
)

var knownFields = map[string]bool{
	FieldCompanyID:    true,
	FieldCompanyName:  true,
	FieldCustomerID:   true,
	FieldCustomerName: true,
	FieldSubAccount:   true,
	FieldDate:         true,
}

// FieldMapping binds one regex capture group to an identity field. Group is
// either a named capture group or a 1-based group index written as digits.
type FieldMapping struct {
	Group    string `mapstructure:"group"`
	Field    string `mapstructure:"field"`
	Required bool   `mapstructure:"required"`
}

// PatternRule is one per-source extraction rule. Immutable once loaded;
// lifecycle is process-wide, loaded once at startup from configuration.
type PatternRule struct {
	Name           string         `mapstructure:"name"`
	SourceTag      string         `mapstructure:"source_tag"`
	Pattern        string         `mapstructure:"pattern"`
	Description    string         `mapstructure:"description"`
	FieldMap       []FieldMapping `mapstructure:"field_map"`
	BaseConfidence float64        `mapstructure:"base_confidence"`
	Priority       int            `mapstructure:"priority"`
}

// Compile compiles the rule's regex.
func (r *PatternRule) Compile() (*regexp.Regexp, error) {
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %q: invalid pattern: %w", r.Name, err)
	}
	return re, nil
}

// Validate ensures the rule is well formed: the regex compiles, every mapped
// capture group is declared by the regex, and the base confidence is in (0,1].
func (r *PatternRule) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.SourceTag == "" {
		return fmt.Errorf("rule %q: source tag is required", r.Name)
	}
	if r.BaseConfidence <= 0 || r.BaseConfidence > 1 {
		return fmt.Errorf("rule %q: base confidence must be in (0,1], got %v", r.Name, r.BaseConfidence)
	}
	if len(r.FieldMap) == 0 {
		return fmt.Errorf("rule %q: field map is empty", r.Name)
	}

	re, err := r.Compile()
	if err != nil {
		return err
	}

	for _, fm := range r.FieldMap {
		if !knownFields[fm.Field] {
			return fmt.Errorf("rule %q: unknown field %q", r.Name, fm.Field)
		}
		if _, err := r.groupIndex(re, fm.Group); err != nil {
			return err
		}
	}
	return nil
}

// groupIndex resolves a field mapping's capture group to its submatch index.
func (r *PatternRule) groupIndex(re *regexp.Regexp, group string) (int, error) {
	if n, err := strconv.Atoi(group); err == nil {
		if n < 1 || n > re.NumSubexp() {
			return 0, fmt.Errorf("rule %q: capture group %d not declared by pattern", r.Name, n)
		}
		return n, nil
	}
	if idx := re.SubexpIndex(group); idx > 0 {
		return idx, nil
	}
	return 0, fmt.Errorf("rule %q: capture group %q not declared by pattern", r.Name, group)
}

// BoundMapping is a field mapping resolved to its submatch index.
type BoundMapping struct {
	FieldMapping
	Index int
}

// Bind resolves the full field map against a compiled regex, preserving
// field-map order. Callers must have validated the rule first.
func (r *PatternRule) Bind(re *regexp.Regexp) ([]BoundMapping, error) {
	bound := make([]BoundMapping, 0, len(r.FieldMap))
	for _, fm := range r.FieldMap {
		idx, err := r.groupIndex(re, fm.Group)
		if err != nil {
			return nil, err
		}
		bound = append(bound, BoundMapping{FieldMapping: fm, Index: idx})
	}
	return bound, nil
}
