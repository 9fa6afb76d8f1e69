// Package pattern implements the configurable description-parsing layer:
// an ordered registry of per-source extraction rules and the field extractor
// that applies them.
package pattern

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/spidersync/ledgerlink/internal/common"
	"github.com/spidersync/ledgerlink/internal/model"
)

// compiledRule pairs a validated rule with its compiled regex and the field
// map resolved to submatch indexes.
type compiledRule struct {
	re    *regexp.Regexp
	rule  model.PatternRule
	bound []model.BoundMapping
	order int
}

// Registry holds the validated, ordered rule set. Pure lookup structure with
// no side effects; safe for concurrent use once loaded.
type Registry struct {
	bySource map[string][]compiledRule
}

// Load validates and compiles a rule set, failing fast on any malformed rule.
// Two rules sharing a source tag must be disambiguated: identical base
// confidence with identical priority makes the tie-break meaningless and is
// rejected at load, not discovered at first use.
func Load(rules []model.PatternRule) (*Registry, error) {
	bySource := make(map[string][]compiledRule)

	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
		}

		re, err := rule.Compile()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
		}
		bound, err := rule.Bind(re)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrInvalidConfig, err)
		}

		for _, existing := range bySource[rule.SourceTag] {
			if existing.rule.BaseConfidence == rule.BaseConfidence &&
				existing.rule.Priority == rule.Priority {
				return nil, fmt.Errorf("%w: rules %q and %q share source tag %q without disambiguating priority",
					common.ErrInvalidConfig, existing.rule.Name, rule.Name, rule.SourceTag)
			}
		}

		bySource[rule.SourceTag] = append(bySource[rule.SourceTag], compiledRule{
			rule:  rule,
			re:    re,
			bound: bound,
			order: i,
		})
	}

	// Order each source's rules by descending base confidence, then
	// descending priority, then definition order so tie-breaks stay
	// deterministic across runs.
	for tag := range bySource {
		group := bySource[tag]
		sort.SliceStable(group, func(a, b int) bool {
			if group[a].rule.BaseConfidence != group[b].rule.BaseConfidence {
				return group[a].rule.BaseConfidence > group[b].rule.BaseConfidence
			}
			if group[a].rule.Priority != group[b].rule.Priority {
				return group[a].rule.Priority > group[b].rule.Priority
			}
			return group[a].order < group[b].order
		})
	}

	return &Registry{bySource: bySource}, nil
}

// RulesFor returns the ordered rules registered for a source tag.
func (r *Registry) RulesFor(sourceTag string) []model.PatternRule {
	group := r.bySource[sourceTag]
	rules := make([]model.PatternRule, len(group))
	for i, cr := range group {
		rules[i] = cr.rule
	}
	return rules
}

// Len returns the total number of loaded rules.
func (r *Registry) Len() int {
	n := 0
	for _, group := range r.bySource {
		n += len(group)
	}
	return n
}

// SourceTags returns the distinct source tags with registered rules, sorted.
func (r *Registry) SourceTags() []string {
	tags := make([]string, 0, len(r.bySource))
	for tag := range r.bySource {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

func (r *Registry) compiledFor(sourceTag string) []compiledRule {
	return r.bySource[sourceTag]
}
