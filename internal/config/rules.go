package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/spidersync/ledgerlink/internal/common"
	"github.com/spidersync/ledgerlink/internal/model"
	"github.com/spidersync/ledgerlink/internal/pattern"
)

// RulesKey is the viper key the pattern rule set lives under.
const RulesKey = "rules"

// LoadRegistry reads the pattern rule set from the given viper instance and
// returns a validated registry. Malformed configuration is rejected here,
// at startup, never at first use.
func LoadRegistry(v *viper.Viper) (*pattern.Registry, error) {
	if !v.IsSet(RulesKey) {
		return nil, fmt.Errorf("%w: no %q section in configuration", common.ErrMissingConfig, RulesKey)
	}

	var rules []model.PatternRule
	if err := v.UnmarshalKey(RulesKey, &rules); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %q: %v", common.ErrInvalidConfig, RulesKey, err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: %q section is empty", common.ErrInvalidConfig, RulesKey)
	}

	return pattern.Load(rules)
}

// LoadRegistryFile loads a registry from a standalone YAML rules file.
func LoadRegistryFile(path string) (*pattern.Registry, error) {
	v := viper.New()
	v.SetConfigFile(ExpandPath(path))
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: failed to read rules file %s: %v", common.ErrInvalidConfig, path, err)
	}
	return LoadRegistry(v)
}
