package governance

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/assemblage-lab/governor/pkg/contracts"
)

// ConstitutionFile is the stored form of rule amendments.
type ConstitutionFile struct {
	Version         string     `yaml:"version,omitempty"`
	ReplaceDefaults bool       `yaml:"replace_defaults,omitempty"`
	Rules           []RuleSpec `yaml:"rules"`
}

// RuleSpec is one rule whose predicate is a CEL expression.
type RuleSpec struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	Expression  string    `yaml:"expression"`
	Level       string    `yaml:"level"`
	Code        string    `yaml:"code"`
	Reason      string    `yaml:"reason,omitempty"`
	Meta        *RuleMeta `yaml:"meta,omitempty"`
}

// LoadConstitution reads a YAML rule file and applies it on top of the
// default constitution.
func LoadConstitution(path string) (*Constitution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load constitution %q: %w", path, err)
	}
	c, err := ParseConstitution(data)
	if err != nil {
		return nil, fmt.Errorf("parse constitution %q: %w", path, err)
	}
	return c, nil
}

// ParseConstitution applies each rule in data as an amendment, in order.
// With replace_defaults the ratified rules are dropped first. An explicit
// version overrides the version computed from the amendments.
func ParseConstitution(data []byte) (*Constitution, error) {
	var file ConstitutionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	compiler, err := NewCELCompiler()
	if err != nil {
		return nil, err
	}

	c := DefaultConstitution()
	if file.ReplaceDefaults {
		c, err = NewConstitution(DefaultConstitutionVersion, nil)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(file.Rules))
	for _, spec := range file.Rules {
		if seen[spec.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, spec.ID)
		}
		seen[spec.ID] = true

		rule, err := spec.compile(compiler)
		if err != nil {
			return nil, err
		}
		if c, err = c.Amend(rule); err != nil {
			return nil, err
		}
	}

	if file.Version != "" {
		v, err := semver.NewVersion(file.Version)
		if err != nil {
			return nil, fmt.Errorf("constitution version %q: %w", file.Version, err)
		}
		c = &Constitution{version: v, rules: c.rules}
	}
	return c, nil
}

func (s RuleSpec) compile(compiler *CELCompiler) (GovernanceRule, error) {
	if s.ID == "" {
		return GovernanceRule{}, fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	level, err := contracts.ParseEscalationLevel(s.Level)
	if err != nil {
		return GovernanceRule{}, fmt.Errorf("rule %s: %w", s.ID, err)
	}
	reason, err := contracts.NewReason(contracts.ReasonCode(s.Code), s.Reason)
	if err != nil {
		return GovernanceRule{}, fmt.Errorf("rule %s: %w", s.ID, err)
	}
	pred, err := compiler.Compile(s.ID, s.Expression)
	if err != nil {
		return GovernanceRule{}, err
	}

	return GovernanceRule{
		ID:          s.ID,
		Description: s.Description,
		Evaluate:    pred,
		Consequence: Consequence{Level: level, Code: reason.Code, Reason: reason.Message},
		Meta:        s.Meta,
		Expression:  s.Expression,
	}, nil
}
