package governance

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// DefaultConstitutionVersion is the version of the ratified default rules.
const DefaultConstitutionVersion = "1.0.0"

var (
	// ErrDuplicateRule is returned when two rules share an ID.
	ErrDuplicateRule = errors.New("duplicate rule id")
	// ErrInvalidRule is returned for rules missing a predicate or a valid consequence.
	ErrInvalidRule = errors.New("invalid governance rule")
)

// Constitution is an ordered, immutable, versioned rule registry. Order
// affects only the order in which reasons are reported.
type Constitution struct {
	version *semver.Version
	rules   []GovernanceRule
}

// NewConstitution validates rules and freezes them under version.
func NewConstitution(version string, rules []GovernanceRule) (*Constitution, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("constitution version %q: %w", version, err)
	}

	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := validateRule(r); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRule, r.ID)
		}
		seen[r.ID] = true
	}

	return &Constitution{
		version: v,
		rules:   append([]GovernanceRule(nil), rules...),
	}, nil
}

// DefaultConstitution returns the four ratified rules.
func DefaultConstitution() *Constitution {
	c, err := NewConstitution(DefaultConstitutionVersion, DefaultRules())
	if err != nil {
		panic(err)
	}
	return c
}

func validateRule(r GovernanceRule) error {
	if r.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if r.Evaluate == nil {
		return fmt.Errorf("%w: %s has no predicate", ErrInvalidRule, r.ID)
	}
	if !r.Consequence.Level.Valid() {
		return fmt.Errorf("%w: %s has level %q", ErrInvalidRule, r.ID, r.Consequence.Level)
	}
	if !r.Consequence.Code.Valid() {
		return fmt.Errorf("%w: %s has reason code %q", ErrInvalidRule, r.ID, r.Consequence.Code)
	}
	return nil
}

// Version returns the semantic version of the rule set.
func (c *Constitution) Version() string {
	return c.version.String()
}

// Rules returns a copy of the rules in evaluation order.
func (c *Constitution) Rules() []GovernanceRule {
	return append([]GovernanceRule(nil), c.rules...)
}

// Len returns the number of rules.
func (c *Constitution) Len() int {
	return len(c.rules)
}

// Lookup finds a rule by ID.
func (c *Constitution) Lookup(id string) (GovernanceRule, bool) {
	for _, r := range c.rules {
		if r.ID == id {
			return r, true
		}
	}
	return GovernanceRule{}, false
}

// Amend returns a new constitution with rule added, or replacing the rule
// with the same ID in place, and the minor version bumped. The receiver is
// left untouched. Rules without provenance are recorded as community votes.
func (c *Constitution) Amend(rule GovernanceRule) (*Constitution, error) {
	if err := validateRule(rule); err != nil {
		return nil, err
	}

	rules := c.Rules()
	replaced := false
	for i, r := range rules {
		if r.ID != rule.ID {
			continue
		}
		if rule.Meta == nil {
			prev := 0
			if r.Meta != nil {
				prev = r.Meta.Version
			}
			rule.Meta = &RuleMeta{Source: SourceCommunityVote, Version: prev + 1}
		}
		rules[i] = rule
		replaced = true
		break
	}
	if !replaced {
		if rule.Meta == nil {
			rule.Meta = &RuleMeta{Source: SourceCommunityVote, Version: 1}
		}
		rules = append(rules, rule)
	}

	next := c.version.IncMinor()
	return &Constitution{version: &next, rules: rules}, nil
}
