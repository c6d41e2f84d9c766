package governance

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// CELProfileID identifies the deterministic CEL subset rule expressions must use.
const CELProfileID = "cel-dp-v1"

// ValidationIssue is one reason an expression falls outside the profile.
type ValidationIssue struct {
	Type    string `json:"type"` // "banned_function", "banned_type", "nondeterministic"
	Name    string `json:"name"`
	Message string `json:"message"`
}

// CELProfileValidator rejects expressions whose result could vary between
// runs, so that the same document always gets the same verdict.
type CELProfileValidator struct {
	BannedFunctions map[string]bool
	BannedTypes     map[string]bool
}

// NewCELProfileValidator returns the cel-dp-v1 validator.
func NewCELProfileValidator() *CELProfileValidator {
	return &CELProfileValidator{
		BannedFunctions: map[string]bool{
			"now":             true,
			"timestamp":       true,
			"duration":        true,
			"random":          true,
			"uuid":            true,
			"matches":         true, // regex
			"getDate":         true,
			"getDayOfMonth":   true,
			"getDayOfWeek":    true,
			"getDayOfYear":    true,
			"getFullYear":     true,
			"getHours":        true,
			"getMilliseconds": true,
			"getMinutes":      true,
			"getMonth":        true,
			"getSeconds":      true,
		},
		BannedTypes: map[string]bool{
			"double": true,
			"float":  true,
		},
	}
}

// ValidateExpression lists every profile violation in expr, in a stable order.
func (v *CELProfileValidator) ValidateExpression(expr string) []ValidationIssue {
	issues := []ValidationIssue{}

	for _, fn := range sortedKeys(v.BannedFunctions) {
		if v.BannedFunctions[fn] && containsFunction(expr, fn) {
			issues = append(issues, ValidationIssue{
				Type:    "banned_function",
				Name:    fn,
				Message: fmt.Sprintf("function %q is forbidden in %s", fn, CELProfileID),
			})
		}
	}

	for _, typ := range sortedKeys(v.BannedTypes) {
		if v.BannedTypes[typ] && containsFunction(expr, typ) {
			issues = append(issues, ValidationIssue{
				Type:    "banned_type",
				Name:    typ,
				Message: fmt.Sprintf("type %q is forbidden in %s; use int", typ, CELProfileID),
			})
		}
	}

	for _, op := range []string{"type(", "dyn("} {
		if strings.Contains(expr, op) {
			issues = append(issues, ValidationIssue{
				Type:    "nondeterministic",
				Name:    op,
				Message: fmt.Sprintf("dynamic operation %q may vary by implementation", op),
			})
		}
	}

	return issues
}

func containsFunction(expr, name string) bool {
	pattern := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\s*\(`)
	return pattern.MatchString(expr)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
