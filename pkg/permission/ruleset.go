// SPDX-License-Identifier: Apache-2.0
package permission

import (
	"context"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/praxis-ai/praxis/pkg/errors"
	"github.com/praxis-ai/praxis/pkg/session"
)

// Rule defines a single permission rule. Rules are evaluated in order and
// the first match wins.
type Rule struct {
	// ID identifies the rule in logs. Optional.
	ID string `yaml:"id"`

	// Effect is "allow" or "deny". Anything else is rejected at load time.
	Effect string `yaml:"effect"`

	// Capability is a glob pattern matched against the capability id.
	// Empty matches every capability.
	Capability string `yaml:"capability"`

	// Tenant matches the invocation tenant exactly. Empty matches all.
	Tenant string `yaml:"tenant"`

	// Caller is a glob pattern matched against the caller identity.
	// Empty matches every caller.
	Caller string `yaml:"caller"`

	// Reason explains a deny. Logged, never shown to the caller.
	Reason string `yaml:"reason"`

	// Overrides are forced argument values attached to an allow decision.
	// String values may reference ${caller} and ${tenant}, substituted at
	// evaluation time.
	Overrides map[string]interface{} `yaml:"overrides"`
}

// RuleSet evaluates rules in order against (tenant, capability, caller).
// When no rule matches, DefaultAllow decides the outcome.
type RuleSet struct {
	Rules        []Rule
	DefaultAllow bool
}

// NewRuleSet creates a rule set that denies by default when no rule matches.
func NewRuleSet(rules []Rule) *RuleSet {
	return &RuleSet{Rules: append([]Rule(nil), rules...)}
}

// Decide implements Service. It never returns an error: the rule set is
// in-memory, so there is no unreachable backend to fail closed on.
func (r *RuleSet) Decide(_ context.Context, tenant, capabilityID string, caller session.Identity) (Decision, error) {
	for _, rule := range r.Rules {
		if rule.Tenant != "" && rule.Tenant != tenant {
			continue
		}
		if !matchPattern(rule.Capability, capabilityID) {
			continue
		}
		if !matchPattern(rule.Caller, caller.Caller) {
			continue
		}
		decision := Decision{Reason: rule.Reason, RuleID: rule.ID}
		if strings.EqualFold(rule.Effect, "allow") {
			decision.Allowed = true
			decision.Overrides = substituteOverrides(rule.Overrides, tenant, caller)
		}
		return decision, nil
	}
	if r.DefaultAllow {
		return Decision{Allowed: true}, nil
	}
	return Decision{Reason: "no matching rule"}, nil
}

func matchPattern(pattern, value string) bool {
	if pattern == "" {
		return true
	}
	ok, err := path.Match(pattern, value)
	if err == nil && ok {
		return true
	}
	return pattern == value
}

func substituteOverrides(overrides map[string]interface{}, tenant string, caller session.Identity) map[string]interface{} {
	if len(overrides) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(overrides))
	replacer := strings.NewReplacer("${caller}", caller.Caller, "${tenant}", tenant)
	for k, v := range overrides {
		if s, ok := v.(string); ok {
			out[k] = replacer.Replace(s)
			continue
		}
		out[k] = v
	}
	return out
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
	// Default is "allow" or "deny" (the default when omitted).
	Default string `yaml:"default"`
}

// ParseRulesYAML parses a rules document and validates every rule effect.
func ParseRulesYAML(data []byte) (*RuleSet, error) {
	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to parse permission rules", err)
	}
	for i, rule := range file.Rules {
		switch strings.ToLower(rule.Effect) {
		case "allow", "deny":
		default:
			return nil, errors.New(errors.CodeConfig, "permission rule has unknown effect", nil).
				WithContext("rule_index", i).
				WithContext("effect", rule.Effect)
		}
		if _, err := path.Match(rule.Capability, ""); rule.Capability != "" && err != nil {
			return nil, errors.New(errors.CodeConfig, "permission rule has malformed capability pattern", err).
				WithContext("rule_index", i)
		}
	}
	set := NewRuleSet(file.Rules)
	set.DefaultAllow = strings.EqualFold(file.Default, "allow")
	return set, nil
}

// LoadRulesFile reads and parses a YAML rules file.
func LoadRulesFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.CodeConfig, "failed to read permission rules file", err).
			WithContext("path", path)
	}
	return ParseRulesYAML(data)
}
