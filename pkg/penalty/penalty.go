// Package penalty applies configurable late-submission penalty rules
// to recovered scores.
package penalty

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/gradekeep/gradekeep/pkg/errors"
)

// Step is one tier of a penalty schedule: submissions up to DaysLate
// days late lose FracDeduction of the score.
type Step struct {
	DaysLate      float64 `yaml:"days-late"`
	FracDeduction float64 `yaml:"frac-deduction"`
}

// Rule scopes a penalty schedule to a week, optionally narrowed to one
// student and/or one assignment. A rule whose penalty key is absent or
// null is an explicit waiver: matching records keep their full score.
type Rule struct {
	Week       int
	Student    string
	Assignment string
	Penalty    []Step
	HasPenalty bool
}

type rawRule struct {
	Week       int     `yaml:"week"`
	Student    string  `yaml:"student"`
	Assignment string  `yaml:"assignment"`
	Penalty    *[]Step `yaml:"penalty"`
}

// Record is one late submission to evaluate.
type Record struct {
	Week       int
	Student    string
	Assignment string
	Score      float64
	DaysLate   float64
}

// Outcome describes how a record was adjusted.
type Outcome struct {
	Matched       bool
	Rule          string
	FracDeduction float64
}

// LoadRules reads a YAML rules file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return ParseRules(data, path)
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte, name string) ([]Rule, error) {
	var raw []rawRule
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.NewParseError("yaml", name, err.Error(), err)
	}

	rules := make([]Rule, 0, len(raw))
	for i, r := range raw {
		rule := Rule{
			Week:       r.Week,
			Student:    strings.TrimSpace(r.Student),
			Assignment: strings.TrimSpace(r.Assignment),
		}
		if r.Penalty != nil {
			rule.Penalty = *r.Penalty
			rule.HasPenalty = true
		}
		if rule.Week <= 0 {
			return nil, errors.NewRulesError(name, rule.describe(), fmt.Sprintf("rule %d: week must be positive", i+1), nil)
		}
		for _, step := range rule.Penalty {
			if step.DaysLate < 0 {
				return nil, errors.NewRulesError(name, rule.describe(), "days-late must not be negative", nil)
			}
			if step.FracDeduction < 0 || step.FracDeduction > 1 {
				return nil, errors.NewRulesError(name, rule.describe(), "frac-deduction must be within [0, 1]", nil)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// describe renders a rule for report and log output.
func (r Rule) describe() string {
	parts := []string{fmt.Sprintf("week %d", r.Week)}
	if r.Student != "" {
		parts = append(parts, "student "+r.Student)
	}
	if r.Assignment != "" {
		parts = append(parts, "assignment "+r.Assignment)
	}
	if !r.HasPenalty {
		parts = append(parts, "no penalty")
	}
	return strings.Join(parts, ", ")
}

// applies reports whether the rule covers the record. Empty student
// and assignment fields are wildcards.
func (r Rule) applies(rec Record) bool {
	if r.Week != rec.Week {
		return false
	}
	if r.Student != "" && !strings.EqualFold(r.Student, rec.Student) {
		return false
	}
	if r.Assignment != "" && !strings.EqualFold(r.Assignment, rec.Assignment) {
		return false
	}
	return true
}

// Evaluate applies the first rule in file order that produces an
// outcome for the record. A waiver rule returns the score unchanged.
// Within a rule the first step whose days-late threshold covers the
// record applies; a rule whose steps all fall short of the record's
// lateness produces no outcome, and evaluation continues with later
// rules. A record no rule decides keeps its score unmatched.
func Evaluate(rec Record, rules []Rule) (float64, Outcome) {
	for _, rule := range rules {
		if !rule.applies(rec) {
			continue
		}
		out := Outcome{Matched: true, Rule: rule.describe()}
		if !rule.HasPenalty {
			return rec.Score, out
		}
		for _, step := range rule.Penalty {
			if rec.DaysLate <= step.DaysLate {
				out.FracDeduction = step.FracDeduction
				return rec.Score * (1 - step.FracDeduction), out
			}
		}
	}
	return rec.Score, Outcome{}
}
