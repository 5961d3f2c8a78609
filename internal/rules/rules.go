// Package rules loads sender priority rules from configuration.
package rules

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/mikey/mail-priority/internal/config"
	"github.com/mikey/mail-priority/internal/core"
)

// DefaultSenderWeight applies to entries that carry no explicit weight
const DefaultSenderWeight = 3.0

// ErrInvalidWeight is returned when a rule weight is not a positive number
var ErrInvalidWeight = errors.New("invalid sender rule weight")

var folder = cases.Fold()

// Parse parses a comma-separated list of matcher[:weight] entries such as
// "ceo@example.com:5,@executive.example.com:4,boss@example.com".
func Parse(raw string) ([]core.SenderRule, error) {
	weights := make(map[string]float64)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		matcher, weightStr, hasWeight := strings.Cut(entry, ":")
		weight := DefaultSenderWeight
		if hasWeight {
			w, err := strconv.ParseFloat(strings.TrimSpace(weightStr), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidWeight, entry)
			}
			weight = w
		}
		if err := add(weights, matcher, weight); err != nil {
			return nil, err
		}
	}
	return sorted(weights), nil
}

// FromMap builds rules from a matcher to weight mapping
func FromMap(m map[string]interface{}) ([]core.SenderRule, error) {
	weights := make(map[string]float64, len(m))
	for matcher, v := range m {
		w, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidWeight, matcher, v)
		}
		if err := add(weights, matcher, w); err != nil {
			return nil, err
		}
	}
	return sorted(weights), nil
}

// FromConfig reads scoring.sender_rules, which may be either a rule string or
// a map of matcher to weight.
func FromConfig(cfg *config.Config, logger *zap.Logger) ([]core.SenderRule, error) {
	var (
		rules []core.SenderRule
		err   error
	)
	switch v := cfg.Get(config.KeySenderRules).(type) {
	case nil:
	case string:
		rules, err = Parse(v)
	case []interface{}:
		rules, err = Parse(strings.Join(cast.ToStringSlice(v), ","))
	case []string:
		rules, err = Parse(strings.Join(v, ","))
	case map[string]interface{}:
		rules, err = FromMap(v)
	default:
		err = fmt.Errorf("unsupported %s value of type %T", config.KeySenderRules, v)
	}
	if err != nil {
		return nil, err
	}

	if len(rules) > 0 && logger != nil {
		matchers := make([]string, len(rules))
		for i, r := range rules {
			matchers[i] = r.Matcher
		}
		logger.Info("Loaded sender priority rules", zap.Strings("matchers", matchers))
	}
	return rules, nil
}

// add normalizes and validates a single rule. Later entries for the same
// matcher replace earlier ones.
func add(weights map[string]float64, matcher string, weight float64) error {
	rule := core.SenderRule{
		Matcher: folder.String(strings.TrimSpace(matcher)),
		Weight:  weight,
	}
	if _, err := rule.Kind(); err != nil {
		return err
	}
	if !(weight > 0) || math.IsInf(weight, 1) {
		return fmt.Errorf("%w: %q has weight %v", ErrInvalidWeight, rule.Matcher, weight)
	}
	weights[rule.Matcher] = weight
	return nil
}

func sorted(weights map[string]float64) []core.SenderRule {
	rules := make([]core.SenderRule, 0, len(weights))
	for m, w := range weights {
		rules = append(rules, core.SenderRule{Matcher: m, Weight: w})
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Matcher < rules[j].Matcher
	})
	return rules
}
