package core

import (
	"fmt"
	"math"
	"strings"
)

// MatcherKind distinguishes exact address rules from domain rules
type MatcherKind int

const (
	MatchAddress MatcherKind = iota + 1
	MatchDomain
)

func (k MatcherKind) String() string {
	switch k {
	case MatchAddress:
		return "address"
	case MatchDomain:
		return "domain"
	default:
		return "unknown"
	}
}

// SenderRule assigns a weight to messages from an address or an @domain
type SenderRule struct {
	Matcher string
	Weight  float64
}

// Kind classifies the rule matcher, failing with ErrInvalidRuleKind when it is
// neither a full address nor an @domain suffix.
func (r SenderRule) Kind() (MatcherKind, error) {
	m := strings.ToLower(strings.TrimSpace(r.Matcher))
	at := strings.LastIndex(m, "@")
	if at < 0 || strings.Count(m, "@") != 1 {
		return 0, fmt.Errorf("%w: matcher %q is neither an address nor an @domain", ErrInvalidRuleKind, r.Matcher)
	}
	if !validDomain(m[at+1:]) {
		return 0, fmt.Errorf("%w: matcher %q has an invalid domain", ErrInvalidRuleKind, r.Matcher)
	}
	if at == 0 {
		return MatchDomain, nil
	}
	if strings.ContainsAny(m[:at], " \t,:<>()[]\\\"") {
		return 0, fmt.Errorf("%w: matcher %q has an invalid local part", ErrInvalidRuleKind, r.Matcher)
	}
	return MatchAddress, nil
}

// Validate checks both the matcher and the weight
func (r SenderRule) Validate() error {
	if _, err := r.Kind(); err != nil {
		return err
	}
	if r.Weight <= 0 || math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) {
		return fmt.Errorf("%w: matcher %q has non-positive weight %v", ErrInvalidRuleKind, r.Matcher, r.Weight)
	}
	return nil
}

func validDomain(d string) bool {
	if d == "" || len(d) > 253 {
		return false
	}
	for _, label := range strings.Split(d, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-') {
				return false
			}
		}
	}
	return true
}

// ruleIndex resolves the weight that applies to a sender
type ruleIndex struct {
	addresses map[string]float64
	domains   map[string]float64
}

// newRuleIndex validates every rule and indexes it by kind. Duplicate
// matchers keep the highest weight.
func newRuleIndex(rules []SenderRule) (*ruleIndex, error) {
	idx := &ruleIndex{
		addresses: make(map[string]float64),
		domains:   make(map[string]float64),
	}
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		kind, _ := r.Kind()
		m := strings.ToLower(strings.TrimSpace(r.Matcher))
		target := idx.addresses
		if kind == MatchDomain {
			target = idx.domains
			m = m[1:]
		}
		if w, ok := target[m]; !ok || r.Weight > w {
			target[m] = r.Weight
		}
	}
	return idx, nil
}

// match returns the applicable weight and the kind of rule that produced it
func (idx *ruleIndex) match(sender string) (float64, MatcherKind, bool) {
	sender = strings.ToLower(strings.TrimSpace(sender))
	if sender == "" {
		return 0, 0, false
	}
	if w, ok := idx.addresses[sender]; ok {
		return w, MatchAddress, true
	}
	at := strings.LastIndex(sender, "@")
	if at < 0 {
		return 0, 0, false
	}
	if w, ok := idx.domains[sender[at+1:]]; ok {
		return w, MatchDomain, true
	}
	return 0, 0, false
}
