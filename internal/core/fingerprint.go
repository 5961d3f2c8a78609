package core

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies the scoring inputs a digest was built from. Two
// services with the same source, rule set and weights produce the same value
// regardless of rule order.
func Fingerprint(source string, rules []SenderRule, weights Weights) string {
	sorted := make([]SenderRule, len(rules))
	copy(sorted, rules)
	for i := range sorted {
		sorted[i].Matcher = strings.ToLower(strings.TrimSpace(sorted[i].Matcher))
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Matcher != sorted[j].Matcher {
			return sorted[i].Matcher < sorted[j].Matcher
		}
		return sorted[i].Weight < sorted[j].Weight
	})

	h := blake3.New()
	fmt.Fprintf(h, "source=%s\n", source)
	for _, r := range sorted {
		fmt.Fprintf(h, "rule=%s:%s\n", r.Matcher, formatWeight(r.Weight))
	}
	fmt.Fprintf(h, "weights=%+v\n", weights)
	return hex.EncodeToString(h.Sum(nil)[:16])
}
