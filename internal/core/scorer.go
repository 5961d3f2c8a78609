package core

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const noSignalsReason = "No priority signals detected"

// Scorer computes priority scores and ranks messages. It holds no mutable
// state and is safe for concurrent use.
type Scorer struct {
	weights Weights
	logger  *zap.Logger
}

// NewScorer creates a new scorer with the given weights
func NewScorer(weights Weights, logger *zap.Logger) (*Scorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		weights: weights,
		logger:  logger,
	}, nil
}

// Weights returns the weights the scorer was built with
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score ranks messages by priority and returns at most limit of them.
// Rules and timestamps are validated before anything is scored; any invalid
// input fails the whole call.
func (s *Scorer) Score(messages []Message, rules []SenderRule, now time.Time, limit int) ([]ScoredMessage, error) {
	if limit < 1 {
		limit = 1
	}
	idx, err := newRuleIndex(rules)
	if err != nil {
		return nil, err
	}
	if err := validateTimes(messages, now); err != nil {
		return nil, err
	}

	qualifying := make([]ScoredMessage, 0, len(messages))
	var rest []ScoredMessage
	for _, msg := range messages {
		scored, ok := s.score(msg, idx, now)
		if ok {
			qualifying = append(qualifying, scored)
		} else if s.weights.IncludeUnqualified {
			rest = append(rest, scored)
		}
	}

	rank(qualifying)
	result := qualifying
	if len(result) < limit && len(rest) > 0 {
		rank(rest)
		result = append(result, rest...)
	}
	if len(result) > limit {
		result = result[:limit]
	}

	s.logger.Debug("Scored messages",
		zap.Int("messages", len(messages)),
		zap.Int("rules", len(rules)),
		zap.Int("qualifying", len(qualifying)),
		zap.Int("returned", len(result)))

	return result, nil
}

// ScoreOne scores a single message without ranking or exclusion
func (s *Scorer) ScoreOne(msg Message, rules []SenderRule, now time.Time) (ScoredMessage, error) {
	idx, err := newRuleIndex(rules)
	if err != nil {
		return ScoredMessage{}, err
	}
	if err := validateTimes([]Message{msg}, now); err != nil {
		return ScoredMessage{}, err
	}
	scored, _ := s.score(msg, idx, now)
	return scored, nil
}

// score applies every factor in a fixed order. A message qualifies only
// through a sender rule, high importance or due date proximity; the flag and
// recency bonuses are added to qualifying messages only.
func (s *Scorer) score(msg Message, idx *ruleIndex, now time.Time) (ScoredMessage, bool) {
	w := s.weights
	var score float64
	var reasons []string

	add := func(delta float64, reason string) {
		if delta == 0 {
			return
		}
		score += delta
		reasons = append(reasons, reason)
	}

	var dueDelta float64
	var dueReason string
	if msg.DueAt != nil {
		due := *msg.DueAt
		switch {
		case due.Before(now):
			dueDelta, dueReason = w.OverdueBonus, "Flag due date has passed"
		case !due.After(now.Add(w.DueSoonWindow)):
			dueDelta, dueReason = w.DueSoonBonus, fmt.Sprintf("Flag due within %s", formatWindow(w.DueSoonWindow))
		case !due.After(now.Add(w.DueLaterWindow)):
			dueDelta, dueReason = w.DueLaterBonus, fmt.Sprintf("Flag due within %s", formatWindow(w.DueLaterWindow))
		}
	}
	ruleWeight, kind, matched := idx.match(msg.SenderAddress)

	qualifies := (msg.Importance == ImportanceHigh && w.HighImportanceBonus > 0) ||
		(matched && ruleWeight > 0) ||
		dueDelta > 0

	switch msg.Importance {
	case ImportanceHigh:
		add(w.HighImportanceBonus, "Marked as high importance")
	case ImportanceLow:
		add(-w.LowImportancePenalty, "Marked as low importance")
	}

	if matched {
		add(ruleWeight, fmt.Sprintf("Sender matches %s priority rule (+%s)", kind, formatWeight(ruleWeight)))
	}

	if qualifies && msg.FlagStatus == FlagFlagged {
		add(w.FlaggedBonus, "Message is flagged for follow-up")
	}

	add(dueDelta, dueReason)

	if age := now.Sub(msg.ReceivedAt); qualifies && age >= 0 && age <= w.RecentWindow {
		add(w.RecentBonus, fmt.Sprintf("Received within the last %s", formatWindow(w.RecentWindow)))
	}

	if len(reasons) == 0 {
		reasons = append(reasons, noSignalsReason)
	}

	return ScoredMessage{
		Message: msg,
		Score:   score,
		Reasons: reasons,
	}, qualifies
}

// rank sorts by score desc, then received desc; input order breaks the rest
func rank(items []ScoredMessage) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Message.ReceivedAt.After(items[j].Message.ReceivedAt)
	})
}

func validateTimes(messages []Message, now time.Time) error {
	if now.IsZero() {
		return fmt.Errorf("%w: reference time is zero", ErrInvalidTimestamp)
	}
	for i, msg := range messages {
		if msg.ReceivedAt.IsZero() {
			return fmt.Errorf("%w: message %d (%s) has no received time", ErrInvalidTimestamp, i, msg.ID)
		}
		if msg.DueAt != nil && msg.DueAt.IsZero() {
			return fmt.Errorf("%w: message %d (%s) has a zero due time", ErrInvalidTimestamp, i, msg.ID)
		}
	}
	return nil
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
