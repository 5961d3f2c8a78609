package core

import (
	"errors"
	"fmt"
	"time"
)

// Default scoring magnitudes
const (
	DefaultHighImportanceBonus  = 3.0
	DefaultLowImportancePenalty = 1.0
	DefaultFlaggedBonus         = 1.0
	DefaultOverdueBonus         = 3.0
	DefaultDueSoonBonus         = 2.0
	DefaultDueLaterBonus        = 1.0
	DefaultRecentBonus          = 1.0

	DefaultDueSoonWindow  = 24 * time.Hour
	DefaultDueLaterWindow = 48 * time.Hour
	DefaultRecentWindow   = 4 * time.Hour

	DefaultLimit = 5
)

// ErrInvalidWeights is returned by NewScorer for inconsistent weights
var ErrInvalidWeights = errors.New("invalid scoring weights")

// Weights holds the bonus magnitudes and windows used by the scorer
type Weights struct {
	HighImportanceBonus  float64
	LowImportancePenalty float64
	FlaggedBonus         float64
	OverdueBonus         float64
	DueSoonBonus         float64
	DueLaterBonus        float64
	RecentBonus          float64

	DueSoonWindow  time.Duration
	DueLaterWindow time.Duration
	RecentWindow   time.Duration

	// IncludeUnqualified pads a short result with zero-signal messages
	IncludeUnqualified bool
}

// DefaultWeights returns the default scoring weights
func DefaultWeights() Weights {
	return Weights{
		HighImportanceBonus:  DefaultHighImportanceBonus,
		LowImportancePenalty: DefaultLowImportancePenalty,
		FlaggedBonus:         DefaultFlaggedBonus,
		OverdueBonus:         DefaultOverdueBonus,
		DueSoonBonus:         DefaultDueSoonBonus,
		DueLaterBonus:        DefaultDueLaterBonus,
		RecentBonus:          DefaultRecentBonus,
		DueSoonWindow:        DefaultDueSoonWindow,
		DueLaterWindow:       DefaultDueLaterWindow,
		RecentWindow:         DefaultRecentWindow,
	}
}

// Validate checks that bonuses are non-negative and that an overdue message
// always outranks one that is merely due soon
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"high_importance_bonus":  w.HighImportanceBonus,
		"low_importance_penalty": w.LowImportancePenalty,
		"flagged_bonus":          w.FlaggedBonus,
		"overdue_bonus":          w.OverdueBonus,
		"due_soon_bonus":         w.DueSoonBonus,
		"due_later_bonus":        w.DueLaterBonus,
		"recent_bonus":           w.RecentBonus,
	} {
		if v < 0 {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidWeights, name)
		}
	}
	if w.OverdueBonus <= w.DueSoonBonus {
		return fmt.Errorf("%w: overdue_bonus must exceed due_soon_bonus", ErrInvalidWeights)
	}
	if w.DueLaterBonus > w.DueSoonBonus {
		return fmt.Errorf("%w: due_later_bonus must not exceed due_soon_bonus", ErrInvalidWeights)
	}
	if w.DueSoonWindow < 0 || w.DueLaterWindow < w.DueSoonWindow || w.RecentWindow < 0 {
		return fmt.Errorf("%w: windows must be ordered and non-negative", ErrInvalidWeights)
	}
	return nil
}
