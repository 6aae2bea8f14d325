package gamificationservice

import (
	"errors"
	"fmt"

	gamificationtypes "github.com/angelgru/gamification/app/modules/gamification/domain/types"
)

// RuleConfig holds the scoring constants and badge thresholds.
type RuleConfig struct {
	ScorePerEvent   int
	BronzeThreshold int
	SilverThreshold int
	GoldThreshold   int
	SpecialValue    int
	LeaderboardSize int
}

// DefaultRuleConfig returns the canonical constants.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		ScorePerEvent:   10,
		BronzeThreshold: 100,
		SilverThreshold: 500,
		GoldThreshold:   1000,
		SpecialValue:    44,
		LeaderboardSize: 10,
	}
}

// Validate checks that the thresholds are strictly increasing and positive.
func (c RuleConfig) Validate() error {
	var errs []error
	if c.ScorePerEvent <= 0 {
		errs = append(errs, fmt.Errorf("score per event must be positive, got %d", c.ScorePerEvent))
	}
	if c.BronzeThreshold <= 0 {
		errs = append(errs, fmt.Errorf("bronze threshold must be positive, got %d", c.BronzeThreshold))
	}
	if c.SilverThreshold <= c.BronzeThreshold {
		errs = append(errs, fmt.Errorf("silver threshold %d must exceed bronze threshold %d", c.SilverThreshold, c.BronzeThreshold))
	}
	if c.GoldThreshold <= c.SilverThreshold {
		errs = append(errs, fmt.Errorf("gold threshold %d must exceed silver threshold %d", c.GoldThreshold, c.SilverThreshold))
	}
	if c.LeaderboardSize <= 0 {
		errs = append(errs, fmt.Errorf("leaderboard size must be positive, got %d", c.LeaderboardSize))
	}
	return errors.Join(errs...)
}

// RuleInput is the state a badge rule is evaluated against.
type RuleInput struct {
	TotalScore      int
	ScoreEventCount int
	Operands        gamificationtypes.AttemptOperands
}

// RuleOutcome is the result of evaluating one badge rule: NoGrant or NewGrant.
type RuleOutcome interface {
	isRuleOutcome()
}

// NoGrant means the rule did not fire or the badge is already held.
type NoGrant struct{}

// NewGrant means the user earned Kind with this outcome.
type NewGrant struct {
	Kind gamificationtypes.BadgeKind
}

func (NoGrant) isRuleOutcome()  {}
func (NewGrant) isRuleOutcome() {}

type badgeRule struct {
	kind     gamificationtypes.BadgeKind
	eligible func(in RuleInput) bool
}

// rules returns the badge rules in evaluation order.
func (c RuleConfig) rules() []badgeRule {
	return []badgeRule{
		{kind: gamificationtypes.BadgeBronze, eligible: func(in RuleInput) bool { return in.TotalScore >= c.BronzeThreshold }},
		{kind: gamificationtypes.BadgeSilver, eligible: func(in RuleInput) bool { return in.TotalScore >= c.SilverThreshold }},
		{kind: gamificationtypes.BadgeGold, eligible: func(in RuleInput) bool { return in.TotalScore >= c.GoldThreshold }},
		{kind: gamificationtypes.BadgeFirstSuccess, eligible: func(in RuleInput) bool { return in.ScoreEventCount == 1 }},
		{kind: gamificationtypes.BadgeSpecialValue, eligible: func(in RuleInput) bool {
			return in.Operands.OperandA == c.SpecialValue || in.Operands.OperandB == c.SpecialValue
		}},
	}
}

func (r badgeRule) evaluate(in RuleInput, held map[gamificationtypes.BadgeKind]struct{}) RuleOutcome {
	if _, ok := held[r.kind]; ok {
		return NoGrant{}
	}
	if !r.eligible(in) {
		return NoGrant{}
	}
	return NewGrant{Kind: r.kind}
}

// EvaluateRules runs every badge rule in order and returns one outcome per rule.
func (c RuleConfig) EvaluateRules(in RuleInput, held map[gamificationtypes.BadgeKind]struct{}) []RuleOutcome {
	rules := c.rules()
	outcomes := make([]RuleOutcome, 0, len(rules))
	for _, rule := range rules {
		outcomes = append(outcomes, rule.evaluate(in, held))
	}
	return outcomes
}

// grantedKinds extracts the kinds of every NewGrant, preserving order.
func grantedKinds(outcomes []RuleOutcome) []gamificationtypes.BadgeKind {
	var kinds []gamificationtypes.BadgeKind
	for _, outcome := range outcomes {
		switch o := outcome.(type) {
		case NewGrant:
			kinds = append(kinds, o.Kind)
		case NoGrant:
		}
	}
	return kinds
}
