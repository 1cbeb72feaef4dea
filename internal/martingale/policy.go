// Package martingale implements the staking policy applied between rounds of
// a trading session: double the stake after a loss, reset after a win.
package martingale

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// DefaultMultiplier matches the remote platform's default setting.
	DefaultMultiplier int64 = 2
	// DefaultMaxLevel is the number of levels a sequence may use, 0..MaxLevel-1.
	DefaultMaxLevel = 5
)

// Policy computes stakes and levels. The zero value is not usable; use
// NewPolicy or DefaultPolicy.
type Policy struct {
	Multiplier int64
	MaxLevel   int
}

// DefaultPolicy returns the policy the remote platform applies by default.
func DefaultPolicy() Policy {
	return Policy{Multiplier: DefaultMultiplier, MaxLevel: DefaultMaxLevel}
}

// NewPolicy validates and returns a policy.
func NewPolicy(multiplier int64, maxLevel int) (Policy, error) {
	if multiplier < 1 {
		return Policy{}, fmt.Errorf("martingale multiplier must be at least 1, got %d", multiplier)
	}
	if maxLevel < 1 {
		return Policy{}, fmt.Errorf("martingale max level must be at least 1, got %d", maxLevel)
	}
	return Policy{Multiplier: multiplier, MaxLevel: maxLevel}, nil
}

// Stake returns base * Multiplier^level. This is the same formula the remote
// side settles with, so for equal inputs both sides produce the same decimal.
func (p Policy) Stake(base decimal.Decimal, level int) decimal.Decimal {
	if level <= 0 {
		return base
	}
	factor := decimal.NewFromInt(p.Multiplier).Pow(decimal.NewFromInt(int64(level)))
	return base.Mul(factor)
}

// NextLevel returns the level of the round following one played at
// previousLevel. After a win the level is always 0. After a loss it is
// previousLevel+1; if that would reach MaxLevel, ok is false and the caller
// must not queue another round.
func (p Policy) NextLevel(previousLevel int, wasWin bool) (level int, ok bool) {
	if wasWin {
		return 0, true
	}
	next := previousLevel + 1
	if next >= p.MaxLevel {
		return p.MaxLevel - 1, false
	}
	return next, true
}
