// Package policy converts a user's self-reported cognitive state into the
// UI/behavior adaptation parameters the rest of the app keys off, and
// applies the resulting complexity ceiling to task collections.
//
// Everything in this package is pure and deterministic: Adapt runs on every
// render/filter decision, so it must be cheap and testable in isolation.
// Callers hold and pass the current state; there is no hidden module-level
// "current brain state".
package policy

import "neuroflow/internal/types"

// Adapt derives an AdaptationRecord from a cognitive state.
//
// The mapping is intentionally asymmetric and is a fixed contract:
// spacing and tone key off the energy-focus average, the complexity ceiling
// keys off energy alone (ability to act on complex content), and the touch
// target class keys off focus alone (motor/attention precision).
//
// A nil state (no check-in yet today) yields the medium-tier defaults.
func Adapt(state *types.CognitiveState) types.AdaptationRecord {
	if state == nil {
		return types.AdaptationRecord{
			Tier:              types.TierMedium,
			ComplexityCeiling: 3,
			Spacing:           types.SpacingNormal,
			Tone:              types.ToneStandard,
			TouchTargetClass:  types.TouchTargetNormal,
		}
	}

	avg := (state.Energy + state.Focus) / 2

	var tier types.Tier
	switch {
	case avg <= 3:
		tier = types.TierLow
	case avg <= 6:
		tier = types.TierMedium
	default:
		tier = types.TierHigh
	}

	return types.AdaptationRecord{
		Tier:              tier,
		ComplexityCeiling: ceilingForEnergy(state.Energy),
		Spacing:           spacingForTier(tier),
		Tone:              toneForTier(tier),
		TouchTargetClass:  touchTargetForFocus(state.Focus),
	}
}

// ceilingForEnergy is a step function of energy alone, monotonic
// non-decreasing across the full range.
func ceilingForEnergy(energy int) int {
	switch {
	case energy <= 2:
		return 1
	case energy <= 4:
		return 2
	case energy <= 6:
		return 3
	case energy <= 7:
		return 4
	default:
		return 5
	}
}

func spacingForTier(tier types.Tier) types.Spacing {
	switch tier {
	case types.TierLow:
		return types.SpacingRelaxed
	case types.TierHigh:
		return types.SpacingCompact
	default:
		return types.SpacingNormal
	}
}

func toneForTier(tier types.Tier) types.Tone {
	switch tier {
	case types.TierLow:
		return types.ToneGentle
	case types.TierHigh:
		return types.ToneEnergetic
	default:
		return types.ToneStandard
	}
}

func touchTargetForFocus(focus int) types.TouchTargetClass {
	switch {
	case focus <= 3:
		return types.TouchTargetLarge
	case focus >= 7:
		return types.TouchTargetCompact
	default:
		return types.TouchTargetNormal
	}
}
