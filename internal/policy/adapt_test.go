package policy

import (
	"testing"

	"neuroflow/internal/types"
)

func state(energy, focus, mood int) *types.CognitiveState {
	return &types.CognitiveState{Energy: energy, Focus: focus, Mood: mood}
}

func TestAdaptNilStateReturnsMediumDefaults(t *testing.T) {
	got := Adapt(nil)
	want := types.AdaptationRecord{
		Tier:              types.TierMedium,
		ComplexityCeiling: 3,
		Spacing:           types.SpacingNormal,
		Tone:              types.ToneStandard,
		TouchTargetClass:  types.TouchTargetNormal,
	}
	if got != want {
		t.Fatalf("Adapt(nil) = %+v, want %+v", got, want)
	}
}

func TestAdaptLowState(t *testing.T) {
	// energy 2, focus 3 -> avg 2 -> low tier across the board
	got := Adapt(state(2, 3, 2))
	want := types.AdaptationRecord{
		Tier:              types.TierLow,
		ComplexityCeiling: 1,
		Spacing:           types.SpacingRelaxed,
		Tone:              types.ToneGentle,
		TouchTargetClass:  types.TouchTargetLarge,
	}
	if got != want {
		t.Fatalf("Adapt(2,3,2) = %+v, want %+v", got, want)
	}
}

func TestAdaptHighState(t *testing.T) {
	// energy 8, focus 9 -> avg 8 -> high tier across the board
	got := Adapt(state(8, 9, 7))
	want := types.AdaptationRecord{
		Tier:              types.TierHigh,
		ComplexityCeiling: 5,
		Spacing:           types.SpacingCompact,
		Tone:              types.ToneEnergetic,
		TouchTargetClass:  types.TouchTargetCompact,
	}
	if got != want {
		t.Fatalf("Adapt(8,9,7) = %+v, want %+v", got, want)
	}
}

// The asymmetry is a contract: the ceiling follows energy even when the
// average lands in a different tier, and the touch target follows focus.
func TestAdaptAsymmetricDimensions(t *testing.T) {
	// High energy, terrible focus: avg 5 -> medium spacing/tone, but the
	// ceiling stays at 5 and touch targets go large.
	got := Adapt(state(9, 1, 5))
	if got.Tier != types.TierMedium {
		t.Fatalf("tier = %s, want medium", got.Tier)
	}
	if got.ComplexityCeiling != 5 {
		t.Fatalf("ceiling = %d, want 5 (keyed to energy alone)", got.ComplexityCeiling)
	}
	if got.TouchTargetClass != types.TouchTargetLarge {
		t.Fatalf("touch target = %s, want large (keyed to focus alone)", got.TouchTargetClass)
	}

	// Mood never feeds the record.
	a := Adapt(state(5, 5, 1))
	b := Adapt(state(5, 5, 10))
	if a != b {
		t.Fatalf("mood must not influence the adaptation record: %+v vs %+v", a, b)
	}
}

func TestCeilingMonotonicNonDecreasing(t *testing.T) {
	prev := 0
	for energy := 1; energy <= 10; energy++ {
		got := Adapt(state(energy, 5, 5)).ComplexityCeiling
		if got < prev {
			t.Fatalf("ceiling(%d) = %d dropped below ceiling(%d) = %d", energy, got, energy-1, prev)
		}
		if got < 1 || got > 5 {
			t.Fatalf("ceiling(%d) = %d out of range", energy, got)
		}
		prev = got
	}
}

func TestAdaptTierBoundaries(t *testing.T) {
	tests := []struct {
		energy, focus int
		want          types.Tier
	}{
		{3, 3, types.TierLow},    // avg 3
		{4, 3, types.TierLow},    // avg 3 (integer division)
		{4, 4, types.TierMedium}, // avg 4
		{6, 6, types.TierMedium}, // avg 6
		{7, 6, types.TierMedium}, // avg 6 (integer division)
		{7, 7, types.TierHigh},   // avg 7
	}
	for _, tt := range tests {
		if got := Adapt(state(tt.energy, tt.focus, 5)).Tier; got != tt.want {
			t.Fatalf("Adapt(energy=%d, focus=%d).Tier = %s, want %s", tt.energy, tt.focus, got, tt.want)
		}
	}
}
