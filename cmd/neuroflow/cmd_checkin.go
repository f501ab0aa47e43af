package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"neuroflow/internal/policy"
	"neuroflow/internal/types"
	"neuroflow/internal/ux"
)

var (
	checkinEnergy int
	checkinFocus  int
	checkinMood   int
	checkinNote   string
)

// checkinCmd records a cognitive state reading
var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Record how you are doing right now",
	Long: `Records an energy/focus/mood reading (each 1-10) and shows how the app
will adapt: which task complexity stays visible, pacing, and tone.

Example:
  neuroflow checkin --energy 3 --focus 4 --mood 5 --note "slow morning"`,
	RunE: runCheckin,
}

func init() {
	checkinCmd.Flags().IntVar(&checkinEnergy, "energy", 5, "Energy level, 1-10")
	checkinCmd.Flags().IntVar(&checkinFocus, "focus", 5, "Focus level, 1-10")
	checkinCmd.Flags().IntVar(&checkinMood, "mood", 5, "Mood level, 1-10")
	checkinCmd.Flags().StringVar(&checkinNote, "note", "", "Optional note, up to 500 characters")
}

func runCheckin(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	state := &types.CognitiveState{
		ID:         uuid.NewString(),
		UserID:     userID,
		Energy:     checkinEnergy,
		Focus:      checkinFocus,
		Mood:       checkinMood,
		Note:       checkinNote,
		CapturedAt: time.Now(),
	}
	if err := a.store.SaveState(ctx, state); err != nil {
		fmt.Println(ux.Message(err))
		return err
	}

	adaptation := policy.Adapt(state)
	logger.Info("check-in recorded",
		zap.String("user", userID),
		zap.String("tier", string(adaptation.Tier)))

	fmt.Printf("Checked in: energy %d, focus %d, mood %d\n", state.Energy, state.Focus, state.Mood)
	fmt.Printf("  mode:        %s\n", adaptation.Tier)
	fmt.Printf("  shows tasks: complexity %d and below\n", adaptation.ComplexityCeiling)
	fmt.Printf("  pacing:      %s, %s touch targets\n", adaptation.Spacing, adaptation.TouchTargetClass)
	fmt.Printf("  tone:        %s\n", adaptation.Tone)
	return nil
}
