package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"neuroflow/internal/policy"
	"neuroflow/internal/types"
	"neuroflow/internal/ux"
)

var (
	taskTitle      string
	taskDesc       string
	taskComplexity int
	taskMinutes    int
	taskOffline    bool

	listAll       bool
	listCompleted bool
)

// tasksCmd groups task management subcommands
var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Manage tasks",
}

var tasksAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a task",
	Long: `Adds a task with a complexity rating (1-5) and an optional minute
estimate. With --offline the write is queued locally and pushed on the
next sync.

Example:
  neuroflow tasks add --title "File taxes" --complexity 4 --minutes 120`,
	RunE: runTasksAdd,
}

var tasksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, filtered to your current state",
	Long: `Lists tasks at or below the complexity ceiling of your latest check-in.
Hidden tasks stay put; --all shows everything regardless of state.`,
	RunE: runTasksList,
}

var tasksDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE:  runTasksDone,
}

func init() {
	tasksAddCmd.Flags().StringVar(&taskTitle, "title", "", "Task title (required)")
	tasksAddCmd.Flags().StringVar(&taskDesc, "desc", "", "Task description")
	tasksAddCmd.Flags().IntVar(&taskComplexity, "complexity", 3, "Complexity, 1-5")
	tasksAddCmd.Flags().IntVar(&taskMinutes, "minutes", 0, "Estimated minutes")
	tasksAddCmd.Flags().BoolVar(&taskOffline, "offline", false, "Queue the write locally instead of saving")
	tasksAddCmd.MarkFlagRequired("title")

	tasksListCmd.Flags().BoolVar(&listAll, "all", false, "Ignore the complexity ceiling")
	tasksListCmd.Flags().BoolVar(&listCompleted, "include-completed", false, "Include completed tasks")

	tasksCmd.AddCommand(tasksAddCmd)
	tasksCmd.AddCommand(tasksListCmd)
	tasksCmd.AddCommand(tasksDoneCmd)
}

func runTasksAdd(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	task := &types.Task{
		ID:               uuid.NewString(),
		UserID:           userID,
		Title:            taskTitle,
		Description:      taskDesc,
		Complexity:       taskComplexity,
		EstimatedMinutes: taskMinutes,
		UpdatedAt:        time.Now(),
	}
	if err := task.Validate(); err != nil {
		fmt.Println(ux.Message(err))
		return err
	}

	if taskOffline {
		if err := a.cache.QueueWrite(types.EntityTask, "task:"+task.ID, task, time.Time{}); err != nil {
			fmt.Println(ux.Message(err))
			return err
		}
		fmt.Printf("Queued %q for the next sync (%s)\n", task.Title, task.ID)
		return nil
	}

	if err := a.store.SaveTask(ctx, task); err != nil {
		fmt.Println(ux.Message(err))
		return err
	}
	fmt.Printf("Added %q (%s)\n", task.Title, task.ID)
	return nil
}

func runTasksList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	tasks, err := a.store.GetTasks(ctx, userID)
	if err != nil {
		fmt.Println(ux.Message(err))
		return err
	}

	state, err := a.store.GetCurrentState(ctx, userID)
	if err != nil {
		fmt.Println(ux.Message(err))
		return err
	}
	adaptation := policy.Adapt(state)

	visible := tasks
	if !listAll {
		visible = policy.Filter(tasks, adaptation.ComplexityCeiling, listCompleted)
	}

	if len(visible) == 0 {
		fmt.Println("Nothing on your plate right now.")
		return nil
	}

	fmt.Printf("Showing %d of %d tasks (ceiling %d)\n", len(visible), len(tasks), adaptation.ComplexityCeiling)
	for _, t := range visible {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %-40s complexity %d", mark, t.Title, t.Complexity)
		if t.EstimatedMinutes > 0 {
			line += fmt.Sprintf(", ~%d min", t.EstimatedMinutes)
		}
		if t.Breakdown != nil {
			line += fmt.Sprintf(" (%d steps)", len(t.Breakdown.Steps))
		}
		fmt.Printf("  %s  %s\n", line, t.ID)
	}
	return nil
}

func runTasksDone(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	task, err := a.store.GetTask(ctx, userID, args[0])
	if err != nil {
		fmt.Println(ux.Message(err))
		return err
	}
	task.Completed = true
	task.UpdatedAt = time.Now()
	if err := a.store.SaveTask(ctx, task); err != nil {
		fmt.Println(ux.Message(err))
		return err
	}
	fmt.Printf("Done: %q\n", task.Title)
	return nil
}
