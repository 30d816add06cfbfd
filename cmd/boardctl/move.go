package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"prism-board/domain"
)

var moveCmd = &cobra.Command{
	Use:   "move <task-id> <lane> <index>",
	Short: "Move a task to a lane position",
	Long: `Move a task to position <index> of <lane> (todo, inprogress, completed).
The index is the task's final position in the lane; values past the end
append. The command waits until the move is persisted or rolled back.`,
	Args: cobra.ExactArgs(3),
	RunE: runMove,
}

func init() {
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}
	lane, err := domain.ParseLane(args[1])
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(args[2])
	if err != nil || index < 0 {
		return fmt.Errorf("invalid index %q", args[2])
	}

	s, ctx, done, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer done()

	srcLane, srcIndex, ok := s.ctrl.Snapshot().Ordering.Locate(id)
	if !ok {
		return fmt.Errorf("task %d not found", id)
	}
	changed, err := s.ctrl.Move(domain.Gesture{
		SourceLane:       srcLane,
		SourceIndex:      srcIndex,
		DestinationLane:  lane,
		DestinationIndex: index,
	})
	if err != nil {
		return err
	}
	if changed {
		if err := s.ctrl.WaitSettled(ctx); err != nil {
			return err
		}
	}
	if s.failed() {
		return errMoveFailed
	}

	if jsonOutput {
		return printJSON(cmd, s.ctrl.Snapshot())
	}
	if !changed {
		fmt.Fprintf(cmd.OutOrStdout(), "Task %d already at %s[%d]\n", id, srcLane, srcIndex)
		return nil
	}
	finalLane, finalIndex, _ := s.ctrl.Snapshot().Ordering.Locate(id)
	fmt.Fprintf(cmd.OutOrStdout(), "Task moved successfully: #%d %s[%d] -> %s[%d]\n", id, srcLane, srcIndex, finalLane, finalIndex)
	return nil
}
