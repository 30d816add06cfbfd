package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"prism-board/domain"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the board lane by lane",
	Args:  cobra.NoArgs,
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	s, _, done, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer done()

	if jsonOutput {
		return printJSON(cmd, s.ctrl.Snapshot())
	}
	printBoard(cmd.OutOrStdout(), s.ctrl.Tasks())
	return nil
}

var laneTitles = map[domain.Lane]string{
	domain.LaneTodo:       "TO DO",
	domain.LaneInProgress: "IN PROGRESS",
	domain.LaneCompleted:  "COMPLETED",
}

func printBoard(w io.Writer, tasks []domain.Task) {
	byLane := make(map[domain.Lane][]domain.Task, len(domain.Lanes))
	for _, t := range tasks {
		byLane[t.Lane] = append(byLane[t.Lane], t)
	}
	for i, l := range domain.Lanes {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d)\n", laneTitles[l], len(byLane[l]))
		fmt.Fprintln(w, strings.Repeat("─", 40))
		for _, t := range byLane[l] {
			fmt.Fprintf(w, "%3d  #%-5d %s%s\n", t.Order, t.ID, t.Title, taskDetails(t))
		}
	}
}

func taskDetails(t domain.Task) string {
	var parts []string
	if t.Priority != domain.PriorityNone {
		parts = append(parts, string(t.Priority))
	}
	if t.DueDate != nil {
		parts = append(parts, "due "+t.DueDate.String())
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
