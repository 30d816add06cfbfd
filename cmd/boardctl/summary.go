package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"prism-board/domain"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show overdue, today and upcoming tasks with board statistics",
	Args:  cobra.NoArgs,
	RunE:  runSummary,
}

var summaryToday string

func init() {
	summaryCmd.Flags().StringVar(&summaryToday, "today", "", "reference date (YYYY-MM-DD, default: local today)")
	rootCmd.AddCommand(summaryCmd)
}

type summaryOutput struct {
	Today   domain.Date    `json:"today"`
	Buckets domain.Buckets `json:"buckets"`
	Stats   domain.Stats   `json:"stats"`
}

func runSummary(cmd *cobra.Command, args []string) error {
	today := domain.DateOf(time.Now())
	if summaryToday != "" {
		d, err := domain.ParseDate(summaryToday)
		if err != nil {
			return fmt.Errorf("invalid --today: %w", err)
		}
		today = d
	}

	s, _, done, err := openBoard(cmd)
	if err != nil {
		return err
	}
	defer done()

	tasks := s.ctrl.Tasks()
	out := summaryOutput{
		Today:   today,
		Buckets: domain.Bucketize(tasks, today),
		Stats:   domain.ComputeStats(tasks),
	}
	if jsonOutput {
		return printJSON(cmd, out)
	}
	printSummary(cmd.OutOrStdout(), out)
	return nil
}

func printSummary(w io.Writer, out summaryOutput) {
	section := func(title string, tasks []domain.Task) {
		fmt.Fprintf(w, "%s (%d)\n", title, len(tasks))
		for _, t := range tasks {
			fmt.Fprintf(w, "  #%-5d %s (due %s)\n", t.ID, t.Title, t.DueDate)
		}
	}
	fmt.Fprintf(w, "Summary for %s\n", out.Today)
	fmt.Fprintln(w, strings.Repeat("─", 40))
	section("Overdue", out.Buckets.Overdue)
	section("Today", out.Buckets.Today)
	section("Upcoming", out.Buckets.Upcoming)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Total: %d\n", out.Stats.Total)
	for _, l := range domain.Lanes {
		fmt.Fprintf(w, "  %-12s %d\n", l, out.Stats.ByLane[l])
	}
	for _, p := range []string{"high", "medium", "low", "none"} {
		fmt.Fprintf(w, "  %-12s %d\n", "priority "+p, out.Stats.ByPriority[p])
	}
	categories := make([]string, 0, len(out.Stats.ByCategory))
	for c := range out.Stats.ByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(w, "  %-12s %d\n", "category "+c, out.Stats.ByCategory[c])
	}
}
