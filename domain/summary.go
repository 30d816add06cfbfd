package domain

import (
	"sort"
	"strconv"
)

// UpcomingWindow is how many days past today count as upcoming.
const UpcomingWindow = 14

// Buckets groups tasks by due date relative to a given day.
type Buckets struct {
	Overdue  []Task `json:"overdue"`
	Today    []Task `json:"today"`
	Upcoming []Task `json:"upcoming"`
}

// Bucketize sorts tasks with a due date into overdue, today and upcoming.
// Completed tasks are never overdue.
func Bucketize(tasks []Task, today Date) Buckets {
	b := Buckets{Overdue: []Task{}, Today: []Task{}, Upcoming: []Task{}}
	last := today.AddDays(UpcomingWindow)
	for _, t := range tasks {
		if t.DueDate == nil {
			continue
		}
		due := *t.DueDate
		switch {
		case due.Before(today):
			if t.Lane != LaneCompleted {
				b.Overdue = append(b.Overdue, t)
			}
		case due == today:
			b.Today = append(b.Today, t)
		case !due.After(last):
			b.Upcoming = append(b.Upcoming, t)
		}
	}
	byDue := func(ts []Task) {
		sort.SliceStable(ts, func(i, j int) bool {
			return ts[i].DueDate.Before(*ts[j].DueDate)
		})
	}
	byDue(b.Overdue)
	byDue(b.Upcoming)
	return b
}

// Stats counts tasks per lane, priority and category.
type Stats struct {
	Total      int            `json:"total"`
	ByLane     map[Lane]int   `json:"byLane"`
	ByPriority map[string]int `json:"byPriority"`
	ByCategory map[string]int `json:"byCategory"`
}

// ComputeStats aggregates tasks. Tasks without a priority count as "none"
// and tasks without a category as "uncategorized".
func ComputeStats(tasks []Task) Stats {
	s := Stats{
		ByLane:     make(map[Lane]int, len(Lanes)),
		ByPriority: map[string]int{"high": 0, "medium": 0, "low": 0, "none": 0},
		ByCategory: map[string]int{},
	}
	for _, l := range Lanes {
		s.ByLane[l] = 0
	}
	for _, t := range tasks {
		s.Total++
		if t.Lane.Valid() {
			s.ByLane[t.Lane]++
		}
		switch t.Priority {
		case PriorityHigh, PriorityMedium, PriorityLow:
			s.ByPriority[string(t.Priority)]++
		default:
			s.ByPriority["none"]++
		}
		if t.CategoryID == nil {
			s.ByCategory["uncategorized"]++
		} else {
			s.ByCategory[strconv.FormatInt(*t.CategoryID, 10)]++
		}
	}
	return s
}
