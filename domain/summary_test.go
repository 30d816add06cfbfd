package domain

import (
	"testing"
	"time"
)

func due(s string) *Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestBucketize(t *testing.T) {
	today := Date{Year: 2024, Month: time.June, Day: 10}
	tasks := []Task{
		{ID: 1, Lane: LaneTodo, DueDate: due("2024-06-08")},
		{ID: 2, Lane: LaneCompleted, DueDate: due("2024-06-01")},
		{ID: 3, Lane: LaneInProgress, DueDate: due("2024-06-02")},
		{ID: 4, Lane: LaneTodo, DueDate: due("2024-06-10")},
		{ID: 5, Lane: LaneTodo, DueDate: due("2024-06-24")},
		{ID: 6, Lane: LaneTodo, DueDate: due("2024-06-25")},
		{ID: 7, Lane: LaneTodo, DueDate: due("2024-06-11")},
		{ID: 8, Lane: LaneTodo},
	}

	b := Bucketize(tasks, today)
	ids := func(ts []Task) []int64 {
		out := make([]int64, len(ts))
		for i, task := range ts {
			out[i] = task.ID
		}
		return out
	}
	if got := ids(b.Overdue); len(got) != 2 || got[0] != 3 || got[1] != 1 {
		t.Fatalf("unexpected overdue %v", got)
	}
	if got := ids(b.Today); len(got) != 1 || got[0] != 4 {
		t.Fatalf("unexpected today %v", got)
	}
	if got := ids(b.Upcoming); len(got) != 2 || got[0] != 7 || got[1] != 5 {
		t.Fatalf("unexpected upcoming %v", got)
	}
}

func TestComputeStats(t *testing.T) {
	cat := int64(2)
	tasks := []Task{
		{ID: 1, Lane: LaneTodo, Priority: PriorityHigh, CategoryID: &cat},
		{ID: 2, Lane: LaneTodo, Priority: PriorityLow},
		{ID: 3, Lane: LaneCompleted},
	}

	s := ComputeStats(tasks)
	if s.Total != 3 {
		t.Fatalf("unexpected total %d", s.Total)
	}
	if s.ByLane[LaneTodo] != 2 || s.ByLane[LaneInProgress] != 0 || s.ByLane[LaneCompleted] != 1 {
		t.Fatalf("unexpected lane counts %v", s.ByLane)
	}
	if s.ByPriority["high"] != 1 || s.ByPriority["low"] != 1 || s.ByPriority["none"] != 1 || s.ByPriority["medium"] != 0 {
		t.Fatalf("unexpected priority counts %v", s.ByPriority)
	}
	if s.ByCategory["2"] != 1 || s.ByCategory["uncategorized"] != 2 {
		t.Fatalf("unexpected category counts %v", s.ByCategory)
	}
}
