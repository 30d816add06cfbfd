package domain

import (
	"reflect"
	"testing"
)

func TestDiffSameLaneReorder(t *testing.T) {
	prev := board([]int64{1, 2, 3}, nil, nil)
	next, _, err := Reconcile(prev, Gesture{SourceLane: LaneTodo, SourceIndex: 0, DestinationLane: LaneTodo, DestinationIndex: 2})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got := Diff(prev, next)
	want := SyncDiff{
		{TaskID: 2, Lane: LaneTodo, Order: 0},
		{TaskID: 3, Lane: LaneTodo, Order: 1},
		{TaskID: 1, Lane: LaneTodo, Order: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected diff:\n got %+v\nwant %+v", got, want)
	}
}

func TestDiffCrossLaneMove(t *testing.T) {
	prev := board([]int64{1, 2}, []int64{3}, nil)
	next, _, err := Reconcile(prev, Gesture{SourceLane: LaneTodo, SourceIndex: 0, DestinationLane: LaneInProgress, DestinationIndex: 0})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got := Diff(prev, next)
	want := SyncDiff{
		{TaskID: 2, Lane: LaneTodo, Order: 0},
		{TaskID: 1, Lane: LaneInProgress, Order: 0, LaneChanged: true},
		{TaskID: 3, Lane: LaneInProgress, Order: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected diff:\n got %+v\nwant %+v", got, want)
	}
}

func TestDiffSkipsUnchangedTasks(t *testing.T) {
	prev := board([]int64{1, 2, 3, 4}, []int64{5, 6}, nil)
	next, _, err := Reconcile(prev, Gesture{SourceLane: LaneTodo, SourceIndex: 2, DestinationLane: LaneTodo, DestinationIndex: 3})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got := Diff(prev, next)
	if len(got) != 2 {
		t.Fatalf("expected only the two swapped tasks, got %+v", got)
	}
	for _, u := range got {
		if u.TaskID != 3 && u.TaskID != 4 {
			t.Fatalf("unexpected entry for task %d", u.TaskID)
		}
	}
	if d := Diff(prev, prev); len(d) != 0 {
		t.Fatalf("expected empty diff for identical orderings, got %+v", d)
	}
}

func TestDiffPlacementsRepairsSparseOrders(t *testing.T) {
	persisted := map[int64]Placement{
		1: {Lane: LaneTodo, Order: 0},
		2: {Lane: LaneTodo, Order: 4},
		3: {Lane: LaneTodo, Order: 9},
	}
	next := board([]int64{1, 2, 3}, nil, nil)

	got := DiffPlacements(persisted, next)
	want := SyncDiff{
		{TaskID: 2, Lane: LaneTodo, Order: 1},
		{TaskID: 3, Lane: LaneTodo, Order: 2},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected diff:\n got %+v\nwant %+v", got, want)
	}
}

func TestApplyDiffRoundTrip(t *testing.T) {
	prev := board([]int64{1, 2}, []int64{3}, []int64{4})
	next, _, err := Reconcile(prev, Gesture{SourceLane: LaneCompleted, SourceIndex: 0, DestinationLane: LaneTodo, DestinationIndex: 1})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	placements := ApplyDiff(prev.Placements(), Diff(prev, next))
	if !reflect.DeepEqual(placements, next.Placements()) {
		t.Fatalf("applied diff drifted:\n got %+v\nwant %+v", placements, next.Placements())
	}
}
