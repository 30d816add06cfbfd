package domain

// Update is one persisted-field change: task TaskID now sits in Lane at Order.
type Update struct {
	TaskID      int64 `json:"taskId"`
	Lane        Lane  `json:"lane"`
	Order       int   `json:"order"`
	LaneChanged bool  `json:"laneChanged,omitempty"`
}

// SyncDiff lists the updates needed to make the backend match an ordering.
type SyncDiff []Update

// TaskIDs returns the ids touched by d.
func (d SyncDiff) TaskIDs() []int64 {
	ids := make([]int64, len(d))
	for i, u := range d {
		ids[i] = u.TaskID
	}
	return ids
}

// Diff compares two orderings by lane index. The controller diffs against
// persisted placements with DiffPlacements; Diff is kept for ordering-only
// callers and the tests.
func Diff(prev, next Ordering) SyncDiff {
	return DiffPlacements(prev.Placements(), next)
}

// DiffPlacements compares next against persisted placements. Tasks whose lane
// and order are both unchanged produce no entry.
func DiffPlacements(prev map[int64]Placement, next Ordering) SyncDiff {
	var diff SyncDiff
	for _, l := range Lanes {
		for i, id := range next.lanes[l] {
			p, known := prev[id]
			laneChanged := !known || p.Lane != l
			if !laneChanged && p.Order == i {
				continue
			}
			diff = append(diff, Update{TaskID: id, Lane: l, Order: i, LaneChanged: laneChanged})
		}
	}
	return diff
}

// ApplyDiff returns placements with d applied.
func ApplyDiff(prev map[int64]Placement, d SyncDiff) map[int64]Placement {
	out := make(map[int64]Placement, len(prev))
	for id, p := range prev {
		out[id] = p
	}
	for _, u := range d {
		out[u.TaskID] = Placement{Lane: u.Lane, Order: u.Order}
	}
	return out
}
