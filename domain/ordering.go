package domain

import (
	"slices"
	"sort"

	"github.com/bytedance/sonic"
)

// Ordering maps each lane to the ids of its tasks in board position order.
// Values are immutable: every operation returns a new Ordering.
type Ordering struct {
	lanes map[Lane][]int64
}

// Placement is the lane and position of a single task.
type Placement struct {
	Lane  Lane `json:"lane"`
	Order int  `json:"order"`
}

// NewOrdering derives an ordering from tasks, sorting each lane by order
// then id. Tasks with an unknown lane are skipped.
func NewOrdering(tasks []Task) Ordering {
	grouped := make(map[Lane][]Task, len(Lanes))
	for _, t := range tasks {
		if !t.Lane.Valid() {
			continue
		}
		grouped[t.Lane] = append(grouped[t.Lane], t)
	}
	o := Ordering{lanes: make(map[Lane][]int64, len(Lanes))}
	for _, l := range Lanes {
		ts := grouped[l]
		sort.SliceStable(ts, func(i, j int) bool {
			if ts[i].Order != ts[j].Order {
				return ts[i].Order < ts[j].Order
			}
			return ts[i].ID < ts[j].ID
		})
		ids := make([]int64, len(ts))
		for i, t := range ts {
			ids[i] = t.ID
		}
		o.lanes[l] = ids
	}
	return o
}

// OrderingOf builds an ordering from explicit lane sequences.
func OrderingOf(lanes map[Lane][]int64) Ordering {
	o := Ordering{lanes: make(map[Lane][]int64, len(Lanes))}
	for _, l := range Lanes {
		o.lanes[l] = slices.Clone(lanes[l])
		if o.lanes[l] == nil {
			o.lanes[l] = []int64{}
		}
	}
	return o
}

// Lane returns a copy of the ids in lane l.
func (o Ordering) Lane(l Lane) []int64 {
	ids := slices.Clone(o.lanes[l])
	if ids == nil {
		ids = []int64{}
	}
	return ids
}

// Len returns the number of tasks in lane l.
func (o Ordering) Len(l Lane) int {
	return len(o.lanes[l])
}

// Size returns the number of tasks across all lanes.
func (o Ordering) Size() int {
	n := 0
	for _, ids := range o.lanes {
		n += len(ids)
	}
	return n
}

// Locate returns the lane and index of task id.
func (o Ordering) Locate(id int64) (Lane, int, bool) {
	for _, l := range Lanes {
		if i := slices.Index(o.lanes[l], id); i >= 0 {
			return l, i, true
		}
	}
	return "", 0, false
}

// IDs returns every task id, lane by lane. Only the property tests use it.
func (o Ordering) IDs() []int64 {
	ids := make([]int64, 0, o.Size())
	for _, l := range Lanes {
		ids = append(ids, o.lanes[l]...)
	}
	return ids
}

// Placements returns the index-based placement of every task.
func (o Ordering) Placements() map[int64]Placement {
	out := make(map[int64]Placement, o.Size())
	for _, l := range Lanes {
		for i, id := range o.lanes[l] {
			out[id] = Placement{Lane: l, Order: i}
		}
	}
	return out
}

// Equal reports lane-by-lane sequence equality.
func (o Ordering) Equal(other Ordering) bool {
	for _, l := range Lanes {
		if !slices.Equal(o.lanes[l], other.lanes[l]) {
			return false
		}
	}
	return true
}

// Apply returns the ordering produced by g. The receiver is left untouched.
func (o Ordering) Apply(g Gesture) (Ordering, bool, error) {
	return Reconcile(o, g)
}

func (o Ordering) clone() Ordering {
	c := Ordering{lanes: make(map[Lane][]int64, len(Lanes))}
	for _, l := range Lanes {
		c.lanes[l] = slices.Clone(o.lanes[l])
		if c.lanes[l] == nil {
			c.lanes[l] = []int64{}
		}
	}
	return c
}

func (o Ordering) MarshalJSON() ([]byte, error) {
	out := make(map[Lane][]int64, len(Lanes))
	for _, l := range Lanes {
		out[l] = o.Lane(l)
	}
	return sonic.Marshal(out)
}

func (o *Ordering) UnmarshalJSON(b []byte) error {
	var in map[Lane][]int64
	if err := sonic.Unmarshal(b, &in); err != nil {
		return err
	}
	for l := range in {
		if !l.Valid() {
			return ErrUnknownLane
		}
	}
	*o = OrderingOf(in)
	return nil
}
