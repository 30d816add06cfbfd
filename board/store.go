package board

import (
	"sort"

	"prism-board/domain"
)

// TaskStore is an immutable snapshot of the user's tasks keyed by id.
// Lane and Order hold the last persisted placement of each task.
type TaskStore struct {
	tasks map[int64]domain.Task
}

// NewTaskStore indexes tasks. Tasks with an unknown lane are returned in
// dropped rather than stored.
func NewTaskStore(tasks []domain.Task) (store TaskStore, dropped []domain.Task) {
	store.tasks = make(map[int64]domain.Task, len(tasks))
	for _, t := range tasks {
		if !t.Lane.Valid() {
			dropped = append(dropped, t)
			continue
		}
		store.tasks[t.ID] = t
	}
	return store, dropped
}

func (s TaskStore) Get(id int64) (domain.Task, bool) {
	t, ok := s.tasks[id]
	return t, ok
}

// Tasks returns every task sorted by lane, order, then id.
func (s TaskStore) Tasks() []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sortTasks(out)
	return out
}

// Ordering derives the lane ordering from the stored order fields.
func (s TaskStore) Ordering() domain.Ordering {
	return domain.NewOrdering(s.Tasks())
}

// Placements returns the persisted lane and order of every task.
func (s TaskStore) Placements() map[int64]domain.Placement {
	out := make(map[int64]domain.Placement, len(s.tasks))
	for id, t := range s.tasks {
		out[id] = domain.Placement{Lane: t.Lane, Order: t.Order}
	}
	return out
}

// Dense reports whether every lane's orders are exactly 0..count-1.
func (s TaskStore) Dense() bool {
	return len(s.SparseLanes()) == 0
}

// SparseLanes lists the lanes whose orders have gaps or duplicates.
func (s TaskStore) SparseLanes() []domain.Lane {
	seen := make(map[domain.Lane]map[int]bool, len(domain.Lanes))
	counts := make(map[domain.Lane]int, len(domain.Lanes))
	for _, t := range s.tasks {
		if seen[t.Lane] == nil {
			seen[t.Lane] = map[int]bool{}
		}
		seen[t.Lane][t.Order] = true
		counts[t.Lane]++
	}
	var sparse []domain.Lane
	for _, l := range domain.Lanes {
		n := counts[l]
		if len(seen[l]) != n {
			sparse = append(sparse, l)
			continue
		}
		for i := 0; i < n; i++ {
			if !seen[l][i] {
				sparse = append(sparse, l)
				break
			}
		}
	}
	return sparse
}

// WithUpdates returns a new store with the lane and order of each update
// applied. Unknown ids are ignored.
func (s TaskStore) WithUpdates(diff domain.SyncDiff) TaskStore {
	placements := domain.ApplyDiff(s.Placements(), diff)
	next := TaskStore{tasks: make(map[int64]domain.Task, len(s.tasks))}
	for id, t := range s.tasks {
		p := placements[id]
		t.Lane, t.Order = p.Lane, p.Order
		next.tasks[id] = t
	}
	return next
}

// Arrange returns the stored tasks laid out per o: each task carries the
// lane and index it has in o.
func (s TaskStore) Arrange(o domain.Ordering) []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, l := range domain.Lanes {
		for i, id := range o.Lane(l) {
			t, ok := s.tasks[id]
			if !ok {
				continue
			}
			t.Lane = l
			t.Order = i
			out = append(out, t)
		}
	}
	return out
}

func sortTasks(ts []domain.Task) {
	rank := make(map[domain.Lane]int, len(domain.Lanes))
	for i, l := range domain.Lanes {
		rank[l] = i
	}
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.Lane != b.Lane {
			return rank[a.Lane] < rank[b.Lane]
		}
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
}
