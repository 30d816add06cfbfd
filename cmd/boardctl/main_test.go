package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"prism-board/domain"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

type taskAPI struct {
	mu      sync.Mutex
	tasks   map[int64]domain.Task
	failPut bool
	puts    int
}

func newTaskAPI(t *testing.T, tasks ...domain.Task) (*taskAPI, string) {
	t.Helper()
	api := &taskAPI{tasks: map[int64]domain.Task{}}
	for _, task := range tasks {
		api.tasks[task.ID] = task
	}
	srv := httptest.NewServer(http.HandlerFunc(api.serve))
	t.Cleanup(srv.Close)
	return api, srv.URL
}

func (a *taskAPI) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer a.b.c" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/tasks":
		out := make([]domain.Task, 0, len(a.tasks))
		for _, t := range a.tasks {
			out = append(out, t)
		}
		data, _ := sonic.Marshal(out)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/tasks/"):
		a.puts++
		if a.failPut {
			http.Error(w, "nope", http.StatusInternalServerError)
			return
		}
		id, _ := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/tasks/"), 10, 64)
		var body struct {
			Status *domain.Lane `json:"status"`
			Order  *int         `json:"order"`
		}
		raw, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(raw, &body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		task := a.tasks[id]
		if body.Status != nil {
			task.Lane = *body.Status
		}
		if body.Order != nil {
			task.Order = *body.Order
		}
		a.tasks[id] = task
		w.WriteHeader(http.StatusOK)
	default:
		http.NotFound(w, r)
	}
}

func (a *taskAPI) ordering() domain.Ordering {
	a.mu.Lock()
	defer a.mu.Unlock()
	tasks := make([]domain.Task, 0, len(a.tasks))
	for _, t := range a.tasks {
		tasks = append(tasks, t)
	}
	return domain.NewOrdering(tasks)
}

func seed() []domain.Task {
	return []domain.Task{
		{ID: 1, Title: "Write code", Lane: domain.LaneTodo, Order: 0, Priority: domain.PriorityHigh},
		{ID: 2, Title: "Review", Lane: domain.LaneTodo, Order: 1},
		{ID: 3, Title: "Deploy", Lane: domain.LaneInProgress, Order: 0},
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	want := map[string]bool{"show": false, "move": false, "summary": false, "token": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestShowPrintsLanes(t *testing.T) {
	_, url := newTaskAPI(t, seed()...)

	out, err := executeCommand(rootCmd, "show", "--api", url, "--token", "a.b.c", "--json=false")
	if err != nil {
		t.Fatalf("show: %v\n%s", err, out)
	}
	for _, want := range []string{"TO DO (2)", "IN PROGRESS (1)", "COMPLETED (0)", "Write code (high)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestMovePersistsAcrossLanes(t *testing.T) {
	api, url := newTaskAPI(t, seed()...)

	out, err := executeCommand(rootCmd, "move", "1", "inprogress", "0", "--api", url, "--token", "a.b.c", "--json=false")
	if err != nil {
		t.Fatalf("move: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Task moved successfully") {
		t.Fatalf("unexpected output: %s", out)
	}
	o := api.ordering()
	if got := o.Lane(domain.LaneInProgress); len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("unexpected inprogress lane %v", got)
	}
	if got := o.Lane(domain.LaneTodo); len(got) != 1 || got[0] != 2 {
		t.Fatalf("unexpected todo lane %v", got)
	}
}

func TestMoveFailureRollsBack(t *testing.T) {
	api, url := newTaskAPI(t, seed()...)
	api.failPut = true

	_, err := executeCommand(rootCmd, "move", "2", "todo", "0", "--api", url, "--token", "a.b.c", "--json=false")
	if !errors.Is(err, errMoveFailed) {
		t.Fatalf("expected move failure, got %v", err)
	}
	if got := api.ordering().Lane(domain.LaneTodo); got[0] != 1 || got[1] != 2 {
		t.Fatalf("backend must be unchanged, got %v", got)
	}
}

func TestMoveRejectsBadArgs(t *testing.T) {
	_, url := newTaskAPI(t, seed()...)

	if _, err := executeCommand(rootCmd, "move", "1", "archive", "0", "--api", url, "--token", "a.b.c"); !errors.Is(err, domain.ErrUnknownLane) {
		t.Fatalf("expected unknown lane error, got %v", err)
	}
	if _, err := executeCommand(rootCmd, "move", "99", "todo", "0", "--api", url, "--token", "a.b.c"); err == nil {
		t.Fatalf("expected missing task error")
	}
}

func TestSummaryJSON(t *testing.T) {
	tasks := seed()
	due, _ := domain.ParseDate("2024-05-02")
	tasks[1].DueDate = &due
	_, url := newTaskAPI(t, tasks...)

	out, err := executeCommand(rootCmd, "summary", "--today", "2024-05-01", "--json", "--api", url, "--token", "a.b.c")
	if err != nil {
		t.Fatalf("summary: %v\n%s", err, out)
	}
	var resp struct {
		Today   string `json:"today"`
		Buckets struct {
			Upcoming []domain.Task `json:"upcoming"`
		} `json:"buckets"`
		Stats struct {
			Total int `json:"total"`
		} `json:"stats"`
	}
	if err := sonic.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if resp.Today != "2024-05-01" || len(resp.Buckets.Upcoming) != 1 || resp.Stats.Total != 3 {
		t.Fatalf("unexpected summary: %+v", resp)
	}
}
