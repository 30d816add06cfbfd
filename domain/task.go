package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Lane is a named partition of the board.
type Lane string

const (
	LaneTodo       Lane = "todo"
	LaneInProgress Lane = "inprogress"
	LaneCompleted  Lane = "completed"
)

// Lanes lists the board lanes in display order.
var Lanes = [...]Lane{LaneTodo, LaneInProgress, LaneCompleted}

var ErrUnknownLane = errors.New("unknown lane")

// Valid reports whether l is one of the board lanes.
func (l Lane) Valid() bool {
	switch l {
	case LaneTodo, LaneInProgress, LaneCompleted:
		return true
	}
	return false
}

// ParseLane converts a status string into a Lane.
func ParseLane(s string) (Lane, error) {
	l := Lane(strings.ToLower(strings.TrimSpace(s)))
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownLane, s)
	}
	return l, nil
}

// Priority is an optional task priority. The zero value means none.
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Task is a single board item as returned by the task API.
type Task struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	Lane        Lane     `json:"status"`
	Priority    Priority `json:"priority,omitempty"`
	DueDate     *Date    `json:"due_date"`
	CategoryID  *int64   `json:"category_id"`
	Order       int      `json:"order"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

const dateLayout = time.DateOnly

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns midnight UTC of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }

func (d Date) After(o Date) bool { return d.Time().After(o.Time()) }

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
