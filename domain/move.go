package domain

import (
	"errors"
	"fmt"
)

var ErrInvalidGesture = errors.New("invalid gesture")

// Gesture moves one task from a lane position to another.
type Gesture struct {
	SourceLane       Lane `json:"sourceLane"`
	SourceIndex      int  `json:"sourceIndex"`
	DestinationLane  Lane `json:"destinationLane"`
	DestinationIndex int  `json:"destinationIndex"`
}

// Degenerate reports a drop onto the position the task came from.
func (g Gesture) Degenerate() bool {
	return g.SourceLane == g.DestinationLane && g.SourceIndex == g.DestinationIndex
}

// Reconcile computes the ordering produced by g. The destination index is the
// moved task's final position: for a same-lane move it addresses the lane
// after removal. Out of range destinations are clamped, so an empty lane
// always receives index 0 and a drop past the end appends. A gesture that
// leaves the task where it was returns changed=false and o itself.
func Reconcile(o Ordering, g Gesture) (next Ordering, changed bool, err error) {
	if !g.SourceLane.Valid() {
		return o, false, fmt.Errorf("%w: source lane %q", ErrInvalidGesture, g.SourceLane)
	}
	if !g.DestinationLane.Valid() {
		return o, false, fmt.Errorf("%w: destination lane %q", ErrInvalidGesture, g.DestinationLane)
	}
	src := o.lanes[g.SourceLane]
	if g.SourceIndex < 0 || g.SourceIndex >= len(src) {
		return o, false, fmt.Errorf("%w: source index %d out of range for %s (len %d)", ErrInvalidGesture, g.SourceIndex, g.SourceLane, len(src))
	}
	if g.Degenerate() {
		return o, false, nil
	}

	next = o.clone()
	src = next.lanes[g.SourceLane]
	id := src[g.SourceIndex]
	next.lanes[g.SourceLane] = append(src[:g.SourceIndex], src[g.SourceIndex+1:]...)

	dst := next.lanes[g.DestinationLane]
	idx := clamp(g.DestinationIndex, 0, len(dst))
	if g.SourceLane == g.DestinationLane && idx == g.SourceIndex {
		return o, false, nil
	}
	dst = append(dst, 0)
	copy(dst[idx+1:], dst[idx:])
	dst[idx] = id
	next.lanes[g.DestinationLane] = dst
	return next, true, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Hover describes pointer movement over a hovered item during a drag.
type Hover struct {
	PreviousY  float64 `json:"previousY"`
	PointerY   float64 `json:"pointerY"`
	ItemTop    float64 `json:"itemTop"`
	ItemHeight float64 `json:"itemHeight"`
}

// Crossed reports whether the pointer passed the hovered item's midpoint in
// the direction of travel. Hover moves are only committed once it has.
func (h Hover) Crossed() bool {
	mid := h.ItemTop + h.ItemHeight/2
	switch {
	case h.PointerY > h.PreviousY:
		return h.PointerY > mid
	case h.PointerY < h.PreviousY:
		return h.PointerY < mid
	default:
		return false
	}
}
