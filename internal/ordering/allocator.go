// Package ordering computes how task positions change when a task is
// inserted into, moved between or removed from board columns.
//
// Every function here is pure: it takes the positions as they stood before
// the operation and returns a Plan. Executing a Plan atomically is the
// store's job (see tasks-service/db); a Plan cannot be split into "shift
// only" and "assign only" halves.
package ordering

import (
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
)

var ErrNegativePosition = errors.New("position must be >= 0")

// Slot is one column of one board.
type Slot struct {
	BoardID  uuid.UUID
	ColumnID string
}

func (s Slot) String() string {
	return fmt.Sprintf("%s/%s", s.BoardID, s.ColumnID)
}

// Unbounded as RangeShift.To means "no upper limit".
const Unbounded = -1

// RangeShift adds Delta to the position of every task in Slot whose
// position lies in [From, To], the acting task excluded.
type RangeShift struct {
	Slot  Slot
	From  int
	To    int
	Delta int
}

func (s RangeShift) Covers(slot Slot, pos int) bool {
	if slot != s.Slot || pos < s.From {
		return false
	}
	return s.To == Unbounded || pos <= s.To
}

// Placement is the final (slot, position) of the acting task.
type Placement struct {
	Slot     Slot
	Position int
}

// Op says what happens to the acting task itself.
type Op int

const (
	OpInsert Op = iota
	OpMove
	OpRemove
)

// Plan is one logical reorder. Placement is nil exactly when Op is
// OpRemove.
type Plan struct {
	Op        Op
	TaskID    uuid.UUID
	Shifts    []RangeShift
	Placement *Placement
}

// Clamp bounds pos to [0, count].
func Clamp(pos, count int) int {
	return max(0, min(pos, count))
}

// Insert places a new task into slot, which currently holds count tasks.
// A nil requested position appends.
func Insert(taskID uuid.UUID, slot Slot, count int, requested *int) (Plan, error) {
	pos := count
	if requested != nil {
		if *requested < 0 {
			return Plan{}, ErrNegativePosition
		}
		pos = Clamp(*requested, count)
	}

	plan := Plan{Op: OpInsert, TaskID: taskID, Placement: &Placement{Slot: slot, Position: pos}}
	if pos < count {
		plan.Shifts = []RangeShift{{Slot: slot, From: pos, To: Unbounded, Delta: 1}}
	}
	return plan, nil
}

// Move relocates the task at (from, fromPos) to (to, toPos). destCount is
// the number of tasks in the destination slot not counting the mover, so
// for a move within one column it is that column's size minus one.
//
// Both range shifts are expressed against the positions before the move.
// Within one column they collapse into a single range between the old and
// new position, which keeps "move 2 to 2" a no-op.
func Move(taskID uuid.UUID, from Slot, fromPos int, to Slot, toPos, destCount int) (Plan, error) {
	if toPos < 0 {
		return Plan{}, ErrNegativePosition
	}
	dst := Clamp(toPos, destCount)
	plan := Plan{Op: OpMove, TaskID: taskID, Placement: &Placement{Slot: to, Position: dst}}

	if from == to {
		switch {
		case dst < fromPos:
			plan.Shifts = []RangeShift{{Slot: from, From: dst, To: fromPos - 1, Delta: 1}}
		case dst > fromPos:
			plan.Shifts = []RangeShift{{Slot: from, From: fromPos + 1, To: dst, Delta: -1}}
		}
		return plan, nil
	}

	plan.Shifts = []RangeShift{
		{Slot: from, From: fromPos + 1, To: Unbounded, Delta: -1},
		{Slot: to, From: dst, To: Unbounded, Delta: 1},
	}
	return plan, nil
}

// Remove takes the task at (from, fromPos) out of the ordering.
func Remove(taskID uuid.UUID, from Slot, fromPos int) Plan {
	return Plan{
		Op:     OpRemove,
		TaskID: taskID,
		Shifts: []RangeShift{{Slot: from, From: fromPos + 1, To: Unbounded, Delta: -1}},
	}
}

// Noop reports whether executing the plan would change nothing for a task
// already at its placement.
func (p Plan) Noop(current Placement) bool {
	return len(p.Shifts) == 0 && p.Placement != nil && *p.Placement == current
}

// Entry is one task's place in the in-memory view used by Apply.
type Entry struct {
	TaskID   uuid.UUID
	Slot     Slot
	Position int
}

// Apply executes plan against entries in memory and returns the new view,
// sorted by slot then position. Shifts are evaluated against the input
// positions, never against partially updated ones.
func Apply(entries []Entry, plan Plan) []Entry {
	out := make([]Entry, 0, len(entries)+1)
	for _, e := range entries {
		if e.TaskID == plan.TaskID {
			continue
		}
		next := e
		for _, s := range plan.Shifts {
			if s.Covers(e.Slot, e.Position) {
				next.Position += s.Delta
			}
		}
		out = append(out, next)
	}
	if plan.Placement != nil {
		out = append(out, Entry{TaskID: plan.TaskID, Slot: plan.Placement.Slot, Position: plan.Placement.Position})
	}
	slices.SortFunc(out, func(a, b Entry) int {
		if c := compareSlot(a.Slot, b.Slot); c != 0 {
			return c
		}
		return a.Position - b.Position
	})
	return out
}

func compareSlot(a, b Slot) int {
	if c := slices.Compare(a.BoardID[:], b.BoardID[:]); c != 0 {
		return c
	}
	switch {
	case a.ColumnID < b.ColumnID:
		return -1
	case a.ColumnID > b.ColumnID:
		return 1
	}
	return 0
}
