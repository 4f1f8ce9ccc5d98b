package app

import (
	"fmt"
	"slices"

	"github.com/evanschultz/dragboard/internal/domain"
)

// State is the full board value: both ordered lists and the active-drag indicator.
// A published State is never modified; every mutation derives a new one.
type State struct {
	Columns []domain.Column
	Tasks   []domain.Task
	Active  domain.Draggable

	// rollback holds the task list captured at task drag-start when cancel rollback is enabled.
	rollback []domain.Task
}

// Snapshot is a read-only copy of the board handed to renderers.
type Snapshot struct {
	Revision uint64
	Columns  []domain.Column
	Tasks    []domain.Task
	Active   domain.Draggable
}

// ColumnTasks returns the tasks owned by columnID in display order.
func (s Snapshot) ColumnTasks(columnID string) []domain.Task {
	return domain.FilterByColumn(s.Tasks, columnID)
}

// Column returns the column with id.
func (s Snapshot) Column(id string) (domain.Column, bool) {
	idx := domain.IndexOfColumn(s.Columns, id)
	if idx < 0 {
		return domain.Column{}, false
	}
	return s.Columns[idx], true
}

// Task returns the task with id.
func (s Snapshot) Task(id string) (domain.Task, bool) {
	idx := domain.IndexOfTask(s.Tasks, id)
	if idx < 0 {
		return domain.Task{}, false
	}
	return s.Tasks[idx], true
}

// Dragging reports whether a gesture is in progress.
func (s Snapshot) Dragging() bool {
	return s.Active != nil
}

// change is one ledger-worthy effect of a reduction.
type change struct {
	kind     domain.DragKind
	id       string
	op       domain.ChangeOperation
	metadata map[string]string
}

// reduction is the outcome of applying one event to a State.
type reduction struct {
	next    State
	changes []change
	// skipped explains why the event left the lists untouched; nil when it mutated them.
	skipped error
}

// snapshot copies s for external readers.
func (s State) snapshot(revision uint64) Snapshot {
	return Snapshot{
		Revision: revision,
		Columns:  slices.Clone(s.Columns),
		Tasks:    slices.Clone(s.Tasks),
		Active:   s.Active,
	}
}

// checkInvariants validates id uniqueness and, at rest with strict references, task ownership.
func (s State) checkInvariants(strictColumnRefs bool) error {
	columnIDs := make(map[string]struct{}, len(s.Columns))
	for _, c := range s.Columns {
		if _, ok := columnIDs[c.ID]; ok {
			return fmt.Errorf("%w: duplicate column id %q", ErrInvariantViolation, c.ID)
		}
		columnIDs[c.ID] = struct{}{}
	}
	taskIDs := make(map[string]struct{}, len(s.Tasks))
	for _, t := range s.Tasks {
		if _, ok := taskIDs[t.ID]; ok {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvariantViolation, t.ID)
		}
		taskIDs[t.ID] = struct{}{}
		if !strictColumnRefs || s.Active != nil {
			continue
		}
		if _, ok := columnIDs[t.ColumnID]; !ok {
			return fmt.Errorf("%w: task %q references missing column %q", ErrInvariantViolation, t.ID, t.ColumnID)
		}
	}
	return nil
}

// validateBoard checks caller-supplied lists before they replace the state.
func validateBoard(columns []domain.Column, tasks []domain.Task) error {
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, err := domain.NewColumn(c.ID, c.Title); err != nil {
			return fmt.Errorf("column %q: %w", c.ID, err)
		}
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("column %q: %w", c.ID, domain.ErrDuplicateID)
		}
		seen[c.ID] = struct{}{}
	}
	seenTasks := make(map[string]struct{}, len(tasks))
	for _, t := range tasks {
		if _, err := domain.NewTask(t.ID, t.ColumnID, t.Content); err != nil {
			return fmt.Errorf("task %q: %w", t.ID, err)
		}
		if _, ok := seenTasks[t.ID]; ok {
			return fmt.Errorf("task %q: %w", t.ID, domain.ErrDuplicateID)
		}
		seenTasks[t.ID] = struct{}{}
	}
	return nil
}

// sameTaskIDs reports whether a and b hold the same set of task ids.
func sameTaskIDs(a, b []domain.Task) bool {
	if len(a) != len(b) {
		return false
	}
	ids := make(map[string]struct{}, len(a))
	for _, t := range a {
		ids[t.ID] = struct{}{}
	}
	for _, t := range b {
		if _, ok := ids[t.ID]; !ok {
			return false
		}
	}
	return true
}
