package app

import (
	"slices"
	"strconv"

	"github.com/evanschultz/dragboard/internal/domain"
)

// DragStart reports that the pointer picked up an entity.
type DragStart struct {
	DraggedID   string
	DraggedKind domain.DragKind
}

// DragOver reports the entity under the pointer while a drag is in progress. ActiveID and ActiveKind
// must name the entity recorded at drag-start. OverID is empty when nothing droppable is hovered.
type DragOver struct {
	ActiveID   string
	ActiveKind domain.DragKind
	OverID     string
	OverKind   domain.DragKind
}

// DragEnd reports the release of a drag. The dragged entity and its kind come from the drag-start
// record; ActiveID only appears in diagnostics. OverKind is optional; when empty OverID is treated as
// a column id.
type DragEnd struct {
	ActiveID string
	OverID   string
	OverKind domain.DragKind
}

// gestureConfig selects the optional gesture policies.
type gestureConfig struct {
	rollbackOnCancel  bool
	liveColumnReorder bool
}

// isSelf reports whether the hovered entity is the dragged one.
func isSelf(activeID string, activeKind domain.DragKind, overID string, overKind domain.DragKind) bool {
	if activeID != overID {
		return false
	}
	return overKind == domain.DragKindNone || overKind == activeKind
}

// startDrag records the dragged entity. Lists are never touched.
func (s State) startDrag(ev DragStart, cfg gestureConfig) reduction {
	next := s
	next.rollback = nil
	switch ev.DraggedKind {
	case domain.DragKindColumn:
		idx := domain.IndexOfColumn(s.Columns, ev.DraggedID)
		if idx < 0 {
			return reduction{next: s, skipped: errUnknownEntity}
		}
		next.Active = domain.ColumnDrag{Column: s.Columns[idx]}
	case domain.DragKindTask:
		idx := domain.IndexOfTask(s.Tasks, ev.DraggedID)
		if idx < 0 {
			return reduction{next: s, skipped: errUnknownEntity}
		}
		next.Active = domain.TaskDrag{Task: s.Tasks[idx]}
		if cfg.rollbackOnCancel {
			next.rollback = s.Tasks
		}
	default:
		return reduction{next: s, skipped: errUnknownKind}
	}
	return reduction{next: next}
}

// dragOver applies the hover policy: tasks reassign and reorder eagerly, columns wait for the drop.
// Only hovers for the entity recorded at drag-start are honoured.
func (s State) dragOver(ev DragOver, cfg gestureConfig) reduction {
	if s.Active == nil {
		return reduction{next: s, skipped: errNoActiveDrag}
	}
	if ev.ActiveID != s.Active.EntityID() || ev.ActiveKind != s.Active.Kind() {
		return reduction{next: s, skipped: errNotActiveEntity}
	}
	if ev.OverID == "" {
		return reduction{next: s, skipped: errNoDropTarget}
	}
	if isSelf(ev.ActiveID, ev.ActiveKind, ev.OverID, ev.OverKind) {
		return reduction{next: s, skipped: errSelfHover}
	}
	switch ev.ActiveKind {
	case domain.DragKindTask:
		return s.taskOver(ev)
	case domain.DragKindColumn:
		if !cfg.liveColumnReorder {
			return reduction{next: s, skipped: errColumnHoverDeferred}
		}
		return s.reorderColumnsTo(ev.ActiveID, ev.OverID, ev.OverKind)
	default:
		return reduction{next: s, skipped: errUnknownKind}
	}
}

// taskOver handles a dragged task hovering a task or a column.
func (s State) taskOver(ev DragOver) reduction {
	activeIdx := domain.IndexOfTask(s.Tasks, ev.ActiveID)
	if activeIdx < 0 {
		return reduction{next: s, skipped: errUnknownEntity}
	}
	active := s.Tasks[activeIdx]

	switch ev.OverKind {
	case domain.DragKindTask:
		overIdx := domain.IndexOfTask(s.Tasks, ev.OverID)
		if overIdx < 0 {
			return reduction{next: s, skipped: errUnknownEntity}
		}
		tasks := slices.Clone(s.Tasks)
		targetColumn := tasks[overIdx].ColumnID
		tasks[activeIdx].ColumnID = targetColumn
		next := s
		next.Tasks = domain.Move(tasks, activeIdx, overIdx)

		changes := make([]change, 0, 2)
		if active.ColumnID != targetColumn {
			changes = append(changes, reassignChange(active, targetColumn))
		}
		changes = append(changes, moveChange(domain.DragKindTask, active.ID, activeIdx, overIdx))
		return reduction{next: next, changes: changes}

	case domain.DragKindColumn:
		if domain.IndexOfColumn(s.Columns, ev.OverID) < 0 {
			return reduction{next: s, skipped: errUnknownEntity}
		}
		if active.ColumnID == ev.OverID {
			return reduction{next: s, skipped: errAlreadyInColumn}
		}
		tasks := slices.Clone(s.Tasks)
		tasks[activeIdx].ColumnID = ev.OverID
		next := s
		next.Tasks = tasks
		return reduction{next: next, changes: []change{reassignChange(active, ev.OverID)}}

	default:
		return reduction{next: s, skipped: errUnknownKind}
	}
}

// endDrag clears the indicator and, for column drags, performs the deferred reorder.
func (s State) endDrag(ev DragEnd, cfg gestureConfig) reduction {
	recorded := s.Active
	buffer := s.rollback
	next := s
	next.Active = nil
	next.rollback = nil

	if recorded == nil {
		return reduction{next: next, skipped: errNoActiveDrag}
	}
	if ev.OverID == "" {
		if _, ok := recorded.(domain.TaskDrag); ok && cfg.rollbackOnCancel {
			return next.restoreTasks(buffer, recorded.EntityID())
		}
		return reduction{next: next, skipped: errNoDropTarget}
	}
	activeID := recorded.EntityID()
	if isSelf(activeID, recorded.Kind(), ev.OverID, ev.OverKind) {
		return reduction{next: next, skipped: errSelfHover}
	}

	switch recorded.(type) {
	case domain.ColumnDrag:
		return next.reorderColumnsTo(activeID, ev.OverID, ev.OverKind)
	case domain.TaskDrag:
		// Task reassignment and ordering were committed during drag-over.
		return reduction{next: next}
	default:
		return reduction{next: next, skipped: errUnknownKind}
	}
}

// reorderColumnsTo moves the active column to the slot of the hovered column, or of the column that
// owns the hovered task.
func (s State) reorderColumnsTo(activeID, overID string, overKind domain.DragKind) reduction {
	if overKind == domain.DragKindTask {
		idx := domain.IndexOfTask(s.Tasks, overID)
		if idx < 0 {
			return reduction{next: s, skipped: errUnknownEntity}
		}
		overID = s.Tasks[idx].ColumnID
	}
	from := domain.IndexOfColumn(s.Columns, activeID)
	to := domain.IndexOfColumn(s.Columns, overID)
	if from < 0 || to < 0 {
		return reduction{next: s, skipped: errUnknownEntity}
	}
	if from == to {
		return reduction{next: s, skipped: errSelfHover}
	}
	next := s
	next.Columns = domain.Move(s.Columns, from, to)
	return reduction{next: next, changes: []change{moveChange(domain.DragKindColumn, activeID, from, to)}}
}

// restoreTasks reverts a cancelled task gesture to the order and column ownership captured at
// drag-start, provided no task was created or deleted in between. Content edited meanwhile is kept.
func (s State) restoreTasks(buffer []domain.Task, taskID string) reduction {
	if buffer == nil || !sameTaskIDs(buffer, s.Tasks) {
		return reduction{next: s, skipped: errNoDropTarget}
	}
	current := make(map[string]domain.Task, len(s.Tasks))
	for _, t := range s.Tasks {
		current[t.ID] = t
	}
	restored := make([]domain.Task, 0, len(buffer))
	for _, t := range buffer {
		task := current[t.ID]
		task.ColumnID = t.ColumnID
		restored = append(restored, task)
	}
	if slices.Equal(restored, s.Tasks) {
		return reduction{next: s, skipped: errNoDropTarget}
	}
	next := s
	next.Tasks = restored
	return reduction{next: next, changes: []change{{
		kind: domain.DragKindTask,
		id:   taskID,
		op:   domain.ChangeOperationRollback,
	}}}
}

func reassignChange(task domain.Task, toColumn string) change {
	return change{
		kind: domain.DragKindTask,
		id:   task.ID,
		op:   domain.ChangeOperationReassign,
		metadata: map[string]string{
			"from_column": task.ColumnID,
			"to_column":   toColumn,
		},
	}
}

func moveChange(kind domain.DragKind, id string, from, to int) change {
	return change{
		kind: kind,
		id:   id,
		op:   domain.ChangeOperationMove,
		metadata: map[string]string{
			"from_index": strconv.Itoa(from),
			"to_index":   strconv.Itoa(to),
		},
	}
}
