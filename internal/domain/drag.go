package domain

import "strings"

// DragKind tags the entity type carried by a drag source.
type DragKind string

// DragKind values. DragKindNone marks an absent or unknown tag.
const (
	DragKindNone   DragKind = ""
	DragKindColumn DragKind = "column"
	DragKindTask   DragKind = "task"
)

// ParseDragKind normalizes a textual kind tag. Unknown tags map to DragKindNone.
func ParseDragKind(raw string) DragKind {
	switch DragKind(strings.ToLower(strings.TrimSpace(raw))) {
	case DragKindColumn:
		return DragKindColumn
	case DragKindTask:
		return DragKindTask
	default:
		return DragKindNone
	}
}

// Draggable is the snapshot of the entity currently being dragged. A nil Draggable means no drag
// is in progress. The only implementations are ColumnDrag and TaskDrag.
type Draggable interface {
	Kind() DragKind
	EntityID() string
	isDraggable()
}

// ColumnDrag is the active-drag variant for a column.
type ColumnDrag struct {
	Column Column
}

// TaskDrag is the active-drag variant for a task.
type TaskDrag struct {
	Task Task
}

func (ColumnDrag) Kind() DragKind     { return DragKindColumn }
func (d ColumnDrag) EntityID() string { return d.Column.ID }
func (ColumnDrag) isDraggable()       {}

func (TaskDrag) Kind() DragKind     { return DragKindTask }
func (d TaskDrag) EntityID() string { return d.Task.ID }
func (TaskDrag) isDraggable()       {}

// DragKindOf reports the kind of d, or DragKindNone when nothing is dragged.
func DragKindOf(d Draggable) DragKind {
	if d == nil {
		return DragKindNone
	}
	return d.Kind()
}
