package domain

import "time"

// ChangeOperation describes one board mutation recorded in the activity ledger.
type ChangeOperation string

// ChangeOperation values used by the session activity ledger.
const (
	ChangeOperationCreate   ChangeOperation = "create"
	ChangeOperationRename   ChangeOperation = "rename"
	ChangeOperationEdit     ChangeOperation = "edit"
	ChangeOperationMove     ChangeOperation = "move"
	ChangeOperationReassign ChangeOperation = "reassign"
	ChangeOperationDelete   ChangeOperation = "delete"
	ChangeOperationRollback ChangeOperation = "rollback"
)

// ChangeEvent represents a single activity-log entry for a board entity.
type ChangeEvent struct {
	ID         int64
	Revision   uint64
	EntityKind DragKind
	EntityID   string
	Operation  ChangeOperation
	Metadata   map[string]string
	OccurredAt time.Time
}
