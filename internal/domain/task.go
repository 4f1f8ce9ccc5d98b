package domain

import "strings"

// Task is one work item. Its order among column siblings is its order in the board's flat task list.
type Task struct {
	ID       string `json:"id"`
	ColumnID string `json:"column_id"`
	Content  string `json:"content"`
}

// NewTask constructs a validated task. Content may be empty.
func NewTask(id, columnID, content string) (Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Task{}, ErrInvalidID
	}
	columnID = strings.TrimSpace(columnID)
	if columnID == "" {
		return Task{}, ErrInvalidColumnID
	}
	return Task{ID: id, ColumnID: columnID, Content: content}, nil
}

// Reassign moves the task to another column without touching its list position.
func (t *Task) Reassign(columnID string) error {
	columnID = strings.TrimSpace(columnID)
	if columnID == "" {
		return ErrInvalidColumnID
	}
	t.ColumnID = columnID
	return nil
}

// FilterByColumn returns the tasks owned by columnID in list order.
func FilterByColumn(tasks []Task, columnID string) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.ColumnID == columnID {
			out = append(out, t)
		}
	}
	return out
}
