// Package script replays TOML gesture scripts against a board service.
package script

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/evanschultz/dragboard/internal/app"
	"github.com/evanschultz/dragboard/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
)

// ErrInvalidScript reports a script that cannot be replayed.
var ErrInvalidScript = errors.New("invalid script")

// Action names one step kind.
type Action string

// Supported step actions.
const (
	ActionDragStart      Action = "drag_start"
	ActionDragOver       Action = "drag_over"
	ActionDragEnd        Action = "drag_end"
	ActionCreateColumn   Action = "create_column"
	ActionDeleteColumn   Action = "delete_column"
	ActionRenameColumn   Action = "rename_column"
	ActionReorderColumns Action = "reorder_columns"
	ActionCreateTask     Action = "create_task"
	ActionDeleteTask     Action = "delete_task"
	ActionEditTask       Action = "edit_task"
	ActionReorderTasks   Action = "reorder_tasks"
)

// Script is a board definition followed by the steps to replay on it.
type Script struct {
	Name    string       `toml:"name"`
	Columns []ColumnDef  `toml:"columns"`
	Tasks   []TaskDef    `toml:"tasks"`
	Steps   []Step       `toml:"steps"`
	Expect  *Expectation `toml:"expect"`
}

// ColumnDef declares one starting column.
type ColumnDef struct {
	ID    string `toml:"id"`
	Title string `toml:"title"`
}

// TaskDef declares one starting task.
type TaskDef struct {
	ID      string `toml:"id"`
	Column  string `toml:"column"`
	Content string `toml:"content"`
}

// Step is one replayed event or mutation. Which fields apply depends on Action.
type Step struct {
	Action     Action `toml:"action"`
	Active     string `toml:"active"`
	ActiveKind string `toml:"active_kind"`
	Over       string `toml:"over"`
	OverKind   string `toml:"over_kind"`
	Column     string `toml:"column"`
	Title      string `toml:"title"`
	Content    string `toml:"content"`
}

// Expectation is checked against the final board.
type Expectation struct {
	Columns []string            `toml:"columns"`
	Tasks   map[string][]string `toml:"tasks"`
	// Active is the id of the entity expected to be mid-drag; "" expects no gesture.
	Active *string `toml:"active"`
}

// Parse decodes and validates a script document.
func Parse(content []byte) (Script, error) {
	var s Script
	if err := toml.Unmarshal(content, &s); err != nil {
		return Script{}, fmt.Errorf("%w: decode toml: %v", ErrInvalidScript, err)
	}
	if err := s.Validate(); err != nil {
		return Script{}, err
	}
	return s, nil
}

// Load reads and parses the script at path.
func Load(path string) (Script, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(content)
	if err != nil {
		return Script{}, fmt.Errorf("%s: %w", path, err)
	}
	if strings.TrimSpace(s.Name) == "" {
		s.Name = path
	}
	return s, nil
}

// HasBoard reports whether the script declares its own starting board.
func (s Script) HasBoard() bool {
	return len(s.Columns) > 0 || len(s.Tasks) > 0
}

// Validate checks that every step names a known action with the fields it needs.
func (s Script) Validate() error {
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("%w: steps[%d]: %v", ErrInvalidScript, i, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	require := func(name, value string) error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s requires %s", st.Action, name)
		}
		return nil
	}
	switch st.Action {
	case ActionDragStart:
		return errors.Join(require("active", st.Active), require("active_kind", st.ActiveKind))
	case ActionDragOver:
		return require("active", st.Active)
	case ActionDragEnd, ActionCreateColumn:
		return nil
	case ActionDeleteColumn:
		return require("column", st.Column)
	case ActionRenameColumn:
		return errors.Join(require("column", st.Column), require("title", st.Title))
	case ActionReorderColumns, ActionReorderTasks:
		return errors.Join(require("active", st.Active), require("over", st.Over))
	case ActionCreateTask:
		return require("column", st.Column)
	case ActionDeleteTask, ActionEditTask:
		return require("active", st.Active)
	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}
}

// StepResult records the outcome of one step.
type StepResult struct {
	Index    int    `json:"index"`
	Action   Action `json:"action"`
	Revision uint64 `json:"revision"`
	Changed  bool   `json:"changed"`
	Err      string `json:"error,omitempty"`
}

// Result is the outcome of one replay.
type Result struct {
	Name       string          `json:"name"`
	Steps      []StepResult    `json:"steps"`
	Board      app.BoardExport `json:"board"`
	Mismatches []string        `json:"mismatches,omitempty"`
	final      app.Snapshot
}

// Passed reports whether every step succeeded and the expectation held.
func (r Result) Passed() bool {
	if len(r.Mismatches) > 0 {
		return false
	}
	for _, st := range r.Steps {
		if st.Err != "" {
			return false
		}
	}
	return true
}

// Final returns the board after the last step.
func (r Result) Final() app.Snapshot {
	return r.final
}

// Run replays s against svc. A script that declares a board replaces the service's board first.
// Failing steps are recorded and do not stop the replay.
func Run(ctx context.Context, svc *app.Service, s Script) (Result, error) {
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	if s.HasBoard() {
		if err := svc.ImportBoard(ctx, s.board()); err != nil {
			return Result{}, fmt.Errorf("%w: board: %v", ErrInvalidScript, err)
		}
	}

	res := Result{Name: s.Name, Steps: make([]StepResult, 0, len(s.Steps))}
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		before := svc.Snapshot().Revision
		err := apply(ctx, svc, step)
		after := svc.Snapshot().Revision
		sr := StepResult{Index: i, Action: step.Action, Revision: after, Changed: after != before}
		if err != nil {
			sr.Err = err.Error()
		}
		res.Steps = append(res.Steps, sr)
	}

	res.final = svc.Snapshot()
	res.Board = svc.ExportBoard()
	if s.Expect != nil {
		res.Mismatches = s.Expect.check(res.final)
	}
	return res, nil
}

func (s Script) board() app.BoardExport {
	out := app.BoardExport{
		Columns: make([]app.ExportColumn, 0, len(s.Columns)),
		Tasks:   make([]app.ExportTask, 0, len(s.Tasks)),
	}
	for i, c := range s.Columns {
		out.Columns = append(out.Columns, app.ExportColumn{ID: c.ID, Title: c.Title, Position: i})
	}
	positions := map[string]int{}
	for _, t := range s.Tasks {
		out.Tasks = append(out.Tasks, app.ExportTask{
			ID:       t.ID,
			ColumnID: t.Column,
			Content:  t.Content,
			Position: positions[t.Column],
		})
		positions[t.Column]++
	}
	return out
}

func apply(ctx context.Context, svc *app.Service, st Step) error {
	switch st.Action {
	case ActionDragStart:
		svc.DragStart(ctx, app.DragStart{DraggedID: st.Active, DraggedKind: domain.ParseDragKind(st.ActiveKind)})
	case ActionDragOver:
		svc.DragOver(ctx, app.DragOver{
			ActiveID:   st.Active,
			ActiveKind: domain.ParseDragKind(st.ActiveKind),
			OverID:     st.Over,
			OverKind:   domain.ParseDragKind(st.OverKind),
		})
	case ActionDragEnd:
		svc.DragEnd(ctx, app.DragEnd{
			ActiveID: st.Active,
			OverID:   st.Over,
			OverKind: domain.ParseDragKind(st.OverKind),
		})
	case ActionCreateColumn:
		svc.CreateColumn(ctx)
	case ActionDeleteColumn:
		return svc.DeleteColumn(ctx, st.Column)
	case ActionRenameColumn:
		return svc.RenameColumn(ctx, st.Column, st.Title)
	case ActionReorderColumns:
		return svc.ReorderColumns(ctx, st.Active, st.Over)
	case ActionCreateTask:
		task, err := svc.CreateTask(ctx, st.Column)
		if err != nil || st.Content == "" {
			return err
		}
		return svc.EditTaskContent(ctx, task.ID, st.Content)
	case ActionDeleteTask:
		return svc.DeleteTask(ctx, st.Active)
	case ActionEditTask:
		return svc.EditTaskContent(ctx, st.Active, st.Content)
	case ActionReorderTasks:
		return svc.ReorderTasks(ctx, st.Active, st.Over)
	}
	return nil
}

func (e Expectation) check(snap app.Snapshot) []string {
	var out []string
	if e.Columns != nil {
		got := make([]string, 0, len(snap.Columns))
		for _, c := range snap.Columns {
			got = append(got, c.ID)
		}
		if !slices.Equal(got, e.Columns) {
			out = append(out, fmt.Sprintf("columns = %v, want %v", got, e.Columns))
		}
	}
	columnIDs := make([]string, 0, len(e.Tasks))
	for id := range e.Tasks {
		columnIDs = append(columnIDs, id)
	}
	slices.Sort(columnIDs)
	for _, columnID := range columnIDs {
		want := e.Tasks[columnID]
		got := []string{}
		for _, t := range snap.ColumnTasks(columnID) {
			got = append(got, t.ID)
		}
		if !slices.Equal(got, want) {
			out = append(out, fmt.Sprintf("column %s tasks = %v, want %v", columnID, got, want))
		}
	}
	if e.Active != nil {
		got := ""
		if snap.Active != nil {
			got = snap.Active.EntityID()
		}
		if got != *e.Active {
			out = append(out, fmt.Sprintf("active = %q, want %q", got, *e.Active))
		}
	}
	return out
}
