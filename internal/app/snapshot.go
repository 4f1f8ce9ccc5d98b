package app

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/dragboard/internal/domain"
)

// BoardExportVersion tags the exported board format.
const BoardExportVersion = "dragboard.board.v1"

// BoardExport is the portable form of a board. Order is carried by explicit positions so the
// document survives reordering by external tools.
type BoardExport struct {
	Version    string         `json:"version"`
	Revision   uint64         `json:"revision"`
	ExportedAt time.Time      `json:"exported_at"`
	Columns    []ExportColumn `json:"columns"`
	Tasks      []ExportTask   `json:"tasks"`
	Active     *ExportDrag    `json:"active,omitempty"`
}

// ExportColumn is one exported column.
type ExportColumn struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Position int    `json:"position"`
}

// ExportTask is one exported task; Position is its index within its column.
type ExportTask struct {
	ID       string `json:"id"`
	ColumnID string `json:"column_id"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

// ExportDrag describes the gesture in progress at export time.
type ExportDrag struct {
	Kind domain.DragKind `json:"kind"`
	ID   string          `json:"id"`
}

// Export converts the snapshot into its portable form.
func (s Snapshot) Export(exportedAt time.Time) BoardExport {
	out := BoardExport{
		Version:    BoardExportVersion,
		Revision:   s.Revision,
		ExportedAt: exportedAt.UTC(),
		Columns:    make([]ExportColumn, 0, len(s.Columns)),
		Tasks:      make([]ExportTask, 0, len(s.Tasks)),
	}
	for i, c := range s.Columns {
		out.Columns = append(out.Columns, ExportColumn{ID: c.ID, Title: c.Title, Position: i})
	}
	positions := map[string]int{}
	for _, t := range s.Tasks {
		out.Tasks = append(out.Tasks, ExportTask{
			ID:       t.ID,
			ColumnID: t.ColumnID,
			Content:  t.Content,
			Position: positions[t.ColumnID],
		})
		positions[t.ColumnID]++
	}
	if s.Active != nil {
		out.Active = &ExportDrag{Kind: s.Active.Kind(), ID: s.Active.EntityID()}
	}
	return out
}

// ExportBoard exports the latest published board.
func (s *Service) ExportBoard() BoardExport {
	return s.Snapshot().Export(s.clock())
}

// ImportBoard validates b and replaces the board with it. Any gesture in progress is dropped.
func (s *Service) ImportBoard(ctx context.Context, b BoardExport) error {
	if err := b.Validate(); err != nil {
		return err
	}
	b.sort()

	columns := make([]domain.Column, 0, len(b.Columns))
	for _, c := range b.Columns {
		column, err := domain.NewColumn(c.ID, c.Title)
		if err != nil {
			return fmt.Errorf("column %q: %w", c.ID, err)
		}
		columns = append(columns, column)
	}
	tasks := make([]domain.Task, 0, len(b.Tasks))
	for _, t := range b.Tasks {
		task, err := domain.NewTask(t.ID, t.ColumnID, t.Content)
		if err != nil {
			return fmt.Errorf("task %q: %w", t.ID, err)
		}
		tasks = append(tasks, task)
	}
	return s.Reset(ctx, columns, tasks)
}

// Validate checks version, ids and positions.
func (b *BoardExport) Validate() error {
	if b.Version != "" && b.Version != BoardExportVersion {
		return fmt.Errorf("unsupported board version: %q", b.Version)
	}

	columnIDs := map[string]struct{}{}
	for i, c := range b.Columns {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("columns[%d].id is required", i)
		}
		if c.Position < 0 {
			return fmt.Errorf("columns[%d].position must be >= 0", i)
		}
		if _, exists := columnIDs[c.ID]; exists {
			return fmt.Errorf("duplicate column id %q: %w", c.ID, domain.ErrDuplicateID)
		}
		columnIDs[c.ID] = struct{}{}
	}

	taskIDs := map[string]struct{}{}
	for i, t := range b.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("tasks[%d].id is required", i)
		}
		if strings.TrimSpace(t.ColumnID) == "" {
			return fmt.Errorf("tasks[%d].column_id is required", i)
		}
		if t.Position < 0 {
			return fmt.Errorf("tasks[%d].position must be >= 0", i)
		}
		if _, exists := taskIDs[t.ID]; exists {
			return fmt.Errorf("duplicate task id %q: %w", t.ID, domain.ErrDuplicateID)
		}
		taskIDs[t.ID] = struct{}{}
	}
	return nil
}

// sort orders columns by position and tasks by column position, then position within the column.
// Tasks of unknown columns sort last, grouped by first appearance.
func (b *BoardExport) sort() {
	sort.SliceStable(b.Columns, func(i, j int) bool {
		return b.Columns[i].Position < b.Columns[j].Position
	})
	rank := make(map[string]int, len(b.Columns))
	for i, c := range b.Columns {
		rank[c.ID] = i
	}
	for _, t := range b.Tasks {
		if _, ok := rank[t.ColumnID]; !ok {
			rank[t.ColumnID] = len(rank)
		}
	}
	sort.SliceStable(b.Tasks, func(i, j int) bool {
		a, c := b.Tasks[i], b.Tasks[j]
		if ra, rc := rank[a.ColumnID], rank[c.ColumnID]; ra != rc {
			return ra < rc
		}
		return a.Position < c.Position
	})
}
