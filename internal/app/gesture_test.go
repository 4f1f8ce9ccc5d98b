package app

import (
	"context"
	"fmt"
	"testing"

	"github.com/evanschultz/dragboard/internal/domain"
	"pgregory.net/rapid"
)

func scenarioService(t *testing.T, cfg ServiceConfig, opts ...Option) *Service {
	t.Helper()
	svc := newTestService(t, cfg, opts...)
	cols := []domain.Column{
		{ID: "Todo", Title: "Todo"},
		{ID: "Doing", Title: "Doing"},
		{ID: "Done", Title: "Done"},
	}
	tasks := []domain.Task{
		{ID: "1", ColumnID: "Todo", Content: "one"},
		{ID: "2", ColumnID: "Doing", Content: "two"},
	}
	if err := svc.Reset(context.Background(), cols, tasks); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	return svc
}

func TestColumnDragReordersOnlyAtDrop(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})

	snap := svc.DragStart(ctx, DragStart{DraggedID: "Todo", DraggedKind: domain.DragKindColumn})
	drag, ok := snap.Active.(domain.ColumnDrag)
	if !ok || drag.Column.Title != "Todo" {
		t.Fatalf("expected column drag snapshot, got %#v", snap.Active)
	}

	snap = svc.DragOver(ctx, DragOver{ActiveID: "Todo", ActiveKind: domain.DragKindColumn, OverID: "Done", OverKind: domain.DragKindColumn})
	if got := fmt.Sprint(columnIDs(snap.Columns)); got != "[Todo Doing Done]" {
		t.Fatalf("column hover must not reorder, got %s", got)
	}

	snap = svc.DragEnd(ctx, DragEnd{ActiveID: "Todo", OverID: "Done"})
	if got := fmt.Sprint(columnIDs(snap.Columns)); got != "[Doing Done Todo]" {
		t.Fatalf("unexpected column order %s", got)
	}
	if snap.Active != nil {
		t.Fatalf("expected active drag cleared, got %#v", snap.Active)
	}
	if got := fmt.Sprint(taskIDs(snap.Tasks)); got != "[1 2]" {
		t.Fatalf("tasks changed: %s", got)
	}
	if one, _ := snap.Task("1"); one.ColumnID != "Todo" {
		t.Fatalf("task reassigned by column drag: %#v", one)
	}
}

func TestTaskDragReassignsDuringHover(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})

	svc.DragStart(ctx, DragStart{DraggedID: "1", DraggedKind: domain.DragKindTask})
	if _, ok := svc.ActiveDrag().(domain.TaskDrag); !ok {
		t.Fatalf("expected task drag, got %#v", svc.ActiveDrag())
	}

	snap := svc.DragOver(ctx, DragOver{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "2", OverKind: domain.DragKindTask})
	one, _ := snap.Task("1")
	if one.ColumnID != "Doing" {
		t.Fatalf("expected task 1 in Doing, got %q", one.ColumnID)
	}
	if got := fmt.Sprint(taskIDs(snap.Tasks)); got != "[2 1]" {
		t.Fatalf("expected task 1 at task 2's prior index, got %s", got)
	}

	afterOver := snap
	snap = svc.DragEnd(ctx, DragEnd{ActiveID: "1", OverID: "2"})
	if snap.Active != nil {
		t.Fatal("expected active drag cleared")
	}
	if fmt.Sprint(snap.Tasks) != fmt.Sprint(afterOver.Tasks) || fmt.Sprint(snap.Columns) != fmt.Sprint(afterOver.Columns) {
		t.Fatalf("drag end must not reorder tasks again: %v -> %v", afterOver.Tasks, snap.Tasks)
	}
}

func TestTaskOverColumnReassignsInPlace(t *testing.T) {
	ctx := context.Background()
	svc := newSampleService(t, ServiceConfig{})
	before := taskIDs(svc.Snapshot().Tasks)

	svc.DragStart(ctx, DragStart{DraggedID: "8", DraggedKind: domain.DragKindTask})
	snap := svc.DragOver(ctx, DragOver{ActiveID: "8", ActiveKind: domain.DragKindTask, OverID: "done", OverKind: domain.DragKindColumn})

	task, _ := snap.Task("8")
	if task.ColumnID != "done" {
		t.Fatalf("expected reassignment to done, got %q", task.ColumnID)
	}
	if fmt.Sprint(taskIDs(snap.Tasks)) != fmt.Sprint(before) {
		t.Fatalf("task over column must keep list position: %v -> %v", before, taskIDs(snap.Tasks))
	}
	rev := snap.Revision
	snap = svc.DragOver(ctx, DragOver{ActiveID: "8", ActiveKind: domain.DragKindTask, OverID: "done", OverKind: domain.DragKindColumn})
	if snap.Revision != rev {
		t.Fatalf("repeated hover over owning column should not publish, revision %d -> %d", rev, snap.Revision)
	}
}

func TestTaskOverTaskInSameColumnReorders(t *testing.T) {
	ctx := context.Background()
	svc := newSampleService(t, ServiceConfig{})

	svc.DragStart(ctx, DragStart{DraggedID: "9", DraggedKind: domain.DragKindTask})
	snap := svc.DragOver(ctx, DragOver{ActiveID: "9", ActiveKind: domain.DragKindTask, OverID: "1", OverKind: domain.DragKindTask})
	todo := taskIDs(snap.ColumnTasks("todo"))
	if fmt.Sprint(todo) != "[9 1 2 8 10 11]" {
		t.Fatalf("unexpected todo order %v", todo)
	}
}

func TestDragOverIgnoredEvents(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})
	svc.DragStart(ctx, DragStart{DraggedID: "1", DraggedKind: domain.DragKindTask})
	base := svc.Snapshot()

	events := []DragOver{
		{ActiveID: "1", ActiveKind: domain.DragKindTask},
		{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "1", OverKind: domain.DragKindTask},
		{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "1"},
		{ActiveID: "1", OverID: "2", OverKind: domain.DragKindTask},
		{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "2"},
		{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "missing", OverKind: domain.DragKindTask},
		{ActiveID: "missing", ActiveKind: domain.DragKindTask, OverID: "2", OverKind: domain.DragKindTask},
		{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "Todo", OverKind: domain.DragKindColumn},
		{ActiveID: "Todo", ActiveKind: domain.DragKindColumn, OverID: "2", OverKind: domain.DragKindTask},
	}
	for i, ev := range events {
		snap := svc.DragOver(ctx, ev)
		if snap.Revision != base.Revision {
			t.Fatalf("event %d (%#v) published a change", i, ev)
		}
		if fmt.Sprint(snap.Tasks) != fmt.Sprint(base.Tasks) || fmt.Sprint(snap.Columns) != fmt.Sprint(base.Columns) {
			t.Fatalf("event %d (%#v) mutated lists", i, ev)
		}
		if snap.Active == nil || snap.Active.EntityID() != "1" {
			t.Fatalf("event %d (%#v) changed the active drag: %#v", i, ev, snap.Active)
		}
	}
}

func TestDragStartIgnoresUnknownEntityAndKind(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})
	rev := svc.Snapshot().Revision

	svc.DragStart(ctx, DragStart{DraggedID: "missing", DraggedKind: domain.DragKindTask})
	svc.DragStart(ctx, DragStart{DraggedID: "1"})
	if snap := svc.Snapshot(); snap.Active != nil || snap.Revision != rev {
		t.Fatalf("expected no drag recorded, got %#v at revision %d", snap.Active, snap.Revision)
	}
}

func TestDragStartReplacesUnfinishedGesture(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})

	svc.DragStart(ctx, DragStart{DraggedID: "1", DraggedKind: domain.DragKindTask})
	if svc.ActiveDrag() == nil {
		t.Fatal("a gesture without drag end keeps the indicator set")
	}
	svc.DragStart(ctx, DragStart{DraggedID: "Done", DraggedKind: domain.DragKindColumn})
	if got := domain.DragKindOf(svc.ActiveDrag()); got != domain.DragKindColumn {
		t.Fatalf("expected column drag to replace task drag, got %q", got)
	}
}

func TestDragEndAlwaysClearsActive(t *testing.T) {
	ctx := context.Background()
	ends := []DragEnd{
		{ActiveID: "1"},
		{ActiveID: "1", OverID: "1"},
		{ActiveID: "1", OverID: "2"},
		{ActiveID: "1", OverID: "missing"},
		{ActiveID: "Todo", OverID: "Done"},
	}
	starts := []DragStart{
		{DraggedID: "1", DraggedKind: domain.DragKindTask},
		{DraggedID: "Todo", DraggedKind: domain.DragKindColumn},
	}
	for _, start := range starts {
		for _, end := range ends {
			svc := scenarioService(t, ServiceConfig{})
			svc.DragStart(ctx, start)
			if snap := svc.DragEnd(ctx, end); snap.Active != nil {
				t.Fatalf("start %#v end %#v left active %#v", start, end, snap.Active)
			}
		}
	}
	svc := scenarioService(t, ServiceConfig{})
	if snap := svc.DragEnd(ctx, DragEnd{ActiveID: "x", OverID: "y"}); snap.Active != nil {
		t.Fatal("drag end without start must leave no active drag")
	}
}

func TestDragEndCancelKeepsHoverReassignment(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})

	svc.DragStart(ctx, DragStart{DraggedID: "1", DraggedKind: domain.DragKindTask})
	svc.DragOver(ctx, DragOver{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "Done", OverKind: domain.DragKindColumn})
	snap := svc.DragEnd(ctx, DragEnd{ActiveID: "1"})
	if one, _ := snap.Task("1"); one.ColumnID != "Done" {
		t.Fatalf("expected last hovered state to stick, got %q", one.ColumnID)
	}
}

func TestDragEndCancelRollsBackWhenEnabled(t *testing.T) {
	ctx := context.Background()
	log := &fakeActivityLog{}
	svc := scenarioService(t, ServiceConfig{RollbackOnCancel: true}, WithActivityLog(log))
	before := svc.Snapshot().Tasks

	svc.DragStart(ctx, DragStart{DraggedID: "1", DraggedKind: domain.DragKindTask})
	svc.DragOver(ctx, DragOver{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "2", OverKind: domain.DragKindTask})
	snap := svc.DragEnd(ctx, DragEnd{ActiveID: "1"})
	if fmt.Sprint(snap.Tasks) != fmt.Sprint(before) {
		t.Fatalf("expected rollback to %v, got %v", before, snap.Tasks)
	}
	ops := log.operations()
	if len(ops) == 0 || ops[len(ops)-1] != domain.ChangeOperationRollback {
		t.Fatalf("expected rollback to be recorded, got %v", ops)
	}

	svc.DragStart(ctx, DragStart{DraggedID: "1", DraggedKind: domain.DragKindTask})
	svc.DragOver(ctx, DragOver{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "Done", OverKind: domain.DragKindColumn})
	if _, err := svc.CreateTask(ctx, "Todo"); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	snap = svc.DragEnd(ctx, DragEnd{ActiveID: "1"})
	if one, _ := snap.Task("1"); one.ColumnID != "Done" {
		t.Fatalf("rollback must be skipped once the task set changed, got %q", one.ColumnID)
	}

	svc.DragStart(ctx, DragStart{DraggedID: "1", DraggedKind: domain.DragKindTask})
	svc.DragOver(ctx, DragOver{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "2", OverKind: domain.DragKindTask})
	dropped := svc.DragEnd(ctx, DragEnd{ActiveID: "1", OverID: "2"})
	if one, _ := dropped.Task("1"); one.ColumnID != "Doing" {
		t.Fatalf("a completed drop must keep its result, got %q", one.ColumnID)
	}
}

func TestDragOverWithoutMatchingDragStartIsIgnored(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})
	base := svc.Snapshot()

	snap := svc.DragOver(ctx, DragOver{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "2", OverKind: domain.DragKindTask})
	if snap.Revision != base.Revision || fmt.Sprint(snap.Tasks) != fmt.Sprint(base.Tasks) {
		t.Fatalf("drag over while idle mutated the board: %v at revision %d", snap.Tasks, snap.Revision)
	}

	svc.DragStart(ctx, DragStart{DraggedID: "2", DraggedKind: domain.DragKindTask})
	started := svc.Snapshot()
	for _, ev := range []DragOver{
		{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "Done", OverKind: domain.DragKindColumn},
		{ActiveID: "2", ActiveKind: domain.DragKindColumn, OverID: "Done", OverKind: domain.DragKindColumn},
	} {
		snap = svc.DragOver(ctx, ev)
		if snap.Revision != started.Revision || fmt.Sprint(snap.Tasks) != fmt.Sprint(started.Tasks) {
			t.Fatalf("drag over %#v for another entity mutated the board: %v", ev, snap.Tasks)
		}
	}
}

func TestRollbackKeepsContentEditedDuringGesture(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{RollbackOnCancel: true})

	svc.DragStart(ctx, DragStart{DraggedID: "1", DraggedKind: domain.DragKindTask})
	svc.DragOver(ctx, DragOver{ActiveID: "1", ActiveKind: domain.DragKindTask, OverID: "2", OverKind: domain.DragKindTask})
	if err := svc.EditTaskContent(ctx, "2", "edited mid gesture"); err != nil {
		t.Fatalf("EditTaskContent() error = %v", err)
	}
	snap := svc.DragEnd(ctx, DragEnd{ActiveID: "1"})

	if got := fmt.Sprint(taskIDs(snap.Tasks)); got != "[1 2]" {
		t.Fatalf("expected order rolled back, got %s", got)
	}
	one, _ := snap.Task("1")
	two, _ := snap.Task("2")
	if one.ColumnID != "Todo" {
		t.Fatalf("expected task 1 back in Todo, got %q", one.ColumnID)
	}
	if two.Content != "edited mid gesture" {
		t.Fatalf("rollback discarded an edit: content %q", two.Content)
	}
}

func TestDragEndReordersRecordedColumn(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})

	svc.DragStart(ctx, DragStart{DraggedID: "Todo", DraggedKind: domain.DragKindColumn})
	snap := svc.DragEnd(ctx, DragEnd{ActiveID: "Doing", OverID: "Done"})
	if got := fmt.Sprint(columnIDs(snap.Columns)); got != "[Doing Done Todo]" {
		t.Fatalf("expected the picked-up column to move, got %s", got)
	}

	svc.DragStart(ctx, DragStart{DraggedID: "Done", DraggedKind: domain.DragKindColumn})
	snap = svc.DragEnd(ctx, DragEnd{ActiveID: "Todo", OverID: "Done"})
	if got := fmt.Sprint(columnIDs(snap.Columns)); got != "[Doing Done Todo]" {
		t.Fatalf("dropping the recorded column on itself must not reorder, got %s", got)
	}
}

func TestLiveColumnReorder(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{LiveColumnReorder: true})

	svc.DragStart(ctx, DragStart{DraggedID: "Todo", DraggedKind: domain.DragKindColumn})
	snap := svc.DragOver(ctx, DragOver{ActiveID: "Todo", ActiveKind: domain.DragKindColumn, OverID: "2", OverKind: domain.DragKindTask})
	if got := fmt.Sprint(columnIDs(snap.Columns)); got != "[Doing Todo Done]" {
		t.Fatalf("unexpected live order %s", got)
	}
	snap = svc.DragEnd(ctx, DragEnd{ActiveID: "Todo", OverID: "Todo"})
	if got := fmt.Sprint(columnIDs(snap.Columns)); got != "[Doing Todo Done]" || snap.Active != nil {
		t.Fatalf("unexpected final order %s active %#v", got, snap.Active)
	}
}

func TestColumnDropOverTaskTargetsOwningColumn(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})

	svc.DragStart(ctx, DragStart{DraggedID: "Done", DraggedKind: domain.DragKindColumn})
	snap := svc.DragEnd(ctx, DragEnd{ActiveID: "Done", OverID: "1", OverKind: domain.DragKindTask})
	if got := fmt.Sprint(columnIDs(snap.Columns)); got != "[Done Todo Doing]" {
		t.Fatalf("unexpected order %s", got)
	}
}

func TestDeletingDraggedEntityClearsActive(t *testing.T) {
	ctx := context.Background()
	svc := scenarioService(t, ServiceConfig{})

	svc.DragStart(ctx, DragStart{DraggedID: "2", DraggedKind: domain.DragKindTask})
	if err := svc.DeleteColumn(ctx, "Doing"); err != nil {
		t.Fatalf("DeleteColumn() error = %v", err)
	}
	if svc.ActiveDrag() != nil {
		t.Fatal("expected active drag cleared after its task was removed")
	}

	svc.DragStart(ctx, DragStart{DraggedID: "Todo", DraggedKind: domain.DragKindColumn})
	if err := svc.DeleteTask(ctx, "1"); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if svc.ActiveDrag() == nil {
		t.Fatal("deleting an unrelated task must keep the column drag")
	}
}

func TestGestureSequencesKeepInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		svc := NewService(sequentialIDs("n"), fixedClock, ServiceConfig{
			AssertInvariants:  true,
			StrictColumnRefs:  true,
			RollbackOnCancel:  rapid.Bool().Draw(rt, "rollback"),
			LiveColumnReorder: rapid.Bool().Draw(rt, "live"),
		})
		if err := svc.Reset(ctx, SampleColumns(), SampleTasks()); err != nil {
			rt.Fatalf("Reset() error = %v", err)
		}

		pick := func(label string) (string, domain.DragKind) {
			snap := svc.Snapshot()
			if rapid.Bool().Draw(rt, label+"_is_column") && len(snap.Columns) > 0 {
				c := rapid.SampledFrom(snap.Columns).Draw(rt, label+"_column")
				return c.ID, domain.DragKindColumn
			}
			if len(snap.Tasks) == 0 {
				return "", domain.DragKindNone
			}
			task := rapid.SampledFrom(snap.Tasks).Draw(rt, label+"_task")
			return task.ID, domain.DragKindTask
		}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			activeID, activeKind := pick("active")
			svc.DragStart(ctx, DragStart{DraggedID: activeID, DraggedKind: activeKind})
			hovers := rapid.IntRange(0, 5).Draw(rt, "hovers")
			for h := 0; h < hovers; h++ {
				overID, overKind := pick("over")
				svc.DragOver(ctx, DragOver{ActiveID: activeID, ActiveKind: activeKind, OverID: overID, OverKind: overKind})
			}
			overID, overKind := pick("drop")
			if rapid.Bool().Draw(rt, "cancel") {
				overID, overKind = "", domain.DragKindNone
			}
			snap := svc.DragEnd(ctx, DragEnd{ActiveID: activeID, OverID: overID, OverKind: overKind})
			if snap.Active != nil {
				rt.Fatalf("active drag survived drag end: %#v", snap.Active)
			}
			if len(snap.Columns) != 3 || len(snap.Tasks) != 13 {
				rt.Fatalf("gesture changed membership: %d columns, %d tasks", len(snap.Columns), len(snap.Tasks))
			}
		}
	})
}
