package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/evanschultz/dragboard/internal/domain"
)

type fakeActivityLog struct {
	mu     sync.Mutex
	events []domain.ChangeEvent
	err    error
}

func (f *fakeActivityLog) RecordChange(_ context.Context, ev domain.ChangeEvent) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.ID = int64(len(f.events) + 1)
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeActivityLog) ListChanges(_ context.Context, limit int) ([]domain.ChangeEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeEvent, 0, len(f.events))
	for i := len(f.events) - 1; i >= 0; i-- {
		out = append(out, f.events[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeActivityLog) operations() []domain.ChangeOperation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeOperation, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Operation)
	}
	return out
}

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%d", prefix, n)
	}
}

func fixedClock() time.Time {
	return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, cfg ServiceConfig, opts ...Option) *Service {
	t.Helper()
	return NewService(sequentialIDs("id-"), fixedClock, cfg, opts...)
}

func newSampleService(t *testing.T, cfg ServiceConfig, opts ...Option) *Service {
	t.Helper()
	svc := newTestService(t, cfg, opts...)
	if err := svc.Reset(context.Background(), SampleColumns(), SampleTasks()); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	return svc
}

func columnIDs(columns []domain.Column) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, c.ID)
	}
	return out
}

func taskIDs(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestCreateColumnUsesCountBasedTitle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ServiceConfig{})

	first := svc.CreateColumn(ctx)
	second := svc.CreateColumn(ctx)
	if first.Title != "Column 1" || second.Title != "Column 2" {
		t.Fatalf("unexpected titles %q, %q", first.Title, second.Title)
	}
	if first.ID == second.ID {
		t.Fatalf("expected distinct ids, got %q twice", first.ID)
	}
	snap := svc.Snapshot()
	if got := columnIDs(snap.Columns); len(got) != 2 || got[0] != first.ID || got[1] != second.ID {
		t.Fatalf("unexpected column order %v", got)
	}
	if snap.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", snap.Revision)
	}
}

func TestCreateTaskIsPermissiveByDefault(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ServiceConfig{})

	task, err := svc.CreateTask(ctx, "ghost")
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.ColumnID != "ghost" || task.Content != "Task 1" {
		t.Fatalf("unexpected task %#v", task)
	}
}

func TestCreateTaskStrictRejectsUnknownColumn(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ServiceConfig{StrictColumnRefs: true})

	if _, err := svc.CreateTask(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	col := svc.CreateColumn(ctx)
	task, err := svc.CreateTask(ctx, col.ID)
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if task.ColumnID != col.ID {
		t.Fatalf("unexpected column %q", task.ColumnID)
	}
}

func TestDeleteColumnCascadesAtomically(t *testing.T) {
	ctx := context.Background()
	svc := newSampleService(t, ServiceConfig{})
	before := svc.Snapshot()
	owned := len(before.ColumnTasks("todo"))
	if owned == 0 {
		t.Fatal("expected sample tasks in todo")
	}

	var seen []Snapshot
	unsubscribe := svc.Subscribe(func(s Snapshot) { seen = append(seen, s) })
	defer unsubscribe()

	if err := svc.DeleteColumn(ctx, "todo"); err != nil {
		t.Fatalf("DeleteColumn() error = %v", err)
	}
	after := svc.Snapshot()
	if len(after.Columns) != len(before.Columns)-1 {
		t.Fatalf("expected exactly one column removed, got %d -> %d", len(before.Columns), len(after.Columns))
	}
	if len(after.Tasks) != len(before.Tasks)-owned {
		t.Fatalf("expected %d tasks removed, got %d -> %d", owned, len(before.Tasks), len(after.Tasks))
	}
	if len(after.ColumnTasks("todo")) != 0 {
		t.Fatal("expected no task left in deleted column")
	}
	if len(seen) != 1 {
		t.Fatalf("expected one published transition, got %d", len(seen))
	}
	if _, ok := seen[0].Column("todo"); ok || len(seen[0].ColumnTasks("todo")) != 0 {
		t.Fatal("observer saw a partial delete")
	}
}

func TestNotFoundIsSignalledWithoutMutation(t *testing.T) {
	ctx := context.Background()
	svc := newSampleService(t, ServiceConfig{})
	rev := svc.Snapshot().Revision

	checks := map[string]error{
		"DeleteColumn":    svc.DeleteColumn(ctx, "missing"),
		"RenameColumn":    svc.RenameColumn(ctx, "missing", "x"),
		"DeleteTask":      svc.DeleteTask(ctx, "missing"),
		"EditTaskContent": svc.EditTaskContent(ctx, "missing", "x"),
		"ReorderColumns":  svc.ReorderColumns(ctx, "todo", "missing"),
		"ReorderTasks":    svc.ReorderTasks(ctx, "missing", "1"),
	}
	for name, err := range checks {
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s() error = %v, want ErrNotFound", name, err)
		}
	}
	if got := svc.Snapshot().Revision; got != rev {
		t.Fatalf("expected revision %d unchanged, got %d", rev, got)
	}
}

func TestRenameAndEdit(t *testing.T) {
	ctx := context.Background()
	svc := newSampleService(t, ServiceConfig{})

	if err := svc.RenameColumn(ctx, "doing", "In review"); err != nil {
		t.Fatalf("RenameColumn() error = %v", err)
	}
	if err := svc.RenameColumn(ctx, "doing", "   "); !errors.Is(err, domain.ErrInvalidTitle) {
		t.Fatalf("expected ErrInvalidTitle, got %v", err)
	}
	if err := svc.EditTaskContent(ctx, "3", "**Pen test** the API"); err != nil {
		t.Fatalf("EditTaskContent() error = %v", err)
	}
	snap := svc.Snapshot()
	col, _ := snap.Column("doing")
	task, _ := snap.Task("3")
	if col.Title != "In review" || task.Content != "**Pen test** the API" {
		t.Fatalf("unexpected state %#v %#v", col, task)
	}
}

func TestReorderColumnsAndTasks(t *testing.T) {
	ctx := context.Background()
	svc := newSampleService(t, ServiceConfig{})

	if err := svc.ReorderColumns(ctx, "todo", "done"); err != nil {
		t.Fatalf("ReorderColumns() error = %v", err)
	}
	if got := columnIDs(svc.Snapshot().Columns); fmt.Sprint(got) != "[doing done todo]" {
		t.Fatalf("unexpected column order %v", got)
	}
	if err := svc.ReorderTasks(ctx, "1", "3"); err != nil {
		t.Fatalf("ReorderTasks() error = %v", err)
	}
	snap := svc.Snapshot()
	if got := taskIDs(snap.Tasks)[:3]; fmt.Sprint(got) != "[2 3 1]" {
		t.Fatalf("unexpected task order %v", got)
	}
	task, _ := snap.Task("1")
	if task.ColumnID != "todo" {
		t.Fatalf("ReorderTasks must not reassign, got column %q", task.ColumnID)
	}
}

func TestResetRejectsDuplicateIDs(t *testing.T) {
	svc := newTestService(t, ServiceConfig{})
	cols := []domain.Column{{ID: "a", Title: "A"}, {ID: "a", Title: "B"}}
	if err := svc.Reset(context.Background(), cols, nil); !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	tasks := []domain.Task{{ID: "1", ColumnID: "a"}, {ID: "1", ColumnID: "a"}}
	if err := svc.Reset(context.Background(), cols[:1], tasks); !errors.Is(err, domain.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestSnapshotIsIsolatedFromCallers(t *testing.T) {
	svc := newSampleService(t, ServiceConfig{})
	snap := svc.Snapshot()
	snap.Columns[0].Title = "mutated"
	snap.Tasks[0].ColumnID = "mutated"

	fresh := svc.Snapshot()
	if fresh.Columns[0].Title == "mutated" || fresh.Tasks[0].ColumnID == "mutated" {
		t.Fatal("snapshot mutation leaked into service state")
	}
}

func TestActivityLogReceivesChanges(t *testing.T) {
	ctx := context.Background()
	log := &fakeActivityLog{}
	svc := newSampleService(t, ServiceConfig{}, WithActivityLog(log))

	col := svc.CreateColumn(ctx)
	task, err := svc.CreateTask(ctx, col.ID)
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	_ = svc.DeleteTask(ctx, task.ID)
	_ = svc.DeleteColumn(ctx, col.ID)

	want := []domain.ChangeOperation{
		domain.ChangeOperationCreate,
		domain.ChangeOperationCreate,
		domain.ChangeOperationDelete,
		domain.ChangeOperationDelete,
	}
	if got := log.operations(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("unexpected operations %v, want %v", got, want)
	}
	events, err := svc.Activity(ctx, 1)
	if err != nil {
		t.Fatalf("Activity() error = %v", err)
	}
	if len(events) != 1 || events[0].EntityID != col.ID || !events[0].OccurredAt.Equal(fixedClock()) {
		t.Fatalf("unexpected latest event %#v", events)
	}
}

func TestActivityLogFailureDoesNotBlockMutation(t *testing.T) {
	log := &fakeActivityLog{err: errors.New("ledger down")}
	svc := newTestService(t, ServiceConfig{}, WithActivityLog(log))
	col := svc.CreateColumn(context.Background())
	if _, ok := svc.Snapshot().Column(col.ID); !ok {
		t.Fatal("expected column to be published despite ledger failure")
	}
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	svc := newTestService(t, ServiceConfig{})
	calls := 0
	unsubscribe := svc.Subscribe(func(Snapshot) { calls++ })
	svc.CreateColumn(context.Background())
	unsubscribe()
	svc.CreateColumn(context.Background())
	if calls != 1 {
		t.Fatalf("expected 1 notification, got %d", calls)
	}
}

func TestSubscriberMayCallBackIntoService(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, ServiceConfig{})

	var revisions []uint64
	var renameErr error
	svc.Subscribe(func(snap Snapshot) {
		revisions = append(revisions, snap.Revision)
		if len(snap.Columns) == 1 && snap.Columns[0].Title == "Column 1" {
			renameErr = svc.RenameColumn(ctx, snap.Columns[0].ID, "Backlog")
		}
	})

	done := make(chan domain.Column, 1)
	go func() { done <- svc.CreateColumn(ctx) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("CreateColumn() blocked on a subscriber that mutates the service")
	}

	if renameErr != nil {
		t.Fatalf("RenameColumn() from subscriber error = %v", renameErr)
	}
	if got := fmt.Sprint(revisions); got != "[1 2]" {
		t.Fatalf("expected notifications in revision order, got %s", got)
	}
	if col, _ := svc.Snapshot().Column(svc.Snapshot().Columns[0].ID); col.Title != "Backlog" {
		t.Fatalf("expected rename from subscriber to publish, got %q", col.Title)
	}
}

func TestAssertInvariantsPanicsOnViolation(t *testing.T) {
	svc := NewService(func() string { return "dup" }, fixedClock, ServiceConfig{AssertInvariants: true})
	svc.CreateColumn(context.Background())

	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("expected ErrInvariantViolation panic, got %v", r)
		}
	}()
	svc.CreateColumn(context.Background())
}

func TestConcurrentReadersSeeWholeStates(t *testing.T) {
	ctx := context.Background()
	svc := newSampleService(t, ServiceConfig{})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan string, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := svc.Snapshot()
			for _, task := range snap.Tasks {
				if task.ColumnID == "doing" {
					if _, ok := snap.Column("doing"); !ok {
						select {
						case errs <- "task points at deleted column in one snapshot":
						default:
						}
						return
					}
				}
			}
		}
	}()
	for i := 0; i < 50; i++ {
		_, _ = svc.CreateTask(ctx, "doing")
	}
	_ = svc.DeleteColumn(ctx, "doing")
	close(stop)
	wg.Wait()
	select {
	case msg := <-errs:
		t.Fatal(msg)
	default:
	}
}
