package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/dragboard/internal/domain"
	"github.com/google/uuid"
)

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// StrictColumnRefs rejects tasks created against a column that does not exist.
	StrictColumnRefs bool
	// RollbackOnCancel restores the task list when a task gesture ends without a drop target.
	RollbackOnCancel bool
	// LiveColumnReorder reorders columns while hovering instead of waiting for the drop.
	LiveColumnReorder bool
	// AssertInvariants panics with ErrInvariantViolation when a commit breaks a board invariant.
	AssertInvariants bool
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger routes engine diagnostics to logger.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithActivityLog records every published change into log.
func WithActivityLog(log ActivityLog) Option {
	return func(s *Service) {
		s.activity = log
	}
}

// published pairs a state with the revision it was published under.
type published struct {
	revision uint64
	state    State
}

// Service owns the board state. It is the only mutator of the column and task lists: user actions
// and drag gestures both go through it, and every change publishes a new immutable State.
type Service struct {
	writeMu sync.Mutex
	current atomic.Pointer[published]

	idGen    IDGenerator
	clock    Clock
	cfg      ServiceConfig
	logger   Logger
	activity ActivityLog

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
	// outbox holds published snapshots awaiting delivery; draining marks the goroutine delivering them.
	outbox   []Snapshot
	draining bool
}

// NewService constructs an empty board.
func NewService(idGen IDGenerator, clock Clock, cfg ServiceConfig, opts ...Option) *Service {
	if idGen == nil {
		idGen = uuid.NewString
	}
	if clock == nil {
		clock = time.Now
	}
	s := &Service{
		idGen:  idGen,
		clock:  clock,
		cfg:    cfg,
		logger: charmLog.New(io.Discard),
		subs:   map[int]func(Snapshot){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.current.Store(&published{})
	return s
}

// Snapshot returns the latest published board.
func (s *Service) Snapshot() Snapshot {
	pub := s.current.Load()
	return pub.state.snapshot(pub.revision)
}

// ActiveDrag returns the entity currently being dragged, or nil.
func (s *Service) ActiveDrag() domain.Draggable {
	return s.current.Load().state.Active
}

// Subscribe registers fn to run after every published change and returns a func that removes it.
// Snapshots are delivered in revision order after the write lock is released, so fn may call back
// into the Service. Changes made from inside fn are delivered once fn returns.
func (s *Service) Subscribe(fn func(Snapshot)) func() {
	if fn == nil {
		return func() {}
	}
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Activity lists the most recent recorded changes, newest first.
func (s *Service) Activity(ctx context.Context, limit int) ([]domain.ChangeEvent, error) {
	if s.activity == nil {
		return nil, nil
	}
	return s.activity.ListChanges(ctx, limit)
}

// Reset replaces both lists and clears any gesture in progress.
func (s *Service) Reset(ctx context.Context, columns []domain.Column, tasks []domain.Task) error {
	if err := validateBoard(columns, tasks); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.unlock()
	s.commit(ctx, State{
		Columns: slices.Clone(columns),
		Tasks:   slices.Clone(tasks),
	}, nil)
	return nil
}

// CreateColumn appends a column titled after the current column count.
func (s *Service) CreateColumn(ctx context.Context) domain.Column {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	column := domain.Column{
		ID:    s.idGen(),
		Title: fmt.Sprintf("Column %d", len(cur.Columns)+1),
	}
	next := cur
	next.Columns = append(slices.Clone(cur.Columns), column)
	s.commit(ctx, next, []change{{kind: domain.DragKindColumn, id: column.ID, op: domain.ChangeOperationCreate}})
	return column
}

// DeleteColumn removes the column and every task it owns in a single published change.
func (s *Service) DeleteColumn(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	idx := domain.IndexOfColumn(cur.Columns, id)
	if idx < 0 {
		return fmt.Errorf("column %q: %w", id, ErrNotFound)
	}
	next := cur
	next.Columns = slices.Delete(slices.Clone(cur.Columns), idx, idx+1)
	next.Tasks = make([]domain.Task, 0, len(cur.Tasks))
	removed := 0
	for _, t := range cur.Tasks {
		if t.ColumnID == id {
			removed++
			continue
		}
		next.Tasks = append(next.Tasks, t)
	}
	if dropsActive(cur.Active, next) {
		next.Active = nil
		next.rollback = nil
	}
	s.commit(ctx, next, []change{{
		kind:     domain.DragKindColumn,
		id:       id,
		op:       domain.ChangeOperationDelete,
		metadata: map[string]string{"tasks_removed": strconv.Itoa(removed)},
	}})
	return nil
}

// RenameColumn replaces the title of the column.
func (s *Service) RenameColumn(ctx context.Context, id, title string) error {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	idx := domain.IndexOfColumn(cur.Columns, id)
	if idx < 0 {
		return fmt.Errorf("column %q: %w", id, ErrNotFound)
	}
	columns := slices.Clone(cur.Columns)
	if err := columns[idx].Rename(title); err != nil {
		return err
	}
	next := cur
	next.Columns = columns
	s.commit(ctx, next, []change{{
		kind:     domain.DragKindColumn,
		id:       id,
		op:       domain.ChangeOperationRename,
		metadata: map[string]string{"title": columns[idx].Title},
	}})
	return nil
}

// CreateTask appends a task to columnID with content derived from the current task count. The column
// is only checked when StrictColumnRefs is set.
func (s *Service) CreateTask(ctx context.Context, columnID string) (domain.Task, error) {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	if s.cfg.StrictColumnRefs && domain.IndexOfColumn(cur.Columns, columnID) < 0 {
		return domain.Task{}, fmt.Errorf("column %q: %w", columnID, ErrNotFound)
	}
	task, err := domain.NewTask(s.idGen(), columnID, fmt.Sprintf("Task %d", len(cur.Tasks)+1))
	if err != nil {
		return domain.Task{}, err
	}
	next := cur
	next.Tasks = append(slices.Clone(cur.Tasks), task)
	s.commit(ctx, next, []change{{
		kind:     domain.DragKindTask,
		id:       task.ID,
		op:       domain.ChangeOperationCreate,
		metadata: map[string]string{"column": columnID},
	}})
	return task, nil
}

// DeleteTask removes the task.
func (s *Service) DeleteTask(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	idx := domain.IndexOfTask(cur.Tasks, id)
	if idx < 0 {
		return fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	next := cur
	next.Tasks = slices.Delete(slices.Clone(cur.Tasks), idx, idx+1)
	if dropsActive(cur.Active, next) {
		next.Active = nil
		next.rollback = nil
	}
	s.commit(ctx, next, []change{{kind: domain.DragKindTask, id: id, op: domain.ChangeOperationDelete}})
	return nil
}

// EditTaskContent replaces the content of the task.
func (s *Service) EditTaskContent(ctx context.Context, id, content string) error {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	idx := domain.IndexOfTask(cur.Tasks, id)
	if idx < 0 {
		return fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	tasks := slices.Clone(cur.Tasks)
	tasks[idx].Content = content
	next := cur
	next.Tasks = tasks
	s.commit(ctx, next, []change{{kind: domain.DragKindTask, id: id, op: domain.ChangeOperationEdit}})
	return nil
}

// ReorderColumns moves activeID to the position of overID.
func (s *Service) ReorderColumns(ctx context.Context, activeID, overID string) error {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	from := domain.IndexOfColumn(cur.Columns, activeID)
	if from < 0 {
		return fmt.Errorf("column %q: %w", activeID, ErrNotFound)
	}
	to := domain.IndexOfColumn(cur.Columns, overID)
	if to < 0 {
		return fmt.Errorf("column %q: %w", overID, ErrNotFound)
	}
	if from == to {
		return nil
	}
	next := cur
	next.Columns = domain.Move(cur.Columns, from, to)
	s.commit(ctx, next, []change{moveChange(domain.DragKindColumn, activeID, from, to)})
	return nil
}

// ReorderTasks moves activeID to the position of overID in the flat task list. Column ownership is
// not changed.
func (s *Service) ReorderTasks(ctx context.Context, activeID, overID string) error {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	from := domain.IndexOfTask(cur.Tasks, activeID)
	if from < 0 {
		return fmt.Errorf("task %q: %w", activeID, ErrNotFound)
	}
	to := domain.IndexOfTask(cur.Tasks, overID)
	if to < 0 {
		return fmt.Errorf("task %q: %w", overID, ErrNotFound)
	}
	if from == to {
		return nil
	}
	next := cur
	next.Tasks = domain.Move(cur.Tasks, from, to)
	s.commit(ctx, next, []change{moveChange(domain.DragKindTask, activeID, from, to)})
	return nil
}

// DragStart records the picked-up entity as the active drag. A gesture still in progress is replaced.
func (s *Service) DragStart(ctx context.Context, ev DragStart) Snapshot {
	s.writeMu.Lock()
	defer s.unlock()

	cur := s.state()
	out := cur.startDrag(ev, s.gestureConfig())
	if out.skipped != nil {
		s.logger.Debug("drag start ignored", "dragged_id", ev.DraggedID, "dragged_kind", ev.DraggedKind, "reason", out.skipped)
		return s.Snapshot()
	}
	if cur.Active != nil {
		s.logger.Warn("drag start replaced an unfinished gesture", "previous_kind", cur.Active.Kind(), "previous_id", cur.Active.EntityID())
	}
	return s.commit(ctx, out.next, nil)
}

// DragOver applies hover policy for the active drag. It never fails.
func (s *Service) DragOver(ctx context.Context, ev DragOver) Snapshot {
	s.writeMu.Lock()
	defer s.unlock()

	out := s.state().dragOver(ev, s.gestureConfig())
	if out.skipped != nil {
		s.logger.Debug("drag over ignored", "active_id", ev.ActiveID, "over_id", ev.OverID, "reason", out.skipped)
		return s.Snapshot()
	}
	return s.commit(ctx, out.next, out.changes)
}

// DragEnd clears the active drag and applies any deferred column reorder. It never fails.
func (s *Service) DragEnd(ctx context.Context, ev DragEnd) Snapshot {
	s.writeMu.Lock()
	defer s.unlock()

	out := s.state().endDrag(ev, s.gestureConfig())
	if errors.Is(out.skipped, errNoActiveDrag) {
		s.logger.Debug("drag end without active drag", "active_id", ev.ActiveID)
		return s.Snapshot()
	}
	if out.skipped != nil {
		s.logger.Debug("drag end without reorder", "active_id", ev.ActiveID, "over_id", ev.OverID, "reason", out.skipped)
	}
	return s.commit(ctx, out.next, out.changes)
}

func (s *Service) state() State {
	return s.current.Load().state
}

func (s *Service) gestureConfig() gestureConfig {
	return gestureConfig{
		rollbackOnCancel:  s.cfg.RollbackOnCancel,
		liveColumnReorder: s.cfg.LiveColumnReorder,
	}
}

// commit publishes next, records its changes and queues it for subscribers. Callers hold writeMu
// and release it through unlock.
func (s *Service) commit(ctx context.Context, next State, changes []change) Snapshot {
	if s.cfg.AssertInvariants {
		if err := next.checkInvariants(s.cfg.StrictColumnRefs); err != nil {
			panic(err)
		}
	}
	pub := &published{revision: s.current.Load().revision + 1, state: next}
	s.current.Store(pub)

	s.record(ctx, pub.revision, changes)
	snap := next.snapshot(pub.revision)
	s.enqueue(snap)
	return snap
}

// unlock releases writeMu and then delivers queued snapshots.
func (s *Service) unlock() {
	s.writeMu.Unlock()
	s.drain()
}

// record forwards changes to the activity log. Ledger failures never undo a published change.
func (s *Service) record(ctx context.Context, revision uint64, changes []change) {
	if s.activity == nil {
		return
	}
	now := s.clock().UTC()
	for _, c := range changes {
		err := s.activity.RecordChange(ctx, domain.ChangeEvent{
			Revision:   revision,
			EntityKind: c.kind,
			EntityID:   c.id,
			Operation:  c.op,
			Metadata:   c.metadata,
			OccurredAt: now,
		})
		if err != nil {
			s.logger.Warn("activity record failed", "entity_id", c.id, "operation", c.op, "err", err)
		}
	}
}

func (s *Service) enqueue(snap Snapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if len(s.subs) == 0 {
		return
	}
	s.outbox = append(s.outbox, snap)
}

// drain delivers queued snapshots in order. Only one goroutine drains at a time; snapshots queued by
// others, including by subscribers themselves, are picked up by the active drainer.
func (s *Service) drain() {
	s.subsMu.Lock()
	if s.draining {
		s.subsMu.Unlock()
		return
	}
	s.draining = true
	for len(s.outbox) > 0 {
		snap := s.outbox[0]
		s.outbox = s.outbox[1:]
		fns := s.subscribers()
		s.subsMu.Unlock()
		for _, fn := range fns {
			fn(snap)
		}
		s.subsMu.Lock()
	}
	s.draining = false
	s.subsMu.Unlock()
}

// subscribers returns the registered callbacks in registration order. Callers hold subsMu.
func (s *Service) subscribers() []func(Snapshot) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	return fns
}

// dropsActive reports whether next no longer contains the entity held by the active drag.
func dropsActive(active domain.Draggable, next State) bool {
	switch d := active.(type) {
	case domain.ColumnDrag:
		return domain.IndexOfColumn(next.Columns, d.Column.ID) < 0
	case domain.TaskDrag:
		return domain.IndexOfTask(next.Tasks, d.Task.ID) < 0
	default:
		return false
	}
}
