// Package tui renders the board in the terminal and turns keyboard and mouse input into drag gestures.
package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/evanschultz/dragboard/internal/app"
	"github.com/evanschultz/dragboard/internal/domain"
)

// Service is the board surface the model drives.
type Service interface {
	Snapshot() app.Snapshot
	CreateColumn(context.Context) domain.Column
	DeleteColumn(context.Context, string) error
	RenameColumn(context.Context, string, string) error
	CreateTask(context.Context, string) (domain.Task, error)
	DeleteTask(context.Context, string) error
	EditTaskContent(context.Context, string, string) error
	DragStart(context.Context, app.DragStart) app.Snapshot
	DragOver(context.Context, app.DragOver) app.Snapshot
	DragEnd(context.Context, app.DragEnd) app.Snapshot
	Activity(context.Context, int) ([]domain.ChangeEvent, error)
}

// inputMode represents a selectable mode.
type inputMode int

const (
	modeNone inputMode = iota
	modeRenameColumn
	modeEditTask
	modeTaskInfo
	modeActivityLog
	modeConfirmDeleteColumn
)

const (
	defaultActivityLimit  = 200
	activityLogViewWindow = 14
	defaultColumnWidth    = 24
)

// boardTop is the first screen row of the column boxes: title line plus a spacer.
const boardTop = 2

// dragState tracks a gesture started from this model.
type dragState struct {
	kind domain.DragKind
	id   string
	// overID and overKind name the last hovered entity; empty means no drop target yet.
	overID   string
	overKind domain.DragKind
	// hoverColumn is the keyboard target slot while dragging a column.
	hoverColumn int
	// mouse is set for gestures driven by the pointer.
	mouse bool
}

// pressState records a left-button press that may become a drag once the pointer moves.
type pressState struct {
	id   string
	kind domain.DragKind
	x, y int
}

// target is the entity under a screen cell.
type target struct {
	id   string
	kind domain.DragKind
}

// Model is the bubbletea model for the board.
type Model struct {
	svc Service
	ctx context.Context

	ready  bool
	width  int
	height int
	status string

	help help.Model
	keys keyMap

	snap           app.Snapshot
	selectedColumn int
	selectedTask   int

	mode  inputMode
	input textinput.Model

	drag  *dragState
	press *pressState

	activity      []domain.ChangeEvent
	activityLimit int

	md *markdownRenderer
}

// activityLoadedMsg carries recent ledger entries for the activity overlay.
type activityLoadedMsg struct {
	events []domain.ChangeEvent
	err    error
}

// NewModel constructs a board model over svc.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:           svc,
		ctx:           context.Background(),
		status:        "ready",
		help:          h,
		keys:          newKeyMap(),
		input:         newModalInput("", "", "", 240),
		activityLimit: defaultActivityLimit,
		md:            &markdownRenderer{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	if svc != nil {
		m.snap = svc.Snapshot()
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update routes terminal messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case activityLoadedMsg:
		if msg.err != nil {
			m.status = "activity log unavailable: " + msg.err.Error()
			return m, nil
		}
		m.activity = msg.events
		return m, nil

	case tea.KeyPressMsg:
		switch {
		case m.mode != modeNone:
			return m.handleInputModeKey(msg)
		case m.drag != nil:
			return m.handleDragKey(msg)
		default:
			return m.handleNormalModeKey(msg)
		}

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	default:
		return m, nil
	}
}

// View renders the board.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case msg.String() == "esc":
		m.help.ShowAll = false
		return m, nil
	case key.Matches(msg, m.keys.moveLeft):
		if m.selectedColumn > 0 {
			m.selectedColumn--
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		if m.selectedColumn < len(m.snap.Columns)-1 {
			m.selectedColumn++
			m.selectedTask = 0
		}
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		if m.selectedTask > 0 {
			m.selectedTask--
		}
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		if m.selectedTask < len(m.currentColumnTasks())-1 {
			m.selectedTask++
		}
		return m, nil
	case key.Matches(msg, m.keys.newColumn):
		column := m.svc.CreateColumn(m.ctx)
		m.refresh()
		m.selectedColumn = len(m.snap.Columns) - 1
		m.selectedTask = 0
		m.status = "created " + column.Title
		return m, nil
	case key.Matches(msg, m.keys.newTask):
		column, ok := m.currentColumn()
		if !ok {
			m.status = "no column selected"
			return m, nil
		}
		task, err := m.svc.CreateTask(m.ctx, column.ID)
		if err != nil {
			m.status = "create task failed: " + err.Error()
			return m, nil
		}
		m.refresh()
		m.focusTask(task.ID)
		m.status = "created " + task.Content
		return m, nil
	case key.Matches(msg, m.keys.renameColumn):
		column, ok := m.currentColumn()
		if !ok {
			return m, nil
		}
		return m, m.startInput(modeRenameColumn, "title: ", column.Title)
	case key.Matches(msg, m.keys.editTask):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		return m, m.startInput(modeEditTask, "content: ", task.Content)
	case key.Matches(msg, m.keys.taskInfo):
		if _, ok := m.currentTask(); ok {
			m.mode = modeTaskInfo
		}
		return m, nil
	case key.Matches(msg, m.keys.deleteTask):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		if err := m.svc.DeleteTask(m.ctx, task.ID); err != nil {
			m.status = "delete failed: " + err.Error()
			return m, nil
		}
		m.refresh()
		m.status = "deleted task"
		return m, nil
	case key.Matches(msg, m.keys.deleteColumn):
		if _, ok := m.currentColumn(); ok {
			m.mode = modeConfirmDeleteColumn
		}
		return m, nil
	case key.Matches(msg, m.keys.grabTask):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		m.beginDrag(domain.DragKindTask, task.ID, false)
		return m, nil
	case key.Matches(msg, m.keys.grabColumn):
		column, ok := m.currentColumn()
		if !ok {
			return m, nil
		}
		m.beginDrag(domain.DragKindColumn, column.ID, false)
		return m, nil
	case key.Matches(msg, m.keys.activityLog):
		m.mode = modeActivityLog
		return m, m.loadActivity
	default:
		return m, nil
	}
}

// handleDragKey moves the hover target of a keyboard gesture, or finishes it.
func (m Model) handleDragKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	d := m.drag
	switch {
	case key.Matches(msg, m.keys.cancelDrag):
		m.endDrag("", domain.DragKindNone)
		m.status = "drag cancelled"
		return m, nil
	case key.Matches(msg, m.keys.drop):
		if d.kind == domain.DragKindColumn {
			m.endDrag(m.columnIDAt(d.hoverColumn), domain.DragKindColumn)
		} else {
			m.endDrag(d.overID, d.overKind)
		}
		m.status = "dropped"
		return m, nil
	case key.Matches(msg, m.keys.quit):
		m.endDrag("", domain.DragKindNone)
		return m, tea.Quit
	}

	if d.kind == domain.DragKindColumn {
		switch {
		case key.Matches(msg, m.keys.moveLeft):
			m.hoverColumnSlot(d.hoverColumn - 1)
		case key.Matches(msg, m.keys.moveRight):
			m.hoverColumnSlot(d.hoverColumn + 1)
		}
		return m, nil
	}

	task, ok := m.snap.Task(d.id)
	if !ok {
		return m, nil
	}
	colIdx := domain.IndexOfColumn(m.snap.Columns, task.ColumnID)
	switch {
	case key.Matches(msg, m.keys.moveLeft):
		if colIdx > 0 {
			m.hover(m.snap.Columns[colIdx-1].ID, domain.DragKindColumn)
		}
	case key.Matches(msg, m.keys.moveRight):
		if colIdx >= 0 && colIdx < len(m.snap.Columns)-1 {
			m.hover(m.snap.Columns[colIdx+1].ID, domain.DragKindColumn)
		}
	case key.Matches(msg, m.keys.moveUp), key.Matches(msg, m.keys.moveDown):
		siblings := m.snap.ColumnTasks(task.ColumnID)
		idx := domain.IndexOfTask(siblings, task.ID)
		step := 1
		if key.Matches(msg, m.keys.moveUp) {
			step = -1
		}
		if next := idx + step; idx >= 0 && next >= 0 && next < len(siblings) {
			m.hover(siblings[next].ID, domain.DragKindTask)
		}
	}
	return m, nil
}

func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeTaskInfo, modeActivityLog:
		if msg.String() == "esc" || msg.String() == "enter" || key.Matches(msg, m.keys.quit) {
			m.mode = modeNone
		}
		return m, nil
	case modeConfirmDeleteColumn:
		switch msg.String() {
		case "y", "enter":
			column, ok := m.currentColumn()
			m.mode = modeNone
			if !ok {
				return m, nil
			}
			if err := m.svc.DeleteColumn(m.ctx, column.ID); err != nil {
				m.status = "delete failed: " + err.Error()
				return m, nil
			}
			m.refresh()
			m.status = "deleted " + column.Title
		case "n", "esc":
			m.mode = modeNone
			m.status = "delete cancelled"
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.input.Blur()
		m.status = "cancelled"
		return m, nil
	case "enter":
		value := m.input.Value()
		mode := m.mode
		m.mode = modeNone
		m.input.Blur()
		return m.submitInput(mode, value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submitInput(mode inputMode, value string) (tea.Model, tea.Cmd) {
	switch mode {
	case modeRenameColumn:
		column, ok := m.currentColumn()
		if !ok {
			return m, nil
		}
		if err := m.svc.RenameColumn(m.ctx, column.ID, value); err != nil {
			m.status = "rename failed: " + err.Error()
			return m, nil
		}
		m.status = "renamed column"
	case modeEditTask:
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		if err := m.svc.EditTaskContent(m.ctx, task.ID, value); err != nil {
			m.status = "edit failed: " + err.Error()
			return m, nil
		}
		m.status = "updated task"
	}
	m.refresh()
	return m, nil
}

func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if msg.Button != tea.MouseLeft || m.mode != modeNone || m.help.ShowAll {
		return m, nil
	}
	hit := m.hitTest(msg.X, msg.Y)
	m.press = nil
	switch hit.kind {
	case domain.DragKindTask:
		m.focusTask(hit.id)
	case domain.DragKindColumn:
		if idx := domain.IndexOfColumn(m.snap.Columns, hit.id); idx >= 0 {
			m.selectedColumn = idx
			m.selectedTask = 0
		}
		// Only the header row picks a column up.
		if msg.Y != boardTop+1 {
			return m, nil
		}
	default:
		return m, nil
	}
	m.press = &pressState{id: hit.id, kind: hit.kind, x: msg.X, y: msg.Y}
	return m, nil
}

func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.drag == nil {
		if m.press == nil || (msg.X == m.press.x && msg.Y == m.press.y) {
			return m, nil
		}
		m.beginDrag(m.press.kind, m.press.id, true)
		m.press = nil
	}
	if m.drag == nil || !m.drag.mouse {
		return m, nil
	}
	hit := m.hitTest(msg.X, msg.Y)
	if hit.id == "" || (hit.id == m.drag.overID && hit.kind == m.drag.overKind) {
		return m, nil
	}
	m.hover(hit.id, hit.kind)
	return m, nil
}

func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	m.press = nil
	if m.drag == nil || !m.drag.mouse {
		return m, nil
	}
	hit := m.hitTest(msg.X, msg.Y)
	m.endDrag(hit.id, hit.kind)
	m.status = "dropped"
	return m, nil
}

// beginDrag publishes drag-start and tracks the gesture locally.
func (m *Model) beginDrag(kind domain.DragKind, id string, mouse bool) {
	m.snap = m.svc.DragStart(m.ctx, app.DragStart{DraggedID: id, DraggedKind: kind})
	if m.snap.Active == nil {
		m.drag = nil
		return
	}
	m.drag = &dragState{
		kind:        kind,
		id:          id,
		hoverColumn: domain.IndexOfColumn(m.snap.Columns, id),
		mouse:       mouse,
	}
	m.status = fmt.Sprintf("dragging %s %s", kind, id)
}

// hover publishes drag-over for the active gesture and keeps the selection on the dragged entity.
func (m *Model) hover(overID string, overKind domain.DragKind) {
	d := m.drag
	m.snap = m.svc.DragOver(m.ctx, app.DragOver{
		ActiveID:   d.id,
		ActiveKind: d.kind,
		OverID:     overID,
		OverKind:   overKind,
	})
	d.overID = overID
	d.overKind = overKind
	if d.kind == domain.DragKindTask {
		m.focusTask(d.id)
		return
	}
	if idx := domain.IndexOfColumn(m.snap.Columns, overID); idx >= 0 {
		d.hoverColumn = idx
		m.selectedColumn = idx
	}
}

// hoverColumnSlot targets the column at slot for a keyboard column drag.
func (m *Model) hoverColumnSlot(slot int) {
	if slot < 0 || slot >= len(m.snap.Columns) {
		return
	}
	m.hover(m.snap.Columns[slot].ID, domain.DragKindColumn)
	// With live reorder the dragged column already sits in slot; either way slot is the drop target.
	m.drag.hoverColumn = slot
	m.selectedColumn = slot
}

// endDrag publishes drag-end and forgets the gesture.
func (m *Model) endDrag(overID string, overKind domain.DragKind) {
	d := m.drag
	m.drag = nil
	if d == nil {
		return
	}
	m.snap = m.svc.DragEnd(m.ctx, app.DragEnd{ActiveID: d.id, OverID: overID, OverKind: overKind})
	if d.kind == domain.DragKindTask {
		m.focusTask(d.id)
		return
	}
	if idx := domain.IndexOfColumn(m.snap.Columns, d.id); idx >= 0 {
		m.selectedColumn = idx
	}
	m.clampSelections()
}

func (m *Model) startInput(mode inputMode, prompt, value string) tea.Cmd {
	m.mode = mode
	m.input = newModalInput(prompt, "", value, 240)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m Model) loadActivity() tea.Msg {
	events, err := m.svc.Activity(m.ctx, m.activityLimit)
	return activityLoadedMsg{events: events, err: err}
}

// refresh reloads the snapshot after a mutation.
func (m *Model) refresh() {
	m.snap = m.svc.Snapshot()
	m.clampSelections()
}

// focusTask selects taskID wherever it lives now.
func (m *Model) focusTask(taskID string) {
	task, ok := m.snap.Task(taskID)
	if !ok {
		m.clampSelections()
		return
	}
	colIdx := domain.IndexOfColumn(m.snap.Columns, task.ColumnID)
	if colIdx < 0 {
		return
	}
	m.selectedColumn = colIdx
	m.selectedTask = max(0, domain.IndexOfTask(m.snap.ColumnTasks(task.ColumnID), taskID))
}

func (m *Model) clampSelections() {
	if len(m.snap.Columns) == 0 {
		m.selectedColumn = 0
		m.selectedTask = 0
		return
	}
	m.selectedColumn = clamp(m.selectedColumn, 0, len(m.snap.Columns)-1)
	m.selectedTask = clamp(m.selectedTask, 0, len(m.currentColumnTasks())-1)
}

func (m Model) currentColumn() (domain.Column, bool) {
	if m.selectedColumn < 0 || m.selectedColumn >= len(m.snap.Columns) {
		return domain.Column{}, false
	}
	return m.snap.Columns[m.selectedColumn], true
}

func (m Model) currentColumnTasks() []domain.Task {
	column, ok := m.currentColumn()
	if !ok {
		return nil
	}
	return m.snap.ColumnTasks(column.ID)
}

func (m Model) currentTask() (domain.Task, bool) {
	tasks := m.currentColumnTasks()
	if m.selectedTask < 0 || m.selectedTask >= len(tasks) {
		return domain.Task{}, false
	}
	return tasks[m.selectedTask], true
}

func (m Model) columnIDAt(idx int) string {
	if idx < 0 || idx >= len(m.snap.Columns) {
		return ""
	}
	return m.snap.Columns[idx].ID
}

// columnWidth is the text width of one column row.
func (m Model) columnWidth() int {
	if m.width <= 0 || len(m.snap.Columns) == 0 {
		return defaultColumnWidth
	}
	per := m.width/len(m.snap.Columns) - columnChrome
	return clamp(per, 12, 40)
}

// columnChrome is the horizontal space a column box adds around its text: border, padding, margin.
const columnChrome = 5

// columnSpan is the full rendered width of one column box.
func (m Model) columnSpan() int {
	return lipgloss.Width(m.columnStyle(lipgloss.Color("0")).Render(""))
}

func (m Model) columnStyle(border color.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		MarginRight(1).
		Width(m.columnWidth() + 4)
}

// hitTest maps a screen cell to the column header, task row, or column body under it.
func (m Model) hitTest(x, y int) target {
	if len(m.snap.Columns) == 0 || x < 0 || y <= boardTop {
		return target{}
	}
	span := m.columnSpan()
	if span <= 0 {
		return target{}
	}
	colIdx := x / span
	if colIdx >= len(m.snap.Columns) || x%span >= span-1 {
		return target{}
	}
	column := m.snap.Columns[colIdx]
	row := y - boardTop - 1
	if row == 0 {
		return target{id: column.ID, kind: domain.DragKindColumn}
	}
	tasks := m.snap.ColumnTasks(column.ID)
	if idx := row - 1; idx >= 0 && idx < len(tasks) {
		return target{id: tasks[idx].ID, kind: domain.DragKindTask}
	}
	if row <= m.columnInnerHeight() {
		return target{id: column.ID, kind: domain.DragKindColumn}
	}
	return target{}
}

// columnInnerHeight is the number of text rows inside each column box.
func (m Model) columnInnerHeight() int {
	rows := 1
	for _, c := range m.snap.Columns {
		rows = max(rows, 1+len(m.snap.ColumnTasks(c.ID)))
	}
	rows++
	if m.height > 0 {
		// title, spacer, borders, status line and help footer.
		rows = min(rows, max(2, m.height-boardTop-6))
	}
	return rows
}

func (m Model) render() string {
	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	dragColor := lipgloss.Color("212")

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)
	header := titleStyle.Render("dragboard") + statusStyle.Render(fmt.Sprintf("  rev %d", m.snap.Revision))
	if m.snap.Active != nil {
		header += statusStyle.Render(fmt.Sprintf("  dragging %s %s", m.snap.Active.Kind(), m.snap.Active.EntityID()))
	}

	var activeID string
	var activeKind domain.DragKind
	if m.snap.Active != nil {
		activeID, activeKind = m.snap.Active.EntityID(), m.snap.Active.Kind()
	}

	colWidth := m.columnWidth()
	innerHeight := m.columnInnerHeight()
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedTaskStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)
	draggedStyle := lipgloss.NewStyle().Foreground(dragColor).Bold(true).Underline(true)

	columnViews := make([]string, 0, len(m.snap.Columns))
	for colIdx, column := range m.snap.Columns {
		tasks := m.snap.ColumnTasks(column.ID)
		titleLine := colTitle.Render(truncate(fmt.Sprintf("%s (%d)", column.Title, len(tasks)), colWidth))
		lines := []string{titleLine}
		if len(tasks) == 0 {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}
		for taskIdx, task := range tasks {
			selected := colIdx == m.selectedColumn && taskIdx == m.selectedTask
			prefix := "  "
			if selected {
				prefix = "│ "
			}
			line := prefix + truncate(firstLine(task.Content), colWidth-2)
			switch {
			case activeKind == domain.DragKindTask && task.ID == activeID:
				line = draggedStyle.Render(line)
			case selected:
				line = selectedTaskStyle.Render(line)
			}
			lines = append(lines, line)
		}

		border := dim
		switch {
		case activeKind == domain.DragKindColumn && column.ID == activeID:
			border = dragColor
		case m.drag != nil && m.drag.kind == domain.DragKindColumn && colIdx == m.drag.hoverColumn:
			border = muted
		case colIdx == m.selectedColumn:
			border = accent
		}
		columnViews = append(columnViews, m.columnStyle(border).Render(fitLines(strings.Join(lines, "\n"), innerHeight)))
	}

	body := emptyStyle.Render("No columns. Press N to add one.")
	if len(columnViews) > 0 {
		body = lipgloss.JoinHorizontal(lipgloss.Top, columnViews...)
	}

	sections := []string{header, "", body}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	if m.mode == modeRenameColumn || m.mode == modeEditTask {
		sections = append(sections, m.input.View())
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.ShowAll = false
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	full := content + "\n" + helpLine

	if overlay := m.renderOverlay(accent, muted); overlay != "" {
		height := lipgloss.Height(full)
		if m.height > 0 {
			height = m.height
		}
		full = overlayOnContent(full, overlay, max(1, m.width), max(1, height))
	}
	return full
}

func (m Model) renderOverlay(accent, muted color.Color) string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)
	maxWidth := clamp(m.width-8, 24, 76)

	if m.help.ShowAll {
		h := m.help
		h.ShowAll = true
		h.SetWidth(maxWidth)
		return boxStyle.Render(titleStyle.Render("Keys") + "\n" + h.View(m.keys))
	}

	switch m.mode {
	case modeTaskInfo:
		task, ok := m.currentTask()
		if !ok {
			return ""
		}
		column, _ := m.snap.Column(task.ColumnID)
		lines := []string{
			titleStyle.Render("Task " + task.ID),
			hintStyle.Render("column: " + column.Title),
			"",
			m.md.render(task.Content, maxWidth-4),
			"",
			hintStyle.Render("esc close"),
		}
		return boxStyle.Render(strings.Join(lines, "\n"))

	case modeActivityLog:
		lines := []string{titleStyle.Render("Activity")}
		if len(m.activity) == 0 {
			lines = append(lines, hintStyle.Render("(no changes yet)"))
		}
		for i, ev := range m.activity {
			if i >= activityLogViewWindow {
				lines = append(lines, hintStyle.Render(fmt.Sprintf("… %d more", len(m.activity)-i)))
				break
			}
			lines = append(lines, truncate(describeChange(ev), maxWidth-4))
		}
		lines = append(lines, hintStyle.Render("esc close"))
		return boxStyle.Render(strings.Join(lines, "\n"))

	case modeConfirmDeleteColumn:
		column, ok := m.currentColumn()
		if !ok {
			return ""
		}
		count := len(m.snap.ColumnTasks(column.ID))
		return boxStyle.Render(titleStyle.Render("Delete column") + "\n" +
			fmt.Sprintf("%s and its %d tasks?", column.Title, count) + "\n" +
			hintStyle.Render("y confirm • n cancel"))
	}
	return ""
}

// describeChange renders one ledger entry as a single line.
func describeChange(ev domain.ChangeEvent) string {
	line := fmt.Sprintf("r%d %s %s %s", ev.Revision, ev.Operation, ev.EntityKind, ev.EntityID)
	switch ev.Operation {
	case domain.ChangeOperationReassign:
		line += fmt.Sprintf(" %s → %s", ev.Metadata["from_column"], ev.Metadata["to_column"])
	case domain.ChangeOperationMove:
		line += fmt.Sprintf(" %s → %s", ev.Metadata["from_index"], ev.Metadata["to_index"])
	}
	return line
}

func newModalInput(prompt, placeholder, value string, limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = limit
	if value != "" {
		in.SetValue(value)
	}
	return in
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// overlayOnContent centers overlay above base.
func overlayOnContent(base, overlay string, width, height int) string {
	base = fitLines(base, height)
	canvas := lipgloss.NewCanvas(width, height)
	baseLayer := lipgloss.NewLayer(base).X(0).Y(0).Z(0)
	centered := lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, overlay)
	overlayLayer := lipgloss.NewLayer(centered).X(0).Y(0).Z(10)
	canvas.Compose(baseLayer)
	canvas.Compose(overlayLayer)
	return canvas.Render()
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	if limit == 1 {
		return string(rs[:1])
	}
	return string(rs[:limit-1]) + "…"
}
