package tui

import "charm.land/bubbles/v2/key"

// keyMap holds the board key bindings.
type keyMap struct {
	quit         key.Binding
	toggleHelp   key.Binding
	moveLeft     key.Binding
	moveRight    key.Binding
	moveUp       key.Binding
	moveDown     key.Binding
	newTask      key.Binding
	newColumn    key.Binding
	renameColumn key.Binding
	editTask     key.Binding
	taskInfo     key.Binding
	deleteTask   key.Binding
	deleteColumn key.Binding
	grabTask     key.Binding
	grabColumn   key.Binding
	drop         key.Binding
	cancelDrag   key.Binding
	activityLog  key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		toggleHelp:   key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:     key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "column left")),
		moveRight:    key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "column right")),
		moveUp:       key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:     key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		newTask:      key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new task")),
		newColumn:    key.NewBinding(key.WithKeys("N", "shift+n"), key.WithHelp("N", "new column")),
		renameColumn: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename column")),
		editTask:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit task")),
		taskInfo:     key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "task info")),
		deleteTask:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete task")),
		deleteColumn: key.NewBinding(key.WithKeys("D", "shift+d"), key.WithHelp("D", "delete column")),
		grabTask:     key.NewBinding(key.WithKeys("space", " "), key.WithHelp("space", "grab task")),
		grabColumn:   key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "grab column")),
		drop:         key.NewBinding(key.WithKeys("enter", "space", " "), key.WithHelp("enter", "drop")),
		cancelDrag:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
		activityLog:  key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "activity log")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.grabTask, k.grabColumn, k.newTask, k.newColumn, k.editTask, k.activityLog, k.toggleHelp, k.quit,
	}
}

// FullHelp returns the bindings shown in the help overlay.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown},
		{k.grabTask, k.grabColumn, k.drop, k.cancelDrag},
		{k.newTask, k.newColumn, k.renameColumn, k.editTask, k.taskInfo},
		{k.deleteTask, k.deleteColumn, k.activityLog, k.toggleHelp, k.quit},
	}
}
