package app

import "github.com/evanschultz/dragboard/internal/domain"

// SampleColumns returns the starter lanes shown on a fresh board.
func SampleColumns() []domain.Column {
	return []domain.Column{
		{ID: "todo", Title: "Todo"},
		{ID: "doing", Title: "Work in progress"},
		{ID: "done", Title: "Done"},
	}
}

// SampleTasks returns the starter tasks spread across SampleColumns.
func SampleTasks() []domain.Task {
	return []domain.Task{
		{ID: "1", ColumnID: "todo", Content: "List admin APIs for dashboard"},
		{ID: "2", ColumnID: "todo", Content: "Develop user registration functionality with OTP delivered on SMS after email confirmation and phone number confirmation"},
		{ID: "3", ColumnID: "doing", Content: "Conduct security testing"},
		{ID: "4", ColumnID: "doing", Content: "Analyze competitors"},
		{ID: "5", ColumnID: "done", Content: "Create UI kit documentation"},
		{ID: "6", ColumnID: "done", Content: "Dev meeting"},
		{ID: "7", ColumnID: "done", Content: "Deliver dashboard prototype"},
		{ID: "8", ColumnID: "todo", Content: "Optimize application performance"},
		{ID: "9", ColumnID: "todo", Content: "Implement data validation"},
		{ID: "10", ColumnID: "todo", Content: "Design database schema"},
		{ID: "11", ColumnID: "todo", Content: "Integrate SSL web certificates into workflow"},
		{ID: "12", ColumnID: "doing", Content: "Implement error logging and monitoring"},
		{ID: "13", ColumnID: "doing", Content: "Design and implement responsive UI"},
	}
}
