package domain

import "slices"

// Move returns a copy of seq where the element at from sits at to and every other element keeps its
// relative order. The input is never modified. Out-of-range indices yield an unchanged copy.
func Move[T any](seq []T, from, to int) []T {
	out := slices.Clone(seq)
	if from < 0 || to < 0 || from >= len(out) || to >= len(out) || from == to {
		return out
	}
	item := out[from]
	if from < to {
		copy(out[from:to], out[from+1:to+1])
	} else {
		copy(out[to+1:from+1], out[to:from])
	}
	out[to] = item
	return out
}

// IndexOfColumn returns the list position of the column with id, or -1.
func IndexOfColumn(columns []Column, id string) int {
	return slices.IndexFunc(columns, func(c Column) bool { return c.ID == id })
}

// IndexOfTask returns the list position of the task with id, or -1.
func IndexOfTask(tasks []Task, id string) int {
	return slices.IndexFunc(tasks, func(t Task) bool { return t.ID == id })
}
