package domain

import "strings"

// Column is one named lane on the board. Its place in the board's column list is its display order.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NewColumn constructs a validated column.
func NewColumn(id, title string) (Column, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Column{}, ErrInvalidID
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return Column{}, ErrInvalidTitle
	}
	return Column{ID: id, Title: title}, nil
}

// Rename replaces the column title.
func (c *Column) Rename(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrInvalidTitle
	}
	c.Title = title
	return nil
}
