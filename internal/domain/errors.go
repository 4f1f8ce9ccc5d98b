package domain

import "errors"

var (
	ErrInvalidID       = errors.New("invalid id")
	ErrInvalidTitle    = errors.New("invalid title")
	ErrInvalidColumnID = errors.New("invalid column id")
	ErrDuplicateID     = errors.New("duplicate id")
)
