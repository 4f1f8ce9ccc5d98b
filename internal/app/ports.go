package app

import (
	"context"
	"time"

	"github.com/evanschultz/dragboard/internal/domain"
)

// ActivityLog records published board changes for the current session.
type ActivityLog interface {
	RecordChange(context.Context, domain.ChangeEvent) error
	ListChanges(context.Context, int) ([]domain.ChangeEvent, error)
}

// Logger is the structured logging surface used by the service. *log.Logger from
// github.com/charmbracelet/log satisfies it.
type Logger interface {
	Debug(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time
