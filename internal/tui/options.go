package tui

import "context"

// Option configures a Model.
type Option func(*Model)

// WithActivityLimit caps the number of entries the activity overlay requests.
func WithActivityLimit(limit int) Option {
	return func(m *Model) {
		if limit > 0 {
			m.activityLimit = limit
		}
	}
}

// WithContext sets the context passed to service calls.
func WithContext(ctx context.Context) Option {
	return func(m *Model) {
		if ctx != nil {
			m.ctx = ctx
		}
	}
}
