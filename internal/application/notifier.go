package application

import (
	"context"
	"errors"

	"kadan/internal/models"
)

// NotifierFanout forwards every event to all sinks. One failing sink does
// not stop the others.
type NotifierFanout struct {
	sinks  []Notifier
	logger Logger
}

func NewNotifierFanout(logger Logger, sinks ...Notifier) *NotifierFanout {
	f := &NotifierFanout{logger: logger}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *NotifierFanout) Add(sink Notifier) {
	f.sinks = append(f.sinks, sink)
}

func (f *NotifierFanout) Notify(ctx context.Context, ev models.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			f.logger.Warn("notifier %T failed for %s: %v", s, ev.Kind, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
