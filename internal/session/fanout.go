package session

import (
	"context"
	"errors"
)

// Fanout presents on every surface. A failing surface does not stop the rest.
type Fanout []Surface

func (f Fanout) Display(ctx context.Context, s Session) error {
	var errs []error
	for _, surface := range f {
		if err := surface.Display(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	// One working surface is enough to show the session.
	if len(errs) == len(f) {
		return errors.Join(errs...)
	}
	return nil
}

func (f Fanout) Dismiss(ctx context.Context, sessionID string) error {
	var errs []error
	for _, surface := range f {
		if err := surface.Dismiss(ctx, sessionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
