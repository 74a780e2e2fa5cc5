package narration

import "context"

// Compile-time interface check.
var _ Engine = NoopEngine{}

// NoopEngine satisfies Engine without producing sound. Used when narration is disabled.
type NoopEngine struct{}

func (NoopEngine) Voices(context.Context) ([]Voice, error) { return nil, nil }

func (NoopEngine) Say(context.Context, *Voice, string) error { return nil }
