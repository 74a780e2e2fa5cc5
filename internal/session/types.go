package session

import (
	"context"
	"time"

	"github.com/sjawhar/panner/internal/content"
	"github.com/sjawhar/panner/internal/storage"
)

type State string

const (
	StateClosed  State = "closed"
	StateOpening State = "opening"
	StateVisible State = "visible"
	StateClosing State = "closing"
)

// Reason records why a session was torn down.
type Reason string

const (
	ReasonUser     Reason = "user"
	ReasonReplaced Reason = "replaced"
	ReasonShutdown Reason = "shutdown"
	ReasonError    Reason = "error"
)

// Session is one presentation. Its ID is the handle surfaces dismiss by.
type Session struct {
	ID        string       `json:"id"`
	Item      content.Item `json:"item"`
	State     State        `json:"state"`
	OpenedAt  time.Time    `json:"opened_at"`
	KeepAwake bool         `json:"keep_awake"`
	Loop      bool         `json:"loop"`
}

// Surface renders and dismisses sessions on screen.
type Surface interface {
	Display(ctx context.Context, s Session) error
	Dismiss(ctx context.Context, sessionID string) error
}

// Narrator speaks text aloud, replacing anything already being spoken.
type Narrator interface {
	Speak(text string) error
	Stop() error
}

type Recorder interface {
	RecordPresentation(ctx context.Context, p storage.Presentation) error
	FinishPresentation(ctx context.Context, id string, closedAt time.Time, reason string) error
}

type Journal interface {
	Append(at time.Time, g content.TextGroup) error
}
