package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/sjawhar/panner/internal/content"
)

// ErrUnsupportedLocator is returned for locators no opener understands.
var ErrUnsupportedLocator = errors.New("unsupported media locator")

// Opener resolves media locators to readable content.
type Opener struct {
	Drive *DriveSource
}

// Open returns the bytes behind ref. Callers must close the reader.
func (o *Opener) Open(ctx context.Context, ref content.MediaRef) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(ref.Locator, "file://"):
		u, err := url.Parse(ref.Locator)
		if err != nil {
			return nil, fmt.Errorf("parse locator: %w", err)
		}
		return os.Open(u.Path)
	case strings.HasPrefix(ref.Locator, driveScheme):
		if o.Drive == nil {
			return nil, fmt.Errorf("%w: drive source not configured", ErrUnsupportedLocator)
		}
		return o.Drive.Download(ctx, strings.TrimPrefix(ref.Locator, driveScheme))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLocator, ref.Locator)
	}
}
