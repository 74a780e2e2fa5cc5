package media

import (
	"context"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sjawhar/panner/internal/content"
)

// FSSource lists image and video files under local directories.
type FSSource struct {
	Dirs     []string
	MinBytes int64
	Log      *zap.Logger
}

func (s *FSSource) Name() string { return "filesystem" }

func (s *FSSource) List(ctx context.Context) ([]content.MediaRef, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}

	var refs []content.MediaRef
	for _, root := range s.Dirs {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				log.Debug("walk error", zap.Error(err), zap.String("path", path))
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if d.IsDir() {
				return nil
			}

			mimeType := MIMEType(path)
			if !presentable(mimeType) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				log.Debug("stat failed", zap.Error(err), zap.String("path", path))
				return nil
			}
			if info.Size() <= s.MinBytes {
				return nil
			}

			abs, err := filepath.Abs(path)
			if err != nil {
				return nil
			}
			locator := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
			refs = append(refs, content.MediaRef{
				ID:      RefID(locator),
				Locator: locator,
				MIME:    mimeType,
				Size:    info.Size(),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].Locator < refs[j].Locator })
	return refs, nil
}

// MIMEType guesses a media type from the file extension.
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extraTypes[ext]; ok {
		return t
	}
	t := mime.TypeByExtension(ext)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}

// extraTypes covers formats missing from minimal mime.types installs.
var extraTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
}

func presentable(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/") || strings.HasPrefix(mimeType, "video/")
}
