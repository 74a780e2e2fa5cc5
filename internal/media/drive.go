package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/sjawhar/panner/internal/content"
)

const driveScheme = "gdrive://"

// DriveSource lists image and video files in a Google Drive folder.
type DriveSource struct {
	service  *drive.Service
	folderID string
	minBytes int64
}

func NewDriveSource(ctx context.Context, credPath, folderID string, minBytes int64) (*DriveSource, error) {
	creds, err := os.ReadFile(credPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	config, err := google.CredentialsFromJSONWithTypeAndParams(ctx, creds, google.ServiceAccount, google.CredentialsParams{Scopes: []string{drive.DriveReadonlyScope}})
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	svc, err := drive.NewService(ctx, option.WithCredentials(config))
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}

	return newDriveSource(svc, folderID, minBytes), nil
}

func newDriveSource(svc *drive.Service, folderID string, minBytes int64) *DriveSource {
	return &DriveSource{service: svc, folderID: folderID, minBytes: minBytes}
}

func (s *DriveSource) Name() string { return "gdrive" }

func (s *DriveSource) List(ctx context.Context) ([]content.MediaRef, error) {
	q := fmt.Sprintf("'%s' in parents and trashed = false and (mimeType contains 'image/' or mimeType contains 'video/')",
		strings.ReplaceAll(s.folderID, "'", `\'`))

	var refs []content.MediaRef
	err := s.service.Files.List().
		Q(q).
		Fields("nextPageToken, files(id, name, mimeType, size)").
		PageSize(1000).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				if f.Size <= s.minBytes || !presentable(f.MimeType) {
					continue
				}
				locator := driveScheme + f.Id
				refs = append(refs, content.MediaRef{
					ID:      RefID(locator),
					Locator: locator,
					MIME:    f.MimeType,
					Size:    f.Size,
				})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("drive list: %w", err)
	}
	return refs, nil
}

// Download streams a Drive file's content.
func (s *DriveSource) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := s.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("drive download %s: %w", fileID, err)
	}
	return resp.Body, nil
}
