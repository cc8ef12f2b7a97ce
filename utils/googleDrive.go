package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var (
	driveFolderPathRe  = regexp.MustCompile(`/folders/([A-Za-z0-9_-]+)`)
	driveFolderQueryRe = regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`)
	driveBareIDRe      = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
)

// ParseDriveFolderID extracts the folder id from a Drive folder URL or returns a bare id as is.
func ParseDriveFolderID(folderURL string) (string, error) {
	folderURL = strings.TrimSpace(folderURL)
	if m := driveFolderPathRe.FindStringSubmatch(folderURL); len(m) == 2 {
		return m[1], nil
	}
	if m := driveFolderQueryRe.FindStringSubmatch(folderURL); len(m) == 2 {
		return m[1], nil
	}
	if driveBareIDRe.MatchString(folderURL) {
		return folderURL, nil
	}
	return "", fmt.Errorf("cannot parse drive folder id from %q", folderURL)
}

// DriveArtifactStore keeps artifacts as files in one Google Drive folder. The Drive file id is the artifact id.
type DriveArtifactStore struct {
	Service  *drive.Service
	FolderID string
}

func NewDriveArtifactStore(ctx context.Context, folderURL string) (*DriveArtifactStore, error) {
	if folderURL == "" {
		return nil, fmt.Errorf("%w: GOOGLE_DRIVE_FOLDER_URL is required", ErrorStorageConfig)
	}
	folderID, err := ParseDriveFolderID(folderURL)
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	if credJSON := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_JSON")); credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credPath := strings.TrimSpace(os.Getenv("GOOGLE_CREDENTIALS_PATH")); credPath != "" {
		opts = append(opts, option.WithCredentialsFile(credPath))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}
	return &DriveArtifactStore{Service: svc, FolderID: folderID}, nil
}

func (s *DriveArtifactStore) Upload(ctx context.Context, name string, data []byte) (ArtifactRef, error) {
	file := &drive.File{
		Name:     name,
		Parents:  []string{s.FolderID},
		MimeType: ContentTypeFor(name),
	}
	created, err := s.Service.Files.Create(file).
		Media(bytes.NewReader(data)).
		Fields("id, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("drive upload %s: %w", name, err)
	}
	return ArtifactRef{ID: created.Id, URL: created.WebViewLink}, nil
}

func (s *DriveArtifactStore) Overwrite(ctx context.Context, id string, name string, data []byte) (ArtifactRef, error) {
	if id == "" {
		return ArtifactRef{}, errors.New("artifact id is required")
	}
	updated, err := s.Service.Files.Update(id, &drive.File{Name: name}).
		Media(bytes.NewReader(data)).
		Fields("id, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("drive overwrite %s: %w", id, err)
	}
	return ArtifactRef{ID: updated.Id, URL: updated.WebViewLink}, nil
}
