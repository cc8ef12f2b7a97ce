package utils

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	// Prefer ADC (Cloud Run service account / GOOGLE_APPLICATION_CREDENTIALS).
	// If you need to provide explicit JSON (e.g. locally), set GCS_CREDENTIALS_JSON.
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// GCSArtifactStore keeps artifacts as objects in one bucket. The object name is the artifact id.
type GCSArtifactStore struct {
	Client *storage.Client
	Bucket string
	Prefix string
}

func NewGCSArtifactStore(ctx context.Context, bucket, prefix string) (*GCSArtifactStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: GCS_BUCKET is required", ErrorStorageConfig)
	}
	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSArtifactStore{Client: client, Bucket: bucket, Prefix: prefix}, nil
}

func (s *GCSArtifactStore) Upload(ctx context.Context, name string, data []byte) (ArtifactRef, error) {
	objectName := name
	if s.Prefix != "" {
		objectName = path.Join(s.Prefix, name)
	}
	return s.write(ctx, objectName, name, data)
}

// Overwrite replaces the object id in place; name only drives the content type.
func (s *GCSArtifactStore) Overwrite(ctx context.Context, id string, name string, data []byte) (ArtifactRef, error) {
	if id == "" {
		return ArtifactRef{}, errors.New("artifact id is required")
	}
	return s.write(ctx, id, name, data)
}

func (s *GCSArtifactStore) write(ctx context.Context, objectName, name string, data []byte) (ArtifactRef, error) {
	wc := s.Client.Bucket(s.Bucket).Object(objectName).NewWriter(ctx)
	wc.ContentType = ContentTypeFor(name)

	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return ArtifactRef{}, fmt.Errorf("failed to upload %s to Google Cloud Storage: %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return ArtifactRef{}, fmt.Errorf("failed to close writer: %w", err)
	}
	return ArtifactRef{ID: objectName, URL: GCSObjectURL(s.Bucket, objectName)}, nil
}

// GCSObjectURL is the public storage.googleapis.com URL of an object.
func GCSObjectURL(bucket, objectName string) string {
	return "https://storage.googleapis.com/" + bucket + "/" + (&url.URL{Path: objectName}).EscapedPath()
}
