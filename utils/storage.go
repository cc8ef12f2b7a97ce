package utils

import (
	"context"
	"path"
	"strings"
)

// ArtifactRef identifies an uploaded file. ID is what Overwrite takes.
type ArtifactRef struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// ArtifactStore uploads generated files to remote storage.
type ArtifactStore interface {
	Upload(ctx context.Context, name string, data []byte) (ArtifactRef, error)
	Overwrite(ctx context.Context, id string, name string, data []byte) (ArtifactRef, error)
}

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeText = "text/plain; charset=utf-8"
)

// ContentTypeFor picks a MIME type from the file extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".xlsx":
		return mimeXLSX
	case ".docx":
		return mimeDOCX
	case ".txt":
		return mimeText
	default:
		return "application/octet-stream"
	}
}
