package utils

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderDrive = "drive"
)

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderGCS
	}
	return provider
}

// StorageOptions carries the settings each provider needs.
type StorageOptions struct {
	GCSBucket      string
	ReportsPrefix  string
	DriveFolderURL string
}

// NewArtifactStore builds the store selected by STORAGE_PROVIDER.
func NewArtifactStore(ctx context.Context, provider string, opts StorageOptions) (ArtifactStore, error) {
	switch provider {
	case StorageProviderGCS:
		return NewGCSArtifactStore(ctx, opts.GCSBucket, opts.ReportsPrefix)
	case StorageProviderDrive:
		return NewDriveArtifactStore(ctx, opts.DriveFolderURL)
	default:
		return nil, fmt.Errorf("%w: unknown STORAGE_PROVIDER %q", ErrorStorageConfig, provider)
	}
}
