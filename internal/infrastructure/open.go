package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"plant_inspection/internal/domain"
)

type PhotoOptions struct {
	UploadDir string
	S3        S3Config
}

// OpenPhotoStorage uses S3 when a bucket is configured and the local upload
// directory otherwise.
func OpenPhotoStorage(ctx context.Context, opts PhotoOptions) (domain.FileStorage, error) {
	if strings.TrimSpace(opts.S3.Bucket) != "" {
		store, err := OpenS3Storage(ctx, opts.S3)
		if err != nil {
			return nil, fmt.Errorf("open s3 photo storage: %w", err)
		}
		return store, nil
	}
	return NewFileSystemStorage(opts.UploadDir)
}
