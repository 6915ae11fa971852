package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"
)

const uploadTimeout = 2 * time.Minute

// Upload writes r to bucket/object as text/csv.
func (s *GCSStorageService) Upload(ctx context.Context, bucket, object string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := io.Copy(w, r); err != nil {
		// Closing after a failed copy aborts the upload.
		_ = w.Close()
		return fmt.Errorf("Upload: copy to %s/%s: %w", bucket, object, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Upload: finalize %s/%s: %w", bucket, object, err)
	}
	return nil
}

// UploadFile uploads a local file.
func (s *GCSStorageService) UploadFile(ctx context.Context, bucket, object, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open %q: %w", filePath, err)
	}
	defer f.Close()

	return s.Upload(ctx, bucket, object, f)
}
