package gcs

import (
	"context"
	"io"
)

// Downloader reads objects addressed by gs:// URIs.
type Downloader interface {
	Download(ctx context.Context, uri string) ([]byte, error)
}

// Uploader writes objects to a bucket.
type Uploader interface {
	Upload(ctx context.Context, bucket, object string, r io.Reader) error
}

// StorageService is the statement transport used by the CLI.
type StorageService interface {
	Downloader
	Uploader
	Close() error
}
