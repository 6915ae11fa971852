package gcsuploader

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dvloznov/dompet/internal/domain"
)

// maxObjectSize caps statement downloads.
const maxObjectSize = 32 << 20

// IsGCSURI reports whether s looks like a gs:// URI.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	if !IsGCSURI(uri) {
		return "", "", fmt.Errorf("ParseGCSURI: %q is not a gs:// URI: %w", uri, domain.ErrInvalidInput)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return "", "", fmt.Errorf("ParseGCSURI: %q has no object path: %w", uri, domain.ErrInvalidInput)
	}
	return parts[0], parts[1], nil
}

// FilenameFromGCSURI returns the last path element of the object.
// e.g., "gs://bucket/2024/may.csv" → "may.csv"
func FilenameFromGCSURI(uri string) string {
	_, object, err := ParseGCSURI(uri)
	if err != nil {
		return ""
	}
	return path.Base(object)
}

// Download reads the object at uri.
func (s *GCSStorageService) Download(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Download: open %s/%s: %w", bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("Download: read %s/%s: %w", bucket, object, err)
	}
	if len(data) > maxObjectSize {
		return nil, fmt.Errorf("Download: %s/%s exceeds %d bytes: %w", bucket, object, maxObjectSize, domain.ErrInvalidInput)
	}
	return data, nil
}
