package gcsuploader

import (
	"errors"
	"testing"

	"github.com/dvloznov/dompet/internal/domain"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{name: "nested object", uri: "gs://statements/2024/05/may.csv", wantBucket: "statements", wantObject: "2024/05/may.csv"},
		{name: "top-level object", uri: "gs://b/file.csv", wantBucket: "b", wantObject: "file.csv"},
		{name: "missing scheme", uri: "statements/may.csv", wantErr: true},
		{name: "bucket only", uri: "gs://statements", wantErr: true},
		{name: "trailing slash", uri: "gs://statements/2024/", wantErr: true},
		{name: "empty bucket", uri: "gs:///file.csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidInput) {
					t.Fatalf("ParseGCSURI(%q) error = %v, want ErrInvalidInput", tt.uri, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGCSURI(%q) unexpected error: %v", tt.uri, err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestFilenameFromGCSURI(t *testing.T) {
	if got := FilenameFromGCSURI("gs://bucket/folder/may.csv"); got != "may.csv" {
		t.Errorf("FilenameFromGCSURI() = %q, want may.csv", got)
	}
	if got := FilenameFromGCSURI("not-a-uri"); got != "" {
		t.Errorf("FilenameFromGCSURI() = %q, want empty", got)
	}
}
