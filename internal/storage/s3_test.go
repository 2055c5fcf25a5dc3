package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/vidcurate/backend/internal/config"
	"github.com/vidcurate/backend/internal/videos"
)

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ObjectStoreConfig
		want string
	}{
		{
			name: "explicit public url",
			cfg:  config.ObjectStoreConfig{Bucket: "thumbs", Region: "eu-west-1", PublicBaseURL: "https://cdn.example.com/"},
			want: "https://cdn.example.com",
		},
		{
			name: "custom endpoint",
			cfg:  config.ObjectStoreConfig{Bucket: "thumbs", Region: "us-east-1", Endpoint: "http://localhost:9000/"},
			want: "http://localhost:9000/thumbs",
		},
		{
			name: "aws default",
			cfg:  config.ObjectStoreConfig{Bucket: "thumbs", Region: "eu-west-1"},
			want: "https://thumbs.s3.eu-west-1.amazonaws.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := publicBaseURL(tt.cfg); got != tt.want {
				t.Fatalf("publicBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestObjectURL(t *testing.T) {
	if got := objectURL("https://cdn.example.com", "thumbnails/a/b.jpg"); got != "https://cdn.example.com/thumbnails/a/b.jpg" {
		t.Fatalf("unexpected object url %q", got)
	}
	if got := objectURL("", "thumbnails/a/b.jpg"); got != "thumbnails/a/b.jpg" {
		t.Fatalf("unexpected object url %q", got)
	}
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), config.ObjectStoreConfig{Region: "us-east-1"})
	if !errors.Is(err, videos.ErrAssetStorageUnavailable) {
		t.Fatalf("expected ErrAssetStorageUnavailable, got %v", err)
	}
}
