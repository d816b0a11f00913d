// Package blob stores applicant attachments in object storage.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Storage keeps objects by key and knows their public URL.
type Storage interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) error
	URL(key string) string
}

// Config selects and configures a backend.
type Config struct {
	Backend string // s3, cloudinary or memory

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	// MemoryBaseURL prefixes URLs handed out by the memory backend.
	MemoryBaseURL string
}

// New builds the configured backend.
func New(ctx context.Context, cfg Config) (Storage, error) {
	switch strings.ToLower(cfg.Backend) {
	case "s3":
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			return nil, fmt.Errorf("cloudinary storage needs cloud name, api key and secret")
		}
		return NewCloudinary(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder), nil
	case "memory", "":
		return NewMemory(cfg.MemoryBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
