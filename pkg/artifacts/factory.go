package artifacts

import (
	"context"
	"fmt"
)

// StoreType selects the storage backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// Config selects and configures a backend. Dir applies to fs; Bucket,
// Prefix, Region and Endpoint to the object stores.
type Config struct {
	Type     StoreType `yaml:"type"`
	Dir      string    `yaml:"dir"`
	Bucket   string    `yaml:"bucket"`
	Prefix   string    `yaml:"prefix"`
	Region   string    `yaml:"region"`
	Endpoint string    `yaml:"endpoint"`
}

// NewStore builds the configured backend. An empty type means fs.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case StoreTypeFS, "":
		dir := cfg.Dir
		if dir == "" {
			dir = "data/artifacts"
		}
		return NewFileStore(dir)
	case StoreTypeS3:
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Store(ctx, S3StoreConfig{Bucket: cfg.Bucket, Region: region, Endpoint: cfg.Endpoint, Prefix: cfg.Prefix})
	case StoreTypeGCS:
		return newGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported artifact storage type: %s", cfg.Type)
	}
}
