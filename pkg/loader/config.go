package loader

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-attackgraph/pkg/config"
)

// SourceFromConfig builds the bundle source a configuration names
func SourceFromConfig(ctx context.Context, cfg config.BundleConfig) (Source, error) {
	switch cfg.Source {
	case config.SourceFile:
		return NewFileSource(cfg.Path), nil
	case config.SourceS3:
		return NewS3Source(ctx, S3Options{
			Bucket:          cfg.S3.Bucket,
			Key:             cfg.S3.Key,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown bundle source %q", cfg.Source)
	}
}
