package objectstore

import (
	"context"
	"fmt"

	"folio/internal/config"
	"folio/internal/folio"
)

// NewObjectStoreFromConfig creates an ObjectStore implementation based on the config type.
func NewObjectStoreFromConfig(ctx context.Context, cfg config.ObjectStoreConfig) (folio.ObjectStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem object store requires fs_root to be set")
		}
		s, err := NewFileSystemStore(cfg.FSRoot)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 object store requires s3_bucket to be set")
		}
		s, err := NewS3Store(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown object store type: %s", cfg.Type)
	}
}
