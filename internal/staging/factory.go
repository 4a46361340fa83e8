package staging

import (
	"fmt"

	"folio/internal/config"
	"folio/internal/folio"
)

// DefaultMaxSize is the staging capacity used when none is configured (64MB).
const DefaultMaxSize int64 = 64 << 20

// NewStagingAreaFromConfig creates a StagingArea implementation based on the config type.
func NewStagingAreaFromConfig(cfg config.StagingConfig) (folio.StagingArea, error) {
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}

	switch cfg.Type {
	case "memory", "":
		return NewMemoryStagingArea(maxSize), nil
	case "filesystem":
		if cfg.StagingDir == "" {
			return nil, fmt.Errorf("filesystem staging area requires staging_dir to be set")
		}
		sa, err := NewFileSystemStagingArea(cfg.StagingDir, maxSize)
		if err != nil {
			return nil, err
		}
		return sa, nil
	default:
		return nil, fmt.Errorf("unknown staging area type: %s", cfg.Type)
	}
}
