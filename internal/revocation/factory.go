package revocation

import (
	"fmt"

	"folio/internal/config"
	"folio/internal/folio"
)

// NewRevocationListFromConfig creates a RevocationList implementation based on the config type.
func NewRevocationListFromConfig(cfg config.RevocationConfig, clock folio.Clock) (folio.RevocationList, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryList(clock), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis revocation list requires redis_addr to be set")
		}
		return NewRedisList(cfg.RedisAddr, cfg.RedisPrefix, clock), nil
	case "none":
		return NoneList{}, nil
	default:
		return nil, fmt.Errorf("unknown revocation list type: %s", cfg.Type)
	}
}
