// Package cmd holds the shared factories the binaries use to build their
// persistence and event-bus dependencies from configuration.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/patchbay-dev/patchbay/pkg/persistence"
	"github.com/patchbay-dev/patchbay/pkg/persistence/file"
	"github.com/patchbay-dev/patchbay/pkg/persistence/postgresql"
	"github.com/patchbay-dev/patchbay/pkg/persistence/redis"
)

var supportedPersistenceProviders = []string{"file", "postgres", "redis", "rediss"}

// NewPersistence builds a draft store from a database URL. The scheme
// picks the backend; anything unrecognized falls back to file storage.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, databaseURL)
	default:
		return file.NewPersistence(databaseURL), nil
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if scheme == supported {
			return scheme
		}
	}

	return "file"
}

// MustNewPersistence is NewPersistence for main() wiring where a broken
// database URL is fatal.
func MustNewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	p, err := NewPersistence(ctx, logger, databaseURL)
	if err != nil {
		panic(fmt.Errorf("failed to create persistence: %w", err))
	}

	return p
}
