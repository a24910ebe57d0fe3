// Package storageutils is the storage utility package
package storageutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chrysalislabs/chrysalis/pkg/storage"
	"github.com/chrysalislabs/chrysalis/pkg/storage/inmemory"
	"github.com/chrysalislabs/chrysalis/pkg/storage/postgres"
	"github.com/chrysalislabs/chrysalis/pkg/storage/sqlite"
)

type NewStorageDriverOpts struct {
	Provider    string
	SQLitePath  string
	PostgresDSN string
	Logger      *zap.Logger
}

// NewStorageDriver builds the configured storage backend.
func NewStorageDriver(ctx context.Context, o *NewStorageDriverOpts) (storage.Driver, error) {
	switch o.Provider {
	case "sqlite":
		return sqlite.NewSQLiteDriver(o.SQLitePath, o.Logger)
	case "postgres":
		return postgres.NewDriver(ctx, o.PostgresDSN, o.Logger)
	case "inmemory":
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", o.Provider)
	}
}
