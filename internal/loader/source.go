package loader

import (
	"context"
	"fmt"

	"github.com/wonny/f1dq/internal/contracts"
	"github.com/wonny/f1dq/pkg/config"
	"github.com/wonny/f1dq/pkg/database"
)

// Source kinds accepted by OpenSource
const (
	SourceCSV      = "csv"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// OpenSource builds the table source selected by cfg.Source.
// The returned close function releases any database handle and is never nil.
func OpenSource(ctx context.Context, cfg *config.Config) (contracts.TableSource, func(), error) {
	switch cfg.Source {
	case "", SourceCSV:
		return NewCSVSource(cfg.Paths.DataDir), func() {}, nil

	case SourceSQLite:
		db, err := database.OpenSQLite(ctx, cfg.Paths.DBPath, false)
		if err != nil {
			return nil, nil, err
		}
		return NewSQLiteSource(db, cfg.Paths.DBPath), func() { db.Close() }, nil

	case SourcePostgres:
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return NewPostgresSource(db.Pool, cfg.Database.Schema), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q (csv, sqlite, postgres)", cfg.Source)
	}
}
