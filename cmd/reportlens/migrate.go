package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kailas-cloud/reportlens/internal/config"
	"github.com/kailas-cloud/reportlens/internal/db/sqldb"
	documentrepo "github.com/kailas-cloud/reportlens/internal/repository/document"
	messagerepo "github.com/kailas-cloud/reportlens/internal/repository/message"
	userrepo "github.com/kailas-cloud/reportlens/internal/repository/user"
)

const migrateTimeout = 2 * time.Minute

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the relational schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		ctx, cancel := context.WithTimeout(cmd.Context(), migrateTimeout)
		defer cancel()

		gdb, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = sqldb.Close(gdb) }()

		if err := migrate(ctx, gdb); err != nil {
			return err
		}
		logger.Info("Schema migrated", zap.String("driver", cfg.Database.Driver))
		return nil
	},
}

func openDatabase(cfg config.Config) (*gorm.DB, error) {
	gdb, err := sqldb.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gdb, nil
}

type migrator interface {
	Migrate(ctx context.Context) error
}

func migrate(ctx context.Context, gdb *gorm.DB) error {
	for name, m := range map[string]migrator{
		"documents": documentrepo.New(gdb),
		"messages":  messagerepo.New(gdb),
		"users":     userrepo.New(gdb),
	} {
		if err := m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate %s: %w", name, err)
		}
	}
	return nil
}
