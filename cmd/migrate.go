package cmd

import (
	"context"
	"fmt"

	"github.com/jmehdipour/lead-intake/internal/config"
	"github.com/jmehdipour/lead-intake/internal/db"
	"github.com/jmehdipour/lead-intake/migrations"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var withClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the MySQL lead archive and outbox (and optionally the ClickHouse table)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		ctx := cmd.Context()

		sqlDB, err := db.NewMySQLConnection(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		defer sqlDB.Close()

		if err := apply(ctx, sqlDB, "mysql/001_init.sql"); err != nil {
			return err
		}
		fmt.Println(">> mysql migration complete")

		if !withClickHouse {
			return nil
		}

		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("open clickhouse: %w", err)
		}
		defer chDB.Close()

		if err := apply(ctx, chDB, "clickhouse/001_leads.sql"); err != nil {
			return err
		}
		fmt.Println(">> clickhouse migration complete")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&withClickHouse, "clickhouse", false, "also migrate ClickHouse")
}

func apply(ctx context.Context, conn *sqlx.DB, name string) error {
	b, err := migrations.FS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read migration %s: %w", name, err)
	}
	for i, stmt := range migrations.Statements(string(b)) {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %s statement %d: %w", name, i+1, err)
		}
	}
	return nil
}
