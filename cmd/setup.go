package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the commented default config file.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	path := cmd.String("output")
	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", path)
	return r.writePlain("✓ Config written to %s\n", path)
}

// SetupDatabase initializes the database and runs migrations.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	path := shared.ExpandHome(r.config.Database.Path)
	r.logger.Info("initializing database", "path", path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if cmd.Bool("rollback") {
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		version, err := shared.CurrentMigrationVersion(db)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		return r.writePlain("✓ Rolled back to schema version %d\n", version)
	}

	pending, err := shared.PendingMigrations(db)
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	r.logger.Info("running database migrations", "pending", len(pending))
	if err := shared.RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := shared.CurrentMigrationVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	r.logger.Infof("setup complete for database: %v", path)
	return r.writePlain("✓ Database ready at %s (schema version %d, %d applied)\n", path, version, len(pending))
}

// SetupCookies converts a browser "Copy as cURL" command into a Netscape cookies file
// that the extractor reads with --cookies.
func (r *Runner) SetupCookies(ctx context.Context, cmd *cli.Command) error {
	curlFile := cmd.String("curl")
	if curlFile == "" {
		return fmt.Errorf("%w: --curl must be provided", shared.ErrMissingArgument)
	}

	outputPath := cmd.String("output")
	if outputPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		outputPath = filepath.Join(homeDir, ".audiograb", "cookies.txt")
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	n, err := shared.WriteCookiesFile(curlFile, outputPath)
	if err != nil {
		return fmt.Errorf("failed to convert cURL file: %w", err)
	}
	r.logger.Info("cookies file saved", "path", outputPath, "cookies", n)

	r.writePlain("✓ %d cookies saved to %s\n", n, outputPath)
	r.writePlainln("Next steps:")
	r.writePlain("1. Update config.toml with: extractor.cookies_file = \"%s\"\n", outputPath)
	r.writePlain("2. Run 'audiograb get URL' to test it\n")
	return nil
}
