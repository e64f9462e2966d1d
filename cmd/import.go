package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/urfave/cli/v3"

	"github.com/mkustermann/pub-dartlang-dart/pkg/config"
	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
	"github.com/mkustermann/pub-dartlang-dart/pkg/storage"
)

// ImportCommand creates the import command.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import a registry dump (JSON, optionally gzip-compressed) into the package index",
		ArgsUsage: "<dump-file>",
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("expected exactly one dump file argument")
			}
			return importDump(ctx, c.String("config"), c.Args().First())
		},
	}
}

func importDump(ctx context.Context, configPath, dumpPath string) error {
	logger := log.ForComponent("import")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	f, err := os.Open(dumpPath)
	if err != nil {
		return fmt.Errorf("opening dump file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Warnf("closing dump file: %v", err)
		}
	}()

	var reader io.Reader = f
	if strings.HasSuffix(dumpPath, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer func() {
			if err := gz.Close(); err != nil {
				logger.Warnf("closing gzip stream: %v", err)
			}
		}()
		reader = gz
	}

	var pkgs []storage.PackageImport
	if err := json.NewDecoder(reader).Decode(&pkgs); err != nil {
		return fmt.Errorf("decoding dump: %w", err)
	}
	if len(pkgs) == 0 {
		return fmt.Errorf("dump contains no packages")
	}

	store, err := storage.New(cfg.DatabasePath, cfg.DownloadBaseURL)
	if err != nil {
		return fmt.Errorf("opening package index: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warnf("closing package index: %v", err)
		}
	}()

	if err := store.ImportPackages(ctx, pkgs); err != nil {
		return fmt.Errorf("importing packages: %w", err)
	}

	versions := 0
	for _, pkg := range pkgs {
		versions += len(pkg.Versions)
	}
	fmt.Printf("Imported %d packages (%d versions) into %s\n", len(pkgs), versions, cfg.DatabasePath)
	return nil
}
