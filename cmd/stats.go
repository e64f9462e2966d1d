package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	"github.com/mkustermann/pub-dartlang-dart/pkg/config"
	"github.com/mkustermann/pub-dartlang-dart/pkg/storage"
)

// StatsCommand creates the stats command.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show package index statistics",
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, c.String("config"))
		},
	}
}

func showStats(ctx context.Context, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.New(cfg.DatabasePath, cfg.DownloadBaseURL)
	if err != nil {
		return fmt.Errorf("opening package index: %w", err)
	}
	defer store.Close()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}

	keys := make([]string, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("Package index: %s\n", cfg.DatabasePath)
	for _, k := range keys {
		fmt.Printf("  %s: %d\n", k, stats[k])
	}
	return nil
}
