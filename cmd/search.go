package cmd

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mkustermann/pub-dartlang-dart/pkg/config"
	"github.com/mkustermann/pub-dartlang-dart/pkg/query"
	"github.com/mkustermann/pub-dartlang-dart/pkg/search"
	"github.com/mkustermann/pub-dartlang-dart/pkg/storage"
)

var (
	searchTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("86")).
				Padding(0, 1)

	packageNameStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("214"))

	packageMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)

	noResultsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true).
			Margin(1, 0)
)

// SearchCommand creates the search command.
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search the package index from the terminal",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "platform",
				Usage: "Platform filter, repeatable; append '!' to require",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of results",
				Value: 10,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			text := strings.Join(c.Args().Slice(), " ")
			return searchPackages(ctx, c.String("config"), text, c.StringSlice("platform"), c.Int("limit"))
		},
	}
}

func searchPackages(ctx context.Context, configPath, text string, platformTags []string, limit int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.New(cfg.DatabasePath, cfg.DownloadBaseURL)
	if err != nil {
		return fmt.Errorf("opening package index: %w", err)
	}
	defer store.Close()

	params := url.Values{}
	for _, tag := range platformTags {
		params.Add("platforms", tag)
	}
	q := query.Parse(text, params)
	q.Limit = limit
	if !q.IsValid() {
		return fmt.Errorf("nothing to search for, pass a query or a platform filter")
	}

	service := search.NewService(store, store)
	page, err := service.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("searching packages: %w", err)
	}

	if len(page.Packages) == 0 {
		fmt.Println(noResultsStyle.Render("No packages found."))
		return nil
	}

	fmt.Println(searchTitleStyle.Render(fmt.Sprintf("%d of %d packages", len(page.Packages), page.TotalCount)))
	titleCaser := cases.Title(language.English)
	for i, result := range page.Packages {
		pkg := result.Package
		fmt.Printf("%d. %s %s\n", i+1, packageNameStyle.Render(pkg.Name), pkg.LatestVersion)
		if pkg.Description != "" {
			fmt.Printf("   %s\n", pkg.Description)
		}
		if len(pkg.Platforms) > 0 {
			tags := make([]string, len(pkg.Platforms))
			for j, tag := range pkg.Platforms {
				tags[j] = titleCaser.String(tag)
			}
			fmt.Printf("   %s\n", packageMetaStyle.Render(strings.Join(tags, ", ")))
		}
		if i < len(page.Packages)-1 {
			fmt.Println()
		}
	}

	return nil
}
