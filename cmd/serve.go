package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v3"

	"github.com/mkustermann/pub-dartlang-dart/pkg/api"
	"github.com/mkustermann/pub-dartlang-dart/pkg/cache"
	"github.com/mkustermann/pub-dartlang-dart/pkg/config"
	"github.com/mkustermann/pub-dartlang-dart/pkg/frontend"
	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
	"github.com/mkustermann/pub-dartlang-dart/pkg/realtime"
	"github.com/mkustermann/pub-dartlang-dart/pkg/render"
	"github.com/mkustermann/pub-dartlang-dart/pkg/repometa"
	"github.com/mkustermann/pub-dartlang-dart/pkg/search"
	"github.com/mkustermann/pub-dartlang-dart/pkg/storage"
)

// ServeCommand creates the serve command.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the package site with HTML, JSON API and live feed endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to (overrides config)",
			},
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides config)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("host"), c.String("port"))
		},
	}
}

func serve(ctx context.Context, configPath, host, port string) error {
	logger := log.ForComponent("serve")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if host != "" {
		cfg.ListenHost = host
	}
	if port != "" {
		cfg.ListenPort = port
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

	renderCache, err := buildRenderCache(cfg)
	if err != nil {
		return err
	}

	renderer, err := render.NewHTMLRenderer()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	var repoMeta repometa.Fetcher
	if cfg.GithubToken != "" {
		repoMeta = repometa.NewGitHubFetcher(ctx, cfg.GithubToken)
		logger.Infof("repository metadata enabled")
	}

	searcher := search.NewService(store, store)
	trackers := frontend.NewTrackers(cfg.TrackerCapacity)
	hub := realtime.NewHub(0)

	frontendServer := frontend.NewServer(frontend.Options{
		Backend:      store,
		Searcher:     searcher,
		Renderer:     renderer,
		Cache:        renderCache,
		RepoMeta:     repoMeta,
		Trackers:     trackers,
		PageSize:     cfg.PageSize,
		MaxPageLinks: cfg.MaxPageLinks,
	})

	apiServer := api.NewServer(api.Options{
		Backend:  store,
		Searcher: searcher,
		Stats:    store,
		Cache:    renderCache,
		Hub:      hub,
		Trackers: trackers,
		PageSize: cfg.PageSize,
	})

	mux := http.NewServeMux()
	apiServer.RegisterRoutes(mux)
	frontendServer.RegisterRoutes(mux)

	server := &http.Server{
		Addr:    cfg.ListenAddr(),
		Handler: api.RequestLogger(api.CorsMiddleware(mux)),
	}

	pollCtx, cancelPoll := context.WithCancel(ctx)
	defer cancelPoll()
	poller := realtime.NewPoller(store, hub, cfg.FeedPollInterval.Duration)
	go poller.Run(pollCtx)

	go func() {
		logger.Infof("listening on http://%s", cfg.ListenAddr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("creating config file watcher: %v", err)
		watcher = nil
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("closing config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("watching config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
		}
	}

	var watchEvents chan fsnotify.Event
	var watchErrors chan error
	if watcher != nil {
		watchEvents = watcher.Events
		watchErrors = watcher.Errors
	}

	for {
		select {
		case <-sigCh:
			logger.Infof("shutting down")
			cancelPoll()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case event, ok := <-watchEvents:
			if !ok {
				watchEvents = nil
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if _, err := config.LoadConfig(configPath); err != nil {
					logger.Warnf("config file changed but does not parse: %v", err)
					continue
				}
				logger.Infof("config file changed: %s (restart to apply)", configPath)
			}
		case err, ok := <-watchErrors:
			if !ok {
				watchErrors = nil
				continue
			}
			logger.Warnf("config watcher: %v", err)
		}
	}
}

func buildRenderCache(cfg *config.Config) (*cache.RenderCache, error) {
	switch cfg.Cache.Type {
	case config.CacheNone:
		return cache.New(nil), nil
	case config.CacheMemory:
		return cache.New(cache.NewMemoryBackend()), nil
	case config.CacheMemcached:
		return cache.New(cache.NewMemcacheBackend(cfg.Cache.MemcachedAddr)), nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
	}
}
