package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/disiqueira/gotree/v3"

	"git.home.luguber.info/inful/blogbuilder/internal/builder"
	"git.home.luguber.info/inful/blogbuilder/internal/config"
	"git.home.luguber.info/inful/blogbuilder/internal/daemon"
	"git.home.luguber.info/inful/blogbuilder/internal/history"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"blog.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct{} `cmd:"" help:"Run one incremental build pass"`

	Serve struct{} `cmd:"" help:"Watch sources, rebuild on change, and serve the site"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Deps struct{} `cmd:"" help:"Show the category dependency table"`

	History struct {
		Limit int `short:"n" help:"Number of builds to list" default:"10"`
	} `cmd:"" help:"List recent builds from the history database"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	switch kctx.Command() {
	case "build":
		cfg := loadConfig()
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "serve":
		cfg := loadConfig()
		if err := runServe(cfg); err != nil {
			slog.Error("Serve failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		fmt.Println("Wrote", CLI.Config)
	case "deps":
		runDeps(loadConfig())
	case "history":
		cfg := loadConfig()
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "path", CLI.Config, "error", err)
		os.Exit(1)
	}
	return cfg
}

func runBuild(cfg *config.Config) error {
	b := builder.New(cfg)
	if cfg.Paths.History != "" {
		store, err := history.NewSQLiteStore(cfg.Paths.History)
		if err != nil {
			return err
		}
		defer store.Close()
		b.WithHistory(store)
	}

	res, err := b.Run(context.Background())
	if err != nil {
		return err
	}
	if len(res.Failures) > 0 {
		for _, f := range res.Failures {
			slog.Warn("Item was skipped", "path", f.Path, "error", f.Err)
		}
	}
	return nil
}

func runServe(cfg *config.Config) error {
	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return d.Run(ctx)
}

func runDeps(cfg *config.Config) {
	graph := builder.New(cfg).Graph()
	root := gotree.New("categories")
	for _, cat := range graph.Categories() {
		node := root.Add(string(cat))
		for _, path := range graph.WatchedPaths(cat) {
			node.Add(path)
		}
	}
	fmt.Print(root.Print())
}

func runHistory(cfg *config.Config, limit int) error {
	if cfg.Paths.History == "" {
		return fmt.Errorf("no history path configured (paths.history)")
	}
	store, err := history.NewSQLiteStore(cfg.Paths.History)
	if err != nil {
		return err
	}
	defer store.Close()

	builds, err := store.RecentBuilds(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		fmt.Println("no builds recorded")
		return nil
	}
	for _, b := range builds {
		fmt.Printf("%s  %-11s  built=%d failed=%d  %s\n",
			b.StartedAt.Format("2006-01-02 15:04:05"), b.Outcome, b.ItemsBuilt, b.Failures, b.BuildID)
	}
	return nil
}
