package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/abdul-hamid-achik/fototeca/internal/catalog"
	"github.com/abdul-hamid-achik/fototeca/internal/config"
	"github.com/abdul-hamid-achik/fototeca/internal/db"
	"github.com/abdul-hamid-achik/fototeca/internal/embed"
	"github.com/abdul-hamid-achik/fototeca/internal/mcp"
	"github.com/abdul-hamid-achik/fototeca/internal/query"
	"github.com/abdul-hamid-achik/fototeca/internal/version"
	"github.com/abdul-hamid-achik/fototeca/internal/web"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "fototeca",
	Short:   "Semantic photo catalog",
	Version: version.Full(),
	Long: `fototeca keeps a photo library in sync with a searchable catalog.

Images are embedded with a local CLIP sidecar, tags are matched to
images automatically by semantic similarity, and the catalog can be
queried by tag, by time, or by natural-language prompt.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fototeca %s\n", version.Version)
		fmt.Printf("  commit:  %s\n", version.Commit)
		fmt.Printf("  built:   %s\n", version.Date)
	},
}

var initCmd = &cobra.Command{
	Use:   "init [library]",
	Short: "Initialize fototeca for a photo library",
	Long: `Initialize fototeca for a photo library. If no library path is given,
the current directory is used. This creates a .fototeca directory with
the configuration and catalog database.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the catalog with the photo library",
	Long: `Walk the photo library and reconcile it with the catalog: new images
are embedded and auto-tagged, images removed from disk are removed from
the catalog. Directory names along each image's path become tags.`,
	RunE: runSync,
}

var searchCmd = &cobra.Command{
	Use:   "search <prompt>",
	Short: "Find the images best matching a prompt",
	Long: `Rank catalog images against a natural-language prompt and print the
best matches with their similarity scores.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

var filterCmd = &cobra.Command{
	Use:   "filter [tags...]",
	Short: "List images carrying all given tags",
	Long: `List images assigned every one of the given tags, newest first.
With no tags, lists the whole catalog.`,
	RunE: runFilter,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API or MCP server",
	Long: `Serve the catalog over HTTP as a JSON API, or over stdio as a
Model Context Protocol (MCP) server for AI assistants.`,
	RunE: runServe,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the library and sync on changes",
	Long: `Watch the photo library for filesystem changes and run a sync pass
whenever it settles. Bursts of changes collapse into a single pass.`,
	RunE: runWatch,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show catalog status and statistics",
	RunE:  runStatus,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the catalog",
	Long: `Reset the catalog: all items, tags, and assignments are removed and
the bootstrap tags are reseeded. Image files on disk are not touched.

Use --force to skip the confirmation prompt.`,
	RunE: runReset,
}

func init() {
	rootCmd.SetVersionTemplate("fototeca version {{.Version}}\n")

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	initCmd.Flags().Bool("force", false, "overwrite existing configuration")

	searchCmd.Flags().IntP("limit", "n", 10, "maximum number of results")
	searchCmd.Flags().StringP("format", "f", "default", "output format (default, json)")

	filterCmd.Flags().StringP("format", "f", "default", "output format (default, json)")

	serveCmd.Flags().IntP("port", "p", 0, "server port (overrides config)")
	serveCmd.Flags().String("host", "", "server host (overrides config)")
	serveCmd.Flags().Bool("mcp", false, "serve MCP over stdio instead of HTTP")

	statusCmd.Flags().StringP("format", "f", "default", "output format (default, json)")

	resetCmd.Flags().Bool("force", false, "skip confirmation prompt")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
}

// app bundles the wired-up components a command needs.
type app struct {
	cfg      *config.Config
	store    *db.DB
	provider embed.Provider
	index    db.VectorIndex
	service  *catalog.Service
	engine   *query.Engine
	logger   *zap.Logger
}

func (a *app) Close() {
	if a.index != nil {
		a.index.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		a.logger.Sync()
	}
}

func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// openApp loads the config for the current directory and wires the full
// stack: store, embedding provider, vector index, service, and query engine.
func openApp(ctx context.Context) (*app, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("not a fototeca library: run 'fototeca init' first")
	}

	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.store, err = db.Open(cfg.DBPath, cfg.Embedding.Dimensions)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open catalog database: %w", err)
	}

	clip := embed.NewClipProvider(embed.ClipConfig{
		URL:        cfg.Embedding.URL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})
	a.provider = embed.WithCache(clip, cfg.Embedding.CacheSize)

	a.index, err = db.NewVectorIndex(db.VectorIndexType(cfg.Search.Index), a.store, db.VecLitePath(cfg.DataDir))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to open vector index: %w", err)
	}

	a.service, err = catalog.New(ctx, a.store, a.provider, a.index, cfg.Library.Root, cfg.Library.IgnorePatterns, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = query.NewEngine(a.store, a.provider, a.index)

	return a, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	library, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	if len(args) > 0 {
		library, err = filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid library path: %w", err)
		}
	}

	dataDir := filepath.Join(library, config.DefaultDataDir)
	if _, err := os.Stat(dataDir); err == nil && !force {
		return fmt.Errorf("fototeca already initialized in %s (use --force to reinitialize)", library)
	}

	cfg := config.DefaultConfig(library)
	cfg.DataDir = dataDir
	cfg.DBPath = filepath.Join(dataDir, config.DefaultDBFile)

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	database, err := db.Open(cfg.DBPath, cfg.Embedding.Dimensions)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	// Seeds the bootstrap tags on a fresh database. Tag embeddings need
	// the sidecar, so this fails cleanly when it is not running.
	ctx := context.Background()
	provider := embed.NewClipProvider(embed.ClipConfig{
		URL:        cfg.Embedding.URL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    time.Duration(cfg.Embedding.TimeoutSeconds) * time.Second,
	})
	index, err := db.NewVectorIndex(db.VectorIndexType(cfg.Search.Index), database, db.VecLitePath(cfg.DataDir))
	if err != nil {
		return fmt.Errorf("failed to open vector index: %w", err)
	}
	defer index.Close()

	if _, err := catalog.New(ctx, database, provider, index, cfg.Library.Root, cfg.Library.IgnorePatterns, logger); err != nil {
		return fmt.Errorf("failed to initialize catalog: %w\nMake sure the embedding sidecar is running at %s", err, cfg.Embedding.URL)
	}

	fmt.Printf("Initialized fototeca in %s\n", dataDir)
	fmt.Printf("  Library: %s\n", cfg.Library.Root)
	fmt.Printf("  Database: %s\n", cfg.DBPath)
	fmt.Printf("  Embedding model: %s (%d dimensions)\n", cfg.Embedding.Model, cfg.Embedding.Dimensions)
	fmt.Printf("\nRun 'fototeca sync' to catalog your library.\n")

	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.provider.Ping(ctx); err != nil {
		return fmt.Errorf("embedding sidecar unavailable: %w\nMake sure it is running at %s", err, a.cfg.Embedding.URL)
	}

	fmt.Printf("Syncing %s...\n", a.cfg.Library.Root)

	result, err := a.service.Sync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	fmt.Printf("\nSync complete:\n")
	fmt.Printf("  Files scanned: %d\n", result.Scanned)
	fmt.Printf("  Images added:  %d\n", result.Added)
	fmt.Printf("  Images removed: %d\n", result.Removed)

	if len(result.Errors) > 0 {
		fmt.Printf("\nWarnings: %d\n", len(result.Errors))
		if viper.GetBool("verbose") {
			for _, e := range result.Errors {
				fmt.Printf("  - %v\n", e)
			}
		}
	}

	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	results, err := a.engine.Best(ctx, prompt, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if format == "json" {
		return printJSON(results)
	}

	if len(results) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	for i, r := range results {
		fmt.Printf("%2d. %5.1f%%  %s\n", i+1, r.Score*100, r.Item.Path)
	}
	return nil
}

func runFilter(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	tagIDs := make([]int64, 0, len(args))
	for _, name := range args {
		tag, err := a.service.TagByName(ctx, name)
		if err != nil {
			return fmt.Errorf("unknown tag %q", name)
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	items, err := a.engine.Filter(ctx, tagIDs)
	if err != nil {
		return fmt.Errorf("filter failed: %w", err)
	}

	if format == "json" {
		return printJSON(items)
	}

	if len(items) == 0 {
		fmt.Println("No matching images.")
		return nil
	}
	for _, item := range items {
		taken := time.Unix(int64(item.Timestamp), 0)
		fmt.Printf("%6d  %s  %s\n", item.ID, taken.Format("2006-01-02"), item.Path)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	mcpMode, _ := cmd.Flags().GetBool("mcp")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	if mcpMode {
		mcpServer := mcp.NewServer(a.service, a.engine)
		return mcpServer.Run(ctx)
	}

	if host == "" {
		host = a.cfg.Server.Host
	}
	if port == 0 {
		port = a.cfg.Server.Port
	}

	server := web.NewServer(web.ServerConfig{
		Host:           host,
		Port:           port,
		AllowedOrigins: a.cfg.Server.AllowedOrigins,
		Service:        a.service,
		Engine:         a.engine,
		Logger:         a.logger,
	})

	fmt.Printf("Starting API server on http://%s:%d\n", host, port)
	fmt.Printf("  Library: %s\n", a.cfg.Library.Root)

	return server.Start(ctx)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.provider.Ping(ctx); err != nil {
		return fmt.Errorf("embedding sidecar unavailable: %w\nMake sure it is running at %s", err, a.cfg.Embedding.URL)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nStopping watcher...")
		cancel()
	}()

	wcfg := catalog.DefaultWatcherConfig()
	if a.cfg.Watch.DebounceSeconds > 0 {
		wcfg.Debounce = time.Duration(a.cfg.Watch.DebounceSeconds) * time.Second
	}
	wcfg.IgnorePatterns = append(wcfg.IgnorePatterns, a.cfg.Library.IgnorePatterns...)

	trigger := func(ctx context.Context) {
		result, err := a.service.Sync(ctx)
		if err != nil {
			a.logger.Warn("sync failed", zap.Error(err))
			return
		}
		if result.Added > 0 || result.Removed > 0 {
			fmt.Printf("Synced: %d added, %d removed\n", result.Added, result.Removed)
		}
	}

	watcher, err := catalog.NewWatcher(a.cfg.Library.Root, wcfg, trigger, a.logger)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// Initial pass before settling into event-driven syncs.
	trigger(ctx)

	fmt.Printf("Watching %s (Ctrl-C to stop)\n", a.cfg.Library.Root)
	return watcher.Run(ctx)
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.service.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get status: %w", err)
	}

	if format == "json" {
		return printJSON(status)
	}

	fmt.Printf("fototeca status\n")
	fmt.Printf("  Library: %s\n", status.Root)
	fmt.Printf("  Database: %s\n", a.cfg.DBPath)
	fmt.Printf("  Embedding model: %s\n", status.Model)
	fmt.Printf("  Vector index: %s\n", status.IndexType)
	fmt.Printf("\nCatalog statistics:\n")
	fmt.Printf("  Images:      %d\n", status.Items)
	fmt.Printf("  Tags:        %d\n", status.Tags)
	fmt.Printf("  Assignments: %d\n", status.Assignments)

	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	force, _ := cmd.Flags().GetBool("force")

	ctx := context.Background()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !force {
		fmt.Printf("WARNING: This will delete ALL catalog data for %s\n", a.cfg.Library.Root)
		fmt.Printf("Image files on disk are not touched. This action cannot be undone.\n\n")
		fmt.Printf("Type 'yes' to confirm: ")

		var confirmation string
		_, _ = fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			fmt.Println("Reset cancelled.")
			return nil
		}
	}

	if err := a.service.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset catalog: %w", err)
	}

	fmt.Println("Catalog reset complete. Bootstrap tags reseeded.")
	fmt.Println("Run 'fototeca sync' to re-catalog your library.")

	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
