// Package main is the custsim CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/custsim/internal/cli"
	"github.com/hyperjump/custsim/internal/config"
	"github.com/hyperjump/custsim/internal/embedding"
	"github.com/hyperjump/custsim/internal/ingest"
	"github.com/hyperjump/custsim/internal/keyword"
	"github.com/hyperjump/custsim/internal/models"
	"github.com/hyperjump/custsim/internal/search"
	"github.com/hyperjump/custsim/internal/server"
	"github.com/hyperjump/custsim/internal/storage"
	"github.com/hyperjump/custsim/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/custsim/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence (for development), and a missing default file means built-in
// defaults. Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg := &config.Config{}
			config.ApplyDefaults(cfg)
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "context":
		runContext()
	case "lookup":
		runLookup()
	case "batches":
		runBatches()
	case "status":
		runStatus()
	case "config":
		runConfig()
	case "version", "--version", "-v":
		fmt.Printf("custsim version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	seed := fs.String("seed", "", "JSON file of customers to ingest at startup")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if *seed != "" {
		if err := seedFromFile(context.Background(), components.Ingester, *seed); err != nil {
			logger.Fatal("Failed to ingest seed file", zap.String("path", *seed), zap.Error(err))
		}
	}

	srv := server.NewServer(
		components.Index,
		components.Ingester,
		components.KeywordIndex,
		components.Storage,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func readRecords(path string) ([]*models.CustomerRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ingest.Decode(f)
}

func seedFromFile(ctx context.Context, ing *ingest.Ingester, path string) error {
	records, err := readRecords(path)
	if err != nil {
		return err
	}
	_, err = ing.Ingest(ctx, records)
	return err
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: custsim ingest [flags] <customers.json>")
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	// Decode locally so malformed files fail before any network call.
	records, err := readRecords(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid customers file: %v\n", err)
		os.Exit(1)
	}

	report, err := newClient(*serverURL).ingest(records)
	if report != nil {
		if werr := cli.WriteReport(os.Stdout, report, format); werr != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: custsim search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Use --customer to search by a customer record file instead.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  custsim search bought running shoes
  custsim search --limit 10 "opened newsletter"
  custsim search --customer probe.json          # nearest stored customers to an unstored record
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// reorderArgs moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse() sees them. Go's flag package stops at
// the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	limit := fs.Int("limit", 0, "number of results (0 = server default)")
	customerFile := fs.String("customer", "", "JSON file holding one customer record to search by")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	format := mustFormat(*outputFormat)
	query := &models.SearchQuery{Limit: *limit}
	if *customerFile != "" {
		rec, err := readCustomer(*customerFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid customer file: %v\n", err)
			os.Exit(1)
		}
		query.Customer = rec
	} else {
		query.Query = buildSearchQuery(fs.Args())
		if query.Query == "" {
			printSearchUsage(fs)
			os.Exit(1)
		}
	}

	response, err := newClient(*serverURL).search(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func readCustomer(path string) (*models.CustomerRecord, error) {
	records, err := readRecords(path)
	if err != nil {
		return nil, err
	}
	if len(records) != 1 {
		return nil, fmt.Errorf("expected exactly one customer, got %d", len(records))
	}
	return records[0], nil
}

func runContext() {
	fs := flag.NewFlagSet("context", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: custsim context [flags] <customer-id>")
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	cc, err := newClient(*serverURL).context(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Context failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteContext(os.Stdout, cc, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runLookup() {
	fs := flag.NewFlagSet("lookup", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	limit := fs.Int("limit", 10, "number of results")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	q := buildSearchQuery(fs.Args())
	if q == "" {
		fmt.Println("Usage: custsim lookup [flags] <terms>")
		os.Exit(1)
	}
	format := mustFormat(*outputFormat)
	c := newClient(*serverURL)
	response, err := c.lookup(q, *limit, *fuzzy)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Lookup failed: %v\n", err)
		os.Exit(1)
	}
	// Retry with typo tolerance when an exact lookup finds nothing.
	if !*fuzzy && response.Total == 0 {
		if fuzzyResponse, fuzzyErr := c.lookup(q, *limit, true); fuzzyErr == nil && fuzzyResponse.Total > 0 {
			response = fuzzyResponse
		}
	}
	if err := cli.WriteLookup(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runBatches() {
	fs := flag.NewFlagSet("batches", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	offset := fs.Int("offset", 0, "number of batches to skip")
	limit := fs.Int("limit", 20, "number of batches")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(reorderArgs(os.Args[2:]))

	format := mustFormat(*outputFormat)
	c := newClient(*serverURL)
	if fs.NArg() > 0 {
		report, err := c.batch(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Batch failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteReport(os.Stdout, report, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	batches, total, err := c.batches(*offset, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Batches failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteBatches(os.Stdout, batches, total, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format := mustFormat(*outputFormat)
	status, err := newClient(*serverURL).status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, status, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runConfig() {
	if len(os.Args) < 3 || os.Args[2] != "init" {
		fmt.Println("Usage: custsim config init [--config path] [--force]")
		os.Exit(1)
	}
	fs := flag.NewFlagSet("config init", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[3:])

	if err := writeDefaultConfig(*configPath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Config init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote default config to %s\n", *configPath)
}

func writeDefaultConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

func mustFormat(s string) cli.OutputFormat {
	format, err := cli.ParseOutputFormat(s)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return format
}

// Components holds initialized services.
type Components struct {
	Storage      *storage.SQLiteStorage
	Embedder     embedding.Embedder
	Index        *search.Index
	KeywordIndex keyword.KeywordIndex
	Ingester     *ingest.Ingester
}

func (c *Components) Close() {
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	index, err := search.NewIndex(embedder,
		search.WithLogger(logger),
		search.WithContextPeers(cfg.Search.ContextPeers),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize similarity index: %w", err)
	}
	c.Index = index

	keywordIndex, err := keyword.NewBleveIndex("")
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = keywordIndex

	c.Ingester = ingest.NewIngester(index, store,
		ingest.WithKeywordIndex(keywordIndex),
		ingest.WithLogger(logger),
	)
	logger.Info("components initialized",
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Int("dimensions", index.Dimensions()),
		zap.String("database_path", store.Path()))
	return c, nil
}

func printUsage() {
	fmt.Println(`custsim - customer similarity store

Usage:
  custsim server [flags]              Start the HTTP server (holds the in-memory index)
  custsim ingest [flags] <file.json>  Ingest customers from a JSON file
  custsim search [flags] <query>      Find customers similar to a text or a customer record
  custsim context [flags] <id>        Show a customer and its most similar peers
  custsim lookup [flags] <terms>      Find customers by ID or history terms
  custsim batches [flags] [batch-id]  List ingestion batches, or show one
  custsim status [flags]              Show index and storage status
  custsim config init [flags]         Write a default config file
  custsim version                     Show version
  custsim help                        Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/custsim/config.yaml)
  --debug            Enable debug logging
  --seed string      JSON file of customers to ingest at startup

Client Flags (ingest, search, context, lookup, batches, status):
  --server string    Server URL (default: http://localhost:8080)
  --output string    Output format: text or json (default: text)

Search Flags:
  --limit int        Number of results (default: server default_limit)
  --customer string  Search by the customer record in this JSON file

Lookup Flags:
  --limit int        Number of results (default: 10)
  --fuzzy            Enable fuzzy matching (retried automatically when nothing matches)

Input files hold {"customers": [...]} or a bare array of
{"customer_id": "...", "interaction_history": [...], "purchase_history": [...]}.

Examples:
  custsim server --seed customers.json
  custsim ingest customers.json
  custsim context C-1042
  custsim search --limit 3 "returned a blender"
  custsim lookup espresso
  custsim batches --output json`)
}
