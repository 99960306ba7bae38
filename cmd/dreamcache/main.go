// Package main is the dreamcache CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/dreamcache/internal/cache"
	"github.com/hyperjump/dreamcache/internal/cli"
	"github.com/hyperjump/dreamcache/internal/config"
	"github.com/hyperjump/dreamcache/internal/embedding"
	"github.com/hyperjump/dreamcache/internal/generation"
	"github.com/hyperjump/dreamcache/internal/keyword"
	"github.com/hyperjump/dreamcache/internal/ranking"
	"github.com/hyperjump/dreamcache/internal/server"
	"github.com/hyperjump/dreamcache/internal/store"
	"github.com/hyperjump/dreamcache/internal/vector"
	"github.com/hyperjump/dreamcache/internal/watcher"
	"github.com/hyperjump/dreamcache/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/dreamcache/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
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
	case "suggest":
		runSuggest()
	case "image":
		runImage()
	case "prompts":
		runPrompts()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("dreamcache version %s\n", version)
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

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Storage.WatchDirectory && cfg.Storage.Backend == "filesystem" {
		ranker := components.Ranker
		watchSvc = watcher.NewWatcher(cfg.Storage.Directory,
			func(ctx context.Context, id string) {
				ranker.Invalidate(ctx, id)
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Orchestrator,
		components.Contents,
		components.VectorIndex,
		&cfg.Server,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if mem, ok := components.VectorIndex.(*vector.MemoryIndex); ok && cfg.Vector.IndexPath != "" {
		if err := mem.Save(cfg.Vector.IndexPath); err != nil {
			logger.Warn("vector index save failed", zap.String("path", cfg.Vector.IndexPath), zap.Error(err))
		}
	}
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildPrompt joins all positional args with spaces so multi-word prompts
// work the same with or without shell quoting.
func buildPrompt(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func parseOutputFormat(raw string) (cli.OutputFormat, error) {
	switch raw {
	case "json":
		return cli.OutputJSON, nil
	case "text":
		return cli.OutputText, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", raw)
}

func runSuggest() {
	fs := flag.NewFlagSet("suggest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local components)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: dreamcache suggest [flags] <text>")
		os.Exit(1)
	}
	text := buildPrompt(fs.Args())
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var suggestions []ranking.Suggestion
	if *serverURL != "" {
		suggestions, err = suggestViaHTTP(*serverURL, text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		suggestions, err = components.Orchestrator.Suggest(context.Background(), text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Suggest failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteSuggestions(os.Stdout, suggestions, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func suggestViaHTTP(serverURL, text string) ([]ranking.Suggestion, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/suggest", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Suggestions []ranking.Suggestion `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Suggestions, nil
}

func runImage() {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local components)")
	outDir := fs.String("out", ".", "directory to write returned images to")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: dreamcache image [flags] <prompt>")
		os.Exit(1)
	}
	prompt := buildPrompt(fs.Args())
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var images [][]byte
	summary := &cli.ImageSummary{Prompt: prompt}
	if *serverURL != "" {
		resp, err := imagesViaHTTP(*serverURL, prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Image request failed: %v\n", err)
			os.Exit(1)
		}
		for _, enc := range resp.Images {
			img, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Bad image in response: %v\n", err)
				os.Exit(1)
			}
			images = append(images, img)
		}
		summary.Hit = resp.Hit
		summary.CommitStage = resp.CommitStage
		summary.Scores = resp.Scores
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		res, err := components.Orchestrator.FetchOrCreate(context.Background(), prompt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Image request failed: %v\n", err)
			os.Exit(1)
		}
		images = res.Images
		summary.Hit = res.Hit
		summary.Scores = res.Scores
		if res.Commit != nil {
			summary.CommitStage = res.Commit.Stage.String()
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}
	for i, img := range images {
		path := filepath.Join(*outDir, fmt.Sprintf("%02d.png", i+1))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
		summary.Paths = append(summary.Paths, path)
	}

	if err := cli.WriteImageSummary(os.Stdout, summary, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

type imagesHTTPResponse struct {
	Images      []string  `json:"images"`
	Scores      []float64 `json:"scores"`
	Hit         bool      `json:"hit"`
	CommitStage string    `json:"commit_stage"`
}

func imagesViaHTTP(serverURL, prompt string) (*imagesHTTPResponse, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/images", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out imagesHTTPResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runPrompts() {
	fs := flag.NewFlagSet("prompts", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local components)")
	limit := fs.Int("limit", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: dreamcache prompts [flags] <query>")
		os.Exit(1)
	}
	query := buildPrompt(fs.Args())
	format, err := parseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	var hits []keyword.PromptHit
	if *serverURL != "" {
		hits, err = promptsViaHTTP(*serverURL, query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Prompt search failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		hits, err = components.Orchestrator.SearchPrompts(context.Background(), query, *limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Prompt search failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WritePromptHits(os.Stdout, hits, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func promptsViaHTTP(serverURL, query string, limit int) ([]keyword.PromptHit, error) {
	u := fmt.Sprintf("%s/api/v1/prompts/search?q=%s&limit=%d", serverURL, url.QueryEscape(query), limit)
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Hits []keyword.PromptHit `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Hits, nil
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Artifacts       int64 `json:"artifacts"`
	VectorIndexSize int   `json:"vector_index_size"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = use local components)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		components := mustInitialize(*configPath)
		defer components.Close()
		ctx := context.Background()
		if counter, ok := components.Contents.(store.Counter); ok {
			n, err := counter.Count(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Artifact count failed: %v\n", err)
				os.Exit(1)
			}
			status.Artifacts = n
		}
		if sizer, ok := components.VectorIndex.(vector.Sizer); ok {
			status.VectorIndexSize = sizer.Size()
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		fmt.Printf("artifacts:          %d   # cached images in the content store\n", status.Artifacts)
		fmt.Printf("vector_index_size:  %d   # embeddings in the vector index\n", status.VectorIndexSize)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// Components holds initialized services.
type Components struct {
	Contents     store.ContentStore
	Embedder     embedding.Embedder
	VectorIndex  vector.Index
	PromptIndex  keyword.PromptIndex
	Generator    generation.Generator
	Ranker       *ranking.Ranker
	Orchestrator *cache.Orchestrator
}

func (c *Components) Close() {
	if c.Contents != nil {
		_ = c.Contents.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.PromptIndex != nil {
		_ = c.PromptIndex.Close()
	}
	if c.Generator != nil {
		_ = c.Generator.Close()
	}
}

func mustInitialize(configPath string) *Components {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	ctx := context.Background()

	contents, err := newContentStore(ctx, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content store: %w", err)
	}

	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.Embedding.Dimensions,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, using deterministic mock", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = onnxEmbedder
	}

	vectorIndex, err := newVectorIndex(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	var promptIndex keyword.PromptIndex
	if cfg.Cache.PromptIndexPath != "" {
		bleveIdx, err := keyword.NewBleveIndex(cfg.Cache.PromptIndexPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize prompt index: %w", err)
		}
		promptIndex = bleveIdx
	}

	var gen generation.Generator
	if cfg.Generator.Endpoint != "" {
		gen = generation.NewHTTPGenerator(
			cfg.Generator.Endpoint,
			cfg.Generator.AuthToken,
			time.Duration(cfg.Generator.TimeoutSeconds)*time.Second,
		)
	} else {
		logger.Warn("no generator endpoint configured, using deterministic mock")
		gen = generation.NewMockGenerator()
	}

	rankerOpts := []ranking.RankerOption{ranking.WithLogger(logger)}
	if promptIndex != nil {
		pi := promptIndex
		rankerOpts = append(rankerOpts, ranking.WithInvalidateHook(func(ctx context.Context, id string) {
			if err := pi.Delete(ctx, id); err != nil {
				logger.Warn("prompt index cleanup failed", zap.String("id", id), zap.Error(err))
			}
		}))
	}
	ranker := ranking.NewRanker(contents, vectorIndex, cfg.Cache.MinPromptLength, cfg.Cache.MaxSuggestions, rankerOpts...)

	orchOpts := []cache.Option{cache.WithLogger(logger)}
	if promptIndex != nil {
		orchOpts = append(orchOpts, cache.WithPromptIndex(promptIndex))
	}
	orch := cache.NewOrchestrator(embedder, vectorIndex, contents, gen, ranker, &cfg.Cache, orchOpts...)

	return &Components{
		Contents:     contents,
		Embedder:     embedder,
		VectorIndex:  vectorIndex,
		PromptIndex:  promptIndex,
		Generator:    gen,
		Ranker:       ranker,
		Orchestrator: orch,
	}, nil
}

func newContentStore(ctx context.Context, cfg *config.StorageConfig) (store.ContentStore, error) {
	switch cfg.Backend {
	case "sqlite", "":
		return store.NewSQLiteStore(cfg.DatabasePath)
	case "filesystem":
		return store.NewFSStore(cfg.Directory)
	case "gcs":
		return store.NewGCSStore(ctx, cfg.Bucket)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func newVectorIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) (vector.Index, error) {
	switch cfg.Vector.Backend {
	case "memory", "":
		idx, err := vector.NewMemoryIndex(cfg.Embedding.Dimensions)
		if err != nil {
			return nil, err
		}
		if cfg.Vector.IndexPath != "" {
			if loadErr := idx.Load(cfg.Vector.IndexPath); loadErr != nil {
				logger.Warn("vector index load skipped", zap.String("path", cfg.Vector.IndexPath), zap.Error(loadErr))
			}
		}
		return idx, nil
	case "pinecone":
		pcfg := vector.PineconeConfig{
			APIKey:    cfg.Vector.Pinecone.ResolveAPIKey(),
			IndexHost: cfg.Vector.Pinecone.IndexHost,
			Namespace: cfg.Vector.Pinecone.Namespace,
		}
		dial := func(ctx context.Context) (vector.Index, error) {
			return vector.DialPinecone(ctx, pcfg)
		}
		idx, err := dial(ctx)
		if err != nil {
			return nil, err
		}
		return vector.NewReconnecting(idx, dial, logger), nil
	}
	return nil, fmt.Errorf("unknown vector backend %q", cfg.Vector.Backend)
}

func printUsage() {
	fmt.Println(`dreamcache - Semantic cache for generated images

Usage:
  dreamcache server [flags]            Start the HTTP server
  dreamcache suggest [flags] <text>    Suggest cached prompts similar to text
  dreamcache image [flags] <prompt>    Fetch cached images or generate a new one
  dreamcache prompts [flags] <query>   Keyword-search cached prompts
  dreamcache status [flags]            Show store and index status
  dreamcache version                   Show version
  dreamcache help                      Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/dreamcache/config.yaml)
  --debug            Enable debug logging

Suggest Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local components.
  --output string    Output format: text or json (default: text)

Image Flags:
  --config string    Config file path (for local mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local components.
  --out string       Directory to write returned images to (default: .)
  --output string    Output format: text or json (default: text)

Prompts Flags:
  --server string    Server URL (default: http://localhost:8080)
  --limit int        Number of results (default: 10)
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for local components.
  --output string    Output format: text or json (default: text)

Examples:
  dreamcache server
  dreamcache suggest "a castle on a hill"
  dreamcache image --out ./out "a red bicycle against a wall"
  dreamcache image --output json "a red bicycle"
  dreamcache prompts castle
  dreamcache status --output json`)
}
