// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/kotae/internal/ask"
	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/compiler"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/settings"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kotae server" from the project dir uses the project's config (including debug).
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
	// Credentials may live in a .env next to the binary; missing file is fine.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "compile":
		runCompile()
	case "truncate":
		runTruncate()
	case "stats":
		runStats()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services for direct (serverless) commands.
type Components struct {
	Config        *config.Config
	Layout        storage.Layout
	Settings      *settings.Store
	Groups        *storage.GroupStore
	Conversations *storage.ConversationStore
	Files         *storage.FileStore
	Messages      *storage.MessageLog
	Debug         *storage.DebugLog
	Compiler      *compiler.Compiler
	Ask           *ask.Service
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) *Components {
	layout := storage.Layout{Root: cfg.Files.Root}
	settingsStore := settings.NewStore(cfg.Files.Root)
	groups := storage.NewGroupStore(layout)
	files := storage.NewFileStore(layout, groups)
	messages := storage.NewMessageLog(layout)
	debug := storage.NewDebugLog(layout)
	comp := compiler.New(cfg, files, settingsStore, compiler.WithLogger(logger))
	askSvc := ask.New(cfg, settingsStore, messages, debug, ask.WithLogger(logger))
	return &Components{
		Config:        cfg,
		Layout:        layout,
		Settings:      settingsStore,
		Groups:        groups,
		Conversations: storage.NewConversationStore(layout),
		Files:         files,
		Messages:      messages,
		Debug:         debug,
		Compiler:      comp,
		Ask:           askSvc,
	}
}

func mustSetup(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))
	return cfg, logger, initializeComponents(cfg, logger)
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

	components := initializeComponents(cfg, logger)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Enabled {
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		if cfg.Watch.DebounceSeconds > 0 {
			watchOpts = append(watchOpts,
				watcher.WithDebounce(time.Duration(cfg.Watch.DebounceSeconds)*time.Second))
		}
		var watchSvc *watcher.Watcher
		watchSvc = watcher.New(components.Layout.GroupsDir(), func() {
			if !cfg.Watch.AutoCompile {
				logger.Info("documents changed, index is stale")
				return
			}
			result, err := components.Compiler.Compile(context.Background())
			if err != nil {
				logger.Warn("auto compile failed", zap.Error(err))
				return
			}
			watchSvc.MarkCompiled()
			logger.Info("auto compile finished",
				zap.Int("documents", result.Documents),
				zap.Int("chunks", result.Chunks))
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(cfg, server.Deps{
		Ask:           components.Ask,
		Compiler:      components.Compiler,
		Settings:      components.Settings,
		Conversations: components.Conversations,
		Groups:        components.Groups,
		Files:         components.Files,
		Messages:      components.Messages,
		Debug:         components.Debug,
	}, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// askArgsReorder moves any flags (and their values) that appear after the
// question to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func askArgsReorder(args []string) []string {
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

func runAsk() {
	askArgs := askArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer directly without a server)")
	conversation := fs.String("conversation", "", "conversation id (required)")
	group := fs.String("group", "", "restrict retrieval to one document group")
	apiKey := fs.String("key", "", "API key override for this call")
	direct := fs.Bool("direct", false, "skip document retrieval and answer directly")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(askArgs)

	question := buildQuestion(fs.Args())
	if question == "" || *conversation == "" {
		fmt.Println("Usage: kotae ask --conversation <id> [flags] <question>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	req := ask.Request{
		ConversationID: *conversation,
		Question:       question,
		APIKey:         *apiKey,
		WebSearch:      *direct,
		GroupID:        *group,
	}

	var answer ask.Answer
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/rag/ask", req, &answer); err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components := mustSetup(*configPath)
		defer logger.Sync()
		answer, err = components.Ask.Ask(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, &answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runCompile() {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = compile directly without a server)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var result compiler.Result
	if *serverURL != "" {
		if err := postJSON(*serverURL+"/api/rag/compile", nil, &result); err != nil {
			fmt.Fprintf(os.Stderr, "Compile failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components := mustSetup(*configPath)
		defer logger.Sync()
		result, err = components.Compiler.Compile(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Compile failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteCompileResult(os.Stdout, &result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runTruncate() {
	fs := flag.NewFlagSet("truncate", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = truncate directly without a server)")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		var out map[string]interface{}
		if err := postJSON(*serverURL+"/api/rag/truncate", nil, &out); err != nil {
			fmt.Fprintf(os.Stderr, "Truncate failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components := mustSetup(*configPath)
		defer logger.Sync()
		if err := components.Compiler.Truncate(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "Truncate failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("Vector store truncated. Source documents are untouched.")
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = read directly without a server)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var stats compiler.Stats
	if *serverURL != "" {
		if err := getJSON(*serverURL+"/api/rag/stats", &stats); err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		_, logger, components := mustSetup(*configPath)
		defer logger.Sync()
		stats, err = components.Compiler.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStats(os.Stdout, &stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	resp, err := http.Post(url, "application/json", reader)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func getJSON(url string, out interface{}) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func printUsage() {
	fmt.Println(`kotae - document-grounded chat over your own files

Usage:
  kotae server [flags]                 Start the HTTP server
  kotae ask [flags] <question>         Ask a question in a conversation
  kotae compile [flags]                Compile uploaded documents into the vector store
  kotae truncate [flags]               Clear the vector store (keeps source documents)
  kotae stats [flags]                  Show corpus statistics
  kotae version                        Show version
  kotae help                           Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --conversation string   Conversation id (required)
  --group string          Restrict retrieval to one document group
  --key string            API key override for this call
  --direct                Skip document retrieval and answer directly
  --server string         Server URL (default: http://localhost:8080). Use empty (--server "") to answer without a running server.
  --output string         Output format: text or json (default: text)

Compile / Truncate / Stats Flags:
  --config string    Config file path (for direct mode)
  --server string    Server URL (default: http://localhost:8080). Use empty (--server "") for direct mode.
  --output string    Output format: text or json (default: text)

Examples:
  kotae server
  kotae ask --conversation 42 what does the onboarding doc say about laptops?
  kotae ask --conversation 42 --direct hello there
  kotae compile
  kotae stats --output json
  kotae truncate --server ""`)
}
