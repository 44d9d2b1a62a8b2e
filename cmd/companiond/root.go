package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"companiond/internal/catalog"
	"companiond/internal/config"
	"companiond/internal/llm"
	"companiond/internal/logging"
	"companiond/internal/manager"
	"companiond/internal/storage"
)

var lookupEnv = os.LookupEnv

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configPath string
	envFile    string
	logLevel   string
	logFile    string
	modelsDir  string
	catalog    string
	runtime    string
	llamaBin   string
	serverURL  string
	threads    int
}

func newRootCmd() *cobra.Command { return newRootCmdWith(&globalFlags{}) }

// newRootCmdWith builds the command tree with its flags bound to g.
func newRootCmdWith(g *globalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:           "companiond",
		Short:         "On-device LLM companion: model selection, chat sessions and an HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (.yaml/.yml/.json/.toml)")
	pf.StringVar(&g.envFile, "env", ".env", "Path to a .env file (ignored if missing)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug|info|warn|error|off")
	pf.StringVar(&g.logFile, "log-file", "", "Also write JSON logs to this file (rotated)")
	pf.StringVar(&g.modelsDir, "models-dir", "", "Directory scanned for *.gguf files")
	pf.StringVar(&g.catalog, "catalog", "", "Catalog file describing models")
	pf.StringVar(&g.runtime, "runtime", "", "Runtime: llama (in-process) or server (llama-server)")
	pf.StringVar(&g.llamaBin, "llama-bin", "", "llama-server binary (default: PATH lookup)")
	pf.StringVar(&g.serverURL, "server-url", "", "Attach to a running llama-server instead of spawning one")
	pf.IntVar(&g.threads, "threads", 0, "Inference threads (0 = runtime default)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return loadDotEnv(g.envFile)
	}

	root.AddCommand(newServeCmd(g), newChatCmd(g), newModelsCmd(g))
	return root
}

// loadDotEnv loads environment variables from path. A missing file is not
// an error so .env stays optional.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveConfig layers the config file, COMPANIOND_* variables and the flags
// that were explicitly set, in that order.
func resolveConfig(cmd *cobra.Command, g *globalFlags, lookup func(string) (string, bool)) (config.Config, error) {
	var cfg config.Config
	if g.configPath != "" {
		c, err := config.Load(g.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = c
	}
	cfg, err := cfg.ApplyEnv(lookup)
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("log-level", &cfg.LogLevel, g.logLevel)
	set("log-file", &cfg.LogFile, g.logFile)
	set("models-dir", &cfg.ModelsDir, g.modelsDir)
	set("catalog", &cfg.Catalog, g.catalog)
	set("runtime", &cfg.Runtime, g.runtime)
	set("llama-bin", &cfg.LlamaBin, g.llamaBin)
	set("server-url", &cfg.ServerURL, g.serverURL)
	if flags.Changed("threads") {
		cfg.Threads = g.threads
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}

// app is the wired process: logger, catalog, runtime and manager.
type app struct {
	cfg     config.Config
	log     zerolog.Logger
	mgr     *manager.Manager
	closeFn func() error
}

func (a *app) Close() {
	a.mgr.Shutdown()
	if a.closeFn != nil {
		_ = a.closeFn()
	}
}

// buildCatalog merges the catalog file with the *.gguf files found in the
// models directory. A missing models directory only yields a warning.
func buildCatalog(cfg config.Config, log zerolog.Logger) ([]catalog.Descriptor, error) {
	var primary []catalog.Descriptor
	if cfg.Catalog != "" {
		ds, err := catalog.LoadFile(cfg.Catalog)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		primary = ds
	}
	scanned, err := catalog.ScanDir(cfg.ModelsDir)
	if err != nil {
		log.Warn().Err(err).Str("dir", cfg.ModelsDir).Msg("models dir not scanned")
	}
	return catalog.Merge(primary, scanned), nil
}

func newApp(cfg config.Config, console bool) (*app, error) {
	log, closeFn, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile, Console: console})
	if err != nil {
		return nil, err
	}
	models, err := buildCatalog(cfg, log)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	store, err := storage.NewFSStore(cfg.ModelsDir)
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	if err := store.EnsureRoot(); err != nil {
		log.Warn().Err(err).Str("dir", store.Root()).Msg("models dir not created")
	}
	rt, err := llm.NewRuntime(llm.RuntimeConfig{
		Kind:    cfg.Runtime,
		Threads: cfg.Threads,
		Server: llm.ServerConfig{
			Bin:     cfg.LlamaBin,
			BaseURL: cfg.ServerURL,
			Logger:  log.With().Str("component", "llama-server").Logger(),
		},
	})
	if err != nil {
		_ = closeFn()
		return nil, err
	}
	mgr := manager.NewWithConfig(manager.ManagerConfig{
		Catalog:        models,
		Store:          store,
		Runtime:        rt,
		ReservedTokens: cfg.ReservedTokens,
		Logger:         log,
	})
	log.Info().Int("models", len(models)).Str("runtime", rt.Name()).Str("models_dir", store.Root()).Msg("catalog ready")
	return &app{cfg: cfg, log: log, mgr: mgr, closeFn: closeFn}, nil
}
