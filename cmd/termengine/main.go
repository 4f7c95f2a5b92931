// termengine is an MCP server driving an interactive shell on a PTY and
// running one-shot commands.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/acolita/termengine/internal/config"
	"github.com/acolita/termengine/internal/logging"
	"github.com/acolita/termengine/internal/mcp"
	"github.com/acolita/termengine/internal/recording"
	"github.com/acolita/termengine/internal/runner"
	"github.com/acolita/termengine/internal/security"
	"github.com/acolita/termengine/internal/session"
)

// Version information - set at build time.
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		shell       string
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file (default: $XDG_CONFIG_HOME/termengine/config.yaml)")
	flag.StringVar(&shell, "shell", "", "Shell for interactive sessions (overrides config)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging, including PTY traffic previews")
	flag.Parse()

	if showVersion {
		fmt.Printf("termengine version %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	if configPath == "" {
		configPath = config.DefaultConfigPath()
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Override from command line if provided
	if shell != "" {
		cfg.Shell.Path = shell
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize)

	slog.Info("starting termengine",
		slog.String("version", Version),
		slog.String("path", configPath),
	)

	commandFilter, err := security.NewCommandFilter(cfg.Security.CommandBlocklist, cfg.Security.CommandAllowlist)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid command policy: %v\n", err)
		os.Exit(1)
	}
	dirPolicy, err := security.NewDirPolicy(cfg.Security.AllowedDirs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid directory policy: %v\n", err)
		os.Exit(1)
	}

	recordingManager := recording.NewManager(cfg.Recording.Path, cfg.Recording.Enabled,
		recording.WithHeaderEnv(cfg.Shell.Path, cfg.Terminal.Term),
	)

	supervisor := session.NewSupervisor(
		session.WithShell(cfg.Shell.Path, cfg.Shell.Args...),
		session.WithEnv(cfg.Shell.Env),
		session.WithTerm(cfg.Terminal.Term),
		session.WithSize(uint16(cfg.Terminal.Rows), uint16(cfg.Terminal.Cols)),
		session.WithRecording(recordingManager, cfg.Recording.MaskInput),
		session.WithDirChecker(dirPolicy),
	)

	commands := runner.New(
		runner.WithCommandChecker(commandFilter),
		runner.WithDirChecker(dirPolicy),
		runner.WithDefaultTimeout(cfg.Runner.Timeout),
		runner.WithChunkSize(cfg.Runner.ChunkSize),
	)

	// Create MCP server
	server := mcp.NewServer(Version, supervisor, commands,
		mcp.WithPolicy(commandFilter, dirPolicy),
		mcp.WithRecordingManager(recordingManager),
	)

	// Set up config hot-reload if the config file's directory exists
	var configWatcher *config.Watcher
	if configPath != "" {
		var watcherErr error
		configWatcher, watcherErr = config.NewWatcher(configPath, func(newCfg *config.Config) {
			// Apply command line overrides to new config
			if debug {
				newCfg.Logging.Level = "debug"
			}
			server.UpdateConfig(newCfg)
		})
		if watcherErr != nil {
			slog.Warn("config hot-reload disabled",
				slog.String("error", watcherErr.Error()),
			)
		} else {
			slog.Info("config hot-reload enabled",
				slog.String("path", configPath),
			)
		}
	}

	shutdown := func() {
		if configWatcher != nil {
			configWatcher.Close()
		}
		if err := supervisor.Close(); err != nil {
			slog.Warn("terminate shell failed", slog.String("error", err.Error()))
		}
		recordingManager.CloseAll()
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("received shutdown signal")
		shutdown()
		os.Exit(0)
	}()

	// Run the server
	if err := server.Run(); err != nil {
		slog.Error("server error", slog.String("error", err.Error()))
		shutdown()
		os.Exit(1)
	}
	shutdown()
}
