// Package mcp exposes the terminal engine as MCP tools over stdio.
package mcp

import (
	"log/slog"

	"github.com/acolita/termengine/internal/adapters/realclock"
	"github.com/acolita/termengine/internal/adapters/realfs"
	"github.com/acolita/termengine/internal/config"
	"github.com/acolita/termengine/internal/logging"
	"github.com/acolita/termengine/internal/ports"
	"github.com/acolita/termengine/internal/prompt"
	"github.com/acolita/termengine/internal/recording"
	"github.com/acolita/termengine/internal/recovery"
	"github.com/acolita/termengine/internal/security"
	"github.com/mark3labs/mcp-go/server"
)

const serverName = "termengine"

// Server wraps the MCP server implementation.
type Server struct {
	mcpServer *server.MCPServer
	shells    Shells
	commands  Commands

	commandFilter    *security.CommandFilter
	dirPolicy        *security.DirPolicy
	recordingManager *recording.Manager
	detector         *prompt.Detector
	analyzer         *recovery.Analyzer

	fs    ports.FileSystem
	clock ports.Clock
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithFileSystem sets the filesystem used by Server.
func WithFileSystem(fs ports.FileSystem) ServerOption {
	return func(s *Server) {
		s.fs = fs
	}
}

// WithClock sets the clock used to bound shell_read.
func WithClock(clock ports.Clock) ServerOption {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithPolicy registers the policy objects UpdateConfig refreshes. Either
// may be nil.
func WithPolicy(filter *security.CommandFilter, dirs *security.DirPolicy) ServerOption {
	return func(s *Server) {
		s.commandFilter = filter
		s.dirPolicy = dirs
	}
}

// WithRecordingManager registers the recorder UpdateConfig switches on and off.
func WithRecordingManager(m *recording.Manager) ServerOption {
	return func(s *Server) {
		s.recordingManager = m
	}
}

// WithPromptPattern adds a prompt pattern tried before the built-in ones.
func WithPromptPattern(p prompt.Pattern) ServerOption {
	return func(s *Server) {
		s.detector.AddPattern(p)
	}
}

// NewServer creates an MCP server over the given session and command APIs.
func NewServer(version string, shells Shells, commands Commands, opts ...ServerOption) *Server {
	mcpServer := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer: mcpServer,
		shells:    shells,
		commands:  commands,
		detector:  prompt.NewDetector(),
		analyzer:  recovery.NewAnalyzer(),
		fs:        realfs.New(),
		clock:     realclock.New(),
	}

	// Apply options
	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio transport.
func (s *Server) Run() error {
	slog.Info("starting MCP server on stdio transport")
	return server.ServeStdio(s.mcpServer)
}

// UpdateConfig applies a new configuration at runtime.
// Policy, log level and recording on/off are hot-reloaded; shell, terminal
// and runner settings take effect on restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	slog.Debug("applying config update")

	logging.SetLevel(cfg.Logging.Level)

	if s.commandFilter != nil {
		if err := s.commandFilter.Update(cfg.Security.CommandBlocklist, cfg.Security.CommandAllowlist); err != nil {
			slog.Warn("failed to update command filter, keeping previous",
				slog.String("error", err.Error()),
			)
		} else {
			slog.Debug("command filter updated")
		}
	}

	if s.dirPolicy != nil {
		if err := s.dirPolicy.Update(cfg.Security.AllowedDirs); err != nil {
			slog.Warn("failed to update directory policy, keeping previous",
				slog.String("error", err.Error()),
			)
		} else {
			slog.Debug("directory policy updated")
		}
	}

	if s.recordingManager != nil {
		s.recordingManager.SetEnabled(cfg.Recording.Enabled)
	}

	slog.Info("configuration hot-reloaded successfully")
}
