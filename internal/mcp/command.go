package mcp

import (
	"context"
	"log/slog"
	"time"

	"github.com/acolita/termengine/internal/recovery"
	"github.com/acolita/termengine/internal/runner"
	"github.com/charmbracelet/x/ansi"
	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerCommandTools() {
	s.mcpServer.AddTool(commandExecuteTool(), s.handleCommandExecute)
}

func commandExecuteTool() mcp.Tool {
	return mcp.NewTool("command_execute",
		mcp.WithDescription("Run a one-shot command through the shell with pipes (no PTY) and return its output and outcome"),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The command line to run"),
		),
		mcp.WithString("dir",
			mcp.Description("Working directory (default: the engine's directory)"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description(descTimeoutMs),
		),
	)
}

// commandResult is the command_execute response.
type commandResult struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
	ExitCode    int    `json:"exit_code"`
	Stdout      string `json:"stdout"`
	Stderr      string `json:"stderr"`
	Message     string `json:"message,omitempty"`
	DurationMs  int64  `json:"duration_ms"`

	Suggestions []recovery.Suggestion `json:"suggestions,omitempty"`
}

func (s *Server) handleCommandExecute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	command := mcp.ParseString(req, "command", "")
	dir := mcp.ParseString(req, "dir", "")
	timeoutMs := mcp.ParseInt(req, "timeout_ms", 0)

	if command == "" {
		return mcp.NewToolResultError(errCommandRequired), nil
	}
	if dir != "" {
		if msg := s.checkDir(dir); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
	}

	slog.Info("executing command",
		slog.String("command", command),
		slog.String("path", dir),
	)

	start := s.clock.Now()
	exec, err := s.commands.RunShell(ctx, command, runner.ShellOptions{
		Dir:     dir,
		Timeout: time.Duration(max(0, timeoutMs)) * time.Millisecond,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := runner.Collect(exec.Status)

	out := commandResult{
		ExecutionID: exec.ID,
		Status:      res.Status.State.String(),
		ExitCode:    res.ExitCode(),
		Stdout:      ansi.Strip(string(res.Stdout)),
		Stderr:      ansi.Strip(string(res.Stderr)),
		Message:     res.Status.Message,
		DurationMs:  s.clock.Now().Sub(start).Milliseconds(),
	}
	if res.Status.State == runner.StateCompleted {
		out.Suggestions = s.analyzer.Analyze(out.Stderr+"\n"+out.Stdout, out.ExitCode)
	}
	return jsonResult(out)
}
