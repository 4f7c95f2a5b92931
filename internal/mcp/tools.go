package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/acolita/termengine/internal/config"
	"github.com/acolita/termengine/internal/prompt"
	"github.com/acolita/termengine/internal/session"
	"github.com/acolita/termengine/internal/vt"
	"github.com/charmbracelet/x/ansi"
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(shellSpawnTool(), s.handleShellSpawn)
	s.mcpServer.AddTool(shellInputTool(), s.handleShellInput)
	s.mcpServer.AddTool(shellReadTool(), s.handleShellRead)
	s.mcpServer.AddTool(shellResizeTool(), s.handleShellResize)
	s.mcpServer.AddTool(shellTerminateTool(), s.handleShellTerminate)
	s.mcpServer.AddTool(shellScreenTool(), s.handleShellScreen)
	s.mcpServer.AddTool(shellStatusTool(), s.handleShellStatus)
	s.registerCommandTools()
}

// Tool definitions

func shellSpawnTool() mcp.Tool {
	return mcp.NewTool("shell_spawn",
		mcp.WithDescription("Start an interactive shell on a new PTY. A running shell is terminated first."),
		mcp.WithString("shell",
			mcp.Description("Shell executable (default: configured shell, then $SHELL, then /bin/sh)"),
		),
		mcp.WithString("dir",
			mcp.Description("Initial working directory (default: the engine's directory)"),
		),
	)
}

func shellInputTool() mcp.Tool {
	return mcp.NewTool("shell_input",
		mcp.WithDescription("Send keystrokes to the shell"),
		mcp.WithString("input",
			mcp.Required(),
			mcp.Description("Bytes to write, e.g. 'ls -la' or '\\u0003' for Ctrl+C"),
		),
		mcp.WithBoolean("enter",
			mcp.Description("Append a carriage return (default: false)"),
		),
	)
}

func shellReadTool() mcp.Tool {
	return mcp.NewTool("shell_read",
		mcp.WithDescription("Collect shell output and events until wait_ms elapses or the shell exits"),
		mcp.WithNumber("wait_ms",
			mcp.Description(descWaitMs),
		),
		mcp.WithNumber("max_bytes",
			mcp.Description("Stop once this much output is collected; the rest stays queued (default: 65536)"),
		),
		mcp.WithBoolean("raw",
			mcp.Description("Also return the output with escape sequences intact (default: false)"),
		),
	)
}

func shellResizeTool() mcp.Tool {
	return mcp.NewTool("shell_resize",
		mcp.WithDescription("Change the terminal size seen by the shell"),
		mcp.WithNumber("rows",
			mcp.Required(),
			mcp.Description("Number of rows"),
		),
		mcp.WithNumber("cols",
			mcp.Required(),
			mcp.Description("Number of columns"),
		),
	)
}

func shellTerminateTool() mcp.Tool {
	return mcp.NewTool("shell_terminate",
		mcp.WithDescription("Terminate the shell and its process group"),
	)
}

func shellScreenTool() mcp.Tool {
	return mcp.NewTool("shell_screen",
		mcp.WithDescription("Return the visible terminal screen as text lines with the cursor position"),
		mcp.WithBoolean("full",
			mcp.Description("Keep trailing blank rows (default: false)"),
		),
	)
}

func shellStatusTool() mcp.Tool {
	return mcp.NewTool("shell_status",
		mcp.WithDescription("Describe the running shell: ID, program, size, title and directory"),
	)
}

// Tool handlers

func (s *Server) handleShellSpawn(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	shell := mcp.ParseString(req, "shell", "")
	dir := mcp.ParseString(req, "dir", "")

	if dir != "" {
		if msg := s.checkDir(dir); msg != "" {
			return mcp.NewToolResultError(msg), nil
		}
	}

	slog.Info("spawning shell",
		slog.String("shell", shell),
		slog.String("path", dir),
	)

	if _, err := s.shells.SpawnShell(shell, dir); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	info, err := s.shells.Info()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

// checkDir returns an error message when dir is not an existing directory.
func (s *Server) checkDir(dir string) string {
	fi, err := s.fs.Stat(dir)
	if err != nil {
		return fmt.Sprintf(errDirStat, err)
	}
	if !fi.IsDir() {
		return fmt.Sprintf(errNotDirectory, dir)
	}
	return ""
}

func (s *Server) handleShellInput(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input := mcp.ParseString(req, "input", "")
	enter := mcp.ParseBoolean(req, "enter", false)

	if enter {
		input += "\r"
	}
	if input == "" {
		return mcp.NewToolResultError(errInputRequired), nil
	}

	if err := s.shells.SendInput([]byte(input)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Sent %d bytes", len(input))), nil
}

// eventView is the JSON form of a non-output ShellEvent.
type eventView struct {
	Type    string `json:"type"`
	Code    *int32 `json:"code,omitempty"`
	Title   string `json:"title,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message,omitempty"`
}

// readResult is the shell_read response.
type readResult struct {
	Output   string      `json:"output"`
	Raw      string      `json:"raw,omitempty"`
	Events   []eventView `json:"events,omitempty"`
	Exited   bool        `json:"exited"`
	ExitCode *int32      `json:"exit_code,omitempty"`
	Closed   bool        `json:"closed,omitempty"`
	Prompt   *promptView `json:"prompt,omitempty"`
}

// promptView is a prompt the shell is waiting on.
type promptView struct {
	*prompt.Detection
	Hint string `json:"hint"`
}

// detectPrompt looks for a prompt at the cursor of snap.
func (s *Server) detectPrompt(snap vt.Snapshot) *promptView {
	lines := make([]string, snap.Rows)
	for row := range lines {
		lines[row] = snap.Line(row)
	}
	det := s.detector.Detect(lines, snap.Cursor.Row)
	if det == nil {
		return nil
	}
	return &promptView{Detection: det, Hint: det.Hint()}
}

func (s *Server) handleShellRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wait := time.Duration(mcp.ParseInt(req, "wait_ms", int(defaultReadWait/time.Millisecond))) * time.Millisecond
	maxBytes := mcp.ParseInt(req, "max_bytes", defaultMaxBytes)
	raw := mcp.ParseBoolean(req, "raw", false)

	wait = max(0, min(wait, maxReadWait))
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	timer := s.clock.After(wait)
	go func() {
		select {
		case <-timer:
			cancel()
		case <-readCtx.Done():
		}
	}()

	var (
		res readResult
		out []byte
	)
read:
	for len(out) < maxBytes {
		ev, err := s.shells.ReadOutput(readCtx)
		switch {
		case errors.Is(err, io.EOF):
			res.Closed = true
			break read
		case err != nil && readCtx.Err() != nil:
			break read
		case err != nil:
			return mcp.NewToolResultError(err.Error()), nil
		}

		switch e := ev.(type) {
		case session.Output:
			out = append(out, e.Bytes...)
		case session.Exited:
			res.Exited = true
			res.ExitCode = e.Code
			res.Events = append(res.Events, eventView{Type: "exited", Code: e.Code})
			break read
		case session.ErrorEvent:
			res.Events = append(res.Events, eventView{Type: "error", Message: e.Message})
		case session.TitleChanged:
			res.Events = append(res.Events, eventView{Type: "title_changed", Title: e.Title})
		case session.CwdChanged:
			res.Events = append(res.Events, eventView{Type: "cwd_changed", Path: e.Path})
		}
	}

	res.Output = ansi.Strip(string(out))
	if raw {
		res.Raw = string(out)
	}
	if !res.Closed {
		if snap, err := s.shells.Screen(); err == nil {
			res.Prompt = s.detectPrompt(snap)
		}
	}
	return jsonResult(res)
}

func (s *Server) handleShellResize(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rows := mcp.ParseInt(req, "rows", 0)
	cols := mcp.ParseInt(req, "cols", 0)

	if rows < 1 || rows > config.MaxRows || cols < 1 || cols > config.MaxCols {
		return mcp.NewToolResultError(fmt.Sprintf(errGeometry, min(config.MaxRows, config.MaxCols))), nil
	}

	if err := s.shells.ResizePty(uint16(rows), uint16(cols)); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Resized to %dx%d", cols, rows)), nil
}

func (s *Server) handleShellTerminate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.shells.TerminateShell(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Shell terminated"), nil
}

// cursorView is the cursor position in a shell_screen response.
type cursorView struct {
	Row     int  `json:"row"`
	Col     int  `json:"col"`
	Visible bool `json:"visible"`
}

// screenView is the shell_screen response.
type screenView struct {
	Rows   int         `json:"rows"`
	Cols   int         `json:"cols"`
	Cursor cursorView  `json:"cursor"`
	Title  string      `json:"title,omitempty"`
	Cwd    string      `json:"cwd,omitempty"`
	Lines  []string    `json:"lines"`
	Prompt *promptView `json:"prompt,omitempty"`
}

func (s *Server) handleShellScreen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	full := mcp.ParseBoolean(req, "full", false)

	snap, err := s.shells.Screen()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	lines := make([]string, snap.Rows)
	for row := range lines {
		lines[row] = snap.Line(row)
	}
	if !full {
		// Trailing blank rows carry nothing, but never cut above the cursor.
		keep := len(lines)
		for keep > snap.Cursor.Row+1 && strings.TrimSpace(lines[keep-1]) == "" {
			keep--
		}
		lines = lines[:keep]
	}

	return jsonResult(screenView{
		Rows: snap.Rows,
		Cols: snap.Cols,
		Cursor: cursorView{
			Row:     snap.Cursor.Row,
			Col:     snap.Cursor.Col,
			Visible: snap.Cursor.Visible,
		},
		Title:  snap.Title,
		Cwd:    snap.Cwd,
		Lines:  lines,
		Prompt: s.detectPrompt(snap),
	})
}

func (s *Server) handleShellStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.shells.Info()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(info)
}

// jsonResult converts a value to a JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
