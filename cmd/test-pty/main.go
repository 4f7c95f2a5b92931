// Command test-pty spawns a shell through the supervisor and prints the
// events and screen it produces. It is a manual smoke check.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/acolita/termengine/internal/session"
)

func main() {
	fmt.Println("Spawning shell...")

	sup := session.NewSupervisor()
	defer sup.Close()

	id, err := sup.SpawnShell("", "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error spawning shell: %v\n", err)
		os.Exit(1)
	}
	info, _ := sup.Info()
	fmt.Printf("Session %s started\n", info)

	// Drain initial output
	fmt.Println("Draining initial output...")
	if out := drain(sup, 500*time.Millisecond, ""); out != "" {
		fmt.Printf("Initial output (%d bytes): %q\n", len(out), out)
	}

	// Send a simple command
	fmt.Println("\nSending: echo test")
	if err := sup.SendInput([]byte("echo test\r")); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending input: %v\n", err)
		os.Exit(1)
	}

	out := drain(sup, 2*time.Second, "test\r\n")
	fmt.Printf("Output (%d bytes): %q\n", len(out), out)

	if err := sup.ResizePty(30, 100); err != nil {
		fmt.Printf("Resize error: %v\n", err)
	}

	snap, err := sup.Screen()
	if err == nil {
		fmt.Printf("\nScreen (%dx%d, cursor %d,%d):\n%s\n", snap.Cols, snap.Rows, snap.Cursor.Row, snap.Cursor.Col, snap.Text())
	}

	if err := sup.TerminateShell(); err != nil {
		fmt.Printf("Terminate error: %v\n", err)
	}
	fmt.Printf("\nPTY test complete! (%s)\n", id)
}

// drain collects output until want appears, the shell exits or d elapses.
func drain(sup *session.Supervisor, d time.Duration, want string) string {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	var b strings.Builder
	for {
		ev, err := sup.ReadOutput(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, context.DeadlineExceeded) {
				fmt.Printf("Read error: %v\n", err)
			}
			return b.String()
		}
		switch e := ev.(type) {
		case session.Output:
			b.Write(e.Bytes)
			if want != "" && strings.Contains(b.String(), want) {
				return b.String()
			}
		case session.Exited:
			fmt.Printf("Shell %s\n", e)
			return b.String()
		case session.ErrorEvent:
			fmt.Printf("Session error: %s\n", e.Message)
		}
	}
}
