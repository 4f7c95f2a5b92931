// Package security decides which commands the engine may run and where.
package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// ErrBlocked is returned when a command or directory is rejected by policy.
var ErrBlocked = errors.New("blocked by policy")

// CommandFilter checks shell command lines against regex block and allow
// lists. A line is split into the commands it chains with ; && || | & and
// newlines. The blocklist rejects the line if it matches the whole line or
// any command; a non-empty allowlist must match every command.
type CommandFilter struct {
	mu    sync.RWMutex
	block []*regexp.Regexp
	allow []*regexp.Regexp
}

// NewCommandFilter compiles the given patterns.
func NewCommandFilter(blocklist, allowlist []string) (*CommandFilter, error) {
	f := &CommandFilter{}
	if err := f.Update(blocklist, allowlist); err != nil {
		return nil, err
	}
	return f, nil
}

// Update replaces both lists. On error the filter is unchanged.
func (f *CommandFilter) Update(blocklist, allowlist []string) error {
	block, err := compileAll("blocklist", blocklist)
	if err != nil {
		return err
	}
	allow, err := compileAll("allowlist", allowlist)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.block, f.allow = block, allow
	return nil
}

func compileAll(list string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", list, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Check returns an error wrapping ErrBlocked when line is not allowed.
// A nil filter allows everything.
func (f *CommandFilter) Check(line string) error {
	if f == nil {
		return nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	cmds := Split(line)
	for _, text := range append([]string{line}, cmds...) {
		if re := firstMatch(f.block, text); re != nil {
			return fmt.Errorf("%w: %q matches %s", ErrBlocked, text, re)
		}
	}
	if len(f.allow) == 0 {
		return nil
	}
	for _, cmd := range cmds {
		if firstMatch(f.allow, cmd) == nil {
			return fmt.Errorf("%w: %q is not in the allowlist", ErrBlocked, cmd)
		}
	}
	return nil
}

func firstMatch(res []*regexp.Regexp, s string) *regexp.Regexp {
	for _, re := range res {
		if re.MatchString(s) {
			return re
		}
	}
	return nil
}

// Split breaks a shell line into its chained commands. Operators inside
// quotes or after a backslash do not split.
func Split(line string) []string {
	var (
		out   []string
		cur   strings.Builder
		quote byte
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			out = append(out, s)
		}
		cur.Reset()
	}

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && quote != '\'' && i+1 < len(line):
			cur.WriteByte(c)
			i++
			cur.WriteByte(line[i])
		case quote != 0:
			if c == quote {
				quote = 0
			}
			cur.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == ';' || c == '\n' || c == '|' || c == '&':
			flush()
			if (c == '|' || c == '&') && i+1 < len(line) && line[i+1] == c {
				i++
			}
		default:
			cur.WriteByte(c)
		}
	}
	flush()
	return out
}

// DefaultBlocklist returns patterns for commands that damage the host.
func DefaultBlocklist() []string {
	return []string{
		`rm\s+-rf\s+/\s*$`,          // rm -rf /
		`rm\s+-rf\s+/\*`,            // rm -rf /*
		`mkfs\.`,                    // mkfs commands
		`dd\s+.*of=/dev/[sh]d`,      // dd to raw devices
		`:\s*\(\s*\)\s*\{\s*:\s*\|`, // fork bomb
		`>\s*/dev/[sh]d`,            // redirect to raw devices
		`\bshutdown\b|\breboot\b`,   // host power state
	}
}
