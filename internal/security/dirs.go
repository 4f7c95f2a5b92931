package security

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DirPolicy restricts working directories to a set of glob patterns.
// Patterns use doublestar syntax, so "/home/*/projects/**" matches any
// depth below each user's projects directory. An empty policy allows
// every directory.
type DirPolicy struct {
	mu       sync.RWMutex
	patterns []string
}

// NewDirPolicy validates patterns and returns a policy.
func NewDirPolicy(patterns []string) (*DirPolicy, error) {
	p := &DirPolicy{}
	if err := p.Update(patterns); err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces the pattern list. On error the policy is unchanged.
func (p *DirPolicy) Update(patterns []string) error {
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid directory pattern %q", pattern)
		}
	}
	cp := append([]string(nil), patterns...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.patterns = cp
	return nil
}

// CheckDir returns an error wrapping ErrBlocked when dir matches no
// pattern. Relative directories are made absolute first. A nil policy
// allows everything.
func (p *DirPolicy) CheckDir(dir string) error {
	if p == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.patterns) == 0 {
		return nil
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory %q: %w", dir, err)
	}
	abs = filepath.ToSlash(abs)

	for _, pattern := range p.patterns {
		// Patterns were validated in Update.
		if ok, _ := doublestar.Match(pattern, abs); ok {
			return nil
		}
	}
	return fmt.Errorf("%w: directory %s is not in the allowed list", ErrBlocked, abs)
}

// Patterns returns a copy of the configured patterns.
func (p *DirPolicy) Patterns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.patterns...)
}
