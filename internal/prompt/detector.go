package prompt

import (
	"strings"
	"sync"
)

// recentLines bounds how far up from the cursor screen patterns look.
const recentLines = 10

// Detection is a prompt found on screen.
type Detection struct {
	Name      string `json:"name"`
	Type      Type   `json:"type"`
	Line      string `json:"line"`
	MaskInput bool   `json:"mask_input,omitempty"`
	Suggested string `json:"suggested,omitempty"`
}

// Detector matches screens against prompt patterns. Custom patterns are
// tried before the defaults.
type Detector struct {
	mu       sync.RWMutex
	custom   []Pattern
	defaults []Pattern
}

// NewDetector creates a detector with the default patterns.
func NewDetector() *Detector {
	return &Detector{defaults: DefaultPatterns()}
}

// AddPattern registers a pattern ahead of the defaults.
func (d *Detector) AddPattern(p Pattern) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.custom = append(d.custom, p)
}

// Detect inspects screen rows up to and including the cursor row and
// returns the first matching prompt, or nil.
func (d *Detector) Detect(lines []string, cursorRow int) *Detection {
	if cursorRow < 0 || cursorRow >= len(lines) {
		return nil
	}
	current := strings.TrimRight(lines[cursorRow], " ")
	recent := strings.Join(lines[max(0, cursorRow-recentLines+1):cursorRow+1], "\n")

	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, set := range [][]Pattern{d.custom, d.defaults} {
		for _, p := range set {
			text := recent
			if p.CursorRow {
				text = current
			}
			if !p.Regex.MatchString(text) {
				continue
			}
			return &Detection{
				Name:      p.Name,
				Type:      p.Type,
				Line:      current,
				MaskInput: p.MaskInput,
				Suggested: p.Suggested,
			}
		}
	}
	return nil
}

// Hint returns a short instruction for answering the prompt.
func (det *Detection) Hint() string {
	switch det.Type {
	case TypePassword:
		return "Password required. Send it with shell_input and enter=true."
	case TypeConfirmation:
		if det.Suggested != "" {
			return "Confirmation required. Suggested response: " + det.Suggested
		}
		return "Confirmation required."
	case TypeEditor:
		return "Interactive editor open. Send its quit keys, or Ctrl+C."
	case TypePager:
		return "Pager open. Send 'q' to quit."
	case TypeREPL:
		return "Interpreter waiting for input."
	default:
		return "Input required."
	}
}
