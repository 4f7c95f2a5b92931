// Package recovery suggests follow-up commands for failed command output.
package recovery

import (
	"cmp"
	"path"
	"regexp"
	"slices"
	"strings"
)

// Suggestion is a possible fix for an error found in command output.
type Suggestion struct {
	Error       string   `json:"error"`
	Category    string   `json:"category"`
	Commands    []string `json:"commands"`
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	Risky       bool     `json:"risky,omitempty"` // review before running
}

type rule struct {
	pattern *regexp.Regexp
	suggest func(m []string) Suggestion
}

// Analyzer matches command output against known failure patterns.
type Analyzer struct {
	rules []rule
}

// NewAnalyzer creates an analyzer with the built-in rules.
func NewAnalyzer() *Analyzer {
	return &Analyzer{rules: defaultRules()}
}

// Analyze returns suggestions for output, most confident first. Output of
// a successful command is only inspected when it reads like an error.
func (a *Analyzer) Analyze(output string, exitCode int) []Suggestion {
	if exitCode == 0 && !looksLikeError(output) {
		return nil
	}

	var out []Suggestion
	for _, r := range a.rules {
		if m := r.pattern.FindStringSubmatch(output); m != nil {
			out = append(out, r.suggest(m))
		}
	}
	slices.SortStableFunc(out, func(x, y Suggestion) int {
		return cmp.Compare(y.Confidence, x.Confidence)
	})
	return out
}

var errorIndicators = []string{
	"error:", "error ", "failed", "failure",
	"not found", "permission denied", "access denied",
	"no such file", "cannot", "unable to", "could not", "refused",
}

func looksLikeError(output string) bool {
	lowered := strings.ToLower(output)
	for _, ind := range errorIndicators {
		if strings.Contains(lowered, ind) {
			return true
		}
	}
	return false
}

// fixed builds a rule whose suggestion does not depend on the match.
func fixed(re string, s Suggestion) rule {
	return rule{
		pattern: regexp.MustCompile(re),
		suggest: func([]string) Suggestion { return s },
	}
}

func defaultRules() []rule {
	return []rule{
		fixed(`(?i)permission denied`, Suggestion{
			Error:       "Permission denied",
			Category:    "permission",
			Commands:    []string{"ls -ld .", "sudo <previous_command>"},
			Explanation: "The operation needs more privileges than the current user has.",
			Confidence:  0.8,
			Risky:       true,
		}),
		{
			pattern: regexp.MustCompile(`(?i)(\S+): (?:command )?not found`),
			suggest: func(m []string) Suggestion {
				return Suggestion{
					Error:       "Command not found: " + m[1],
					Category:    "package",
					Commands:    installCommands(m[1]),
					Explanation: "The program is not installed or not on PATH.",
					Confidence:  0.7,
				}
			},
		},
		fixed(`(?i)npm ERR! code EACCES`, Suggestion{
			Error:       "npm permission error",
			Category:    "permission",
			Commands:    []string{"npm install --prefix ~/.local", "sudo npm install"},
			Explanation: "npm cannot write to its install prefix.",
			Confidence:  0.85,
			Risky:       true,
		}),
		fixed(`(?i)npm ERR! code ENOENT.*package\.json`, Suggestion{
			Error:       "No package.json found",
			Category:    "config",
			Commands:    []string{"npm init -y"},
			Explanation: "The directory is not an npm project.",
			Confidence:  0.9,
		}),
		fixed(`(?i)fatal: not a git repository`, Suggestion{
			Error:       "Not a git repository",
			Category:    "config",
			Commands:    []string{"git init", "cd <project_root>"},
			Explanation: "The working directory is outside any git checkout.",
			Confidence:  0.9,
		}),
		fixed(`CONFLICT \(content\):`, Suggestion{
			Error:       "Git merge conflict",
			Category:    "git",
			Commands:    []string{"git status", "git diff", "git merge --abort"},
			Explanation: "Conflicting hunks must be resolved by hand.",
			Confidence:  0.95,
		}),
		fixed(`(?i)connection refused`, Suggestion{
			Error:       "Connection refused",
			Category:    "network",
			Commands:    []string{"ss -tlnp", "ping <host>"},
			Explanation: "Nothing is listening on the target port.",
			Confidence:  0.7,
		}),
		fixed(`REMOTE HOST IDENTIFICATION HAS CHANGED`, Suggestion{
			Error:       "SSH host key has changed",
			Category:    "security",
			Commands:    []string{"ssh-keygen -R <hostname>"},
			Explanation: "The host presented a different key. Remove the old one only if the host is trusted.",
			Confidence:  0.8,
			Risky:       true,
		}),
		fixed(`(?i)no space left on device`, Suggestion{
			Error:       "Disk full",
			Category:    "disk",
			Commands:    []string{"df -h", "du -sh * | sort -h | tail -10"},
			Explanation: "The filesystem has no free space.",
			Confidence:  0.9,
		}),
		{
			pattern: regexp.MustCompile(`(?i)(?:address already in use|EADDRINUSE)\D*(\d*)`),
			suggest: func(m []string) Suggestion {
				s := Suggestion{
					Error:       "Port already in use",
					Category:    "network",
					Commands:    []string{"ss -tlnp"},
					Explanation: "Another process holds the port.",
					Confidence:  0.85,
				}
				if m[1] != "" {
					s.Error += ": " + m[1]
					s.Commands = []string{"lsof -i :" + m[1], "ss -tlnp 'sport = :" + m[1] + "'"}
				}
				return s
			},
		},
		{
			pattern: regexp.MustCompile(`ModuleNotFoundError: No module named '([\w.]+)'`),
			suggest: func(m []string) Suggestion {
				return Suggestion{
					Error:       "Python module not found: " + m[1],
					Category:    "package",
					Commands:    []string{"pip install " + m[1]},
					Explanation: "The module is missing from the active environment.",
					Confidence:  0.9,
				}
			},
		},
		{
			pattern: regexp.MustCompile(`Cannot find module '([@\w/.-]+)'`),
			suggest: func(m []string) Suggestion {
				return Suggestion{
					Error:       "Node module not found: " + m[1],
					Category:    "package",
					Commands:    []string{"npm install " + m[1], "npm install"},
					Explanation: "The dependency is not installed in node_modules.",
					Confidence:  0.9,
				}
			},
		},
		fixed(`(?i)Cannot connect to the Docker daemon`, Suggestion{
			Error:       "Docker daemon not running",
			Category:    "service",
			Commands:    []string{"systemctl status docker", "sudo systemctl start docker"},
			Explanation: "The docker CLI could not reach its daemon.",
			Confidence:  0.9,
		}),
		fixed(`(?i)Could not get lock|Unable to acquire the dpkg frontend lock`, Suggestion{
			Error:       "Package manager is locked",
			Category:    "package",
			Commands:    []string{"ps aux | grep -E 'apt|dpkg'", "sudo dpkg --configure -a"},
			Explanation: "Another package manager run holds the lock.",
			Confidence:  0.7,
			Risky:       true,
		}),
		{
			pattern: regexp.MustCompile(`(?i)([^\s:']+)'?: No such file or directory`),
			suggest: func(m []string) Suggestion {
				return Suggestion{
					Error:       "File not found: " + m[1],
					Category:    "filesystem",
					Commands:    []string{"ls -la", "find . -name '" + path.Base(m[1]) + "'"},
					Explanation: "The path does not exist relative to the working directory.",
					Confidence:  0.6,
				}
			},
		},
	}
}

var installHints = map[string][]string{
	"node":   {"sudo apt install nodejs", "brew install node"},
	"npm":    {"sudo apt install npm", "brew install node"},
	"python": {"sudo apt install python3", "brew install python"},
	"pip":    {"sudo apt install python3-pip", "brew install python"},
	"docker": {"sudo apt install docker.io", "brew install docker"},
	"git":    {"sudo apt install git", "brew install git"},
	"make":   {"sudo apt install build-essential", "xcode-select --install"},
	"gcc":    {"sudo apt install build-essential", "xcode-select --install"},
	"go":     {"sudo apt install golang", "brew install go"},
}

func installCommands(cmd string) []string {
	if hints, ok := installHints[cmd]; ok {
		return hints
	}
	return []string{"command -v " + cmd, "sudo apt install " + cmd, "brew install " + cmd}
}
