package prompt

import (
	"regexp"
	"strings"
	"testing"
)

// screenOf splits text into rows and puts the cursor on the last one.
func screenOf(text string) ([]string, int) {
	lines := strings.Split(text, "\n")
	return lines, len(lines) - 1
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		screen   string
		wantName string
		wantType Type
		wantMask bool
	}{
		{"sudo", "$ sudo apt update\n[sudo] password for ana: ", "sudo_password", TypePassword, true},
		{"generic password", "$ su -\nPassword:", "password", TypePassword, true},
		{"git password", "Password for 'https://ana@github.com':", "git_password", TypePassword, true},
		{"ssh passphrase", "Enter passphrase for key '/home/ana/.ssh/id_ed25519': ", "ssh_passphrase", TypePassword, true},
		{"git username", "Username for 'https://github.com': ", "git_username", TypeText, false},
		{"ssh host key", "Are you sure you want to continue connecting (yes/no/[fingerprint])? ", "ssh_host_key", TypeConfirmation, false},
		{"apt", "After this operation, 5 MB will be used.\nDo you want to continue? [Y/n] ", "apt_continue", TypeConfirmation, false},
		{"yum", "Is this ok [y/d/N]: ", "yum_ok", TypeConfirmation, false},
		{"overwrite", "cp: overwrite 'a.txt'? [y/N] ", "overwrite", TypeConfirmation, false},
		{"generic y/n", "Delete branch? [y/n]", "y_n", TypeConfirmation, false},
		{"less", "line 1\nline 2\n(END)", "less_end", TypePager, false},
		{"more", "text\n--More--(45%)", "more", TypePager, false},
		{"man", "LS(1)\n Manual page ls(1) line 1 (press h for help or q to quit)", "man", TypePager, false},
		{"nano", "  GNU nano 7.2    notes.txt\n\n", "nano", TypeEditor, false},
		{"vim", "hello\n~\n~\n~", "vim_empty_lines", TypeEditor, false},
		{"python", "Python 3.12.1\n>>> ", "python", TypeREPL, false},
		{"irb", "irb(main):001:0> ", "irb", TypeREPL, false},
		{"psql", "psql (16.1)\nshop=> ", "psql", TypeREPL, false},
		{"node", "Welcome to Node.js v20.0.0.\n> ", "node", TypeREPL, false},
	}

	d := NewDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, row := screenOf(tt.screen)
			det := d.Detect(lines, row)
			if det == nil {
				t.Fatalf("Detect() = nil, want %s", tt.wantName)
			}
			if det.Name != tt.wantName || det.Type != tt.wantType || det.MaskInput != tt.wantMask {
				t.Errorf("Detect() = %+v, want %s/%s mask=%v", det, tt.wantName, tt.wantType, tt.wantMask)
			}
			if det.Line != strings.TrimRight(lines[row], " ") {
				t.Errorf("Line = %q", det.Line)
			}
		})
	}
}

func TestDetect_NoPrompt(t *testing.T) {
	screens := []string{
		"$ ls\nMakefile  go.mod  main.go\n$ ",
		"building...\n[####      ] 40%",
		"the password: field is required\nok",
		"",
	}

	d := NewDetector()
	for _, s := range screens {
		lines, row := screenOf(s)
		if det := d.Detect(lines, row); det != nil {
			t.Errorf("Detect(%q) = %+v, want nil", s, det)
		}
	}
}

func TestDetect_OnlyCursorRowForLinePatterns(t *testing.T) {
	d := NewDetector()
	lines := []string{"Password:", "sorry, try again", "$ "}

	// The prompt above the cursor was already answered.
	if det := d.Detect(lines, 2); det != nil {
		t.Errorf("Detect() = %+v, want nil", det)
	}
	if det := d.Detect(lines, 0); det == nil || det.Type != TypePassword {
		t.Errorf("Detect(row 0) = %+v, want password", det)
	}
}

func TestDetect_CursorOutOfRange(t *testing.T) {
	d := NewDetector()
	for _, row := range []int{-1, 3} {
		if det := d.Detect([]string{"a", "b", "Password:"}, row); det != nil {
			t.Errorf("Detect(row %d) = %+v, want nil", row, det)
		}
	}
}

func TestDetector_CustomPatternWins(t *testing.T) {
	d := NewDetector()
	d.AddPattern(Pattern{
		Name:      "vault_token",
		Regex:     regexp.MustCompile(`Token \(will be hidden\):\s*$`),
		Type:      TypePassword,
		MaskInput: true,
		CursorRow: true,
	})
	d.AddPattern(Pattern{
		Name:      "deploy_confirm",
		Regex:     regexp.MustCompile(`(?i)deploy to production\?`),
		Type:      TypeConfirmation,
		Suggested: "no",
		CursorRow: true,
	})

	det := d.Detect([]string{"Token (will be hidden): "}, 0)
	if det == nil || det.Name != "vault_token" || !det.MaskInput {
		t.Errorf("Detect() = %+v, want vault_token", det)
	}

	// Custom patterns are tried before the generic y/n default.
	det = d.Detect([]string{"Deploy to production? [y/n]"}, 0)
	if det == nil || det.Name != "deploy_confirm" || det.Suggested != "no" {
		t.Errorf("Detect() = %+v, want deploy_confirm", det)
	}
}

func TestDetection_Hint(t *testing.T) {
	tests := []struct {
		det      Detection
		contains string
	}{
		{Detection{Type: TypePassword}, "Password required"},
		{Detection{Type: TypeConfirmation, Suggested: "yes"}, "Suggested response: yes"},
		{Detection{Type: TypeConfirmation}, "Confirmation required."},
		{Detection{Type: TypeEditor}, "editor"},
		{Detection{Type: TypePager}, "'q'"},
		{Detection{Type: TypeREPL}, "Interpreter"},
		{Detection{Type: TypeText}, "Input required"},
	}
	for _, tt := range tests {
		if got := tt.det.Hint(); !strings.Contains(got, tt.contains) {
			t.Errorf("Hint() for %s = %q, want it to contain %q", tt.det.Type, got, tt.contains)
		}
	}
}

func TestDefaultPatterns_Named(t *testing.T) {
	seen := map[string]bool{}
	for _, p := range DefaultPatterns() {
		if p.Name == "" || p.Regex == nil || p.Type == "" {
			t.Errorf("incomplete pattern %+v", p)
		}
		if seen[p.Name] {
			t.Errorf("duplicate pattern name %q", p.Name)
		}
		seen[p.Name] = true
	}
}
