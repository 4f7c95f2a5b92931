// Package prompt recognizes screens where a program waits for an answer:
// password and confirmation questions, pagers, editors and REPLs.
package prompt

import "regexp"

// Type is the kind of input a prompt asks for.
type Type string

const (
	TypePassword     Type = "password"
	TypeConfirmation Type = "confirmation"
	TypeText         Type = "text"
	TypeEditor       Type = "editor"
	TypePager        Type = "pager"
	TypeREPL         Type = "repl"
)

// Pattern matches one kind of prompt. CursorRow patterns see only the
// line holding the cursor; the others see the last few screen rows.
type Pattern struct {
	Name      string
	Regex     *regexp.Regexp
	Type      Type
	MaskInput bool
	Suggested string
	CursorRow bool
}

func cursorLine(name string, t Type, re string) Pattern {
	return Pattern{Name: name, Type: t, Regex: regexp.MustCompile(re), CursorRow: true}
}

func screen(name string, t Type, re string) Pattern {
	return Pattern{Name: name, Type: t, Regex: regexp.MustCompile(re)}
}

func secret(p Pattern) Pattern {
	p.MaskInput = true
	return p
}

func suggest(p Pattern, answer string) Pattern {
	p.Suggested = answer
	return p
}

// DefaultPatterns returns the built-in patterns, most specific first.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Credentials
		secret(cursorLine("sudo_password", TypePassword, `(?i)\[sudo\] password for [^:]+:\s*$`)),
		secret(cursorLine("git_password", TypePassword, `(?i)password for '[^']*':\s*$`)),
		secret(cursorLine("ssh_passphrase", TypePassword, `(?i)enter passphrase for key .*:\s*$`)),
		secret(cursorLine("password", TypePassword, `(?i)password:\s*$`)),
		cursorLine("git_username", TypeText, `(?i)username for '[^']*':\s*$`),

		// Confirmations
		suggest(cursorLine("ssh_host_key", TypeConfirmation, `(?i)continue connecting \(yes/no(/\[fingerprint\])?\)\?\s*$`), "yes"),
		suggest(cursorLine("apt_continue", TypeConfirmation, `(?i)do you want to continue\? \[Y/n\]\s*$`), "Y"),
		suggest(cursorLine("yum_ok", TypeConfirmation, `(?i)is this ok \[y/d/N\]:\s*$`), "y"),
		suggest(cursorLine("pacman_proceed", TypeConfirmation, `(?i)proceed with installation\? \[Y/n\]\s*$`), "Y"),
		suggest(cursorLine("overwrite", TypeConfirmation, `(?i)(overwrite|replace) .*\? ?\[y/N\]\s*$`), "N"),
		cursorLine("yes_no", TypeConfirmation, `(?i)[\[(]yes/no[\])]\??:?\s*$`),
		cursorLine("y_n", TypeConfirmation, `(?i)[\[(]y/n[\])]\??:?\s*$`),

		// Full-screen programs
		suggest(cursorLine("less_end", TypePager, `\(END\)\s*$`), "q"),
		suggest(screen("more", TypePager, `--More--`), "q"),
		suggest(screen("man", TypePager, `Manual page .* line \d+`), "q"),
		suggest(screen("nano", TypeEditor, `GNU nano \d`), "\x18"),
		suggest(screen("vim_empty_lines", TypeEditor, `(?m)^~ *\n~ *$`), "\x1b:q!\r"),

		// Interpreters
		cursorLine("python", TypeREPL, `^(>>>|\.\.\.) ?$`),
		cursorLine("irb", TypeREPL, `irb\([^)]+\):\d+:\d+[>*] ?$`),
		cursorLine("mysql", TypeREPL, `^mysql> ?$`),
		cursorLine("psql", TypeREPL, `^\w+=[>#] ?$`),
		cursorLine("node", TypeREPL, `^> ?$`),
	}
}
