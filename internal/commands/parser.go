// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"strconv"
	"strings"
	"unicode"
)

// =============================================================================
// PARSE RESULT
// =============================================================================

// ParseResult contains the result of parsing user input.
type ParseResult struct {
	// IsCommand is true if the input starts with /
	IsCommand bool

	// Command is the matched command (nil if not found)
	Command *Command

	// Name is the command name as typed (e.g., "/h")
	Name string

	// Args are the parsed arguments
	Args []string

	// RawArgs is the text after the command name, unsplit
	RawArgs string

	// Error is set for an unknown command or invalid arguments
	Error error
}

// =============================================================================
// PARSER
// =============================================================================

// Parser handles parsing of slash commands and their arguments.
type Parser struct {
	registry *Registry
}

// NewParser creates a new parser with the given registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Registry returns the parser's registry.
func (p *Parser) Registry() *Registry {
	return p.registry
}

// Parse parses user input. Input that does not start with / is not a
// command and is returned with IsCommand false.
func (p *Parser) Parse(input string) ParseResult {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return ParseResult{}
	}

	res := ParseResult{IsCommand: true}
	name, rest, _ := strings.Cut(input, " ")
	res.Name = name
	res.RawArgs = strings.TrimSpace(rest)
	res.Args = splitCommandLine(res.RawArgs)

	res.Command = p.registry.Get(name)
	if res.Command == nil {
		res.Error = &UnknownCommandError{Name: name}
		return res
	}
	res.Error = ValidateArgs(res.Command, res.Args)
	return res
}

// ParseArgs splits a raw argument string. Single or double quotes group
// words, and a backslash inside quotes escapes a quote or backslash.
func ParseArgs(input string) []string {
	return splitCommandLine(input)
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

func splitCommandLine(input string) []string {
	var (
		tokens  []string
		cur     strings.Builder
		quote   rune // open quote character, 0 outside quotes
		escaped bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
			cur.Reset()
			started = false
		}
	}

	for _, r := range input {
		switch {
		case escaped:
			if r != '"' && r != '\'' && r != '\\' {
				cur.WriteRune('\\')
			}
			cur.WriteRune(r)
			escaped = false
		case quote != 0 && r == '\\':
			escaped = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '"' || r == '\''):
			quote = r
			started = true
		case quote == 0 && unicode.IsSpace(r):
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if escaped {
		cur.WriteRune('\\')
	}
	flush()
	return tokens
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateArgs checks args against cmd's argument definitions.
func ValidateArgs(cmd *Command, args []string) error {
	if cmd == nil {
		return nil
	}
	for i, def := range cmd.Args {
		if i >= len(args) {
			if def.Required {
				return &ValidationError{Command: cmd.Name, Arg: def.Name,
					Message: "missing", Expected: def.Description}
			}
			continue
		}
		if expected, ok := def.accepts(args[i]); !ok {
			return &ValidationError{Command: cmd.Name, Arg: def.Name,
				Message: "invalid value", Got: args[i], Expected: expected}
		}
	}
	return nil
}

// accepts reports whether v is valid for the argument, and otherwise what
// was expected.
func (a ArgDef) accepts(v string) (string, bool) {
	switch a.Type {
	case ArgTypeConversation:
		n, err := strconv.Atoi(v)
		return "a number from /list", err == nil && n >= 1
	case ArgTypeEnum:
		if len(a.Values) == 0 {
			return "", true
		}
		for _, allowed := range a.Values {
			if strings.EqualFold(v, allowed) {
				return "", true
			}
		}
		return strings.Join(a.Values, ", "), false
	default:
		return "", true
	}
}

// UnknownCommandError is returned for a name not in the registry.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return "unknown command " + e.Name + " (try /help)"
}

// ValidationError describes a missing or invalid command argument.
type ValidationError struct {
	Command  string
	Arg      string
	Message  string
	Got      string
	Expected string
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	b.WriteString(e.Command + ": " + e.Arg + " " + e.Message)
	if e.Got != "" {
		b.WriteString(" " + strconv.Quote(e.Got))
	}
	if e.Expected != "" {
		b.WriteString(" (expected " + e.Expected + ")")
	}
	return b.String()
}

// Position returns the 1-based conversation position in args[i], or 0 when
// absent.
func Position(args []string, i int) int {
	if i >= len(args) {
		return 0
	}
	n, err := strconv.Atoi(args[i])
	if err != nil || n < 1 {
		return 0
	}
	return n
}
