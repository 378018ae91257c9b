// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import "sort"

// Command names.
const (
	New    = "/new"
	List   = "/list"
	Open   = "/open"
	Rename = "/rename"
	Delete = "/delete"
	Export = "/export"
	Copy   = "/copy"
	Help   = "/help"
	Quit   = "/quit"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Command describes a slash command.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/open <n>")
	Usage string

	// Args defines the expected arguments
	Args []ArgDef

	// TUIOnly commands are hidden from the line-mode help.
	TUIOnly bool
}

// ArgDef defines an argument for a command.
type ArgDef struct {
	Name        string
	Required    bool
	Type        ArgType
	Description string
	// Values for enum types
	Values []string
}

// ArgType indicates what kind of completion to provide.
type ArgType int

const (
	ArgTypeString       ArgType = iota // Free-form text
	ArgTypeConversation                // List position of a conversation
	ArgTypeEnum                        // One of Values
)

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	return r.aliases[name]
}

// All returns all commands sorted by name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:        New,
		Aliases:     []string{"/n"},
		Description: "Start a new conversation",
	})
	r.Register(&Command{
		Name:        List,
		Aliases:     []string{"/ls"},
		Description: "List conversations, most recent first",
	})
	r.Register(&Command{
		Name:        Open,
		Aliases:     []string{"/o"},
		Description: "Switch to a conversation",
		Usage:       "/open <n>",
		Args: []ArgDef{
			{Name: "n", Required: true, Type: ArgTypeConversation, Description: "position in /list"},
		},
	})
	r.Register(&Command{
		Name:        Rename,
		Description: "Rename the current conversation",
		Usage:       "/rename <title>",
		Args: []ArgDef{
			{Name: "title", Required: true, Type: ArgTypeString, Description: "new title"},
		},
	})
	r.Register(&Command{
		Name:        Delete,
		Aliases:     []string{"/rm"},
		Description: "Delete a conversation (default: current)",
		Usage:       "/delete [n]",
		Args: []ArgDef{
			{Name: "n", Type: ArgTypeConversation, Description: "position in /list"},
		},
	})
	r.Register(&Command{
		Name:        Export,
		Description: "Export the current conversation to a file",
		Usage:       "/export [format]",
		Args: []ArgDef{
			{Name: "format", Type: ArgTypeEnum, Values: []string{"md", "markdown", "json", "yaml", "yml"}, Description: "md, json or yaml"},
		},
	})
	r.Register(&Command{
		Name:        Copy,
		Description: "Copy the last answer to the clipboard",
		TUIOnly:     true,
	})
	r.Register(&Command{
		Name:        Help,
		Aliases:     []string{"/h", "/?"},
		Description: "Show available commands",
	})
	r.Register(&Command{
		Name:        Quit,
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit parley",
	})
}
