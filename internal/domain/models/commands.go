package models

import "strings"

// CommandType enumerates supported chat command categories.
type CommandType string

const (
	CommandSale    CommandType = "sale"
	CommandConfirm CommandType = "confirm"
	CommandCancel  CommandType = "cancel"
	CommandSet     CommandType = "set"
	CommandPay     CommandType = "pay"
	CommandPrice   CommandType = "price"
	CommandTicks   CommandType = "ticks"
	CommandFix     CommandType = "fix"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
)

var confirmWords = map[string]bool{"ok": true, "okay": true, "yes": true, "y": true, "confirm": true}

// Command represents a parsed chat instruction.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command from a chat message. Anything that is not a
// slash command or a confirmation word is treated as a free-text sale line.
func ParseCommand(message string) Command {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return Command{Type: CommandUnknown, Raw: message}
	}

	tokens := strings.Fields(trimmed)
	cmd := Command{Raw: message}

	if len(tokens) == 1 && confirmWords[strings.ToLower(tokens[0])] {
		cmd.Type = CommandConfirm
		return cmd
	}

	if !strings.HasPrefix(tokens[0], "/") {
		cmd.Type = CommandSale
		cmd.Args = tokens
		return cmd
	}

	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	switch head {
	case string(CommandConfirm):
		cmd.Type = CommandConfirm
	case string(CommandCancel):
		cmd.Type = CommandCancel
	case string(CommandSet):
		cmd.Type = CommandSet
	case string(CommandPay):
		cmd.Type = CommandPay
	case string(CommandPrice):
		cmd.Type = CommandPrice
	case string(CommandTicks):
		cmd.Type = CommandTicks
	case string(CommandFix):
		cmd.Type = CommandFix
	case string(CommandHelp):
		cmd.Type = CommandHelp
	default:
		cmd.Type = CommandUnknown
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
