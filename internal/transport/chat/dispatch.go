package chat

import "strings"

// Action is the outcome of routing one inbound chat message.
type Action int

const (
	ActionHelp Action = iota
	ActionToken
	ActionQuery
	ActionUnknown
)

const helpText = `I can help you with tracking your PC VPN IP address, so you can
connect to it from another location if you are connected to the same VPN network.

These commands are supported:
/token - Generate application token
/getmyip - Get my PC VPN IP
/help - Show help message`

const unknownCommandText = "Unknown command. Would you repeat?"

// Route maps message text to an action: the three known commands,
// unknown for any other slash-prefixed input, help for everything else
// (including /start).
func Route(text string) Action {
	command := strings.TrimSpace(text)
	if fields := strings.Fields(command); len(fields) > 0 {
		command = fields[0]
	}
	// Group chats address commands as /token@botname.
	command, _, _ = strings.Cut(command, "@")

	switch command {
	case "/token":
		return ActionToken
	case "/getmyip":
		return ActionQuery
	case "/help", "/start":
		return ActionHelp
	}
	if strings.HasPrefix(command, "/") {
		return ActionUnknown
	}
	return ActionHelp
}
