package session

import "github.com/anronharry/TG-bot/internal/providers"

// FormatForModel prepends exactly one system message to history. System
// messages already present in history are dropped.
func FormatForModel(history []providers.Message, systemText string) []providers.Message {
	out := make([]providers.Message, 0, len(history)+1)
	out = append(out, providers.Message{Role: providers.RoleSystem, Content: systemText})
	for _, m := range history {
		if m.Role == providers.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
