package enums

import "fmt"

// MessageRole is the author of a stored chat message.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "USER"
	MessageRoleAssistant MessageRole = "ASSISTANT"
)

func (r MessageRole) IsValid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

func ParseMessageRole(value string) (MessageRole, error) {
	role := MessageRole(value)
	if role.IsValid() {
		return role, nil
	}
	return "", fmt.Errorf("invalid message role %q", value)
}
