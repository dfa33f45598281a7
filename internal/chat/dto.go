package chat

import (
	"github.com/google/uuid"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
)

const (
	MaxContentLength = 2000

	// FailureMessage is returned when the model call fails. It is never stored.
	FailureMessage  = "I encountered an error processing your request. Please try again."
	truncatedReply  = "I wasn't able to finish looking that up. Could you rephrase or narrow down your request?"
	mockReplyFormat = "(Mock AI) I received: \"%s\". Configure an LLM API key to enable tools like product search."

	systemPrompt = "You are the AI shopping assistant for ShopZen. " +
		"Use the available tools whenever the user asks about products or orders instead of guessing. " +
		"Only discuss the signed-in customer's own orders. " +
		"If the user is angry or asks for something you cannot do, escalate to a human. " +
		"Keep answers concise and friendly."
	summaryPreamble = "Summary of the earlier conversation: "
)

// SendInput is the body of a chat send.
type SendInput struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// SendResult carries both sides of one exchange.
type SendResult struct {
	UserMessage      models.ChatMessage `json:"userMessage"`
	AssistantMessage models.ChatMessage `json:"assistantMessage"`
}

// HistoryDTO is the stored conversation of a user.
type HistoryDTO struct {
	ConversationID *uuid.UUID           `json:"conversationId"`
	Messages       []models.ChatMessage `json:"messages"`
}
