package chat

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	"github.com/shopzen/shopzen-backend/pkg/llm"
	"github.com/shopzen/shopzen-backend/pkg/logger"
)

const (
	summaryExcerptRunes = 120
	summaryMaxRunes     = 1000
	summaryPrompt       = "Summarize the earlier part of this shopping conversation in a few sentences. " +
		"Keep product names, order ids and any unresolved requests. Reply with the summary only."
)

// Summarizer condenses the messages that fall out of the context window.
type Summarizer interface {
	Summarize(ctx context.Context, messages []models.ChatMessage) (string, error)
}

// ExtractiveSummarizer keeps the opening of every message.
type ExtractiveSummarizer struct{}

func (ExtractiveSummarizer) Summarize(_ context.Context, messages []models.ChatMessage) (string, error) {
	var b strings.Builder
	for _, msg := range summarizable(messages) {
		line := fmt.Sprintf("%s: %s\n", strings.ToLower(string(msg.Role)), truncateRunes(msg.Content, summaryExcerptRunes))
		b.WriteString(line)
	}
	return truncateRunes(strings.TrimSpace(b.String()), summaryMaxRunes), nil
}

// ModelSummarizer asks the completion model for a summary and falls back to
// the extractive summary when the call fails.
type ModelSummarizer struct {
	client   llm.Client
	fallback Summarizer
	logg     *logger.Logger
}

func NewModelSummarizer(client llm.Client, logg *logger.Logger) *ModelSummarizer {
	return &ModelSummarizer{client: client, fallback: ExtractiveSummarizer{}, logg: logg}
}

func (s *ModelSummarizer) Summarize(ctx context.Context, messages []models.ChatMessage) (string, error) {
	kept := summarizable(messages)
	if len(kept) == 0 {
		return "", nil
	}
	history := make([]llm.Message, 0, len(kept)+1)
	history = append(history, llm.Message{Role: llm.RoleSystem, Content: summaryPrompt})
	for _, msg := range kept {
		history = append(history, llm.Message{Role: modelRole(msg.Role), Content: msg.Content})
	}

	resp, err := s.client.Chat(ctx, history, nil, &llm.SamplingOptions{MaxOutputTokens: 300})
	if err != nil || resp == nil || strings.TrimSpace(resp.Content) == "" {
		if err != nil && s.logg != nil {
			s.logg.WarnErr(ctx, "chat.summary_fallback", err)
		}
		return s.fallback.Summarize(ctx, messages)
	}
	return truncateRunes(strings.TrimSpace(resp.Content), summaryMaxRunes), nil
}

// summarizable drops turns that only carry the generic failure reply.
func summarizable(messages []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Content == FailureMessage {
			continue
		}
		out = append(out, msg)
	}
	return out
}

func modelRole(role enums.MessageRole) string {
	if role == enums.MessageRoleAssistant {
		return llm.RoleAssistant
	}
	return llm.RoleUser
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
