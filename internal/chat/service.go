package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/shopzen/shopzen-backend/internal/chat/tools"
	"github.com/shopzen/shopzen-backend/pkg/config"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/llm"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/metrics"
)

const (
	defaultContextWindow = 10
	defaultMaxToolRounds = 5
)

// Service runs the assistant conversation of each user.
type Service interface {
	Send(ctx context.Context, userID uuid.UUID, content string) (*SendResult, error)
	History(ctx context.Context, userID uuid.UUID) (*HistoryDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

// ServiceParams groups the chat service dependencies. A nil Client selects
// the mock reply.
type ServiceParams struct {
	Repo       *Repository
	Client     llm.Client
	Registry   *tools.Registry
	Summarizer Summarizer
	Config     config.ChatConfig
	Sampling   llm.SamplingOptions
	Metrics    *metrics.ChatMetrics
	Logger     *logger.Logger
}

type service struct {
	repo       *Repository
	client     llm.Client
	registry   *tools.Registry
	summarizer Summarizer
	window     int
	maxRounds  int
	sampling   llm.SamplingOptions
	metrics    *metrics.ChatMetrics
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("chat repository required")
	}
	if params.Client != nil && params.Registry == nil {
		return nil, fmt.Errorf("tool registry required")
	}
	window := params.Config.ContextWindow
	if window <= 0 {
		window = defaultContextWindow
	}
	maxRounds := params.Config.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	summarizer := params.Summarizer
	if summarizer == nil {
		summarizer = ExtractiveSummarizer{}
	}
	return &service{
		repo:       params.Repo,
		client:     params.Client,
		registry:   params.Registry,
		summarizer: summarizer,
		window:     window,
		maxRounds:  maxRounds,
		sampling:   params.Sampling,
		metrics:    params.Metrics,
		logg:       params.Logger,
		now:        time.Now,
	}, nil
}

// Send stores the user's message, runs the model with tools and stores the
// reply. A failed model call yields FailureMessage without storing it.
func (s *service) Send(ctx context.Context, userID uuid.UUID, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if s.logg != nil {
		ctx = s.logg.WithUserID(ctx, userID.String())
	}

	conv, err := s.repo.FindOrCreateConversation(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	if s.logg != nil {
		ctx = s.logg.WithConversationID(ctx, conv.ID.String())
	}
	userMsg, err := s.store(ctx, conv.ID, enums.MessageRoleUser, content)
	if err != nil {
		return nil, err
	}

	if s.client == nil {
		reply, err := s.store(ctx, conv.ID, enums.MessageRoleAssistant, fmt.Sprintf(mockReplyFormat, content))
		if err != nil {
			return nil, err
		}
		return &SendResult{UserMessage: *userMsg, AssistantMessage: *reply}, nil
	}

	history, err := s.buildContext(ctx, conv)
	if err != nil {
		return nil, err
	}

	scope := tools.Scope{UserID: userID, ConversationID: conv.ID}
	replyText, err := s.runToolLoop(ctx, scope, history)
	if err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "chat.model_failed", err)
		}
		return &SendResult{
			UserMessage: *userMsg,
			AssistantMessage: models.ChatMessage{
				ConversationID: conv.ID,
				Role:           enums.MessageRoleAssistant,
				Content:        FailureMessage,
				CreatedAt:      s.now().UTC(),
			},
		}, nil
	}

	reply, err := s.store(ctx, conv.ID, enums.MessageRoleAssistant, replyText)
	if err != nil {
		return nil, err
	}
	return &SendResult{UserMessage: *userMsg, AssistantMessage: *reply}, nil
}

// runToolLoop calls the model until it answers without tool calls or the
// round limit is reached.
func (s *service) runToolLoop(ctx context.Context, scope tools.Scope, history []llm.Message) (string, error) {
	defs := s.registry.Definitions()
	resp, err := s.client.Chat(ctx, history, defs, &s.sampling)
	if err != nil {
		return "", err
	}

	rounds := 0
	for len(resp.ToolCalls) > 0 {
		if rounds >= s.maxRounds {
			s.metrics.Truncated()
			s.metrics.ObserveRounds(rounds)
			if s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "rounds", rounds), "chat.tool_loop_truncated")
			}
			return truncatedReply, nil
		}

		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, call := range resp.ToolCalls {
			result := s.registry.Execute(ctx, scope, call)
			s.metrics.ToolCall(call.Name, result.Outcome)
			history = append(history, llm.Message{
				Role:       llm.RoleTool,
				Content:    encodeToolOutput(result.Output),
				ToolCallID: call.ID,
			})
		}
		rounds++

		resp, err = s.client.Chat(ctx, history, defs, &s.sampling)
		if err != nil {
			return "", err
		}
	}

	s.metrics.ObserveRounds(rounds)
	reply := strings.TrimSpace(resp.Content)
	if reply == "" {
		return "", fmt.Errorf("model returned an empty reply")
	}
	return reply, nil
}

// buildContext returns the system prompt, an optional summary of older
// turns and the most recent window of stored messages.
func (s *service) buildContext(ctx context.Context, conv *models.Conversation) ([]llm.Message, error) {
	stored, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load messages")
	}

	history := []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}
	recent := stored
	if len(stored) > s.window {
		older := stored[:len(stored)-s.window]
		recent = stored[len(stored)-s.window:]

		summary, err := s.summaryFor(ctx, conv, older)
		if err != nil {
			return nil, err
		}
		if summary != "" {
			history = append(history, llm.Message{Role: llm.RoleSystem, Content: summaryPreamble + summary})
		}
	}

	for _, msg := range recent {
		if msg.Content == FailureMessage {
			continue
		}
		history = append(history, llm.Message{Role: modelRole(msg.Role), Content: msg.Content})
	}
	return history, nil
}

// summaryFor reuses the stored summary while it still covers exactly the
// older messages and regenerates it otherwise.
func (s *service) summaryFor(ctx context.Context, conv *models.Conversation, older []models.ChatMessage) (string, error) {
	if conv.Summary != nil && conv.SummarizedCount == len(older) {
		return *conv.Summary, nil
	}

	summary, err := s.summarizer.Summarize(ctx, older)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "summarize conversation")
	}
	if err := s.repo.UpdateSummary(ctx, conv.ID, &summary, len(older)); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store summary")
	}
	conv.Summary = &summary
	conv.SummarizedCount = len(older)
	return summary, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID) (*HistoryDTO, error) {
	conv, err := s.repo.FindConversation(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return &HistoryDTO{Messages: []models.ChatMessage{}}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	msgs, err := s.repo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load messages")
	}
	id := conv.ID
	return &HistoryDTO{ConversationID: &id, Messages: msgs}, nil
}

// Clear deletes all messages and the summary. The conversation row stays.
func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	conv, err := s.repo.FindConversation(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load conversation")
	}
	if _, err := s.repo.DeleteMessages(ctx, conv.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete messages")
	}
	if err := s.repo.UpdateSummary(ctx, conv.ID, nil, 0); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reset summary")
	}
	return nil
}

func (s *service) store(ctx context.Context, conversationID uuid.UUID, role enums.MessageRole, content string) (*models.ChatMessage, error) {
	msg := &models.ChatMessage{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store message")
	}
	return msg, nil
}

func validateContent(content string) error {
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "message content is required").WithDetail("field", "content")
	}
	if n > MaxContentLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("message content must be at most %d characters", MaxContentLength)).
			WithDetail("field", "content")
	}
	return nil
}

func encodeToolOutput(output any) string {
	data, err := json.Marshal(output)
	if err != nil {
		return `{"error":"tool output could not be encoded"}`
	}
	return string(data)
}
