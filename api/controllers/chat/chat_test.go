package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shopzen/shopzen-backend/api/middleware"
	chatsvc "github.com/shopzen/shopzen-backend/internal/chat"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
	"github.com/shopzen/shopzen-backend/pkg/enums"
)

type stubChatService struct {
	sendFn  func(ctx context.Context, userID uuid.UUID, content string) (*chatsvc.SendResult, error)
	cleared uuid.UUID
}

func (s *stubChatService) Send(ctx context.Context, userID uuid.UUID, content string) (*chatsvc.SendResult, error) {
	return s.sendFn(ctx, userID, content)
}

func (s *stubChatService) History(ctx context.Context, userID uuid.UUID) (*chatsvc.HistoryDTO, error) {
	return &chatsvc.HistoryDTO{Messages: []models.ChatMessage{}}, nil
}

func (s *stubChatService) Clear(ctx context.Context, userID uuid.UUID) error {
	s.cleared = userID
	return nil
}

func userRequest(method, body string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, "/api/v1/chat", strings.NewReader(body))
	return req.WithContext(middleware.WithUser(req.Context(), userID.String(), enums.UserRoleUser))
}

func TestSendReturnsBothMessages(t *testing.T) {
	userID := uuid.New()
	svc := &stubChatService{
		sendFn: func(ctx context.Context, id uuid.UUID, content string) (*chatsvc.SendResult, error) {
			require.Equal(t, userID, id)
			require.Equal(t, "where is my order?", content)
			return &chatsvc.SendResult{
				UserMessage:      models.ChatMessage{Role: enums.MessageRoleUser, Content: content},
				AssistantMessage: models.ChatMessage{Role: enums.MessageRoleAssistant, Content: "It shipped."},
			}, nil
		},
	}

	rec := httptest.NewRecorder()
	Send(svc, nil).ServeHTTP(rec, userRequest(http.MethodPost, `{"content":"where is my order?"}`, userID))
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			AssistantMessage struct {
				Content string `json:"content"`
			} `json:"assistantMessage"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	require.Equal(t, "It shipped.", envelope.Data.AssistantMessage.Content)
}

func TestSendRejectsOversizedContent(t *testing.T) {
	svc := &stubChatService{
		sendFn: func(ctx context.Context, id uuid.UUID, content string) (*chatsvc.SendResult, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	body, err := json.Marshal(map[string]string{"content": strings.Repeat("a", 2001)})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	Send(svc, nil).ServeHTTP(rec, userRequest(http.MethodPost, string(body), uuid.New()))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearAndHistory(t *testing.T) {
	userID := uuid.New()
	svc := &stubChatService{}

	rec := httptest.NewRecorder()
	Clear(svc, nil).ServeHTTP(rec, userRequest(http.MethodDelete, "", userID))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, userID, svc.cleared)

	rec = httptest.NewRecorder()
	History(svc, nil).ServeHTTP(rec, userRequest(http.MethodGet, "", userID))
	require.Equal(t, http.StatusOK, rec.Code)
}
