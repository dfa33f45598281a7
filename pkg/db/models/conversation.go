package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/enums"
)

// Conversation is the single chat thread of a user. SummarizedCount records
// how many older messages Summary covers.
type Conversation struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	Summary         *string   `gorm:"column:summary"`
	SummarizedCount int       `gorm:"column:summarized_count;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// ChatMessage is one persisted turn of a conversation.
type ChatMessage struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID         `gorm:"column:conversation_id;type:uuid;not null;index" json:"conversationId"`
	Role           enums.MessageRole `gorm:"column:role;not null" json:"role"`
	Content        string            `gorm:"column:content;not null" json:"content"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (m *ChatMessage) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
