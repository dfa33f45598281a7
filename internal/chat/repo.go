package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/db/models"
)

// Repository persists conversations and their messages.
type Repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) *Repository {
	return &Repository{db: conn}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindConversation returns the user's conversation or gorm.ErrRecordNotFound.
func (r *Repository) FindConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	var conv models.Conversation
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindOrCreateConversation returns the single conversation of a user,
// creating it on first use. A concurrent create is resolved by re-reading.
func (r *Repository) FindOrCreateConversation(ctx context.Context, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := r.FindConversation(ctx, userID)
	if err == nil {
		return conv, nil
	}
	if !db.IsNotFound(err) {
		return nil, err
	}

	created := &models.Conversation{UserID: userID}
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		if db.IsUniqueViolation(err, "") {
			return r.FindConversation(ctx, userID)
		}
		return nil, err
	}
	return created, nil
}

// ListMessages returns the conversation oldest first.
func (r *Repository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *Repository) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// UpdateSummary stores the summary and how many older messages it covers.
func (r *Repository) UpdateSummary(ctx context.Context, conversationID uuid.UUID, summary *string, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]any{
			"summary":          summary,
			"summarized_count": count,
			"updated_at":       time.Now().UTC(),
		}).Error
}

// DeleteMessages removes every message of the conversation.
func (r *Repository) DeleteMessages(ctx context.Context, conversationID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&models.ChatMessage{})
	return res.RowsAffected, res.Error
}
