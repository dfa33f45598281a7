package chat

import (
	"context"

	"gorm.io/gorm"

	"github.com/shopzen/shopzen-backend/internal/chat/tools"
	"github.com/shopzen/shopzen-backend/pkg/db"
	"github.com/shopzen/shopzen-backend/pkg/enums"
	pkgerrors "github.com/shopzen/shopzen-backend/pkg/errors"
	"github.com/shopzen/shopzen-backend/pkg/logger"
	"github.com/shopzen/shopzen-backend/pkg/metrics"
	"github.com/shopzen/shopzen-backend/pkg/outbox"
	"github.com/shopzen/shopzen-backend/pkg/outbox/payloads"
)

// OutboxEscalator records hand-off requests as chat_escalated outbox events.
type OutboxEscalator struct {
	tx      db.TxRunner
	outbox  outbox.Emitter
	metrics *metrics.ChatMetrics
	logg    *logger.Logger
}

func NewOutboxEscalator(tx db.TxRunner, emitter outbox.Emitter, m *metrics.ChatMetrics, logg *logger.Logger) *OutboxEscalator {
	return &OutboxEscalator{tx: tx, outbox: emitter, metrics: m, logg: logg}
}

func (e *OutboxEscalator) Escalate(ctx context.Context, scope tools.Scope, reason string) error {
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventChatEscalated,
			AggregateType: enums.AggregateConversation,
			AggregateID:   scope.ConversationID,
			Actor:         outbox.UserActor(scope.UserID, string(enums.UserRoleUser)),
			Data: payloads.ChatEscalatedEvent{
				ConversationID: scope.ConversationID,
				UserID:         scope.UserID,
				Reason:         reason,
			},
		})
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "escalation unavailable")
	}

	e.metrics.Escalated()
	if e.logg != nil {
		logCtx := e.logg.WithFields(ctx, map[string]any{
			"conversation_id": scope.ConversationID.String(),
			"user_id":         scope.UserID.String(),
			"reason":          reason,
		})
		e.logg.Warn(logCtx, "chat.escalated")
	}
	return nil
}
