package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nortover/accountsvc/internal/domain"
	pkgkafka "github.com/nortover/accountsvc/pkg/kafka"
	"github.com/nortover/accountsvc/pkg/logger"
)

// Kafka topic constants for account lifecycle events.
const (
	TopicAccountRegistered      = "accounts.account.registered"
	TopicAccountPasswordChanged = "accounts.account.password_changed"
	TopicAccountDeleted         = "accounts.account.deleted"
)

// Aggregate type constant.
const AggregateTypeAccount = "account"

// Source identifier for events originating from this service.
const SourceAccountService = "accountsvc"

// AccountRegisteredData is the payload for an account.registered event.
type AccountRegisteredData struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// AccountPasswordChangedData is the payload for an account.password_changed
// event. It deliberately carries no credential material.
type AccountPasswordChangedData struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
}

// AccountDeletedData is the payload for an account.deleted event.
type AccountDeletedData struct {
	AccountID int64  `json:"account_id"`
	Email     string `json:"email"`
}

// Producer publishes account lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for account lifecycle events.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishAccountRegistered publishes an account.registered event.
func (p *Producer) PublishAccountRegistered(ctx context.Context, account *domain.Account) error {
	data := AccountRegisteredData{
		ID:       account.ID,
		Email:    account.Email,
		FullName: account.FullName,
		Role:     account.Role,
	}

	event, err := pkgkafka.NewEvent(TopicAccountRegistered, formatID(account.ID), AggregateTypeAccount, SourceAccountService, data)
	if err != nil {
		return fmt.Errorf("create account.registered event: %w", err)
	}

	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, TopicAccountRegistered, event); err != nil {
		return fmt.Errorf("publish account.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published account.registered event",
		slog.Int64("account_id", account.ID),
		slog.String("email", account.Email),
	)

	return nil
}

// PublishAccountPasswordChanged publishes an account.password_changed event.
func (p *Producer) PublishAccountPasswordChanged(ctx context.Context, accountID int64, email string) error {
	data := AccountPasswordChangedData{
		AccountID: accountID,
		Email:     email,
	}

	event, err := pkgkafka.NewEvent(TopicAccountPasswordChanged, formatID(accountID), AggregateTypeAccount, SourceAccountService, data)
	if err != nil {
		return fmt.Errorf("create account.password_changed event: %w", err)
	}

	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, TopicAccountPasswordChanged, event); err != nil {
		return fmt.Errorf("publish account.password_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published account.password_changed event",
		slog.Int64("account_id", accountID),
	)

	return nil
}

// PublishAccountDeleted publishes an account.deleted event.
func (p *Producer) PublishAccountDeleted(ctx context.Context, accountID int64, email string) error {
	data := AccountDeletedData{
		AccountID: accountID,
		Email:     email,
	}

	event, err := pkgkafka.NewEvent(TopicAccountDeleted, formatID(accountID), AggregateTypeAccount, SourceAccountService, data)
	if err != nil {
		return fmt.Errorf("create account.deleted event: %w", err)
	}

	if cid := logger.CorrelationIDFromContext(ctx); cid != "" {
		event.WithCorrelationID(cid)
	}

	if err := p.kafka.Publish(ctx, TopicAccountDeleted, event); err != nil {
		return fmt.Errorf("publish account.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published account.deleted event",
		slog.Int64("account_id", accountID),
	)

	return nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
