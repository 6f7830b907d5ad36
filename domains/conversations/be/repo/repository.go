package repo

import (
	"context"

	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Repository exposes conversation, message and auto-response persistence for
// the active store.
type Repository interface {
	OpenForPhone(ctx context.Context, phone string) (persistence.Conversation, error)
	Get(ctx context.Context, id int64) (persistence.Conversation, error)
	List(ctx context.Context, status *string, limit int) ([]persistence.Conversation, error)
	Close(ctx context.Context, id int64) error
	AppendMessage(ctx context.Context, conversationID int64, direction, body string, mediaPath *string) (persistence.Message, error)
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]persistence.Message, error)
	ListAutoResponses(ctx context.Context) ([]persistence.AutoResponse, error)
	UpsertAutoResponse(ctx context.Context, keyword, text string, enabled bool) (persistence.AutoResponse, error)
	UpsertCustomer(ctx context.Context, phone string, fullName *string) (persistence.Customer, error)
}

type contextRepository struct{}

func New() Repository {
	return contextRepository{}
}

func (contextRepository) OpenForPhone(ctx context.Context, phone string) (persistence.Conversation, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Conversation{}, err
	}
	return facade.Conversations.OpenForPhone(ctx, phone)
}

func (contextRepository) Get(ctx context.Context, id int64) (persistence.Conversation, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Conversation{}, err
	}
	return facade.Conversations.Get(ctx, id)
}

func (contextRepository) List(ctx context.Context, status *string, limit int) ([]persistence.Conversation, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return nil, err
	}
	return facade.Conversations.List(ctx, status, limit)
}

func (contextRepository) Close(ctx context.Context, id int64) error {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return err
	}
	return facade.Conversations.Close(ctx, id)
}

func (contextRepository) AppendMessage(ctx context.Context, conversationID int64, direction, body string, mediaPath *string) (persistence.Message, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Message{}, err
	}
	return facade.Conversations.AppendMessage(ctx, conversationID, direction, body, mediaPath)
}

func (contextRepository) ListMessages(ctx context.Context, conversationID int64, limit int) ([]persistence.Message, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return nil, err
	}
	return facade.Conversations.ListMessages(ctx, conversationID, limit)
}

func (contextRepository) ListAutoResponses(ctx context.Context) ([]persistence.AutoResponse, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return nil, err
	}
	return facade.Conversations.ListAutoResponses(ctx)
}

func (contextRepository) UpsertAutoResponse(ctx context.Context, keyword, text string, enabled bool) (persistence.AutoResponse, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.AutoResponse{}, err
	}
	return facade.Conversations.UpsertAutoResponse(ctx, keyword, text, enabled)
}

func (contextRepository) UpsertCustomer(ctx context.Context, phone string, fullName *string) (persistence.Customer, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return persistence.Customer{}, err
	}
	return facade.Customers.UpsertByPhone(ctx, phone, fullName)
}
