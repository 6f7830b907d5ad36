package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/orderline-app/orderline/platform/go/persistence"
)

// inMemoryRepo is a minimal in-memory impl of Repository for tests.
type inMemoryRepo struct {
	conversations map[int64]persistence.Conversation
	messages      map[int64][]persistence.Message
	autoResponses []persistence.AutoResponse
	customers     map[string]persistence.Customer
	nextConvID    int64
	nextMsgID     int64
}

func newInMemoryRepo() *inMemoryRepo {
	return &inMemoryRepo{
		conversations: make(map[int64]persistence.Conversation),
		messages:      make(map[int64][]persistence.Message),
		customers:     make(map[string]persistence.Customer),
		nextConvID:    1,
		nextMsgID:     1,
	}
}

func (r *inMemoryRepo) OpenForPhone(ctx context.Context, phone string) (persistence.Conversation, error) {
	for _, conv := range r.conversations {
		if conv.CustomerPhone == phone && conv.Status == "open" {
			return conv, nil
		}
	}
	conv := persistence.Conversation{
		ID:            r.nextConvID,
		CustomerPhone: phone,
		Status:        "open",
		CreatedAt:     time.Now().UTC(),
	}
	r.conversations[conv.ID] = conv
	r.nextConvID++
	return conv, nil
}

func (r *inMemoryRepo) Get(ctx context.Context, id int64) (persistence.Conversation, error) {
	conv, ok := r.conversations[id]
	if !ok {
		return persistence.Conversation{}, persistence.ErrNotFound
	}
	return conv, nil
}

func (r *inMemoryRepo) List(ctx context.Context, status *string, limit int) ([]persistence.Conversation, error) {
	var out []persistence.Conversation
	for _, conv := range r.conversations {
		if status != nil && conv.Status != *status {
			continue
		}
		out = append(out, conv)
	}
	return out, nil
}

func (r *inMemoryRepo) Close(ctx context.Context, id int64) error {
	conv, ok := r.conversations[id]
	if !ok {
		return persistence.ErrNotFound
	}
	conv.Status = "closed"
	r.conversations[id] = conv
	return nil
}

func (r *inMemoryRepo) AppendMessage(ctx context.Context, conversationID int64, direction, body string, mediaPath *string) (persistence.Message, error) {
	if _, ok := r.conversations[conversationID]; !ok {
		return persistence.Message{}, persistence.ErrNotFound
	}
	msg := persistence.Message{
		ID:             r.nextMsgID,
		PublicID:       uuid.New(),
		ConversationID: conversationID,
		Direction:      direction,
		Body:           body,
		MediaPath:      mediaPath,
		SentAt:         time.Now().UTC(),
	}
	r.messages[conversationID] = append(r.messages[conversationID], msg)
	r.nextMsgID++
	return msg, nil
}

func (r *inMemoryRepo) ListMessages(ctx context.Context, conversationID int64, limit int) ([]persistence.Message, error) {
	return r.messages[conversationID], nil
}

func (r *inMemoryRepo) ListAutoResponses(ctx context.Context) ([]persistence.AutoResponse, error) {
	return r.autoResponses, nil
}

func (r *inMemoryRepo) UpsertAutoResponse(ctx context.Context, keyword, text string, enabled bool) (persistence.AutoResponse, error) {
	for i, ar := range r.autoResponses {
		if ar.TriggerKeyword == keyword {
			r.autoResponses[i].ResponseText = text
			r.autoResponses[i].IsEnabled = enabled
			return r.autoResponses[i], nil
		}
	}
	ar := persistence.AutoResponse{
		ID:             int64(len(r.autoResponses) + 1),
		TriggerKeyword: keyword,
		ResponseText:   text,
		IsEnabled:      enabled,
	}
	r.autoResponses = append(r.autoResponses, ar)
	return ar, nil
}

func (r *inMemoryRepo) UpsertCustomer(ctx context.Context, phone string, fullName *string) (persistence.Customer, error) {
	c, ok := r.customers[phone]
	if !ok {
		c = persistence.Customer{ID: int64(len(r.customers) + 1), Phone: phone}
	}
	if fullName != nil {
		c.FullName = fullName
	}
	r.customers[phone] = c
	return c, nil
}

func TestProcessInboundAppendsMessageAndRegistersCustomer(t *testing.T) {
	repo := newInMemoryRepo()
	svc := New(repo)

	name := "Ana"
	result, err := svc.ProcessInbound(context.Background(), InboundInput{
		Phone:        "+573001112233",
		CustomerName: &name,
		Body:         "Hola, quiero hacer un pedido",
	})
	require.NoError(t, err)
	require.Equal(t, "open", result.Conversation.Status)
	require.Equal(t, persistence.MessageInbound, result.Message.Direction)
	require.Nil(t, result.AutoReply)
	require.Contains(t, repo.customers, "+573001112233")
}

func TestProcessInboundReusesOpenConversation(t *testing.T) {
	repo := newInMemoryRepo()
	svc := New(repo)

	first, err := svc.ProcessInbound(context.Background(), InboundInput{Phone: "+1555", Body: "hi"})
	require.NoError(t, err)
	second, err := svc.ProcessInbound(context.Background(), InboundInput{Phone: "+1555", Body: "again"})
	require.NoError(t, err)

	require.Equal(t, first.Conversation.ID, second.Conversation.ID)
	require.Len(t, repo.messages[first.Conversation.ID], 2)
}

func TestProcessInboundAutoReply(t *testing.T) {
	repo := newInMemoryRepo()
	svc := New(repo)

	_, err := svc.UpsertAutoResponse(context.Background(), "menu", "Our menu: arepas and juice.", true)
	require.NoError(t, err)

	cases := []struct {
		name    string
		body    string
		replied bool
	}{
		{"exact word", "menu", true},
		{"case insensitive", "MENU", true},
		{"within sentence", "can I see the menu please", true},
		{"trailing punctuation", "Menu!", true},
		{"substring does not match", "menus", false},
		{"unrelated text", "hello there", false},
	}

	repo.autoResponses = append(repo.autoResponses, persistence.AutoResponse{
		ID: 99, TriggerKeyword: "hello", ResponseText: "disabled reply", IsEnabled: false,
	})

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := svc.ProcessInbound(context.Background(), InboundInput{Phone: "+1555", Body: tc.body})
			require.NoError(t, err)
			if tc.replied {
				require.NotNil(t, result.AutoReply)
				require.Equal(t, persistence.MessageOutbound, result.AutoReply.Direction)
				require.Equal(t, "Our menu: arepas and juice.", result.AutoReply.Body)
			} else {
				require.Nil(t, result.AutoReply)
			}
		})
	}
}

func TestProcessInboundValidation(t *testing.T) {
	svc := New(newInMemoryRepo())

	_, err := svc.ProcessInbound(context.Background(), InboundInput{Body: "hi"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "phone")

	_, err = svc.ProcessInbound(context.Background(), InboundInput{Phone: "+1555"})
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "body")
}

func TestProcessInboundMediaOnlyIsAccepted(t *testing.T) {
	svc := New(newInMemoryRepo())

	media := "conversations/1/9/photo.jpg"
	result, err := svc.ProcessInbound(context.Background(), InboundInput{Phone: "+1555", MediaPath: &media})
	require.NoError(t, err)
	require.NotNil(t, result.Message.MediaPath)
}

func TestSendOutbound(t *testing.T) {
	repo := newInMemoryRepo()
	svc := New(repo)

	result, err := svc.ProcessInbound(context.Background(), InboundInput{Phone: "+1555", Body: "hi"})
	require.NoError(t, err)

	msg, err := svc.SendOutbound(context.Background(), result.Conversation.ID, "We are open until 8pm.", nil)
	require.NoError(t, err)
	require.Equal(t, persistence.MessageOutbound, msg.Direction)

	_, err = svc.SendOutbound(context.Background(), result.Conversation.ID, "  ", nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.SendOutbound(context.Background(), 999, "hello", nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCloseConversation(t *testing.T) {
	repo := newInMemoryRepo()
	svc := New(repo)

	result, err := svc.ProcessInbound(context.Background(), InboundInput{Phone: "+1555", Body: "hi"})
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background(), result.Conversation.ID))
	conv, err := svc.Get(context.Background(), result.Conversation.ID)
	require.NoError(t, err)
	require.Equal(t, "closed", conv.Status)

	require.ErrorIs(t, svc.Close(context.Background(), 999), ErrNotFound)
}

func TestUpsertAutoResponseValidation(t *testing.T) {
	svc := New(newInMemoryRepo())

	_, err := svc.UpsertAutoResponse(context.Background(), "two words", "text", true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "triggerKeyword")

	_, err = svc.UpsertAutoResponse(context.Background(), "", "text", true)
	require.ErrorAs(t, err, &verr)

	_, err = svc.UpsertAutoResponse(context.Background(), "menu", "", true)
	require.ErrorAs(t, err, &verr)
	require.Contains(t, verr.Fields, "responseText")

	// Keywords are canonicalized to lowercase.
	ar, err := svc.UpsertAutoResponse(context.Background(), "  MENU ", "the menu", true)
	require.NoError(t, err)
	require.Equal(t, "menu", ar.TriggerKeyword)
}
