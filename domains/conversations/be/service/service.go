package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	domainrepo "github.com/orderline-app/orderline/domains/conversations/be/repo"
	"github.com/orderline-app/orderline/platform/go/metrics"
	"github.com/orderline-app/orderline/platform/go/persistence"
)

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

// ValidationError captures input validation problems surfaced by the service.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	return "validation error"
}

// Domain-level error sentinel values.
var (
	ErrNotFound = errors.New("conversation not found")
	ErrNoStore  = errors.New("no store selected")
)

// Conversation is one WhatsApp thread with a customer.
type Conversation struct {
	ID            int64      `json:"id"`
	CustomerPhone string     `json:"customerPhone"`
	Status        string     `json:"status"`
	LastMessageAt *time.Time `json:"lastMessageAt"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type Message struct {
	ID             int64     `json:"id"`
	PublicID       uuid.UUID `json:"publicId"`
	ConversationID int64     `json:"conversationId"`
	Direction      string    `json:"direction"`
	Body           string    `json:"body"`
	MediaPath      *string   `json:"mediaPath"`
	SentAt         time.Time `json:"sentAt"`
}

type AutoResponse struct {
	ID             int64  `json:"id"`
	TriggerKeyword string `json:"triggerKeyword"`
	ResponseText   string `json:"responseText"`
	IsEnabled      bool   `json:"isEnabled"`
}

// InboundResult reports what the webhook flow did with one inbound message.
type InboundResult struct {
	Conversation Conversation `json:"conversation"`
	Message      Message      `json:"message"`
	AutoReply    *Message     `json:"autoReply"`
}

// InboundInput is one message arriving from the WhatsApp webhook.
type InboundInput struct {
	Phone        string
	CustomerName *string
	Body         string
	MediaPath    *string
}

// Service exposes the conversations domain operations.
type Service interface {
	ProcessInbound(ctx context.Context, input InboundInput) (InboundResult, error)
	SendOutbound(ctx context.Context, conversationID int64, body string, mediaPath *string) (Message, error)
	Get(ctx context.Context, id int64) (Conversation, error)
	List(ctx context.Context, status *string, limit int) ([]Conversation, error)
	Close(ctx context.Context, id int64) error
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error)
	ListAutoResponses(ctx context.Context) ([]AutoResponse, error)
	UpsertAutoResponse(ctx context.Context, keyword, text string, enabled bool) (AutoResponse, error)
}

type service struct {
	repo domainrepo.Repository
}

func New(repo domainrepo.Repository) Service {
	if repo == nil {
		panic("conversations repository is required")
	}
	return &service{repo: repo}
}

// ProcessInbound registers the contact, appends the inbound message to its
// open conversation and sends the first matching auto-response, if any. The
// auto-reply is best-effort: a failure there never loses the inbound message.
func (s *service) ProcessInbound(ctx context.Context, input InboundInput) (InboundResult, error) {
	phone := strings.TrimSpace(input.Phone)
	if phone == "" {
		return InboundResult{}, &ValidationError{Fields: FieldErrors{"phone": {"phone is required"}}}
	}
	body := strings.TrimSpace(input.Body)
	if body == "" && input.MediaPath == nil {
		return InboundResult{}, &ValidationError{Fields: FieldErrors{"body": {"message body or media is required"}}}
	}

	if _, err := s.repo.UpsertCustomer(ctx, phone, input.CustomerName); err != nil {
		return InboundResult{}, mapError(err)
	}

	conversation, err := s.repo.OpenForPhone(ctx, phone)
	if err != nil {
		return InboundResult{}, mapError(err)
	}

	message, err := s.repo.AppendMessage(ctx, conversation.ID, persistence.MessageInbound, body, input.MediaPath)
	if err != nil {
		return InboundResult{}, mapError(err)
	}
	metrics.MessagesProcessed.WithLabelValues(persistence.MessageInbound).Inc()

	result := InboundResult{
		Conversation: mapConversation(conversation),
		Message:      mapMessage(message),
	}

	if reply, ok, err := s.autoReply(ctx, conversation.ID, body); err == nil && ok {
		mapped := mapMessage(reply)
		result.AutoReply = &mapped
	}

	return result, nil
}

// autoReply matches the inbound text against enabled triggers, whole-word and
// case-insensitive, and appends the first hit as an outbound message.
func (s *service) autoReply(ctx context.Context, conversationID int64, body string) (persistence.Message, bool, error) {
	responses, err := s.repo.ListAutoResponses(ctx)
	if err != nil {
		return persistence.Message{}, false, err
	}

	words := strings.Fields(strings.ToLower(body))
	for _, response := range responses {
		if !response.IsEnabled {
			continue
		}
		keyword := strings.ToLower(response.TriggerKeyword)
		for _, word := range words {
			if strings.Trim(word, ".,!?") != keyword {
				continue
			}
			reply, err := s.repo.AppendMessage(ctx, conversationID, persistence.MessageOutbound, response.ResponseText, nil)
			if err != nil {
				return persistence.Message{}, false, err
			}
			metrics.MessagesProcessed.WithLabelValues(persistence.MessageOutbound).Inc()
			return reply, true, nil
		}
	}
	return persistence.Message{}, false, nil
}

func (s *service) SendOutbound(ctx context.Context, conversationID int64, body string, mediaPath *string) (Message, error) {
	body = strings.TrimSpace(body)
	if body == "" && mediaPath == nil {
		return Message{}, &ValidationError{Fields: FieldErrors{"body": {"message body or media is required"}}}
	}

	message, err := s.repo.AppendMessage(ctx, conversationID, persistence.MessageOutbound, body, mediaPath)
	if err != nil {
		return Message{}, mapError(err)
	}
	metrics.MessagesProcessed.WithLabelValues(persistence.MessageOutbound).Inc()
	return mapMessage(message), nil
}

func (s *service) Get(ctx context.Context, id int64) (Conversation, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Conversation{}, mapError(err)
	}
	return mapConversation(record), nil
}

func (s *service) List(ctx context.Context, status *string, limit int) ([]Conversation, error) {
	records, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, mapError(err)
	}

	conversations := make([]Conversation, 0, len(records))
	for _, record := range records {
		conversations = append(conversations, mapConversation(record))
	}
	return conversations, nil
}

func (s *service) Close(ctx context.Context, id int64) error {
	if err := s.repo.Close(ctx, id); err != nil {
		return mapError(err)
	}
	return nil
}

func (s *service) ListMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error) {
	records, err := s.repo.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, mapError(err)
	}

	messages := make([]Message, 0, len(records))
	for _, record := range records {
		messages = append(messages, mapMessage(record))
	}
	return messages, nil
}

func (s *service) ListAutoResponses(ctx context.Context) ([]AutoResponse, error) {
	records, err := s.repo.ListAutoResponses(ctx)
	if err != nil {
		return nil, mapError(err)
	}

	responses := make([]AutoResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, mapAutoResponse(record))
	}
	return responses, nil
}

func (s *service) UpsertAutoResponse(ctx context.Context, keyword, text string, enabled bool) (AutoResponse, error) {
	errs := FieldErrors{}

	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		errs.add("triggerKeyword", "trigger keyword is required")
	}
	if strings.ContainsAny(keyword, " \t") {
		errs.add("triggerKeyword", "trigger keyword must be a single word")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		errs.add("responseText", "response text is required")
	}
	if len(errs) > 0 {
		return AutoResponse{}, &ValidationError{Fields: errs}
	}

	record, err := s.repo.UpsertAutoResponse(ctx, keyword, text, enabled)
	if err != nil {
		return AutoResponse{}, mapError(err)
	}
	return mapAutoResponse(record), nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrNoStoreSelected):
		return ErrNoStore
	default:
		return err
	}
}

func mapConversation(record persistence.Conversation) Conversation {
	return Conversation{
		ID:            record.ID,
		CustomerPhone: record.CustomerPhone,
		Status:        record.Status,
		LastMessageAt: record.LastMessageAt,
		CreatedAt:     record.CreatedAt,
	}
}

func mapMessage(record persistence.Message) Message {
	return Message{
		ID:             record.ID,
		PublicID:       record.PublicID,
		ConversationID: record.ConversationID,
		Direction:      record.Direction,
		Body:           record.Body,
		MediaPath:      record.MediaPath,
		SentAt:         record.SentAt,
	}
}

func mapAutoResponse(record persistence.AutoResponse) AutoResponse {
	return AutoResponse{
		ID:             record.ID,
		TriggerKeyword: record.TriggerKeyword,
		ResponseText:   record.ResponseText,
		IsEnabled:      record.IsEnabled,
	}
}
