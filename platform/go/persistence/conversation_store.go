package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Message directions on a conversation.
const (
	MessageInbound  = "inbound"
	MessageOutbound = "outbound"
)

// Conversation is one WhatsApp thread with a customer inside a store schema.
type Conversation struct {
	ID            int64
	CustomerPhone string
	Status        string
	LastMessageAt *time.Time
	CreatedAt     time.Time
}

type Message struct {
	ID             int64
	PublicID       uuid.UUID
	ConversationID int64
	Direction      string
	Body           string
	MediaPath      *string
	SentAt         time.Time
}

// AutoResponse is a keyword-triggered canned reply. Selection of which reply
// to send belongs to the webhook content logic, not to this layer.
type AutoResponse struct {
	ID             int64
	TriggerKeyword string
	ResponseText   string
	IsEnabled      bool
}

// ConversationStore provides conversation access bound to exactly one store
// schema.
type ConversationStore struct {
	db *StoreDB
}

func NewConversationStore(db *StoreDB) *ConversationStore {
	if db == nil {
		panic("conversation store requires db")
	}
	return &ConversationStore{db: db}
}

const conversationColumns = "id, customer_phone, status, last_message_at, created_at"

// OpenForPhone returns the open conversation for a phone number, creating one
// when none exists. Inbound webhook traffic uses this path.
func (s *ConversationStore) OpenForPhone(ctx context.Context, phone string) (Conversation, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return Conversation{}, errors.New("phone is required")
	}

	var conversation Conversation
	err := s.db.WithTx(ctx, "conversations.open_for_phone", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            SELECT `+conversationColumns+` FROM conversations
            WHERE customer_phone = $1 AND status = 'open'
            ORDER BY created_at DESC LIMIT 1`,
			phone,
		)
		conv, err := scanConversation(row)
		if err == nil {
			conversation = conv
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		row = tx.QueryRow(ctx, `
            INSERT INTO conversations (customer_phone)
            VALUES ($1)
            RETURNING `+conversationColumns,
			phone,
		)
		conversation, err = scanConversation(row)
		return err
	})
	return conversation, err
}

func (s *ConversationStore) Get(ctx context.Context, id int64) (Conversation, error) {
	var conversation Conversation
	err := s.db.WithTx(ctx, "conversations.get", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id)
		var scanErr error
		conversation, scanErr = scanConversation(row)
		return scanErr
	})
	return conversation, err
}

func (s *ConversationStore) List(ctx context.Context, status *string, limit int) ([]Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations`
	args := []any{}
	if status != nil {
		args = append(args, *status)
		query += ` WHERE status = $1`
	}
	args = append(args, limit)
	query += ` ORDER BY last_message_at DESC NULLS LAST LIMIT $` + itoa(len(args))

	var conversations []Conversation
	err := s.db.WithTx(ctx, "conversations.list", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		conversations = conversations[:0]
		for rows.Next() {
			conversation, err := scanConversation(rows)
			if err != nil {
				return err
			}
			conversations = append(conversations, conversation)
		}
		return rows.Err()
	})
	return conversations, err
}

// Close marks a conversation resolved.
func (s *ConversationStore) Close(ctx context.Context, id int64) error {
	return s.db.WithTx(ctx, "conversations.close", func(ctx context.Context, tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE conversations SET status = 'closed' WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AppendMessage records a message and bumps the conversation's
// last_message_at in the same transaction.
func (s *ConversationStore) AppendMessage(ctx context.Context, conversationID int64, direction, body string, mediaPath *string) (Message, error) {
	if direction != MessageInbound && direction != MessageOutbound {
		return Message{}, errors.New("direction must be inbound or outbound")
	}

	publicID := uuid.New()

	var message Message
	err := s.db.WithTx(ctx, "messages.append", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            INSERT INTO messages (public_id, conversation_id, direction, body, media_path)
            VALUES ($1, $2, $3, $4, $5)
            RETURNING id, public_id, conversation_id, direction, body, media_path, sent_at`,
			publicID, conversationID, direction, body, mediaPath,
		)
		if err := row.Scan(&message.ID, &message.PublicID, &message.ConversationID, &message.Direction, &message.Body, &message.MediaPath, &message.SentAt); err != nil {
			return err
		}

		_, err := tx.Exec(ctx, `UPDATE conversations SET last_message_at = $2 WHERE id = $1`, conversationID, message.SentAt)
		return err
	})
	return message, err
}

func (s *ConversationStore) ListMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var messages []Message
	err := s.db.WithTx(ctx, "messages.list", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
            SELECT id, public_id, conversation_id, direction, body, media_path, sent_at
            FROM messages WHERE conversation_id = $1
            ORDER BY sent_at ASC LIMIT $2`,
			conversationID, limit,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		messages = messages[:0]
		for rows.Next() {
			var m Message
			if err := rows.Scan(&m.ID, &m.PublicID, &m.ConversationID, &m.Direction, &m.Body, &m.MediaPath, &m.SentAt); err != nil {
				return err
			}
			messages = append(messages, m)
		}
		return rows.Err()
	})
	return messages, err
}

// ListAutoResponses returns the store's enabled canned replies.
func (s *ConversationStore) ListAutoResponses(ctx context.Context) ([]AutoResponse, error) {
	var responses []AutoResponse
	err := s.db.WithTx(ctx, "auto_responses.list", func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
            SELECT id, trigger_keyword, response_text, is_enabled
            FROM auto_responses WHERE is_enabled = TRUE
            ORDER BY trigger_keyword`,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		responses = responses[:0]
		for rows.Next() {
			var r AutoResponse
			if err := rows.Scan(&r.ID, &r.TriggerKeyword, &r.ResponseText, &r.IsEnabled); err != nil {
				return err
			}
			responses = append(responses, r)
		}
		return rows.Err()
	})
	return responses, err
}

// UpsertAutoResponse creates or updates a canned reply by keyword.
func (s *ConversationStore) UpsertAutoResponse(ctx context.Context, keyword, text string, enabled bool) (AutoResponse, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return AutoResponse{}, errors.New("trigger keyword is required")
	}

	var response AutoResponse
	err := s.db.WithTx(ctx, "auto_responses.upsert", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            WITH updated AS (
                UPDATE auto_responses SET response_text = $2, is_enabled = $3
                WHERE trigger_keyword = $1
                RETURNING id, trigger_keyword, response_text, is_enabled
            ), inserted AS (
                INSERT INTO auto_responses (trigger_keyword, response_text, is_enabled)
                SELECT $1, $2, $3
                WHERE NOT EXISTS (SELECT 1 FROM updated)
                RETURNING id, trigger_keyword, response_text, is_enabled
            )
            SELECT * FROM updated UNION ALL SELECT * FROM inserted`,
			keyword, text, enabled,
		)
		return row.Scan(&response.ID, &response.TriggerKeyword, &response.ResponseText, &response.IsEnabled)
	})
	return response, err
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.CustomerPhone, &c.Status, &c.LastMessageAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return c, nil
}
