package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// settingsSchema constrains the per-store settings payload. Compiled once at
// construction; invalid payloads never reach the database.
const settingsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "businessName": {"type": "string", "minLength": 1},
    "greeting": {"type": "string"},
    "currency": {"type": "string", "pattern": "^[A-Z]{3}$"},
    "autoReplyEnabled": {"type": "boolean"},
    "orderConfirmationTemplate": {"type": "string"},
    "timezone": {"type": "string"}
  },
  "additionalProperties": false
}`

// Settings is the single configuration row inside a store schema.
type Settings struct {
	ID        int64
	Payload   json.RawMessage
	UpdatedAt time.Time
}

// InvalidSettingsError marks a payload rejected by schema validation, as
// opposed to a storage failure.
type InvalidSettingsError struct {
	Reason string
}

func (e *InvalidSettingsError) Error() string {
	return e.Reason
}

// SettingsValidator validates settings payloads against the embedded schema.
type SettingsValidator struct {
	schema *jsonschema.Schema
}

func NewSettingsValidator() (*SettingsValidator, error) {
	compiled, err := jsonschema.CompileString("memory://schemas/store-settings", settingsSchema)
	if err != nil {
		return nil, fmt.Errorf("compile settings schema: %w", err)
	}
	return &SettingsValidator{schema: compiled}, nil
}

// Validate ensures the payload matches the settings schema.
func (v *SettingsValidator) Validate(payload []byte) error {
	if len(strings.TrimSpace(string(payload))) == 0 {
		return &InvalidSettingsError{Reason: "settings payload is required"}
	}

	var document any
	if err := json.Unmarshal(payload, &document); err != nil {
		return &InvalidSettingsError{Reason: fmt.Sprintf("decode settings payload: %v", err)}
	}

	if err := v.schema.Validate(document); err != nil {
		return &InvalidSettingsError{Reason: fmt.Sprintf("settings validation: %v", err)}
	}
	return nil
}

// SettingsStore manages the settings row bound to exactly one store schema.
type SettingsStore struct {
	db        *StoreDB
	validator *SettingsValidator
}

func NewSettingsStore(db *StoreDB, validator *SettingsValidator) *SettingsStore {
	if db == nil {
		panic("settings store requires db")
	}
	if validator == nil {
		panic("settings store requires validator")
	}
	return &SettingsStore{db: db, validator: validator}
}

func (s *SettingsStore) Get(ctx context.Context) (Settings, error) {
	var settings Settings
	err := s.db.WithTx(ctx, "settings.get", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT id, payload, updated_at FROM settings ORDER BY id LIMIT 1`)
		if err := row.Scan(&settings.ID, &settings.Payload, &settings.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		return nil
	})
	return settings, err
}

// Put validates the payload and writes the single settings row, creating it
// on first use.
func (s *SettingsStore) Put(ctx context.Context, payload json.RawMessage) (Settings, error) {
	if err := s.validator.Validate(payload); err != nil {
		return Settings{}, err
	}

	var settings Settings
	err := s.db.WithTx(ctx, "settings.put", func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
            WITH updated AS (
                UPDATE settings SET payload = $1, updated_at = now()
                WHERE id = (SELECT id FROM settings ORDER BY id LIMIT 1)
                RETURNING id, payload, updated_at
            ), inserted AS (
                INSERT INTO settings (payload)
                SELECT $1
                WHERE NOT EXISTS (SELECT 1 FROM updated)
                RETURNING id, payload, updated_at
            )
            SELECT * FROM updated UNION ALL SELECT * FROM inserted`,
			payload,
		)
		return row.Scan(&settings.ID, &settings.Payload, &settings.UpdatedAt)
	})
	return settings, err
}
