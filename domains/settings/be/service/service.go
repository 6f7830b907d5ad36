package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/orderline-app/orderline/platform/go/persistence"
)

// Domain-level error sentinel values.
var (
	ErrNoStore = errors.New("no store selected")
)

// Settings is the store configuration document.
type Settings struct {
	Payload   json.RawMessage `json:"payload"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// InvalidPayloadError wraps schema validation failures with the validator's
// message intact for the client.
type InvalidPayloadError struct {
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	return e.Reason
}

// Service exposes store settings reads and schema-validated writes.
type Service interface {
	Get(ctx context.Context) (Settings, error)
	Put(ctx context.Context, payload json.RawMessage) (Settings, error)
}

type service struct{}

func New() Service {
	return service{}
}

func (service) Get(ctx context.Context) (Settings, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return Settings{}, ErrNoStore
	}

	record, err := facade.Settings.Get(ctx)
	if err != nil {
		// A store that never saved settings reads as an empty document.
		if errors.Is(err, persistence.ErrNotFound) {
			return Settings{Payload: json.RawMessage("{}")}, nil
		}
		return Settings{}, err
	}
	return Settings{Payload: record.Payload, UpdatedAt: record.UpdatedAt}, nil
}

func (service) Put(ctx context.Context, payload json.RawMessage) (Settings, error) {
	facade, err := persistence.RequireStoreFacade(ctx)
	if err != nil {
		return Settings{}, ErrNoStore
	}

	record, err := facade.Settings.Put(ctx, payload)
	if err != nil {
		var invalid *persistence.InvalidSettingsError
		if errors.As(err, &invalid) {
			return Settings{}, &InvalidPayloadError{Reason: invalid.Error()}
		}
		return Settings{}, err
	}
	return Settings{Payload: record.Payload, UpdatedAt: record.UpdatedAt}, nil
}
