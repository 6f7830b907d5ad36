package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	domainrepo "github.com/orderline-app/orderline/domains/stores/be/repo"
	"github.com/orderline-app/orderline/platform/go/persistence"
	"github.com/orderline-app/orderline/platform/go/tenant"
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
	ErrNotFound     = errors.New("store not found")
	ErrConflictSlug = errors.New("store slug already exists")
)

// Store is the domain model for a registered store.
type Store struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	WhatsAppNumber *string   `json:"whatsappNumber"`
	DatabaseURL    *string   `json:"databaseUrl"`
	SchemaName     string    `json:"schemaName"`
	Dedicated      bool      `json:"hasSeparateDatabase"`
	IsActive       bool      `json:"isActive"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// CreateInput is the payload required to register a store.
type CreateInput struct {
	Name           string
	Slug           string
	WhatsAppNumber *string
}

// DBProvisionResult reports the outcome of schema provisioning.
type DBProvisionResult struct {
	SchemaName string
	Ready      bool
}

// DBProvisioner creates and inspects per-store database schemas.
type DBProvisioner interface {
	Ensure(ctx context.Context, storeID int64) (DBProvisionResult, error)
	Check(ctx context.Context, storeID int64) (DBProvisionResult, error)
}

// ConnInvalidator drops a store's cached connection after its routing changed.
type ConnInvalidator interface {
	Invalidate(storeID int64)
}

// Service exposes the store registry domain operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (Store, error)
	Get(ctx context.Context, id int64) (Store, error)
	List(ctx context.Context, includeInactive bool) ([]Store, error)
	Deactivate(ctx context.Context, id int64) error
	Provision(ctx context.Context, id int64) (Store, error)
	Metrics(ctx context.Context) (persistence.SystemMetrics, error)
}

type service struct {
	repo        domainrepo.Repository
	provisioner DBProvisioner
	cache       ConnInvalidator
	masterURL   string
	logger      *zap.Logger
}

// New builds the stores Service. The cache may be nil when running from the
// CLI where no connection cache exists.
func New(repo domainrepo.Repository, provisioner DBProvisioner, cache ConnInvalidator, masterURL string, logger *zap.Logger) Service {
	if repo == nil {
		panic("stores repository is required")
	}
	if provisioner == nil {
		panic("db provisioner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repo:        repo,
		provisioner: provisioner,
		cache:       cache,
		masterURL:   masterURL,
		logger:      logger,
	}
}

// Create registers the store and provisions its schema in one flow. A store
// whose provisioning fails stays registered without a databaseUrl; it routes
// to the master schema until Provision is retried.
func (s *service) Create(ctx context.Context, input CreateInput) (Store, error) {
	normalized, err := s.validateCreateInput(input)
	if err != nil {
		return Store{}, err
	}

	record, err := s.repo.Create(ctx, persistence.CreateStoreParams{
		Name:           normalized.name,
		Slug:           normalized.slug,
		WhatsAppNumber: input.WhatsAppNumber,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return Store{}, ErrConflictSlug
		}
		return Store{}, err
	}

	provisioned, err := s.provision(ctx, record.ID)
	if err != nil {
		s.logger.Error("store registered but provisioning failed",
			zap.Int64("store_id", record.ID),
			zap.Error(err),
		)
		return s.mapStore(record), nil
	}
	return s.mapStore(provisioned), nil
}

func (s *service) Get(ctx context.Context, id int64) (Store, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Store{}, ErrNotFound
		}
		return Store{}, err
	}
	return s.mapStore(record), nil
}

func (s *service) List(ctx context.Context, includeInactive bool) ([]Store, error) {
	records, err := s.repo.List(ctx, includeInactive)
	if err != nil {
		return nil, err
	}

	stores := make([]Store, 0, len(records))
	for _, record := range records {
		stores = append(stores, s.mapStore(record))
	}
	return stores, nil
}

func (s *service) Deactivate(ctx context.Context, id int64) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(id)
	}
	return nil
}

// Provision creates the store schema for an existing registry entry, for
// retrying after a failed Create or for migrating a legacy store off the
// shared tables.
func (s *service) Provision(ctx context.Context, id int64) (Store, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return Store{}, ErrNotFound
		}
		return Store{}, err
	}

	record, err := s.provision(ctx, id)
	if err != nil {
		return Store{}, err
	}
	return s.mapStore(record), nil
}

func (s *service) Metrics(ctx context.Context) (persistence.SystemMetrics, error) {
	return s.repo.Metrics(ctx)
}

func (s *service) provision(ctx context.Context, id int64) (persistence.StoreRecord, error) {
	result, err := s.provisioner.Ensure(ctx, id)
	if err != nil {
		return persistence.StoreRecord{}, err
	}

	connString, err := tenant.BuildConnString(s.masterURL, result.SchemaName)
	if err != nil {
		return persistence.StoreRecord{}, err
	}

	record, err := s.repo.SetDatabaseURL(ctx, id, connString)
	if err != nil {
		return persistence.StoreRecord{}, err
	}

	// The store may have been resolved before it had a schema; drop any
	// cached master-routed connection.
	if s.cache != nil {
		s.cache.Invalidate(id)
	}

	s.logger.Info("store schema provisioned",
		zap.Int64("store_id", id),
		zap.String("schema", result.SchemaName),
	)
	return record, nil
}

type normalizedCreateInput struct {
	name string
	slug string
}

func (s *service) validateCreateInput(input CreateInput) (normalizedCreateInput, error) {
	errs := FieldErrors{}

	trimmedName := strings.TrimSpace(input.Name)
	if trimmedName == "" {
		errs.add("name", "name is required")
	}

	rawSlug := input.Slug
	if strings.TrimSpace(rawSlug) == "" {
		rawSlug = trimmedName
	}
	slug, err := persistence.NormalizeSlug(rawSlug)
	if err != nil {
		errs.add("slug", err.Error())
	}

	if len(errs) > 0 {
		return normalizedCreateInput{}, &ValidationError{Fields: errs}
	}
	return normalizedCreateInput{name: trimmedName, slug: slug}, nil
}

func (s *service) mapStore(record persistence.StoreRecord) Store {
	schema, dedicated := tenant.SchemaFromDatabaseURL(record.DatabaseURL, s.masterURL)
	return Store{
		ID:             record.ID,
		Name:           record.Name,
		Slug:           record.Slug,
		WhatsAppNumber: record.WhatsAppNumber,
		DatabaseURL:    record.DatabaseURL,
		SchemaName:     schema,
		Dedicated:      dedicated,
		IsActive:       record.IsActive,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
