package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Resolution failures the middleware maps to client errors. A store that
// cannot be resolved is never silently routed to the master database.
var (
	ErrStoreNotFound = errors.New("store not found")
	ErrStoreInactive = errors.New("store is inactive")
)

// RegistryEntry is the registry row the resolver consults. DatabaseURL may be
// nil (store not yet migrated to its own schema) or carry an embedded schema
// selector.
type RegistryEntry struct {
	ID          int64
	Name        string
	Slug        string
	DatabaseURL *string
	IsActive    bool
}

// Registry looks up stores in the master database. Implementations return
// ErrStoreNotFound when no row exists.
type Registry interface {
	GetStore(ctx context.Context, id int64) (RegistryEntry, error)
}

// Target is the connection target a store resolves to: the master connection
// string with a session-level search_path override. Stores do not get a
// separate physical database, only a schema within the same server.
type Target struct {
	StoreID    int64
	Slug       string
	SchemaName string
	ConnString string
	// Dedicated is false when the entry's databaseUrl is absent or points back
	// at the master URL. Downstream treats that as a reportable degraded state,
	// not as an explicit assignment to the public schema.
	Dedicated bool
}

// Resolver turns a store id into a connection target by consulting the
// registry. It is stateless and re-invoked on every cache miss; memoization
// is the connection cache's job.
type Resolver struct {
	registry  Registry
	masterURL string
}

func NewResolver(registry Registry, masterURL string) *Resolver {
	if registry == nil {
		panic("resolver requires registry")
	}
	if strings.TrimSpace(masterURL) == "" {
		panic("resolver requires master database URL")
	}
	return &Resolver{registry: registry, masterURL: masterURL}
}

// Resolve fails with ErrStoreNotFound when no registry entry exists and with
// ErrStoreInactive when the entry exists but is deactivated. Inactive stores
// must never receive a usable connection target.
func (r *Resolver) Resolve(ctx context.Context, storeID int64) (Target, error) {
	entry, err := r.registry.GetStore(ctx, storeID)
	if err != nil {
		return Target{}, err
	}
	if !entry.IsActive {
		return Target{}, fmt.Errorf("store %d: %w", storeID, ErrStoreInactive)
	}

	schema, dedicated := SchemaFromDatabaseURL(entry.DatabaseURL, r.masterURL)

	connString, err := BuildConnString(r.masterURL, schema)
	if err != nil {
		return Target{}, fmt.Errorf("build conn string for store %d: %w", storeID, err)
	}

	return Target{
		StoreID:    storeID,
		Slug:       entry.Slug,
		SchemaName: schema,
		ConnString: connString,
		Dedicated:  dedicated,
	}, nil
}

// SchemaFromDatabaseURL extracts the schema selector from a registry entry's
// databaseUrl. Supported forms are a `schema=` query parameter and an
// `options=-c search_path=<schema>` session option. Absence, or a URL equal to
// the master URL, yields ("public", false): the not-migrated degraded state.
func SchemaFromDatabaseURL(dbURL *string, masterURL string) (schema string, dedicated bool) {
	if dbURL == nil || strings.TrimSpace(*dbURL) == "" || *dbURL == masterURL {
		return "public", false
	}

	raw := *dbURL
	if u, err := url.Parse(raw); err == nil {
		q := u.Query()
		if s := strings.TrimSpace(q.Get("schema")); s != "" {
			return s, s != "public"
		}
		if opts := q.Get("options"); opts != "" {
			if s := schemaFromOptions(opts); s != "" {
				return s, s != "public"
			}
		}
	}

	// Fall back to a substring scan for URLs the parser rejects.
	for _, marker := range []string{"schema=", "search_path="} {
		if idx := strings.Index(raw, marker); idx >= 0 {
			rest := raw[idx+len(marker):]
			if end := strings.IndexAny(rest, "&; "); end >= 0 {
				rest = rest[:end]
			}
			if rest != "" {
				return rest, rest != "public"
			}
		}
	}

	return "public", false
}

func schemaFromOptions(opts string) string {
	const marker = "search_path="
	idx := strings.Index(opts, marker)
	if idx < 0 {
		return ""
	}
	rest := opts[idx+len(marker):]
	if end := strings.IndexAny(rest, " ;"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// BuildConnString appends the search_path session option to the master URL:
// <base>?...&options=-c%20search_path%3D<schema>.
func BuildConnString(masterURL, schema string) (string, error) {
	if strings.TrimSpace(schema) == "" {
		return "", errors.New("schema is required")
	}

	u, err := url.Parse(masterURL)
	if err != nil {
		return "", fmt.Errorf("parse master url: %w", err)
	}

	q := u.Query()
	q.Set("options", "-c search_path="+schema)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
