package tenant

import (
	"context"
	"fmt"
	"strings"
)

// Space captures the resolved store routing metadata for a request. It is
// attached to the context by middleware once the store has been resolved from
// credentials, header or session.
type Space struct {
	StoreID    int64
	Slug       string
	SchemaName string
	// Dedicated is false when the registry entry has no schema of its own and
	// the store still runs against the master (public) schema. That state is
	// tolerated for reads but reported by the ecosystem audit.
	Dedicated bool
	// BasePrefix locates the store's media objects: "<envKey>/<slug>-<id>/".
	BasePrefix string
}

type ctxKey string

const spaceKey ctxKey = "ORDERLINE_STORE_SPACE"

// WithSpace returns a derived context carrying the store Space.
func WithSpace(ctx context.Context, space Space) context.Context {
	return context.WithValue(ctx, spaceKey, space)
}

// FromContext extracts the store Space and a boolean indicating presence.
func FromContext(ctx context.Context) (Space, bool) {
	v := ctx.Value(spaceKey)
	if v == nil {
		return Space{}, false
	}

	space, ok := v.(Space)
	return space, ok
}

// BuildSchemaName returns the canonical PostgreSQL schema name for a store.
func BuildSchemaName(storeID int64) string {
	return fmt.Sprintf("store_%d", storeID)
}

// BuildBasePrefix returns `<envKey>/<slug>-<storeId>/` for media objects.
func BuildBasePrefix(envKey, slug string, storeID int64) string {
	envKey = strings.TrimSuffix(envKey, "/")
	return fmt.Sprintf("%s/%s-%d/", envKey, slug, storeID)
}
