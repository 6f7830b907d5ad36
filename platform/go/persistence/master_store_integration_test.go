package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func TestMasterStoreIntegration(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping persistence integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("orderline"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		ClosePool(pool)
	})

	require.NoError(t, BootstrapMasterSchema(ctx, pool))
	// Bootstrap is idempotent; a redeploy re-running it must not fail.
	require.NoError(t, BootstrapMasterSchema(ctx, pool))

	var defaultResponses int64
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM default_auto_responses").Scan(&defaultResponses))
	require.EqualValues(t, 3, defaultResponses)

	master := NewMasterStore(NewStoreDB(NewExecutor(pool, zap.NewNop()), MasterSchema))

	number := "+573001112233"
	created, err := master.CreateStore(ctx, CreateStoreParams{
		Name:           "Arepas Lucia",
		Slug:           "arepas-lucia",
		WhatsAppNumber: &number,
	})
	require.NoError(t, err)
	require.Equal(t, "arepas-lucia", created.Slug)
	require.True(t, created.IsActive)
	require.Nil(t, created.DatabaseURL)

	_, err = master.CreateStore(ctx, CreateStoreParams{Name: "Bad", Slug: "Not A Slug"})
	require.Error(t, err)

	got, err := master.GetStore(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, "Arepas Lucia", got.Name)

	_, err = master.GetStore(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)

	updated, err := master.UpdateStoreDatabaseURL(ctx, created.ID, connString+"&options=-c%20search_path%3Dstore_1")
	require.NoError(t, err)
	require.NotNil(t, updated.DatabaseURL)

	second, err := master.CreateStore(ctx, CreateStoreParams{Name: "Empanadas", Slug: "empanadas"})
	require.NoError(t, err)
	require.NoError(t, master.DeactivateStore(ctx, second.ID))
	require.ErrorIs(t, master.DeactivateStore(ctx, 9999), ErrNotFound)

	active, err := master.ListStores(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, created.ID, active[0].ID)

	all, err := master.ListStores(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 2)

	fullName := "Platform Admin"
	user, err := master.CreatePlatformUser(ctx, PlatformUser{
		Email:        "admin@orderline.app",
		PasswordHash: "$2a$10$notarealhashbutlongenough1234567890abcd",
		FullName:     &fullName,
		AccessLevel:  "global",
	})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.True(t, user.IsActive)

	fetched, err := master.GetPlatformUserByEmail(ctx, "admin@orderline.app")
	require.NoError(t, err)
	require.Equal(t, user.ID, fetched.ID)
	require.Equal(t, "global", fetched.AccessLevel)
	require.Nil(t, fetched.StoreID)

	_, err = master.GetPlatformUserByEmail(ctx, "nobody@orderline.app")
	require.ErrorIs(t, err, ErrNotFound)

	metrics, err := master.Metrics(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, metrics.ActiveStores)
	require.EqualValues(t, 1, metrics.InactiveStores)
	require.EqualValues(t, 1, metrics.PlatformUsers)
	require.EqualValues(t, 0, metrics.LegacyOrders)
}
