package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orderline-app/orderline/platform/go/tenant"
)

func TestResolveObjectLocation(t *testing.T) {
	space := tenant.Space{
		StoreID:    12,
		Slug:       "acme-market",
		SchemaName: "store_12",
		BasePrefix: "dev/acme-market-12/",
	}

	loc, err := ResolveObjectLocation(space, "orderline-dev-media", ProductImageKey(44, "front.png"))
	require.NoError(t, err)
	require.Equal(t, "orderline-dev-media", loc.Bucket)
	require.Equal(t, "dev/acme-market-12/products/44/front.png", loc.FullPath)
}

func TestResolveObjectLocation_trimsSlashAndValidates(t *testing.T) {
	space := tenant.Space{
		StoreID:    12,
		Slug:       "acme-market",
		SchemaName: "store_12",
		BasePrefix: "dev/acme-market-12", // no trailing slash
	}

	loc, err := ResolveObjectLocation(space, "bucket", "/avatars/user.png")
	require.NoError(t, err)
	require.Equal(t, "dev/acme-market-12/avatars/user.png", loc.FullPath)

	_, err = ResolveObjectLocation(space, "", "file")
	require.Error(t, err)

	_, err = ResolveObjectLocation(space, "bucket", " ")
	require.Error(t, err)

	space.BasePrefix = ""
	_, err = ResolveObjectLocation(space, "bucket", "file")
	require.Error(t, err)
}

func TestLocalProvisionerPut(t *testing.T) {
	root := t.TempDir()
	p := NewLocalProvisioner(root)

	loc := ObjectLocation{Bucket: "media", FullPath: "dev/acme-market-12/messages/3/9/voice.ogg"}
	err := p.Put(context.Background(), loc, "audio/ogg", bytes.NewReader([]byte("payload")))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "media", "dev", "acme-market-12", "messages", "3", "9", "voice.ogg"))
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}
