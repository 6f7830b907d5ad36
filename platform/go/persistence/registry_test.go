package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolRegistryCloseAllEmpty(t *testing.T) {
	registry := NewPoolRegistry(PoolConfig{}, zap.NewNop())

	registry.CloseAll()
	registry.CloseAll()
	require.Zero(t, registry.Len())

	registry.CloseTarget("postgres://nobody@nowhere:5432/none")
	require.Zero(t, registry.Len())

	require.Empty(t, registry.Stats())
}

func TestTargetLabel(t *testing.T) {
	cases := []struct {
		target string
		label  string
	}{
		{"postgres://app:secret@db:5432/orderline", "master"},
		{"postgres://app:secret@db:5432/orderline?options=-c%20search_path%3Dstore_7", "store_7"},
		{"postgres://app:secret@db:5432/orderline?schema=store_12", "store_12"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.label, targetLabel(tc.target))
	}
}
